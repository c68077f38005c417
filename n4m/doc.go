// Package n4m implements N4M, a binary datagram protocol a business uses to ask
// an SPRT server how often its applications have been run.
//
// === Header
//
// Every message starts with a two byte header:
//
//	 0                   1
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5
//	+-------+-+-----+---------------+
//	|Version|R| Err |    Msg ID     |
//	+-------+-+-----+---------------+
//
// Version is always 2. R is 1 for a response and 0 for a query. Err is an
// ErrorCode, always 0 in a query. Msg ID is chosen by the client and echoed
// back by the server.
//
// === Query
//
// One length prefixed ASCII string, the business name.
//
// === Response
//
// A four byte unsigned timestamp (unix seconds of the most recent application
// run), a one byte application count, then for each application a two byte use
// count and its length prefixed ASCII name.
//
// All integers are big endian. Trailing bytes make a message invalid.
package n4m
