// Package protocol implements parsing and serialising of SPRT, the text
// protocol that clients use to drive applications on an SPRT server.
//
// This protocol aims to be
//
// - easy to implement
// - human readable
// - stateless on the server, session data rides along with every message
//
// - `Request` - When a client asks the server to run a function of an application.
// - `Response` - When a server replies with a status, the next function and a message.
// - `Attributes` - Key/value pairs (cookies) that carry session state. The server
//                  echoes every attribute it receives, plus any it adds.
//
// === General Syntax
//
// - lines are `\r\n` delimited
// - every message starts with `SPRT/1.0 ` followed by `Q` (request) or `R` (response)
// - function names, parameters, attribute keys and values are tokens: [A-Za-z0-9]+
// - every message ends with its attribute block, which is terminated by an empty line
//
// === Request
//
//   ```
//     SPRT/1.0 Q RUN <function> <param1> <param2>\r\n
//     <key>=<value>\r\n
//     \r\n
//   ```
//
// === Response
//
//   ```
//     SPRT/1.0 R <OK|ERROR> <function> <message>\r\n
//     <key>=<value>\r\n
//     \r\n
//   ```
//
// Where `<message>` is any run of printable ASCII (0x20-0x7E), possibly empty, and
// `<function>` is the function the client should call next. The reserved function
// `NULL` means there is nothing left to call and the server will close the connection.
//
// Attributes are always written in ascending key order.
//
// === Framing
//
// Because the attribute block always ends with `\r\n\r\n`, and that sequence can not
// appear anywhere else in a message, it doubles as the frame delimiter. The Deframer
// uses it to cut complete messages out of arbitrarily chunked input.
package protocol
