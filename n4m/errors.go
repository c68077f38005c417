package n4m

import (
	"errors"
	"fmt"
)

type ErrorCode uint8

const (
	NoError ErrorCode = iota
	IncorrectHeader
	BadMsgSize
	BadMsg
	SystemError
)

func ParseErrorCode(n int) (ErrorCode, error) {
	if n < int(NoError) || n > int(SystemError) {
		return 0, newError(IncorrectHeader, "invalid error code %d", n)
	}

	return ErrorCode(n), nil
}

func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "NOERROR"
	case IncorrectHeader:
		return "INCORRECTHEADER"
	case BadMsgSize:
		return "BADMSGSIZE"
	case BadMsg:
		return "BADMSG"
	case SystemError:
		return "SYSTEMERROR"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint8(c))
	}
}

// Error is returned for anything that can't be encoded or decoded. Code is what
// a server should answer with.
type Error struct {
	Code ErrorCode
	Msg  string
}

func newError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("n4m %s: %s", e.Code, e.Msg)
}

// CodeOf returns the ErrorCode carried by err, SystemError if it carries none
func CodeOf(err error) ErrorCode {
	var n4mErr *Error
	if errors.As(err, &n4mErr) {
		return n4mErr.Code
	}

	return SystemError
}
