package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete is returned when the input ends before the grammar is satisfied.
	// A non-blocking reader should buffer more bytes and try again, a blocking
	// reader should treat it as a broken connection.
	ErrIncomplete = errors.New("incomplete input")

	// ErrInvalid is matched by every ValidationError.
	ErrInvalid = errors.New("invalid input")
)

// ValidationError reports input that is well formed but violates the grammar, or
// a value that is not allowed in a message.
type ValidationError struct {
	Msg string

	// Token is the offending fragment
	Token string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %q", e.Msg, e.Token)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

func invalid(token string, format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...), Token: token}
}

func incomplete(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrIncomplete)
}
