package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

const (
	// CRLF terminates every line of a message
	CRLF = "\r\n"

	// the most we show of bad input in a ValidationError
	maxFragment = 10
)

// Reader reads SPRT messages one character at a time with lookahead. Characters
// are single ASCII bytes.
//
// To avoid denial of service attacks, the provided io.Reader should be reading
// from a connection with a read deadline, or from an io.LimitReader or similar,
// to bound how long and how much a single message may take.
type Reader struct {
	r *bufio.Reader
}

// NewReader returns a Reader that consumes from the provided stream
func NewReader(r io.Reader) *Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return &Reader{r: br}
	}

	return &Reader{r: bufio.NewReader(r)}
}

// NewBytesReader returns a Reader over a copy of data. It behaves exactly like
// a stream backed Reader that reaches EOF at the end of data.
func NewBytesReader(data []byte) *Reader {
	return NewReader(bytes.NewReader(append([]byte(nil), data...)))
}

// Peek returns the next character without consuming it
func (r *Reader) Peek() (byte, error) {
	p, err := r.r.Peek(1)
	if len(p) == 1 {
		return p[0], nil
	}

	return 0, eofAsIncomplete(err, "expected a character")
}

// PeekExactly returns the next n characters without consuming them
func (r *Reader) PeekExactly(n int) (string, error) {
	p, err := r.r.Peek(n)
	if len(p) == n {
		return string(p), nil
	}

	return "", eofAsIncomplete(err, "expected %d characters, got %d", n, len(p))
}

// ReadExactly consumes the next n characters
func (r *Reader) ReadExactly(n int) (string, error) {
	buf := make([]byte, n)

	read, err := io.ReadFull(r.r, buf)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}

		return "", eofAsIncomplete(err, "expected %d characters, got %d", n, read)
	}

	return string(buf), nil
}

// Skip consumes and discards the next n characters
func (r *Reader) Skip(n int) error {
	skipped, err := r.r.Discard(n)
	if err != nil {
		return eofAsIncomplete(err, "could not skip %d characters, skipped %d", n, skipped)
	}

	return nil
}

// ReadWhile consumes characters for as long as predicate holds. The stream only
// advances over the characters that were accepted. Reaching the end of the
// stream is not an error, whatever was accepted so far is returned.
func (r *Reader) ReadWhile(predicate func(c byte) bool) (string, error) {
	var sb strings.Builder

	for {
		p, err := r.r.Peek(1)
		if len(p) == 0 {
			if errors.Is(err, io.EOF) {
				return sb.String(), nil
			}

			return sb.String(), err
		}

		if !predicate(p[0]) {
			return sb.String(), nil
		}

		sb.WriteByte(p[0])

		if _, err := r.r.Discard(1); err != nil {
			return sb.String(), err
		}
	}
}

// ReadUntil consumes characters until predicate holds
func (r *Reader) ReadUntil(predicate func(c byte) bool) (string, error) {
	return r.ReadWhile(func(c byte) bool { return !predicate(c) })
}

// ReadToDelimiter consumes characters up to, but not including, delim. If delim
// never appears the rest of the stream is returned.
func (r *Reader) ReadToDelimiter(delim string) (string, error) {
	var sb strings.Builder

	for {
		p, err := r.r.Peek(len(delim))
		if string(p) == delim {
			return sb.String(), nil
		}

		if len(p) == 0 {
			if errors.Is(err, io.EOF) {
				return sb.String(), nil
			}

			return sb.String(), err
		}

		if err != nil && !errors.Is(err, io.EOF) {
			return sb.String(), err
		}

		sb.WriteByte(p[0])

		if _, err := r.r.Discard(1); err != nil {
			return sb.String(), err
		}
	}
}

// NextToken consumes one maximal run of alphanumeric characters
func (r *Reader) NextToken() (string, error) {
	if _, err := r.Peek(); err != nil {
		return "", eofAsIncomplete(err, "expected a token")
	}

	tok, err := r.ReadWhile(IsAlnum)
	if err != nil {
		return "", err
	}

	if tok == "" {
		return "", invalid(r.fragment(), "expected token")
	}

	return tok, nil
}

// HasNextToken returns true if the next character could start a token
func (r *Reader) HasNextToken() bool {
	c, err := r.Peek()
	return err == nil && IsAlnum(c)
}

// NextMatches returns true if the next characters are exactly s
func (r *Reader) NextMatches(s string) bool {
	p, err := r.r.Peek(len(s))
	return err == nil && string(p) == s
}

// ExpectLiteral consumes exactly s. It returns ErrIncomplete if the stream ends
// before len(s) characters could be compared, and a ValidationError if they
// differ from s.
func (r *Reader) ExpectLiteral(s string) error {
	got, err := r.ReadExactly(len(s))
	if err != nil {
		return err
	}

	if got != s {
		return invalid(got, "expected %q", s)
	}

	return nil
}

// fragment returns whatever is already buffered, up to a few characters, for
// error reporting. It never blocks.
func (r *Reader) fragment() string {
	n := r.r.Buffered()
	if n > maxFragment {
		n = maxFragment
	}

	p, _ := r.r.Peek(n)
	return string(p)
}

func eofAsIncomplete(err error, format string, args ...interface{}) error {
	if err == nil || errors.Is(err, io.EOF) {
		return incomplete(format, args...)
	}

	return err
}
