package protocol

import (
	"bufio"
	"io"
)

// Writer buffers message text for a stream. Nothing reaches the stream until
// Flush is called, encoding a message flushes once the message is complete.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	if bw, ok := w.(*bufio.Writer); ok {
		return &Writer{w: bw}
	}

	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes each of ss in order
func (w *Writer) Write(ss ...string) error {
	for _, s := range ss {
		if _, err := w.w.WriteString(s); err != nil {
			return err
		}
	}

	return nil
}

// WriteLine writes each of ss in order, then CRLF
func (w *Writer) WriteLine(ss ...string) error {
	if err := w.Write(ss...); err != nil {
		return err
	}

	return w.Write(CRLF)
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}
