package protocol

import (
	"bytes"
)

// Delimiter ends every complete message, see the package docs
const Delimiter = CRLF + CRLF

const initialDeframerSize = 1024

var delimiter = []byte(Delimiter)

// Deframer accumulates raw bytes from a stream and cuts complete messages out of
// them, so that a non-blocking reader never has to parse a partial message.
//
// The Deframer does not bound its buffer, bounding input is the transport's job.
type Deframer struct {
	buf []byte

	// buf[:pos] holds bytes that have not been returned yet
	pos int

	// no delimiter starts before searched
	searched int
}

func NewDeframer() *Deframer {
	return &Deframer{buf: make([]byte, initialDeframerSize)}
}

// Feed appends chunk to the buffer and returns the first complete message, delimiter
// included, or nil if there is none yet. At most one message is returned per call,
// call Feed again with an empty chunk to drain any others that are buffered.
func (d *Deframer) Feed(chunk []byte) []byte {
	d.grow(len(chunk))
	d.pos += copy(d.buf[d.pos:], chunk)

	idx := bytes.Index(d.buf[d.searched:d.pos], delimiter)
	if idx == -1 {
		d.searched = d.pos - len(delimiter) + 1
		if d.searched < 0 {
			d.searched = 0
		}

		return nil
	}

	end := d.searched + idx + len(delimiter)

	msg := make([]byte, end)
	copy(msg, d.buf[:end])

	// Compact whatever follows the message to the front
	d.pos = copy(d.buf, d.buf[end:d.pos])
	d.searched = 0

	return msg
}

// Buffered returns the number of bytes held that are not part of a returned message
func (d *Deframer) Buffered() int {
	return d.pos
}

// grow doubles the buffer until n more bytes fit
func (d *Deframer) grow(n int) {
	size := len(d.buf)
	if size == 0 {
		size = initialDeframerSize
	}

	for d.pos+n > size {
		size *= 2
	}

	if size == len(d.buf) {
		return
	}

	buf := make([]byte, size)
	copy(buf, d.buf[:d.pos])
	d.buf = buf
}
