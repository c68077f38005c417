package n4m

import (
	"errors"
)

var errShort = errors.New("out of data")

// bitReader reads big endian fields of any bit width from a byte slice
type bitReader struct {
	data []byte
	pos  int // in bits
}

func (r *bitReader) hasMore() bool {
	return r.pos < len(r.data)*8
}

func (r *bitReader) bits(n int) (uint32, error) {
	if r.pos+n > len(r.data)*8 {
		return 0, errShort
	}

	var v uint32
	for i := 0; i < n; i++ {
		b := r.data[r.pos/8]
		bit := (b >> (7 - uint(r.pos%8))) & 1
		v = v<<1 | uint32(bit)
		r.pos++
	}

	return v, nil
}

func (r *bitReader) uint8() (uint8, error) {
	v, err := r.bits(8)
	return uint8(v), err
}

func (r *bitReader) uint16() (uint16, error) {
	v, err := r.bits(16)
	return uint16(v), err
}

func (r *bitReader) uint32() (uint32, error) {
	return r.bits(32)
}

// lpString reads a one byte length followed by that many bytes
func (r *bitReader) lpString() ([]byte, error) {
	n, err := r.uint8()
	if err != nil {
		return nil, err
	}

	if r.pos%8 != 0 || r.pos/8+int(n) > len(r.data) {
		return nil, errShort
	}

	start := r.pos / 8
	r.pos += int(n) * 8

	return r.data[start : start+int(n)], nil
}

// bitWriter is the counterpart of bitReader
type bitWriter struct {
	buf     []byte
	partial byte
	n       int // bits held in partial
}

func (w *bitWriter) bits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.partial = w.partial<<1 | byte(v>>uint(i)&1)
		w.n++

		if w.n == 8 {
			w.buf = append(w.buf, w.partial)
			w.partial, w.n = 0, 0
		}
	}
}

func (w *bitWriter) uint8(v uint8) {
	w.bits(uint32(v), 8)
}

func (w *bitWriter) uint16(v uint16) {
	w.bits(uint32(v), 16)
}

func (w *bitWriter) uint32(v uint32) {
	w.bits(v, 32)
}

// lpString writes s with a one byte length prefix, s must be at most 255 bytes
func (w *bitWriter) lpString(s string) {
	w.uint8(uint8(len(s)))
	for i := 0; i < len(s); i++ {
		w.uint8(s[i])
	}
}

func (w *bitWriter) bytes() []byte {
	return w.buf
}
