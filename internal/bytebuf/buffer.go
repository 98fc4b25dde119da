// Package bytebuf provides a growable in-memory output stream with
// random-access patching.
package bytebuf

import (
	"errors"
	"fmt"
	"io"
)

const minCap = 64

// ErrOutOfRange is returned by WriteAt when the patch would extend past the
// bytes already written.
var ErrOutOfRange = errors.New("bytebuf: write beyond end of buffer")

// Buffer is an owned, growable byte slice. Writes append at the cursor; WriteAt
// overwrites bytes that were already written (patch-up of length fields and
// similar placeholders). The zero value is ready to use.
type Buffer struct {
	data []byte
	pos  int
}

// New returns a Buffer with at least size bytes of capacity reserved.
func New(size int) *Buffer {
	b := &Buffer{}
	b.Grow(size)
	return b
}

// Grow makes room for n more bytes, doubling the capacity until it fits.
func (b *Buffer) Grow(n int) {
	if n <= 0 {
		return
	}
	need := b.pos + n
	if need <= cap(b.data) {
		return
	}
	newCap := cap(b.data)
	if newCap < minCap {
		newCap = minCap
	}
	for newCap < need {
		newCap *= 2
	}
	grown := make([]byte, b.pos, newCap)
	copy(grown, b.data[:b.pos])
	b.data = grown
}

// Write appends p at the cursor.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Grow(len(p))
	b.data = b.data[:b.pos+len(p)]
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

// WriteString appends s at the cursor.
func (b *Buffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

// WriteAt overwrites len(p) bytes starting at off. The range must lie within
// the bytes written so far.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(b.pos) {
		return 0, fmt.Errorf("%w: offset %d, length %d, size %d", ErrOutOfRange, off, len(p), b.pos)
	}
	copy(b.data[off:], p)
	return len(p), nil
}

// Pos returns the write cursor, which is also the number of bytes written.
func (b *Buffer) Pos() int64 { return int64(b.pos) }

// Len returns the number of bytes written.
func (b *Buffer) Len() int { return b.pos }

// Cap returns the reserved capacity.
func (b *Buffer) Cap() int { return cap(b.data) }

// Bytes returns the written bytes. The slice aliases the buffer until the next
// write.
func (b *Buffer) Bytes() []byte { return b.data[:b.pos] }

// Reset discards the content but keeps the capacity.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.pos = 0
}

// WriteTo copies the written bytes to w without consuming them.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Bytes())
	return int64(n), err
}
