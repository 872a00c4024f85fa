// Package buffer provides a byte buffer made of ordered, non-contiguous slices.
//
// Data added to a Buffer is kept in the chunks it arrived in. Consumers such
// as the SHA-256 digest walk the chunks in order without flattening them.
package buffer

import (
	"bytes"
	"io"
)

// Slicer exposes the raw slices of a fragmented buffer in order.
type Slicer interface {
	// RawSlices returns the buffer's chunks in order. Callers must not
	// modify the returned slices.
	RawSlices() [][]byte
}

// Buffer is a fragmented byte buffer. The zero value is an empty buffer.
// A Buffer is not safe for concurrent mutation.
type Buffer struct {
	slices [][]byte
	length int
}

// New creates a buffer holding a copy of each given chunk.
func New(chunks ...[]byte) *Buffer {
	b := &Buffer{}
	for _, c := range chunks {
		b.Add(c)
	}
	return b
}

// NewString creates a buffer holding s as a single chunk.
func NewString(s string) *Buffer {
	b := &Buffer{}
	b.AddString(s)
	return b
}

// Add appends a copy of data as a new chunk. Empty data is ignored.
func (b *Buffer) Add(data []byte) {
	if len(data) == 0 {
		return
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	b.slices = append(b.slices, chunk)
	b.length += len(chunk)
}

// AddString appends s as a new chunk.
func (b *Buffer) AddString(s string) {
	b.Add([]byte(s))
}

// Prepend inserts a copy of data as the first chunk.
func (b *Buffer) Prepend(data []byte) {
	if len(data) == 0 {
		return
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	b.slices = append([][]byte{chunk}, b.slices...)
	b.length += len(chunk)
}

// RawSlices returns the chunks in order. A nil Buffer has no chunks.
func (b *Buffer) RawSlices() [][]byte {
	if b == nil {
		return nil
	}
	return b.slices
}

// Len returns the total number of bytes across all chunks.
func (b *Buffer) Len() int {
	return b.length
}

// NumSlices returns the number of chunks.
func (b *Buffer) NumSlices() int {
	return len(b.slices)
}

// Bytes returns the concatenation of all chunks as a new slice.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, 0, b.length)
	for _, s := range b.slices {
		out = append(out, s...)
	}
	return out
}

// String returns the buffer content as a string.
func (b *Buffer) String() string {
	return string(b.Bytes())
}

// WriteTo writes every chunk to w in order.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, s := range b.slices {
		n, err := w.Write(s)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Drain removes the first n bytes from the buffer.
func (b *Buffer) Drain(n int) {
	for n > 0 && len(b.slices) > 0 {
		first := b.slices[0]
		if n < len(first) {
			b.slices[0] = first[n:]
			b.length -= n
			return
		}
		n -= len(first)
		b.length -= len(first)
		b.slices = b.slices[1:]
	}
}

// Equal reports whether two buffers hold the same bytes, regardless of how
// they are split into chunks.
func Equal(a, b Slicer) bool {
	return bytes.Equal(flatten(a), flatten(b))
}

func flatten(s Slicer) []byte {
	var out []byte
	for _, chunk := range s.RawSlices() {
		out = append(out, chunk...)
	}
	return out
}

// Ensure Buffer implements the interfaces.
var (
	_ Slicer      = (*Buffer)(nil)
	_ io.WriterTo = (*Buffer)(nil)
)
