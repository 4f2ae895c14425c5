package protocol

import "bytes"

// Buffer accumulates bytes read from a stream and hands them back one frame
// at a time. A partial frame at the tail stays buffered until its delimiter
// arrives. Buffer is not safe for concurrent use.
type Buffer struct {
	buf []byte
	off int
}

// Write appends a chunk read from the stream.
func (b *Buffer) Write(p []byte) {
	if b.off > 0 && b.off == len(b.buf) {
		b.buf = b.buf[:0]
		b.off = 0
	}
	b.buf = append(b.buf, p...)
}

// Next returns the next complete line without its delimiter. The returned
// slice is only valid until the next call to Write or Next.
func (b *Buffer) Next() ([]byte, bool) {
	i := bytes.IndexByte(b.buf[b.off:], Delimiter)
	if i < 0 {
		b.compact()
		return nil, false
	}
	line := b.buf[b.off : b.off+i]
	b.off += i + 1
	return line, true
}

// Len reports how many buffered bytes are waiting for a delimiter.
func (b *Buffer) Len() int {
	return len(b.buf) - b.off
}

func (b *Buffer) compact() {
	if b.off == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.off:])
	b.buf = b.buf[:n]
	b.off = 0
}
