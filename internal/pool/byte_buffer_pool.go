// Package pool provides pooled byte buffers for the serializer output and
// the snapshot decode scratch space, so repeated save/load/stringify cycles
// do not churn the allocator.
package pool

import (
	"sync"
)

const (
	// TextBufferDefaultSize is the initial capacity of serializer output buffers.
	TextBufferDefaultSize = 1024 // 1KiB
	// TextBufferMaxThreshold is the largest serializer buffer returned to the pool.
	TextBufferMaxThreshold = 1024 * 64 // 64KiB

	// ImageBufferDefaultSize is the initial capacity of snapshot scratch buffers.
	ImageBufferDefaultSize = 1024 * 16 // 16KiB
	// ImageBufferMaxThreshold is the largest scratch buffer returned to the pool.
	ImageBufferMaxThreshold = 1024 * 512 // 512KiB
)

// ByteBuffer is a minimal growable byte buffer backed by a plain slice.
type ByteBuffer struct {
	// B is the underlying byte slice.
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the specified initial capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{
		B: make([]byte, 0, defaultSize),
	}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// String returns the buffer contents as a string.
func (bb *ByteBuffer) String() string {
	return string(bb.B)
}

// Reset empties the buffer but retains its allocated memory for reuse.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Len returns the length of the buffer.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

// Cap returns the capacity of the buffer.
func (bb *ByteBuffer) Cap() int {
	return cap(bb.B)
}

// Grow ensures the buffer has room for at least n more bytes.
func (bb *ByteBuffer) Grow(n int) {
	if cap(bb.B)-len(bb.B) >= n {
		return
	}
	grown := make([]byte, len(bb.B), len(bb.B)+n)
	copy(grown, bb.B)
	bb.B = grown
}

// MustWrite appends data to the buffer, growing it if necessary.
func (bb *ByteBuffer) MustWrite(data []byte) {
	bb.B = append(bb.B, data...)
}

// WriteByte appends a single byte. It never fails; the error return
// satisfies io.ByteWriter.
func (bb *ByteBuffer) WriteByte(c byte) error {
	bb.B = append(bb.B, c)
	return nil
}

// WriteString appends a string to the buffer.
func (bb *ByteBuffer) WriteString(s string) {
	bb.B = append(bb.B, s...)
}

var textBufferPool = sync.Pool{
	New: func() any {
		return NewByteBuffer(TextBufferDefaultSize)
	},
}

var imageBufferPool = sync.Pool{
	New: func() any {
		return NewByteBuffer(ImageBufferDefaultSize)
	},
}

// GetTextBuffer returns a reset buffer suitable for serializer output.
func GetTextBuffer() *ByteBuffer {
	bb, _ := textBufferPool.Get().(*ByteBuffer)
	bb.Reset()

	return bb
}

// PutTextBuffer returns a serializer buffer to the pool. Oversized buffers
// are dropped so a single huge graph does not pin memory forever.
func PutTextBuffer(bb *ByteBuffer) {
	if bb == nil || bb.Cap() > TextBufferMaxThreshold {
		return
	}
	textBufferPool.Put(bb)
}

// GetImageBuffer returns a reset buffer suitable for staging a decoded
// arena image.
func GetImageBuffer() *ByteBuffer {
	bb, _ := imageBufferPool.Get().(*ByteBuffer)
	bb.Reset()

	return bb
}

// PutImageBuffer returns an image scratch buffer to the pool.
func PutImageBuffer(bb *ByteBuffer) {
	if bb == nil || bb.Cap() > ImageBufferMaxThreshold {
		return
	}
	imageBufferPool.Put(bb)
}
