// Package arena implements the interpreter heap: a fixed-capacity pool of
// reference-counted cells addressed by integer handles.
//
// The pool is the unit of persistence. Its entire backing store marshals to
// a byte-exact image (Image/LoadImage) which the snapshot package compresses
// and writes to flash or to a host file. Nothing outside the pool may hold a
// cell; all structure is expressed through handles.
//
// The arena is single-threaded by contract: reference counts are not atomic
// and no operation takes a lock. Callers on multi-threaded hosts must
// serialize all access externally.
package arena

import (
	"errors"
	"fmt"

	"github.com/minivm/cello/endian"
)

var (
	// ErrExhausted is returned when the pool has no free cells left.
	ErrExhausted = errors.New("arena: out of cells")
	// ErrBadHandle is returned when a handle is zero or out of range.
	ErrBadHandle = errors.New("arena: invalid handle")
	// ErrImageSize is returned when an image's size does not match the pool.
	ErrImageSize = errors.New("arena: image size mismatch")
)

// Arena is a contiguous pool of cells forming the interpreter's entire heap.
type Arena struct {
	cells  []Cell
	free   Handle
	engine endian.EndianEngine
}

// New creates an arena with the given cell capacity. All cells start on the
// free list.
func New(capacity int) (*Arena, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("arena: capacity must be at least 1, got %d", capacity)
	}

	a := &Arena{
		cells:  make([]Cell, capacity),
		engine: endian.GetLittleEndianEngine(),
	}
	a.Reset()

	return a, nil
}

// Capacity returns the number of cells in the pool. This is the used-count
// that determines snapshot size: the image always covers the whole pool,
// free cells included.
func (a *Arena) Capacity() int {
	return len(a.cells)
}

// FreeCount returns the number of cells currently on the free list.
func (a *Arena) FreeCount() int {
	n := 0
	for h := a.free; h != None; h = a.cell(h).NextSibling {
		n++
	}

	return n
}

// Reset returns every cell to the free list, discarding all live data.
func (a *Arena) Reset() {
	for i := range a.cells {
		a.cells[i] = Cell{Kind: KindFree}
		if i+1 < len(a.cells) {
			a.cells[i].NextSibling = Handle(i + 2)
		}
	}
	a.free = 1
}

// Resize replaces the pool with one of the given capacity. All live data is
// discarded; the snapshot loader uses this before installing a host image
// that records its own cell count.
func (a *Arena) Resize(capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("arena: capacity must be at least 1, got %d", capacity)
	}
	a.cells = make([]Cell, capacity)
	a.Reset()

	return nil
}

// Valid reports whether h refers to a cell inside the pool.
func (a *Arena) Valid(h Handle) bool {
	return h != None && int(h) <= len(a.cells)
}

// cell returns the cell for h. The handle must be valid; traversal code
// operates on handles the arena itself produced.
func (a *Arena) cell(h Handle) *Cell {
	if !a.Valid(h) {
		panic(fmt.Sprintf("arena: invalid handle %d (capacity %d)", h, len(a.cells)))
	}

	return &a.cells[h-1]
}

// KindOf returns the kind tag of the cell at h, or KindFree for None.
func (a *Arena) KindOf(h Handle) Kind {
	if h == None {
		return KindFree
	}

	return a.cell(h).Kind
}

// RefCount returns the current reference count of the cell at h.
func (a *Arena) RefCount(h Handle) int {
	return int(a.cell(h).Refs)
}

// alloc takes a cell off the free list. The returned cell carries one
// reference owned by the caller.
func (a *Arena) alloc(kind Kind) (Handle, error) {
	h := a.free
	if h == None {
		return None, ErrExhausted
	}
	c := a.cell(h)
	a.free = c.NextSibling
	*c = Cell{Kind: kind, Refs: 1}

	return h, nil
}

// Ref increments the reference count of h and returns h. Ref of None is a
// no-op, which lets callers forward optional handles without checks.
func (a *Arena) Ref(h Handle) Handle {
	if h != None {
		a.cell(h).Refs++
	}

	return h
}

// Unref decrements the reference count of h, releasing the cell (and every
// cell it owns) back to the free list when the count reaches zero. Unref of
// None is a no-op.
func (a *Arena) Unref(h Handle) {
	if h == None {
		return
	}
	c := a.cell(h)
	if c.Refs == 0 {
		panic(fmt.Sprintf("arena: unref of dead cell %d", h))
	}
	c.Refs--
	if c.Refs == 0 {
		a.release(h)
	}
}

// release returns h to the free list and drops the references it owns:
// the string continuation chain for string-like cells, and the child list
// for everything else. A name cell's value hangs off FirstChild, so the
// child walk covers it too.
func (a *Arena) release(h Handle) {
	c := a.cell(h)

	if c.isStringLike() {
		if c.LastChild != None {
			a.Unref(c.LastChild)
		}
	}

	child := c.FirstChild
	for child != None {
		next := a.cell(child).NextSibling
		a.Unref(child)
		child = next
	}

	*c = Cell{Kind: KindFree, NextSibling: a.free}
	a.free = h
}

// ImageSize returns the size in bytes of the arena's snapshot image.
func (a *Arena) ImageSize() int {
	return len(a.cells) * CellSize
}

// Image marshals the whole pool, starting at handle 1, into a fresh byte
// slice. The image is byte-exact: loading it back reproduces the pool
// including free-list links and reference counts.
func (a *Arena) Image() []byte {
	img := make([]byte, a.ImageSize())
	a.ImageInto(img)

	return img
}

// ImageInto marshals the pool into dst, which must be exactly ImageSize
// bytes long.
func (a *Arena) ImageInto(dst []byte) {
	if len(dst) != a.ImageSize() {
		panic(fmt.Sprintf("arena: image buffer is %d bytes, need %d", len(dst), a.ImageSize()))
	}
	for i := range a.cells {
		a.cells[i].marshal(dst[i*CellSize:], a.engine)
	}
}

// LoadImage replaces the pool's contents with the given image, which must
// be exactly ImageSize bytes. The free-list head is recovered from the
// image's own links so that a subsequent Image call is byte-identical.
func (a *Arena) LoadImage(img []byte) error {
	if len(img) != a.ImageSize() {
		return fmt.Errorf("%w: got %d bytes, need %d", ErrImageSize, len(img), a.ImageSize())
	}
	for i := range a.cells {
		a.cells[i].unmarshal(img[i*CellSize:], a.engine)
	}
	a.recoverFreeList()

	return nil
}

// recoverFreeList locates the head of the free chain recorded in the cell
// links: the free cell no other free cell points to. The links themselves
// are left untouched to preserve the byte-exact image contract.
func (a *Arena) recoverFreeList() {
	pointed := make([]bool, len(a.cells)+1)
	for i := range a.cells {
		c := &a.cells[i]
		if c.Kind == KindFree && c.NextSibling != None && int(c.NextSibling) <= len(a.cells) {
			pointed[c.NextSibling] = true
		}
	}

	a.free = None
	for i := range a.cells {
		h := Handle(i + 1)
		if a.cells[i].Kind == KindFree && !pointed[h] {
			a.free = h
			break
		}
	}
}
