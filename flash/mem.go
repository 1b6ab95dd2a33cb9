package flash

import "fmt"

// Mem is an in-memory Device with faithful flash semantics: erase sets a
// page to 0xFF and programming can only clear bits (a write ANDs into
// whatever the cells currently hold). Writing to a non-erased word
// therefore corrupts data exactly the way real hardware would, which is
// what makes it a useful stand-in for save/verify tests.
type Mem struct {
	data     []byte
	pageSize uint32

	// Erases counts ErasePage calls; tests use it to assert page-by-page
	// erase coverage.
	Erases int
}

// NewMem creates a simulated flash of size bytes with the given erase-page
// size. All cells start erased.
func NewMem(size, pageSize uint32) (*Mem, error) {
	if pageSize == 0 || size == 0 || size%pageSize != 0 {
		return nil, fmt.Errorf("flash: size %d not a multiple of page size %d", size, pageSize)
	}
	m := &Mem{
		data:     make([]byte, size),
		pageSize: pageSize,
	}
	for i := range m.data {
		m.data[i] = 0xFF
	}

	return m, nil
}

// Size returns the medium size in bytes.
func (m *Mem) Size() uint32 {
	return uint32(len(m.data))
}

// PageAt returns the erase page containing addr.
func (m *Mem) PageAt(addr uint32) (uint32, uint32, bool) {
	if addr >= m.Size() {
		return 0, 0, false
	}
	start := addr / m.pageSize * m.pageSize

	return start, m.pageSize, true
}

// ErasePage resets the page starting at pageStart to all-ones. Addresses
// outside the medium are ignored, as on hardware with unmapped ranges.
func (m *Mem) ErasePage(pageStart uint32) {
	start, length, ok := m.PageAt(pageStart)
	if !ok {
		return
	}
	for i := start; i < start+length; i++ {
		m.data[i] = 0xFF
	}
	m.Erases++
}

// Write programs data at addr, clearing bits only.
func (m *Mem) Write(data []byte, addr uint32) error {
	if uint64(addr)+uint64(len(data)) > uint64(m.Size()) {
		return fmt.Errorf("%w: write of %d bytes at %#x", ErrBounds, len(data), addr)
	}
	for i, b := range data {
		m.data[addr+uint32(i)] &= b
	}

	return nil
}

// Read copies len(buf) bytes starting at addr into buf.
func (m *Mem) Read(buf []byte, addr uint32) error {
	if uint64(addr)+uint64(len(buf)) > uint64(m.Size()) {
		return fmt.Errorf("%w: read of %d bytes at %#x", ErrBounds, len(buf), addr)
	}
	copy(buf, m.data[addr:])

	return nil
}
