// Package flash defines the block-storage contract the snapshot manager
// writes through: word-addressable, erase-before-write storage with page
// geometry, matching on-chip flash controllers.
//
// The package does not drive hardware. It specifies the Device interface a
// port must implement, provides the checked write helper that enforces the
// medium's alignment discipline, and ships a memory-backed simulator (Mem)
// with faithful erase/program semantics for tests and host use.
package flash

import (
	"errors"
	"fmt"
)

var (
	// ErrUnaligned is returned when a write's address or length is not a
	// word multiple.
	ErrUnaligned = errors.New("flash: data and address must be multiples of 4")
	// ErrScratch is returned when a write is too large for the staging
	// scratch space.
	ErrScratch = errors.New("flash: not enough scratch space to stage write")
	// ErrBounds is returned when an access falls outside the medium.
	ErrBounds = errors.New("flash: access out of range")
)

// WordSize is the programming granularity of the medium in bytes.
const WordSize = 4

// MaxStage is the most bytes a single checked write may stage at once.
const MaxStage = 4096

// Device is the raw storage backend consumed by the snapshot manager.
//
// Devices are erase-before-write: programming can only clear bits, so a
// word must be freshly erased before it is written. ErasePage resets a
// whole page to the erased state. None of the methods are safe for
// concurrent use; the snapshot manager serializes all access.
type Device interface {
	// PageAt returns the start and length of the erase page containing
	// addr. ok is false when no page exists at that address.
	PageAt(addr uint32) (pageStart, pageLength uint32, ok bool)

	// ErasePage erases the page starting at pageStart.
	ErasePage(pageStart uint32)

	// Write programs data at addr. For word-addressable media addr must be
	// word-aligned; the snapshot manager only issues aligned whole-word
	// writes.
	Write(data []byte, addr uint32) error

	// Read copies len(buf) bytes starting at addr into buf. Reads have no
	// alignment constraints.
	Read(buf []byte, addr uint32) error
}

// WriteChecked validates and performs a caller-supplied write: the address
// and length must be word multiples, and the data must fit the staging
// scratch space. On any validation failure no partial write occurs.
func WriteChecked(dev Device, data []byte, addr uint32) error {
	if addr%WordSize != 0 || len(data)%WordSize != 0 {
		return ErrUnaligned
	}
	if len(data) > MaxStage {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrScratch, len(data), MaxStage)
	}

	return dev.Write(data, addr)
}
