// Package endian provides byte order utilities for binary encoding and decoding.
//
// It combines the ByteOrder and AppendByteOrder interfaces from Go's standard
// encoding/binary package into a single EndianEngine interface, which is what
// the arena image marshaller and the snapshot region header use for all
// multi-byte fields.
//
// Cell images and snapshot control words are always little-endian, matching
// the word layout of the flash medium the snapshot format was designed for.
// The big-endian engine exists for diagnostics and interoperability tests.
package endian

import (
	"encoding/binary"
	"unsafe"
)

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary
// into a single interface for byte order operations.
//
// It is satisfied by binary.LittleEndian and binary.BigEndian, so any code
// written against the standard library interfaces works unchanged.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine used by the cell
// image and snapshot formats.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}

// CheckEndianness uses a fixed integer value to determine the host's byte order.
func CheckEndianness() binary.ByteOrder {
	// 0x0100 is 256. Little-endian hosts place the LSB (0x00) first,
	// big-endian hosts the MSB (0x01).
	var i uint16 = 0x0100

	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 0x01 {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// IsNativeLittleEndian reports whether the host is little-endian.
func IsNativeLittleEndian() bool {
	return CheckEndianness() == binary.LittleEndian
}
