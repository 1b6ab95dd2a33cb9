// Package snapshot persists arena images: it compresses the heap's byte
// image through the run-length codec and writes it to erase-before-write
// flash (Manager) or to a host file (SaveFile/LoadFile).
//
// The embedded region layout is, in ascending addresses:
//
//	RegionStart+0   end-address control word (one past the last stream byte)
//	RegionStart+4   xxHash64 digest of the uncompressed image (2 words)
//	RegionStart+12  RLE stream, written as aligned whole words
//	...
//	MagicLocation   validity marker word
//
// Save erases the region page by page, streams the compressed image, and
// only then writes the control words, the marker last: the region appears
// atomically valid only after everything has landed. An interrupted save
// leaves the region erased-but-unmarked, which reads back as "no snapshot".
//
// Load verifies the marker, decodes into scratch, and checks both the
// decoded length and the stored digest before touching the arena, so a
// corrupted stream never partially overwrites live state.
package snapshot

import (
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/minivm/cello/arena"
	"github.com/minivm/cello/compress"
	"github.com/minivm/cello/endian"
	"github.com/minivm/cello/flash"
	"github.com/minivm/cello/internal/options"
	"github.com/minivm/cello/internal/pool"
)

var (
	// ErrNoSnapshot is returned by Load when the region carries no valid
	// snapshot. The arena is left unchanged.
	ErrNoSnapshot = errors.New("snapshot: no snapshot in region")
	// ErrTooBig is returned by Save when the compressed image would cross
	// the region bound. The region is left erased and unmarked.
	ErrTooBig = errors.New("snapshot: compressed image exceeds region")
	// ErrCorrupted is returned by Load when the stream's natural end, the
	// recorded end-address, or the stored digest disagree.
	ErrCorrupted = errors.New("snapshot: corrupted stream")
)

// headerSize covers the end-address word plus the 64-bit image digest.
const headerSize = 12

// DefaultMagic is the validity marker value.
const DefaultMagic uint32 = 0xDEADBEEF

// Layout describes the reserved snapshot region on the medium.
type Layout struct {
	// RegionStart is the first word of the reserved area; it holds the
	// region header.
	RegionStart uint32
	// MagicLocation holds the validity marker and bounds the area: the
	// stream may grow up to, but never into, this word.
	MagicLocation uint32
	// Magic is the marker value denoting a valid snapshot.
	Magic uint32
}

func (l Layout) validate() error {
	if l.RegionStart%flash.WordSize != 0 || l.MagicLocation%flash.WordSize != 0 {
		return fmt.Errorf("snapshot: layout addresses must be word-aligned (%#x, %#x)",
			l.RegionStart, l.MagicLocation)
	}
	if l.RegionStart+headerSize >= l.MagicLocation {
		return fmt.Errorf("snapshot: region [%#x, %#x) too small for header",
			l.RegionStart, l.MagicLocation)
	}

	return nil
}

func (l Layout) dataStart() uint32 {
	return l.RegionStart + headerSize
}

// SaveStats reports the outcome of a save.
type SaveStats struct {
	// ImageSize is the uncompressed arena image size in bytes.
	ImageSize int
	// CompressedSize is the stream size actually written, padding excluded.
	CompressedSize int
	// Errors counts verification mismatches, plus one if the marker did
	// not read back. Nonzero is an anomaly, not a failure: the data stays
	// in place.
	Errors int
}

// Manager orchestrates snapshot save and load over a flash device.
//
// A Manager assumes exclusive access to both the device and the arena for
// the duration of each call; there is no internal locking.
type Manager struct {
	dev      flash.Device
	layout   Layout
	verify   bool
	progress func(written int)
	engine   endian.EndianEngine
}

// Option configures a Manager.
type Option = options.Option[*Manager]

// WithVerify enables or disables the post-save verification pass.
// Verification is on by default.
func WithVerify(verify bool) Option {
	return options.NoError(func(m *Manager) {
		m.verify = verify
	})
}

// WithProgress installs a callback invoked after every KiB streamed during
// save, with the running byte count. It replaces a console progress
// indicator on embedded targets.
func WithProgress(fn func(written int)) Option {
	return options.NoError(func(m *Manager) {
		m.progress = fn
	})
}

// NewManager creates a snapshot manager for the given device and region
// layout.
func NewManager(dev flash.Device, layout Layout, opts ...Option) (*Manager, error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		dev:    dev,
		layout: layout,
		verify: true,
		engine: endian.GetLittleEndianEngine(),
	}
	if err := options.Apply(m, opts...); err != nil {
		return nil, err
	}

	return m, nil
}

// Contains reports whether the region holds a valid snapshot, by checking
// the marker word alone.
func (m *Manager) Contains() bool {
	var word [flash.WordSize]byte
	if err := m.dev.Read(word[:], m.layout.MagicLocation); err != nil {
		return false
	}

	return m.engine.Uint32(word[:]) == m.layout.Magic
}

// Save erases the region, streams the arena image through the run-length
// codec in aligned word writes, then publishes the control words with the
// validity marker last.
//
// On ErrTooBig the region is left erased and unmarked; a subsequent Load
// reports ErrNoSnapshot. Any snapshot previously in the region is gone
// either way, since erasure precedes the write.
func (m *Manager) Save(a *arena.Arena) (SaveStats, error) {
	img := a.Image()
	stats := SaveStats{ImageSize: len(img)}

	m.eraseRegion()

	w := &wordWriter{
		dev:      m.dev,
		addr:     m.layout.dataStart(),
		limit:    m.layout.MagicLocation,
		progress: m.progress,
	}
	if err := compress.Encode(img, w); err != nil {
		return stats, err
	}
	endOfData := w.addr
	stats.CompressedSize = int(endOfData - m.layout.dataStart())

	// Push the partial trailing word out with zero padding.
	w.pad()

	if w.addr >= w.limit {
		return stats, fmt.Errorf("%w: %d bytes into %d",
			ErrTooBig, stats.CompressedSize, int(m.layout.MagicLocation-m.layout.dataStart()))
	}
	if w.err != nil {
		return stats, w.err
	}

	hdr := make([]byte, headerSize)
	m.engine.PutUint32(hdr, endOfData)
	m.engine.PutUint64(hdr[flash.WordSize:], xxhash.Sum64(img))
	if err := m.dev.Write(hdr, m.layout.RegionStart); err != nil {
		return stats, err
	}

	// The marker write is last: the region only ever reads as valid once
	// both control words have landed.
	var word [flash.WordSize]byte
	m.engine.PutUint32(word[:], m.layout.Magic)
	if err := m.dev.Write(word[:], m.layout.MagicLocation); err != nil {
		return stats, err
	}

	if m.verify {
		stats.Errors = m.verifyImage(img)
	}

	return stats, nil
}

// eraseRegion erases every page overlapping [RegionStart, MagicLocation),
// stopping once coverage reaches the marker word. A missing page stops
// erasure silently; the gap shows up in verification.
func (m *Manager) eraseRegion() {
	start, length, ok := m.dev.PageAt(m.layout.RegionStart)
	if !ok {
		return
	}
	m.dev.ErasePage(start)
	for start+length < m.layout.MagicLocation+flash.WordSize {
		start, length, ok = m.dev.PageAt(start + length)
		if !ok {
			break
		}
		m.dev.ErasePage(start)
	}
}

// verifyImage re-encodes the image, comparing every emitted byte against
// the byte read back from the position it was written, and counts
// mismatches. A marker that does not read back counts as one more error.
func (m *Manager) verifyImage(img []byte) int {
	cmp := &compareWriter{
		dev:  m.dev,
		addr: m.layout.dataStart(),
	}
	_ = compress.Encode(img, cmp)

	mismatches := cmp.mismatches
	if !m.Contains() {
		mismatches++
	}

	return mismatches
}

// Load restores the arena from the region. With no valid marker it returns
// ErrNoSnapshot and performs no further action. The decoded image must
// match both the arena's image size and the stored digest before it is
// installed; otherwise ErrCorrupted is returned and the arena is left in
// its pre-call state.
func (m *Manager) Load(a *arena.Arena) error {
	if !m.Contains() {
		return ErrNoSnapshot
	}

	hdr := make([]byte, headerSize)
	if err := m.dev.Read(hdr, m.layout.RegionStart); err != nil {
		return err
	}
	endOfData := m.engine.Uint32(hdr)
	digest := m.engine.Uint64(hdr[flash.WordSize:])

	if endOfData < m.layout.dataStart() || endOfData >= m.layout.MagicLocation {
		return fmt.Errorf("%w: end address %#x outside region", ErrCorrupted, endOfData)
	}

	scratch := pool.GetImageBuffer()
	defer pool.PutImageBuffer(scratch)

	r := &regionReader{dev: m.dev, addr: m.layout.dataStart(), end: endOfData}
	lw := &boundedWriter{buf: scratch, max: a.ImageSize()}
	if err := compress.Decode(r, lw); err != nil {
		if errors.Is(err, errDecodeOverrun) {
			return fmt.Errorf("%w: stream longer than arena image", ErrCorrupted)
		}

		return err
	}
	if scratch.Len() != a.ImageSize() {
		return fmt.Errorf("%w: decoded %d bytes, arena image is %d",
			ErrCorrupted, scratch.Len(), a.ImageSize())
	}
	if xxhash.Sum64(scratch.Bytes()) != digest {
		return fmt.Errorf("%w: image digest mismatch", ErrCorrupted)
	}

	return a.LoadImage(scratch.Bytes())
}

// wordWriter stages codec output into aligned whole-word device writes,
// preserving the write-only-clears-bits discipline: every word written was
// freshly erased. Bytes past the region bound are dropped while the
// address keeps counting, so the overrun is detected after encoding.
type wordWriter struct {
	dev      flash.Device
	addr     uint32
	limit    uint32
	word     [flash.WordSize]byte
	written  int
	progress func(int)
	err      error
}

func (w *wordWriter) WriteByte(ch byte) error {
	if w.addr < w.limit {
		w.word[w.addr%flash.WordSize] = ch
		if w.addr%flash.WordSize == flash.WordSize-1 {
			if err := w.dev.Write(w.word[:], w.addr&^uint32(flash.WordSize-1)); err != nil && w.err == nil {
				w.err = err
			}
		}
	}
	w.addr++
	w.written++
	if w.progress != nil && w.written%1024 == 0 {
		w.progress(w.written)
	}

	return nil
}

// pad flushes a partial trailing word with zero bytes.
func (w *wordWriter) pad() {
	for i := 0; i < flash.WordSize-1; i++ {
		_ = w.WriteByte(0)
	}
}

// compareWriter consumes codec output by comparing each byte against the
// medium, counting mismatches. Read failures count as mismatches too.
type compareWriter struct {
	dev        flash.Device
	addr       uint32
	mismatches int
}

func (w *compareWriter) WriteByte(ch byte) error {
	var b [1]byte
	if err := w.dev.Read(b[:], w.addr); err != nil || b[0] != ch {
		w.mismatches++
	}
	w.addr++

	return nil
}

// regionReader yields stream bytes from the device until the recorded
// end-address, then reports io.EOF, the codec's end-of-stream sentinel.
type regionReader struct {
	dev  flash.Device
	addr uint32
	end  uint32
}

func (r *regionReader) ReadByte() (byte, error) {
	if r.addr >= r.end {
		return 0, io.EOF
	}
	var b [1]byte
	if err := r.dev.Read(b[:], r.addr); err != nil {
		return 0, err
	}
	r.addr++

	return b[0], nil
}

var errDecodeOverrun = errors.New("snapshot: decode overrun")

// boundedWriter accumulates decoded bytes and refuses to grow past max,
// guarding against a stream whose natural end disagrees with the recorded
// bound.
type boundedWriter struct {
	buf *pool.ByteBuffer
	max int
}

func (w *boundedWriter) WriteByte(ch byte) error {
	if w.buf.Len() >= w.max {
		return errDecodeOverrun
	}

	return w.buf.WriteByte(ch)
}
