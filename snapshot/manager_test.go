package snapshot

import (
	"testing"

	"github.com/minivm/cello/arena"
	"github.com/minivm/cello/flash"
	"github.com/stretchr/testify/require"
)

func testLayout() Layout {
	return Layout{
		RegionStart:   1024,
		MagicLocation: 2044,
		Magic:         DefaultMagic,
	}
}

func testDevice(t *testing.T) *flash.Mem {
	t.Helper()
	dev, err := flash.NewMem(4096, 256)
	require.NoError(t, err)

	return dev
}

// populatedArena builds a small heap with every structural feature the
// image format carries: containers, string chains, a function, free cells.
func populatedArena(t *testing.T, capacity int) *arena.Arena {
	t.Helper()
	a, err := arena.New(capacity)
	require.NoError(t, err)

	obj, err := a.NewObject()
	require.NoError(t, err)
	name, err := a.NewString("a string that spans multiple continuation cells")
	require.NoError(t, err)
	require.NoError(t, a.ObjectSet(obj, "name", name))

	arr, err := a.NewArray()
	require.NoError(t, err)
	for i := int64(0); i < 3; i++ {
		e, eerr := a.NewInt(i * 100)
		require.NoError(t, eerr)
		require.NoError(t, a.ArrayPush(arr, e))
	}
	require.NoError(t, a.ObjectSet(obj, "items", arr))

	fn, err := a.NewFunction([]string{"x"}, "return x*2;")
	require.NoError(t, err)
	require.NoError(t, a.ObjectSet(obj, "twice", fn))

	return a
}

func TestNewManager_LayoutValidation(t *testing.T) {
	dev := testDevice(t)

	_, err := NewManager(dev, Layout{RegionStart: 2, MagicLocation: 100})
	require.Error(t, err)

	_, err = NewManager(dev, Layout{RegionStart: 100, MagicLocation: 104})
	require.Error(t, err)

	_, err = NewManager(dev, testLayout())
	require.NoError(t, err)
}

func TestSave_LoadRoundTrip(t *testing.T) {
	dev := testDevice(t)
	m, err := NewManager(dev, testLayout())
	require.NoError(t, err)

	a := populatedArena(t, 32)
	img := a.Image()

	require.False(t, m.Contains())

	stats, err := m.Save(a)
	require.NoError(t, err)
	require.Equal(t, len(img), stats.ImageSize)
	require.Greater(t, stats.CompressedSize, 0)
	require.Less(t, stats.CompressedSize, stats.ImageSize)
	require.Zero(t, stats.Errors, "verification must find no mismatches")
	require.True(t, m.Contains())

	// Load into a freshly reset arena of identical capacity.
	b, err := arena.New(32)
	require.NoError(t, err)
	require.NoError(t, m.Load(b))
	require.Equal(t, img, b.Image(), "loaded image must be byte-exact")
}

func TestSave_ErasesEveryRegionPage(t *testing.T) {
	dev := testDevice(t)
	m, err := NewManager(dev, testLayout())
	require.NoError(t, err)

	a := populatedArena(t, 32)
	_, err = m.Save(a)
	require.NoError(t, err)

	// Region [1024, 2048) spans four 256-byte pages.
	require.Equal(t, 4, dev.Erases)
}

func TestSave_Twice(t *testing.T) {
	dev := testDevice(t)
	m, err := NewManager(dev, testLayout())
	require.NoError(t, err)

	a := populatedArena(t, 32)
	_, err = m.Save(a)
	require.NoError(t, err)

	// A second save must survive the write-only-clears-bits medium, which
	// only works if the erase pass covers the whole region plus marker.
	v, err := a.NewInt(1234)
	require.NoError(t, err)
	defer a.Unref(v)

	stats, err := m.Save(a)
	require.NoError(t, err)
	require.Zero(t, stats.Errors)

	b, err := arena.New(32)
	require.NoError(t, err)
	require.NoError(t, m.Load(b))
	require.Equal(t, a.Image(), b.Image())
}

func TestLoad_NoSnapshot(t *testing.T) {
	dev := testDevice(t)
	m, err := NewManager(dev, testLayout())
	require.NoError(t, err)

	a := populatedArena(t, 16)
	before := a.Image()

	err = m.Load(a)
	require.ErrorIs(t, err, ErrNoSnapshot)
	require.Equal(t, before, a.Image(), "failed load must leave the arena unmodified")
}

func TestSave_Oversize(t *testing.T) {
	dev := testDevice(t)
	// 64 bytes of stream space cannot hold a 32-cell image.
	m, err := NewManager(dev, Layout{RegionStart: 1024, MagicLocation: 1100, Magic: DefaultMagic})
	require.NoError(t, err)

	a := populatedArena(t, 32)
	_, err = m.Save(a)
	require.ErrorIs(t, err, ErrTooBig)

	// The marker was never written: the region reads as invalid.
	require.False(t, m.Contains())

	b, err := arena.New(32)
	require.NoError(t, err)
	before := b.Image()
	require.ErrorIs(t, m.Load(b), ErrNoSnapshot)
	require.Equal(t, before, b.Image())
}

func TestLoad_CorruptedStream(t *testing.T) {
	dev := testDevice(t)
	layout := testLayout()
	m, err := NewManager(dev, layout)
	require.NoError(t, err)

	a := populatedArena(t, 32)
	_, err = m.Save(a)
	require.NoError(t, err)

	// Clear bits in the middle of the stream; programming without erase
	// can only corrupt, which is exactly the failure mode being modeled.
	require.NoError(t, dev.Write([]byte{0x00, 0x00, 0x00, 0x00}, layout.RegionStart+16))

	b, err := arena.New(32)
	require.NoError(t, err)
	before := b.Image()

	err = m.Load(b)
	require.ErrorIs(t, err, ErrCorrupted)
	require.Equal(t, before, b.Image(), "corrupted load must not touch the arena")
}

func TestLoad_CapacityMismatch(t *testing.T) {
	dev := testDevice(t)
	m, err := NewManager(dev, testLayout())
	require.NoError(t, err)

	a := populatedArena(t, 32)
	_, err = m.Save(a)
	require.NoError(t, err)

	// The embedded path does not resize: a 16-cell arena cannot accept a
	// 32-cell image.
	b, err := arena.New(16)
	require.NoError(t, err)
	require.Error(t, m.Load(b))
}

func TestSave_Progress(t *testing.T) {
	dev, err := flash.NewMem(16384, 256)
	require.NoError(t, err)

	var calls []int
	m, err := NewManager(dev, Layout{RegionStart: 1024, MagicLocation: 8188, Magic: DefaultMagic},
		WithProgress(func(written int) {
			calls = append(calls, written)
		}))
	require.NoError(t, err)

	// Enough literal string payload that the stream is guaranteed to pass
	// the 1KiB progress mark.
	a := populatedArena(t, 256)
	for i := 0; i < 50; i++ {
		_, serr := a.NewString("incompressible padding string")
		require.NoError(t, serr)
	}

	_, err = m.Save(a)
	require.NoError(t, err)
	require.NotEmpty(t, calls)
	require.Equal(t, 1024, calls[0])
}

func TestSave_VerifyDisabled(t *testing.T) {
	dev := testDevice(t)
	m, err := NewManager(dev, testLayout(), WithVerify(false))
	require.NoError(t, err)

	a := populatedArena(t, 32)
	stats, err := m.Save(a)
	require.NoError(t, err)
	require.Zero(t, stats.Errors)
}
