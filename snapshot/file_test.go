package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/minivm/cello/arena"
	"github.com/minivm/cello/format"
	"github.com/stretchr/testify/require"
)

func TestSaveFile_LoadFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.img")

	a := populatedArena(t, 32)
	img := a.Image()

	require.NoError(t, SaveFile(a, path))

	// The host path resizes: start from a differently sized arena.
	b, err := arena.New(8)
	require.NoError(t, err)
	require.NoError(t, LoadFile(b, path))

	require.Equal(t, 32, b.Capacity())
	require.Equal(t, img, b.Image())
}

func TestSaveFile_CanonicalLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.img")

	a := populatedArena(t, 16)
	require.NoError(t, SaveFile(a, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	// [4-byte cell count][RLE stream]
	require.Greater(t, len(raw), 4)
	require.Equal(t, []byte{16, 0, 0, 0}, raw[:4])
}

func TestLoadFile_Missing(t *testing.T) {
	a := populatedArena(t, 8)
	before := a.Image()

	err := LoadFile(a, filepath.Join(t.TempDir(), "nope.img"))
	require.ErrorIs(t, err, ErrNoSnapshot)
	require.Equal(t, before, a.Image())
}

func TestLoadFile_CorruptHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.img")
	require.NoError(t, os.WriteFile(path, []byte{1, 2}, 0o644))

	a := populatedArena(t, 8)
	before := a.Image()

	err := LoadFile(a, path)
	require.ErrorIs(t, err, ErrCorrupted)
	require.Equal(t, before, a.Image(), "arena must keep its pre-call state")
}

func TestLoadFile_ZeroCellCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.img")
	require.NoError(t, os.WriteFile(path, []byte{0, 0, 0, 0}, 0o644))

	a := populatedArena(t, 8)
	require.ErrorIs(t, LoadFile(a, path), ErrCorrupted)
}

func TestLoadFile_TruncatedStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.img")

	a := populatedArena(t, 16)
	require.NoError(t, SaveFile(a, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw[:len(raw)/2], 0o644))

	b, err := arena.New(16)
	require.NoError(t, err)
	before := b.Image()

	err = LoadFile(b, path)
	require.ErrorIs(t, err, ErrCorrupted)
	require.Equal(t, before, b.Image())
}

func TestSaveFile_AlternateCodecs(t *testing.T) {
	for _, compression := range []format.CompressionType{
		format.CompressionNone,
		format.CompressionS2,
		format.CompressionLZ4,
		format.CompressionZstd,
	} {
		t.Run(compression.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "heap.img")

			a := populatedArena(t, 32)
			require.NoError(t, SaveFile(a, path, WithFileCompression(compression)))

			b, err := arena.New(4)
			require.NoError(t, err)
			require.NoError(t, LoadFile(b, path, WithFileCompression(compression)))
			require.Equal(t, a.Image(), b.Image())
		})
	}
}

func TestLoadFile_WrongCodec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.img")

	a := populatedArena(t, 16)
	require.NoError(t, SaveFile(a, path, WithFileCompression(format.CompressionS2)))

	// Reading an S2 payload as the default RLE stream cannot reproduce the
	// original image; almost always the decoded length is off and the load
	// fails outright.
	b, err := arena.New(16)
	require.NoError(t, err)
	if lerr := LoadFile(b, path); lerr == nil {
		require.NotEqual(t, a.Image(), b.Image())
	}
}

func TestWithFileCompression_Invalid(t *testing.T) {
	a := populatedArena(t, 8)
	err := SaveFile(a, filepath.Join(t.TempDir(), "x"), WithFileCompression(format.CompressionType(0xEE)))
	require.Error(t, err)
}
