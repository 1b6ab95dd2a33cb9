package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/minivm/cello/arena"
	"github.com/minivm/cello/compress"
	"github.com/minivm/cello/endian"
	"github.com/minivm/cello/format"
	"github.com/minivm/cello/internal/options"
	"github.com/minivm/cello/internal/pool"
)

// maxFileCells bounds the cell count a snapshot file may claim, as a
// sanity check against garbage headers before any allocation happens.
const maxFileCells = 1 << 24

// fileConfig holds host-file snapshot settings.
type fileConfig struct {
	compression format.CompressionType
	engine      endian.EndianEngine
}

// FileOption configures host-file save and load.
type FileOption = options.Option[*fileConfig]

// WithFileCompression selects the codec for the file payload. The default
// is the native RLE codec, which produces the canonical
// [4-byte cell count][RLE stream] layout. Other codecs keep the count
// prefix but encode the payload as a single block; a file written with a
// non-default codec must be loaded with the same option.
func WithFileCompression(compression format.CompressionType) FileOption {
	return options.New(func(c *fileConfig) error {
		if _, err := compress.CreateCodec(compression, "snapshot file"); err != nil {
			return err
		}
		c.compression = compression

		return nil
	})
}

func newFileConfig(opts ...FileOption) (*fileConfig, error) {
	cfg := &fileConfig{
		compression: format.CompressionRLE,
		engine:      endian.GetLittleEndianEngine(),
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveFile writes the arena image to path as a host snapshot:
// a 4-byte little-endian cell count followed by the compressed stream.
// Unlike the embedded path there is no end-address bound; the count prefix
// alone sizes the load.
func SaveFile(a *arena.Arena, path string, opts ...FileOption) error {
	cfg, err := newFileConfig(opts...)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var count [4]byte
	cfg.engine.PutUint32(count[:], uint32(a.Capacity()))
	if _, err := w.Write(count[:]); err != nil {
		return err
	}

	img := a.Image()
	if cfg.compression == format.CompressionRLE {
		// The canonical layout streams straight through the codec.
		if err := compress.Encode(img, w); err != nil {
			return err
		}
	} else {
		codec, cerr := compress.CreateCodec(cfg.compression, "snapshot file")
		if cerr != nil {
			return cerr
		}
		payload, cerr := codec.Compress(img)
		if cerr != nil {
			return cerr
		}
		if _, werr := w.Write(payload); werr != nil {
			return werr
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}

	return f.Close()
}

// LoadFile restores an arena from a host snapshot file. The arena is
// resized to the recorded cell count, so a snapshot may be loaded into an
// arena built with a different capacity. On any error, including a
// missing file (ErrNoSnapshot) or a stream/count mismatch (ErrCorrupted),
// the arena is left in its pre-call state.
func LoadFile(a *arena.Arena, path string, opts ...FileOption) error {
	cfg, err := newFileConfig(opts...)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNoSnapshot, path)
		}

		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var count [4]byte
	if _, err := io.ReadFull(r, count[:]); err != nil {
		return fmt.Errorf("%w: short header: %v", ErrCorrupted, err)
	}
	cells := cfg.engine.Uint32(count[:])
	if cells == 0 || cells > maxFileCells {
		return fmt.Errorf("%w: implausible cell count %d", ErrCorrupted, cells)
	}
	expected := int(cells) * arena.CellSize

	scratch := pool.GetImageBuffer()
	defer pool.PutImageBuffer(scratch)

	if cfg.compression == format.CompressionRLE {
		lw := &boundedWriter{buf: scratch, max: expected}
		if derr := compress.Decode(r, lw); derr != nil {
			if errors.Is(derr, errDecodeOverrun) {
				return fmt.Errorf("%w: stream longer than recorded cell count", ErrCorrupted)
			}

			return derr
		}
	} else {
		codec, cerr := compress.CreateCodec(cfg.compression, "snapshot file")
		if cerr != nil {
			return cerr
		}
		payload, rerr := io.ReadAll(r)
		if rerr != nil {
			return rerr
		}
		img, derr := codec.Decompress(payload)
		if derr != nil {
			return fmt.Errorf("%w: %v", ErrCorrupted, derr)
		}
		scratch.MustWrite(img)
	}

	if scratch.Len() != expected {
		return fmt.Errorf("%w: decoded %d bytes, cell count implies %d",
			ErrCorrupted, scratch.Len(), expected)
	}

	if err := a.Resize(int(cells)); err != nil {
		return err
	}

	return a.LoadImage(scratch.Bytes())
}
