package compress

import (
	"bytes"
	"errors"
	"io"
)

// MaxRun is the largest number of extra repeats a single count byte can
// describe. Longer runs are emitted as multiple count-bounded segments.
const MaxRun = 255

// Encode run-length encodes data into w, one byte at a time.
//
// Every input byte is emitted literally. When an emitted byte equals the
// immediately preceding literal byte, up to MaxRun further repeats are
// consumed and their count is emitted as a single control byte, after which
// the run-matching state is cleared. Input with no adjacent equal bytes
// therefore passes through unchanged, and empty input emits nothing.
//
// The encoder holds O(1) state and never looks ahead further than the run
// it is currently consuming, so w may be a flash word-staging writer.
func Encode(data []byte, w io.ByteWriter) error {
	last := -1 // no predecessor: the first byte can never open a run
	for len(data) > 0 {
		ch := data[0]
		data = data[1:]
		if err := w.WriteByte(ch); err != nil {
			return err
		}
		if int(ch) == last {
			cnt := 0
			for len(data) > 0 && data[0] == ch && cnt < MaxRun {
				data = data[1:]
				cnt++
			}
			if err := w.WriteByte(byte(cnt)); err != nil {
				return err
			}
			last = -1
			continue
		}
		last = int(ch)
	}

	return nil
}

// Decode mirrors Encode: it copies literal bytes from r to w, and whenever
// a decoded byte equals the previous decoded byte it reads one count byte
// and emits that many additional copies. The stream ends when r reports
// io.EOF; any other read error is returned as-is.
func Decode(r io.ByteReader, w io.ByteWriter) error {
	last := -1
	for {
		ch, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}
		if err := w.WriteByte(ch); err != nil {
			return err
		}
		if int(ch) == last {
			cnt, err := r.ReadByte()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}

				return err
			}
			for i := 0; i < int(cnt); i++ {
				if err := w.WriteByte(ch); err != nil {
					return err
				}
			}
			last = -1
			continue
		}
		last = int(ch)
	}
}

// RLECompressor adapts the streaming run-length coder to the Codec
// interface for whole-payload use.
type RLECompressor struct{}

var _ Codec = (*RLECompressor)(nil)

// NewRLECompressor creates a new run-length codec.
func NewRLECompressor() RLECompressor {
	return RLECompressor{}
}

// Compress run-length encodes the payload.
func (c RLECompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	buf.Grow(len(data))
	if err := Encode(data, &buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decompress restores a run-length encoded payload.
func (c RLECompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	buf.Grow(len(data))
	if err := Decode(bytes.NewReader(data), &buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
