package compress

import (
	"bytes"
	"testing"

	"github.com/minivm/cello/format"
	"github.com/stretchr/testify/require"
)

// snapshot-like payload: long zero runs (free cells) with scattered structure.
func testPayload() []byte {
	payload := make([]byte, 8192)
	for i := 0; i < len(payload); i += 96 {
		payload[i] = byte(i >> 5)
		payload[i+1] = 1
		payload[i+4] = byte(i)
	}

	return payload
}

func TestCreateCodec(t *testing.T) {
	tests := []struct {
		compression format.CompressionType
		wantErr     bool
	}{
		{format.CompressionNone, false},
		{format.CompressionRLE, false},
		{format.CompressionZstd, false},
		{format.CompressionS2, false},
		{format.CompressionLZ4, false},
		{format.CompressionType(0xFF), true},
	}

	for _, tt := range tests {
		t.Run(tt.compression.String(), func(t *testing.T) {
			codec, err := CreateCodec(tt.compression, "snapshot")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, codec)
		})
	}
}

func TestCodecs_RoundTrip(t *testing.T) {
	payload := testPayload()

	for _, compression := range []format.CompressionType{
		format.CompressionNone,
		format.CompressionRLE,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	} {
		t.Run(compression.String(), func(t *testing.T) {
			codec, err := CreateCodec(compression, "test")
			require.NoError(t, err)

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)

			restored, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.Equal(t, payload, restored)
		})
	}
}

func TestCodecs_CompressSparseImage(t *testing.T) {
	// All codecs should beat the raw size on a run-heavy image.
	payload := bytes.Repeat([]byte{0x11, 0x11, 0x11, 0x11, 0x00, 0x00, 0x00, 0x00}, 512)

	for _, compression := range []format.CompressionType{
		format.CompressionRLE,
		format.CompressionZstd,
		format.CompressionS2,
		format.CompressionLZ4,
	} {
		t.Run(compression.String(), func(t *testing.T) {
			codec, err := CreateCodec(compression, "test")
			require.NoError(t, err)

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)
			require.Less(t, len(compressed), len(payload))
		})
	}
}

func TestNoOp_PassesThrough(t *testing.T) {
	codec := NewNoOpCompressor()
	payload := []byte{1, 2, 3}

	out, err := codec.Compress(payload)
	require.NoError(t, err)
	require.Equal(t, payload, out)

	out, err = codec.Decompress(payload)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestZstd_RejectsGarbage(t *testing.T) {
	codec := NewZstdCompressor()
	_, err := codec.Decompress([]byte("definitely not a zstd frame"))
	require.Error(t, err)
}
