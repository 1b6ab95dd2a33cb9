package compress

// ZstdCompressor compresses snapshot payloads with Zstandard. The best
// choice when archival size matters more than save latency, e.g. retained
// host-file snapshots.
//
// The implementation is selected at build time: cgo builds use the
// valyala/gozstd bindings, pure-Go builds fall back to klauspost/compress.
// Both produce standard zstd frames and interoperate freely.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd codec with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
