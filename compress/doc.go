// Package compress provides the codecs used to shrink arena snapshot images.
//
// The native codec is a streaming run-length encoder (RLE) designed for the
// flash save path: it works byte-at-a-time with O(1) state, so it can feed a
// word-staging flash writer without any lookahead buffer, and it never
// expands incompressible input. Encode and Decode are fully symmetric:
// Decode(Encode(x)) == x for every byte sequence.
//
// For host-file snapshots, where the medium imposes no streaming discipline,
// the package also offers block codecs behind the Codec interface: S2, LZ4
// and Zstandard. CreateCodec selects an implementation from a
// format.CompressionType.
//
// Zstd compiles to a cgo-backed implementation (valyala/gozstd) when cgo is
// available and falls back to the pure-Go klauspost/compress implementation
// otherwise.
package compress
