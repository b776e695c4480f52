package segment

import (
	"fmt"

	"github.com/vesseldb/segment-go/compress"
	"github.com/vesseldb/segment-go/compress/brotli"
	"github.com/vesseldb/segment-go/compress/gzip"
	"github.com/vesseldb/segment-go/compress/lz4"
	"github.com/vesseldb/segment-go/compress/snappy"
	"github.com/vesseldb/segment-go/compress/zstd"
	"github.com/vesseldb/segment-go/format"
)

var (
	snappyCodec compress.Codec = new(snappy.Codec)
	gzipCodec   compress.Codec = new(gzip.Codec)
	lz4Codec    compress.Codec = new(lz4.Codec)
	zstdCodec   compress.Codec = new(zstd.Codec)
	brotliCodec compress.Codec = new(brotli.Codec)
)

// codecOf resolves a compression code to its codec. Uncompressed columns
// get a nil codec; the page reader treats a nil codec as pass-through.
func codecOf(compression format.Compression) (compress.Codec, error) {
	switch compression {
	case format.CompressionUncompressed:
		return nil, nil
	case format.CompressionSnappy:
		return snappyCodec, nil
	case format.CompressionGzip:
		return gzipCodec, nil
	case format.CompressionLZ4:
		return lz4Codec, nil
	case format.CompressionZstd:
		return zstdCodec, nil
	case format.CompressionBrotli:
		return brotliCodec, nil
	default:
		return nil, fmt.Errorf("unknown compression codec %d: %w", compression, ErrNotSupported)
	}
}
