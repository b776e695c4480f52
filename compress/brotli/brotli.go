// Package brotli implements the BROTLI segment compression codec.
package brotli

import (
	"io"

	"github.com/andybalholm/brotli"
	"github.com/vesseldb/segment-go/compress"
	"github.com/vesseldb/segment-go/format"
)

const (
	DefaultQuality = 0
	DefaultLGWin   = 0
)

type Codec struct {
	// Quality controls the compression-speed vs compression-density
	// trade-offs. The higher the quality, the slower the compression.
	Quality int
	// LGWin is the base 2 logarithm of the sliding window size.
	LGWin int

	compress.Compressor
	compress.Decompressor
}

func (c *Codec) String() string {
	return "BROTLI"
}

func (c *Codec) Compression() format.Compression {
	return format.CompressionBrotli
}

func (c *Codec) Encode(dst, src []byte) ([]byte, error) {
	return c.Compressor.Encode(dst, src, func(w io.Writer) (compress.Writer, error) {
		return writer{brotli.NewWriterOptions(w, brotli.WriterOptions{
			Quality: c.Quality,
			LGWin:   c.LGWin,
		})}, nil
	})
}

func (c *Codec) Decode(dst, src []byte) ([]byte, error) {
	return c.Decompressor.Decode(dst, src, func(r io.Reader) (compress.Reader, error) {
		return reader{brotli.NewReader(r)}, nil
	})
}

type reader struct{ *brotli.Reader }

func (r reader) Close() error { return nil }

func (r reader) Reset(rr io.Reader) error {
	if rr == nil {
		return nil
	}
	return r.Reader.Reset(rr)
}

type writer struct{ *brotli.Writer }

func (w writer) Reset(ww io.Writer) { w.Writer.Reset(ww) }
