// Package gzip implements the GZIP segment compression codec.
package gzip

import (
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/vesseldb/segment-go/compress"
	"github.com/vesseldb/segment-go/format"
)

const (
	NoCompression      = gzip.NoCompression
	BestSpeed          = gzip.BestSpeed
	BestCompression    = gzip.BestCompression
	DefaultCompression = gzip.DefaultCompression
)

type Codec struct {
	Level int

	compress.Compressor
	compress.Decompressor
}

func (c *Codec) String() string {
	return "GZIP"
}

func (c *Codec) Compression() format.Compression {
	return format.CompressionGzip
}

func (c *Codec) Encode(dst, src []byte) ([]byte, error) {
	return c.Compressor.Encode(dst, src, func(w io.Writer) (compress.Writer, error) {
		level := c.Level
		if level == NoCompression {
			level = DefaultCompression
		}
		z, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, err
		}
		return writer{z}, nil
	})
}

func (c *Codec) Decode(dst, src []byte) ([]byte, error) {
	return c.Decompressor.Decode(dst, src, func(r io.Reader) (compress.Reader, error) {
		z, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return reader{z}, nil
	})
}

type reader struct{ *gzip.Reader }

func (r reader) Reset(rr io.Reader) error {
	if rr == nil {
		return nil
	}
	return r.Reader.Reset(rr)
}

type writer struct{ *gzip.Writer }

func (w writer) Reset(ww io.Writer) { w.Writer.Reset(ww) }
