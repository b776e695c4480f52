// Package snappy implements the SNAPPY segment compression codec.
package snappy

import (
	"github.com/klauspost/compress/snappy"
	"github.com/vesseldb/segment-go/format"
)

type Codec struct {
}

func (c *Codec) String() string {
	return "SNAPPY"
}

func (c *Codec) Compression() format.Compression {
	return format.CompressionSnappy
}

func (c *Codec) Encode(dst, src []byte) ([]byte, error) {
	return snappy.Encode(dst, src), nil
}

func (c *Codec) Decode(dst, src []byte) ([]byte, error) {
	return snappy.Decode(dst, src)
}
