package plain

import (
	"encoding/binary"
	"fmt"

	"github.com/vesseldb/segment-go/encoding"
)

// Binary plain page layout:
//
//	[value bytes...][offset uint32 x count][count uint32]
//
// Each offset is the position of the first byte of the value within the
// page body; the end of the last value is the start of the offset section.

// BinaryDecoder decodes a plain page of variable length values.
type BinaryDecoder struct {
	data    []byte
	offsets []uint32
	end     uint32
	pos     int
}

// NewBinaryDecoder constructs a decoder over a binary plain page body.
func NewBinaryDecoder(data []byte) (*BinaryDecoder, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("plain: binary page of %d bytes has no trailer: %w",
			len(data), encoding.ErrBufferTooShort)
	}
	count := binary.LittleEndian.Uint32(data[len(data)-4:])
	trailer := 4 + 4*int(count)
	if len(data) < trailer {
		return nil, fmt.Errorf("plain: binary page of %d bytes cannot hold %d offsets: %w",
			len(data), count, encoding.ErrBufferTooShort)
	}
	end := uint32(len(data) - trailer)
	offsets := make([]uint32, count)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(data[int(end)+4*i:])
		if offsets[i] > end || (i > 0 && offsets[i] < offsets[i-1]) {
			return nil, fmt.Errorf("plain: binary page offset %d out of order: %w",
				i, encoding.ErrBufferTooShort)
		}
	}
	return &BinaryDecoder{data: data, offsets: offsets, end: end}, nil
}

// Count returns the number of values in the page.
func (d *BinaryDecoder) Count() int { return len(d.offsets) }

// CurrentIndex returns the position of the next value to be decoded.
func (d *BinaryDecoder) CurrentIndex() int { return d.pos }

// SeekToPosition positions the decoder on the given value.
func (d *BinaryDecoder) SeekToPosition(pos int) error {
	if pos < 0 || pos > d.Count() {
		return fmt.Errorf("plain: seek to %d outside of page of %d values: %w",
			pos, d.Count(), encoding.ErrInvalidArgument)
	}
	d.pos = pos
	return nil
}

// At returns the i-th value of the page. The returned slice aliases the
// page body.
func (d *BinaryDecoder) At(i int) []byte {
	from := d.offsets[i]
	to := d.end
	if i+1 < len(d.offsets) {
		to = d.offsets[i+1]
	}
	return d.data[from:to]
}

// Decode appends up to n values to dst and returns the extended slice and
// the number of values decoded, advancing the decoder. The appended slices
// alias the page body.
func (d *BinaryDecoder) Decode(dst [][]byte, n int) ([][]byte, int) {
	if rem := d.Count() - d.pos; n > rem {
		n = rem
	}
	for i := 0; i < n; i++ {
		dst = append(dst, d.At(d.pos+i))
	}
	d.pos += n
	return dst, n
}

// WordTable returns all values of the page, in order. It is used to build
// the word table of column dictionaries.
func (d *BinaryDecoder) WordTable() [][]byte {
	words := make([][]byte, d.Count())
	for i := range words {
		words[i] = d.At(i)
	}
	return words
}

// BinaryBuilder accumulates variable length values into a binary plain
// page body.
type BinaryBuilder struct {
	data    []byte
	offsets []uint32
}

// NewBinaryBuilder constructs an empty binary plain page builder.
func NewBinaryBuilder() *BinaryBuilder {
	return &BinaryBuilder{}
}

// Add appends one value.
func (b *BinaryBuilder) Add(value []byte) {
	b.offsets = append(b.offsets, uint32(len(b.data)))
	b.data = append(b.data, value...)
}

// Count returns the number of values added.
func (b *BinaryBuilder) Count() int { return len(b.offsets) }

// Bytes returns the page body.
func (b *BinaryBuilder) Bytes() []byte {
	out := make([]byte, 0, len(b.data)+4*len(b.offsets)+4)
	out = append(out, b.data...)
	for _, off := range b.offsets {
		out = binary.LittleEndian.AppendUint32(out, off)
	}
	return binary.LittleEndian.AppendUint32(out, uint32(len(b.offsets)))
}
