// Package plain implements the PLAIN page encoding: fixed stride
// little-endian cells for scalar types, and for variable length types the
// concatenated values followed by a u32 offset per value and a u32 count.
package plain

import (
	"fmt"

	"github.com/vesseldb/segment-go/encoding"
)

// Decoder decodes a plain page of fixed size cells.
type Decoder struct {
	data []byte
	size int
	pos  int
}

// NewDecoder constructs a decoder over a plain page body holding cells of
// the given size.
func NewDecoder(data []byte, size int) (*Decoder, error) {
	if size <= 0 {
		return nil, fmt.Errorf("plain: invalid cell size %d: %w", size, encoding.ErrInvalidArgument)
	}
	if len(data)%size != 0 {
		return nil, fmt.Errorf("plain: page body of %d bytes is not a multiple of the cell size %d: %w",
			len(data), size, encoding.ErrBufferTooShort)
	}
	return &Decoder{data: data, size: size}, nil
}

// Count returns the number of cells in the page.
func (d *Decoder) Count() int { return len(d.data) / d.size }

// CurrentIndex returns the position of the next cell to be decoded.
func (d *Decoder) CurrentIndex() int { return d.pos }

// SeekToPosition positions the decoder on the given cell.
func (d *Decoder) SeekToPosition(pos int) error {
	if pos < 0 || pos > d.Count() {
		return fmt.Errorf("plain: seek to %d outside of page of %d values: %w",
			pos, d.Count(), encoding.ErrInvalidArgument)
	}
	d.pos = pos
	return nil
}

// Decode returns the raw bytes of up to n cells and the number of cells
// decoded, advancing the decoder.
func (d *Decoder) Decode(n int) ([]byte, int) {
	if rem := d.Count() - d.pos; n > rem {
		n = rem
	}
	if n <= 0 {
		return nil, 0
	}
	b := d.data[d.pos*d.size : (d.pos+n)*d.size]
	d.pos += n
	return b, n
}

// Builder accumulates fixed size cells into a plain page body.
type Builder struct {
	size int
	data []byte
}

// NewBuilder constructs a builder for cells of the given size.
func NewBuilder(size int) *Builder {
	return &Builder{size: size}
}

// Add appends one cell; the length of cell must equal the builder size.
func (b *Builder) Add(cell []byte) {
	if len(cell) != b.size {
		panic("plain: cell size mismatch")
	}
	b.data = append(b.data, cell...)
}

// Count returns the number of cells added.
func (b *Builder) Count() int { return len(b.data) / b.size }

// Bytes returns the page body.
func (b *Builder) Bytes() []byte { return b.data }
