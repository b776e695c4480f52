// Package dict implements dictionary coded binary data pages.
//
// A dictionary coded page starts with a four byte little-endian encoding
// header. When the header is EncodingDictionary the payload is a one byte
// bit width followed by an rle stream of dictionary codes; when the header
// is EncodingPlain the payload is a binary plain page (the writer falls
// back to plain when the column dictionary overflows, so both page kinds
// coexist in one column).
package dict

import (
	"encoding/binary"
	"fmt"

	"github.com/vesseldb/segment-go/encoding"
	"github.com/vesseldb/segment-go/encoding/plain"
	"github.com/vesseldb/segment-go/encoding/rle"
	"github.com/vesseldb/segment-go/format"
)

// Decoder decodes one dictionary coded data page.
type Decoder struct {
	pageEncoding format.Encoding
	numValues    int

	// dictionary coded payload
	codes *rle.Decoder
	words [][]byte
	pos   int

	// plain fallback payload
	plain *plain.BinaryDecoder
}

// NewDecoder constructs a decoder over a dictionary coded page body
// holding numValues values.
func NewDecoder(data []byte, numValues int) (*Decoder, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("dict: page of %d bytes has no encoding header: %w",
			len(data), encoding.ErrBufferTooShort)
	}
	d := &Decoder{
		pageEncoding: format.Encoding(binary.LittleEndian.Uint32(data)),
		numValues:    numValues,
	}
	switch d.pageEncoding {
	case format.EncodingDictionary:
		if len(data) < 5 {
			return nil, fmt.Errorf("dict: page of %d bytes has no bit width: %w",
				len(data), encoding.ErrBufferTooShort)
		}
		d.codes = rle.NewDecoder(data[5:], uint(data[4]))
	case format.EncodingPlain:
		var err error
		if d.plain, err = plain.NewBinaryDecoder(data[4:]); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("dict: unknown page encoding %d: %w",
			d.pageEncoding, encoding.ErrInvalidArgument)
	}
	return d, nil
}

// IsDictEncoding reports whether the page payload is dictionary coded, as
// opposed to a plain fallback page.
func (d *Decoder) IsDictEncoding() bool {
	return d.pageEncoding == format.EncodingDictionary
}

// SetDict injects the column dictionary word table. It must be called
// before decoding a dictionary coded payload.
func (d *Decoder) SetDict(words [][]byte) {
	d.words = words
}

// Count returns the number of values in the page.
func (d *Decoder) Count() int {
	if d.plain != nil {
		return d.plain.Count()
	}
	return d.numValues
}

// CurrentIndex returns the position of the next value to be decoded.
func (d *Decoder) CurrentIndex() int {
	if d.plain != nil {
		return d.plain.CurrentIndex()
	}
	return d.pos
}

// SeekToPosition positions the decoder on the given value. Dictionary code
// streams have no random access, so seeking rewinds and skips.
func (d *Decoder) SeekToPosition(pos int) error {
	if d.plain != nil {
		return d.plain.SeekToPosition(pos)
	}
	if pos < 0 || pos > d.numValues {
		return fmt.Errorf("dict: seek to %d outside of page of %d values: %w",
			pos, d.numValues, encoding.ErrInvalidArgument)
	}
	d.codes.Reset()
	d.codes.Skip(int64(pos))
	d.pos = pos
	return nil
}

// Decode appends up to n values to dst and returns the extended slice and
// the number of values decoded, advancing the decoder.
func (d *Decoder) Decode(dst [][]byte, n int) ([][]byte, int, error) {
	if d.plain != nil {
		out, decoded := d.plain.Decode(dst, n)
		return out, decoded, nil
	}
	if d.words == nil {
		return dst, 0, fmt.Errorf("dict: decoding without a dictionary: %w", encoding.ErrInvalidArgument)
	}
	if rem := d.numValues - d.pos; n > rem {
		n = rem
	}
	decoded := 0
	for decoded < n {
		var code uint64
		run := d.codes.GetNextRun(&code, int64(n-decoded))
		if run == 0 {
			return dst, decoded, fmt.Errorf("dict: code stream exhausted after %d of %d values: %w",
				d.pos, d.numValues, encoding.ErrBufferTooShort)
		}
		if code >= uint64(len(d.words)) {
			return dst, decoded, fmt.Errorf("dict: code %d outside of dictionary of %d words: %w",
				code, len(d.words), encoding.ErrInvalidArgument)
		}
		word := d.words[code]
		for i := int64(0); i < run; i++ {
			dst = append(dst, word)
		}
		decoded += int(run)
		d.pos += int(run)
	}
	return dst, decoded, nil
}

// Builder accumulates dictionary codes into a dictionary coded page body.
type Builder struct {
	bitWidth uint
	codes    *rle.Encoder
}

// NewBuilder constructs a builder for a dictionary coded payload with the
// given code bit width.
func NewBuilder(bitWidth uint) *Builder {
	if bitWidth == 0 {
		bitWidth = 1
	}
	return &Builder{bitWidth: bitWidth, codes: rle.NewEncoder(bitWidth)}
}

// Add appends one dictionary code.
func (b *Builder) Add(code uint32) {
	b.codes.Put(uint64(code))
}

// Count returns the number of codes added.
func (b *Builder) Count() int { return b.codes.Count() }

// Bytes returns the page body.
func (b *Builder) Bytes() []byte {
	out := make([]byte, 5)
	binary.LittleEndian.PutUint32(out, uint32(format.EncodingDictionary))
	out[4] = byte(b.bitWidth)
	return append(out, b.codes.Bytes()...)
}

// PlainFallbackPage wraps a binary plain page body into a dictionary
// column data page with the plain fallback header.
func PlainFallbackPage(body []byte) []byte {
	out := make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(format.EncodingPlain))
	return append(out, body...)
}
