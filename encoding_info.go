package segment

import (
	"fmt"

	"github.com/vesseldb/segment-go/encoding/dict"
	"github.com/vesseldb/segment-go/encoding/plain"
	"github.com/vesseldb/segment-go/format"
)

// PageDecoder is the capability set the iterator requires from a typed
// value decoder positioned over one data page. Positions are expressed in
// values, not rows: pages with nulls store only the non-null values.
type PageDecoder interface {
	// Count returns the number of values in the page.
	Count() int

	// CurrentIndex returns the position of the next value to be decoded.
	CurrentIndex() int

	// SeekToPositionInPage positions the decoder on the given value.
	SeekToPositionInPage(pos int) error

	// NextBatch decodes up to n values at the view's position and returns
	// the number decoded. The view is not advanced.
	NextBatch(n int, dst *BlockView) (int, error)

	// NextBatchVector decodes up to n values, appending them to the
	// vector column, and returns the number decoded.
	NextBatchVector(n int, dst *VectorColumn) (int, error)
}

// DictionarySetter is implemented by decoders of dictionary coded pages;
// the iterator injects the column dictionary before the first decode.
type DictionarySetter interface {
	IsDictEncoding() bool
	SetDict(words [][]byte)
}

// EncodingInfo maps a (type, encoding) pair to its page decoder factory.
type EncodingInfo struct {
	typeInfo *TypeInfo
	encoding format.Encoding
	newPageDecoder func(body []byte, footer *format.DataPageFooter) (PageDecoder, error)
}

// EncodingInfoOf resolves the decoder factory of a column's type and
// encoding.
func EncodingInfoOf(typeInfo *TypeInfo, encoding format.Encoding) (*EncodingInfo, error) {
	info := &EncodingInfo{typeInfo: typeInfo, encoding: encoding}
	switch {
	case encoding == format.EncodingPlain && !typeInfo.IsVarLen():
		info.newPageDecoder = func(body []byte, _ *format.DataPageFooter) (PageDecoder, error) {
			d, err := plain.NewDecoder(body, typeInfo.Size())
			if err != nil {
				return nil, err
			}
			return &plainPageDecoder{dec: d, size: typeInfo.Size()}, nil
		}
	case encoding == format.EncodingPlain && typeInfo.IsVarLen():
		info.newPageDecoder = func(body []byte, _ *format.DataPageFooter) (PageDecoder, error) {
			d, err := plain.NewBinaryDecoder(body)
			if err != nil {
				return nil, err
			}
			return &binaryPageDecoder{dec: d}, nil
		}
	case encoding == format.EncodingDictionary && typeInfo.IsVarLen():
		info.newPageDecoder = func(body []byte, footer *format.DataPageFooter) (PageDecoder, error) {
			numValues := int(footer.NumValues)
			d, err := dict.NewDecoder(body, numValues)
			if err != nil {
				return nil, err
			}
			return &dictPageDecoder{dec: d}, nil
		}
	default:
		return nil, fmt.Errorf("no decoder for type %s encoding %s: %w",
			typeInfo.Type(), encoding, ErrNotSupported)
	}
	return info, nil
}

// Encoding returns the encoding handled by the info.
func (e *EncodingInfo) Encoding() format.Encoding { return e.encoding }

// NewPageDecoder constructs a decoder over one data page body.
func (e *EncodingInfo) NewPageDecoder(body []byte, footer *format.DataPageFooter) (PageDecoder, error) {
	return e.newPageDecoder(body, footer)
}

type plainPageDecoder struct {
	dec  *plain.Decoder
	size int
}

func (d *plainPageDecoder) Count() int        { return d.dec.Count() }
func (d *plainPageDecoder) CurrentIndex() int { return d.dec.CurrentIndex() }

func (d *plainPageDecoder) SeekToPositionInPage(pos int) error {
	return d.dec.SeekToPosition(pos)
}

func (d *plainPageDecoder) NextBatch(n int, dst *BlockView) (int, error) {
	raw, m := d.dec.Decode(n)
	dst.writeFixed(raw)
	return m, nil
}

func (d *plainPageDecoder) NextBatchVector(n int, dst *VectorColumn) (int, error) {
	raw, m := d.dec.Decode(n)
	dst.appendFixed(raw, m)
	return m, nil
}

type binaryPageDecoder struct {
	dec  *plain.BinaryDecoder
	vals [][]byte
}

func (d *binaryPageDecoder) Count() int        { return d.dec.Count() }
func (d *binaryPageDecoder) CurrentIndex() int { return d.dec.CurrentIndex() }

func (d *binaryPageDecoder) SeekToPositionInPage(pos int) error {
	return d.dec.SeekToPosition(pos)
}

func (d *binaryPageDecoder) NextBatch(n int, dst *BlockView) (int, error) {
	vals, m := d.dec.Decode(d.vals[:0], n)
	d.vals = vals
	dst.writeBytes(vals)
	return m, nil
}

func (d *binaryPageDecoder) NextBatchVector(n int, dst *VectorColumn) (int, error) {
	vals, m := d.dec.Decode(d.vals[:0], n)
	d.vals = vals
	dst.appendBytes(vals)
	return m, nil
}

type dictPageDecoder struct {
	dec  *dict.Decoder
	vals [][]byte
}

func (d *dictPageDecoder) Count() int        { return d.dec.Count() }
func (d *dictPageDecoder) CurrentIndex() int { return d.dec.CurrentIndex() }

func (d *dictPageDecoder) SeekToPositionInPage(pos int) error {
	return d.dec.SeekToPosition(pos)
}

func (d *dictPageDecoder) NextBatch(n int, dst *BlockView) (int, error) {
	vals, m, err := d.dec.Decode(d.vals[:0], n)
	d.vals = vals
	if err != nil {
		return m, err
	}
	dst.writeBytes(vals)
	return m, nil
}

func (d *dictPageDecoder) NextBatchVector(n int, dst *VectorColumn) (int, error) {
	vals, m, err := d.dec.Decode(d.vals[:0], n)
	d.vals = vals
	if err != nil {
		return m, err
	}
	dst.appendBytes(vals)
	return m, nil
}

func (d *dictPageDecoder) IsDictEncoding() bool    { return d.dec.IsDictEncoding() }
func (d *dictPageDecoder) SetDict(words [][]byte) { d.dec.SetDict(words) }

var (
	_ DictionarySetter = (*dictPageDecoder)(nil)
)
