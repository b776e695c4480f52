package segment

import (
	"fmt"

	"github.com/vesseldb/segment-go/encoding/rle"
	"github.com/vesseldb/segment-go/format"
)

// ParsedPage is the in-memory decoded view of one data page: the page
// handle owning the decompressed buffer, the typed value decoder, the rle
// null bitmap decoder when the page holds nulls, and the iterator's
// position within the page.
//
// Invariants: offsetInPage == numValues iff the page is exhausted; when
// hasNull, the null decoder's logical position equals offsetInPage and the
// data decoder's position equals offsetInPage minus the nulls skipped so
// far. All decoders borrow into the handle's buffer and must not outlive
// the ParsedPage.
type ParsedPage struct {
	handle      PageHandle
	dataDecoder PageDecoder

	hasNull     bool
	nullBitmap  []byte
	nullDecoder *rle.Decoder

	firstOrdinal int64
	numValues    int64
	offsetInPage int64

	pagePointer format.PagePointer
	pageIndex   int32
}

// parsePage builds a ParsedPage from a decoded data page body and footer.
// The trailing NullmapSize bytes of the body hold the rle null bitmap;
// the rest is the value stream.
func parsePage(handle PageHandle, body []byte, footer *format.DataPageFooter,
	encodingInfo *EncodingInfo, pp format.PagePointer, pageIndex int32) (*ParsedPage, error) {

	page := &ParsedPage{
		handle:       handle,
		firstOrdinal: footer.FirstOrdinal,
		numValues:    footer.NumValues,
		pagePointer:  pp,
		pageIndex:    pageIndex,
	}

	nullmapSize := int(footer.NullmapSize)
	if nullmapSize > len(body) {
		return nil, fmt.Errorf("null bitmap of %d bytes overflows page body of %d bytes: %w",
			nullmapSize, len(body), ErrCorruption)
	}
	if nullmapSize > 0 {
		page.hasNull = true
		page.nullBitmap = body[len(body)-nullmapSize:]
		page.nullDecoder = rle.NewDecoder(page.nullBitmap, 1)
		body = body[:len(body)-nullmapSize]
	}

	decoder, err := encodingInfo.NewPageDecoder(body, footer)
	if err != nil {
		return nil, err
	}
	page.dataDecoder = decoder
	return page, nil
}

// FirstOrdinal returns the ordinal of the first row of the page.
func (p *ParsedPage) FirstOrdinal() int64 { return p.firstOrdinal }

// NumValues returns the number of rows covered by the page.
func (p *ParsedPage) NumValues() int64 { return p.numValues }

// Contains reports whether the ordinal falls within the page.
func (p *ParsedPage) Contains(ord int64) bool {
	return ord >= p.firstOrdinal && ord < p.firstOrdinal+p.numValues
}

// Remaining returns the number of rows between the cursor and the end of
// the page.
func (p *ParsedPage) Remaining() int64 { return p.numValues - p.offsetInPage }

// HasRemaining reports whether the cursor has rows left to produce.
func (p *ParsedPage) HasRemaining() bool { return p.offsetInPage < p.numValues }
