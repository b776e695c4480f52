package segment

import (
	"fmt"
	"sort"

	"github.com/segmentio/encoding/thrift"
	"github.com/vesseldb/segment-go/compress"
	"github.com/vesseldb/segment-go/format"
)

// OrdinalIndexReader maps row ordinals to data pages: one entry per page,
// ordered by first ordinal.
type OrdinalIndexReader struct {
	block   ReadableBlock
	meta    *format.IndexMeta
	numRows int64

	firstOrdinals []int64
	pages         []format.PagePointer
}

// NewOrdinalIndexReader constructs an unloaded ordinal index reader.
func NewOrdinalIndexReader(block ReadableBlock, meta *format.IndexMeta, numRows int64) *OrdinalIndexReader {
	return &OrdinalIndexReader{block: block, meta: meta, numRows: numRows}
}

// Load reads and parses the index page.
func (r *OrdinalIndexReader) Load(codec compress.Codec, cache *PageCache, usePageCache, keptInMemory bool) error {
	_, body, footer, err := ReadAndDecompressPage(PageReadOptions{
		Block:          r.block,
		Pointer:        r.meta.Page,
		Codec:          codec,
		VerifyChecksum: true,
		UsePageCache:   usePageCache,
		KeptInMemory:   keptInMemory,
		Type:           format.IndexPage,
		Cache:          cache,
	})
	if err != nil {
		return err
	}
	if footer.Type != format.IndexPage {
		return fmt.Errorf("ordinal index of %s points at a %s: %w",
			r.block.Path(), footer.Type, ErrCorruption)
	}
	page := new(format.OrdinalIndexPage)
	if err := thrift.Unmarshal(new(thrift.CompactProtocol), body, page); err != nil {
		return fmt.Errorf("parsing ordinal index of %s: %w (%s)", r.block.Path(), ErrCorruption, err)
	}
	if len(page.FirstOrdinals) != len(page.Pages) {
		return fmt.Errorf("ordinal index of %s has %d ordinals for %d pages: %w",
			r.block.Path(), len(page.FirstOrdinals), len(page.Pages), ErrCorruption)
	}
	r.firstOrdinals = page.FirstOrdinals
	r.pages = page.Pages
	return nil
}

// NumDataPages returns the number of data pages indexed.
func (r *OrdinalIndexReader) NumDataPages() int { return len(r.pages) }

// GetFirstOrdinal returns the first ordinal of page i.
func (r *OrdinalIndexReader) GetFirstOrdinal(i int) int64 {
	return r.firstOrdinals[i]
}

// GetLastOrdinal returns the last ordinal of page i, inclusive.
func (r *OrdinalIndexReader) GetLastOrdinal(i int) int64 {
	if i+1 < len(r.firstOrdinals) {
		return r.firstOrdinals[i+1] - 1
	}
	return r.numRows - 1
}

// Begin returns an iterator on the first page.
func (r *OrdinalIndexReader) Begin() OrdinalPageIndexIterator {
	return OrdinalPageIndexIterator{reader: r}
}

// SeekAtOrBefore returns an iterator on the last page whose first ordinal
// is at or before the given ordinal. The iterator is invalid when every
// page starts after it.
func (r *OrdinalIndexReader) SeekAtOrBefore(ord int64) OrdinalPageIndexIterator {
	i := sort.Search(len(r.firstOrdinals), func(i int) bool {
		return r.firstOrdinals[i] > ord
	})
	return OrdinalPageIndexIterator{reader: r, index: i - 1}
}

// OrdinalPageIndexIterator is a cursor over the pages of an ordinal index.
type OrdinalPageIndexIterator struct {
	reader *OrdinalIndexReader
	index  int
}

// Valid reports whether the iterator points at a page.
func (it OrdinalPageIndexIterator) Valid() bool {
	return it.reader != nil && it.index >= 0 && it.index < len(it.reader.pages)
}

// Next advances the iterator to the following page.
func (it *OrdinalPageIndexIterator) Next() { it.index++ }

// Page returns the pointer of the current page.
func (it OrdinalPageIndexIterator) Page() format.PagePointer {
	return it.reader.pages[it.index]
}

// PageIndex returns the position of the current page.
func (it OrdinalPageIndexIterator) PageIndex() int32 { return int32(it.index) }

// FirstOrdinal returns the first ordinal of the current page.
func (it OrdinalPageIndexIterator) FirstOrdinal() int64 {
	return it.reader.GetFirstOrdinal(it.index)
}

// LastOrdinal returns the last ordinal of the current page, inclusive.
func (it OrdinalPageIndexIterator) LastOrdinal() int64 {
	return it.reader.GetLastOrdinal(it.index)
}
