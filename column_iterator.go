package segment

import (
	"fmt"

	"github.com/vesseldb/segment-go/encoding/plain"
	"github.com/vesseldb/segment-go/encoding/rle"
	"github.com/vesseldb/segment-go/format"
)

// ColumnIteratorOptions configures one iterator.
type ColumnIteratorOptions struct {
	// Block provides the raw bytes of the segment file.
	Block ReadableBlock

	// Stats receives the I/O accounting of the scan.
	Stats *IteratorStats

	// UsePageCache enables the page cache for data and dictionary pages.
	UsePageCache bool
}

func (o *ColumnIteratorOptions) sanityCheck() error {
	if o.Block == nil || o.Stats == nil {
		return fmt.Errorf("iterator options need a block and a stats sink: %w", ErrInternal)
	}
	return nil
}

// ColumnIterator is a stateful cursor over one column. Iterators produce
// rows in strictly ascending ordinal order and are not safe for concurrent
// use; the reader they were created from must outlive them.
type ColumnIterator interface {
	// Init prepares the iterator; it must be called before any other
	// method.
	Init(opts *ColumnIteratorOptions) error

	// SeekToFirst positions the iterator on ordinal zero.
	SeekToFirst() error

	// SeekToOrdinal positions the iterator on the given ordinal.
	SeekToOrdinal(ord int64) error

	// SeekToPageStart rewinds the iterator to the first ordinal of the
	// current page.
	SeekToPageStart() error

	// NextBatch reads up to *n rows into the block view, stores the
	// number of rows read back into *n, and sets *hasNull when any null
	// was produced.
	NextBatch(n *int, dst *BlockView, hasNull *bool) error

	// NextBatchVector is NextBatch for a growable vector column.
	NextBatchVector(n *int, dst *VectorColumn, hasNull *bool) error

	// GetRowRangesByZoneMap narrows the scan with the zone map index.
	GetRowRangesByZoneMap(cond Condition, deleteCond DeleteCondition, rowRanges *RowRanges) error

	// GetRowRangesByBloomFilter narrows the scan with the bloom filter
	// index.
	GetRowRangesByBloomFilter(cond Condition, rowRanges *RowRanges) error

	// CurrentOrdinal returns the ordinal the iterator is positioned on.
	CurrentOrdinal() int64
}

// fileColumnIterator is the iterator of a scalar column backed by data
// pages.
type fileColumnIterator struct {
	reader *ColumnReader
	opts   ColumnIteratorOptions

	pageIter       OrdinalPageIndexIterator
	page           *ParsedPage
	currentOrdinal int64

	// column dictionary, loaded on the first dictionary coded data page
	// and shared by every page of this iterator afterwards
	dictHandle  PageHandle
	dictDecoder *plain.BinaryDecoder
	dictWords   [][]byte
}

func newFileColumnIterator(reader *ColumnReader) *fileColumnIterator {
	return &fileColumnIterator{reader: reader}
}

func (it *fileColumnIterator) Init(opts *ColumnIteratorOptions) error {
	if err := opts.sanityCheck(); err != nil {
		return err
	}
	it.opts = *opts
	return nil
}

func (it *fileColumnIterator) CurrentOrdinal() int64 { return it.currentOrdinal }

func (it *fileColumnIterator) SeekToFirst() error {
	if err := it.reader.SeekToFirst(&it.pageIter); err != nil {
		return err
	}
	if err := it.readDataPage(it.pageIter); err != nil {
		return err
	}
	if err := it.seekToPosInPage(it.page, 0); err != nil {
		return err
	}
	it.currentOrdinal = 0
	return nil
}

func (it *fileColumnIterator) SeekToOrdinal(ord int64) error {
	// reuse the current page when it already contains the target
	if it.page == nil || !it.page.Contains(ord) || !it.pageIter.Valid() {
		if err := it.reader.SeekAtOrBefore(ord, &it.pageIter); err != nil {
			return err
		}
		if err := it.readDataPage(it.pageIter); err != nil {
			return err
		}
	}
	if err := it.seekToPosInPage(it.page, ord-it.page.FirstOrdinal()); err != nil {
		return err
	}
	it.currentOrdinal = ord
	return nil
}

func (it *fileColumnIterator) SeekToPageStart() error {
	if it.page == nil {
		return fmt.Errorf("no current page: %w", ErrNotFound)
	}
	return it.SeekToOrdinal(it.page.FirstOrdinal())
}

// seekToPosInPage moves the page cursor to offsetInPage, keeping the null
// decoder and the data decoder aligned. Forward seeks skip from the
// current null decoder position; backward seeks rewind the null decoder to
// the start of the bitmap first.
func (it *fileColumnIterator) seekToPosInPage(page *ParsedPage, offsetInPage int64) error {
	if page.offsetInPage == offsetInPage {
		return nil
	}

	posInData := offsetInPage
	if page.hasNull {
		offsetInData := int64(0)
		skips := offsetInPage

		if offsetInPage > page.offsetInPage {
			// forward, reuse the current null decoder position
			skips = offsetInPage - page.offsetInPage
			offsetInData = int64(page.dataDecoder.CurrentIndex())
		} else {
			page.nullDecoder = rle.NewDecoder(page.nullBitmap, 1)
		}

		skippedNulls := page.nullDecoder.Skip(skips)
		posInData = offsetInData + skips - skippedNulls
	}

	if err := page.dataDecoder.SeekToPositionInPage(int(posInData)); err != nil {
		return err
	}
	page.offsetInPage = offsetInPage
	return nil
}

func (it *fileColumnIterator) NextBatch(n *int, dst *BlockView, hasNull *bool) error {
	remaining := *n
	*hasNull = false
	for remaining > 0 {
		if it.page == nil || !it.page.HasRemaining() {
			eos, err := it.loadNextPage()
			if err != nil {
				return err
			}
			if eos {
				break
			}
		}

		nrowsInPage := remaining
		if rem := int(it.page.Remaining()); nrowsInPage > rem {
			nrowsInPage = rem
		}

		if it.page.hasNull {
			// pull runs from the null bitmap so that the number of value
			// decoder calls scales with the null runs, not the values
			nrowsToRead := nrowsInPage
			for nrowsToRead > 0 {
				var nullBit uint64
				run := int(it.page.nullDecoder.GetNextRun(&nullBit, int64(nrowsToRead)))
				if run == 0 {
					return fmt.Errorf("null bitmap exhausted at offset %d of page %d: %w",
						it.page.offsetInPage, it.page.pageIndex, ErrCorruption)
				}
				isNull := nullBit != 0
				if !isNull {
					decoded, err := it.page.dataDecoder.NextBatch(run, dst)
					if err != nil {
						return err
					}
					if decoded != run {
						return fmt.Errorf("decoded %d of %d values of page %d: %w",
							decoded, run, it.page.pageIndex, ErrCorruption)
					}
				} else {
					*hasNull = true
				}

				dst.SetNullBits(run, isNull)
				dst.Advance(run)
				nrowsToRead -= run
				it.page.offsetInPage += int64(run)
				it.currentOrdinal += int64(run)
			}
		} else {
			decoded, err := it.page.dataDecoder.NextBatch(nrowsInPage, dst)
			if err != nil {
				return err
			}
			if decoded != nrowsInPage {
				return fmt.Errorf("decoded %d of %d values of page %d: %w",
					decoded, nrowsInPage, it.page.pageIndex, ErrCorruption)
			}
			if dst.Block().IsNullable() {
				dst.SetNullBits(nrowsInPage, false)
			}
			dst.Advance(nrowsInPage)
			it.page.offsetInPage += int64(nrowsInPage)
			it.currentOrdinal += int64(nrowsInPage)
		}
		remaining -= nrowsInPage
	}
	*n -= remaining
	it.opts.Stats.RowsRead += int64(*n)
	it.opts.Stats.BytesRead += int64(*n*it.reader.TypeInfo().Size()) + bitmapSize(*n)
	return nil
}

func (it *fileColumnIterator) NextBatchVector(n *int, dst *VectorColumn, hasNull *bool) error {
	sizeBefore := dst.ByteSize()
	remaining := *n
	*hasNull = false
	for remaining > 0 {
		if it.page == nil || !it.page.HasRemaining() {
			eos, err := it.loadNextPage()
			if err != nil {
				return err
			}
			if eos {
				break
			}
		}

		nrowsInPage := remaining
		if rem := int(it.page.Remaining()); nrowsInPage > rem {
			nrowsInPage = rem
		}

		if it.page.hasNull {
			nrowsToRead := nrowsInPage
			for nrowsToRead > 0 {
				var nullBit uint64
				run := int(it.page.nullDecoder.GetNextRun(&nullBit, int64(nrowsToRead)))
				if run == 0 {
					return fmt.Errorf("null bitmap exhausted at offset %d of page %d: %w",
						it.page.offsetInPage, it.page.pageIndex, ErrCorruption)
				}
				if nullBit == 0 {
					decoded, err := it.page.dataDecoder.NextBatchVector(run, dst)
					if err != nil {
						return err
					}
					if decoded != run {
						return fmt.Errorf("decoded %d of %d values of page %d: %w",
							decoded, run, it.page.pageIndex, ErrCorruption)
					}
				} else {
					*hasNull = true
					dst.InsertManyDefaults(run)
				}
				nrowsToRead -= run
				it.page.offsetInPage += int64(run)
				it.currentOrdinal += int64(run)
			}
		} else {
			decoded, err := it.page.dataDecoder.NextBatchVector(nrowsInPage, dst)
			if err != nil {
				return err
			}
			if decoded != nrowsInPage {
				return fmt.Errorf("decoded %d of %d values of page %d: %w",
					decoded, nrowsInPage, it.page.pageIndex, ErrCorruption)
			}
			it.page.offsetInPage += int64(nrowsInPage)
			it.currentOrdinal += int64(nrowsInPage)
		}
		remaining -= nrowsInPage
	}
	*n -= remaining
	it.opts.Stats.RowsRead += int64(*n)
	it.opts.Stats.BytesRead += (dst.ByteSize() - sizeBefore) + bitmapSize(*n)
	return nil
}

func (it *fileColumnIterator) loadNextPage() (eos bool, err error) {
	it.pageIter.Next()
	if !it.pageIter.Valid() {
		return true, nil
	}
	if err := it.readDataPage(it.pageIter); err != nil {
		return false, err
	}
	if err := it.seekToPosInPage(it.page, 0); err != nil {
		return false, err
	}
	return false, nil
}

// readDataPage reads and parses the page under iter, replacing the current
// page. The dictionary page is read when the first dictionary coded data
// page shows up; releasing it between queries keeps cold columns cheap,
// and the page cache keeps concurrent iterators from re-reading it.
func (it *fileColumnIterator) readDataPage(iter OrdinalPageIndexIterator) error {
	handle, body, footer, err := it.reader.ReadPage(&it.opts, iter.Page(), format.DataPage)
	if err != nil {
		return err
	}
	if footer.Type != format.DataPage || footer.Data == nil {
		return fmt.Errorf("expected a data page at %d in %s, found %s: %w",
			iter.Page().Offset, it.opts.Block.Path(), footer.Type, ErrCorruption)
	}
	page, err := parsePage(handle, body, footer.Data, it.reader.EncodingInfo(), iter.Page(), iter.PageIndex())
	if err != nil {
		return err
	}
	it.page = page

	if it.reader.EncodingInfo().Encoding() != format.EncodingDictionary {
		return nil
	}
	setter, ok := page.dataDecoder.(DictionarySetter)
	if !ok || !setter.IsDictEncoding() {
		// plain fallback pages coexist with dictionary coded pages
		return nil
	}
	if it.dictWords == nil {
		if err := it.loadDictPage(); err != nil {
			return err
		}
	}
	setter.SetDict(it.dictWords)
	return nil
}

func (it *fileColumnIterator) loadDictPage() error {
	pp := it.reader.DictPagePointer()
	if pp.Zero() {
		return fmt.Errorf("dictionary coded column %d has no dictionary page: %w",
			it.reader.meta.ColumnID, ErrCorruption)
	}
	handle, body, footer, err := it.reader.ReadPage(&it.opts, pp, format.IndexPage)
	if err != nil {
		return err
	}
	if footer.Type != format.DictionaryPage || footer.Dict == nil {
		return fmt.Errorf("expected a dictionary page at %d in %s, found %s: %w",
			pp.Offset, it.opts.Block.Path(), footer.Type, ErrCorruption)
	}
	// only PLAIN is supported for dictionary pages, the footer encoding is
	// not consulted
	decoder, err := plain.NewBinaryDecoder(body)
	if err != nil {
		return err
	}
	it.dictHandle = handle
	it.dictDecoder = decoder
	it.dictWords = decoder.WordTable()
	return nil
}

func (it *fileColumnIterator) GetRowRangesByZoneMap(cond Condition, deleteCond DeleteCondition, rowRanges *RowRanges) error {
	if it.reader.HasZoneMap() {
		return it.reader.GetRowRangesByZoneMap(cond, deleteCond, rowRanges)
	}
	return nil
}

func (it *fileColumnIterator) GetRowRangesByBloomFilter(cond Condition, rowRanges *RowRanges) error {
	if cond != nil && cond.CanDoBloomFilter() && it.reader.HasBloomFilterIndex() {
		return it.reader.getRowRangesByBloomFilter(cond, rowRanges, it.opts.Stats)
	}
	return nil
}

// bitmapSize returns the byte size of a null bitmap covering n rows.
func bitmapSize(n int) int64 {
	return int64((n + 7) / 8)
}

// emptyFileColumnIterator is the no-op cursor of an empty column.
type emptyFileColumnIterator struct{}

func (*emptyFileColumnIterator) Init(*ColumnIteratorOptions) error { return nil }
func (*emptyFileColumnIterator) SeekToFirst() error                { return nil }
func (*emptyFileColumnIterator) SeekToOrdinal(int64) error         { return nil }
func (*emptyFileColumnIterator) SeekToPageStart() error            { return nil }
func (*emptyFileColumnIterator) CurrentOrdinal() int64             { return 0 }

func (*emptyFileColumnIterator) NextBatch(n *int, _ *BlockView, hasNull *bool) error {
	*n = 0
	*hasNull = false
	return nil
}

func (*emptyFileColumnIterator) NextBatchVector(n *int, _ *VectorColumn, hasNull *bool) error {
	*n = 0
	*hasNull = false
	return nil
}

func (*emptyFileColumnIterator) GetRowRangesByZoneMap(Condition, DeleteCondition, *RowRanges) error {
	return nil
}

func (*emptyFileColumnIterator) GetRowRangesByBloomFilter(Condition, *RowRanges) error {
	return nil
}

var (
	_ ColumnIterator = (*fileColumnIterator)(nil)
	_ ColumnIterator = (*emptyFileColumnIterator)(nil)
)
