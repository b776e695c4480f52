package segment

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vesseldb/segment-go/compress"
	"github.com/vesseldb/segment-go/format"
)

// ColumnReaderOptions configures every reader of a segment.
type ColumnReaderOptions struct {
	// VerifyChecksum enables crc verification of every page read.
	VerifyChecksum bool

	// KeptInMemory hints the page cache to pin this segment's pages.
	KeptInMemory bool

	// Cache overrides the process-wide page cache.
	Cache *PageCache

	// Logger receives debug logs of index loads and pushdown decisions.
	// Nil disables logging.
	Logger *zap.Logger
}

func (o ColumnReaderOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// ColumnReader is the per-column read handle of a segment. It owns the
// column metadata, lazily loads the column's indexes, answers predicate
// pushdown with row ranges, reads pages on behalf of its iterators and
// acts as the iterator factory.
//
// A ColumnReader is safe for concurrent use once constructed; it must
// outlive every iterator created from it.
type ColumnReader struct {
	opts    ColumnReaderOptions
	meta    format.ColumnMeta
	numRows int64
	block   ReadableBlock

	typeInfo     *TypeInfo
	encodingInfo *EncodingInfo
	codec        compress.Codec

	ordinalIndexMeta *format.IndexMeta
	zoneMapIndexMeta *format.IndexMeta
	bitmapIndexMeta  *format.IndexMeta
	bloomIndexMeta   *format.IndexMeta

	ordinalOnce sync.Once
	ordinalErr  error
	ordinal     *OrdinalIndexReader

	zoneMapOnce sync.Once
	zoneMapErr  error
	zoneMap     *ZoneMapIndexReader

	bitmapOnce sync.Once
	bitmapErr  error
	bitmap     *BitmapIndexReader

	bloomOnce sync.Once
	bloomErr  error
	bloomIdx  *BloomFilterIndexReader

	subReaders []*ColumnReader // array columns: item, offsets, nulls
}

// NewColumnReader builds the reader of one column. Scalar columns are
// initialized eagerly; ARRAY columns recursively build their children and
// carry no indexes of their own.
func NewColumnReader(opts ColumnReaderOptions, meta format.ColumnMeta, numRows int64, block ReadableBlock) (*ColumnReader, error) {
	if isScalarType(meta.Type) {
		reader := &ColumnReader{opts: opts, meta: meta, numRows: numRows, block: block}
		if err := reader.init(); err != nil {
			return nil, err
		}
		return reader, nil
	}

	switch meta.Type {
	case format.TypeArray:
		want := 2
		if meta.IsNullable {
			want = 3
		}
		if len(meta.Children) < want {
			return nil, fmt.Errorf("ARRAY column %d has %d children, want %d: %w",
				meta.ColumnID, len(meta.Children), want, ErrCorruption)
		}

		itemReader, err := NewColumnReader(opts, meta.Children[0], meta.Children[0].NumRows, block)
		if err != nil {
			return nil, err
		}
		offsetReader, err := NewColumnReader(opts, meta.Children[1], meta.Children[1].NumRows, block)
		if err != nil {
			return nil, err
		}
		var nullReader *ColumnReader
		if meta.IsNullable {
			if nullReader, err = NewColumnReader(opts, meta.Children[2], meta.Children[2].NumRows, block); err != nil {
				return nil, err
			}
		}

		// the array reader covers exactly as many rows as its offsets
		// child; it needs no init of its own
		reader := &ColumnReader{
			opts:    opts,
			meta:    meta,
			numRows: meta.Children[1].NumRows,
			block:   block,
		}
		reader.subReaders = []*ColumnReader{itemReader, offsetReader}
		if nullReader != nil {
			reader.subReaders = append(reader.subReaders, nullReader)
		}
		return reader, nil
	default:
		return nil, fmt.Errorf("unsupported type for column reader: %s: %w", meta.Type, ErrNotSupported)
	}
}

func isScalarType(t format.Type) bool {
	return t != format.TypeArray && typeInfos[t] != nil
}

func (r *ColumnReader) init() error {
	var err error
	if r.typeInfo, err = TypeInfoOf(r.meta.Type); err != nil {
		return err
	}
	if r.encodingInfo, err = EncodingInfoOf(r.typeInfo, r.meta.Encoding); err != nil {
		return err
	}
	if r.codec, err = codecOf(r.meta.Compression); err != nil {
		return err
	}

	for i := range r.meta.Indexes {
		index := &r.meta.Indexes[i]
		var slot **format.IndexMeta
		switch index.Type {
		case format.OrdinalIndex:
			slot = &r.ordinalIndexMeta
		case format.ZoneMapIndex:
			slot = &r.zoneMapIndexMeta
		case format.BitmapIndex:
			slot = &r.bitmapIndexMeta
		case format.BloomFilterIndex:
			slot = &r.bloomIndexMeta
		default:
			return fmt.Errorf("bad file %s: invalid column index type %d: %w",
				r.block.Path(), index.Type, ErrCorruption)
		}
		if *slot != nil {
			return fmt.Errorf("bad file %s: duplicate %s index on column %d: %w",
				r.block.Path(), index.Type, r.meta.ColumnID, ErrCorruption)
		}
		*slot = index
	}

	// an ARRAY writer that flushes a single empty array leaves the item
	// column with zero rows and no ordinal index, which is legal
	if r.ordinalIndexMeta == nil && !r.IsEmpty() {
		return fmt.Errorf("bad file %s: missing ordinal index for column %d: %w",
			r.block.Path(), r.meta.ColumnID, ErrCorruption)
	}
	return nil
}

// TypeInfo returns the type of the column, nil for ARRAY columns.
func (r *ColumnReader) TypeInfo() *TypeInfo { return r.typeInfo }

// EncodingInfo returns the encoding of the column's data pages.
func (r *ColumnReader) EncodingInfo() *EncodingInfo { return r.encodingInfo }

// NumRows returns the number of rows of the column.
func (r *ColumnReader) NumRows() int64 { return r.numRows }

// IsEmpty reports whether the column holds no rows.
func (r *ColumnReader) IsEmpty() bool { return r.numRows == 0 }

// IsNullable reports whether the column may hold nulls.
func (r *ColumnReader) IsNullable() bool { return r.meta.IsNullable }

// HasZoneMap reports whether the column carries a zone map index.
func (r *ColumnReader) HasZoneMap() bool { return r.zoneMapIndexMeta != nil }

// HasBitmapIndex reports whether the column carries a bitmap index.
func (r *ColumnReader) HasBitmapIndex() bool { return r.bitmapIndexMeta != nil }

// HasBloomFilterIndex reports whether the column carries a bloom filter
// index.
func (r *ColumnReader) HasBloomFilterIndex() bool { return r.bloomIndexMeta != nil }

// DictPagePointer returns the pointer of the column dictionary page.
func (r *ColumnReader) DictPagePointer() format.PagePointer {
	if r.meta.DictPage == nil {
		return format.PagePointer{}
	}
	return *r.meta.DictPage
}

// ReadPage reads one page of the column on behalf of an iterator.
func (r *ColumnReader) ReadPage(iterOpts *ColumnIteratorOptions, pp format.PagePointer,
	pageType format.PageType) (PageHandle, []byte, *format.PageFooter, error) {

	if err := iterOpts.sanityCheck(); err != nil {
		return PageHandle{}, nil, nil, err
	}
	return ReadAndDecompressPage(PageReadOptions{
		Block:          iterOpts.Block,
		Pointer:        pp,
		Codec:          r.codec,
		Stats:          iterOpts.Stats,
		VerifyChecksum: r.opts.VerifyChecksum,
		UsePageCache:   iterOpts.UsePageCache,
		KeptInMemory:   r.opts.KeptInMemory,
		Type:           pageType,
		Cache:          r.opts.Cache,
	})
}

// MatchCondition evaluates a condition against the segment-level zone map.
// Columns without a zone map, and nil conditions, always match.
func (r *ColumnReader) MatchCondition(cond Condition) bool {
	if r.zoneMapIndexMeta == nil || r.zoneMapIndexMeta.SegmentZoneMap == nil || cond == nil {
		return true
	}
	zm := r.zoneMapIndexMeta.SegmentZoneMap
	min, max, err := parseZoneMap(r.typeInfo, zm)
	if err != nil {
		// an unparsable zone map cannot prune
		return true
	}
	return zoneMapMatchCondition(zm, min, max, cond)
}

// GetRowRangesByZoneMap rebuilds rowRanges as the union of the ordinal
// ranges of the pages whose zone map may satisfy cond and which are not
// wholly covered by deleteCond. Callers that pre-seeded rowRanges must
// intersect externally.
func (r *ColumnReader) GetRowRangesByZoneMap(cond Condition, deleteCond DeleteCondition, rowRanges *RowRanges) error {
	if err := r.ensureIndexLoaded(); err != nil {
		return err
	}
	if r.zoneMap == nil {
		return fmt.Errorf("column %d has no zone map index: %w", r.meta.ColumnID, ErrNotFound)
	}
	pageIndexes, err := r.getFilteredPages(cond, deleteCond)
	if err != nil {
		return err
	}
	return r.calculateRowRanges(pageIndexes, rowRanges)
}

func (r *ColumnReader) getFilteredPages(cond Condition, deleteCond DeleteCondition) ([]int, error) {
	zoneMaps := r.zoneMap.PageZoneMaps()
	numPages := r.zoneMap.NumPages()
	pageIndexes := make([]int, 0, numPages)
	for i := 0; i < numPages; i++ {
		zm := &zoneMaps[i]
		if zm.PassAll {
			pageIndexes = append(pageIndexes, i)
			continue
		}
		min, max, err := parseZoneMap(r.typeInfo, zm)
		if err != nil {
			return nil, err
		}
		if !zoneMapMatchCondition(zm, min, max, cond) {
			continue
		}
		if deleteCond != nil && deleteCond.DelEval(min, max) == DelSatisfied {
			continue // the whole page is deleted
		}
		pageIndexes = append(pageIndexes, i)
	}
	r.opts.logger().Debug("zone map pushdown",
		zap.Int32("column", r.meta.ColumnID),
		zap.Int("total_pages", numPages),
		zap.Int("accepted_pages", len(pageIndexes)))
	return pageIndexes, nil
}

func (r *ColumnReader) calculateRowRanges(pageIndexes []int, rowRanges *RowRanges) error {
	rowRanges.Clear()
	for _, i := range pageIndexes {
		first := r.ordinal.GetFirstOrdinal(i)
		last := r.ordinal.GetLastOrdinal(i)
		rowRanges.Add(RowRange{From: first, To: last + 1})
	}
	return nil
}

// GetRowRangesByBloomFilter intersects rowRanges with the ordinal ranges
// of the pages whose bloom filter may contain a value matching cond.
func (r *ColumnReader) GetRowRangesByBloomFilter(cond Condition, rowRanges *RowRanges) error {
	return r.getRowRangesByBloomFilter(cond, rowRanges, nil)
}

func (r *ColumnReader) getRowRangesByBloomFilter(cond Condition, rowRanges *RowRanges, stats *IteratorStats) error {
	if err := r.ensureIndexLoaded(); err != nil {
		return err
	}
	if r.bloomIdx == nil {
		return fmt.Errorf("column %d has no bloom filter index: %w", r.meta.ColumnID, ErrNotFound)
	}
	bfIter := r.bloomIdx.NewIterator()

	// collect the data pages covered by the candidate ranges
	pageIDs := make([]int, 0)
	seen := make(map[int]bool)
	for i := 0; i < rowRanges.RangeCount(); i++ {
		from, to := rowRanges.From(i), rowRanges.To(i)
		iter := r.ordinal.SeekAtOrBefore(from)
		idx := from
		for idx < to && iter.Valid() {
			pid := int(iter.PageIndex())
			if !seen[pid] {
				seen[pid] = true
				pageIDs = append(pageIDs, pid)
			}
			idx = iter.LastOrdinal() + 1
			iter.Next()
		}
	}

	bfRanges := NewRowRanges()
	for _, pid := range pageIDs {
		bf, err := bfIter.ReadBloomFilter(pid, stats)
		if err != nil {
			return err
		}
		if cond.EvalBloomFilter(bf) {
			bfRanges.Add(RowRange{
				From: r.ordinal.GetFirstOrdinal(pid),
				To:   r.ordinal.GetLastOrdinal(pid) + 1,
			})
		}
	}
	rowsBefore := rowRanges.Count()
	RangesIntersection(rowRanges, bfRanges, rowRanges)
	r.opts.logger().Debug("bloom filter pushdown",
		zap.Int32("column", r.meta.ColumnID),
		zap.Int("probed_pages", len(pageIDs)),
		zap.Int64("rows_before", rowsBefore),
		zap.Int64("rows_after", rowRanges.Count()))
	return nil
}

// PageZoneMaps loads the zone map index and returns the per-page zone
// maps, or nil when the column has none. Inspection tooling uses this; the
// scan path goes through GetRowRangesByZoneMap.
func (r *ColumnReader) PageZoneMaps() ([]format.ZoneMap, error) {
	if err := r.ensureIndexLoaded(); err != nil {
		return nil, err
	}
	if r.zoneMap == nil {
		return nil, nil
	}
	return r.zoneMap.PageZoneMaps(), nil
}

// SeekToFirst positions iter on the first data page of the column.
func (r *ColumnReader) SeekToFirst(iter *OrdinalPageIndexIterator) error {
	if err := r.ensureIndexLoaded(); err != nil {
		return err
	}
	*iter = r.ordinal.Begin()
	if !iter.Valid() {
		return fmt.Errorf("failed to seek to first rowid: %w", ErrNotFound)
	}
	return nil
}

// SeekAtOrBefore positions iter on the data page containing the ordinal.
func (r *ColumnReader) SeekAtOrBefore(ord int64, iter *OrdinalPageIndexIterator) error {
	if err := r.ensureIndexLoaded(); err != nil {
		return err
	}
	*iter = r.ordinal.SeekAtOrBefore(ord)
	if !iter.Valid() {
		return fmt.Errorf("failed to seek to ordinal %d: %w", ord, ErrNotFound)
	}
	return nil
}

// NewBitmapIndexIterator returns a cursor over the column's bitmap index.
func (r *ColumnReader) NewBitmapIndexIterator() (*BitmapIndexIterator, error) {
	if err := r.ensureIndexLoaded(); err != nil {
		return nil, err
	}
	if r.bitmap == nil {
		return nil, fmt.Errorf("column %d has no bitmap index: %w", r.meta.ColumnID, ErrNotFound)
	}
	return r.bitmap.NewIterator(), nil
}

// NewIterator returns a fresh cursor over the column: an empty iterator
// for empty columns, a scalar iterator for scalar columns, and an array
// iterator composed of the child iterators for ARRAY columns.
func (r *ColumnReader) NewIterator() (ColumnIterator, error) {
	if r.IsEmpty() {
		return new(emptyFileColumnIterator), nil
	}
	if isScalarType(r.meta.Type) {
		return newFileColumnIterator(r), nil
	}
	switch r.meta.Type {
	case format.TypeArray:
		itemIter, err := r.subReaders[0].NewIterator()
		if err != nil {
			return nil, err
		}
		offsetIter, err := r.subReaders[1].NewIterator()
		if err != nil {
			return nil, err
		}
		var nullIter ColumnIterator
		if r.IsNullable() {
			if nullIter, err = r.subReaders[2].NewIterator(); err != nil {
				return nil, err
			}
		}
		return newArrayFileColumnIterator(r, offsetIter, itemIter, nullIter), nil
	default:
		return nil, fmt.Errorf("unsupported type to create iterator: %s: %w", r.meta.Type, ErrNotSupported)
	}
}

// ensureIndexLoaded lazily loads each present index exactly once; it is
// safe under concurrent first access.
func (r *ColumnReader) ensureIndexLoaded() error {
	usePageCache, keptInMemory := true, r.opts.KeptInMemory

	r.ordinalOnce.Do(func() {
		if r.ordinalIndexMeta == nil {
			return
		}
		r.ordinal = NewOrdinalIndexReader(r.block, r.ordinalIndexMeta, r.numRows)
		r.ordinalErr = r.ordinal.Load(r.codec, r.opts.Cache, usePageCache, keptInMemory)
		r.logIndexLoad("ordinal", r.ordinalErr)
	})
	if r.ordinalErr != nil {
		return r.ordinalErr
	}

	r.zoneMapOnce.Do(func() {
		if r.zoneMapIndexMeta == nil {
			return
		}
		r.zoneMap = NewZoneMapIndexReader(r.block, r.zoneMapIndexMeta)
		r.zoneMapErr = r.zoneMap.Load(r.codec, r.opts.Cache, usePageCache, keptInMemory)
		r.logIndexLoad("zone map", r.zoneMapErr)
	})
	if r.zoneMapErr != nil {
		return r.zoneMapErr
	}

	r.bitmapOnce.Do(func() {
		if r.bitmapIndexMeta == nil {
			return
		}
		r.bitmap = NewBitmapIndexReader(r.block, r.bitmapIndexMeta, r.typeInfo)
		r.bitmapErr = r.bitmap.Load(r.codec, r.opts.Cache, usePageCache, keptInMemory)
		r.logIndexLoad("bitmap", r.bitmapErr)
	})
	if r.bitmapErr != nil {
		return r.bitmapErr
	}

	r.bloomOnce.Do(func() {
		if r.bloomIndexMeta == nil {
			return
		}
		r.bloomIdx = NewBloomFilterIndexReader(r.block, r.bloomIndexMeta, r.typeInfo)
		r.bloomErr = r.bloomIdx.Load(r.codec, r.opts.Cache, usePageCache, keptInMemory)
		r.logIndexLoad("bloom filter", r.bloomErr)
	})
	return r.bloomErr
}

func (r *ColumnReader) logIndexLoad(kind string, err error) {
	if err != nil {
		r.opts.logger().Warn("index load failed",
			zap.Int32("column", r.meta.ColumnID), zap.String("index", kind), zap.Error(err))
		return
	}
	r.opts.logger().Debug("index loaded",
		zap.Int32("column", r.meta.ColumnID), zap.String("index", kind))
}
