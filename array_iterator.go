package segment

import (
	"fmt"
)

// arrayFileColumnIterator assembles array batches from the child iterators
// of an ARRAY column: per-array lengths from the offsets child, per-array
// null markers from the nulls child, and the flattened item stream from
// the item child.
type arrayFileColumnIterator struct {
	reader     *ColumnReader
	offsetIter ColumnIterator
	itemIter   ColumnIterator
	nullIter   ColumnIterator
}

func newArrayFileColumnIterator(reader *ColumnReader, offsetIter, itemIter, nullIter ColumnIterator) *arrayFileColumnIterator {
	it := &arrayFileColumnIterator{
		reader:     reader,
		offsetIter: offsetIter,
		itemIter:   itemIter,
	}
	if reader.IsNullable() {
		it.nullIter = nullIter
	}
	return it
}

func (it *arrayFileColumnIterator) Init(opts *ColumnIteratorOptions) error {
	if err := it.offsetIter.Init(opts); err != nil {
		return err
	}
	if err := it.itemIter.Init(opts); err != nil {
		return err
	}
	if it.nullIter != nil {
		if err := it.nullIter.Init(opts); err != nil {
			return err
		}
	}
	return nil
}

func (it *arrayFileColumnIterator) SeekToFirst() error {
	if err := it.offsetIter.SeekToFirst(); err != nil {
		return err
	}
	if err := it.itemIter.SeekToFirst(); err != nil {
		return err
	}
	if it.nullIter != nil {
		return it.nullIter.SeekToFirst()
	}
	return nil
}

func (it *arrayFileColumnIterator) SeekToOrdinal(int64) error {
	return fmt.Errorf("ordinal seek on an ARRAY column: %w", ErrNotSupported)
}

func (it *arrayFileColumnIterator) SeekToPageStart() error {
	return fmt.Errorf("page seek on an ARRAY column: %w", ErrNotSupported)
}

func (it *arrayFileColumnIterator) CurrentOrdinal() int64 {
	return it.offsetIter.CurrentOrdinal()
}

func (it *arrayFileColumnIterator) NextBatch(n *int, dst *BlockView, hasNull *bool) error {
	arrayBlock := dst.Block().Array()
	if arrayBlock == nil {
		return fmt.Errorf("array batch into a scalar block: %w", ErrInternal)
	}
	start := dst.CurrentOffset()

	// 1. read n per-array lengths into the offset slot after the base
	// entry; the block then folds them into cumulative offsets
	offsetView := NewBlockView(arrayBlock.Offsets(), start+1)
	offsetHasNull := false
	if err := it.offsetIter.NextBatch(n, offsetView, &offsetHasNull); err != nil {
		return err
	}
	if offsetHasNull {
		return fmt.Errorf("null entry in the offsets column: %w", ErrCorruption)
	}
	if *n == 0 {
		*hasNull = false
		return nil
	}
	arrayBlock.OffsetsFromLengths(start, *n)

	// 2. read the per-array null markers; hasNull signals nullability of
	// the column, not null presence in this batch
	if it.nullIter != nil {
		nullView := NewBlockView(arrayBlock.Nulls(), start)
		nullCount := *n
		markerHasNull := false
		if err := it.nullIter.NextBatch(&nullCount, nullView, &markerHasNull); err != nil {
			return err
		}
		if markerHasNull || nullCount != *n {
			return fmt.Errorf("bad null marker column, %d markers for %d arrays: %w",
				nullCount, *n, ErrCorruption)
		}
		*hasNull = true
	} else {
		*hasNull = false
	}

	// 3. read the items; grow the item block when the batch overflows it
	itemCount := arrayBlock.ItemCount(start, *n)
	rebuildFromZero := false
	if end := arrayBlock.ItemOffset(start + *n); arrayBlock.Items().Capacity() < end {
		arrayBlock.Items().resize(end)
		rebuildFromZero = true
	}
	if itemCount > 0 {
		itemView := NewBlockView(arrayBlock.Items(), arrayBlock.ItemOffset(start))
		itemHasNull := false
		realRead := itemCount
		if err := it.itemIter.NextBatch(&realRead, itemView, &itemHasNull); err != nil {
			return err
		}
		if realRead != itemCount {
			return fmt.Errorf("item column produced %d of %d items: %w",
				realRead, itemCount, ErrCorruption)
		}
	}

	rebuildStart, rebuildCount := start, *n
	if rebuildFromZero {
		rebuildStart, rebuildCount = 0, start+*n
	}
	if err := arrayBlock.prepareForRead(rebuildStart, rebuildCount); err != nil {
		return err
	}

	dst.Advance(*n)
	return nil
}

func (it *arrayFileColumnIterator) NextBatchVector(*int, *VectorColumn, *bool) error {
	return fmt.Errorf("vectorized read on an ARRAY column: %w", ErrNotSupported)
}

// pushdown is a no-op on ARRAY columns, the candidate ranges are left
// untouched

func (it *arrayFileColumnIterator) GetRowRangesByZoneMap(Condition, DeleteCondition, *RowRanges) error {
	return nil
}

func (it *arrayFileColumnIterator) GetRowRangesByBloomFilter(Condition, *RowRanges) error {
	return nil
}

var (
	_ ColumnIterator = (*arrayFileColumnIterator)(nil)
)
