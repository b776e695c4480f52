// Package segment implements the read side of the columnar segment format:
// ordinal-addressable batched access to the encoded, compressed,
// checksummed pages of a column, with predicate pushdown to the per-page
// zone map, bloom filter and bitmap indexes.
//
// A segment is an immutable file produced by a writer. Programs construct a
// ColumnReader from a column's metadata, optionally narrow the scan with
// GetRowRangesByZoneMap and GetRowRangesByBloomFilter, then create an
// iterator and pull batches:
//
//	reader, err := segment.NewColumnReader(opts, meta, numRows, block)
//	...
//	it, err := reader.NewIterator()
//	...
//	err = it.Init(&segment.ColumnIteratorOptions{Block: block, Stats: &stats})
//	...
//	err = it.SeekToOrdinal(0)
//	for {
//		n := 1024
//		err := it.NextBatch(&n, view, &hasNull)
//		...
//	}
//
// A ColumnReader is safe for concurrent use; each iterator is owned by a
// single goroutine.
package segment
