package segment

import (
	"errors"
	"sync"
	"testing"

	"github.com/vesseldb/segment-go/format"
)

func TestScalarNullableScan(t *testing.T) {
	// 10000 rows, a null every 5th row: 4 non-null then 1 null
	const numRows = 10000
	values := int32Column(numRows, func(i int) bool { return i%5 == 4 })
	meta, block := buildColumn(t, columnSpec{
		columnID:    1,
		typ:         format.TypeInt,
		encoding:    format.EncodingPlain,
		nullable:    true,
		rowsPerPage: 1000,
		values:      values,
	})

	reader, err := NewColumnReader(ColumnReaderOptions{VerifyChecksum: true}, meta, numRows, block)
	if err != nil {
		t.Fatal(err)
	}
	it, _ := newTestIterator(t, reader, block, false)
	if err := it.SeekToFirst(); err != nil {
		t.Fatal(err)
	}

	typeInfo := intTypeInfo(t)
	totalRows, totalNulls := 0, 0
	for {
		dst := NewColumnBlock(typeInfo, true, 1024)
		view := NewBlockView(dst, 0)
		n := 1024
		hasNull := false
		if err := it.NextBatch(&n, view, &hasNull); err != nil {
			t.Fatal(err)
		}
		if n == 0 {
			break
		}
		if !hasNull {
			t.Fatalf("batch at ordinal %d reported no nulls", totalRows)
		}
		for i := 0; i < n; i++ {
			ord := totalRows + i
			cell := dst.CellAt(i)
			if want := values[ord]; want.Null != cell.Null {
				t.Fatalf("ordinal %d: null=%v, want %v", ord, cell.Null, want.Null)
			} else if !want.Null && int32Of(cell) != int32(ord) {
				t.Fatalf("ordinal %d: value %d, want %d", ord, int32Of(cell), ord)
			}
			if cell.Null {
				totalNulls++
			}
		}
		totalRows += n
	}
	if totalRows != numRows {
		t.Fatalf("scanned %d rows, want %d", totalRows, numRows)
	}
	if totalNulls != numRows/5 {
		t.Fatalf("scanned %d nulls, want %d", totalNulls, numRows/5)
	}
	if got := it.CurrentOrdinal(); got != numRows {
		t.Fatalf("iterator stopped at ordinal %d, want %d", got, numRows)
	}
}

func TestScalarVectorizedScan(t *testing.T) {
	const numRows = 3000
	values := int32Column(numRows, func(i int) bool { return i%7 == 3 })
	meta, block := buildColumn(t, columnSpec{
		columnID:    1,
		typ:         format.TypeInt,
		encoding:    format.EncodingPlain,
		nullable:    true,
		rowsPerPage: 500,
		values:      values,
	})
	reader, err := NewColumnReader(ColumnReaderOptions{VerifyChecksum: true}, meta, numRows, block)
	if err != nil {
		t.Fatal(err)
	}
	it, stats := newTestIterator(t, reader, block, false)
	if err := it.SeekToFirst(); err != nil {
		t.Fatal(err)
	}

	dst := NewVectorColumn(intTypeInfo(t), true)
	read := 0
	for {
		n := 700
		hasNull := false
		if err := it.NextBatchVector(&n, dst, &hasNull); err != nil {
			t.Fatal(err)
		}
		if n == 0 {
			break
		}
		read += n
	}
	if read != numRows || dst.NumRows() != numRows {
		t.Fatalf("read %d rows into %d cells, want %d", read, dst.NumRows(), numRows)
	}
	for i := 0; i < numRows; i++ {
		cell := dst.CellAt(i)
		if want := values[i]; want.Null != cell.Null {
			t.Fatalf("ordinal %d: null=%v, want %v", i, cell.Null, want.Null)
		} else if !want.Null && int32Of(cell) != int32(i) {
			t.Fatalf("ordinal %d: value %d, want %d", i, int32Of(cell), i)
		}
	}
	if stats.BytesRead == 0 || stats.RowsRead != numRows {
		t.Fatalf("stats not accumulated: %+v", stats)
	}
}

func TestSeekToOrdinalAndBack(t *testing.T) {
	const numRows = 2000
	values := int32Column(numRows, func(i int) bool { return i%5 == 4 })
	meta, block := buildColumn(t, columnSpec{
		columnID:    1,
		typ:         format.TypeInt,
		encoding:    format.EncodingPlain,
		nullable:    true,
		rowsPerPage: 1000,
		values:      values,
	})
	reader, err := NewColumnReader(ColumnReaderOptions{VerifyChecksum: true}, meta, numRows, block)
	if err != nil {
		t.Fatal(err)
	}
	it, _ := newTestIterator(t, reader, block, false)
	if err := it.SeekToFirst(); err != nil {
		t.Fatal(err)
	}

	typeInfo := intTypeInfo(t)
	readRows := func(n int) *ColumnBlock {
		dst := NewColumnBlock(typeInfo, true, n)
		view := NewBlockView(dst, 0)
		hasNull := false
		got := n
		if err := it.NextBatch(&got, view, &hasNull); err != nil {
			t.Fatal(err)
		}
		if got != n {
			t.Fatalf("read %d rows, want %d", got, n)
		}
		return dst
	}

	readRows(500)

	// seek back into the already-loaded first page: the null decoder must
	// rewind and the batch must equal ordinals [100,150)
	if err := it.SeekToOrdinal(100); err != nil {
		t.Fatal(err)
	}
	dst := readRows(50)
	for i := 0; i < 50; i++ {
		ord := 100 + i
		cell := dst.CellAt(i)
		if want := values[ord]; want.Null != cell.Null {
			t.Fatalf("ordinal %d: null=%v, want %v", ord, cell.Null, want.Null)
		} else if !want.Null && int32Of(cell) != int32(ord) {
			t.Fatalf("ordinal %d: value %d, want %d", ord, int32Of(cell), ord)
		}
	}

	// seeking to the same ordinal twice produces identical batches
	if err := it.SeekToOrdinal(1500); err != nil {
		t.Fatal(err)
	}
	first := readRows(100)
	if err := it.SeekToOrdinal(1500); err != nil {
		t.Fatal(err)
	}
	second := readRows(100)
	for i := 0; i < 100; i++ {
		a, b := first.CellAt(i), second.CellAt(i)
		if a.Null != b.Null || (!a.Null && int32Of(a) != int32Of(b)) {
			t.Fatalf("row %d differs between identical seeks", i)
		}
	}
}

func TestSeekToPageStart(t *testing.T) {
	const numRows = 300
	values := int32Column(numRows, nil)
	meta, block := buildColumn(t, columnSpec{
		columnID:    1,
		typ:         format.TypeInt,
		encoding:    format.EncodingPlain,
		rowsPerPage: 100,
		values:      values,
	})
	reader, err := NewColumnReader(ColumnReaderOptions{VerifyChecksum: true}, meta, numRows, block)
	if err != nil {
		t.Fatal(err)
	}
	it, _ := newTestIterator(t, reader, block, false)
	if err := it.SeekToOrdinal(150); err != nil {
		t.Fatal(err)
	}
	if err := it.SeekToPageStart(); err != nil {
		t.Fatal(err)
	}
	if got := it.CurrentOrdinal(); got != 100 {
		t.Fatalf("page start at ordinal %d, want 100", got)
	}
}

// countingCondition records how many times Eval runs.
type countingCondition struct {
	RangeCondition
	evals int
}

func (c *countingCondition) Eval(min, max Cell) bool {
	c.evals++
	return c.RangeCondition.Eval(min, max)
}

func TestZoneMapPushdown(t *testing.T) {
	typeInfo := intTypeInfo(t)
	// page zone maps: [1..10], pass all, [21..30], empty
	override := []format.ZoneMap{
		{Min: []byte("1"), Max: []byte("10"), HasNotNull: true},
		{PassAll: true, HasNotNull: true, Min: []byte("11"), Max: []byte("20")},
		{Min: []byte("21"), Max: []byte("30"), HasNotNull: true},
		{},
	}
	meta, block := buildColumn(t, columnSpec{
		columnID:        1,
		typ:             format.TypeInt,
		encoding:        format.EncodingPlain,
		rowsPerPage:     10,
		values:          int32Column(40, nil),
		zoneMapOverride: override,
	})
	reader, err := NewColumnReader(ColumnReaderOptions{VerifyChecksum: true}, meta, 40, block)
	if err != nil {
		t.Fatal(err)
	}

	cond := &countingCondition{RangeCondition: RangeCondition{
		Type:  typeInfo,
		Lower: int32Cell(15),
	}}
	ranges := NewRowRanges()
	if err := reader.GetRowRangesByZoneMap(cond, nil, ranges); err != nil {
		t.Fatal(err)
	}
	// pages 1 (pass all) and 2 survive; their ordinal spans are adjacent
	if ranges.RangeCount() != 1 || ranges.From(0) != 10 || ranges.To(0) != 30 {
		t.Fatalf("accepted ranges %s, want {[10,30)}", ranges)
	}
	// the pass-all page must not have invoked the condition
	if cond.evals != 2 {
		t.Fatalf("condition evaluated %d times, want 2 (pages 0 and 2)", cond.evals)
	}
}

func TestZoneMapPushdownTrueConditionCoversColumn(t *testing.T) {
	const numRows = 4000
	meta, block := buildColumn(t, columnSpec{
		columnID:    1,
		typ:         format.TypeInt,
		encoding:    format.EncodingPlain,
		rowsPerPage: 1000,
		zoneMap:     true,
		values:      int32Column(numRows, nil),
	})
	reader, err := NewColumnReader(ColumnReaderOptions{VerifyChecksum: true}, meta, numRows, block)
	if err != nil {
		t.Fatal(err)
	}
	ranges := NewRowRanges()
	if err := reader.GetRowRangesByZoneMap(nil, nil, ranges); err != nil {
		t.Fatal(err)
	}
	if ranges.RangeCount() != 1 || ranges.From(0) != 0 || ranges.To(0) != numRows {
		t.Fatalf("ranges %s, want the full column [0,%d)", ranges, numRows)
	}
}

func TestZoneMapPushdownDeleteCondition(t *testing.T) {
	typeInfo := intTypeInfo(t)
	const numRows = 2000
	meta, block := buildColumn(t, columnSpec{
		columnID:    1,
		typ:         format.TypeInt,
		encoding:    format.EncodingPlain,
		rowsPerPage: 1000,
		zoneMap:     true,
		values:      int32Column(numRows, nil),
	})
	reader, err := NewColumnReader(ColumnReaderOptions{VerifyChecksum: true}, meta, numRows, block)
	if err != nil {
		t.Fatal(err)
	}
	// delete everything below 1000: the whole first page is deleted
	deleteCond := NewLessCondition(typeInfo, int32Cell(1000), false)
	ranges := NewRowRanges()
	if err := reader.GetRowRangesByZoneMap(nil, deleteCond, ranges); err != nil {
		t.Fatal(err)
	}
	if ranges.RangeCount() != 1 || ranges.From(0) != 1000 || ranges.To(0) != numRows {
		t.Fatalf("ranges %s, want {[1000,%d)}", ranges, numRows)
	}
}

func TestMatchCondition(t *testing.T) {
	typeInfo := intTypeInfo(t)
	const numRows = 100
	meta, block := buildColumn(t, columnSpec{
		columnID:    1,
		typ:         format.TypeInt,
		encoding:    format.EncodingPlain,
		zoneMap:     true,
		rowsPerPage: 100,
		values:      int32Column(numRows, nil), // values 0..99
	})
	reader, err := NewColumnReader(ColumnReaderOptions{VerifyChecksum: true}, meta, numRows, block)
	if err != nil {
		t.Fatal(err)
	}

	if !reader.MatchCondition(nil) {
		t.Fatal("nil condition must match")
	}
	within := NewEqualCondition(typeInfo, int32Cell(50))
	if !reader.MatchCondition(within) {
		t.Fatal("condition within [0,99] must match the segment zone map")
	}
	refuted := NewGreaterCondition(typeInfo, int32Cell(1000), false)
	if reader.MatchCondition(refuted) {
		t.Fatal("condition above the segment max must be refuted")
	}
}

func TestBloomFilterPushdownIntersection(t *testing.T) {
	typeInfo := intTypeInfo(t)
	const numRows = 300
	meta, block := buildColumn(t, columnSpec{
		columnID:    1,
		typ:         format.TypeInt,
		encoding:    format.EncodingPlain,
		rowsPerPage: 100,
		bloomFilter: true,
		values:      int32Column(numRows, nil),
	})
	reader, err := NewColumnReader(ColumnReaderOptions{VerifyChecksum: true}, meta, numRows, block)
	if err != nil {
		t.Fatal(err)
	}

	// 150 lives in page 1 and 250 in page 2; page 0 holds neither
	cond := &RangeCondition{
		Type:   typeInfo,
		Values: [][]byte{int32Cell(150), int32Cell(250)},
	}
	ranges := NewSingleRowRanges(0, 300)
	if err := reader.GetRowRangesByBloomFilter(cond, ranges); err != nil {
		t.Fatal(err)
	}
	if ranges.RangeCount() != 1 || ranges.From(0) != 100 || ranges.To(0) != 300 {
		t.Fatalf("ranges %s, want {[100,300)}", ranges)
	}
}

func TestDictionaryPageLoadedOncePerIterator(t *testing.T) {
	words := []string{"tinos", "lesvos", "naxos", "paros"}
	values := make([]Cell, 900)
	for i := range values {
		values[i] = Cell{Bytes: []byte(words[i%len(words)])}
	}
	cache := NewPageCache(DefaultPageCacheCapacity)
	meta, block := buildColumn(t, columnSpec{
		columnID:    1,
		typ:         format.TypeVarchar,
		encoding:    format.EncodingDictionary,
		rowsPerPage: 300,
		values:      values,
	})
	reader, err := NewColumnReader(ColumnReaderOptions{VerifyChecksum: true, Cache: cache}, meta, int64(len(values)), block)
	if err != nil {
		t.Fatal(err)
	}

	typeInfo, err := TypeInfoOf(format.TypeVarchar)
	if err != nil {
		t.Fatal(err)
	}
	scan := func(it ColumnIterator) int {
		if err := it.SeekToFirst(); err != nil {
			t.Fatal(err)
		}
		total := 0
		for {
			dst := NewColumnBlock(typeInfo, false, 256)
			view := NewBlockView(dst, 0)
			n := 256
			hasNull := false
			if err := it.NextBatch(&n, view, &hasNull); err != nil {
				t.Fatal(err)
			}
			if n == 0 {
				return total
			}
			for i := 0; i < n; i++ {
				want := words[(total+i)%len(words)]
				if got := string(dst.CellAt(i).Bytes); got != want {
					t.Fatalf("ordinal %d: %q, want %q", total+i, got, want)
				}
			}
			total += n
		}
	}

	it1, stats1 := newTestIterator(t, reader, block, true)
	if n := scan(it1); n != len(values) {
		t.Fatalf("scanned %d rows, want %d", n, len(values))
	}
	// 3 data pages plus exactly one dictionary page
	if stats1.PagesRead != 4 {
		t.Fatalf("first iterator read %d pages, want 4", stats1.PagesRead)
	}

	// a second iterator of the same reader hits the page cache for both
	// the data pages and the dictionary page
	it2, stats2 := newTestIterator(t, reader, block, true)
	if n := scan(it2); n != len(values) {
		t.Fatalf("scanned %d rows, want %d", n, len(values))
	}
	if stats2.PagesRead != 0 || stats2.CachedPagesRead != 4 {
		t.Fatalf("second iterator read %d uncached / %d cached pages, want 0/4",
			stats2.PagesRead, stats2.CachedPagesRead)
	}
}

func TestEmptyColumn(t *testing.T) {
	meta := format.ColumnMeta{
		ColumnID: 7,
		Type:     format.TypeInt,
		Encoding: format.EncodingPlain,
		NumRows:  0,
	}
	block := &memBlock{data: []byte("SEGMv1\x00\x00")}
	reader, err := NewColumnReader(ColumnReaderOptions{}, meta, 0, block)
	if err != nil {
		t.Fatal(err)
	}
	it, _ := newTestIterator(t, reader, block, false)
	if _, ok := it.(*emptyFileColumnIterator); !ok {
		t.Fatalf("iterator of an empty column is %T, want the empty iterator", it)
	}
	if err := it.SeekToOrdinal(0); err != nil {
		t.Fatal(err)
	}
	n := 128
	hasNull := true
	if err := it.NextBatch(&n, nil, &hasNull); err != nil {
		t.Fatal(err)
	}
	if n != 0 || hasNull {
		t.Fatalf("empty column produced %d rows, hasNull=%v", n, hasNull)
	}
}

func TestInitErrors(t *testing.T) {
	base, block := buildColumn(t, columnSpec{
		columnID:    1,
		typ:         format.TypeInt,
		encoding:    format.EncodingPlain,
		rowsPerPage: 10,
		values:      int32Column(20, nil),
	})

	tests := []struct {
		scenario string
		mutate   func(meta format.ColumnMeta) format.ColumnMeta
		want     error
	}{
		{
			scenario: "missing ordinal index on a non-empty column",
			mutate: func(meta format.ColumnMeta) format.ColumnMeta {
				meta.Indexes = nil
				return meta
			},
			want: ErrCorruption,
		},
		{
			scenario: "duplicate index",
			mutate: func(meta format.ColumnMeta) format.ColumnMeta {
				meta.Indexes = append(meta.Indexes, meta.Indexes[0])
				return meta
			},
			want: ErrCorruption,
		},
		{
			scenario: "unknown index type",
			mutate: func(meta format.ColumnMeta) format.ColumnMeta {
				meta.Indexes = append(meta.Indexes, format.IndexMeta{Type: format.IndexType(99)})
				return meta
			},
			want: ErrCorruption,
		},
		{
			scenario: "unsupported composite type",
			mutate: func(meta format.ColumnMeta) format.ColumnMeta {
				meta.Type = format.Type(98)
				return meta
			},
			want: ErrNotSupported,
		},
	}
	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			_, err := NewColumnReader(ColumnReaderOptions{}, test.mutate(base), 20, block)
			if !errors.Is(err, test.want) {
				t.Fatalf("got %v, want %v", err, test.want)
			}
		})
	}
}

func TestChecksumMismatch(t *testing.T) {
	meta, block := buildColumn(t, columnSpec{
		columnID:    1,
		typ:         format.TypeInt,
		encoding:    format.EncodingPlain,
		rowsPerPage: 10,
		values:      int32Column(10, nil),
	})
	// flip a byte inside the first data page body
	block.data[10] ^= 0xFF

	reader, err := NewColumnReader(ColumnReaderOptions{VerifyChecksum: true}, meta, 10, block)
	if err != nil {
		t.Fatal(err)
	}
	it, _ := newTestIterator(t, reader, block, false)
	if err := it.SeekToFirst(); !errors.Is(err, ErrCorruption) {
		t.Fatalf("got %v, want a corruption error", err)
	}
}

func TestConcurrentIndexLoad(t *testing.T) {
	const numRows = 1000
	meta, block := buildColumn(t, columnSpec{
		columnID:    1,
		typ:         format.TypeInt,
		encoding:    format.EncodingPlain,
		rowsPerPage: 100,
		zoneMap:     true,
		bloomFilter: true,
		values:      int32Column(numRows, nil),
	})
	reader, err := NewColumnReader(ColumnReaderOptions{VerifyChecksum: true}, meta, numRows, block)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ranges := NewRowRanges()
			if err := reader.GetRowRangesByZoneMap(nil, nil, ranges); err != nil {
				t.Error(err)
				return
			}
			if ranges.Count() != numRows {
				t.Errorf("ranges cover %d rows, want %d", ranges.Count(), numRows)
			}
		}()
	}
	wg.Wait()
}

func TestCompressedColumnRoundTrip(t *testing.T) {
	compressions := []format.Compression{
		format.CompressionSnappy,
		format.CompressionLZ4,
		format.CompressionZstd,
		format.CompressionGzip,
		format.CompressionBrotli,
	}
	for _, compression := range compressions {
		t.Run(compression.String(), func(t *testing.T) {
			const numRows = 2048
			values := int32Column(numRows, func(i int) bool { return i%11 == 0 })
			meta, block := buildColumn(t, columnSpec{
				columnID:    1,
				typ:         format.TypeInt,
				encoding:    format.EncodingPlain,
				compression: compression,
				nullable:    true,
				rowsPerPage: 512,
				values:      values,
			})
			reader, err := NewColumnReader(ColumnReaderOptions{VerifyChecksum: true}, meta, numRows, block)
			if err != nil {
				t.Fatal(err)
			}
			it, _ := newTestIterator(t, reader, block, false)
			if err := it.SeekToOrdinal(1000); err != nil {
				t.Fatal(err)
			}
			dst := NewColumnBlock(intTypeInfo(t), true, 100)
			view := NewBlockView(dst, 0)
			n := 100
			hasNull := false
			if err := it.NextBatch(&n, view, &hasNull); err != nil {
				t.Fatal(err)
			}
			if n != 100 {
				t.Fatalf("read %d rows, want 100", n)
			}
			for i := 0; i < n; i++ {
				ord := 1000 + i
				cell := dst.CellAt(i)
				if want := values[ord]; want.Null != cell.Null {
					t.Fatalf("ordinal %d: null=%v, want %v", ord, cell.Null, want.Null)
				} else if !want.Null && int32Of(cell) != int32(ord) {
					t.Fatalf("ordinal %d: value %d, want %d", ord, int32Of(cell), ord)
				}
			}
		})
	}
}
