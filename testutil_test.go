package segment

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"sort"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/thrift"

	"github.com/vesseldb/segment-go/bloom"
	"github.com/vesseldb/segment-go/encoding/dict"
	"github.com/vesseldb/segment-go/encoding/plain"
	"github.com/vesseldb/segment-go/encoding/rle"
	"github.com/vesseldb/segment-go/format"
	"github.com/vesseldb/segment-go/internal/bits"
)

// memBlock is an in-memory ReadableBlock for tests.
type memBlock struct {
	data []byte
	id   uuid.UUID
}

func (b *memBlock) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b.data)) {
		return 0, io.ErrUnexpectedEOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

func (b *memBlock) Path() string  { return "mem://test-segment" }
func (b *memBlock) ID() uuid.UUID { return b.id }

// segmentFile accumulates the pages of one test segment.
type segmentFile struct {
	t   *testing.T
	buf []byte
}

func newSegmentFile(t *testing.T) *segmentFile {
	// pad the start so that no real page sits at offset zero
	return &segmentFile{t: t, buf: []byte("SEGMv1\x00\x00")}
}

func (f *segmentFile) block() *memBlock {
	return &memBlock{data: f.buf, id: uuid.New()}
}

// appendPage writes one page in the on-disk envelope and returns its
// pointer. Codec nil stores the body uncompressed.
func (f *segmentFile) appendPage(body []byte, footer *format.PageFooter, compression format.Compression) format.PagePointer {
	f.t.Helper()
	footer.UncompressedSize = int32(len(body))

	stored := body
	if codec, err := codecOf(compression); err != nil {
		f.t.Fatal(err)
	} else if codec != nil {
		compressed, err := codec.Encode(nil, body)
		if err != nil {
			f.t.Fatal(err)
		}
		// a compressed body of the same length as the raw one is stored
		// raw: the reader decompresses only when the body length differs
		// from the footer's uncompressed size
		if len(compressed) != len(body) {
			stored = compressed
		}
	}

	footerBytes, err := thrift.Marshal(new(thrift.CompactProtocol), footer)
	if err != nil {
		f.t.Fatal(err)
	}

	page := make([]byte, 0, len(stored)+len(footerBytes)+8)
	page = append(page, stored...)
	page = append(page, footerBytes...)
	page = binary.LittleEndian.AppendUint32(page, uint32(len(footerBytes)))
	page = binary.LittleEndian.AppendUint32(page, crc32.Checksum(page, castagnoli))

	pp := format.PagePointer{Offset: int64(len(f.buf)), Size: int32(len(page))}
	f.buf = append(f.buf, page...)
	return pp
}

func (f *segmentFile) appendIndexPage(body []byte, index format.IndexType, compression format.Compression) format.PagePointer {
	return f.appendPage(body, &format.PageFooter{
		Type:  format.IndexPage,
		Index: &format.IndexPageFooter{Index: index},
	}, compression)
}

func (f *segmentFile) marshal(v interface{}) []byte {
	f.t.Helper()
	b, err := thrift.Marshal(new(thrift.CompactProtocol), v)
	if err != nil {
		f.t.Fatal(err)
	}
	return b
}

// columnSpec describes one test column.
type columnSpec struct {
	columnID    int32
	typ         format.Type
	encoding    format.Encoding
	compression format.Compression
	nullable    bool
	rowsPerPage int

	zoneMap         bool
	zoneMapOverride []format.ZoneMap
	segmentZoneMap  *format.ZoneMap
	bloomFilter     bool
	bloomBitsPerKey int
	bitmapIndex     bool

	values []Cell
}

// buildColumnInto writes the column's pages and indexes into f and returns
// its metadata.
func buildColumnInto(f *segmentFile, spec columnSpec) format.ColumnMeta {
	t := f.t
	t.Helper()

	typeInfo, err := TypeInfoOf(spec.typ)
	if err != nil {
		t.Fatal(err)
	}
	if spec.rowsPerPage <= 0 {
		spec.rowsPerPage = 1024
	}

	meta := format.ColumnMeta{
		ColumnID:    spec.columnID,
		Type:        spec.typ,
		Encoding:    spec.encoding,
		Compression: spec.compression,
		IsNullable:  spec.nullable,
		NumRows:     int64(len(spec.values)),
	}

	// dictionary coded columns share one word table across pages
	var dictWords [][]byte
	var dictCodes map[string]uint32
	if spec.encoding == format.EncodingDictionary {
		dictCodes = make(map[string]uint32)
		for _, c := range spec.values {
			if c.Null {
				continue
			}
			if _, ok := dictCodes[string(c.Bytes)]; !ok {
				dictCodes[string(c.Bytes)] = uint32(len(dictWords))
				dictWords = append(dictWords, c.Bytes)
			}
		}
	}

	var (
		firstOrdinals []int64
		pagePointers  []format.PagePointer
		zoneMaps      []format.ZoneMap
		bloomPages    []format.PagePointer
	)

	for first := 0; first < len(spec.values); first += spec.rowsPerPage {
		end := first + spec.rowsPerPage
		if end > len(spec.values) {
			end = len(spec.values)
		}
		chunk := spec.values[first:end]

		var nonNull []Cell
		hasNull := false
		for _, c := range chunk {
			if c.Null {
				hasNull = true
			} else {
				nonNull = append(nonNull, c)
			}
		}

		var valueBytes []byte
		switch {
		case spec.encoding == format.EncodingPlain && !typeInfo.IsVarLen():
			builder := plain.NewBuilder(typeInfo.Size())
			for _, c := range nonNull {
				builder.Add(c.Bytes)
			}
			valueBytes = builder.Bytes()
		case spec.encoding == format.EncodingPlain && typeInfo.IsVarLen():
			builder := plain.NewBinaryBuilder()
			for _, c := range nonNull {
				builder.Add(c.Bytes)
			}
			valueBytes = builder.Bytes()
		case spec.encoding == format.EncodingDictionary:
			bitWidth := uint(bits.Len32(int32(len(dictWords) - 1)))
			if bitWidth == 0 {
				bitWidth = 1
			}
			builder := dict.NewBuilder(bitWidth)
			for _, c := range nonNull {
				builder.Add(dictCodes[string(c.Bytes)])
			}
			valueBytes = builder.Bytes()
		default:
			t.Fatalf("unsupported test encoding %s for %s", spec.encoding, spec.typ)
		}

		nullmapSize := 0
		body := valueBytes
		if hasNull {
			enc := rle.NewEncoder(1)
			for _, c := range chunk {
				if c.Null {
					enc.Put(1)
				} else {
					enc.Put(0)
				}
			}
			bitmap := enc.Bytes()
			nullmapSize = len(bitmap)
			body = append(append([]byte{}, valueBytes...), bitmap...)
		}

		pp := f.appendPage(body, &format.PageFooter{
			Type: format.DataPage,
			Data: &format.DataPageFooter{
				FirstOrdinal: int64(first),
				NumValues:    int64(len(chunk)),
				NullmapSize:  int32(nullmapSize),
				Encoding:     spec.encoding,
			},
		}, spec.compression)

		firstOrdinals = append(firstOrdinals, int64(first))
		pagePointers = append(pagePointers, pp)

		if spec.zoneMap && spec.zoneMapOverride == nil {
			zoneMaps = append(zoneMaps, zoneMapOf(typeInfo, chunk))
		}
		if spec.bloomFilter {
			bitsPerKey := spec.bloomBitsPerKey
			if bitsPerKey == 0 {
				bitsPerKey = 16
			}
			filter := make(bloom.SplitBlockFilter, bloom.NumSplitBlocksOf(int64(len(nonNull)), bitsPerKey))
			hash := bloom.XXH64{}
			for _, c := range nonNull {
				filter.Insert(hash.Sum64(c.Bytes))
			}
			bloomPages = append(bloomPages, f.appendIndexPage(filter.Bytes(), format.BloomFilterIndex, spec.compression))
		}
	}

	if spec.encoding == format.EncodingDictionary {
		builder := plain.NewBinaryBuilder()
		for _, w := range dictWords {
			builder.Add(w)
		}
		pp := f.appendPage(builder.Bytes(), &format.PageFooter{
			Type: format.DictionaryPage,
			Dict: &format.DictPageFooter{
				Encoding:  format.EncodingPlain,
				NumValues: int32(len(dictWords)),
			},
		}, spec.compression)
		meta.DictPage = &pp
	}

	if len(spec.values) > 0 {
		pp := f.appendIndexPage(f.marshal(&format.OrdinalIndexPage{
			FirstOrdinals: firstOrdinals,
			Pages:         pagePointers,
		}), format.OrdinalIndex, spec.compression)
		meta.Indexes = append(meta.Indexes, format.IndexMeta{Type: format.OrdinalIndex, Page: pp})
	}

	if spec.zoneMapOverride != nil {
		zoneMaps = spec.zoneMapOverride
	}
	if spec.zoneMap || spec.zoneMapOverride != nil {
		pp := f.appendIndexPage(f.marshal(&format.ZoneMapIndexPage{ZoneMaps: zoneMaps}), format.ZoneMapIndex, spec.compression)
		segZone := spec.segmentZoneMap
		if segZone == nil {
			zm := zoneMapOf(typeInfo, spec.values)
			segZone = &zm
		}
		meta.Indexes = append(meta.Indexes, format.IndexMeta{
			Type:           format.ZoneMapIndex,
			Page:           pp,
			SegmentZoneMap: segZone,
		})
	}

	if spec.bloomFilter {
		pp := f.appendIndexPage(f.marshal(&format.BloomFilterIndexPage{Pages: bloomPages}), format.BloomFilterIndex, spec.compression)
		meta.Indexes = append(meta.Indexes, format.IndexMeta{Type: format.BloomFilterIndex, Page: pp})
	}

	if spec.bitmapIndex {
		bitmaps := make(map[string]*roaring.Bitmap)
		var keys [][]byte
		for ord, c := range spec.values {
			if c.Null {
				continue
			}
			bm, ok := bitmaps[string(c.Bytes)]
			if !ok {
				bm = roaring.New()
				bitmaps[string(c.Bytes)] = bm
				keys = append(keys, c.Bytes)
			}
			bm.Add(uint32(ord))
		}
		sort.Slice(keys, func(i, j int) bool { return typeInfo.Compare(keys[i], keys[j]) < 0 })
		page := &format.BitmapIndexPage{}
		for _, k := range keys {
			serialized, err := bitmaps[string(k)].ToBytes()
			if err != nil {
				t.Fatal(err)
			}
			page.Keys = append(page.Keys, k)
			page.Bitmaps = append(page.Bitmaps, serialized)
		}
		pp := f.appendIndexPage(f.marshal(page), format.BitmapIndex, spec.compression)
		meta.Indexes = append(meta.Indexes, format.IndexMeta{Type: format.BitmapIndex, Page: pp})
	}

	return meta
}

// buildColumn builds a single-column segment.
func buildColumn(t *testing.T, spec columnSpec) (format.ColumnMeta, *memBlock) {
	f := newSegmentFile(t)
	meta := buildColumnInto(f, spec)
	return meta, f.block()
}

func zoneMapOf(typeInfo *TypeInfo, cells []Cell) format.ZoneMap {
	zm := format.ZoneMap{}
	var min, max []byte
	for _, c := range cells {
		if c.Null {
			zm.HasNull = true
			continue
		}
		zm.HasNotNull = true
		if min == nil || typeInfo.Compare(c.Bytes, min) < 0 {
			min = c.Bytes
		}
		if max == nil || typeInfo.Compare(c.Bytes, max) > 0 {
			max = c.Bytes
		}
	}
	if zm.HasNotNull {
		zm.Min = []byte(typeInfo.ToString(min))
		zm.Max = []byte(typeInfo.ToString(max))
	}
	return zm
}

func int32Cell(v int32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func int32Of(c Cell) int32 {
	return int32(uint32(c.Bytes[0]) | uint32(c.Bytes[1])<<8 | uint32(c.Bytes[2])<<16 | uint32(c.Bytes[3])<<24)
}

func uint32CellBytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func boolCell(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// int32Column generates cells where row i holds int32(i), with nulls where
// isNull(i) is true.
func int32Column(numRows int, isNull func(int) bool) []Cell {
	cells := make([]Cell, numRows)
	for i := range cells {
		if isNull != nil && isNull(i) {
			cells[i] = NullCell()
		} else {
			cells[i] = Cell{Bytes: int32Cell(int32(i))}
		}
	}
	return cells
}

func intTypeInfo(t *testing.T) *TypeInfo {
	t.Helper()
	info, err := TypeInfoOf(format.TypeInt)
	if err != nil {
		t.Fatal(err)
	}
	return info
}

func newTestIterator(t *testing.T, reader *ColumnReader, block ReadableBlock, useCache bool) (ColumnIterator, *IteratorStats) {
	t.Helper()
	it, err := reader.NewIterator()
	if err != nil {
		t.Fatal(err)
	}
	stats := new(IteratorStats)
	if err := it.Init(&ColumnIteratorOptions{Block: block, Stats: stats, UsePageCache: useCache}); err != nil {
		t.Fatal(err)
	}
	return it, stats
}
