// Package format defines the Go representation of the segment file metadata.
//
// The structures in this package map one-to-one to the thrift messages
// persisted in segment files; they are serialized with the thrift compact
// protocol (github.com/segmentio/encoding/thrift).
package format

// Type is the storage type of a column.
type Type int32

const (
	TypeBoolean Type = iota + 1
	TypeTinyInt
	TypeSmallInt
	TypeInt
	TypeBigInt
	TypeLargeInt
	TypeUnsignedInt
	TypeFloat
	TypeDouble
	TypeDate
	TypeDatetime
	TypeDecimal
	TypeChar
	TypeVarchar
	TypeString
	TypeHLL
	TypeObject
	TypeArray
)

func (t Type) String() string {
	switch t {
	case TypeBoolean:
		return "BOOLEAN"
	case TypeTinyInt:
		return "TINYINT"
	case TypeSmallInt:
		return "SMALLINT"
	case TypeInt:
		return "INT"
	case TypeBigInt:
		return "BIGINT"
	case TypeLargeInt:
		return "LARGEINT"
	case TypeUnsignedInt:
		return "UNSIGNED_INT"
	case TypeFloat:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeDate:
		return "DATE"
	case TypeDatetime:
		return "DATETIME"
	case TypeDecimal:
		return "DECIMAL"
	case TypeChar:
		return "CHAR"
	case TypeVarchar:
		return "VARCHAR"
	case TypeString:
		return "STRING"
	case TypeHLL:
		return "HLL"
	case TypeObject:
		return "OBJECT"
	case TypeArray:
		return "ARRAY"
	default:
		return "Type(?)"
	}
}

// Encoding identifies the encoding of a data or dictionary page.
type Encoding int32

const (
	EncodingPlain Encoding = iota + 1
	EncodingRunLength
	EncodingDictionary
)

func (e Encoding) String() string {
	switch e {
	case EncodingPlain:
		return "PLAIN"
	case EncodingRunLength:
		return "RLE"
	case EncodingDictionary:
		return "DICTIONARY"
	default:
		return "Encoding(?)"
	}
}

// Compression identifies the codec applied to page bodies.
type Compression int32

const (
	CompressionUncompressed Compression = iota
	CompressionSnappy
	CompressionGzip
	CompressionLZ4
	CompressionZstd
	CompressionBrotli
)

func (c Compression) String() string {
	switch c {
	case CompressionUncompressed:
		return "UNCOMPRESSED"
	case CompressionSnappy:
		return "SNAPPY"
	case CompressionGzip:
		return "GZIP"
	case CompressionLZ4:
		return "LZ4"
	case CompressionZstd:
		return "ZSTD"
	case CompressionBrotli:
		return "BROTLI"
	default:
		return "Compression(?)"
	}
}

// IndexType identifies the kind of a column index.
type IndexType int32

const (
	OrdinalIndex IndexType = iota + 1
	ZoneMapIndex
	BitmapIndex
	BloomFilterIndex
)

func (t IndexType) String() string {
	switch t {
	case OrdinalIndex:
		return "ORDINAL"
	case ZoneMapIndex:
		return "ZONE_MAP"
	case BitmapIndex:
		return "BITMAP"
	case BloomFilterIndex:
		return "BLOOM_FILTER"
	default:
		return "IndexType(?)"
	}
}

// PageType identifies the kind of a page; it selects which sub-footer of
// PageFooter is populated.
type PageType int32

const (
	DataPage PageType = iota + 1
	IndexPage
	DictionaryPage
)

func (t PageType) String() string {
	switch t {
	case DataPage:
		return "DATA_PAGE"
	case IndexPage:
		return "INDEX_PAGE"
	case DictionaryPage:
		return "DICTIONARY_PAGE"
	default:
		return "PageType(?)"
	}
}

// PagePointer locates a page within the segment file.
type PagePointer struct {
	Offset int64 `thrift:"1,required"`
	Size   int32 `thrift:"2,required"`
}

// Zero reports whether the pointer does not reference a page.
func (p PagePointer) Zero() bool { return p.Offset == 0 && p.Size == 0 }

// ColumnMeta describes one column of a segment. For ARRAY columns the
// children are, in order: item, offsets, and (when nullable) nulls.
type ColumnMeta struct {
	ColumnID    int32        `thrift:"1,required"`
	Type        Type         `thrift:"2,required"`
	Length      int32        `thrift:"3"`
	Encoding    Encoding     `thrift:"4,required"`
	Compression Compression  `thrift:"5"`
	IsNullable  bool         `thrift:"6"`
	NumRows     int64        `thrift:"7,required"`
	DictPage    *PagePointer `thrift:"8,optional"`
	Indexes     []IndexMeta  `thrift:"9"`
	Children    []ColumnMeta `thrift:"10"`
}

// IndexMeta references one index of a column. Zone map index metas carry
// the segment-level zone map inline so that segment pruning does not read
// the index page.
type IndexMeta struct {
	Type           IndexType   `thrift:"1,required"`
	Page           PagePointer `thrift:"2,required"`
	SegmentZoneMap *ZoneMap    `thrift:"3,optional"`
}

// ZoneMap summarizes the value domain of one page or of the whole segment.
// Min and Max hold the string rendering of the bounds and are only
// meaningful when HasNotNull is set.
type ZoneMap struct {
	Min        []byte `thrift:"1"`
	Max        []byte `thrift:"2"`
	HasNull    bool   `thrift:"3"`
	HasNotNull bool   `thrift:"4"`
	PassAll    bool   `thrift:"5"`
}

// PageFooter trails every page in the segment file.
type PageFooter struct {
	Type             PageType         `thrift:"1,required"`
	UncompressedSize int32            `thrift:"2,required"`
	Data             *DataPageFooter  `thrift:"3,optional"`
	Index            *IndexPageFooter `thrift:"4,optional"`
	Dict             *DictPageFooter  `thrift:"5,optional"`
}

// DataPageFooter describes a data page: the ordinal range covered and the
// size of the trailing null bitmap within the page body (zero when the page
// holds no nulls).
type DataPageFooter struct {
	FirstOrdinal int64    `thrift:"1,required"`
	NumValues    int64    `thrift:"2,required"`
	NullmapSize  int32    `thrift:"3"`
	Encoding     Encoding `thrift:"4,required"`
}

// IndexPageFooter describes an index page.
type IndexPageFooter struct {
	Index IndexType `thrift:"1,required"`
}

// DictPageFooter describes a column dictionary page.
type DictPageFooter struct {
	Encoding  Encoding `thrift:"1,required"`
	NumValues int32    `thrift:"2,required"`
}

// OrdinalIndexPage is the body of an ordinal index page: one entry per data
// page, ordered by first ordinal.
type OrdinalIndexPage struct {
	FirstOrdinals []int64       `thrift:"1,required"`
	Pages         []PagePointer `thrift:"2,required"`
}

// ZoneMapIndexPage is the body of a zone map index page: one zone map per
// data page, in page order.
type ZoneMapIndexPage struct {
	ZoneMaps []ZoneMap `thrift:"1,required"`
}

// BloomFilterIndexPage is the body of a bloom filter index page: one filter
// page pointer per data page, in page order. The filters themselves are
// stored as separate pages so that only probed pages are ever read.
type BloomFilterIndexPage struct {
	HashStrategy int32         `thrift:"1"`
	Pages        []PagePointer `thrift:"2,required"`
}

// BitmapIndexPage is the body of a bitmap index page: the sorted value
// dictionary and one serialized roaring bitmap of ordinals per value.
type BitmapIndexPage struct {
	Keys    [][]byte `thrift:"1,required"`
	Bitmaps [][]byte `thrift:"2,required"`
}
