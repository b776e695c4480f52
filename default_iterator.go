package segment

import (
	"fmt"

	"github.com/vesseldb/segment-go/format"
)

// DefaultValueColumnIterator synthesizes a constant stream for a column
// absent from the segment, so that readers of an evolved schema see the
// column's default value (or nulls) instead of failing.
type DefaultValueColumnIterator struct {
	hasDefault   bool
	defaultValue string
	isNullable   bool
	typeInfo     *TypeInfo
	schemaLength int

	isDefaultNull  bool
	memValue       []byte
	currentOrdinal int64
}

// NewDefaultValueColumnIterator constructs an iterator producing the
// column's default. For fixed length CHAR columns schemaLength is the
// declared column length.
func NewDefaultValueColumnIterator(typeInfo *TypeInfo, hasDefault bool, defaultValue string,
	isNullable bool, schemaLength int) *DefaultValueColumnIterator {
	return &DefaultValueColumnIterator{
		hasDefault:   hasDefault,
		defaultValue: defaultValue,
		isNullable:   isNullable,
		typeInfo:     typeInfo,
		schemaLength: schemaLength,
	}
}

func (it *DefaultValueColumnIterator) Init(*ColumnIteratorOptions) error {
	// "NULL" is the special default meaning the default value is null
	if it.hasDefault {
		if it.defaultValue == "NULL" {
			if !it.isNullable {
				return fmt.Errorf("null default on a non-nullable column: %w", ErrInternal)
			}
			it.isDefaultNull = true
			return nil
		}
		switch it.typeInfo.Type() {
		case format.TypeChar:
			// zero-padded to the declared column length
			value := make([]byte, it.schemaLength)
			copy(value, it.defaultValue)
			it.memValue = value
		case format.TypeVarchar, format.TypeHLL, format.TypeObject, format.TypeString:
			it.memValue = []byte(it.defaultValue)
		case format.TypeArray:
			return fmt.Errorf("ARRAY default value: %w", ErrNotSupported)
		default:
			value, err := it.typeInfo.FromString(it.defaultValue)
			if err != nil {
				return err
			}
			it.memValue = value
		}
		return nil
	}
	if it.isNullable {
		// no default on a nullable column reads as null
		it.isDefaultNull = true
		return nil
	}
	return fmt.Errorf("no default value for a non-nullable column: %w", ErrInternal)
}

func (it *DefaultValueColumnIterator) SeekToFirst() error {
	it.currentOrdinal = 0
	return nil
}

func (it *DefaultValueColumnIterator) SeekToOrdinal(ord int64) error {
	it.currentOrdinal = ord
	return nil
}

func (it *DefaultValueColumnIterator) SeekToPageStart() error { return nil }

func (it *DefaultValueColumnIterator) CurrentOrdinal() int64 { return it.currentOrdinal }

func (it *DefaultValueColumnIterator) NextBatch(n *int, dst *BlockView, hasNull *bool) error {
	if dst.Block().IsNullable() {
		dst.SetNullBits(*n, it.isDefaultNull)
	}
	if it.isDefaultNull {
		*hasNull = true
		dst.Advance(*n)
	} else {
		*hasNull = false
		if it.typeInfo.IsVarLen() {
			for i := 0; i < *n; i++ {
				dst.writeBytes([][]byte{it.memValue})
				dst.Advance(1)
			}
		} else {
			for i := 0; i < *n; i++ {
				dst.writeFixed(it.memValue)
				dst.Advance(1)
			}
		}
	}
	it.currentOrdinal += int64(*n)
	return nil
}

func (it *DefaultValueColumnIterator) NextBatchVector(n *int, dst *VectorColumn, hasNull *bool) error {
	if it.isDefaultNull {
		*hasNull = true
		dst.InsertManyDefaults(*n)
	} else {
		*hasNull = false
		it.insertDefaultData(dst, *n)
	}
	it.currentOrdinal += int64(*n)
	return nil
}

func (it *DefaultValueColumnIterator) insertDefaultData(dst *VectorColumn, n int) {
	switch it.typeInfo.Type() {
	case format.TypeObject, format.TypeHLL:
		// complex aggregate states start from their empty value
		dst.InsertManyDefaults(n)
	default:
		// temporal and decimal defaults are already materialized in their
		// canonical cell form
		dst.InsertData(it.memValue, n)
	}
}

func (it *DefaultValueColumnIterator) GetRowRangesByZoneMap(Condition, DeleteCondition, *RowRanges) error {
	return nil
}

func (it *DefaultValueColumnIterator) GetRowRangesByBloomFilter(Condition, *RowRanges) error {
	return nil
}

var (
	_ ColumnIterator = (*DefaultValueColumnIterator)(nil)
)
