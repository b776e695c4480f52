package segment

import (
	"fmt"

	"github.com/vesseldb/segment-go/format"
)

// ColumnBlock is a caller-allocated, fixed-capacity destination for decoded
// values of one column. Fixed width types land in a flat cell buffer,
// variable length types in per-cell byte slices owned by the block.
//
// Blocks of ARRAY columns delegate their storage to an ArrayColumnBlock.
type ColumnBlock struct {
	typeInfo *TypeInfo
	nullable bool
	capacity int

	data   []byte   // fixed width cells, stride typeInfo.Size()
	values [][]byte // variable length cells
	nulls  []bool

	array *ArrayColumnBlock
}

// NewColumnBlock allocates a block for capacity rows of a scalar type.
func NewColumnBlock(typeInfo *TypeInfo, nullable bool, capacity int) *ColumnBlock {
	b := &ColumnBlock{typeInfo: typeInfo, nullable: nullable, capacity: capacity}
	if typeInfo.IsVarLen() {
		b.values = make([][]byte, capacity)
	} else {
		b.data = make([]byte, capacity*typeInfo.Size())
	}
	if nullable {
		b.nulls = make([]bool, capacity)
	}
	return b
}

// NewArrayColumnBlock allocates a block for capacity arrays whose items
// have the given type, with room for itemCapacity items.
func NewArrayColumnBlock(itemInfo *TypeInfo, nullable bool, capacity, itemCapacity int) *ColumnBlock {
	offsetInfo := typeInfos[format.TypeUnsignedInt]
	boolInfo := typeInfos[format.TypeBoolean]
	b := &ColumnBlock{nullable: nullable, capacity: capacity}
	b.array = &ArrayColumnBlock{
		itemInfo: itemInfo,
		nullable: nullable,
		offsets:  NewColumnBlock(offsetInfo, false, capacity+1),
		nulls:    NewColumnBlock(boolInfo, false, capacity),
		items:    NewColumnBlock(itemInfo, true, itemCapacity),
	}
	return b
}

// TypeInfo returns the type of the block's cells, nil for array blocks.
func (b *ColumnBlock) TypeInfo() *TypeInfo { return b.typeInfo }

// IsNullable reports whether the block carries a null bitmap.
func (b *ColumnBlock) IsNullable() bool { return b.nullable }

// Capacity returns the number of rows the block can hold.
func (b *ColumnBlock) Capacity() int { return b.capacity }

// Array returns the array storage of an array-typed block, nil otherwise.
func (b *ColumnBlock) Array() *ArrayColumnBlock { return b.array }

// IsNullAt reports whether row i holds a null.
func (b *ColumnBlock) IsNullAt(i int) bool {
	return b.nulls != nil && b.nulls[i]
}

// CellAt returns the cell of row i.
func (b *ColumnBlock) CellAt(i int) Cell {
	if b.IsNullAt(i) {
		return NullCell()
	}
	if b.typeInfo.IsVarLen() {
		return Cell{Bytes: b.values[i]}
	}
	size := b.typeInfo.Size()
	return Cell{Bytes: b.data[i*size : (i+1)*size]}
}

// resize grows the block to hold capacity rows, preserving content.
func (b *ColumnBlock) resize(capacity int) {
	if capacity <= b.capacity {
		return
	}
	if b.values != nil {
		values := make([][]byte, capacity)
		copy(values, b.values)
		b.values = values
	}
	if b.data != nil {
		data := make([]byte, capacity*b.typeInfo.Size())
		copy(data, b.data)
		b.data = data
	}
	if b.nulls != nil {
		nulls := make([]bool, capacity)
		copy(nulls, b.nulls)
		b.nulls = nulls
	}
	b.capacity = capacity
}

// BlockView is a positioned cursor over a ColumnBlock. Decoders write at
// the view's offset; the iterator stamps null bits and advances.
type BlockView struct {
	block  *ColumnBlock
	offset int
}

// NewBlockView returns a view positioned at the given row offset.
func NewBlockView(block *ColumnBlock, offset int) *BlockView {
	return &BlockView{block: block, offset: offset}
}

// Block returns the underlying block.
func (v *BlockView) Block() *ColumnBlock { return v.block }

// CurrentOffset returns the row position of the view.
func (v *BlockView) CurrentOffset() int { return v.offset }

// Remaining returns the number of rows between the view and the block
// capacity.
func (v *BlockView) Remaining() int { return v.block.capacity - v.offset }

// Advance moves the view forward by n rows.
func (v *BlockView) Advance(n int) { v.offset += n }

// SetNullBits stamps the null bits of the n rows at the view position.
func (v *BlockView) SetNullBits(n int, isNull bool) {
	if v.block.nulls == nil {
		return
	}
	for i := 0; i < n; i++ {
		v.block.nulls[v.offset+i] = isNull
	}
}

// writeFixed copies n cells of raw little-endian bytes at the view
// position without advancing.
func (v *BlockView) writeFixed(raw []byte) {
	copy(v.block.data[v.offset*v.block.typeInfo.Size():], raw)
}

// writeBytes stores variable length cells at the view position without
// advancing. The values are copied; the block owns its memory.
func (v *BlockView) writeBytes(vals [][]byte) {
	for i, val := range vals {
		v.block.values[v.offset+i] = append([]byte(nil), val...)
	}
}

// ArrayColumnBlock is the storage behind an array-typed ColumnBlock: a
// cumulative offset block with one extra base entry, per-array null
// markers, and a growable item block.
type ArrayColumnBlock struct {
	itemInfo *TypeInfo
	nullable bool
	offsets  *ColumnBlock // uint32 cells, one per array plus the base
	nulls    *ColumnBlock // bool cells, one per array
	items    *ColumnBlock
}

// ItemInfo returns the type of the array items.
func (b *ArrayColumnBlock) ItemInfo() *TypeInfo { return b.itemInfo }

// Offsets returns the offset block. Entry i is the item position of the
// first item of array i; entry i+1 of its end.
func (b *ArrayColumnBlock) Offsets() *ColumnBlock { return b.offsets }

// Nulls returns the per-array null marker block.
func (b *ArrayColumnBlock) Nulls() *ColumnBlock { return b.nulls }

// Items returns the item block.
func (b *ArrayColumnBlock) Items() *ColumnBlock { return b.items }

// ItemOffset returns the item position of the first item of array i.
func (b *ArrayColumnBlock) ItemOffset(i int) int {
	return int(uint32Cell(b.offsets, i))
}

// ItemCount returns the total number of items of the n arrays starting
// at array position start.
func (b *ArrayColumnBlock) ItemCount(start, n int) int {
	return b.ItemOffset(start+n) - b.ItemOffset(start)
}

// OffsetsFromLengths converts the n per-array lengths stored at offset
// positions [start+1, start+n] into cumulative offsets, using entry start
// as the base.
func (b *ArrayColumnBlock) OffsetsFromLengths(start, n int) {
	base := uint32Cell(b.offsets, start)
	for i := start + 1; i <= start+n; i++ {
		base += uint32Cell(b.offsets, i)
		putUint32Cell(b.offsets, i, base)
	}
}

// prepareForRead finalizes count arrays starting at start for reading,
// checking that their offsets are monotone and land inside the item block.
func (b *ArrayColumnBlock) prepareForRead(start, count int) error {
	for i := start; i < start+count; i++ {
		from, to := b.ItemOffset(i), b.ItemOffset(i+1)
		if to < from || to > b.items.Capacity() {
			return fmt.Errorf("array %d spans items [%d,%d) outside of the item block of %d: %w",
				i, from, to, b.items.Capacity(), ErrCorruption)
		}
	}
	return nil
}

// IsNullArrayAt reports whether array i is null.
func (b *ArrayColumnBlock) IsNullArrayAt(i int) bool {
	return b.nullable && b.nulls.data[i] != 0
}

// ArrayAt returns the cells of array i, nil when the array is null.
func (b *ArrayColumnBlock) ArrayAt(i int) []Cell {
	if b.IsNullArrayAt(i) {
		return nil
	}
	from, to := b.ItemOffset(i), b.ItemOffset(i+1)
	cells := make([]Cell, 0, to-from)
	for j := from; j < to; j++ {
		cells = append(cells, b.items.CellAt(j))
	}
	return cells
}

func uint32Cell(b *ColumnBlock, i int) uint32 {
	d := b.data[i*4:]
	return uint32(d[0]) | uint32(d[1])<<8 | uint32(d[2])<<16 | uint32(d[3])<<24
}

func putUint32Cell(b *ColumnBlock, i int, v uint32) {
	d := b.data[i*4:]
	d[0] = byte(v)
	d[1] = byte(v >> 8)
	d[2] = byte(v >> 16)
	d[3] = byte(v >> 24)
}
