package segment

// VectorColumn is a growable destination for decoded values, the
// vectorized counterpart of ColumnBlock. Nulls are represented by default
// entries plus the null marker slice.
type VectorColumn struct {
	typeInfo *TypeInfo
	nullable bool

	data   []byte
	values [][]byte
	nulls  []bool
	rows   int
}

// NewVectorColumn returns an empty vector column of the given type.
func NewVectorColumn(typeInfo *TypeInfo, nullable bool) *VectorColumn {
	return &VectorColumn{typeInfo: typeInfo, nullable: nullable}
}

// TypeInfo returns the type of the column's cells.
func (c *VectorColumn) TypeInfo() *TypeInfo { return c.typeInfo }

// IsNullable reports whether the column tracks nulls.
func (c *VectorColumn) IsNullable() bool { return c.nullable }

// NumRows returns the number of rows inserted.
func (c *VectorColumn) NumRows() int { return c.rows }

// ByteSize returns the memory footprint of the inserted cells. It is used
// to account bytes read on the vectorized path.
func (c *VectorColumn) ByteSize() int64 {
	n := int64(len(c.data)) + int64(len(c.nulls))
	for _, v := range c.values {
		n += int64(len(v))
	}
	return n
}

// IsNullAt reports whether row i holds a null.
func (c *VectorColumn) IsNullAt(i int) bool {
	return c.nulls != nil && c.nulls[i]
}

// CellAt returns the cell of row i.
func (c *VectorColumn) CellAt(i int) Cell {
	if c.IsNullAt(i) {
		return NullCell()
	}
	if c.typeInfo.IsVarLen() {
		return Cell{Bytes: c.values[i]}
	}
	size := c.typeInfo.Size()
	return Cell{Bytes: c.data[i*size : (i+1)*size]}
}

// InsertData appends one cell, repeated count times.
func (c *VectorColumn) InsertData(cell []byte, count int) {
	for i := 0; i < count; i++ {
		if c.typeInfo.IsVarLen() {
			c.values = append(c.values, append([]byte(nil), cell...))
		} else {
			c.data = append(c.data, cell...)
		}
		c.nulls = append(c.nulls, false)
	}
	c.rows += count
}

// InsertManyDefaults appends count null rows.
func (c *VectorColumn) InsertManyDefaults(count int) {
	for i := 0; i < count; i++ {
		if c.typeInfo.IsVarLen() {
			c.values = append(c.values, nil)
		} else {
			c.data = append(c.data, make([]byte, c.typeInfo.Size())...)
		}
		c.nulls = append(c.nulls, true)
	}
	c.rows += count
}

// appendFixed appends n cells of raw little-endian bytes.
func (c *VectorColumn) appendFixed(raw []byte, n int) {
	c.data = append(c.data, raw...)
	for i := 0; i < n; i++ {
		c.nulls = append(c.nulls, false)
	}
	c.rows += n
}

// appendBytes appends variable length cells, copying them.
func (c *VectorColumn) appendBytes(vals [][]byte) {
	for _, v := range vals {
		c.values = append(c.values, append([]byte(nil), v...))
		c.nulls = append(c.nulls, false)
	}
	c.rows += len(vals)
}
