package segment

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
	"time"

	"github.com/vesseldb/segment-go/format"
)

// TypeInfo describes how cells of one field type are stored, parsed and
// compared. Zone map bounds, bloom filter keys and default values all go
// through the canonical cell representation defined here: fixed width
// little-endian bytes for scalar types, raw bytes for variable length
// types.
type TypeInfo struct {
	typ    format.Type
	size   int
	varLen bool
}

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"

	// decimal cells store a 64 bit integral part followed by a 32 bit
	// fractional part scaled to 9 digits
	decimalFracDigits = 9
	decimalFracScale  = 1000000000
)

var typeInfos = map[format.Type]*TypeInfo{
	format.TypeBoolean:     {typ: format.TypeBoolean, size: 1},
	format.TypeTinyInt:     {typ: format.TypeTinyInt, size: 1},
	format.TypeSmallInt:    {typ: format.TypeSmallInt, size: 2},
	format.TypeInt:         {typ: format.TypeInt, size: 4},
	format.TypeUnsignedInt: {typ: format.TypeUnsignedInt, size: 4},
	format.TypeBigInt:      {typ: format.TypeBigInt, size: 8},
	format.TypeLargeInt:    {typ: format.TypeLargeInt, size: 16},
	format.TypeFloat:       {typ: format.TypeFloat, size: 4},
	format.TypeDouble:      {typ: format.TypeDouble, size: 8},
	format.TypeDate:        {typ: format.TypeDate, size: 4},
	format.TypeDatetime:    {typ: format.TypeDatetime, size: 8},
	format.TypeDecimal:     {typ: format.TypeDecimal, size: 12},
	format.TypeChar:        {typ: format.TypeChar, size: 16, varLen: true},
	format.TypeVarchar:     {typ: format.TypeVarchar, size: 16, varLen: true},
	format.TypeString:      {typ: format.TypeString, size: 16, varLen: true},
	format.TypeHLL:         {typ: format.TypeHLL, size: 16, varLen: true},
	format.TypeObject:      {typ: format.TypeObject, size: 16, varLen: true},
}

// TypeInfoOf returns the TypeInfo of a scalar field type, or an error for
// composite or unknown types.
func TypeInfoOf(t format.Type) (*TypeInfo, error) {
	if info := typeInfos[t]; info != nil {
		return info, nil
	}
	return nil, fmt.Errorf("no type info for type %s: %w", t, ErrNotSupported)
}

// Type returns the field type described by the TypeInfo.
func (t *TypeInfo) Type() format.Type { return t.typ }

// Size returns the in-memory cell width: the storage width for fixed width
// types, the width of a byte slice reference for variable length types.
func (t *TypeInfo) Size() int { return t.size }

// IsVarLen reports whether cells are variable length byte strings.
func (t *TypeInfo) IsVarLen() bool { return t.varLen }

// FromString parses the string rendering of a value into its canonical
// cell bytes. It is used to decode zone map bounds and default values.
func (t *TypeInfo) FromString(s string) ([]byte, error) {
	switch t.typ {
	case format.TypeBoolean:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case format.TypeTinyInt, format.TypeSmallInt, format.TypeInt, format.TypeBigInt:
		v, err := strconv.ParseInt(s, 10, t.size*8)
		if err != nil {
			return nil, err
		}
		return appendIntCell(nil, v, t.size), nil
	case format.TypeUnsignedInt:
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(nil, uint32(v)), nil
	case format.TypeLargeInt:
		return largeIntFromString(s)
	case format.TypeFloat:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(v))), nil
	case format.TypeDouble:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v)), nil
	case format.TypeDate:
		d, err := time.ParseInLocation(dateLayout, s, time.UTC)
		if err != nil {
			return nil, err
		}
		days := int32(d.Unix() / 86400)
		return appendIntCell(nil, int64(days), 4), nil
	case format.TypeDatetime:
		d, err := time.ParseInLocation(datetimeLayout, s, time.UTC)
		if err != nil {
			return nil, err
		}
		return appendIntCell(nil, d.Unix(), 8), nil
	case format.TypeDecimal:
		return decimalFromString(s)
	case format.TypeChar, format.TypeVarchar, format.TypeString, format.TypeHLL, format.TypeObject:
		return []byte(s), nil
	default:
		return nil, fmt.Errorf("cannot parse %s from string: %w", t.typ, ErrNotSupported)
	}
}

// ToString renders canonical cell bytes back to their string form.
func (t *TypeInfo) ToString(cell []byte) string {
	switch t.typ {
	case format.TypeBoolean:
		if len(cell) > 0 && cell[0] != 0 {
			return "true"
		}
		return "false"
	case format.TypeTinyInt, format.TypeSmallInt, format.TypeInt, format.TypeBigInt:
		return strconv.FormatInt(intCell(cell), 10)
	case format.TypeUnsignedInt:
		return strconv.FormatUint(uint64(binary.LittleEndian.Uint32(cell)), 10)
	case format.TypeLargeInt:
		return largeIntToString(cell)
	case format.TypeFloat:
		return strconv.FormatFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(cell))), 'g', -1, 32)
	case format.TypeDouble:
		return strconv.FormatFloat(math.Float64frombits(binary.LittleEndian.Uint64(cell)), 'g', -1, 64)
	case format.TypeDate:
		days := intCell(cell)
		return time.Unix(days*86400, 0).UTC().Format(dateLayout)
	case format.TypeDatetime:
		return time.Unix(intCell(cell), 0).UTC().Format(datetimeLayout)
	case format.TypeDecimal:
		return decimalToString(cell)
	default:
		return string(cell)
	}
}

// Compare orders two canonical cells of the type. It returns a negative
// value when a sorts before b, zero when equal, positive otherwise.
func (t *TypeInfo) Compare(a, b []byte) int {
	switch t.typ {
	case format.TypeBoolean, format.TypeTinyInt, format.TypeSmallInt,
		format.TypeInt, format.TypeBigInt, format.TypeDate, format.TypeDatetime:
		return compareInt64(intCell(a), intCell(b))
	case format.TypeUnsignedInt:
		return compareUint64(uint64(binary.LittleEndian.Uint32(a)), uint64(binary.LittleEndian.Uint32(b)))
	case format.TypeLargeInt:
		return compareLargeInt(a, b)
	case format.TypeFloat:
		fa := float64(math.Float32frombits(binary.LittleEndian.Uint32(a)))
		fb := float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		return compareFloat64(fa, fb)
	case format.TypeDouble:
		return compareFloat64(
			math.Float64frombits(binary.LittleEndian.Uint64(a)),
			math.Float64frombits(binary.LittleEndian.Uint64(b)))
	case format.TypeDecimal:
		if c := compareInt64(intCellAt(a, 0, 8), intCellAt(b, 0, 8)); c != 0 {
			return c
		}
		return compareInt64(intCellAt(a, 8, 4), intCellAt(b, 8, 4))
	default:
		return bytes.Compare(a, b)
	}
}

func appendIntCell(dst []byte, v int64, size int) []byte {
	for i := 0; i < size; i++ {
		dst = append(dst, byte(v>>(8*uint(i))))
	}
	return dst
}

// intCell sign-extends a little-endian cell of up to 8 bytes.
func intCell(cell []byte) int64 {
	return intCellAt(cell, 0, len(cell))
}

func intCellAt(cell []byte, off, size int) int64 {
	if size > 8 {
		size = 8
	}
	v := uint64(0)
	for i := 0; i < size; i++ {
		v |= uint64(cell[off+i]) << (8 * uint(i))
	}
	shift := uint(64 - 8*size)
	return int64(v<<shift) >> shift
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// largeIntFromString parses a 128 bit signed integer.
func largeIntFromString(s string) ([]byte, error) {
	neg := strings.HasPrefix(s, "-")
	// parse as two int64 halves through big-endian math on the decimal
	// string to avoid a big.Int dependency for one type
	digits := strings.TrimPrefix(s, "-")
	if digits == "" {
		return nil, fmt.Errorf("invalid LARGEINT %q", s)
	}
	var hi, lo uint64
	for _, c := range digits {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("invalid LARGEINT %q", s)
		}
		// (hi,lo) = (hi,lo)*10 + digit
		carry, lo10 := bits.Mul64(lo, 10)
		hi = hi*10 + carry
		digit := uint64(c - '0')
		lo = lo10 + digit
		if lo < digit {
			hi++
		}
	}
	if neg {
		lo = ^lo + 1
		hi = ^hi
		if lo == 0 {
			hi++
		}
	}
	cell := make([]byte, 16)
	binary.LittleEndian.PutUint64(cell, lo)
	binary.LittleEndian.PutUint64(cell[8:], hi)
	return cell, nil
}

func largeIntToString(cell []byte) string {
	lo := binary.LittleEndian.Uint64(cell)
	hi := binary.LittleEndian.Uint64(cell[8:])
	neg := hi>>63 != 0
	if neg {
		lo = ^lo + 1
		hi = ^hi
		if lo == 0 {
			hi++
		}
	}
	if hi == 0 {
		s := strconv.FormatUint(lo, 10)
		if neg {
			return "-" + s
		}
		return s
	}
	// repeated division by 10^9
	var out []byte
	for hi != 0 || lo != 0 {
		var rem uint64
		hi, lo, rem = divmod128(hi, lo, 1000000000)
		chunk := strconv.FormatUint(rem, 10)
		if hi != 0 || lo != 0 {
			for len(chunk) < 9 {
				chunk = "0" + chunk
			}
		}
		out = append([]byte(chunk), out...)
	}
	if len(out) == 0 {
		out = []byte("0")
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

func compareLargeInt(a, b []byte) int {
	ahi := int64(binary.LittleEndian.Uint64(a[8:]))
	bhi := int64(binary.LittleEndian.Uint64(b[8:]))
	if c := compareInt64(ahi, bhi); c != 0 {
		return c
	}
	return compareUint64(binary.LittleEndian.Uint64(a), binary.LittleEndian.Uint64(b))
}

func divmod128(hi, lo, d uint64) (qhi, qlo, rem uint64) {
	qhi = hi / d
	qlo, rem = bits.Div64(hi%d, lo, d)
	return qhi, qlo, rem
}

func decimalFromString(s string) ([]byte, error) {
	neg := strings.HasPrefix(s, "-")
	body := strings.TrimPrefix(s, "-")
	intPart := body
	fracPart := ""
	if i := strings.IndexByte(body, '.'); i >= 0 {
		intPart, fracPart = body[:i], body[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > decimalFracDigits {
		fracPart = fracPart[:decimalFracDigits]
	}
	for len(fracPart) < decimalFracDigits {
		fracPart += "0"
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return nil, err
	}
	fv, err := strconv.ParseInt(fracPart, 10, 32)
	if err != nil {
		return nil, err
	}
	if neg {
		iv, fv = -iv, -fv
	}
	cell := make([]byte, 12)
	binary.LittleEndian.PutUint64(cell, uint64(iv))
	binary.LittleEndian.PutUint32(cell[8:], uint32(int32(fv)))
	return cell, nil
}

func decimalToString(cell []byte) string {
	iv := intCellAt(cell, 0, 8)
	fv := intCellAt(cell, 8, 4)
	neg := iv < 0 || fv < 0
	if iv < 0 {
		iv = -iv
	}
	if fv < 0 {
		fv = -fv
	}
	s := fmt.Sprintf("%d.%09d", iv, fv)
	if neg {
		return "-" + s
	}
	return s
}
