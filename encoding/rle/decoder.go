package rle

import (
	"encoding/binary"
)

// Decoder decodes a hybrid run-length / bit-packed stream. The zero value
// is not usable; construct decoders with NewDecoder.
//
// Decoders are positional: values are consumed front to back, and Reset
// rewinds to the beginning of the stream.
type Decoder struct {
	data     []byte
	bitWidth uint

	bytePos int  // next run header
	bitPos  uint // bit cursor inside the current literal run

	literalCount int64
	repeatCount  int64
	currentValue uint64
}

// NewDecoder constructs a decoder reading values of the given bit width
// from data.
func NewDecoder(data []byte, bitWidth uint) *Decoder {
	return &Decoder{data: data, bitWidth: bitWidth}
}

// Reset rewinds the decoder to the beginning of its stream.
func (d *Decoder) Reset() {
	d.bytePos = 0
	d.bitPos = 0
	d.literalCount = 0
	d.repeatCount = 0
	d.currentValue = 0
}

// nextRun decodes the next run header. It returns false at end of stream.
func (d *Decoder) nextRun() bool {
	if d.bytePos >= len(d.data) {
		return false
	}
	indicator, n := binary.Uvarint(d.data[d.bytePos:])
	if n <= 0 {
		return false
	}
	d.bytePos += n

	if indicator&1 == 1 {
		d.literalCount = int64(indicator>>1) * 8
		d.bitPos = uint(d.bytePos) * 8
		groupBytes := int((int64(d.bitWidth)*d.literalCount + 7) / 8)
		if d.bytePos+groupBytes > len(d.data) {
			d.literalCount = 0
			return false
		}
		d.bytePos += groupBytes
	} else {
		d.repeatCount = int64(indicator >> 1)
		byteWidth := int((d.bitWidth + 7) / 8)
		if d.bytePos+byteWidth > len(d.data) {
			d.repeatCount = 0
			return false
		}
		d.currentValue = 0
		for i := 0; i < byteWidth; i++ {
			d.currentValue |= uint64(d.data[d.bytePos+i]) << (8 * uint(i))
		}
		d.bytePos += byteWidth
	}
	return true
}

// readBits reads bitWidth bits at the literal cursor, least significant
// bit first.
func (d *Decoder) readBits() (uint64, bool) {
	v := uint64(0)
	read := uint(0)
	for read < d.bitWidth {
		byteIdx := int(d.bitPos >> 3)
		if byteIdx >= len(d.data) {
			return 0, false
		}
		bitIdx := d.bitPos & 7
		avail := 8 - bitIdx
		take := d.bitWidth - read
		if take > avail {
			take = avail
		}
		chunk := (uint64(d.data[byteIdx]) >> bitIdx) & ((1 << take) - 1)
		v |= chunk << read
		read += take
		d.bitPos += take
	}
	return v, true
}

// Get decodes a single value.
func (d *Decoder) Get(value *uint64) bool {
	return d.GetNextRun(value, 1) == 1
}

// GetNextRun decodes a maximal run of up to maxRun equal values, stores the
// value in *value and returns the length of the run. A return of zero means
// the stream is exhausted.
func (d *Decoder) GetNextRun(value *uint64, maxRun int64) int64 {
	run := int64(0)
	rem := maxRun
	for rem > 0 {
		if d.repeatCount == 0 && d.literalCount == 0 && !d.nextRun() {
			break
		}
		if d.repeatCount > 0 {
			if run > 0 && d.currentValue != *value {
				break
			}
			*value = d.currentValue
			take := d.repeatCount
			if take > rem {
				take = rem
			}
			d.repeatCount -= take
			run += take
			rem -= take
		} else {
			v, ok := d.readBits()
			if !ok {
				d.literalCount = 0
				break
			}
			if run > 0 && v != *value {
				d.bitPos -= d.bitWidth // rewind, the value belongs to the next run
				break
			}
			*value = v
			d.literalCount--
			run++
			rem--
		}
	}
	return run
}

// Skip consumes n values and returns how many of them were non-zero. With a
// bit width of one this is the number of set bits skipped, which is what
// null bitmap bookkeeping needs.
func (d *Decoder) Skip(n int64) int64 {
	set := int64(0)
	for n > 0 {
		if d.repeatCount == 0 && d.literalCount == 0 && !d.nextRun() {
			break
		}
		if d.repeatCount > 0 {
			take := d.repeatCount
			if take > n {
				take = n
			}
			if d.currentValue != 0 {
				set += take
			}
			d.repeatCount -= take
			n -= take
		} else {
			v, ok := d.readBits()
			if !ok {
				d.literalCount = 0
				break
			}
			if v != 0 {
				set++
			}
			d.literalCount--
			n--
		}
	}
	return set
}
