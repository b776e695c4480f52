package rle

import (
	"encoding/binary"
)

// Encoder produces a hybrid run-length / bit-packed stream. Values are
// buffered by Put and serialized by Bytes.
type Encoder struct {
	bitWidth uint
	values   []uint64
}

// NewEncoder constructs an encoder writing values of the given bit width.
func NewEncoder(bitWidth uint) *Encoder {
	if bitWidth == 0 || bitWidth > maxBitWidth {
		panic("rle: unsupported bit width")
	}
	return &Encoder{bitWidth: bitWidth}
}

// Put appends one value.
func (e *Encoder) Put(value uint64) {
	e.values = append(e.values, value)
}

// PutRun appends count copies of value.
func (e *Encoder) PutRun(value uint64, count int64) {
	for i := int64(0); i < count; i++ {
		e.values = append(e.values, value)
	}
}

// Count returns the number of buffered values.
func (e *Encoder) Count() int {
	return len(e.values)
}

// Reset discards the buffered values.
func (e *Encoder) Reset() {
	e.values = e.values[:0]
}

// Bytes serializes the buffered values.
//
// Runs of eight or more equal values become repeated runs. A run that
// starts inside an open literal group first fills that group, and only the
// rest of it, if still eight or more long, becomes a repeated run.
// Everything else is bit-packed into literal groups of eight, with the
// final group padded.
func (e *Encoder) Bytes() []byte {
	out := make([]byte, 0, len(e.values))
	pending := make([]uint64, 0, 64)

	flushLiteral := func(pad bool) {
		if len(pending) == 0 {
			return
		}
		if pad {
			for len(pending)%8 != 0 {
				pending = append(pending, 0)
			}
		}
		groups := len(pending) / 8
		var hdr [binary.MaxVarintLen64]byte
		out = append(out, hdr[:binary.PutUvarint(hdr[:], uint64(groups)<<1|1)]...)
		out = appendBitPacked(out, pending, e.bitWidth)
		pending = pending[:0]
	}
	writeRepeated := func(value uint64, count int64) {
		var hdr [binary.MaxVarintLen64]byte
		out = append(out, hdr[:binary.PutUvarint(hdr[:], uint64(count)<<1)]...)
		byteWidth := int((e.bitWidth + 7) / 8)
		for i := 0; i < byteWidth; i++ {
			out = append(out, byte(value>>(8*uint(i))))
		}
	}

	i := 0
	n := len(e.values)
	for i < n {
		j := i + 1
		for j < n && e.values[j] == e.values[i] {
			j++
		}
		runLen := int64(j - i)
		v := e.values[i]

		switch {
		case runLen >= 8 && len(pending)%8 == 0:
			flushLiteral(false)
			writeRepeated(v, runLen)
		case runLen >= 8:
			// complete the open literal group first, then emit the rest
			// of the run as a repeated run if it is still long enough
			need := int64(8 - len(pending)%8)
			for k := int64(0); k < need; k++ {
				pending = append(pending, v)
			}
			flushLiteral(false)
			if rest := runLen - need; rest >= 8 {
				writeRepeated(v, rest)
			} else {
				for k := int64(0); k < rest; k++ {
					pending = append(pending, v)
				}
			}
		default:
			for k := int64(0); k < runLen; k++ {
				pending = append(pending, v)
			}
		}
		i = j
	}
	flushLiteral(true)
	return out
}

func appendBitPacked(out []byte, values []uint64, bitWidth uint) []byte {
	bitLen := uint(len(values)) * bitWidth
	byteLen := int((bitLen + 7) / 8)
	start := len(out)
	out = append(out, make([]byte, byteLen)...)
	bitPos := uint(0)
	for _, v := range values {
		written := uint(0)
		for written < bitWidth {
			byteIdx := start + int(bitPos>>3)
			bitIdx := bitPos & 7
			avail := 8 - bitIdx
			take := bitWidth - written
			if take > avail {
				take = avail
			}
			chunk := byte((v >> written) & ((1 << take) - 1))
			out[byteIdx] |= chunk << bitIdx
			written += take
			bitPos += take
		}
	}
	return out
}
