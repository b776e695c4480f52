// Package bits implements the small bit arithmetic helpers shared by the
// encodings and the bloom filters.
package bits

import "math/bits"

// BitCount returns the number of bits in count bytes.
func BitCount(count int) uint {
	return 8 * uint(count)
}

// ByteCount returns the number of bytes needed to hold count bits.
func ByteCount(count uint) int {
	return int((count + 7) / 8)
}

// Round rounds count up to the nearest multiple of 8 bits.
func Round(count uint) uint {
	return BitCount(ByteCount(count))
}

// Len32 returns the minimum number of bits required to represent i.
func Len32(i int32) int {
	return bits.Len32(uint32(i))
}
