package bloom

import "unsafe"

// BlockSize is the size of bloom filter blocks in bytes.
const BlockSize = 32

const (
	salt0 = 0x47b6137b
	salt1 = 0x44974d91
	salt2 = 0x8824ad5b
	salt3 = 0xa2b7289d
	salt4 = 0x705495c7
	salt5 = 0x2df1424b
	salt6 = 0x9efc4947
	salt7 = 0x5c6bfb31
)

// Word is a 32 bit unit of a bloom filter block.
type Word uint32

// Block is a cache-line-sized unit of a split block bloom filter. Each value
// inserted in the filter sets one bit in each of the eight words.
type Block [8]Word

func (b *Block) mask(x uint32) Block {
	return Block{
		1 << ((salt0 * x) >> 27),
		1 << ((salt1 * x) >> 27),
		1 << ((salt2 * x) >> 27),
		1 << ((salt3 * x) >> 27),
		1 << ((salt4 * x) >> 27),
		1 << ((salt5 * x) >> 27),
		1 << ((salt6 * x) >> 27),
		1 << ((salt7 * x) >> 27),
	}
}

// Insert sets the bits of b selected by x.
func (b *Block) Insert(x uint32) {
	masked := b.mask(x)
	for i, m := range masked {
		b[i] |= m
	}
}

// Check tests whether all bits of b selected by x are set.
func (b *Block) Check(x uint32) bool {
	masked := b.mask(x)
	for i, m := range masked {
		if (b[i] & m) == 0 {
			return false
		}
	}
	return true
}

// Bytes returns b as a byte slice sharing the memory of b.
func (b *Block) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(b)), BlockSize)
}
