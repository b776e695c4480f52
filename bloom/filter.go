// Package bloom implements the split block bloom filters attached to data
// pages by the bloom filter index.
package bloom

import (
	"io"
	"unsafe"

	"github.com/vesseldb/segment-go/internal/bits"
)

// Filter is an interface representing read-only bloom filters where programs
// can probe for the possible presence of a hash key.
type Filter interface {
	Check(uint64) bool
}

// SplitBlockFilter is an in-memory implementation of split block bloom
// filters.
type SplitBlockFilter []Block

// NumSplitBlocksOf returns the number of blocks in a filter intended to hold
// the given number of values and bits of filter per value.
//
// This function is useful to determine the number of blocks when creating
// bloom filters in memory, for example:
//
//	f := make(bloom.SplitBlockFilter, bloom.NumSplitBlocksOf(n, 10))
func NumSplitBlocksOf(numValues int64, bitsPerValue int) int {
	numBytes := bits.ByteCount(uint(numValues) * uint(bitsPerValue))
	numBlocks := (numBytes + (BlockSize - 1)) / BlockSize
	if numBlocks == 0 {
		numBlocks = 1
	}
	return numBlocks
}

// MakeSplitBlockFilter constructs a SplitBlockFilter value from the data
// byte slice, sharing its memory. The length of data must be a multiple of
// BlockSize.
func MakeSplitBlockFilter(data []byte) SplitBlockFilter {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*Block)(unsafe.Pointer(&data[0])), len(data)/BlockSize)
}

// Reset clears the content of the filter f.
func (f SplitBlockFilter) Reset() {
	for i := range f {
		f[i] = Block{}
	}
}

// Block returns a pointer to the block that the given value hashes to in the
// bloom filter.
func (f SplitBlockFilter) Block(x uint64) *Block {
	return &f[blockIndex(x, uint64(len(f)))]
}

// Insert adds x to f.
func (f SplitBlockFilter) Insert(x uint64) {
	f.Block(x).Insert(uint32(x))
}

// Check tests whether x is in f.
func (f SplitBlockFilter) Check(x uint64) bool {
	return f.Block(x).Check(uint32(x))
}

// Bytes converts f to a byte slice.
//
// The returned slice shares the memory of f. The method is intended to be
// used to serialize the bloom filter to a storage medium.
func (f SplitBlockFilter) Bytes() []byte {
	if len(f) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&f[0])), len(f)*BlockSize)
}

// CheckSplitBlock is similar to SplitBlockFilter.Check but reads the bloom
// filter of n bytes from r, using b as buffer to load the block in which to
// check for the existence of x.
//
// The size n of the bloom filter is assumed to be a multiple of the block
// size.
func CheckSplitBlock(r io.ReaderAt, n int64, b *Block, x uint64) (bool, error) {
	offset := BlockSize * blockIndex(x, uint64(n)/BlockSize)
	_, err := r.ReadAt(b.Bytes(), int64(offset))
	return b.Check(uint32(x)), err
}

func blockIndex(x, n uint64) uint64 {
	return ((x >> 32) * n) >> 32
}

var (
	_ Filter = SplitBlockFilter(nil)
)
