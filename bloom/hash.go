package bloom

import "github.com/cespare/xxhash/v2"

// Hash is an interface abstracting the hashing algorithm used in bloom
// filters.
//
// Hash instances must be safe to use concurrently from multiple goroutines.
type Hash interface {
	// Returns the 64 bit hash of the value passed as argument.
	Sum64(value []byte) uint64
}

// XXH64 is an implementation of the Hash interface using the XXH64
// algorithm.
type XXH64 struct{}

func (XXH64) Sum64(b []byte) uint64 {
	return xxhash.Sum64(b)
}

var (
	_ Hash = XXH64{}
)
