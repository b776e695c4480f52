// Package rle implements the hybrid run-length / bit-packed encoding used
// for null bitmaps and dictionary code streams.
//
// The encoded stream is a sequence of runs, each introduced by a uvarint
// indicator. An indicator with the low bit set introduces a literal run of
// (indicator>>1)*8 bit-packed values; otherwise it introduces a repeated
// run of indicator>>1 copies of a single value stored in
// ceil(bitWidth/8) little-endian bytes.
//
// Literal runs always hold a whole number of 8-value groups; the encoder
// pads the final group and readers are expected to bound the number of
// values they consume externally (data page footers carry the value count).
package rle

const maxBitWidth = 32
