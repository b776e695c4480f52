// Package encoding declares the errors shared by the page encoding
// sub-packages.
//
// Each sub-package implements one encoding family of the segment format:
// plain (fixed stride and binary), rle (hybrid run-length / bit-packed),
// and dict (dictionary coded binary pages).
package encoding

import "errors"

var (
	// ErrBufferTooShort is returned when a page body is truncated relative
	// to what its header or footer advertises.
	ErrBufferTooShort = errors.New("buffer is too short to contain the encoded values")

	// ErrInvalidArgument is returned when a decoder is driven outside of
	// the bounds of its page.
	ErrInvalidArgument = errors.New("invalid argument")
)
