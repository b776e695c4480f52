package segment

import "errors"

var (
	// ErrCorruption reports a malformed segment: bad checksum, truncated
	// page, unknown index type, or a missing ordinal index on a non-empty
	// column.
	ErrCorruption = errors.New("segment corruption")

	// ErrNotFound reports a seek that found no page, such as seeking on an
	// empty ordinal index.
	ErrNotFound = errors.New("not found")

	// ErrNotSupported reports a field type or encoding the reader does not
	// handle.
	ErrNotSupported = errors.New("not supported")

	// ErrInternal reports an invalid configuration, such as a default value
	// iterator for a non-nullable column without a default.
	ErrInternal = errors.New("internal error")
)
