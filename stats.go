package segment

// IteratorStats accumulates the I/O accounting of a scan. It is carried in
// the iterator options as a side channel and never affects results.
type IteratorStats struct {
	BytesRead       int64
	RowsRead        int64
	PagesRead       int64
	CachedPagesRead int64
}
