package segment

import (
	"fmt"
	"sort"
	"strings"
)

// RowRange is a half-open interval [From, To) of row ordinals.
type RowRange struct {
	From int64
	To   int64
}

// Count returns the number of ordinals covered by the range.
func (r RowRange) Count() int64 {
	if r.To <= r.From {
		return 0
	}
	return r.To - r.From
}

// RowRanges is an ordered set of disjoint row ranges. It is the result
// type of predicate pushdown: each index evaluation narrows the scan to
// the ordinals it covers.
type RowRanges struct {
	ranges []RowRange
}

// NewRowRanges returns an empty range set.
func NewRowRanges() *RowRanges {
	return &RowRanges{}
}

// NewSingleRowRanges returns a range set holding the single range
// [from, to).
func NewSingleRowRanges(from, to int64) *RowRanges {
	r := &RowRanges{}
	r.Add(RowRange{From: from, To: to})
	return r
}

// Clear removes every range.
func (r *RowRanges) Clear() {
	r.ranges = r.ranges[:0]
}

// Add unions one range into the set, keeping the set ordered and disjoint.
func (r *RowRanges) Add(rng RowRange) {
	if rng.Count() == 0 {
		return
	}
	i := sort.Search(len(r.ranges), func(i int) bool {
		return r.ranges[i].From > rng.From
	})
	r.ranges = append(r.ranges, RowRange{})
	copy(r.ranges[i+1:], r.ranges[i:])
	r.ranges[i] = rng
	r.normalize()
}

func (r *RowRanges) normalize() {
	out := r.ranges[:0]
	for _, rng := range r.ranges {
		if n := len(out); n > 0 && rng.From <= out[n-1].To {
			if rng.To > out[n-1].To {
				out[n-1].To = rng.To
			}
			continue
		}
		out = append(out, rng)
	}
	r.ranges = out
}

// RangeCount returns the number of disjoint ranges in the set.
func (r *RowRanges) RangeCount() int { return len(r.ranges) }

// From returns the inclusive lower bound of the i-th range.
func (r *RowRanges) From(i int) int64 { return r.ranges[i].From }

// To returns the exclusive upper bound of the i-th range.
func (r *RowRanges) To(i int) int64 { return r.ranges[i].To }

// Count returns the total number of ordinals covered by the set.
func (r *RowRanges) Count() int64 {
	n := int64(0)
	for _, rng := range r.ranges {
		n += rng.Count()
	}
	return n
}

// IsEmpty reports whether the set covers no ordinals.
func (r *RowRanges) IsEmpty() bool { return len(r.ranges) == 0 }

// Contains reports whether the ordinal is covered by the set.
func (r *RowRanges) Contains(ord int64) bool {
	i := sort.Search(len(r.ranges), func(i int) bool {
		return r.ranges[i].To > ord
	})
	return i < len(r.ranges) && r.ranges[i].From <= ord
}

func (r *RowRanges) String() string {
	parts := make([]string, len(r.ranges))
	for i, rng := range r.ranges {
		parts[i] = fmt.Sprintf("[%d,%d)", rng.From, rng.To)
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// RangesUnion stores the union of a and b into out. Out may alias a or b.
func RangesUnion(a, b, out *RowRanges) {
	merged := make([]RowRange, 0, len(a.ranges)+len(b.ranges))
	merged = append(merged, a.ranges...)
	merged = append(merged, b.ranges...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].From < merged[j].From })
	out.ranges = merged
	out.normalize()
}

// RangesIntersection stores the intersection of a and b into out. Out may
// alias a or b.
func RangesIntersection(a, b, out *RowRanges) {
	var result []RowRange
	i, j := 0, 0
	for i < len(a.ranges) && j < len(b.ranges) {
		x, y := a.ranges[i], b.ranges[j]
		from := x.From
		if y.From > from {
			from = y.From
		}
		to := x.To
		if y.To < to {
			to = y.To
		}
		if from < to {
			result = append(result, RowRange{From: from, To: to})
		}
		if x.To < y.To {
			i++
		} else {
			j++
		}
	}
	out.ranges = result
}
