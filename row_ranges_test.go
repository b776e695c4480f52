package segment

import "testing"

func TestRowRangesAdd(t *testing.T) {
	tests := []struct {
		scenario string
		add      []RowRange
		want     string
	}{
		{
			scenario: "disjoint ranges stay disjoint",
			add:      []RowRange{{0, 10}, {20, 30}},
			want:     "{[0,10) [20,30)}",
		},
		{
			scenario: "overlapping ranges merge",
			add:      []RowRange{{0, 15}, {10, 30}},
			want:     "{[0,30)}",
		},
		{
			scenario: "adjacent ranges merge",
			add:      []RowRange{{0, 10}, {10, 20}},
			want:     "{[0,20)}",
		},
		{
			scenario: "out of order insertion",
			add:      []RowRange{{20, 30}, {0, 10}, {10, 15}},
			want:     "{[0,15) [20,30)}",
		},
		{
			scenario: "empty ranges ignored",
			add:      []RowRange{{5, 5}, {10, 7}},
			want:     "{}",
		},
	}
	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			r := NewRowRanges()
			for _, rng := range test.add {
				r.Add(rng)
			}
			if got := r.String(); got != test.want {
				t.Fatalf("got %s, want %s", got, test.want)
			}
		})
	}
}

func TestRangesUnionIntersection(t *testing.T) {
	a := NewRowRanges()
	a.Add(RowRange{0, 100})
	a.Add(RowRange{200, 300})

	b := NewRowRanges()
	b.Add(RowRange{50, 250})

	union := NewRowRanges()
	RangesUnion(a, b, union)
	if got := union.String(); got != "{[0,300)}" {
		t.Fatalf("union %s, want {[0,300)}", got)
	}

	inter := NewRowRanges()
	RangesIntersection(a, b, inter)
	if got := inter.String(); got != "{[50,100) [200,250)}" {
		t.Fatalf("intersection %s, want {[50,100) [200,250)}", got)
	}

	// out may alias an input
	RangesIntersection(a, b, a)
	if got := a.String(); got != "{[50,100) [200,250)}" {
		t.Fatalf("aliased intersection %s, want {[50,100) [200,250)}", got)
	}
}

func TestRowRangesContainsCount(t *testing.T) {
	r := NewRowRanges()
	r.Add(RowRange{10, 20})
	r.Add(RowRange{30, 40})
	if r.Count() != 20 {
		t.Fatalf("count %d, want 20", r.Count())
	}
	for _, ord := range []int64{10, 19, 30, 39} {
		if !r.Contains(ord) {
			t.Fatalf("ordinal %d must be covered", ord)
		}
	}
	for _, ord := range []int64{9, 20, 29, 40} {
		if r.Contains(ord) {
			t.Fatalf("ordinal %d must not be covered", ord)
		}
	}
}
