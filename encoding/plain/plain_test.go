package plain

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestFixedDecoder(t *testing.T) {
	builder := NewBuilder(4)
	for i := int32(0); i < 100; i++ {
		cell := make([]byte, 4)
		binary.LittleEndian.PutUint32(cell, uint32(i))
		builder.Add(cell)
	}

	dec, err := NewDecoder(builder.Bytes(), 4)
	if err != nil {
		t.Fatal(err)
	}
	if dec.Count() != 100 {
		t.Fatalf("count %d, want 100", dec.Count())
	}

	if err := dec.SeekToPosition(40); err != nil {
		t.Fatal(err)
	}
	raw, n := dec.Decode(10)
	if n != 10 {
		t.Fatalf("decoded %d cells, want 10", n)
	}
	if got := binary.LittleEndian.Uint32(raw); got != 40 {
		t.Fatalf("first cell %d, want 40", got)
	}
	if dec.CurrentIndex() != 50 {
		t.Fatalf("index %d, want 50", dec.CurrentIndex())
	}

	// reads clamp at the end of the page
	if err := dec.SeekToPosition(95); err != nil {
		t.Fatal(err)
	}
	if _, n := dec.Decode(10); n != 5 {
		t.Fatalf("decoded %d cells at the page end, want 5", n)
	}
}

func TestFixedDecoderErrors(t *testing.T) {
	if _, err := NewDecoder([]byte{1, 2, 3}, 4); err == nil {
		t.Fatal("a truncated body must be rejected")
	}
	dec, err := NewDecoder(make([]byte, 8), 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := dec.SeekToPosition(3); err == nil {
		t.Fatal("seek outside of the page must be rejected")
	}
}

func TestBinaryDecoder(t *testing.T) {
	builder := NewBinaryBuilder()
	words := [][]byte{[]byte("alpha"), []byte(""), []byte("gamma"), []byte("delta")}
	for _, w := range words {
		builder.Add(w)
	}

	dec, err := NewBinaryDecoder(builder.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if dec.Count() != len(words) {
		t.Fatalf("count %d, want %d", dec.Count(), len(words))
	}
	for i, w := range words {
		if got := dec.At(i); !bytes.Equal(got, w) {
			t.Fatalf("value %d is %q, want %q", i, got, w)
		}
	}

	if err := dec.SeekToPosition(2); err != nil {
		t.Fatal(err)
	}
	vals, n := dec.Decode(nil, 10)
	if n != 2 || !bytes.Equal(vals[0], []byte("gamma")) || !bytes.Equal(vals[1], []byte("delta")) {
		t.Fatalf("decoded %d values %q", n, vals)
	}

	table := dec.WordTable()
	if len(table) != len(words) || !bytes.Equal(table[0], words[0]) {
		t.Fatalf("word table %q", table)
	}
}

func TestBinaryDecoderTruncated(t *testing.T) {
	if _, err := NewBinaryDecoder([]byte{0, 0}); err == nil {
		t.Fatal("a page without a trailer must be rejected")
	}
	// trailer advertises more offsets than the page holds
	body := make([]byte, 8)
	binary.LittleEndian.PutUint32(body[4:], 100)
	if _, err := NewBinaryDecoder(body); err == nil {
		t.Fatal("an overflowing offset section must be rejected")
	}
}
