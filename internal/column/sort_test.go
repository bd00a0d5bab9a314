package column

import (
	"testing"

	"github.com/granitedb/granite/internal/types"
)

func uint64Block(name string, vals ...uint64) *Block {
	col := &UInt64Column{Data: append([]uint64(nil), vals...)}
	return NewBlock([]string{name}, []Column{col})
}

func uint64Values(b *Block, col int) []uint64 {
	out := make([]uint64, b.NumRows())
	for i := range out {
		out[i] = b.Columns[col].Value(i).(uint64)
	}
	return out
}

func TestSortByDescriptionAscending(t *testing.T) {
	b := uint64Block("v", 5, 1, 4, 1, 3)
	desc := SortDescription{{Column: 0, Direction: Ascending}}

	b.SortByDescription(desc)

	want := []uint64{1, 1, 3, 4, 5}
	got := uint64Values(b, 0)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d: got %d, want %d", i, got[i], want[i])
		}
	}
	if !b.IsSorted(desc) {
		t.Fatal("IsSorted = false after sort")
	}
}

func TestSortByDescriptionDescending(t *testing.T) {
	b := uint64Block("v", 2, 9, 4)
	desc := SortDescription{{Column: 0, Direction: Descending}}

	b.SortByDescription(desc)

	want := []uint64{9, 4, 2}
	got := uint64Values(b, 0)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSortStability(t *testing.T) {
	// Duplicate keys; the tag column records input order.
	key := &UInt64Column{Data: []uint64{2, 1, 2, 1, 2}}
	tag := &UInt64Column{Data: []uint64{0, 1, 2, 3, 4}}
	b := NewBlock([]string{"key", "tag"}, []Column{key, tag})

	b.SortByDescription(SortDescription{{Column: 0, Direction: Ascending}})

	wantKeys := []uint64{1, 1, 2, 2, 2}
	wantTags := []uint64{1, 3, 0, 2, 4}
	gotKeys := uint64Values(b, 0)
	gotTags := uint64Values(b, 1)
	for i := range wantKeys {
		if gotKeys[i] != wantKeys[i] || gotTags[i] != wantTags[i] {
			t.Fatalf("row %d: got (%d,%d), want (%d,%d)",
				i, gotKeys[i], gotTags[i], wantKeys[i], wantTags[i])
		}
	}
}

func TestCompareRowsMultiColumn(t *testing.T) {
	a := &UInt64Column{Data: []uint64{1, 1}}
	s := &StringColumn{Data: []string{"b", "a"}}
	b := NewBlock([]string{"n", "s"}, []Column{a, s})

	desc := SortDescription{
		{Column: 0, Direction: Ascending},
		{Column: 1, Direction: Ascending},
	}
	if cmp := CompareRows(b, 0, b, 1, desc); cmp <= 0 {
		t.Fatalf("expected row 0 > row 1 on tie-break column, got %d", cmp)
	}
	if cmp := CompareRows(b, 0, b, 0, desc); cmp != 0 {
		t.Fatalf("row compared unequal to itself: %d", cmp)
	}
}

func TestSortPermutation(t *testing.T) {
	b := uint64Block("v", 30, 10, 20)
	perm := b.SortPermutation(SortDescription{{Column: 0, Direction: Ascending}})

	want := []int{1, 2, 0}
	for i := range want {
		if perm[i] != want[i] {
			t.Fatalf("perm[%d] = %d, want %d", i, perm[i], want[i])
		}
	}
	// The block itself is untouched.
	if got := b.Columns[0].Value(0).(uint64); got != 30 {
		t.Fatalf("block mutated by SortPermutation: %d", got)
	}
}

func TestBlockSliceAndAppend(t *testing.T) {
	b := uint64Block("v", 0, 1, 2, 3, 4)

	s := b.SliceRows(1, 3)
	if s.NumRows() != 2 {
		t.Fatalf("slice rows = %d, want 2", s.NumRows())
	}
	if got := uint64Values(s, 0); got[0] != 1 || got[1] != 2 {
		t.Fatalf("slice values = %v", got)
	}

	if err := b.AppendBlock(s); err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	if b.NumRows() != 7 {
		t.Fatalf("rows after append = %d, want 7", b.NumRows())
	}

	h := HeaderOf(b)
	out := h.NewBlock(1)
	out.AppendRow(b, 6)
	if got := out.Columns[0].Value(0).(uint64); got != 2 {
		t.Fatalf("AppendRow copied %d, want 2", got)
	}
	if !h.Matches(out) {
		t.Fatal("header does not match block built from it")
	}
}

func TestFilterRowsByMask(t *testing.T) {
	b := uint64Block("v", 10, 11, 12, 13)
	got := b.FilterRowsByMask([]bool{true, false, false, true})
	if got.NumRows() != 2 {
		t.Fatalf("filtered rows = %d, want 2", got.NumRows())
	}
	vals := uint64Values(got, 0)
	if vals[0] != 10 || vals[1] != 13 {
		t.Fatalf("filtered values = %v", vals)
	}
}

func TestEncodeDecodeColumn(t *testing.T) {
	cols := []Column{
		&UInt64Column{Data: []uint64{0, 1, 1 << 40}},
		&StringColumn{Data: []string{"", "abc", "granite"}},
		&Float64Column{Data: []float64{-1.5, 0, 2.25}},
	}
	for _, col := range cols {
		raw, err := EncodeColumn(col)
		if err != nil {
			t.Fatalf("EncodeColumn(%v): %v", col.DataType(), err)
		}
		back, err := DecodeColumn(col.DataType(), raw, col.Len())
		if err != nil {
			t.Fatalf("DecodeColumn(%v): %v", col.DataType(), err)
		}
		if back.Len() != col.Len() {
			t.Fatalf("%v: decoded %d rows, want %d", col.DataType(), back.Len(), col.Len())
		}
		for i := 0; i < col.Len(); i++ {
			if types.CompareValues(col.DataType(), back.Value(i), col.Value(i)) != 0 {
				t.Fatalf("%v row %d: got %v, want %v",
					col.DataType(), i, back.Value(i), col.Value(i))
			}
		}
	}
}
