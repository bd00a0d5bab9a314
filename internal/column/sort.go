package column

import (
	"sort"

	"github.com/granitedb/granite/internal/types"
)

// Sort directions.
const (
	Ascending  = 1
	Descending = -1
)

// SortColumnDescription orders rows by one column.
type SortColumnDescription struct {
	Column    int // column index within the block
	Direction int // Ascending or Descending
}

// SortDescription defines a total order over rows: compare by the first
// entry, break ties with the next, and so on.
type SortDescription []SortColumnDescription

// CompareRows compares row ai of block a with row bi of block b under the
// description. Both blocks must share the same column layout.
func CompareRows(a *Block, ai int, b *Block, bi int, desc SortDescription) int {
	for _, d := range desc {
		col := a.Columns[d.Column]
		cmp := types.CompareValues(col.DataType(), col.Value(ai), b.Columns[d.Column].Value(bi))
		if cmp != 0 {
			if d.Direction == Descending {
				return -cmp
			}
			return cmp
		}
	}
	return 0
}

// SortPermutation returns the stable row permutation that orders the block
// by the description. Equal rows keep their original relative order.
func (b *Block) SortPermutation(desc SortDescription) []int {
	n := b.NumRows()
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(x, y int) bool {
		return CompareRows(b, indices[x], b, indices[y], desc) < 0
	})
	return indices
}

// SortByDescription reorders the block's rows in place per the description.
func (b *Block) SortByDescription(desc SortDescription) {
	if b.NumRows() <= 1 {
		return
	}
	indices := b.SortPermutation(desc)
	newCols := make([]Column, len(b.Columns))
	for i, c := range b.Columns {
		newCols[i] = Gather(c, indices)
	}
	b.Columns = newCols
}

// IsSorted reports whether the block's rows are already ordered per the
// description.
func (b *Block) IsSorted(desc SortDescription) bool {
	for i := 1; i < b.NumRows(); i++ {
		if CompareRows(b, i-1, b, i, desc) > 0 {
			return false
		}
	}
	return true
}
