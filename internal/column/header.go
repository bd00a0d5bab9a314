package column

import "github.com/granitedb/granite/internal/types"

// Header describes the column layout flowing through one port: names and
// types, in order. Every block passing through that port must match it.
type Header struct {
	Names []string
	Types []types.DataType
}

// HeaderOf captures the header of an existing block.
func HeaderOf(b *Block) Header {
	h := Header{
		Names: make([]string, len(b.Columns)),
		Types: make([]types.DataType, len(b.Columns)),
	}
	copy(h.Names, b.ColumnNames)
	for i, c := range b.Columns {
		h.Types[i] = c.DataType()
	}
	return h
}

// NumColumns returns the number of columns in the header.
func (h Header) NumColumns() int { return len(h.Names) }

// Matches reports whether the block has the same column count and types.
func (h Header) Matches(b *Block) bool {
	if len(b.Columns) != len(h.Types) {
		return false
	}
	for i, c := range b.Columns {
		if c.DataType() != h.Types[i] {
			return false
		}
	}
	return true
}

// NewBlock creates an empty block with this layout, pre-allocated for
// capacity rows.
func (h Header) NewBlock(capacity int) *Block {
	cols := make([]Column, len(h.Types))
	for i, dt := range h.Types {
		cols[i] = NewColumnWithCapacity(dt, capacity)
	}
	names := make([]string, len(h.Names))
	copy(names, h.Names)
	return NewBlock(names, cols)
}
