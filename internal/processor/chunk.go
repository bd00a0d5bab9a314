package processor

import "github.com/granitedb/granite/internal/column"

// Chunk is the unit of data flowing between processors through ports.
// It is owned by exactly one port or processor at a time and is moved,
// never copied, on transfer.
type Chunk struct {
	Block *column.Block
}

// NewChunk wraps a block into a chunk.
func NewChunk(block *column.Block) *Chunk {
	return &Chunk{Block: block}
}

// NumRows returns the number of rows in the chunk.
func (c *Chunk) NumRows() int {
	if c == nil || c.Block == nil {
		return 0
	}
	return c.Block.NumRows()
}

// ByteSize returns the in-memory payload size of the chunk.
func (c *Chunk) ByteSize() uint64 {
	if c == nil || c.Block == nil {
		return 0
	}
	return c.Block.ByteSize()
}
