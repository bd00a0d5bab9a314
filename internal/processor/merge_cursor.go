package processor

import (
	"io"

	"github.com/granitedb/granite/internal/column"
	"github.com/granitedb/granite/internal/spill"
)

// runCursor walks one sorted run row by row, either fully in memory or
// streamed back frame by frame from a spill file.
type runCursor struct {
	order  int // run creation index; comparison ties break toward lower order
	block  *column.Block
	row    int
	reader *spill.RunReader // nil for in-memory runs
	run    *spill.Run       // nil for in-memory runs
}

func newMemoryCursor(order int, block *column.Block) *runCursor {
	return &runCursor{order: order, block: block}
}

func newSpillCursor(order int, run *spill.Run) (*runCursor, error) {
	reader, err := spill.OpenRun(run)
	if err != nil {
		return nil, err
	}
	c := &runCursor{order: order, reader: reader, run: run}
	block, err := reader.Next()
	if err != nil && err != io.EOF {
		c.close()
		return nil, err
	}
	c.block = block
	return c, nil
}

// empty reports whether the cursor has no current row.
func (c *runCursor) empty() bool {
	return c.block == nil || c.row >= c.block.NumRows()
}

// advance moves to the next row, loading the next spilled frame when the
// current block is consumed. Returns false when the run is exhausted.
func (c *runCursor) advance() (bool, error) {
	c.row++
	if c.row < c.block.NumRows() {
		return true, nil
	}
	if c.reader == nil {
		c.block = nil
		return false, nil
	}
	block, err := c.reader.Next()
	if err == io.EOF {
		c.block = nil
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.block = block
	c.row = 0
	return block.NumRows() > 0, nil
}

// close releases the cursor's reader and backing spill file, if any.
// Idempotent.
func (c *runCursor) close() {
	if c.reader != nil {
		c.reader.Close()
		c.reader = nil
	}
	if c.run != nil {
		c.run.Release()
		c.run = nil
	}
	c.block = nil
}

// cursorHeap is a min-heap over run cursors ordered by the sort
// description. Equal rows surface in run creation order, which makes the
// k-way merge stable with respect to the input.
type cursorHeap struct {
	cursors []*runCursor
	desc    column.SortDescription
}

func (h *cursorHeap) Len() int { return len(h.cursors) }

func (h *cursorHeap) Less(i, j int) bool {
	a, b := h.cursors[i], h.cursors[j]
	cmp := column.CompareRows(a.block, a.row, b.block, b.row, h.desc)
	if cmp != 0 {
		return cmp < 0
	}
	return a.order < b.order
}

func (h *cursorHeap) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }

func (h *cursorHeap) Push(x interface{}) { h.cursors = append(h.cursors, x.(*runCursor)) }

func (h *cursorHeap) Pop() interface{} {
	n := len(h.cursors)
	c := h.cursors[n-1]
	h.cursors = h.cursors[:n-1]
	return c
}
