package processor

import "github.com/granitedb/granite/internal/column"

// SimpleTransform applies a block-to-block function on a single
// input/output pair: pull one chunk, transform, push the result.
type SimpleTransform struct {
	BaseProcessor

	fn func(*column.Block) (*column.Block, error)

	inputChunk  *Chunk
	outputChunk *Chunk
	portErr     error
	finished    bool
}

// NewSimpleTransform creates a one-in one-out transform around fn.
func NewSimpleTransform(name string, fn func(*column.Block) (*column.Block, error)) *SimpleTransform {
	return &SimpleTransform{
		BaseProcessor: NewBaseProcessor(name, 1, 1),
		fn:            fn,
	}
}

// NewFilterTransform creates a transform keeping only rows for which
// pred returns true, using the vectorized mask filter.
func NewFilterTransform(pred func(b *column.Block, row int) bool) *SimpleTransform {
	return NewSimpleTransform("Filter", func(b *column.Block) (*column.Block, error) {
		mask := make([]bool, b.NumRows())
		for i := range mask {
			mask[i] = pred(b, i)
		}
		return b.FilterRowsByMask(mask), nil
	})
}

func (t *SimpleTransform) Prepare() Status {
	if t.finished {
		return StatusFinished
	}

	out := t.Output(0)
	inp := t.Input(0)

	if out.IsFinished() {
		t.finished = true
		inp.SetFinished()
		return StatusFinished
	}

	// Push pending output.
	if t.outputChunk != nil {
		if !out.CanPush() {
			return StatusPortFull
		}
		out.Push(t.outputChunk)
		t.outputChunk = nil
	}

	if t.inputChunk != nil {
		return StatusReady
	}

	if inp.HasData() {
		t.inputChunk = inp.Pull()
		return StatusReady
	}

	if inp.IsFinished() {
		if err := inp.Err(); err != nil {
			t.portErr = err
			return StatusReady
		}
		if !out.CanPush() {
			return StatusPortFull
		}
		t.finished = true
		out.SetFinished()
		return StatusFinished
	}

	return StatusNeedData
}

func (t *SimpleTransform) Work() error {
	if t.portErr != nil {
		err := t.portErr
		t.portErr = nil
		t.finished = true
		return err
	}

	block := t.inputChunk.Block
	t.inputChunk = nil

	result, err := t.fn(block)
	if err != nil {
		return err
	}
	if result != nil && result.NumRows() > 0 {
		t.outputChunk = NewChunk(result)
	}
	return nil
}
