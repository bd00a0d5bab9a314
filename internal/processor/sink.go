package processor

import "github.com/granitedb/granite/internal/column"

// CollectSink is a terminal processor that gathers all incoming chunks
// into a result slice.
type CollectSink struct {
	BaseProcessor

	Chunks   []*Chunk
	portErr  error
	finished bool
}

// NewCollectSink creates a collecting sink.
func NewCollectSink() *CollectSink {
	return &CollectSink{
		BaseProcessor: NewBaseProcessor("Collect", 1, 0),
	}
}

func (o *CollectSink) Prepare() Status {
	if o.finished {
		return StatusFinished
	}

	inp := o.Input(0)

	if inp.HasData() {
		o.Chunks = append(o.Chunks, inp.Pull())
		return StatusNeedData
	}

	if inp.IsFinished() {
		if err := inp.Err(); err != nil {
			o.portErr = err
			return StatusReady // Work surfaces the carried error
		}
		o.finished = true
		return StatusFinished
	}

	return StatusNeedData
}

func (o *CollectSink) Work() error {
	if o.portErr != nil {
		err := o.portErr
		o.portErr = nil
		o.finished = true
		return err
	}
	return nil
}

// ResultBlocks returns the collected non-empty blocks in arrival order.
func (o *CollectSink) ResultBlocks() []*column.Block {
	blocks := make([]*column.Block, 0, len(o.Chunks))
	for _, c := range o.Chunks {
		if c != nil && c.Block != nil && c.Block.NumRows() > 0 {
			blocks = append(blocks, c.Block)
		}
	}
	return blocks
}

// FuncSink is a terminal processor that hands every incoming block to a
// consume callback (e.g. a printer or a network writer).
type FuncSink struct {
	BaseProcessor

	consume func(*column.Block) error

	pending  *Chunk
	portErr  error
	finished bool
}

// NewFuncSink creates a sink around a consume callback.
func NewFuncSink(name string, consume func(*column.Block) error) *FuncSink {
	return &FuncSink{
		BaseProcessor: NewBaseProcessor(name, 1, 0),
		consume:       consume,
	}
}

func (s *FuncSink) Prepare() Status {
	if s.finished {
		return StatusFinished
	}

	inp := s.Input(0)

	if s.pending != nil {
		return StatusReady
	}

	if inp.HasData() {
		s.pending = inp.Pull()
		return StatusReady
	}

	if inp.IsFinished() {
		if err := inp.Err(); err != nil {
			s.portErr = err
			return StatusReady
		}
		s.finished = true
		return StatusFinished
	}

	return StatusNeedData
}

func (s *FuncSink) Work() error {
	if s.portErr != nil {
		err := s.portErr
		s.portErr = nil
		s.finished = true
		return err
	}
	chunk := s.pending
	s.pending = nil
	if chunk == nil || chunk.Block == nil {
		return nil
	}
	return s.consume(chunk.Block)
}
