package processor

import (
	"github.com/cockroachdb/errors"

	"github.com/granitedb/granite/internal/column"
)

// GeneratorSource emits blocks produced by a generate callback, one per
// Work step. A nil block from the callback ends the stream.
type GeneratorSource struct {
	BaseProcessor

	header   column.Header
	generate func() (*column.Block, error)

	chunk     *Chunk // produced chunk waiting to be pushed
	exhausted bool
	finished  bool
}

// NewGeneratorSource creates a source around a generate callback. Every
// produced block must match the header.
func NewGeneratorSource(name string, header column.Header, generate func() (*column.Block, error)) *GeneratorSource {
	return &GeneratorSource{
		BaseProcessor: NewBaseProcessor(name, 0, 1),
		header:        header,
		generate:      generate,
	}
}

// NewBlocksSource creates a source that emits a fixed slice of blocks.
func NewBlocksSource(header column.Header, blocks []*column.Block) *GeneratorSource {
	i := 0
	return NewGeneratorSource("Blocks", header, func() (*column.Block, error) {
		if i >= len(blocks) {
			return nil, nil
		}
		b := blocks[i]
		i++
		return b, nil
	})
}

// Header returns the layout of blocks this source emits.
func (s *GeneratorSource) Header() column.Header { return s.header }

func (s *GeneratorSource) Prepare() Status {
	if s.finished {
		return StatusFinished
	}

	out := s.Output(0)

	if out.IsFinished() {
		// Downstream cancelled.
		s.finished = true
		return StatusFinished
	}

	if s.exhausted {
		s.finished = true
		out.SetFinished()
		return StatusFinished
	}

	if s.chunk != nil {
		if !out.CanPush() {
			return StatusPortFull
		}
		out.Push(s.chunk)
		s.chunk = nil
		return StatusPortFull // wait for downstream to consume
	}

	if !out.CanPush() {
		return StatusPortFull
	}
	return StatusReady
}

func (s *GeneratorSource) Work() error {
	block, err := s.generate()
	if err != nil {
		return err
	}
	if block == nil {
		s.exhausted = true
		return nil
	}
	if !s.header.Matches(block) {
		return errors.Mark(
			errors.Newf("generated block does not match source header"), ErrData)
	}
	s.chunk = NewChunk(block)
	return nil
}
