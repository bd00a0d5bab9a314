package processor

// LimitTransform passes through up to limit rows, then finishes and
// cancels its upstream.
type LimitTransform struct {
	BaseProcessor
	limit   uint64
	emitted uint64

	inputChunk  *Chunk
	outputChunk *Chunk
	portErr     error
	finished    bool
}

// NewLimitTransform creates a limit transform.
func NewLimitTransform(limit uint64) *LimitTransform {
	return &LimitTransform{
		BaseProcessor: NewBaseProcessor("Limit", 1, 1),
		limit:         limit,
	}
}

func (l *LimitTransform) Prepare() Status {
	if l.finished {
		return StatusFinished
	}

	out := l.Output(0)
	inp := l.Input(0)

	if out.IsFinished() {
		l.finished = true
		inp.SetFinished()
		return StatusFinished
	}

	// Limit reached: wait for downstream to consume the last push, then
	// finish and cancel upstream.
	if l.emitted >= l.limit && l.outputChunk == nil {
		if out.CanPush() {
			l.finished = true
			out.SetFinished()
			inp.SetFinished()
			return StatusFinished
		}
		return StatusPortFull
	}

	// Push pending output.
	if l.outputChunk != nil {
		if out.CanPush() {
			out.Push(l.outputChunk)
			l.outputChunk = nil
			if l.emitted >= l.limit {
				// Wait for downstream to consume before finishing.
				return StatusPortFull
			}
			return StatusNeedData
		}
		return StatusPortFull
	}

	// Pull input.
	if l.inputChunk == nil {
		if inp.HasData() {
			l.inputChunk = inp.Pull()
		} else if inp.IsFinished() {
			if err := inp.Err(); err != nil {
				l.portErr = err
				return StatusReady
			}
			if out.CanPush() {
				l.finished = true
				out.SetFinished()
				return StatusFinished
			}
			return StatusPortFull
		} else {
			return StatusNeedData
		}
	}

	return StatusReady
}

func (l *LimitTransform) Work() error {
	if l.portErr != nil {
		err := l.portErr
		l.portErr = nil
		l.finished = true
		return err
	}

	block := l.inputChunk.Block
	l.inputChunk = nil

	remaining := l.limit - l.emitted
	if uint64(block.NumRows()) <= remaining {
		l.emitted += uint64(block.NumRows())
		l.outputChunk = NewChunk(block)
		return nil
	}

	sliced := block.SliceRows(0, int(remaining))
	l.emitted += uint64(sliced.NumRows())
	l.outputChunk = NewChunk(sliced)
	return nil
}
