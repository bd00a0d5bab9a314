package processor

import (
	"container/heap"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/granitedb/granite/internal/column"
	"github.com/granitedb/granite/internal/spill"
)

const (
	defaultMergedBlockSize = 8192

	// Remerging pays off only when the buffer holds well more than the
	// limit; below this multiple a pass cannot shrink it meaningfully.
	remergeRowsFactor = 2
)

// MergeSortingConfig configures a MergeSortingTransform. Zero values
// disable the corresponding bound.
type MergeSortingConfig struct {
	Header      column.Header
	Description column.SortDescription

	// MaxMergedBlockSize caps rows per output block during the final
	// merge. Defaults to defaultMergedBlockSize.
	MaxMergedBlockSize int

	// Limit truncates the sorted output after this many rows.
	Limit uint64

	// MaxBytesBeforeRemerge enables periodic re-sorting of the in-memory
	// buffer down to Limit rows while still consuming. Requires Limit.
	MaxBytesBeforeRemerge uint64

	// MaxBytesBeforeExternalSort spills the buffer to disk as a sorted
	// run whenever it grows past this many bytes.
	MaxBytesBeforeExternalSort uint64

	// MaxRowsToSort and MaxBytesToSort bound total consumed input;
	// exceeding either fails the pipeline with ErrResourceLimit.
	MaxRowsToSort  uint64
	MaxBytesToSort uint64

	// TmpDir holds spill files. Required when external sort is enabled.
	TmpDir string

	Logger *zap.Logger
}

type mergeSortStage int

const (
	stageConsume mergeSortStage = iota
	stageFinalize
	stageMerge
)

type mergeSortAction int

const (
	actionNone mergeSortAction = iota
	actionSpill
	actionRemerge
)

// MergeSortingTransform sorts its entire input by a sort description.
// It accumulates incoming blocks, optionally spilling sorted runs to
// disk when the buffer outgrows MaxBytesBeforeExternalSort, then merges
// all runs into sorted output blocks. The sort is stable: rows that
// compare equal keep their input order.
type MergeSortingTransform struct {
	BaseProcessor

	cfg    MergeSortingConfig
	logger *zap.Logger

	stage  mergeSortStage
	action mergeSortAction

	blocks          []*column.Block
	bufRows         uint64
	bufBytes        uint64
	totalRows       uint64
	totalBytes      uint64
	remergeDisabled bool

	// Async spill state. spillRun/spillErr are written by the spill
	// goroutine before spillCh is closed and read only after.
	spilling bool
	spillCh  chan struct{}
	spillRun *spill.Run
	spillErr error

	spilledRuns []*spill.Run
	memoryRun   *column.Block

	mergeHeap *cursorHeap
	emitted   uint64
	mergeDone bool

	outputChunk *Chunk
	pendingErr  error
	finished    bool
	released    bool
}

// NewMergeSortingTransform creates a merge sorting transform.
func NewMergeSortingTransform(cfg MergeSortingConfig) *MergeSortingTransform {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxMergedBlockSize <= 0 {
		cfg.MaxMergedBlockSize = defaultMergedBlockSize
	}
	return &MergeSortingTransform{
		BaseProcessor: NewBaseProcessor("MergeSorting", 1, 1),
		cfg:           cfg,
		logger:        logger,
	}
}

// AsyncDone exposes completion of an in-flight background spill.
func (t *MergeSortingTransform) AsyncDone() <-chan struct{} { return t.spillCh }

// OnCancel releases spill files and merge readers when the pipeline is
// torn down before the transform finishes normally.
func (t *MergeSortingTransform) OnCancel() { t.release() }

func (t *MergeSortingTransform) Prepare() Status {
	if t.finished {
		return StatusFinished
	}

	out := t.Output(0)
	inp := t.Input(0)

	if out.IsFinished() {
		// Downstream cancelled.
		t.release()
		t.finished = true
		inp.SetFinished()
		return StatusFinished
	}

	if t.pendingErr != nil {
		return StatusReady
	}

	if t.spilling {
		select {
		case <-t.spillCh:
			t.spilling = false
			if t.spillErr != nil {
				t.pendingErr = t.spillErr
				return StatusReady
			}
			t.spilledRuns = append(t.spilledRuns, t.spillRun)
			t.spillRun = nil
		default:
			return StatusAsync
		}
	}

	// Push pending merged output.
	if t.outputChunk != nil {
		if !out.CanPush() {
			return StatusPortFull
		}
		out.Push(t.outputChunk)
		t.outputChunk = nil
		if t.mergeDone {
			// Wait for downstream to drain the last block; SetFinished
			// would drop it from the slot.
			return StatusPortFull
		}
		return StatusReady
	}

	switch t.stage {
	case stageConsume:
		if t.action != actionNone {
			return StatusReady
		}
		if inp.HasData() {
			if st := t.consume(inp.Pull()); st != StatusNeedData {
				return st
			}
		}
		if inp.IsFinished() {
			if err := inp.Err(); err != nil {
				t.pendingErr = err
				return StatusReady
			}
			t.stage = stageFinalize
			return StatusReady
		}
		return StatusNeedData

	case stageFinalize:
		return StatusReady

	case stageMerge:
		if t.mergeDone {
			if !out.CanPush() {
				return StatusPortFull
			}
			t.release()
			t.finished = true
			out.SetFinished()
			inp.SetFinished()
			return StatusFinished
		}
		return StatusReady
	}

	return StatusFinished
}

// consume buffers one pulled chunk and decides what has to happen next:
// keep consuming, run a spill/remerge pass, or surface an error.
func (t *MergeSortingTransform) consume(chunk *Chunk) Status {
	block := chunk.Block
	if block == nil || block.NumRows() == 0 {
		return StatusNeedData
	}
	if !t.cfg.Header.Matches(block) {
		t.pendingErr = errors.Mark(
			errors.Newf("block layout does not match sort header %v", t.cfg.Header.Names),
			ErrData)
		return StatusReady
	}

	rows := uint64(block.NumRows())
	bytes := block.ByteSize()
	t.blocks = append(t.blocks, block)
	t.bufRows += rows
	t.bufBytes += bytes
	t.totalRows += rows
	t.totalBytes += bytes

	if t.cfg.MaxRowsToSort > 0 && t.totalRows > t.cfg.MaxRowsToSort {
		t.pendingErr = errors.Mark(
			errors.Newf("too many rows to sort: %d, maximum %d", t.totalRows, t.cfg.MaxRowsToSort),
			ErrResourceLimit)
		return StatusReady
	}
	if t.cfg.MaxBytesToSort > 0 && t.totalBytes > t.cfg.MaxBytesToSort {
		t.pendingErr = errors.Mark(
			errors.Newf("too many bytes to sort: %d, maximum %d", t.totalBytes, t.cfg.MaxBytesToSort),
			ErrResourceLimit)
		return StatusReady
	}

	if t.cfg.MaxBytesBeforeExternalSort > 0 && t.bufBytes > t.cfg.MaxBytesBeforeExternalSort {
		t.action = actionSpill
		return StatusReady
	}
	if t.cfg.Limit > 0 && !t.remergeDisabled &&
		t.cfg.MaxBytesBeforeRemerge > 0 &&
		t.bufBytes > t.cfg.MaxBytesBeforeRemerge &&
		t.bufRows > remergeRowsFactor*t.cfg.Limit {
		t.action = actionRemerge
		return StatusReady
	}

	return StatusNeedData
}

func (t *MergeSortingTransform) Work() error {
	if t.pendingErr != nil {
		err := t.pendingErr
		t.pendingErr = nil
		return err
	}

	switch {
	case t.action == actionSpill:
		t.action = actionNone
		return t.startSpill()
	case t.action == actionRemerge:
		t.action = actionNone
		return t.remerge()
	case t.stage == stageFinalize:
		return t.buildMerge()
	case t.stage == stageMerge:
		return t.mergeStep()
	}
	return nil
}

// drainBuffer concatenates the buffered blocks into one and resets the
// buffer counters.
func (t *MergeSortingTransform) drainBuffer() (*column.Block, error) {
	if len(t.blocks) == 0 {
		return nil, nil
	}
	merged := t.blocks[0]
	for _, b := range t.blocks[1:] {
		if err := merged.AppendBlock(b); err != nil {
			return nil, errors.Mark(err, ErrData)
		}
	}
	t.blocks = nil
	t.bufRows = 0
	t.bufBytes = 0
	return merged, nil
}

// startSpill sorts the buffered rows and writes them to disk as a run
// in the background. The executor parks the transform on AsyncDone.
func (t *MergeSortingTransform) startSpill() error {
	block, err := t.drainBuffer()
	if err != nil {
		return err
	}
	if block == nil || block.NumRows() == 0 {
		return nil
	}
	block.SortByDescription(t.cfg.Description)

	t.logger.Info("spilling sorted run to disk",
		zap.Int("run", len(t.spilledRuns)),
		zap.Int("rows", block.NumRows()),
		zap.Uint64("bytes", block.ByteSize()),
		zap.String("dir", t.cfg.TmpDir))

	t.spillCh = make(chan struct{})
	t.spilling = true
	go func() {
		defer close(t.spillCh)
		t.spillRun, t.spillErr = spill.WriteRun(t.cfg.TmpDir, t.cfg.Header, block, t.logger)
	}()
	return nil
}

// remerge re-sorts the buffer and cuts it down to the limit, bounding
// memory for top-K queries. If a pass fails to roughly halve the buffer
// it is not attempted again.
func (t *MergeSortingTransform) remerge() error {
	beforeRows := t.bufRows
	beforeBytes := t.bufBytes

	block, err := t.drainBuffer()
	if err != nil {
		return err
	}
	if block == nil {
		return nil
	}
	block.SortByDescription(t.cfg.Description)
	if uint64(block.NumRows()) > t.cfg.Limit {
		block = block.SliceRows(0, int(t.cfg.Limit))
	}

	t.blocks = []*column.Block{block}
	t.bufRows = uint64(block.NumRows())
	t.bufBytes = block.ByteSize()

	t.logger.Debug("remerged sort buffer",
		zap.Uint64("rows_before", beforeRows),
		zap.Uint64("rows_after", t.bufRows),
		zap.Uint64("bytes_before", beforeBytes),
		zap.Uint64("bytes_after", t.bufBytes))

	if t.bufBytes*2 > beforeBytes {
		t.remergeDisabled = true
		t.logger.Debug("remerge freed too little memory, disabled for this sort")
	}
	return nil
}

// buildMerge sorts the remaining buffer as the last run and seeds the
// k-way merge heap with all runs in creation order.
func (t *MergeSortingTransform) buildMerge() error {
	block, err := t.drainBuffer()
	if err != nil {
		return err
	}
	if block != nil && block.NumRows() > 0 {
		block.SortByDescription(t.cfg.Description)
		t.memoryRun = block
	}

	cursors := make([]*runCursor, 0, len(t.spilledRuns)+1)
	for i, run := range t.spilledRuns {
		c, err := newSpillCursor(i, run)
		if err != nil {
			return err
		}
		if c.empty() {
			c.close()
			continue
		}
		cursors = append(cursors, c)
	}
	if t.memoryRun != nil {
		cursors = append(cursors, newMemoryCursor(len(t.spilledRuns), t.memoryRun))
	}

	if len(t.spilledRuns) > 0 {
		t.logger.Info("merging sorted runs",
			zap.Int("spilled_runs", len(t.spilledRuns)),
			zap.Bool("memory_run", t.memoryRun != nil),
			zap.Uint64("total_rows", t.totalRows))
	}

	t.mergeHeap = &cursorHeap{cursors: cursors, desc: t.cfg.Description}
	heap.Init(t.mergeHeap)
	t.stage = stageMerge
	if t.mergeHeap.Len() == 0 {
		t.mergeDone = true
	}
	return nil
}

// mergeStep produces the next merged output block.
func (t *MergeSortingTransform) mergeStep() error {
	out := t.cfg.Header.NewBlock(t.cfg.MaxMergedBlockSize)

	for t.mergeHeap.Len() > 0 && out.NumRows() < t.cfg.MaxMergedBlockSize {
		c := t.mergeHeap.cursors[0]
		out.AppendRow(c.block, c.row)
		t.emitted++

		more, err := c.advance()
		if err != nil {
			return err
		}
		if more {
			heap.Fix(t.mergeHeap, 0)
		} else {
			heap.Pop(t.mergeHeap)
			c.close()
		}

		if t.cfg.Limit > 0 && t.emitted >= t.cfg.Limit {
			break
		}
	}

	if t.mergeHeap.Len() == 0 || (t.cfg.Limit > 0 && t.emitted >= t.cfg.Limit) {
		t.mergeDone = true
	}
	if out.NumRows() > 0 {
		t.outputChunk = NewChunk(out)
	}
	return nil
}

// release drops all buffered state and deletes spill files. Idempotent.
// Waits out an in-flight background spill so its file is not orphaned.
func (t *MergeSortingTransform) release() {
	if t.released {
		return
	}
	t.released = true

	if t.spilling {
		<-t.spillCh
		t.spilling = false
		if t.spillRun != nil {
			t.spillRun.Release()
			t.spillRun = nil
		}
	}
	if t.mergeHeap != nil {
		for _, c := range t.mergeHeap.cursors {
			c.close()
		}
		t.mergeHeap = nil
	}
	for _, run := range t.spilledRuns {
		run.Release()
	}
	t.spilledRuns = nil
	t.blocks = nil
	t.memoryRun = nil
}
