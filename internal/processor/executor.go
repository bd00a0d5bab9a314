package processor

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// PipelineExecutor drives the processor DAG to completion, either on its
// own goroutines or on a caller-supplied worker pool. It terminates when
// every processor is Finished, or on the first error from any processor,
// in which case it requests cooperative shutdown and surfaces that error.
type PipelineExecutor struct {
	graph      *ExecutingGraph
	numWorkers int
	pool       *ants.Pool
	logger     *zap.Logger

	mu      sync.Mutex
	err     error
	errOnce sync.Once
	queue   chan int
	done    chan struct{}
	queued  []atomic.Bool
}

// NewPipelineExecutor creates an executor. numWorkers defaults to NumCPU
// if <= 0; pass 1 for serial execution.
func NewPipelineExecutor(graph *ExecutingGraph, numWorkers int) *PipelineExecutor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &PipelineExecutor{
		graph:      graph,
		numWorkers: numWorkers,
		logger:     zap.NewNop(),
	}
}

// WithPool runs the workers on the given ants pool instead of plain
// goroutines. The executor owns admission; processors never touch the pool.
func (ex *PipelineExecutor) WithPool(pool *ants.Pool) *PipelineExecutor {
	ex.pool = pool
	return ex
}

// WithLogger sets the executor logger.
func (ex *PipelineExecutor) WithLogger(logger *zap.Logger) *PipelineExecutor {
	ex.logger = logger
	return ex
}

// Cancel requests pipeline-wide stop. Every processor finishes at its
// next scheduling opportunity; resources are released through the normal
// cleanup path. Execute returns ErrCancelled unless it already failed.
func (ex *PipelineExecutor) Cancel() {
	ex.setErr(ErrCancelled)
	ex.graph.Cancel()
	ex.logger.Info("pipeline cancellation requested")

	ex.mu.Lock()
	queue, done, queued := ex.queue, ex.done, ex.queued
	ex.mu.Unlock()
	if queue == nil {
		return
	}
	// Wake every processor so it observes the cancellation.
	for i := range ex.graph.Processors {
		enqueueIfOpen(queue, done, queued, i)
	}
}

// Execute runs the pipeline to completion.
func (ex *PipelineExecutor) Execute() error {
	graph := ex.graph
	n := len(graph.Processors)
	if n == 0 {
		return nil
	}

	// Work queue: buffered channel of processor indices to evaluate. The
	// queued flags admit at most one pending entry per processor, so the
	// channel can hold at most n entries and a send never has to block.
	queue := make(chan int, n*4)
	done := make(chan struct{})
	queued := make([]atomic.Bool, n)
	ex.mu.Lock()
	ex.queue = queue
	ex.done = done
	ex.queued = queued
	ex.mu.Unlock()

	// Seed the queue with all processors.
	for i := 0; i < n; i++ {
		queued[i].Store(true)
		queue <- i
	}

	var wg sync.WaitGroup
	closeOnce := sync.Once{}

	var finishedCount atomic.Int32
	// Track which processors have been counted as finished to avoid
	// double-counting.
	finishedFlags := make([]atomic.Bool, n)

	worker := func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case procIdx, ok := <-queue:
				if !ok {
					return
				}
				// Clear before processing so a wakeup arriving mid-step
				// re-enqueues the processor rather than being dropped.
				queued[procIdx].Store(false)
				ex.processOne(procIdx, queue, queued, &finishedCount, finishedFlags, n, done, &closeOnce)
			}
		}
	}

	wg.Add(ex.numWorkers)
	for i := 0; i < ex.numWorkers; i++ {
		if ex.pool != nil {
			if err := ex.pool.Submit(worker); err != nil {
				// Pool saturated or released; fall back to a goroutine so
				// execution always makes progress.
				go worker()
			}
		} else {
			go worker()
		}
	}

	wg.Wait()

	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.err
}

func (ex *PipelineExecutor) processOne(
	procIdx int,
	queue chan int,
	queued []atomic.Bool,
	finishedCount *atomic.Int32,
	finishedFlags []atomic.Bool,
	totalProcs int,
	done chan struct{},
	closeOnce *sync.Once,
) {
	graph := ex.graph

	// Try to claim. If another worker holds it, put the wakeup back:
	// dropping it can strand the processor when nothing ever wakes it
	// again, e.g. after a cancellation broadcast.
	if !graph.TryClaim(procIdx) {
		enqueueIfOpen(queue, done, queued, procIdx)
		return
	}
	defer graph.Release(procIdx)

	if graph.IsCancelled() {
		ex.finishCancelled(procIdx, finishedCount, finishedFlags, totalProcs, done, closeOnce)
		return
	}

	proc := graph.Processors[procIdx]
	status := proc.Prepare()

	switch status {
	case StatusReady:
		err := runWork(proc)
		if err != nil {
			ex.fail(proc, err)
			ex.finishCancelled(procIdx, finishedCount, finishedFlags, totalProcs, done, closeOnce)
			for i := range graph.Processors {
				enqueueIfOpen(queue, done, queued, i)
			}
			return
		}

		// After work, re-evaluate self and neighbors.
		enqueueIfOpen(queue, done, queued, procIdx)
		for _, up := range graph.Upstream(procIdx) {
			enqueueIfOpen(queue, done, queued, up)
		}
		for _, down := range graph.Downstream(procIdx) {
			enqueueIfOpen(queue, done, queued, down)
		}

	case StatusNeedData:
		for _, up := range graph.Upstream(procIdx) {
			enqueueIfOpen(queue, done, queued, up)
		}

	case StatusPortFull:
		for _, down := range graph.Downstream(procIdx) {
			enqueueIfOpen(queue, done, queued, down)
		}

	case StatusAsync:
		ap, ok := proc.(AsyncProcessor)
		if !ok {
			ex.fail(proc, errors.Newf("returned StatusAsync without implementing AsyncProcessor"))
			ex.finishCancelled(procIdx, finishedCount, finishedFlags, totalProcs, done, closeOnce)
			for i := range graph.Processors {
				enqueueIfOpen(queue, done, queued, i)
			}
			return
		}
		ch := ap.AsyncDone()
		go func() {
			select {
			case <-ch:
				enqueueIfOpen(queue, done, queued, procIdx)
			case <-done:
			}
		}()

	case StatusFinished:
		// Neighbors may be waiting on this processor's final port
		// transitions.
		for _, up := range graph.Upstream(procIdx) {
			enqueueIfOpen(queue, done, queued, up)
		}
		for _, down := range graph.Downstream(procIdx) {
			enqueueIfOpen(queue, done, queued, down)
		}

		// Only count each processor's finish once.
		if finishedFlags[procIdx].CompareAndSwap(false, true) {
			if int(finishedCount.Add(1)) >= totalProcs {
				closeOnce.Do(func() { close(done) })
			}
		}
	}
}

// runWork invokes Work with panic containment, so one broken processor
// surfaces as an error instead of tearing down the process.
func runWork(proc Processor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic: %v", r)
		}
	}()
	return proc.Work()
}

// finishCancelled finishes a processor on the cancellation path: release
// its resources, close its ports, and count it as done.
func (ex *PipelineExecutor) finishCancelled(
	procIdx int,
	finishedCount *atomic.Int32,
	finishedFlags []atomic.Bool,
	totalProcs int,
	done chan struct{},
	closeOnce *sync.Once,
) {
	if !finishedFlags[procIdx].CompareAndSwap(false, true) {
		return
	}
	proc := ex.graph.Processors[procIdx]
	if c, ok := proc.(Canceller); ok {
		c.OnCancel()
	}
	for _, in := range proc.Inputs() {
		in.SetFinished()
	}
	for _, out := range proc.Outputs() {
		out.SetFinished()
	}
	if int(finishedCount.Add(1)) >= totalProcs {
		closeOnce.Do(func() { close(done) })
	}
}

// fail records the first error, attaches it to the failing processor's
// output ports, and requests shutdown. Later errors are discarded.
func (ex *PipelineExecutor) fail(proc Processor, err error) {
	wrapped := errors.Wrapf(err, "processor %s", proc.Name())
	ex.setErr(wrapped)
	for _, out := range proc.Outputs() {
		out.SetError(wrapped)
	}
	ex.graph.Cancel()
	ex.logger.Error("pipeline failed", zap.String("processor", proc.Name()), zap.Error(err))
}

func (ex *PipelineExecutor) setErr(err error) {
	ex.errOnce.Do(func() {
		ex.mu.Lock()
		ex.err = err
		ex.mu.Unlock()
	})
}

func enqueueIfOpen(queue chan int, done chan struct{}, queued []atomic.Bool, procIdx int) {
	// Skip if already pending; the entry in flight covers this wakeup.
	if !queued[procIdx].CompareAndSwap(false, true) {
		return
	}
	for {
		select {
		case <-done:
			return
		case queue <- procIdx:
			return
		default:
			runtime.Gosched()
		}
	}
}
