// Package processor implements the execution core: a DAG of processors
// exchanging chunks of columnar data through single-slot ports, driven to
// completion by a pipeline executor.
package processor

// Status tells the executor what the processor needs.
type Status int

const (
	// StatusNeedData: input has no data; schedule upstream.
	StatusNeedData Status = iota
	// StatusPortFull: output has unconsumed data; schedule downstream.
	StatusPortFull
	// StatusReady: processor has data to process; call Work().
	StatusReady
	// StatusAsync: a background operation is in flight; re-schedule when
	// the processor's AsyncDone channel fires.
	StatusAsync
	// StatusFinished: processor is done and will never produce more.
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusNeedData:
		return "NeedData"
	case StatusPortFull:
		return "PortFull"
	case StatusReady:
		return "Ready"
	case StatusAsync:
		return "Async"
	case StatusFinished:
		return "Finished"
	}
	return "Unknown"
}

// Processor is a node in the execution DAG.
//
// Prepare() inspects port states, moves chunks across its own ports, and
// returns what the executor should do next. It must be lightweight.
//
// Work() performs the actual computation. Called only when Prepare()
// returned StatusReady. May run on any goroutine in the pool, but never
// on two at once: the executor claims a processor before stepping it.
type Processor interface {
	Name() string
	Prepare() Status
	Work() error
	Inputs() []*InputPort
	Outputs() []*OutputPort
}

// AsyncProcessor is implemented by processors that may return StatusAsync.
// AsyncDone fires when the background operation completes and the
// processor should be scheduled again.
type AsyncProcessor interface {
	Processor
	AsyncDone() <-chan struct{}
}

// Canceller is implemented by processors that hold resources needing
// release when the pipeline is cancelled before they finish normally.
type Canceller interface {
	OnCancel()
}

// BaseProcessor provides common port management.
type BaseProcessor struct {
	name    string
	inputs  []*InputPort
	outputs []*OutputPort
}

// NewBaseProcessor creates a BaseProcessor with the given port counts.
func NewBaseProcessor(name string, numInputs, numOutputs int) BaseProcessor {
	inputs := make([]*InputPort, numInputs)
	for i := range inputs {
		inputs[i] = NewInputPort()
	}
	outputs := make([]*OutputPort, numOutputs)
	for i := range outputs {
		outputs[i] = NewOutputPort()
	}
	return BaseProcessor{
		name:    name,
		inputs:  inputs,
		outputs: outputs,
	}
}

func (b *BaseProcessor) Name() string           { return b.name }
func (b *BaseProcessor) Inputs() []*InputPort   { return b.inputs }
func (b *BaseProcessor) Outputs() []*OutputPort { return b.outputs }

// Input returns the i-th input port.
func (b *BaseProcessor) Input(i int) *InputPort { return b.inputs[i] }

// Output returns the i-th output port.
func (b *BaseProcessor) Output(i int) *OutputPort { return b.outputs[i] }
