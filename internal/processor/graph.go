package processor

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Edge represents a connection from one processor's output to another's input.
type Edge struct {
	OutputProcessor int
	OutputPortIdx   int
	InputProcessor  int
	InputPortIdx    int
}

// processorState tracks per-processor scheduling state.
type processorState struct {
	claimed atomic.Int32
}

// ExecutingGraph holds the compiled processor DAG. It owns the wiring:
// ports are connected from the edge list, so processors never hold a
// reference to one another.
type ExecutingGraph struct {
	Processors   []Processor
	Edges        []Edge
	states       []processorState
	upstreamOf   [][]int // for each proc, list of upstream proc indices
	downstreamOf [][]int // for each proc, list of downstream proc indices
	cancelled    atomic.Bool
}

// NewExecutingGraph connects ports per the edge list and validates the
// wiring: every port of every processor must end up connected exactly
// once, with no port left dangling.
func NewExecutingGraph(procs []Processor, edges []Edge) (*ExecutingGraph, error) {
	n := len(procs)
	g := &ExecutingGraph{
		Processors:   procs,
		Edges:        edges,
		states:       make([]processorState, n),
		upstreamOf:   make([][]int, n),
		downstreamOf: make([][]int, n),
	}

	for _, e := range edges {
		if e.OutputProcessor < 0 || e.OutputProcessor >= n ||
			e.InputProcessor < 0 || e.InputProcessor >= n {
			return nil, errors.Mark(
				errors.Newf("edge references processor out of range: %+v", e), ErrGraphWiring)
		}
		from := procs[e.OutputProcessor]
		to := procs[e.InputProcessor]
		if e.OutputPortIdx < 0 || e.OutputPortIdx >= len(from.Outputs()) {
			return nil, errors.Mark(
				errors.Newf("%s has no output port %d", from.Name(), e.OutputPortIdx), ErrGraphWiring)
		}
		if e.InputPortIdx < 0 || e.InputPortIdx >= len(to.Inputs()) {
			return nil, errors.Mark(
				errors.Newf("%s has no input port %d", to.Name(), e.InputPortIdx), ErrGraphWiring)
		}
		out := from.Outputs()[e.OutputPortIdx]
		in := to.Inputs()[e.InputPortIdx]
		if out.connected {
			return nil, errors.Mark(
				errors.Newf("output port %d of %s connected twice", e.OutputPortIdx, from.Name()), ErrGraphWiring)
		}
		if in.connected {
			return nil, errors.Mark(
				errors.Newf("input port %d of %s connected twice", e.InputPortIdx, to.Name()), ErrGraphWiring)
		}
		Connect(out, in)

		g.downstreamOf[e.OutputProcessor] = appendUnique(
			g.downstreamOf[e.OutputProcessor], e.InputProcessor)
		g.upstreamOf[e.InputProcessor] = appendUnique(
			g.upstreamOf[e.InputProcessor], e.OutputProcessor)
	}

	for i, p := range procs {
		for portIdx, in := range p.Inputs() {
			if !in.connected {
				return nil, errors.Mark(
					errors.Newf("input port %d of %s (processor %d) is dangling", portIdx, p.Name(), i), ErrGraphWiring)
			}
		}
		for portIdx, out := range p.Outputs() {
			if !out.connected {
				return nil, errors.Mark(
					errors.Newf("output port %d of %s (processor %d) is dangling", portIdx, p.Name(), i), ErrGraphWiring)
			}
		}
	}

	return g, nil
}

// NewChainGraph wires procs into a linear pipeline: each processor's
// output 0 feeds the next processor's input 0.
func NewChainGraph(procs ...Processor) (*ExecutingGraph, error) {
	edges := make([]Edge, 0, len(procs)-1)
	for i := 0; i+1 < len(procs); i++ {
		edges = append(edges, Edge{
			OutputProcessor: i,
			InputProcessor:  i + 1,
		})
	}
	return NewExecutingGraph(procs, edges)
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// TryClaim attempts to claim a processor for execution using CAS.
// Per-processor mutual exclusion: a processor runs on at most one worker.
func (g *ExecutingGraph) TryClaim(procIdx int) bool {
	return g.states[procIdx].claimed.CompareAndSwap(0, 1)
}

// Release releases a previously claimed processor.
func (g *ExecutingGraph) Release(procIdx int) {
	g.states[procIdx].claimed.Store(0)
}

// Upstream returns indices of processors directly upstream of procIdx.
func (g *ExecutingGraph) Upstream(procIdx int) []int {
	return g.upstreamOf[procIdx]
}

// Downstream returns indices of processors directly downstream of procIdx.
func (g *ExecutingGraph) Downstream(procIdx int) []int {
	return g.downstreamOf[procIdx]
}

// Cancel requests cooperative shutdown: every processor finishes at its
// next scheduling opportunity without draining remaining input.
func (g *ExecutingGraph) Cancel() {
	g.cancelled.Store(true)
}

// IsCancelled reports whether shutdown was requested.
func (g *ExecutingGraph) IsCancelled() bool {
	return g.cancelled.Load()
}
