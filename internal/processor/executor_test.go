package processor

import (
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"

	"github.com/granitedb/granite/internal/column"
	"github.com/granitedb/granite/internal/types"
)

func uint64Header() column.Header {
	return column.Header{Names: []string{"v"}, Types: []types.DataType{types.TypeUInt64}}
}

func uint64Blocks(blockSize int, vals ...uint64) []*column.Block {
	var blocks []*column.Block
	for start := 0; start < len(vals); start += blockSize {
		end := start + blockSize
		if end > len(vals) {
			end = len(vals)
		}
		b := uint64Header().NewBlock(end - start)
		for _, v := range vals[start:end] {
			b.Columns[0].Append(v)
		}
		blocks = append(blocks, b)
	}
	return blocks
}

func seq(n uint64) []uint64 {
	vals := make([]uint64, n)
	for i := range vals {
		vals[i] = uint64(i)
	}
	return vals
}

func flatten(blocks []*column.Block) []uint64 {
	var out []uint64
	for _, b := range blocks {
		for i := 0; i < b.NumRows(); i++ {
			out = append(out, b.Columns[0].Value(i).(uint64))
		}
	}
	return out
}

func sortedCopy(vals []uint64) []uint64 {
	out := append([]uint64(nil), vals...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestExecutorChain(t *testing.T) {
	src := NewBlocksSource(uint64Header(), uint64Blocks(10, seq(100)...))
	double := NewSimpleTransform("Double", func(b *column.Block) (*column.Block, error) {
		out := uint64Header().NewBlock(b.NumRows())
		for i := 0; i < b.NumRows(); i++ {
			out.Columns[0].Append(b.Columns[0].Value(i).(uint64) * 2)
		}
		return out, nil
	})
	sink := NewCollectSink()

	graph, err := NewChainGraph(src, double, sink)
	if err != nil {
		t.Fatalf("NewChainGraph: %v", err)
	}
	if err := NewPipelineExecutor(graph, 1).Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got := flatten(sink.ResultBlocks())
	if len(got) != 100 {
		t.Fatalf("got %d rows, want 100", len(got))
	}
	for i, v := range got {
		if v != uint64(i)*2 {
			t.Fatalf("row %d: got %d, want %d", i, v, i*2)
		}
	}
}

func TestExecutorPooled(t *testing.T) {
	pool, err := ants.NewPool(4)
	if err != nil {
		t.Fatalf("ants.NewPool: %v", err)
	}
	defer pool.Release()

	src := NewBlocksSource(uint64Header(), uint64Blocks(7, seq(500)...))
	sink := NewCollectSink()

	graph, err := NewChainGraph(src, sink)
	if err != nil {
		t.Fatalf("NewChainGraph: %v", err)
	}
	if err := NewPipelineExecutor(graph, 4).WithPool(pool).Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got := sortedCopy(flatten(sink.ResultBlocks()))
	if len(got) != 500 {
		t.Fatalf("got %d rows, want 500", len(got))
	}
	for i, v := range got {
		if v != uint64(i) {
			t.Fatalf("row %d: got %d", i, v)
		}
	}
}

func TestExecutorFilter(t *testing.T) {
	src := NewBlocksSource(uint64Header(), uint64Blocks(10, seq(100)...))
	even := NewFilterTransform(func(b *column.Block, row int) bool {
		return b.Columns[0].Value(row).(uint64)%2 == 0
	})
	sink := NewCollectSink()

	graph, err := NewChainGraph(src, even, sink)
	if err != nil {
		t.Fatalf("NewChainGraph: %v", err)
	}
	if err := NewPipelineExecutor(graph, 1).Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got := flatten(sink.ResultBlocks())
	if len(got) != 50 {
		t.Fatalf("got %d rows, want 50", len(got))
	}
	for _, v := range got {
		if v%2 != 0 {
			t.Fatalf("odd row %d passed the filter", v)
		}
	}
}

func TestExecutorLimitCancelsUpstream(t *testing.T) {
	// Unbounded source; the limit must stop the pipeline.
	var produced uint64
	src := NewGeneratorSource("Numbers", uint64Header(), func() (*column.Block, error) {
		b := uint64Header().NewBlock(10)
		for i := 0; i < 10; i++ {
			b.Columns[0].Append(produced)
			produced++
		}
		return b, nil
	})
	limit := NewLimitTransform(25)
	sink := NewCollectSink()

	graph, err := NewChainGraph(src, limit, sink)
	if err != nil {
		t.Fatalf("NewChainGraph: %v", err)
	}
	if err := NewPipelineExecutor(graph, 1).Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got := flatten(sink.ResultBlocks())
	if len(got) != 25 {
		t.Fatalf("got %d rows, want 25", len(got))
	}
	for i, v := range got {
		if v != uint64(i) {
			t.Fatalf("row %d: got %d", i, v)
		}
	}
}

func TestExecutorConcat(t *testing.T) {
	srcA := NewBlocksSource(uint64Header(), uint64Blocks(10, seq(50)...))
	srcB := NewBlocksSource(uint64Header(), uint64Blocks(10, seq(50)...))
	concat := NewConcatProcessor(2)
	sink := NewCollectSink()

	graph, err := NewExecutingGraph(
		[]Processor{srcA, srcB, concat, sink},
		[]Edge{
			{OutputProcessor: 0, InputProcessor: 2, InputPortIdx: 0},
			{OutputProcessor: 1, InputProcessor: 2, InputPortIdx: 1},
			{OutputProcessor: 2, InputProcessor: 3},
		})
	if err != nil {
		t.Fatalf("NewExecutingGraph: %v", err)
	}
	if err := NewPipelineExecutor(graph, 2).Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got := sortedCopy(flatten(sink.ResultBlocks()))
	if len(got) != 100 {
		t.Fatalf("got %d rows, want 100", len(got))
	}
	for i, v := range got {
		if v != uint64(i/2) {
			t.Fatalf("row %d: got %d, want %d", i, v, i/2)
		}
	}
}

func TestGraphWiringDanglingPort(t *testing.T) {
	// Transform with nothing feeding its input.
	tr := NewSimpleTransform("Noop", func(b *column.Block) (*column.Block, error) { return b, nil })
	sink := NewCollectSink()

	_, err := NewExecutingGraph(
		[]Processor{tr, sink},
		[]Edge{{OutputProcessor: 0, InputProcessor: 1}})
	if err == nil {
		t.Fatal("expected wiring error for dangling input")
	}
	if !errors.Is(err, ErrGraphWiring) {
		t.Fatalf("err = %v, want ErrGraphWiring", err)
	}
}

func TestGraphWiringDoubleConnect(t *testing.T) {
	src := NewBlocksSource(uint64Header(), nil)
	sinkA := NewCollectSink()
	sinkB := NewCollectSink()

	_, err := NewExecutingGraph(
		[]Processor{src, sinkA, sinkB},
		[]Edge{
			{OutputProcessor: 0, InputProcessor: 1},
			{OutputProcessor: 0, InputProcessor: 2},
		})
	if err == nil {
		t.Fatal("expected wiring error for double-connected output")
	}
	if !errors.Is(err, ErrGraphWiring) {
		t.Fatalf("err = %v, want ErrGraphWiring", err)
	}
}

func TestGraphWiringOutOfRange(t *testing.T) {
	src := NewBlocksSource(uint64Header(), nil)
	sink := NewCollectSink()

	_, err := NewExecutingGraph(
		[]Processor{src, sink},
		[]Edge{{OutputProcessor: 0, InputProcessor: 5}})
	if !errors.Is(err, ErrGraphWiring) {
		t.Fatalf("err = %v, want ErrGraphWiring", err)
	}
}

func TestExecutorSourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	calls := 0
	src := NewGeneratorSource("Failing", uint64Header(), func() (*column.Block, error) {
		calls++
		if calls > 3 {
			return nil, boom
		}
		b := uint64Header().NewBlock(1)
		b.Columns[0].Append(uint64(calls))
		return b, nil
	})
	sink := NewCollectSink()

	graph, err := NewChainGraph(src, sink)
	if err != nil {
		t.Fatalf("NewChainGraph: %v", err)
	}
	err = NewPipelineExecutor(graph, 1).Execute()
	if !errors.Is(err, boom) {
		t.Fatalf("Execute = %v, want the source error", err)
	}
}

func TestExecutorSinkError(t *testing.T) {
	boom := errors.New("downstream rejected")
	src := NewBlocksSource(uint64Header(), uint64Blocks(10, seq(100)...))
	sink := NewFuncSink("Reject", func(b *column.Block) error { return boom })

	graph, err := NewChainGraph(src, sink)
	if err != nil {
		t.Fatalf("NewChainGraph: %v", err)
	}
	err = NewPipelineExecutor(graph, 1).Execute()
	if !errors.Is(err, boom) {
		t.Fatalf("Execute = %v, want the sink error", err)
	}
}

func TestExecutorPanicRecovery(t *testing.T) {
	src := NewBlocksSource(uint64Header(), uint64Blocks(10, seq(10)...))
	tr := NewSimpleTransform("Broken", func(b *column.Block) (*column.Block, error) {
		panic("index out of range, probably")
	})
	sink := NewCollectSink()

	graph, err := NewChainGraph(src, tr, sink)
	if err != nil {
		t.Fatalf("NewChainGraph: %v", err)
	}
	err = NewPipelineExecutor(graph, 1).Execute()
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("Execute = %v, want contained panic", err)
	}
}

func TestExecutorCancel(t *testing.T) {
	// Endless source; only Cancel can stop this pipeline.
	src := NewGeneratorSource("Endless", uint64Header(), func() (*column.Block, error) {
		b := uint64Header().NewBlock(1)
		b.Columns[0].Append(uint64(0))
		return b, nil
	})
	sink := NewFuncSink("Discard", func(b *column.Block) error { return nil })

	graph, err := NewChainGraph(src, sink)
	if err != nil {
		t.Fatalf("NewChainGraph: %v", err)
	}
	ex := NewPipelineExecutor(graph, 2)

	go func() {
		time.Sleep(20 * time.Millisecond)
		ex.Cancel()
	}()

	err = ex.Execute()
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Execute = %v, want ErrCancelled", err)
	}
}

func TestExecutorCancelRace(t *testing.T) {
	// Cancellation racing the workers: the broadcast wakeup must not be
	// lost even when it lands on a processor another worker has claimed.
	for i := 0; i < 50; i++ {
		src := NewGeneratorSource("Endless", uint64Header(), func() (*column.Block, error) {
			b := uint64Header().NewBlock(1)
			b.Columns[0].Append(uint64(0))
			return b, nil
		})
		sink := NewFuncSink("Discard", func(b *column.Block) error { return nil })

		graph, err := NewChainGraph(src, sink)
		if err != nil {
			t.Fatalf("NewChainGraph: %v", err)
		}
		ex := NewPipelineExecutor(graph, 4)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			ex.Cancel()
		}()

		if err := ex.Execute(); !errors.Is(err, ErrCancelled) {
			t.Fatalf("iteration %d: Execute = %v, want ErrCancelled", i, err)
		}
		wg.Wait()
	}
}

func TestExecutorEmptyGraph(t *testing.T) {
	graph, err := NewExecutingGraph(nil, nil)
	if err != nil {
		t.Fatalf("NewExecutingGraph: %v", err)
	}
	if err := NewPipelineExecutor(graph, 1).Execute(); err != nil {
		t.Fatalf("Execute on empty graph: %v", err)
	}
}
