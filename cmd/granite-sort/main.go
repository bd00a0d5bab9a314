package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/granitedb/granite/internal/column"
	"github.com/granitedb/granite/internal/processor"
	"github.com/granitedb/granite/internal/types"
)

// numbersSource yields count sequential uint64 rows in blocks of
// blockSize, in a pseudo-shuffled order so the sort has work to do.
func numbersSource(header column.Header, count, blockSize uint64) *processor.GeneratorSource {
	var next uint64
	return processor.NewGeneratorSource("Numbers", header, func() (*column.Block, error) {
		if next >= count {
			return nil, nil
		}
		n := blockSize
		if count-next < n {
			n = count - next
		}
		block := header.NewBlock(int(n))
		for i := uint64(0); i < n; i++ {
			v := next + i
			// Cheap scramble keeps the stream deterministic but far
			// from sorted.
			block.Columns[0].Append(v*2654435761 % count)
		}
		next += n
		return block, nil
	})
}

func runOnce(logger *zap.Logger, pool *ants.Pool, workers int, count, blockSize, limit, spillBytes uint64, tmpDir string, verbose bool) (uint64, error) {
	header := column.Header{
		Names: []string{"number"},
		Types: []types.DataType{types.TypeUInt64},
	}

	sorting := processor.NewMergeSortingTransform(processor.MergeSortingConfig{
		Header:      header,
		Description: column.SortDescription{{Column: 0, Direction: column.Ascending}},
		Limit:       limit,

		MaxBytesBeforeExternalSort: spillBytes,
		TmpDir:                     tmpDir,
		Logger:                     logger,
	})

	var printed uint64
	sink := processor.NewFuncSink("Print", func(b *column.Block) error {
		printed += uint64(b.NumRows())
		if !verbose {
			return nil
		}
		for i := 0; i < b.NumRows(); i++ {
			fmt.Println(types.ValueToString(b.Columns[0].Value(i)))
		}
		return nil
	})

	graph, err := processor.NewChainGraph(
		numbersSource(header, count, blockSize),
		sorting,
		sink,
	)
	if err != nil {
		return 0, err
	}

	exec := processor.NewPipelineExecutor(graph, workers).WithLogger(logger)
	if pool != nil {
		exec = exec.WithPool(pool)
	}
	if err := exec.Execute(); err != nil {
		return 0, err
	}
	return printed, nil
}

func main() {
	count := flag.Uint64("count", 1_000_000, "rows to generate")
	blockSize := flag.Uint64("block-size", 65536, "rows per generated block")
	limit := flag.Uint64("limit", 0, "truncate sorted output after this many rows (0 = all)")
	spillBytes := flag.Uint64("spill-bytes", 0, "spill sorted runs to disk past this buffer size (0 = in-memory)")
	tmpDir := flag.String("tmp-dir", os.TempDir(), "directory for spill files")
	workers := flag.Int("workers", runtime.NumCPU(), "executor worker count for the pooled pass")
	verbose := flag.Bool("v", false, "print every sorted row")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	logCfg := zap.NewProductionConfig()
	if *debug {
		logCfg = zap.NewDevelopmentConfig()
	}
	logger, err := logCfg.Build()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// Serial pass.
	start := time.Now()
	rows, err := runOnce(logger, nil, 1, *count, *blockSize, *limit, *spillBytes, *tmpDir, *verbose)
	if err != nil {
		logger.Fatal("serial sort failed", zap.Error(err))
	}
	serial := time.Since(start)
	fmt.Printf("single thread: sorted %d rows in %v\n", rows, serial)

	// Pooled pass with a shared goroutine pool.
	pool, err := ants.NewPool(*workers)
	if err != nil {
		logger.Fatal("pool", zap.Error(err))
	}
	defer pool.Release()

	start = time.Now()
	rows, err = runOnce(logger, pool, *workers, *count, *blockSize, *limit, *spillBytes, *tmpDir, *verbose)
	if err != nil {
		logger.Fatal("pooled sort failed", zap.Error(err))
	}
	pooled := time.Since(start)
	fmt.Printf("%d workers:     sorted %d rows in %v\n", *workers, rows, pooled)
}
