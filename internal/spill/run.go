// Package spill persists sorted runs to temporary files so a sort can
// proceed under a fixed memory budget. The format is engine-private:
// files are written and read back within one transform's lifetime and
// deleted on release, whatever the exit path.
package spill

import (
	"os"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// ErrStorage marks spill file creation/write/read failures.
var ErrStorage = errors.New("spill storage error")

// Run is a handle to one sorted run on disk. The file exists from writer
// Finish until Release.
type Run struct {
	path     string
	rows     uint64
	logger   *zap.Logger
	released atomic.Bool
}

// Path returns the backing file path.
func (r *Run) Path() string { return r.path }

// NumRows returns the number of rows stored in the run.
func (r *Run) NumRows() uint64 { return r.rows }

// Release deletes the backing file. Idempotent and safe on all exit
// paths, including error unwinding and cancellation.
func (r *Run) Release() {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return
	}
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("failed to remove spill file",
			zap.String("path", r.path), zap.Error(err))
	}
}
