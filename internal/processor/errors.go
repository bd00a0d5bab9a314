package processor

import "github.com/cockroachdb/errors"

// Error kinds surfaced by the execution core. Concrete errors are marked
// with one of these references so callers can classify them with
// errors.Is across wrapping. Storage failures carry spill.ErrStorage.
var (
	// ErrGraphWiring: dangling or doubly-connected ports, detected
	// before execution starts.
	ErrGraphWiring = errors.New("graph wiring error")

	// ErrData: malformed or inconsistent chunk, e.g. a block whose
	// layout does not match the port header.
	ErrData = errors.New("data error")

	// ErrResourceLimit: caller-configured row/byte ceiling exceeded.
	ErrResourceLimit = errors.New("resource limit exceeded")

	// ErrCancelled: external stop requested.
	ErrCancelled = errors.New("pipeline cancelled")
)
