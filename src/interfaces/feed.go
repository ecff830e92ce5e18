package interfaces

import (
	"context"

	"stream-manager/src/history"
)

// -----------------------------------------------------------------------------

// IFeed defines the contract for an update-producing sequence of market data
// batches. Synchronous sources are adapted behind this interface by
// interleaving a configurable delay between items, so consumers see one
// uniform suspend-capable contract regardless of source flavor.
type IFeed interface {
	// Next blocks until the next batch is available, the context is
	// cancelled, or the source is exhausted. Exhaustion is reported as
	// io.EOF and is terminal: a drained feed never resumes.
	Next(ctx context.Context) ([]history.Row, error)

	// Exhausted reports whether the source has been drained. Restarting a
	// consumer on an exhausted feed is an error, not a silent no-op.
	Exhausted() bool
}
