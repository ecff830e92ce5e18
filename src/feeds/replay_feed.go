package feeds

import (
	"context"
	"io"
	"sync"
	"time"

	"stream-manager/src/history"
)

// -----------------------------------------------------------------------------

// ReplayFeed walks a fixed sequence of update batches, waiting a configured
// delay between consecutive ones. Once the sequence is drained the feed is
// permanently exhausted and every further Next returns io.EOF.
type ReplayFeed struct {
	mu        sync.Mutex
	batches   [][]history.Row
	cursor    int
	delay     time.Duration
	exhausted bool
}

// -----------------------------------------------------------------------------

// NewReplayFeed builds a feed over the given batches
func NewReplayFeed(batches [][]history.Row, delay time.Duration) *ReplayFeed {
	return &ReplayFeed{batches: batches, delay: delay}
}

// -----------------------------------------------------------------------------

// NewRowReplayFeed builds a feed that yields one row per batch
func NewRowReplayFeed(rows []history.Row, delay time.Duration) *ReplayFeed {
	batches := make([][]history.Row, 0, len(rows))
	for _, row := range rows {
		batches = append(batches, []history.Row{row})
	}
	return NewReplayFeed(batches, delay)
}

// -----------------------------------------------------------------------------

// Next returns the next batch in sequence. The delay is applied before
// every batch after the first, interruptible by the context.
func (f *ReplayFeed) Next(ctx context.Context) ([]history.Row, error) {
	f.mu.Lock()
	if f.cursor >= len(f.batches) {
		f.exhausted = true
		f.mu.Unlock()
		return nil, io.EOF
	}
	batch := f.batches[f.cursor]
	first := f.cursor == 0
	f.cursor++
	delay := f.delay
	f.mu.Unlock()

	if !first && delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return batch, nil
}

// -----------------------------------------------------------------------------

// Exhausted reports whether the sequence has been fully drained
func (f *ReplayFeed) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exhausted
}
