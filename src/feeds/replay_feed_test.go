package feeds

import (
	"context"
	"io"
	"testing"
	"time"

	"stream-manager/src/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

func replayRows() []history.Row {
	return []history.Row{
		{Time: "t1", Instrument: "AAPL", Fields: map[string]float64{"close": 100}},
		{Time: "t2", Instrument: "AAPL", Fields: map[string]float64{"close": 101}},
	}
}

// -----------------------------------------------------------------------------

func TestReplayFeedDrainsInOrder(t *testing.T) {
	feed := NewRowReplayFeed(replayRows(), 0)
	ctx := context.Background()

	first, err := feed.Next(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "t1", first[0].Time)
	assert.False(t, feed.Exhausted())

	second, err := feed.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t2", second[0].Time)

	_, err = feed.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, feed.Exhausted())

	// Exhaustion is terminal
	_, err = feed.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

// -----------------------------------------------------------------------------

func TestReplayFeedBatches(t *testing.T) {
	feed := NewReplayFeed([][]history.Row{replayRows()}, 0)

	batch, err := feed.Next(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	_, err = feed.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

// -----------------------------------------------------------------------------

func TestReplayFeedFirstBatchHasNoDelay(t *testing.T) {
	feed := NewRowReplayFeed(replayRows(), time.Hour)

	start := time.Now()
	_, err := feed.Next(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

// -----------------------------------------------------------------------------

func TestReplayFeedDelayInterruptible(t *testing.T) {
	feed := NewRowReplayFeed(replayRows(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := feed.Next(ctx)
	require.NoError(t, err)

	finished := make(chan error, 1)
	go func() {
		_, err := feed.Next(ctx)
		finished <- err
	}()
	cancel()

	select {
	case err := <-finished:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Next ignored context cancellation during the delay")
	}
}
