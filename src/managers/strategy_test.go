package managers

import (
	"sync"
	"testing"
	"time"

	"stream-manager/src/feeds"
	"stream-manager/src/history"
	"stream-manager/src/models"
	"stream-manager/src/portfolio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

// scriptedStrategy returns a fixed signal mapping on every cycle and records
// the arguments it was called with.
type scriptedStrategy struct {
	mu      sync.Mutex
	signals map[string]models.MSignal
	calls   []string
}

func (s *scriptedStrategy) GetName() string { return "scripted" }

func (s *scriptedStrategy) Execute(idx string, position map[string]float64, hist *history.History) map[string]models.MSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, idx)
	out := make(map[string]models.MSignal, len(s.signals))
	for instrument, signal := range s.signals {
		out[instrument] = signal
	}
	return out
}

func (s *scriptedStrategy) indices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// -----------------------------------------------------------------------------

// signalRecorder captures fan-out batches
type signalRecorder struct {
	mu      sync.Mutex
	batches []map[string]models.MSignal
}

func (r *signalRecorder) SendSignals(signals map[string]models.MSignal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, signals)
}

func (r *signalRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

// -----------------------------------------------------------------------------

func newBareManager(strategy *scriptedStrategy) *StrategyManager {
	// No listeners: execution semantics only
	return NewStrategyManager(strategy, models.MManagerConfig{}, nil)
}

// -----------------------------------------------------------------------------

func TestStrategyManagerRunAppendsOneLogEntryPerBatch(t *testing.T) {
	strategy := &scriptedStrategy{signals: map[string]models.MSignal{
		"AAPL": models.NewSignal("AAPL", models.SideWait, 0, 0),
	}}
	sm := newBareManager(strategy)

	feed := feeds.NewRowReplayFeed(feedRows(), 0)
	require.NoError(t, sm.Run(feed, false))

	log := sm.Signals()
	require.Len(t, log, 3)
	for _, entry := range log {
		assert.Contains(t, entry, "AAPL")
	}

	// Cycles saw the history grow batch by batch
	assert.Equal(t, []string{"t1", "t2", "t3"}, strategy.indices())
	assert.Equal(t, 3, sm.History().Len())
	assert.False(t, sm.Running())
}

// -----------------------------------------------------------------------------

func TestStrategyManagerThreadedRun(t *testing.T) {
	strategy := &scriptedStrategy{signals: map[string]models.MSignal{}}
	sm := newBareManager(strategy)

	feed := feeds.NewRowReplayFeed(feedRows(), 10*time.Millisecond)
	require.NoError(t, sm.Run(feed, true))
	assert.True(t, sm.Running())

	assert.ErrorIs(t, sm.Run(feed, true), ErrAlreadyRunning)

	require.Eventually(t, func() bool {
		return len(sm.Signals()) == 3 && !sm.Running()
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sm.Stop())
}

// -----------------------------------------------------------------------------

func TestStrategyManagerStopInterruptsRun(t *testing.T) {
	strategy := &scriptedStrategy{signals: map[string]models.MSignal{}}
	sm := newBareManager(strategy)

	feed := feeds.NewRowReplayFeed(feedRows(), time.Hour)
	require.NoError(t, sm.Run(feed, true))

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = sm.Stop()
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the blocked consumption loop")
	}
	assert.False(t, sm.Running())

	// Idempotent
	require.NoError(t, sm.Stop())
}

// -----------------------------------------------------------------------------

func TestStrategyManagerSignalsAppliedToEveryPortfolio(t *testing.T) {
	strategy := &scriptedStrategy{signals: map[string]models.MSignal{
		"AAPL": models.NewSignal("AAPL", models.SideBuy, 1, 100),
	}}
	sm := newBareManager(strategy)

	rich := portfolio.New().AddCash(1000)
	alsoRich := portfolio.New().AddCash(500)
	sm.Register(rich)
	sm.Register(alsoRich)
	assert.Equal(t, 2, sm.PortfolioCount())

	sm.Execute()

	assert.Equal(t, 1.0, rich.Position()["AAPL"])
	assert.Equal(t, 1.0, alsoRich.Position()["AAPL"])
	assert.Equal(t, 900.0, rich.Cash())
	assert.Equal(t, 400.0, alsoRich.Cash())
}

// -----------------------------------------------------------------------------

func TestStrategyManagerDomainErrorIsolation(t *testing.T) {
	strategy := &scriptedStrategy{signals: map[string]models.MSignal{
		"AAPL": models.NewSignal("AAPL", models.SideBuy, 1, 100),
	}}
	sm := newBareManager(strategy)

	broke := portfolio.New() // cannot afford the buy
	rich := portfolio.New().AddCash(1000)
	sm.Register(broke)
	sm.Register(rich)

	signals := sm.Execute()

	// The failing portfolio is skipped, the others still trade, and the
	// full mapping comes back regardless
	require.Contains(t, signals, "AAPL")
	assert.Empty(t, broke.Position())
	assert.Equal(t, 1.0, rich.Position()["AAPL"])
}

// -----------------------------------------------------------------------------

func TestStrategyManagerUnregister(t *testing.T) {
	strategy := &scriptedStrategy{signals: map[string]models.MSignal{
		"AAPL": models.NewSignal("AAPL", models.SideBuy, 1, 100),
	}}
	sm := newBareManager(strategy)

	p := portfolio.New().AddCash(1000)
	sm.Register(p)
	sm.Unregister(p)
	assert.Equal(t, 0, sm.PortfolioCount())

	sm.Execute()
	assert.Empty(t, p.Position())
}

// -----------------------------------------------------------------------------

func TestStrategyManagerRunBatch(t *testing.T) {
	strategy := &scriptedStrategy{signals: map[string]models.MSignal{
		"AAPL": models.NewSignal("AAPL", models.SideWait, 0, 0),
	}}
	sm := newBareManager(strategy)

	signals, err := sm.RunBatch(feedRows()[:1])
	require.NoError(t, err)
	assert.Contains(t, signals, "AAPL")

	// One batch, one cycle, one log entry
	assert.Len(t, sm.Signals(), 1)
	assert.Equal(t, 1, sm.History().Len())
}

// -----------------------------------------------------------------------------

func TestStrategyManagerRunBatchRejectedWhileRunning(t *testing.T) {
	strategy := &scriptedStrategy{signals: map[string]models.MSignal{}}
	sm := newBareManager(strategy)

	feed := feeds.NewRowReplayFeed(feedRows(), time.Hour)
	require.NoError(t, sm.Run(feed, true))
	defer sm.Stop()

	_, err := sm.RunBatch(feedRows()[:1])
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

// -----------------------------------------------------------------------------

func TestStrategyManagerFanout(t *testing.T) {
	strategy := &scriptedStrategy{signals: map[string]models.MSignal{
		"AAPL": models.NewSignal("AAPL", models.SideWait, 0, 0),
	}}
	sm := newBareManager(strategy)

	recorder := &signalRecorder{}
	sm.SetSignalSink(recorder)

	sm.Execute()
	sm.Execute()
	assert.Equal(t, 2, recorder.count())
}

// -----------------------------------------------------------------------------

func TestStrategyManagerHistoryGrowsAcrossBatches(t *testing.T) {
	strategy := &scriptedStrategy{signals: map[string]models.MSignal{}}
	sm := newBareManager(strategy)

	_, err := sm.RunBatch(feedRows()[:1])
	require.NoError(t, err)
	_, err = sm.RunBatch(feedRows()[:2]) // overlaps the first batch
	require.NoError(t, err)

	// Duplicate keys were skipped on concatenation
	assert.Equal(t, 2, sm.History().Len())
	assert.Len(t, sm.Signals(), 2)
}
