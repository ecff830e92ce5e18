package managers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"stream-manager/src/history"
	"stream-manager/src/interfaces"
	"stream-manager/src/logger"
	"stream-manager/src/models"
	"stream-manager/src/portfolio"
	"stream-manager/src/routes"
)

// -----------------------------------------------------------------------------

// ErrAlreadyRunning is returned when Run (or a snapshot-driven RunBatch) is
// requested while a consumption loop is still active.
var ErrAlreadyRunning = errors.New("strategy manager is already running")

// -----------------------------------------------------------------------------

// StrategyManager is the central state machine: it consumes a stream of
// market data batches, folds them into the accumulated history, invokes the
// strategy, applies resulting signals to all registered portfolios, and fans
// out signals to subscribers without a portfolio of their own.
//
// State transitions idle -> running -> idle; a finished manager is
// restartable by calling Run again with a fresh source. The accumulated
// history and the signal log are mutated only under the manager's mutex, so
// the consumption goroutine and the connection-handling goroutines never
// race on them.
type StrategyManager struct {
	*GenericManager

	HTTPRoutes *routes.HTTPRegistry
	PushRoutes *routes.PushRegistry

	strategy  interfaces.IStrategy
	publisher interfaces.IPublisher
	fanout    interfaces.ISignalSink

	mu         sync.Mutex
	portfolios []*portfolio.Portfolio
	signals    []map[string]models.MSignal
	hist       *history.History

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// -----------------------------------------------------------------------------

// NewStrategyManager builds the manager and its configured listeners. The
// request/response listener serves the history and signal-log routes; push
// routes are bound by the connection command handler.
func NewStrategyManager(strategy interfaces.IStrategy, cfg models.MManagerConfig, log *logger.Logger) *StrategyManager {
	if log == nil {
		log = logger.NewNop()
	}

	httpRegistry := routes.NewHTTPRegistry(log)
	pushRegistry := routes.NewPushRegistry(log)

	sm := &StrategyManager{
		HTTPRoutes: httpRegistry,
		PushRoutes: pushRegistry,
		strategy:   strategy,
		hist:       history.New(),
	}
	sm.registerRoutes()

	sm.GenericManager = NewGenericManager(cfg, httpRegistry, pushRegistry, log)
	sm.Name = "StrategyManager"
	return sm
}

// -----------------------------------------------------------------------------
// Registration and state access
// -----------------------------------------------------------------------------

// Register adds a portfolio to the execution set
func (sm *StrategyManager) Register(p *portfolio.Portfolio) {
	sm.Logger.Info("%s : registering portfolio", sm.Name)
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.portfolios = append(sm.portfolios, p)
}

// -----------------------------------------------------------------------------

// Unregister removes a portfolio from the execution set
func (sm *StrategyManager) Unregister(p *portfolio.Portfolio) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for i, existing := range sm.portfolios {
		if existing == p {
			sm.portfolios = append(sm.portfolios[:i], sm.portfolios[i+1:]...)
			return
		}
	}
}

// -----------------------------------------------------------------------------

// PortfolioCount returns the number of registered portfolios
func (sm *StrategyManager) PortfolioCount() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.portfolios)
}

// -----------------------------------------------------------------------------

// History returns the manager-wide accumulated history
func (sm *StrategyManager) History() *history.History {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.hist
}

// -----------------------------------------------------------------------------

// SetHistory replaces the accumulated history
func (sm *StrategyManager) SetHistory(h *history.History) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.hist = h
}

// -----------------------------------------------------------------------------

// Signals returns a copy of the signal log: one entry per processed batch,
// in consumption order.
func (sm *StrategyManager) Signals() []map[string]models.MSignal {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	log := make([]map[string]models.MSignal, len(sm.signals))
	copy(log, sm.signals)
	return log
}

// -----------------------------------------------------------------------------

// SetPublisher attaches an optional external signal publisher
func (sm *StrategyManager) SetPublisher(p interfaces.IPublisher) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.publisher = p
}

// -----------------------------------------------------------------------------

// SetSignalSink attaches the fan-out target for subscribers that registered
// a history but no portfolio.
func (sm *StrategyManager) SetSignalSink(sink interfaces.ISignalSink) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.fanout = sink
}

// -----------------------------------------------------------------------------

// Running reports whether a consumption loop is active
func (sm *StrategyManager) Running() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.running
}

// -----------------------------------------------------------------------------
// Execution
// -----------------------------------------------------------------------------

// Execute runs one strategy cycle: fold all registered portfolios into one
// combined position view, invoke the strategy, and apply each resulting
// signal to every registered portfolio. A domain error on one portfolio is
// logged as a warning and never aborts the remaining portfolios or signals.
// The full mapping is returned regardless of how many applications succeeded.
func (sm *StrategyManager) Execute() map[string]models.MSignal {
	sm.mu.Lock()
	portfolios := make([]*portfolio.Portfolio, len(sm.portfolios))
	copy(portfolios, sm.portfolios)
	hist := sm.hist
	publisher := sm.publisher
	fanout := sm.fanout
	sm.mu.Unlock()

	combined := make(map[string]float64)
	for _, p := range portfolios {
		for instrument, quantity := range p.Position() {
			combined[instrument] += quantity
		}
	}

	signals := sm.strategy.Execute(hist.LastIndex(), combined, hist)

	for instrument, signal := range signals {
		for _, p := range portfolios {
			if err := p.Trade(instrument, signal); err != nil {
				sm.Logger.Warning("%s : %v", sm.Name, err)
			}
		}
	}

	if fanout != nil {
		fanout.SendSignals(signals)
	}
	if publisher != nil && publisher.IsConnected() {
		publisher.OnSignals(signals)
	}

	return signals
}

// -----------------------------------------------------------------------------

// RunBatch folds a single update batch into the history and runs one cycle,
// appending the result to the signal log. This is the snapshot path of the
// connection protocol; it is rejected while a streamed Run is active so the
// log order stays the consumption order.
func (sm *StrategyManager) RunBatch(batch []history.Row) (map[string]models.MSignal, error) {
	sm.mu.Lock()
	if sm.running {
		sm.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	hist := sm.hist
	sm.mu.Unlock()

	hist.Append(batch)
	signals := sm.Execute()

	sm.mu.Lock()
	sm.signals = append(sm.signals, signals)
	sm.mu.Unlock()
	return signals, nil
}

// -----------------------------------------------------------------------------

// Run consumes a source of update batches end to end: append each batch to
// the accumulated history, execute one cycle, accumulate the returned
// signals. With threaded set, consumption happens on a dedicated goroutine
// and Run returns immediately with the manager in the running state;
// otherwise the call blocks until the source is exhausted or Stop is
// invoked externally.
func (sm *StrategyManager) Run(feed interfaces.IFeed, threaded bool) error {
	sm.mu.Lock()
	if sm.running {
		sm.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	sm.cancel = cancel
	sm.done = make(chan struct{})
	sm.running = true
	sm.mu.Unlock()

	if threaded {
		go sm.consume(ctx, feed, sm.done)
		return nil
	}
	sm.consume(ctx, feed, sm.done)
	return nil
}

// -----------------------------------------------------------------------------

// consume is the consumption loop. The run flag is checked once per batch,
// so cancellation is cooperative with an upper bound of one batch's
// processing time plus the source delay. Signal-log entries are appended in
// the exact order batches were consumed.
func (sm *StrategyManager) consume(ctx context.Context, feed interfaces.IFeed, done chan struct{}) {
	defer close(done)
	defer func() {
		sm.mu.Lock()
		sm.running = false
		sm.mu.Unlock()
	}()

	for {
		sm.mu.Lock()
		running := sm.running
		hist := sm.hist
		sm.mu.Unlock()
		if !running {
			return
		}

		batch, err := feed.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				sm.Logger.Warning("%s : feed error, stopping consumption: %v", sm.Name, err)
			}
			return
		}

		hist.Append(batch)
		signals := sm.Execute()

		sm.mu.Lock()
		sm.signals = append(sm.signals, signals)
		sm.mu.Unlock()
	}
}

// -----------------------------------------------------------------------------

// Stop clears the run flag, joins the consumption goroutine if one was
// started, and stops the configured listeners. Idempotent.
func (sm *StrategyManager) Stop() error {
	sm.mu.Lock()
	if sm.running {
		sm.running = false
		sm.cancel()
	}
	done := sm.done
	sm.mu.Unlock()

	if done != nil {
		<-done
	}
	return sm.GenericManager.Stop()
}

// -----------------------------------------------------------------------------
// Request/response routes
// -----------------------------------------------------------------------------

// registerRoutes binds the manager's HTTP surface: get/set history and read
// the signal log. Errors come back as an error payload on a normal
// response, never as a protocol-level failure.
func (sm *StrategyManager) registerRoutes() {
	_ = sm.HTTPRoutes.Register(routes.HTTPRoute{
		Name:   "history",
		Method: http.MethodGet,
		Handler: func(w http.ResponseWriter, r *http.Request) {
			data, err := sm.History().ToJSON()
			if err != nil {
				writeError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(data)
		},
	})

	_ = sm.HTTPRoutes.Register(routes.HTTPRoute{
		Name:   "history",
		Method: http.MethodPost,
		Handler: func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, err)
				return
			}
			hist, err := history.FromDescription(body)
			if err != nil {
				writeError(w, err)
				return
			}
			sm.SetHistory(hist)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(models.MConfirmation{Message: "History registered"})
		},
	})

	_ = sm.HTTPRoutes.Register(routes.HTTPRoute{
		Name:   "signals",
		Method: http.MethodGet,
		Handler: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(sm.Signals())
		},
	})
}

// -----------------------------------------------------------------------------

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(models.MErrorPayload{Error: err.Error()})
}
