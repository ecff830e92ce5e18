package handlers

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"stream-manager/src/history"
	"stream-manager/src/managers"
	"stream-manager/src/models"
	"stream-manager/src/serializers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

// testConn records everything the handler sends back
type testConn struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (c *testConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *testConn) Close() error       { return nil }
func (c *testConn) RemoteAddr() string { return "test" }

func (c *testConn) last(t *testing.T) map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.payloads)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(c.payloads[len(c.payloads)-1], &decoded))
	return decoded
}

func (c *testConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

// -----------------------------------------------------------------------------

// passthroughStrategy emits a wait signal per instrument in the history
type passthroughStrategy struct{}

func (passthroughStrategy) GetName() string { return "passthrough" }

func (passthroughStrategy) Execute(idx string, position map[string]float64, hist *history.History) map[string]models.MSignal {
	signals := make(map[string]models.MSignal)
	for _, instrument := range hist.Instruments() {
		signals[instrument] = models.NewSignal(instrument, models.SideWait, 0, 0)
	}
	return signals
}

// -----------------------------------------------------------------------------

func newHandler(t *testing.T) (*MessageHandler, *managers.StrategyManager) {
	t.Helper()
	manager := managers.NewStrategyManager(passthroughStrategy{},
		models.MManagerConfig{UseWebsocket: true}, nil)
	handler := NewMessageHandler(manager, serializers.NewSerializer("json"), nil)
	require.NoError(t, handler.Bind(manager.PushRoutes))
	return handler, manager
}

// -----------------------------------------------------------------------------

func connect(h *MessageHandler, channel string) *testConn {
	conn := &testConn{}
	route, _ := h.manager.PushRoutes.Lookup(channel)
	route.OnConnect(conn, channel)
	return conn
}

// -----------------------------------------------------------------------------

func TestConnectSeedsPortfolio(t *testing.T) {
	h, manager := newHandler(t)

	conn := connect(h, ChannelPortfolio)

	assert.Equal(t, 1, manager.PortfolioCount())
	assert.Equal(t, "Portfolio connected", conn.last(t)["message"])
}

// -----------------------------------------------------------------------------

func TestConnectSeedsHistoryWithoutTouchingManager(t *testing.T) {
	h, manager := newHandler(t)

	manager.SetHistory(history.New(history.Row{Time: "t1", Instrument: "AAPL"}))
	conn := connect(h, ChannelHistory)

	assert.Equal(t, "History connected", conn.last(t)["message"])
	assert.Equal(t, 0, manager.PortfolioCount())
	// The shared history is for every connection; a new subscriber must
	// not reset it
	assert.Equal(t, 1, manager.History().Len())
}

// -----------------------------------------------------------------------------

func TestMalformedMessage(t *testing.T) {
	h, _ := newHandler(t)
	conn := connect(h, ChannelPortfolio)

	h.OnMessage(conn, []byte(`{"portfolio": `))

	reply := conn.last(t)
	require.Contains(t, reply, "error")
	assert.Contains(t, reply["error"], ErrMalformedMessage.Error())
}

// -----------------------------------------------------------------------------

func TestMessageWithoutContent(t *testing.T) {
	h, _ := newHandler(t)
	conn := connect(h, ChannelPortfolio)

	for _, message := range []string{`{}`, `{"other": 1}`} {
		h.OnMessage(conn, []byte(message))
		reply := conn.last(t)
		require.Contains(t, reply, "error", "message %q", message)
		assert.Contains(t, reply["error"], ErrNoContent.Error())
	}
}

// -----------------------------------------------------------------------------

func TestRegisterPortfolioReplacesSeed(t *testing.T) {
	h, manager := newHandler(t)
	conn := connect(h, ChannelPortfolio)

	h.OnMessage(conn, []byte(`{"portfolio": {"cash": 5000, "positions": {"AAPL": 2}}}`))

	assert.Equal(t, "Portfolio registered", conn.last(t)["message"])
	// Replacement, not accumulation
	assert.Equal(t, 1, manager.PortfolioCount())

	h.mu.Lock()
	p := h.portfoliosByConn[conn]
	h.mu.Unlock()
	assert.Equal(t, 5000.0, p.Cash())
	assert.Equal(t, 2.0, p.Position()["AAPL"])
}

// -----------------------------------------------------------------------------

func TestRegisterPortfolioInvalidKeepsState(t *testing.T) {
	h, manager := newHandler(t)
	conn := connect(h, ChannelPortfolio)

	h.OnMessage(conn, []byte(`{"portfolio": {"cash": -5}}`))

	reply := conn.last(t)
	require.Contains(t, reply, "error")
	assert.Contains(t, reply["error"], "valid portfolio")
	// The seeded portfolio survives the failed replacement
	assert.Equal(t, 1, manager.PortfolioCount())
}

// -----------------------------------------------------------------------------

func TestRegisterHistory(t *testing.T) {
	h, manager := newHandler(t)
	conn := connect(h, ChannelHistory)

	h.OnMessage(conn, []byte(`{"history": {"rows": [{"time": "t1", "instrument": "AAPL", "close": 100}]}}`))

	assert.Equal(t, "History registered", conn.last(t)["message"])
	assert.Equal(t, 1, manager.History().Len())
	assert.True(t, manager.History().HasInstrument("AAPL"))
}

// -----------------------------------------------------------------------------

func TestSnapshotBootstrapsEmptyHistory(t *testing.T) {
	h, manager := newHandler(t)
	conn := connect(h, ChannelPortfolio)

	h.OnMessage(conn, []byte(`{"snapshot": {"time": "t1", "instrument": "AAPL", "close": 100}}`))

	reply := conn.last(t)
	message, ok := reply["message"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(message, "Snapshot registered:"))

	// Bootstrapping seeds the history without running a cycle
	assert.Equal(t, 1, manager.History().Len())
	assert.Empty(t, manager.Signals())
}

// -----------------------------------------------------------------------------

func TestSnapshotRunsOneCycle(t *testing.T) {
	h, manager := newHandler(t)
	conn := connect(h, ChannelPortfolio)

	manager.SetHistory(history.New(
		history.Row{Time: "t1", Instrument: "AAPL", Fields: map[string]float64{"close": 100}},
		history.Row{Time: "t2", Instrument: "AAPL", Fields: map[string]float64{"close": 101}},
	))

	h.OnMessage(conn, []byte(`{"snapshot": {"time": "t3", "instrument": "AAPL", "close": 102}}`))

	message, ok := conn.last(t)["message"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(message, "Snapshot registered:"))
	assert.Contains(t, message, `"t1"`)
	assert.Contains(t, message, `"t3"`)

	assert.Equal(t, 3, manager.History().Len())
	// One snapshot, one cycle, one signal-log entry
	require.Len(t, manager.Signals(), 1)
	assert.Contains(t, manager.Signals()[0], "AAPL")
}

// -----------------------------------------------------------------------------

func TestMultipleKeysProcessedInOrder(t *testing.T) {
	h, manager := newHandler(t)
	conn := connect(h, ChannelPortfolio)

	h.OnMessage(conn, []byte(`{
		"portfolio": {"cash": 100, "positions": {}},
		"history": {"rows": [{"time": "t1", "instrument": "AAPL", "close": 100}]}
	}`))

	// Both commands applied; the last reply wins
	assert.Equal(t, "History registered", conn.last(t)["message"])
	assert.Equal(t, 1, manager.PortfolioCount())
	assert.Equal(t, 1, manager.History().Len())
}

// -----------------------------------------------------------------------------

func TestDisconnectDiscardsRegisteredState(t *testing.T) {
	h, manager := newHandler(t)
	conn := connect(h, ChannelPortfolio)
	require.Equal(t, 1, manager.PortfolioCount())

	route, err := manager.PushRoutes.Lookup(ChannelPortfolio)
	require.NoError(t, err)
	route.OnDisconnect(conn, ChannelPortfolio)

	assert.Equal(t, 0, manager.PortfolioCount())
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.NotContains(t, h.portfoliosByConn, conn)
	assert.NotContains(t, h.historiesByConn, conn)
}

// -----------------------------------------------------------------------------

func TestSendSignalsFiltersPerSubscriber(t *testing.T) {
	h, _ := newHandler(t)

	apple := connect(h, ChannelHistory)
	h.OnMessage(apple, []byte(`{"history": {"rows": [{"time": "t1", "instrument": "AAPL", "close": 100}]}}`))

	microsoft := connect(h, ChannelHistory)
	h.OnMessage(microsoft, []byte(`{"history": {"rows": [{"time": "t1", "instrument": "MSFT", "close": 200}]}}`))

	trader := connect(h, ChannelPortfolio)

	appleBefore, microsoftBefore, traderBefore := apple.count(), microsoft.count(), trader.count()

	h.SendSignals(map[string]models.MSignal{
		"AAPL": models.NewSignal("AAPL", models.SideBuy, 1, 100),
		"GOOG": models.NewSignal("GOOG", models.SideSell, 1, 50),
	})

	// The AAPL subscriber got exactly its instrument
	require.Equal(t, appleBefore+1, apple.count())
	var batch models.MSignalBatch
	apple.mu.Lock()
	require.NoError(t, json.Unmarshal(apple.payloads[len(apple.payloads)-1], &batch))
	apple.mu.Unlock()
	require.Contains(t, batch.Signals, "AAPL")
	assert.NotContains(t, batch.Signals, "GOOG")

	// No matching instrument: no frame at all
	assert.Equal(t, microsoftBefore, microsoft.count())
	// Portfolio-bearing connections are not fan-out targets
	assert.Equal(t, traderBefore, trader.count())
}
