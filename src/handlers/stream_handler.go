package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"stream-manager/src/history"
	"stream-manager/src/interfaces"
	"stream-manager/src/logger"
	"stream-manager/src/managers"
	"stream-manager/src/models"
	"stream-manager/src/portfolio"
	"stream-manager/src/routes"
	"stream-manager/src/servers"
)

// -----------------------------------------------------------------------------

const (
	// ChannelPortfolio carries portfolio registration and snapshot commands
	ChannelPortfolio = "portfolio"
	// ChannelHistory carries history registration for signal-only subscribers
	ChannelHistory = "history"
)

// -----------------------------------------------------------------------------

// ErrMalformedMessage signals a frame that is not a JSON object
var ErrMalformedMessage = errors.New("message is not valid JSON")

// ErrNoContent signals a well-formed frame with none of the protocol keys
var ErrNoContent = errors.New("message does not contain any usable content")

// -----------------------------------------------------------------------------

// MessageHandler drives the per-connection command protocol on top of the
// push listener: connecting seeds empty state, each inbound frame carries
// exactly one of the portfolio, history or snapshot commands, and
// disconnecting discards whatever the connection registered.
//
// The handler is also the manager's fan-out target: after every execution
// cycle it forwards signals to connections that registered a history but no
// portfolio, filtered to the instruments their history covers.
type MessageHandler struct {
	manager    *managers.StrategyManager
	server     *servers.WebsocketServer
	serializer interfaces.ISerializer
	logger     *logger.Logger

	mu               sync.Mutex
	portfoliosByConn map[interfaces.IConnection]*portfolio.Portfolio
	historiesByConn  map[interfaces.IConnection]*history.History
}

// -----------------------------------------------------------------------------

// NewMessageHandler builds a handler bound to the manager and its push
// listener, and registers itself as the manager's fan-out target.
func NewMessageHandler(manager *managers.StrategyManager, serializer interfaces.ISerializer, log *logger.Logger) *MessageHandler {
	if log == nil {
		log = logger.NewNop()
	}
	h := &MessageHandler{
		manager:          manager,
		server:           manager.Websocket(),
		serializer:       serializer,
		logger:           log,
		portfoliosByConn: make(map[interfaces.IConnection]*portfolio.Portfolio),
		historiesByConn:  make(map[interfaces.IConnection]*history.History),
	}
	manager.SetSignalSink(h)
	return h
}

// -----------------------------------------------------------------------------

// Bind registers the protocol channels on the push registry
func (h *MessageHandler) Bind(registry *routes.PushRegistry) error {
	if err := registry.Register(routes.PushRoute{
		Channel:      ChannelPortfolio,
		OnConnect:    h.onConnect,
		OnMessage:    h.OnMessage,
		OnDisconnect: h.onDisconnect,
	}); err != nil {
		return err
	}
	return registry.Register(routes.PushRoute{
		Channel:      ChannelHistory,
		OnConnect:    h.onConnect,
		OnMessage:    h.OnMessage,
		OnDisconnect: h.onDisconnect,
	})
}

// -----------------------------------------------------------------------------

// onConnect seeds per-connection state: an empty portfolio registered with
// the manager on the portfolio channel, an empty connection-scoped history
// on the history channel.
func (h *MessageHandler) onConnect(conn interfaces.IConnection, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch channel {
	case ChannelPortfolio:
		p := portfolio.New()
		h.portfoliosByConn[conn] = p
		h.manager.Register(p)
		h.confirm(conn, "Portfolio connected")
	case ChannelHistory:
		h.historiesByConn[conn] = history.New()
		h.confirm(conn, "History connected")
	}
}

// -----------------------------------------------------------------------------

// onDisconnect discards everything the connection registered
func (h *MessageHandler) onDisconnect(conn interfaces.IConnection, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if p, ok := h.portfoliosByConn[conn]; ok {
		h.manager.Unregister(p)
		delete(h.portfoliosByConn, conn)
	}
	delete(h.historiesByConn, conn)
}

// -----------------------------------------------------------------------------

// OnMessage processes one inbound frame and replies with either a
// confirmation or an error payload. Protocol errors are per-connection
// responses and never disturb other connections or the manager.
func (h *MessageHandler) OnMessage(conn interfaces.IConnection, message []byte) {
	reply, err := h.process(conn, message)
	if err != nil {
		h.logger.Warning("MessageHandler : %s : %v", conn.RemoteAddr(), err)
		payload, merr := json.Marshal(models.MErrorPayload{Error: err.Error()})
		if merr != nil {
			return
		}
		h.server.Send(conn, payload)
		return
	}
	h.confirm(conn, reply)
}

// -----------------------------------------------------------------------------

// process dispatches the frame's command. When a frame carries more than
// one key the commands are handled in portfolio, history, snapshot order
// and the last reply wins.
func (h *MessageHandler) process(conn interfaces.IConnection, message []byte) (string, error) {
	var msg models.MStreamMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Empty() {
		return "", ErrNoContent
	}

	var reply string
	if msg.Portfolio != nil {
		r, err := h.registerPortfolio(conn, msg.Portfolio)
		if err != nil {
			return "", err
		}
		reply = r
	}
	if msg.History != nil {
		r, err := h.registerHistory(conn, msg.History)
		if err != nil {
			return "", err
		}
		reply = r
	}
	if msg.Snapshot != nil {
		r, err := h.applySnapshot(conn, msg.Snapshot)
		if err != nil {
			return "", err
		}
		reply = r
	}
	return reply, nil
}

// -----------------------------------------------------------------------------

// registerPortfolio replaces the connection's portfolio with the described
// one. The previous portfolio leaves the execution set atomically with the
// new one entering it.
func (h *MessageHandler) registerPortfolio(conn interfaces.IConnection, description json.RawMessage) (string, error) {
	p, err := portfolio.FromDescription(description)
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if previous, ok := h.portfoliosByConn[conn]; ok {
		h.manager.Unregister(previous)
	}
	h.portfoliosByConn[conn] = p
	h.manager.Register(p)
	return "Portfolio registered", nil
}

// -----------------------------------------------------------------------------

// registerHistory records the described history both as the connection's
// signal filter and as the manager-wide accumulated history.
func (h *MessageHandler) registerHistory(conn interfaces.IConnection, description json.RawMessage) (string, error) {
	hist, err := history.FromDescription(description)
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	h.historiesByConn[conn] = hist
	h.mu.Unlock()
	h.manager.SetHistory(hist)
	return "History registered", nil
}

// -----------------------------------------------------------------------------

// applySnapshot feeds one update batch through a full execution cycle. On a
// manager with no accumulated history yet the snapshot bootstraps the
// history instead, without running the strategy. The reply carries the
// updated manager history so the client can resynchronize.
func (h *MessageHandler) applySnapshot(conn interfaces.IConnection, description json.RawMessage) (string, error) {
	snapshot, err := history.FromDescription(description)
	if err != nil {
		return "", err
	}

	if h.manager.History().Empty() {
		h.manager.SetHistory(snapshot)
	} else if _, err := h.manager.RunBatch(snapshot.Rows()); err != nil {
		return "", err
	}

	updated, err := h.manager.History().ToJSON()
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	h.historiesByConn[conn] = h.manager.History()
	h.mu.Unlock()
	return "Snapshot registered: " + string(updated), nil
}

// -----------------------------------------------------------------------------

// SendSignals fans execution results out to history-only connections. Each
// connection receives only the signals whose instrument appears in the
// history it registered; connections with no matching signal receive
// nothing.
func (h *MessageHandler) SendSignals(signals map[string]models.MSignal) {
	h.mu.Lock()
	type target struct {
		conn interfaces.IConnection
		hist *history.History
	}
	var targets []target
	for conn, hist := range h.historiesByConn {
		if _, hasPortfolio := h.portfoliosByConn[conn]; hasPortfolio {
			continue
		}
		targets = append(targets, target{conn: conn, hist: hist})
	}
	h.mu.Unlock()

	for _, t := range targets {
		batch := models.MSignalBatch{Signals: make(map[string]models.MSignal)}
		for instrument, signal := range signals {
			if t.hist.HasInstrument(instrument) {
				batch.Signals[instrument] = signal
			}
		}
		if len(batch.Signals) == 0 {
			continue
		}
		payload, err := json.Marshal(batch)
		if err != nil {
			h.logger.Error("MessageHandler : marshal signal batch: %v", err)
			continue
		}
		h.server.Send(t.conn, payload)
	}
}

// -----------------------------------------------------------------------------

func (h *MessageHandler) confirm(conn interfaces.IConnection, message string) {
	payload, err := json.Marshal(models.MConfirmation{Message: message})
	if err != nil {
		return
	}
	h.server.Send(conn, payload)
}
