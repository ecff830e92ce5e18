package servers

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"stream-manager/src/interfaces"
	"stream-manager/src/logger"
	"stream-manager/src/models"
	"stream-manager/src/routes"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------

var (
	// ErrUnknownChannel signals a connect or disconnect against a channel
	// name no push route was registered for.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrInvalidConnection signals a connection object without a send
	// capability.
	ErrInvalidConnection = errors.New("invalid connection")
)

// -----------------------------------------------------------------------------

// WebsocketServer owns the lifecycle of the persistent-connection listener.
// Clients connect to ws://host:port/<channel>; the channel must exist in the
// push registry. Each connection gets its own read loop (driven by the HTTP
// stack) and write pump, so one connection's message handling never blocks
// another's delivery.
type WebsocketServer struct {
	Name     string
	Port     int
	Registry *routes.PushRegistry

	logger   *logger.Logger
	faults   *FaultQueue
	upgrader websocket.Upgrader

	mu       sync.Mutex
	status   models.MServerStatus
	srv      *http.Server
	listener net.Listener
	done     chan struct{}

	subMu       sync.RWMutex
	subscribers map[string][]interfaces.IConnection
}

// -----------------------------------------------------------------------------

// NewWebsocketServer creates a stopped push listener bound to the registry
func NewWebsocketServer(port int, registry *routes.PushRegistry, log *logger.Logger) *WebsocketServer {
	if log == nil {
		log = logger.NewNop()
	}
	return &WebsocketServer{
		Name:        "WebsocketServer",
		Port:        port,
		Registry:    registry,
		logger:      log,
		faults:      NewFaultQueue(16),
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		status:      models.StatusStopped,
		subscribers: make(map[string][]interfaces.IConnection),
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start binds the port and launches the serve loop
func (s *WebsocketServer) Start() (models.MServerStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == models.StatusStarted {
		return models.StatusStarted, nil
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		s.status = models.StatusError
		return models.StatusError, fmt.Errorf("%s : failed to bind port %d: %w", s.Name, s.Port, err)
	}

	s.srv = &http.Server{Handler: http.HandlerFunc(s.handleUpgrade)}
	s.listener = listener
	s.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("%s : serve loop failed: %v", s.Name, err)
			s.faults.Capture(err)
		}
	}(s.srv, s.done)

	s.status = models.StatusStarted
	s.logger.Info("%s : listening on port %d", s.Name, s.Port)
	return models.StatusStarted, nil
}

// -----------------------------------------------------------------------------

// Stop closes the listener, tears down every open connection and joins the
// serve goroutine. Idempotent. Upgraded connections are hijacked from the
// HTTP stack, so they are closed explicitly here.
func (s *WebsocketServer) Stop() (models.MServerStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.StatusStarted {
		s.status = models.StatusStopped
		return models.StatusStopped, nil
	}

	if err := s.srv.Close(); err != nil {
		s.logger.Warning("%s : error closing listener: %v", s.Name, err)
	}

	s.subMu.Lock()
	for channel, conns := range s.subscribers {
		for _, conn := range conns {
			_ = conn.Close()
		}
		delete(s.subscribers, channel)
	}
	s.subMu.Unlock()

	<-s.done

	s.srv = nil
	s.listener = nil
	s.status = models.StatusStopped
	s.logger.Info("%s : stopped", s.Name)
	return models.StatusStopped, nil
}

// -----------------------------------------------------------------------------

// Addr returns the bound listen address, empty when not serving. With a zero
// configured port this exposes the port the kernel picked.
func (s *WebsocketServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// -----------------------------------------------------------------------------

// Alive reports whether the listener is currently serving
func (s *WebsocketServer) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == models.StatusStarted
}

// -----------------------------------------------------------------------------

// Status returns the current lifecycle state
func (s *WebsocketServer) Status() models.MServerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// -----------------------------------------------------------------------------

// GetException drains at most one captured fault, non-blocking
func (s *WebsocketServer) GetException() error {
	return s.faults.Drain()
}

// -----------------------------------------------------------------------------
// Subscriber management
// -----------------------------------------------------------------------------

// OnConnect validates the connection and its channel, then appends the
// connection to the channel's subscriber list.
func (s *WebsocketServer) OnConnect(conn interfaces.IConnection, channel string) error {
	if conn == nil {
		return ErrInvalidConnection
	}
	if !s.Registry.Has(channel) {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers[channel] = append(s.subscribers[channel], conn)
	return nil
}

// -----------------------------------------------------------------------------

// OnDisconnect removes the connection from the channel's subscriber list
func (s *WebsocketServer) OnDisconnect(conn interfaces.IConnection, channel string) error {
	if !s.Registry.Has(channel) {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	conns := s.subscribers[channel]
	for i, existing := range conns {
		if existing == conn {
			s.subscribers[channel] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Send schedules a payload on one connection, fire-and-forget
func (s *WebsocketServer) Send(conn interfaces.IConnection, payload []byte) {
	if conn == nil {
		return
	}
	_ = conn.Send(payload)
}

// -----------------------------------------------------------------------------

// Broadcast delivers one payload to every subscriber of the channel, in
// subscriber-list order. Best effort: no acknowledgement, no retry.
func (s *WebsocketServer) Broadcast(channel string, payload []byte) int {
	s.subMu.RLock()
	conns := make([]interfaces.IConnection, len(s.subscribers[channel]))
	copy(conns, s.subscribers[channel])
	s.subMu.RUnlock()

	for _, conn := range conns {
		_ = conn.Send(payload)
	}
	return len(conns)
}

// -----------------------------------------------------------------------------

// SubscriberCount returns the number of live subscribers on a channel
func (s *WebsocketServer) SubscriberCount(channel string) int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subscribers[channel])
}

// -----------------------------------------------------------------------------
// Connection handling
// -----------------------------------------------------------------------------

// handleUpgrade is the per-connection entry point. The goroutine running it
// becomes the connection's read loop; writes go through the connection's
// write pump. Read errors from normal client disconnects are swallowed and
// logged, anything else lands in the fault queue.
func (s *WebsocketServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	channel := strings.Trim(r.URL.Path, "/")

	route, err := s.Registry.Lookup(channel)
	if err != nil {
		http.Error(w, fmt.Sprintf("unknown channel: %s", channel), http.StatusNotFound)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warning("%s : upgrade failed for %s: %v", s.Name, r.RemoteAddr, err)
		return
	}

	conn := newWSConnection(ws, s.logger)
	if err := s.OnConnect(conn, channel); err != nil {
		s.logger.Warning("%s : rejecting connection %s: %v", s.Name, conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}
	s.logger.Info("%s : new connection %s on channel %s", s.Name, conn.RemoteAddr(), channel)

	if route.OnConnect != nil {
		route.OnConnect(conn, channel)
	}

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				s.logger.Warning("%s : connection %s dropped: %v", s.Name, conn.RemoteAddr(), err)
			}
			break
		}
		if route.OnMessage != nil {
			route.OnMessage(conn, message)
		}
	}

	if err := s.OnDisconnect(conn, channel); err != nil {
		s.logger.Warning("%s : disconnect cleanup for %s: %v", s.Name, conn.RemoteAddr(), err)
	}
	if route.OnDisconnect != nil {
		route.OnDisconnect(conn, channel)
	}
	_ = conn.Close()
	s.logger.Info("%s : connection %s left channel %s", s.Name, conn.RemoteAddr(), channel)
}
