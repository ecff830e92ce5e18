package feeds

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"stream-manager/src/history"
	"stream-manager/src/interfaces"
	"stream-manager/src/logger"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------

const (
	handshakeTimeout  = 10 * time.Second
	reconnectAttempts = 3
	reconnectWait     = 1 * time.Second
)

// -----------------------------------------------------------------------------

// WebsocketFeed consumes update batches from a remote push endpoint, for
// chaining one manager's broadcast channel into another manager's source.
// Frames are decoded through the injected serializer; the receive goroutine
// buffers decoded batches so slow consumption never blocks the socket read.
type WebsocketFeed struct {
	name       string
	endpoint   string
	serializer interfaces.ISerializer
	logger     *logger.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	running   bool
	exhausted bool

	batches chan []history.Row
	done    chan struct{}
}

// -----------------------------------------------------------------------------

// NewWebsocketFeed creates a feed over the given endpoint, e.g.
// "ws://host:6000/quotes".
func NewWebsocketFeed(endpoint string, serializer interfaces.ISerializer, log *logger.Logger) *WebsocketFeed {
	if log == nil {
		log = logger.NewNop()
	}
	return &WebsocketFeed{
		name:       "WebsocketFeed",
		endpoint:   endpoint,
		serializer: serializer,
		logger:     log,
		batches:    make(chan []history.Row, 100),
		done:       make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Connect establishes the connection and starts the receive goroutine
func (f *WebsocketFeed) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		f.logger.Error("%s : failed to connect to %s: %v", f.name, f.endpoint, err)
		return fmt.Errorf("failed to connect to %s: %w", f.endpoint, err)
	}

	f.batches = make(chan []history.Row, 100)
	f.done = make(chan struct{})
	f.conn = conn
	f.running = true
	f.exhausted = false

	f.logger.Info("%s : connected to %s", f.name, f.endpoint)

	go f.receive(ctx)
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect closes the connection and stops the receive goroutine
func (f *WebsocketFeed) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil
	}

	f.running = false
	close(f.done)

	if f.conn != nil {
		err := f.conn.Close()
		f.conn = nil
		if err != nil {
			return fmt.Errorf("failed to close connection: %s: %w", f.endpoint, err)
		}
	}

	f.logger.Info("%s : disconnected from %s", f.name, f.endpoint)
	return nil
}

// -----------------------------------------------------------------------------

// IsRunning reports whether the receive goroutine is active
func (f *WebsocketFeed) IsRunning() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.running
}

// -----------------------------------------------------------------------------

// Next blocks until a batch arrives or the stream ends. A closed stream
// marks the feed exhausted and returns io.EOF.
func (f *WebsocketFeed) Next(ctx context.Context) ([]history.Row, error) {
	f.mu.RLock()
	batches := f.batches
	f.mu.RUnlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case batch, ok := <-batches:
		if !ok {
			f.mu.Lock()
			f.exhausted = true
			f.mu.Unlock()
			return nil, io.EOF
		}
		return batch, nil
	}
}

// -----------------------------------------------------------------------------

// Exhausted reports whether the remote stream has ended
func (f *WebsocketFeed) Exhausted() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.exhausted
}

// -----------------------------------------------------------------------------

// receive reads frames, decodes them and buffers the resulting batches.
// Read failures trigger a bounded number of reconnect attempts before the
// batch channel is closed to signal exhaustion to the consumer.
func (f *WebsocketFeed) receive(ctx context.Context) {
	defer close(f.batches)

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.done:
			return
		default:
		}
		if !f.IsRunning() {
			return
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.done:
				return
			default:
			}

			if attempts < reconnectAttempts {
				attempts++
				f.logger.Info("%s : attempting to reconnect (attempt %d/%d)", f.name, attempts, reconnectAttempts)
				f.reconnect(ctx)
				continue
			}
			f.logger.Error("%s : read failed after %d reconnect attempts: %v", f.name, attempts, err)
			return
		}
		attempts = 0

		var batch []history.Row
		if err := f.serializer.Unmarshal(message, &batch); err != nil {
			f.logger.Warning("%s : dropping undecodable frame: %v", f.name, err)
			continue
		}
		if len(batch) == 0 {
			continue
		}

		select {
		case f.batches <- batch:
		case <-ctx.Done():
			return
		case <-f.done:
			return
		}
	}
}

// -----------------------------------------------------------------------------

// reconnect replaces the underlying connection after a read failure
func (f *WebsocketFeed) reconnect(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-ctx.Done():
		return
	case <-f.done:
		return
	default:
	}
	if !f.running {
		return
	}

	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}

	time.Sleep(reconnectWait)

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		f.logger.Error("%s : reconnection failed: %v", f.name, err)
		return
	}

	f.conn = conn
	f.logger.Info("%s : successfully reconnected to %s", f.name, f.endpoint)
}
