package servers

import (
	"sync"

	"stream-manager/src/logger"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------

// wsConnection wraps one upgraded websocket as an interfaces.IConnection.
// Outbound writes go through a dedicated write pump so Send never blocks the
// caller: the payload is queued and the pump drains it, one goroutine per
// connection.
type wsConnection struct {
	ws     *websocket.Conn
	logger *logger.Logger

	sendCh chan []byte
	closed chan struct{}
	once   sync.Once
}

// -----------------------------------------------------------------------------

// newWSConnection wraps the websocket and starts its write pump
func newWSConnection(ws *websocket.Conn, log *logger.Logger) *wsConnection {
	c := &wsConnection{
		ws:     ws,
		logger: log,
		sendCh: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	go c.writePump()
	return c
}

// -----------------------------------------------------------------------------

// writePump serializes all writes onto the websocket. A write error closes
// the connection; queued payloads behind it are dropped.
func (c *wsConnection) writePump() {
	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.sendCh:
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Warning("websocket write failed for %s, dropping connection: %v", c.RemoteAddr(), err)
				c.Close()
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------

// Send schedules the payload for delivery without blocking. Payloads for a
// closed connection, or beyond the queue capacity, are dropped and logged.
func (c *wsConnection) Send(payload []byte) error {
	select {
	case <-c.closed:
		c.logger.Debug("dropping payload for closed connection %s", c.RemoteAddr())
		return nil
	default:
	}

	select {
	case c.sendCh <- payload:
	default:
		c.logger.Warning("send queue full for %s, dropping payload", c.RemoteAddr())
	}
	return nil
}

// -----------------------------------------------------------------------------

// Close tears the transport down. Idempotent.
func (c *wsConnection) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.ws.Close()
	})
	return err
}

// -----------------------------------------------------------------------------

// RemoteAddr identifies the peer for logging
func (c *wsConnection) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}
