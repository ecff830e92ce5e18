package interfaces

// -----------------------------------------------------------------------------

// IConnection is one live client channel on the push listener. A connection
// subscribes to exactly one channel at a time; the listener holds it only as
// long as the underlying transport is open.
//
// The send capability is what the listener validates on connect: an object
// without it is rejected before it ever joins a subscriber list.
type IConnection interface {
	// Send schedules a payload write without blocking the caller.
	// Writes to an already closed connection are dropped, not propagated.
	Send(payload []byte) error

	// Close tears the underlying transport down. Idempotent.
	Close() error

	// RemoteAddr identifies the peer for logging
	RemoteAddr() string
}
