package interfaces

import "stream-manager/src/models"

// -----------------------------------------------------------------------------

// IServer defines the lifecycle of a single network listener (one transport).
// Start binds before returning so Alive is meaningful immediately after;
// Stop is idempotent and joins the listener's serve goroutine.
type IServer interface {
	// Start binds the transport and launches the serve loop
	Start() (models.MServerStatus, error)

	// Stop shuts the listener down. Calling it when already stopped is a
	// no-op returning StatusStopped.
	Stop() (models.MServerStatus, error)

	// Alive reports whether the listener is currently serving
	Alive() bool

	// GetException drains at most one captured fault from the listener's
	// run loop, non-blocking. Returns nil when none is pending.
	GetException() error
}

// -----------------------------------------------------------------------------

// ISignalSink receives the signal batch of one execution cycle for delivery
// to subscribers that have no directly registered portfolio.
type ISignalSink interface {
	SendSignals(signals map[string]models.MSignal)
}
