package models

// -----------------------------------------------------------------------------

// MServerStatus represents the lifecycle state of a single network listener.
// The normal transition is STOPPED -> STARTED -> STOPPED; ERROR is a
// transient state reachable only when startup fails.
type MServerStatus int

const (
	StatusError   MServerStatus = -1
	StatusStarted MServerStatus = 0
	StatusStopped MServerStatus = 1
)

// -----------------------------------------------------------------------------

// String returns a readable form for logging
func (s MServerStatus) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusStarted:
		return "started"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
