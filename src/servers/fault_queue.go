package servers

// -----------------------------------------------------------------------------

// FaultQueue captures errors raised inside a listener's run loop instead of
// crashing the process. Whoever owns the listener drains it on demand and
// decides whether a fault is fatal; nothing in here escalates on its own.
type FaultQueue struct {
	faults chan error
}

// -----------------------------------------------------------------------------

// NewFaultQueue creates a queue holding up to capacity pending faults
func NewFaultQueue(capacity int) *FaultQueue {
	if capacity <= 0 {
		capacity = 16
	}
	return &FaultQueue{faults: make(chan error, capacity)}
}

// -----------------------------------------------------------------------------

// Capture enqueues one fault without blocking. When the queue is full the
// fault is dropped and Capture reports false.
func (q *FaultQueue) Capture(err error) bool {
	if err == nil {
		return false
	}
	select {
	case q.faults <- err:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------

// Drain removes and returns at most one pending fault, FIFO, non-blocking.
// Returns nil when none is pending.
func (q *FaultQueue) Drain() error {
	select {
	case err := <-q.faults:
		return err
	default:
		return nil
	}
}
