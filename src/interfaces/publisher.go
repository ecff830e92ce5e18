package interfaces

import "stream-manager/src/models"

// -----------------------------------------------------------------------------

// IPublisher defines the contract for pushing signal batches to an external
// message broker, in addition to the push listener's own fan-out.
type IPublisher interface {
	// OnSignals processes and publishes one execution cycle's signal batch
	OnSignals(signals map[string]models.MSignal)

	// Connect establishes the connection to the message broker
	Connect() error

	// Disconnect closes the connection to the message broker
	Disconnect() error

	// IsConnected returns the current connection status
	IsConnected() bool
}
