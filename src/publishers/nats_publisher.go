package publishers

import (
	"fmt"
	"sync"

	"stream-manager/src/interfaces"
	"stream-manager/src/logger"
	"stream-manager/src/models"

	"github.com/nats-io/nats.go"
)

// -----------------------------------------------------------------------------

// NATSPublisher forwards execution signals to a NATS cluster, one subject
// per instrument, fire-and-forget delivery. An unreachable broker degrades
// to logged errors: signal distribution over NATS is an optional side
// channel and never blocks the execution cycle.
type NATSPublisher struct {
	name   string
	config *models.MNATSConfig
	logger *logger.Logger

	mu sync.RWMutex

	nc         *nats.Conn
	serializer interfaces.ISerializer

	connected bool
}

// -----------------------------------------------------------------------------

// NewNATSPublisher creates a publisher instance; call Connect before use
func NewNATSPublisher(config *models.MNATSConfig, log *logger.Logger, serializer interfaces.ISerializer) interfaces.IPublisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &NATSPublisher{
		name:       config.ClientID,
		config:     config,
		logger:     log,
		serializer: serializer,
	}
}

// -----------------------------------------------------------------------------

// OnSignals publishes each signal of an execution cycle to its instrument
// subject. Serialization or publish failures are logged per signal and the
// remaining signals still go out.
func (np *NATSPublisher) OnSignals(signals map[string]models.MSignal) {
	for instrument, signal := range signals {
		subject := fmt.Sprintf("signals.%s", instrument)

		data, err := np.serializer.Marshal(signal)
		if err != nil {
			np.logger.Error("%s : failed to serialize signal for %s: %v", np.name, subject, err)
			continue
		}

		if err := np.Publish(subject, data); err != nil {
			np.logger.Error("%s : failed to publish %s signal for %s to %s: %v",
				np.name, signal.Side, instrument, subject, err)
		}
	}
}

// -----------------------------------------------------------------------------

// Publish sends raw data to a NATS core subject
func (np *NATSPublisher) Publish(subject string, data []byte) error {
	if !np.IsConnected() {
		return fmt.Errorf("nats client not connected")
	}
	return np.nc.Publish(np.getSubject(subject), data)
}

// -----------------------------------------------------------------------------

// Connect establishes the connection to the NATS server
func (np *NATSPublisher) Connect() error {
	np.mu.Lock()
	if np.nc != nil && np.nc.IsConnected() {
		np.mu.Unlock()
		return nil
	}
	np.mu.Unlock()

	opts := []nats.Option{
		nats.Name(np.config.ClientID),
		nats.Timeout(np.config.ConnectTimeout.Duration()),
		nats.ReconnectWait(np.config.ReconnectWait.Duration()),
		nats.MaxReconnects(np.config.MaxReconnects),

		nats.RetryOnFailedConnect(true),
		nats.ClosedHandler(func(nc *nats.Conn) {
			np.logger.Error("%s : NATS connection closed unexpectedly", np.name)
			np.setConnected(false)
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			np.logger.Warning("%s : NATS disconnected, attempting reconnect: %v", np.name, err)
			np.setConnected(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			np.logger.Info("%s : NATS successfully reconnected to %s", np.name, nc.ConnectedUrl())
			np.setConnected(true)
		}),
	}

	nc, err := nats.Connect(np.config.Servers[0], opts...)
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}

	np.mu.Lock()
	np.nc = nc
	np.connected = true
	np.mu.Unlock()

	np.logger.Info("%s : successfully connected to NATS at %s", np.name, nc.ConnectedUrl())
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect closes the NATS connection
func (np *NATSPublisher) Disconnect() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc == nil || np.nc.IsClosed() {
		return nil
	}

	np.nc.Close()
	np.connected = false
	np.logger.Info("%s : NATS connection closed", np.name)
	return nil
}

// -----------------------------------------------------------------------------

// IsConnected returns the connection status
func (np *NATSPublisher) IsConnected() bool {
	np.mu.RLock()
	defer np.mu.RUnlock()
	return np.connected
}

// -----------------------------------------------------------------------------

// setConnected updates the connection status. Called from NATS connection
// event handlers, which run on their own goroutines.
func (np *NATSPublisher) setConnected(status bool) {
	np.mu.Lock()
	defer np.mu.Unlock()
	np.connected = status
}

// -----------------------------------------------------------------------------

// getSubject prepends the configured subject prefix if one is set
func (np *NATSPublisher) getSubject(subject string) string {
	if np.config.SubjectPrefix != "" {
		return fmt.Sprintf("%s.%s", np.config.SubjectPrefix, subject)
	}
	return subject
}
