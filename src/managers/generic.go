package managers

import (
	"fmt"

	"stream-manager/src/logger"
	"stream-manager/src/models"
	"stream-manager/src/routes"
	"stream-manager/src/servers"
)

// -----------------------------------------------------------------------------

// GenericManager aggregates zero-or-one request/response listener and
// zero-or-one push listener behind a single lifecycle, so the owning manager
// never needs to know which transports are active.
type GenericManager struct {
	Name   string
	Logger *logger.Logger

	server    *servers.HTTPServer
	websocket *servers.WebsocketServer
}

// -----------------------------------------------------------------------------

// NewGenericManager builds the configured listeners. Unconfigured listeners
// stay nil and are treated as vacuously alive.
func NewGenericManager(cfg models.MManagerConfig, httpRegistry *routes.HTTPRegistry,
	pushRegistry *routes.PushRegistry, log *logger.Logger) *GenericManager {

	if log == nil {
		log = logger.NewNop()
	}

	gm := &GenericManager{Name: "GenericManager", Logger: log}
	if cfg.UseServer {
		gm.server = servers.NewHTTPServer(cfg.ServerPort, httpRegistry, log)
	}
	if cfg.UseWebsocket {
		gm.websocket = servers.NewWebsocketServer(cfg.WebsocketPort, pushRegistry, log)
	}
	return gm
}

// -----------------------------------------------------------------------------

// Start starts the configured listeners in fixed order, request/response
// before push. On failure the already-started listeners stay up; Stop is
// safe to call after a partial start.
func (gm *GenericManager) Start() error {
	if gm.server != nil {
		if _, err := gm.server.Start(); err != nil {
			return fmt.Errorf("%s : failed to start server: %w", gm.Name, err)
		}
	}
	if gm.websocket != nil {
		if _, err := gm.websocket.Start(); err != nil {
			return fmt.Errorf("%s : failed to start websocket: %w", gm.Name, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop stops whichever listeners are configured. Safe on a partially
// started or already stopped manager.
func (gm *GenericManager) Stop() error {
	if gm.server != nil {
		if _, err := gm.server.Stop(); err != nil {
			return fmt.Errorf("%s : failed to stop server: %w", gm.Name, err)
		}
	}
	if gm.websocket != nil {
		if _, err := gm.websocket.Stop(); err != nil {
			return fmt.Errorf("%s : failed to stop websocket: %w", gm.Name, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Alive is the logical AND of the configured listeners' liveness. A manager
// with no listeners configured is trivially alive.
func (gm *GenericManager) Alive() bool {
	if gm.server != nil && !gm.server.Alive() {
		return false
	}
	if gm.websocket != nil && !gm.websocket.Alive() {
		return false
	}
	return true
}

// -----------------------------------------------------------------------------

// Server returns the request/response listener, nil when unconfigured
func (gm *GenericManager) Server() *servers.HTTPServer {
	return gm.server
}

// -----------------------------------------------------------------------------

// Websocket returns the push listener, nil when unconfigured
func (gm *GenericManager) Websocket() *servers.WebsocketServer {
	return gm.websocket
}

// -----------------------------------------------------------------------------

// GetException drains at most one pending fault across the configured
// listeners, request/response first. Non-blocking, nil when none pending.
func (gm *GenericManager) GetException() error {
	if gm.server != nil {
		if err := gm.server.GetException(); err != nil {
			return err
		}
	}
	if gm.websocket != nil {
		if err := gm.websocket.GetException(); err != nil {
			return err
		}
	}
	return nil
}
