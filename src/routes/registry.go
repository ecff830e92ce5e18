package routes

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"stream-manager/src/interfaces"
	"stream-manager/src/logger"
)

// -----------------------------------------------------------------------------

// ErrRouteNotFound signals a lookup miss in either registry flavor
var ErrRouteNotFound = errors.New("route not found")

// -----------------------------------------------------------------------------

// HTTPRoute is one addressable request/response operation, keyed by the
// compound (name, method) pair.
type HTTPRoute struct {
	Name    string
	Method  string
	Handler http.HandlerFunc
}

// -----------------------------------------------------------------------------

// PushRoute is one addressable push channel, keyed by name only.
// Connections subscribe to the channel; the callbacks drive the
// per-connection protocol. Any callback may be nil for push-only channels.
type PushRoute struct {
	Channel      string
	OnConnect    func(conn interfaces.IConnection, channel string)
	OnMessage    func(conn interfaces.IConnection, message []byte)
	OnDisconnect func(conn interfaces.IConnection, channel string)
}

// -----------------------------------------------------------------------------
// Request/response registry
// -----------------------------------------------------------------------------

// HTTPRegistry maps (name, method) to a bound handler. Registering a
// duplicate key overwrites the prior handler, last write wins: there is no
// versioning concept, so a duplicate is reconfiguration, not an error.
type HTTPRegistry struct {
	mu     sync.RWMutex
	logger *logger.Logger
	routes map[string]map[string]HTTPRoute
}

// -----------------------------------------------------------------------------

// NewHTTPRegistry creates an empty request/response registry
func NewHTTPRegistry(log *logger.Logger) *HTTPRegistry {
	if log == nil {
		log = logger.NewNop()
	}
	return &HTTPRegistry{
		logger: log,
		routes: make(map[string]map[string]HTTPRoute),
	}
}

// -----------------------------------------------------------------------------

// Register records a handler under the route's (name, method) key.
// A duplicate key logs a warning and overwrites.
func (r *HTTPRegistry) Register(route HTTPRoute) error {
	if route.Name == "" || route.Method == "" || route.Handler == nil {
		return fmt.Errorf("route requires name, method and handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byMethod, ok := r.routes[route.Name]
	if !ok {
		byMethod = make(map[string]HTTPRoute)
		r.routes[route.Name] = byMethod
	}
	if _, exists := byMethod[route.Method]; exists {
		r.logger.Warning("route %s %s already registered, overwriting handler", route.Method, route.Name)
	}
	byMethod[route.Method] = route
	return nil
}

// -----------------------------------------------------------------------------

// Lookup returns the handler bound to (name, method)
func (r *HTTPRegistry) Lookup(name, method string) (HTTPRoute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byMethod, ok := r.routes[name]
	if !ok {
		return HTTPRoute{}, fmt.Errorf("%w: %s", ErrRouteNotFound, name)
	}
	route, ok := byMethod[method]
	if !ok {
		return HTTPRoute{}, fmt.Errorf("%w: %s %s", ErrRouteNotFound, method, name)
	}
	return route, nil
}

// -----------------------------------------------------------------------------

// Routes returns every registered route, for listener wiring
func (r *HTTPRegistry) Routes() []HTTPRoute {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []HTTPRoute
	for _, byMethod := range r.routes {
		for _, route := range byMethod {
			all = append(all, route)
		}
	}
	return all
}

// -----------------------------------------------------------------------------
// Push registry
// -----------------------------------------------------------------------------

// PushRegistry maps a channel name to its single push route. At most one
// route per channel; a duplicate name logs a warning and overwrites.
type PushRegistry struct {
	mu     sync.RWMutex
	logger *logger.Logger
	routes map[string]PushRoute
}

// -----------------------------------------------------------------------------

// NewPushRegistry creates an empty push registry
func NewPushRegistry(log *logger.Logger) *PushRegistry {
	if log == nil {
		log = logger.NewNop()
	}
	return &PushRegistry{
		logger: log,
		routes: make(map[string]PushRoute),
	}
}

// -----------------------------------------------------------------------------

// Register records the route under its channel name
func (r *PushRegistry) Register(route PushRoute) error {
	if route.Channel == "" {
		return fmt.Errorf("push route requires a channel name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.routes[route.Channel]; exists {
		r.logger.Warning("push channel %s already registered, overwriting route", route.Channel)
	}
	r.routes[route.Channel] = route
	return nil
}

// -----------------------------------------------------------------------------

// Lookup returns the route bound to the channel name
func (r *PushRegistry) Lookup(channel string) (PushRoute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	route, ok := r.routes[channel]
	if !ok {
		return PushRoute{}, fmt.Errorf("%w: channel %s", ErrRouteNotFound, channel)
	}
	return route, nil
}

// -----------------------------------------------------------------------------

// Has reports whether the channel name is registered
func (r *PushRegistry) Has(channel string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.routes[channel]
	return ok
}
