package servers

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"stream-manager/src/logger"
	"stream-manager/src/models"
	"stream-manager/src/routes"

	"github.com/gorilla/mux"
)

// -----------------------------------------------------------------------------

// HTTPServer owns the lifecycle of the request/response listener. The bind
// happens synchronously inside Start, so Alive is meaningful the moment
// Start returns; the serve loop runs on its own goroutine until Stop closes
// the listener and joins it.
type HTTPServer struct {
	Name     string
	Port     int
	Registry *routes.HTTPRegistry

	logger *logger.Logger
	faults *FaultQueue

	mu       sync.Mutex
	status   models.MServerStatus
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// -----------------------------------------------------------------------------

// NewHTTPServer creates a stopped listener bound to the given registry.
// A nil logger falls back to the no-op sink.
func NewHTTPServer(port int, registry *routes.HTTPRegistry, log *logger.Logger) *HTTPServer {
	if log == nil {
		log = logger.NewNop()
	}
	return &HTTPServer{
		Name:     "HTTPServer",
		Port:     port,
		Registry: registry,
		logger:   log,
		faults:   NewFaultQueue(16),
		status:   models.StatusStopped,
	}
}

// -----------------------------------------------------------------------------

// Start binds the port, wires the registered routes into a router and
// launches the serve loop. Startup failure leaves the listener in the error
// state.
func (s *HTTPServer) Start() (models.MServerStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == models.StatusStarted {
		return models.StatusStarted, nil
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		s.status = models.StatusError
		return models.StatusError, fmt.Errorf("%s : failed to bind port %d: %w", s.Name, s.Port, err)
	}

	router := mux.NewRouter()
	for _, route := range s.Registry.Routes() {
		router.HandleFunc("/"+route.Name, route.Handler).Methods(route.Method)
	}

	s.srv = &http.Server{Handler: router}
	s.listener = listener
	s.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("%s : serve loop failed: %v", s.Name, err)
			s.faults.Capture(err)
		}
	}(s.srv, s.done)

	s.status = models.StatusStarted
	s.logger.Info("%s : listening on port %d", s.Name, s.Port)
	return models.StatusStarted, nil
}

// -----------------------------------------------------------------------------

// Stop closes the listener and joins the serve goroutine. Idempotent:
// stopping a stopped listener returns StatusStopped without error. The join
// is bounded by the serve loop noticing the closed listener, well under one
// second.
func (s *HTTPServer) Stop() (models.MServerStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.StatusStarted {
		s.status = models.StatusStopped
		return models.StatusStopped, nil
	}

	if err := s.srv.Close(); err != nil {
		s.logger.Warning("%s : error closing listener: %v", s.Name, err)
	}
	<-s.done

	s.srv = nil
	s.listener = nil
	s.status = models.StatusStopped
	s.logger.Info("%s : stopped", s.Name)
	return models.StatusStopped, nil
}

// -----------------------------------------------------------------------------

// Addr returns the bound listen address, empty when not serving. With a zero
// configured port this exposes the port the kernel picked.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// -----------------------------------------------------------------------------

// Alive reports whether the listener is currently serving
func (s *HTTPServer) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == models.StatusStarted
}

// -----------------------------------------------------------------------------

// Status returns the current lifecycle state
func (s *HTTPServer) Status() models.MServerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// -----------------------------------------------------------------------------

// GetException drains at most one captured fault, non-blocking
func (s *HTTPServer) GetException() error {
	return s.faults.Drain()
}
