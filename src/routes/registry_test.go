package routes

import (
	"net/http"
	"testing"

	"stream-manager/src/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

func noopHandler(w http.ResponseWriter, r *http.Request) {}

// -----------------------------------------------------------------------------

func TestHTTPRegistryCompoundKey(t *testing.T) {
	r := NewHTTPRegistry(nil)

	require.NoError(t, r.Register(HTTPRoute{Name: "history", Method: http.MethodGet, Handler: noopHandler}))
	require.NoError(t, r.Register(HTTPRoute{Name: "history", Method: http.MethodPost, Handler: noopHandler}))

	// Same name, different methods: two distinct routes
	assert.Len(t, r.Routes(), 2)

	_, err := r.Lookup("history", http.MethodGet)
	assert.NoError(t, err)
	_, err = r.Lookup("history", http.MethodDelete)
	assert.ErrorIs(t, err, ErrRouteNotFound)
	_, err = r.Lookup("signals", http.MethodGet)
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

// -----------------------------------------------------------------------------

func TestHTTPRegistryDuplicateOverwrites(t *testing.T) {
	r := NewHTTPRegistry(nil)

	called := ""
	first := func(w http.ResponseWriter, req *http.Request) { called = "first" }
	second := func(w http.ResponseWriter, req *http.Request) { called = "second" }

	require.NoError(t, r.Register(HTTPRoute{Name: "history", Method: http.MethodGet, Handler: first}))
	require.NoError(t, r.Register(HTTPRoute{Name: "history", Method: http.MethodGet, Handler: second}))

	require.Len(t, r.Routes(), 1)
	route, err := r.Lookup("history", http.MethodGet)
	require.NoError(t, err)
	route.Handler(nil, nil)
	assert.Equal(t, "second", called)
}

// -----------------------------------------------------------------------------

func TestHTTPRegistryRejectsIncomplete(t *testing.T) {
	r := NewHTTPRegistry(nil)

	assert.Error(t, r.Register(HTTPRoute{Method: http.MethodGet, Handler: noopHandler}))
	assert.Error(t, r.Register(HTTPRoute{Name: "history", Handler: noopHandler}))
	assert.Error(t, r.Register(HTTPRoute{Name: "history", Method: http.MethodGet}))
}

// -----------------------------------------------------------------------------

func TestPushRegistryNameKey(t *testing.T) {
	r := NewPushRegistry(nil)

	require.NoError(t, r.Register(PushRoute{Channel: "quotes"}))
	assert.True(t, r.Has("quotes"))
	assert.False(t, r.Has("trades"))

	_, err := r.Lookup("quotes")
	assert.NoError(t, err)
	_, err = r.Lookup("trades")
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

// -----------------------------------------------------------------------------

func TestPushRegistryDuplicateOverwrites(t *testing.T) {
	r := NewPushRegistry(nil)

	called := ""
	require.NoError(t, r.Register(PushRoute{Channel: "quotes", OnMessage: func(conn interfaces.IConnection, m []byte) { called = "first" }}))
	require.NoError(t, r.Register(PushRoute{Channel: "quotes", OnMessage: func(conn interfaces.IConnection, m []byte) { called = "second" }}))

	route, err := r.Lookup("quotes")
	require.NoError(t, err)
	route.OnMessage(nil, nil)
	assert.Equal(t, "second", called)
}

// -----------------------------------------------------------------------------

func TestPushRegistryRejectsEmptyChannel(t *testing.T) {
	r := NewPushRegistry(nil)
	assert.Error(t, r.Register(PushRoute{}))
}
