package managers

import (
	"testing"

	"stream-manager/src/models"
	"stream-manager/src/routes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

func TestGenericManagerListenerSelection(t *testing.T) {
	cases := map[string]models.MManagerConfig{
		"none":      {},
		"server":    {UseServer: true},
		"websocket": {UseWebsocket: true},
		"both":      {UseServer: true, UseWebsocket: true},
	}

	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			gm := NewGenericManager(cfg, routes.NewHTTPRegistry(nil), routes.NewPushRegistry(nil), nil)

			assert.Equal(t, cfg.UseServer, gm.Server() != nil)
			assert.Equal(t, cfg.UseWebsocket, gm.Websocket() != nil)

			require.NoError(t, gm.Start())
			assert.True(t, gm.Alive())
			require.NoError(t, gm.Stop())

			if cfg.UseServer || cfg.UseWebsocket {
				assert.False(t, gm.Alive())
			} else {
				// No listeners configured: trivially alive
				assert.True(t, gm.Alive())
			}
		})
	}
}

// -----------------------------------------------------------------------------

func TestGenericManagerAliveIsConjunction(t *testing.T) {
	gm := NewGenericManager(models.MManagerConfig{UseServer: true, UseWebsocket: true},
		routes.NewHTTPRegistry(nil), routes.NewPushRegistry(nil), nil)

	require.NoError(t, gm.Start())
	assert.True(t, gm.Alive())

	// One dead listener kills liveness for the whole manager
	_, err := gm.Websocket().Stop()
	require.NoError(t, err)
	assert.False(t, gm.Alive())

	require.NoError(t, gm.Stop())
}

// -----------------------------------------------------------------------------

func TestGenericManagerStopWithoutStart(t *testing.T) {
	gm := NewGenericManager(models.MManagerConfig{UseServer: true},
		routes.NewHTTPRegistry(nil), routes.NewPushRegistry(nil), nil)

	require.NoError(t, gm.Stop())
	assert.False(t, gm.Alive())
}

// -----------------------------------------------------------------------------

func TestGenericManagerNoPendingFaults(t *testing.T) {
	gm := NewGenericManager(models.MManagerConfig{UseServer: true, UseWebsocket: true},
		routes.NewHTTPRegistry(nil), routes.NewPushRegistry(nil), nil)

	require.NoError(t, gm.Start())
	defer gm.Stop()

	assert.Nil(t, gm.GetException())
}
