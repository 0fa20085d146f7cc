package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func newTestManager(t *testing.T, name string) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = 2 * time.Second
	return NewManager(name, okHandler(), cfg, zap.NewNop())
}

// --- DefaultConfig ---

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 120*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
}

// --- Start / Shutdown lifecycle ---

func TestManager_StartAndShutdown(t *testing.T) {
	m := newTestManager(t, "dashboard")
	assert.Equal(t, "127.0.0.1:0", m.Addr())

	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + m.Addr() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
}

func TestManager_DoubleStart(t *testing.T) {
	m := newTestManager(t, "dashboard")
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestManager_ShutdownIdempotentAndNoRestart(t *testing.T) {
	m := newTestManager(t, "metrics")
	require.NoError(t, m.Start())

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestManager_ListenError(t *testing.T) {
	first := newTestManager(t, "a")
	require.NoError(t, first.Start())
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	cfg := DefaultConfig()
	cfg.Addr = first.Addr()
	second := NewManager("b", okHandler(), cfg, nil)
	err := second.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

// --- Group ---

func TestGroup_StartAndShutdown(t *testing.T) {
	web := newTestManager(t, "dashboard")
	metrics := newTestManager(t, "metrics")
	g := NewGroup(zap.NewNop(), web, metrics)

	require.NoError(t, g.Start())
	for _, m := range []*Manager{web, metrics} {
		resp, err := http.Get("http://" + m.Addr() + "/")
		require.NoError(t, err)
		resp.Body.Close()
	}

	require.NoError(t, g.Shutdown(context.Background()))
	assert.False(t, web.IsRunning())
	assert.False(t, metrics.IsRunning())
}

func TestGroup_StartFailureStopsStarted(t *testing.T) {
	web := newTestManager(t, "dashboard")
	require.NoError(t, web.Start())
	t.Cleanup(func() { _ = web.Shutdown(context.Background()) })

	first := newTestManager(t, "first")
	cfg := DefaultConfig()
	cfg.Addr = web.Addr()
	clash := NewManager("clash", okHandler(), cfg, nil)

	g := NewGroup(nil, first, clash)
	require.Error(t, g.Start())
	assert.False(t, first.IsRunning())
}

func TestGroup_WaitReturnsOnContextCancel(t *testing.T) {
	m := newTestManager(t, "dashboard")
	g := NewGroup(zap.NewNop(), m)
	require.NoError(t, g.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Wait(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}
	assert.False(t, m.IsRunning())
}
