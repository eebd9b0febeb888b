// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/timewarp/internal/config"
)

func testServerConfig() config.ServerConfig {
	cfg := config.Defaults().Server
	cfg.Listen = "127.0.0.1:0"
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func testDeps() Deps {
	return Deps{
		Logger: zerolog.New(io.Discard),
		APIHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}),
	}
}

func waitForAddr(t *testing.T, m Manager) string {
	t.Helper()
	require.Eventually(t, func() bool { return m.Addr() != nil }, 2*time.Second, 5*time.Millisecond)
	return m.Addr().String()
}

func TestDepsValidate(t *testing.T) {
	d := testDeps()
	assert.NoError(t, d.Validate())

	noLogger := testDeps()
	noLogger.Logger = zerolog.Nop()
	assert.ErrorIs(t, noLogger.Validate(), ErrMissingLogger)

	noHandler := testDeps()
	noHandler.APIHandler = nil
	assert.ErrorIs(t, noHandler.Validate(), ErrMissingAPIHandler)

	_, err := NewManager(testServerConfig(), noHandler)
	assert.ErrorIs(t, err, ErrMissingAPIHandler)
}

func TestManager_ServesUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, err := NewManager(testServerConfig(), testDeps())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	addr := waitForAddr(t, m)
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}

	// Second shutdown is a no-op.
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_HooksRunLIFO(t *testing.T) {
	m, err := NewManager(testServerConfig(), testDeps())
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	record := func(name string) ShutdownHook {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	m.RegisterShutdownHook("first", record("first"))
	m.RegisterShutdownHook("second", record("second"))
	m.RegisterShutdownHook("failing", func(context.Context) error { return errors.New("boom") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	waitForAddr(t, m)
	cancel()

	err = <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook failing: boom")
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestManager_ShutdownBeforeStart(t *testing.T) {
	m, err := NewManager(testServerConfig(), testDeps())
	require.NoError(t, err)
	assert.ErrorIs(t, m.Shutdown(context.Background()), ErrManagerNotStarted)
	assert.Nil(t, m.Addr())
}

func TestManager_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	cfg := testServerConfig()
	cfg.Listen = ln.Addr().String()
	m, err := NewManager(cfg, testDeps())
	require.NoError(t, err)

	hookRan := false
	m.RegisterShutdownHook("cleanup", func(context.Context) error {
		hookRan = true
		return nil
	})

	err = m.Start(context.Background())
	assert.ErrorIs(t, err, ErrServerStartFailed)
	assert.True(t, hookRan)
}

func TestManager_StartTwice(t *testing.T) {
	m, err := NewManager(testServerConfig(), testDeps())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	waitForAddr(t, m)

	assert.ErrorIs(t, m.Start(ctx), ErrManagerStarted)
	cancel()
	assert.NoError(t, <-done)
}
