// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/timewarp/internal/config"
	"github.com/ManuGH/timewarp/internal/engine"
	"github.com/ManuGH/timewarp/internal/guard"
)

const appConfigYAML = `clock:
  rate: 1
  timezone: UTC
http:
  policy: block
  blocked_patterns: ["/payments/*"]
server:
  shutdown_timeout: 2s
`

func loadTestConfig(t *testing.T, content string) (config.AppConfig, *config.Loader, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timewarp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	loader := config.NewLoader(path, "v-test")
	cfg, err := loader.Load()
	require.NoError(t, err)
	// Ephemeral port; the validated config requires a fixed one.
	cfg.Server.Listen = "127.0.0.1:0"
	return cfg, loader, path
}

func TestNewApp_RequiresManagerAndEngine(t *testing.T) {
	logger := zerolog.New(io.Discard)
	assert.ErrorIs(t, NewApp(logger, nil, nil, nil).Run(context.Background()), ErrMissingManager)

	m, err := NewManager(testServerConfig(), testDeps())
	require.NoError(t, err)
	assert.ErrorIs(t, NewApp(logger, m, nil, nil).Run(context.Background()), ErrMissingEngine)
}

func TestApp_RunServesAPIAndAppliesReload(t *testing.T) {
	cfg, loader, path := loadTestConfig(t, appConfigYAML)
	fc := clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC))

	app, err := Bootstrap(context.Background(), cfg, loader, engine.WithRealClock(fc))
	require.NoError(t, err)
	// Reloads are driven explicitly below.
	app.reloadSignal = nil

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	addr := waitForAddr(t, app.Manager())
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	base := "http://" + addr

	resp, err := client.Get(base + "/api/v1/guard/policy")
	require.NoError(t, err)
	var policy struct {
		Mode    string   `json:"mode"`
		Blocked []string `json:"blocked_patterns"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&policy))
	_ = resp.Body.Close()
	assert.Equal(t, string(guard.ModeBlock), policy.Mode)
	assert.Equal(t, []string{"/payments/*"}, policy.Blocked)

	require.NoError(t, os.WriteFile(path, []byte(`http:
  policy: allow
  blocked_patterns: ["/admin/*"]
`), 0600))
	require.NoError(t, app.cfgHolder.Reload(context.Background()))

	require.Eventually(t, func() bool {
		return app.engine.Guard().Policy().Mode == guard.ModeAllow
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, app.engine.Guard().Evaluate("/admin/users").Allowed)
	assert.True(t, app.engine.Guard().Evaluate("/payments/charge").Allowed)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}

	// The engine shutdown hook closed the engine.
	assert.ErrorIs(t, app.engine.Start(context.Background()), engine.ErrClosed)
}

func TestApp_InvalidReloadKeepsPolicy(t *testing.T) {
	cfg, loader, path := loadTestConfig(t, appConfigYAML)
	app, err := Bootstrap(context.Background(), cfg, loader,
		engine.WithRealClock(clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC))))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.engine.Close() })

	require.NoError(t, os.WriteFile(path, []byte("http:\n  policy: sometimes\n"), 0600))
	require.Error(t, app.cfgHolder.Reload(context.Background()))
	assert.Equal(t, guard.ModeBlock, app.engine.Guard().Policy().Mode)
}
