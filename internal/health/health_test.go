// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/timewarp/internal/clock"
	"github.com/ManuGH/timewarp/internal/config"
	"github.com/ManuGH/timewarp/internal/persistence"
)

func TestManager_Health_NoCheckers(t *testing.T) {
	m := NewManager("v1.0.0", nil)

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.GreaterOrEqual(t, resp.Uptime, int64(0))
	assert.Nil(t, resp.Checks)
}

func TestManager_Health_WithCheckers(t *testing.T) {
	m := NewManager("v1.0.0", nil)
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	// Non-verbose: no checks included
	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
	assert.Equal(t, StatusHealthy, resp.Checks["healthy"].Status)
	assert.Equal(t, StatusDegraded, resp.Checks["degraded"].Status)
}

func TestManager_UnhealthyWinsOverDegraded(t *testing.T) {
	m := NewManager("v1.0.0", nil)
	m.RegisterChecker(&mockChecker{name: "unhealthy", status: StatusUnhealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	assert.Equal(t, StatusUnhealthy, m.Health(context.Background(), true).Status)
	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestManager_Health_Uptime(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := NewManager("v1.0.0", fc)

	assert.Equal(t, int64(0), m.Health(context.Background(), false).Uptime)
	fc.Advance(90 * time.Second)
	resp := m.Health(context.Background(), false)
	assert.Equal(t, int64(90), resp.Uptime)
	assert.Equal(t, fc.Now(), resp.Timestamp)
}

func TestManager_Ready(t *testing.T) {
	m := NewManager("v1.0.0", nil)
	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Nil(t, resp.Checks)

	m.RegisterChecker(&mockChecker{name: "check1", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "check2", status: StatusDegraded})
	resp = m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_ServeHealth(t *testing.T) {
	m := NewManager("v1.0.0", nil)
	m.RegisterChecker(&mockChecker{name: "test", status: StatusUnhealthy})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	m.ServeHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	// Liveness stays 200 even when a component is unhealthy.
	req = httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil)
	w = httptest.NewRecorder()
	m.ServeHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Len(t, resp.Checks, 1)
}

func TestManager_ServeReady(t *testing.T) {
	tests := []struct {
		name           string
		checker        Checker
		expectedStatus int
		expectedReady  bool
	}{
		{
			name:           "healthy",
			checker:        &mockChecker{name: "test", status: StatusHealthy},
			expectedStatus: http.StatusOK,
			expectedReady:  true,
		},
		{
			name:           "degraded",
			checker:        &mockChecker{name: "test", status: StatusDegraded},
			expectedStatus: http.StatusOK,
			expectedReady:  true,
		},
		{
			name:           "unhealthy",
			checker:        &mockChecker{name: "test", status: StatusUnhealthy},
			expectedStatus: http.StatusServiceUnavailable,
			expectedReady:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1.0.0", nil)
			m.RegisterChecker(tt.checker)

			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			w := httptest.NewRecorder()
			m.ServeReady(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp ReadinessResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.expectedReady, resp.Ready)
		})
	}
}

func TestManager_ServeEncodingError(t *testing.T) {
	m := NewManager("v1.0.0", nil)

	// Should not panic even if encoding fails
	m.ServeHealth(&brokenWriter{header: make(http.Header)}, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	m.ServeReady(&brokenWriter{header: make(http.Header)}, httptest.NewRequest(http.MethodGet, "/readyz", nil))
}

func TestClockChecker(t *testing.T) {
	c := &fakeClock{state: clock.StateRunning, rate: 60}
	checker := NewClockChecker(c)
	assert.Equal(t, "clock", checker.Name())

	result := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
	assert.Equal(t, "running at rate 60", result.Message)

	c.state = clock.StatePaused
	result = checker.Check(context.Background())
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Contains(t, result.Message, "paused")
}

func TestStoreChecker(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		result := NewStoreChecker(nil, "k").Check(ctx)
		assert.Equal(t, StatusHealthy, result.Status)
		assert.Equal(t, "not configured (optional)", result.Message)
	})

	t.Run("empty store", func(t *testing.T) {
		checker := NewStoreChecker(persistence.NewMemoryStore(), "timewarp.clock")
		assert.Equal(t, "store", checker.Name())
		result := checker.Check(ctx)
		assert.Equal(t, StatusHealthy, result.Status)
		assert.Contains(t, result.Message, "no clock state")
	})

	t.Run("state present", func(t *testing.T) {
		store := persistence.NewMemoryStore()
		require.NoError(t, store.Save(ctx, "timewarp.clock", []byte("{}")))
		result := NewStoreChecker(store, "timewarp.clock").Check(ctx)
		assert.Equal(t, StatusHealthy, result.Status)
		assert.Contains(t, result.Message, "clock state present")
	})

	t.Run("failing backend", func(t *testing.T) {
		result := NewStoreChecker(failingStore{}, "timewarp.clock").Check(ctx)
		assert.Equal(t, StatusDegraded, result.Status)
		assert.Equal(t, "connection refused", result.Error)
	})
}

func TestPerformStartupChecks(t *testing.T) {
	base := config.Defaults()
	base.Clock.Timezone = "UTC"

	t.Run("no store", func(t *testing.T) {
		assert.NoError(t, PerformStartupChecks(context.Background(), base))
	})

	t.Run("file store directory is created", func(t *testing.T) {
		cfg := base
		cfg.Store.Backend = persistence.BackendFile
		cfg.Store.Path = filepath.Join(t.TempDir(), "state", "clock")
		require.NoError(t, PerformStartupChecks(context.Background(), cfg))
		info, err := os.Stat(cfg.Store.Path)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("sqlite parent must exist", func(t *testing.T) {
		cfg := base
		cfg.Store.Backend = persistence.BackendSQLite
		cfg.Store.Path = filepath.Join(t.TempDir(), "missing", "clock.sqlite")
		err := PerformStartupChecks(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "directory does not exist")
	})

	t.Run("store path is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "occupied")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0600))
		cfg := base
		cfg.Store.Backend = persistence.BackendBadger
		cfg.Store.Path = file
		assert.Error(t, PerformStartupChecks(context.Background(), cfg))
	})

	t.Run("bad timezone", func(t *testing.T) {
		cfg := base
		cfg.Clock.Timezone = "Mars/Olympus_Mons"
		assert.Error(t, PerformStartupChecks(context.Background(), cfg))
	})
}

// Mock implementations

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(_ context.Context) CheckResult {
	return CheckResult{
		Status:  m.status,
		Message: "mock check",
	}
}

type fakeClock struct {
	state clock.State
	rate  float64
}

func (f *fakeClock) State() clock.State { return f.state }
func (f *fakeClock) Rate() float64      { return f.rate }

type failingStore struct{}

func (failingStore) Load(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (failingStore) Save(context.Context, string, []byte) error { return nil }
func (failingStore) Close() error                               { return nil }

type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header {
	return w.header
}

func (w *brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken writer")
}

func (w *brokenWriter) WriteHeader(statusCode int) {}
