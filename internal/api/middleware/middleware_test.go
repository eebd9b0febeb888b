// SPDX-License-Identifier: MIT

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/timewarp/internal/log"
)

func TestRecoverer_Returns500JSON(t *testing.T) {
	h := RequestID(Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clock", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body["error"])
	assert.Equal(t, "req-1", body["requestId"])
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = log.RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "abc", seen)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://ui.example"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://ui.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "https://ui.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders("")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, DefaultCSP, w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestStack_RoutesThroughAllLayers(t *testing.T) {
	r := NewRouter(StackConfig{
		EnableCORS:            true,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        "timewarpd-test",
		EnableLogging:         true,
		RequestsPerMinute:     2,
	})
	r.Get("/api/v1/clock/{part}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/clock/{part}", routePattern(r))
		w.WriteHeader(http.StatusOK)
	})

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/clock/now", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRoutePattern_FallsBackToPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/raw/path", nil)
	assert.Equal(t, "/raw/path", routePattern(req))

	rctx := chi.NewRouteContext()
	rctx.RoutePatterns = []string{"/api/v1/*"}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	assert.Equal(t, "/api/v1/*", routePattern(req))
}

func TestShouldTrace(t *testing.T) {
	assert.False(t, shouldTrace(httptest.NewRequest(http.MethodGet, "/metrics", nil)))
	assert.False(t, shouldTrace(httptest.NewRequest(http.MethodGet, "/healthz", nil)))
	assert.False(t, shouldTrace(httptest.NewRequest(http.MethodGet, "/readyz", nil)))
	assert.True(t, shouldTrace(httptest.NewRequest(http.MethodGet, "/api/v1/clock", nil)))
}

func durationSamples(t *testing.T, method, route, status string) uint64 {
	t.Helper()
	obs, err := httpRequestDuration.GetMetricWithLabelValues(method, route, status)
	require.NoError(t, err)
	var m dto.Metric
	require.NoError(t, obs.(prometheus.Histogram).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestMetrics_LabelsByRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics())
	r.Get("/api/v1/events/{name}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	matched := durationSamples(t, http.MethodGet, "/api/v1/events/{name}", "200")
	unmatched := durationSamples(t, http.MethodGet, routeUnmatched, "404")

	for _, path := range []string{"/api/v1/events/hour", "/api/v1/events/noon", "/wp-login.php"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, matched+2, durationSamples(t, http.MethodGet, "/api/v1/events/{name}", "200"))
	assert.Equal(t, unmatched+1, durationSamples(t, http.MethodGet, routeUnmatched, "404"))
	assert.Equal(t, 0.0, testutil.ToFloat64(httpRequestsInFlight))
}
