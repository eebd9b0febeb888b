// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package guard

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRate float64

func (r fixedRate) Rate() float64 { return float64(r) }

func newGuard(t *testing.T, rates RateSource, p Policy, opts ...Option) *Guard {
	t.Helper()
	g, err := New(rates, p, opts...)
	require.NoError(t, err)
	return g
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/auth/*", "/auth/login", true},
		{"/auth/*", "/auth/", true},
		{"/auth/*", "/auth", false},
		{"/health?", "/healthz", true},
		{"/health?", "/health", false},
		{"/health?", "/healthzz", false},
		{"*", "", true},
		{"*", "/anything/at/all", true},
		{"/api/*/users", "/api/v1/users", true},
		{"/api/*/users", "/api/v1/v2/users", true},
		{"/api/*/users", "/api/v1/users/1", false},
		{"/a*b*c", "/aXXbYYc", true},
		{"/a*b*c", "/aXXbYY", false},
		{"/exact", "/exact", true},
		{"/exact", "/exactly", false},
		{"/exact", "prefix/exact", false},
		{"/caf?", "/café", true},
		{"[a-z]", "a", false},
		{"[a-z]", "[a-z]", true},
		{"/\xff*", "/\xffabc", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.pattern, tt.path))
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Throttle ")
	require.NoError(t, err)
	assert.Equal(t, ModeThrottle, m)

	_, err = ParseMode("sometimes")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestEvaluate_BlockedPatternWinsOverAllowAndMode(t *testing.T) {
	g := newGuard(t, fixedRate(1), Policy{
		Mode:            ModeAllow,
		BlockedPatterns: []string{"/payments/*"},
		AllowedPatterns: []string{"/payments/checkout"},
	}, WithLogger(zerolog.Nop()))

	assert.Equal(t, Decision{Reason: ReasonBlockedPattern}, g.Evaluate("/payments/checkout"))
	assert.Equal(t, Decision{Allowed: true}, g.Evaluate("/orders"))
}

func TestEvaluate_AllowedPatternBypassesMode(t *testing.T) {
	g := newGuard(t, fixedRate(50), Policy{
		Mode:            ModeBlock,
		AllowedPatterns: []string{"/health?"},
	}, WithLogger(zerolog.Nop()))

	assert.True(t, g.Evaluate("/healthz").Allowed)
	assert.Equal(t, Decision{Reason: ReasonAccelerationActive}, g.Evaluate("/orders"))
}

func TestEvaluate_BlockModeFollowsRate(t *testing.T) {
	tests := []struct {
		rate    float64
		allowed bool
	}{
		{1, true},
		{0, false},
		{0.5, false},
		{100, false},
	}
	for _, tt := range tests {
		g := newGuard(t, fixedRate(tt.rate), Policy{Mode: ModeBlock}, WithLogger(zerolog.Nop()))
		assert.Equal(t, tt.allowed, g.Evaluate("/x").Allowed, "rate %v", tt.rate)
	}
}

func TestEvaluate_DefaultsToBlockMode(t *testing.T) {
	g := newGuard(t, fixedRate(2), Policy{}, WithLogger(zerolog.Nop()))
	assert.Equal(t, ModeBlock, g.Policy().Mode)
	assert.Equal(t, DefaultThrottleLimit, g.Policy().ThrottleLimit)
	assert.False(t, g.Evaluate("/x").Allowed)
}

func TestEvaluate_ThrottleWindow(t *testing.T) {
	fc := clockwork.NewFakeClock()
	g := newGuard(t, fixedRate(1000), Policy{Mode: ModeThrottle, ThrottleLimit: 10},
		WithRealClock(fc), WithLogger(zerolog.Nop()))

	for i := 0; i < 10; i++ {
		require.True(t, g.Evaluate("/api").Allowed, "call %d", i+1)
	}
	assert.Equal(t, Decision{Reason: ReasonThrottleExceeded}, g.Evaluate("/api"))

	fc.Advance(ThrottleWindow - time.Second)
	assert.False(t, g.Evaluate("/api").Allowed, "window still open")

	fc.Advance(time.Second)
	assert.True(t, g.Evaluate("/api").Allowed, "new window")
}

func TestSetPolicy_ResetsThrottleWindow(t *testing.T) {
	fc := clockwork.NewFakeClock()
	g := newGuard(t, fixedRate(1), Policy{Mode: ModeThrottle, ThrottleLimit: 1},
		WithRealClock(fc), WithLogger(zerolog.Nop()))

	require.True(t, g.Evaluate("/a").Allowed)
	require.False(t, g.Evaluate("/a").Allowed)

	require.NoError(t, g.SetPolicy(Policy{Mode: ModeThrottle, ThrottleLimit: 2}))
	assert.True(t, g.Evaluate("/a").Allowed)
	assert.True(t, g.Evaluate("/a").Allowed)
	assert.False(t, g.Evaluate("/a").Allowed)
}

func TestPolicy_RejectsNegativeThrottleLimit(t *testing.T) {
	_, err := New(fixedRate(1), Policy{Mode: ModeThrottle, ThrottleLimit: -1})
	assert.ErrorIs(t, err, ErrInvalidThrottleLimit)

	_, err = New(fixedRate(1), Policy{Mode: "sometimes"})
	assert.ErrorIs(t, err, ErrUnknownMode)

	fc := clockwork.NewFakeClock()
	g := newGuard(t, fixedRate(1), Policy{Mode: ModeThrottle, ThrottleLimit: 3},
		WithRealClock(fc), WithLogger(zerolog.Nop()))
	err = g.SetPolicy(Policy{Mode: ModeThrottle, ThrottleLimit: -5})
	require.ErrorIs(t, err, ErrInvalidThrottleLimit)
	assert.Equal(t, 3, g.Policy().ThrottleLimit, "rejected policy leaves the current one in place")
}

func TestPolicy_ZeroThrottleLimitUsesDefault(t *testing.T) {
	g := newGuard(t, fixedRate(1), Policy{Mode: ModeThrottle}, WithLogger(zerolog.Nop()))
	assert.Equal(t, DefaultThrottleLimit, g.Policy().ThrottleLimit)
}

func TestPolicy_ReturnsCopy(t *testing.T) {
	blocked := []string{"/a"}
	g := newGuard(t, fixedRate(1), Policy{BlockedPatterns: blocked}, WithLogger(zerolog.Nop()))
	blocked[0] = "/b"

	p := g.Policy()
	p.BlockedPatterns[0] = "/c"
	assert.Equal(t, []string{"/a"}, g.Policy().BlockedPatterns)
}

func TestTransport_DeniedRequestNeverReachesNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	g := newGuard(t, fixedRate(100), Policy{Mode: ModeBlock, AllowedPatterns: []string{"/public/*"}},
		WithLogger(zerolog.Nop()))
	client := &http.Client{Transport: NewTransport(g, srv.Client().Transport)}

	resp, err := client.Post(srv.URL+"/payments/charge", "text/plain", strings.NewReader("body"))
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.Error(t, err)
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, ReasonAccelerationActive, denied.Reason)
	assert.Equal(t, "/payments/charge", denied.Path)
	assert.ErrorIs(t, err, ErrDenied)
	assert.Equal(t, int32(0), hits.Load())

	resp, err = client.Get(srv.URL + "/public/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(1), hits.Load())
}
