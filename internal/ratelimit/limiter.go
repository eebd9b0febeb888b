// SPDX-License-Identifier: MIT

// Package ratelimit limits how fast clients may mutate the virtual clock
// through the control API.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var (
	rateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timewarp",
			Name:      "ratelimit_exceeded_total",
			Help:      "Total clock mutation rate limit rejections",
		},
		[]string{"limit_type", "op"},
	)
)

// Config holds rate limiting configuration
type Config struct {
	// Global limits
	GlobalRate  rate.Limit // mutations per second
	GlobalBurst int        // max burst size

	// Per-IP limits
	PerIPRate  rate.Limit
	PerIPBurst int

	// Per-operation limits (e.g. "time_travel", "set_rate"); operations
	// without an entry are only subject to the global and per-IP limits.
	OpRates map[string]rate.Limit
	OpBurst map[string]int

	// Cleanup interval for per-IP limiters
	CleanupInterval time.Duration
}

// DefaultConfig derives limits from the per-client mutation rate.
// The global budget is ten clients' worth.
func DefaultConfig(perSecond float64, burst int) Config {
	if burst <= 0 {
		burst = 1
	}
	return Config{
		GlobalRate:  rate.Limit(perSecond * 10),
		GlobalBurst: burst * 10,

		PerIPRate:  rate.Limit(perSecond),
		PerIPBurst: burst,

		// Resets are cheap to abuse and expensive for running timers.
		OpRates: map[string]rate.Limit{"reset": rate.Limit(perSecond / 2)},
		OpBurst: map[string]int{"reset": max(1, burst/2)},

		CleanupInterval: 5 * time.Minute,
	}
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock replaces the clock used for limiter refills and cleanup.
func WithClock(c clockwork.Clock) Option {
	return func(l *Limiter) {
		if c != nil {
			l.clock = c
		}
	}
}

// Limiter manages rate limiting for clock mutations
type Limiter struct {
	config Config
	clock  clockwork.Clock

	global *rate.Limiter
	perIP  map[string]*rate.Limiter
	perOp  map[string]*rate.Limiter
	mu     sync.RWMutex

	lastCleanup time.Time
}

// New creates a new rate limiter with the given config
func New(config Config, opts ...Option) *Limiter {
	l := &Limiter{
		config: config,
		clock:  clockwork.NewRealClock(),
		global: rate.NewLimiter(config.GlobalRate, config.GlobalBurst),
		perIP:  make(map[string]*rate.Limiter),
		perOp:  make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastCleanup = l.clock.Now()

	for op, opRate := range config.OpRates {
		l.perOp[op] = rate.NewLimiter(opRate, config.OpBurst[op])
	}

	return l
}

// Allow checks if a mutation is allowed under rate limits
// Returns true if allowed, false if rate limited
func (l *Limiter) Allow(clientIP, op string) bool {
	now := l.clock.Now()

	// 1. Check global limit
	if !l.global.AllowN(now, 1) {
		rateLimitExceeded.WithLabelValues("global", op).Inc()
		return false
	}

	// 2. Check per-operation limit
	l.mu.RLock()
	opLimiter, exists := l.perOp[op]
	l.mu.RUnlock()

	if exists && !opLimiter.AllowN(now, 1) {
		rateLimitExceeded.WithLabelValues("per_op", op).Inc()
		return false
	}

	// 3. Check per-IP limit
	ipLimiter := l.getIPLimiter(clientIP)
	if !ipLimiter.AllowN(now, 1) {
		rateLimitExceeded.WithLabelValues("per_ip", op).Inc()
		return false
	}

	// Periodic cleanup of stale IP limiters
	l.maybeCleanup(now)

	return true
}

// getIPLimiter returns the rate limiter for a specific IP
func (l *Limiter) getIPLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.perIP[ip]
	if !exists {
		limiter = rate.NewLimiter(l.config.PerIPRate, l.config.PerIPBurst)
		l.perIP[ip] = limiter
	}

	return limiter
}

// maybeCleanup removes stale IP limiters if cleanup interval has passed
func (l *Limiter) maybeCleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) < l.config.CleanupInterval {
		return
	}
	// Clear all IP limiters (simple approach)
	l.perIP = make(map[string]*rate.Limiter)
	l.lastCleanup = now
}

// trackedIPs returns the number of per-IP limiters currently held.
func (l *Limiter) trackedIPs() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.perIP)
}

// GetClientIP extracts the real client IP from the request
func GetClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: "client, proxy1, proxy2"
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
