// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ManuGH/timewarp/internal/ratelimit"
)

const rateLimitBody = `{"error":"rate_limit_exceeded","detail":"Too many requests. Please try again later."}`

// RateLimitConfig is a sliding window budget per key.
type RateLimitConfig struct {
	RequestLimit int
	WindowSize   time.Duration
	// KeyFunc picks the budget a request counts against; nil keys by client IP.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit enforces cfg with httprate's sliding window counter and answers
// rejected requests with 429 and a JSON body.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	key := cfg.KeyFunc
	if key == nil {
		key = httprate.KeyByIP
	}
	retryAfter := int(cfg.WindowSize / time.Second)
	return httprate.Limit(cfg.RequestLimit, cfg.WindowSize,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeTooManyRequests(w, retryAfter)
		}),
	)
}

// APIRateLimit returns a per-IP limiter for the control API.
// A non-positive requestsPerMinute disables limiting.
func APIRateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return passthrough
	}
	return RateLimit(RateLimitConfig{
		RequestLimit: requestsPerMinute,
		WindowSize:   time.Minute,
	})
}

// Mutations rejects clock mutations beyond the limiter's budget for op.
// A nil limiter disables the check.
func Mutations(l *ratelimit.Limiter, op string) func(http.Handler) http.Handler {
	if l == nil {
		return passthrough
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(ratelimit.GetClientIP(r), op) {
				writeTooManyRequests(w, 1)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeTooManyRequests(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(rateLimitBody))
}

func passthrough(next http.Handler) http.Handler { return next }
