// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Clock attributes
	ClockOpKey      = "clock.op"
	ClockRateKey    = "clock.rate"
	ClockPausedKey  = "clock.paused"
	ClockVirtualKey = "clock.virtual_time"

	// Timer attributes
	TimerIDKey   = "timer.id"
	TimerKindKey = "timer.kind"

	// Guard attributes
	GuardPathKey    = "guard.path"
	GuardModeKey    = "guard.mode"
	GuardAllowedKey = "guard.allowed"
	GuardReasonKey  = "guard.reason"

	// Event attributes
	EventNameKey  = "event.name"
	EventFiredKey = "event.fired"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// ClockAttributes describes a clock mutation and the state it produced.
// virtual is RFC 3339 formatted by the caller; empty values are omitted.
func ClockAttributes(op string, rate float64, paused bool, virtual string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if op != "" {
		attrs = append(attrs, attribute.String(ClockOpKey, op))
	}
	attrs = append(attrs,
		attribute.Float64(ClockRateKey, rate),
		attribute.Bool(ClockPausedKey, paused),
	)
	if virtual != "" {
		attrs = append(attrs, attribute.String(ClockVirtualKey, virtual))
	}
	return attrs
}

// TimerAttributes creates virtual timer span attributes.
func TimerAttributes(id, kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(TimerIDKey, id),
		attribute.String(TimerKindKey, kind),
	}
}

// GuardAttributes records one guard decision. The reason is only set for
// denials.
func GuardAttributes(path, mode string, allowed bool, reason string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(GuardPathKey, path),
		attribute.String(GuardModeKey, mode),
		attribute.Bool(GuardAllowedKey, allowed),
	}
	if !allowed && reason != "" {
		attrs = append(attrs, attribute.String(GuardReasonKey, reason))
	}
	return attrs
}

// EventAttributes lists the boundary events fired by one scheduler check.
func EventAttributes(fired []string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.StringSlice(EventNameKey, fired),
		attribute.Int(EventFiredKey, len(fired)),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
