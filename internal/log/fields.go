// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService        = "service"
	FieldVersion        = "version"
	FieldRequestID      = "request_id"
	FieldTraceID        = "trace_id"
	FieldSpanID         = "span_id"
	FieldTimerID        = "timer_id"
	FieldSubscriptionID = "subscription_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Clock fields
	FieldRate        = "rate"
	FieldVirtualTime = "virtual_time"
	FieldClockEvent  = "clock_event"
	FieldTimerKind   = "timer_kind"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath = "path"
)
