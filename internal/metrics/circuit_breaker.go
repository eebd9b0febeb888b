// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// breakerStates are the label values of timewarp_circuit_breaker_state.
var breakerStates = [...]string{"closed", "half-open", "open"}

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "timewarp_circuit_breaker_state",
		Help: "1 for the current state of each circuit breaker, 0 for the others.",
	}, []string{"component", "state"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timewarp_circuit_breaker_trips_total",
		Help: "Times a circuit breaker opened, by cause.",
	}, []string{"component", "reason"})
)

// SetCircuitBreakerState marks state as the active one for component.
func SetCircuitBreakerState(component, state string) {
	for _, s := range breakerStates {
		g := breakerState.With(prometheus.Labels{"component": component, "state": s})
		if s == state {
			g.Set(1)
		} else {
			g.Set(0)
		}
	}
}

// RecordCircuitBreakerTrip counts one transition to open.
func RecordCircuitBreakerTrip(component, reason string) {
	breakerTrips.With(prometheus.Labels{"component": component, "reason": reason}).Inc()
}
