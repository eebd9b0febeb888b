// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	guardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timewarp_guard_decisions_total",
		Help: "Outbound request guard decisions by outcome and reason",
	}, []string{"outcome", "reason"}) // outcome=allowed|denied

	mutationLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timewarp_api_mutations_limited_total",
		Help: "Clock mutation requests rejected by the control API limiter",
	})
)

// IncGuardDecision counts a guard decision.
func IncGuardDecision(allowed bool, reason string) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	if reason == "" {
		reason = "none"
	}
	guardDecisions.WithLabelValues(outcome, reason).Inc()
}

// IncMutationLimited counts a mutation rejected by the control API limiter.
func IncMutationLimited() { mutationLimited.Inc() }
