// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventChecks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timewarp_event_checks_total",
		Help: "Boundary event checks performed by the scheduler",
	})

	eventsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timewarp_events_fired_total",
		Help: "Boundary events fired by event name",
	}, []string{"event"})

	subscriberFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timewarp_event_subscriber_failures_total",
		Help: "Subscriber handlers that returned an error or panicked",
	}, []string{"event"})
)

// IncEventCheck counts a scheduler check.
func IncEventCheck() { eventChecks.Inc() }

// IncEventFired counts a boundary event firing.
func IncEventFired(event string) { eventsFired.WithLabelValues(event).Inc() }

// IncSubscriberFailure counts a failed subscriber invocation.
func IncSubscriberFailure(event string) { subscriberFailures.WithLabelValues(event).Inc() }
