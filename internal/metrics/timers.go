// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	timersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "timewarp_timers_active",
		Help: "Live virtual timers by kind",
	}, []string{"kind"}) // kind=one_shot|periodic|wait

	timerFires = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timewarp_timer_fires_total",
		Help: "Virtual timer firings by kind",
	}, []string{"kind"})

	timerRescales = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timewarp_timer_rescales_total",
		Help: "Rescale notifications applied to live timers",
	})
)

// AddActiveTimers adjusts the live timer gauge for kind by delta.
func AddActiveTimers(kind string, delta float64) { timersActive.WithLabelValues(kind).Add(delta) }

// IncTimerFire counts a timer firing.
func IncTimerFire(kind string) { timerFires.WithLabelValues(kind).Inc() }

// IncTimerRescale counts a timer rescale.
func IncTimerRescale() { timerRescales.Inc() }
