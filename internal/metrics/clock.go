// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clockRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timewarp_clock_rate",
		Help: "Configured virtual clock rate (virtual seconds per real second)",
	})

	clockPaused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timewarp_clock_paused",
		Help: "Whether the virtual clock is paused (1) or running (0)",
	})

	clockOffsetSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timewarp_clock_offset_seconds",
		Help: "Virtual time minus real time at the last mutation",
	})

	clockMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timewarp_clock_mutations_total",
		Help: "Clock mutations by operation",
	}, []string{"op"}) // op=set_rate|time_travel|fast_forward|pause|resume|reset

	rateClamps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timewarp_clock_rate_clamped_total",
		Help: "Out-of-range rate requests clamped into [0, 100000]",
	}, []string{"bound"}) // bound=lower|upper

	persistenceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timewarp_persistence_errors_total",
		Help: "Clock state persistence failures by operation",
	}, []string{"op"}) // op=load|save|decode

	snapshotDiscards = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timewarp_persistence_snapshot_discarded_total",
		Help: "Restored clock snapshots discarded because of an application version mismatch",
	})
)

// RecordClockState publishes the clock's rate, pause state and virtual offset.
func RecordClockState(rate float64, paused bool, offsetSeconds float64) {
	clockRate.Set(rate)
	if paused {
		clockPaused.Set(1)
	} else {
		clockPaused.Set(0)
	}
	clockOffsetSeconds.Set(offsetSeconds)
}

// IncClockMutation counts a clock mutation.
func IncClockMutation(op string) { clockMutations.WithLabelValues(op).Inc() }

// IncRateClamp counts a clamped rate request.
func IncRateClamp(bound string) { rateClamps.WithLabelValues(bound).Inc() }

// IncPersistenceError counts a failed persistence operation.
func IncPersistenceError(op string) { persistenceErrors.WithLabelValues(op).Inc() }

// IncSnapshotDiscarded counts a restored snapshot dropped on version mismatch.
func IncSnapshotDiscarded() { snapshotDiscards.Inc() }
