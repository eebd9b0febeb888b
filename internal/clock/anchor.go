// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clock

import (
	"math"
	"time"
)

// Rate bounds. Requests outside this range are clamped.
const (
	MinRate = 0.0
	MaxRate = 100000.0
)

// Anchor is the reference point of the current running segment:
// virtual = VirtualInstant + (real - RealInstant) * Rate.
type Anchor struct {
	RealInstant    time.Time
	VirtualInstant time.Time
	Rate           float64
}

// At returns the virtual instant corresponding to realNow.
func (a Anchor) At(realNow time.Time) time.Time {
	elapsed := realNow.Sub(a.RealInstant)
	if elapsed < 0 {
		elapsed = 0
	}
	return addScaled(a.VirtualInstant, elapsed, a.Rate)
}

// addScaled returns t + d*rate. Offsets beyond the range of time.Duration
// (about 292 years, reached after ~25.6 real hours at MaxRate) are applied as
// whole seconds plus a nanosecond remainder instead of saturating.
func addScaled(t time.Time, d time.Duration, rate float64) time.Time {
	v := float64(d) * rate
	if v > math.MinInt64 && v < math.MaxInt64 {
		return t.Add(time.Duration(v))
	}
	sec := math.Floor(v / float64(time.Second))
	nsec := v - sec*float64(time.Second)
	return time.Unix(t.Unix()+int64(sec), int64(t.Nanosecond())+int64(nsec)).In(t.Location())
}

// Snapshot is the complete clock state. While Paused, virtual time is
// PausedVirtualInstant regardless of real time.
type Snapshot struct {
	Anchor               Anchor
	Paused               bool
	PausedVirtualInstant time.Time
}

// At returns the virtual instant corresponding to realNow.
func (s Snapshot) At(realNow time.Time) time.Time {
	if s.Paused {
		return s.PausedVirtualInstant
	}
	return s.Anchor.At(realNow)
}

// State reports whether s is running or paused.
func (s Snapshot) State() State { return stateOf(s) }

// EffectiveRate is the rate at which virtual time currently advances (0 while paused).
func (s Snapshot) EffectiveRate() float64 {
	if s.Paused {
		return 0
	}
	return s.Anchor.Rate
}

// Scale multiplies d by rate, saturating at the limits of time.Duration.
func Scale(d time.Duration, rate float64) time.Duration {
	if d == 0 || rate == 0 {
		return 0
	}
	v := float64(d) * rate
	switch {
	case v >= math.MaxInt64:
		return time.Duration(math.MaxInt64)
	case v <= math.MinInt64:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(v)
}

// RealDelay returns the real duration needed for virtual duration d to elapse
// at rate, rounded up so a timer armed with it never fires early.
// ok is false when rate is 0 and virtual time does not advance.
func RealDelay(d time.Duration, rate float64) (delay time.Duration, ok bool) {
	if rate <= 0 {
		return 0, false
	}
	if d <= 0 {
		return 0, true
	}
	v := math.Ceil(float64(d) / rate)
	if v >= math.MaxInt64 {
		return time.Duration(math.MaxInt64), true
	}
	return time.Duration(v), true
}

// clampRate returns r limited to [MinRate, MaxRate]. bound names the violated
// limit ("lower"/"upper") or is empty if r was in range. NaN clamps to MinRate.
func clampRate(r float64) (rate float64, bound string) {
	switch {
	case math.IsNaN(r) || r < MinRate:
		return MinRate, "lower"
	case r > MaxRate:
		return MaxRate, "upper"
	}
	return r, ""
}
