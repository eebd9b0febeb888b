// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package clock implements the virtual clock: an anchor-based time source that
// can run faster, slower, paused or shifted relative to the host clock.
//
// All reads and mutations go through a single lock, so no reader ever observes
// a half-updated anchor. Mutations notify registered listeners (live virtual
// timers) synchronously, inside the same critical section, before returning.
//
// Example:
//
//	c, err := clock.New(clock.Config{Rate: 60, AppVersion: version.Version, DebugBuild: true})
//	if err != nil {
//	    return err
//	}
//	c.FastForward(24 * time.Hour)
//	now := c.Now()
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/timewarp/internal/log"
	"github.com/ManuGH/timewarp/internal/metrics"
	"github.com/ManuGH/timewarp/internal/persistence"
	"github.com/ManuGH/timewarp/internal/resilience"
)

// State is the clock's state machine position.
type State string

const (
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// Mutation operation names, used for logs and metrics.
const (
	OpSetRate     = "set_rate"
	OpTimeTravel  = "time_travel"
	OpFastForward = "fast_forward"
	OpPause       = "pause"
	OpResume      = "resume"
	OpReset       = "reset"
)

const saveTimeout = 2 * time.Second

// Listener is notified of every clock mutation with the real instant of the
// mutation and the effective rate from then on (0 while paused).
// Rescale runs while the clock lock is held: it must not call back into the Clock.
type Listener interface {
	Rescale(realNow time.Time, effectiveRate float64)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(realNow time.Time, effectiveRate float64)

func (f ListenerFunc) Rescale(realNow time.Time, effectiveRate float64) { f(realNow, effectiveRate) }

// ListenerID identifies a registered listener.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	l  Listener
}

// Clock is the single source of truth for virtual time.
type Clock struct {
	mu        sync.RWMutex
	snap      Snapshot
	listeners []listenerEntry
	nextID    ListenerID
	seq       uint64

	real       clockwork.Clock
	logger     zerolog.Logger
	store      persistence.Store
	breaker    *resilience.CircuitBreaker
	key        string
	appVersion string

	saveMu   sync.Mutex
	savedSeq uint64
}

// New initializes a clock from cfg, restoring persisted state when a store is
// configured. It fails with *ConfigurationError when acceleration is requested
// in production without ForceEnable.
func New(cfg Config, opts ...Option) (*Clock, error) {
	c := &Clock{
		real:       clockwork.NewRealClock(),
		logger:     xglog.WithComponent("clock"),
		key:        cfg.PersistKey,
		appVersion: cfg.AppVersion,
	}
	if c.key == "" {
		c.key = DefaultPersistKey
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker("clock_store", 3, 30*time.Second, resilience.WithClock(c.real))
	}

	rate := c.clamp(cfg.Rate)

	restored := c.restore()
	if restored != nil {
		rate = c.clamp(restored.Rate)
	}

	if !cfg.DebugBuild && !cfg.ForceEnable && rate != 1 {
		c.logger.Info().
			Str(xglog.FieldEvent, "clock.rate_pinned").
			Float64("requested_rate", rate).
			Msg("release build: clock rate pinned to 1 (set force_enable to override)")
		rate = 1
	}

	if cfg.Production && rate != 1 && !cfg.ForceEnable {
		return nil, &ConfigurationError{
			Rate:   rate,
			Reason: "time acceleration requested in production without force_enable",
		}
	}

	now := c.real.Now()
	c.snap = Snapshot{Anchor: Anchor{RealInstant: now, VirtualInstant: now, Rate: rate}}
	if restored != nil {
		c.snap.Anchor.VirtualInstant = restored.VirtualInstant
		if restored.IsPaused {
			c.snap.Paused = true
			c.snap.PausedVirtualInstant = restored.VirtualInstant
			if restored.PausedVirtualInstant != nil {
				c.snap.PausedVirtualInstant = *restored.PausedVirtualInstant
				c.snap.Anchor.VirtualInstant = *restored.PausedVirtualInstant
			}
		}
	}

	c.seq = 1
	snap := c.snap
	c.publish(snap, now)
	c.persist(snap, 1)

	c.logger.Info().
		Str(xglog.FieldEvent, "clock.initialized").
		Float64(xglog.FieldRate, rate).
		Str(xglog.FieldNewState, string(stateOf(snap))).
		Bool("restored", restored != nil).
		Time(xglog.FieldVirtualTime, snap.At(now)).
		Msg("virtual clock initialized")

	return c, nil
}

// Now returns the current virtual time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.At(c.real.Now())
}

// Rate returns the configured rate. It is retained while paused.
func (c *Clock) Rate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Anchor.Rate
}

// EffectiveRate returns the rate at which virtual time currently advances.
func (c *Clock) EffectiveRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.EffectiveRate()
}

// IsPaused reports whether the clock is paused.
func (c *Clock) IsPaused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Paused
}

// IsAccelerated reports whether the configured rate differs from real speed.
func (c *Clock) IsAccelerated() bool {
	return c.Rate() != 1
}

// State returns the state machine position.
func (c *Clock) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return stateOf(c.snap)
}

// Snapshot returns a copy of the complete clock state.
func (c *Clock) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Real returns the host clock the virtual clock is derived from.
func (c *Clock) Real() clockwork.Clock {
	return c.real
}

// Observe runs fn with a consistent (realNow, effectiveRate) view while
// mutations are excluded. fn must not call back into the Clock.
func (c *Clock) Observe(fn func(realNow time.Time, effectiveRate float64)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.real.Now(), c.snap.EffectiveRate())
}

// AddListener registers l for rescale notifications. Within the same critical
// section l.Rescale is called once with the current view so it can arm itself.
func (c *Clock) AddListener(l Listener) ListenerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, l: l})
	l.Rescale(c.real.Now(), c.snap.EffectiveRate())
	return id
}

// RemoveListener unregisters a listener. It reports whether id was registered.
func (c *Clock) RemoveListener(id ListenerID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.listeners {
		if e.id == id {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// ListenerCount returns the number of registered listeners.
func (c *Clock) ListenerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listeners)
}

// SetRate changes the rate while preserving the current virtual time.
// Out-of-range values are clamped to [MinRate, MaxRate] with a warning.
// It returns the applied rate.
func (c *Clock) SetRate(r float64) float64 {
	rate := c.clamp(r)
	c.mutate(OpSetRate, func(s *Snapshot, now time.Time) {
		current := s.At(now)
		s.Anchor = Anchor{RealInstant: now, VirtualInstant: current, Rate: rate}
	})
	return rate
}

// TimeTravelTo jumps virtual time to target, keeping the rate.
func (c *Clock) TimeTravelTo(target time.Time) {
	c.mutate(OpTimeTravel, func(s *Snapshot, now time.Time) {
		travel(s, now, target)
	})
}

// FastForward moves virtual time forward by d (backwards for negative d).
func (c *Clock) FastForward(d time.Duration) {
	c.mutate(OpFastForward, func(s *Snapshot, now time.Time) {
		travel(s, now, s.At(now).Add(d))
	})
}

// Pause freezes virtual time. It is a no-op when already paused.
func (c *Clock) Pause() {
	c.mutateIf(OpPause, func(s *Snapshot, now time.Time) bool {
		if s.Paused {
			return false
		}
		current := s.Anchor.At(now)
		s.Paused = true
		s.PausedVirtualInstant = current
		s.Anchor.RealInstant = now
		s.Anchor.VirtualInstant = current
		return true
	})
}

// Resume continues from the paused instant at the rate held before the pause.
// It is a no-op when running.
func (c *Clock) Resume() {
	c.mutateIf(OpResume, func(s *Snapshot, now time.Time) bool {
		if !s.Paused {
			return false
		}
		s.Anchor = Anchor{RealInstant: now, VirtualInstant: s.PausedVirtualInstant, Rate: s.Anchor.Rate}
		s.Paused = false
		s.PausedVirtualInstant = time.Time{}
		return true
	})
}

// Reset realigns virtual time with real time, keeps the rate and unpauses.
func (c *Clock) Reset() {
	c.mutate(OpReset, func(s *Snapshot, now time.Time) {
		s.Anchor = Anchor{RealInstant: now, VirtualInstant: now, Rate: s.Anchor.Rate}
		s.Paused = false
		s.PausedVirtualInstant = time.Time{}
	})
}

// Checkpoint moves the anchor of a running clock to the current instant and
// saves the state. The virtual timeline is unchanged, so listeners are not
// notified. A restart restores from the checkpoint instead of from the last
// mutation.
func (c *Clock) Checkpoint() {
	c.mu.Lock()
	now := c.real.Now()
	if !c.snap.Paused {
		c.snap.Anchor.VirtualInstant = c.snap.Anchor.At(now)
		c.snap.Anchor.RealInstant = now
	}
	c.seq++
	s, seq := c.snap, c.seq
	c.mu.Unlock()

	c.persist(s, seq)
}

func travel(s *Snapshot, now, target time.Time) {
	s.Anchor.RealInstant = now
	s.Anchor.VirtualInstant = target
	if s.Paused {
		s.PausedVirtualInstant = target
	}
}

func (c *Clock) mutate(op string, fn func(s *Snapshot, now time.Time)) {
	c.mutateIf(op, func(s *Snapshot, now time.Time) bool {
		fn(s, now)
		return true
	})
}

// mutateIf applies fn under the lock and, if it changed the state, notifies
// listeners before releasing the lock. Logging and persistence happen after
// the lock is released so log callbacks may safely read the clock.
func (c *Clock) mutateIf(op string, fn func(s *Snapshot, now time.Time) bool) {
	before, after, now, seq, changed := c.apply(fn)
	if !changed {
		return
	}

	metrics.IncClockMutation(op)
	c.publish(after, now)

	c.logger.Info().
		Str(xglog.FieldEvent, "clock."+op).
		Str(xglog.FieldOldState, string(stateOf(before))).
		Str(xglog.FieldNewState, string(stateOf(after))).
		Float64(xglog.FieldRate, after.Anchor.Rate).
		Time("virtual_before", before.At(now)).
		Time(xglog.FieldVirtualTime, after.At(now)).
		Msg("clock mutated")

	c.persist(after, seq)
}

func (c *Clock) apply(fn func(s *Snapshot, now time.Time) bool) (before, after Snapshot, now time.Time, seq uint64, changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now = c.real.Now()
	before = c.snap
	next := c.snap
	if !fn(&next, now) {
		return before, before, now, 0, false
	}
	c.snap = next
	c.seq++

	rate := next.EffectiveRate()
	for _, e := range c.listeners {
		e.l.Rescale(now, rate)
	}
	return before, next, now, c.seq, true
}

func (c *Clock) clamp(r float64) float64 {
	rate, bound := clampRate(r)
	if bound != "" {
		metrics.IncRateClamp(bound)
		c.logger.Warn().
			Str(xglog.FieldEvent, "clock.rate_clamped").
			Float64("requested_rate", r).
			Float64(xglog.FieldRate, rate).
			Msgf("rate out of range, clamped to [%g, %g]", MinRate, MaxRate)
	}
	return rate
}

func (c *Clock) publish(s Snapshot, now time.Time) {
	v := s.At(now)
	// Sub saturates past ~292 years; compute from Unix seconds instead.
	offset := float64(v.Unix()-now.Unix()) + float64(v.Nanosecond()-now.Nanosecond())/1e9
	metrics.RecordClockState(s.Anchor.Rate, s.Paused, offset)
}

// persist saves s best-effort. seq orders concurrent saves so an older
// snapshot never overwrites a newer one.
func (c *Clock) persist(s Snapshot, seq uint64) {
	if c.store == nil {
		return
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if seq <= c.savedSeq {
		return
	}
	c.savedSeq = seq

	data, err := encodeRecord(s, c.appVersion)
	if err != nil {
		metrics.IncPersistenceError("encode")
		c.logger.Error().Err(err).Str(xglog.FieldEvent, "clock.persist_encode_failed").Msg("failed to encode clock state")
		return
	}

	err = c.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		return c.store.Save(ctx, c.key, data)
	})
	if err != nil {
		metrics.IncPersistenceError("save")
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "clock.persist_failed").Msg("failed to save clock state (continuing)")
	}
}

// restore loads the persisted record. Any failure is treated as absent.
func (c *Clock) restore() *record {
	if c.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	data, ok, err := c.store.Load(ctx, c.key)
	if err != nil {
		metrics.IncPersistenceError("load")
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "clock.restore_failed").Msg("failed to load clock state, starting fresh")
		return nil
	}
	if !ok {
		return nil
	}
	rec, err := decodeRecord(data)
	if err != nil {
		metrics.IncPersistenceError("decode")
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "clock.restore_failed").Msg("stored clock state is unreadable, starting fresh")
		return nil
	}
	if rec.AppVersion != c.appVersion {
		metrics.IncSnapshotDiscarded()
		c.logger.Info().
			Str(xglog.FieldEvent, "clock.restore_discarded").
			Str("stored_version", rec.AppVersion).
			Str(xglog.FieldVersion, c.appVersion).
			Msg("stored clock state belongs to another version, auto-reset")
		return nil
	}
	return rec
}

func stateOf(s Snapshot) State {
	if s.Paused {
		return StatePaused
	}
	return StateRunning
}
