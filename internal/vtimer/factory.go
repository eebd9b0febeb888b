// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package vtimer schedules callbacks after virtual durations. Timers follow
// live rate changes and pauses of the virtual clock: the virtual time a
// timer has already consumed is kept, and only the remainder is rescaled.
//
// Example:
//
//	f := vtimer.NewFactory(c)
//	t := f.Delayed(time.Hour, func() { log.Info().Msg("an hour of virtual time has passed") })
//	defer t.Cancel()
package vtimer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ManuGH/timewarp/internal/clock"
	xglog "github.com/ManuGH/timewarp/internal/log"
	"github.com/ManuGH/timewarp/internal/metrics"
)

// Clock is the part of the virtual clock timers depend on.
// *clock.Clock satisfies it.
type Clock interface {
	AddListener(l clock.Listener) clock.ListenerID
	RemoveListener(id clock.ListenerID) bool
	Observe(fn func(realNow time.Time, effectiveRate float64))
	Real() clockwork.Clock
}

// Factory creates timers bound to one virtual clock and tracks the live ones.
type Factory struct {
	clock  Clock
	real   clockwork.Clock
	logger zerolog.Logger

	mu   sync.Mutex
	live map[*Timer]struct{}
}

// Option customizes a Factory.
type Option func(*Factory)

// WithLogger sets the logger used for timer diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// NewFactory returns a Factory for c. Real deadlines are armed on c.Real().
func NewFactory(c Clock, opts ...Option) *Factory {
	f := &Factory{
		clock:  c,
		real:   c.Real(),
		logger: xglog.WithComponent("vtimer"),
		live:   make(map[*Timer]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Delayed calls fn once after virtual duration d. A non-positive d fires on
// the next scheduling turn.
func (f *Factory) Delayed(d time.Duration, fn func()) *Timer {
	return f.start(KindOneShot, d, fn, nil)
}

// Periodic calls fn every virtual duration d until cancelled.
// It panics if d is not positive.
func (f *Factory) Periodic(d time.Duration, fn func()) *Timer {
	if d <= 0 {
		panic("vtimer: non-positive interval for Periodic")
	}
	return f.start(KindPeriodic, d, fn, nil)
}

// WaitAsync returns a Pending that resolves once virtual duration d has elapsed.
func (f *Factory) WaitAsync(d time.Duration) *Pending {
	p := &Pending{done: make(chan struct{})}
	p.timer = f.start(KindWait, d, func() { p.resolve(nil) }, func() { p.resolve(ErrCancelled) })
	return p
}

// Wait blocks until virtual duration d has elapsed or ctx is done.
func (f *Factory) Wait(ctx context.Context, d time.Duration) error {
	p := f.WaitAsync(d)
	select {
	case <-p.Done():
		return p.Err()
	case <-ctx.Done():
		if p.Cancel() {
			return ctx.Err()
		}
		// Lost the race against the deadline; the wait completed.
		<-p.Done()
		return p.Err()
	}
}

// ActiveCount returns the number of live timers.
func (f *Factory) ActiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// CancelAll cancels every live timer and returns how many were cancelled.
func (f *Factory) CancelAll() int {
	f.mu.Lock()
	timers := make([]*Timer, 0, len(f.live))
	for t := range f.live {
		timers = append(timers, t)
	}
	f.mu.Unlock()

	n := 0
	for _, t := range timers {
		if t.Cancel() {
			n++
		}
	}
	return n
}

func (f *Factory) start(kind Kind, d time.Duration, fn, onCancel func()) *Timer {
	t := &Timer{
		id:        uuid.NewString(),
		kind:      kind,
		period:    d,
		fn:        fn,
		onCancel:  onCancel,
		f:         f,
		ready:     make(chan struct{}),
		remaining: d,
	}
	f.mu.Lock()
	f.live[t] = struct{}{}
	f.mu.Unlock()
	metrics.AddActiveTimers(string(kind), 1)

	t.listener = f.clock.AddListener(t)
	close(t.ready)

	f.logger.Debug().
		Str(xglog.FieldEvent, "vtimer.started").
		Str(xglog.FieldTimerID, t.id).
		Str(xglog.FieldTimerKind, string(kind)).
		Dur("virtual_duration", d).
		Msg("virtual timer started")
	return t
}

func (f *Factory) forget(t *Timer) {
	f.mu.Lock()
	_, ok := f.live[t]
	delete(f.live, t)
	f.mu.Unlock()
	if ok {
		metrics.AddActiveTimers(string(t.kind), -1)
	}
}
