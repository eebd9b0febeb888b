// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vtimer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ManuGH/timewarp/internal/clock"
	xglog "github.com/ManuGH/timewarp/internal/log"
	"github.com/ManuGH/timewarp/internal/metrics"
)

// ErrCancelled resolves a Pending whose wait was cancelled before it fired.
var ErrCancelled = errors.New("vtimer: wait cancelled")

// Kind distinguishes timer flavours in logs and metrics.
type Kind string

const (
	KindOneShot  Kind = "one_shot"
	KindPeriodic Kind = "periodic"
	KindWait     Kind = "wait"
)

// Timer measures a virtual duration against a clock whose rate may change
// while the timer is live. It registers itself as a clock listener and
// recomputes its real-time deadline on every clock mutation.
//
// Lock order is clock, then Timer.mu. The callback never runs under either.
type Timer struct {
	id     string
	kind   Kind
	period time.Duration
	fn     func()
	f      *Factory

	// onCancel runs once when Cancel stops the timer.
	onCancel func()

	// stopped is set once by Cancel or by the final firing of a one-shot/wait timer.
	stopped  atomic.Bool
	ready    chan struct{}
	listener clock.ListenerID

	mu            sync.Mutex
	started       bool
	done          bool
	remaining     time.Duration
	rate          float64
	lastRecompute time.Time
	gen           uint64
	armed         clockwork.Timer
}

// ID returns the timer's unique identifier.
func (t *Timer) ID() string { return t.id }

// Kind returns the timer kind.
func (t *Timer) Kind() Kind { return t.kind }

// Remaining returns the virtual duration left as of the last recompute.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Cancel stops the timer. The callback of a one-shot or wait timer never runs
// after Cancel returns true; a periodic tick already in flight may complete.
// Cancel is idempotent and reports whether this call stopped the timer.
func (t *Timer) Cancel() bool {
	if !t.stopped.CompareAndSwap(false, true) {
		return false
	}
	t.release()
	if t.onCancel != nil {
		t.onCancel()
	}
	t.f.logger.Debug().
		Str(xglog.FieldEvent, "vtimer.cancelled").
		Str(xglog.FieldTimerID, t.id).
		Str(xglog.FieldTimerKind, string(t.kind)).
		Msg("virtual timer cancelled")
	return true
}

// Rescale implements clock.Listener. It runs inside the clock's critical section.
func (t *Timer) Rescale(realNow time.Time, effectiveRate float64) {
	if t.stopped.Load() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}

	if t.started {
		consumed := clock.Scale(realNow.Sub(t.lastRecompute), t.rate)
		if consumed < 0 {
			consumed = 0
		}
		if consumed > t.remaining {
			consumed = t.remaining
		}
		t.remaining -= consumed
		metrics.IncTimerRescale()
	}
	t.started = true
	t.lastRecompute = realNow
	t.rate = effectiveRate

	if t.remaining <= 0 {
		t.arm(0)
		return
	}
	delay, ok := clock.RealDelay(t.remaining, effectiveRate)
	if !ok {
		t.suspend()
		return
	}
	t.arm(delay)
}

// arm replaces any armed deadline. A zero delay fires on a fresh goroutine.
// Caller holds t.mu.
func (t *Timer) arm(delay time.Duration) {
	t.suspend()
	gen := t.gen
	if delay <= 0 {
		go t.onDeadline(gen)
		return
	}
	t.armed = t.f.real.AfterFunc(delay, func() { t.onDeadline(gen) })
}

// suspend invalidates any armed deadline. Caller holds t.mu.
func (t *Timer) suspend() {
	t.gen++
	if t.armed != nil {
		t.armed.Stop()
		t.armed = nil
	}
}

// onDeadline runs when an armed deadline elapses. The clock view is pinned
// while the timer decides whether it is due, so no mutation can interleave.
func (t *Timer) onDeadline(gen uint64) {
	due := false
	t.f.clock.Observe(func(realNow time.Time, effectiveRate float64) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.stopped.Load() || t.done || gen != t.gen {
			return
		}
		due = true
		t.armed = nil

		if t.kind != KindPeriodic {
			t.done = true
			t.remaining = 0
			t.gen++
			return
		}
		t.remaining = t.period
		t.lastRecompute = realNow
		t.rate = effectiveRate
		if delay, ok := clock.RealDelay(t.remaining, effectiveRate); ok {
			t.arm(delay)
		} else {
			t.suspend()
		}
	})
	if !due {
		return
	}

	if t.kind != KindPeriodic {
		if !t.stopped.CompareAndSwap(false, true) {
			return
		}
		t.release()
	} else if t.stopped.Load() {
		return
	}

	metrics.IncTimerFire(string(t.kind))
	t.run()
}

func (t *Timer) run() {
	defer func() {
		if r := recover(); r != nil {
			t.f.logger.Error().
				Err(fmt.Errorf("panic: %v", r)).
				Str(xglog.FieldEvent, "vtimer.callback_panic").
				Str(xglog.FieldTimerID, t.id).
				Str(xglog.FieldTimerKind, string(t.kind)).
				Msg("virtual timer callback panicked")
		}
	}()
	t.fn()
}

// release detaches the timer from the clock and the factory.
func (t *Timer) release() {
	<-t.ready
	t.f.clock.RemoveListener(t.listener)

	t.mu.Lock()
	t.done = true
	t.suspend()
	t.mu.Unlock()

	t.f.forget(t)
}
