// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package events detects virtual-time boundary crossings (hour, noon, day,
// week, month, year) and fires the subscribers of the matching ClockEvent.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/timewarp/internal/log"
	"github.com/ManuGH/timewarp/internal/metrics"
)

// Event names.
const (
	NameNewHour   = "on_new_hour"
	NameNoon      = "at_noon"
	NameNewDay    = "on_new_day"
	NameWeekEnd   = "on_week_end"
	NameWeekStart = "on_week_start"
	NameNewMonth  = "on_new_month"
	NameNewYear   = "on_new_year"
)

// DefaultInterval is the real-time cadence of Run.
const DefaultInterval = time.Second

// VirtualClock is the read side of the virtual clock the scheduler observes.
type VirtualClock interface {
	Now() time.Time
}

// Scheduler checks for boundary crossings between consecutive observations
// of the virtual clock.
type Scheduler struct {
	OnNewHour   *ClockEvent
	AtNoon      *ClockEvent
	OnNewDay    *ClockEvent
	OnWeekEnd   *ClockEvent
	OnWeekStart *ClockEvent
	OnNewMonth  *ClockEvent
	OnNewYear   *ClockEvent

	clock    VirtualClock
	real     clockwork.Clock
	loc      *time.Location
	interval time.Duration
	logger   zerolog.Logger

	checks      []check
	mu          sync.Mutex
	lastChecked time.Time
}

type check struct {
	event   *ClockEvent
	crossed func(from, to time.Time, loc *time.Location) bool
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the time zone boundaries are computed in (default time.Local).
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithInterval sets the real-time cadence of Run.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRealClock sets the host clock driving Run's ticker.
func WithRealClock(rc clockwork.Clock) Option {
	return func(s *Scheduler) {
		if rc != nil {
			s.real = rc
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a scheduler whose first check interval starts at clock.Now().
func NewScheduler(clock VirtualClock, opts ...Option) *Scheduler {
	s := &Scheduler{
		OnNewHour:   newClockEvent(NameNewHour),
		AtNoon:      newClockEvent(NameNoon),
		OnNewDay:    newClockEvent(NameNewDay),
		OnWeekEnd:   newClockEvent(NameWeekEnd),
		OnWeekStart: newClockEvent(NameWeekStart),
		OnNewMonth:  newClockEvent(NameNewMonth),
		OnNewYear:   newClockEvent(NameNewYear),

		clock:    clock,
		real:     clockwork.NewRealClock(),
		loc:      time.Local,
		interval: DefaultInterval,
		logger:   xglog.WithComponent("events"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.checks = []check{
		{s.OnNewHour, newHour},
		{s.AtNoon, noonCrossed},
		{s.OnNewDay, newDay},
		{s.OnWeekEnd, mondayMidnightCrossed},
		{s.OnWeekStart, mondayMidnightCrossed},
		{s.OnNewMonth, newMonth},
		{s.OnNewYear, newYear},
	}
	s.lastChecked = clock.Now()
	return s
}

// Events returns all events in firing order.
func (s *Scheduler) Events() []*ClockEvent {
	out := make([]*ClockEvent, len(s.checks))
	for i, c := range s.checks {
		out[i] = c.event
	}
	return out
}

// Event looks up an event by name.
func (s *Scheduler) Event(name string) (*ClockEvent, bool) {
	for _, c := range s.checks {
		if c.event.name == name {
			return c.event, true
		}
	}
	return nil, false
}

// Location returns the time zone boundaries are computed in.
func (s *Scheduler) Location() *time.Location { return s.loc }

// LastChecked returns the virtual instant of the most recent check.
func (s *Scheduler) LastChecked() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastChecked
}

// Check evaluates every boundary over (lastChecked, now] and fires the
// subscribers of each crossed boundary once, however many boundaries of that
// kind were skipped. It returns the names of the events that fired.
// If virtual time did not move forward the interval is empty and nothing fires.
//
// The interval is claimed under the lock and handlers run after it is
// released, so a handler may call LastChecked or Check. Concurrent calls
// claim disjoint intervals and never fire the same crossing twice.
func (s *Scheduler) Check() []string {
	current, due := s.claim()

	fired := make([]string, 0, len(due))
	for _, d := range due {
		fired = append(fired, d.event.name)
		metrics.IncEventFired(d.event.name)
		s.fire(d.event, d.subs, current)
	}

	if len(fired) > 0 {
		s.logger.Debug().
			Str(xglog.FieldEvent, "events.fired").
			Strs("events", fired).
			Time(xglog.FieldVirtualTime, current).
			Msg("boundary events fired")
		return fired
	}
	return nil
}

type dueEvent struct {
	event *ClockEvent
	subs  []subscription
}

// claim advances lastChecked to the current virtual instant and returns the
// events crossed in between together with their subscribers at that moment.
func (s *Scheduler) claim() (time.Time, []dueEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics.IncEventCheck()
	from := s.lastChecked
	current := s.clock.Now()
	s.lastChecked = current
	if !current.After(from) {
		return current, nil
	}

	var due []dueEvent
	for _, c := range s.checks {
		if c.crossed(from, current, s.loc) {
			due = append(due, dueEvent{event: c.event, subs: c.event.snapshot()})
		}
	}
	return current, due
}

func (s *Scheduler) fire(e *ClockEvent, subs []subscription, at time.Time) {
	for _, sub := range subs {
		if err := invoke(sub.handler, at); err != nil {
			metrics.IncSubscriberFailure(e.name)
			s.logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "events.subscriber_failed").
				Str(xglog.FieldClockEvent, e.name).
				Str(xglog.FieldSubscriptionID, string(sub.id)).
				Msg("event subscriber failed")
		}
	}
}

func invoke(h Handler, at time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return h(at)
}

// Run calls Check on the configured real-time cadence until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.real.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().
		Str(xglog.FieldEvent, "events.started").
		Dur("interval", s.interval).
		Str("location", s.loc.String()).
		Msg("event scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Str(xglog.FieldEvent, "events.stopped").Msg("event scheduler stopped")
			return nil
		case <-ticker.Chan():
			s.Check()
		}
	}
}
