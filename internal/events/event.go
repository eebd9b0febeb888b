// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handler is invoked with the virtual instant of the check that detected the boundary.
type Handler func(at time.Time) error

// SubscriptionID identifies a subscription on a ClockEvent.
type SubscriptionID string

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// ClockEvent is a named boundary event with an ordered list of subscribers.
// Subscribers fire in subscription order.
type ClockEvent struct {
	name string

	mu   sync.Mutex
	subs []subscription
}

func newClockEvent(name string) *ClockEvent {
	return &ClockEvent{name: name}
}

// Name returns the event name, e.g. "on_new_day".
func (e *ClockEvent) Name() string { return e.name }

// Subscribe appends h to the subscriber list and returns its ID.
// A nil handler is ignored and yields an empty ID.
func (e *ClockEvent) Subscribe(h Handler) SubscriptionID {
	if h == nil {
		return ""
	}
	id := SubscriptionID(uuid.NewString())

	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, subscription{id: id, handler: h})
	return id
}

// Unsubscribe removes the subscription with id. It reports whether it existed.
// It is safe to call from within a handler of the same event.
func (e *ClockEvent) Unsubscribe(id SubscriptionID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.subs {
		if s.id == id {
			// Copy so snapshots handed out earlier stay intact.
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all subscribers.
func (e *ClockEvent) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = nil
}

// HasSubscribers reports whether at least one subscriber is registered.
func (e *ClockEvent) HasSubscribers() bool {
	return e.SubscriberCount() > 0
}

// SubscriberCount returns the number of registered subscribers.
func (e *ClockEvent) SubscriberCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

func (e *ClockEvent) snapshot() []subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]subscription, len(e.subs))
	copy(out, e.subs)
	return out
}
