// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package vtimer

import "sync"

// Pending is the future returned by WaitAsync. It resolves exactly once:
// with a nil error when the virtual duration has elapsed, or with
// ErrCancelled when the wait is cancelled first.
type Pending struct {
	timer *Timer

	once sync.Once
	done chan struct{}
	err  error
}

// Done is closed when the wait resolves.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns the resolution error. It is nil until Done is closed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Cancel releases the wait without resolving it as elapsed. It reports
// whether this call cancelled the wait.
func (p *Pending) Cancel() bool { return p.timer.Cancel() }

// Timer returns the underlying timer.
func (p *Pending) Timer() *Timer { return p.timer }

func (p *Pending) resolve(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}
