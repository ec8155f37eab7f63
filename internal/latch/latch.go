// Package latch provides a one-shot guard for startup effects such as loading
// reference data or bootstrapping credentials.
package latch

import (
	"context"
	"sync"
)

// State is the lifecycle state of a Latch.
type State int

const (
	NotStarted State = iota
	InFlight
	Done
)

func (s State) String() string {
	switch s {
	case InFlight:
		return "in_flight"
	case Done:
		return "done"
	default:
		return "not_started"
	}
}

// Latch runs a function at most once successfully. Callers arriving while the
// function runs wait for its result. A failed run returns the latch to
// NotStarted so a later call retries.
type Latch struct {
	mu    sync.Mutex
	state State
	call  *call
}

// call is one execution of the latched function.
type call struct {
	done chan struct{}
	err  error
}

// State returns the current state.
func (l *Latch) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Do runs fn unless it has already succeeded. Concurrent callers share one
// execution and its error. fn runs detached from the caller's cancellation,
// so a caller whose ctx ends returns ctx.Err() while the execution carries on
// for everyone else.
func (l *Latch) Do(ctx context.Context, fn func(context.Context) error) error {
	l.mu.Lock()
	switch l.state {
	case Done:
		l.mu.Unlock()
		return nil
	case NotStarted:
		l.state = InFlight
		l.call = &call{done: make(chan struct{})}
		go l.run(context.WithoutCancel(ctx), fn, l.call)
	}
	c := l.call
	l.mu.Unlock()

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Latch) run(ctx context.Context, fn func(context.Context) error, c *call) {
	c.err = fn(ctx)

	l.mu.Lock()
	if c.err != nil {
		l.state = NotStarted
	} else {
		l.state = Done
	}
	l.mu.Unlock()
	close(c.done)
}
