// Package loop provides the single-writer event loop that owns all playback
// state, plus a manual runner for deterministic tests.
package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrStopped is returned by Call once the loop is no longer running.
var ErrStopped = errors.New("loop stopped")

// Timer is a cancellable delayed function scheduled on a Runner.
type Timer interface {
	// Stop prevents the function from running. It reports whether the
	// timer was still pending.
	Stop() bool
}

// Runner serializes functions onto one goroutine.
type Runner interface {
	Post(fn func())
	AfterFunc(d time.Duration, fn func()) Timer
}

// Loop drains posted functions in FIFO order on the goroutine calling Run.
// The queue is unbounded so Post never blocks, including from the loop itself.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// New creates a loop whose queue starts with room for capacity functions.
func New(capacity int) *Loop {
	if capacity <= 0 {
		capacity = 256
	}
	return &Loop{
		pending: make([]func(), 0, capacity),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Run processes posted functions until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	log.Debug().Msg("Event loop started")
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Event loop stopping")
			return
		case <-l.wake:
		}

		for _, fn := range l.take() {
			if ctx.Err() != nil {
				log.Debug().Msg("Event loop stopping")
				return
			}
			l.invoke(fn)
		}
	}
}

// take swaps out the pending batch. Functions posted while the batch runs
// land in the next one.
func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.pending
	l.pending = nil
	return batch
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.pending = nil
	l.mu.Unlock()
	l.once.Do(func() { close(l.done) })
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered panic on event loop")
		}
	}()
	fn()
}

// Post enqueues fn. Functions posted after the loop stopped are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc posts fn onto the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return t
}

type loopTimer struct {
	timer   *time.Timer
	stopped atomic.Bool
}

// Stop is safe to call after the underlying timer fired: the posted
// function re-checks the flag before running.
func (t *loopTimer) Stop() bool {
	t.timer.Stop()
	return t.stopped.CompareAndSwap(false, true)
}
