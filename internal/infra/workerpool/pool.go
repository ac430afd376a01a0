// Package workerpool runs blocking I/O on a fixed set of goroutines and hands
// results back to the event loop.
package workerpool

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/streamly-backend/internal/loop"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// Pool is a fixed-size worker pool.
type Pool struct {
	jobs    chan func()
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	workers int
}

// Option configures a Pool.
type Option func(*Pool)

// WithQueueSize sets the job buffer depth.
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.jobs = make(chan func(), n)
		}
	}
}

// New starts a pool with the given number of workers.
func New(workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 4
	}
	p := &Pool{
		jobs:    make(chan func(), 64),
		workers: workers,
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work(i)
	}

	log.Debug().Int("workers", workers).Msg("Worker pool started")
	return p
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Int("worker", id).Interface("panic", r).Msg("Recovered panic in worker")
				}
			}()
			job()
		}()
	}
}

// Submit queues job. It blocks while the queue is full.
func (p *Pool) Submit(job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.jobs <- job
	return nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.workers
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	log.Debug().Msg("Worker pool stopped")
}

// Run executes work on the pool and posts done(result, err) onto runner.
// The result never touches loop-owned state from the worker goroutine.
func Run[T any](p *Pool, runner loop.Runner, work func() (T, error), done func(T, error)) error {
	return p.Submit(func() {
		result, err := work()
		if done != nil {
			runner.Post(func() { done(result, err) })
		}
	})
}
