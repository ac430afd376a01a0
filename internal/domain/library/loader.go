package library

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/infra/workerpool"
	"github.com/edumarques81/streamly-backend/internal/loop"
)

// Merger decorates scanned items with play history.
type Merger interface {
	MergeInto(items []media.Item) ([]media.Item, error)
}

// Loader runs scans on the worker pool and delivers results on the loop.
type Loader struct {
	ctx      context.Context
	scanner  *Scanner
	index    *Index
	pool     *workerpool.Pool
	runner   loop.Runner
	merger   Merger
	scanning atomic.Bool
	onLoaded func([]media.Item)
}

// LoaderConfig wires a Loader.
type LoaderConfig struct {
	Scanner *Scanner
	Index   *Index
	Pool    *workerpool.Pool
	Runner  loop.Runner
	Merger  Merger
	// OnLoaded runs on the loop after every successful scan.
	OnLoaded func([]media.Item)
}

// NewLoader creates a loader. Scans are cancelled when ctx is done.
func NewLoader(ctx context.Context, cfg LoaderConfig) *Loader {
	return &Loader{
		ctx:      ctx,
		scanner:  cfg.Scanner,
		index:    cfg.Index,
		pool:     cfg.Pool,
		runner:   cfg.Runner,
		merger:   cfg.Merger,
		onLoaded: cfg.OnLoaded,
	}
}

// Index returns the index the loader fills.
func (l *Loader) Index() *Index {
	return l.index
}

// Scanning reports whether a scan is in flight.
func (l *Loader) Scanning() bool {
	return l.scanning.Load()
}

// Refresh rescans the media roots. Overlapping calls are coalesced into the
// scan already running. done, if set, runs on the loop.
func (l *Loader) Refresh(done func([]media.Item, error)) {
	if !l.scanning.CompareAndSwap(false, true) {
		log.Debug().Msg("Scan already running")
		return
	}

	err := workerpool.Run(l.pool, l.runner, func() ([]media.Item, error) {
		defer l.scanning.Store(false)
		items, err := l.scanner.Scan(l.ctx)
		if err != nil {
			return nil, err
		}
		if l.merger != nil {
			if merged, err := l.merger.MergeInto(items); err == nil {
				items = merged
			} else {
				log.Warn().Err(err).Msg("Failed to merge play history")
			}
		}
		l.index.Replace(items)
		return l.index.All(), nil
	}, func(items []media.Item, err error) {
		if err != nil {
			log.Error().Err(err).Msg("Media scan failed")
		} else if l.onLoaded != nil {
			l.onLoaded(items)
		}
		if done != nil {
			done(items, err)
		}
	})
	if err != nil {
		l.scanning.Store(false)
		log.Warn().Err(err).Msg("Could not schedule media scan")
		if done != nil {
			done(nil, err)
		}
	}
}

// Query runs fn against the index on the pool and posts its result to the loop.
func (l *Loader) Query(fn func(*Index) []media.Item, done func([]media.Item)) error {
	return workerpool.Run(l.pool, l.runner, func() ([]media.Item, error) {
		return fn(l.index), nil
	}, func(items []media.Item, _ error) {
		done(items)
	})
}
