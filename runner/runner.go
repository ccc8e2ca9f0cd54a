// Package runner drains a slice of work items with a fixed budget of
// concurrent workers. Each worker claims the next unprocessed index until
// the slice is exhausted; item failures are isolated, logged, and never stop
// the remaining items.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultConcurrency bounds in-flight work. Matched to the translation
	// capability's tolerance for parallel requests.
	DefaultConcurrency = 3
	// DefaultPace is the delay after each item, smoothing request bursts
	// against the capability's own rate limiting.
	DefaultPace = 10 * time.Millisecond
)

// Options tunes a run.
type Options struct {
	// Concurrency is the worker budget. Default: 3.
	Concurrency int
	// Pace is the fixed delay after each completed item. Default: 10ms.
	Pace time.Duration
	// Suppress reports errors that are expected (session teardown during a
	// language switch) and should not be logged.
	Suppress func(error) bool
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Pace <= 0 {
		o.Pace = DefaultPace
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Run processes items with opts.Concurrency workers and blocks until every
// item has been attempted or ctx is cancelled. No ordering is guaranteed
// beyond index assignment order.
func Run[T any](ctx context.Context, items []T, opts Options, worker func(context.Context, T) error) {
	if len(items) == 0 {
		return
	}
	opts.defaults()

	workers := opts.Concurrency
	if workers > len(items) {
		workers = len(items)
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				i := int(next.Add(1)) - 1
				if i >= len(items) {
					return
				}

				if err := worker(ctx, items[i]); err != nil {
					if opts.Suppress == nil || !opts.Suppress(err) {
						opts.Logger.Warn("runner: item failed", "index", i, "error", err)
					}
				}

				select {
				case <-ctx.Done():
					return
				case <-time.After(opts.Pace):
				}
			}
		}()
	}

	wg.Wait()
}
