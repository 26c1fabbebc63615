package web

// export_limiter.go bounds how many CSV exports stream at once.
//
// An export walks the whole collection and holds a store cursor for its
// duration, so a burst of them can starve page requests. Requests beyond
// the limit wait up to maxWait for a slot and are then turned away with
// ErrTooManyExports. Shutdown drains in-flight exports via WaitForDrain.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyExports is returned when no export slot frees up in time.
var ErrTooManyExports = errors.New("too many concurrent exports, please try again later")

const (
	defaultMaxConcurrentExports = 2
	defaultExportWait           = 10 * time.Second
)

// ExportLimiter is a weighted semaphore with a bounded wait.
type ExportLimiter struct {
	sem     *semaphore.Weighted
	max     int64
	maxWait time.Duration
	active  atomic.Int64
}

// NewExportLimiter allows maxConcurrent exports at once. Non-positive
// arguments fall back to the defaults.
func NewExportLimiter(maxConcurrent int, maxWait time.Duration) *ExportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentExports
	}
	if maxWait <= 0 {
		maxWait = defaultExportWait
	}
	return &ExportLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		max:     int64(maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. The caller must Release it.
func (l *ExportLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyExports
	}
	l.active.Add(1)
	return nil
}

// Release returns a slot taken by Acquire.
func (l *ExportLimiter) Release() {
	l.active.Add(-1)
	l.sem.Release(1)
}

// Active returns the number of exports holding a slot.
func (l *ExportLimiter) Active() int {
	return int(l.active.Load())
}

// WaitForDrain blocks until every slot is free or ctx ends. Taking the full
// weight also keeps new exports out while shutdown proceeds.
func (l *ExportLimiter) WaitForDrain(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, l.max); err != nil {
		return err
	}
	return nil
}
