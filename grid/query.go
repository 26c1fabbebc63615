package grid

// query.go implements the fetch lifecycle shared by every grid view.
//
// Results are cached per CacheKey for the lifetime of the orchestrator.
// Concurrent requests for the same key share one network call. Failures
// are never cached, so a retry with the same key always goes back to the
// network. Deciding whether a failure is still worth telling the user
// about is left to the caller, which knows whether the key is still active.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// FetchFunc performs the network call for one cache key.
type FetchFunc func(ctx context.Context) (ResultPage, error)

type cacheEntry struct {
	page      ResultPage
	fetchedAt time.Time
}

// Orchestrator caches and de-duplicates page fetches.
type Orchestrator struct {
	mu     sync.Mutex
	cache  map[CacheKey]cacheEntry
	ttl    time.Duration // zero keeps entries for the whole session
	now    func() time.Time
	group  singleflight.Group
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator with an empty cache.
func NewOrchestrator(ttl time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cache:  make(map[CacheKey]cacheEntry),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Cached returns the stored page for key if it is still fresh.
func (o *Orchestrator) Cached(key CacheKey) (ResultPage, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cachedLocked(key)
}

func (o *Orchestrator) cachedLocked(key CacheKey) (ResultPage, bool) {
	entry, ok := o.cache[key]
	if !ok {
		return ResultPage{}, false
	}
	if o.ttl > 0 && o.now().Sub(entry.fetchedAt) > o.ttl {
		delete(o.cache, key)
		return ResultPage{}, false
	}
	return entry.page, true
}

// Fetch returns the page for key, from cache when fresh, otherwise by
// calling fetch. Callers asking for the same key while a call is in flight
// wait for and receive that call's result. Errors are returned as
// *APIError.
func (o *Orchestrator) Fetch(ctx context.Context, key CacheKey, fetch FetchFunc) (ResultPage, error) {
	if page, ok := o.Cached(key); ok {
		o.logger.Debug("grid cache hit", "key", key)
		return page, nil
	}

	ch := o.group.DoChan(string(key), func() (any, error) {
		return o.run(ctx, key, fetch)
	})

	select {
	case res := <-ch:
		if res.Shared {
			o.logger.Debug("grid fetch shared", "key", key)
		}
		if res.Err != nil {
			return ResultPage{}, res.Err
		}
		return res.Val.(ResultPage), nil
	case <-ctx.Done():
		return ResultPage{}, AsAPIError(ctx.Err())
	}
}

func (o *Orchestrator) run(ctx context.Context, key CacheKey, fetch FetchFunc) (ResultPage, error) {
	fetchID := uuid.NewString()
	logger := o.logger.With("fetch_id", fetchID, "key", key)
	start := o.now()
	logger.Debug("grid fetch started")

	page, err := fetch(ctx)
	if err != nil {
		apiErr := AsAPIError(err)
		logger.Warn("grid fetch failed",
			"status", apiErr.StatusCode,
			"error", apiErr.Message,
		)
		return ResultPage{}, apiErr
	}

	o.mu.Lock()
	o.cache[key] = cacheEntry{page: page, fetchedAt: o.now()}
	o.mu.Unlock()

	logger.Debug("grid fetch completed",
		"rows", len(page.Rows),
		"total_records", page.TotalRecords,
		"duration_ms", o.now().Sub(start).Milliseconds(),
	)
	return page, nil
}

// Clear evicts every cached page.
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cache = make(map[CacheKey]cacheEntry)
}
