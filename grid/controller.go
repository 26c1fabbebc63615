package grid

// controller.go is the state machine that owns a grid's view.
//
// Every user interaction changes one piece of ViewState and then either
// resolves the new page through the Orchestrator (server mode) or re-runs
// the Engine over the full collection (client mode).
//
// Lifecycle:
//
//	initial-loading --success--> loaded <--> refetching
//	initial-loading --failure--> load-error --Retry--> initial-loading
//	refetching      --failure--> loaded (view rolled back)
//
// Responses are committed only if they belong to the currently active key;
// anything else is a stale response and is dropped on arrival, failures
// included.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/text/language"
)

// ErrPageOutOfRange is returned by SetPage for pages outside 1..TotalPages.
var ErrPageOutOfRange = errors.New("page is out of range")

// DefaultPageSizes are used when Options.PageSizes is empty.
var DefaultPageSizes = []int{10, 20, 50, 100}

// DefaultFullFetchSize is the page size used to pull a whole collection
// when its size is not yet known.
const DefaultFullFetchSize = 10000

// Status is the load state of a grid.
type Status int

const (
	StatusInitialLoading Status = iota
	StatusLoaded
	StatusRefetching
	StatusLoadError
)

func (s Status) String() string {
	switch s {
	case StatusInitialLoading:
		return "initial-loading"
	case StatusLoaded:
		return "loaded"
	case StatusRefetching:
		return "refetching"
	case StatusLoadError:
		return "load-error"
	default:
		return "unknown"
	}
}

// Source fetches one page of a collection for a view. Filters, sort,
// search and pagination are expected to be applied by the source.
type Source interface {
	FetchPage(ctx context.Context, view ViewState) (ResultPage, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, view ViewState) (ResultPage, error)

// FetchPage calls f.
func (f SourceFunc) FetchPage(ctx context.Context, view ViewState) (ResultPage, error) {
	return f(ctx, view)
}

// Options configures a Controller. Only Columns is required.
type Options struct {
	Columns       []Column
	PageSizes     []int         // allowed page sizes; the first is the default
	Mode          Mode          // initial mode, server when empty
	Debounce      time.Duration // search quiet period
	Clock         Clock         // debounce scheduling
	CacheTTL      time.Duration // zero keeps pages for the controller's lifetime
	FullFetchSize int           // page size for a whole-collection fetch of unknown size
	Locale        language.Tag  // string collation for client-mode sorting
	Notifier      Notifier
	Logger        *slog.Logger
	OnChange      func(Snapshot) // called after every committed transition
}

// Snapshot is the displayed state of a grid at one point in time.
type Snapshot struct {
	View         ViewState
	Status       Status
	Rows         []Row
	TotalPages   int
	TotalRecords int
	Err          *APIError // set in StatusLoadError

	seq uint64
}

// Busy reports whether a fetch is in flight.
func (s Snapshot) Busy() bool {
	return s.Status == StatusInitialLoading || s.Status == StatusRefetching
}

// ControlsDisabled reports whether page and page-size controls are off.
func (s Snapshot) ControlsDisabled() bool {
	return s.Status == StatusLoadError
}

// Controller coordinates view state, fetching and client-side derivation
// for one grid instance. All methods are safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	opts     Options
	src      Source
	engine   *Engine
	orch     *Orchestrator
	search   *Debouncer
	filters  *FilterStore
	logger   *slog.Logger
	onChange func(Snapshot)

	view    ViewState
	good    ViewState // the view shown rows belong to; restored when a refetch fails
	status  Status
	shown   ResultPage
	hasData bool
	err     *APIError

	active      CacheKey  // only responses for this key may commit
	lastRequest ViewState // replayed by Retry
	lastSeed    bool

	dataset   []Row // full collection for client mode
	haveFull  bool
	fullTotal int // size of the unfiltered collection, once known

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool

	seq     uint64 // numbers published snapshots
	emitMu  sync.Mutex
	emitted uint64
}

// New creates a controller over src and starts the initial load.
func New(src Source, opts Options) *Controller {
	if len(opts.PageSizes) == 0 {
		opts.PageSizes = DefaultPageSizes
	}
	if opts.Mode == "" {
		opts.Mode = ModeServer
	}
	if opts.FullFetchSize <= 0 {
		opts.FullFetchSize = DefaultFullFetchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		opts:     opts,
		src:      src,
		engine:   NewEngine(opts.Columns, opts.Locale),
		orch:     NewOrchestrator(opts.CacheTTL, opts.Logger),
		logger:   opts.Logger,
		onChange: opts.OnChange,
		view: ViewState{
			Page:     1,
			PageSize: opts.PageSizes[0],
			Filters:  FilterSet{},
			Mode:     opts.Mode,
		},
		status: StatusInitialLoading,
		ctx:    ctx,
		cancel: cancel,
	}
	c.good = c.view.Clone()
	c.search = NewDebouncer(opts.Debounce, opts.Clock, func(text string) {
		_ = c.SetSearchText(text)
	})
	c.filters = NewFilterStore(opts.Columns, c.SetFilters)

	c.mu.Lock()
	c.refreshLocked()
	snap := c.publishLocked()
	c.mu.Unlock()
	c.emit(snap)

	return c
}

// Filters returns the filter store bound to this grid.
func (c *Controller) Filters() *FilterStore {
	return c.filters
}

// Columns returns the grid's column descriptors.
func (c *Controller) Columns() []Column {
	return c.opts.Columns
}

// PageSizes returns the allowed page sizes.
func (c *Controller) PageSizes() []int {
	return slices.Clone(c.opts.PageSizes)
}

// Snapshot returns the current displayed state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		View:         c.view.Clone(),
		Status:       c.status,
		Rows:         c.shown.Rows,
		TotalPages:   c.shown.TotalPages,
		TotalRecords: c.shown.TotalRecords,
	}
	if c.status == StatusLoadError {
		snap.Err = c.err
	}
	return snap
}

// publishLocked numbers a snapshot for emit.
func (c *Controller) publishLocked() Snapshot {
	c.seq++
	snap := c.snapshotLocked()
	snap.seq = c.seq
	return snap
}

// emit hands snap to OnChange. A snapshot that lost the race to a newer one
// is dropped, so observers never step backwards.
func (c *Controller) emit(snap Snapshot) {
	if c.onChange == nil {
		return
	}
	c.emitMu.Lock()
	if snap.seq <= c.emitted {
		c.emitMu.Unlock()
		return
	}
	c.emitted = snap.seq
	c.emitMu.Unlock()

	c.onChange(snap)
}

// update runs fn under the lock and publishes the resulting snapshot.
func (c *Controller) update(fn func() error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err := fn(); err != nil {
		c.mu.Unlock()
		return err
	}
	snap := c.publishLocked()
	c.mu.Unlock()

	c.emit(snap)
	return nil
}

// SetFilters applies a new filter set. Invalid sets are refused with a
// *ValidationError and change nothing. Page resets to 1.
func (c *Controller) SetFilters(filters FilterSet) error {
	if errs := Validate(filters, c.opts.Columns); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}

	return c.update(func() error {
		c.view.Filters = filters.Active()
		c.view.Page = 1
		c.logger.Debug("grid filters changed", "active", c.view.Filters.ActiveCount())
		c.refreshLocked()
		return nil
	})
}

// SetSort toggles sorting on key: none -> asc -> desc -> none. A different
// column starts at asc. Unknown and non-sortable columns are ignored. The
// page is kept.
func (c *Controller) SetSort(key string) error {
	col, ok := findColumn(c.opts.Columns, key)
	if !ok || !col.Sortable() {
		return nil
	}

	return c.update(func() error {
		c.view.Sort = c.view.Sort.Next(key)
		c.logger.Debug("grid sort changed", "sort", c.view.Sort.Param())
		c.refreshLocked()
		return nil
	})
}

// SetPage moves to page n. It is refused while the grid is in load-error.
func (c *Controller) SetPage(n int) error {
	return c.update(func() error {
		if c.status == StatusLoadError {
			return ErrControlsDisabled
		}
		if n < 1 || (c.shown.TotalPages > 0 && n > c.shown.TotalPages) {
			return ErrPageOutOfRange
		}
		if n == c.view.Page {
			return nil
		}

		c.view.Page = n
		c.refreshLocked()
		return nil
	})
}

// SetPageSize changes the page size and returns to page 1. It is refused
// while the grid is in load-error.
func (c *Controller) SetPageSize(n int) error {
	return c.update(func() error {
		if c.status == StatusLoadError {
			return ErrControlsDisabled
		}
		if !slices.Contains(c.opts.PageSizes, n) {
			return ErrInvalidPageSize
		}

		c.view.Page = 1
		c.view.PageSize = n
		c.refreshLocked()
		return nil
	})
}

// TypeSearch feeds a raw keystroke value into the search debouncer. The
// value is committed with SetSearchText once input goes quiet.
func (c *Controller) TypeSearch(text string) {
	c.search.Input(text)
}

// SetSearchText commits a search term. Page resets to 1 when the term
// changes.
func (c *Controller) SetSearchText(text string) error {
	return c.update(func() error {
		if text == c.view.Search {
			return nil
		}

		c.view.Search = text
		c.view.Page = 1
		c.logger.Debug("grid search committed", "search", text)
		c.refreshLocked()
		return nil
	})
}

// SetMode switches between server and client derivation. Switching to
// client mode reuses an already fetched full collection, or fetches it once.
func (c *Controller) SetMode(m Mode) error {
	if m != ModeServer && m != ModeClient {
		return fmt.Errorf("%w: %q", ErrInvalidMode, m)
	}

	return c.update(func() error {
		if m == c.view.Mode {
			return nil
		}

		c.logger.Debug("grid mode changed", "from", c.view.Mode, "to", m)
		c.view.Mode = m
		c.refreshLocked()
		return nil
	})
}

// Retry replays the last fetch with identical parameters. It only has an
// effect in the load-error state.
func (c *Controller) Retry() error {
	return c.update(func() error {
		if c.status != StatusLoadError {
			return nil
		}
		c.fetchLocked(c.lastRequest, c.lastSeed)
		return nil
	})
}

// Wait blocks until every fetch issued so far has settled.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close discards the grid: pending search commits are cancelled, in-flight
// fetches are abandoned and the cache is cleared.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	c.mu.Unlock()

	c.search.Close()
	c.orch.Clear()
}

// refreshLocked resolves the displayed page for the current view.
func (c *Controller) refreshLocked() {
	if c.view.Mode == ModeClient {
		if c.haveFull {
			c.active = ""
			c.deriveLocked()
			return
		}
		c.fetchLocked(c.fullViewLocked(), true)
		return
	}
	c.fetchLocked(c.view.Clone(), false)
}

// fullViewLocked is the request that returns the whole collection.
func (c *Controller) fullViewLocked() ViewState {
	size := c.opts.FullFetchSize
	if c.fullTotal > 0 {
		size = c.fullTotal
	}
	return ViewState{Page: 1, PageSize: size, Filters: FilterSet{}, Mode: ModeServer}
}

func (c *Controller) deriveLocked() {
	c.shown = c.engine.Derive(c.dataset, c.view)
	c.status = StatusLoaded
	c.hasData = true
	c.err = nil
	c.good = c.view.Clone()
}

// fetchLocked resolves req through the orchestrator. seed marks a
// whole-collection fetch for client mode.
func (c *Controller) fetchLocked(req ViewState, seed bool) {
	key := req.Key()
	c.active = key
	c.lastRequest = req
	c.lastSeed = seed

	if page, ok := c.orch.Cached(key); ok {
		c.commitLocked(req, page, seed)
		return
	}

	if c.hasData {
		c.status = StatusRefetching
	} else {
		c.status = StatusInitialLoading
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		page, err := c.orch.Fetch(c.ctx, key, func(ctx context.Context) (ResultPage, error) {
			return c.src.FetchPage(ctx, req)
		})

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		if key != c.active {
			c.logger.Debug("grid discarding stale response", "key", key, "active", c.active)
			c.mu.Unlock()
			return
		}
		var after func()
		if err != nil {
			after = c.failLocked(err)
		} else {
			c.commitLocked(req, page, seed)
		}
		snap := c.publishLocked()
		c.mu.Unlock()

		c.emit(snap)
		if after != nil {
			after()
		}
	}()
}

func (c *Controller) commitLocked(req ViewState, page ResultPage, seed bool) {
	c.noteFullLocked(req, page)

	if seed {
		if page.TotalRecords > len(page.Rows) {
			c.logger.Warn("grid collection larger than full fetch",
				"fetched", len(page.Rows),
				"total_records", page.TotalRecords,
			)
		}
		c.dataset = page.Rows
		c.haveFull = true
		if c.view.Mode == ModeClient {
			c.deriveLocked()
			return
		}
	} else {
		c.shown = page
	}

	c.status = StatusLoaded
	c.hasData = true
	c.err = nil
	c.good = c.view.Clone()
}

// noteFullLocked keeps any response that turns out to be the entire
// unfiltered collection, so a later switch to client mode needs no fetch.
func (c *Controller) noteFullLocked(req ViewState, page ResultPage) {
	if req.Filters.ActiveCount() > 0 || req.Search != "" {
		return
	}
	c.fullTotal = page.TotalRecords
	if req.Page == 1 && len(page.Rows) >= page.TotalRecords {
		c.dataset = page.Rows
		c.haveFull = true
	}
}

// failLocked settles a failed fetch for the active key. The returned func
// must run after the lock is released.
func (c *Controller) failLocked(err error) (after func()) {
	apiErr := AsAPIError(err)

	if !c.hasData {
		// First load: shown inline, never as a toast.
		c.status = StatusLoadError
		c.err = apiErr
		return nil
	}

	// A refetch failed: keep the rows on screen and put the view back to
	// the one they were derived from.
	c.logger.Info("grid rolling back after failed fetch",
		"page", c.view.Page,
		"rollback_page", c.good.Page,
		"error", apiErr.Message,
	)
	resync := !c.view.Filters.Equal(c.good.Filters)
	c.view = c.good.Clone()
	c.status = StatusLoaded
	c.active = ""
	if c.view.Mode == ModeServer {
		c.active = c.view.Key()
	}

	notifier, filters := c.opts.Notifier, c.view.Filters.Clone()
	return func() {
		notifier.Error(notificationText(apiErr))
		if resync {
			c.filters.Reset(filters)
		}
	}
}
