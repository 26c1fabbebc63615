package grid

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/language"
)

// ============================================================================
// Manual clock
// ============================================================================

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every timer that came due, in order,
// outside the clock's lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	var rest []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case t.at <= c.now:
			t.fired = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// ============================================================================
// Notifications
// ============================================================================

type recordingNotifier struct {
	mu        sync.Mutex
	errors    []string
	successes []string
}

func (n *recordingNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func (n *recordingNotifier) Success(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, message)
}

func (n *recordingNotifier) Errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

func (n *recordingNotifier) Successes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.successes...)
}

// ============================================================================
// Scripted source
// ============================================================================

var testColumns = []Column{
	{Key: "id", Label: "ID", Type: TypeNumber},
	{Key: "name", Label: "Name", Type: TypeString},
	{Key: "amount", Label: "Amount", Type: TypeNumber, Filterable: true, FilterKind: FilterRange},
	{Key: "joined", Label: "Joined", Type: TypeDate, Filterable: true, FilterKind: FilterDateRange},
	{Key: "group", Label: "Group", Type: TypeSelect, Filterable: true, FilterKind: FilterSelect, FilterOptions: []string{"odd", "even"}},
	{Key: "note", Label: "Note", SortDisabled: true},
}

// testRows returns n rows with ids 1..n.
func testRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		id := i + 1
		group := "odd"
		if id%2 == 0 {
			group = "even"
		}
		rows[i] = Row{
			"id":     Number(float64(id)),
			"name":   String(fmt.Sprintf("Person %02d", id)),
			"amount": Number(float64(id * 10)),
			"joined": String(time.Date(2024, 1, id, 0, 0, 0, 0, time.UTC).Format("2006-01-02")),
			"group":  String(group),
			"note":   String("n"),
		}
	}
	return rows
}

// fakeSource serves rows through an Engine, like a well-behaved server.
// Individual pages can be held open or made to fail.
type fakeSource struct {
	mu     sync.Mutex
	rows   []Row
	engine *Engine
	calls  []ViewState
	held   map[int]chan struct{}
	failOn func(ViewState) error
}

func newFakeSource(rows []Row) *fakeSource {
	return &fakeSource{
		rows:   rows,
		engine: NewEngine(testColumns, language.English),
		held:   make(map[int]chan struct{}),
	}
}

func (s *fakeSource) FetchPage(ctx context.Context, view ViewState) (ResultPage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, view.Clone())
	hold := s.held[view.Page]
	failOn := s.failOn
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ResultPage{}, ctx.Err()
		}
	}
	if failOn != nil {
		if err := failOn(view); err != nil {
			return ResultPage{}, err
		}
	}
	return s.engine.Derive(s.rows, view), nil
}

// hold blocks requests for page until the returned func is called.
func (s *fakeSource) hold(page int) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.held[page] = ch
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.held, page)
		s.mu.Unlock()
		close(ch)
	}
}

func (s *fakeSource) setFailure(f func(ViewState) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn = f
}

func (s *fakeSource) Calls() []ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ViewState(nil), s.calls...)
}

var errServer = &APIError{StatusCode: 500, Message: "Server error occured!"}

// failAlways makes every request fail.
func failAlways(ViewState) error { return errServer }

// failPage makes requests for one page fail.
func failPage(page int) func(ViewState) error {
	return func(v ViewState) error {
		if v.Page == page {
			return errServer
		}
		return nil
	}
}

// ============================================================================
// Assertions
// ============================================================================

func ids(rows []Row) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		f, _ := r.Get("id").Float()
		out[i] = int(f)
	}
	return out
}

func namesOf(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Get("name").Text()
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func span(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
