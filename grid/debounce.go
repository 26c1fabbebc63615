package grid

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period before a search edit is committed.
const DefaultDebounce = 500 * time.Millisecond

// Timer is a pending scheduled call.
type Timer interface {
	// Stop cancels the call. It reports false if the call already ran.
	Stop() bool
}

// Clock schedules calls. The real clock wraps time.AfterFunc; tests supply
// a manual one.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall-clock Clock.
var SystemClock Clock = realClock{}

// Debouncer turns raw input events into rate-limited commits. Each Input
// restarts the timer; only the value present when the timer elapses
// uninterrupted is committed. At most one timer is pending at a time.
type Debouncer struct {
	mu      sync.Mutex
	clock   Clock
	delay   time.Duration
	commit  func(string)
	pending Timer
	seq     uint64 // identifies the live timer; stale firings are ignored
	closed  bool
}

// NewDebouncer returns a debouncer that calls commit after delay of
// inactivity. A nil clock uses SystemClock.
func NewDebouncer(delay time.Duration, clock Clock, commit func(string)) *Debouncer {
	if clock == nil {
		clock = SystemClock
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{clock: clock, delay: delay, commit: commit}
}

// Input records a new value and restarts the timer.
func (d *Debouncer) Input(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if d.pending != nil {
		d.pending.Stop()
	}

	d.seq++
	seq := d.seq
	d.pending = d.clock.AfterFunc(d.delay, func() { d.fire(seq, value) })
}

func (d *Debouncer) fire(seq uint64, value string) {
	d.mu.Lock()
	if d.closed || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	commit := d.commit
	d.mu.Unlock()

	if commit != nil {
		commit(value)
	}
}

// Cancel drops any pending commit without closing the debouncer.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Close cancels any pending commit and ignores further input.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.closed = true
}

func (d *Debouncer) cancelLocked() {
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	d.seq++
}

// Pending reports whether a commit is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}
