// Package scheduler provides the timers used by the cache and dashboard: a
// Clock abstraction with cancellable one-shot timers, a repeating Every
// helper, a Debouncer and a manually advanced Fake clock for tests.
package scheduler

import (
	"sync"
	"time"
)

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop cancels the callback. It reports false if the callback already ran
	// or was already stopped.
	Stop() bool
}

// Clock tells time and schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Or returns c, or Real when c is nil.
func Or(c Clock) Clock {
	if c == nil {
		return Real{}
	}
	return c
}

type repeating struct {
	clock Clock
	every time.Duration
	fn    func()

	mu      sync.Mutex
	current Timer
	stopped bool
}

// Every runs fn each interval d until the returned Timer is stopped. The
// first run happens after d, not immediately.
func Every(c Clock, d time.Duration, fn func()) Timer {
	r := &repeating{clock: Or(c), every: d, fn: fn}
	r.mu.Lock()
	r.current = r.clock.AfterFunc(d, r.fire)
	r.mu.Unlock()
	return r
}

func (r *repeating) fire() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.current = r.clock.AfterFunc(r.every, r.fire)
	r.mu.Unlock()
	r.fn()
}

func (r *repeating) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	r.stopped = true
	r.current.Stop()
	return true
}

// Debouncer runs only the last of a burst of calls, delay after that call.
type Debouncer struct {
	clock Clock
	delay time.Duration

	mu    sync.Mutex
	seq   uint64
	timer Timer
}

func NewDebouncer(c Clock, delay time.Duration) *Debouncer {
	return &Debouncer{clock: Or(c), delay: delay}
}

// Do schedules fn, replacing anything scheduled earlier.
func (d *Debouncer) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		latest := seq == d.seq
		if latest {
			d.timer = nil
		}
		d.mu.Unlock()
		if latest {
			fn()
		}
	})
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
