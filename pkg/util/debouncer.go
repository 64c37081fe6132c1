// Package util holds small concurrency helpers.
package util

import (
	"sync"
	"time"
)

// Debouncer runs a callback once a quiet period has elapsed since the last
// Arm. It starts disarmed. Safe for concurrent use.
//
//	grace := NewDebouncer(5*time.Second, expire)
//	grace.Arm()    // link went down
//	grace.Cancel() // link came back before expiry
type Debouncer struct {
	duration time.Duration
	fn       func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewDebouncer creates a disarmed debouncer that calls fn after duration.
func NewDebouncer(duration time.Duration, fn func()) *Debouncer {
	return &Debouncer{duration: duration, fn: fn}
}

// Arm (re)starts the quiet period. No-op after Stop.
func (d *Debouncer) Arm() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.duration, func() { d.fire(gen) })
}

// Cancel disarms a pending callback. The debouncer can be armed again.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disarm()
}

// Pending reports whether a callback is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop disarms and prevents further arming. Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disarm()
	d.stopped = true
}

func (d *Debouncer) disarm() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	// Invalidate a callback that already left the timer but has not run yet.
	d.gen++
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}
