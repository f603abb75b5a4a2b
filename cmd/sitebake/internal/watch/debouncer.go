// Package watch rebuilds a site as its sources change.
package watch

import (
	"slices"
	"sync"
	"time"
)

// MaxPendingPaths bounds the pending set. Reaching it flushes immediately
// so a mass checkout does not grow memory without limit.
const MaxPendingPaths = 1000

// Debouncer coalesces rapid change events into one batch of paths. Saving
// from an editor or a git checkout produces bursts of events; the batch is
// flushed once the window passes with no new event.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	window  time.Duration
	onFlush func(paths []string)
	stopped bool
}

// NewDebouncer creates a debouncer with the given window. onFlush receives
// the sorted, distinct paths of each batch.
func NewDebouncer(window time.Duration, onFlush func(paths []string)) *Debouncer {
	return &Debouncer{
		pending: make(map[string]struct{}),
		window:  window,
		onFlush: onFlush,
	}
}

// Add records a change to path.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	d.pending[path] = struct{}{}

	if len(d.pending) >= MaxPendingPaths {
		d.stopTimerLocked()
		batch := d.drainLocked()
		d.mu.Unlock()
		d.deliver(batch)
		return
	}

	// A timer that already fired may still run flush; flush copes with an
	// empty set.
	d.stopTimerLocked()
	d.timer = time.AfterFunc(d.window, d.flush)
	d.mu.Unlock()
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	batch := d.drainLocked()
	d.mu.Unlock()
	d.deliver(batch)
}

// FlushNow delivers pending paths without waiting for the timer.
func (d *Debouncer) FlushNow() {
	d.mu.Lock()
	d.stopTimerLocked()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	batch := d.drainLocked()
	d.mu.Unlock()
	d.deliver(batch)
}

// Stop flushes pending paths and ignores later events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.stopTimerLocked()
	batch := d.drainLocked()
	d.mu.Unlock()
	d.deliver(batch)
}

// PendingCount returns the number of paths waiting to be flushed.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// drainLocked empties the pending set. Caller must hold d.mu.
func (d *Debouncer) drainLocked() []string {
	if len(d.pending) == 0 {
		return nil
	}
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	d.pending = make(map[string]struct{})
	slices.Sort(paths)
	return paths
}

// deliver runs the callback outside the lock.
func (d *Debouncer) deliver(paths []string) {
	if len(paths) > 0 && d.onFlush != nil {
		d.onFlush(paths)
	}
}
