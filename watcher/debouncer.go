package watcher

import (
	"sync"
	"time"
)

// Debouncer suppresses repeated events for a path. The first event for a
// path is let through; further events within the quiet window after it are
// dropped and left for a later event or the next vacuum to pick up.
type Debouncer struct {
	window    time.Duration
	mu        sync.Mutex
	last      map[string]time.Time
	lastPrune time.Time
	now       func() time.Time
}

// NewDebouncer creates a debouncer with the specified quiet window.
// A zero window lets every event through.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether an event for path should be processed now, and if
// so records it as processed.
func (d *Debouncer) Allow(path string) bool {
	if d.window <= 0 {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.prune(now)

	if processed, ok := d.last[path]; ok && now.Sub(processed) < d.window {
		return false
	}
	d.last[path] = now
	return true
}

// Forget drops the entry for path, so the next event is processed at once.
func (d *Debouncer) Forget(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.last, path)
}

// Len returns the number of paths inside their quiet window.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prune(d.now())
	return len(d.last)
}

// prune drops entries older than the window, at most once per window.
func (d *Debouncer) prune(now time.Time) {
	if now.Sub(d.lastPrune) < d.window {
		return
	}
	for path, processed := range d.last {
		if now.Sub(processed) >= d.window {
			delete(d.last, path)
		}
	}
	d.lastPrune = now
}
