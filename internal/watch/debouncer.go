package watch

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// Debouncer coalesces rapid events into a single callback invocation.
// The callback fires once no further event has arrived for the configured
// interval and receives every path seen during the burst, sorted.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	pending  map[string]struct{}
	callback func(paths []string)
}

// NewDebouncer creates a debouncer that waits for interval of quiet before
// firing callback.
func NewDebouncer(interval time.Duration, callback func(paths []string)) *Debouncer {
	return &Debouncer{
		interval: interval,
		pending:  make(map[string]struct{}),
		callback: callback,
	}
}

// Trigger records an event for path and restarts the quiet period.
func (d *Debouncer) Trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[path] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("debouncer callback panicked", slog.Any("error", r))
		}
	}()

	d.mu.Lock()
	paths := slices.Sorted(maps.Keys(d.pending))
	clear(d.pending)
	d.mu.Unlock()

	if len(paths) == 0 {
		return
	}

	d.callback(paths)
}

// Stop cancels any pending callback and forgets the recorded paths.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	clear(d.pending)
}
