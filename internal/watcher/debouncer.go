package watcher

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// Debouncer coalesces events per path. Within one window:
//   - CREATE then MODIFY is CREATE
//   - CREATE then DELETE cancels out
//   - DELETE then CREATE is MODIFY
//   - anything else keeps the latest event
type Debouncer struct {
	window time.Duration
	logger *slog.Logger
	output chan []FileEvent

	mu      sync.Mutex
	pending map[string]pending
	timer   *time.Timer
	stopped bool
}

type pending struct {
	event FileEvent
	first Operation
}

// NewDebouncer creates a debouncer whose output holds up to buffer batches.
func NewDebouncer(window time.Duration, buffer int, logger *slog.Logger) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{
		window:  window,
		logger:  logger,
		output:  make(chan []FileEvent, max(buffer, 1)),
		pending: make(map[string]pending),
	}
}

// Add queues an event and restarts the window.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if prev, ok := d.pending[event.Path]; ok {
		merged, keep := coalesce(prev, event)
		if keep {
			d.pending[event.Path] = pending{event: merged, first: prev.first}
		} else {
			delete(d.pending, event.Path)
		}
	} else {
		d.pending[event.Path] = pending{event: event, first: event.Operation}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func coalesce(prev pending, next FileEvent) (FileEvent, bool) {
	switch {
	case prev.first == OpCreate && next.Operation == OpModify:
		return prev.event, true
	case prev.first == OpCreate && next.Operation == OpDelete:
		return FileEvent{}, false
	case prev.first == OpDelete && next.Operation == OpCreate:
		next.Operation = OpModify
		return next, true
	default:
		return next, true
	}
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, p := range d.pending {
		batch = append(batch, p.event)
	}
	slices.SortFunc(batch, func(a, b FileEvent) int { return strings.Compare(a.Path, b.Path) })
	d.pending = make(map[string]pending)

	select {
	case d.output <- batch:
	default:
		d.logger.Warn("watch_batch_dropped", slog.Int("batch_size", len(batch)))
	}
}

// Output delivers batches ordered by path.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop drops pending events and closes Output. Safe to call twice.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
