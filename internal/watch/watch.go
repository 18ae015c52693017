// Package watch keeps a presentation surface in step with the daemon. It
// listens on the push event stream for low latency and re-polls on a fixed
// interval so a missed event is never more than one interval stale.
package watch

import (
	"context"
	"time"

	"github.com/fentz26/cbclipper/internal/events"
	"github.com/fentz26/cbclipper/internal/models"
)

// Source is a remote view of the timer.
type Source interface {
	// Timer reads the current timer. Each call is a full fresh read.
	Timer(ctx context.Context) (models.TimerView, error)
	// Events opens the push stream. The channel closes when the stream breaks.
	Events(ctx context.Context) (<-chan events.Event, error)
}

// Update is delivered to the callback after every read, and once for every
// completion seen on the stream.
type Update struct {
	View models.TimerView
	Err  error
	// Completed is set on the update produced by a TIMER_COMPLETE event.
	Completed bool
	Mode      models.Mode
	// Live reports whether the push stream is connected.
	Live bool
}

// Watcher drives the dual-path update loop.
type Watcher struct {
	src      Source
	interval time.Duration
}

// New creates a watcher that re-polls every interval.
func New(src Source, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{src: src, interval: interval}
}

// Run calls fn with fresh updates until ctx is done. fn runs on the
// watcher's goroutine.
func (w *Watcher) Run(ctx context.Context, fn func(Update)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var stream <-chan events.Event
	connect := func() {
		ch, err := w.src.Events(ctx)
		if err != nil {
			stream = nil
			return
		}
		stream = ch
	}
	poll := func() {
		view, err := w.src.Timer(ctx)
		fn(Update{View: view, Err: err, Live: stream != nil})
	}

	connect()
	poll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stream == nil {
				connect()
			}
			poll()
		case e, ok := <-stream:
			if !ok {
				stream = nil
				continue
			}
			dirty, completions := classify(e)
			// Coalesce a burst of events into one read.
			for more := true; more; {
				select {
				case next, ok := <-stream:
					if !ok {
						stream = nil
						more = false
						continue
					}
					d, c := classify(next)
					dirty = dirty || d
					completions = append(completions, c...)
				default:
					more = false
				}
			}
			for _, mode := range completions {
				fn(Update{Completed: true, Mode: mode, Live: stream != nil})
			}
			if dirty {
				poll()
			}
		}
	}
}

// classify reports whether e changes the timer, and the completions it carries.
func classify(e events.Event) (bool, []models.Mode) {
	switch e.Type {
	case events.TimerComplete:
		return true, []models.Mode{e.Mode}
	case events.StateChanged:
		return e.Key == "" || e.Key == models.KeyTimerState, nil
	default:
		return false, nil
	}
}
