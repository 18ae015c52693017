// Package alerts turns timer completions into local notifications.
package alerts

import (
	"context"
	"log"
	"time"

	"github.com/fentz26/cbclipper/internal/events"
	"github.com/fentz26/cbclipper/internal/models"
)

// Alert is one completion notification.
type Alert struct {
	Mode    models.Mode `json:"mode"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// ForCompletion builds the alert for a finished countdown.
func ForCompletion(mode models.Mode, at time.Time) Alert {
	a := Alert{Mode: mode, Title: "CB Clipper", At: at}
	switch mode {
	case models.ModeBreak:
		a.Message = "Break is over. Back to it."
	default:
		a.Message = "Focus session complete. Take a break."
	}
	return a
}

// ExecResult holds the result of a notifier command.
type ExecResult struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exit_code"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// Notifier delivers alerts.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Notify delivers a single alert.
	Notify(ctx context.Context, a Alert) (*ExecResult, error)
}

// Dispatcher listens for completions on the bus and sends one alert for
// each.
type Dispatcher struct {
	bus      *events.Bus
	notifier Notifier
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(bus *events.Bus, n Notifier) *Dispatcher {
	return &Dispatcher{bus: bus, notifier: n}
}

// Run blocks until ctx is done, alerting on every TIMER_COMPLETE event.
func (d *Dispatcher) Run(ctx context.Context) {
	ch, unsubscribe := d.bus.Subscribe(8)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.Type != events.TimerComplete {
				continue
			}
			res, err := d.notifier.Notify(ctx, ForCompletion(e.Mode, e.At))
			if err != nil {
				log.Printf("Alert via %s failed: %v", d.notifier.Name(), err)
				continue
			}
			if res.ExitCode != 0 {
				log.Printf("Alert via %s exited %d: %s", d.notifier.Name(), res.ExitCode, res.Stderr)
			}
		}
	}
}
