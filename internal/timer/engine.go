// Package timer implements the timer state machine: start, pause, resume,
// stop and completion for countdowns and stopwatches.
package timer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fentz26/cbclipper/internal/events"
	"github.com/fentz26/cbclipper/internal/models"
	"github.com/fentz26/cbclipper/internal/store"
	"github.com/google/uuid"
)

// ErrInvalidRequest is returned for a start with an unknown mode or type.
var ErrInvalidRequest = errors.New("invalid timer request")

// Records is the slice of the state store the engine needs.
type Records interface {
	Get(ctx context.Context, key string) (*store.Record, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Alarms arms and cancels the completion wake-up.
type Alarms interface {
	Arm(ctx context.Context, fireAt time.Time, token string) error
	Cancel(ctx context.Context) error
}

// SessionLogger receives finished sessions.
type SessionLogger interface {
	LogSession(ctx context.Context, mode models.Mode, durationSeconds int, details models.SessionDetails) error
}

// Publisher broadcasts completion notifications.
type Publisher interface {
	Publish(e events.Event)
}

// StartRequest is the payload of a start command.
type StartRequest struct {
	Mode            models.Mode            `json:"mode"`
	Type            models.TimerType       `json:"type"`
	DurationMinutes int                    `json:"durationMinutes,omitempty"`
	Session         *models.SessionDetails `json:"sessionDetails,omitempty"`
}

// Engine owns the TimerState record. Commands are serialized; the record
// in the store is the only state, so an engine can be recreated at any time.
type Engine struct {
	mu       sync.Mutex
	records  Records
	alarms   Alarms
	logger   SessionLogger
	bus      Publisher
	now      func() time.Time
	newToken func() string
}

// New creates an engine. bus may be nil.
func New(r Records, a Alarms, l SessionLogger, bus Publisher) *Engine {
	return &Engine{
		records:  r,
		alarms:   a,
		logger:   l,
		bus:      bus,
		now:      time.Now,
		newToken: func() string { return uuid.New().String() },
	}
}

// SetClock replaces the time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Snapshot returns the persisted state. Missing or corrupt records read as
// the Idle default.
func (e *Engine) Snapshot(ctx context.Context) (models.TimerState, error) {
	return e.load(ctx)
}

// Start resumes a paused timer when mode and type match. Anything else,
// including a running timer, begins a fresh run from the payload under a new
// token, which also orphans the previous run's alarm.
func (e *Engine) Start(ctx context.Context, req StartRequest) (models.TimerState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, err := e.load(ctx)
	if err != nil {
		return cur, err
	}

	next := cur
	var baseline int
	if p, ok := cur.Phase.(models.PausedPhase); ok && req.Mode == cur.Mode && req.Type == cur.Type {
		baseline = p.FrozenSeconds
	} else {
		if !req.Mode.Valid() || !req.Type.Valid() {
			return cur, fmt.Errorf("%w: mode %q type %q", ErrInvalidRequest, req.Mode, req.Type)
		}
		next.Mode = req.Mode
		next.Type = req.Type
		next.DurationMinutes = pickDuration(req.DurationMinutes, cur.DurationMinutes)
		next.Session = models.DefaultSessionDetails()
		if req.Session != nil {
			next.Session = *req.Session
		}
		if next.Type == models.TypeCountdown {
			baseline = next.DurationSeconds()
		}
	}

	now := e.now()
	token := e.newToken()
	next.Phase = models.RunningPhase{StartTime: now, BaselineSeconds: baseline, Token: token}

	if target, ok := next.TargetTime(); ok {
		if err := e.alarms.Arm(ctx, target, token); err != nil {
			return cur, fmt.Errorf("arm alarm: %w", err)
		}
	} else if err := e.alarms.Cancel(ctx); err != nil {
		return cur, fmt.Errorf("cancel alarm: %w", err)
	}

	if err := e.save(ctx, next); err != nil {
		e.restoreAlarm(ctx, cur)
		return cur, err
	}
	return next, nil
}

// Pause freezes a running timer. Any other status is left alone.
func (e *Engine) Pause(ctx context.Context) (models.TimerState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, err := e.load(ctx)
	if err != nil {
		return cur, err
	}
	if _, ok := cur.Running(); !ok {
		return cur, nil
	}

	if err := e.alarms.Cancel(ctx); err != nil {
		return cur, fmt.Errorf("cancel alarm: %w", err)
	}

	// Seconds left for a countdown, seconds accumulated for a stopwatch.
	next := cur
	next.Phase = models.PausedPhase{FrozenSeconds: cur.DisplaySeconds(e.now())}
	if err := e.save(ctx, next); err != nil {
		e.restoreAlarm(ctx, cur)
		return cur, err
	}
	return next, nil
}

// Stop finalizes the current run and resets to Idle. Countdowns always log
// the time spent; stopwatches only when save is set. A completed run was
// logged at completion and is reset without logging again.
func (e *Engine) Stop(ctx context.Context, save bool) (models.TimerState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, err := e.load(ctx)
	if err != nil {
		return cur, err
	}
	if cur.Status() == models.TimerIdle {
		return cur, nil
	}

	if err := e.alarms.Cancel(ctx); err != nil {
		return cur, fmt.Errorf("cancel alarm: %w", err)
	}

	if cur.Status() != models.TimerCompleted {
		elapsed := cur.ElapsedSeconds(e.now())
		shouldLog := cur.Type == models.TypeCountdown || save
		if shouldLog && elapsed > 0 {
			if err := e.logger.LogSession(ctx, cur.Mode, elapsed, cur.Session); err != nil {
				e.restoreAlarm(ctx, cur)
				return cur, fmt.Errorf("log session: %w", err)
			}
		}
	}

	next := models.DefaultTimerState()
	if err := e.save(ctx, next); err != nil {
		return cur, err
	}
	return next, nil
}

// Complete handles a fired alarm. It reports whether the alarm belonged to
// the current run; alarms from a superseded run are discarded.
func (e *Engine) Complete(ctx context.Context, token string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, err := e.load(ctx)
	if err != nil {
		return false, err
	}
	r, ok := cur.Running()
	if !ok || cur.Type != models.TypeCountdown || r.Token != token {
		log.Printf("Discarding stale alarm %s (status %s)", token, cur.Status())
		return false, nil
	}

	next := cur
	next.Phase = models.CompletedPhase{}
	if err := e.save(ctx, next); err != nil {
		return false, err
	}

	logErr := e.logger.LogSession(ctx, cur.Mode, cur.DurationSeconds(), cur.Session)

	if e.bus != nil {
		e.bus.Publish(events.Event{Type: events.TimerComplete, Key: models.KeyTimerState, Mode: cur.Mode, At: e.now()})
	}

	if logErr != nil {
		return true, fmt.Errorf("log session: %w", logErr)
	}
	return true, nil
}

func (e *Engine) load(ctx context.Context) (models.TimerState, error) {
	rec, err := e.records.Get(ctx, models.KeyTimerState)
	if err != nil {
		return models.DefaultTimerState(), fmt.Errorf("load timer state: %w", err)
	}
	if rec == nil {
		return models.DefaultTimerState(), nil
	}
	return models.DecodeTimerState(rec.Value), nil
}

func (e *Engine) save(ctx context.Context, s models.TimerState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode timer state: %w", err)
	}
	if err := e.records.Put(ctx, models.KeyTimerState, data); err != nil {
		return fmt.Errorf("save timer state: %w", err)
	}
	return nil
}

// restoreAlarm puts the alarm back in line with s after a failed
// transition left s in the store.
func (e *Engine) restoreAlarm(ctx context.Context, s models.TimerState) {
	var err error
	if target, ok := s.TargetTime(); ok {
		err = e.alarms.Arm(ctx, target, s.Token())
	} else {
		err = e.alarms.Cancel(ctx)
	}
	if err != nil {
		log.Printf("Error restoring alarm: %v", err)
	}
}

func pickDuration(requested, previous int) int {
	if requested > 0 {
		return requested
	}
	if previous > 0 {
		return previous
	}
	return models.DefaultDurationMinutes
}
