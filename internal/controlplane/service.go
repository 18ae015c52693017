// Package controlplane provides the HTTP API and service layer for the
// CB Clipper daemon.
package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/fentz26/cbclipper/internal/activity"
	"github.com/fentz26/cbclipper/internal/audit"
	"github.com/fentz26/cbclipper/internal/models"
	"github.com/fentz26/cbclipper/internal/streak"
	"github.com/fentz26/cbclipper/internal/timer"
)

// Message actions accepted by Dispatch.
const (
	ActionTimerStart  = "TIMER_START"
	ActionTimerPause  = "TIMER_PAUSE"
	ActionTimerStop   = "TIMER_STOP"
	ActionRecordVisit = "RECORD_VISIT"
)

// StartPayload is the body of a start command. Duration is the older name
// for DurationMinutes.
type StartPayload struct {
	Mode            models.Mode            `json:"mode"`
	Type            models.TimerType       `json:"type"`
	DurationMinutes int                    `json:"durationMinutes,omitempty"`
	Duration        int                    `json:"duration,omitempty"`
	SessionDetails  *models.SessionDetails `json:"sessionDetails,omitempty"`
}

func (p StartPayload) request() timer.StartRequest {
	minutes := p.DurationMinutes
	if minutes <= 0 {
		minutes = p.Duration
	}
	return timer.StartRequest{
		Mode:            p.Mode,
		Type:            p.Type,
		DurationMinutes: minutes,
		Session:         p.SessionDetails,
	}
}

// StopPayload is the body of a stop command.
type StopPayload struct {
	Save bool `json:"save"`
}

// Service provides the control plane business logic.
type Service struct {
	engine   *timer.Engine
	activity *activity.Logger
	streak   *streak.Tracker
	audit    *audit.Writer
	now      func() time.Time
}

// NewService creates a new control plane service. aw may be nil.
func NewService(engine *timer.Engine, logger *activity.Logger, tracker *streak.Tracker, aw *audit.Writer) *Service {
	return &Service{
		engine:   engine,
		activity: logger,
		streak:   tracker,
		audit:    aw,
		now:      time.Now,
	}
}

// --- Timer Operations ---

// StartTimer starts or resumes the timer.
func (s *Service) StartTimer(ctx context.Context, p StartPayload) (models.TimerView, error) {
	st, err := s.engine.Start(ctx, p.request())
	s.record("timer.start", p, err)
	return models.NewTimerView(st, s.now()), err
}

// PauseTimer pauses a running timer.
func (s *Service) PauseTimer(ctx context.Context) (models.TimerView, error) {
	st, err := s.engine.Pause(ctx)
	s.record("timer.pause", nil, err)
	return models.NewTimerView(st, s.now()), err
}

// StopTimer finalizes the current run.
func (s *Service) StopTimer(ctx context.Context, p StopPayload) (models.TimerView, error) {
	st, err := s.engine.Stop(ctx, p.Save)
	s.record("timer.stop", p, err)
	return models.NewTimerView(st, s.now()), err
}

// Timer returns the current timer with its live values.
func (s *Service) Timer(ctx context.Context) (models.TimerView, error) {
	st, err := s.engine.Snapshot(ctx)
	if err != nil {
		return models.TimerView{}, err
	}
	return models.NewTimerView(st, s.now()), nil
}

// --- Activity Operations ---

// RecordVisit counts a visit for today and updates the streak.
func (s *Service) RecordVisit(ctx context.Context) (models.StreakView, error) {
	data, err := s.streak.RecordVisit(ctx)
	s.record("visit.record", nil, err)
	if err != nil {
		return models.StreakView{}, err
	}
	return models.StreakView{StreakData: data, Active: s.streak.Alive(data)}, nil
}

// Streak returns the stored streak.
func (s *Service) Streak(ctx context.Context) (models.StreakView, error) {
	data, active, err := s.streak.Current(ctx)
	if err != nil {
		return models.StreakView{}, err
	}
	return models.StreakView{StreakData: data, Active: active}, nil
}

// Day returns the activity for a calendar date. An empty date means today.
func (s *Service) Day(ctx context.Context, date string) (models.DayRecord, error) {
	if date == "" {
		date = s.activity.Today()
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return models.DayRecord{}, fmt.Errorf("%w: date %q", ErrInvalidPayload, date)
	}
	return s.activity.Day(ctx, date)
}

// ActivityLog returns every day record.
func (s *Service) ActivityLog(ctx context.Context) (models.ActivityLog, error) {
	return s.activity.Log(ctx)
}

// --- Messages ---

// Dispatch runs a message-style command and returns its result.
func (s *Service) Dispatch(ctx context.Context, action string, payload json.RawMessage) (interface{}, error) {
	switch action {
	case ActionTimerStart:
		var p StartPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return s.StartTimer(ctx, p)
	case ActionTimerPause:
		return s.PauseTimer(ctx)
	case ActionTimerStop:
		var p StopPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return s.StopTimer(ctx, p)
	case ActionRecordVisit:
		return s.RecordVisit(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// record writes the audit row for a command and logs failures.
func (s *Service) record(action string, inputs interface{}, err error) {
	outcome, details := "success", ""
	if err != nil {
		outcome, details = "error", err.Error()
		log.Printf("%s failed: %v", action, err)
	}
	if s.audit == nil {
		return
	}
	if _, auditErr := s.audit.Record(action, inputs, outcome, details); auditErr != nil {
		log.Printf("Error writing audit record for %s: %v", action, auditErr)
	}
}
