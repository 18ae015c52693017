package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecord indicates a persisted record that cannot describe a valid state.
var ErrInvalidRecord = errors.New("invalid record")

// timerRecord is the flat persisted form of TimerState. Times are epoch
// milliseconds so records written by the browser surfaces stay readable.
type timerRecord struct {
	Status         TimerStatus    `json:"status"`
	Mode           Mode           `json:"mode"`
	Type           TimerType      `json:"type"`
	StartTime      *int64         `json:"startTime"`
	TargetTime     *int64         `json:"targetTime"`
	Duration       int            `json:"duration"`
	TimeRemaining  int            `json:"timeRemaining"`
	SessionDetails SessionDetails `json:"sessionDetails"`
	RunToken       string         `json:"runToken,omitempty"`
}

// MarshalJSON encodes the state in its flat record form.
func (s TimerState) MarshalJSON() ([]byte, error) {
	rec := timerRecord{
		Status:         s.Status(),
		Mode:           s.Mode,
		Type:           s.Type,
		Duration:       s.DurationMinutes,
		TimeRemaining:  s.StoredSeconds(),
		SessionDetails: s.Session,
	}
	if r, ok := s.Running(); ok {
		start := r.StartTime.UnixMilli()
		rec.StartTime = &start
		rec.RunToken = r.Token
		if target, ok := s.TargetTime(); ok {
			ms := target.UnixMilli()
			rec.TargetTime = &ms
		}
	}
	return json.Marshal(rec)
}

// UnmarshalJSON decodes a flat record, rejecting combinations no status allows.
func (s *TimerState) UnmarshalJSON(data []byte) error {
	var rec timerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	state := DefaultTimerState()
	if rec.Mode.Valid() {
		state.Mode = rec.Mode
	}
	if rec.Type.Valid() {
		state.Type = rec.Type
	}
	if rec.Duration > 0 {
		state.DurationMinutes = rec.Duration
	}
	state.Session = rec.SessionDetails
	if rec.TimeRemaining < 0 {
		return fmt.Errorf("%w: negative timeRemaining", ErrInvalidRecord)
	}

	switch rec.Status {
	case TimerIdle, "":
		state.Phase = IdlePhase{}
	case TimerRunning:
		if rec.StartTime == nil {
			return fmt.Errorf("%w: running without startTime", ErrInvalidRecord)
		}
		state.Phase = RunningPhase{
			StartTime:       time.UnixMilli(*rec.StartTime),
			BaselineSeconds: rec.TimeRemaining,
			Token:           rec.RunToken,
		}
	case TimerPaused:
		state.Phase = PausedPhase{FrozenSeconds: rec.TimeRemaining}
	case TimerCompleted:
		state.Phase = CompletedPhase{}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, rec.Status)
	}

	*s = state
	return nil
}

// DecodeTimerState reads a persisted timer record. Absent, malformed or
// legacy string-encoded records that fail to parse yield the default state.
func DecodeTimerState(raw []byte) TimerState {
	var s TimerState
	if err := decodeRecord(raw, &s); err != nil {
		return DefaultTimerState()
	}
	return s
}

// decodeRecord unmarshals raw into v. A record that holds a JSON string
// (the legacy serialized-text form) is unwrapped first.
func decodeRecord(raw []byte, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: empty", ErrInvalidRecord)
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
		raw = bytes.TrimSpace([]byte(text))
		if len(raw) == 0 {
			return fmt.Errorf("%w: empty", ErrInvalidRecord)
		}
	}
	return json.Unmarshal(raw, v)
}
