// Package models defines the core domain types for CB Clipper.
package models

import "time"

// Record keys in the persisted state store.
const (
	KeyTimerState  = "timerState"
	KeyActivityLog = "cb_activity_log"
	KeyStreakData  = "cb_streak_data"
)

// TimerStatus represents the lifecycle state of the timer.
type TimerStatus string

const (
	TimerIdle      TimerStatus = "idle"
	TimerRunning   TimerStatus = "running"
	TimerPaused    TimerStatus = "paused"
	TimerCompleted TimerStatus = "completed"
)

// Mode selects which activity total a session counts towards.
type Mode string

const (
	ModeFocus Mode = "focus"
	ModeBreak Mode = "break"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeFocus || m == ModeBreak
}

// TimerType distinguishes countdown timers from stopwatches.
type TimerType string

const (
	TypeCountdown TimerType = "timer"
	TypeStopwatch TimerType = "stopwatch"
)

// Valid reports whether t is a known timer type.
func (t TimerType) Valid() bool {
	return t == TypeCountdown || t == TypeStopwatch
}

const (
	DefaultDurationMinutes = 25
	DefaultTag             = "General"
)

// SessionDetails is the free-form label of a run, fixed at start.
type SessionDetails struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

// DefaultSessionDetails returns the label used when a start carries none.
func DefaultSessionDetails() SessionDetails {
	return SessionDetails{Name: "", Tag: DefaultTag}
}

// DayKey formats t as a calendar date in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}

// DateLayout is the calendar date format used for activity and streak keys.
const DateLayout = "2006-01-02"

// AuditEntry records one command handled by the daemon.
type AuditEntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
