package models

import "time"

// Phase holds the fields that are only meaningful in one timer status.
// Each status has its own concrete type so that, for example, a target time
// cannot be attached to a paused timer.
type Phase interface {
	Status() TimerStatus
	isPhase()
}

// IdlePhase is the resting state. It carries no run data.
type IdlePhase struct{}

// RunningPhase is a live run segment.
type RunningPhase struct {
	// StartTime is the wall-clock instant the current segment began.
	StartTime time.Time
	// BaselineSeconds is the frozen value the segment started from:
	// seconds left for a countdown, seconds accumulated for a stopwatch.
	BaselineSeconds int
	// Token identifies the run; a completion alarm must present it.
	Token string
}

// PausedPhase freezes the remaining (countdown) or accumulated (stopwatch) seconds.
type PausedPhase struct {
	FrozenSeconds int
}

// CompletedPhase marks a countdown that ran to zero.
type CompletedPhase struct{}

func (IdlePhase) Status() TimerStatus      { return TimerIdle }
func (RunningPhase) Status() TimerStatus   { return TimerRunning }
func (PausedPhase) Status() TimerStatus    { return TimerPaused }
func (CompletedPhase) Status() TimerStatus { return TimerCompleted }

func (IdlePhase) isPhase()      {}
func (RunningPhase) isPhase()   {}
func (PausedPhase) isPhase()    {}
func (CompletedPhase) isPhase() {}

// TimerState is the single process-wide timer record.
type TimerState struct {
	Mode            Mode
	Type            TimerType
	DurationMinutes int
	Session         SessionDetails
	Phase           Phase
}

// DefaultTimerState returns the Idle record created at installation and
// restored by Stop.
func DefaultTimerState() TimerState {
	return TimerState{
		Mode:            ModeFocus,
		Type:            TypeCountdown,
		DurationMinutes: DefaultDurationMinutes,
		Session:         DefaultSessionDetails(),
		Phase:           IdlePhase{},
	}
}

// Status returns the current lifecycle status.
func (s TimerState) Status() TimerStatus {
	if s.Phase == nil {
		return TimerIdle
	}
	return s.Phase.Status()
}

// Running returns the running phase, if the timer is running.
func (s TimerState) Running() (RunningPhase, bool) {
	r, ok := s.Phase.(RunningPhase)
	return r, ok
}

// Paused returns the paused phase, if the timer is paused.
func (s TimerState) Paused() (PausedPhase, bool) {
	p, ok := s.Phase.(PausedPhase)
	return p, ok
}

// DurationSeconds is the configured countdown length.
func (s TimerState) DurationSeconds() int {
	return s.DurationMinutes * 60
}

// Token returns the run token of a running timer, or "".
func (s TimerState) Token() string {
	if r, ok := s.Running(); ok {
		return r.Token
	}
	return ""
}

// TargetTime is the absolute completion instant. It exists only for a
// running countdown.
func (s TimerState) TargetTime() (time.Time, bool) {
	r, ok := s.Running()
	if !ok || s.Type != TypeCountdown {
		return time.Time{}, false
	}
	return r.StartTime.Add(time.Duration(r.BaselineSeconds) * time.Second), true
}

// StoredSeconds is the frozen timeRemaining value as persisted. While
// running it is the segment baseline, not a live value.
func (s TimerState) StoredSeconds() int {
	switch p := s.Phase.(type) {
	case RunningPhase:
		return p.BaselineSeconds
	case PausedPhase:
		return p.FrozenSeconds
	case CompletedPhase:
		return 0
	default:
		if s.Type == TypeStopwatch {
			return 0
		}
		return s.DurationSeconds()
	}
}

// DisplaySeconds derives the value a presentation surface shows at now.
func (s TimerState) DisplaySeconds(now time.Time) int {
	switch p := s.Phase.(type) {
	case RunningPhase:
		if s.Type == TypeCountdown {
			target, _ := s.TargetTime()
			return SecondsUntil(target, now)
		}
		return p.BaselineSeconds + SecondsSince(p.StartTime, now)
	case PausedPhase:
		return p.FrozenSeconds
	case CompletedPhase:
		return 0
	default:
		if s.Type == TypeStopwatch {
			return 0
		}
		return s.DurationSeconds()
	}
}

// ElapsedSeconds is the time actually spent in the current run at now.
// Idle and completed timers report zero.
func (s TimerState) ElapsedSeconds(now time.Time) int {
	switch p := s.Phase.(type) {
	case RunningPhase:
		if s.Type == TypeCountdown {
			target, _ := s.TargetTime()
			return s.DurationSeconds() - SecondsUntil(target, now)
		}
		return SecondsSince(p.StartTime, now) + p.BaselineSeconds
	case PausedPhase:
		if s.Type == TypeCountdown {
			return s.DurationSeconds() - p.FrozenSeconds
		}
		return p.FrozenSeconds
	default:
		return 0
	}
}

// SecondsUntil returns max(0, ceil((target-now)/1s)).
func SecondsUntil(target, now time.Time) int {
	d := target.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// SecondsSince returns floor((now-start)/1s), clamped at zero.
func SecondsSince(start, now time.Time) int {
	d := now.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// TimerView is a TimerState together with its live values at At.
type TimerView struct {
	State          TimerState `json:"state"`
	DisplaySeconds int        `json:"displaySeconds"`
	ElapsedSeconds int        `json:"elapsedSeconds"`
	At             time.Time  `json:"at"`
}

// NewTimerView derives the live values of s at now.
func NewTimerView(s TimerState, now time.Time) TimerView {
	return TimerView{
		State:          s,
		DisplaySeconds: s.DisplaySeconds(now),
		ElapsedSeconds: s.ElapsedSeconds(now),
		At:             now,
	}
}
