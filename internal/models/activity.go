package models

import "time"

// SessionEntry is one logged focus or break session.
type SessionEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	Type            Mode      `json:"type"`
	DurationSeconds int       `json:"duration"`
	Name            string    `json:"name"`
	Tag             string    `json:"tag"`
}

// DayRecord aggregates visits, totals and sessions for one calendar date.
type DayRecord struct {
	Visits       int            `json:"visits"`
	FocusSeconds int            `json:"focusSeconds"`
	BreakSeconds int            `json:"breakSeconds"`
	Sessions     []SessionEntry `json:"sessions"`
}

// AddSession appends e and bumps the matching total in the same step.
func (d *DayRecord) AddSession(e SessionEntry) {
	switch e.Type {
	case ModeFocus:
		d.FocusSeconds += e.DurationSeconds
	case ModeBreak:
		d.BreakSeconds += e.DurationSeconds
	}
	d.Sessions = append(d.Sessions, e)
}

// Consistent reports whether the totals equal the sums over sessions.
func (d DayRecord) Consistent() bool {
	focus, brk := 0, 0
	for _, s := range d.Sessions {
		switch s.Type {
		case ModeFocus:
			focus += s.DurationSeconds
		case ModeBreak:
			brk += s.DurationSeconds
		}
	}
	return focus == d.FocusSeconds && brk == d.BreakSeconds
}

// ActivityLog maps calendar dates (YYYY-MM-DD) to day records.
type ActivityLog map[string]DayRecord

// Day returns the record for key, or a zero record.
func (l ActivityLog) Day(key string) DayRecord {
	d, ok := l[key]
	if !ok {
		return DayRecord{Sessions: []SessionEntry{}}
	}
	if d.Sessions == nil {
		d.Sessions = []SessionEntry{}
	}
	return d
}

// DecodeActivityLog reads a persisted activity log, falling back to an
// empty log for absent or malformed data.
func DecodeActivityLog(raw []byte) ActivityLog {
	var l ActivityLog
	if err := decodeRecord(raw, &l); err != nil || l == nil {
		return ActivityLog{}
	}
	return l
}
