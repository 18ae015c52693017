package models

import "time"

// legacyVisitLayout is the textual date form older records carry.
const legacyVisitLayout = "Mon Jan 02 2006"

// StreakData tracks consecutive calendar days with a visit.
type StreakData struct {
	Count         int    `json:"count"`
	LastVisitDate string `json:"lastVisit"`
}

// LastVisit parses LastVisitDate as a calendar date in loc.
func (s StreakData) LastVisit(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range []string{DateLayout, legacyVisitLayout} {
		if t, err := time.ParseInLocation(layout, s.LastVisitDate, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DecodeStreakData reads a persisted streak record. The boolean is false
// when there is no usable prior data.
func DecodeStreakData(raw []byte) (StreakData, bool) {
	var s StreakData
	if err := decodeRecord(raw, &s); err != nil {
		return StreakData{}, false
	}
	if s.LastVisitDate == "" {
		return StreakData{}, false
	}
	return s, true
}

// StreakView is the stored streak plus whether it is still alive today.
type StreakView struct {
	StreakData
	Active bool `json:"active"`
}
