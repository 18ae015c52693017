// Package streak tracks consecutive calendar days with a recorded visit.
package streak

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fentz26/cbclipper/internal/models"
	"github.com/fentz26/cbclipper/internal/store"
)

// Records is the slice of the state store the tracker needs.
type Records interface {
	Get(ctx context.Context, key string) (*store.Record, error)
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}

// VisitCounter bumps the visit total for today.
type VisitCounter interface {
	RecordVisit(ctx context.Context) error
}

// Tracker updates the streak record on each visit.
type Tracker struct {
	records Records
	visits  VisitCounter
	loc     *time.Location
	now     func() time.Time
}

// New creates a tracker. visits may be nil.
func New(r Records, visits VisitCounter, loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.Local
	}
	return &Tracker{records: r, visits: visits, loc: loc, now: time.Now}
}

// SetClock replaces the time source.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// Next computes the streak after a visit on today. A visit on the same day
// leaves the record alone, the day after continues it, anything else
// (a gap, a future date, unreadable data) starts over at 1.
func Next(prev models.StreakData, hasPrev bool, today time.Time, loc *time.Location) models.StreakData {
	todayKey := models.DayKey(today, loc)
	fresh := models.StreakData{Count: 1, LastVisitDate: todayKey}
	if !hasPrev {
		return fresh
	}

	last, ok := prev.LastVisit(loc)
	if !ok {
		return fresh
	}
	switch last.Format(models.DateLayout) {
	case todayKey:
		if prev.Count < 1 {
			prev.Count = 1
		}
		prev.LastVisitDate = todayKey
		return prev
	case yesterdayKey(today, loc):
		count := prev.Count
		if count < 1 {
			count = 1
		}
		return models.StreakData{Count: count + 1, LastVisitDate: todayKey}
	default:
		return fresh
	}
}

// RecordVisit bumps today's visit counter and then updates the streak.
// The two writes are independent; each is atomic on its own record.
func (t *Tracker) RecordVisit(ctx context.Context) (models.StreakData, error) {
	if t.visits != nil {
		if err := t.visits.RecordVisit(ctx); err != nil {
			return models.StreakData{}, err
		}
	}

	today := t.now()
	var result models.StreakData
	err := t.records.Update(ctx, models.KeyStreakData, func(current []byte) ([]byte, error) {
		prev, ok := models.DecodeStreakData(current)
		result = Next(prev, ok, today, t.loc)
		return json.Marshal(result)
	})
	if err != nil {
		return models.StreakData{}, fmt.Errorf("update streak: %w", err)
	}
	return result, nil
}

// Current returns the stored streak and whether it is still alive, that is
// whether the last visit was today or yesterday.
func (t *Tracker) Current(ctx context.Context) (models.StreakData, bool, error) {
	rec, err := t.records.Get(ctx, models.KeyStreakData)
	if err != nil {
		return models.StreakData{}, false, err
	}
	if rec == nil {
		return models.StreakData{}, false, nil
	}
	data, ok := models.DecodeStreakData(rec.Value)
	if !ok {
		return models.StreakData{}, false, nil
	}
	return data, t.Alive(data), nil
}

// Alive reports whether data's last visit was today or yesterday.
func (t *Tracker) Alive(data models.StreakData) bool {
	last, ok := data.LastVisit(t.loc)
	if !ok {
		return false
	}
	now := t.now()
	key := last.Format(models.DateLayout)
	return key == models.DayKey(now, t.loc) || key == yesterdayKey(now, t.loc)
}

func yesterdayKey(today time.Time, loc *time.Location) string {
	y, m, d := today.In(loc).Date()
	return time.Date(y, m, d-1, 0, 0, 0, 0, loc).Format(models.DateLayout)
}
