// Package activity maintains the per-day activity log: visits, focus and
// break totals, and the session entries behind them.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fentz26/cbclipper/internal/models"
	"github.com/fentz26/cbclipper/internal/store"
)

// Records is the slice of the state store the logger needs.
type Records interface {
	Get(ctx context.Context, key string) (*store.Record, error)
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}

// Logger appends sessions and visits to the activity log. Every change is
// a single read-modify-write of the log record, so concurrent writers to
// the same day both land.
type Logger struct {
	records Records
	loc     *time.Location
	now     func() time.Time
}

// New creates a logger that keys days in loc.
func New(r Records, loc *time.Location) *Logger {
	if loc == nil {
		loc = time.Local
	}
	return &Logger{records: r, loc: loc, now: time.Now}
}

// SetClock replaces the time source.
func (l *Logger) SetClock(now func() time.Time) {
	l.now = now
}

// Today returns the current calendar day key.
func (l *Logger) Today() string {
	return models.DayKey(l.now(), l.loc)
}

// LogSession appends a session entry to today's record and bumps the
// matching total. Non-positive durations are ignored.
func (l *Logger) LogSession(ctx context.Context, mode models.Mode, durationSeconds int, details models.SessionDetails) error {
	if durationSeconds <= 0 {
		return nil
	}
	if !mode.Valid() {
		return fmt.Errorf("log session: unknown mode %q", mode)
	}

	now := l.now()
	entry := models.SessionEntry{
		Timestamp:       now.UTC(),
		Type:            mode,
		DurationSeconds: durationSeconds,
		Name:            details.Name,
		Tag:             details.Tag,
	}
	return l.updateDay(ctx, models.DayKey(now, l.loc), func(d *models.DayRecord) {
		d.AddSession(entry)
	})
}

// RecordVisit increments today's visit counter.
func (l *Logger) RecordVisit(ctx context.Context) error {
	return l.updateDay(ctx, l.Today(), func(d *models.DayRecord) {
		d.Visits++
	})
}

// Log returns the whole activity log.
func (l *Logger) Log(ctx context.Context) (models.ActivityLog, error) {
	rec, err := l.records.Get(ctx, models.KeyActivityLog)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return models.ActivityLog{}, nil
	}
	return models.DecodeActivityLog(rec.Value), nil
}

// Day returns the record for a calendar day, or a zero record.
func (l *Logger) Day(ctx context.Context, key string) (models.DayRecord, error) {
	log, err := l.Log(ctx)
	if err != nil {
		return models.DayRecord{}, err
	}
	return log.Day(key), nil
}

func (l *Logger) updateDay(ctx context.Context, key string, mutate func(*models.DayRecord)) error {
	err := l.records.Update(ctx, models.KeyActivityLog, func(current []byte) ([]byte, error) {
		log := models.DecodeActivityLog(current)
		day := log.Day(key)
		mutate(&day)
		log[key] = day
		return json.Marshal(log)
	})
	if err != nil {
		return fmt.Errorf("update activity log: %w", err)
	}
	return nil
}
