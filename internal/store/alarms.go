package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Alarm is a durable one-shot wake-up.
type Alarm struct {
	Name   string
	Token  string
	FireAt time.Time
}

// ArmAlarm schedules the named alarm, replacing any pending one.
func (s *Store) ArmAlarm(ctx context.Context, name, token string, fireAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alarms (name, token, fire_at, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET token = excluded.token, fire_at = excluded.fire_at, created_at = excluded.created_at`,
		name, token, fireAt.UnixMilli(), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("arm alarm %q: %w", name, err)
	}
	return nil
}

// RestoreAlarm puts back an alarm that was claimed but not delivered. A newer
// arming with the same name wins, in which case nothing is written.
func (s *Store) RestoreAlarm(ctx context.Context, name, token string, fireAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO alarms (name, token, fire_at, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, token, fireAt.UnixMilli(), time.Now().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("restore alarm %q: %w", name, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// ClearAlarm removes the named alarm. Clearing an absent alarm is not an error.
func (s *Store) ClearAlarm(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM alarms WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("clear alarm %q: %w", name, err)
	}
	return nil
}

// GetAlarm returns the named alarm, or nil if none is pending.
func (s *Store) GetAlarm(ctx context.Context, name string) (*Alarm, error) {
	a := &Alarm{Name: name}
	var fireAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT token, fire_at FROM alarms WHERE name = ?`, name,
	).Scan(&a.Token, &fireAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query alarm %q: %w", name, err)
	}
	a.FireAt = time.UnixMilli(fireAt)
	return a, nil
}

// ClaimAlarm deletes the named alarm only if it still carries token. Exactly
// one caller can claim a given arming.
func (s *Store) ClaimAlarm(ctx context.Context, name, token string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM alarms WHERE name = ? AND token = ?`, name, token,
	)
	if err != nil {
		return false, fmt.Errorf("claim alarm %q: %w", name, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// DueAlarms returns the alarms whose fire time is at or before now.
func (s *Store) DueAlarms(ctx context.Context, now time.Time) ([]Alarm, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, token, fire_at FROM alarms WHERE fire_at <= ? ORDER BY fire_at`,
		now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("query due alarms: %w", err)
	}
	defer rows.Close()

	var alarms []Alarm
	for rows.Next() {
		var a Alarm
		var fireAt int64
		if err := rows.Scan(&a.Name, &a.Token, &fireAt); err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}
		a.FireAt = time.UnixMilli(fireAt)
		alarms = append(alarms, a)
	}
	return alarms, rows.Err()
}
