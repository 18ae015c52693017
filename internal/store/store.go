// Package store provides SQLite-backed persistence for CB Clipper.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/cbclipper/internal/events"
	_ "modernc.org/sqlite"
)

// maxUpdateAttempts bounds the optimistic retry loop in Update.
const maxUpdateAttempts = 32

// ErrTooManyConflicts indicates Update lost the compare-and-swap race on
// every attempt.
var ErrTooManyConflicts = errors.New("too many write conflicts")

// Store provides access to the CB Clipper SQLite database.
type Store struct {
	db  *sql.DB
	bus *events.Bus
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// SetBus wires the bus that receives a state_change event after every write.
func (s *Store) SetBus(b *events.Bus) {
	s.bus = b
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		version INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alarms (
		name TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		fire_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alarms_fire_at ON alarms(fire_at);
	CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) notify(key string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Type: events.StateChanged, Key: key})
}

// --- Record Operations ---

// Record is a versioned value under a key.
type Record struct {
	Key       string
	Value     []byte
	Version   int64
	UpdatedAt time.Time
}

// Get returns the record for key, or nil if it does not exist.
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	var value string
	var updatedAt int64
	rec := &Record{Key: key}

	err := s.db.QueryRowContext(ctx,
		`SELECT value, version, updated_at FROM records WHERE key = ?`, key,
	).Scan(&value, &rec.Version, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query record %q: %w", key, err)
	}
	rec.Value = []byte(value)
	rec.UpdatedAt = time.UnixMilli(updatedAt)
	return rec, nil
}

// Put writes value unconditionally and bumps the version.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (key, value, version, updated_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = records.version + 1, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put record %q: %w", key, err)
	}
	s.notify(key)
	return nil
}

// EnsureRecord inserts value only if key is absent. It reports whether a
// write happened.
func (s *Store) EnsureRecord(ctx context.Context, key string, value []byte) (bool, error) {
	ok, err := s.CompareAndSwap(ctx, key, 0, value)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// CompareAndSwap writes value only if the stored version equals version.
// Version 0 means the key must not exist yet.
func (s *Store) CompareAndSwap(ctx context.Context, key string, version int64, value []byte) (bool, error) {
	now := time.Now().UnixMilli()

	var result sql.Result
	var err error
	if version == 0 {
		result, err = s.db.ExecContext(ctx,
			`INSERT INTO records (key, value, version, updated_at) VALUES (?, ?, 1, ?) ON CONFLICT(key) DO NOTHING`,
			key, string(value), now,
		)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE records SET value = ?, version = version + 1, updated_at = ? WHERE key = ? AND version = ?`,
			string(value), now, key, version,
		)
	}
	if err != nil {
		return false, fmt.Errorf("swap record %q: %w", key, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}
	s.notify(key)
	return true, nil
}

// Update applies fn as an atomic read-modify-write on key. fn receives the
// current value (nil if absent) and returns the replacement. If another
// writer commits in between, fn is re-run on the fresh value.
func (s *Store) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		rec, err := s.Get(ctx, key)
		if err != nil {
			return err
		}

		var current []byte
		var version int64
		if rec != nil {
			current = rec.Value
			version = rec.Version
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		ok, err := s.CompareAndSwap(ctx, key, version, next)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Millisecond):
		}
	}
	return fmt.Errorf("update record %q: %w", key, ErrTooManyConflicts)
}
