package streak

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/cbclipper/internal/activity"
	"github.com/fentz26/cbclipper/internal/models"
	"github.com/fentz26/cbclipper/internal/store"
)

var today = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func TestNext(t *testing.T) {
	tests := []struct {
		name    string
		prev    models.StreakData
		hasPrev bool
		want    models.StreakData
	}{
		{"no prior data", models.StreakData{}, false, models.StreakData{Count: 1, LastVisitDate: "2026-03-14"}},
		{"yesterday continues", models.StreakData{Count: 4, LastVisitDate: "2026-03-13"}, true, models.StreakData{Count: 5, LastVisitDate: "2026-03-14"}},
		{"today unchanged", models.StreakData{Count: 4, LastVisitDate: "2026-03-14"}, true, models.StreakData{Count: 4, LastVisitDate: "2026-03-14"}},
		{"three days ago resets", models.StreakData{Count: 9, LastVisitDate: "2026-03-11"}, true, models.StreakData{Count: 1, LastVisitDate: "2026-03-14"}},
		{"future date resets", models.StreakData{Count: 9, LastVisitDate: "2026-03-20"}, true, models.StreakData{Count: 1, LastVisitDate: "2026-03-14"}},
		{"garbage date resets", models.StreakData{Count: 9, LastVisitDate: "someday"}, true, models.StreakData{Count: 1, LastVisitDate: "2026-03-14"}},
		{"legacy yesterday continues", models.StreakData{Count: 2, LastVisitDate: "Fri Mar 13 2026"}, true, models.StreakData{Count: 3, LastVisitDate: "2026-03-14"}},
		{"month boundary", models.StreakData{Count: 2, LastVisitDate: "2026-02-28"}, true, models.StreakData{Count: 1, LastVisitDate: "2026-03-14"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Next(tt.prev, tt.hasPrev, today, time.UTC)
			if got != tt.want {
				t.Errorf("Next = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNextAcrossMonthBoundary(t *testing.T) {
	march1 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	got := Next(models.StreakData{Count: 6, LastVisitDate: "2026-02-28"}, true, march1, time.UTC)
	if got.Count != 7 {
		t.Errorf("Expected streak to continue across month boundary, got %+v", got)
	}
}

func TestRecordVisitUpdatesStreakAndVisits(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	logger := activity.New(s, time.UTC)
	logger.SetClock(func() time.Time { return today })
	tracker := New(s, logger, time.UTC)
	tracker.SetClock(func() time.Time { return today })

	prev, _ := json.Marshal(models.StreakData{Count: 4, LastVisitDate: "2026-03-13"})
	s.Put(ctx, models.KeyStreakData, prev)

	got, err := tracker.RecordVisit(ctx)
	if err != nil {
		t.Fatalf("RecordVisit failed: %v", err)
	}
	if got.Count != 5 {
		t.Errorf("Expected count 5, got %d", got.Count)
	}

	got, _ = tracker.RecordVisit(ctx)
	if got.Count != 5 {
		t.Errorf("Expected second visit today to leave count at 5, got %d", got.Count)
	}

	day, _ := logger.Day(ctx, "2026-03-14")
	if day.Visits != 2 {
		t.Errorf("Expected 2 visits, got %d", day.Visits)
	}

	data, alive, err := tracker.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if !alive || data.Count != 5 {
		t.Errorf("Expected live streak of 5, got %+v alive=%v", data, alive)
	}
}

func TestCurrentStaleStreak(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	tracker := New(s, nil, time.UTC)
	tracker.SetClock(func() time.Time { return today })

	if _, alive, _ := tracker.Current(ctx); alive {
		t.Error("Expected no streak without data")
	}

	old, _ := json.Marshal(models.StreakData{Count: 12, LastVisitDate: "2026-03-01"})
	s.Put(ctx, models.KeyStreakData, old)
	data, alive, _ := tracker.Current(ctx)
	if alive {
		t.Error("Expected stale streak to be reported as not alive")
	}
	if data.Count != 12 {
		t.Errorf("Current must not modify the record, got %+v", data)
	}
}

func TestAlive(t *testing.T) {
	tracker := New(nil, nil, time.UTC)
	tracker.SetClock(func() time.Time { return today })

	tests := []struct {
		name string
		data models.StreakData
		want bool
	}{
		{"today", models.StreakData{Count: 3, LastVisitDate: "2026-03-14"}, true},
		{"yesterday", models.StreakData{Count: 3, LastVisitDate: "2026-03-13"}, true},
		{"gap", models.StreakData{Count: 3, LastVisitDate: "2026-03-12"}, false},
		{"future", models.StreakData{Count: 3, LastVisitDate: "2026-03-15"}, false},
		{"unreadable", models.StreakData{Count: 3, LastVisitDate: "soon"}, false},
	}
	for _, tt := range tests {
		if got := tracker.Alive(tt.data); got != tt.want {
			t.Errorf("%s: Alive = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCorruptRecordResets(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	s.Put(ctx, models.KeyStreakData, []byte(`"not json at all`))
	tracker := New(s, nil, time.UTC)
	tracker.SetClock(func() time.Time { return today })

	got, err := tracker.RecordVisit(ctx)
	if err != nil {
		t.Fatalf("RecordVisit failed: %v", err)
	}
	if got.Count != 1 || got.LastVisitDate != "2026-03-14" {
		t.Errorf("Expected reset streak, got %+v", got)
	}
}

func newTestStore(t *testing.T) *store.Store {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}
