package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/cbclipper/internal/store"
)

// recordingHandler collects the tokens it is handed.
type recordingHandler struct {
	mu     sync.Mutex
	tokens []string
	fired  chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{fired: make(chan string, 16)}
}

func (h *recordingHandler) handle(ctx context.Context, token string) (bool, error) {
	h.mu.Lock()
	h.tokens = append(h.tokens, token)
	h.mu.Unlock()
	h.fired <- token
	return true, nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tokens)
}

func TestArmFiresOnTime(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	h := newRecordingHandler()
	sch := New(s, DefaultConfig())
	if err := sch.Start(h.handle); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sch.Stop()

	if err := sch.Arm(context.Background(), time.Now().Add(50*time.Millisecond), "run-1"); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}

	select {
	case token := <-h.fired:
		if token != "run-1" {
			t.Errorf("Expected run-1, got %s", token)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Alarm did not fire")
	}

	pending, _ := sch.Pending(context.Background())
	if pending != nil {
		t.Errorf("Expected alarm row to be claimed, got %+v", pending)
	}
}

func TestArmReplacesPendingAlarm(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	h := newRecordingHandler()
	sch := New(s, DefaultConfig())
	sch.Start(h.handle)
	defer sch.Stop()

	sch.Arm(ctx, time.Now().Add(time.Hour), "run-1")
	sch.Arm(ctx, time.Now().Add(30*time.Millisecond), "run-2")

	select {
	case token := <-h.fired:
		if token != "run-2" {
			t.Errorf("Expected run-2, got %s", token)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Alarm did not fire")
	}

	time.Sleep(50 * time.Millisecond)
	if h.count() != 1 {
		t.Errorf("Expected exactly one fire, got %d", h.count())
	}
}

func TestCancelPreventsFire(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	h := newRecordingHandler()
	sch := New(s, DefaultConfig())
	sch.Start(h.handle)
	defer sch.Stop()

	sch.Arm(ctx, time.Now().Add(30*time.Millisecond), "run-1")
	if err := sch.Cancel(ctx); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if err := sch.Cancel(ctx); err != nil {
		t.Errorf("Second cancel must be a no-op, got %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	sch.Sweep()
	if h.count() != 0 {
		t.Errorf("Expected no fires after cancel, got %d", h.count())
	}
}

func TestPendingAlarmSurvivesRestart(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	first := New(s, DefaultConfig())
	first.Start(newRecordingHandler().handle)
	first.Arm(ctx, time.Now().Add(100*time.Millisecond), "run-1")
	first.Stop()

	h := newRecordingHandler()
	second := New(s, DefaultConfig())
	if err := second.Start(h.handle); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer second.Stop()

	select {
	case token := <-h.fired:
		if token != "run-1" {
			t.Errorf("Expected reloaded run-1, got %s", token)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Reloaded alarm did not fire")
	}
}

func TestSweepDeliversOverdueAlarmOnce(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	// Written directly, as if armed by a daemon that has since exited.
	if err := s.ArmAlarm(ctx, DefaultConfig().AlarmName, "run-1", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("ArmAlarm failed: %v", err)
	}

	h := newRecordingHandler()
	sch := New(s, DefaultConfig())
	sch.handler = h.handle

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sch.Sweep()
		}()
	}
	wg.Wait()

	if h.count() != 1 {
		t.Errorf("Expected one delivery, got %d", h.count())
	}
}

func TestFailedDeliveryIsRetried(t *testing.T) {
	tests := []struct {
		name        string
		current     bool
		wantPending bool
		wantCalls   int
	}{
		{"handler did not apply", false, true, 2},
		{"handler applied but logging failed", true, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			defer s.Close()
			ctx := context.Background()

			if err := s.ArmAlarm(ctx, DefaultConfig().AlarmName, "run-1", time.Now().Add(-time.Minute)); err != nil {
				t.Fatalf("ArmAlarm failed: %v", err)
			}

			calls := 0
			sch := New(s, DefaultConfig())
			sch.handler = func(ctx context.Context, token string) (bool, error) {
				calls++
				if calls == 1 {
					return tt.current, errors.New("database is locked")
				}
				return true, nil
			}

			sch.Sweep()
			pending, err := sch.Pending(ctx)
			if err != nil {
				t.Fatalf("Pending failed: %v", err)
			}
			if (pending != nil) != tt.wantPending {
				t.Fatalf("Expected pending=%v after a failed delivery, got %+v", tt.wantPending, pending)
			}
			if pending != nil && pending.Token != "run-1" {
				t.Errorf("Expected run-1 requeued, got %s", pending.Token)
			}

			sch.Sweep()
			if calls != tt.wantCalls {
				t.Errorf("Expected %d handler calls, got %d", tt.wantCalls, calls)
			}
			if pending, _ := sch.Pending(ctx); pending != nil {
				t.Errorf("Expected nothing pending after the retry, got %+v", pending)
			}
		})
	}
}

func TestRequeueYieldsToNewerArming(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.ArmAlarm(ctx, DefaultConfig().AlarmName, "run-1", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("ArmAlarm failed: %v", err)
	}

	sch := New(s, DefaultConfig())
	sch.handler = func(ctx context.Context, token string) (bool, error) {
		if err := s.ArmAlarm(ctx, DefaultConfig().AlarmName, "run-2", time.Now().Add(time.Hour)); err != nil {
			t.Errorf("ArmAlarm failed: %v", err)
		}
		return false, errors.New("database is locked")
	}

	sch.Sweep()
	if pending, _ := sch.Pending(ctx); pending == nil || pending.Token != "run-2" {
		t.Errorf("Expected run-2 to stay pending, got %+v", pending)
	}
}

func TestFireAfterStopIsDropped(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	h := newRecordingHandler()
	sch := New(s, DefaultConfig())
	if err := sch.Start(h.handle); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.ArmAlarm(ctx, DefaultConfig().AlarmName, "run-1", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("ArmAlarm failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sch.Stop()
	}()
	go func() {
		defer wg.Done()
		sch.fire("run-1")
	}()
	wg.Wait()

	sch.fire("run-1")
	pending, _ := sch.Pending(ctx)
	switch h.count() {
	case 0:
		if pending == nil {
			t.Error("Expected an undelivered alarm to stay pending")
		}
	case 1:
		if pending != nil {
			t.Errorf("Expected a delivered alarm to be claimed, got %+v", pending)
		}
	default:
		t.Errorf("Expected at most one delivery, got %d", h.count())
	}
}

func TestSweepSpec(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     string
	}{
		{15 * time.Second, "@every 15s"},
		{time.Minute, "@every 1m0s"},
		{0, "@every 15s"},
	}
	for _, tt := range tests {
		cfg := &Config{SweepInterval: tt.interval}
		if got := cfg.sweepSpec(); got != tt.want {
			t.Errorf("sweepSpec(%v) = %q, want %q", tt.interval, got, tt.want)
		}
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
