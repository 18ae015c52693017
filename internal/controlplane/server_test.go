package controlplane

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fentz26/cbclipper/internal/activity"
	"github.com/fentz26/cbclipper/internal/audit"
	"github.com/fentz26/cbclipper/internal/events"
	"github.com/fentz26/cbclipper/internal/models"
	"github.com/fentz26/cbclipper/internal/scheduler"
	"github.com/fentz26/cbclipper/internal/store"
	"github.com/fentz26/cbclipper/internal/streak"
	"github.com/fentz26/cbclipper/internal/timer"
)

func TestHealthEndpoint_OK(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()

	// Create a test request
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	// Call the handler
	s.handleHealth(w, req)

	// Check response
	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if !health.OK {
		t.Error("Expected health.OK to be true")
	}
	if health.DB != "ok" {
		t.Errorf("Expected DB status 'ok', got '%s'", health.DB)
	}
	if health.Version == "" {
		t.Error("Expected version to be set")
	}
	if health.Time == "" {
		t.Error("Expected time to be set")
	}
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint_DBError(t *testing.T) {
	server, st, _ := newTestServer(t)

	// Close the store to simulate DB error
	st.Close()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	server.handleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if health.OK {
		t.Error("Expected health.OK to be false when DB is down")
	}
	if health.DB == "ok" {
		t.Error("Expected DB status to indicate error")
	}
}

func TestMessageDispatch(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()
	h := s.Handler()

	tests := []struct {
		name    string
		body    string
		status  int
		success bool
	}{
		{"start", `{"action":"TIMER_START","payload":{"mode":"focus","type":"timer","durationMinutes":25}}`, http.StatusOK, true},
		{"start while running", `{"action":"TIMER_START","payload":{"mode":"break","type":"timer"}}`, http.StatusOK, true},
		{"pause", `{"action":"TIMER_PAUSE"}`, http.StatusOK, true},
		{"pause while paused", `{"action":"TIMER_PAUSE","payload":{}}`, http.StatusOK, true},
		{"stop", `{"action":"TIMER_STOP","payload":{"save":true}}`, http.StatusOK, true},
		{"visit", `{"action":"RECORD_VISIT"}`, http.StatusOK, true},
		{"unknown action", `{"action":"CLIP_SAVE"}`, http.StatusBadRequest, false},
		{"bad payload", `{"action":"TIMER_STOP","payload":{"save":"yes"}}`, http.StatusBadRequest, false},
		{"bad mode", `{"action":"TIMER_START","payload":{"mode":"nap","type":"timer"}}`, http.StatusBadRequest, false},
		{"invalid json", `{"action":`, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			var resp MessageResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Success != tt.success {
				t.Errorf("Expected success=%v, got %+v", tt.success, resp)
			}
			if !tt.success && resp.Error == "" {
				t.Error("Expected an error message")
			}
		})
	}
}

func TestLegacyDurationField(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()
	h := s.Handler()

	view := postJSON[models.TimerView](t, h, "/timer/start", `{"mode":"break","type":"timer","duration":5}`)
	if view.State.DurationMinutes != 5 || view.DisplaySeconds != 300 {
		t.Errorf("Expected a 5 minute break, got %d minutes / %ds", view.State.DurationMinutes, view.DisplaySeconds)
	}
}

func TestTimerEndpointsRoundTrip(t *testing.T) {
	s, st, cleanup := newTestServer(t)
	defer cleanup()
	h := s.Handler()

	view := postJSON[models.TimerView](t, h, "/timer/start", `{"mode":"focus","type":"stopwatch","sessionDetails":{"name":"Notes","tag":"Go"}}`)
	if view.State.Status() != models.TimerRunning || view.State.Type != models.TypeStopwatch {
		t.Fatalf("Expected running stopwatch, got %+v", view.State)
	}

	req := httptest.NewRequest(http.MethodGet, "/timer", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var got models.TimerView
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode timer: %v", err)
	}
	if got.State.Session.Name != "Notes" || got.State.Token() != view.State.Token() {
		t.Errorf("Unexpected timer %+v", got.State)
	}

	view = postJSON[models.TimerView](t, h, "/timer/pause", "")
	if view.State.Status() != models.TimerPaused {
		t.Errorf("Expected paused, got %s", view.State.Status())
	}

	view = postJSON[models.TimerView](t, h, "/timer/stop", "")
	if view.State.Status() != models.TimerIdle {
		t.Errorf("Expected idle, got %s", view.State.Status())
	}

	entries, err := st.ListAudit(10)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("Expected 3 audit entries, got %d", len(entries))
	}
}

func TestActivityAndStreakEndpoints(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()
	h := s.Handler()

	streakView := postJSON[models.StreakView](t, h, "/visit", "")
	if streakView.Count != 1 || !streakView.Active {
		t.Errorf("Expected fresh active streak, got %+v", streakView)
	}

	req := httptest.NewRequest(http.MethodGet, "/streak", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var raw map[string]interface{}
	json.NewDecoder(w.Body).Decode(&raw)
	if raw["count"] != float64(1) || raw["active"] != true || raw["lastVisit"] == nil {
		t.Errorf("Unexpected streak body %v", raw)
	}
	if raw["active"] != streakView.Active {
		t.Errorf("Visit reported active=%v but streak reports %v", streakView.Active, raw["active"])
	}

	today := models.DayKey(time.Now(), time.UTC)
	req = httptest.NewRequest(http.MethodGet, "/activity?date="+today, nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var day models.DayRecord
	if err := json.NewDecoder(w.Body).Decode(&day); err != nil {
		t.Fatalf("Failed to decode day: %v", err)
	}
	if day.Visits != 1 {
		t.Errorf("Expected 1 visit, got %d", day.Visits)
	}

	req = httptest.NewRequest(http.MethodGet, "/activity?date=2020-01-01", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"sessions":[]`) {
		t.Errorf("Expected an empty day record, got %d %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/activity?date=yesterday", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad date, got %d", w.Code)
	}
}

func TestEventStream(t *testing.T) {
	s, _, cleanup := newTestServer(t)
	defer cleanup()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to open event stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	go func() {
		body := `{"mode":"focus","type":"timer","durationMinutes":25}`
		if resp, err := http.Post(ts.URL+"/timer/start", "application/json", strings.NewReader(body)); err == nil {
			resp.Body.Close()
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e events.Event
		if err := json.Unmarshal(line, &e); err != nil {
			t.Fatalf("Bad event line %q: %v", line, err)
		}
		if e.Type == events.StateChanged && e.Key == models.KeyTimerState {
			return
		}
	}
	t.Fatal("Did not observe a timer state change")
}

func postJSON[T any](t *testing.T, h http.Handler, path, body string) T {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var v T
	if w.Code != http.StatusOK {
		t.Fatalf("POST %s: status %d: %s", path, w.Code, w.Body.String())
	}
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("POST %s: decode: %v", path, err)
	}
	return v
}

func newTestServer(t *testing.T) (*Server, *store.Store, func()) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	st, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	bus := events.NewBus()
	st.SetBus(bus)

	sched := scheduler.New(st, scheduler.DefaultConfig())
	logger := activity.New(st, time.UTC)
	tracker := streak.New(st, logger, time.UTC)
	engine := timer.New(st, sched, logger, bus)

	service := NewService(engine, logger, tracker, audit.NewWriter(st))
	server := NewServer(service, st, "127.0.0.1:0")
	server.SetBus(bus)

	cleanup := func() {
		sched.Cancel(context.Background())
		st.Close()
	}

	return server, st, cleanup
}
