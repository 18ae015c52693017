package tui

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fentz26/cbclipper/internal/events"
	"github.com/fentz26/cbclipper/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the CB Clipper daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no timeout; the event stream stays open.
	streamClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
		streamClient: &http.Client{},
	}
}

// StartRequest is the body of a timer start.
type StartRequest struct {
	Mode            models.Mode            `json:"mode"`
	Type            models.TimerType       `json:"type"`
	DurationMinutes int                    `json:"durationMinutes,omitempty"`
	SessionDetails  *models.SessionDetails `json:"sessionDetails,omitempty"`
}

// Timer fetches the current timer with its live values.
func (c *Client) Timer(ctx context.Context) (models.TimerView, error) {
	var view models.TimerView
	err := c.getJSON(ctx, "/timer", &view)
	return view, err
}

// Start starts or resumes the timer.
func (c *Client) Start(req StartRequest) (models.TimerView, error) {
	var view models.TimerView
	err := c.postJSON("/timer/start", req, &view)
	return view, err
}

// Resume restarts a paused timer with its own mode and type.
func (c *Client) Resume(current models.TimerState) (models.TimerView, error) {
	return c.Start(StartRequest{Mode: current.Mode, Type: current.Type})
}

// Pause pauses a running timer.
func (c *Client) Pause() (models.TimerView, error) {
	var view models.TimerView
	err := c.postJSON("/timer/pause", struct{}{}, &view)
	return view, err
}

// Stop finalizes the current run.
func (c *Client) Stop(save bool) (models.TimerView, error) {
	var view models.TimerView
	err := c.postJSON("/timer/stop", map[string]bool{"save": save}, &view)
	return view, err
}

// Day fetches the activity for a date. An empty date means today.
func (c *Client) Day(ctx context.Context, date string) (models.DayRecord, error) {
	if date == "" {
		date = models.DayKey(time.Now(), nil)
	}
	var day models.DayRecord
	err := c.getJSON(ctx, "/activity?date="+url.QueryEscape(date), &day)
	return day, err
}

// ActivityLog fetches every day record.
func (c *Client) ActivityLog(ctx context.Context) (models.ActivityLog, error) {
	var log models.ActivityLog
	err := c.getJSON(ctx, "/activity", &log)
	return log, err
}

// Streak fetches the visit streak.
func (c *Client) Streak(ctx context.Context) (models.StreakView, error) {
	var view models.StreakView
	err := c.getJSON(ctx, "/streak", &view)
	return view, err
}

// Visit records a visit.
func (c *Client) Visit() (models.StreakView, error) {
	var view models.StreakView
	err := c.postJSON("/visit", struct{}{}, &view)
	return view, err
}

// Events opens the daemon's event stream. The channel is closed when the
// stream ends or ctx is done.
func (c *Client) Events(ctx context.Context) (<-chan events.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("API error: event stream status %d", resp.StatusCode)
	}

	ch := make(chan events.Event, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var e events.Event
			if err := json.Unmarshal(line, &e); err != nil {
				continue
			}
			select {
			case ch <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// CheckHealth checks if the daemon is healthy
func (c *Client) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var health struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, err
	}

	return health.OK, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s", string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) postJSON(path string, data interface{}, v interface{}) error {
	body, err := c.post(path, data)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func (c *Client) post(path string, data interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	return body, nil
}
