// Package tui provides the interactive terminal timer for CB Clipper.
package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/cbclipper/internal/models"
	"github.com/fentz26/cbclipper/internal/watch"
)

var (
	// Colors
	focusColor   = lipgloss.Color("#7C3AED")
	breakColor   = lipgloss.Color("#06B6D4")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(focusColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(1, 4).
			Border(lipgloss.RoundedBorder())

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)

	liveStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

const progressWidth = 30

// Options configures the timer UI.
type Options struct {
	APIAddr      string
	FocusMinutes int
	BreakMinutes int
	PollInterval time.Duration
	// Location keys today's summary. Nil means local time.
	Location     *time.Location
}

// App is the main TUI application model.
type App struct {
	client *Client
	keys   keyMap
	help   help.Model

	focusMinutes int
	breakMinutes int
	pollInterval time.Duration
	loc          *time.Location

	view     models.TimerView
	haveView bool
	online   bool
	live     bool
	day      models.DayRecord
	streak   models.StreakView
	message  string

	width  int
	height int

	updates chan watch.Update
	bell    io.Writer
	now     func() time.Time
}

// New creates a new TUI application.
func New(opts Options) *App {
	if opts.FocusMinutes <= 0 {
		opts.FocusMinutes = models.DefaultDurationMinutes
	}
	if opts.BreakMinutes <= 0 {
		opts.BreakMinutes = 5
	}
	return &App{
		client:       NewClient(opts.APIAddr),
		keys:         newKeyMap(),
		help:         help.New(),
		focusMinutes: opts.FocusMinutes,
		breakMinutes: opts.BreakMinutes,
		pollInterval: opts.PollInterval,
		loc:          opts.Location,
		updates:      make(chan watch.Update, 8),
		bell:         os.Stderr,
		now:          time.Now,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := watch.New(a.client, a.pollInterval)
	go w.Run(ctx, func(u watch.Update) {
		select {
		case a.updates <- u:
		case <-ctx.Done():
		}
	})

	go a.client.Visit()

	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Messages

type watchMsg watch.Update

type actionMsg struct {
	view models.TimerView
	note string
}

type summaryMsg struct {
	day    models.DayRecord
	streak models.StreakView
}

type errMsg struct{ err error }

type tickMsg time.Time

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.listen(),
		a.fetchSummary(),
		a.tickCmd(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a, a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width

	case watchMsg:
		cmds := []tea.Cmd{a.listen()}
		switch {
		case msg.Completed:
			a.message = fmt.Sprintf("%s complete", modeLabel(msg.Mode))
			cmds = append(cmds, a.ring(), a.fetchSummary())
		case msg.Err != nil:
			// Keep the last snapshot on screen.
			a.online = false
			a.message = "Error: " + msg.Err.Error()
		default:
			if a.haveView && a.view.State.Status() != msg.View.State.Status() {
				cmds = append(cmds, a.fetchSummary())
			}
			if !a.online && strings.HasPrefix(a.message, "Error") {
				a.message = ""
			}
			a.view = msg.View
			a.haveView = true
			a.online = true
		}
		a.live = msg.Live
		return a, tea.Batch(cmds...)

	case actionMsg:
		a.view = msg.view
		a.haveView = true
		a.online = true
		a.message = msg.note
		return a, a.fetchSummary()

	case summaryMsg:
		a.day = msg.day
		a.streak = msg.streak

	case tickMsg:
		return a, a.tickCmd()

	case errMsg:
		a.message = "Error: " + msg.err.Error()
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return tea.Quit
	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
	case key.Matches(msg, a.keys.Focus):
		return a.start(StartRequest{Mode: models.ModeFocus, Type: models.TypeCountdown, DurationMinutes: a.focusMinutes})
	case key.Matches(msg, a.keys.Break):
		return a.start(StartRequest{Mode: models.ModeBreak, Type: models.TypeCountdown, DurationMinutes: a.breakMinutes})
	case key.Matches(msg, a.keys.Stopwatch):
		return a.start(StartRequest{Mode: models.ModeFocus, Type: models.TypeStopwatch})
	case key.Matches(msg, a.keys.Resume):
		if a.view.State.Status() != models.TimerPaused {
			a.message = "Nothing to resume"
			return nil
		}
		state := a.view.State
		return a.action("Resumed", func() (models.TimerView, error) {
			return a.client.Resume(state)
		})
	case key.Matches(msg, a.keys.Pause):
		return a.action("Paused", a.client.Pause)
	case key.Matches(msg, a.keys.Stop):
		return a.action("Stopped", func() (models.TimerView, error) {
			return a.client.Stop(true)
		})
	case key.Matches(msg, a.keys.Discard):
		return a.action("Discarded", func() (models.TimerView, error) {
			return a.client.Stop(false)
		})
	}
	return nil
}

func (a *App) start(req StartRequest) tea.Cmd {
	return a.action("Started", func() (models.TimerView, error) {
		return a.client.Start(req)
	})
}

func (a *App) action(note string, fn func() (models.TimerView, error)) tea.Cmd {
	return func() tea.Msg {
		view, err := fn()
		if err != nil {
			return errMsg{err}
		}
		return actionMsg{view: view, note: note}
	}
}

// listen waits for the next watcher update.
func (a *App) listen() tea.Cmd {
	return func() tea.Msg {
		return watchMsg(<-a.updates)
	}
}

func (a *App) fetchSummary() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
		defer cancel()

		day, err := a.client.Day(ctx, models.DayKey(a.now(), a.loc))
		if err != nil {
			return errMsg{err}
		}
		streak, err := a.client.Streak(ctx)
		if err != nil {
			return errMsg{err}
		}
		return summaryMsg{day: day, streak: streak}
	}
}

func (a *App) ring() tea.Cmd {
	return func() tea.Msg {
		fmt.Fprint(a.bell, "\a")
		return nil
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	conn := offlineStyle.Render("○ OFFLINE")
	switch {
	case a.online && a.live:
		conn = liveStyle.Render("● LIVE")
	case a.online:
		conn = lipgloss.NewStyle().Foreground(warningColor).Render("● POLLING")
	}
	b.WriteString(titleStyle.Render("CB Clipper") + "  " + conn + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 40)) + "\n\n")

	if !a.haveView {
		b.WriteString("  Connecting to daemon...\n")
	} else {
		b.WriteString(a.renderTimer())
	}

	b.WriteString("\n")
	b.WriteString(panelStyle.Render(a.renderSummary()))
	b.WriteString("\n")

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString(msgStyle.Render(a.message))
	}
	b.WriteString("\n")
	b.WriteString(a.help.View(a.keys))
	b.WriteString("\n")

	status := fmt.Sprintf(" %s | %s", strings.ToUpper(string(a.view.State.Status())), a.view.State.Session.Tag)
	if !a.haveView {
		status = " waiting"
	}
	b.WriteString(statusBarStyle.Width(max(a.width, 40)).Render(status))

	return b.String()
}

func (a *App) renderTimer() string {
	s := a.view.State
	seconds := s.DisplaySeconds(a.now())

	color := focusColor
	if s.Mode == models.ModeBreak {
		color = breakColor
	}
	kind := "COUNTDOWN"
	if s.Type == models.TypeStopwatch {
		kind = "STOPWATCH"
	}

	var b strings.Builder
	header := lipgloss.NewStyle().Foreground(color).Bold(true).Render(strings.ToUpper(modeLabel(s.Mode)))
	b.WriteString(fmt.Sprintf("  %s · %s  %s\n", header, kind, formatStatus(s.Status())))
	b.WriteString(clockStyle.BorderForeground(color).Foreground(color).Render(FormatClock(seconds)) + "\n")

	label := s.Session.Tag
	if s.Session.Name != "" {
		label = s.Session.Name + " · " + s.Session.Tag
	}
	b.WriteString("  " + mutedStyle.Render(label) + "\n")

	if s.Type == models.TypeCountdown && s.DurationSeconds() > 0 {
		done := s.DurationSeconds() - seconds
		b.WriteString("  " + renderProgress(done, s.DurationSeconds(), progressWidth, color) + "\n")
	}
	return b.String()
}

func (a *App) renderSummary() string {
	streak := fmt.Sprintf("Streak: %d", a.streak.Count)
	if a.streak.Count == 1 {
		streak += " day"
	} else {
		streak += " days"
	}
	if !a.streak.Active {
		streak = mutedStyle.Render(streak)
	}
	return fmt.Sprintf("Today  Focus %s · Break %s · Sessions %d    %s",
		formatDuration(time.Duration(a.day.FocusSeconds)*time.Second),
		formatDuration(time.Duration(a.day.BreakSeconds)*time.Second),
		len(a.day.Sessions),
		streak)
}

func formatStatus(status models.TimerStatus) string {
	switch status {
	case models.TimerRunning:
		return lipgloss.NewStyle().Foreground(successColor).Render("▶ running")
	case models.TimerPaused:
		return lipgloss.NewStyle().Foreground(warningColor).Render("⏸ paused")
	case models.TimerCompleted:
		return lipgloss.NewStyle().Foreground(successColor).Bold(true).Render("✓ done")
	default:
		return mutedStyle.Render("idle")
	}
}

func modeLabel(m models.Mode) string {
	switch m {
	case models.ModeBreak:
		return "Break"
	default:
		return "Focus"
	}
}

// FormatClock renders seconds as MM:SS, or H:MM:SS past an hour.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, (seconds/60)%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func renderProgress(done, total, width int, color lipgloss.Color) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	if done < 0 {
		done = 0
	}
	if done > total {
		done = total
	}
	filled := done * width / total
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3d%%", bar, done*100/total)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}
