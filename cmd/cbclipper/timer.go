package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/charmbracelet/huh"
	"github.com/fentz26/cbclipper/internal/config"
	"github.com/fentz26/cbclipper/internal/models"
	"github.com/fentz26/cbclipper/internal/tui"
	"github.com/fentz26/cbclipper/internal/watch"
	"github.com/spf13/cobra"
)

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Control the timer",
}

var timerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a countdown or stopwatch",
	RunE:  runTimerStart,
}

var timerPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the running timer",
	RunE:  runTimerPause,
}

var timerResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused timer",
	RunE:  runTimerResume,
}

var timerStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the timer and log the time spent",
	RunE:  runTimerStop,
}

var timerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the timer",
	RunE:  runTimerStatus,
}

var (
	startMode    string
	startType    string
	startMinutes int
	startName    string
	startTag     string
	startAsk     bool
	stopSave     bool
	statusWatch  bool
)

func init() {
	timerCmd.AddCommand(timerStartCmd, timerPauseCmd, timerResumeCmd, timerStopCmd, timerStatusCmd)

	timerStartCmd.Flags().StringVar(&startMode, "mode", string(models.ModeFocus), "Session mode (focus, break)")
	timerStartCmd.Flags().StringVar(&startType, "type", string(models.TypeCountdown), "Timer type (timer, stopwatch)")
	timerStartCmd.Flags().IntVar(&startMinutes, "minutes", 0, "Countdown length in minutes (default from config)")
	timerStartCmd.Flags().StringVar(&startName, "name", "", "Session name")
	timerStartCmd.Flags().StringVar(&startTag, "tag", "", "Session tag")
	timerStartCmd.Flags().BoolVar(&startAsk, "ask", false, "Prompt for the session details")

	timerStopCmd.Flags().BoolVar(&stopSave, "save", true, "Log a stopwatch run (countdowns are always logged)")

	timerStatusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Keep following the timer")
}

// loadClientConfig returns the user's settings, or the defaults if they
// cannot be read.
func loadClientConfig() *config.Config {
	cfg, err := config.LoadFromHome()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		return config.DefaultConfig()
	}
	return cfg
}

func runTimerStart(cmd *cobra.Command, args []string) error {
	if startAsk {
		if err := askSession(); err != nil {
			return err
		}
	}

	mode := models.Mode(startMode)
	typ := models.TimerType(startType)
	if !mode.Valid() {
		return fmt.Errorf("invalid mode %q: want focus or break", startMode)
	}
	if !typ.Valid() {
		return fmt.Errorf("invalid type %q: want timer or stopwatch", startType)
	}

	req := tui.StartRequest{Mode: mode, Type: typ, DurationMinutes: startMinutes}
	if req.DurationMinutes <= 0 && typ == models.TypeCountdown {
		req.DurationMinutes = loadClientConfig().DefaultMinutes(mode)
	}
	if startName != "" || startTag != "" {
		details := models.DefaultSessionDetails()
		details.Name = startName
		if startTag != "" {
			details.Tag = startTag
		}
		req.SessionDetails = &details
	}

	var view models.TimerView
	if err := apiPost("/timer/start", req, &view); err != nil {
		return err
	}
	printTimer(view)
	return nil
}

// askSession fills the start flags from an interactive form.
func askSession() error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Mode").Options(
				huh.NewOption("Focus", string(models.ModeFocus)),
				huh.NewOption("Break", string(models.ModeBreak)),
			).Value(&startMode),
			huh.NewSelect[string]().Title("Type").Options(
				huh.NewOption("Countdown", string(models.TypeCountdown)),
				huh.NewOption("Stopwatch", string(models.TypeStopwatch)),
			).Value(&startType),
			huh.NewInput().Title("Session Name").Value(&startName),
			huh.NewInput().Title("Tag").Placeholder(models.DefaultTag).Value(&startTag),
		),
	).WithShowHelp(true).WithShowErrors(true)

	return form.Run()
}

func runTimerPause(cmd *cobra.Command, args []string) error {
	var view models.TimerView
	if err := apiPost("/timer/pause", struct{}{}, &view); err != nil {
		return err
	}
	printTimer(view)
	return nil
}

func runTimerResume(cmd *cobra.Command, args []string) error {
	var current models.TimerView
	if err := apiGet("/timer", &current); err != nil {
		return err
	}
	if current.State.Status() != models.TimerPaused {
		fmt.Printf("Timer is %s, nothing to resume\n", current.State.Status())
		return nil
	}

	req := tui.StartRequest{Mode: current.State.Mode, Type: current.State.Type}
	var view models.TimerView
	if err := apiPost("/timer/start", req, &view); err != nil {
		return err
	}
	printTimer(view)
	return nil
}

func runTimerStop(cmd *cobra.Command, args []string) error {
	var view models.TimerView
	if err := apiPost("/timer/stop", map[string]bool{"save": stopSave}, &view); err != nil {
		return err
	}
	printTimer(view)
	return nil
}

func runTimerStatus(cmd *cobra.Command, args []string) error {
	if !statusWatch {
		var view models.TimerView
		if err := apiGet("/timer", &view); err != nil {
			return err
		}
		printTimer(view)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadClientConfig()
	w := watch.New(tui.NewClient(apiAddr), cfg.Poll.Interval)
	w.Run(ctx, func(u watch.Update) {
		switch {
		case u.Completed:
			fmt.Printf("\a\n%s session complete\n", u.Mode)
		case u.Err != nil:
			fmt.Printf("\r%-40s", "daemon unreachable")
		default:
			fmt.Printf("\r%-9s %-5s %-9s %s   ",
				u.View.State.Status(),
				u.View.State.Mode,
				u.View.State.Type,
				tui.FormatClock(u.View.DisplaySeconds))
		}
	})
	fmt.Println()
	return nil
}

func printTimer(view models.TimerView) {
	s := view.State
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Status:\t%s\n", s.Status())
	fmt.Fprintf(w, "Mode:\t%s (%s)\n", s.Mode, s.Type)

	label := "Remaining:"
	if s.Type == models.TypeStopwatch {
		label = "Elapsed:"
	}
	fmt.Fprintf(w, "%s\t%s\n", label, tui.FormatClock(view.DisplaySeconds))
	if s.Type == models.TypeCountdown {
		fmt.Fprintf(w, "Duration:\t%d min\n", s.DurationMinutes)
	}
	if s.Session.Name != "" {
		fmt.Fprintf(w, "Session:\t%s [%s]\n", s.Session.Name, s.Session.Tag)
	} else {
		fmt.Fprintf(w, "Tag:\t%s\n", s.Session.Tag)
	}
	w.Flush()
}
