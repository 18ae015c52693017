package main

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fentz26/cbclipper/internal/config"
	"github.com/fentz26/cbclipper/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive timer",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	if !isDaemonRunning() {
		fmt.Println("⚡ CB Clipper daemon not running. Starting background service...")
		if err := startDaemon(); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
	}

	cfg := loadClientConfig()
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	app := tui.New(tui.Options{
		APIAddr:      apiAddr,
		FocusMinutes: cfg.Defaults.FocusMinutes,
		BreakMinutes: cfg.Defaults.BreakMinutes,
		PollInterval: cfg.Poll.Interval,
		Location:     loc,
	})
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isDaemonRunning() bool {
	client := &http.Client{Timeout: 500 * time.Millisecond}
	health, err := CheckHealth(client)
	return err == nil && health.OK
}

func startDaemon() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(config.Dir(), "daemon.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer logFile.Close()

	// Start "cbclipper daemon" in background, logging to ~/.cbclipper/daemon.log
	cmd := exec.Command(exe, "daemon")
	detach(cmd)
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		return err
	}
	// The daemon is not waited on.
	cmd.Process.Release()

	// Wait for it to become ready
	fmt.Print("   Waiting for daemon...")
	for i := 0; i < 20; i++ { // Wait up to 5 seconds
		if isDaemonRunning() {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("daemon started but API not reachable at %s", apiAddr)
}
