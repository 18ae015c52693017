package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/cbclipper/internal/activity"
	"github.com/fentz26/cbclipper/internal/alerts"
	"github.com/fentz26/cbclipper/internal/alerts/localexec"
	"github.com/fentz26/cbclipper/internal/audit"
	"github.com/fentz26/cbclipper/internal/config"
	"github.com/fentz26/cbclipper/internal/controlplane"
	"github.com/fentz26/cbclipper/internal/events"
	"github.com/fentz26/cbclipper/internal/models"
	"github.com/fentz26/cbclipper/internal/scheduler"
	"github.com/fentz26/cbclipper/internal/store"
	"github.com/fentz26/cbclipper/internal/streak"
	"github.com/fentz26/cbclipper/internal/timer"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the CB Clipper daemon",
	Long:  `Starts the daemon that owns the timer, fires completion alarms and serves the HTTP API.`,
	RunE:  runDaemon,
}

func init() {
	defaults := config.DefaultConfig()

	daemonCmd.Flags().StringVar(&listenAddr, "listen", defaults.Listen, "Listen address for the API server")
	daemonCmd.Flags().StringVar(&dbPath, "db", defaults.DBPath, "Path to SQLite database")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting CB Clipper daemon...")

	cfg, err := config.LoadFromHome()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen = listenAddr
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = dbPath
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Initialize store
	s, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	bus := events.NewBus()
	s.SetBus(bus)

	initial, err := json.Marshal(models.DefaultTimerState())
	if err != nil {
		s.Close()
		return err
	}
	created, err := s.EnsureRecord(context.Background(), models.KeyTimerState, initial)
	if err != nil {
		s.Close()
		return fmt.Errorf("initialize timer state: %w", err)
	}
	if created {
		log.Println("Created initial timer state")
	}

	// Initialize components
	logger := activity.New(s, loc)
	tracker := streak.New(s, logger, loc)

	schedulerCfg := scheduler.DefaultConfig()
	schedulerCfg.SweepInterval = cfg.Alarm.SweepInterval
	sched := scheduler.New(s, schedulerCfg)
	engine := timer.New(s, sched, logger, bus)

	if err := sched.Start(engine.Complete); err != nil {
		s.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Alert.Enabled {
		notifier := localexec.New(cfg.Alert.Command, cfg.Alert.Args)
		if cfg.Alert.Command != "" && !localexec.IsAllowed(cfg.Alert.Command) {
			log.Printf("Warning: alert command %q is not allowed, alerts disabled", cfg.Alert.Command)
		} else {
			go alerts.NewDispatcher(bus, notifier).Run(ctx)
		}
	}

	// Create service and server
	service := controlplane.NewService(engine, logger, tracker, audit.NewWriter(s))
	server := controlplane.NewServer(service, s, cfg.Listen)
	server.SetBus(bus)

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			sched.Stop()
			s.Close()
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	cancel()
	sched.Stop()

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
