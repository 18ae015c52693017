package main

import (
	"fmt"
	"os"

	"github.com/fentz26/cbclipper/internal/controlplane"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cbclipper",
	Short: "CB Clipper - focus timer and activity tracker",
	Long: `CB Clipper runs a focus/break timer in a background daemon and keeps a
per-day activity log and a visit streak. The CLI and the terminal UI are
clients of the daemon's local HTTP API.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("cbclipper", controlplane.Version)
	},
}

var (
	apiAddr string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7466", "API server address")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(timerCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(streakCmd)
	rootCmd.AddCommand(visitCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
