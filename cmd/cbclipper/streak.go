package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fentz26/cbclipper/internal/models"
	"github.com/spf13/cobra"
)

var streakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Show the visit streak",
	RunE:  runStreak,
}

var visitCmd = &cobra.Command{
	Use:   "visit",
	Short: "Record a visit for today",
	RunE:  runVisit,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent commands handled by the daemon",
	RunE:  runAudit,
}

var auditLimit int

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "Number of entries to show")
	rootCmd.AddCommand(auditCmd)
}

func runStreak(cmd *cobra.Command, args []string) error {
	var view models.StreakView
	if err := apiGet("/streak", &view); err != nil {
		return err
	}
	printStreak(view)
	return nil
}

func runVisit(cmd *cobra.Command, args []string) error {
	var view models.StreakView
	if err := apiPost("/visit", struct{}{}, &view); err != nil {
		return err
	}
	printStreak(view)
	return nil
}

func printStreak(view models.StreakView) {
	if view.Count == 0 {
		fmt.Println("No streak yet")
		return
	}
	unit := "days"
	if view.Count == 1 {
		unit = "day"
	}
	state := "active"
	if !view.Active {
		state = "broken"
	}
	fmt.Printf("Streak: %d %s (%s, last visit %s)\n", view.Count, unit, state, view.LastVisitDate)
}

func runAudit(cmd *cobra.Command, args []string) error {
	var entries []models.AuditEntry
	if err := apiGet(fmt.Sprintf("/audit?limit=%d", auditLimit), &entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No commands recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tOUTCOME\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Action,
			e.Outcome,
			e.Details,
		)
	}
	return w.Flush()
}
