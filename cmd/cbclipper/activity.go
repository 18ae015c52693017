package main

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fentz26/cbclipper/internal/models"
	"github.com/spf13/cobra"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show logged focus and break time",
}

var activityTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's sessions",
	RunE:  runActivityToday,
}

var activityShowCmd = &cobra.Command{
	Use:   "show [YYYY-MM-DD]",
	Short: "Show one day, or a summary of every day",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runActivityShow,
}

func init() {
	activityCmd.AddCommand(activityTodayCmd, activityShowCmd)
}

func runActivityToday(cmd *cobra.Command, args []string) error {
	loc, err := loadClientConfig().Location()
	if err != nil {
		return err
	}
	return showDay(models.DayKey(time.Now(), loc))
}

func runActivityShow(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		if _, err := time.Parse(models.DateLayout, args[0]); err != nil {
			return fmt.Errorf("invalid date %q: want YYYY-MM-DD", args[0])
		}
		return showDay(args[0])
	}

	var log models.ActivityLog
	if err := apiGet("/activity", &log); err != nil {
		return err
	}
	if len(log) == 0 {
		fmt.Println("No activity logged")
		return nil
	}

	days := make([]string, 0, len(log))
	for k := range log {
		days = append(days, k)
	}
	sort.Strings(days)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tVISITS\tFOCUS\tBREAK\tSESSIONS")
	for _, k := range days {
		d := log[k]
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\n", k, d.Visits,
			formatSeconds(d.FocusSeconds), formatSeconds(d.BreakSeconds), len(d.Sessions))
	}
	return w.Flush()
}

func showDay(date string) error {
	var day models.DayRecord
	if err := apiGet("/activity?date="+url.QueryEscape(date), &day); err != nil {
		return err
	}

	fmt.Printf("%s  visits %d  focus %s  break %s\n", date, day.Visits,
		formatSeconds(day.FocusSeconds), formatSeconds(day.BreakSeconds))
	if len(day.Sessions) == 0 {
		fmt.Println("No sessions")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tDURATION\tNAME\tTAG")
	for _, s := range day.Sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.Timestamp.Local().Format("15:04"),
			s.Type,
			formatSeconds(s.DurationSeconds),
			s.Name,
			s.Tag,
		)
	}
	return w.Flush()
}

func formatSeconds(seconds int) string {
	d := time.Duration(seconds) * time.Second
	if d < time.Minute {
		return fmt.Sprintf("%ds", seconds)
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), seconds%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}
