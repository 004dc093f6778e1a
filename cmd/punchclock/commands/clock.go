package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/punchclock/display"
	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/timesheet"
)

// ClockCmd drives a job's running entry
var ClockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Clock in and out, take breaks",
	Long: `Clock in and out of a job and take breaks.

A job has at most one running entry. Times default to now; pass --at with
"15:04", "2006-01-02 15:04" or RFC 3339 to record a different time.

Examples:
  punchclock clock in Acme --note "site visit"
  punchclock clock break Acme
  punchclock clock resume Acme
  punchclock clock out Acme --at 17:30
  punchclock clock status`,
}

var clockInCmd = &cobra.Command{
	Use:   "in <job>",
	Short: "Start a running entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runClockIn,
}

var clockOutCmd = &cobra.Command{
	Use:   "out <job>",
	Short: "Stop the running entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnActive(cmd, args[0], "Clocked out", func(a *app, id string, at *int64) (*timesheet.TimeEntry, error) {
			return a.tracker.ClockOut(cmd.Context(), id, at)
		})
	},
}

var clockBreakCmd = &cobra.Command{
	Use:   "break <job>",
	Short: "Start a break in the running entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnActive(cmd, args[0], "On break", func(a *app, id string, at *int64) (*timesheet.TimeEntry, error) {
			return a.tracker.StartBreak(cmd.Context(), id, at)
		})
	},
}

var clockResumeCmd = &cobra.Command{
	Use:   "resume <job>",
	Short: "End the current break",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnActive(cmd, args[0], "Back to work", func(a *app, id string, at *int64) (*timesheet.TimeEntry, error) {
			return a.tracker.EndBreak(cmd.Context(), id, at)
		})
	},
}

var clockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show running entries across jobs",
	Args:  cobra.NoArgs,
	RunE:  runClockStatus,
}

func init() {
	for _, c := range []*cobra.Command{clockInCmd, clockOutCmd, clockBreakCmd, clockResumeCmd} {
		c.Flags().String("at", "", "Time to record instead of now")
	}
	clockInCmd.Flags().String("note", "", "Note for the entry")

	ClockCmd.AddCommand(clockInCmd, clockOutCmd, clockBreakCmd, clockResumeCmd, clockStatusCmd)
}

func runClockIn(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.resolveJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	atFlag, _ := cmd.Flags().GetString("at")
	at, err := parseWhen(atFlag, time.Now(), a.loc)
	if err != nil {
		return err
	}
	note, _ := cmd.Flags().GetString("note")

	entry, err := a.tracker.ClockIn(cmd.Context(), job.ID, note, at)
	if errors.IsConflictError(err) {
		return errors.WithHintf(err, "clock out first: punchclock clock out %q", job.Title)
	}
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), entry)
	}
	pterm.Success.Printfln("Clocked in to %s at %s", job.Title, display.Timestamp(&entry.StartTime, a.loc))
	return nil
}

// runOnActive applies fn to the job's running entry
func runOnActive(cmd *cobra.Command, ref, done string, fn func(a *app, entryID string, at *int64) (*timesheet.TimeEntry, error)) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.resolveJob(cmd.Context(), ref)
	if err != nil {
		return err
	}
	active, err := a.tracker.ActiveEntry(cmd.Context(), job.ID)
	if err != nil {
		return err
	}
	if active == nil {
		return errors.WithHintf(errors.NewValidationError("%s is not clocked in", job.Title),
			"punchclock clock in %q", job.Title)
	}
	atFlag, _ := cmd.Flags().GetString("at")
	at, err := parseWhen(atFlag, time.Now(), a.loc)
	if err != nil {
		return err
	}

	entry, err := fn(a, active.ID, at)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), entry)
	}
	entries, err := a.tracker.ListTimeEntries(cmd.Context(), job.ID)
	if err != nil {
		return err
	}
	// weekly overtime depends on the job's other entries that week
	stats := timesheet.NewCalculator(*job, entries, a.loc, time.Now().UnixMilli()).EntryStats(*entry)
	pterm.Success.Printfln("%s: %s, %s worked", done, job.Title, display.Duration(stats.Duration))
	if !entry.IsActive() {
		pterm.Info.Printfln("Earned %s", display.Money(stats.Earnings))
	}
	return nil
}

func runClockStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.tracker.ListJobs(cmd.Context())
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	var running []*timesheet.TimeEntry
	var rows [][]string
	for _, j := range jobs {
		active, err := a.tracker.ActiveEntry(cmd.Context(), j.ID)
		if err != nil {
			return err
		}
		if active == nil {
			continue
		}
		running = append(running, active)
		state := "working"
		if active.IsOnBreak {
			state = "on break"
		}
		worked := timesheet.NewCalculator(j, nil, a.loc, now).WorkDuration(*active)
		rows = append(rows, []string{j.Title, display.Timestamp(&active.StartTime, a.loc),
			display.Duration(worked), state, active.Note})
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), running)
	}
	if len(rows) == 0 {
		pterm.Info.Println("Not clocked in")
		return nil
	}
	return display.Table(cmd.OutOrStdout(), []string{"Job", "Since", "Worked", "State", "Note"}, rows)
}
