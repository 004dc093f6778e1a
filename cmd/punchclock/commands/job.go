package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teranos/punchclock/display"
	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/timesheet"
	"github.com/teranos/punchclock/tracker"
)

// JobCmd manages jobs
var JobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage jobs",
	Long: `Manage jobs: the client engagements time is tracked against.

Each job carries an hourly rate and its own settings for pay periods,
rounding, overtime, tax estimate and deductions.

Examples:
  punchclock job add "Acme" --client "Acme Corp" --rate 45
  punchclock job edit Acme --overtime weekly --overtime-threshold 40
  punchclock job stats Acme`,
}

var jobAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobAdd,
}

var jobListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List jobs",
	RunE:    runJobList,
}

var jobEditCmd = &cobra.Command{
	Use:   "edit <job>",
	Short: "Change a job's details or settings",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobEdit,
}

var jobRemoveCmd = &cobra.Command{
	Use:     "rm <job>",
	Aliases: []string{"delete"},
	Short:   "Delete a job with all its entries and pay periods",
	Args:    cobra.ExactArgs(1),
	RunE:    runJobRemove,
}

var jobStatsCmd = &cobra.Command{
	Use:   "stats <job>",
	Short: "Show today's, this week's and all-time hours and earnings",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobStats,
}

func init() {
	addJobFlags(jobAddCmd.Flags())
	addJobFlags(jobEditCmd.Flags())
	jobRemoveCmd.Flags().Bool("yes", false, "Do not ask for confirmation")

	JobCmd.AddCommand(jobAddCmd, jobListCmd, jobEditCmd, jobRemoveCmd, jobStatsCmd)
}

func addJobFlags(f *pflag.FlagSet) {
	f.String("title", "", "Job title")
	f.String("client", "", "Client name")
	f.Float64("rate", 0, "Hourly rate")
	f.String("color", "", "Display color")
	f.String("period", "", "Pay period type: weekly, biweekly, monthly")
	f.Int("period-start", 0, "Pay period start: weekday 0-6 (Sunday=0), or day of month 1-28 for monthly")
	f.String("overtime", "", "Overtime rule: none, daily, weekly")
	f.Float64("overtime-threshold", 0, "Hours before overtime applies (per day or per week)")
	f.Float64("overtime-rate", 0, "Overtime multiplier, e.g. 1.5")
	f.Int("week-start", 0, "First day of the overtime week, 0-6 (Sunday=0)")
	f.Bool("rounding", false, "Round completed entries")
	f.String("rounding-direction", "", "Rounding direction: up, down")
	f.Int("rounding-interval", 0, "Rounding interval in minutes")
	f.Int("rounding-buffer", 0, "Rounding grace window in minutes")
	f.Float64("tax-rate", 0, "Estimated tax rate in percent")
}

// applyJobFlags copies the flags the user set onto in
func applyJobFlags(flags *pflag.FlagSet, in *tracker.JobInput) error {
	s := &in.Settings
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "title":
			in.Title, err = flags.GetString("title")
		case "client":
			in.Client, err = flags.GetString("client")
		case "rate":
			in.HourlyRate, err = flags.GetFloat64("rate")
		case "color":
			in.Color, err = flags.GetString("color")
		case "period":
			var v string
			v, err = flags.GetString("period")
			s.PayPeriodType = timesheet.PayPeriodType(v)
		case "period-start":
			s.PayPeriodStartDay, err = flags.GetInt("period-start")
		case "overtime":
			var v string
			if v, err = flags.GetString("overtime"); err != nil {
				return
			}
			switch timesheet.OvertimeMode(v) {
			case timesheet.OvertimeNone:
				s.DailyOvertime, s.WeeklyOvertime = timesheet.OvertimeNone, timesheet.OvertimeNone
			case timesheet.OvertimeDaily:
				s.DailyOvertime, s.WeeklyOvertime = timesheet.OvertimeDaily, timesheet.OvertimeNone
			case timesheet.OvertimeWeekly:
				s.DailyOvertime, s.WeeklyOvertime = timesheet.OvertimeNone, timesheet.OvertimeWeekly
			default:
				err = errors.NewValidationError("unknown overtime rule %q", v)
			}
		case "overtime-threshold":
			// flags are visited in name order, so --overtime is already applied
			var v float64
			v, err = flags.GetFloat64("overtime-threshold")
			if s.WeeklyOvertime == timesheet.OvertimeWeekly {
				s.WeeklyOvertimeThreshold = v
			} else {
				s.DailyOvertimeThreshold = v
			}
		case "overtime-rate":
			var v float64
			v, err = flags.GetFloat64("overtime-rate")
			if s.WeeklyOvertime == timesheet.OvertimeWeekly {
				s.WeeklyOvertimeRate = v
			} else {
				s.DailyOvertimeRate = v
			}
		case "week-start":
			s.WeekStartDay, err = flags.GetInt("week-start")
		case "rounding":
			s.TimeRounding.Enabled, err = flags.GetBool("rounding")
		case "rounding-direction":
			var v string
			v, err = flags.GetString("rounding-direction")
			s.TimeRounding.Direction = timesheet.RoundingDirection(v)
		case "rounding-interval":
			s.TimeRounding.IntervalMinutes, err = flags.GetInt("rounding-interval")
		case "rounding-buffer":
			s.TimeRounding.BufferMinutes, err = flags.GetInt("rounding-buffer")
		case "tax-rate":
			s.EstimatedTaxRate, err = flags.GetFloat64("tax-rate")
		}
	})
	return err
}

func runJobAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	in := tracker.JobInput{Title: args[0], Settings: timesheet.DefaultJobSettings()}
	if err := applyJobFlags(cmd.Flags(), &in); err != nil {
		return err
	}
	job, err := a.tracker.CreateJob(cmd.Context(), in)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), job)
	}
	pterm.Success.Printfln("Created job %s (%s)", job.Title, job.ID)
	return nil
}

func runJobList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.tracker.ListJobs(cmd.Context())
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), jobs)
	}
	if len(jobs) == 0 {
		pterm.Info.Println("No jobs yet. Create one with `punchclock job add <title> --rate <rate>`")
		return nil
	}

	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		state, _, err := a.tracker.State(cmd.Context(), j.ID)
		if err != nil {
			return err
		}
		rows = append(rows, []string{j.ID, j.Title, j.Client, display.Money(j.HourlyRate),
			string(j.Settings.PayPeriodType), overtimeRule(j.Settings), string(state)})
	}
	return display.Table(cmd.OutOrStdout(), []string{"ID", "Title", "Client", "Rate", "Period", "Overtime", "State"}, rows)
}

func overtimeRule(s timesheet.JobSettings) string {
	switch {
	case s.DailyOvertime == timesheet.OvertimeDaily:
		return fmt.Sprintf("daily >%gh x%g", s.DailyOvertimeThreshold, s.DailyOvertimeRate)
	case s.WeeklyOvertime == timesheet.OvertimeWeekly:
		return fmt.Sprintf("weekly >%gh x%g", s.WeeklyOvertimeThreshold, s.WeeklyOvertimeRate)
	}
	return "none"
}

func runJobEdit(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.resolveJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	in := tracker.JobInput{
		Title:      job.Title,
		Client:     job.Client,
		HourlyRate: job.HourlyRate,
		Color:      job.Color,
		Settings:   job.Settings,
	}
	if err := applyJobFlags(cmd.Flags(), &in); err != nil {
		return err
	}
	updated, err := a.tracker.UpdateJob(cmd.Context(), job.ID, in)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), updated)
	}
	pterm.Success.Printfln("Updated job %s", updated.Title)
	return nil
}

func runJobRemove(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.resolveJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		ok, _ := pterm.DefaultInteractiveConfirm.
			WithDefaultText(fmt.Sprintf("Delete %s with all its time entries and pay periods?", job.Title)).
			Show()
		if !ok {
			return nil
		}
	}
	if err := a.tracker.DeleteJob(cmd.Context(), job.ID); err != nil {
		return err
	}
	pterm.Success.Printfln("Deleted job %s", job.Title)
	return nil
}

// jobStats is today's, this week's and all-time totals for one job
type jobStats struct {
	Job      string          `json:"job"`
	Today    timesheet.Stats `json:"today"`
	Week     timesheet.Stats `json:"week"`
	AllTime  timesheet.Stats `json:"all_time"`
	Running  bool            `json:"running"`
	OnBreak  bool            `json:"on_break"`
	Computed time.Time       `json:"computed_at"`
}

func runJobStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	job, err := a.resolveJob(ctx, args[0])
	if err != nil {
		return err
	}
	entries, err := a.tracker.ListTimeEntries(ctx, job.ID)
	if err != nil {
		return err
	}
	allTime, err := a.tracker.JobStats(ctx, job.ID)
	if err != nil {
		return err
	}

	now := time.Now().In(a.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc)
	weekStart := dayStart.AddDate(0, 0, -((int(dayStart.Weekday()) - job.Settings.WeekStartDay + 7) % 7))
	out := jobStats{
		Job:      job.Title,
		Today:    timesheet.ComputeStats(since(entries, dayStart), *job, now.UnixMilli(), a.loc),
		Week:     timesheet.ComputeStats(since(entries, weekStart), *job, now.UnixMilli(), a.loc),
		AllTime:  allTime,
		Computed: now,
	}
	if _, active, err := a.tracker.State(ctx, job.ID); err != nil {
		return err
	} else if active != nil {
		out.Running, out.OnBreak = true, active.IsOnBreak
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), out)
	}
	rows := [][]string{
		{"Today", display.Duration(out.Today.Duration), display.Money(out.Today.Earnings)},
		{"This week", display.Duration(out.Week.Duration), display.Money(out.Week.Earnings)},
		{"All time", display.Duration(out.AllTime.Duration), display.Money(out.AllTime.Earnings)},
	}
	if err := display.Table(cmd.OutOrStdout(), []string{job.Title, "Hours", "Earnings"}, rows); err != nil {
		return err
	}
	switch {
	case out.OnBreak:
		pterm.Info.Println("On break")
	case out.Running:
		pterm.Info.Println("Clocked in")
	}
	return nil
}

// since keeps entries starting at or after t
func since(entries []timesheet.TimeEntry, t time.Time) []timesheet.TimeEntry {
	cut := t.UnixMilli()
	var out []timesheet.TimeEntry
	for _, e := range entries {
		if e.StartTime >= cut {
			out = append(out, e)
		}
	}
	return out
}
