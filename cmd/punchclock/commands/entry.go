package commands

import (
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/punchclock/display"
	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/timesheet"
	"github.com/teranos/punchclock/tracker"
)

// EntryCmd manages time entries
var EntryCmd = &cobra.Command{
	Use:   "entry",
	Short: "List, add, edit and delete time entries",
	Long: `List, add, edit and delete time entries.

Breaks are given as start/end pairs; clock times resolve on the entry's
start day.

Examples:
  punchclock entry ls Acme
  punchclock entry add Acme --start "2026-10-12 09:00" --end 17:30 --break 12:00/12:30
  punchclock entry edit <id> --note "client workshop"
  punchclock entry rm <id>`,
}

var entryListCmd = &cobra.Command{
	Use:     "ls <job>",
	Aliases: []string{"list"},
	Short:   "List a job's entries, newest first",
	Args:    cobra.ExactArgs(1),
	RunE:    runEntryList,
}

var entryAddCmd = &cobra.Command{
	Use:   "add <job>",
	Short: "Record a completed entry after the fact",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntryAdd,
}

var entryEditCmd = &cobra.Command{
	Use:   "edit <entry-id>",
	Short: "Change an entry's times, note or breaks",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntryEdit,
}

var entryRemoveCmd = &cobra.Command{
	Use:     "rm <entry-id>",
	Aliases: []string{"delete"},
	Short:   "Delete an entry",
	Args:    cobra.ExactArgs(1),
	RunE:    runEntryRemove,
}

func init() {
	for _, c := range []*cobra.Command{entryAddCmd, entryEditCmd} {
		c.Flags().String("start", "", "Start time")
		c.Flags().String("end", "", "End time")
		c.Flags().String("note", "", "Note")
		c.Flags().StringArray("break", nil, "Break as start/end, repeatable; replaces existing breaks on edit")
	}
	entryAddCmd.MarkFlagRequired("start")
	entryAddCmd.MarkFlagRequired("end")
	entryEditCmd.Flags().Bool("reopen", false, "Clear the end time, making the entry run again")
	entryListCmd.Flags().Int("limit", 20, "Maximum entries to show (0 = all)")

	EntryCmd.AddCommand(entryListCmd, entryAddCmd, entryEditCmd, entryRemoveCmd)
}

// parseBreaks reads start/end pairs relative to the entry's start day
func parseBreaks(values []string, day time.Time, loc *time.Location) ([]timesheet.Break, error) {
	breaks := make([]timesheet.Break, 0, len(values))
	for _, v := range values {
		startStr, endStr, ok := strings.Cut(v, "/")
		if !ok {
			return nil, errors.WithHint(errors.NewValidationError("break %q is not start/end", v),
				`e.g. --break 12:00/12:30`)
		}
		start, err := parseWhen(startStr, day, loc)
		if err != nil {
			return nil, err
		}
		end, err := parseWhen(endStr, day, loc)
		if err != nil {
			return nil, err
		}
		if start == nil || end == nil {
			return nil, errors.NewValidationError("break %q needs both a start and an end", v)
		}
		breaks = append(breaks, timesheet.Break{StartTime: *start, EndTime: end})
	}
	return breaks, nil
}

func runEntryList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.resolveJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	entries, err := a.tracker.ListTimeEntries(cmd.Context(), job.ID)
	if err != nil {
		return err
	}
	// newest first
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), entries)
	}
	if len(entries) == 0 {
		pterm.Info.Printfln("No entries for %s", job.Title)
		return nil
	}

	all, err := a.tracker.ListTimeEntries(cmd.Context(), job.ID)
	if err != nil {
		return err
	}
	calc := timesheet.NewCalculator(*job, all, a.loc, time.Now().UnixMilli())
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		st := calc.EntryStats(e)
		paid := ""
		if e.PaidInPeriodID != nil {
			paid = "paid"
		}
		rows = append(rows, []string{e.ID, display.Timestamp(&e.StartTime, a.loc), display.Timestamp(e.EndTime, a.loc),
			display.Duration(st.Duration), display.Money(st.Earnings), paid, e.Note})
	}
	return display.Table(cmd.OutOrStdout(), []string{"ID", "Start", "End", "Worked", "Earned", "Paid", "Note"}, rows)
}

func runEntryAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.resolveJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	in, err := entryInputFromFlags(cmd, a.loc, tracker.EntryInput{})
	if err != nil {
		return err
	}
	entry, err := a.tracker.AddTimeEntry(cmd.Context(), job.ID, in)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), entry)
	}
	pterm.Success.Printfln("Recorded %s for %s", entry.ID, job.Title)
	return nil
}

func runEntryEdit(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := a.tracker.GetTimeEntry(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	in, err := entryInputFromFlags(cmd, a.loc, tracker.EntryInput{
		StartTime: entry.StartTime,
		EndTime:   entry.EndTime,
		Note:      entry.Note,
		Breaks:    entry.Breaks,
	})
	if err != nil {
		return err
	}
	if reopen, _ := cmd.Flags().GetBool("reopen"); reopen {
		in.EndTime = nil
	}
	updated, err := a.tracker.UpdateTimeEntry(cmd.Context(), entry.ID, in)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), updated)
	}
	pterm.Success.Printfln("Updated %s", updated.ID)
	return nil
}

// entryInputFromFlags overlays the set flags on base
func entryInputFromFlags(cmd *cobra.Command, loc *time.Location, base tracker.EntryInput) (tracker.EntryInput, error) {
	flags := cmd.Flags()
	in := base
	day := time.UnixMilli(base.StartTime).In(loc)
	if base.StartTime == 0 {
		day = time.Now().In(loc)
	}

	if flags.Changed("start") {
		v, _ := flags.GetString("start")
		start, err := parseWhen(v, day, loc)
		if err != nil {
			return in, err
		}
		if start == nil {
			return in, errors.NewValidationError("--start cannot be empty")
		}
		in.StartTime = *start
		day = time.UnixMilli(*start).In(loc)
	}
	if flags.Changed("end") {
		v, _ := flags.GetString("end")
		end, err := parseWhen(v, day, loc)
		if err != nil {
			return in, err
		}
		in.EndTime = end
	}
	if flags.Changed("note") {
		in.Note, _ = flags.GetString("note")
	}
	if flags.Changed("break") {
		values, _ := flags.GetStringArray("break")
		breaks, err := parseBreaks(values, day, loc)
		if err != nil {
			return in, err
		}
		in.Breaks = breaks
	}
	return in, nil
}

func runEntryRemove(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.tracker.DeleteTimeEntry(cmd.Context(), args[0]); err != nil {
		return err
	}
	pterm.Success.Printfln("Deleted %s", args[0])
	return nil
}
