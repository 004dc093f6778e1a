package commands

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/punchclock/display"
	"github.com/teranos/punchclock/timesheet"
)

// PeriodCmd shows pay periods and tracks payment
var PeriodCmd = &cobra.Command{
	Use:   "period",
	Short: "Pay periods, paid/unpaid marking and earnings summary",
	Long: `Pay periods group a job's completed entries by the job's pay period
settings (weekly, biweekly or monthly). They are regenerated from the
entries every time they are listed.

Examples:
  punchclock period ls Acme
  punchclock period paid <period-id>
  punchclock period summary Acme`,
}

var periodListCmd = &cobra.Command{
	Use:     "ls <job>",
	Aliases: []string{"list"},
	Short:   "List a job's pay periods",
	Args:    cobra.ExactArgs(1),
	RunE:    runPeriodList,
}

var periodPaidCmd = &cobra.Command{
	Use:   "paid <period-id>",
	Short: "Mark a pay period as paid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPeriodMark(cmd, args[0], true)
	},
}

var periodUnpaidCmd = &cobra.Command{
	Use:   "unpaid <period-id>",
	Short: "Undo marking a pay period as paid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPeriodMark(cmd, args[0], false)
	},
}

var periodSummaryCmd = &cobra.Command{
	Use:   "summary <job>",
	Short: "Show total, paid and unpaid earnings with tax and deductions",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeriodSummary,
}

func init() {
	PeriodCmd.AddCommand(periodListCmd, periodPaidCmd, periodUnpaidCmd, periodSummaryCmd)
}

func runPeriodList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.resolveJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	periods, err := a.tracker.PayPeriods(cmd.Context(), job.ID)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), periods)
	}
	if len(periods) == 0 {
		pterm.Info.Printfln("No completed entries for %s yet", job.Title)
		return nil
	}

	rows := make([][]string, 0, len(periods))
	for _, p := range periods {
		rows = append(rows, []string{p.ID,
			display.Date(p.StartDate, a.loc), display.Date(p.EndDate-1, a.loc),
			display.Duration(p.TotalDuration), display.Money(p.TotalEarnings),
			strconv.Itoa(len(p.TimeEntryIDs)), paidLabel(p, a)})
	}
	return display.Table(cmd.OutOrStdout(), []string{"ID", "From", "To", "Hours", "Earnings", "Entries", "Paid"}, rows)
}

func paidLabel(p timesheet.PayPeriod, a *app) string {
	if !p.IsPaid {
		return "unpaid"
	}
	if p.PaidDate != nil {
		return "paid " + display.Date(*p.PaidDate, a.loc)
	}
	return "paid"
}

func runPeriodMark(cmd *cobra.Command, id string, paid bool) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var period *timesheet.PayPeriod
	if paid {
		period, err = a.tracker.MarkPayPeriodAsPaid(cmd.Context(), id)
	} else {
		period, err = a.tracker.MarkPayPeriodAsUnpaid(cmd.Context(), id)
	}
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), period)
	}
	pterm.Success.Printfln("Period %s to %s is now %s (%s)",
		display.Date(period.StartDate, a.loc), display.Date(period.EndDate-1, a.loc),
		paidLabel(*period, a), display.Money(period.TotalEarnings))
	return nil
}

func runPeriodSummary(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.resolveJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	sum, err := a.tracker.Summary(cmd.Context(), job.ID)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), sum)
	}
	rows := [][]string{
		{"Hours", display.Duration(sum.TotalDuration)},
		{"Total earnings", display.Money(sum.TotalEarnings)},
		{"Paid", display.Money(sum.PaidEarnings)},
		{"Unpaid", display.Money(sum.UnpaidEarnings)},
		{"Estimated tax", display.Money(sum.EstimatedTax)},
		{"Deductions", display.Money(sum.Deductions)},
		{"Net", display.Money(sum.NetEarnings)},
	}
	return display.Table(cmd.OutOrStdout(), []string{job.Title, ""}, rows)
}
