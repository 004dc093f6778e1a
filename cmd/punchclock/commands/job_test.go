package commands

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/timesheet"
	"github.com/teranos/punchclock/tracker"
)

func parseJobFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	f := pflag.NewFlagSet("job", pflag.ContinueOnError)
	addJobFlags(f)
	require.NoError(t, f.Parse(args))
	return f
}

func TestApplyJobFlags_OnlyChangedFlags(t *testing.T) {
	in := tracker.JobInput{Title: "Acme", HourlyRate: 20, Settings: timesheet.DefaultJobSettings()}

	require.NoError(t, applyJobFlags(parseJobFlags(t, "--rate", "45", "--client", "Acme Corp"), &in))
	assert.Equal(t, "Acme", in.Title, "unset flags leave fields alone")
	assert.Equal(t, 45.0, in.HourlyRate)
	assert.Equal(t, "Acme Corp", in.Client)
	assert.Equal(t, timesheet.PayPeriodWeekly, in.Settings.PayPeriodType)
}

func TestApplyJobFlags_Overtime(t *testing.T) {
	in := tracker.JobInput{Title: "Acme", Settings: timesheet.DefaultJobSettings()}

	require.NoError(t, applyJobFlags(parseJobFlags(t,
		"--overtime-threshold", "38", "--overtime", "weekly", "--overtime-rate", "2"), &in))
	s := in.Settings
	assert.Equal(t, timesheet.OvertimeWeekly, s.WeeklyOvertime)
	assert.Equal(t, timesheet.OvertimeNone, s.DailyOvertime)
	assert.Equal(t, 38.0, s.WeeklyOvertimeThreshold)
	assert.Equal(t, 2.0, s.WeeklyOvertimeRate)
	assert.Equal(t, timesheet.DefaultDailyOvertimeThreshold, s.DailyOvertimeThreshold)

	require.NoError(t, applyJobFlags(parseJobFlags(t, "--overtime", "daily", "--overtime-threshold", "9"), &in))
	assert.Equal(t, timesheet.OvertimeDaily, in.Settings.DailyOvertime)
	assert.Equal(t, timesheet.OvertimeNone, in.Settings.WeeklyOvertime)
	assert.Equal(t, 9.0, in.Settings.DailyOvertimeThreshold)
}

func TestApplyJobFlags_UnknownOvertime(t *testing.T) {
	in := tracker.JobInput{Title: "Acme", Settings: timesheet.DefaultJobSettings()}
	err := applyJobFlags(parseJobFlags(t, "--overtime", "hourly"), &in)
	assert.True(t, errors.IsValidationError(err))
}

func TestOvertimeRule(t *testing.T) {
	s := timesheet.DefaultJobSettings()
	assert.Equal(t, "none", overtimeRule(s))
	s.DailyOvertime = timesheet.OvertimeDaily
	assert.Equal(t, "daily >8h x1.5", overtimeRule(s))
}
