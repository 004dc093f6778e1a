package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/punchclock/db"
	"github.com/teranos/punchclock/errors"
	qtesting "github.com/teranos/punchclock/internal/testing"
	"github.com/teranos/punchclock/mutation"
	"github.com/teranos/punchclock/store"
	"github.com/teranos/punchclock/timesheet"
)

// clock is a settable time source
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	tracker *Tracker
	repo    store.Repository
	queue   *mutation.Queue
	clock   *clock
}

// Monday 2026-10-12 09:00 UTC
var monday = time.Date(2026, time.October, 12, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	c := &clock{t: monday}
	repo := store.NewMemoryStore()
	queue := mutation.NewQueue(mutation.NewMemoryBackend(), log)
	tr := New(repo, queue, Config{UserID: "user-1", Location: time.UTC, Now: c.Now, Logger: log})
	return &fixture{tracker: tr, repo: repo, queue: queue, clock: c}
}

func newSQLFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	conn := qtesting.CreateTestDB(t, db.SchemaLocal)
	c := &clock{t: monday}
	repo := store.NewSQLStore(conn)
	queue := mutation.NewQueue(mutation.NewSQLBackend(conn), log)
	tr := New(repo, queue, Config{UserID: "user-1", Location: time.UTC, Now: c.Now, Logger: log})
	return &fixture{tracker: tr, repo: repo, queue: queue, clock: c}
}

func (f *fixture) createJob(t *testing.T, rate float64) *timesheet.Job {
	t.Helper()
	job, err := f.tracker.CreateJob(context.Background(), JobInput{Title: "Acme", HourlyRate: rate})
	require.NoError(t, err)
	return job
}

func (f *fixture) pending(t *testing.T) []mutation.Item {
	t.Helper()
	items, err := f.queue.Pending(context.Background())
	require.NoError(t, err)
	return items
}

func ms(t time.Time) *int64 {
	return timesheet.Ptr(t.UnixMilli())
}

func TestCreateJob(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, 25)

	assert.Equal(t, "user-1", job.UserID)
	assert.Equal(t, timesheet.PayPeriodWeekly, job.Settings.PayPeriodType, "settings are normalized")

	items := f.pending(t)
	require.Len(t, items, 1)
	assert.Equal(t, mutation.EntityJob, items[0].EntityType)
	assert.Equal(t, job.ID, items[0].EntityID)
}

func TestCreateJob_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.CreateJob(ctx, JobInput{Title: "  "})
	assert.True(t, errors.IsValidationError(err))

	settings := timesheet.DefaultJobSettings()
	settings.DailyOvertime = timesheet.OvertimeDaily
	settings.WeeklyOvertime = timesheet.OvertimeWeekly
	_, err = f.tracker.CreateJob(ctx, JobInput{Title: "Both", Settings: settings})
	assert.True(t, errors.IsValidationError(err), "daily and weekly overtime are exclusive")

	assert.Empty(t, f.pending(t), "rejected operations are never queued")
}

func TestClockIn_SingleActiveEntry(t *testing.T) {
	for name, newF := range map[string]func(*testing.T) *fixture{"memory": newFixture, "sqlite": newSQLFixture} {
		t.Run(name, func(t *testing.T) {
			f := newF(t)
			ctx := context.Background()
			job := f.createJob(t, 20)

			entry, err := f.tracker.ClockIn(ctx, job.ID, "standup", nil)
			require.NoError(t, err)
			assert.Nil(t, entry.EndTime)
			assert.Equal(t, monday.UnixMilli(), entry.StartTime)
			before := len(f.pending(t))

			_, err = f.tracker.ClockIn(ctx, job.ID, "again", nil)
			require.Error(t, err)
			assert.True(t, errors.IsConflictError(err))
			assert.Len(t, f.pending(t), before, "conflicting clock-in is not queued")

			entries, err := f.tracker.ListTimeEntries(ctx, job.ID)
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}
}

func TestClockIn_MissingJob(t *testing.T) {
	f := newFixture(t)

	_, err := f.tracker.ClockIn(context.Background(), "nope", "", nil)
	assert.True(t, errors.IsNotFoundError(err))
	assert.Empty(t, f.pending(t))
}

func TestClockIn_OtherJobsIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createJob(t, 20)
	b := f.createJob(t, 30)

	_, err := f.tracker.ClockIn(ctx, a.ID, "", nil)
	require.NoError(t, err)
	_, err = f.tracker.ClockIn(ctx, b.ID, "", nil)
	assert.NoError(t, err, "the active-entry limit is per job")
}

func TestStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, 20)

	state, _, err := f.tracker.State(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, state)

	entry, err := f.tracker.ClockIn(ctx, job.ID, "", nil)
	require.NoError(t, err)
	state, active, err := f.tracker.State(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)
	assert.Equal(t, entry.ID, active.ID)

	f.clock.Advance(2 * time.Hour)
	_, err = f.tracker.StartBreak(ctx, entry.ID, nil)
	require.NoError(t, err)
	state, _, _ = f.tracker.State(ctx, job.ID)
	assert.Equal(t, StateOnBreak, state)

	_, err = f.tracker.StartBreak(ctx, entry.ID, nil)
	assert.True(t, errors.IsValidationError(err), "already on break")

	f.clock.Advance(30 * time.Minute)
	_, err = f.tracker.EndBreak(ctx, entry.ID, nil)
	require.NoError(t, err)
	state, _, _ = f.tracker.State(ctx, job.ID)
	assert.Equal(t, StateRunning, state)

	_, err = f.tracker.EndBreak(ctx, entry.ID, nil)
	assert.True(t, errors.IsValidationError(err), "not on break")

	f.clock.Advance(90 * time.Minute)
	done, err := f.tracker.ClockOut(ctx, entry.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, done.EndTime)
	state, _, _ = f.tracker.State(ctx, job.ID)
	assert.Equal(t, StateIdle, state)

	stats, err := f.tracker.JobStats(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, (3*time.Hour+30*time.Minute).Milliseconds(), stats.Duration, "4h span minus a 30m break")
	assert.InDelta(t, 70.0, stats.Earnings, 1e-9)

	items := f.pending(t)
	require.Len(t, items, 2, "job and entry, each coalesced to one item")
	var queued timesheet.TimeEntry
	require.NoError(t, items[1].Decode(&queued))
	assert.Equal(t, done.EndTime, queued.EndTime, "queued payload is the latest snapshot")
}

func TestClockOut_ClosesOpenBreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, 20)

	entry, err := f.tracker.ClockIn(ctx, job.ID, "", nil)
	require.NoError(t, err)
	_, err = f.tracker.StartBreak(ctx, entry.ID, ms(monday.Add(time.Hour)))
	require.NoError(t, err)

	end := ms(monday.Add(2 * time.Hour))
	done, err := f.tracker.ClockOut(ctx, entry.ID, end)
	require.NoError(t, err)

	assert.False(t, done.IsOnBreak)
	require.Len(t, done.Breaks, 1)
	assert.Equal(t, *end, *done.Breaks[0].EndTime, "open break closes at clock-out")
}

func TestClockOut_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, 20)

	entry, err := f.tracker.ClockIn(ctx, job.ID, "", nil)
	require.NoError(t, err)
	_, err = f.tracker.StartBreak(ctx, entry.ID, ms(monday.Add(time.Hour)))
	require.NoError(t, err)
	before := len(f.pending(t))

	_, err = f.tracker.ClockOut(ctx, entry.ID, ms(monday))
	assert.True(t, errors.IsValidationError(err), "end equal to start")

	_, err = f.tracker.ClockOut(ctx, entry.ID, ms(monday.Add(time.Hour)))
	assert.True(t, errors.IsValidationError(err), "end equal to the last break start")

	_, err = f.tracker.ClockOut(ctx, "missing", nil)
	assert.True(t, errors.IsNotFoundError(err))

	_, err = f.tracker.ClockOut(ctx, entry.ID, ms(monday.Add(3*time.Hour)))
	require.NoError(t, err)
	_, err = f.tracker.ClockOut(ctx, entry.ID, ms(monday.Add(4*time.Hour)))
	assert.True(t, errors.IsValidationError(err), "already clocked out")

	items := f.pending(t)
	assert.Len(t, items, before, "rejections leave the queue alone, the success coalesced")
}

func TestStartBreak_BeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, 20)

	entry, err := f.tracker.ClockIn(ctx, job.ID, "", nil)
	require.NoError(t, err)

	_, err = f.tracker.StartBreak(ctx, entry.ID, ms(monday.Add(-time.Minute)))
	assert.True(t, errors.IsValidationError(err))
}

func TestAddAndUpdateTimeEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, 20)

	entry, err := f.tracker.AddTimeEntry(ctx, job.ID, EntryInput{
		StartTime: monday.UnixMilli(),
		EndTime:   ms(monday.Add(8 * time.Hour)),
		Note:      "site visit",
	})
	require.NoError(t, err)

	_, err = f.tracker.AddTimeEntry(ctx, job.ID, EntryInput{StartTime: monday.UnixMilli()})
	assert.True(t, errors.IsValidationError(err), "manual entries must be completed")

	overlapping := []timesheet.Break{
		{StartTime: monday.Add(time.Hour).UnixMilli(), EndTime: ms(monday.Add(2 * time.Hour))},
		{StartTime: monday.Add(90 * time.Minute).UnixMilli(), EndTime: ms(monday.Add(3 * time.Hour))},
	}
	_, err = f.tracker.UpdateTimeEntry(ctx, entry.ID, EntryInput{
		StartTime: entry.StartTime,
		EndTime:   entry.EndTime,
		Breaks:    overlapping,
	})
	assert.True(t, errors.IsValidationError(err), "overlapping breaks")

	updated, err := f.tracker.UpdateTimeEntry(ctx, entry.ID, EntryInput{
		StartTime: entry.StartTime,
		EndTime:   ms(monday.Add(9 * time.Hour)),
		Note:      "site visit and travel",
	})
	require.NoError(t, err)
	assert.Equal(t, job.ID, updated.JobID)
	assert.Equal(t, "site visit and travel", updated.Note)
}

func TestUpdateTimeEntry_ReopenConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, 20)

	old, err := f.tracker.AddTimeEntry(ctx, job.ID, EntryInput{
		StartTime: monday.Add(-24 * time.Hour).UnixMilli(),
		EndTime:   ms(monday.Add(-20 * time.Hour)),
	})
	require.NoError(t, err)
	_, err = f.tracker.ClockIn(ctx, job.ID, "", nil)
	require.NoError(t, err)

	_, err = f.tracker.UpdateTimeEntry(ctx, old.ID, EntryInput{StartTime: old.StartTime})
	assert.True(t, errors.IsConflictError(err), "reopening would create a second active entry")
}

func TestDeleteTimeEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, 20)

	entry, err := f.tracker.ClockIn(ctx, job.ID, "", nil)
	require.NoError(t, err)
	require.NoError(t, f.tracker.DeleteTimeEntry(ctx, entry.ID))

	_, err = f.tracker.GetTimeEntry(ctx, entry.ID)
	assert.True(t, errors.IsNotFoundError(err))

	items := f.pending(t)
	require.Len(t, items, 2)
	assert.Equal(t, mutation.OpDelete, items[1].Operation, "the pending upsert became a delete")

	assert.True(t, errors.IsNotFoundError(f.tracker.DeleteTimeEntry(ctx, entry.ID)))
}

func TestDeleteJob_Cascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, 20)
	other := f.createJob(t, 20)

	_, err := f.tracker.AddTimeEntry(ctx, job.ID, EntryInput{StartTime: monday.UnixMilli(), EndTime: ms(monday.Add(time.Hour))})
	require.NoError(t, err)
	_, err = f.tracker.AddTimeEntry(ctx, other.ID, EntryInput{StartTime: monday.UnixMilli(), EndTime: ms(monday.Add(time.Hour))})
	require.NoError(t, err)
	_, err = f.tracker.PayPeriods(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, f.tracker.DeleteJob(ctx, job.ID))

	entries, err := f.repo.ListTimeEntries(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
	periods, err := f.repo.ListPayPeriods(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, periods)

	kept, err := f.repo.ListTimeEntries(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1, "other jobs are untouched")

	deletes := map[mutation.EntityType]int{}
	for _, item := range f.pending(t) {
		if item.Operation == mutation.OpDelete {
			deletes[item.EntityType]++
		}
	}
	assert.Equal(t, map[mutation.EntityType]int{
		mutation.EntityJob:       1,
		mutation.EntityTimeEntry: 1,
		mutation.EntityPayPeriod: 1,
	}, deletes)
}

func TestPayPeriods_WeeklyMaterialization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, 10)

	// Saturday of one week, Sunday of the next
	_, err := f.tracker.AddTimeEntry(ctx, job.ID, EntryInput{
		StartTime: time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC).UnixMilli(),
		EndTime:   ms(time.Date(2026, time.October, 17, 13, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	_, err = f.tracker.AddTimeEntry(ctx, job.ID, EntryInput{
		StartTime: time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC).UnixMilli(),
		EndTime:   ms(time.Date(2026, time.October, 18, 11, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	periods, err := f.tracker.PayPeriods(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, time.Date(2026, time.October, 11, 0, 0, 0, 0, time.UTC).UnixMilli(), periods[0].StartDate)
	assert.Equal(t, time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC).UnixMilli(), periods[0].EndDate)
	assert.InDelta(t, 40.0, periods[0].TotalEarnings, 1e-9)
	assert.InDelta(t, 20.0, periods[1].TotalEarnings, 1e-9)

	again, err := f.tracker.PayPeriods(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, periods[0].ID, again[0].ID, "regeneration keeps ids")
}

func TestPayPeriods_RunningEntryExcluded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, 10)

	_, err := f.tracker.ClockIn(ctx, job.ID, "", nil)
	require.NoError(t, err)

	periods, err := f.tracker.PayPeriods(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, periods)
}

func TestPayPeriods_StaleUnpaidRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, 10)

	entry, err := f.tracker.AddTimeEntry(ctx, job.ID, EntryInput{StartTime: monday.UnixMilli(), EndTime: ms(monday.Add(time.Hour))})
	require.NoError(t, err)
	periods, err := f.tracker.PayPeriods(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, periods, 1)

	require.NoError(t, f.tracker.DeleteTimeEntry(ctx, entry.ID))
	periods, err = f.tracker.PayPeriods(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, periods)
}

func TestMarkPayPeriodPaidAndUnpaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, 10)

	first, err := f.tracker.AddTimeEntry(ctx, job.ID, EntryInput{StartTime: monday.UnixMilli(), EndTime: ms(monday.Add(2 * time.Hour))})
	require.NoError(t, err)
	nextWeek := monday.Add(7 * 24 * time.Hour)
	_, err = f.tracker.AddTimeEntry(ctx, job.ID, EntryInput{StartTime: nextWeek.UnixMilli(), EndTime: ms(nextWeek.Add(3 * time.Hour))})
	require.NoError(t, err)

	periods, err := f.tracker.PayPeriods(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, periods, 2)

	f.clock.Advance(time.Hour)
	paid, err := f.tracker.MarkPayPeriodAsPaid(ctx, periods[0].ID)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidDate)
	assert.Equal(t, f.clock.Now().UnixMilli(), *paid.PaidDate)

	stamped, err := f.tracker.GetTimeEntry(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, stamped.PaidInPeriodID)
	assert.Equal(t, periods[0].ID, *stamped.PaidInPeriodID)

	_, err = f.tracker.MarkPayPeriodAsPaid(ctx, periods[0].ID)
	assert.True(t, errors.IsValidationError(err))

	summary, err := f.tracker.Summary(ctx, job.ID)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, summary.TotalEarnings, 1e-9)
	assert.InDelta(t, 20.0, summary.PaidEarnings, 1e-9)
	assert.InDelta(t, 30.0, summary.UnpaidEarnings, 1e-9)

	unpaid, err := f.tracker.MarkPayPeriodAsUnpaid(ctx, periods[0].ID)
	require.NoError(t, err)
	assert.False(t, unpaid.IsPaid)
	assert.Nil(t, unpaid.PaidDate)

	cleared, err := f.tracker.GetTimeEntry(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.PaidInPeriodID)

	summary, err = f.tracker.Summary(ctx, job.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, summary.PaidEarnings, 1e-9)
	assert.InDelta(t, 50.0, summary.UnpaidEarnings, 1e-9)
}

func TestPayPeriods_SettingsChangeKeepsPaidOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.createJob(t, 10)

	entry, err := f.tracker.AddTimeEntry(ctx, job.ID, EntryInput{StartTime: monday.UnixMilli(), EndTime: ms(monday.Add(10 * time.Hour))})
	require.NoError(t, err)
	periods, err := f.tracker.PayPeriods(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	weekly := periods[0]
	_, err = f.tracker.MarkPayPeriodAsPaid(ctx, weekly.ID)
	require.NoError(t, err)

	settings := timesheet.DefaultJobSettings()
	settings.PayPeriodType = timesheet.PayPeriodMonthly
	settings.PayPeriodStartDay = 1
	_, err = f.tracker.UpdateJob(ctx, job.ID, JobInput{Title: job.Title, HourlyRate: job.HourlyRate, Settings: settings})
	require.NoError(t, err)

	periods, err = f.tracker.PayPeriods(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, periods, 1, "the paid entry gets no second period")
	assert.Equal(t, weekly.ID, periods[0].ID)
	assert.True(t, periods[0].IsPaid)
	assert.Equal(t, []string{entry.ID}, periods[0].TimeEntryIDs)

	summary, err := f.tracker.Summary(ctx, job.ID)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, summary.TotalEarnings, 1e-9)
	assert.InDelta(t, 100.0, summary.PaidEarnings, 1e-9)
	assert.InDelta(t, 0.0, summary.UnpaidEarnings, 1e-9)

	// New work lands in a monthly period of its own
	later := monday.Add(3 * 24 * time.Hour)
	_, err = f.tracker.AddTimeEntry(ctx, job.ID, EntryInput{StartTime: later.UnixMilli(), EndTime: ms(later.Add(2 * time.Hour))})
	require.NoError(t, err)

	periods, err = f.tracker.PayPeriods(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	var monthly timesheet.PayPeriod
	for _, p := range periods {
		if p.ID != weekly.ID {
			monthly = p
		}
	}
	assert.Equal(t, time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), monthly.StartDate)
	assert.False(t, monthly.IsPaid)
	assert.NotContains(t, monthly.TimeEntryIDs, entry.ID)

	summary, err = f.tracker.Summary(ctx, job.ID)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, summary.TotalEarnings, 1e-9)
	assert.InDelta(t, 20.0, summary.UnpaidEarnings, 1e-9)

	// Unpaying releases the entry into the monthly period
	_, err = f.tracker.MarkPayPeriodAsUnpaid(ctx, weekly.ID)
	require.NoError(t, err)
	periods, err = f.tracker.PayPeriods(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, monthly.ID, periods[0].ID)
	assert.Len(t, periods[0].TimeEntryIDs, 2)
}
