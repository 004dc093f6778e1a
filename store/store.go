// Package store provides Repository implementations for jobs, time entries
// and pay periods. Get and Delete of a missing id return a NotFoundError.
package store

import (
	"context"
	"sort"

	"github.com/teranos/punchclock/timesheet"
)

// Repository is durable storage for the tracker and the sync engine
type Repository interface {
	GetJob(ctx context.Context, id string) (*timesheet.Job, error)
	ListJobs(ctx context.Context) ([]timesheet.Job, error)
	PutJob(ctx context.Context, job timesheet.Job) error
	DeleteJob(ctx context.Context, id string) error

	GetTimeEntry(ctx context.Context, id string) (*timesheet.TimeEntry, error)
	// ListTimeEntries returns entries of jobID ordered by start time; "" lists all
	ListTimeEntries(ctx context.Context, jobID string) ([]timesheet.TimeEntry, error)
	// ActiveEntry returns the running entry of jobID, or nil
	ActiveEntry(ctx context.Context, jobID string) (*timesheet.TimeEntry, error)
	PutTimeEntry(ctx context.Context, entry timesheet.TimeEntry) error
	DeleteTimeEntry(ctx context.Context, id string) error

	GetPayPeriod(ctx context.Context, id string) (*timesheet.PayPeriod, error)
	// ListPayPeriods returns periods of jobID ordered by start; "" lists all
	ListPayPeriods(ctx context.Context, jobID string) ([]timesheet.PayPeriod, error)
	PutPayPeriod(ctx context.Context, period timesheet.PayPeriod) error
	DeletePayPeriod(ctx context.Context, id string) error
}

func sortJobs(jobs []timesheet.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt != jobs[j].CreatedAt {
			return jobs[i].CreatedAt < jobs[j].CreatedAt
		}
		return jobs[i].ID < jobs[j].ID
	})
}

func sortEntries(entries []timesheet.TimeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StartTime != entries[j].StartTime {
			return entries[i].StartTime < entries[j].StartTime
		}
		return entries[i].ID < entries[j].ID
	})
}

func sortPeriods(periods []timesheet.PayPeriod) {
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].StartDate != periods[j].StartDate {
			return periods[i].StartDate < periods[j].StartDate
		}
		return periods[i].ID < periods[j].ID
	})
}
