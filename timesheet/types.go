// Package timesheet holds the time tracking domain: jobs, time entries,
// pay periods, and the pure calculations over them (net duration, earnings
// with daily or weekly overtime, pay period boundaries, earnings summaries).
//
// Nothing in this package touches storage. All timestamps are epoch
// milliseconds.
package timesheet

import (
	"time"

	"github.com/google/uuid"
)

// Job is a client engagement that time is tracked against
type Job struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	Title      string      `json:"title"`
	Client     string      `json:"client"`
	HourlyRate float64     `json:"hourly_rate"`
	Color      string      `json:"color"`
	Settings   JobSettings `json:"settings"`
	CreatedAt  int64       `json:"created_at"`
	UpdatedAt  int64       `json:"updated_at"`
}

// Break is a pause inside a time entry. EndTime is nil while the break runs.
type Break struct {
	StartTime int64  `json:"start_time"`
	EndTime   *int64 `json:"end_time"`
}

// TimeEntry is one stretch of work. EndTime is nil while the entry runs.
type TimeEntry struct {
	ID             string  `json:"id"`
	JobID          string  `json:"job_id"`
	StartTime      int64   `json:"start_time"`
	EndTime        *int64  `json:"end_time"`
	Note           string  `json:"note"`
	Breaks         []Break `json:"breaks"`
	IsOnBreak      bool    `json:"is_on_break"`
	PaidInPeriodID *string `json:"paid_in_period_id"`
	CreatedAt      int64   `json:"created_at"`
	UpdatedAt      int64   `json:"updated_at"`
}

// IsActive reports whether the entry is still running
func (e *TimeEntry) IsActive() bool {
	return e.EndTime == nil
}

// OpenBreak returns the running break, if any
func (e *TimeEntry) OpenBreak() *Break {
	if n := len(e.Breaks); n > 0 && e.Breaks[n-1].EndTime == nil {
		return &e.Breaks[n-1]
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing stored state
func (e TimeEntry) Clone() TimeEntry {
	out := e
	out.EndTime = copyInt64(e.EndTime)
	out.PaidInPeriodID = copyString(e.PaidInPeriodID)
	out.Breaks = make([]Break, len(e.Breaks))
	for i, b := range e.Breaks {
		out.Breaks[i] = Break{StartTime: b.StartTime, EndTime: copyInt64(b.EndTime)}
	}
	return out
}

// PayPeriod aggregates a job's completed entries over [StartDate, EndDate)
type PayPeriod struct {
	ID            string   `json:"id"`
	JobID         string   `json:"job_id"`
	StartDate     int64    `json:"start_date"`
	EndDate       int64    `json:"end_date"`
	TotalDuration int64    `json:"total_duration"`
	TotalEarnings float64  `json:"total_earnings"`
	IsPaid        bool     `json:"is_paid"`
	PaidDate      *int64   `json:"paid_date"`
	TimeEntryIDs  []string `json:"time_entry_ids"`
	CreatedAt     int64    `json:"created_at"`
	UpdatedAt     int64    `json:"updated_at"`
}

// Contains reports whether ts falls inside the half-open period
func (p *PayPeriod) Contains(ts int64) bool {
	return ts >= p.StartDate && ts < p.EndDate
}

// Clone returns a deep copy
func (p PayPeriod) Clone() PayPeriod {
	out := p
	out.PaidDate = copyInt64(p.PaidDate)
	out.TimeEntryIDs = append([]string{}, p.TimeEntryIDs...)
	return out
}

// NewID returns a time-ordered UUIDv7 string
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Millis converts t to epoch milliseconds
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds to a time in loc
func FromMillis(ms int64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc)
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}

func copyInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
