package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/timesheet"
)

// SQLStore is a Repository over the local SQLite schema. Nested values
// (settings, breaks, entry id sets) are stored as JSON columns.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store over a migrated local database
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

// Jobs

const jobColumns = `id, user_id, title, client, hourly_rate, color, settings, created_at, updated_at`

func scanJob(s scanner) (*timesheet.Job, error) {
	var j timesheet.Job
	var settings string
	if err := s.Scan(&j.ID, &j.UserID, &j.Title, &j.Client, &j.HourlyRate, &j.Color, &settings, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(settings), &j.Settings); err != nil {
		return nil, errors.Wrapf(err, "job %s has corrupt settings", j.ID)
	}
	return &j, nil
}

func (s *SQLStore) GetJob(ctx context.Context, id string) (*timesheet.Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("job %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}
	return j, nil
}

func (s *SQLStore) ListJobs(ctx context.Context) ([]timesheet.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at, id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	jobs := make([]timesheet.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (s *SQLStore) PutJob(ctx context.Context, job timesheet.Job) error {
	settings, err := json.Marshal(job.Settings)
	if err != nil {
		return errors.Wrap(err, "failed to marshal job settings")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id = excluded.user_id, title = excluded.title, client = excluded.client,
		   hourly_rate = excluded.hourly_rate, color = excluded.color, settings = excluded.settings,
		   created_at = excluded.created_at, updated_at = excluded.updated_at`,
		job.ID, job.UserID, job.Title, job.Client, job.HourlyRate, job.Color, string(settings), job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "failed to store job %s", job.ID)
	}
	return nil
}

func (s *SQLStore) DeleteJob(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "jobs", "job", id)
}

// Time entries

const entryColumns = `id, job_id, start_time, end_time, note, breaks, is_on_break, paid_in_period_id, created_at, updated_at`

func scanEntry(s scanner) (*timesheet.TimeEntry, error) {
	var e timesheet.TimeEntry
	var end sql.NullInt64
	var paid sql.NullString
	var breaks string
	if err := s.Scan(&e.ID, &e.JobID, &e.StartTime, &end, &e.Note, &breaks, &e.IsOnBreak, &paid, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if end.Valid {
		e.EndTime = timesheet.Ptr(end.Int64)
	}
	if paid.Valid {
		e.PaidInPeriodID = timesheet.Ptr(paid.String)
	}
	if err := json.Unmarshal([]byte(breaks), &e.Breaks); err != nil {
		return nil, errors.Wrapf(err, "time entry %s has corrupt breaks", e.ID)
	}
	if e.Breaks == nil {
		e.Breaks = []timesheet.Break{}
	}
	return &e, nil
}

func (s *SQLStore) GetTimeEntry(ctx context.Context, id string) (*timesheet.TimeEntry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("time entry %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get time entry")
	}
	return e, nil
}

func (s *SQLStore) ListTimeEntries(ctx context.Context, jobID string) ([]timesheet.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries`
	var args []any
	if jobID != "" {
		query += ` WHERE job_id = ?`
		args = append(args, jobID)
	}
	query += ` ORDER BY start_time, id`
	return s.queryEntries(ctx, query, args...)
}

func (s *SQLStore) ActiveEntry(ctx context.Context, jobID string) (*timesheet.TimeEntry, error) {
	entries, err := s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE job_id = ? AND end_time IS NULL ORDER BY start_time LIMIT 1`, jobID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (s *SQLStore) queryEntries(ctx context.Context, query string, args ...any) ([]timesheet.TimeEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list time entries")
	}
	defer rows.Close()

	entries := make([]timesheet.TimeEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan time entry")
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *SQLStore) PutTimeEntry(ctx context.Context, e timesheet.TimeEntry) error {
	breaks := e.Breaks
	if breaks == nil {
		breaks = []timesheet.Break{}
	}
	data, err := json.Marshal(breaks)
	if err != nil {
		return errors.Wrap(err, "failed to marshal breaks")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO time_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   job_id = excluded.job_id, start_time = excluded.start_time, end_time = excluded.end_time,
		   note = excluded.note, breaks = excluded.breaks, is_on_break = excluded.is_on_break,
		   paid_in_period_id = excluded.paid_in_period_id,
		   created_at = excluded.created_at, updated_at = excluded.updated_at`,
		e.ID, e.JobID, e.StartTime, nullInt64(e.EndTime), e.Note, string(data), e.IsOnBreak,
		nullString(e.PaidInPeriodID), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "failed to store time entry %s", e.ID)
	}
	return nil
}

func (s *SQLStore) DeleteTimeEntry(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "time_entries", "time entry", id)
}

// Pay periods

const periodColumns = `id, job_id, start_date, end_date, total_duration, total_earnings, is_paid, paid_date, time_entry_ids, created_at, updated_at`

func scanPeriod(s scanner) (*timesheet.PayPeriod, error) {
	var p timesheet.PayPeriod
	var paidDate sql.NullInt64
	var ids string
	if err := s.Scan(&p.ID, &p.JobID, &p.StartDate, &p.EndDate, &p.TotalDuration, &p.TotalEarnings, &p.IsPaid, &paidDate, &ids, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if paidDate.Valid {
		p.PaidDate = timesheet.Ptr(paidDate.Int64)
	}
	if err := json.Unmarshal([]byte(ids), &p.TimeEntryIDs); err != nil {
		return nil, errors.Wrapf(err, "pay period %s has corrupt entry ids", p.ID)
	}
	if p.TimeEntryIDs == nil {
		p.TimeEntryIDs = []string{}
	}
	return &p, nil
}

func (s *SQLStore) GetPayPeriod(ctx context.Context, id string) (*timesheet.PayPeriod, error) {
	p, err := scanPeriod(s.db.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM pay_periods WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("pay period %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pay period")
	}
	return p, nil
}

func (s *SQLStore) ListPayPeriods(ctx context.Context, jobID string) ([]timesheet.PayPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM pay_periods`
	var args []any
	if jobID != "" {
		query += ` WHERE job_id = ?`
		args = append(args, jobID)
	}
	query += ` ORDER BY start_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pay periods")
	}
	defer rows.Close()

	periods := make([]timesheet.PayPeriod, 0)
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan pay period")
		}
		periods = append(periods, *p)
	}
	return periods, rows.Err()
}

func (s *SQLStore) PutPayPeriod(ctx context.Context, p timesheet.PayPeriod) error {
	ids := p.TimeEntryIDs
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return errors.Wrap(err, "failed to marshal entry ids")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pay_periods (`+periodColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   job_id = excluded.job_id, start_date = excluded.start_date, end_date = excluded.end_date,
		   total_duration = excluded.total_duration, total_earnings = excluded.total_earnings,
		   is_paid = excluded.is_paid, paid_date = excluded.paid_date, time_entry_ids = excluded.time_entry_ids,
		   created_at = excluded.created_at, updated_at = excluded.updated_at`,
		p.ID, p.JobID, p.StartDate, p.EndDate, p.TotalDuration, p.TotalEarnings, p.IsPaid,
		nullInt64(p.PaidDate), string(data), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "failed to store pay period %s", p.ID)
	}
	return nil
}

func (s *SQLStore) DeletePayPeriod(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "pay_periods", "pay period", id)
}

func (s *SQLStore) deleteByID(ctx context.Context, table, noun, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete %s %s", noun, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("%s %s", noun, id)
	}
	return nil
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
