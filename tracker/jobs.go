package tracker

import (
	"context"
	"strings"

	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/logger"
	"github.com/teranos/punchclock/mutation"
	"github.com/teranos/punchclock/timesheet"
)

// JobInput holds the user-editable fields of a job
type JobInput struct {
	Title      string
	Client     string
	HourlyRate float64
	Color      string
	Settings   timesheet.JobSettings
}

func (in *JobInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return errors.NewValidationError("job title is required")
	}
	if in.HourlyRate < 0 {
		return errors.NewValidationError("hourly rate must be non-negative, got %v", in.HourlyRate)
	}
	in.Settings = in.Settings.Normalize()
	return in.Settings.Validate()
}

// CreateJob creates a job with normalized settings
func (t *Tracker) CreateJob(ctx context.Context, in JobInput) (*timesheet.Job, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowMillis()
	job := timesheet.Job{
		ID:         timesheet.NewID(),
		UserID:     t.userID,
		Title:      in.Title,
		Client:     in.Client,
		HourlyRate: in.HourlyRate,
		Color:      in.Color,
		Settings:   in.Settings,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := t.repo.PutJob(ctx, job); err != nil {
		return nil, err
	}
	if err := t.enqueue(ctx, mutation.EntityJob, job.ID, mutation.OpUpsert, job); err != nil {
		return nil, err
	}

	t.logger.Infow("Job created", logger.FieldJobID, job.ID, "title", job.Title)
	return &job, nil
}

// UpdateJob replaces a job's editable fields
func (t *Tracker) UpdateJob(ctx context.Context, id string, in JobInput) (*timesheet.Job, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.repo.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Title = in.Title
	job.Client = in.Client
	job.HourlyRate = in.HourlyRate
	job.Color = in.Color
	job.Settings = in.Settings
	job.UpdatedAt = t.nowMillis()

	if err := t.repo.PutJob(ctx, *job); err != nil {
		return nil, err
	}
	if err := t.enqueue(ctx, mutation.EntityJob, job.ID, mutation.OpUpsert, *job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob returns a job
func (t *Tracker) GetJob(ctx context.Context, id string) (*timesheet.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repo.GetJob(ctx, id)
}

// ListJobs returns all jobs
func (t *Tracker) ListJobs(ctx context.Context) ([]timesheet.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repo.ListJobs(ctx)
}

// DeleteJob deletes a job with its time entries and pay periods, queuing a
// delete for each so the cascade reaches the remote too
func (t *Tracker) DeleteJob(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.repo.GetJob(ctx, id)
	if err != nil {
		return err
	}

	periods, err := t.repo.ListPayPeriods(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range periods {
		if err := t.repo.DeletePayPeriod(ctx, p.ID); err != nil {
			return err
		}
		if err := t.enqueue(ctx, mutation.EntityPayPeriod, p.ID, mutation.OpDelete, p); err != nil {
			return err
		}
	}

	entries, err := t.repo.ListTimeEntries(ctx, id)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := t.repo.DeleteTimeEntry(ctx, e.ID); err != nil {
			return err
		}
		if err := t.enqueue(ctx, mutation.EntityTimeEntry, e.ID, mutation.OpDelete, e); err != nil {
			return err
		}
	}

	if err := t.repo.DeleteJob(ctx, id); err != nil {
		return err
	}
	if err := t.enqueue(ctx, mutation.EntityJob, id, mutation.OpDelete, *job); err != nil {
		return err
	}

	t.logger.Infow("Job deleted",
		logger.FieldJobID, id,
		"entries", len(entries),
		"pay_periods", len(periods))
	return nil
}
