package tracker

import (
	"context"

	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/logger"
	"github.com/teranos/punchclock/mutation"
	"github.com/teranos/punchclock/timesheet"
)

// State returns the job's tracking state and its active entry, if any
func (t *Tracker) State(ctx context.Context, jobID string) (State, *timesheet.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.repo.GetJob(ctx, jobID); err != nil {
		return "", nil, err
	}
	active, err := t.repo.ActiveEntry(ctx, jobID)
	if err != nil {
		return "", nil, err
	}
	switch {
	case active == nil:
		return StateIdle, nil, nil
	case active.IsOnBreak:
		return StateOnBreak, active, nil
	default:
		return StateRunning, active, nil
	}
}

// ActiveEntry returns the job's running entry, or nil
func (t *Tracker) ActiveEntry(ctx context.Context, jobID string) (*timesheet.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repo.ActiveEntry(ctx, jobID)
}

// ListTimeEntries returns the job's entries ordered by start time
func (t *Tracker) ListTimeEntries(ctx context.Context, jobID string) ([]timesheet.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repo.ListTimeEntries(ctx, jobID)
}

// GetTimeEntry returns one entry
func (t *Tracker) GetTimeEntry(ctx context.Context, id string) (*timesheet.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repo.GetTimeEntry(ctx, id)
}

// ClockIn starts a running entry for the job. at backdates the start;
// nil means now.
func (t *Tracker) ClockIn(ctx context.Context, jobID, note string, at *int64) (*timesheet.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start, err := t.timestamp(at)
	if err != nil {
		return nil, err
	}
	if _, err := t.repo.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	active, err := t.repo.ActiveEntry(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, errors.NewConflictError("job %s already has an active entry %s", jobID, active.ID)
	}

	now := t.nowMillis()
	entry := timesheet.TimeEntry{
		ID:        timesheet.NewID(),
		JobID:     jobID,
		StartTime: start,
		Note:      note,
		Breaks:    []timesheet.Break{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.saveEntry(ctx, entry); err != nil {
		return nil, err
	}

	t.logger.Infow("Clocked in", logger.FieldJobID, jobID, logger.FieldEntryID, entry.ID)
	return &entry, nil
}

// ClockOut ends a running entry, closing an open break at the same instant
func (t *Tracker) ClockOut(ctx context.Context, entryID string, at *int64) (*timesheet.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	end, err := t.timestamp(at)
	if err != nil {
		return nil, err
	}
	entry, err := t.repo.GetTimeEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.IsActive() {
		return nil, errors.NewValidationError("time entry %s is already clocked out", entryID)
	}
	if end <= entry.StartTime {
		return nil, errors.NewValidationError("clock-out %d must be after start %d", end, entry.StartTime)
	}
	if n := len(entry.Breaks); n > 0 && end <= entry.Breaks[n-1].StartTime {
		return nil, errors.NewValidationError("clock-out %d must be after the last break start %d", end, entry.Breaks[n-1].StartTime)
	}

	if b := entry.OpenBreak(); b != nil {
		b.EndTime = timesheet.Ptr(end)
	}
	entry.IsOnBreak = false
	entry.EndTime = timesheet.Ptr(end)
	entry.UpdatedAt = t.nowMillis()

	if err := timesheet.ValidateEntry(*entry); err != nil {
		return nil, err
	}
	if err := t.saveEntry(ctx, *entry); err != nil {
		return nil, err
	}

	t.logger.Infow("Clocked out", logger.FieldJobID, entry.JobID, logger.FieldEntryID, entry.ID)
	return entry, nil
}

// StartBreak opens a break on a running entry
func (t *Tracker) StartBreak(ctx context.Context, entryID string, at *int64) (*timesheet.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start, err := t.timestamp(at)
	if err != nil {
		return nil, err
	}
	entry, err := t.repo.GetTimeEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.IsActive() {
		return nil, errors.NewValidationError("time entry %s is clocked out", entryID)
	}
	if entry.IsOnBreak {
		return nil, errors.NewValidationError("time entry %s is already on break", entryID)
	}
	if start < entry.StartTime {
		return nil, errors.NewValidationError("break start %d is before the entry start %d", start, entry.StartTime)
	}
	if n := len(entry.Breaks); n > 0 && entry.Breaks[n-1].EndTime != nil && start < *entry.Breaks[n-1].EndTime {
		return nil, errors.NewValidationError("break start %d overlaps the previous break", start)
	}

	entry.Breaks = append(entry.Breaks, timesheet.Break{StartTime: start})
	entry.IsOnBreak = true
	entry.UpdatedAt = t.nowMillis()

	if err := timesheet.ValidateEntry(*entry); err != nil {
		return nil, err
	}
	if err := t.saveEntry(ctx, *entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// EndBreak closes the open break of an entry
func (t *Tracker) EndBreak(ctx context.Context, entryID string, at *int64) (*timesheet.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	end, err := t.timestamp(at)
	if err != nil {
		return nil, err
	}
	entry, err := t.repo.GetTimeEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	open := entry.OpenBreak()
	if !entry.IsOnBreak || open == nil {
		return nil, errors.NewValidationError("time entry %s is not on break", entryID)
	}
	if end < open.StartTime {
		return nil, errors.NewValidationError("break end %d is before the break start %d", end, open.StartTime)
	}

	open.EndTime = timesheet.Ptr(end)
	entry.IsOnBreak = false
	entry.UpdatedAt = t.nowMillis()

	if err := timesheet.ValidateEntry(*entry); err != nil {
		return nil, err
	}
	if err := t.saveEntry(ctx, *entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// EntryInput holds the user-editable fields of an entry
type EntryInput struct {
	StartTime int64
	EndTime   *int64
	Note      string
	Breaks    []timesheet.Break
}

// AddTimeEntry records a completed entry after the fact
func (t *Tracker) AddTimeEntry(ctx context.Context, jobID string, in EntryInput) (*timesheet.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if in.EndTime == nil {
		return nil, errors.NewValidationError("a manual entry needs an end time, use clock in for running entries")
	}
	if _, err := t.repo.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	now := t.nowMillis()
	entry := timesheet.TimeEntry{
		ID:        timesheet.NewID(),
		JobID:     jobID,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Note:      in.Note,
		Breaks:    append([]timesheet.Break{}, in.Breaks...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := timesheet.ValidateEntry(entry); err != nil {
		return nil, err
	}
	if err := t.saveEntry(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateTimeEntry edits an entry's times, note and breaks. The job and paid
// stamp cannot be changed here. Reopening an entry (nil end) is rejected
// when the job already has another running entry.
func (t *Tracker) UpdateTimeEntry(ctx context.Context, id string, in EntryInput) (*timesheet.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, err := t.repo.GetTimeEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	entry.StartTime = in.StartTime
	entry.EndTime = in.EndTime
	entry.Note = in.Note
	entry.Breaks = append([]timesheet.Break{}, in.Breaks...)
	entry.IsOnBreak = entry.EndTime == nil && entry.OpenBreak() != nil
	entry.UpdatedAt = t.nowMillis()

	if err := timesheet.ValidateEntry(*entry); err != nil {
		return nil, err
	}
	if entry.EndTime == nil {
		active, err := t.repo.ActiveEntry(ctx, entry.JobID)
		if err != nil {
			return nil, err
		}
		if active != nil && active.ID != entry.ID {
			return nil, errors.NewConflictError("job %s already has an active entry %s", entry.JobID, active.ID)
		}
	}
	if err := t.saveEntry(ctx, *entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteTimeEntry deletes an entry and queues the remote delete
func (t *Tracker) DeleteTimeEntry(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, err := t.repo.GetTimeEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := t.repo.DeleteTimeEntry(ctx, id); err != nil {
		return err
	}
	return t.enqueue(ctx, mutation.EntityTimeEntry, id, mutation.OpDelete, *entry)
}
