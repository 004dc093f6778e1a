package tracker

import (
	"context"

	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/logger"
	"github.com/teranos/punchclock/mutation"
	"github.com/teranos/punchclock/timesheet"
)

// JobStats returns the net duration and earnings of all of the job's entries
func (t *Tracker) JobStats(ctx context.Context, jobID string) (timesheet.Stats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.repo.GetJob(ctx, jobID)
	if err != nil {
		return timesheet.Stats{}, err
	}
	entries, err := t.repo.ListTimeEntries(ctx, jobID)
	if err != nil {
		return timesheet.Stats{}, err
	}
	return timesheet.ComputeStats(entries, *job, t.nowMillis(), t.loc), nil
}

// PayPeriods regenerates the job's pay periods from its completed entries
// and persists the result. New or changed periods are queued for upsert;
// unpaid periods that no longer hold any entry are deleted.
func (t *Tracker) PayPeriods(ctx context.Context, jobID string) ([]timesheet.PayPeriod, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.materializePeriods(ctx, jobID)
}

func (t *Tracker) materializePeriods(ctx context.Context, jobID string) ([]timesheet.PayPeriod, error) {
	job, err := t.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	entries, err := t.repo.ListTimeEntries(ctx, jobID)
	if err != nil {
		return nil, err
	}
	existing, err := t.repo.ListPayPeriods(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := t.nowMillis()
	generated := timesheet.GeneratePayPeriods(*job, entries, existing, t.loc, now)

	byID := make(map[string]timesheet.PayPeriod, len(existing))
	for _, p := range existing {
		byID[p.ID] = p
	}

	changed := 0
	for i, p := range generated {
		if old, ok := byID[p.ID]; ok {
			delete(byID, p.ID)
			if timesheet.SamePeriodContent(old, p) {
				continue
			}
			p.UpdatedAt = now
			generated[i] = p
		}
		if err := t.savePeriod(ctx, p); err != nil {
			return nil, err
		}
		changed++
	}

	for _, stale := range byID {
		if stale.IsPaid {
			continue
		}
		if err := t.repo.DeletePayPeriod(ctx, stale.ID); err != nil {
			return nil, err
		}
		if err := t.enqueue(ctx, mutation.EntityPayPeriod, stale.ID, mutation.OpDelete, stale); err != nil {
			return nil, err
		}
		changed++
	}

	if changed > 0 {
		t.logger.Debugw("Pay periods materialized", logger.FieldJobID, jobID, logger.FieldCount, changed)
	}
	return t.repo.ListPayPeriods(ctx, jobID)
}

// MarkPayPeriodAsPaid marks the period paid now and stamps its entries
func (t *Tracker) MarkPayPeriodAsPaid(ctx context.Context, id string) (*timesheet.PayPeriod, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	period, err := t.repo.GetPayPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	if period.IsPaid {
		return nil, errors.NewValidationError("pay period %s is already paid", id)
	}

	now := t.nowMillis()
	period.IsPaid = true
	period.PaidDate = timesheet.Ptr(now)
	period.UpdatedAt = now
	if err := t.savePeriod(ctx, *period); err != nil {
		return nil, err
	}

	err = t.stampEntries(ctx, period.TimeEntryIDs, func(e *timesheet.TimeEntry) bool {
		e.PaidInPeriodID = timesheet.Ptr(id)
		return true
	})
	if err != nil {
		return nil, err
	}

	t.logger.Infow("Pay period marked paid", logger.FieldPeriodID, id, logger.FieldCount, len(period.TimeEntryIDs))
	return period, nil
}

// MarkPayPeriodAsUnpaid reverses MarkPayPeriodAsPaid
func (t *Tracker) MarkPayPeriodAsUnpaid(ctx context.Context, id string) (*timesheet.PayPeriod, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	period, err := t.repo.GetPayPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	if !period.IsPaid {
		return nil, errors.NewValidationError("pay period %s is not paid", id)
	}

	period.IsPaid = false
	period.PaidDate = nil
	period.UpdatedAt = t.nowMillis()
	if err := t.savePeriod(ctx, *period); err != nil {
		return nil, err
	}

	err = t.stampEntries(ctx, period.TimeEntryIDs, func(e *timesheet.TimeEntry) bool {
		if e.PaidInPeriodID == nil || *e.PaidInPeriodID != id {
			return false
		}
		e.PaidInPeriodID = nil
		return true
	})
	if err != nil {
		return nil, err
	}
	return period, nil
}

// stampEntries applies fn to each listed entry and saves the ones it changed.
// Entries deleted since the period was generated are skipped.
func (t *Tracker) stampEntries(ctx context.Context, ids []string, fn func(*timesheet.TimeEntry) bool) error {
	for _, entryID := range ids {
		entry, err := t.repo.GetTimeEntry(ctx, entryID)
		if errors.IsNotFoundError(err) {
			continue
		}
		if err != nil {
			return err
		}
		if !fn(entry) {
			continue
		}
		entry.UpdatedAt = t.nowMillis()
		if err := t.saveEntry(ctx, *entry); err != nil {
			return err
		}
	}
	return nil
}

// Summary materializes the job's pay periods and totals them
func (t *Tracker) Summary(ctx context.Context, jobID string) (timesheet.Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	periods, err := t.materializePeriods(ctx, jobID)
	if err != nil {
		return timesheet.Summary{}, err
	}
	job, err := t.repo.GetJob(ctx, jobID)
	if err != nil {
		return timesheet.Summary{}, err
	}
	return timesheet.Summarize(periods, job.Settings), nil
}
