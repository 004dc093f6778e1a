package store

import (
	"context"
	"sync"

	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/timesheet"
)

// MemoryStore is a Repository held in memory. Values are copied in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]timesheet.Job
	entries map[string]timesheet.TimeEntry
	periods map[string]timesheet.PayPeriod
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]timesheet.Job),
		entries: make(map[string]timesheet.TimeEntry),
		periods: make(map[string]timesheet.PayPeriod),
	}
}

func cloneJob(j timesheet.Job) timesheet.Job {
	j.Settings.PresetBreaks = append([]timesheet.PresetBreak{}, j.Settings.PresetBreaks...)
	j.Settings.Deductions = append([]timesheet.Deduction{}, j.Settings.Deductions...)
	return j
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (*timesheet.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.NewNotFoundError("job %s", id)
	}
	j = cloneJob(j)
	return &j, nil
}

func (s *MemoryStore) ListJobs(_ context.Context) ([]timesheet.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]timesheet.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, cloneJob(j))
	}
	sortJobs(out)
	return out, nil
}

func (s *MemoryStore) PutJob(_ context.Context, job timesheet.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *MemoryStore) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return errors.NewNotFoundError("job %s", id)
	}
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) GetTimeEntry(_ context.Context, id string) (*timesheet.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, errors.NewNotFoundError("time entry %s", id)
	}
	e = e.Clone()
	return &e, nil
}

func (s *MemoryStore) ListTimeEntries(_ context.Context, jobID string) ([]timesheet.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]timesheet.TimeEntry, 0)
	for _, e := range s.entries {
		if jobID == "" || e.JobID == jobID {
			out = append(out, e.Clone())
		}
	}
	sortEntries(out)
	return out, nil
}

func (s *MemoryStore) ActiveEntry(_ context.Context, jobID string) (*timesheet.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.JobID == jobID && e.EndTime == nil {
			e = e.Clone()
			return &e, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) PutTimeEntry(_ context.Context, entry timesheet.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry.Clone()
	return nil
}

func (s *MemoryStore) DeleteTimeEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return errors.NewNotFoundError("time entry %s", id)
	}
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) GetPayPeriod(_ context.Context, id string) (*timesheet.PayPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.periods[id]
	if !ok {
		return nil, errors.NewNotFoundError("pay period %s", id)
	}
	p = p.Clone()
	return &p, nil
}

func (s *MemoryStore) ListPayPeriods(_ context.Context, jobID string) ([]timesheet.PayPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]timesheet.PayPeriod, 0)
	for _, p := range s.periods {
		if jobID == "" || p.JobID == jobID {
			out = append(out, p.Clone())
		}
	}
	sortPeriods(out)
	return out, nil
}

func (s *MemoryStore) PutPayPeriod(_ context.Context, period timesheet.PayPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods[period.ID] = period.Clone()
	return nil
}

func (s *MemoryStore) DeletePayPeriod(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.periods[id]; !ok {
		return errors.NewNotFoundError("pay period %s", id)
	}
	delete(s.periods, id)
	return nil
}
