// Package sync reconciles the local repository with the remote authority.
//
// Push drains the mutation queue in dependency order, pull overwrites local
// records with the remote's copy unless a local write for the same record is
// still queued. The Scheduler decides when a push+pull cycle runs.
package sync

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/logger"
	"github.com/teranos/punchclock/mutation"
	"github.com/teranos/punchclock/store"
	"github.com/teranos/punchclock/timesheet"
)

// upsertOrder pushes parents before children; deletes go the other way
var upsertOrder = []mutation.EntityType{
	mutation.EntityJob,
	mutation.EntityTimeEntry,
	mutation.EntityPayPeriod,
}

// PushResult reports what ProcessQueue sent
type PushResult struct {
	Batches int `json:"batches"`
	Pushed  int `json:"pushed"`
}

// PullResult reports what Refresh merged
type PullResult struct {
	Jobs        int `json:"jobs"`
	TimeEntries int `json:"time_entries"`
	PayPeriods  int `json:"pay_periods"`
	Skipped     int `json:"skipped"`
}

// Total returns the number of records written locally
func (r PullResult) Total() int {
	return r.Jobs + r.TimeEntries + r.PayPeriods
}

// Engine pushes queued mutations and pulls remote state
type Engine struct {
	repo   store.Repository
	queue  *mutation.Queue
	remote Remote
	locker sync.Locker
	logger *zap.SugaredLogger
}

// NewEngine creates a sync engine. locker serializes merges with local
// writes; pass the tracker's lock so a pull never interleaves with an edit.
func NewEngine(repo store.Repository, queue *mutation.Queue, remote Remote, locker sync.Locker, log *zap.SugaredLogger) *Engine {
	if locker == nil {
		locker = &sync.Mutex{}
	}
	if log == nil {
		log = logger.Logger
	}
	return &Engine{
		repo:   repo,
		queue:  queue,
		remote: remote,
		locker: locker,
		logger: log.With(logger.FieldComponent, "sync"),
	}
}

type batch struct {
	entityType mutation.EntityType
	op         mutation.Operation
	items      []mutation.Item
}

// planBatches groups pending items into one batch per entity type and
// operation: upserts job, timeEntry, payPeriod, then deletes in reverse
func planBatches(items []mutation.Item) []batch {
	type group struct {
		et mutation.EntityType
		op mutation.Operation
	}
	grouped := make(map[group][]mutation.Item)
	for _, it := range items {
		k := group{it.EntityType, it.Operation}
		grouped[k] = append(grouped[k], it)
	}

	var out []batch
	add := func(et mutation.EntityType, op mutation.Operation) {
		if its := grouped[group{et, op}]; len(its) > 0 {
			out = append(out, batch{entityType: et, op: op, items: its})
		}
	}
	for _, et := range upsertOrder {
		add(et, mutation.OpUpsert)
	}
	for i := len(upsertOrder) - 1; i >= 0; i-- {
		add(upsertOrder[i], mutation.OpDelete)
	}
	return out
}

// ProcessQueue pushes every pending mutation. Batches are sent in order and
// acked as they succeed; the first failing batch stops the push and stays
// queued for the next attempt.
func (e *Engine) ProcessQueue(ctx context.Context, userID string) (PushResult, error) {
	var res PushResult
	if userID == "" {
		return res, errors.NewAuthError("no authenticated user")
	}

	items, err := e.queue.Pending(ctx)
	if err != nil {
		return res, err
	}
	if len(items) == 0 {
		return res, nil
	}

	for _, b := range planBatches(items) {
		start := time.Now()
		out, err := e.send(ctx, b)
		if err == nil && !out.Success {
			err = errors.Newf("remote rejected %d %s %s mutations", len(b.items), b.op, b.entityType)
		}
		if err != nil {
			if ferr := e.queue.Fail(ctx, b.items, err); ferr != nil {
				e.logger.Warnw("Failed to record push failure", logger.FieldError, ferr)
			}
			return res, errors.WrapSync(err, string(b.op)+" "+string(b.entityType))
		}

		acked, err := e.queue.Ack(ctx, b.items)
		if err != nil {
			return res, err
		}
		res.Batches++
		res.Pushed += len(b.items)

		e.logger.Debugw("Pushed batch",
			logger.FieldUserID, userID,
			logger.FieldEntityType, b.entityType,
			logger.FieldOperation, b.op,
			logger.FieldCount, len(b.items),
			"acked", acked,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	}
	return res, nil
}

func (e *Engine) send(ctx context.Context, b batch) (Result, error) {
	switch b.entityType {
	case mutation.EntityJob:
		jobs, err := decodeAll[timesheet.Job](b.items)
		if err != nil {
			return Result{}, err
		}
		return e.remote.SyncJobs(ctx, jobs, b.op)
	case mutation.EntityTimeEntry:
		entries, err := decodeAll[timesheet.TimeEntry](b.items)
		if err != nil {
			return Result{}, err
		}
		return e.remote.SyncTimeEntries(ctx, entries, b.op)
	case mutation.EntityPayPeriod:
		periods, err := decodeAll[timesheet.PayPeriod](b.items)
		if err != nil {
			return Result{}, err
		}
		return e.remote.SyncPayPeriods(ctx, periods, b.op)
	default:
		return Result{}, errors.Newf("unknown entity type %q", b.entityType)
	}
}

func decodeAll[T any](items []mutation.Item) ([]T, error) {
	out := make([]T, len(items))
	for i, it := range items {
		if err := it.Decode(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Refresh pulls every entity type and merges by whole-record overwrite.
// Records only present locally are kept. Records with a queued local
// mutation are skipped until that mutation is pushed. A running entry is
// skipped when its job already runs a different local entry.
func (e *Engine) Refresh(ctx context.Context, userID string) (PullResult, error) {
	var res PullResult
	if userID == "" {
		return res, errors.NewAuthError("no authenticated user")
	}

	jobs, err := e.remote.GetJobs(ctx)
	if err != nil {
		return res, errors.WrapSync(err, "pull jobs")
	}
	entries, err := e.remote.GetTimeEntries(ctx)
	if err != nil {
		return res, errors.WrapSync(err, "pull time entries")
	}
	periods, err := e.remote.GetPayPeriods(ctx)
	if err != nil {
		return res, errors.WrapSync(err, "pull pay periods")
	}

	e.locker.Lock()
	defer e.locker.Unlock()

	pending, err := e.queue.PendingKeys(ctx)
	if err != nil {
		return res, err
	}
	skip := func(et mutation.EntityType, id string) bool {
		if pending[mutation.Key{EntityType: et, EntityID: id}] {
			res.Skipped++
			return true
		}
		return false
	}

	for _, j := range jobs {
		if skip(mutation.EntityJob, j.ID) {
			continue
		}
		if err := e.repo.PutJob(ctx, j); err != nil {
			return res, err
		}
		res.Jobs++
	}
	// Completed entries first, so a pulled clock-out frees its job
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].EndTime != nil && entries[j].EndTime == nil })
	for _, te := range entries {
		if skip(mutation.EntityTimeEntry, te.ID) {
			continue
		}
		if te.EndTime == nil {
			active, err := e.repo.ActiveEntry(ctx, te.JobID)
			if err != nil {
				return res, err
			}
			if active != nil && active.ID != te.ID {
				e.logger.Warnw("Pulled running entry conflicts with local active entry",
					logger.FieldJobID, te.JobID,
					logger.FieldEntryID, te.ID,
					"active_entry_id", active.ID)
				res.Skipped++
				continue
			}
		}
		if err := e.repo.PutTimeEntry(ctx, te); err != nil {
			return res, err
		}
		res.TimeEntries++
	}
	for _, p := range periods {
		if skip(mutation.EntityPayPeriod, p.ID) {
			continue
		}
		if err := e.repo.PutPayPeriod(ctx, p); err != nil {
			return res, err
		}
		res.PayPeriods++
	}

	e.logger.Debugw("Pulled remote state",
		logger.FieldUserID, userID,
		logger.FieldPulled, res.Total(),
		"skipped", res.Skipped)
	return res, nil
}

// FullSync pushes then pulls. A failed push skips the pull.
func (e *Engine) FullSync(ctx context.Context, userID string) (PushResult, PullResult, error) {
	pushed, err := e.ProcessQueue(ctx, userID)
	if err != nil {
		return pushed, PullResult{}, err
	}
	pulled, err := e.Refresh(ctx, userID)
	return pushed, pulled, err
}
