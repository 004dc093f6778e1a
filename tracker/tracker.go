// Package tracker is the write path for time tracking. Every operation
// validates against current state, writes the repository and enqueues the
// matching mutation. Rejected operations never touch the queue.
package tracker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/logger"
	"github.com/teranos/punchclock/mutation"
	"github.com/teranos/punchclock/store"
	"github.com/teranos/punchclock/timesheet"
)

// State of a job's time tracking
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateOnBreak State = "on_break"
)

// Config configures a Tracker
type Config struct {
	UserID   string           // stamped on new jobs
	Location *time.Location   // pay period and week boundaries (default Local)
	Now      func() time.Time // clock (default time.Now)
	Logger   *zap.SugaredLogger
}

// Tracker serializes all local mutations
type Tracker struct {
	mu     sync.Mutex
	repo   store.Repository
	queue  *mutation.Queue
	userID string
	loc    *time.Location
	now    func() time.Time
	logger *zap.SugaredLogger
}

// New creates a Tracker over repo and queue
func New(repo store.Repository, queue *mutation.Queue, cfg Config) *Tracker {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Logger
	}
	return &Tracker{
		repo:   repo,
		queue:  queue,
		userID: cfg.UserID,
		loc:    cfg.Location,
		now:    cfg.Now,
		logger: cfg.Logger.With(logger.FieldComponent, "tracker"),
	}
}

// Locker returns the lock that serializes tracker writes. The sync engine
// holds it while merging pulled records, never across network calls.
func (t *Tracker) Locker() sync.Locker {
	return &t.mu
}

// SetUserID changes the user stamped on new jobs
func (t *Tracker) SetUserID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userID = id
}

// Location returns the tracker's time zone
func (t *Tracker) Location() *time.Location {
	return t.loc
}

func (t *Tracker) nowMillis() int64 {
	return t.now().UnixMilli()
}

// timestamp resolves an optional caller-supplied time
func (t *Tracker) timestamp(at *int64) (int64, error) {
	if at == nil {
		return t.nowMillis(), nil
	}
	if *at <= 0 {
		return 0, errors.NewValidationError("invalid timestamp %d", *at)
	}
	return *at, nil
}

func (t *Tracker) enqueue(ctx context.Context, et mutation.EntityType, id string, op mutation.Operation, entity any) error {
	if err := t.queue.Enqueue(ctx, et, id, op, entity); err != nil {
		return errors.Wrapf(err, "%s stored locally but not queued for sync", et)
	}
	return nil
}

func (t *Tracker) saveEntry(ctx context.Context, e timesheet.TimeEntry) error {
	if err := t.repo.PutTimeEntry(ctx, e); err != nil {
		return err
	}
	return t.enqueue(ctx, mutation.EntityTimeEntry, e.ID, mutation.OpUpsert, e)
}

func (t *Tracker) savePeriod(ctx context.Context, p timesheet.PayPeriod) error {
	if err := t.repo.PutPayPeriod(ctx, p); err != nil {
		return err
	}
	return t.enqueue(ctx, mutation.EntityPayPeriod, p.ID, mutation.OpUpsert, p)
}
