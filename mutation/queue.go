package mutation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/logger"
)

// Backend persists queue items. Implementations keep first-enqueue order
// when Put replaces an existing item.
type Backend interface {
	// Get returns the pending item for key, or nil
	Get(ctx context.Context, key Key) (*Item, error)
	// Put inserts or replaces the item for its key
	Put(ctx context.Context, item Item) error
	// Remove deletes the item for key if its version matches
	Remove(ctx context.Context, key Key, version int64) (bool, error)
	// List returns all items in first-enqueue order
	List(ctx context.Context) ([]Item, error)
	// RecordFailure bumps attempts and stores the error for key
	RecordFailure(ctx context.Context, key Key, message string) error
}

// Queue is the coalescing mutation queue
type Queue struct {
	mu      sync.Mutex
	backend Backend
	now     func() time.Time
	logger  *zap.SugaredLogger
}

// NewQueue creates a queue over backend
func NewQueue(backend Backend, log *zap.SugaredLogger) *Queue {
	if log == nil {
		log = logger.Logger
	}
	return &Queue{
		backend: backend,
		now:     time.Now,
		logger:  log.With(logger.FieldComponent, "mutation_queue"),
	}
}

// Enqueue records a mutation of entity (marshalled as the payload),
// coalescing with any pending item for the same entity
func (q *Queue) Enqueue(ctx context.Context, entityType EntityType, entityID string, op Operation, entity any) error {
	if !entityType.Valid() {
		return errors.NewValidationError("unknown entity type %q", entityType)
	}
	if op != OpUpsert && op != OpDelete {
		return errors.NewValidationError("unknown operation %q", op)
	}
	if entityID == "" {
		return errors.NewValidationError("mutation for %s has no entity id", entityType)
	}

	payload, err := json.Marshal(entity)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s %s", entityType, entityID)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	key := Key{EntityType: entityType, EntityID: entityID}
	pending, err := q.backend.Get(ctx, key)
	if err != nil {
		return errors.Wrap(err, "failed to read pending mutation")
	}

	var item Item
	switch {
	case pending == nil:
		item = Item{
			EntityType: entityType,
			EntityID:   entityID,
			Operation:  op,
			Payload:    payload,
			EnqueuedAt: q.now().UnixMilli(),
			Version:    1,
		}
	case pending.Operation == OpDelete:
		q.logger.Debugw("Dropping mutation after pending delete",
			logger.FieldEntityType, entityType,
			logger.FieldOperation, op,
			logger.FieldEntityID, entityID)
		return nil
	default:
		item = *pending
		item.Operation = op
		item.Payload = payload
		item.Version = pending.Version + 1
	}

	if err := q.backend.Put(ctx, item); err != nil {
		return errors.Wrapf(err, "failed to enqueue %s %s", op, entityType)
	}
	return nil
}

// Pending returns all queued items in first-enqueue order
func (q *Queue) Pending(ctx context.Context) ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.backend.List(ctx)
}

// Len returns the number of queued items
func (q *Queue) Len(ctx context.Context) (int, error) {
	items, err := q.Pending(ctx)
	return len(items), err
}

// PendingKeys returns the set of entities with a queued mutation
func (q *Queue) PendingKeys(ctx context.Context) (map[Key]bool, error) {
	items, err := q.Pending(ctx)
	if err != nil {
		return nil, err
	}
	keys := make(map[Key]bool, len(items))
	for _, it := range items {
		keys[it.Key()] = true
	}
	return keys, nil
}

// Ack removes items the remote acknowledged. An item whose stored version
// moved on since it was read stays queued. Returns how many were removed.
func (q *Queue) Ack(ctx context.Context, items []Item) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for _, it := range items {
		ok, err := q.backend.Remove(ctx, it.Key(), it.Version)
		if err != nil {
			return removed, errors.Wrapf(err, "failed to ack %s %s", it.EntityType, it.EntityID)
		}
		if ok {
			removed++
		} else {
			q.logger.Debugw("Mutation changed during push, keeping it queued",
				logger.FieldEntityType, it.EntityType,
				logger.FieldEntityID, it.EntityID)
		}
	}
	return removed, nil
}

// Fail records a failed push attempt for items; they stay queued
func (q *Queue) Fail(ctx context.Context, items []Item, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	for _, it := range items {
		if err := q.backend.RecordFailure(ctx, it.Key(), msg); err != nil {
			return errors.Wrapf(err, "failed to record failure for %s %s", it.EntityType, it.EntityID)
		}
	}
	return nil
}
