// Package mutation records local writes that still have to reach the remote.
//
// The queue holds at most one item per entity. Enqueuing again for the
// same entity coalesces into the pending item:
//
//	pending  new     result
//	-        any     new item (version 1)
//	upsert   upsert  payload replaced, version bumped
//	upsert   delete  becomes delete, version bumped
//	delete   any     unchanged (delete is terminal)
//
// Items leave the queue only through Ack, and only when the acknowledged
// version is still the stored one, so an edit made while a push was in
// flight is sent on the next push.
package mutation

import (
	"encoding/json"
)

// EntityType names the kind of entity an item refers to
type EntityType string

const (
	EntityJob       EntityType = "job"
	EntityTimeEntry EntityType = "timeEntry"
	EntityPayPeriod EntityType = "payPeriod"
)

// EntityTypes lists entity types in dependency order (parents first)
var EntityTypes = []EntityType{EntityJob, EntityTimeEntry, EntityPayPeriod}

// Valid reports whether t is a known entity type
func (t EntityType) Valid() bool {
	switch t {
	case EntityJob, EntityTimeEntry, EntityPayPeriod:
		return true
	}
	return false
}

// Operation is the remote call an item turns into
type Operation string

const (
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

// Valid reports whether o is a known operation
func (o Operation) Valid() bool {
	return o == OpUpsert || o == OpDelete
}

// Item is one pending mutation. Payload is the JSON snapshot of the entity
// at enqueue time; deletes carry the last known snapshot.
type Item struct {
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Operation  Operation       `json:"operation"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt int64           `json:"enqueued_at"`
	Version    int64           `json:"version"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
}

// Key identifies the entity an item refers to
type Key struct {
	EntityType EntityType
	EntityID   string
}

// Key returns the item's entity key
func (i Item) Key() Key {
	return Key{EntityType: i.EntityType, EntityID: i.EntityID}
}

// Decode unmarshals the payload into v
func (i Item) Decode(v any) error {
	return json.Unmarshal(i.Payload, v)
}
