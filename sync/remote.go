package sync

import (
	"context"

	"github.com/teranos/punchclock/mutation"
	"github.com/teranos/punchclock/timesheet"
)

// Result is the remote's answer to a batch push
type Result struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// Remote is the authoritative store. Each Sync call applies one operation
// to a batch of one entity type and must be idempotent by id. Get calls
// return every record of the authenticated user.
type Remote interface {
	SyncJobs(ctx context.Context, jobs []timesheet.Job, op mutation.Operation) (Result, error)
	SyncTimeEntries(ctx context.Context, entries []timesheet.TimeEntry, op mutation.Operation) (Result, error)
	SyncPayPeriods(ctx context.Context, periods []timesheet.PayPeriod, op mutation.Operation) (Result, error)

	GetJobs(ctx context.Context) ([]timesheet.Job, error)
	GetTimeEntries(ctx context.Context) ([]timesheet.TimeEntry, error)
	GetPayPeriods(ctx context.Context) ([]timesheet.PayPeriod, error)
}

// HealthChecker probes whether the remote is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Change tells a device that another device of the same user wrote data
type Change struct {
	Type       string              `json:"type"`
	EntityType mutation.EntityType `json:"entity_type"`
}

// ChangeTypeChanged is the only change type the remote emits today
const ChangeTypeChanged = "changed"

// ChangeSource delivers remote change notifications. The channel closes
// when the subscription ends for any reason.
type ChangeSource interface {
	Subscribe(ctx context.Context) (<-chan Change, error)
}
