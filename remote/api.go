// Package remote is the client side of the remote authority's HTTP+JSON
// API. It also defines the wire types shared with the server package.
package remote

import (
	"encoding/json"

	"github.com/teranos/punchclock/mutation"
)

// APIVersion is the protocol version this client speaks. Servers with the
// same major version are compatible.
const APIVersion = "1.0.0"

// Endpoint paths
const (
	PathHealth     = "/api/health"
	PathSyncPrefix = "/api/sync/"
	PathListPrefix = "/api/"
	PathChanges    = "/ws/changes"
)

var resources = map[mutation.EntityType]string{
	mutation.EntityJob:       "jobs",
	mutation.EntityTimeEntry: "time_entries",
	mutation.EntityPayPeriod: "pay_periods",
}

// Resource returns the URL segment for an entity type
func Resource(et mutation.EntityType) string {
	return resources[et]
}

// EntityForResource maps a URL segment back to its entity type
func EntityForResource(resource string) (mutation.EntityType, bool) {
	for et, r := range resources {
		if r == resource {
			return et, true
		}
	}
	return "", false
}

// SyncRequest is the body of POST /api/sync/{resource}
type SyncRequest struct {
	Operation mutation.Operation `json:"operation"`
	Items     []json.RawMessage  `json:"items"`
}

// ListResponse is the body of GET /api/{resource}
type ListResponse[T any] struct {
	Items []T `json:"items"`
}

// HealthResponse is the body of GET /api/health
type HealthResponse struct {
	Status     string `json:"status"`
	APIVersion string `json:"api_version"`
}

// ErrorResponse is the body of any non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}
