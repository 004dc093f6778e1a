package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity
	FieldUserID    = "user_id"
	FieldJobID     = "job_id"
	FieldEntryID   = "entry_id"
	FieldPeriodID  = "period_id"
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"

	// Components
	FieldComponent = "component"

	// Sync
	FieldEntityType = "entity_type"
	FieldEntityID   = "entity_id"
	FieldOperation  = "operation"
	FieldTrigger    = "trigger"
	FieldPending    = "pending"
	FieldPushed     = "pushed"
	FieldPulled     = "pulled"
	FieldConnected  = "connected"
	FieldTransport  = "transport"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts
	FieldCount = "count"

	// Network
	FieldAddress = "address"
	FieldURL     = "url"
	FieldPath    = "path"
	FieldMethod  = "method"
	FieldStatus  = "status"
)

// Context keys for propagating logging context
type contextKey string

const (
	requestIDKey contextKey = "logger_request_id"
	userIDKey    contextKey = "logger_user_id"
)

// WithRequestID adds a request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithUserID adds a user ID to the context for logging
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		fields = append(fields, FieldRequestID, requestID)
	}
	if userID, ok := ctx.Value(userIDKey).(string); ok && userID != "" {
		fields = append(fields, FieldUserID, userID)
	}

	return fields
}

// LoggerFromContext returns a logger with fields extracted from context.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return Logger
	}
	return Logger.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	engine := sync.NewEngine(repo, queue, remote, logger.ComponentLogger("sync"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
