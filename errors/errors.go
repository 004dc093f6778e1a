// Package errors provides error handling for punchclock.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints
//
// On top of that it defines the error taxonomy shared by the tracker, the
// sync engine and the remote authority:
//
//	ErrValidation    malformed timestamps, overlapping breaks, bad settings
//	ErrConflict      double clock-in
//	ErrNotFound      operating on a missing job, entry or pay period
//	ErrSync          network or server failure during push or pull
//	ErrUnauthorized  invalid or expired session
//
// Usage:
//
//	if active != nil {
//	    return errors.NewConflictError("job %s already has an active entry", jobID)
//	}
//
//	if errors.IsNotFoundError(err) {
//	    // handle missing entity
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is           = crdb.Is
	IsAny        = crdb.IsAny
	As           = crdb.As
	Unwrap       = crdb.Unwrap
	UnwrapAll    = crdb.UnwrapAll
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
	GetStack     = crdb.GetReportableStackTrace
	Mark         = crdb.Mark
)

// Sentinel errors. Wrap these with the helpers below to add context while
// preserving errors.Is.
var (
	// ErrValidation indicates input was rejected locally and never queued
	ErrValidation = New("validation failed")

	// ErrConflict indicates the operation conflicts with current state
	ErrConflict = New("conflict")

	// ErrNotFound indicates the requested entity does not exist
	ErrNotFound = New("not found")

	// ErrSync indicates a push or pull against the remote failed
	ErrSync = New("sync failed")

	// ErrUnauthorized indicates the session is missing, invalid or expired
	ErrUnauthorized = New("unauthorized")

	// ErrOffline indicates no network connectivity is available
	ErrOffline = New("offline")
)

// IsValidationError checks if an error is or wraps ErrValidation
func IsValidationError(err error) bool {
	return err != nil && Is(err, ErrValidation)
}

// IsConflictError checks if an error is or wraps ErrConflict
func IsConflictError(err error) bool {
	return err != nil && Is(err, ErrConflict)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsSyncError checks if an error is or wraps ErrSync
func IsSyncError(err error) bool {
	return err != nil && Is(err, ErrSync)
}

// IsAuthError checks if an error is or wraps ErrUnauthorized
func IsAuthError(err error) bool {
	return err != nil && Is(err, ErrUnauthorized)
}

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...interface{}) error {
	return Wrapf(ErrValidation, format, args...)
}

// NewConflictError creates a conflict error with a formatted message
func NewConflictError(format string, args ...interface{}) error {
	return Wrapf(ErrConflict, format, args...)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrapf(ErrNotFound, format, args...)
}

// WrapSync marks err as a sync failure, keeping the original cause reachable.
// Auth failures are left alone so callers can still prompt re-authentication.
func WrapSync(err error, context string) error {
	if err == nil {
		return nil
	}
	if IsAuthError(err) {
		return Wrap(err, context)
	}
	return Wrap(Mark(err, ErrSync), context)
}

// NewAuthError creates an unauthorized error with a formatted message
func NewAuthError(format string, args ...interface{}) error {
	return WithHint(Wrapf(ErrUnauthorized, format, args...), "sign in again to refresh the session token")
}
