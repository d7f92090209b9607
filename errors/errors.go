// Package errors provides error handling for tasklens.
//
// It re-exports github.com/cockroachdb/errors so the rest of the module
// gets stack traces, wrapping, and user-facing remediation hints from a
// single import path:
//
//	// Create new error
//	err := errors.New("no provider configured")
//
//	// Wrap with context
//	if err := gateway.Invoke(ctx, req); err != nil {
//	    return errors.Wrap(err, "query parsing failed")
//	}
//
//	// Attach a remediation hint for users
//	return errors.WithHint(err, "pull the configured model first")
//
//	// Check errors
//	if errors.Is(err, errors.ErrCancelled) {
//	    // user aborted, not a failure
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
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Common sentinel errors for use across tasklens.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotConfigured indicates a required credential or setting is missing
	ErrNotConfigured = New("not configured")

	// ErrCancelled indicates the caller's cancellation signal fired
	ErrCancelled = New("cancelled")

	// ErrServiceUnavailable indicates a required service is not available
	ErrServiceUnavailable = New("service unavailable")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")
)

// IsNotConfiguredError checks if an error is or wraps ErrNotConfigured
func IsNotConfiguredError(err error) bool {
	return err != nil && Is(err, ErrNotConfigured)
}

// IsCancelledError checks if an error is or wraps ErrCancelled
func IsCancelledError(err error) bool {
	return err != nil && Is(err, ErrCancelled)
}
