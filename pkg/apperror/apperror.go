// Package apperror defines the single tagged error type shared by the
// provisioning saga, the subscription ledger, and the HTTP surface.
//
// Callers branch on Kind instead of catching concrete error types. Validation
// errors carry the full list of violated constraints so a client can fix a
// request in one round trip.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a machine-checkable error category.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindProvisioning Kind = "provisioning_failed"
	KindIncomplete   Kind = "reconciliation_incomplete"
	KindInternal     Kind = "internal"
)

// Error is a tagged application error.
type Error struct {
	Kind       Kind
	Message    string
	Violations []string // populated for KindValidation only
	cause      error
}

func (e *Error) Error() string {
	if len(e.Violations) > 0 {
		return e.Message + ": " + strings.Join(e.Violations, "; ")
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new error of the given kind.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Validation creates a validation error from a list of violated constraints.
func Validation(violations ...string) *Error {
	return &Error{
		Kind:       KindValidation,
		Message:    "validation failed",
		Violations: violations,
	}
}

// KindOf extracts the kind from any error chain.
// Unrecognized errors report KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ViolationsOf returns the violation list from a validation error, or nil.
func ViolationsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Violations
	}
	return nil
}
