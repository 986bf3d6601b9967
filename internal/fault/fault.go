// Package fault defines the error taxonomy shared by all coordinator
// operations. Every public operation returns either a success payload or
// exactly one fault kind with a human-readable message; callers branch on
// the kind, not on message text.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a coordinator failure.
type Kind int

const (
	// KindInternal is any unexpected condition. It is the zero-adjacent
	// catch-all: errors that carry no explicit kind classify as Internal.
	KindInternal Kind = iota

	// KindInvalidArgument covers name grammar, status values, progress
	// range, and message type violations.
	KindInvalidArgument

	// KindNotFound means no session, relationship, or request exists for
	// the given key.
	KindNotFound

	// KindConflict covers already-bound relationships, already-existing
	// sessions or worktrees, and illegal status transitions.
	KindConflict

	// KindSecurityViolation means a role capability check failed.
	KindSecurityViolation

	// KindExternalFailure means tmux or git returned non-zero, or the
	// executor reported a timeout or missing binary.
	KindExternalFailure

	// KindResourceExhausted covers queue caps and an open circuit breaker.
	KindResourceExhausted
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindSecurityViolation:
		return "security_violation"
	case KindExternalFailure:
		return "external_failure"
	case KindResourceExhausted:
		return "resource_exhausted"
	default:
		return "internal"
	}
}

// Error is a classified coordinator error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // optional cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. Returns nil if err is nil.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain. Unclassified errors are
// Internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
