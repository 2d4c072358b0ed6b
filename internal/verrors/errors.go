// Package verrors centralizes the error-kind enumeration from spec.md §7.
// Checked-exception control flow in the original collapses here to a
// single wrapped-error type callers can switch on with errors.As, rather
// than a tree of exception classes.
package verrors

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed, per spec.md §7.
type Kind string

const (
	// KindNotLeader: this node is not the authoritative controller for
	// the cluster; non-retryable here, the caller should consult discovery.
	KindNotLeader Kind = "NOT_LEADER"
	// KindNotFound: store/version/resource/topic absent.
	KindNotFound Kind = "NOT_FOUND"
	// KindAlreadyExists: store/version/resource/topic present.
	KindAlreadyExists Kind = "ALREADY_EXISTS"
	// KindConflict: precondition violated (current version, read/write
	// flags, hybrid/incremental rules, schema incompatibility, partition
	// count change on a hybrid store).
	KindConflict Kind = "CONFLICT"
	// KindCoordinatorUnavailable: the Resource Coordinator adapter could
	// not reach the cluster manager; retryable at the caller.
	KindCoordinatorUnavailable Kind = "COORDINATOR_UNAVAILABLE"
	// KindTopicManagerUnavailable: the Topic Manager adapter could not
	// reach the message bus; retryable at the caller.
	KindTopicManagerUnavailable Kind = "TOPIC_MANAGER_UNAVAILABLE"
	// KindMetadataUnavailable: the metadata store is down; fatal upward.
	KindMetadataUnavailable Kind = "METADATA_UNAVAILABLE"
	// KindConcurrentUpdate: a CAS write lost a race; the caller retries.
	KindConcurrentUpdate Kind = "CONCURRENT_UPDATE"
	// KindJoinTimeout: mastership could not be acquired in time.
	KindJoinTimeout Kind = "JOIN_TIMEOUT"
	// KindFatal: an invariant was violated (e.g. largest-used-version
	// regression). Never expected to be retried.
	KindFatal Kind = "FATAL"
)

// Error wraps an underlying error with the kind and the operation that
// produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a *Error with no wrapped cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap constructs a *Error wrapping an existing error.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind == kind
	}
	return false
}

// KindOf extracts the Kind carried by err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

// Retryable reports whether the caller should retry the operation rather
// than surface the failure, per spec.md §7's policy table.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindCoordinatorUnavailable, KindTopicManagerUnavailable, KindConcurrentUpdate:
		return true
	default:
		return false
	}
}
