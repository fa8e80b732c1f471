package models

import (
	"errors"
	"fmt"
)

// ValidationError is a malformed or ambiguous spec. Fatal: nothing is
// mutated when the spec does not validate.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid spec: %s", e.Reason)
	}
	return fmt.Sprintf("invalid spec: %s: %s", e.Field, e.Reason)
}

// ObservationError marks one account as unreadable for this pass. The run
// continues with the remaining accounts.
type ObservationError struct {
	AccountID string
	Err       error
}

func (e *ObservationError) Error() string {
	return fmt.Sprintf("failed observing account %s: %v", e.AccountID, e.Err)
}

func (e *ObservationError) Unwrap() error { return e.Err }

// ConflictError is a change the engine refuses to make, such as deleting a
// non-empty group. Recorded as blocked, never retried.
type ConflictError struct {
	Resource string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Resource, e.Reason)
}

// TransientRemoteError wraps a throttle or timeout worth retrying.
type TransientRemoteError struct {
	Err error
}

func (e *TransientRemoteError) Error() string {
	return fmt.Sprintf("transient remote error: %v", e.Err)
}

func (e *TransientRemoteError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	var t *TransientRemoteError
	return errors.As(err, &t)
}

// InvariantViolation indicates the planner detected an impossible ordering.
// It points at an engine bug, not user input, and aborts the run.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("planner invariant violated: %s", e.Reason)
}
