package api

import (
	"errors"
	"fmt"
)

var (
	// ErrVentureNotFound is returned when an id is not present in the store.
	ErrVentureNotFound = errors.New("venture not found")

	// ErrInvalidDetailField is returned for detail names outside the allow-list.
	ErrInvalidDetailField = errors.New("invalid detail field")

	// ErrInvalidState is returned for state values outside the closed set.
	ErrInvalidState = errors.New("invalid venture state")

	// ErrVentureBusy is returned when another run holds the venture's lease.
	ErrVentureBusy = errors.New("venture is being processed")

	// ErrLeaseLost is returned when a run can no longer renew its lease;
	// the stage outcome is not persisted.
	ErrLeaseLost = errors.New("venture lease lost")

	// ErrNotFailed is returned by Reset for ventures not in a FAILED_* state.
	ErrNotFailed = errors.New("venture is not in a failed state")
)

// FailureKind classifies why a stage did not succeed.
type FailureKind string

const (
	FailurePrecondition FailureKind = "precondition"
	FailureExecutor     FailureKind = "executor"
	FailurePanic        FailureKind = "panic"
)

// StageError is the failure recorded when a stage cannot advance a venture.
type StageError struct {
	Stage State
	Kind  FailureKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// PreconditionReason separates a missing detail from an unreadable one.
type PreconditionReason string

const (
	ReasonAbsent  PreconditionReason = "absent"
	ReasonCorrupt PreconditionReason = "corrupt"
)

// PreconditionError reports that a stage's required input detail is unusable.
type PreconditionError struct {
	Field  DetailField
	Reason PreconditionReason
	Err    error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s is %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s is %s", e.Field, e.Reason)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// IsPrecondition reports whether err carries a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
