package credit

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned for an unknown period or allocation.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned when registering an id that already exists.
	ErrDuplicateID = errors.New("duplicate period id")

	// ErrInvalidRange is returned when start is after end or a date is not a
	// real calendar day.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrInvalidAmount is returned for negative totals or a percentage
	// outside 0..100.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidOwner is returned when an allocation names no owner.
	ErrInvalidOwner = errors.New("invalid owner")

	// ErrOverAllocation is returned when a period's percentages would exceed 100.
	ErrOverAllocation = errors.New("over-allocation")

	// ErrPeriodLocked is returned when allocating in a period that is no longer OPEN.
	ErrPeriodLocked = errors.New("period locked")

	// ErrPeriodNotDistributed is returned when claiming before distribution.
	ErrPeriodNotDistributed = errors.New("period not distributed")

	// ErrAlreadyClaimed is returned on a second claim, or on correcting a
	// claimed allocation.
	ErrAlreadyClaimed = errors.New("already claimed")

	// ErrInvalidTransition is returned for any status move other than
	// OPEN→FINALIZING→DISTRIBUTED.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnauthorized is returned when the Authorizer rejects the caller.
	ErrUnauthorized = errors.New("unauthorized")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverAllocationError details a rejected allocation.
type OverAllocationError struct {
	PeriodID  PeriodID
	Allocated int // percentage held by other owners
	Requested int
}

func (e *OverAllocationError) Error() string {
	return fmt.Sprintf("over-allocation: period %d has %d%% allocated, requested %d%%",
		e.PeriodID, e.Allocated, e.Requested)
}

func (e *OverAllocationError) Unwrap() error {
	return ErrOverAllocation
}

// TransitionError details a rejected status change.
type TransitionError struct {
	PeriodID PeriodID
	From     Status
	To       Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: period %d %s -> %s", e.PeriodID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the request is valid but clashes with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrOverAllocation) ||
		errors.Is(err, ErrPeriodLocked) ||
		errors.Is(err, ErrPeriodNotDistributed) ||
		errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidOwner)
}

// resultLabel names an outcome for metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateID):
		return "duplicate_id"
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidOwner):
		return "invalid"
	case errors.Is(err, ErrOverAllocation):
		return "over_allocation"
	case errors.Is(err, ErrPeriodLocked):
		return "locked"
	case errors.Is(err, ErrPeriodNotDistributed):
		return "not_distributed"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}
