package credit

import (
	"context"
	"fmt"
)

// Action names a mutating operation for authorization.
type Action string

const (
	ActionRegister        Action = "register"
	ActionAllocate        Action = "allocate"
	ActionFinalize        Action = "finalize"
	ActionMarkDistributed Action = "mark_distributed"
	ActionClaim           Action = "claim"
)

// Authorizer decides whether caller may perform action. owner is empty for
// period-level actions.
type Authorizer interface {
	Authorize(ctx context.Context, caller Caller, action Action, period PeriodID, owner OwnerID) error
}

// AllowAll permits everything.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, Caller, Action, PeriodID, OwnerID) error { return nil }

// OwnerAuthorizer reserves administration to the contract owner and lets
// members claim only their own allocations.
type OwnerAuthorizer struct {
	ContractOwner Caller
}

func (a OwnerAuthorizer) Authorize(_ context.Context, caller Caller, action Action, period PeriodID, owner OwnerID) error {
	if caller == "" {
		return fmt.Errorf("%w: anonymous %s", ErrUnauthorized, action)
	}
	switch action {
	case ActionClaim:
		if caller != Caller(owner) {
			return fmt.Errorf("%w: %s cannot claim for %s in period %d", ErrUnauthorized, caller, owner, period)
		}
	default:
		if caller != a.ContractOwner {
			return fmt.Errorf("%w: %s cannot %s period %d", ErrUnauthorized, caller, action, period)
		}
	}
	return nil
}
