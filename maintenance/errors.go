package maintenance

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("maintenance: not found")
	ErrInvalidAmount     = errors.New("maintenance: amount must be positive")
	ErrInvalidRecord     = errors.New("maintenance: invalid record")
	ErrInvalidRate       = errors.New("maintenance: contribution rate must be 0..100")
	ErrInvalidStatus     = errors.New("maintenance: invalid status change")
	ErrInsufficientFunds = errors.New("maintenance: insufficient funds")
	ErrUnauthorized      = errors.New("maintenance: caller is not the fund owner")
)

// StatusError reports an action attempted from the wrong status.
type StatusError struct {
	ID     RecordID
	Action string
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("maintenance: cannot %s record %d in status %s", e.Action, e.ID, e.Status)
}

func (e *StatusError) Unwrap() error { return ErrInvalidStatus }

// InsufficientFundsError reports a shortfall against the fund balance.
type InsufficientFundsError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("maintenance: insufficient funds: balance %d, required %d, shortfall %d",
		e.Balance, e.Required, e.Required-e.Balance)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }
