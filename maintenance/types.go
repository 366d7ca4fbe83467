/*
Package maintenance tracks the cooperative's maintenance fund.

PURPOSE:
  Members contribute to a shared balance; maintenance work is proposed,
  approved against that balance, optionally started, and completed with
  its actual cost deducted.

LIFECYCLE:

    PROPOSED ──approve──► APPROVED ──start──► IN_PROGRESS
                              │                    │
                              └─────complete───────┴──► COMPLETED

  Approve requires the balance to cover the estimated cost. Complete
  deducts the actual cost, which may differ from the estimate.

CONTRIBUTION RATE:
  The fund owner sets the share of distributed credits members are expected
  to contribute (percent, default 10). RequiredContribution applies it with
  floor rounding.

SEE ALSO:
  - fund.go: operations
  - memory.go: in-memory store with snapshot rollback
  - store/sqlite: persistent store
*/
package maintenance

import (
	"context"
	"time"
)

// DefaultContributionRate is the rate of a fund that was never configured.
const DefaultContributionRate = 10

type RecordID uint64

type Status int

const (
	StatusProposed   Status = 1
	StatusApproved   Status = 2
	StatusInProgress Status = 3
	StatusCompleted  Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusProposed:
		return "proposed"
	case StatusApproved:
		return "approved"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Record is one piece of maintenance work.
type Record struct {
	ID            RecordID
	Description   string
	EstimatedCost int64
	ActualCost    int64
	Contractor    string
	Status        Status
	ProposedBy    string
	ProposedAt    time.Time
	CompletedAt   time.Time // zero until completed
}

// ContributionKey groups a member's contributions by calendar month.
type ContributionKey struct {
	Contributor string
	Year        int
	Month       time.Month
}

// Contribution is the accumulated amount for one ContributionKey.
// Date is the time of the most recent contribution.
type Contribution struct {
	Amount int64
	Date   time.Time
}

// State is the fund-wide scalar state.
type State struct {
	Balance      int64
	Rate         int
	LastRecordID RecordID
}

// =============================================================================
// STORE
// =============================================================================

// Store persists fund state. Load methods return ErrNotFound for missing rows.
type Store interface {
	LoadState(ctx context.Context) (State, error)
	SaveState(ctx context.Context, s State) error

	LoadRecord(ctx context.Context, id RecordID) (Record, error)
	SaveRecord(ctx context.Context, r Record) error

	LoadContribution(ctx context.Context, key ContributionKey) (Contribution, error)
	SaveContribution(ctx context.Context, key ContributionKey, c Contribution) error
}

// TxStore runs fn atomically: every write inside fn is discarded when fn
// returns an error.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
