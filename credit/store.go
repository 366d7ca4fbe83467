package credit

import "context"

// Store persists periods and allocations. Load methods return ErrNotFound
// for missing rows.
type Store interface {
	// InsertPeriod adds a new period. A zero ID is replaced by the next
	// sequential id; an existing ID fails with ErrDuplicateID.
	InsertPeriod(ctx context.Context, p ProductionPeriod) (PeriodID, error)
	LoadPeriod(ctx context.Context, id PeriodID) (ProductionPeriod, error)
	SavePeriod(ctx context.Context, p ProductionPeriod) error
	// ListPeriods returns every period ordered by id.
	ListPeriods(ctx context.Context) ([]ProductionPeriod, error)

	LoadAllocation(ctx context.Context, period PeriodID, owner OwnerID) (CreditAllocation, error)
	SaveAllocation(ctx context.Context, a CreditAllocation) error
	// ListAllocations returns a period's allocations ordered by owner id.
	ListAllocations(ctx context.Context, period PeriodID) ([]CreditAllocation, error)
}

// TxStore adds per-period transactions.
//
// WithPeriod runs fn with exclusive access to one period and its
// allocations. Writes made through the Store passed to fn become visible
// only when fn returns nil; on error none of them are applied. Different
// periods never block each other.
type TxStore interface {
	Store
	WithPeriod(ctx context.Context, id PeriodID, fn func(Store) error) error
}
