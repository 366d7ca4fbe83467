package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/solar-credits/credit"
)

// =============================================================================
// PERIOD STORE - credit.TxStore
// =============================================================================

var _ credit.TxStore = (*Store)(nil)

// WithPeriod runs fn inside a database transaction. The connection limit
// makes the transaction exclusive for every period, not only id.
func (s *Store) WithPeriod(ctx context.Context, id credit.PeriodID, fn func(credit.Store) error) error {
	return s.inTx(ctx, func(c *conn) error { return fn(c) })
}

const periodColumns = `id, start_date, end_date, total_energy, total_credits, status,
	distribution_date, allocated_percentage, allocated_credits, registered_by`

// InsertPeriod assigns max(id)+1 in the same statement when p.ID is zero.
func (c *conn) InsertPeriod(ctx context.Context, p credit.ProductionPeriod) (credit.PeriodID, error) {
	var id any
	if p.ID != 0 {
		id = int64(p.ID)
	}
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO periods (`+periodColumns+`, created_at)
		VALUES (COALESCE(?, (SELECT COALESCE(MAX(id), 0) + 1 FROM periods)), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, int(p.StartDate), int(p.EndDate), p.TotalEnergy, p.TotalCredits, int(p.Status),
		int64(p.DistributionDate), p.AllocatedPercentage, p.AllocatedCredits, string(p.RegisteredBy),
		formatTime(time.Now()))
	if err != nil {
		if isConstraintError(err) {
			return 0, fmt.Errorf("%w: %d", credit.ErrDuplicateID, p.ID)
		}
		return 0, fmt.Errorf("failed to insert period: %w", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return credit.PeriodID(rowID), nil
}

func (c *conn) LoadPeriod(ctx context.Context, id credit.PeriodID) (credit.ProductionPeriod, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM periods WHERE id = ?`, int64(id))
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return credit.ProductionPeriod{}, fmt.Errorf("%w: period %d", credit.ErrNotFound, id)
	}
	return p, err
}

func (c *conn) SavePeriod(ctx context.Context, p credit.ProductionPeriod) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE periods SET start_date = ?, end_date = ?, total_energy = ?, total_credits = ?,
			status = ?, distribution_date = ?, allocated_percentage = ?, allocated_credits = ?,
			registered_by = ?
		WHERE id = ?`,
		int(p.StartDate), int(p.EndDate), p.TotalEnergy, p.TotalCredits,
		int(p.Status), int64(p.DistributionDate), p.AllocatedPercentage, p.AllocatedCredits,
		string(p.RegisteredBy), int64(p.ID))
	if err != nil {
		return fmt.Errorf("failed to save period: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: period %d", credit.ErrNotFound, p.ID)
	}
	return nil
}

func (c *conn) ListPeriods(ctx context.Context) ([]credit.ProductionPeriod, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT `+periodColumns+` FROM periods ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []credit.ProductionPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const allocationColumns = `period_id, owner_id, ownership_percentage, credits_allocated,
	claimed, claim_date, allocated_by`

func (c *conn) LoadAllocation(ctx context.Context, period credit.PeriodID, owner credit.OwnerID) (credit.CreditAllocation, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+allocationColumns+` FROM allocations WHERE period_id = ? AND owner_id = ?`,
		int64(period), string(owner))
	a, err := scanAllocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return credit.CreditAllocation{}, fmt.Errorf("%w: allocation %d/%s", credit.ErrNotFound, period, owner)
	}
	return a, err
}

func (c *conn) SaveAllocation(ctx context.Context, a credit.CreditAllocation) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO allocations (`+allocationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (period_id, owner_id) DO UPDATE SET
			ownership_percentage = excluded.ownership_percentage,
			credits_allocated = excluded.credits_allocated,
			claimed = excluded.claimed,
			claim_date = excluded.claim_date,
			allocated_by = excluded.allocated_by`,
		int64(a.PeriodID), string(a.OwnerID), a.OwnershipPercentage, a.CreditsAllocated,
		a.Claimed, int64(a.ClaimDate), string(a.AllocatedBy))
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: period %d", credit.ErrNotFound, a.PeriodID)
		}
		return fmt.Errorf("failed to save allocation: %w", err)
	}
	return nil
}

func (c *conn) ListAllocations(ctx context.Context, period credit.PeriodID) ([]credit.CreditAllocation, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+allocationColumns+` FROM allocations WHERE period_id = ? ORDER BY owner_id`,
		int64(period))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []credit.CreditAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPeriod(row scanner) (credit.ProductionPeriod, error) {
	var (
		p                             credit.ProductionPeriod
		id, distribution              int64
		start, end, status, allocated int
		registeredBy                  string
	)
	err := row.Scan(&id, &start, &end, &p.TotalEnergy, &p.TotalCredits, &status,
		&distribution, &allocated, &p.AllocatedCredits, &registeredBy)
	if err != nil {
		return credit.ProductionPeriod{}, err
	}
	p.ID = credit.PeriodID(id)
	p.StartDate = credit.Date(start)
	p.EndDate = credit.Date(end)
	p.Status = credit.Status(status)
	p.DistributionDate = credit.Marker(distribution)
	p.AllocatedPercentage = allocated
	p.RegisteredBy = credit.Caller(registeredBy)
	return p, nil
}

func scanAllocation(row scanner) (credit.CreditAllocation, error) {
	var (
		a                  credit.CreditAllocation
		period, claimDate  int64
		owner, allocatedBy string
	)
	err := row.Scan(&period, &owner, &a.OwnershipPercentage, &a.CreditsAllocated,
		&a.Claimed, &claimDate, &allocatedBy)
	if err != nil {
		return credit.CreditAllocation{}, err
	}
	a.PeriodID = credit.PeriodID(period)
	a.OwnerID = credit.OwnerID(owner)
	a.ClaimDate = credit.Marker(claimDate)
	a.AllocatedBy = credit.Caller(allocatedBy)
	return a, nil
}
