package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/solar-credits/maintenance"
)

// =============================================================================
// MAINTENANCE STORE - maintenance.TxStore
// =============================================================================

var _ maintenance.TxStore = (*Store)(nil)

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(maintenance.Store) error) error {
	return s.inTx(ctx, func(c *conn) error { return fn(c) })
}

func (c *conn) LoadState(ctx context.Context) (maintenance.State, error) {
	var (
		st     maintenance.State
		lastID int64
	)
	err := c.q.QueryRowContext(ctx,
		`SELECT balance, rate, last_record_id FROM maintenance_state WHERE id = 1`).
		Scan(&st.Balance, &st.Rate, &lastID)
	if errors.Is(err, sql.ErrNoRows) {
		return maintenance.State{}, maintenance.ErrNotFound
	}
	if err != nil {
		return maintenance.State{}, err
	}
	st.LastRecordID = maintenance.RecordID(lastID)
	return st, nil
}

func (c *conn) SaveState(ctx context.Context, st maintenance.State) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO maintenance_state (id, balance, rate, last_record_id) VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			balance = excluded.balance,
			rate = excluded.rate,
			last_record_id = excluded.last_record_id`,
		st.Balance, st.Rate, int64(st.LastRecordID))
	if err != nil {
		return fmt.Errorf("failed to save fund state: %w", err)
	}
	return nil
}

func (c *conn) LoadRecord(ctx context.Context, id maintenance.RecordID) (maintenance.Record, error) {
	var (
		r           maintenance.Record
		status      int
		proposedAt  string
		completedAt sql.NullString
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT description, estimated_cost, actual_cost, contractor, status, proposed_by, proposed_at, completed_at
		FROM maintenance_records WHERE id = ?`, int64(id)).
		Scan(&r.Description, &r.EstimatedCost, &r.ActualCost, &r.Contractor, &status,
			&r.ProposedBy, &proposedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return maintenance.Record{}, maintenance.ErrNotFound
	}
	if err != nil {
		return maintenance.Record{}, err
	}
	r.ID = id
	r.Status = maintenance.Status(status)
	r.ProposedAt = parseTime(proposedAt)
	if completedAt.Valid {
		r.CompletedAt = parseTime(completedAt.String)
	}
	return r, nil
}

func (c *conn) SaveRecord(ctx context.Context, r maintenance.Record) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO maintenance_records
			(id, description, estimated_cost, actual_cost, contractor, status, proposed_by, proposed_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			description = excluded.description,
			estimated_cost = excluded.estimated_cost,
			actual_cost = excluded.actual_cost,
			contractor = excluded.contractor,
			status = excluded.status,
			completed_at = excluded.completed_at`,
		int64(r.ID), r.Description, r.EstimatedCost, r.ActualCost, r.Contractor, int(r.Status),
		r.ProposedBy, formatTime(r.ProposedAt), nullTime(r.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to save maintenance record: %w", err)
	}
	return nil
}

func (c *conn) LoadContribution(ctx context.Context, key maintenance.ContributionKey) (maintenance.Contribution, error) {
	var (
		contrib maintenance.Contribution
		date    string
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT amount, date FROM maintenance_contributions
		WHERE contributor = ? AND year = ? AND month = ?`,
		key.Contributor, key.Year, int(key.Month)).
		Scan(&contrib.Amount, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return maintenance.Contribution{}, maintenance.ErrNotFound
	}
	if err != nil {
		return maintenance.Contribution{}, err
	}
	contrib.Date = parseTime(date)
	return contrib, nil
}

func (c *conn) SaveContribution(ctx context.Context, key maintenance.ContributionKey, contrib maintenance.Contribution) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO maintenance_contributions (contributor, year, month, amount, date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (contributor, year, month) DO UPDATE SET
			amount = excluded.amount,
			date = excluded.date`,
		key.Contributor, key.Year, int(key.Month), contrib.Amount, formatTime(contrib.Date))
	if err != nil {
		return fmt.Errorf("failed to save contribution: %w", err)
	}
	return nil
}
