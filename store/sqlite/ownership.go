package sqlite

import (
	"context"
	"fmt"

	"github.com/warp/solar-credits/ownership"
)

// =============================================================================
// OWNERSHIP STORE - ownership.Store
// =============================================================================

var _ ownership.Store = (*Store)(nil)

func (s *Store) LoadShares(ctx context.Context) ([]ownership.Share, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT owner_id, percentage FROM ownership_shares ORDER BY owner_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ownership.Share
	for rows.Next() {
		var (
			owner string
			pct   int
		)
		if err := rows.Scan(&owner, &pct); err != nil {
			return nil, err
		}
		out = append(out, ownership.Share{OwnerID: ownership.OwnerID(owner), Percentage: pct})
	}
	return out, rows.Err()
}

// ReplaceShares swaps the whole table in one transaction.
func (s *Store) ReplaceShares(ctx context.Context, shares []ownership.Share) error {
	return s.inTx(ctx, func(c *conn) error {
		if _, err := c.q.ExecContext(ctx, `DELETE FROM ownership_shares`); err != nil {
			return fmt.Errorf("failed to clear shares: %w", err)
		}
		for _, sh := range shares {
			if _, err := c.q.ExecContext(ctx,
				`INSERT INTO ownership_shares (owner_id, percentage) VALUES (?, ?)`,
				string(sh.OwnerID), sh.Percentage); err != nil {
				return fmt.Errorf("failed to insert share for %s: %w", sh.OwnerID, err)
			}
		}
		return nil
	})
}
