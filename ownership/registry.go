/*
Package ownership keeps each member's percentage share of the cooperative's
array. Shares are whole percentages and always sum to exactly 100.

The credit engine reads a member's percentage once per allocation and
snapshots it; later changes here never rewrite past allocations.
*/
package ownership

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

const FullOwnership = 100

type OwnerID string

// Share is one owner's percentage.
type Share struct {
	OwnerID    OwnerID
	Percentage int
}

// Store persists the share table. ReplaceShares swaps the whole table atomically.
type Store interface {
	LoadShares(ctx context.Context) ([]Share, error)
	ReplaceShares(ctx context.Context, shares []Share) error
}

// Registry validates and serves the share table.
type Registry struct {
	mu     sync.Mutex
	store  Store
	admin  string
	logger *zap.Logger
}

// NewRegistry creates a registry. When admin is non-empty only that caller
// may change shares.
func NewRegistry(store Store, admin string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, admin: admin, logger: logger}
}

// Assign replaces the whole table.
func (r *Registry) Assign(ctx context.Context, caller string, shares map[OwnerID]int) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	table := make([]Share, 0, len(shares))
	for owner, pct := range shares {
		table = append(table, Share{OwnerID: owner, Percentage: pct})
	}
	if err := validate(table); err != nil {
		return err
	}
	sortShares(table)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.ReplaceShares(ctx, table); err != nil {
		return err
	}
	r.logger.Info("ownership assigned", zap.Int("owners", len(table)))
	return nil
}

// Transfer moves pct points from one owner to another. An owner left with
// zero is removed from the table.
func (r *Registry) Transfer(ctx context.Context, caller string, from, to OwnerID, pct int) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	if pct <= 0 || pct > FullOwnership || from == to || to == "" {
		return fmt.Errorf("%w: transfer %d from %q to %q", ErrInvalidShares, pct, from, to)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	shares, err := r.store.LoadShares(ctx)
	if err != nil {
		return err
	}
	byOwner := make(map[OwnerID]int, len(shares)+1)
	for _, s := range shares {
		byOwner[s.OwnerID] = s.Percentage
	}
	held, ok := byOwner[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOwnerNotFound, from)
	}
	if held < pct {
		return fmt.Errorf("%w: %s holds %d, transfer %d", ErrInsufficientShare, from, held, pct)
	}

	byOwner[from] = held - pct
	byOwner[to] += pct
	table := make([]Share, 0, len(byOwner))
	for owner, p := range byOwner {
		if p > 0 {
			table = append(table, Share{OwnerID: owner, Percentage: p})
		}
	}
	sortShares(table)
	if err := r.store.ReplaceShares(ctx, table); err != nil {
		return err
	}
	r.logger.Info("ownership transferred",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("percentage", pct))
	return nil
}

// Percentage returns one owner's share.
func (r *Registry) Percentage(ctx context.Context, owner OwnerID) (int, error) {
	shares, err := r.store.LoadShares(ctx)
	if err != nil {
		return 0, err
	}
	for _, s := range shares {
		if s.OwnerID == owner {
			return s.Percentage, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrOwnerNotFound, owner)
}

// Owners returns the table ordered by owner id.
func (r *Registry) Owners(ctx context.Context) ([]Share, error) {
	shares, err := r.store.LoadShares(ctx)
	if err != nil {
		return nil, err
	}
	sortShares(shares)
	return shares, nil
}

func (r *Registry) authorize(caller string) error {
	if r.admin != "" && caller != r.admin {
		return fmt.Errorf("%w: %q", ErrUnauthorized, caller)
	}
	return nil
}

func validate(shares []Share) error {
	total := 0
	for _, s := range shares {
		if s.OwnerID == "" || s.Percentage < 1 || s.Percentage > FullOwnership {
			return fmt.Errorf("%w: %q has %d", ErrInvalidShares, s.OwnerID, s.Percentage)
		}
		total += s.Percentage
	}
	if total != FullOwnership {
		return fmt.Errorf("%w: total %d", ErrInvalidShares, total)
	}
	return nil
}

func sortShares(shares []Share) {
	sort.Slice(shares, func(i, j int) bool { return shares[i].OwnerID < shares[j].OwnerID })
}

// MemoryStore is an in-memory Store (for testing/dev).
type MemoryStore struct {
	mu     sync.RWMutex
	shares []Share
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) LoadShares(context.Context) ([]Share, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Share, len(m.shares))
	copy(out, m.shares)
	return out, nil
}

func (m *MemoryStore) ReplaceShares(_ context.Context, shares []Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shares = append([]Share(nil), shares...)
	return nil
}
