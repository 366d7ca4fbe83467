package credit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/solar-credits/metrics"
	"github.com/warp/solar-credits/ownership"
)

// OwnershipSource is the read-only view of the ownership registry.
type OwnershipSource interface {
	Percentage(ctx context.Context, owner OwnerID) (int, error)
	Owners(ctx context.Context) ([]ownership.Share, error)
}

// Engine allocates period credits to owners and pays out claims.
type Engine struct {
	deps
	store    TxStore
	registry OwnershipSource
}

// NewEngine creates the allocation engine. registry may be nil when
// percentages are always passed explicitly.
func NewEngine(store TxStore, registry OwnershipSource, opts ...Option) *Engine {
	return &Engine{deps: newDeps(opts), store: store, registry: registry}
}

// =============================================================================
// ALLOCATION
// =============================================================================

// Allocate gives owner pct percent of an OPEN period and returns the credits.
// Calling it again for the same owner corrects the allocation: the previous
// percentage is released before the new one is checked against 100.
func (e *Engine) Allocate(ctx context.Context, caller Caller, periodID PeriodID, owner OwnerID, pct int) (credits int64, err error) {
	began := time.Now()
	defer func() {
		e.done("allocate", began, err,
			zap.Uint64("period", uint64(periodID)),
			zap.String("owner", string(owner)),
			zap.Int("percentage", pct))
	}()

	if err := e.authorize(ctx, caller, ActionAllocate, periodID, owner); err != nil {
		return 0, err
	}
	if owner == "" {
		return 0, ErrInvalidOwner
	}
	if !ValidPercentage(pct) {
		return 0, fmt.Errorf("%w: percentage %d", ErrInvalidAmount, pct)
	}

	var added int64
	err = e.store.WithPeriod(ctx, periodID, func(s Store) error {
		credits, added, err = e.allocateIn(ctx, s, caller, periodID, owner, pct)
		return err
	})
	if err != nil {
		return 0, err
	}

	e.allocated(periodID, owner, pct, credits, added)
	return credits, nil
}

// allocateIn applies one allocation to the period view s. It returns the
// owner's credits and the growth of the period's allocated credits.
func (e *Engine) allocateIn(ctx context.Context, s Store, caller Caller, periodID PeriodID, owner OwnerID, pct int) (credits, added int64, err error) {
	period, err := s.LoadPeriod(ctx, periodID)
	if err != nil {
		return 0, 0, err
	}
	if period.Status != StatusOpen {
		return 0, 0, fmt.Errorf("%w: period %d is %s", ErrPeriodLocked, periodID, period.Status)
	}

	prev, err := s.LoadAllocation(ctx, periodID, owner)
	switch {
	case errors.Is(err, ErrNotFound):
		prev = CreditAllocation{}
	case err != nil:
		return 0, 0, err
	case prev.Claimed:
		return 0, 0, fmt.Errorf("%w: period %d owner %s", ErrAlreadyClaimed, periodID, owner)
	}

	others := period.AllocatedPercentage - prev.OwnershipPercentage
	if others+pct > MaxPercentage {
		return 0, 0, &OverAllocationError{PeriodID: periodID, Allocated: others, Requested: pct}
	}

	credits = ShareOf(period.TotalCredits, pct)
	period.AllocatedPercentage = others + pct
	period.AllocatedCredits = period.AllocatedCredits - prev.CreditsAllocated + credits
	if err := s.SavePeriod(ctx, period); err != nil {
		return 0, 0, err
	}
	err = s.SaveAllocation(ctx, CreditAllocation{
		PeriodID:            periodID,
		OwnerID:             owner,
		OwnershipPercentage: pct,
		CreditsAllocated:    credits,
		AllocatedBy:         caller,
	})
	if err != nil {
		return 0, 0, err
	}
	return credits, credits - prev.CreditsAllocated, nil
}

// allocated records a committed allocation. The counter only grows by the
// net increase, so corrections are not counted twice.
func (e *Engine) allocated(periodID PeriodID, owner OwnerID, pct int, credits, added int64) {
	if added > 0 {
		metrics.AddCreditsAllocated(added)
	}
	e.logger.Info("credits allocated",
		zap.Uint64("period", uint64(periodID)),
		zap.String("owner", string(owner)),
		zap.Int("percentage", pct),
		zap.Int64("credits", credits))
}

// AllocateFromRegistry allocates using the owner's current registry share.
// The percentage is copied into the allocation; later registry changes do
// not affect it.
func (e *Engine) AllocateFromRegistry(ctx context.Context, caller Caller, periodID PeriodID, owner OwnerID) (int64, error) {
	if e.registry == nil {
		return 0, errors.New("allocate from registry: no ownership registry configured")
	}
	pct, err := e.registry.Percentage(ctx, owner)
	if err != nil {
		if errors.Is(err, ownership.ErrOwnerNotFound) {
			return 0, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return 0, err
	}
	return e.Allocate(ctx, caller, periodID, owner, pct)
}

// AllocateAll allocates every registered owner in owner-id order within one
// period transaction. Either every owner is allocated or, on the first
// failure, none of the batch is kept.
func (e *Engine) AllocateAll(ctx context.Context, caller Caller, periodID PeriodID) (out map[OwnerID]int64, err error) {
	began := time.Now()
	defer func() {
		e.done("allocate_all", began, err, zap.Uint64("period", uint64(periodID)))
	}()

	if e.registry == nil {
		return nil, errors.New("allocate all: no ownership registry configured")
	}
	shares, err := e.registry.Owners(ctx)
	if err != nil {
		return nil, err
	}
	for _, share := range shares {
		if err := e.authorize(ctx, caller, ActionAllocate, periodID, share.OwnerID); err != nil {
			return nil, err
		}
		if !ValidPercentage(share.Percentage) {
			return nil, fmt.Errorf("owner %s: %w: percentage %d", share.OwnerID, ErrInvalidAmount, share.Percentage)
		}
	}

	type result struct {
		credits, added int64
	}
	results := make(map[OwnerID]result, len(shares))
	err = e.store.WithPeriod(ctx, periodID, func(s Store) error {
		if _, err := s.LoadPeriod(ctx, periodID); err != nil {
			return err
		}
		for _, share := range shares {
			credits, added, err := e.allocateIn(ctx, s, caller, periodID, share.OwnerID, share.Percentage)
			if err != nil {
				return fmt.Errorf("owner %s: %w", share.OwnerID, err)
			}
			results[share.OwnerID] = result{credits: credits, added: added}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out = make(map[OwnerID]int64, len(shares))
	for _, share := range shares {
		r := results[share.OwnerID]
		e.allocated(periodID, share.OwnerID, share.Percentage, r.credits, r.added)
		out[share.OwnerID] = r.credits
	}
	return out, nil
}

// =============================================================================
// CLAIMS
// =============================================================================

// Claim pays out an allocation of a DISTRIBUTED period, exactly once.
func (e *Engine) Claim(ctx context.Context, caller Caller, periodID PeriodID, owner OwnerID) (credits int64, err error) {
	began := time.Now()
	defer func() {
		e.done("claim", began, err,
			zap.Uint64("period", uint64(periodID)),
			zap.String("owner", string(owner)))
	}()

	if err := e.authorize(ctx, caller, ActionClaim, periodID, owner); err != nil {
		return 0, err
	}

	now := MarkerAt(e.clock.Now(ctx))
	err = e.store.WithPeriod(ctx, periodID, func(s Store) error {
		alloc, err := s.LoadAllocation(ctx, periodID, owner)
		if err != nil {
			return err
		}
		period, err := s.LoadPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		if period.Status != StatusDistributed {
			return fmt.Errorf("%w: period %d is %s", ErrPeriodNotDistributed, periodID, period.Status)
		}
		if alloc.Claimed {
			return fmt.Errorf("%w: period %d owner %s", ErrAlreadyClaimed, periodID, owner)
		}
		alloc.Claimed = true
		alloc.ClaimDate = now
		credits = alloc.CreditsAllocated
		return s.SaveAllocation(ctx, alloc)
	})
	if err != nil {
		return 0, err
	}

	metrics.AddCreditsClaimed(credits)
	e.logger.Info("credits claimed",
		zap.Uint64("period", uint64(periodID)),
		zap.String("owner", string(owner)),
		zap.Int64("credits", credits))
	return credits, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// GetAllocation returns one owner's allocation.
func (e *Engine) GetAllocation(ctx context.Context, periodID PeriodID, owner OwnerID) (CreditAllocation, error) {
	return e.store.LoadAllocation(ctx, periodID, owner)
}

// Allocations returns a period's allocations in owner-id order.
func (e *Engine) Allocations(ctx context.Context, periodID PeriodID) ([]CreditAllocation, error) {
	if _, err := e.store.LoadPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	return e.store.ListAllocations(ctx, periodID)
}

// Summary reports the split of a period's pool.
func (e *Engine) Summary(ctx context.Context, periodID PeriodID) (Summary, error) {
	period, err := e.store.LoadPeriod(ctx, periodID)
	if err != nil {
		return Summary{}, err
	}
	allocs, err := e.store.ListAllocations(ctx, periodID)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{
		PeriodID:            periodID,
		Status:              period.Status,
		TotalCredits:        period.TotalCredits,
		AllocatedPercentage: period.AllocatedPercentage,
		AllocatedCredits:    period.AllocatedCredits,
		Unallocated:         period.Unallocated(),
		Owners:              len(allocs),
	}
	for _, a := range allocs {
		if a.Claimed {
			sum.ClaimedCredits += a.CreditsAllocated
			sum.Claims++
		}
	}
	return sum, nil
}
