package maintenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/solar-credits/calendar"
)

// Fund applies the maintenance rules on top of a TxStore.
type Fund struct {
	store  TxStore
	owner  string
	clock  calendar.Clock
	logger *zap.Logger
}

// NewFund creates a fund. When owner is non-empty, approving, starting and
// completing work and changing the rate are reserved to that caller.
func NewFund(store TxStore, owner string, clock calendar.Clock, logger *zap.Logger) *Fund {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fund{store: store, owner: owner, clock: clock, logger: logger}
}

// =============================================================================
// CONTRIBUTIONS
// =============================================================================

// Contribute adds amount to the balance and to the caller's record for the
// current month.
func (f *Fund) Contribute(ctx context.Context, caller string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	now := f.clock.Now(ctx)
	key := ContributionKey{Contributor: caller, Year: now.Year(), Month: now.Month()}

	err := f.store.WithTx(ctx, func(s Store) error {
		state, err := loadState(ctx, s)
		if err != nil {
			return err
		}
		state.Balance += amount
		if err := s.SaveState(ctx, state); err != nil {
			return err
		}

		c, err := s.LoadContribution(ctx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		c.Amount += amount
		c.Date = now
		return s.SaveContribution(ctx, key, c)
	})
	if err != nil {
		return err
	}
	f.logger.Info("maintenance contribution",
		zap.String("contributor", caller),
		zap.Int64("amount", amount))
	return nil
}

// Contribution returns a member's total for one month.
func (f *Fund) Contribution(ctx context.Context, key ContributionKey) (Contribution, error) {
	return f.store.LoadContribution(ctx, key)
}

// =============================================================================
// RECORDS
// =============================================================================

// Propose opens a new record with the next sequential id.
func (f *Fund) Propose(ctx context.Context, caller, description string, estimatedCost int64, contractor string) (RecordID, error) {
	if description == "" || contractor == "" {
		return 0, fmt.Errorf("%w: description and contractor are required", ErrInvalidRecord)
	}
	if estimatedCost < 0 {
		return 0, fmt.Errorf("%w: estimated cost %d", ErrInvalidAmount, estimatedCost)
	}

	var id RecordID
	err := f.store.WithTx(ctx, func(s Store) error {
		state, err := loadState(ctx, s)
		if err != nil {
			return err
		}
		state.LastRecordID++
		id = state.LastRecordID
		if err := s.SaveState(ctx, state); err != nil {
			return err
		}
		return s.SaveRecord(ctx, Record{
			ID:            id,
			Description:   description,
			EstimatedCost: estimatedCost,
			Contractor:    contractor,
			Status:        StatusProposed,
			ProposedBy:    caller,
			ProposedAt:    f.clock.Now(ctx),
		})
	})
	if err != nil {
		return 0, err
	}
	f.logger.Info("maintenance proposed",
		zap.Uint64("record", uint64(id)),
		zap.Int64("estimated_cost", estimatedCost))
	return id, nil
}

// Approve moves a proposed record to approved once the balance covers its
// estimate. Nothing is deducted until completion.
func (f *Fund) Approve(ctx context.Context, caller string, id RecordID) error {
	return f.transition(ctx, caller, id, "approve", func(state State, r *Record) (State, error) {
		if r.Status != StatusProposed {
			return state, &StatusError{ID: id, Action: "approve", Status: r.Status}
		}
		if state.Balance < r.EstimatedCost {
			return state, &InsufficientFundsError{Balance: state.Balance, Required: r.EstimatedCost}
		}
		r.Status = StatusApproved
		return state, nil
	})
}

// Start marks approved work as in progress.
func (f *Fund) Start(ctx context.Context, caller string, id RecordID) error {
	return f.transition(ctx, caller, id, "start", func(state State, r *Record) (State, error) {
		if r.Status != StatusApproved {
			return state, &StatusError{ID: id, Action: "start", Status: r.Status}
		}
		r.Status = StatusInProgress
		return state, nil
	})
}

// Complete closes approved or in-progress work and deducts actualCost.
func (f *Fund) Complete(ctx context.Context, caller string, id RecordID, actualCost int64) error {
	if actualCost < 0 {
		return fmt.Errorf("%w: actual cost %d", ErrInvalidAmount, actualCost)
	}
	now := f.clock.Now(ctx)
	return f.transition(ctx, caller, id, "complete", func(state State, r *Record) (State, error) {
		if r.Status != StatusApproved && r.Status != StatusInProgress {
			return state, &StatusError{ID: id, Action: "complete", Status: r.Status}
		}
		if state.Balance < actualCost {
			return state, &InsufficientFundsError{Balance: state.Balance, Required: actualCost}
		}
		state.Balance -= actualCost
		r.ActualCost = actualCost
		r.CompletedAt = now
		r.Status = StatusCompleted
		return state, nil
	})
}

// Record returns one record.
func (f *Fund) Record(ctx context.Context, id RecordID) (Record, error) {
	return f.store.LoadRecord(ctx, id)
}

type transitionFunc func(state State, r *Record) (State, error)

func (f *Fund) transition(ctx context.Context, caller string, id RecordID, action string, apply transitionFunc) error {
	if err := f.authorize(caller); err != nil {
		return err
	}
	var status Status
	err := f.store.WithTx(ctx, func(s Store) error {
		state, err := loadState(ctx, s)
		if err != nil {
			return err
		}
		r, err := s.LoadRecord(ctx, id)
		if err != nil {
			return err
		}
		next, err := apply(state, &r)
		if err != nil {
			return err
		}
		status = r.Status
		if next != state {
			if err := s.SaveState(ctx, next); err != nil {
				return err
			}
		}
		return s.SaveRecord(ctx, r)
	})
	if err != nil {
		f.logger.Debug("maintenance "+action+" rejected",
			zap.Uint64("record", uint64(id)),
			zap.Error(err))
		return err
	}
	f.logger.Info("maintenance "+action,
		zap.Uint64("record", uint64(id)),
		zap.Stringer("status", status))
	return nil
}

// =============================================================================
// BALANCE AND RATE
// =============================================================================

func (f *Fund) Balance(ctx context.Context) (int64, error) {
	state, err := loadState(ctx, f.store)
	return state.Balance, err
}

func (f *Fund) ContributionRate(ctx context.Context) (int, error) {
	state, err := loadState(ctx, f.store)
	return state.Rate, err
}

// UpdateContributionRate sets the expected contribution in percent.
func (f *Fund) UpdateContributionRate(ctx context.Context, caller string, rate int) error {
	if err := f.authorize(caller); err != nil {
		return err
	}
	if rate < 0 || rate > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidRate, rate)
	}
	err := f.store.WithTx(ctx, func(s Store) error {
		state, err := loadState(ctx, s)
		if err != nil {
			return err
		}
		state.Rate = rate
		return s.SaveState(ctx, state)
	})
	if err != nil {
		return err
	}
	f.logger.Info("maintenance rate updated", zap.Int("rate", rate))
	return nil
}

// RequiredContribution is floor(credits * rate / 100).
func (f *Fund) RequiredContribution(ctx context.Context, credits int64) (int64, error) {
	rate, err := f.ContributionRate(ctx)
	if err != nil {
		return 0, err
	}
	return decimal.NewFromInt(credits).
		Mul(decimal.NewFromInt(int64(rate))).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart(), nil
}

func (f *Fund) authorize(caller string) error {
	if f.owner != "" && caller != f.owner {
		return fmt.Errorf("%w: %q", ErrUnauthorized, caller)
	}
	return nil
}

// loadState treats a never-written fund as empty with the default rate.
func loadState(ctx context.Context, s Store) (State, error) {
	state, err := s.LoadState(ctx)
	if errors.Is(err, ErrNotFound) {
		return State{Rate: DefaultContributionRate}, nil
	}
	return state, err
}
