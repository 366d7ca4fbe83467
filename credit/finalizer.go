package credit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/warp/solar-credits/metrics"
)

// Finalizer freezes periods and completes their distribution.
type Finalizer struct {
	deps
	store   TxStore
	periods *Periods
}

func NewFinalizer(store TxStore, periods *Periods, opts ...Option) *Finalizer {
	return &Finalizer{deps: newDeps(opts), store: store, periods: periods}
}

// Finalize moves an OPEN period to FINALIZING. Allocations are frozen from
// then on.
func (f *Finalizer) Finalize(ctx context.Context, caller Caller, id PeriodID) (err error) {
	began := time.Now()
	defer func() { f.done("finalize", began, err, zap.Uint64("period", uint64(id))) }()

	if err := f.authorize(ctx, caller, ActionFinalize, id, ""); err != nil {
		return err
	}
	err = f.store.WithPeriod(ctx, id, func(s Store) error {
		period, err := s.LoadPeriod(ctx, id)
		if err != nil {
			return err
		}
		if period.Status != StatusOpen {
			return &TransitionError{PeriodID: id, From: period.Status, To: StatusFinalizing}
		}
		period.Status = StatusFinalizing
		return s.SavePeriod(ctx, period)
	})
	if err != nil {
		return err
	}

	metrics.IncTransition(StatusFinalizing.String())
	f.logger.Info("period finalizing", zap.Uint64("period", uint64(id)))
	return nil
}

// Distribute finalizes and marks a period distributed. A period left in
// FINALIZING by an earlier failed run is resumed.
func (f *Finalizer) Distribute(ctx context.Context, caller Caller, id PeriodID, date Marker) error {
	if err := f.Finalize(ctx, caller, id); err != nil && !isFinalizing(err) {
		return err
	}
	return f.periods.MarkDistributed(ctx, caller, id, date)
}

// Recover completes every FINALIZING period and returns the ids it moved to
// DISTRIBUTED. Failures for individual periods are joined; the sweep does
// not stop at the first one.
func (f *Finalizer) Recover(ctx context.Context, caller Caller, date Marker) ([]PeriodID, error) {
	periods, err := f.store.ListPeriods(ctx)
	if err != nil {
		return nil, err
	}
	var (
		recovered []PeriodID
		errs      []error
	)
	for _, p := range periods {
		if p.Status != StatusFinalizing {
			continue
		}
		if err := f.periods.MarkDistributed(ctx, caller, p.ID, date); err != nil {
			// Another writer may have completed it meanwhile.
			if !errors.Is(err, ErrInvalidTransition) {
				errs = append(errs, err)
			}
			continue
		}
		recovered = append(recovered, p.ID)
	}
	metrics.AddRecovered(len(recovered))
	if len(recovered) > 0 {
		f.logger.Info("finalization recovered", zap.Int("periods", len(recovered)))
	}
	return recovered, errors.Join(errs...)
}

func isFinalizing(err error) bool {
	var te *TransitionError
	return errors.As(err, &te) && te.From == StatusFinalizing
}
