package credit

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/warp/solar-credits/energy"
	"github.com/warp/solar-credits/metrics"
)

// EnergySource is the read-only view of the energy ledger used to size a
// period from recorded production.
type EnergySource interface {
	RangeTotal(ctx context.Context, panel energy.PanelID, from, to Date) (int64, error)
}

// Periods registers production periods and records their distribution.
type Periods struct {
	deps
	store  TxStore
	energy EnergySource
}

// NewPeriods creates the period service. src may be nil when
// RegisterFromEnergy is not used.
func NewPeriods(store TxStore, src EnergySource, opts ...Option) *Periods {
	return &Periods{deps: newDeps(opts), store: store, energy: src}
}

// Register creates an OPEN period. id 0 takes the next sequential id.
func (p *Periods) Register(ctx context.Context, caller Caller, id PeriodID, start, end Date, totalEnergy, totalCredits int64) (_ PeriodID, err error) {
	began := time.Now()
	defer func() { p.done("register", began, err, zap.Uint64("period", uint64(id))) }()

	if err := p.authorize(ctx, caller, ActionRegister, id, ""); err != nil {
		return 0, err
	}
	if err := validRange(start, end); err != nil {
		return 0, err
	}
	if totalEnergy < 0 || totalCredits < 0 {
		return 0, fmt.Errorf("%w: energy %d, credits %d", ErrInvalidAmount, totalEnergy, totalCredits)
	}

	assigned, err := p.store.InsertPeriod(ctx, ProductionPeriod{
		ID:           id,
		StartDate:    start,
		EndDate:      end,
		TotalEnergy:  totalEnergy,
		TotalCredits: totalCredits,
		Status:       StatusOpen,
		RegisteredBy: caller,
	})
	if err != nil {
		return 0, err
	}

	metrics.IncTransition(StatusOpen.String())
	p.logger.Info("period registered",
		zap.Uint64("period", uint64(assigned)),
		zap.Stringer("start", start),
		zap.Stringer("end", end),
		zap.Int64("total_energy", totalEnergy),
		zap.Int64("total_credits", totalCredits))
	return assigned, nil
}

// RegisterFromEnergy registers a period whose TotalEnergy is the recorded
// production of panels over [start, end].
func (p *Periods) RegisterFromEnergy(ctx context.Context, caller Caller, id PeriodID, start, end Date, totalCredits int64, panels []energy.PanelID) (PeriodID, error) {
	if p.energy == nil {
		return 0, fmt.Errorf("register from energy: no energy source configured")
	}
	if err := p.authorize(ctx, caller, ActionRegister, id, ""); err != nil {
		return 0, err
	}
	if err := validRange(start, end); err != nil {
		return 0, err
	}
	var total int64
	for _, panel := range panels {
		e, err := p.energy.RangeTotal(ctx, panel, start, end)
		if err != nil {
			return 0, fmt.Errorf("panel %d: %w", panel, err)
		}
		if e < 0 || total > math.MaxInt64-e {
			return 0, fmt.Errorf("%w: energy total of panel %d overflows", ErrInvalidAmount, panel)
		}
		total += e
	}
	return p.Register(ctx, caller, id, start, end, total, totalCredits)
}

// Get returns one period.
func (p *Periods) Get(ctx context.Context, id PeriodID) (ProductionPeriod, error) {
	return p.store.LoadPeriod(ctx, id)
}

// List returns every period ordered by id.
func (p *Periods) List(ctx context.Context) ([]ProductionPeriod, error) {
	return p.store.ListPeriods(ctx)
}

// NextID is the id a Register with id 0 would currently receive.
func (p *Periods) NextID(ctx context.Context) (PeriodID, error) {
	periods, err := p.store.ListPeriods(ctx)
	if err != nil {
		return 0, err
	}
	if len(periods) == 0 {
		return 1, nil
	}
	return periods[len(periods)-1].ID + 1, nil
}

// MarkDistributed moves a FINALIZING period to DISTRIBUTED at date.
func (p *Periods) MarkDistributed(ctx context.Context, caller Caller, id PeriodID, date Marker) (err error) {
	began := time.Now()
	defer func() { p.done("mark_distributed", began, err, zap.Uint64("period", uint64(id))) }()

	if err := p.authorize(ctx, caller, ActionMarkDistributed, id, ""); err != nil {
		return err
	}
	err = p.store.WithPeriod(ctx, id, func(s Store) error {
		period, err := s.LoadPeriod(ctx, id)
		if err != nil {
			return err
		}
		if period.Status != StatusFinalizing {
			return &TransitionError{PeriodID: id, From: period.Status, To: StatusDistributed}
		}
		period.Status = StatusDistributed
		period.DistributionDate = date
		return s.SavePeriod(ctx, period)
	})
	if err != nil {
		return err
	}

	metrics.IncTransition(StatusDistributed.String())
	p.logger.Info("period distributed",
		zap.Uint64("period", uint64(id)),
		zap.Uint64("date", uint64(date)))
	return nil
}

func validRange(start, end Date) error {
	if !start.Valid() || !end.Valid() {
		return fmt.Errorf("%w: %d..%d", ErrInvalidRange, start, end)
	}
	if start.After(end) {
		return fmt.Errorf("%w: start %s after end %s", ErrInvalidRange, start, end)
	}
	return nil
}
