package energy

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/solar-credits/calendar"
)

// Ledger records daily production and answers aggregate queries.
type Ledger struct {
	store  Store
	clock  calendar.Clock
	logger *zap.Logger
}

// NewLedger wraps store. A nil clock uses the system clock and a nil logger
// discards output.
func NewLedger(store Store, clock calendar.Clock, logger *zap.Logger) *Ledger {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, clock: clock, logger: logger}
}

// RecordProduction stores one day's reading for a panel.
func (l *Ledger) RecordProduction(ctx context.Context, caller string, panel PanelID, date calendar.Date, energy int64, weather Weather) error {
	if panel == 0 {
		return ErrInvalidPanel
	}
	if !date.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidDate, date)
	}
	if energy < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidEnergy, energy)
	}
	if !weather.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidWeather, weather)
	}

	err := l.store.InsertReading(ctx, Reading{
		PanelID:    panel,
		Date:       date,
		Energy:     energy,
		Weather:    weather,
		RecordedBy: caller,
		RecordedAt: l.clock.Now(ctx),
	})
	if err != nil {
		l.logger.Debug("production rejected",
			zap.Uint64("panel", uint64(panel)),
			zap.Stringer("date", date),
			zap.Error(err))
		return err
	}

	l.logger.Info("production recorded",
		zap.Uint64("panel", uint64(panel)),
		zap.Stringer("date", date),
		zap.Int64("energy", energy),
		zap.Stringer("weather", weather))
	return nil
}

// DailyProduction returns the reading for one day.
func (l *Ledger) DailyProduction(ctx context.Context, panel PanelID, date calendar.Date) (Reading, error) {
	if !date.Valid() {
		return Reading{}, fmt.Errorf("%w: %d", ErrInvalidDate, date)
	}
	return l.store.LoadReading(ctx, panel, date)
}

// DailyTotal returns the energy produced on one day.
func (l *Ledger) DailyTotal(ctx context.Context, panel PanelID, date calendar.Date) (int64, error) {
	r, err := l.DailyProduction(ctx, panel, date)
	if err != nil {
		return 0, err
	}
	return r.Energy, nil
}

// MonthlyTotal sums a calendar month. A month without readings is a zero total.
func (l *Ledger) MonthlyTotal(ctx context.Context, panel PanelID, year int, month time.Month) (MonthlyTotal, error) {
	if month < time.January || month > time.December {
		return MonthlyTotal{}, fmt.Errorf("%w: month %d", ErrInvalidDate, month)
	}
	readings, err := l.store.ReadingsInRange(ctx, panel, calendar.StartOfMonth(year, month), calendar.EndOfMonth(year, month))
	if err != nil {
		return MonthlyTotal{}, err
	}
	var total MonthlyTotal
	for _, r := range readings {
		total.TotalEnergy += r.Energy
		total.DaysReported++
	}
	return total, nil
}

// AnnualTotal sums a calendar year.
func (l *Ledger) AnnualTotal(ctx context.Context, panel PanelID, year int) (AnnualTotal, error) {
	readings, err := l.store.ReadingsInRange(ctx, panel, calendar.StartOfYear(year), calendar.EndOfYear(year))
	if err != nil {
		return AnnualTotal{}, err
	}
	var (
		total  AnnualTotal
		months = make(map[time.Month]struct{})
	)
	for _, r := range readings {
		total.TotalEnergy += r.Energy
		months[r.Date.Month()] = struct{}{}
	}
	total.MonthsReported = len(months)
	return total, nil
}

// RangeTotal sums readings in [from, to].
func (l *Ledger) RangeTotal(ctx context.Context, panel PanelID, from, to calendar.Date) (int64, error) {
	if !from.Valid() || !to.Valid() || from.After(to) {
		return 0, fmt.Errorf("%w: range %d..%d", ErrInvalidDate, from, to)
	}
	readings, err := l.store.ReadingsInRange(ctx, panel, from, to)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, r := range readings {
		total += r.Energy
	}
	return total, nil
}
