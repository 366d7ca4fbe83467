/*
Package energy implements the cooperative's energy ledger: one production
reading per panel per calendar day, with monthly and annual aggregates.

PURPOSE:
  The credit engine never trusts raw meter data directly. It reads
  aggregate totals from this ledger when a production period is registered
  and snapshots the result into the period. This package does not check
  that aggregates agree with anything else; it only keeps readings unique
  and well formed.

UNITS:
  Energy is an integer count of watt-hours (25000 = 25 kWh). No floating
  point anywhere.

INVARIANT:
  At most one reading per (PanelID, Date). A second report for the same day
  is rejected with ErrAlreadyRecorded rather than summed.

SEE ALSO:
  - ledger.go: Ledger service
  - memory.go: in-memory Store
  - store/sqlite: SQLite Store
*/
package energy

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/warp/solar-credits/calendar"
)

// PanelID identifies one panel (or inverter string) of the array.
type PanelID uint64

// Weather is the condition reported alongside a daily reading.
type Weather int

const (
	WeatherSunny        Weather = 1
	WeatherPartlyCloudy Weather = 2
	WeatherCloudy       Weather = 3
	WeatherRainy        Weather = 4
	WeatherSnowy        Weather = 5
)

func (w Weather) Valid() bool { return w >= WeatherSunny && w <= WeatherSnowy }

func (w Weather) String() string {
	switch w {
	case WeatherSunny:
		return "sunny"
	case WeatherPartlyCloudy:
		return "partly_cloudy"
	case WeatherCloudy:
		return "cloudy"
	case WeatherRainy:
		return "rainy"
	case WeatherSnowy:
		return "snowy"
	default:
		return "unknown"
	}
}

// ParseWeather accepts a condition name ("sunny", "partly_cloudy", ...) or
// its numeric code.
func ParseWeather(s string) (Weather, error) {
	for w := WeatherSunny; w <= WeatherSnowy; w++ {
		if s == w.String() || s == strconv.Itoa(int(w)) {
			return w, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeather, s)
}

// Reading is one panel's production for one day.
type Reading struct {
	PanelID    PanelID
	Date       calendar.Date
	Energy     int64
	Weather    Weather
	RecordedBy string
	RecordedAt time.Time
}

// MonthlyTotal aggregates a panel's readings for one calendar month.
type MonthlyTotal struct {
	TotalEnergy  int64
	DaysReported int
}

// AnnualTotal aggregates a panel's readings for one calendar year.
// MonthsReported counts months with at least one reading.
type AnnualTotal struct {
	TotalEnergy    int64
	MonthsReported int
}

// Store persists readings. Readings are never updated or deleted.
type Store interface {
	// InsertReading fails with ErrAlreadyRecorded if (panel, date) exists.
	InsertReading(ctx context.Context, r Reading) error

	// LoadReading fails with ErrNotFound.
	LoadReading(ctx context.Context, panel PanelID, date calendar.Date) (Reading, error)

	// ReadingsInRange returns readings in [from, to] ordered by date.
	ReadingsInRange(ctx context.Context, panel PanelID, from, to calendar.Date) ([]Reading, error)
}
