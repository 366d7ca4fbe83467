/*
Package calendar provides the calendar-day and clock primitives shared by the
energy ledger, the credit engine and the maintenance fund.

DATES:
  Production readings and production periods are keyed by calendar days
  written as YYYYMMDD integers (20230601 is June 1, 2023). Date keeps that
  wire format while giving the usual comparisons and calendar accessors.

CLOCK:
  Clock abstracts "now" so that claim dates, contribution dates and
  maintenance dates are deterministic in tests.

SEE ALSO:
  - credit/types.go: ProductionPeriod uses Date for its range
  - energy/ledger.go: readings are keyed by (panel, Date)
*/
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned when a value is not a real YYYYMMDD calendar day.
var ErrInvalidDate = errors.New("invalid calendar date")

// Date is a calendar day encoded as YYYYMMDD.
type Date int

// NewDate builds a Date from its parts. The result is not validated.
func NewDate(year int, month time.Month, day int) Date {
	return Date(year*10000 + int(month)*100 + day)
}

// FromTime returns the UTC calendar day of t.
func FromTime(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts "20230601" or "2023-06-01".
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "-") {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		return FromTime(t), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	d := Date(n)
	if !d.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

func (d Date) Year() int         { return int(d) / 10000 }
func (d Date) Month() time.Month { return time.Month(int(d) / 100 % 100) }
func (d Date) Day() int          { return int(d) % 100 }

// Valid reports whether d names a day that exists on the calendar.
func (d Date) Valid() bool {
	if d <= 0 || d.Year() < 1 || d.Year() > 9999 {
		return false
	}
	t := d.Time()
	return t.Year() == d.Year() && t.Month() == d.Month() && t.Day() == d.Day()
}

// Time returns midnight UTC of d. time.Date normalizes out-of-range parts.
func (d Date) Time() time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func (d Date) Before(other Date) bool { return d < other }
func (d Date) After(other Date) bool  { return d > other }

// AddDays returns the day n days after d.
func (d Date) AddDays(n int) Date { return FromTime(d.Time().AddDate(0, 0, n)) }

// String renders d as 2006-01-02.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year(), int(d.Month()), d.Day())
}

// StartOfMonth and EndOfMonth bound a calendar month.
func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }

func EndOfMonth(year int, month time.Month) Date {
	return FromTime(time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
}

// StartOfYear and EndOfYear bound a calendar year.
func StartOfYear(year int) Date { return NewDate(year, time.January, 1) }
func EndOfYear(year int) Date   { return NewDate(year, time.December, 31) }
