package calendar_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/solar-credits/calendar"
)

func TestDate_Parts(t *testing.T) {
	d := calendar.Date(20230601)
	assert.Equal(t, 2023, d.Year())
	assert.Equal(t, time.June, d.Month())
	assert.Equal(t, 1, d.Day())
	assert.Equal(t, "2023-06-01", d.String())
}

func TestDate_Valid(t *testing.T) {
	cases := []struct {
		date  calendar.Date
		valid bool
	}{
		{20230601, true},
		{20240229, true},
		{20230229, false},
		{20231301, false},
		{20230631, false},
		{20230600, false},
		{0, false},
		{-20230601, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.valid, tc.date.Valid(), "date %d", tc.date)
	}
}

func TestParseDate(t *testing.T) {
	d, err := calendar.ParseDate("20230630")
	require.NoError(t, err)
	assert.Equal(t, calendar.Date(20230630), d)

	d, err = calendar.ParseDate("2023-06-30")
	require.NoError(t, err)
	assert.Equal(t, calendar.Date(20230630), d)

	_, err = calendar.ParseDate("20230231")
	assert.ErrorIs(t, err, calendar.ErrInvalidDate)

	_, err = calendar.ParseDate("June 1")
	assert.ErrorIs(t, err, calendar.ErrInvalidDate)
}

func TestMonthAndYearBounds(t *testing.T) {
	assert.Equal(t, calendar.Date(20240201), calendar.StartOfMonth(2024, time.February))
	assert.Equal(t, calendar.Date(20240229), calendar.EndOfMonth(2024, time.February))
	assert.Equal(t, calendar.Date(20231231), calendar.EndOfMonth(2023, time.December))
	assert.Equal(t, calendar.Date(20230101), calendar.StartOfYear(2023))
	assert.Equal(t, calendar.Date(20231231), calendar.EndOfYear(2023))
	assert.Equal(t, calendar.Date(20230701), calendar.Date(20230630).AddDays(1))
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2023, time.June, 30, 12, 0, 0, 0, time.UTC)
	c := calendar.NewFixedClock(at)
	assert.Equal(t, at, c.Now(context.Background()))
	c.Advance(time.Hour)
	assert.Equal(t, at.Add(time.Hour), c.Now(context.Background()))
}
