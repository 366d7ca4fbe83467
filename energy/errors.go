package energy

import (
	"errors"
	"fmt"

	"github.com/warp/solar-credits/calendar"
)

var (
	ErrNotFound        = errors.New("energy: reading not found")
	ErrAlreadyRecorded = errors.New("energy: production already recorded for day")
	ErrInvalidEnergy   = errors.New("energy: negative energy amount")
	ErrInvalidWeather  = errors.New("energy: unknown weather condition")
	ErrInvalidDate     = errors.New("energy: invalid date")
	ErrInvalidPanel    = errors.New("energy: invalid panel id")
)

// DuplicateReadingError names the reading that already occupies the day.
type DuplicateReadingError struct {
	PanelID PanelID
	Date    calendar.Date
}

func (e *DuplicateReadingError) Error() string {
	return fmt.Sprintf("energy: panel %d already reported production for %s", e.PanelID, e.Date)
}

func (e *DuplicateReadingError) Unwrap() error { return ErrAlreadyRecorded }
