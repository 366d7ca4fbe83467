package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/solar-credits/calendar"
	"github.com/warp/solar-credits/energy"
)

// =============================================================================
// ENERGY STORE - energy.Store
// =============================================================================

var _ energy.Store = (*Store)(nil)

func (c *conn) InsertReading(ctx context.Context, r energy.Reading) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO energy_readings (panel_id, date, energy, weather, recorded_by, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		int64(r.PanelID), int(r.Date), r.Energy, int(r.Weather), r.RecordedBy, formatTime(r.RecordedAt))
	if err != nil {
		if isConstraintError(err) {
			return &energy.DuplicateReadingError{PanelID: r.PanelID, Date: r.Date}
		}
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

func (c *conn) LoadReading(ctx context.Context, panel energy.PanelID, date calendar.Date) (energy.Reading, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT panel_id, date, energy, weather, recorded_by, recorded_at
		FROM energy_readings WHERE panel_id = ? AND date = ?`,
		int64(panel), int(date))
	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return energy.Reading{}, energy.ErrNotFound
	}
	return r, err
}

func (c *conn) ReadingsInRange(ctx context.Context, panel energy.PanelID, from, to calendar.Date) ([]energy.Reading, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT panel_id, date, energy, weather, recorded_by, recorded_at
		FROM energy_readings WHERE panel_id = ? AND date BETWEEN ? AND ?
		ORDER BY date`,
		int64(panel), int(from), int(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []energy.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReading(row scanner) (energy.Reading, error) {
	var (
		r             energy.Reading
		panel         int64
		date, weather int
		recordedAt    string
	)
	if err := row.Scan(&panel, &date, &r.Energy, &weather, &r.RecordedBy, &recordedAt); err != nil {
		return energy.Reading{}, err
	}
	r.PanelID = energy.PanelID(panel)
	r.Date = calendar.Date(date)
	r.Weather = energy.Weather(weather)
	r.RecordedAt = parseTime(recordedAt)
	return r, nil
}
