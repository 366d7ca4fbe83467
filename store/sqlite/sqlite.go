/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

INTERFACES IMPLEMENTED:
  credit.TxStore:      Production periods and allocations
  energy.Store:        Daily panel readings
  ownership.Store:     Share table
  maintenance.TxStore: Fund state, records and contributions

KEY TABLES:
  periods:                   One row per production period
  allocations:               (period_id, owner_id) → share, claim flag
  energy_readings:           (panel_id, date) → energy, weather
  ownership_shares:          owner_id → percentage
  maintenance_state:         Single row: balance, rate, last record id
  maintenance_records:       Proposed/approved/completed work
  maintenance_contributions: (contributor, year, month) → amount

CONSTRAINTS:
  - energy_readings primary key rejects a second reading for a panel-day
  - allocations reference periods (foreign keys on)
  - maintenance_state holds at most one row

CONCURRENCY:
  The pool is limited to a single connection, so SQLite sees one writer at
  a time and ":memory:" databases are shared by every caller. WithPeriod
  and WithTx hold that connection for the whole transaction; the Store
  handed to fn runs every statement on the transaction.

USAGE:
  store, err := sqlite.New("./data/solar.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  periods := credit.NewPeriods(store, energy.NewLedger(store, nil, logger))

SEE ALSO:
  - credit/store.go: Period store contract
  - credit/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	conn
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{conn: conn{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the pool for instrumentation.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS periods (
		id INTEGER PRIMARY KEY,
		start_date INTEGER NOT NULL,
		end_date INTEGER NOT NULL,
		total_energy INTEGER NOT NULL,
		total_credits INTEGER NOT NULL,
		status INTEGER NOT NULL DEFAULT 0,
		distribution_date INTEGER NOT NULL DEFAULT 0,
		allocated_percentage INTEGER NOT NULL DEFAULT 0,
		allocated_credits INTEGER NOT NULL DEFAULT 0,
		registered_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_periods_status
		ON periods(status);

	CREATE TABLE IF NOT EXISTS allocations (
		period_id INTEGER NOT NULL REFERENCES periods(id),
		owner_id TEXT NOT NULL,
		ownership_percentage INTEGER NOT NULL,
		credits_allocated INTEGER NOT NULL,
		claimed BOOLEAN NOT NULL DEFAULT FALSE,
		claim_date INTEGER NOT NULL DEFAULT 0,
		allocated_by TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (period_id, owner_id)
	);

	CREATE TABLE IF NOT EXISTS energy_readings (
		panel_id INTEGER NOT NULL,
		date INTEGER NOT NULL,
		energy INTEGER NOT NULL,
		weather INTEGER NOT NULL,
		recorded_by TEXT NOT NULL DEFAULT '',
		recorded_at TEXT NOT NULL,
		PRIMARY KEY (panel_id, date)
	);

	CREATE TABLE IF NOT EXISTS ownership_shares (
		owner_id TEXT PRIMARY KEY,
		percentage INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS maintenance_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		balance INTEGER NOT NULL,
		rate INTEGER NOT NULL,
		last_record_id INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS maintenance_records (
		id INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		estimated_cost INTEGER NOT NULL,
		actual_cost INTEGER NOT NULL DEFAULT 0,
		contractor TEXT NOT NULL,
		status INTEGER NOT NULL,
		proposed_by TEXT NOT NULL DEFAULT '',
		proposed_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE TABLE IF NOT EXISTS maintenance_contributions (
		contributor TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		date TEXT NOT NULL,
		PRIMARY KEY (contributor, year, month)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CONNECTION HELPERS
// =============================================================================

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Reset deletes every row. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	return s.inTx(ctx, func(c *conn) error {
		for _, table := range []string{
			"allocations", "periods", "energy_readings", "ownership_shares",
			"maintenance_contributions", "maintenance_records", "maintenance_state",
		} {
			if _, err := c.q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to reset %s: %w", table, err)
			}
		}
		return nil
	})
}

// conn holds the statements shared by the Store and its transaction views.
type conn struct {
	q queryer
}

// inTx runs fn on a new transaction and commits when it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(c *conn) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}
