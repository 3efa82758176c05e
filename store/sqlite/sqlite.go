/*
Package sqlite provides the SQLite-backed implementation of every storage
interface in the engine.

PURPOSE:
  Implements booking.Store, settlement.Store, refund.Store, and
  inventory.CapacityGuard on database/sql. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

CONDITIONAL UPDATES:
  Every mutation of shared state (inventory counts, booking status,
  refund status, installment status) is a single conditional UPDATE whose
  WHERE clause encodes the precondition; the caller learns from the
  affected-row count whether it won. No read-modify-write at the
  application layer.

CLAMPED RELEASES:
  Capacity release uses min(total, count + qty), so a stray double
  release can never push a count past its original maximum.

KEY TABLES:
  flights, hotels, hotel_rooms, entertainments, tour_packages: inventory
  bookings:             booking record + refund fields + reservations
  booking_status_notes: advisory transition audit trail
  custom_packages:      user-assembled draft bundles
  settlement_plans, installments: the obligation ledger

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  a single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/travel.db")   // or ":memory:"

SEE ALSO:
  - inventory.go:  item CRUD + CapacityGuard
  - bookings.go:   bookings, custom packages, refund updates
  - settlement.go: plans and installments
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The sqlite3 driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent reservation attempts.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Inventory
	CREATE TABLE IF NOT EXISTS flights (
		id TEXT PRIMARY KEY,
		airline_name TEXT NOT NULL,
		from_city TEXT NOT NULL,
		to_city TEXT NOT NULL,
		date TEXT NOT NULL,
		economy_price TEXT NOT NULL,
		business_price TEXT NOT NULL,
		economy_seats INTEGER NOT NULL,
		business_seats INTEGER NOT NULL,
		economy_total INTEGER NOT NULL,
		business_total INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hotels (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT NOT NULL,
		price_per_night TEXT NOT NULL,
		rooms_available INTEGER NOT NULL,
		rooms_total INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hotel_rooms (
		hotel_id TEXT NOT NULL REFERENCES hotels(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		price_per_night TEXT NOT NULL,
		count INTEGER NOT NULL,
		total INTEGER NOT NULL,
		PRIMARY KEY (hotel_id, name)
	);

	CREATE TABLE IF NOT EXISTS entertainments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT NOT NULL,
		price TEXT NOT NULL,
		slots INTEGER NOT NULL,
		slots_total INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tour_packages (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		location TEXT NOT NULL,
		duration TEXT,
		price TEXT NOT NULL,
		availability INTEGER NOT NULL,
		max_capacity INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Bookings
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		items_json TEXT NOT NULL,
		custom_package_id TEXT,
		total_price TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		refund_status TEXT NOT NULL DEFAULT 'none',
		refund_amount TEXT NOT NULL DEFAULT '0',
		refund_reason TEXT NOT NULL DEFAULT '',
		reservations_json TEXT NOT NULL DEFAULT '[]',
		confirmed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_user
		ON bookings(user_id);
	CREATE INDEX IF NOT EXISTS idx_bookings_custom_package
		ON bookings(custom_package_id) WHERE custom_package_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_bookings_status
		ON bookings(status);

	CREATE TABLE IF NOT EXISTS booking_status_notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		booking_id TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		actor TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_status_notes_booking
		ON booking_status_notes(booking_id);

	-- Custom packages
	CREATE TABLE IF NOT EXISTS custom_packages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		flights_json TEXT NOT NULL DEFAULT '[]',
		hotels_json TEXT NOT NULL DEFAULT '[]',
		entertainments_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_custom_packages_user
		ON custom_packages(user_id);

	-- Settlement
	CREATE TABLE IF NOT EXISTS settlement_plans (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL UNIQUE,
		mode TEXT NOT NULL,
		total TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL REFERENCES settlement_plans(id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		due_date TEXT NOT NULL,
		invoice_id TEXT NOT NULL,
		paid_at TEXT,
		UNIQUE (plan_id, number)
	);

	CREATE INDEX IF NOT EXISTS idx_installments_plan
		ON installments(plan_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset clears all data. Used by tests and demo tooling.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"installments", "settlement_plans", "booking_status_notes",
		"bookings", "custom_packages", "hotel_rooms", "hotels",
		"flights", "entertainments", "tour_packages",
	}
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SERIALIZATION HELPERS
// =============================================================================

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func scanNullableTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}
