package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one versioned schema step. Versions are applied in order
// exactly once; applied versions are recorded in schema_migrations.
type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "businesses",
		SQL: `
CREATE TABLE businesses (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	industry TEXT NOT NULL DEFAULT 'cleaning',
	api_key_hash TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE business_frequencies (
	id TEXT PRIMARY KEY,
	business_id TEXT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	repeats TEXT NOT NULL,
	sort_order INTEGER NOT NULL DEFAULT 0,
	UNIQUE (business_id, name)
);
`,
	},
	{
		Version: 2,
		Name:    "series and bookings",
		SQL: `
CREATE TABLE recurring_series (
	id TEXT PRIMARY KEY,
	business_id TEXT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	start_date TEXT NOT NULL,
	end_date TEXT,
	frequency_name TEXT NOT NULL,
	frequency_repeats TEXT NOT NULL,
	occurrences_ahead INTEGER NOT NULL CHECK (occurrences_ahead BETWEEN 1 AND 24),
	scheduled_time TEXT NOT NULL DEFAULT '',
	same_provider INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE bookings (
	id TEXT PRIMARY KEY,
	business_id TEXT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	series_id TEXT REFERENCES recurring_series(id) ON DELETE SET NULL,
	customer_name TEXT NOT NULL,
	customer_email TEXT NOT NULL DEFAULT '',
	customer_phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	service_type TEXT NOT NULL DEFAULT '',
	provider_id TEXT,
	price_cents INTEGER NOT NULL DEFAULT 0,
	date TEXT NOT NULL,
	scheduled_time TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'in_progress', 'completed', 'cancelled')),
	notes TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX idx_bookings_business_date ON bookings (business_id, date);
CREATE INDEX idx_bookings_series ON bookings (series_id);
`,
	},
	{
		Version: 3,
		Name:    "completed occurrence dates",
		SQL: `
CREATE TABLE booking_completed_dates (
	booking_id TEXT NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
	date TEXT NOT NULL,
	completed_at TEXT NOT NULL,
	PRIMARY KEY (booking_id, date)
);
`,
	},
}

// Migrate brings the schema up to date. Each pending migration runs in
// its own transaction together with the version bookkeeping row.
func Migrate(ctx context.Context, pool *ConnectionPool) error {
	if _, err := pool.DB().ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TEXT NOT NULL
);`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		m := m
		err := pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.SQL); err != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
			}
			_, err := tx.Exec(
				"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, datetime('now'))",
				m.Version, m.Name,
			)
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, pool *ConnectionPool) (map[int]struct{}, error) {
	rows, err := pool.DB().QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]struct{})
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = struct{}{}
	}
	return applied, rows.Err()
}
