package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/cleanbook/internal/persistence"
)

// SeriesRepository implements persistence.SeriesRepository on SQLite.
type SeriesRepository struct {
	pool *ConnectionPool
}

// NewSeriesRepository creates a SQLite-backed recurring series repository.
func NewSeriesRepository(pool *ConnectionPool) *SeriesRepository {
	return &SeriesRepository{pool: pool}
}

func (r *SeriesRepository) CreateSeries(ctx context.Context, series persistence.RecurringSeries) error {
	now := time.Now().UTC()
	if series.CreatedAt.IsZero() {
		series.CreatedAt = now
	}
	if series.UpdatedAt.IsZero() {
		series.UpdatedAt = now
	}

	var endDate sql.NullString
	if series.EndDate != nil {
		endDate = sql.NullString{String: formatDate(*series.EndDate), Valid: true}
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO recurring_series (
			id, business_id, start_date, end_date, frequency_name, frequency_repeats,
			occurrences_ahead, scheduled_time, same_provider, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		series.ID,
		series.BusinessID,
		formatDate(series.StartDate),
		endDate,
		series.FrequencyName,
		series.FrequencyRepeats,
		series.OccurrencesAhead,
		series.ScheduledTime,
		boolToInt(series.SameProvider),
		formatTimestamp(series.CreatedAt),
		formatTimestamp(series.UpdatedAt),
	)
	return mapError(err)
}

func (r *SeriesRepository) GetSeries(ctx context.Context, id string) (persistence.RecurringSeries, error) {
	row := r.pool.DB().QueryRowContext(ctx, seriesSelect+" WHERE id = ?", id)
	return scanSeries(row)
}

func (r *SeriesRepository) ListSeriesForBusiness(ctx context.Context, businessID string) ([]persistence.RecurringSeries, error) {
	rows, err := r.pool.DB().QueryContext(ctx, seriesSelect+" WHERE business_id = ? ORDER BY created_at, id", businessID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make([]persistence.RecurringSeries, 0)
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, series)
	}
	return result, rows.Err()
}

func (r *SeriesRepository) DeleteSeries(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, "DELETE FROM recurring_series WHERE id = ?", id)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

const seriesSelect = `
	SELECT id, business_id, start_date, end_date, frequency_name, frequency_repeats,
	       occurrences_ahead, scheduled_time, same_provider, created_at, updated_at
	FROM recurring_series`

func scanSeries(row rowScanner) (persistence.RecurringSeries, error) {
	var series persistence.RecurringSeries
	var startDate, createdAt, updatedAt string
	var endDate sql.NullString
	var sameProvider int

	err := row.Scan(
		&series.ID,
		&series.BusinessID,
		&startDate,
		&endDate,
		&series.FrequencyName,
		&series.FrequencyRepeats,
		&series.OccurrencesAhead,
		&series.ScheduledTime,
		&sameProvider,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.RecurringSeries{}, persistence.ErrNotFound
		}
		return persistence.RecurringSeries{}, mapError(err)
	}

	if series.StartDate, err = parseDate(startDate); err != nil {
		return persistence.RecurringSeries{}, err
	}
	if endDate.Valid {
		parsed, err := parseDate(endDate.String)
		if err != nil {
			return persistence.RecurringSeries{}, err
		}
		series.EndDate = &parsed
	}
	series.SameProvider = sameProvider != 0
	if series.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.RecurringSeries{}, err
	}
	if series.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.RecurringSeries{}, err
	}
	return series, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
