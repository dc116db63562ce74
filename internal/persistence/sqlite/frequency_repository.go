package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/cleanbook/internal/persistence"
)

// FrequencyRepository implements persistence.FrequencyRepository on SQLite.
type FrequencyRepository struct {
	pool *ConnectionPool
}

// NewFrequencyRepository creates a SQLite-backed frequency catalog repository.
func NewFrequencyRepository(pool *ConnectionPool) *FrequencyRepository {
	return &FrequencyRepository{pool: pool}
}

func (r *FrequencyRepository) UpsertFrequency(ctx context.Context, frequency persistence.BusinessFrequency) error {
	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO business_frequencies (id, business_id, name, repeats, sort_order)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (business_id, name) DO UPDATE SET repeats = excluded.repeats, sort_order = excluded.sort_order`,
		frequency.ID,
		frequency.BusinessID,
		frequency.Name,
		frequency.Repeats,
		frequency.SortOrder,
	)
	return mapError(err)
}

func (r *FrequencyRepository) GetFrequencyRepeats(ctx context.Context, businessID, name string) (string, error) {
	var repeats string
	err := r.pool.DB().QueryRowContext(ctx, `
		SELECT repeats FROM business_frequencies
		WHERE business_id = ? AND name = ? COLLATE NOCASE`,
		businessID, name,
	).Scan(&repeats)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", persistence.ErrNotFound
		}
		return "", mapError(err)
	}
	return repeats, nil
}

func (r *FrequencyRepository) ListFrequenciesForBusiness(ctx context.Context, businessID string) ([]persistence.BusinessFrequency, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, business_id, name, repeats, sort_order
		FROM business_frequencies
		WHERE business_id = ?
		ORDER BY sort_order, name`, businessID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	frequencies := make([]persistence.BusinessFrequency, 0)
	for rows.Next() {
		var frequency persistence.BusinessFrequency
		if err := rows.Scan(
			&frequency.ID,
			&frequency.BusinessID,
			&frequency.Name,
			&frequency.Repeats,
			&frequency.SortOrder,
		); err != nil {
			return nil, err
		}
		frequencies = append(frequencies, frequency)
	}
	return frequencies, rows.Err()
}
