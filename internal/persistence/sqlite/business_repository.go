package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/cleanbook/internal/persistence"
)

// BusinessRepository implements persistence.BusinessRepository on SQLite.
type BusinessRepository struct {
	pool *ConnectionPool
}

// NewBusinessRepository creates a SQLite-backed business repository.
func NewBusinessRepository(pool *ConnectionPool) *BusinessRepository {
	return &BusinessRepository{pool: pool}
}

func (r *BusinessRepository) CreateBusiness(ctx context.Context, business persistence.Business) error {
	now := time.Now().UTC()
	if business.CreatedAt.IsZero() {
		business.CreatedAt = now
	}
	if business.UpdatedAt.IsZero() {
		business.UpdatedAt = now
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO businesses (id, name, industry, api_key_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		business.ID,
		business.Name,
		business.Industry,
		business.APIKeyHash,
		formatTimestamp(business.CreatedAt),
		formatTimestamp(business.UpdatedAt),
	)
	return mapError(err)
}

func (r *BusinessRepository) GetBusiness(ctx context.Context, id string) (persistence.Business, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, name, industry, api_key_hash, created_at, updated_at
		FROM businesses WHERE id = ?`, id)
	return scanBusiness(row)
}

func (r *BusinessRepository) ListBusinesses(ctx context.Context) ([]persistence.Business, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, name, industry, api_key_hash, created_at, updated_at
		FROM businesses ORDER BY created_at, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	businesses := make([]persistence.Business, 0)
	for rows.Next() {
		business, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		businesses = append(businesses, business)
	}
	return businesses, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBusiness(row rowScanner) (persistence.Business, error) {
	var business persistence.Business
	var createdAt, updatedAt string

	err := row.Scan(
		&business.ID,
		&business.Name,
		&business.Industry,
		&business.APIKeyHash,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Business{}, persistence.ErrNotFound
		}
		return persistence.Business{}, mapError(err)
	}

	if business.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Business{}, err
	}
	if business.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Business{}, err
	}
	return business, nil
}
