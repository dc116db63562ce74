package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/example/cleanbook/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository on SQLite.
//
// Completed occurrence dates live in their own table keyed by
// (booking_id, date); AddCompletedDate writes them with INSERT OR
// IGNORE, which is the atomic set insert the application layer relies
// on instead of read-modify-write.
type BookingRepository struct {
	pool *ConnectionPool
}

// NewBookingRepository creates a SQLite-backed booking repository.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = now
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO bookings (
			id, business_id, series_id, customer_name, customer_email, customer_phone,
			address, service_type, provider_id, price_cents, date, scheduled_time,
			status, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID,
		booking.BusinessID,
		nullString(booking.SeriesID),
		booking.CustomerName,
		booking.CustomerEmail,
		booking.CustomerPhone,
		booking.Address,
		booking.ServiceType,
		nullString(booking.ProviderID),
		booking.PriceCents,
		formatDate(booking.Date),
		booking.ScheduledTime,
		booking.Status,
		nullString(booking.Notes),
		formatTimestamp(booking.CreatedAt),
		formatTimestamp(booking.UpdatedAt),
	)
	return mapError(err)
}

func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	row := r.pool.DB().QueryRowContext(ctx, bookingSelect+" WHERE id = ?", id)
	booking, err := scanBooking(row)
	if err != nil {
		return persistence.Booking{}, err
	}

	completed, err := r.completedDates(ctx, []string{booking.ID})
	if err != nil {
		return persistence.Booking{}, err
	}
	booking.CompletedDates = completed[booking.ID]
	return booking, nil
}

func (r *BookingRepository) UpdateBookingStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		status, formatTimestamp(updatedAt), id)
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

func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	query := bookingSelect + " WHERE business_id = ?"
	args := []any{filter.BusinessID}

	if filter.ProviderID != nil {
		query += " AND provider_id = ?"
		args = append(args, *filter.ProviderID)
	}
	if filter.SeriesID != nil {
		query += " AND series_id = ?"
		args = append(args, *filter.SeriesID)
	}
	if filter.DateFrom != nil {
		query += " AND date >= ?"
		args = append(args, formatDate(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		query += " AND date <= ?"
		args = append(args, formatDate(*filter.DateTo))
	}
	if len(filter.Statuses) > 0 {
		query += " AND status IN (?" + strings.Repeat(", ?", len(filter.Statuses)-1) + ")"
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	query += " ORDER BY date, id"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	bookings := make([]persistence.Booking, 0)
	ids := make([]string, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
		ids = append(ids, booking.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	completed, err := r.completedDates(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		bookings[i].CompletedDates = completed[bookings[i].ID]
	}
	return bookings, nil
}

func (r *BookingRepository) AddCompletedDate(ctx context.Context, bookingID string, date time.Time) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRow("SELECT 1 FROM bookings WHERE id = ?", bookingID).Scan(&exists)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return persistence.ErrNotFound
			}
			return mapError(err)
		}

		_, err = tx.Exec(`
			INSERT OR IGNORE INTO booking_completed_dates (booking_id, date, completed_at)
			VALUES (?, ?, ?)`,
			bookingID, formatDate(date), formatTimestamp(time.Now().UTC()))
		return mapError(err)
	})
}

func (r *BookingRepository) completedDates(ctx context.Context, bookingIDs []string) (map[string][]time.Time, error) {
	if len(bookingIDs) == 0 {
		return map[string][]time.Time{}, nil
	}

	query := "SELECT booking_id, date FROM booking_completed_dates WHERE booking_id IN (?" +
		strings.Repeat(", ?", len(bookingIDs)-1) + ") ORDER BY date"
	args := make([]any, len(bookingIDs))
	for i, id := range bookingIDs {
		args[i] = id
	}

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make(map[string][]time.Time)
	for rows.Next() {
		var bookingID, dateValue string
		if err := rows.Scan(&bookingID, &dateValue); err != nil {
			return nil, err
		}
		date, err := parseDate(dateValue)
		if err != nil {
			return nil, err
		}
		result[bookingID] = append(result[bookingID], date)
	}
	return result, rows.Err()
}

const bookingSelect = `
	SELECT id, business_id, series_id, customer_name, customer_email, customer_phone,
	       address, service_type, provider_id, price_cents, date, scheduled_time,
	       status, notes, created_at, updated_at
	FROM bookings`

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var booking persistence.Booking
	var seriesID, providerID, notes sql.NullString
	var date, createdAt, updatedAt string

	err := row.Scan(
		&booking.ID,
		&booking.BusinessID,
		&seriesID,
		&booking.CustomerName,
		&booking.CustomerEmail,
		&booking.CustomerPhone,
		&booking.Address,
		&booking.ServiceType,
		&providerID,
		&booking.PriceCents,
		&date,
		&booking.ScheduledTime,
		&booking.Status,
		&notes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Booking{}, persistence.ErrNotFound
		}
		return persistence.Booking{}, mapError(err)
	}

	booking.SeriesID = stringPtr(seriesID)
	booking.ProviderID = stringPtr(providerID)
	booking.Notes = stringPtr(notes)
	if booking.Date, err = parseDate(date); err != nil {
		return persistence.Booking{}, err
	}
	if booking.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}
