package persistence

import (
	"context"
	"time"
)

// BusinessRepository exposes tenant account operations.
type BusinessRepository interface {
	CreateBusiness(ctx context.Context, business Business) error
	GetBusiness(ctx context.Context, id string) (Business, error)
	ListBusinesses(ctx context.Context) ([]Business, error)
}

// FrequencyRepository stores the per-business frequency catalog.
type FrequencyRepository interface {
	UpsertFrequency(ctx context.Context, frequency BusinessFrequency) error
	// GetFrequencyRepeats resolves a frequency name to its repeat unit
	// for one business. Returns ErrNotFound when the business has no
	// catalog entry under that name.
	GetFrequencyRepeats(ctx context.Context, businessID, name string) (string, error)
	ListFrequenciesForBusiness(ctx context.Context, businessID string) ([]BusinessFrequency, error)
}

// SeriesRepository stores durable recurrence rules.
type SeriesRepository interface {
	CreateSeries(ctx context.Context, series RecurringSeries) error
	GetSeries(ctx context.Context, id string) (RecurringSeries, error)
	ListSeriesForBusiness(ctx context.Context, businessID string) ([]RecurringSeries, error)
	DeleteSeries(ctx context.Context, id string) error
}

// BookingRepository stores booking rows and their completion sets.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	UpdateBookingStatus(ctx context.Context, id, status string, updatedAt time.Time) error
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	// AddCompletedDate records an occurrence date as completed. The
	// write is an atomic set insert: repeating it with the same date is
	// a no-op, and concurrent adds of different dates cannot lose each
	// other. Returns ErrNotFound when the booking does not exist.
	AddCompletedDate(ctx context.Context, bookingID string, date time.Time) error
}
