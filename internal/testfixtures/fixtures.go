package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/cleanbook/internal/persistence"
	"github.com/example/cleanbook/internal/recurrence"
)

var (
	businessCounter uint64
	bookingCounter  uint64
	seriesCounter   uint64
)

var referenceTime = time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
// January 6, 2025 is a Monday, which keeps week-preset assertions simple.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the calendar date of ReferenceTime.
func ReferenceDate() time.Time {
	return recurrence.DateOf(referenceTime)
}

// BusinessOption configures a generated business fixture.
type BusinessOption func(*persistence.Business)

// NewBusinessFixture returns a deterministic business record with optional overrides.
func NewBusinessFixture(opts ...BusinessOption) persistence.Business {
	idx := atomic.AddUint64(&businessCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	business := persistence.Business{
		ID:         fmt.Sprintf("biz-%03d", idx),
		Name:       fmt.Sprintf("Cleaning Business %03d", idx),
		Industry:   "cleaning",
		APIKeyHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&business)
	}
	return business
}

// BookingOption configures a generated booking fixture.
type BookingOption func(*persistence.Booking)

// NewBookingFixture returns a deterministic booking row with optional overrides.
func NewBookingFixture(opts ...BookingOption) persistence.Booking {
	idx := atomic.AddUint64(&bookingCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	booking := persistence.Booking{
		ID:            fmt.Sprintf("bkg-%03d", idx),
		BusinessID:    "biz-001",
		CustomerName:  fmt.Sprintf("Customer %03d", idx),
		CustomerEmail: fmt.Sprintf("customer-%03d@example.com", idx),
		Address:       fmt.Sprintf("%d Main St", idx),
		ServiceType:   "Standard Clean",
		PriceCents:    12000,
		Date:          ReferenceDate().AddDate(0, 0, int(idx)),
		ScheduledTime: "09:00",
		Status:        "confirmed",
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	for _, opt := range opts {
		opt(&booking)
	}
	return booking
}

// WithSeries attaches the booking to a series and pins its date.
func WithSeries(seriesID string, date time.Time) BookingOption {
	return func(b *persistence.Booking) {
		id := seriesID
		b.SeriesID = &id
		b.Date = date
	}
}

// WithBusiness reassigns the booking to another business.
func WithBusiness(businessID string) BookingOption {
	return func(b *persistence.Booking) {
		b.BusinessID = businessID
	}
}

var frequencyCounter uint64

// NewFrequencyFixture returns a catalog entry tying a frequency label to
// a repeat unit for one business.
func NewFrequencyFixture(businessID, name, repeats string) persistence.BusinessFrequency {
	idx := atomic.AddUint64(&frequencyCounter, 1)
	return persistence.BusinessFrequency{
		ID:         fmt.Sprintf("frq-%03d", idx),
		BusinessID: businessID,
		Name:       name,
		Repeats:    repeats,
		SortOrder:  int(idx),
	}
}

// SeriesOption configures a generated series fixture.
type SeriesOption func(*persistence.RecurringSeries)

// NewSeriesFixture returns a deterministic weekly series with optional overrides.
func NewSeriesFixture(opts ...SeriesOption) persistence.RecurringSeries {
	idx := atomic.AddUint64(&seriesCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	series := persistence.RecurringSeries{
		ID:               fmt.Sprintf("ser-%03d", idx),
		BusinessID:       "biz-001",
		StartDate:        ReferenceDate(),
		FrequencyName:    "Weekly",
		FrequencyRepeats: "7 days",
		OccurrencesAhead: 8,
		ScheduledTime:    "09:00",
		SameProvider:     true,
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	for _, opt := range opts {
		opt(&series)
	}
	return series
}
