package application

import "time"

// Booking lifecycle statuses. For recurring bookings the row status
// reflects the series-level row; individual occurrences track their own
// completion through the completed-dates set.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Booking represents a persisted booking row exposed by the services.
type Booking struct {
	ID             string
	BusinessID     string
	SeriesID       *string
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Address        string
	ServiceType    string
	ProviderID     *string
	PriceCents     int64
	Date           time.Time
	ScheduledTime  string
	Status         string
	Notes          *string
	CompletedDates []time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BookingInput captures caller provided booking fields. For a recurring
// series this is the template cloned into every materialized row.
type BookingInput struct {
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Address       string
	ServiceType   string
	ProviderID    *string
	PriceCents    int64
	Date          time.Time
	ScheduledTime string
	Notes         *string
}

// SeriesOptions captures the recurrence configuration of a series
// creation request.
type SeriesOptions struct {
	StartDate        time.Time
	EndDate          *time.Time
	FrequencyName    string
	FrequencyRepeats string
	OccurrencesAhead int
	SameProvider     bool
}

// RecurringSeries is the durable recurrence rule as exposed to callers.
type RecurringSeries struct {
	ID               string
	BusinessID       string
	StartDate        time.Time
	EndDate          *time.Time
	FrequencyName    string
	FrequencyRepeats string
	OccurrencesAhead int
	ScheduledTime    string
	SameProvider     bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateBookingParams wraps the data required to create a booking.
// Recurring is nil for one-off bookings.
type CreateBookingParams struct {
	BusinessID string
	Input      BookingInput
	Recurring  *SeriesOptions
}

// CreateSeriesParams wraps the data required to materialize a series.
type CreateSeriesParams struct {
	BusinessID string
	Template   BookingInput
	Options    SeriesOptions
}

// SeriesResult reports the outcome of series materialization.
type SeriesResult struct {
	SeriesID   string
	BookingIDs []string
}

// Occurrence is one displayed instance of a booking: either a persisted
// row or a virtual expansion of a series beyond its persisted window.
// BookingID is nil for virtual occurrences.
type Occurrence struct {
	BookingID     *string
	SeriesID      *string
	Date          time.Time
	ScheduledTime string
	Status        string
	CustomerName  string
	Address       string
	ServiceType   string
	ProviderID    *string
	PriceCents    int64
}

// ListPeriod identifies the range preset requested for booking listings.
type ListPeriod string

const (
	// ListPeriodNone indicates no preset; caller supplied explicit bounds.
	ListPeriodNone ListPeriod = ""
	// ListPeriodDay constrains results to a single day.
	ListPeriodDay ListPeriod = "day"
	// ListPeriodWeek constrains results to the Monday-start week containing the reference date.
	ListPeriodWeek ListPeriod = "week"
	// ListPeriodMonth constrains results to the month containing the reference date.
	ListPeriodMonth ListPeriod = "month"
)

// ListBookingsParams wraps the data required to list bookings.
type ListBookingsParams struct {
	BusinessID      string
	ProviderID      *string
	DateFrom        *time.Time
	DateTo          *time.Time
	Period          ListPeriod
	PeriodReference time.Time
}
