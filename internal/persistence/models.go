package persistence

import "time"

// Business represents a tenant account owning bookings and series.
type Business struct {
	ID         string
	Name       string
	Industry   string
	APIKeyHash string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BusinessFrequency is a per-business frequency catalog entry mapping a
// human-readable label to a repeat unit such as "7 days".
type BusinessFrequency struct {
	ID         string
	BusinessID string
	Name       string
	Repeats    string
	SortOrder  int
}

// RecurringSeries is the durable recurrence rule for a booking series.
// It outlives the booking rows materialized from it; rows may be
// deleted or modified without invalidating the rule.
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

// Booking represents one persisted occurrence row. SeriesID is nil for
// one-off bookings. CompletedDates is the set of occurrence dates
// individually marked complete on this row, independent of Status.
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

// BookingFilter narrows booking queries. All fields are conjunctive;
// nil pointers leave the corresponding dimension unfiltered.
type BookingFilter struct {
	BusinessID string
	ProviderID *string
	SeriesID   *string
	DateFrom   *time.Time
	DateTo     *time.Time
	Statuses   []string
}
