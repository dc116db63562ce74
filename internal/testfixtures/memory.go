package testfixtures

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/cleanbook/internal/persistence"
	"github.com/example/cleanbook/internal/recurrence"
)

// MemoryStore implements the persistence repositories in memory for
// service and handler tests.
type MemoryStore struct {
	mu          sync.RWMutex
	businesses  map[string]persistence.Business
	frequencies map[string]persistence.BusinessFrequency
	series      map[string]persistence.RecurringSeries
	bookings    map[string]persistence.Booking
	completed   map[string]map[time.Time]struct{}

	// FailBookingsAfter, when non-negative, makes CreateBooking fail
	// once that many bookings exist. Used to provoke partial writes.
	FailBookingsAfter int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		businesses:        make(map[string]persistence.Business),
		frequencies:       make(map[string]persistence.BusinessFrequency),
		series:            make(map[string]persistence.RecurringSeries),
		bookings:          make(map[string]persistence.Booking),
		completed:         make(map[string]map[time.Time]struct{}),
		FailBookingsAfter: -1,
	}
}

// --- BusinessRepository ---

func (m *MemoryStore) CreateBusiness(ctx context.Context, business persistence.Business) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.businesses[business.ID]; ok {
		return persistence.ErrDuplicate
	}
	m.businesses[business.ID] = business
	return nil
}

func (m *MemoryStore) GetBusiness(ctx context.Context, id string) (persistence.Business, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	business, ok := m.businesses[id]
	if !ok {
		return persistence.Business{}, persistence.ErrNotFound
	}
	return business, nil
}

func (m *MemoryStore) ListBusinesses(ctx context.Context) ([]persistence.Business, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	businesses := make([]persistence.Business, 0, len(m.businesses))
	for _, business := range m.businesses {
		businesses = append(businesses, business)
	}
	sort.Slice(businesses, func(i, j int) bool { return businesses[i].ID < businesses[j].ID })
	return businesses, nil
}

// --- FrequencyRepository ---

func (m *MemoryStore) UpsertFrequency(ctx context.Context, frequency persistence.BusinessFrequency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frequencies[frequencyKey(frequency.BusinessID, frequency.Name)] = frequency
	return nil
}

func (m *MemoryStore) GetFrequencyRepeats(ctx context.Context, businessID, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	frequency, ok := m.frequencies[frequencyKey(businessID, name)]
	if !ok {
		return "", persistence.ErrNotFound
	}
	return frequency.Repeats, nil
}

func (m *MemoryStore) ListFrequenciesForBusiness(ctx context.Context, businessID string) ([]persistence.BusinessFrequency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	frequencies := make([]persistence.BusinessFrequency, 0)
	for _, frequency := range m.frequencies {
		if frequency.BusinessID == businessID {
			frequencies = append(frequencies, frequency)
		}
	}
	sort.Slice(frequencies, func(i, j int) bool { return frequencies[i].Name < frequencies[j].Name })
	return frequencies, nil
}

func frequencyKey(businessID, name string) string {
	return businessID + "/" + strings.ToLower(strings.TrimSpace(name))
}

// --- SeriesRepository ---

func (m *MemoryStore) CreateSeries(ctx context.Context, series persistence.RecurringSeries) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.series[series.ID]; ok {
		return persistence.ErrDuplicate
	}
	m.series[series.ID] = series
	return nil
}

func (m *MemoryStore) GetSeries(ctx context.Context, id string) (persistence.RecurringSeries, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	series, ok := m.series[id]
	if !ok {
		return persistence.RecurringSeries{}, persistence.ErrNotFound
	}
	return series, nil
}

func (m *MemoryStore) ListSeriesForBusiness(ctx context.Context, businessID string) ([]persistence.RecurringSeries, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]persistence.RecurringSeries, 0)
	for _, series := range m.series {
		if series.BusinessID == businessID {
			result = append(result, series)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) DeleteSeries(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.series[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.series, id)
	return nil
}

// --- BookingRepository ---

func (m *MemoryStore) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailBookingsAfter >= 0 && len(m.bookings) >= m.FailBookingsAfter {
		return persistence.ErrConstraintViolation
	}
	if _, ok := m.bookings[booking.ID]; ok {
		return persistence.ErrDuplicate
	}
	m.bookings[booking.ID] = booking
	return nil
}

func (m *MemoryStore) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	booking, ok := m.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	booking.CompletedDates = m.completedDatesLocked(id)
	return booking, nil
}

func (m *MemoryStore) UpdateBookingStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return persistence.ErrNotFound
	}
	booking.Status = status
	booking.UpdatedAt = updatedAt
	m.bookings[id] = booking
	return nil
}

func (m *MemoryStore) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bookings := make([]persistence.Booking, 0)
	for _, booking := range m.bookings {
		if !matchesFilter(booking, filter) {
			continue
		}
		booking.CompletedDates = m.completedDatesLocked(booking.ID)
		bookings = append(bookings, booking)
	}
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Date.Equal(bookings[j].Date) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Date.Before(bookings[j].Date)
	})
	return bookings, nil
}

func (m *MemoryStore) AddCompletedDate(ctx context.Context, bookingID string, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[bookingID]; !ok {
		return persistence.ErrNotFound
	}
	if m.completed[bookingID] == nil {
		m.completed[bookingID] = make(map[time.Time]struct{})
	}
	m.completed[bookingID][recurrence.DateOf(date)] = struct{}{}
	return nil
}

// BookingCount reports how many rows the store holds.
func (m *MemoryStore) BookingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bookings)
}

func (m *MemoryStore) completedDatesLocked(bookingID string) []time.Time {
	set := m.completed[bookingID]
	if len(set) == 0 {
		return nil
	}
	dates := make([]time.Time, 0, len(set))
	for date := range set {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func matchesFilter(booking persistence.Booking, filter persistence.BookingFilter) bool {
	if booking.BusinessID != filter.BusinessID {
		return false
	}
	if filter.ProviderID != nil {
		if booking.ProviderID == nil || *booking.ProviderID != *filter.ProviderID {
			return false
		}
	}
	if filter.SeriesID != nil {
		if booking.SeriesID == nil || *booking.SeriesID != *filter.SeriesID {
			return false
		}
	}
	if filter.DateFrom != nil && booking.Date.Before(*filter.DateFrom) {
		return false
	}
	if filter.DateTo != nil && booking.Date.After(*filter.DateTo) {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if booking.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
