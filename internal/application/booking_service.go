package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/cleanbook/internal/persistence"
	"github.com/example/cleanbook/internal/recurrence"
)

// MaxOccurrencesAhead caps how many occurrence rows a single series
// creation request may materialize eagerly. Requests asking for more
// are clamped, not rejected; readers re-expand the stored rule to see
// past the persisted window.
const MaxOccurrencesAhead = 24

// Notifier announces series creation to the admin notification sink.
// Failures are logged and swallowed; delivery is not essential to the
// booking's correctness.
type Notifier interface {
	NotifyAdmin(ctx context.Context, businessID, message string) error
}

// BookingService orchestrates validation, recurrence expansion and
// persistence for booking operations.
type BookingService struct {
	bookings    persistence.BookingRepository
	series      persistence.SeriesRepository
	frequencies persistence.FrequencyRepository
	notifier    Notifier
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(bookings persistence.BookingRepository, series persistence.SeriesRepository, frequencies persistence.FrequencyRepository, notifier Notifier, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, series, frequencies, notifier, idGenerator, now, nil)
}

// NewBookingServiceWithLogger wires dependencies together with a base logger.
func NewBookingServiceWithLogger(bookings persistence.BookingRepository, series persistence.SeriesRepository, frequencies persistence.FrequencyRepository, notifier Notifier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		bookings:    bookings,
		series:      series,
		frequencies: frequencies,
		notifier:    notifier,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateBooking validates and persists a one-off booking. Requests
// flagged as recurring are routed through CreateRecurringSeries by the
// transport layer.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (Booking, error) {
	if s == nil || s.bookings == nil {
		return Booking{}, fmt.Errorf("booking repository not configured")
	}

	vErr := &ValidationError{}
	validateBookingCore(params.BusinessID, params.Input, vErr)
	if params.Input.Date.IsZero() {
		vErr.add("date", "date is required")
	}
	if vErr.HasErrors() {
		return Booking{}, vErr
	}

	now := s.now()
	row := rowFromInput(params.BusinessID, params.Input, s.idGenerator(), nil, recurrence.DateOf(params.Input.Date), now)

	if err := s.bookings.CreateBooking(ctx, row); err != nil {
		return Booking{}, mapRepoError(err)
	}

	stored, err := s.bookings.GetBooking(ctx, row.ID)
	if err != nil {
		return Booking{}, mapRepoError(err)
	}

	serviceLogger(ctx, s.logger, "booking", "create", "booking_id", stored.ID).
		InfoContext(ctx, "booking created")
	return toBooking(stored), nil
}

// CreateRecurringSeries expands the recurrence options and persists one
// booking row per near-term occurrence, all sharing a new series id.
//
// The rule is validated and fully expanded before the first write, so
// caller errors (unknown frequency, missing start date) never leave
// partial state behind. Row persistence is at-least-once: a mid-batch
// failure returns a PartialWriteError carrying the ids already written.
func (s *BookingService) CreateRecurringSeries(ctx context.Context, params CreateSeriesParams) (SeriesResult, error) {
	if s == nil || s.bookings == nil || s.series == nil {
		return SeriesResult{}, fmt.Errorf("booking repository not configured")
	}

	logger := serviceLogger(ctx, s.logger, "booking", "create_series", "business_id", params.BusinessID)

	vErr := &ValidationError{}
	validateBookingCore(params.BusinessID, params.Template, vErr)
	if params.Options.StartDate.IsZero() {
		vErr.add("start_date", "start date is required")
	}
	if strings.TrimSpace(params.Options.FrequencyName) == "" && strings.TrimSpace(params.Options.FrequencyRepeats) == "" {
		vErr.add("frequency", "a frequency name or repeat unit is required")
	}
	if vErr.HasErrors() {
		return SeriesResult{}, vErr
	}

	repeats, err := s.resolveRepeats(ctx, params.BusinessID, params.Options)
	if err != nil {
		return SeriesResult{}, err
	}

	rule := recurrence.Rule{
		StartDate:        params.Options.StartDate,
		EndDate:          params.Options.EndDate,
		FrequencyName:    params.Options.FrequencyName,
		FrequencyRepeats: repeats,
	}
	dates, err := recurrence.Expand(rule, recurrence.Options{
		MaxOccurrences: clampOccurrencesAhead(params.Options.OccurrencesAhead),
	})
	if err != nil {
		return SeriesResult{}, err
	}

	now := s.now()
	seriesID := s.idGenerator()
	record := persistence.RecurringSeries{
		ID:               seriesID,
		BusinessID:       params.BusinessID,
		StartDate:        recurrence.DateOf(params.Options.StartDate),
		EndDate:          normalizeDatePtr(params.Options.EndDate),
		FrequencyName:    params.Options.FrequencyName,
		FrequencyRepeats: repeats,
		OccurrencesAhead: clampOccurrencesAhead(params.Options.OccurrencesAhead),
		ScheduledTime:    params.Template.ScheduledTime,
		SameProvider:     params.Options.SameProvider,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.series.CreateSeries(ctx, record); err != nil {
		return SeriesResult{}, mapRepoError(err)
	}

	created := make([]string, 0, len(dates))
	for _, date := range dates {
		row := rowFromInput(params.BusinessID, params.Template, s.idGenerator(), &seriesID, date, now)
		if err := s.bookings.CreateBooking(ctx, row); err != nil {
			logger.ErrorContext(ctx, "series materialization stopped mid-batch",
				"series_id", seriesID, "created", len(created), "requested", len(dates), "error", err)
			return SeriesResult{SeriesID: seriesID, BookingIDs: created}, &PartialWriteError{
				SeriesID:   seriesID,
				CreatedIDs: created,
				Err:        mapRepoError(err),
			}
		}
		created = append(created, row.ID)
	}

	logger.InfoContext(ctx, "recurring series created", "series_id", seriesID, "occurrences", len(created))
	s.notifyAdmin(ctx, params.BusinessID, fmt.Sprintf("%d occurrences created for recurring series %s", len(created), seriesID))

	return SeriesResult{SeriesID: seriesID, BookingIDs: created}, nil
}

// ExpandForDisplay reconstructs the full occurrence list of a series
// for display, merging the parent row's completion state onto every
// date. It is pure: repeated calls with identical inputs yield
// identical output and never touch stored state.
func (s *BookingService) ExpandForDisplay(series RecurringSeries, parent Booking, upTo *time.Time) ([]Occurrence, error) {
	rule := recurrence.Rule{
		StartDate:        series.StartDate,
		EndDate:          series.EndDate,
		FrequencyName:    series.FrequencyName,
		FrequencyRepeats: series.FrequencyRepeats,
	}
	dates, err := recurrence.Expand(rule, recurrence.Options{UpTo: upTo})
	if err != nil {
		return nil, err
	}

	completed := dateSet(parent.CompletedDates)
	seriesID := series.ID

	occurrences := make([]Occurrence, 0, len(dates))
	for _, date := range dates {
		var bookingID *string
		if date.Equal(parent.Date) {
			id := parent.ID
			bookingID = &id
		}
		occurrences = append(occurrences, Occurrence{
			BookingID:     bookingID,
			SeriesID:      &seriesID,
			Date:          date,
			ScheduledTime: series.ScheduledTime,
			Status:        deriveOccurrenceStatus(parent.Status, completed, date),
			CustomerName:  parent.CustomerName,
			Address:       parent.Address,
			ServiceType:   parent.ServiceType,
			ProviderID:    parent.ProviderID,
			PriceCents:    parent.PriceCents,
		})
	}
	return occurrences, nil
}

// RecordOccurrenceCompletion marks one occurrence date of a booking as
// completed. The addition is idempotent and never changes the row's own
// status; completing one visit must not mark the whole series done.
func (s *BookingService) RecordOccurrenceCompletion(ctx context.Context, businessID, bookingID string, date time.Time) (Booking, error) {
	if s == nil || s.bookings == nil {
		return Booking{}, fmt.Errorf("booking repository not configured")
	}

	row, err := s.scopedBooking(ctx, businessID, bookingID)
	if err != nil {
		return Booking{}, err
	}

	if err := s.bookings.AddCompletedDate(ctx, row.ID, recurrence.DateOf(date)); err != nil {
		return Booking{}, mapRepoError(err)
	}

	updated, err := s.bookings.GetBooking(ctx, row.ID)
	if err != nil {
		return Booking{}, mapRepoError(err)
	}

	serviceLogger(ctx, s.logger, "booking", "record_completion", "booking_id", bookingID).
		InfoContext(ctx, "occurrence completion recorded", "date", recurrence.DateOf(date).Format("2006-01-02"))
	return toBooking(updated), nil
}

// CancelBooking sets the row status to cancelled. For a recurring
// parent row this uniformly cancels every displayed occurrence.
func (s *BookingService) CancelBooking(ctx context.Context, businessID, bookingID string) (Booking, error) {
	if s == nil || s.bookings == nil {
		return Booking{}, fmt.Errorf("booking repository not configured")
	}

	row, err := s.scopedBooking(ctx, businessID, bookingID)
	if err != nil {
		return Booking{}, err
	}

	if err := s.bookings.UpdateBookingStatus(ctx, row.ID, StatusCancelled, s.now()); err != nil {
		return Booking{}, mapRepoError(err)
	}

	updated, err := s.bookings.GetBooking(ctx, row.ID)
	if err != nil {
		return Booking{}, mapRepoError(err)
	}
	return toBooking(updated), nil
}

// GetBooking returns one booking visible to the calling business.
func (s *BookingService) GetBooking(ctx context.Context, businessID, bookingID string) (Booking, error) {
	if s == nil || s.bookings == nil {
		return Booking{}, fmt.Errorf("booking repository not configured")
	}
	row, err := s.scopedBooking(ctx, businessID, bookingID)
	if err != nil {
		return Booking{}, err
	}
	return toBooking(row), nil
}

// GetSeries returns a series rule and its expanded occurrences.
func (s *BookingService) GetSeries(ctx context.Context, businessID, seriesID string, upTo *time.Time) (RecurringSeries, []Occurrence, error) {
	if s == nil || s.series == nil {
		return RecurringSeries{}, nil, fmt.Errorf("series repository not configured")
	}

	record, err := s.series.GetSeries(ctx, seriesID)
	if err != nil {
		return RecurringSeries{}, nil, mapRepoError(err)
	}
	if record.BusinessID != businessID {
		return RecurringSeries{}, nil, ErrNotFound
	}
	series := toSeries(record)

	parent, err := s.seriesParent(ctx, businessID, seriesID)
	if err != nil {
		return RecurringSeries{}, nil, err
	}

	occurrences, err := s.ExpandForDisplay(series, parent, upTo)
	if err != nil {
		return RecurringSeries{}, nil, err
	}
	return series, occurrences, nil
}

// SeriesSnapshot returns a series rule together with its parent row,
// the earliest persisted occurrence. Calendar feed rendering needs the
// parent's customer fields alongside the rule.
func (s *BookingService) SeriesSnapshot(ctx context.Context, businessID, seriesID string) (RecurringSeries, Booking, error) {
	if s == nil || s.series == nil {
		return RecurringSeries{}, Booking{}, fmt.Errorf("series repository not configured")
	}

	record, err := s.series.GetSeries(ctx, seriesID)
	if err != nil {
		return RecurringSeries{}, Booking{}, mapRepoError(err)
	}
	if record.BusinessID != businessID {
		return RecurringSeries{}, Booking{}, ErrNotFound
	}

	parent, err := s.seriesParent(ctx, businessID, seriesID)
	if err != nil {
		return RecurringSeries{}, Booking{}, err
	}
	return toSeries(record), parent, nil
}

// ListBookings enumerates the occurrences visible in the requested
// window: persisted rows plus virtual expansions of every series whose
// rule reaches into the window.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) ([]Occurrence, error) {
	if s == nil || s.bookings == nil {
		return nil, fmt.Errorf("booking repository not configured")
	}

	from, to := s.resolveWindow(params)

	rows, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{
		BusinessID: params.BusinessID,
		ProviderID: params.ProviderID,
		DateFrom:   from,
		DateTo:     to,
	})
	if err != nil {
		return nil, mapRepoError(err)
	}

	occurrences := make([]Occurrence, 0, len(rows))
	persisted := make(map[string]map[time.Time]struct{})
	for _, row := range rows {
		occurrences = append(occurrences, occurrenceFromRow(row))
		if row.SeriesID != nil {
			if persisted[*row.SeriesID] == nil {
				persisted[*row.SeriesID] = make(map[time.Time]struct{})
			}
			persisted[*row.SeriesID][row.Date] = struct{}{}
		}
	}

	if s.series != nil {
		virtual, err := s.virtualOccurrences(ctx, params, from, to, persisted)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, virtual...)
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		if occurrences[i].Date.Equal(occurrences[j].Date) {
			return occurrences[i].CustomerName < occurrences[j].CustomerName
		}
		return occurrences[i].Date.Before(occurrences[j].Date)
	})
	return occurrences, nil
}

// virtualOccurrences expands every series of the business through the
// window and keeps the dates no persisted row already covers.
func (s *BookingService) virtualOccurrences(ctx context.Context, params ListBookingsParams, from, to *time.Time, persisted map[string]map[time.Time]struct{}) ([]Occurrence, error) {
	seriesList, err := s.series.ListSeriesForBusiness(ctx, params.BusinessID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, mapRepoError(err)
	}

	result := make([]Occurrence, 0)
	for _, record := range seriesList {
		parent, err := s.seriesParent(ctx, params.BusinessID, record.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if params.ProviderID != nil {
			if parent.ProviderID == nil || *parent.ProviderID != *params.ProviderID {
				continue
			}
		}

		expanded, err := s.ExpandForDisplay(toSeries(record), parent, to)
		if err != nil {
			// A series whose stored rule no longer resolves must not
			// break the listing for every other booking.
			serviceLogger(ctx, s.logger, "booking", "list").
				WarnContext(ctx, "skipping unexpandable series", "series_id", record.ID, "error", err)
			continue
		}

		for _, occ := range expanded {
			if from != nil && occ.Date.Before(*from) {
				continue
			}
			if to != nil && occ.Date.After(*to) {
				continue
			}
			if _, ok := persisted[record.ID][occ.Date]; ok {
				continue
			}
			result = append(result, occ)
		}
	}
	return result, nil
}

// seriesParent returns the earliest persisted row of a series with the
// completion sets of every sibling row folded in. Completions may be
// recorded against any persisted row's id, so display expansion has to
// see the union or dates completed via a sibling would regress to
// confirmed.
func (s *BookingService) seriesParent(ctx context.Context, businessID, seriesID string) (Booking, error) {
	rows, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{
		BusinessID: businessID,
		SeriesID:   &seriesID,
	})
	if err != nil {
		return Booking{}, mapRepoError(err)
	}
	if len(rows) == 0 {
		return Booking{}, ErrNotFound
	}

	parent := toBooking(rows[0])
	seen := make(map[time.Time]struct{}, len(parent.CompletedDates))
	for _, date := range parent.CompletedDates {
		seen[date] = struct{}{}
	}
	for _, row := range rows[1:] {
		for _, date := range row.CompletedDates {
			if _, ok := seen[date]; ok {
				continue
			}
			seen[date] = struct{}{}
			parent.CompletedDates = append(parent.CompletedDates, date)
		}
	}
	sort.Slice(parent.CompletedDates, func(i, j int) bool {
		return parent.CompletedDates[i].Before(parent.CompletedDates[j])
	})
	return parent, nil
}

func (s *BookingService) scopedBooking(ctx context.Context, businessID, bookingID string) (persistence.Booking, error) {
	row, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return persistence.Booking{}, mapRepoError(err)
	}
	// Out-of-scope rows look absent so foreign ids leak nothing.
	if row.BusinessID != businessID {
		return persistence.Booking{}, ErrNotFound
	}
	return row, nil
}

// resolveRepeats determines the repeat unit for a series request:
// explicit override first, then the business's configured catalog, then
// the built-in defaults.
func (s *BookingService) resolveRepeats(ctx context.Context, businessID string, opts SeriesOptions) (string, error) {
	if strings.TrimSpace(opts.FrequencyRepeats) != "" {
		return opts.FrequencyRepeats, nil
	}

	if s.frequencies != nil {
		repeats, err := s.frequencies.GetFrequencyRepeats(ctx, businessID, opts.FrequencyName)
		if err == nil {
			return repeats, nil
		}
		if !errors.Is(err, persistence.ErrNotFound) {
			return "", mapRepoError(err)
		}
	}

	if repeats, ok := recurrence.DefaultRepeats(opts.FrequencyName); ok {
		return repeats, nil
	}
	return "", fmt.Errorf("%w: no repeat unit for frequency %q", recurrence.ErrUnknownFrequency, opts.FrequencyName)
}

func (s *BookingService) resolveWindow(params ListBookingsParams) (*time.Time, *time.Time) {
	from := normalizeDatePtr(params.DateFrom)
	to := normalizeDatePtr(params.DateTo)

	if params.Period != ListPeriodNone {
		start, end := computePeriodRange(params.Period, params.PeriodReference)
		if from == nil {
			from = &start
		}
		if to == nil {
			to = &end
		}
	}
	return from, to
}

func (s *BookingService) notifyAdmin(ctx context.Context, businessID, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAdmin(ctx, businessID, message); err != nil {
		serviceLogger(ctx, s.logger, "booking", "notify").
			WarnContext(ctx, "admin notification failed", "business_id", businessID, "error", err)
	}
}

// computePeriodRange returns the inclusive date bounds of a period
// preset around the reference date.
func computePeriodRange(period ListPeriod, reference time.Time) (time.Time, time.Time) {
	day := recurrence.DateOf(reference)
	switch period {
	case ListPeriodDay:
		return day, day
	case ListPeriodWeek:
		// Monday-start week; in Go, Monday == 1 and Sunday == 0.
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 6)
	case ListPeriodMonth:
		start := recurrence.NewDate(day.Year(), day.Month(), 1)
		return start, start.AddDate(0, 1, -1)
	default:
		return time.Time{}, time.Time{}
	}
}

func deriveOccurrenceStatus(parentStatus string, completed map[time.Time]struct{}, date time.Time) string {
	if parentStatus == StatusCancelled {
		return StatusCancelled
	}
	if _, ok := completed[date]; ok {
		return StatusCompleted
	}
	return StatusConfirmed
}

func validateBookingCore(businessID string, input BookingInput, vErr *ValidationError) {
	if strings.TrimSpace(businessID) == "" {
		vErr.add("business_id", "business is required")
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		vErr.add("customer_name", "customer name is required")
	}
	if input.PriceCents < 0 {
		vErr.add("price", "price must not be negative")
	}
	if input.ScheduledTime != "" {
		if _, err := time.Parse("15:04", input.ScheduledTime); err != nil {
			vErr.add("scheduled_time", "scheduled time must be HH:MM")
		}
	}
}

func clampOccurrencesAhead(requested int) int {
	if requested < 1 {
		return 1
	}
	if requested > MaxOccurrencesAhead {
		return MaxOccurrencesAhead
	}
	return requested
}

func rowFromInput(businessID string, input BookingInput, id string, seriesID *string, date time.Time, now time.Time) persistence.Booking {
	return persistence.Booking{
		ID:            id,
		BusinessID:    businessID,
		SeriesID:      seriesID,
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerEmail: input.CustomerEmail,
		CustomerPhone: input.CustomerPhone,
		Address:       input.Address,
		ServiceType:   input.ServiceType,
		ProviderID:    input.ProviderID,
		PriceCents:    input.PriceCents,
		Date:          date,
		ScheduledTime: input.ScheduledTime,
		Status:        StatusPending,
		Notes:         input.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func occurrenceFromRow(row persistence.Booking) Occurrence {
	id := row.ID
	status := row.Status
	if status != StatusCancelled {
		if _, ok := dateSet(row.CompletedDates)[row.Date]; ok {
			status = StatusCompleted
		}
	}
	return Occurrence{
		BookingID:     &id,
		SeriesID:      row.SeriesID,
		Date:          row.Date,
		ScheduledTime: row.ScheduledTime,
		Status:        status,
		CustomerName:  row.CustomerName,
		Address:       row.Address,
		ServiceType:   row.ServiceType,
		ProviderID:    row.ProviderID,
		PriceCents:    row.PriceCents,
	}
}

func dateSet(dates []time.Time) map[time.Time]struct{} {
	set := make(map[time.Time]struct{}, len(dates))
	for _, date := range dates {
		set[recurrence.DateOf(date)] = struct{}{}
	}
	return set
}

func normalizeDatePtr(date *time.Time) *time.Time {
	if date == nil {
		return nil
	}
	normalized := recurrence.DateOf(*date)
	return &normalized
}

func toBooking(row persistence.Booking) Booking {
	return Booking{
		ID:             row.ID,
		BusinessID:     row.BusinessID,
		SeriesID:       row.SeriesID,
		CustomerName:   row.CustomerName,
		CustomerEmail:  row.CustomerEmail,
		CustomerPhone:  row.CustomerPhone,
		Address:        row.Address,
		ServiceType:    row.ServiceType,
		ProviderID:     row.ProviderID,
		PriceCents:     row.PriceCents,
		Date:           row.Date,
		ScheduledTime:  row.ScheduledTime,
		Status:         row.Status,
		Notes:          row.Notes,
		CompletedDates: row.CompletedDates,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func toSeries(record persistence.RecurringSeries) RecurringSeries {
	return RecurringSeries{
		ID:               record.ID,
		BusinessID:       record.BusinessID,
		StartDate:        record.StartDate,
		EndDate:          record.EndDate,
		FrequencyName:    record.FrequencyName,
		FrequencyRepeats: record.FrequencyRepeats,
		OccurrencesAhead: record.OccurrencesAhead,
		ScheduledTime:    record.ScheduledTime,
		SameProvider:     record.SameProvider,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("business_id", "related records are missing")
		return vErr
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("input", "stored constraints reject the request")
		return vErr
	}
	return err
}
