package application

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/example/cleanbook/internal/recurrence"
	"github.com/example/cleanbook/internal/testfixtures"
)

type recordingNotifier struct {
	messages []string
	err      error
}

func (n *recordingNotifier) NotifyAdmin(ctx context.Context, businessID, message string) error {
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, message)
	return nil
}

func newTestService(store *testfixtures.MemoryStore, notifier Notifier) *BookingService {
	ids := testfixtures.NewIDGenerator("id")
	clock := testfixtures.NewClock(time.Time{})
	return NewBookingService(store, store, store, notifier, ids.NextFunc(), clock.NowFunc())
}

func templateInput() BookingInput {
	return BookingInput{
		CustomerName:  "Dana Miles",
		CustomerEmail: "dana@example.com",
		Address:       "12 Elm St",
		ServiceType:   "Standard Clean",
		PriceCents:    15000,
		ScheduledTime: "09:00",
	}
}

func TestCreateBookingPersistsPendingRow(t *testing.T) {
	t.Parallel()
	store := testfixtures.NewMemoryStore()
	svc := newTestService(store, nil)

	input := templateInput()
	input.Date = time.Date(2025, time.March, 10, 15, 30, 0, 0, time.UTC)

	booking, err := svc.CreateBooking(context.Background(), CreateBookingParams{
		BusinessID: "biz-001",
		Input:      input,
	})
	if err != nil {
		t.Fatalf("CreateBooking returned error: %v", err)
	}
	if booking.Status != StatusPending {
		t.Errorf("status = %q, want %q", booking.Status, StatusPending)
	}
	want := recurrence.NewDate(2025, time.March, 10)
	if !booking.Date.Equal(want) {
		t.Errorf("date = %v, want midnight UTC %v", booking.Date, want)
	}
	if booking.SeriesID != nil {
		t.Errorf("one-off booking carries series id %q", *booking.SeriesID)
	}
	if got := store.BookingCount(); got != 1 {
		t.Errorf("stored bookings = %d, want 1", got)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		business string
		mutate   func(*BookingInput)
		field    string
	}{
		{"missing business", "", func(in *BookingInput) {}, "business_id"},
		{"missing customer name", "biz-001", func(in *BookingInput) { in.CustomerName = "  " }, "customer_name"},
		{"missing date", "biz-001", func(in *BookingInput) { in.Date = time.Time{} }, "date"},
		{"negative price", "biz-001", func(in *BookingInput) { in.PriceCents = -1 }, "price"},
		{"malformed time", "biz-001", func(in *BookingInput) { in.ScheduledTime = "9am" }, "scheduled_time"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := testfixtures.NewMemoryStore()
			svc := newTestService(store, nil)

			input := templateInput()
			input.Date = testfixtures.ReferenceDate()
			tt.mutate(&input)

			_, err := svc.CreateBooking(context.Background(), CreateBookingParams{
				BusinessID: tt.business,
				Input:      input,
			})
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if _, ok := vErr.FieldErrors[tt.field]; !ok {
				t.Errorf("field errors %v missing %q", vErr.FieldErrors, tt.field)
			}
			if got := store.BookingCount(); got != 0 {
				t.Errorf("stored bookings = %d, want 0 after rejected input", got)
			}
		})
	}
}

func TestCreateRecurringSeriesMaterializesRows(t *testing.T) {
	t.Parallel()
	store := testfixtures.NewMemoryStore()
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier)

	result, err := svc.CreateRecurringSeries(context.Background(), CreateSeriesParams{
		BusinessID: "biz-001",
		Template:   templateInput(),
		Options: SeriesOptions{
			StartDate:        recurrence.NewDate(2025, time.January, 6),
			FrequencyName:    "Weekly",
			OccurrencesAhead: 4,
		},
	})
	if err != nil {
		t.Fatalf("CreateRecurringSeries returned error: %v", err)
	}
	if len(result.BookingIDs) != 4 {
		t.Fatalf("created %d rows, want 4", len(result.BookingIDs))
	}

	rows, err := svc.ListBookings(context.Background(), ListBookingsParams{BusinessID: "biz-001"})
	if err != nil {
		t.Fatalf("ListBookings returned error: %v", err)
	}
	wantDates := []time.Time{
		recurrence.NewDate(2025, time.January, 6),
		recurrence.NewDate(2025, time.January, 13),
		recurrence.NewDate(2025, time.January, 20),
		recurrence.NewDate(2025, time.January, 27),
	}
	if len(rows) != len(wantDates) {
		t.Fatalf("listed %d occurrences, want %d", len(rows), len(wantDates))
	}
	for i, occ := range rows {
		if !occ.Date.Equal(wantDates[i]) {
			t.Errorf("occurrence %d date = %v, want %v", i, occ.Date, wantDates[i])
		}
		if occ.SeriesID == nil || *occ.SeriesID != result.SeriesID {
			t.Errorf("occurrence %d not tied to series %s", i, result.SeriesID)
		}
		if occ.BookingID == nil {
			t.Errorf("occurrence %d should be a persisted row", i)
		}
	}
	if len(notifier.messages) != 1 {
		t.Errorf("admin notifications = %d, want 1", len(notifier.messages))
	}
}

func TestCreateRecurringSeriesClampsOccurrencesAhead(t *testing.T) {
	t.Parallel()
	store := testfixtures.NewMemoryStore()
	svc := newTestService(store, nil)

	result, err := svc.CreateRecurringSeries(context.Background(), CreateSeriesParams{
		BusinessID: "biz-001",
		Template:   templateInput(),
		Options: SeriesOptions{
			StartDate:        testfixtures.ReferenceDate(),
			FrequencyName:    "Daily",
			OccurrencesAhead: 30,
		},
	})
	if err != nil {
		t.Fatalf("CreateRecurringSeries returned error: %v", err)
	}
	if len(result.BookingIDs) != MaxOccurrencesAhead {
		t.Errorf("created %d rows, want clamp to %d", len(result.BookingIDs), MaxOccurrencesAhead)
	}

	stored, err := store.GetSeries(context.Background(), result.SeriesID)
	if err != nil {
		t.Fatalf("GetSeries returned error: %v", err)
	}
	if stored.OccurrencesAhead != MaxOccurrencesAhead {
		t.Errorf("stored occurrences ahead = %d, want %d", stored.OccurrencesAhead, MaxOccurrencesAhead)
	}
}

func TestCreateRecurringSeriesUnknownFrequencyWritesNothing(t *testing.T) {
	t.Parallel()
	store := testfixtures.NewMemoryStore()
	svc := newTestService(store, nil)

	_, err := svc.CreateRecurringSeries(context.Background(), CreateSeriesParams{
		BusinessID: "biz-001",
		Template:   templateInput(),
		Options: SeriesOptions{
			StartDate:     testfixtures.ReferenceDate(),
			FrequencyName: "Fortnightly-ish",
		},
	})
	if !errors.Is(err, recurrence.ErrUnknownFrequency) {
		t.Fatalf("error = %v, want ErrUnknownFrequency", err)
	}
	if got := store.BookingCount(); got != 0 {
		t.Errorf("stored bookings = %d, want 0 after rejected frequency", got)
	}
	series, _ := store.ListSeriesForBusiness(context.Background(), "biz-001")
	if len(series) != 0 {
		t.Errorf("stored series = %d, want 0 after rejected frequency", len(series))
	}
}

func TestCreateRecurringSeriesUsesBusinessCatalog(t *testing.T) {
	t.Parallel()
	store := testfixtures.NewMemoryStore()
	svc := newTestService(store, nil)

	err := store.UpsertFrequency(context.Background(), testfixtures.NewFrequencyFixture("biz-001", "Deep Refresh", "3 weeks"))
	if err != nil {
		t.Fatalf("UpsertFrequency returned error: %v", err)
	}

	result, err := svc.CreateRecurringSeries(context.Background(), CreateSeriesParams{
		BusinessID: "biz-001",
		Template:   templateInput(),
		Options: SeriesOptions{
			StartDate:        recurrence.NewDate(2025, time.February, 1),
			FrequencyName:    "Deep Refresh",
			OccurrencesAhead: 2,
		},
	})
	if err != nil {
		t.Fatalf("CreateRecurringSeries returned error: %v", err)
	}
	stored, err := store.GetSeries(context.Background(), result.SeriesID)
	if err != nil {
		t.Fatalf("GetSeries returned error: %v", err)
	}
	if stored.FrequencyRepeats != "3 weeks" {
		t.Errorf("resolved repeats = %q, want catalog value %q", stored.FrequencyRepeats, "3 weeks")
	}
}

func TestCreateRecurringSeriesPartialWrite(t *testing.T) {
	t.Parallel()
	store := testfixtures.NewMemoryStore()
	store.FailBookingsAfter = 2
	svc := newTestService(store, nil)

	result, err := svc.CreateRecurringSeries(context.Background(), CreateSeriesParams{
		BusinessID: "biz-001",
		Template:   templateInput(),
		Options: SeriesOptions{
			StartDate:        testfixtures.ReferenceDate(),
			FrequencyName:    "Weekly",
			OccurrencesAhead: 5,
		},
	})
	var pErr *PartialWriteError
	if !errors.As(err, &pErr) {
		t.Fatalf("error = %v, want *PartialWriteError", err)
	}
	if len(pErr.CreatedIDs) != 2 {
		t.Errorf("partial write reports %d created ids, want 2", len(pErr.CreatedIDs))
	}
	if pErr.SeriesID == "" || pErr.SeriesID != result.SeriesID {
		t.Errorf("partial write series id = %q, result series id = %q", pErr.SeriesID, result.SeriesID)
	}
	if !reflect.DeepEqual(result.BookingIDs, pErr.CreatedIDs) {
		t.Errorf("result ids %v differ from error ids %v", result.BookingIDs, pErr.CreatedIDs)
	}
}

func TestExpandForDisplayIsPure(t *testing.T) {
	t.Parallel()
	svc := newTestService(testfixtures.NewMemoryStore(), nil)

	series := toSeries(testfixtures.NewSeriesFixture())
	parentRow := testfixtures.NewBookingFixture(testfixtures.WithSeries(series.ID, series.StartDate))
	parentRow.CompletedDates = []time.Time{series.StartDate}
	parent := toBooking(parentRow)

	first, err := svc.ExpandForDisplay(series, parent, nil)
	if err != nil {
		t.Fatalf("ExpandForDisplay returned error: %v", err)
	}
	second, err := svc.ExpandForDisplay(series, parent, nil)
	if err != nil {
		t.Fatalf("ExpandForDisplay second call returned error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated expansion produced different output")
	}
	if len(parent.CompletedDates) != 1 {
		t.Errorf("expansion mutated parent completion set: %v", parent.CompletedDates)
	}

	if first[0].Status != StatusCompleted {
		t.Errorf("completed occurrence status = %q, want %q", first[0].Status, StatusCompleted)
	}
	if first[0].BookingID == nil || *first[0].BookingID != parent.ID {
		t.Error("parent date occurrence should carry the persisted booking id")
	}
	for i, occ := range first[1:] {
		if occ.Status != StatusConfirmed {
			t.Errorf("occurrence %d status = %q, want %q", i+1, occ.Status, StatusConfirmed)
		}
		if occ.BookingID != nil {
			t.Errorf("occurrence %d should be virtual, carries id %q", i+1, *occ.BookingID)
		}
	}
}

func TestExpandForDisplayCancelledOverridesCompletion(t *testing.T) {
	t.Parallel()
	svc := newTestService(testfixtures.NewMemoryStore(), nil)

	series := toSeries(testfixtures.NewSeriesFixture())
	parentRow := testfixtures.NewBookingFixture(testfixtures.WithSeries(series.ID, series.StartDate))
	parentRow.Status = StatusCancelled
	parentRow.CompletedDates = []time.Time{series.StartDate}

	occurrences, err := svc.ExpandForDisplay(series, toBooking(parentRow), nil)
	if err != nil {
		t.Fatalf("ExpandForDisplay returned error: %v", err)
	}
	for i, occ := range occurrences {
		if occ.Status != StatusCancelled {
			t.Errorf("occurrence %d status = %q, want %q", i, occ.Status, StatusCancelled)
		}
	}
}

func TestRecordOccurrenceCompletionIsIdempotent(t *testing.T) {
	t.Parallel()
	store := testfixtures.NewMemoryStore()
	svc := newTestService(store, nil)

	row := testfixtures.NewBookingFixture()
	if err := store.CreateBooking(context.Background(), row); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	date := row.Date.AddDate(0, 0, 7)
	for i := 0; i < 2; i++ {
		if _, err := svc.RecordOccurrenceCompletion(context.Background(), row.BusinessID, row.ID, date); err != nil {
			t.Fatalf("RecordOccurrenceCompletion call %d returned error: %v", i+1, err)
		}
	}

	updated, err := svc.GetBooking(context.Background(), row.BusinessID, row.ID)
	if err != nil {
		t.Fatalf("GetBooking returned error: %v", err)
	}
	if len(updated.CompletedDates) != 1 {
		t.Errorf("completed dates = %v, want exactly one entry", updated.CompletedDates)
	}
	if updated.Status != row.Status {
		t.Errorf("status changed to %q; completing one visit must not touch the row status", updated.Status)
	}
}

func TestRecordOccurrenceCompletionScopedToBusiness(t *testing.T) {
	t.Parallel()
	store := testfixtures.NewMemoryStore()
	svc := newTestService(store, nil)

	row := testfixtures.NewBookingFixture(testfixtures.WithBusiness("biz-042"))
	if err := store.CreateBooking(context.Background(), row); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	_, err := svc.RecordOccurrenceCompletion(context.Background(), "biz-001", row.ID, row.Date)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound for foreign business", err)
	}

	fetched, err := store.GetBooking(context.Background(), row.ID)
	if err != nil {
		t.Fatalf("GetBooking returned error: %v", err)
	}
	if len(fetched.CompletedDates) != 0 {
		t.Errorf("completed dates = %v, want none after rejected write", fetched.CompletedDates)
	}
}

func TestCancelBooking(t *testing.T) {
	t.Parallel()
	store := testfixtures.NewMemoryStore()
	svc := newTestService(store, nil)

	row := testfixtures.NewBookingFixture()
	if err := store.CreateBooking(context.Background(), row); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	cancelled, err := svc.CancelBooking(context.Background(), row.BusinessID, row.ID)
	if err != nil {
		t.Fatalf("CancelBooking returned error: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %q, want %q", cancelled.Status, StatusCancelled)
	}

	if _, err := svc.CancelBooking(context.Background(), "biz-other", row.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign business cancel error = %v, want ErrNotFound", err)
	}
}

func TestListBookingsMergesVirtualOccurrences(t *testing.T) {
	t.Parallel()
	store := testfixtures.NewMemoryStore()
	svc := newTestService(store, nil)

	result, err := svc.CreateRecurringSeries(context.Background(), CreateSeriesParams{
		BusinessID: "biz-001",
		Template:   templateInput(),
		Options: SeriesOptions{
			StartDate:        recurrence.NewDate(2025, time.January, 6),
			FrequencyName:    "Weekly",
			OccurrencesAhead: 2,
		},
	})
	if err != nil {
		t.Fatalf("CreateRecurringSeries returned error: %v", err)
	}

	from := recurrence.NewDate(2025, time.January, 6)
	to := recurrence.NewDate(2025, time.February, 2)
	occurrences, err := svc.ListBookings(context.Background(), ListBookingsParams{
		BusinessID: "biz-001",
		DateFrom:   &from,
		DateTo:     &to,
	})
	if err != nil {
		t.Fatalf("ListBookings returned error: %v", err)
	}
	if len(occurrences) != 4 {
		t.Fatalf("listed %d occurrences, want 2 persisted + 2 virtual", len(occurrences))
	}

	seen := make(map[time.Time]bool)
	for i, occ := range occurrences {
		if seen[occ.Date] {
			t.Errorf("occurrence %d duplicates date %v", i, occ.Date)
		}
		seen[occ.Date] = true
		if occ.SeriesID == nil || *occ.SeriesID != result.SeriesID {
			t.Errorf("occurrence %d missing series id", i)
		}
	}
	if occurrences[0].BookingID == nil || occurrences[1].BookingID == nil {
		t.Error("persisted window occurrences should carry booking ids")
	}
	if occurrences[2].BookingID != nil || occurrences[3].BookingID != nil {
		t.Error("far-term occurrences should be virtual")
	}
}

func TestListBookingsPeriodPresets(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		period    ListPeriod
		reference time.Time
		wantFrom  time.Time
		wantTo    time.Time
	}{
		{
			name:      "day",
			period:    ListPeriodDay,
			reference: time.Date(2025, time.January, 8, 14, 0, 0, 0, time.UTC),
			wantFrom:  recurrence.NewDate(2025, time.January, 8),
			wantTo:    recurrence.NewDate(2025, time.January, 8),
		},
		{
			name:      "week starts monday",
			period:    ListPeriodWeek,
			reference: time.Date(2025, time.January, 8, 14, 0, 0, 0, time.UTC),
			wantFrom:  recurrence.NewDate(2025, time.January, 6),
			wantTo:    recurrence.NewDate(2025, time.January, 12),
		},
		{
			name:      "week containing sunday",
			period:    ListPeriodWeek,
			reference: time.Date(2025, time.January, 12, 8, 0, 0, 0, time.UTC),
			wantFrom:  recurrence.NewDate(2025, time.January, 6),
			wantTo:    recurrence.NewDate(2025, time.January, 12),
		},
		{
			name:      "month",
			period:    ListPeriodMonth,
			reference: time.Date(2025, time.February, 14, 0, 0, 0, 0, time.UTC),
			wantFrom:  recurrence.NewDate(2025, time.February, 1),
			wantTo:    recurrence.NewDate(2025, time.February, 28),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			from, to := computePeriodRange(tt.period, tt.reference)
			if !from.Equal(tt.wantFrom) {
				t.Errorf("from = %v, want %v", from, tt.wantFrom)
			}
			if !to.Equal(tt.wantTo) {
				t.Errorf("to = %v, want %v", to, tt.wantTo)
			}
		})
	}
}

func TestGetSeriesScopedToBusiness(t *testing.T) {
	t.Parallel()
	store := testfixtures.NewMemoryStore()
	svc := newTestService(store, nil)

	result, err := svc.CreateRecurringSeries(context.Background(), CreateSeriesParams{
		BusinessID: "biz-001",
		Template:   templateInput(),
		Options: SeriesOptions{
			StartDate:        testfixtures.ReferenceDate(),
			FrequencyName:    "Monthly",
			OccurrencesAhead: 3,
		},
	})
	if err != nil {
		t.Fatalf("CreateRecurringSeries returned error: %v", err)
	}

	series, occurrences, err := svc.GetSeries(context.Background(), "biz-001", result.SeriesID, nil)
	if err != nil {
		t.Fatalf("GetSeries returned error: %v", err)
	}
	if series.FrequencyRepeats != "1 month" {
		t.Errorf("repeats = %q, want %q", series.FrequencyRepeats, "1 month")
	}
	if len(occurrences) == 0 {
		t.Fatal("expanded series has no occurrences")
	}

	if _, _, err := svc.GetSeries(context.Background(), "biz-other", result.SeriesID, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign business lookup error = %v, want ErrNotFound", err)
	}
}

func TestGetSeriesSeesSiblingRowCompletions(t *testing.T) {
	t.Parallel()
	store := testfixtures.NewMemoryStore()
	svc := newTestService(store, nil)

	result, err := svc.CreateRecurringSeries(context.Background(), CreateSeriesParams{
		BusinessID: "biz-001",
		Template:   templateInput(),
		Options: SeriesOptions{
			StartDate:        recurrence.NewDate(2025, time.January, 6),
			FrequencyName:    "Weekly",
			OccurrencesAhead: 4,
		},
	})
	if err != nil {
		t.Fatalf("CreateRecurringSeries returned error: %v", err)
	}

	// Completion recorded against the second persisted row, not the
	// parent. The listing exposes every row's id, so series display must
	// fold sibling completion sets into the expansion.
	secondDate := recurrence.NewDate(2025, time.January, 13)
	if _, err := svc.RecordOccurrenceCompletion(context.Background(), "biz-001", result.BookingIDs[1], secondDate); err != nil {
		t.Fatalf("RecordOccurrenceCompletion returned error: %v", err)
	}

	_, occurrences, err := svc.GetSeries(context.Background(), "biz-001", result.SeriesID, nil)
	if err != nil {
		t.Fatalf("GetSeries returned error: %v", err)
	}
	var found bool
	for _, occ := range occurrences {
		if !occ.Date.Equal(secondDate) {
			continue
		}
		found = true
		if occ.Status != StatusCompleted {
			t.Errorf("occurrence status = %q, want %q", occ.Status, StatusCompleted)
		}
	}
	if !found {
		t.Fatalf("no occurrence on %v in expansion", secondDate)
	}
}
