package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/cleanbook/internal/persistence"
	"github.com/example/cleanbook/internal/recurrence"
)

func openTestPool(t *testing.T) *ConnectionPool {
	t.Helper()

	pool, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	if err := Migrate(context.Background(), pool); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return pool
}

func seedBusiness(t *testing.T, pool *ConnectionPool, id string) {
	t.Helper()
	repo := NewBusinessRepository(pool)
	err := repo.CreateBusiness(context.Background(), persistence.Business{
		ID:         id,
		Name:       "Sparkle Cleaning Co",
		Industry:   "cleaning",
		APIKeyHash: "hash",
	})
	if err != nil {
		t.Fatalf("failed to seed business: %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	pool := openTestPool(t)
	if err := Migrate(context.Background(), pool); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestOpenEnablesForeignKeys(t *testing.T) {
	pool := openTestPool(t)

	var enabled int
	if err := pool.DB().QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("failed to read foreign_keys pragma: %v", err)
	}
	if enabled != 1 {
		t.Fatalf("foreign_keys = %d, want 1", enabled)
	}
}

func TestBookingRepository_RejectsUnknownBusiness(t *testing.T) {
	pool := openTestPool(t)
	repo := NewBookingRepository(pool)

	err := repo.CreateBooking(context.Background(), persistence.Booking{
		ID:            "bkg-orphan",
		BusinessID:    "biz-missing",
		CustomerName:  "Dana Whitfield",
		Date:          recurrence.NewDate(2025, time.April, 7),
		ScheduledTime: "09:00",
		Status:        "pending",
	})
	if !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("CreateBooking error = %v, want ErrForeignKeyViolation", err)
	}
}

func TestBookingRepository_CreateAndGet(t *testing.T) {
	pool := openTestPool(t)
	seedBusiness(t, pool, "biz-1")
	repo := NewBookingRepository(pool)
	ctx := context.Background()

	provider := "prov-1"
	booking := persistence.Booking{
		ID:            "bkg-1",
		BusinessID:    "biz-1",
		CustomerName:  "Dana Whitfield",
		CustomerEmail: "dana@example.com",
		Address:       "12 Elm St",
		ServiceType:   "Standard Clean",
		ProviderID:    &provider,
		PriceCents:    12500,
		Date:          recurrence.NewDate(2025, time.April, 7),
		ScheduledTime: "09:00",
		Status:        "confirmed",
	}
	if err := repo.CreateBooking(ctx, booking); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	stored, err := repo.GetBooking(ctx, "bkg-1")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if stored.CustomerName != booking.CustomerName || !stored.Date.Equal(booking.Date) {
		t.Fatalf("stored booking mismatch: %+v", stored)
	}
	if stored.ProviderID == nil || *stored.ProviderID != provider {
		t.Fatalf("provider id not preserved: %v", stored.ProviderID)
	}
	if len(stored.CompletedDates) != 0 {
		t.Fatalf("new booking has completed dates: %v", stored.CompletedDates)
	}

	if _, err := repo.GetBooking(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("GetBooking(missing) error = %v, want ErrNotFound", err)
	}
}

func TestBookingRepository_AddCompletedDateIsIdempotent(t *testing.T) {
	pool := openTestPool(t)
	seedBusiness(t, pool, "biz-1")
	repo := NewBookingRepository(pool)
	ctx := context.Background()

	if err := repo.CreateBooking(ctx, persistence.Booking{
		ID:           "bkg-1",
		BusinessID:   "biz-1",
		CustomerName: "Dana Whitfield",
		Date:         recurrence.NewDate(2025, time.April, 7),
		Status:       "confirmed",
	}); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	date := recurrence.NewDate(2025, time.April, 14)
	for i := 0; i < 2; i++ {
		if err := repo.AddCompletedDate(ctx, "bkg-1", date); err != nil {
			t.Fatalf("AddCompletedDate attempt %d failed: %v", i+1, err)
		}
	}

	stored, err := repo.GetBooking(ctx, "bkg-1")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if len(stored.CompletedDates) != 1 {
		t.Fatalf("len(CompletedDates) = %d, want 1", len(stored.CompletedDates))
	}
	if !stored.CompletedDates[0].Equal(date) {
		t.Fatalf("completed date = %s, want %s", stored.CompletedDates[0], date)
	}

	if err := repo.AddCompletedDate(ctx, "missing", date); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("AddCompletedDate(missing) error = %v, want ErrNotFound", err)
	}
}

func TestBookingRepository_ListBookingsFilters(t *testing.T) {
	pool := openTestPool(t)
	seedBusiness(t, pool, "biz-1")
	seedBusiness(t, pool, "biz-2")
	repo := NewBookingRepository(pool)
	ctx := context.Background()

	mk := func(id, businessID string, date time.Time, status string) {
		t.Helper()
		if err := repo.CreateBooking(ctx, persistence.Booking{
			ID: id, BusinessID: businessID, CustomerName: "c", Date: date, Status: status,
		}); err != nil {
			t.Fatalf("CreateBooking(%s) failed: %v", id, err)
		}
	}

	mk("b1", "biz-1", recurrence.NewDate(2025, time.April, 1), "confirmed")
	mk("b2", "biz-1", recurrence.NewDate(2025, time.April, 8), "cancelled")
	mk("b3", "biz-1", recurrence.NewDate(2025, time.May, 1), "confirmed")
	mk("b4", "biz-2", recurrence.NewDate(2025, time.April, 1), "confirmed")

	from := recurrence.NewDate(2025, time.April, 1)
	to := recurrence.NewDate(2025, time.April, 30)
	got, err := repo.ListBookings(ctx, persistence.BookingFilter{
		BusinessID: "biz-1",
		DateFrom:   &from,
		DateTo:     &to,
		Statuses:   []string{"confirmed"},
	})
	if err != nil {
		t.Fatalf("ListBookings failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b1" {
		t.Fatalf("ListBookings = %+v, want only b1", got)
	}
}

func TestSeriesRepository_RoundTrip(t *testing.T) {
	pool := openTestPool(t)
	seedBusiness(t, pool, "biz-1")
	repo := NewSeriesRepository(pool)
	ctx := context.Background()

	end := recurrence.NewDate(2025, time.December, 31)
	series := persistence.RecurringSeries{
		ID:               "ser-1",
		BusinessID:       "biz-1",
		StartDate:        recurrence.NewDate(2025, time.April, 7),
		EndDate:          &end,
		FrequencyName:    "Weekly",
		FrequencyRepeats: "7 days",
		OccurrencesAhead: 8,
		ScheduledTime:    "09:00",
		SameProvider:     true,
	}
	if err := repo.CreateSeries(ctx, series); err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}

	stored, err := repo.GetSeries(ctx, "ser-1")
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	if !stored.StartDate.Equal(series.StartDate) || stored.FrequencyRepeats != "7 days" {
		t.Fatalf("stored series mismatch: %+v", stored)
	}
	if stored.EndDate == nil || !stored.EndDate.Equal(end) {
		t.Fatalf("end date not preserved: %v", stored.EndDate)
	}
	if !stored.SameProvider {
		t.Fatal("same_provider flag lost")
	}

	listed, err := repo.ListSeriesForBusiness(ctx, "biz-1")
	if err != nil {
		t.Fatalf("ListSeriesForBusiness failed: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("len(listed) = %d, want 1", len(listed))
	}

	if err := repo.DeleteSeries(ctx, "ser-1"); err != nil {
		t.Fatalf("DeleteSeries failed: %v", err)
	}
	if err := repo.DeleteSeries(ctx, "ser-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("second DeleteSeries error = %v, want ErrNotFound", err)
	}
}

func TestFrequencyRepository_Lookup(t *testing.T) {
	pool := openTestPool(t)
	seedBusiness(t, pool, "biz-1")
	repo := NewFrequencyRepository(pool)
	ctx := context.Background()

	err := repo.UpsertFrequency(ctx, persistence.BusinessFrequency{
		ID: "freq-1", BusinessID: "biz-1", Name: "Every Other Week", Repeats: "14 days",
	})
	if err != nil {
		t.Fatalf("UpsertFrequency failed: %v", err)
	}

	repeats, err := repo.GetFrequencyRepeats(ctx, "biz-1", "every other week")
	if err != nil {
		t.Fatalf("GetFrequencyRepeats failed: %v", err)
	}
	if repeats != "14 days" {
		t.Fatalf("repeats = %q, want %q", repeats, "14 days")
	}

	if _, err := repo.GetFrequencyRepeats(ctx, "biz-1", "Monthly"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("missing frequency error = %v, want ErrNotFound", err)
	}

	// Upsert replaces the repeat unit for an existing name.
	err = repo.UpsertFrequency(ctx, persistence.BusinessFrequency{
		ID: "freq-2", BusinessID: "biz-1", Name: "Every Other Week", Repeats: "2 weeks",
	})
	if err != nil {
		t.Fatalf("second UpsertFrequency failed: %v", err)
	}
	repeats, err = repo.GetFrequencyRepeats(ctx, "biz-1", "Every Other Week")
	if err != nil {
		t.Fatalf("GetFrequencyRepeats after upsert failed: %v", err)
	}
	if repeats != "2 weeks" {
		t.Fatalf("repeats = %q, want %q", repeats, "2 weeks")
	}
}
