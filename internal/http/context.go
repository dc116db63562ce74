package http

import (
	"context"

	"github.com/example/cleanbook/internal/application"
)

type contextKey string

const (
	businessContextKey  contextKey = "business"
	bookingIDContextKey contextKey = "booking_id"
	seriesIDContextKey  contextKey = "series_id"
)

// ContextWithBusiness returns a derived context containing the authenticated tenant.
func ContextWithBusiness(ctx context.Context, business application.BusinessAccount) context.Context {
	return context.WithValue(ctx, businessContextKey, business)
}

// BusinessFromContext extracts the authenticated tenant from context if available.
func BusinessFromContext(ctx context.Context) (application.BusinessAccount, bool) {
	business, ok := ctx.Value(businessContextKey).(application.BusinessAccount)
	return business, ok
}

// ContextWithBookingID injects the booking identifier resolved from the request path.
func ContextWithBookingID(ctx context.Context, bookingID string) context.Context {
	return context.WithValue(ctx, bookingIDContextKey, bookingID)
}

// BookingIDFromContext extracts a booking identifier previously associated with the context.
func BookingIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(bookingIDContextKey).(string)
	return id, ok
}

// ContextWithSeriesID injects the series identifier resolved from the request path.
func ContextWithSeriesID(ctx context.Context, seriesID string) context.Context {
	return context.WithValue(ctx, seriesIDContextKey, seriesID)
}

// SeriesIDFromContext extracts a series identifier previously associated with the context.
func SeriesIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(seriesIDContextKey).(string)
	return id, ok
}
