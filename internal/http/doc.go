// Package http provides HTTP handlers and middleware for the booking API.
//
// All endpoints except /healthz require an API key of the form
// "<business-id>.<secret>" in the Authorization header (Bearer scheme)
// or the X-API-Key header. The authenticated business scopes every
// operation; ids belonging to other tenants produce 404 responses.
//
// The router exposes the following endpoints:
//   - POST /bookings: creates a one-off booking, or a recurring series
//     when the payload carries a "recurring" block. Series creation
//     responds with the persisted occurrence rows and the series id.
//   - GET /bookings: lists occurrences. Query parameters: period
//     (day/week/month) with an optional date reference, or explicit
//     from/to bounds, plus provider_id. Far-term occurrences of a
//     series appear without a booking_id.
//   - GET /bookings/{id}, DELETE /bookings/{id}: fetch or cancel one
//     booking row. Cancelling a series parent cancels the whole series.
//   - POST /bookings/{id}/completions: marks one occurrence date of a
//     booking complete. Body: {"date":"2006-01-02"}. Repeats are no-ops.
//   - GET /series/{id}: returns the series rule and its expanded
//     occurrences, optionally bounded by an until query parameter.
//   - GET /series/{id}/calendar.ics: renders the series as an
//     iCalendar feed for subscription.
//   - GET /healthz: liveness probe, no authentication.
//
// Request/response DTOs live alongside their respective handlers so
// tests and documentation share the same ground truth.
package http
