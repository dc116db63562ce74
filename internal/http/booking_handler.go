package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/cleanbook/internal/application"
)

const dateLayout = "2006-01-02"

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	CreateRecurringSeries(ctx context.Context, params application.CreateSeriesParams) (application.SeriesResult, error)
	GetBooking(ctx context.Context, businessID, bookingID string) (application.Booking, error)
	CancelBooking(ctx context.Context, businessID, bookingID string) (application.Booking, error)
	RecordOccurrenceCompletion(ctx context.Context, businessID, bookingID string, date time.Time) (application.Booking, error)
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]application.Occurrence, error)
}

type BookingHandler struct {
	service   bookingService
	responder responder
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{service: service, responder: newResponder(logger)}
}

// Create persists a one-off booking, or materializes a recurring series
// when the payload carries a recurring block.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	business, _ := BusinessFromContext(r.Context())

	if req.Recurring == nil {
		booking, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
			BusinessID: business.ID,
			Input:      req.toInput(),
		})
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{Booking: toBookingDTO(booking)})
		return
	}

	options, err := req.Recurring.toOptions()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	result, err := h.service.CreateRecurringSeries(r.Context(), application.CreateSeriesParams{
		BusinessID: business.ID,
		Template:   req.toInput(),
		Options:    options,
	})
	if err != nil {
		var pErr *application.PartialWriteError
		if errors.As(err, &pErr) {
			// The series rule is stored, so missing rows surface as
			// virtual occurrences. Report a degraded success.
			h.responder.writeJSON(r.Context(), w, http.StatusCreated, seriesCreatedResponse{
				SeriesID:   pErr.SeriesID,
				BookingIDs: pErr.CreatedIDs,
				Warning:    "some occurrence rows could not be persisted; they remain visible as virtual occurrences",
			})
			return
		}
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, seriesCreatedResponse{
		SeriesID:   result.SeriesID,
		BookingIDs: result.BookingIDs,
	})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := BookingIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	business, _ := BusinessFromContext(r.Context())
	booking, err := h.service.GetBooking(r.Context(), business.ID, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

// Cancel marks a booking row cancelled. The row is kept so the series
// history stays intact.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := BookingIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	business, _ := BusinessFromContext(r.Context())
	booking, err := h.service.CancelBooking(r.Context(), business.ID, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

// RecordCompletion marks one occurrence date of a booking complete.
func (h *BookingHandler) RecordCompletion(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := BookingIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}

	business, _ := BusinessFromContext(r.Context())
	booking, err := h.service.RecordOccurrenceCompletion(r.Context(), business.ID, bookingID, date)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.responder.logger, "booking", "record_completion", "booking_id", bookingID).
		InfoContext(r.Context(), "occurrence marked complete", "date", req.Date)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	business, _ := BusinessFromContext(r.Context())
	params, err := buildListParams(r.URL.Query(), business.ID)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	occurrences, err := h.service.ListBookings(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Occurrences: toOccurrenceDTOs(occurrences)})
}

func buildListParams(values url.Values, businessID string) (application.ListBookingsParams, error) {
	params := application.ListBookingsParams{BusinessID: businessID}

	if provider := strings.TrimSpace(values.Get("provider_id")); provider != "" {
		params.ProviderID = &provider
	}

	if period := strings.TrimSpace(values.Get("period")); period != "" {
		switch application.ListPeriod(period) {
		case application.ListPeriodDay, application.ListPeriodWeek, application.ListPeriodMonth:
			params.Period = application.ListPeriod(period)
		default:
			return application.ListBookingsParams{}, errors.New("period must be day, week or month")
		}

		params.PeriodReference = time.Now().UTC()
		if ref := strings.TrimSpace(values.Get("date")); ref != "" {
			ts, err := time.Parse(dateLayout, ref)
			if err != nil {
				return application.ListBookingsParams{}, errInvalidDate
			}
			params.PeriodReference = ts
		}
		return params, nil
	}

	if from := strings.TrimSpace(values.Get("from")); from != "" {
		ts, err := time.Parse(dateLayout, from)
		if err != nil {
			return application.ListBookingsParams{}, errInvalidDate
		}
		params.DateFrom = &ts
	}
	if to := strings.TrimSpace(values.Get("to")); to != "" {
		ts, err := time.Parse(dateLayout, to)
		if err != nil {
			return application.ListBookingsParams{}, errInvalidDate
		}
		params.DateTo = &ts
	}
	return params, nil
}

type bookingRequest struct {
	CustomerName  string            `json:"customer_name"`
	CustomerEmail string            `json:"customer_email"`
	CustomerPhone string            `json:"customer_phone"`
	Address       string            `json:"address"`
	ServiceType   string            `json:"service_type"`
	ProviderID    *string           `json:"provider_id"`
	PriceCents    int64             `json:"price_cents"`
	Date          string            `json:"date"`
	ScheduledTime string            `json:"scheduled_time"`
	Notes         *string           `json:"notes"`
	Recurring     *recurringRequest `json:"recurring"`
}

func (r bookingRequest) toInput() application.BookingInput {
	return application.BookingInput{
		CustomerName:  strings.TrimSpace(r.CustomerName),
		CustomerEmail: strings.TrimSpace(r.CustomerEmail),
		CustomerPhone: strings.TrimSpace(r.CustomerPhone),
		Address:       strings.TrimSpace(r.Address),
		ServiceType:   strings.TrimSpace(r.ServiceType),
		ProviderID:    r.ProviderID,
		PriceCents:    r.PriceCents,
		Date:          parseDateOrZero(r.Date),
		ScheduledTime: strings.TrimSpace(r.ScheduledTime),
		Notes:         r.Notes,
	}
}

type recurringRequest struct {
	StartDate        string  `json:"start_date"`
	EndDate          *string `json:"end_date"`
	Frequency        string  `json:"frequency"`
	FrequencyRepeats string  `json:"frequency_repeats"`
	OccurrencesAhead int     `json:"occurrences_ahead"`
	SameProvider     bool    `json:"same_provider"`
}

func (r recurringRequest) toOptions() (application.SeriesOptions, error) {
	options := application.SeriesOptions{
		StartDate:        parseDateOrZero(r.StartDate),
		FrequencyName:    strings.TrimSpace(r.Frequency),
		FrequencyRepeats: strings.TrimSpace(r.FrequencyRepeats),
		OccurrencesAhead: r.OccurrencesAhead,
		SameProvider:     r.SameProvider,
	}
	if r.EndDate != nil && strings.TrimSpace(*r.EndDate) != "" {
		ts, err := time.Parse(dateLayout, strings.TrimSpace(*r.EndDate))
		if err != nil {
			return application.SeriesOptions{}, errInvalidDate
		}
		options.EndDate = &ts
	}
	return options, nil
}

func parseDateOrZero(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

type completionRequest struct {
	Date string `json:"date"`
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type seriesCreatedResponse struct {
	SeriesID   string   `json:"series_id"`
	BookingIDs []string `json:"booking_ids"`
	Warning    string   `json:"warning,omitempty"`
}

type listBookingsResponse struct {
	Occurrences []occurrenceDTO `json:"occurrences"`
}

type bookingDTO struct {
	ID             string   `json:"id"`
	SeriesID       *string  `json:"series_id,omitempty"`
	CustomerName   string   `json:"customer_name"`
	CustomerEmail  string   `json:"customer_email,omitempty"`
	CustomerPhone  string   `json:"customer_phone,omitempty"`
	Address        string   `json:"address,omitempty"`
	ServiceType    string   `json:"service_type,omitempty"`
	ProviderID     *string  `json:"provider_id,omitempty"`
	PriceCents     int64    `json:"price_cents"`
	Date           string   `json:"date"`
	ScheduledTime  string   `json:"scheduled_time,omitempty"`
	Status         string   `json:"status"`
	Notes          *string  `json:"notes,omitempty"`
	CompletedDates []string `json:"completed_dates,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func toBookingDTO(booking application.Booking) bookingDTO {
	completed := make([]string, 0, len(booking.CompletedDates))
	for _, date := range booking.CompletedDates {
		completed = append(completed, date.Format(dateLayout))
	}
	if len(completed) == 0 {
		completed = nil
	}
	return bookingDTO{
		ID:             booking.ID,
		SeriesID:       booking.SeriesID,
		CustomerName:   booking.CustomerName,
		CustomerEmail:  booking.CustomerEmail,
		CustomerPhone:  booking.CustomerPhone,
		Address:        booking.Address,
		ServiceType:    booking.ServiceType,
		ProviderID:     booking.ProviderID,
		PriceCents:     booking.PriceCents,
		Date:           booking.Date.Format(dateLayout),
		ScheduledTime:  booking.ScheduledTime,
		Status:         booking.Status,
		Notes:          booking.Notes,
		CompletedDates: completed,
		CreatedAt:      booking.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:      booking.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type occurrenceDTO struct {
	BookingID     *string `json:"booking_id,omitempty"`
	SeriesID      *string `json:"series_id,omitempty"`
	Date          string  `json:"date"`
	ScheduledTime string  `json:"scheduled_time,omitempty"`
	Status        string  `json:"status"`
	CustomerName  string  `json:"customer_name"`
	Address       string  `json:"address,omitempty"`
	ServiceType   string  `json:"service_type,omitempty"`
	ProviderID    *string `json:"provider_id,omitempty"`
	PriceCents    int64   `json:"price_cents"`
}

func toOccurrenceDTOs(occurrences []application.Occurrence) []occurrenceDTO {
	if len(occurrences) == 0 {
		return nil
	}
	out := make([]occurrenceDTO, 0, len(occurrences))
	for _, occurrence := range occurrences {
		out = append(out, occurrenceDTO{
			BookingID:     occurrence.BookingID,
			SeriesID:      occurrence.SeriesID,
			Date:          occurrence.Date.Format(dateLayout),
			ScheduledTime: occurrence.ScheduledTime,
			Status:        occurrence.Status,
			CustomerName:  occurrence.CustomerName,
			Address:       occurrence.Address,
			ServiceType:   occurrence.ServiceType,
			ProviderID:    occurrence.ProviderID,
			PriceCents:    occurrence.PriceCents,
		})
	}
	return out
}
