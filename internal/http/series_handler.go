package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/cleanbook/internal/application"
	"github.com/example/cleanbook/internal/icsfeed"
)

type seriesService interface {
	GetSeries(ctx context.Context, businessID, seriesID string, upTo *time.Time) (application.RecurringSeries, []application.Occurrence, error)
	SeriesSnapshot(ctx context.Context, businessID, seriesID string) (application.RecurringSeries, application.Booking, error)
}

type SeriesHandler struct {
	service   seriesService
	responder responder
	now       func() time.Time
}

func NewSeriesHandler(service seriesService, logger *slog.Logger) *SeriesHandler {
	return &SeriesHandler{service: service, responder: newResponder(logger), now: time.Now}
}

// Get returns the series rule and its expanded occurrences. The
// expansion is bounded by the until query parameter when present.
func (h *SeriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	seriesID, ok := SeriesIDFromContext(r.Context())
	if !ok || strings.TrimSpace(seriesID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSeriesID)
		return
	}

	var upTo *time.Time
	if until := strings.TrimSpace(r.URL.Query().Get("until")); until != "" {
		ts, err := time.Parse(dateLayout, until)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
			return
		}
		upTo = &ts
	}

	business, _ := BusinessFromContext(r.Context())
	series, occurrences, err := h.service.GetSeries(r.Context(), business.ID, seriesID, upTo)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, seriesResponse{
		Series:      toSeriesDTO(series),
		Occurrences: toOccurrenceDTOs(occurrences),
	})
}

// Calendar renders the series as an iCalendar feed.
func (h *SeriesHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	seriesID, ok := SeriesIDFromContext(r.Context())
	if !ok || strings.TrimSpace(seriesID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSeriesID)
		return
	}

	business, _ := BusinessFromContext(r.Context())
	series, parent, err := h.service.SeriesSnapshot(r.Context(), business.ID, seriesID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	cal, err := icsfeed.BuildSeriesCalendar(series, parent, h.now())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+seriesID+`.ics"`)
	if err := icsfeed.Encode(w, cal); err != nil {
		handlerLogger(r.Context(), h.responder.logger, "series", "calendar", "series_id", seriesID).
			ErrorContext(r.Context(), "failed to encode calendar feed", "error", err)
	}
}

type seriesResponse struct {
	Series      seriesDTO       `json:"series"`
	Occurrences []occurrenceDTO `json:"occurrences,omitempty"`
}

type seriesDTO struct {
	ID               string  `json:"id"`
	StartDate        string  `json:"start_date"`
	EndDate          *string `json:"end_date,omitempty"`
	Frequency        string  `json:"frequency"`
	FrequencyRepeats string  `json:"frequency_repeats"`
	OccurrencesAhead int     `json:"occurrences_ahead"`
	ScheduledTime    string  `json:"scheduled_time,omitempty"`
	SameProvider     bool    `json:"same_provider"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

func toSeriesDTO(series application.RecurringSeries) seriesDTO {
	var endDate *string
	if series.EndDate != nil {
		formatted := series.EndDate.Format(dateLayout)
		endDate = &formatted
	}
	return seriesDTO{
		ID:               series.ID,
		StartDate:        series.StartDate.Format(dateLayout),
		EndDate:          endDate,
		Frequency:        series.FrequencyName,
		FrequencyRepeats: series.FrequencyRepeats,
		OccurrencesAhead: series.OccurrencesAhead,
		ScheduledTime:    series.ScheduledTime,
		SameProvider:     series.SameProvider,
		CreatedAt:        series.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:        series.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
