// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sharmaishaan04/Event-Booking-System/internal/booking"
	"github.com/sharmaishaan04/Event-Booking-System/internal/model"
	"github.com/sharmaishaan04/Event-Booking-System/internal/repository"
	"github.com/sharmaishaan04/Event-Booking-System/internal/seatlock"
	"github.com/sharmaishaan04/Event-Booking-System/internal/service"
)

// EventHandler holds all HTTP handlers for the booking API.
type EventHandler struct {
	events   *service.EventService
	bookings *service.BookingService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events *service.EventService, bookings *service.BookingService) *EventHandler {
	return &EventHandler{events: events, bookings: bookings}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps the error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		valErr *service.ValidationError
		capErr *seatlock.CapacityError
	)
	switch {
	case errors.As(err, &valErr):
		writeError(w, http.StatusBadRequest, valErr.Message)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.As(err, &capErr):
		writeError(w, http.StatusConflict, "not enough seats available")
	case errors.Is(err, booking.ErrTransactionTimeout):
		writeError(w, http.StatusServiceUnavailable, "booking transaction timed out")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.CreateEvent(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events with optional q, location, dateFrom,
// dateTo, page, and limit query parameters.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.EventFilter{
		Query:    q.Get("q"),
		Location: q.Get("location"),
	}
	if v := q.Get("dateFrom"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "dateFrom must be RFC 3339")
			return
		}
		filter.DateFrom = &t
	}
	if v := q.Get("dateTo"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "dateTo must be RFC 3339")
			return
		}
		filter.DateTo = &t
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	list, err := h.events.ListEvents(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PATCH /events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.UpdateEvent(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.events.DeleteEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ─── Bookings ─────────────────────────────────────────────────────────────────

// CreateBooking handles POST /bookings — the non-real-time purchase
// path. It shares the transaction engine with the websocket confirm
// path, so both contend for the same row lock and capacity re-check.
func (h *EventHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	bkg, err := h.bookings.CreateBooking(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bkg)
}

// ListBookings handles GET /events/{id}/bookings
func (h *EventHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListBookings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
