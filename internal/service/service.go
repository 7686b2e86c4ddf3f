// Package service implements business logic, validation, and
// orchestration between HTTP handlers and the layers below.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sharmaishaan04/Event-Booking-System/internal/booking"
	"github.com/sharmaishaan04/Event-Booking-System/internal/model"
	"github.com/sharmaishaan04/Event-Booking-System/internal/repository"
)

// ValidationError reports a malformed request payload. The message is
// safe to show to callers.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// ─── Events ───────────────────────────────────────────────────────────────────

// EventService orchestrates event CRUD.
type EventService struct {
	events *repository.EventRepository
}

// NewEventService constructs an EventService.
func NewEventService(events *repository.EventRepository) *EventService {
	return &EventService{events: events}
}

func validateEventFields(title string, totalSeats int, priceNegative bool) error {
	if strings.TrimSpace(title) == "" {
		return invalid("title is required")
	}
	if totalSeats <= 0 {
		return invalid("totalSeats must be a positive integer")
	}
	if totalSeats > 100_000 {
		return invalid("totalSeats cannot exceed 100,000")
	}
	if priceNegative {
		return invalid("price cannot be negative")
	}
	return nil
}

// CreateEvent validates the request and delegates to the repository.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validateEventFields(req.Title, req.TotalSeats, req.Price.IsNegative()); err != nil {
		return nil, err
	}
	if req.Date.IsZero() {
		return nil, invalid("date is required")
	}
	return s.events.Create(ctx, req)
}

// ListEvents returns events matching the filter plus pagination meta.
func (s *EventService) ListEvents(ctx context.Context, f model.EventFilter) (*model.EventList, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	events, total, err := s.events.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	return &model.EventList{
		Meta: model.ListMeta{Total: total, Page: f.Page, Limit: f.Limit},
		Data: events,
	}, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, invalid("event id is required")
	}
	return s.events.GetByID(ctx, id)
}

// UpdateEvent validates and applies a partial update.
func (s *EventService) UpdateEvent(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error) {
	if id == "" {
		return nil, invalid("event id is required")
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, invalid("title cannot be empty")
	}
	if req.TotalSeats != nil && (*req.TotalSeats <= 0 || *req.TotalSeats > 100_000) {
		return nil, invalid("totalSeats must be between 1 and 100,000")
	}
	if req.Price != nil && req.Price.IsNegative() {
		return nil, invalid("price cannot be negative")
	}
	return s.events.Update(ctx, id, req)
}

// DeleteEvent removes an event.
func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return invalid("event id is required")
	}
	return s.events.Delete(ctx, id)
}

// ─── Bookings ─────────────────────────────────────────────────────────────────

// AvailabilityPublisher pushes an event's current availability to its
// real-time subscribers.
type AvailabilityPublisher interface {
	Publish(ctx context.Context, eventID string)
}

// BookingService fronts the booking transaction engine for the
// non-real-time creation endpoint and booking listings.
type BookingService struct {
	engine    *booking.Engine
	bookings  *repository.BookingRepository
	events    *repository.EventRepository
	publisher AvailabilityPublisher
}

// NewBookingService constructs a BookingService. publisher may be nil.
func NewBookingService(engine *booking.Engine, bookings *repository.BookingRepository, events *repository.EventRepository, publisher AvailabilityPublisher) *BookingService {
	return &BookingService{engine: engine, bookings: bookings, events: events, publisher: publisher}
}

// ValidateDetails checks the purchaser fields shared by both booking paths.
func ValidateDetails(d model.BookingDetails) error {
	if strings.TrimSpace(d.Name) == "" {
		return invalid("name is required")
	}
	if !isValidEmail(strings.TrimSpace(strings.ToLower(d.Email))) {
		return invalid("email is not a valid email address")
	}
	if strings.TrimSpace(d.Mobile) == "" {
		return invalid("mobile is required")
	}
	if d.Quantity <= 0 {
		return invalid("quantity must be a positive integer")
	}
	return nil
}

// CreateBooking handles the direct (lock-free) purchase path. The
// engine runs it through the same transaction-and-recheck as lock
// confirmation, so it cannot race the lock table into overselling.
func (s *BookingService) CreateBooking(ctx context.Context, req model.CreateBookingRequest) (*model.Booking, error) {
	if req.EventID == "" {
		return nil, invalid("eventId is required")
	}
	if err := ValidateDetails(req.BookingDetails); err != nil {
		return nil, err
	}
	bkg, err := s.engine.BookDirect(ctx, req.EventID, req.BookingDetails)
	if err != nil {
		return nil, err
	}
	// Websocket viewers see the decrement too, not just lock traffic.
	if s.publisher != nil {
		s.publisher.Publish(ctx, req.EventID)
	}
	return bkg, nil
}

// ListBookings returns all bookings for an event.
func (s *BookingService) ListBookings(ctx context.Context, eventID string) ([]model.Booking, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	bookings, err := s.bookings.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	return bookings, nil
}

// isValidEmail does a basic structural check (no external deps).
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
