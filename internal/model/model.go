// Package model defines the core domain types for the event booking system.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event represents a sellable event with a finite seat inventory.
// AvailableSeats is the persisted counter; it is only ever mutated
// inside a store transaction.
type Event struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Location       string          `json:"location"`
	Date           time.Time       `json:"date"`
	TotalSeats     int             `json:"totalSeats"`
	AvailableSeats int             `json:"availableSeats"`
	Price          decimal.Decimal `json:"price"`
	Img            string          `json:"img"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// BookingStatusConfirmed is the only status a booking can have;
// bookings are immutable once created.
const BookingStatusConfirmed = "CONFIRMED"

// Booking is a durable, confirmed purchase record.
type Booking struct {
	ID          string          `json:"id"`
	EventID     string          `json:"eventId"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Mobile      string          `json:"mobile"`
	Quantity    int             `json:"quantity"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	Date        time.Time       `json:"date"`
	TotalSeats  int             `json:"totalSeats"`
	Price       decimal.Decimal `json:"price"`
	Img         string          `json:"img"`
}

// UpdateEventRequest is the payload for partially updating an event.
// Nil fields are left unchanged. Changing TotalSeats shifts
// AvailableSeats by the same delta, floored at zero.
type UpdateEventRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Location    *string          `json:"location"`
	Date        *time.Time       `json:"date"`
	TotalSeats  *int             `json:"totalSeats"`
	Price       *decimal.Decimal `json:"price"`
	Img         *string          `json:"img"`
}

// BookingDetails carries the purchaser fields for both the real-time
// confirm path and the direct creation endpoint.
type BookingDetails struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Quantity int    `json:"quantity"`
}

// CreateBookingRequest is the payload for the non-real-time creation endpoint.
type CreateBookingRequest struct {
	EventID string `json:"eventId"`
	BookingDetails
}

// EventFilter narrows and pages event listings.
type EventFilter struct {
	Query    string
	Location string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	Limit    int
}

// ListMeta describes a paged listing.
type ListMeta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// EventList is the paged response envelope for event listings.
type EventList struct {
	Meta ListMeta `json:"meta"`
	Data []Event  `json:"data"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
