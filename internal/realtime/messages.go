package realtime

import (
	"encoding/json"
	"errors"

	"github.com/sharmaishaan04/Event-Booking-System/internal/booking"
	"github.com/sharmaishaan04/Event-Booking-System/internal/model"
	"github.com/sharmaishaan04/Event-Booking-System/internal/repository"
	"github.com/sharmaishaan04/Event-Booking-System/internal/seatlock"
)

// Message types accepted from clients.
const (
	TypeJoinRoom  = "join_resource_room"
	TypeLeaveRoom = "leave_resource_room"
	TypeLockSeats = "lock_seats"
	TypeRefresh   = "refresh_lock"
	TypeRelease   = "release_lock"
	TypeConfirm   = "confirm_booking"
)

// TypeSeatUpdate is broadcast to every subscriber of a resource room.
const TypeSeatUpdate = "seat_update"

// Envelope frames every inbound message. RequestID is optional and,
// when present, echoed on the matching result so clients can correlate.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type roomPayload struct {
	ResourceID string `json:"resourceId"`
}

type lockPayload struct {
	ResourceID string `json:"resourceId"`
	LockID     string `json:"lockId"`
	Quantity   int    `json:"quantity"`
}

type lockRefPayload struct {
	ResourceID string `json:"resourceId"`
	LockID     string `json:"lockId"`
}

type confirmPayload struct {
	ResourceID  string               `json:"resourceId"`
	LockID      string               `json:"lockId"`
	BookingData model.BookingDetails `json:"bookingData"`
}

// Result is the reply to any request message. Type echoes the request
// type; unset fields are omitted.
type Result struct {
	Type           string         `json:"type"`
	RequestID      string         `json:"requestId,omitempty"`
	Success        bool           `json:"success"`
	LockID         string         `json:"lockId,omitempty"`
	ExpiresInMs    int64          `json:"expiresInMs,omitempty"`
	Released       string         `json:"released,omitempty"`
	Booking        *model.Booking `json:"booking,omitempty"`
	Error          string         `json:"error,omitempty"`
	AvailableSeats *int           `json:"availableSeats,omitempty"`
}

// SeatUpdate reports a resource's availability to its room:
// AvailableSeats is the effective count (persisted minus locked,
// floored at zero), BaseAvailableSeats the persisted counter.
type SeatUpdate struct {
	Type               string `json:"type"`
	ResourceID         string `json:"resourceId"`
	AvailableSeats     int    `json:"availableSeats"`
	LockedSeats        int    `json:"lockedSeats"`
	BaseAvailableSeats int    `json:"baseAvailableSeats"`
}

// Wire error strings. The calling side presents these; they carry no
// internal detail.
const (
	errInvalidPayload = "Invalid payload"
	errEventNotFound  = "Event not found"
	errLockNotFound   = "Lock not found"
	errNotOwner       = "Not lock owner"
	errDuplicateLock  = "Lock id already in use"
	errCapacity       = "Not enough seats available"
	errConfirmCap     = "Not enough seats available to confirm"
	errQtyMismatch    = "Quantity mismatch with lock"
	errTxTimeout      = "Booking transaction timed out"
	errInternal       = "Internal error"
)

// errorMessage maps the structured error taxonomy onto wire strings.
// Anything unmapped is reported as an internal error.
func errorMessage(err error) string {
	var capErr *seatlock.CapacityError
	switch {
	case errors.Is(err, seatlock.ErrLockNotFound):
		return errLockNotFound
	case errors.Is(err, seatlock.ErrNotOwner):
		return errNotOwner
	case errors.Is(err, seatlock.ErrDuplicateLock):
		return errDuplicateLock
	case errors.As(err, &capErr):
		return errCapacity
	case errors.Is(err, repository.ErrNotFound):
		return errEventNotFound
	case errors.Is(err, booking.ErrQuantityMismatch):
		return errQtyMismatch
	case errors.Is(err, booking.ErrTransactionTimeout):
		return errTxTimeout
	default:
		return errInternal
	}
}
