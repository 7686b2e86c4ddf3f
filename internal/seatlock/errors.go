package seatlock

import (
	"errors"
	"fmt"
)

// ErrLockNotFound is returned when the referenced lock does not exist,
// including locks already removed by expiry, release, or confirmation.
var ErrLockNotFound = errors.New("lock not found")

// ErrNotOwner is returned when a connection operates on a lock it did
// not create.
var ErrNotOwner = errors.New("not lock owner")

// ErrDuplicateLock is returned when a lock id is already in use for the
// event. Clients extend an existing lock with refresh instead of
// re-acquiring it.
var ErrDuplicateLock = errors.New("lock id already in use")

// ErrStopped is returned for operations dispatched after the manager's
// Run loop has exited, which only happens during shutdown.
var ErrStopped = errors.New("lock manager stopped")

// CapacityError is returned when the effective availability (persisted
// available minus active locks) cannot cover the requested quantity.
// Available carries the effective count at decision time, floored at zero.
type CapacityError struct {
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("not enough seats available (%d left)", e.Available)
}
