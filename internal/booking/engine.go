// Package booking implements the transaction engine that converts seat
// locks (and direct purchase requests) into durable, confirmed bookings.
// It is the single authority for inventory decrements: every path that
// reduces an event's available seats runs through its
// transaction-and-recheck, so no write can oversell.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sharmaishaan04/Event-Booking-System/internal/clock"
	"github.com/sharmaishaan04/Event-Booking-System/internal/model"
	"github.com/sharmaishaan04/Event-Booking-System/internal/repository"
	"github.com/sharmaishaan04/Event-Booking-System/internal/seatlock"
)

// ErrQuantityMismatch is returned when the purchase quantity differs
// from the lock quantity. Locks are confirmed whole or not at all.
var ErrQuantityMismatch = errors.New("quantity mismatch with lock")

// ErrTransactionTimeout is returned when the store transaction exceeds
// its deadline. The store aborts the transaction; nothing is applied.
var ErrTransactionTimeout = errors.New("booking transaction timed out")

// ErrInternal replaces unexpected store errors so raw driver failures
// never reach a client. The cause is logged at the engine boundary.
var ErrInternal = errors.New("internal error")

// Store is the persistent inventory interface the engine transacts
// against. Inside WithTx all calls share one database transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetEventForUpdate(ctx context.Context, id string) (*model.Event, error)
	UpdateEventAvailable(ctx context.Context, id string, available int) error
	CreateBooking(ctx context.Context, b *model.Booking) error
}

// LockTable is the slice of the seat-lock manager the engine consults.
type LockTable interface {
	Get(eventID, lockID string) (seatlock.Lock, error)
	LockedTotal(eventID string) int
	LockedTotalExcluding(eventID, lockID string) int
	Remove(eventID, lockID string) bool
}

// DefaultTxTimeout bounds how long a booking transaction may block.
const DefaultTxTimeout = 5 * time.Second

// Engine converts locks into bookings atomically.
type Engine struct {
	store   Store
	locks   LockTable
	clk     clock.Clock
	log     zerolog.Logger
	timeout time.Duration
}

// Option customises an Engine.
type Option func(*Engine)

// WithTxTimeout overrides the default transaction deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine constructs a booking engine.
func NewEngine(store Store, locks LockTable, clk clock.Clock, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		locks:   locks,
		clk:     clk,
		log:     log.With().Str("component", "booking").Logger(),
		timeout: DefaultTxTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ConfirmLock converts an active lock into a confirmed booking.
//
// The re-checks inside the transaction run after the event row is
// locked FOR UPDATE: the lock must still exist (a concurrent confirm of
// the same lock may have won the row lock first and consumed it), and
// the seats held by *other* locks must still fit under the persisted
// count, which may have moved since acquisition (a direct purchase, an
// administrative correction). The lock is consumed inside the
// transaction, after every write succeeds and while the row lock is
// still held, so no second confirm can slip between commit and removal.
// On any failure the lock is left untouched so the client can retry
// until its TTL runs out.
func (e *Engine) ConfirmLock(ctx context.Context, eventID, lockID, owner string, details model.BookingDetails) (*model.Booking, error) {
	lock, err := e.locks.Get(eventID, lockID)
	if err != nil {
		return nil, err
	}
	if lock.Owner != owner {
		return nil, seatlock.ErrNotOwner
	}
	if details.Quantity != lock.Quantity {
		return nil, ErrQuantityMismatch
	}

	booking, err := e.transact(ctx, eventID, details, func(available int) error {
		if _, err := e.locks.Get(eventID, lockID); err != nil {
			return err
		}
		other := e.locks.LockedTotalExcluding(eventID, lockID)
		if available-other < details.Quantity {
			return &seatlock.CapacityError{Available: clampZero(available - other)}
		}
		return nil
	}, func() {
		e.locks.Remove(eventID, lockID)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("event_id", eventID).
		Str("lock_id", lockID).
		Str("booking_id", booking.ID).
		Int("quantity", booking.Quantity).
		Msg("lock confirmed into booking")
	return booking, nil
}

// BookDirect creates a booking without a prior lock. It runs through
// the same transaction-and-recheck as ConfirmLock and counts every
// active lock, so direct purchases cannot consume seats out from under
// lock holders.
func (e *Engine) BookDirect(ctx context.Context, eventID string, details model.BookingDetails) (*model.Booking, error) {
	booking, err := e.transact(ctx, eventID, details, func(available int) error {
		locked := e.locks.LockedTotal(eventID)
		if available-locked < details.Quantity {
			return &seatlock.CapacityError{Available: clampZero(available - locked)}
		}
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("event_id", eventID).
		Str("booking_id", booking.ID).
		Int("quantity", booking.Quantity).
		Msg("direct booking created")
	return booking, nil
}

// transact runs the decrement-and-insert under a bounded deadline. The
// guard runs after the event row is locked FOR UPDATE, so the available
// count it sees cannot change before commit; applied, when non-nil,
// runs after every write succeeds, still inside the transaction.
func (e *Engine) transact(ctx context.Context, eventID string, details model.BookingDetails, guard func(available int) error, applied func()) (*model.Booking, error) {
	txCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var booking *model.Booking
	err := e.store.WithTx(txCtx, func(ctx context.Context) error {
		event, err := e.store.GetEventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if err := guard(event.AvailableSeats); err != nil {
			return err
		}

		booking = &model.Booking{
			ID:          uuid.New().String(),
			EventID:     eventID,
			Name:        details.Name,
			Email:       details.Email,
			Mobile:      details.Mobile,
			Quantity:    details.Quantity,
			TotalAmount: event.Price.Mul(decimal.NewFromInt(int64(details.Quantity))).Round(2),
			Status:      model.BookingStatusConfirmed,
			CreatedAt:   e.clk.Now(),
		}

		if err := e.store.UpdateEventAvailable(ctx, eventID, event.AvailableSeats-details.Quantity); err != nil {
			return err
		}
		if err := e.store.CreateBooking(ctx, booking); err != nil {
			return err
		}
		if applied != nil {
			applied()
		}
		return nil
	})
	if err != nil {
		return nil, e.mapStoreErr(err)
	}
	return booking, nil
}

// mapStoreErr translates transaction failures into the structured
// taxonomy. Domain errors pass through; everything unexpected becomes
// ErrInternal with the cause logged here.
func (e *Engine) mapStoreErr(err error) error {
	var capErr *seatlock.CapacityError
	switch {
	case errors.As(err, &capErr):
		return err
	case errors.Is(err, seatlock.ErrLockNotFound):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTransactionTimeout
	default:
		e.log.Error().Err(err).Msg("booking transaction failed")
		return ErrInternal
	}
}

func clampZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
