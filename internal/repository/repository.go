// Package repository implements all database access for the event
// booking system. It uses pgx directly (no ORM) for transparency and
// performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sharmaishaan04/Event-Booking-System/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// querier is the subset of pgx satisfied by both pgxpool.Pool and pgx.Tx,
// so every query runs against the ambient transaction when one exists.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// Store owns the connection pool and the transaction plumbing shared by
// the repositories.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store over a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithTx runs fn inside a transaction. Repository calls made with the
// context fn receives join that transaction; nested WithTx calls reuse
// the outer transaction rather than opening a second one.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// q returns the ambient transaction when present, else the pool.
func (s *Store) q(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

// ─── Events ───────────────────────────────────────────────────────────────────

const eventColumns = `id, title, description, location, date, total_seats, available_seats, price, img, created_at`

// EventRepository handles persistence for events.
type EventRepository struct {
	store *Store
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(store *Store) *EventRepository {
	return &EventRepository{store: store}
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Location, &e.Date,
		&e.TotalSeats, &e.AvailableSeats, &e.Price, &e.Img, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &e, nil
}

// Create inserts a new event. Available seats start equal to total seats.
func (r *EventRepository) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	event := &model.Event{
		ID:             uuid.New().String(),
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		Date:           req.Date,
		TotalSeats:     req.TotalSeats,
		AvailableSeats: req.TotalSeats,
		Price:          req.Price,
		Img:            req.Img,
		CreatedAt:      time.Now().UTC(),
	}

	_, err := r.store.q(ctx).Exec(ctx,
		`INSERT INTO events (id, title, description, location, date, total_seats, available_seats, price, img, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, event.Title, event.Description, event.Location, event.Date,
		event.TotalSeats, event.AvailableSeats, event.Price, event.Img, event.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// List returns events matching the filter, ordered by date ascending,
// along with the total match count for pagination.
func (r *EventRepository) List(ctx context.Context, f model.EventFilter) ([]model.Event, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Query != "" {
		p := arg("%" + f.Query + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}
	if f.Location != "" {
		where = append(where, fmt.Sprintf("location ILIKE %s", arg("%"+f.Location+"%")))
	}
	if f.DateFrom != nil {
		where = append(where, fmt.Sprintf("date >= %s", arg(*f.DateFrom)))
	}
	if f.DateTo != nil {
		where = append(where, fmt.Sprintf("date <= %s", arg(*f.DateTo)))
	}

	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.store.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM events`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	query := fmt.Sprintf(
		`SELECT %s FROM events%s ORDER BY date ASC LIMIT %s OFFSET %s`,
		eventColumns, cond, arg(limit), arg((page-1)*limit),
	)

	rows, err := r.store.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Description, &e.Location, &e.Date,
			&e.TotalSeats, &e.AvailableSeats, &e.Price, &e.Img, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	row := r.store.q(ctx).QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	return scanEvent(row)
}

// GetForUpdate reads the event under a row-level exclusive lock.
//
// SELECT … FOR UPDATE blocks any concurrent transaction taking the same
// lock on this row until we COMMIT or ROLLBACK, which serialises every
// competing seat decrement on the event. Must be called inside WithTx.
func (r *EventRepository) GetForUpdate(ctx context.Context, id string) (*model.Event, error) {
	row := r.store.q(ctx).QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
	return scanEvent(row)
}

// UpdateAvailable sets the persisted available-seat counter.
func (r *EventRepository) UpdateAvailable(ctx context.Context, id string, available int) error {
	tag, err := r.store.q(ctx).Exec(ctx,
		`UPDATE events SET available_seats = $2 WHERE id = $1`, id, available)
	if err != nil {
		return fmt.Errorf("update available seats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Update applies a partial update inside a transaction. Growing or
// shrinking total seats shifts available seats by the same delta,
// floored at zero (an administrative correction, not a sale).
func (r *EventRepository) Update(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error) {
	var updated *model.Event
	err := r.store.WithTx(ctx, func(ctx context.Context) error {
		existing, err := r.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if req.Title != nil {
			existing.Title = *req.Title
		}
		if req.Description != nil {
			existing.Description = *req.Description
		}
		if req.Location != nil {
			existing.Location = *req.Location
		}
		if req.Date != nil {
			existing.Date = *req.Date
		}
		if req.Price != nil {
			existing.Price = *req.Price
		}
		if req.Img != nil {
			existing.Img = *req.Img
		}
		if req.TotalSeats != nil {
			delta := *req.TotalSeats - existing.TotalSeats
			existing.TotalSeats = *req.TotalSeats
			existing.AvailableSeats += delta
			if existing.AvailableSeats < 0 {
				existing.AvailableSeats = 0
			}
		}

		_, err = r.store.q(ctx).Exec(ctx,
			`UPDATE events
			 SET title = $2, description = $3, location = $4, date = $5,
			     total_seats = $6, available_seats = $7, price = $8, img = $9
			 WHERE id = $1`,
			existing.ID, existing.Title, existing.Description, existing.Location, existing.Date,
			existing.TotalSeats, existing.AvailableSeats, existing.Price, existing.Img,
		)
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an event and its bookings.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.store.q(ctx).Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Bookings ─────────────────────────────────────────────────────────────────

// BookingRepository handles persistence for confirmed bookings.
type BookingRepository struct {
	store *Store
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(store *Store) *BookingRepository {
	return &BookingRepository{store: store}
}

// Create inserts a booking record. Bookings are immutable once written.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	_, err := r.store.q(ctx).Exec(ctx,
		`INSERT INTO bookings (id, event_id, name, email, mobile, quantity, total_amount, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.EventID, b.Name, b.Email, b.Mobile, b.Quantity, b.TotalAmount, b.Status, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// ListByEvent returns all bookings for an event, oldest first.
func (r *BookingRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Booking, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT id, event_id, name, email, mobile, quantity, total_amount, status, created_at
		 FROM bookings
		 WHERE event_id = $1
		 ORDER BY created_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(
			&b.ID, &b.EventID, &b.Name, &b.Email, &b.Mobile,
			&b.Quantity, &b.TotalAmount, &b.Status, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ─── Booking engine store ─────────────────────────────────────────────────────

// BookingStore bundles the store pieces the booking transaction engine
// needs behind its Store interface.
type BookingStore struct {
	store    *Store
	events   *EventRepository
	bookings *BookingRepository
}

// NewBookingStore constructs the engine-facing store.
func NewBookingStore(store *Store, events *EventRepository, bookings *BookingRepository) *BookingStore {
	return &BookingStore{store: store, events: events, bookings: bookings}
}

func (s *BookingStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.store.WithTx(ctx, fn)
}

func (s *BookingStore) GetEventForUpdate(ctx context.Context, id string) (*model.Event, error) {
	return s.events.GetForUpdate(ctx, id)
}

func (s *BookingStore) UpdateEventAvailable(ctx context.Context, id string, available int) error {
	return s.events.UpdateAvailable(ctx, id, available)
}

func (s *BookingStore) CreateBooking(ctx context.Context, b *model.Booking) error {
	return s.bookings.Create(ctx, b)
}
