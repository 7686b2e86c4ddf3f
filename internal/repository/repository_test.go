package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sharmaishaan04/Event-Booking-System/internal/model"
	"github.com/sharmaishaan04/Event-Booking-System/internal/repository"
	"github.com/sharmaishaan04/Event-Booking-System/internal/testutil"
)

func newRepos(t *testing.T) (*repository.Store, *repository.EventRepository, *repository.BookingRepository) {
	t.Helper()
	pool := testutil.NewPool(t)
	store := repository.NewStore(pool)
	return store, repository.NewEventRepository(store), repository.NewBookingRepository(store)
}

func createEvent(t *testing.T, events *repository.EventRepository, title string, seats int, date time.Time) *model.Event {
	t.Helper()
	event, err := events.Create(context.Background(), model.CreateEventRequest{
		Title:      title,
		Location:   "Bengaluru",
		Date:       date,
		TotalSeats: seats,
		Price:      decimal.RequireFromString("250.50"),
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

func TestEventCreateAndGet(t *testing.T) {
	_, events, _ := newRepos(t)
	ctx := context.Background()
	date := time.Date(2026, 10, 3, 19, 0, 0, 0, time.UTC)

	created := createEvent(t, events, "Go Conference", 120, date)
	if created.AvailableSeats != 120 {
		t.Fatalf("AvailableSeats = %d, want TotalSeats", created.AvailableSeats)
	}

	got, err := events.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Go Conference" || got.TotalSeats != 120 || got.AvailableSeats != 120 {
		t.Fatalf("got = %+v", got)
	}
	if !got.Price.Equal(decimal.RequireFromString("250.50")) {
		t.Fatalf("price = %s, want 250.50", got.Price)
	}
	if !got.Date.Equal(date) {
		t.Fatalf("date = %v, want %v", got.Date, date)
	}

	if _, err := events.GetByID(ctx, uuid.New().String()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing event error = %v, want ErrNotFound", err)
	}
}

func TestEventList(t *testing.T) {
	_, events, _ := newRepos(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 18, 0, 0, 0, time.UTC)

	createEvent(t, events, "Jazz Night", 50, base)
	createEvent(t, events, "Rock Night", 80, base.AddDate(0, 0, 2))
	mumbai, err := events.Create(ctx, model.CreateEventRequest{
		Title:      "Tech Summit",
		Location:   "Mumbai",
		Date:       base.AddDate(0, 0, 4),
		TotalSeats: 200,
		Price:      decimal.NewFromInt(999),
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	t.Run("no filter, date ascending", func(t *testing.T) {
		got, total, err := events.List(ctx, model.EventFilter{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 3 || len(got) != 3 {
			t.Fatalf("total = %d, len = %d, want 3/3", total, len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].Date.Before(got[i-1].Date) {
				t.Fatalf("events not ordered by date: %v then %v", got[i-1].Date, got[i].Date)
			}
		}
	})

	t.Run("title search is case-insensitive", func(t *testing.T) {
		got, total, err := events.List(ctx, model.EventFilter{Query: "night"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 2 || len(got) != 2 {
			t.Fatalf("total = %d, len = %d, want 2/2", total, len(got))
		}
	})

	t.Run("location filter", func(t *testing.T) {
		got, total, err := events.List(ctx, model.EventFilter{Location: "mum"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 1 || len(got) != 1 || got[0].ID != mumbai.ID {
			t.Fatalf("got %d/%d events", total, len(got))
		}
	})

	t.Run("date range", func(t *testing.T) {
		from := base.AddDate(0, 0, 1)
		to := base.AddDate(0, 0, 3)
		got, total, err := events.List(ctx, model.EventFilter{DateFrom: &from, DateTo: &to})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 1 || len(got) != 1 || got[0].Title != "Rock Night" {
			t.Fatalf("got %d/%d events: %+v", total, len(got), got)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		page1, total, err := events.List(ctx, model.EventFilter{Page: 1, Limit: 2})
		if err != nil {
			t.Fatalf("list page 1: %v", err)
		}
		page2, _, err := events.List(ctx, model.EventFilter{Page: 2, Limit: 2})
		if err != nil {
			t.Fatalf("list page 2: %v", err)
		}
		if total != 3 || len(page1) != 2 || len(page2) != 1 {
			t.Fatalf("total = %d, pages = %d/%d", total, len(page1), len(page2))
		}
		if page2[0].ID == page1[0].ID || page2[0].ID == page1[1].ID {
			t.Fatal("pages overlap")
		}
	})
}

func TestEventUpdate(t *testing.T) {
	_, events, _ := newRepos(t)
	ctx := context.Background()
	date := time.Date(2026, 11, 20, 20, 0, 0, 0, time.UTC)

	t.Run("partial update leaves seats alone", func(t *testing.T) {
		event := createEvent(t, events, "Original", 40, date)
		title := "Renamed"
		updated, err := events.Update(ctx, event.ID, model.UpdateEventRequest{Title: &title})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Title != "Renamed" || updated.TotalSeats != 40 || updated.AvailableSeats != 40 {
			t.Fatalf("updated = %+v", updated)
		}
	})

	t.Run("growing total seats grows availability", func(t *testing.T) {
		event := createEvent(t, events, "Growable", 40, date)
		seats := 60
		updated, err := events.Update(ctx, event.ID, model.UpdateEventRequest{TotalSeats: &seats})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.TotalSeats != 60 || updated.AvailableSeats != 60 {
			t.Fatalf("updated = %+v", updated)
		}
	})

	t.Run("shrinking floors availability at zero", func(t *testing.T) {
		event := createEvent(t, events, "Shrinkable", 10, date)
		// Sell most of the inventory first.
		if err := events.UpdateAvailable(ctx, event.ID, 2); err != nil {
			t.Fatalf("update available: %v", err)
		}
		seats := 3
		updated, err := events.Update(ctx, event.ID, model.UpdateEventRequest{TotalSeats: &seats})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.TotalSeats != 3 || updated.AvailableSeats != 0 {
			t.Fatalf("updated = %+v", updated)
		}
	})

	t.Run("missing event", func(t *testing.T) {
		title := "x"
		if _, err := events.Update(ctx, uuid.New().String(), model.UpdateEventRequest{Title: &title}); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestEventDelete(t *testing.T) {
	_, events, bookings := newRepos(t)
	ctx := context.Background()
	event := createEvent(t, events, "Doomed", 10, time.Date(2026, 12, 1, 10, 0, 0, 0, time.UTC))

	if err := bookings.Create(ctx, &model.Booking{
		ID:          uuid.New().String(),
		EventID:     event.ID,
		Name:        "Asha Rao",
		Email:       "asha@example.com",
		Mobile:      "9876500000",
		Quantity:    2,
		TotalAmount: decimal.RequireFromString("501.00"),
		Status:      model.BookingStatusConfirmed,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create booking: %v", err)
	}

	if err := events.Delete(ctx, event.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := events.GetByID(ctx, event.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("get after delete = %v, want ErrNotFound", err)
	}

	// Bookings go with the event.
	got, err := bookings.ListByEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("bookings survived cascade: %+v", got)
	}

	if err := events.Delete(ctx, event.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
}

func TestBookingCreateAndList(t *testing.T) {
	_, events, bookings := newRepos(t)
	ctx := context.Background()
	event := createEvent(t, events, "Popular", 100, time.Date(2026, 12, 5, 19, 0, 0, 0, time.UTC))

	now := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		if err := bookings.Create(ctx, &model.Booking{
			ID:          uuid.New().String(),
			EventID:     event.ID,
			Name:        fmt.Sprintf("Buyer %d", i),
			Email:       fmt.Sprintf("buyer%d@example.com", i),
			Mobile:      "9876500000",
			Quantity:    i + 1,
			TotalAmount: decimal.RequireFromString("250.50").Mul(decimal.NewFromInt(int64(i + 1))),
			Status:      model.BookingStatusConfirmed,
			CreatedAt:   now.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("create booking %d: %v", i, err)
		}
	}

	got, err := bookings.ListByEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, b := range got {
		if b.Name != fmt.Sprintf("Buyer %d", i) {
			t.Fatalf("bookings not ordered oldest first: %+v", got)
		}
	}
	if !got[1].TotalAmount.Equal(decimal.RequireFromString("501.00")) {
		t.Fatalf("total amount = %s, want 501.00", got[1].TotalAmount)
	}
}

func TestStoreWithTx(t *testing.T) {
	store, events, bookings := newRepos(t)
	ctx := context.Background()
	event := createEvent(t, events, "Transactional", 20, time.Date(2026, 12, 10, 18, 0, 0, 0, time.UTC))
	engineStore := repository.NewBookingStore(store, events, bookings)

	t.Run("commit applies both writes", func(t *testing.T) {
		err := engineStore.WithTx(ctx, func(ctx context.Context) error {
			ev, err := engineStore.GetEventForUpdate(ctx, event.ID)
			if err != nil {
				return err
			}
			if err := engineStore.UpdateEventAvailable(ctx, ev.ID, ev.AvailableSeats-2); err != nil {
				return err
			}
			return engineStore.CreateBooking(ctx, &model.Booking{
				ID:          uuid.New().String(),
				EventID:     ev.ID,
				Name:        "Asha Rao",
				Email:       "asha@example.com",
				Mobile:      "9876500000",
				Quantity:    2,
				TotalAmount: decimal.RequireFromString("501.00"),
				Status:      model.BookingStatusConfirmed,
				CreatedAt:   time.Now().UTC(),
			})
		})
		if err != nil {
			t.Fatalf("tx: %v", err)
		}

		got, err := events.GetByID(ctx, event.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.AvailableSeats != 18 {
			t.Fatalf("AvailableSeats = %d, want 18", got.AvailableSeats)
		}
	})

	t.Run("error rolls back every write", func(t *testing.T) {
		boom := errors.New("boom")
		err := engineStore.WithTx(ctx, func(ctx context.Context) error {
			if err := engineStore.UpdateEventAvailable(ctx, event.ID, 0); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("tx error = %v, want boom", err)
		}

		got, err := events.GetByID(ctx, event.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.AvailableSeats != 18 {
			t.Fatalf("AvailableSeats = %d after rollback, want 18", got.AvailableSeats)
		}
	})

	t.Run("nested WithTx joins the outer transaction", func(t *testing.T) {
		err := store.WithTx(ctx, func(ctx context.Context) error {
			return engineStore.WithTx(ctx, func(ctx context.Context) error {
				_, err := engineStore.GetEventForUpdate(ctx, event.ID)
				return err
			})
		})
		if err != nil {
			t.Fatalf("nested tx: %v", err)
		}
	})
}
