package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sharmaishaan04/Event-Booking-System/internal/clock"
	"github.com/sharmaishaan04/Event-Booking-System/internal/model"
	"github.com/sharmaishaan04/Event-Booking-System/internal/repository"
	"github.com/sharmaishaan04/Event-Booking-System/internal/seatlock"
)

func testClient(id string) *Client {
	return &Client{id: id, send: make(chan []byte, 4)}
}

func TestHubMembership(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a, b := testClient("a"), testClient("b")

	hub.Join("event_1", a)
	hub.Join("event_1", a) // joining twice is a no-op
	hub.Join("event_1", b)
	hub.Join("event_2", b)

	if got := hub.RoomSize("event_1"); got != 2 {
		t.Fatalf("event_1 size = %d, want 2", got)
	}

	hub.Leave("event_1", a)
	if got := hub.RoomSize("event_1"); got != 1 {
		t.Fatalf("event_1 size after leave = %d, want 1", got)
	}

	hub.RemoveClient(b)
	if got := hub.RoomSize("event_1"); got != 0 {
		t.Fatalf("event_1 size after remove = %d, want 0", got)
	}
	if got := hub.RoomSize("event_2"); got != 0 {
		t.Fatalf("event_2 size after remove = %d, want 0", got)
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a, b, outsider := testClient("a"), testClient("b"), testClient("c")

	hub.Join("event_1", a)
	hub.Join("event_1", b)
	hub.Join("event_2", outsider)

	hub.Broadcast("event_1", []byte(`{"x":1}`))

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			if string(msg) != `{"x":1}` {
				t.Fatalf("unexpected message %s", msg)
			}
		default:
			t.Fatalf("client %s received nothing", c.id)
		}
	}
	select {
	case msg := <-outsider.send:
		t.Fatalf("outsider received %s", msg)
	default:
	}
}

func TestHubBroadcastSkipsFullClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	slow := &Client{id: "slow", send: make(chan []byte, 1)}
	slow.send <- []byte("stale")
	hub.Join("event_1", slow)

	// Must not block even though the buffer is full.
	hub.Broadcast("event_1", []byte("fresh"))

	if got := <-slow.send; string(got) != "stale" {
		t.Fatalf("buffered message was %s", got)
	}
	select {
	case got := <-slow.send:
		t.Fatalf("full client still received %s", got)
	default:
	}
}

type stubEvents struct {
	available map[string]int
}

func (s *stubEvents) GetByID(_ context.Context, id string) (*model.Event, error) {
	avail, ok := s.available[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.Event{
		ID:             id,
		Title:          "Test Event",
		TotalSeats:     100,
		AvailableSeats: avail,
		Price:          decimal.NewFromInt(50),
	}, nil
}

type stubLocked map[string]int

func (s stubLocked) LockedTotal(eventID string) int {
	return s[eventID]
}

func TestBroadcasterPublish(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	viewer := testClient("viewer")
	hub.Join("event_ev-1", viewer)

	t.Run("reports effective availability", func(t *testing.T) {
		b := NewBroadcaster(&stubEvents{available: map[string]int{"ev-1": 10}}, stubLocked{"ev-1": 4}, hub, zerolog.Nop())
		b.Publish(context.Background(), "ev-1")

		var update SeatUpdate
		select {
		case msg := <-viewer.send:
			if err := json.Unmarshal(msg, &update); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
		default:
			t.Fatal("no broadcast received")
		}

		want := SeatUpdate{Type: TypeSeatUpdate, ResourceID: "ev-1", AvailableSeats: 6, LockedSeats: 4, BaseAvailableSeats: 10}
		if update != want {
			t.Fatalf("update = %+v, want %+v", update, want)
		}
	})

	t.Run("clamps effective availability at zero", func(t *testing.T) {
		b := NewBroadcaster(&stubEvents{available: map[string]int{"ev-1": 3}}, stubLocked{"ev-1": 5}, hub, zerolog.Nop())
		b.Publish(context.Background(), "ev-1")

		var update SeatUpdate
		if err := json.Unmarshal(<-viewer.send, &update); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if update.AvailableSeats != 0 || update.LockedSeats != 5 || update.BaseAvailableSeats != 3 {
			t.Fatalf("update = %+v", update)
		}
	})

	t.Run("missing event publishes nothing", func(t *testing.T) {
		b := NewBroadcaster(&stubEvents{available: map[string]int{}}, stubLocked{}, hub, zerolog.Nop())
		b.Publish(context.Background(), "ghost")

		select {
		case msg := <-viewer.send:
			t.Fatalf("unexpected broadcast %s", msg)
		default:
		}
	})
}

func TestSweepEvictionBroadcast(t *testing.T) {
	clk := clock.NewMock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	locks := seatlock.NewManager(seatlock.Config{TTL: time.Minute}, clk, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go locks.Run(ctx)

	hub := NewHub(zerolog.Nop())
	viewer := testClient("viewer")
	hub.Join("event_ev-1", viewer)

	b := NewBroadcaster(&stubEvents{available: map[string]int{"ev-1": 10}}, locks, hub, zerolog.Nop())

	if _, err := locks.Acquire("ev-1", "lock-a", 2, "conn-1", 10); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := locks.Acquire("ev-1", "lock-b", 3, "conn-2", 10); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	clk.Advance(2 * time.Minute)
	locks.Sweep()

	// Publish each eviction notification the way the process pump does.
	draining := true
	for draining {
		select {
		case id := <-locks.Evictions():
			b.Publish(context.Background(), id)
		default:
			draining = false
		}
	}

	var update SeatUpdate
	select {
	case msg := <-viewer.send:
		if err := json.Unmarshal(msg, &update); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
	default:
		t.Fatal("no broadcast after sweep")
	}
	if update.ResourceID != "ev-1" || update.LockedSeats != 0 || update.AvailableSeats != 10 {
		t.Fatalf("update = %+v", update)
	}

	// Both evicted locks belong to one event: exactly one broadcast.
	select {
	case msg := <-viewer.send:
		t.Fatalf("extra broadcast %s", msg)
	default:
	}
}
