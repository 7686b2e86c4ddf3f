package realtime

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/sharmaishaan04/Event-Booking-System/internal/model"
)

// EventFinder reads the persisted state of one event.
type EventFinder interface {
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// LockedCounter reports the seats currently held by active locks.
type LockedCounter interface {
	LockedTotal(eventID string) int
}

// roomName returns the room key for an event's subscribers.
func roomName(eventID string) string {
	return "event_" + eventID
}

// Broadcaster recomputes an event's effective availability and pushes a
// seat_update to every subscriber of its room. Failures are logged, not
// returned: a missed update is repaired by the next one.
type Broadcaster struct {
	events EventFinder
	locks  LockedCounter
	hub    *Hub
	log    zerolog.Logger
}

// NewBroadcaster constructs a Broadcaster.
func NewBroadcaster(events EventFinder, locks LockedCounter, hub *Hub, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		events: events,
		locks:  locks,
		hub:    hub,
		log:    log.With().Str("component", "broadcaster").Logger(),
	}
}

// Publish emits the current availability of the event to its room.
func (b *Broadcaster) Publish(ctx context.Context, eventID string) {
	event, err := b.events.GetByID(ctx, eventID)
	if err != nil {
		b.log.Warn().Err(err).Str("event_id", eventID).Msg("availability broadcast skipped")
		return
	}

	locked := b.locks.LockedTotal(eventID)
	available := event.AvailableSeats - locked
	if available < 0 {
		available = 0
	}

	msg, err := json.Marshal(SeatUpdate{
		Type:               TypeSeatUpdate,
		ResourceID:         eventID,
		AvailableSeats:     available,
		LockedSeats:        locked,
		BaseAvailableSeats: event.AvailableSeats,
	})
	if err != nil {
		b.log.Error().Err(err).Msg("marshal seat_update")
		return
	}
	b.hub.Broadcast(roomName(eventID), msg)
}
