package realtime

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connected_clients",
		Help: "Number of currently connected websocket clients.",
	})

	broadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_broadcasts_total",
		Help: "Seat-update broadcasts emitted.",
	})
)

// Hub groups connections into per-resource rooms and fans broadcasts
// out to them. Membership is independent state with no cross-call
// invariants, so a mutex-guarded map suffices here — the lock table is
// the component with the serialized-owner requirement.
type Hub struct {
	log zerolog.Logger

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// NewHub constructs an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:   log.With().Str("component", "hub").Logger(),
		rooms: make(map[string]map[*Client]struct{}),
	}
}

// Join adds the client to a room. Joining twice is a no-op.
func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

// Leave removes the client from a room.
func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(room, c)
}

// RemoveClient removes the client from every room it joined.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.rooms {
		h.drop(room, c)
	}
}

// drop must be called with mu held.
func (h *Hub) drop(room string, c *Client) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast sends msg to every member of the room. A client whose send
// buffer is full misses this message rather than stalling the room; it
// resyncs on its next operation or join.
func (h *Hub) Broadcast(room string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Str("room", room).Str("client", c.id).Msg("dropping broadcast: send buffer full")
		}
	}
	broadcastsTotal.Inc()
}

// RoomSize reports the current membership of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
