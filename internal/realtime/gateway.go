package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sharmaishaan04/Event-Booking-System/internal/model"
	"github.com/sharmaishaan04/Event-Booking-System/internal/seatlock"
)

// opTimeout bounds the store reads a single request message may perform.
const opTimeout = 10 * time.Second

// Confirmer converts an active lock into a durable booking.
type Confirmer interface {
	ConfirmLock(ctx context.Context, eventID, lockID, owner string, details model.BookingDetails) (*model.Booking, error)
}

// Gateway upgrades HTTP requests to websocket connections and speaks
// the real-time seat protocol: room membership, seat locking, and
// booking confirmation. One Client per connection; the client's id is
// the owner identity for every lock it takes.
type Gateway struct {
	baseCtx  context.Context
	hub      *Hub
	events   EventFinder
	locks    *seatlock.Manager
	engine   Confirmer
	bcast    *Broadcaster
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewGateway constructs a Gateway. baseCtx scopes the work done on
// behalf of connections and should be the process context.
func NewGateway(baseCtx context.Context, hub *Hub, events EventFinder, locks *seatlock.Manager, engine Confirmer, bcast *Broadcaster, log zerolog.Logger) *Gateway {
	return &Gateway{
		baseCtx: baseCtx,
		hub:     hub,
		events:  events,
		locks:   locks,
		engine:  engine,
		bcast:   bcast,
		log:     log.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The HTTP layer already applies permissive CORS; the
			// booking demo accepts any origin here too.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeWS handles GET /ws.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &Client{
		id:   uuid.New().String(),
		conn: conn,
		gw:   g,
		send: make(chan []byte, sendBufferSize),
	}
	connectedClients.Inc()
	g.log.Debug().Str("client", c.id).Msg("socket connected")

	go c.writePump()
	go c.readPump()
}

// dispatch routes one inbound frame. Malformed frames get an error
// result when they carry enough structure to reply to; they never
// terminate the connection.
func (g *Gateway) dispatch(c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		g.reply(c, Result{Type: "error", Success: false, Error: errInvalidPayload})
		return
	}

	ctx, cancel := context.WithTimeout(g.baseCtx, opTimeout)
	defer cancel()

	switch env.Type {
	case TypeJoinRoom:
		g.handleJoin(ctx, c, env)
	case TypeLeaveRoom:
		g.handleLeave(c, env)
	case TypeLockSeats:
		g.handleLock(ctx, c, env)
	case TypeRefresh:
		g.handleRefresh(c, env)
	case TypeRelease:
		g.handleRelease(ctx, c, env)
	case TypeConfirm:
		g.handleConfirm(ctx, c, env)
	default:
		g.reply(c, Result{Type: env.Type, RequestID: env.RequestID, Success: false, Error: errInvalidPayload})
	}
}

// disconnect runs once when a connection drops: the client leaves every
// room and every lock it owns is released, with one broadcast per
// affected event.
func (g *Gateway) disconnect(c *Client) {
	g.hub.RemoveClient(c)
	close(c.send)
	connectedClients.Dec()

	affected := g.locks.ReleaseOwner(c.id)
	if len(affected) > 0 {
		ctx, cancel := context.WithTimeout(g.baseCtx, opTimeout)
		defer cancel()
		for _, eventID := range affected {
			g.bcast.Publish(ctx, eventID)
		}
	}
	g.log.Debug().Str("client", c.id).Msg("socket disconnected")
}

func (g *Gateway) reply(c *Client, res Result) {
	msg, err := json.Marshal(res)
	if err != nil {
		g.log.Error().Err(err).Msg("marshal result")
		return
	}
	select {
	case c.send <- msg:
	default:
		g.log.Warn().Str("client", c.id).Msg("dropping reply: send buffer full")
	}
}

// handleJoin subscribes the connection to an event room and immediately
// publishes the current availability so a new viewer starts in sync.
func (g *Gateway) handleJoin(ctx context.Context, c *Client, env Envelope) {
	var p roomPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.ResourceID == "" {
		return
	}
	g.hub.Join(roomName(p.ResourceID), c)
	g.bcast.Publish(ctx, p.ResourceID)
}

func (g *Gateway) handleLeave(c *Client, env Envelope) {
	var p roomPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.ResourceID == "" {
		return
	}
	g.hub.Leave(roomName(p.ResourceID), c)
}

func (g *Gateway) handleLock(ctx context.Context, c *Client, env Envelope) {
	var p lockPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.ResourceID == "" || p.LockID == "" || p.Quantity <= 0 {
		g.reply(c, Result{Type: env.Type, RequestID: env.RequestID, Success: false, Error: errInvalidPayload})
		return
	}

	event, err := g.events.GetByID(ctx, p.ResourceID)
	if err != nil {
		g.reply(c, Result{Type: env.Type, RequestID: env.RequestID, Success: false, Error: errorMessage(err)})
		return
	}

	ttl, err := g.locks.Acquire(p.ResourceID, p.LockID, p.Quantity, c.id, event.AvailableSeats)
	if err != nil {
		res := Result{Type: env.Type, RequestID: env.RequestID, Success: false, Error: errorMessage(err)}
		var capErr *seatlock.CapacityError
		if errors.As(err, &capErr) {
			res.AvailableSeats = &capErr.Available
		}
		g.reply(c, res)
		return
	}

	g.reply(c, Result{
		Type:        env.Type,
		RequestID:   env.RequestID,
		Success:     true,
		LockID:      p.LockID,
		ExpiresInMs: ttl.Milliseconds(),
	})
	g.bcast.Publish(ctx, p.ResourceID)
}

// handleRefresh extends a lock's TTL. Quantity is unchanged, so no
// broadcast is needed.
func (g *Gateway) handleRefresh(c *Client, env Envelope) {
	var p lockRefPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.ResourceID == "" || p.LockID == "" {
		g.reply(c, Result{Type: env.Type, RequestID: env.RequestID, Success: false, Error: errInvalidPayload})
		return
	}

	ttl, err := g.locks.Refresh(p.ResourceID, p.LockID, c.id)
	if err != nil {
		g.reply(c, Result{Type: env.Type, RequestID: env.RequestID, Success: false, Error: errorMessage(err)})
		return
	}

	g.reply(c, Result{
		Type:        env.Type,
		RequestID:   env.RequestID,
		Success:     true,
		LockID:      p.LockID,
		ExpiresInMs: ttl.Milliseconds(),
	})
}

func (g *Gateway) handleRelease(ctx context.Context, c *Client, env Envelope) {
	var p lockRefPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.ResourceID == "" || p.LockID == "" {
		g.reply(c, Result{Type: env.Type, RequestID: env.RequestID, Success: false, Error: errInvalidPayload})
		return
	}

	if err := g.locks.Release(p.ResourceID, p.LockID, c.id); err != nil {
		g.reply(c, Result{Type: env.Type, RequestID: env.RequestID, Success: false, Error: errorMessage(err)})
		return
	}

	g.reply(c, Result{Type: env.Type, RequestID: env.RequestID, Success: true, Released: p.LockID})
	g.bcast.Publish(ctx, p.ResourceID)
}

func (g *Gateway) handleConfirm(ctx context.Context, c *Client, env Envelope) {
	var p confirmPayload
	if err := json.Unmarshal(env.Data, &p); err != nil ||
		p.ResourceID == "" || p.LockID == "" ||
		p.BookingData.Name == "" || p.BookingData.Email == "" || p.BookingData.Quantity <= 0 {
		g.reply(c, Result{Type: env.Type, RequestID: env.RequestID, Success: false, Error: errInvalidPayload})
		return
	}

	bkg, err := g.engine.ConfirmLock(ctx, p.ResourceID, p.LockID, c.id, p.BookingData)
	if err != nil {
		msg := errorMessage(err)
		var capErr *seatlock.CapacityError
		if errors.As(err, &capErr) {
			msg = errConfirmCap
		}
		g.reply(c, Result{Type: env.Type, RequestID: env.RequestID, Success: false, Error: msg})
		return
	}

	g.reply(c, Result{Type: env.Type, RequestID: env.RequestID, Success: true, Booking: bkg})
	g.bcast.Publish(ctx, p.ResourceID)
}
