package realtime

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the deadline for a single outbound write.
	writeWait = 10 * time.Second
	// pongWait is how long to keep a connection that stops answering pings.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds inbound frames; lock requests are tiny.
	maxMessageSize = 4096
	// sendBufferSize is the per-client outbound queue.
	sendBufferSize = 64
)

// Client is one websocket connection. Its id is the lock-ownership
// identity: every lock it acquires dies with it on disconnect.
type Client struct {
	id   string
	conn *websocket.Conn
	gw   *Gateway
	send chan []byte
}

// readPump consumes inbound frames and dispatches them until the
// connection drops, then triggers disconnect cleanup exactly once.
func (c *Client) readPump() {
	defer func() {
		c.gw.disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gw.log.Debug().Err(err).Str("client", c.id).Msg("websocket read error")
			}
			return
		}
		c.gw.dispatch(c, raw)
	}
}

// writePump serialises all writes to the connection and keeps it alive
// with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
