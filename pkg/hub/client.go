package hub

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait bounds a single frame write. A preview frame that cannot be
	// written in this time is stale and the viewer is dropped.
	writeWait = 2 * time.Second

	// pongWait is how long a viewer may stay silent before it is dropped.
	pongWait = 30 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// readLimit caps inbound messages. Viewers only send control frames.
	readLimit = 512

	// sendBuffer is the per-viewer queue depth in messages. Each preview
	// frame is two messages (metadata then JPEG), so a viewer may fall
	// eight frames behind before it is evicted.
	sendBuffer = 16
)

var clientIDs atomic.Uint64

// Client is one preview viewer connected over a websocket. The hub owns its
// send queue; the client owns the connection.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient registers a viewer with the hub. If the hub has already stopped
// the client is created closed and Run returns after sending a close frame.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := newClient(hub, conn)
	if !hub.join(c) {
		close(c.send)
	}
	return c
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDs.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
}

// ID identifies the viewer in logs.
func (c *Client) ID() uint64 {
	return c.id
}

// Run serves the viewer until the connection drops or the hub stops. It
// blocks, so call it from the websocket handler.
func (c *Client) Run() {
	go c.writeLoop()
	c.readLoop()
}

// readLoop discards viewer input. Reading is still needed to see pongs and
// the peer's close.
func (c *Client) readLoop() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("viewer read failed", "client", c.id, "error", err)
			}
			return
		}
	}
}

// writeLoop is the only writer on the connection.
func (c *Client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msg.Type.wsType(), msg.Data); err != nil {
				c.hub.logger.Debug("viewer write failed", "client", c.id, "message", msg.Type, "error", err)
				return
			}

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
