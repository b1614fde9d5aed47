package ws

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Outbound queue depth per connection
	sendBufferSize = 256
)

// Conn is the subset of *websocket.Conn the client needs; it is an interface
// so tests can substitute a recording connection.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Client is one live transport session. userID is empty for connections that
// did not supply an identity at handshake time; such clients are never
// registered and never addressed, but still receive fan-out-to-all frames.
type Client struct {
	id     string
	userID string
	epoch  uint64
	hub    *Hub
	conn   Conn
	send   chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	closed int32
}

func NewClient(hub *Hub, conn Conn, userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:     uuid.New().String(),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) UserID() string {
	return c.userID
}

// IsIdentified reports whether the handshake carried a user id.
func (c *Client) IsIdentified() bool {
	return c.userID != ""
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *Client) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.cancel()
	}
}

// enqueue places a pre-encoded frame on the outbound queue. A full queue or a
// closed client counts as a delivery failure; the caller treats it as a drop.
// The send channel is never closed; writePump exits via the client context,
// so a delivery racing a disconnect can at worst enqueue a frame nobody
// drains.
func (c *Client) enqueue(frame []byte) error {
	if c.isClosed() {
		return ErrClientDisconnected
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.ctx.Done():
		return ErrClientDisconnected
	default:
		// Slow consumer: drop the connection rather than buffer unboundedly.
		slog.Warn("send buffer full, closing client", "clientID", c.id, "userID", c.userID)
		c.close()
		return ErrClientDisconnected
	}
}

// Send encodes and enqueues an event for this connection.
func (c *Client) Send(evt Event) error {
	frame, err := evt.Encode()
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

// readPump consumes inbound frames until the transport closes, then tears the
// connection down through the hub. The only inbound event acted on is
// profileUpdate, which is relayed to every other connected client.
func (c *Client) readPump() {
	defer func() {
		c.close()
		select {
		case c.hub.unregister <- c:
		case <-time.After(5 * time.Second):
			slog.Warn("timeout sending unregister request", "clientID", c.id, "userID", c.userID)
		}
		if err := c.conn.Close(); err != nil {
			slog.Debug("closing connection", "clientID", c.id, "error", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.isClosed() {
			return websocket.ErrCloseSent
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("websocket read error", "clientID", c.id, "userID", c.userID, "error", err)
			} else {
				slog.Debug("websocket closed", "clientID", c.id, "userID", c.userID)
			}
			return
		}

		evt, err := DecodeEvent(raw)
		if err != nil {
			slog.Debug("ignoring malformed frame", "clientID", c.id, "error", err)
			continue
		}
		c.handleInbound(evt)
	}
}

func (c *Client) handleInbound(evt Event) {
	switch evt.Type {
	case EventProfileUpdate:
		var payload ProfilePicPayload
		if err := decodePayload(evt.Data, &payload); err != nil {
			slog.Debug("ignoring malformed profileUpdate", "clientID", c.id, "error", err)
			return
		}
		relay, err := NewProfilePicUpdateEvent(payload.UserID, payload.NewProfilePic)
		if err != nil {
			slog.Error("building profilePicUpdate relay", "error", err)
			return
		}
		c.hub.BroadcastExcept(c, relay)
	default:
		slog.Debug("ignoring inbound event", "clientID", c.id, "type", evt.Type)
	}
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings. Exactly one writePump runs per connection, so frames for
// this recipient go out in enqueue order.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Debug("websocket write error", "clientID", c.id, "userID", c.userID, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("ping failed", "clientID", c.id, "userID", c.userID, "error", err)
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
