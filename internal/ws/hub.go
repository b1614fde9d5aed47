package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var ErrClientDisconnected = errors.New("client disconnected")

// directChannelPrefix is the redis pub/sub namespace used to hand routed
// events to whichever instance holds the recipient's connection.
const directChannelPrefix = "chat:direct:"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, implement proper origin checking
		return true
	},
}

// Hub owns the connection registry and routes events to live connections.
//
// It is the single shared component between all connection goroutines: the
// lifecycle loop processes register/unregister transitions, Deliver routes a
// domain event to its one addressed recipient, and broadcastPresence fans the
// current roster out to every connected client after each membership change.
type Hub struct {
	registry *Registry

	// All live transport sessions, identified or not.
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Optional redis bridge for multi-instance delivery.
	rdb    *redis.Client
	pubsub *redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.RWMutex
}

// NewHub creates a hub. rdb may be nil, in which case routed events are
// delivered to local connections only.
func NewHub(rdb *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   NewRegistry(),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rdb:        rdb,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes connection lifecycle transitions until Stop is called.
func (h *Hub) Run() {
	if h.rdb != nil {
		go h.redisListener()
	}

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.ctx.Done():
			slog.Info("websocket hub shutting down")
			return
		}
	}
}

// Stop cancels the lifecycle loop and the redis listener.
func (h *Hub) Stop() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}

// registerClient adds the connection to the live set and, when it carries a
// user id, binds it in the registry and re-broadcasts presence. Anonymous
// connections stay invisible to presence and routing.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	if !client.IsIdentified() {
		slog.Info("anonymous client connected", "clientID", client.id)
		return
	}

	client.epoch = h.registry.Register(client.userID, client)
	slog.Info("client registered", "clientID", client.id, "userID", client.userID)

	h.broadcastPresence()
}

// unregisterClient removes the connection. The registry removal is
// conditional on the epoch so a disconnect that lost a reconnect race does
// not evict the newer connection; presence is only re-broadcast when the
// roster actually changed.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	h.mu.Unlock()

	client.close()

	if !client.IsIdentified() {
		slog.Info("anonymous client disconnected", "clientID", client.id)
		return
	}

	if h.registry.Unregister(client.userID, client.epoch) {
		slog.Info("client unregistered", "clientID", client.id, "userID", client.userID)
		h.broadcastPresence()
	} else {
		slog.Debug("stale disconnect ignored", "clientID", client.id, "userID", client.userID)
	}
}

// Deliver routes an event to the one addressed recipient. A recipient with no
// live connection is not an error: the persisted record is the source of
// truth and the push is best-effort. With a redis bridge configured, a local
// miss is republished so another instance holding the connection can deliver.
func (h *Hub) Deliver(recipientID string, evt Event) {
	client, ok := h.registry.Lookup(recipientID)
	if !ok {
		if h.rdb != nil {
			h.publishDirect(recipientID, evt)
			return
		}
		slog.Debug("recipient not connected, dropping event", "recipientID", recipientID, "type", evt.Type)
		return
	}

	if err := client.Send(evt); err != nil {
		// Racing against a disconnect; the registry catches up via unregister.
		slog.Debug("delivery failed", "recipientID", recipientID, "type", evt.Type, "error", err)
	}
}

// BroadcastAll pushes an event to every live connection, identified or not.
func (h *Hub) BroadcastAll(evt Event) {
	frame, err := evt.Encode()
	if err != nil {
		slog.Error("encoding broadcast event", "type", evt.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if err := client.enqueue(frame); err != nil {
			slog.Debug("broadcast send failed", "clientID", client.id, "error", err)
		}
	}
}

// BroadcastExcept pushes an event to every live connection except sender.
// Used for the profilePicUpdate relay, where the originator already knows.
func (h *Hub) BroadcastExcept(sender *Client, evt Event) {
	frame, err := evt.Encode()
	if err != nil {
		slog.Error("encoding broadcast event", "type", evt.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client == sender {
			continue
		}
		if err := client.enqueue(frame); err != nil {
			slog.Debug("broadcast send failed", "clientID", client.id, "error", err)
		}
	}
}

// BroadcastProfilePic notifies every other client that a user's avatar
// changed, so rosters and open conversation headers update without a
// refetch. The user's own connection, if any, is excluded.
func (h *Hub) BroadcastProfilePic(userID, newProfilePic string) {
	evt, err := NewProfilePicUpdateEvent(userID, newProfilePic)
	if err != nil {
		slog.Error("building profilePicUpdate event", "error", err)
		return
	}

	var exclude *Client
	if client, ok := h.registry.Lookup(userID); ok {
		exclude = client
	}
	h.BroadcastExcept(exclude, evt)
}

// broadcastPresence recomputes the roster and pushes the full set to every
// connected client. No diffing: each membership change re-sends everything.
func (h *Hub) broadcastPresence() {
	evt, err := NewOnlineUsersEvent(h.registry.Snapshot())
	if err != nil {
		slog.Error("building presence event", "error", err)
		return
	}
	h.BroadcastAll(evt)
}

func (h *Hub) publishDirect(recipientID string, evt Event) {
	frame, err := evt.Encode()
	if err != nil {
		slog.Error("encoding event for redis", "type", evt.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()
	if err := h.rdb.Publish(ctx, directChannelPrefix+recipientID, frame).Err(); err != nil {
		slog.Error("redis publish failed", "recipientID", recipientID, "error", err)
	}
}

// redisListener delivers events published by other instances to recipients
// connected locally. Events for users connected elsewhere are ignored here.
func (h *Hub) redisListener() {
	h.pubsub = h.rdb.PSubscribe(h.ctx, directChannelPrefix+"*")
	defer h.pubsub.Close()

	for msg := range h.pubsub.Channel() {
		recipientID := strings.TrimPrefix(msg.Channel, directChannelPrefix)
		client, ok := h.registry.Lookup(recipientID)
		if !ok {
			continue
		}
		if err := client.enqueue([]byte(msg.Payload)); err != nil {
			slog.Debug("redis-bridged delivery failed", "recipientID", recipientID, "error", err)
		}
	}
}

// ServeWS upgrades the HTTP request and hands the connection to the hub.
// userID comes from handshake metadata and may be empty; the connection is
// then accepted for transport but excluded from presence and routing.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "userID", userID, "error", err)
		return
	}

	client := NewClient(hub, conn, userID)
	slog.Info("websocket connection established", "clientID", client.id, "userID", userID)

	select {
	case hub.register <- client:
	case <-time.After(5 * time.Second):
		slog.Error("timeout registering client", "clientID", client.id)
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
