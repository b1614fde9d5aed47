// Package chatclient is the consuming side of the push protocol: it attaches
// per-event handlers to an inbound frame stream and keeps the local chat
// state (selected peer, messages, unread counts, presence) in sync. It is
// used by bots, integration tests and terminal clients.
package chatclient

import (
	"encoding/json"
	"log/slog"
	"sync"

	"chat-app/internal/ws"
)

// Handler consumes the raw payload of one event.
type Handler func(data json.RawMessage)

// Dispatcher routes inbound frames to at most one handler per event type,
// mirroring the socket.on/socket.off surface of the server's protocol.
// Off is idempotent and safe to call while Dispatch runs concurrently.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[ws.EventType]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[ws.EventType]Handler),
	}
}

// On installs the handler for an event type, replacing any previous one.
func (d *Dispatcher) On(t ws.EventType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = h
}

// Off removes the handler for an event type. Removing a handler that is not
// installed is a no-op.
func (d *Dispatcher) Off(t ws.EventType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, t)
}

// Dispatch decodes one inbound frame and invokes its handler, if any.
// Frames with no handler installed are dropped silently.
func (d *Dispatcher) Dispatch(frame []byte) {
	evt, err := ws.DecodeEvent(frame)
	if err != nil {
		slog.Debug("dropping undecodable frame", "error", err)
		return
	}

	d.mu.RLock()
	handler, ok := d.handlers[evt.Type]
	d.mu.RUnlock()
	if !ok {
		return
	}
	handler(evt.Data)
}
