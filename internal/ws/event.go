package ws

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names the wire-level event kinds exchanged with clients.
type EventType string

const (
	// Server -> client events
	EventOnlineUsers      EventType = "getOnlineUsers"
	EventNewMessage       EventType = "newMessage"
	EventProfilePicUpdate EventType = "profilePicUpdate"

	// Client -> server events
	EventProfileUpdate EventType = "profileUpdate"
)

// IsValid checks if the EventType is a known wire event.
func (t EventType) IsValid() bool {
	switch t {
	case EventOnlineUsers, EventNewMessage, EventProfilePicUpdate, EventProfileUpdate:
		return true
	default:
		return false
	}
}

func (t EventType) String() string {
	return string(t)
}

// Event is the envelope for every frame pushed over a connection.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MessagePayload is the full message record pushed as a newMessage event.
type MessagePayload struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ProfilePicPayload is the payload for both profileUpdate (inbound)
// and profilePicUpdate (outbound relay).
type ProfilePicPayload struct {
	UserID        string `json:"userId"`
	NewProfilePic string `json:"newProfilePic"`
}

// OnlineUsersPayload is the full roster of connected user ids.
type OnlineUsersPayload []string

// NewEvent builds an envelope for the given type and payload.
func NewEvent(t EventType, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Event{Type: t, Data: data}, nil
}

// NewMessageEvent wraps a persisted message record for push delivery.
func NewMessageEvent(msg MessagePayload) (Event, error) {
	return NewEvent(EventNewMessage, msg)
}

// NewOnlineUsersEvent wraps a presence snapshot.
func NewOnlineUsersEvent(users []string) (Event, error) {
	if users == nil {
		users = []string{}
	}
	return NewEvent(EventOnlineUsers, users)
}

// NewProfilePicUpdateEvent wraps a profile picture change notification.
func NewProfilePicUpdateEvent(userID, newProfilePic string) (Event, error) {
	return NewEvent(EventProfilePicUpdate, ProfilePicPayload{
		UserID:        userID,
		NewProfilePic: newProfilePic,
	})
}

// Encode serializes the full envelope for the wire.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// decodePayload parses an envelope's raw payload into a typed struct.
func decodePayload(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// DecodeEvent parses a raw frame into an envelope, leaving the payload raw.
func DecodeEvent(raw []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if evt.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}
	return evt, nil
}
