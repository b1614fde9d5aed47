package chatclient

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"chat-app/internal/ws"
)

// Store holds the chat state one connected client renders: the selected
// peer's conversation, per-peer unread counters, the online roster and a
// profile picture cache.
type Store struct {
	mu           sync.Mutex
	selectedUser string
	messages     []ws.MessagePayload
	unread       map[string]int
	online       map[string]bool
	profilePics  map[string]string
}

func NewStore() *Store {
	return &Store{
		unread:      make(map[string]int),
		online:      make(map[string]bool),
		profilePics: make(map[string]string),
	}
}

// SelectUser switches the open conversation. The unread counter for the
// newly selected peer resets; the message sequence clears and is expected to
// be refilled from the REST history fetch via SetMessages.
func (s *Store) SelectUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selectedUser = userID
	s.messages = nil
	if userID != "" {
		s.unread[userID] = 0
	}
}

func (s *Store) SelectedUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedUser
}

// SetMessages replaces the conversation history for the selected peer.
func (s *Store) SetMessages(msgs []ws.MessagePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append([]ws.MessagePayload(nil), msgs...)
}

func (s *Store) Messages() []ws.MessagePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ws.MessagePayload(nil), s.messages...)
}

func (s *Store) Unread(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[userID]
}

func (s *Store) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userID]
}

// OnlineUsers returns the current roster, sorted.
func (s *Store) OnlineUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.online))
	for userID := range s.online {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// ProfilePic returns the cached picture URL for a user, if one was pushed.
func (s *Store) ProfilePic(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	url, ok := s.profilePics[userID]
	return url, ok
}

// handleNewMessage applies one pushed message: append when it belongs to the
// open conversation, otherwise bump the sender's unread counter and leave the
// sequence alone (it is fetched on next selection).
func (s *Store) handleNewMessage(msg ws.MessagePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selectedUser != "" && msg.SenderID == s.selectedUser {
		s.messages = append(s.messages, msg)
		return
	}
	s.unread[msg.SenderID]++
}

func (s *Store) handleProfilePicUpdate(update ws.ProfilePicPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profilePics[update.UserID] = update.NewProfilePic
}

// handleOnlineUsers replaces the roster wholesale; the server always pushes
// the full set.
func (s *Store) handleOnlineUsers(users []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.online = make(map[string]bool, len(users))
	for _, userID := range users {
		s.online[userID] = true
	}
}

// SubscribeToNewMessages attaches the newMessage handler.
func (s *Store) SubscribeToNewMessages(d *Dispatcher) {
	d.On(ws.EventNewMessage, func(data json.RawMessage) {
		var msg ws.MessagePayload
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("ignoring malformed newMessage", "error", err)
			return
		}
		s.handleNewMessage(msg)
	})
}

func (s *Store) UnsubscribeFromNewMessages(d *Dispatcher) {
	d.Off(ws.EventNewMessage)
}

// SubscribeToProfileUpdates attaches the profilePicUpdate handler.
func (s *Store) SubscribeToProfileUpdates(d *Dispatcher) {
	d.On(ws.EventProfilePicUpdate, func(data json.RawMessage) {
		var update ws.ProfilePicPayload
		if err := json.Unmarshal(data, &update); err != nil {
			slog.Debug("ignoring malformed profilePicUpdate", "error", err)
			return
		}
		s.handleProfilePicUpdate(update)
	})
}

func (s *Store) UnsubscribeFromProfileUpdates(d *Dispatcher) {
	d.Off(ws.EventProfilePicUpdate)
}

// SubscribeToOnlineUsers attaches the presence roster handler.
func (s *Store) SubscribeToOnlineUsers(d *Dispatcher) {
	d.On(ws.EventOnlineUsers, func(data json.RawMessage) {
		var users []string
		if err := json.Unmarshal(data, &users); err != nil {
			slog.Debug("ignoring malformed roster", "error", err)
			return
		}
		s.handleOnlineUsers(users)
	})
}

func (s *Store) UnsubscribeFromOnlineUsers(d *Dispatcher) {
	d.Off(ws.EventOnlineUsers)
}

// Attach installs all three handlers.
func (s *Store) Attach(d *Dispatcher) {
	s.SubscribeToNewMessages(d)
	s.SubscribeToProfileUpdates(d)
	s.SubscribeToOnlineUsers(d)
}

// Detach removes all three handlers. It must run whenever the owning view is
// torn down; calling it more than once is safe.
func (s *Store) Detach(d *Dispatcher) {
	s.UnsubscribeFromNewMessages(d)
	s.UnsubscribeFromProfileUpdates(d)
	s.UnsubscribeFromOnlineUsers(d)
}
