package chatclient

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-app/internal/ws"
)

func frameFor(t *testing.T, typ ws.EventType, payload any) []byte {
	t.Helper()
	evt, err := ws.NewEvent(typ, payload)
	require.NoError(t, err)
	frame, err := evt.Encode()
	require.NoError(t, err)
	return frame
}

func messageFrom(t *testing.T, senderID, text string) []byte {
	t.Helper()
	return frameFor(t, ws.EventNewMessage, ws.MessagePayload{
		ID:         fmt.Sprintf("%s-%s", senderID, text),
		SenderID:   senderID,
		ReceiverID: "me",
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	})
}

func TestUnreadCountsForUnselectedPeer(t *testing.T) {
	d := NewDispatcher()
	s := NewStore()
	s.Attach(d)

	s.SelectUser("bob")

	d.Dispatch(messageFrom(t, "carol", "one"))
	d.Dispatch(messageFrom(t, "carol", "two"))

	assert.Equal(t, 2, s.Unread("carol"))
	assert.Empty(t, s.Messages())

	// Selecting carol resets her counter and leaves others alone.
	d.Dispatch(messageFrom(t, "dave", "hi"))
	s.SelectUser("carol")

	assert.Equal(t, 0, s.Unread("carol"))
	assert.Equal(t, 1, s.Unread("dave"))
}

func TestMessagesFromSelectedPeerAppend(t *testing.T) {
	d := NewDispatcher()
	s := NewStore()
	s.Attach(d)

	s.SelectUser("carol")
	s.SetMessages([]ws.MessagePayload{{ID: "old", SenderID: "carol", Text: "earlier"}})

	d.Dispatch(messageFrom(t, "carol", "now"))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "earlier", msgs[0].Text)
	assert.Equal(t, "now", msgs[1].Text)
	assert.Equal(t, 0, s.Unread("carol"))
}

func TestPresenceReplacedWholesale(t *testing.T) {
	d := NewDispatcher()
	s := NewStore()
	s.Attach(d)

	d.Dispatch(frameFor(t, ws.EventOnlineUsers, []string{"alice", "bob"}))
	assert.Equal(t, []string{"alice", "bob"}, s.OnlineUsers())
	assert.True(t, s.IsOnline("alice"))

	d.Dispatch(frameFor(t, ws.EventOnlineUsers, []string{"bob"}))
	assert.Equal(t, []string{"bob"}, s.OnlineUsers())
	assert.False(t, s.IsOnline("alice"))
}

func TestProfilePicCacheUpdated(t *testing.T) {
	d := NewDispatcher()
	s := NewStore()
	s.Attach(d)

	_, ok := s.ProfilePic("alice")
	assert.False(t, ok)

	d.Dispatch(frameFor(t, ws.EventProfilePicUpdate, ws.ProfilePicPayload{
		UserID:        "alice",
		NewProfilePic: "http://img/v2.png",
	}))

	url, ok := s.ProfilePic("alice")
	require.True(t, ok)
	assert.Equal(t, "http://img/v2.png", url)
}

func TestDetachIsIdempotent(t *testing.T) {
	d := NewDispatcher()
	s := NewStore()
	s.Attach(d)
	s.SelectUser("bob")

	s.Detach(d)
	assert.NotPanics(t, func() {
		s.Detach(d)
	})

	// Events arriving after teardown are not applied.
	d.Dispatch(messageFrom(t, "carol", "late"))
	assert.Equal(t, 0, s.Unread("carol"))
}

func TestReattachDoesNotDoubleApply(t *testing.T) {
	d := NewDispatcher()
	s := NewStore()

	// Attach twice without detaching: handlers replace, never stack.
	s.Attach(d)
	s.Attach(d)
	s.SelectUser("bob")

	d.Dispatch(messageFrom(t, "carol", "once"))
	assert.Equal(t, 1, s.Unread("carol"))
}

func TestConcurrentDispatchAndDetach(t *testing.T) {
	d := NewDispatcher()
	s := NewStore()
	s.Attach(d)
	s.SelectUser("bob")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				s.Detach(d)
			} else {
				d.Dispatch(messageFrom(t, "carol", fmt.Sprintf("n%d", i)))
			}
		}(i)
	}
	wg.Wait()
}
