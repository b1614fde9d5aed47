package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (m *mockConn) writtenEvents(t *testing.T) []Event {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]Event, 0, len(m.written))
	for _, frame := range m.written {
		evt, err := DecodeEvent(frame)
		require.NoError(t, err)
		events = append(events, evt)
	}
	return events
}

func startClient(h *Hub, conn *mockConn, userID string) *Client {
	client := NewClient(h, conn, userID)
	h.register <- client
	go client.writePump()
	go client.readPump()
	return client
}

func TestProfileUpdateRelayedToOtherClients(t *testing.T) {
	h := NewHub(nil)
	go h.Run()
	defer h.Stop()

	aliceConn := newMockConn()
	bobConn := newMockConn()
	startClient(h, aliceConn, "alice")
	startClient(h, bobConn, "bob")
	defer aliceConn.Close()
	defer bobConn.Close()

	require.Eventually(t, func() bool {
		return len(h.registry.Snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	frame, err := json.Marshal(Event{
		Type: EventProfileUpdate,
		Data: json.RawMessage(`{"userId":"alice","newProfilePic":"http://img/new.png"}`),
	})
	require.NoError(t, err)
	aliceConn.frames <- frame

	require.Eventually(t, func() bool {
		return len(eventsOfType(bobConn.writtenEvents(t), EventProfilePicUpdate)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The sender must not receive its own relay.
	assert.Empty(t, eventsOfType(aliceConn.writtenEvents(t), EventProfilePicUpdate))

	updates := eventsOfType(bobConn.writtenEvents(t), EventProfilePicUpdate)
	var payload ProfilePicPayload
	require.NoError(t, json.Unmarshal(updates[0].Data, &payload))
	assert.Equal(t, "alice", payload.UserID)
	assert.Equal(t, "http://img/new.png", payload.NewProfilePic)
}

func TestMalformedInboundFrameIsIgnored(t *testing.T) {
	h := NewHub(nil)
	go h.Run()
	defer h.Stop()

	aliceConn := newMockConn()
	bobConn := newMockConn()
	startClient(h, aliceConn, "alice")
	startClient(h, bobConn, "bob")
	defer aliceConn.Close()
	defer bobConn.Close()

	require.Eventually(t, func() bool {
		return len(h.registry.Snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	aliceConn.frames <- []byte(`{not json`)
	aliceConn.frames <- []byte(`{"type":"unknownEvent","data":{}}`)

	// The connection survives garbage and still relays afterwards.
	frame, err := json.Marshal(Event{
		Type: EventProfileUpdate,
		Data: json.RawMessage(`{"userId":"alice","newProfilePic":"p"}`),
	})
	require.NoError(t, err)
	aliceConn.frames <- frame

	require.Eventually(t, func() bool {
		return len(eventsOfType(bobConn.writtenEvents(t), EventProfilePicUpdate)) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDisconnectTriggersPresenceRebroadcast(t *testing.T) {
	h := NewHub(nil)
	go h.Run()
	defer h.Stop()

	aliceConn := newMockConn()
	bobConn := newMockConn()
	startClient(h, aliceConn, "alice")
	startClient(h, bobConn, "bob")
	defer bobConn.Close()

	require.Eventually(t, func() bool {
		return len(h.registry.Snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	aliceConn.Close()

	require.Eventually(t, func() bool {
		rosters := eventsOfType(bobConn.writtenEvents(t), EventOnlineUsers)
		if len(rosters) == 0 {
			return false
		}
		last := rosters[len(rosters)-1]
		var roster []string
		if err := json.Unmarshal(last.Data, &roster); err != nil {
			return false
		}
		return len(roster) == 1 && roster[0] == "bob"
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := h.registry.Lookup("alice")
	assert.False(t, ok)
}

func TestPerRecipientDeliveryOrderPreserved(t *testing.T) {
	h := NewHub(nil)
	go h.Run()
	defer h.Stop()

	bobConn := newMockConn()
	startClient(h, bobConn, "bob")
	defer bobConn.Close()

	ids := []string{"m1", "m2", "m3", "m4", "m5"}
	for _, id := range ids {
		evt, err := NewMessageEvent(MessagePayload{ID: id, SenderID: "alice", ReceiverID: "bob"})
		require.NoError(t, err)
		h.Deliver("bob", evt)
	}

	require.Eventually(t, func() bool {
		return len(eventsOfType(bobConn.writtenEvents(t), EventNewMessage)) == len(ids)
	}, 2*time.Second, 10*time.Millisecond)

	var got []string
	for _, evt := range eventsOfType(bobConn.writtenEvents(t), EventNewMessage) {
		var payload MessagePayload
		require.NoError(t, json.Unmarshal(evt.Data, &payload))
		got = append(got, payload.ID)
	}
	assert.Equal(t, ids, got)
}
