package chatclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"chat-app/internal/ws"
)

func TestDispatchRoutesToHandler(t *testing.T) {
	d := NewDispatcher()

	var got json.RawMessage
	d.On(ws.EventNewMessage, func(data json.RawMessage) {
		got = data
	})

	d.Dispatch([]byte(`{"type":"newMessage","data":{"id":"m1"}}`))
	assert.JSONEq(t, `{"id":"m1"}`, string(got))
}

func TestDispatchWithoutHandlerIsSilent(t *testing.T) {
	d := NewDispatcher()
	assert.NotPanics(t, func() {
		d.Dispatch([]byte(`{"type":"newMessage","data":{}}`))
		d.Dispatch([]byte(`garbage`))
	})
}

func TestOffIsIdempotent(t *testing.T) {
	d := NewDispatcher()

	calls := 0
	d.On(ws.EventNewMessage, func(json.RawMessage) { calls++ })

	d.Off(ws.EventNewMessage)
	d.Off(ws.EventNewMessage)
	d.Off(ws.EventProfilePicUpdate)

	d.Dispatch([]byte(`{"type":"newMessage","data":{}}`))
	assert.Zero(t, calls)
}

func TestOnReplacesHandler(t *testing.T) {
	d := NewDispatcher()

	first, second := 0, 0
	d.On(ws.EventNewMessage, func(json.RawMessage) { first++ })
	d.On(ws.EventNewMessage, func(json.RawMessage) { second++ })

	d.Dispatch([]byte(`{"type":"newMessage","data":{}}`))
	assert.Zero(t, first)
	assert.Equal(t, 1, second)
}
