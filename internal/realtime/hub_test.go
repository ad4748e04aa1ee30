package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
)

func TestHub_JoinLeaveUnregister(t *testing.T) {
	hub := NewHub(nil, nil)
	s := NewSession(4)

	assert.False(t, hub.Join(s, "room-1"), "unregistered sessions cannot join")

	hub.Register(s)
	hub.Register(s)
	assert.Equal(t, 1, hub.SessionCount())

	require.True(t, hub.Join(s, "room-1"))
	require.True(t, hub.Join(s, "room-2"))
	require.True(t, hub.Join(s, "room-1"))
	assert.Equal(t, 1, hub.RoomSize("room-1"))

	hub.Leave(s, "room-2")
	assert.Equal(t, 0, hub.RoomSize("room-2"))
	hub.Leave(s, "never-joined")

	hub.Unregister(s)
	hub.Unregister(s)
	assert.Equal(t, 0, hub.SessionCount())
	assert.Equal(t, 0, hub.RoomSize("room-1"))

	_, open := <-s.Send
	assert.False(t, open)
}

func TestHub_BroadcastIsScopedToRoom(t *testing.T) {
	hub := NewHub(nil, nil)
	a, b, outsider := NewSession(4), NewSession(4), NewSession(4)
	for _, s := range []*Session{a, b, outsider} {
		hub.Register(s)
	}
	hub.Join(a, "apt")
	hub.Join(b, "apt")
	hub.Join(outsider, "other")

	assert.Equal(t, 2, hub.Broadcast("apt", []byte(`{"event":"x"}`)))
	assert.Equal(t, 0, hub.Broadcast("empty", []byte(`{}`)))

	for _, s := range []*Session{a, b} {
		select {
		case msg := <-s.Send:
			assert.JSONEq(t, `{"event":"x"}`, string(msg))
		default:
			t.Fatal("member did not receive frame")
		}
	}
	select {
	case <-outsider.Send:
		t.Fatal("outsider received frame")
	default:
	}
}

func TestHub_BroadcastDropsForFullBuffers(t *testing.T) {
	hub := NewHub(nil, nil)
	slow, fast := NewSession(1), NewSession(4)
	hub.Register(slow)
	hub.Register(fast)
	hub.Join(slow, "apt")
	hub.Join(fast, "apt")

	assert.Equal(t, 2, hub.Broadcast("apt", []byte("1")))

	done := make(chan int)
	go func() { done <- hub.Broadcast("apt", []byte("2")) }()
	select {
	case n := <-done:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full buffer")
	}
	assert.Len(t, fast.Send, 2)
	assert.Len(t, slow.Send, 1)
}

func TestHub_PublishNewMessage(t *testing.T) {
	hub := NewHub(nil, nil)
	s := NewSession(1)
	hub.Register(s)

	msg := &model.Message{
		ID:            uuid.New(),
		AppointmentID: uuid.New(),
		SenderName:    "Dr. Heart",
		SenderRole:    model.RoleDoctor,
		Text:          "hello",
		Timestamp:     time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	room := msg.AppointmentID.String()
	hub.Join(s, room)

	require.NoError(t, hub.Publish(context.Background(), room, NewMessageEvent(msg)))

	var got struct {
		Event string            `json:"event"`
		Data  NewMessagePayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(<-s.Send, &got))
	assert.Equal(t, EventNewMessage, got.Event)
	assert.Equal(t, msg.ID.String(), got.Data.ID)
	assert.Equal(t, room, got.Data.AppointmentID)
	assert.Equal(t, "doctor", got.Data.SenderRole)
	assert.Equal(t, "hello", got.Data.Message)
	assert.Equal(t, "2025-03-01T09:30:00Z", got.Data.Timestamp)
}
