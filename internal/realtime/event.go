// Package realtime pushes chat events to websocket sessions grouped into
// per-appointment rooms.
package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
)

const (
	EventJoinRoom   = "join_room"
	EventLeaveRoom  = "leave_room"
	EventNewMessage = "new_message"
)

// Event is the frame written to websocket clients.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// ClientFrame is an inbound frame; Data is decoded per event.
type ClientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RoomRequest is the payload of join_room and leave_room.
type RoomRequest struct {
	AppointmentID string `json:"appointment_id"`
}

// NewMessagePayload is the data of a new_message event.
type NewMessagePayload struct {
	ID            string `json:"id"`
	AppointmentID string `json:"appointment_id"`
	SenderName    string `json:"sender_name"`
	SenderRole    string `json:"sender_role"`
	Message       string `json:"message"`
	Timestamp     string `json:"timestamp"`
}

func NewMessageEvent(m *model.Message) Event {
	return Event{
		Event: EventNewMessage,
		Data: NewMessagePayload{
			ID:            m.ID.String(),
			AppointmentID: m.AppointmentID.String(),
			SenderName:    m.SenderName,
			SenderRole:    string(m.SenderRole),
			Message:       m.Text,
			Timestamp:     m.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}
}

// Publisher delivers an event to every session in room.
type Publisher interface {
	Publish(ctx context.Context, room string, event Event) error
}
