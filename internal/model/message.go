package model

import (
	"time"

	"github.com/google/uuid"
)

// Message is one chat line inside an appointment thread.
type Message struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	SenderID      uuid.UUID `db:"sender_id" json:"sender_id"`
	SenderName    string    `db:"sender_name" json:"sender_name"`
	SenderRole    Role      `db:"sender_role" json:"sender_role"`
	Text          string    `db:"message" json:"message"`
	Timestamp     time.Time `db:"timestamp" json:"timestamp"`
	Read          bool      `db:"read" json:"read"`
}

// UnreadFor reports whether the message counts as unread for viewerID.
func (m *Message) UnreadFor(viewerID uuid.UUID) bool {
	return m.SenderID != viewerID && !m.Read
}

type SendMessageRequest struct {
	AppointmentID string `json:"appointment_id" binding:"required"`
	Message       string `json:"message" binding:"required,max=4000"`
}

// LastMessage is the preview attached to a conversation.
type LastMessage struct {
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	SenderName string    `json:"sender_name"`
}

// Conversation is derived per viewer from an appointment and its messages.
type Conversation struct {
	ID             uuid.UUID         `json:"id"`
	AppointmentID  uuid.UUID         `json:"appointment_id"`
	PatientName    string            `json:"patient_name"`
	DoctorName     string            `json:"doctor_name"`
	Specialization string            `json:"specialization"`
	Date           string            `json:"appointment_date"`
	Time           string            `json:"appointment_time"`
	Status         AppointmentStatus `json:"status"`
	LastMessage    *LastMessage      `json:"last_message"`
	UnreadCount    int               `json:"unread_count"`
}

func NewConversation(a *Appointment, last *Message, unread int) *Conversation {
	c := &Conversation{
		ID:             a.ID,
		AppointmentID:  a.ID,
		PatientName:    a.PatientName,
		DoctorName:     a.DoctorName,
		Specialization: a.Specialization,
		Date:           a.Date,
		Time:           a.Time,
		Status:         a.Status,
		UnreadCount:    unread,
	}
	if last != nil {
		c.LastMessage = &LastMessage{
			Message:    last.Text,
			Timestamp:  last.Timestamp,
			SenderName: last.SenderName,
		}
	}
	return c
}

// MarkReadResponse reports how many messages a read acknowledgement touched.
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}
