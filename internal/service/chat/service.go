package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/realtime"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const historyLimit = 1000

// Appointments is the part of the lifecycle manager conversations rely on
// for visibility rules.
type Appointments interface {
	Visible(ctx context.Context, caller *model.Identity) ([]*model.Appointment, error)
	Get(ctx context.Context, caller *model.Identity, id uuid.UUID) (*model.Appointment, error)
}

type Service struct {
	appointments Appointments
	messages     repository.MessageRepository
	publisher    realtime.Publisher
	metrics      *metrics.Metrics
	log          *logger.Logger
	now          func() time.Time
}

func NewService(appointments Appointments, messages repository.MessageRepository, publisher realtime.Publisher,
	m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		appointments: appointments,
		messages:     messages,
		publisher:    publisher,
		metrics:      m,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ListConversations returns one entry per visible appointment that has at
// least one message or is confirmed or completed, newest appointment first.
func (s *Service) ListConversations(ctx context.Context, caller *model.Identity) ([]*model.Conversation, error) {
	apts, err := s.appointments.Visible(ctx, caller)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Conversation, 0, len(apts))
	for _, apt := range apts {
		last, err := s.messages.Last(ctx, apt.ID)
		if err != nil {
			return nil, service.StoreError(err, "message")
		}
		if last == nil && !apt.OpensConversation() {
			continue
		}

		unread := 0
		if last != nil {
			if unread, err = s.messages.CountUnread(ctx, apt.ID, caller.ID); err != nil {
				return nil, service.StoreError(err, "message")
			}
		}
		out = append(out, model.NewConversation(apt, last, unread))
	}
	return out, nil
}

// SendMessage stores a message from a participant or an admin and pushes it to the
// appointment's room. Push failures do not fail the call; history remains
// the source of truth.
func (s *Service) SendMessage(ctx context.Context, caller *model.Identity, appointmentID uuid.UUID, text string) (*model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.BadRequest("message is required", nil)
	}

	apt, err := s.appointments.Get(ctx, caller, appointmentID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !apt.HasParticipant(caller.ID) {
		return nil, apperrors.Forbidden("only the appointment's participants can send messages", nil)
	}

	msg := &model.Message{
		ID:            uuid.New(),
		AppointmentID: apt.ID,
		SenderID:      caller.ID,
		SenderName:    caller.FullName,
		SenderRole:    caller.Role,
		Text:          text,
		Timestamp:     s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, service.StoreError(err, "message")
	}
	s.metrics.MessageSent()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, apt.ID.String(), realtime.NewMessageEvent(msg)); err != nil {
			s.log.WithContext(ctx).Error(err, "failed to broadcast message",
				"appointment_id", apt.ID.String(), "message_id", msg.ID.String())
		}
	}
	return msg, nil
}

// History returns the thread oldest first under the appointment view rules.
func (s *Service) History(ctx context.Context, caller *model.Identity, appointmentID uuid.UUID) ([]*model.Message, error) {
	if _, err := s.appointments.Get(ctx, caller, appointmentID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByAppointment(ctx, appointmentID, historyLimit)
	if err != nil {
		return nil, service.StoreError(err, "message")
	}
	return msgs, nil
}

// MarkRead marks every message the caller did not send as read.
func (s *Service) MarkRead(ctx context.Context, caller *model.Identity, appointmentID uuid.UUID) (int64, error) {
	if _, err := s.appointments.Get(ctx, caller, appointmentID); err != nil {
		return 0, err
	}
	n, err := s.messages.MarkRead(ctx, appointmentID, caller.ID)
	if err != nil {
		return 0, service.StoreError(err, "message")
	}
	return n, nil
}
