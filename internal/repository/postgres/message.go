package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const messageColumns = `id, appointment_id, sender_id, sender_name, sender_role, message, timestamp, read`

const defaultHistoryLimit = 1000

func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	query := `
		INSERT INTO messages (
			id, appointment_id, sender_id, sender_name, sender_role, message, timestamp, read
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	message.Read = false

	return r.run(ctx, "message.create", func() error {
		_, err := r.db.ExecContext(ctx, query,
			message.ID,
			message.AppointmentID,
			message.SenderID,
			message.SenderName,
			message.SenderRole,
			message.Text,
			message.Timestamp,
			message.Read,
		)
		return err
	})
}

func (r *messageRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE appointment_id = $1
		ORDER BY timestamp ASC
		LIMIT $2`

	messages := make([]*model.Message, 0)
	err := r.run(ctx, "message.list", func() error {
		messages = messages[:0]
		return r.db.SelectContext(ctx, &messages, query, appointmentID, limit)
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) Last(ctx context.Context, appointmentID uuid.UUID) (*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE appointment_id = $1
		ORDER BY timestamp DESC
		LIMIT 1`

	var message model.Message
	err := r.run(ctx, "message.last", func() error {
		return r.db.GetContext(ctx, &message, query, appointmentID)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, appointmentID, viewerID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM messages
		WHERE appointment_id = $1 AND sender_id <> $2 AND read = FALSE
	`

	var count int
	err := r.run(ctx, "message.count_unread", func() error {
		return r.db.GetContext(ctx, &count, query, appointmentID, viewerID)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, appointmentID, viewerID uuid.UUID) (int64, error) {
	query := `
		UPDATE messages SET read = TRUE
		WHERE appointment_id = $1 AND sender_id <> $2 AND read = FALSE
	`

	var updated int64
	err := r.run(ctx, "message.mark_read", func() error {
		result, err := r.db.ExecContext(ctx, query, appointmentID, viewerID)
		if err != nil {
			return err
		}
		updated, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}
