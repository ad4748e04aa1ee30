package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// ErrNotFound is returned by every repository when the addressed row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique constraint rejects an insert.
var ErrDuplicate = errors.New("duplicate record")

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		// ListDoctors filters by specialization when it is non-empty.
		ListDoctors(ctx context.Context, specialization string) ([]*model.User, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		Update(ctx context.Context, id uuid.UUID, patch *model.AppointmentPatch) error
		SetStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error
		// ConfirmPayment sets payment_status=paid and status=confirmed together
		// and reports whether the appointment was unpaid before the update.
		ConfirmPayment(ctx context.Context, id uuid.UUID) (bool, error)
	}

	MessageRepository interface {
		Create(ctx context.Context, message *model.Message) error
		ListByAppointment(ctx context.Context, appointmentID uuid.UUID, limit int) ([]*model.Message, error)
		// Last returns nil, nil when the thread is empty.
		Last(ctx context.Context, appointmentID uuid.UUID) (*model.Message, error)
		CountUnread(ctx context.Context, appointmentID, viewerID uuid.UUID) (int, error)
		MarkRead(ctx context.Context, appointmentID, viewerID uuid.UUID) (int64, error)
	}

	PaymentRepository interface {
		Create(ctx context.Context, payment *model.Payment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Payment, error)
		MarkPaidByAppointment(ctx context.Context, appointmentID uuid.UUID, paidAt time.Time) (int64, error)
		ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
)

// Store bundles the repositories a running server needs.
type Store struct {
	Users        UserRepository
	Appointments AppointmentRepository
	Messages     MessageRepository
	Payments     PaymentRepository
}
