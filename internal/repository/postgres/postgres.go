package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/retry"
)

type userRepository struct {
	BaseRepository
}

type appointmentRepository struct {
	BaseRepository
}

type messageRepository struct {
	BaseRepository
}

type paymentRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func NewMessageRepository(base BaseRepository) repository.MessageRepository {
	return &messageRepository{base}
}

func NewPaymentRepository(base BaseRepository) repository.PaymentRepository {
	return &paymentRepository{base}
}

// NewStore wires every Postgres repository onto one connection pool.
func NewStore(db *sqlx.DB, m *metrics.Metrics, policy retry.Policy) *repository.Store {
	base := NewBaseRepository(db, m, policy)
	return &repository.Store{
		Users:        NewUserRepository(base),
		Appointments: NewAppointmentRepository(base),
		Messages:     NewMessageRepository(base),
		Payments:     NewPaymentRepository(base),
	}
}
