package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

const paymentColumns = `id, appointment_id, patient_id, amount, gateway, status, reference, created_at, paid_at`

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	query := `
		INSERT INTO payments (
			id, appointment_id, patient_id, amount, gateway, status, reference, created_at, paid_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	return r.run(ctx, "payment.create", func() error {
		_, err := r.db.ExecContext(ctx, query,
			payment.ID,
			payment.AppointmentID,
			payment.PatientID,
			payment.Amount,
			payment.Gateway,
			payment.Status,
			payment.Reference,
			payment.CreatedAt,
			payment.PaidAt,
		)
		return err
	})
}

func (r *paymentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	var payment model.Payment
	err := r.run(ctx, "payment.get", func() error {
		return r.db.GetContext(ctx, &payment, query, id)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkPaidByAppointment settles every pending reference of the appointment.
// Zero rows is not an error: the appointment may have been paid without one.
func (r *paymentRepository) MarkPaidByAppointment(ctx context.Context, appointmentID uuid.UUID, paidAt time.Time) (int64, error) {
	query := `
		UPDATE payments SET status = $1, paid_at = $2
		WHERE appointment_id = $3 AND status = $4
	`

	var updated int64
	err := r.run(ctx, "payment.mark_paid", func() error {
		result, err := r.db.ExecContext(ctx, query,
			model.PaymentReferencePaid, paidAt, appointmentID, model.PaymentReferencePending)
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

func (r *paymentRepository) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE payments SET status = $1
		WHERE status = $2 AND created_at < $3
	`

	var expired int64
	err := r.run(ctx, "payment.expire", func() error {
		result, err := r.db.ExecContext(ctx, query,
			model.PaymentReferenceExpired, model.PaymentReferencePending, cutoff)
		if err != nil {
			return err
		}
		expired, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}
