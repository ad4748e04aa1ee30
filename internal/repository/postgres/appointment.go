package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

const appointmentColumns = `id, patient_id, patient_name, patient_email, patient_phone,
	doctor_id, doctor_name, appointment_date, appointment_time, specialization,
	status, payment_status, amount, notes, created_at, updated_at`

// defaultListLimit caps appointment listings.
const defaultListLimit = 100

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, patient_name, patient_email, patient_phone,
			doctor_id, doctor_name, appointment_date, appointment_time, specialization,
			status, payment_status, amount, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	return r.run(ctx, "appointment.create", func() error {
		_, err := r.db.ExecContext(ctx, query,
			appointment.ID,
			appointment.PatientID,
			appointment.PatientName,
			appointment.PatientEmail,
			appointment.PatientPhone,
			appointment.DoctorID,
			appointment.DoctorName,
			appointment.Date,
			appointment.Time,
			appointment.Specialization,
			appointment.Status,
			appointment.PaymentStatus,
			appointment.Amount,
			appointment.Notes,
			appointment.CreatedAt,
			appointment.UpdatedAt,
		)
		return err
	})
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	err := r.run(ctx, "appointment.get", func() error {
		return r.db.GetContext(ctx, &appointment, query, id)
	})
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	var args []interface{}
	argCount := 1

	if filters != nil {
		if filters.PatientID != nil {
			query += fmt.Sprintf(" AND patient_id = $%d", argCount)
			args = append(args, *filters.PatientID)
			argCount++
		}
		if filters.DoctorID != nil {
			query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
			args = append(args, *filters.DoctorID)
			argCount++
		}
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argCount)
	args = append(args, defaultListLimit)

	appointments := make([]*model.Appointment, 0)
	err := r.run(ctx, "appointment.list", func() error {
		appointments = appointments[:0]
		return r.db.SelectContext(ctx, &appointments, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

// Update applies only the fields present in patch as one statement.
func (r *appointmentRepository) Update(ctx context.Context, id uuid.UUID, patch *model.AppointmentPatch) error {
	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Date != nil {
		add("appointment_date", *patch.Date)
	}
	if patch.Time != nil {
		add("appointment_time", *patch.Time)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Notes != nil {
		add("notes", *patch.Notes)
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE appointments SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	return r.run(ctx, "appointment.update", func() error {
		result, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		_, err = expectRows(result)
		return err
	})
}

func (r *appointmentRepository) SetStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) error {
	query := `UPDATE appointments SET status = $1, updated_at = $2 WHERE id = $3`

	return r.run(ctx, "appointment.set_status", func() error {
		result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
		if err != nil {
			return err
		}
		_, err = expectRows(result)
		return err
	})
}

// ConfirmPayment locks the row in a subquery so the returned previous
// payment status is exact under concurrent confirms.
func (r *appointmentRepository) ConfirmPayment(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE appointments AS a
		SET payment_status = $1, status = $2, updated_at = $3
		FROM (SELECT id, payment_status FROM appointments WHERE id = $4 FOR UPDATE) AS prev
		WHERE a.id = prev.id
		RETURNING prev.payment_status
	`

	var previous model.PaymentStatus
	err := r.run(ctx, "appointment.confirm_payment", func() error {
		return r.db.GetContext(ctx, &previous, query,
			model.PaymentStatusPaid,
			model.AppointmentStatusConfirmed,
			time.Now().UTC(),
			id,
		)
	})
	if err != nil {
		return false, err
	}
	return previous != model.PaymentStatusPaid, nil
}
