package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/retry"
)

var appointmentCols = []string{
	"id", "patient_id", "patient_name", "patient_email", "patient_phone",
	"doctor_id", "doctor_name", "appointment_date", "appointment_time", "specialization",
	"status", "payment_status", "amount", "notes", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*repository.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	policy := retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	return NewStore(sqlx.NewDb(db, "postgres"), nil, policy), mock
}

func TestAppointmentRepository_Get(t *testing.T) {
	store, mock := newMockStore(t)
	id, patientID, doctorID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM appointments WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(appointmentCols).AddRow(
			id.String(), patientID.String(), "Pat", "pat@example.com", "0900",
			doctorID.String(), "Dr. Who", "2025-03-01", "09:30", "Cardiology",
			"pending", "unpaid", 500000.0, nil, now, now,
		))

	appt, err := store.Appointments.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, appt.ID)
	assert.Equal(t, doctorID, appt.DoctorID)
	assert.Equal(t, "2025-03-01", appt.Date)
	assert.Equal(t, model.AppointmentStatusPending, appt.Status)
	assert.Equal(t, model.DefaultAppointmentFee, appt.Amount)
	assert.Nil(t, appt.Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_GetNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM appointments WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(appointmentCols))

	_, err := store.Appointments.Get(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_ListByPatient(t *testing.T) {
	store, mock := newMockStore(t)
	patientID := uuid.New()

	mock.ExpectQuery(`FROM appointments WHERE 1=1 AND patient_id = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs(patientID, 100).
		WillReturnRows(sqlmock.NewRows(appointmentCols))

	list, err := store.Appointments.List(context.Background(), &model.AppointmentFilters{PatientID: &patientID})
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_UpdatePartial(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	status := model.AppointmentStatusCancelled
	notes := "running late"

	mock.ExpectExec(`UPDATE appointments SET status = \$1, notes = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs("cancelled", notes, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Appointments.Update(context.Background(), id, &model.AppointmentPatch{Status: &status, Notes: &notes})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_UpdateMissingRow(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	date := "2025-04-01"

	mock.ExpectExec(`UPDATE appointments SET appointment_date = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs(date, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Appointments.Update(context.Background(), id, &model.AppointmentPatch{Date: &date})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAppointmentRepository_ConfirmPaymentSingleStatement(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	confirm := `UPDATE appointments AS a\s+SET payment_status = \$1, status = \$2, updated_at = \$3\s+` +
		`FROM \(SELECT id, payment_status FROM appointments WHERE id = \$4 FOR UPDATE\) AS prev\s+` +
		`WHERE a.id = prev.id\s+RETURNING prev.payment_status`

	mock.ExpectQuery(confirm).
		WithArgs("paid", "confirmed", sqlmock.AnyArg(), id).
		WillReturnRows(sqlmock.NewRows([]string{"payment_status"}).AddRow("unpaid"))
	mock.ExpectQuery(confirm).
		WithArgs("paid", "confirmed", sqlmock.AnyArg(), id).
		WillReturnRows(sqlmock.NewRows([]string{"payment_status"}).AddRow("paid"))
	mock.ExpectQuery(confirm).
		WithArgs("paid", "confirmed", sqlmock.AnyArg(), id).
		WillReturnRows(sqlmock.NewRows([]string{"payment_status"}))

	newlyPaid, err := store.Appointments.ConfirmPayment(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, newlyPaid)

	newlyPaid, err = store.Appointments.ConfirmPayment(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, newlyPaid)

	_, err = store.Appointments.ConfirmPayment(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_TransientFailureBecomesUnavailable(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	connErr := &pq.Error{Code: "08006", Message: "connection failure"}

	mock.ExpectExec(`UPDATE appointments SET status`).WillReturnError(connErr)
	mock.ExpectExec(`UPDATE appointments SET status`).WillReturnError(connErr)

	err := store.Appointments.SetStatus(context.Background(), id, model.AppointmentStatusCancelled)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_TransientFailureRecovers(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE appointments SET status`).
		WillReturnError(&pq.Error{Code: "40001", Message: "serialization failure"})
	mock.ExpectExec(`UPDATE appointments SET status`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Appointments.SetStatus(context.Background(), id, model.AppointmentStatusCancelled))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	err := store.Users.Create(context.Background(), &model.User{Email: "dup@example.com", Role: model.RolePatient})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListDoctorsBySpecialization(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now()

	cols := []string{"id", "email", "password_hash", "full_name", "phone", "role",
		"date_of_birth", "address", "id_card", "specialization", "medical_history",
		"created_at", "updated_at"}
	mock.ExpectQuery(`FROM users WHERE role = \$1 AND specialization = \$2`).
		WithArgs("doctor", "Cardiology").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			id.String(), "doc@example.com", "hash", "Dr. Heart", "0900", "doctor",
			nil, nil, nil, "Cardiology", nil, now, now,
		))

	doctors, err := store.Users.ListDoctors(context.Background(), "Cardiology")
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, model.RoleDoctor, doctors[0].Role)
	assert.Equal(t, "Cardiology", doctors[0].SpecializationOrDefault())
}

func TestMessageRepository_LastEmptyThread(t *testing.T) {
	store, mock := newMockStore(t)
	apptID := uuid.New()

	mock.ExpectQuery(`FROM messages\s+WHERE appointment_id = \$1\s+ORDER BY timestamp DESC`).
		WithArgs(apptID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	msg, err := store.Messages.Last(context.Background(), apptID)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestMessageRepository_ListEmptyThreadIsEmptySlice(t *testing.T) {
	store, mock := newMockStore(t)
	apptID := uuid.New()

	mock.ExpectQuery(`FROM messages\s+WHERE appointment_id = \$1\s+ORDER BY timestamp ASC\s+LIMIT \$2`).
		WithArgs(apptID, 1000).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	msgs, err := store.Messages.ListByAppointment(context.Background(), apptID, 0)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_MarkRead(t *testing.T) {
	store, mock := newMockStore(t)
	apptID, viewer := uuid.New(), uuid.New()

	mock.ExpectExec(`UPDATE messages SET read = TRUE\s+WHERE appointment_id = \$1 AND sender_id <> \$2`).
		WithArgs(apptID, viewer).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.Messages.MarkRead(context.Background(), apptID, viewer)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPaymentRepository_ExpirePendingBefore(t *testing.T) {
	store, mock := newMockStore(t)
	cutoff := time.Now().Add(-30 * time.Minute)

	mock.ExpectExec(`UPDATE payments SET status = \$1\s+WHERE status = \$2 AND created_at < \$3`).
		WithArgs("expired", "pending", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := store.Payments.ExpirePendingBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMigrator_Up(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrator(sqlx.NewDb(db, "postgres"))
	migrations, err := m.Load()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].Version)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version, applied_at FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}))
	for _, mig := range migrations {
		mock.ExpectBegin()
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO schema_migrations`).
			WithArgs(mig.Version, mig.Name).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	count, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
