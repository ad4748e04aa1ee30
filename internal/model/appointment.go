package model

import "github.com/google/uuid"

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// DefaultAppointmentFee is charged for every booking regardless of doctor or
// specialization.
const DefaultAppointmentFee = 500000.0

type Appointment struct {
	Base
	PatientID      uuid.UUID         `db:"patient_id" json:"patient_id"`
	PatientName    string            `db:"patient_name" json:"patient_name"`
	PatientEmail   string            `db:"patient_email" json:"patient_email"`
	PatientPhone   string            `db:"patient_phone" json:"patient_phone,omitempty"`
	DoctorID       uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	DoctorName     string            `db:"doctor_name" json:"doctor_name"`
	Date           string            `db:"appointment_date" json:"appointment_date"`
	Time           string            `db:"appointment_time" json:"appointment_time"`
	Specialization string            `db:"specialization" json:"specialization"`
	Status         AppointmentStatus `db:"status" json:"status"`
	PaymentStatus  PaymentStatus     `db:"payment_status" json:"payment_status"`
	Amount         float64           `db:"amount" json:"amount"`
	Notes          *string           `db:"notes" json:"notes,omitempty"`
}

// HasParticipant reports whether userID is the patient or the doctor.
func (a *Appointment) HasParticipant(userID uuid.UUID) bool {
	return a.PatientID == userID || a.DoctorID == userID
}

// OpensConversation reports whether the appointment gets a chat thread even
// before anyone has written in it.
func (a *Appointment) OpensConversation() bool {
	return a.Status == AppointmentStatusConfirmed || a.Status == AppointmentStatusCompleted
}

type CreateAppointmentRequest struct {
	DoctorID string  `json:"doctor_id" binding:"required"`
	Date     string  `json:"appointment_date" binding:"required,appt_date"`
	Time     string  `json:"appointment_time" binding:"required,appt_time"`
	Notes    *string `json:"notes" binding:"omitempty,max=1000"`
}

type UpdateAppointmentRequest struct {
	Date   *string            `json:"appointment_date" binding:"omitempty,appt_date"`
	Time   *string            `json:"appointment_time" binding:"omitempty,appt_time"`
	Status *AppointmentStatus `json:"status" binding:"omitempty,oneof=pending confirmed cancelled completed"`
	Notes  *string            `json:"notes" binding:"omitempty,max=1000"`
}

// AppointmentPatch carries only the fields a caller supplied; nil means untouched.
type AppointmentPatch struct {
	Date   *string
	Time   *string
	Status *AppointmentStatus
	Notes  *string
}

func (p *AppointmentPatch) Empty() bool {
	return p.Date == nil && p.Time == nil && p.Status == nil && p.Notes == nil
}

func (r *UpdateAppointmentRequest) Patch() *AppointmentPatch {
	return &AppointmentPatch{
		Date:   r.Date,
		Time:   r.Time,
		Status: r.Status,
		Notes:  r.Notes,
	}
}

// CreateAppointmentResponse mirrors the booking acknowledgement.
type CreateAppointmentResponse struct {
	ID          uuid.UUID    `json:"id"`
	Message     string       `json:"message"`
	Appointment *Appointment `json:"appointment"`
}

// AppointmentSummary is the list projection of an appointment.
type AppointmentSummary struct {
	ID             uuid.UUID         `json:"id"`
	PatientName    string            `json:"patient_name"`
	DoctorName     string            `json:"doctor_name"`
	Date           string            `json:"appointment_date"`
	Time           string            `json:"appointment_time"`
	Specialization string            `json:"specialization"`
	Status         AppointmentStatus `json:"status"`
	PaymentStatus  PaymentStatus     `json:"payment_status"`
	Amount         float64           `json:"amount"`
	Notes          *string           `json:"notes"`
}

func NewAppointmentSummary(a *Appointment) *AppointmentSummary {
	return &AppointmentSummary{
		ID:             a.ID,
		PatientName:    a.PatientName,
		DoctorName:     a.DoctorName,
		Date:           a.Date,
		Time:           a.Time,
		Specialization: a.Specialization,
		Status:         a.Status,
		PaymentStatus:  a.PaymentStatus,
		Amount:         a.Amount,
		Notes:          a.Notes,
	}
}

// AppointmentFilters narrows a listing to one participant; both nil lists everything.
type AppointmentFilters struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
}
