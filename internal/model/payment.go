package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentReferenceStatus string

const (
	PaymentReferencePending PaymentReferenceStatus = "pending"
	PaymentReferencePaid    PaymentReferenceStatus = "paid"
	PaymentReferenceExpired PaymentReferenceStatus = "expired"
)

// Payment is a reference issued by the mock gateway for one appointment.
type Payment struct {
	ID            uuid.UUID              `db:"id" json:"payment_id"`
	AppointmentID uuid.UUID              `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID              `db:"patient_id" json:"patient_id"`
	Amount        float64                `db:"amount" json:"amount"`
	Gateway       string                 `db:"gateway" json:"gateway"`
	Status        PaymentReferenceStatus `db:"status" json:"status"`
	Reference     string                 `db:"reference" json:"reference"`
	CreatedAt     time.Time              `db:"created_at" json:"created_at"`
	PaidAt        *time.Time             `db:"paid_at" json:"paid_at,omitempty"`
}

type CreatePaymentRequest struct {
	AppointmentID string  `json:"appointment_id" binding:"required"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	Gateway       string  `json:"gateway" binding:"required,oneof=vnpay momo zalopay"`
}

// CreatePaymentResponse is what the client renders as a QR code.
type CreatePaymentResponse struct {
	Success   bool      `json:"success"`
	PaymentID uuid.UUID `json:"payment_id"`
	Reference string    `json:"reference"`
	QRCode    string    `json:"qr_code"`
	Gateway   string    `json:"gateway"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
}

func NewCreatePaymentResponse(p *Payment) *CreatePaymentResponse {
	return &CreatePaymentResponse{
		Success:   true,
		PaymentID: p.ID,
		Reference: p.Reference,
		QRCode:    p.Reference,
		Gateway:   p.Gateway,
		Amount:    p.Amount,
		Status:    string(p.Status),
	}
}
