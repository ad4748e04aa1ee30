package payment

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const notifyTimeout = 30 * time.Second

// Lifecycle is the slice of the appointment service payments depend on.
type Lifecycle interface {
	Get(ctx context.Context, caller *model.Identity, id uuid.UUID) (*model.Appointment, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID) (*model.Appointment, bool, error)
}

type Config struct {
	ClientID string
	APIKey   string
}

type Service struct {
	lifecycle Lifecycle
	payments  repository.PaymentRepository
	emailSvc  email.Service
	cfg       Config
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
}

func NewService(lifecycle Lifecycle, payments repository.PaymentRepository, emailSvc email.Service,
	cfg Config, m *metrics.Metrics, log *logger.Logger) *Service {
	if emailSvc == nil {
		emailSvc = email.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		lifecycle: lifecycle,
		payments:  payments,
		emailSvc:  emailSvc,
		cfg:       cfg,
		metrics:   m,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create issues a pending gateway reference for an appointment the caller
// booked. The appointment itself is not modified.
func (s *Service) Create(ctx context.Context, caller *model.Identity, req *model.CreatePaymentRequest) (*model.Payment, error) {
	appointmentID, err := uuid.Parse(req.AppointmentID)
	if err != nil {
		return nil, apperrors.NotFound("appointment", err)
	}
	if req.Amount <= 0 {
		return nil, apperrors.BadRequest("amount must be greater than 0", nil)
	}

	apt, err := s.lifecycle.Get(ctx, caller, appointmentID)
	if err != nil {
		return nil, err
	}
	if !caller.IsPatient() || apt.PatientID != caller.ID {
		return nil, apperrors.Forbidden("access denied", nil)
	}

	p := &model.Payment{
		ID:            uuid.New(),
		AppointmentID: apt.ID,
		PatientID:     apt.PatientID,
		Amount:        req.Amount,
		Gateway:       req.Gateway,
		Status:        model.PaymentReferencePending,
		CreatedAt:     s.now(),
	}
	p.Reference = s.reference(p)

	if err := s.payments.Create(ctx, p); err != nil {
		return nil, service.StoreError(err, "payment")
	}

	s.metrics.PaymentReference(string(p.Status), 1)
	s.log.WithContext(ctx).Info("payment reference issued",
		"payment_id", p.ID.String(), "appointment_id", apt.ID.String(), "gateway", p.Gateway)
	return p, nil
}

// reference renders the QR payload, e.g.
// vnpay://payment?client_id=..&api_key=..&amount=500000.0&order_id=..&appointment_id=..
func (s *Service) reference(p *model.Payment) string {
	params := [][2]string{
		{"client_id", s.cfg.ClientID},
		{"api_key", s.cfg.APIKey},
		{"amount", formatAmount(p.Amount)},
		{"order_id", p.ID.String()},
		{"appointment_id", p.AppointmentID.String()},
	}

	var b strings.Builder
	b.WriteString(p.Gateway)
	b.WriteString("://payment?")
	for i, kv := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(kv[0])
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}
	return b.String()
}

// formatAmount always keeps a decimal point: 500000 becomes "500000.0".
func formatAmount(amount float64) string {
	s := strconv.FormatFloat(amount, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Status returns a reference to the patient it was issued for or to an admin.
func (s *Service) Status(ctx context.Context, caller *model.Identity, paymentID uuid.UUID) (*model.Payment, error) {
	p, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, service.StoreError(err, "payment")
	}
	if !caller.IsAdmin() && p.PatientID != caller.ID {
		return nil, apperrors.Forbidden("access denied", nil)
	}
	return p, nil
}

// Confirm records a successful payment: the appointment becomes paid and
// confirmed and its pending references are marked paid. The patient is
// emailed only on the confirm that actually moved the appointment to paid.
func (s *Service) Confirm(ctx context.Context, appointmentID uuid.UUID) (*model.Appointment, error) {
	apt, newlyPaid, err := s.lifecycle.ConfirmPayment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	n, err := s.payments.MarkPaidByAppointment(ctx, appointmentID, s.now())
	if err != nil {
		// The appointment is already confirmed; references catch up on the next confirm.
		s.log.WithContext(ctx).Error(err, "failed to mark payment references paid",
			"appointment_id", appointmentID.String())
	} else if n > 0 {
		s.metrics.PaymentReference(string(model.PaymentReferencePaid), int(n))
	}

	if newlyPaid {
		go s.notify(apt)
	}
	return apt, nil
}

func (s *Service) notify(apt *model.Appointment) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := s.emailSvc.SendPaymentConfirmation(ctx, apt); err != nil {
		s.log.Error(err, "failed to send payment confirmation", "appointment_id", apt.ID.String())
	}
}
