package email

import (
	"context"
	"fmt"
	"strconv"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
)

type Service interface {
	SendWelcome(ctx context.Context, to, name string) error
	SendPaymentConfirmation(ctx context.Context, appointment *model.Appointment) error
}

// sender is the part of *gomail.Dialer the service uses.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	from   string
	sender sender
}

// NewService returns an SMTP backed service, or a no-op one when no SMTP
// host is configured.
func NewService(cfg config.SMTPConfig) Service {
	if !cfg.Enabled() {
		return Nop{}
	}
	return &smtpService{
		from:   cfg.From,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *smtpService) SendWelcome(ctx context.Context, to, name string) error {
	return s.send(ctx, welcomeMessage(s.from, to, name))
}

func (s *smtpService) SendPaymentConfirmation(ctx context.Context, appointment *model.Appointment) error {
	if appointment.PatientEmail == "" {
		return nil
	}
	return s.send(ctx, paymentConfirmationMessage(s.from, appointment))
}

func (s *smtpService) send(ctx context.Context, m *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}

func welcomeMessage(from, to, name string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Welcome to the clinic")
	m.SetBody("text/plain", fmt.Sprintf("Hello %s,\n\nYour account has been created. You can now book appointments online.\n", name))
	return m
}

func paymentConfirmationMessage(from string, a *model.Appointment) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", a.PatientEmail)
	m.SetHeader("Subject", "Appointment confirmed")
	m.SetBody("text/plain", fmt.Sprintf(
		"Hello %s,\n\nWe received your payment of %s. Your appointment with %s (%s) on %s at %s is confirmed.\n\nBooking reference: %s\n",
		a.PatientName,
		strconv.FormatFloat(a.Amount, 'f', -1, 64),
		a.DoctorName,
		a.Specialization,
		a.Date,
		a.Time,
		a.ID,
	))
	return m
}

// Nop discards every email.
type Nop struct{}

func (Nop) SendWelcome(context.Context, string, string) error { return nil }
func (Nop) SendPaymentConfirmation(context.Context, *model.Appointment) error { return nil }
