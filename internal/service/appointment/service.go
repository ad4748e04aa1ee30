package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var errAccessDenied = apperrors.Forbidden("access denied", nil)

type Service struct {
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	metrics      *metrics.Metrics
	log          *logger.Logger
}

func NewService(appointments repository.AppointmentRepository, users repository.UserRepository,
	m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		appointments: appointments,
		users:        users,
		metrics:      m,
		log:          log,
	}
}

// Create books a pending, unpaid appointment for the calling patient.
func (s *Service) Create(ctx context.Context, caller *model.Identity, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if !caller.IsPatient() {
		return nil, apperrors.Forbidden("only patients can book appointments", nil)
	}
	if err := validateSchedule(&req.Date, &req.Time); err != nil {
		return nil, err
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return nil, apperrors.NotFound("doctor", err)
	}
	doctor, err := s.users.Get(ctx, doctorID)
	if err != nil {
		return nil, service.StoreError(err, "doctor")
	}
	if doctor.Role != model.RoleDoctor {
		return nil, apperrors.NotFound("doctor", nil)
	}

	patient, err := s.users.Get(ctx, caller.ID)
	if err != nil {
		return nil, service.StoreError(err, "patient")
	}

	apt := &model.Appointment{
		PatientID:      patient.ID,
		PatientName:    patient.FullName,
		PatientEmail:   patient.Email,
		PatientPhone:   patient.Phone,
		DoctorID:       doctor.ID,
		DoctorName:     doctor.FullName,
		Date:           req.Date,
		Time:           req.Time,
		Specialization: doctor.SpecializationOrDefault(),
		Status:         model.AppointmentStatusPending,
		PaymentStatus:  model.PaymentStatusUnpaid,
		Amount:         model.DefaultAppointmentFee,
		Notes:          req.Notes,
	}
	if err := s.appointments.Create(ctx, apt); err != nil {
		return nil, service.StoreError(err, "appointment")
	}

	s.metrics.Transition("created")
	s.log.WithContext(ctx).Info("appointment created",
		"appointment_id", apt.ID.String(), "patient_id", apt.PatientID.String(), "doctor_id", apt.DoctorID.String())
	return apt, nil
}

// Visible returns the appointments the caller may see, newest first.
func (s *Service) Visible(ctx context.Context, caller *model.Identity) ([]*model.Appointment, error) {
	filters := &model.AppointmentFilters{}
	switch caller.Role {
	case model.RolePatient:
		filters.PatientID = &caller.ID
	case model.RoleDoctor:
		filters.DoctorID = &caller.ID
	case model.RoleAdmin:
	default:
		return nil, errAccessDenied
	}

	apts, err := s.appointments.List(ctx, filters)
	if err != nil {
		return nil, service.StoreError(err, "appointment")
	}
	return apts, nil
}

func (s *Service) List(ctx context.Context, caller *model.Identity) ([]*model.AppointmentSummary, error) {
	apts, err := s.Visible(ctx, caller)
	if err != nil {
		return nil, err
	}
	out := make([]*model.AppointmentSummary, 0, len(apts))
	for _, a := range apts {
		out = append(out, model.NewAppointmentSummary(a))
	}
	return out, nil
}

// Get enforces view access: admins see everything, others only their own.
func (s *Service) Get(ctx context.Context, caller *model.Identity, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(caller, apt) {
		return nil, errAccessDenied
	}
	return apt, nil
}

// Update applies a partial patch. Only the owning patient or an admin may
// change an appointment; an empty patch is a no-op.
func (s *Service) Update(ctx context.Context, caller *model.Identity, id uuid.UUID, patch *model.AppointmentPatch) error {
	apt, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(caller, apt) {
		return errAccessDenied
	}
	if patch == nil || patch.Empty() {
		return nil
	}
	if err := validatePatch(patch); err != nil {
		return err
	}

	if err := s.appointments.Update(ctx, id, patch); err != nil {
		return service.StoreError(err, "appointment")
	}

	s.metrics.Transition("updated")
	if patch.Status != nil {
		s.log.WithContext(ctx).Info("appointment status changed",
			"appointment_id", id.String(), "from", string(apt.Status), "to", string(*patch.Status))
	}
	return nil
}

// Cancel sets the appointment to cancelled whatever its current status.
func (s *Service) Cancel(ctx context.Context, caller *model.Identity, id uuid.UUID) error {
	apt, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(caller, apt) {
		return errAccessDenied
	}

	if err := s.appointments.SetStatus(ctx, id, model.AppointmentStatusCancelled); err != nil {
		return service.StoreError(err, "appointment")
	}

	s.metrics.Transition("cancelled")
	s.log.WithContext(ctx).Info("appointment cancelled",
		"appointment_id", id.String(), "previous_status", string(apt.Status), "by", caller.ID.String())
	return nil
}

// ConfirmPayment marks the appointment paid and confirmed and returns the
// stored result, reporting whether this call moved it from unpaid to paid.
// Repeating it leaves the same state.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID) (*model.Appointment, bool, error) {
	newlyPaid, err := s.appointments.ConfirmPayment(ctx, id)
	if err != nil {
		return nil, false, service.StoreError(err, "appointment")
	}

	apt, err := s.load(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if newlyPaid {
		s.metrics.Transition("confirmed")
		s.log.WithContext(ctx).Info("appointment payment confirmed", "appointment_id", id.String())
	}
	return apt, newlyPaid, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, service.StoreError(err, "appointment")
	}
	return apt, nil
}

func canView(caller *model.Identity, apt *model.Appointment) bool {
	switch caller.Role {
	case model.RoleAdmin:
		return true
	case model.RolePatient:
		return apt.PatientID == caller.ID
	case model.RoleDoctor:
		return apt.DoctorID == caller.ID
	default:
		return false
	}
}

func canModify(caller *model.Identity, apt *model.Appointment) bool {
	return caller.IsAdmin() || (caller.IsPatient() && apt.PatientID == caller.ID)
}

func validatePatch(p *model.AppointmentPatch) error {
	if err := validateSchedule(p.Date, p.Time); err != nil {
		return err
	}
	if p.Status != nil {
		switch *p.Status {
		case model.AppointmentStatusPending, model.AppointmentStatusConfirmed,
			model.AppointmentStatusCancelled, model.AppointmentStatusCompleted:
		default:
			return apperrors.BadRequest("invalid status", nil)
		}
	}
	return nil
}

func validateSchedule(date, clock *string) error {
	if date != nil {
		if _, err := time.Parse(dateLayout, *date); err != nil {
			return apperrors.BadRequest("appointment_date must be a date in YYYY-MM-DD format", err)
		}
	}
	if clock != nil {
		if _, err := time.Parse(timeLayout, *clock); err != nil {
			return apperrors.BadRequest("appointment_time must be a time in HH:MM format", err)
		}
	}
	return nil
}
