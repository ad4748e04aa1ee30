package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type recordingEmail struct {
	mu        sync.Mutex
	confirmed []uuid.UUID
}

func (r *recordingEmail) SendWelcome(context.Context, string, string) error { return nil }

func (r *recordingEmail) SendPaymentConfirmation(_ context.Context, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, a.ID)
	return nil
}

func (r *recordingEmail) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.confirmed)
}

type fixture struct {
	svc     *Service
	store   *repository.Store
	mail    *recordingEmail
	patient *model.Identity
	other   *model.Identity
	doctor  *model.Identity
	admin   *model.Identity
	apt     *model.Appointment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	add := func(email string, role model.Role) *model.Identity {
		u := &model.User{Email: email, FullName: email, Role: role}
		require.NoError(t, store.Users.Create(ctx, u))
		return model.NewIdentity(u)
	}

	f := &fixture{
		store:   store,
		mail:    &recordingEmail{},
		patient: add("pat@example.com", model.RolePatient),
		other:   add("other@example.com", model.RolePatient),
		doctor:  add("doc@example.com", model.RoleDoctor),
		admin:   add("admin@example.com", model.RoleAdmin),
	}

	lifecycle := appointment.NewService(store.Appointments, store.Users, nil, nil)
	f.svc = NewService(lifecycle, store.Payments, f.mail, Config{ClientID: "ra-builder", APIKey: "ra-builder"}, nil, nil)

	apt, err := lifecycle.Create(ctx, f.patient, &model.CreateAppointmentRequest{
		DoctorID: f.doctor.ID.String(), Date: "2025-03-01", Time: "09:30",
	})
	require.NoError(t, err)
	f.apt = apt
	return f
}

func (f *fixture) request(gateway string) *model.CreatePaymentRequest {
	return &model.CreatePaymentRequest{AppointmentID: f.apt.ID.String(), Amount: 500000, Gateway: gateway}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.patient, f.request("vnpay"))
	require.NoError(t, err)
	assert.Equal(t, model.PaymentReferencePending, p.Status)
	assert.Equal(t,
		"vnpay://payment?client_id=ra-builder&api_key=ra-builder&amount=500000.0&order_id="+p.ID.String()+
			"&appointment_id="+f.apt.ID.String(),
		p.Reference)

	resp := model.NewCreatePaymentResponse(p)
	assert.True(t, resp.Success)
	assert.Equal(t, p.Reference, resp.QRCode)

	momo, err := f.svc.Create(ctx, f.patient, f.request("momo"))
	require.NoError(t, err)
	assert.Contains(t, momo.Reference, "momo://payment?client_id=ra-builder")
	assert.NotEqual(t, p.ID, momo.ID)

	apt, err := f.store.Appointments.Get(ctx, f.apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, apt.Status)
	assert.Equal(t, model.PaymentStatusUnpaid, apt.PaymentStatus)

	for _, caller := range []*model.Identity{f.other, f.doctor, f.admin} {
		_, err = f.svc.Create(ctx, caller, f.request("vnpay"))
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	}

	missing := f.request("vnpay")
	missing.AppointmentID = uuid.NewString()
	_, err = f.svc.Create(ctx, f.patient, missing)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	missing.AppointmentID = "garbage"
	_, err = f.svc.Create(ctx, f.patient, missing)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "500000.0", formatAmount(500000))
	assert.Equal(t, "1250.5", formatAmount(1250.5))
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.patient, f.request("zalopay"))
	require.NoError(t, err)

	for _, caller := range []*model.Identity{f.patient, f.admin} {
		got, err := f.svc.Status(ctx, caller, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Reference, got.Reference)
	}

	_, err = f.svc.Status(ctx, f.other, p.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = f.svc.Status(ctx, f.patient, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.patient, f.request("vnpay"))
	require.NoError(t, err)

	apt, err := f.svc.Confirm(ctx, f.apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, apt.Status)
	assert.Equal(t, model.PaymentStatusPaid, apt.PaymentStatus)

	ref, err := f.svc.Status(ctx, f.patient, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentReferencePaid, ref.Status)
	require.NotNil(t, ref.PaidAt)

	assert.Eventually(t, func() bool { return f.mail.count() == 1 }, time.Second, 10*time.Millisecond)

	again, err := f.svc.Confirm(ctx, f.apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, again.PaymentStatus)

	assert.Never(t, func() bool { return f.mail.count() > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	_, err = f.svc.Confirm(ctx, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
