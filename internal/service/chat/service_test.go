package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/realtime"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type published struct {
	room  string
	event realtime.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, room string, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{room, ev})
	return p.err
}

type fixture struct {
	chat      *Service
	lifecycle *appointment.Service
	store     *repository.Store
	pub       *recordingPublisher
	patient   *model.Identity
	doctor    *model.Identity
	stranger  *model.Identity
	admin     *model.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	add := func(email, name string, role model.Role) *model.Identity {
		u := &model.User{Email: email, FullName: name, Role: role}
		require.NoError(t, store.Users.Create(ctx, u))
		return model.NewIdentity(u)
	}

	lifecycle := appointment.NewService(store.Appointments, store.Users, nil, nil)
	pub := &recordingPublisher{}
	svc := NewService(lifecycle, store.Messages, pub, nil, nil)

	clock := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	return &fixture{
		chat:      svc,
		lifecycle: lifecycle,
		store:     store,
		pub:       pub,
		patient:   add("pat@example.com", "Pat", model.RolePatient),
		doctor:    add("doc@example.com", "Dr. Heart", model.RoleDoctor),
		stranger:  add("x@example.com", "Stranger", model.RolePatient),
		admin:     add("admin@example.com", "Admin", model.RoleAdmin),
	}
}

func (f *fixture) book(t *testing.T) *model.Appointment {
	t.Helper()
	apt, err := f.lifecycle.Create(context.Background(), f.patient, &model.CreateAppointmentRequest{
		DoctorID: f.doctor.ID.String(), Date: "2025-03-02", Time: "10:00",
	})
	require.NoError(t, err)
	return apt
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.book(t)

	msg, err := f.chat.SendMessage(ctx, f.patient, apt.ID, "hello doctor")
	require.NoError(t, err)
	assert.Equal(t, "Pat", msg.SenderName)
	assert.Equal(t, model.RolePatient, msg.SenderRole)
	assert.False(t, msg.Read)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, apt.ID.String(), f.pub.events[0].room)
	assert.Equal(t, realtime.EventNewMessage, f.pub.events[0].event.Event)
	payload := f.pub.events[0].event.Data.(realtime.NewMessagePayload)
	assert.Equal(t, msg.ID.String(), payload.ID)
	assert.Equal(t, "hello doctor", payload.Message)

	_, err = f.chat.SendMessage(ctx, f.doctor, apt.ID, "hello patient")
	require.NoError(t, err)

	note, err := f.chat.SendMessage(ctx, f.admin, apt.ID, "admin note")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, note.SenderRole)

	otherDoctor := &model.User{Email: "other@example.com", FullName: "Dr. Other", Role: model.RoleDoctor}
	require.NoError(t, f.store.Users.Create(ctx, otherDoctor))
	for _, caller := range []*model.Identity{f.stranger, model.NewIdentity(otherDoctor)} {
		_, err = f.chat.SendMessage(ctx, caller, apt.ID, "let me in")
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	}

	_, err = f.chat.SendMessage(ctx, f.patient, uuid.New(), "anyone?")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = f.chat.SendMessage(ctx, f.patient, apt.ID, "   ")
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	assert.Len(t, f.pub.events, 3)
}

func TestSendMessage_BroadcastFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	apt := f.book(t)

	_, err := f.chat.SendMessage(context.Background(), f.patient, apt.ID, "still stored")
	require.NoError(t, err)

	history, err := f.chat.History(context.Background(), f.patient, apt.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "still stored", history[0].Text)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.book(t)

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.chat.SendMessage(ctx, f.patient, apt.ID, text)
		require.NoError(t, err)
	}

	for _, caller := range []*model.Identity{f.patient, f.doctor, f.admin} {
		history, err := f.chat.History(ctx, caller, apt.ID)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, "one", history[0].Text)
		assert.Equal(t, "three", history[2].Text)
	}

	_, err := f.chat.History(ctx, f.stranger, apt.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	_, err = f.chat.History(ctx, f.patient, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestListConversations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	silent := f.book(t)
	chatty := f.book(t)
	confirmed := f.book(t)

	_, _, err := f.lifecycle.ConfirmPayment(ctx, confirmed.ID)
	require.NoError(t, err)

	_, err = f.chat.SendMessage(ctx, f.doctor, chatty.ID, "first")
	require.NoError(t, err)
	_, err = f.chat.SendMessage(ctx, f.doctor, chatty.ID, "second")
	require.NoError(t, err)
	_, err = f.chat.SendMessage(ctx, f.patient, chatty.ID, "reply")
	require.NoError(t, err)

	convs, err := f.chat.ListConversations(ctx, f.patient)
	require.NoError(t, err)
	require.Len(t, convs, 2)

	assert.Equal(t, confirmed.ID, convs[0].AppointmentID)
	assert.Nil(t, convs[0].LastMessage)
	assert.Equal(t, 0, convs[0].UnreadCount)

	assert.Equal(t, chatty.ID, convs[1].AppointmentID)
	require.NotNil(t, convs[1].LastMessage)
	assert.Equal(t, "reply", convs[1].LastMessage.Message)
	assert.Equal(t, "Pat", convs[1].LastMessage.SenderName)
	assert.Equal(t, 2, convs[1].UnreadCount)

	doctorView, err := f.chat.ListConversations(ctx, f.doctor)
	require.NoError(t, err)
	require.Len(t, doctorView, 2)
	assert.Equal(t, 1, doctorView[1].UnreadCount)

	for _, c := range convs {
		assert.NotEqual(t, silent.ID, c.AppointmentID)
	}

	strangerView, err := f.chat.ListConversations(ctx, f.stranger)
	require.NoError(t, err)
	assert.Empty(t, strangerView)
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.book(t)

	for _, text := range []string{"a", "b"} {
		_, err := f.chat.SendMessage(ctx, f.doctor, apt.ID, text)
		require.NoError(t, err)
	}
	_, err := f.chat.SendMessage(ctx, f.patient, apt.ID, "c")
	require.NoError(t, err)

	n, err := f.chat.MarkRead(ctx, f.patient, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = f.chat.MarkRead(ctx, f.patient, apt.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	convs, err := f.chat.ListConversations(ctx, f.patient)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Zero(t, convs[0].UnreadCount)

	_, err = f.chat.MarkRead(ctx, f.stranger, apt.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}
