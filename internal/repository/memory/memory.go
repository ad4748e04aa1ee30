// Package memory holds map-backed repositories used by tests and by the
// "memory" database driver for local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const (
	defaultListLimit    = 100
	defaultHistoryLimit = 1000
)

// NewStore returns an empty in-process store.
func NewStore() *repository.Store {
	return &repository.Store{
		Users:        NewUserRepository(),
		Appointments: NewAppointmentRepository(),
		Messages:     NewMessageRepository(),
		Payments:     NewPaymentRepository(),
	}
}

type userRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*model.User
	byEmail map[string]uuid.UUID
}

func NewUserRepository() repository.UserRepository {
	return &userRepository{
		byID:    make(map[uuid.UUID]*model.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *userRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, ok := r.byEmail[key]; ok {
		return repository.ErrDuplicate
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	cp := *user
	r.byID[cp.ID] = &cp
	r.byEmail[key] = cp.ID
	return nil
}

func (r *userRepository) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[strings.ToLower(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *userRepository) ListDoctors(_ context.Context, specialization string) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.User
	for _, u := range r.byID {
		if u.Role != model.RoleDoctor {
			continue
		}
		if specialization != "" && (u.Specialization == nil || *u.Specialization != specialization) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	if len(out) > defaultListLimit {
		out = out[:defaultListLimit]
	}
	return out, nil
}

type appointmentRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*model.Appointment
	// order is insertion order, i.e. created_at ascending.
	order []uuid.UUID
}

func NewAppointmentRepository() repository.AppointmentRepository {
	return &appointmentRepository{items: make(map[uuid.UUID]*model.Appointment)}
}

func (r *appointmentRepository) Create(_ context.Context, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	cp := *a
	r.items[cp.ID] = &cp
	r.order = append(r.order, cp.ID)
	return nil
}

func (r *appointmentRepository) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *appointmentRepository) List(_ context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Appointment, 0)
	for i := len(r.order) - 1; i >= 0 && len(out) < defaultListLimit; i-- {
		a := r.items[r.order[i]]
		if filters != nil {
			if filters.PatientID != nil && a.PatientID != *filters.PatientID {
				continue
			}
			if filters.DoctorID != nil && a.DoctorID != *filters.DoctorID {
				continue
			}
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *appointmentRepository) mutate(id uuid.UUID, fn func(a *model.Appointment)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(a)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *appointmentRepository) Update(_ context.Context, id uuid.UUID, patch *model.AppointmentPatch) error {
	return r.mutate(id, func(a *model.Appointment) {
		if patch.Date != nil {
			a.Date = *patch.Date
		}
		if patch.Time != nil {
			a.Time = *patch.Time
		}
		if patch.Status != nil {
			a.Status = *patch.Status
		}
		if patch.Notes != nil {
			notes := *patch.Notes
			a.Notes = &notes
		}
	})
}

func (r *appointmentRepository) SetStatus(_ context.Context, id uuid.UUID, status model.AppointmentStatus) error {
	return r.mutate(id, func(a *model.Appointment) {
		a.Status = status
	})
}

func (r *appointmentRepository) ConfirmPayment(_ context.Context, id uuid.UUID) (bool, error) {
	var newlyPaid bool
	err := r.mutate(id, func(a *model.Appointment) {
		newlyPaid = a.PaymentStatus != model.PaymentStatusPaid
		a.PaymentStatus = model.PaymentStatusPaid
		a.Status = model.AppointmentStatusConfirmed
	})
	return newlyPaid, err
}

type messageRepository struct {
	mu       sync.RWMutex
	byThread map[uuid.UUID][]*model.Message
}

func NewMessageRepository() repository.MessageRepository {
	return &messageRepository{byThread: make(map[uuid.UUID][]*model.Message)}
}

func (r *messageRepository) Create(_ context.Context, m *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	m.Read = false

	cp := *m
	r.byThread[m.AppointmentID] = append(r.byThread[m.AppointmentID], &cp)
	return nil
}

// sorted returns a timestamp ordered copy of one thread. Callers hold mu.
func (r *messageRepository) sorted(appointmentID uuid.UUID) []*model.Message {
	thread := r.byThread[appointmentID]
	out := make([]*model.Message, 0, len(thread))
	for _, m := range thread {
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (r *messageRepository) ListByAppointment(_ context.Context, appointmentID uuid.UUID, limit int) ([]*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	out := r.sorted(appointmentID)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *messageRepository) Last(_ context.Context, appointmentID uuid.UUID) (*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.sorted(appointmentID)
	if len(out) == 0 {
		return nil, nil
	}
	return out[len(out)-1], nil
}

func (r *messageRepository) CountUnread(_ context.Context, appointmentID, viewerID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, m := range r.byThread[appointmentID] {
		if m.UnreadFor(viewerID) {
			n++
		}
	}
	return n, nil
}

func (r *messageRepository) MarkRead(_ context.Context, appointmentID, viewerID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, m := range r.byThread[appointmentID] {
		if m.UnreadFor(viewerID) {
			m.Read = true
			n++
		}
	}
	return n, nil
}

type paymentRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*model.Payment
}

func NewPaymentRepository() repository.PaymentRepository {
	return &paymentRepository{items: make(map[uuid.UUID]*model.Payment)}
}

func (r *paymentRepository) Create(_ context.Context, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	r.items[cp.ID] = &cp
	return nil
}

func (r *paymentRepository) Get(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *paymentRepository) MarkPaidByAppointment(_ context.Context, appointmentID uuid.UUID, paidAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, p := range r.items {
		if p.AppointmentID == appointmentID && p.Status == model.PaymentReferencePending {
			at := paidAt
			p.Status = model.PaymentReferencePaid
			p.PaidAt = &at
			n++
		}
	}
	return n, nil
}

func (r *paymentRepository) ExpirePendingBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, p := range r.items {
		if p.Status == model.PaymentReferencePending && p.CreatedAt.Before(cutoff) {
			p.Status = model.PaymentReferenceExpired
			n++
		}
	}
	return n, nil
}
