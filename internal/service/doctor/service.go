package doctor

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

var specializations = []model.Specialization{
	{ID: "1", Name: "Nội khoa"},
	{ID: "2", Name: "Ngoại khoa"},
	{ID: "3", Name: "Nhi khoa"},
	{ID: "4", Name: "Sản phụ khoa"},
	{ID: "5", Name: "Tim mạch"},
	{ID: "6", Name: "Da liễu"},
	{ID: "7", Name: "Mắt"},
	{ID: "8", Name: "Tai Mũi Họng"},
}

type Service struct {
	userRepo repository.UserRepository
}

func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

func (s *Service) List(ctx context.Context, specialization string) ([]*model.Doctor, error) {
	users, err := s.userRepo.ListDoctors(ctx, specialization)
	if err != nil {
		return nil, service.StoreError(err, "doctor")
	}
	doctors := make([]*model.Doctor, 0, len(users))
	for _, u := range users {
		doctors = append(doctors, model.NewDoctor(u))
	}
	return doctors, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	u, err := s.userRepo.Get(ctx, id)
	if err != nil {
		return nil, service.StoreError(err, "doctor")
	}
	if u.Role != model.RoleDoctor {
		return nil, apperrors.NotFound("doctor", nil)
	}
	return model.NewDoctor(u), nil
}

// Specializations returns the fixed catalogue offered at booking time.
func (s *Service) Specializations() []model.Specialization {
	out := make([]model.Specialization, len(specializations))
	copy(out, specializations)
	return out
}
