package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

const (
	defaultIdentityTTL = time.Minute
	welcomeTimeout     = 30 * time.Second
)

var ErrInvalidCredentials = apperrors.Unauthorized("invalid email or password", nil)

type Config struct {
	AllowAdminSignup bool
	IdentityCacheTTL time.Duration
}

type Service struct {
	userRepo repository.UserRepository
	jwtSvc   auth.JWTService
	hasher   security.PasswordHasher
	emailSvc email.Service
	cfg      Config
	// identities caches token -> *model.Identity for IdentityCacheTTL.
	identities *cache.Cache
	log        *logger.Logger
}

func NewService(userRepo repository.UserRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher,
	emailSvc email.Service, cfg Config, log *logger.Logger) *Service {
	if cfg.IdentityCacheTTL <= 0 {
		cfg.IdentityCacheTTL = defaultIdentityTTL
	}
	if emailSvc == nil {
		emailSvc = email.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		userRepo:   userRepo,
		jwtSvc:     jwtSvc,
		hasher:     hasher,
		emailSvc:   emailSvc,
		cfg:        cfg,
		identities: cache.New(cfg.IdentityCacheTTL, 2*cfg.IdentityCacheTTL),
		log:        log,
	}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	role := model.RolePatient
	if req.Role != "" {
		r, err := model.ParseRole(req.Role)
		if err != nil {
			return nil, apperrors.BadRequest("invalid role", err)
		}
		role = r
	}
	if role == model.RoleAdmin {
		if !s.cfg.AllowAdminSignup {
			return nil, apperrors.Forbidden("admin self-registration is disabled", nil)
		}
		s.log.WithContext(ctx).Warn("admin account self-registered", "email", req.Email)
	}

	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.userRepo.GetByEmail(ctx, emailAddr); err == nil {
		return nil, apperrors.BadRequest("email already registered", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, service.StoreError(err, "user")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrPasswordTooShort):
			return nil, apperrors.BadRequest("password too short", err)
		case errors.Is(err, security.ErrPasswordTooLong):
			return nil, apperrors.BadRequest("password too long", err)
		}
		return nil, apperrors.Internal(err)
	}

	user := &model.User{
		Email:          emailAddr,
		PasswordHash:   hash,
		FullName:       req.FullName,
		Phone:          req.Phone,
		Role:           role,
		DateOfBirth:    req.DateOfBirth,
		Address:        req.Address,
		IDCard:         req.IDCard,
		Specialization: req.Specialization,
		MedicalHistory: req.MedicalHistory,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.BadRequest("email already registered", err)
		}
		return nil, service.StoreError(err, "user")
	}

	go s.sendWelcome(user.Email, user.FullName)

	return s.issue(user)
}

func (s *Service) sendWelcome(to, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), welcomeTimeout)
	defer cancel()
	if err := s.emailSvc.SendWelcome(ctx, to, name); err != nil {
		s.log.Error(err, "failed to send welcome email", "email", to)
	}
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, service.StoreError(err, "user")
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *Service) issue(user *model.User) (*model.AuthResponse, error) {
	token, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.AuthResponse{Token: token, User: model.NewUserSummary(user)}, nil
}

// Authenticate resolves a bearer token to the caller. Tokens whose user no
// longer exists are rejected.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Identity, error) {
	if v, ok := s.identities.Get(token); ok {
		return v.(*model.Identity), nil
	}

	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid token", err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, apperrors.Unauthorized("invalid token", err)
	}

	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized("user not found", err)
		}
		return nil, service.StoreError(err, "user")
	}

	identity := model.NewIdentity(user)

	ttl := s.cfg.IdentityCacheTTL
	if claims.ExpiresAt != nil {
		if until := time.Until(claims.ExpiresAt.Time); until < ttl {
			ttl = until
		}
	}
	if ttl > 0 {
		s.identities.Set(token, identity, ttl)
	}
	return identity, nil
}

func (s *Service) Me(ctx context.Context, identity *model.Identity) (*model.User, error) {
	user, err := s.userRepo.Get(ctx, identity.ID)
	if err != nil {
		return nil, service.StoreError(err, "user")
	}
	return user, nil
}
