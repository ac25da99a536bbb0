package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/config"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

const bootstrapAdminFullName = "System Administrator"

// LoginResult is returned by a successful staff login.
type LoginResult struct {
	Staff     *domain.StaffMember
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates staff login and bootstrap account seeding.
type AuthService struct {
	staff      repository.StaffRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, staff repository.StaffRepository, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		staff:      staff,
		tokenMgr:   tokens,
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// Login authenticates a staff member by username and password.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password are required", nil)
	}

	staff, err := s.staff.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("invalid username or password")
		}
		return nil, apperrors.NewPersistenceFailure(err)
	}
	if err := auth.ComparePassword(staff.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid username or password")
	}
	if !staff.IsActive {
		return nil, apperrors.NewUnauthorized("staff account disabled")
	}

	token, exp, err := s.tokenMgr.GenerateToken(staff.ID, staff.Username, staff.IsAdmin)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Staff: staff, Token: token, ExpiresAt: exp}, nil
}

// EnsureBootstrapAdmin creates the initial administrator account when it is
// missing. It does nothing without a configured password.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.logger.Info("bootstrap admin skipped, no credentials configured")
		return nil
	}

	_, err := s.staff.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewPersistenceFailure(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	admin := &domain.StaffMember{
		Username:     username,
		FullName:     bootstrapAdminFullName,
		PasswordHash: hash,
		IsActive:     true,
		IsAdmin:      true,
	}
	if err := s.staff.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil
		}
		return apperrors.NewPersistenceFailure(err)
	}
	s.logger.Info("bootstrap admin created", zap.String("username", username), zap.Int64("staff_id", admin.ID))
	return nil
}
