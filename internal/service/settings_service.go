package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// SettingsService exposes the archive window setting.
type SettingsService struct {
	settings     repository.SettingsRepository
	defaultHours int
}

// NewSettingsService creates the service. defaultHours seeds the settings row
// the first time the service is initialized.
func NewSettingsService(settings repository.SettingsRepository, defaultHours int) *SettingsService {
	if !domain.ValidArchiveHours(defaultHours) {
		defaultHours = domain.DefaultArchiveHours
	}
	return &SettingsService{settings: settings, defaultHours: defaultHours}
}

// EnsureInitialized creates the settings row when it does not exist yet.
func (s *SettingsService) EnsureInitialized(ctx context.Context) error {
	if err := s.settings.EnsureDefault(ctx, s.defaultHours); err != nil {
		return apperrors.NewPersistenceFailure(err)
	}
	return nil
}

// Get returns the current settings, falling back to defaults when the row is missing.
func (s *SettingsService) Get(ctx context.Context) (*domain.SystemSettings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &domain.SystemSettings{ArchiveHours: s.defaultHours}, nil
		}
		return nil, apperrors.NewPersistenceFailure(err)
	}
	return settings, nil
}

// ArchiveHours returns the archive window in hours.
func (s *SettingsService) ArchiveHours(ctx context.Context) (int, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return 0, err
	}
	return settings.ArchiveHours, nil
}

// SetArchiveHours updates the archive window. Admin only.
func (s *SettingsService) SetArchiveHours(ctx context.Context, hours int, actor domain.Actor) (*domain.SystemSettings, error) {
	if !actor.IsAdmin {
		return nil, apperrors.NewForbidden()
	}
	if !domain.ValidArchiveHours(hours) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("archive_hours must be between 0 and %d", domain.MaxArchiveHours),
			map[string]any{"archive_hours": hours},
		)
	}
	settings, err := s.settings.SetArchiveHours(ctx, hours)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}
	return settings, nil
}
