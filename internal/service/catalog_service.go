package service

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// CatalogService manages the problem type and solution type namespaces.
type CatalogService struct {
	catalog repository.CatalogRepository
}

// NewCatalogService creates the service.
func NewCatalogService(catalog repository.CatalogRepository) *CatalogService {
	return &CatalogService{catalog: catalog}
}

// List returns the names in kind ordered by name.
func (s *CatalogService) List(ctx context.Context, kind domain.CatalogKind) ([]string, error) {
	if !kind.Valid() {
		return nil, apperrors.NewValidationError("unknown catalog", map[string]any{"kind": string(kind)})
	}
	names, err := s.catalog.List(ctx, kind)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}
	return names, nil
}

// Create adds name to kind. Names are case-sensitive.
func (s *CatalogService) Create(ctx context.Context, kind domain.CatalogKind, name string, actor domain.Actor) (string, error) {
	if !actor.IsAdmin {
		return "", apperrors.NewForbidden()
	}
	if !kind.Valid() {
		return "", apperrors.NewValidationError("unknown catalog", map[string]any{"kind": string(kind)})
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if err := s.catalog.Create(ctx, kind, name); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return "", apperrors.NewValidationError("name already exists", map[string]any{"name": name})
		}
		return "", apperrors.NewPersistenceFailure(err)
	}
	return name, nil
}

// Delete removes name from kind.
func (s *CatalogService) Delete(ctx context.Context, kind domain.CatalogKind, name string, actor domain.Actor) error {
	if !actor.IsAdmin {
		return apperrors.NewForbidden()
	}
	if !kind.Valid() {
		return apperrors.NewValidationError("unknown catalog", map[string]any{"kind": string(kind)})
	}
	if err := s.catalog.Delete(ctx, kind, name); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound(string(kind), map[string]any{"name": name})
		}
		return apperrors.NewPersistenceFailure(err)
	}
	return nil
}

// Exists reports whether name is registered in kind.
func (s *CatalogService) Exists(ctx context.Context, kind domain.CatalogKind, name string) (bool, error) {
	ok, err := s.catalog.Exists(ctx, kind, name)
	if err != nil {
		return false, apperrors.NewPersistenceFailure(err)
	}
	return ok, nil
}
