package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/api/dto"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/service"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// SettingsHandler serves system settings and the catalogs.
type SettingsHandler struct {
	settings *service.SettingsService
	catalog  *service.CatalogService
}

// NewSettingsHandler constructs handler.
func NewSettingsHandler(settings *service.SettingsService, catalog *service.CatalogService) *SettingsHandler {
	return &SettingsHandler{settings: settings, catalog: catalog}
}

// GetSystem GET /settings/system.
func (h *SettingsHandler) GetSystem(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSystemSettingsResponse(settings)})
}

// UpdateSystem PUT /settings/system.
func (h *SettingsHandler) UpdateSystem(c *fiber.Ctx) error {
	actor, err := staffActor(c)
	if err != nil {
		return err
	}
	var req dto.UpdateSystemSettingsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.ArchiveHours == nil {
		return apperrors.NewValidationError("archive_hours is required", map[string]any{"field": "archive_hours"})
	}
	settings, err := h.settings.SetArchiveHours(c.UserContext(), *req.ArchiveHours, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSystemSettingsResponse(settings)})
}

// ListProblemTypes GET /settings/problem-types.
func (h *SettingsHandler) ListProblemTypes(c *fiber.Ctx) error {
	return h.list(c, domain.CatalogProblemType)
}

// CreateProblemType POST /settings/problem-types.
func (h *SettingsHandler) CreateProblemType(c *fiber.Ctx) error {
	return h.create(c, domain.CatalogProblemType)
}

// DeleteProblemType DELETE /settings/problem-types/:name.
func (h *SettingsHandler) DeleteProblemType(c *fiber.Ctx) error {
	return h.delete(c, domain.CatalogProblemType)
}

// ListSolutionTypes GET /settings/solution-types.
func (h *SettingsHandler) ListSolutionTypes(c *fiber.Ctx) error {
	return h.list(c, domain.CatalogSolutionType)
}

// CreateSolutionType POST /settings/solution-types.
func (h *SettingsHandler) CreateSolutionType(c *fiber.Ctx) error {
	return h.create(c, domain.CatalogSolutionType)
}

// DeleteSolutionType DELETE /settings/solution-types/:name.
func (h *SettingsHandler) DeleteSolutionType(c *fiber.Ctx) error {
	return h.delete(c, domain.CatalogSolutionType)
}

func (h *SettingsHandler) list(c *fiber.Ctx, kind domain.CatalogKind) error {
	names, err := h.catalog.List(c.UserContext(), kind)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCatalogListResponse(names)})
}

func (h *SettingsHandler) create(c *fiber.Ctx, kind domain.CatalogKind) error {
	actor, err := staffActor(c)
	if err != nil {
		return err
	}
	var req dto.CatalogEntryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	name, err := h.catalog.Create(c.UserContext(), kind, req.Name, actor)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.CatalogEntryResponse{Name: name}})
}

func (h *SettingsHandler) delete(c *fiber.Ctx, kind domain.CatalogKind) error {
	actor, err := staffActor(c)
	if err != nil {
		return err
	}
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return apperrors.NewValidationError("invalid name", map[string]any{"name": c.Params("name")})
	}
	if err := h.catalog.Delete(c.UserContext(), kind, name, actor); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
