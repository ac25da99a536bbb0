package handlers

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/api/dto"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/service"
)

// ArchiveRunner triggers an on-demand archive sweep.
type ArchiveRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

// WorkOrdersHandler serves the work order endpoints.
type WorkOrdersHandler struct {
	lifecycle *service.LifecycleService
	queries   *service.QueryService
	archiver  ArchiveRunner
}

// NewWorkOrdersHandler constructs handler.
func NewWorkOrdersHandler(lifecycle *service.LifecycleService, queries *service.QueryService, archiver ArchiveRunner) *WorkOrdersHandler {
	return &WorkOrdersHandler{lifecycle: lifecycle, queries: queries, archiver: archiver}
}

// Create POST /work-orders.
func (h *WorkOrdersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateWorkOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	wo, err := h.lifecycle.Create(c.UserContext(), service.CreateInput{
		ReporterName: req.ReporterName,
		ContactPhone: req.ContactPhone,
		Location:     req.Location,
		ProblemDesc:  req.ProblemDesc,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewWorkOrderResponse(wo, nil)})
}

// List GET /work-orders.
func (h *WorkOrdersHandler) List(c *fiber.Ctx) error {
	params, err := parseQueryParams(c, true)
	if err != nil {
		return err
	}
	orders, err := h.queries.List(c.UserContext(), params)
	if err != nil {
		return err
	}
	staff, err := h.queries.Assignees(c.UserContext(), orders...)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkOrderListResponse(orders, staff)})
}

// Statistics GET /work-orders/statistics.
func (h *WorkOrdersHandler) Statistics(c *fiber.Ctx) error {
	params, err := parseQueryParams(c, false)
	if err != nil {
		return err
	}
	stats, err := h.queries.Statistics(c.UserContext(), params)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStatisticsResponse(stats)})
}

// Get GET /work-orders/:id.
func (h *WorkOrdersHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	wo, err := h.lifecycle.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return h.respond(c, wo)
}

// Logs GET /work-orders/:id/logs. No change log is kept, so the list is always empty.
func (h *WorkOrdersHandler) Logs(c *fiber.Ctx) error {
	if _, err := parseID(c); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": []any{}})
}

// Claim PUT /work-orders/:id/assign.
func (h *WorkOrdersHandler) Claim(c *fiber.Ctx) error {
	actor, err := staffActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	wo, err := h.lifecycle.Claim(c.UserContext(), id, actor)
	if err != nil {
		return err
	}
	return h.respond(c, wo)
}

// Update PUT /work-orders/:id.
func (h *WorkOrdersHandler) Update(c *fiber.Ctx) error {
	actor, err := staffActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateWorkOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	wo, err := h.lifecycle.Update(c.UserContext(), id, req.Patch(), actor)
	if err != nil {
		return err
	}
	return h.respond(c, wo)
}

// Delete DELETE /work-orders/:id.
func (h *WorkOrdersHandler) Delete(c *fiber.Ctx) error {
	actor, err := staffActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.lifecycle.Delete(c.UserContext(), id, actor); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Archive POST /work-orders/archive.
func (h *WorkOrdersHandler) Archive(c *fiber.Ctx) error {
	count, err := h.archiver.RunOnce(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ArchiveResponse{
		Archived: count,
		Message:  fmt.Sprintf("archived %d work orders", count),
	}})
}

func (h *WorkOrdersHandler) respond(c *fiber.Ctx, wo *domain.WorkOrder) error {
	staff, err := h.queries.Assignees(c.UserContext(), *wo)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkOrderResponse(wo, staff)})
}

// parseQueryParams reads listing filters. Statistics do not take status_lt,
// reporter_name or contact_phone.
func parseQueryParams(c *fiber.Ctx, listing bool) (service.QueryParams, error) {
	var (
		params service.QueryParams
		err    error
	)
	if params.Status, err = queryStatus(c, "status"); err != nil {
		return params, err
	}
	if params.AssignedTo, err = queryInt64(c, "assigned_to"); err != nil {
		return params, err
	}
	params.ProblemType = c.Query("problem_type")
	params.OrderNo = c.Query("order_no")
	params.StartDate = c.Query("start_date")
	params.EndDate = c.Query("end_date")
	if !listing {
		return params, nil
	}
	if params.StatusLessThan, err = queryStatus(c, "status_lt"); err != nil {
		return params, err
	}
	params.ReporterName = c.Query("reporter_name")
	params.ContactPhone = c.Query("contact_phone")
	return params, nil
}
