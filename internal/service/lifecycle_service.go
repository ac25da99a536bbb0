package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

const defaultCreateAttempts = 5

// errNotArchivable aborts an archive mutation whose row no longer qualifies.
var errNotArchivable = errors.New("work order not archivable")

// LifecycleService enforces the work order state machine.
type LifecycleService struct {
	orders      repository.WorkOrderRepository
	catalog     *CatalogService
	allocator   *OrderNumberAllocator
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	now         func() time.Time
	maxAttempts int

	// createMu serializes allocation and insert within this process.
	createMu sync.Mutex
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	WorkOrderRepo     repository.WorkOrderRepository
	Catalog           *CatalogService
	Allocator         *OrderNumberAllocator
	Dispatcher        events.Dispatcher
	Logger            *zap.Logger
	Clock             func() time.Time
	MaxCreateAttempts int
}

// CreateInput carries the intake fields of a new work order.
type CreateInput struct {
	ReporterName string
	ContactPhone string
	Location     string
	ProblemDesc  string
}

// WorkOrderPatch lists the fields staff may change. Nil fields are left as is;
// an empty string clears the field.
type WorkOrderPatch struct {
	Status         *domain.WorkOrderStatus
	ProblemType    *string
	ProcessingDesc *string
	SolutionType   *string
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := deps.MaxCreateAttempts
	if attempts <= 0 {
		attempts = defaultCreateAttempts
	}
	return &LifecycleService{
		orders:      deps.WorkOrderRepo,
		catalog:     deps.Catalog,
		allocator:   deps.Allocator,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		now:         clock,
		maxAttempts: attempts,
	}
}

// Create registers a new work order in status NEW.
func (s *LifecycleService) Create(ctx context.Context, input CreateInput) (*domain.WorkOrder, error) {
	input = CreateInput{
		ReporterName: strings.TrimSpace(input.ReporterName),
		ContactPhone: strings.TrimSpace(input.ContactPhone),
		Location:     strings.TrimSpace(input.Location),
		ProblemDesc:  strings.TrimSpace(input.ProblemDesc),
	}
	if missing := missingIntakeFields(input); len(missing) > 0 {
		return nil, apperrors.NewValidationError("required fields are missing", map[string]any{"fields": missing})
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		orderNo, err := s.allocator.Next(ctx, s.now())
		if err != nil {
			return nil, apperrors.NewPersistenceFailure(err)
		}
		wo := &domain.WorkOrder{
			OrderNo:      orderNo,
			ReporterName: input.ReporterName,
			ContactPhone: input.ContactPhone,
			Location:     input.Location,
			ProblemDesc:  input.ProblemDesc,
			Status:       domain.WorkOrderStatusNew,
		}
		err = s.orders.Create(ctx, wo)
		if err == nil {
			s.publishEvent(ctx, events.Event{
				Type:        events.EventWorkOrderCreated,
				WorkOrderID: wo.ID,
				OrderNo:     wo.OrderNo,
				Actor:       events.Actor{System: "intake"},
			})
			return wo, nil
		}
		if !errors.Is(err, repository.ErrDuplicateOrderNo) {
			return nil, apperrors.NewPersistenceFailure(err)
		}
		s.logger.Warn("order number collision, retrying",
			zap.String("order_no", orderNo),
			zap.Int("attempt", attempt))
		lastErr = err
	}
	return nil, apperrors.NewPersistenceFailure(fmt.Errorf("allocate order number after %d attempts: %w", s.maxAttempts, lastErr))
}

// Get returns a single work order.
func (s *LifecycleService) Get(ctx context.Context, id int64) (*domain.WorkOrder, error) {
	wo, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, mapWorkOrderError(err, id)
	}
	return wo, nil
}

// Claim assigns a NEW work order to actor and moves it to IN_PROGRESS.
// Concurrent claims on the same order have exactly one winner.
func (s *LifecycleService) Claim(ctx context.Context, id int64, actor domain.Actor) (*domain.WorkOrder, error) {
	wo, err := s.orders.Claim(ctx, id, actor.ID)
	if err != nil {
		return nil, mapWorkOrderError(err, id)
	}
	s.publishEvent(ctx, events.Event{
		Type:        events.EventWorkOrderClaimed,
		WorkOrderID: wo.ID,
		OrderNo:     wo.OrderNo,
		Actor:       staffActor(actor),
		Payload:     events.ClaimedPayload{AssignedTo: actor.ID},
	})
	return wo, nil
}

// Update applies patch to the work order. Either every patched field is
// stored or nothing is.
func (s *LifecycleService) Update(ctx context.Context, id int64, patch WorkOrderPatch, actor domain.Actor) (*domain.WorkOrder, error) {
	// Catalog lookups must stay outside Mutate: the locked transaction may not
	// acquire a second pool connection.
	current, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, mapWorkOrderError(err, id)
	}
	if err := authorizeUpdate(current, actor); err != nil {
		return nil, err
	}
	if err := s.resolveCatalogRefs(ctx, patch); err != nil {
		return nil, mapWorkOrderError(err, id)
	}

	var before *domain.WorkOrder
	updated, err := s.orders.Mutate(ctx, id, func(next *domain.WorkOrder) error {
		before = next.Clone()
		if err := authorizeUpdate(next, actor); err != nil {
			return err
		}
		if patch.Status != nil {
			if err := checkTransition(next.Status, *patch.Status); err != nil {
				return err
			}
		}

		if patch.ProblemType != nil {
			next.ProblemType = normalizeOptional(*patch.ProblemType)
		}
		if patch.ProcessingDesc != nil {
			next.ProcessingDesc = normalizeOptional(*patch.ProcessingDesc)
		}
		if patch.SolutionType != nil {
			next.SolutionType = normalizeOptional(*patch.SolutionType)
		}
		if patch.Status != nil {
			next.Status = *patch.Status
		}

		if next.Status >= domain.WorkOrderStatusCompleted {
			if missing := next.CompletionErrors(); len(missing) > 0 {
				return apperrors.NewValidationError("fields required for completion are missing", map[string]any{"fields": missing})
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapWorkOrderError(err, id)
	}

	s.publishUpdate(ctx, before, updated, staffActor(actor))
	return updated, nil
}

// Delete removes a work order permanently. Admin only.
func (s *LifecycleService) Delete(ctx context.Context, id int64, actor domain.Actor) error {
	if !actor.IsAdmin {
		return apperrors.NewForbidden()
	}
	wo, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return mapWorkOrderError(err, id)
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return mapWorkOrderError(err, id)
	}
	s.publishEvent(ctx, events.Event{
		Type:        events.EventWorkOrderDeleted,
		WorkOrderID: id,
		OrderNo:     wo.OrderNo,
		Actor:       staffActor(actor),
	})
	return nil
}

// ArchiveIfExpired archives a COMPLETED order last modified before cutoff.
// It reports false without error when the order no longer qualifies.
func (s *LifecycleService) ArchiveIfExpired(ctx context.Context, id int64, cutoff time.Time) (bool, error) {
	archived, err := s.orders.Mutate(ctx, id, func(next *domain.WorkOrder) error {
		if next.Status != domain.WorkOrderStatusCompleted || next.ArchivedAt != nil || !next.ModifiedAt.Before(cutoff) {
			return errNotArchivable
		}
		next.Status = domain.WorkOrderStatusArchived
		return nil
	})
	if err != nil {
		if errors.Is(err, errNotArchivable) || errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.NewPersistenceFailure(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:        events.EventWorkOrderArchived,
		WorkOrderID: archived.ID,
		OrderNo:     archived.OrderNo,
		Actor:       events.Actor{System: "archive_sweeper"},
		Payload: events.StatusChangedPayload{
			OldStatus: domain.WorkOrderStatusCompleted,
			NewStatus: domain.WorkOrderStatusArchived,
		},
	})
	return true, nil
}

func (s *LifecycleService) resolveCatalogRefs(ctx context.Context, patch WorkOrderPatch) error {
	refs := []struct {
		kind  domain.CatalogKind
		field string
		value *string
	}{
		{domain.CatalogProblemType, "problem_type", patch.ProblemType},
		{domain.CatalogSolutionType, "solution_type", patch.SolutionType},
	}
	for _, ref := range refs {
		if ref.value == nil || strings.TrimSpace(*ref.value) == "" {
			continue
		}
		ok, err := s.catalog.Exists(ctx, ref.kind, strings.TrimSpace(*ref.value))
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NewValidationError(fmt.Sprintf("unknown %s", ref.field), map[string]any{ref.field: *ref.value})
		}
	}
	return nil
}

func (s *LifecycleService) publishUpdate(ctx context.Context, before, after *domain.WorkOrder, actor events.Actor) {
	s.publishEvent(ctx, events.Event{
		Type:        events.EventWorkOrderUpdated,
		WorkOrderID: after.ID,
		OrderNo:     after.OrderNo,
		Actor:       actor,
	})
	if before == nil || before.Status == after.Status {
		return
	}
	payload := events.StatusChangedPayload{OldStatus: before.Status, NewStatus: after.Status}
	s.publishEvent(ctx, events.Event{
		Type:        events.EventWorkOrderStatusChanged,
		WorkOrderID: after.ID,
		OrderNo:     after.OrderNo,
		Actor:       actor,
		Payload:     payload,
	})
	if after.Status == domain.WorkOrderStatusArchived {
		s.publishEvent(ctx, events.Event{
			Type:        events.EventWorkOrderArchived,
			WorkOrderID: after.ID,
			OrderNo:     after.OrderNo,
			Actor:       actor,
			Payload:     payload,
		})
	}
}

func (s *LifecycleService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("work_order_id", event.WorkOrderID),
			zap.Error(err))
	}
}

func authorizeUpdate(current *domain.WorkOrder, actor domain.Actor) error {
	if actor.IsAdmin {
		return nil
	}
	if current.Status == domain.WorkOrderStatusArchived {
		return apperrors.NewForbidden()
	}
	if current.AssignedTo == nil || *current.AssignedTo != actor.ID {
		return apperrors.NewForbidden()
	}
	return nil
}

func checkTransition(from, to domain.WorkOrderStatus) error {
	details := map[string]any{"current_status": int(from), "requested_status": int(to)}
	switch {
	case !to.Valid():
		return apperrors.NewValidationError("unknown status", details)
	case to < from:
		return apperrors.NewInvalidState("status cannot move backwards", details)
	case to == from:
		return nil
	case from == domain.WorkOrderStatusNew && to == domain.WorkOrderStatusInProgress:
		return apperrors.NewInvalidState("work orders enter processing only by being claimed", details)
	case to == domain.WorkOrderStatusArchived && from < domain.WorkOrderStatusCompleted:
		return apperrors.NewInvalidState("only completed work orders can be archived", details)
	}
	return nil
}

func missingIntakeFields(input CreateInput) []string {
	var missing []string
	if input.ReporterName == "" {
		missing = append(missing, "reporter_name")
	}
	if input.ContactPhone == "" {
		missing = append(missing, "contact_phone")
	}
	if input.Location == "" {
		missing = append(missing, "location")
	}
	if input.ProblemDesc == "" {
		missing = append(missing, "problem_desc")
	}
	return missing
}

func normalizeOptional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func staffActor(actor domain.Actor) events.Actor {
	id := actor.ID
	return events.Actor{StaffID: &id}
}

// mapWorkOrderError translates repository sentinels into domain errors.
func mapWorkOrderError(err error, id int64) error {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("work order", map[string]any{"id": id})
	case errors.Is(err, repository.ErrInvalidState):
		return apperrors.NewInvalidState("only NEW work orders can be claimed", map[string]any{"id": id})
	case errors.Is(err, repository.ErrAlreadyClaimed):
		return apperrors.NewAlreadyClaimed(map[string]any{"id": id})
	default:
		return apperrors.NewPersistenceFailure(err)
	}
}
