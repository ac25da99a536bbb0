package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// QueryParams holds listing filters as received from callers. Dates use
// domain.DateTimeLayout in local time.
type QueryParams struct {
	Status         *domain.WorkOrderStatus
	StatusLessThan *domain.WorkOrderStatus
	AssignedTo     *int64
	ProblemType    string
	OrderNo        string
	ReporterName   string
	ContactPhone   string
	StartDate      string
	EndDate        string
}

// Statistics summarizes a filtered set of work orders.
type Statistics struct {
	Total    int64
	ByStatus map[domain.WorkOrderStatus]int64
	ByType   map[string]int64
}

// QueryService serves read-only listing and statistics.
type QueryService struct {
	orders  repository.WorkOrderRepository
	catalog repository.CatalogRepository
	staff   repository.StaffRepository
}

// NewQueryService creates the service.
func NewQueryService(orders repository.WorkOrderRepository, catalog repository.CatalogRepository, staff repository.StaffRepository) *QueryService {
	return &QueryService{orders: orders, catalog: catalog, staff: staff}
}

// ParseDateTime parses a YYYY-MM-DD HH:MM:SS value in local time.
func ParseDateTime(field, value string) (time.Time, error) {
	t, err := time.ParseInLocation(domain.DateTimeLayout, strings.TrimSpace(value), time.Local)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("invalid date format, expected YYYY-MM-DD HH:MM:SS",
			map[string]any{"field": field, "value": value})
	}
	return t, nil
}

// List returns matching work orders, newest first.
func (s *QueryService) List(ctx context.Context, params QueryParams) ([]domain.WorkOrder, error) {
	filter, empty, err := buildFilter(params)
	if err != nil {
		return nil, err
	}
	if empty {
		return []domain.WorkOrder{}, nil
	}
	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}
	return orders, nil
}

// Statistics counts matching work orders per status and per problem type.
// Every catalog problem type is reported; the unclassified bucket only when non-zero.
func (s *QueryService) Statistics(ctx context.Context, params QueryParams) (*Statistics, error) {
	filter, empty, err := buildFilter(params)
	if err != nil {
		return nil, err
	}

	names, err := s.catalog.List(ctx, domain.CatalogProblemType)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}
	result := &Statistics{
		ByStatus: make(map[domain.WorkOrderStatus]int64, len(domain.AllWorkOrderStatuses)),
		ByType:   make(map[string]int64, len(names)+1),
	}
	for _, status := range domain.AllWorkOrderStatuses {
		result.ByStatus[status] = 0
	}
	for _, name := range names {
		result.ByType[name] = 0
	}
	if empty {
		return result, nil
	}

	stats, err := s.orders.Stats(ctx, filter)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}
	result.Total = stats.Total
	for status, count := range stats.ByStatus {
		result.ByStatus[status] = count
	}
	for name, count := range stats.ByProblemType {
		if name == "" {
			if count > 0 {
				result.ByType[domain.UnclassifiedBucket] += count
			}
			continue
		}
		if _, known := result.ByType[name]; known {
			result.ByType[name] = count
		}
	}
	return result, nil
}

// Assignees loads the staff members assigned to orders, keyed by id.
// Unknown ids are omitted.
func (s *QueryService) Assignees(ctx context.Context, orders ...domain.WorkOrder) (map[int64]*domain.StaffMember, error) {
	result := make(map[int64]*domain.StaffMember)
	for _, wo := range orders {
		if wo.AssignedTo == nil {
			continue
		}
		id := *wo.AssignedTo
		if _, seen := result[id]; seen {
			continue
		}
		staff, err := s.staff.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, apperrors.NewPersistenceFailure(err)
		}
		result[id] = staff
	}
	return result, nil
}

// buildFilter converts params to a repository filter. empty is true when the
// date range cannot match anything.
func buildFilter(params QueryParams) (filter repository.WorkOrderFilter, empty bool, err error) {
	filter = repository.WorkOrderFilter{
		Status:         params.Status,
		StatusLessThan: params.StatusLessThan,
		AssignedTo:     params.AssignedTo,
		ProblemType:    optionalTerm(params.ProblemType),
		OrderNo:        optionalTerm(params.OrderNo),
		ReporterName:   optionalTerm(params.ReporterName),
		ContactPhone:   optionalTerm(params.ContactPhone),
	}
	if strings.TrimSpace(params.StartDate) != "" {
		start, err := ParseDateTime("start_date", params.StartDate)
		if err != nil {
			return filter, false, err
		}
		filter.CreatedFrom = &start
	}
	if strings.TrimSpace(params.EndDate) != "" {
		end, err := ParseDateTime("end_date", params.EndDate)
		if err != nil {
			return filter, false, err
		}
		filter.CreatedTo = &end
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedFrom.After(*filter.CreatedTo) {
		return filter, true, nil
	}
	return filter, false, nil
}

func optionalTerm(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
