package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// MemoryWorkOrderRepository keeps work orders in process memory. It backs
// deployments without POSTGRES_DSN and the service tests.
type MemoryWorkOrderRepository struct {
	mu     sync.Mutex
	orders map[int64]*domain.WorkOrder
	nextID int64
	now    func() time.Time
}

// NewMemoryWorkOrderRepository creates an empty store using now as its clock.
func NewMemoryWorkOrderRepository(now func() time.Time) *MemoryWorkOrderRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryWorkOrderRepository{orders: make(map[int64]*domain.WorkOrder), now: now}
}

// Put stores wo verbatim, bypassing write rules. Used to seed fixtures.
func (m *MemoryWorkOrderRepository) Put(wo *domain.WorkOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wo.ID == 0 {
		m.nextID++
		wo.ID = m.nextID
	} else if wo.ID > m.nextID {
		m.nextID = wo.ID
	}
	m.orders[wo.ID] = wo.Clone()
}

func (m *MemoryWorkOrderRepository) Create(_ context.Context, wo *domain.WorkOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.OrderNo == wo.OrderNo {
			return ErrDuplicateOrderNo
		}
	}
	domain.ApplyWriteRules(nil, wo, m.now())
	m.nextID++
	wo.ID = m.nextID
	m.orders[wo.ID] = wo.Clone()
	return nil
}

func (m *MemoryWorkOrderRepository) GetByID(_ context.Context, id int64) (*domain.WorkOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wo, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return wo.Clone(), nil
}

func (m *MemoryWorkOrderRepository) LatestOrderNo(_ context.Context, prefix string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := ""
	for _, wo := range m.orders {
		if !strings.HasPrefix(wo.OrderNo, prefix) {
			continue
		}
		if len(wo.OrderNo) > len(latest) || (len(wo.OrderNo) == len(latest) && wo.OrderNo > latest) {
			latest = wo.OrderNo
		}
	}
	return latest, nil
}

func (m *MemoryWorkOrderRepository) Claim(_ context.Context, id, staffID int64) (*domain.WorkOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if current.Status != domain.WorkOrderStatusNew || current.AssignedTo != nil {
		return nil, claimRejection(current)
	}
	next := current.Clone()
	next.Status = domain.WorkOrderStatusInProgress
	next.AssignedTo = &staffID
	domain.ApplyWriteRules(current, next, m.now())
	m.orders[id] = next
	return next.Clone(), nil
}

func (m *MemoryWorkOrderRepository) Mutate(_ context.Context, id int64, fn MutateFunc) (*domain.WorkOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	domain.ApplyWriteRules(current, next, m.now())
	m.orders[id] = next
	return next.Clone(), nil
}

func (m *MemoryWorkOrderRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *MemoryWorkOrderRepository) List(_ context.Context, filter WorkOrderFilter) ([]domain.WorkOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []domain.WorkOrder{}
	for _, wo := range m.orders {
		if matchesFilter(wo, filter) {
			result = append(result, *wo.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryWorkOrderRepository) Stats(_ context.Context, filter WorkOrderFilter) (*WorkOrderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := newWorkOrderStats()
	for _, wo := range m.orders {
		if !matchesFilter(wo, filter) {
			continue
		}
		problemType := ""
		if wo.ProblemType != nil {
			problemType = strings.TrimSpace(*wo.ProblemType)
		}
		stats.add(wo.Status, problemType, 1)
	}
	return stats, nil
}

func (m *MemoryWorkOrderRepository) ListArchivable(_ context.Context, cutoff time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, wo := range m.orders {
		if wo.Status == domain.WorkOrderStatusCompleted && wo.ArchivedAt == nil && wo.ModifiedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func matchesFilter(wo *domain.WorkOrder, filter WorkOrderFilter) bool {
	if filter.Status != nil {
		if wo.Status != *filter.Status {
			return false
		}
	} else if filter.StatusLessThan != nil && wo.Status >= *filter.StatusLessThan {
		return false
	}
	if filter.AssignedTo != nil && (wo.AssignedTo == nil || *wo.AssignedTo != *filter.AssignedTo) {
		return false
	}
	if filter.ProblemType != nil && *filter.ProblemType != "" && (wo.ProblemType == nil || *wo.ProblemType != *filter.ProblemType) {
		return false
	}
	if !containsFold(wo.OrderNo, filter.OrderNo) ||
		!containsFold(wo.ReporterName, filter.ReporterName) ||
		!containsFold(wo.ContactPhone, filter.ContactPhone) {
		return false
	}
	if filter.CreatedFrom != nil && wo.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && wo.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	return true
}

func containsFold(value string, term *string) bool {
	if term == nil || strings.TrimSpace(*term) == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(strings.TrimSpace(*term)))
}

// MemoryCatalogRepository is the in-process catalog store.
type MemoryCatalogRepository struct {
	mu    sync.RWMutex
	names map[domain.CatalogKind]map[string]struct{}
}

// NewMemoryCatalogRepository creates an empty catalog.
func NewMemoryCatalogRepository() *MemoryCatalogRepository {
	return &MemoryCatalogRepository{names: map[domain.CatalogKind]map[string]struct{}{
		domain.CatalogProblemType:  {},
		domain.CatalogSolutionType: {},
	}}
}

func (m *MemoryCatalogRepository) List(_ context.Context, kind domain.CatalogKind) ([]string, error) {
	if _, err := catalogTable(kind); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.names[kind]))
	for name := range m.names[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryCatalogRepository) Exists(_ context.Context, kind domain.CatalogKind, name string) (bool, error) {
	if _, err := catalogTable(kind); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.names[kind][name]
	return ok, nil
}

func (m *MemoryCatalogRepository) Create(_ context.Context, kind domain.CatalogKind, name string) error {
	if _, err := catalogTable(kind); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.names[kind][name]; ok {
		return ErrDuplicateName
	}
	m.names[kind][name] = struct{}{}
	return nil
}

func (m *MemoryCatalogRepository) Delete(_ context.Context, kind domain.CatalogKind, name string) error {
	if _, err := catalogTable(kind); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.names[kind][name]; !ok {
		return ErrNotFound
	}
	delete(m.names[kind], name)
	return nil
}

// MemorySettingsRepository is the in-process settings row.
type MemorySettingsRepository struct {
	mu       sync.Mutex
	settings *domain.SystemSettings
	now      func() time.Time
}

// NewMemorySettingsRepository creates an uninitialized settings store.
func NewMemorySettingsRepository(now func() time.Time) *MemorySettingsRepository {
	if now == nil {
		now = time.Now
	}
	return &MemorySettingsRepository{now: now}
}

func (m *MemorySettingsRepository) EnsureDefault(_ context.Context, archiveHours int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		now := m.now()
		m.settings = &domain.SystemSettings{ArchiveHours: archiveHours, CreatedAt: now, ModifiedAt: now}
	}
	return nil
}

func (m *MemorySettingsRepository) Get(_ context.Context) (*domain.SystemSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return nil, ErrNotFound
	}
	copied := *m.settings
	return &copied, nil
}

func (m *MemorySettingsRepository) SetArchiveHours(_ context.Context, hours int) (*domain.SystemSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if m.settings == nil {
		m.settings = &domain.SystemSettings{CreatedAt: now}
	}
	m.settings.ArchiveHours = hours
	m.settings.ModifiedAt = now
	copied := *m.settings
	return &copied, nil
}

// MemoryStaffRepository is the in-process staff account store.
type MemoryStaffRepository struct {
	mu     sync.RWMutex
	byID   map[int64]*domain.StaffMember
	nextID int64
}

// NewMemoryStaffRepository creates an empty staff store.
func NewMemoryStaffRepository() *MemoryStaffRepository {
	return &MemoryStaffRepository{byID: make(map[int64]*domain.StaffMember)}
}

func (m *MemoryStaffRepository) Create(_ context.Context, staff *domain.StaffMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Username == staff.Username {
			return ErrDuplicateName
		}
	}
	m.nextID++
	staff.ID = m.nextID
	staff.CreatedAt = time.Now()
	copied := *staff
	m.byID[staff.ID] = &copied
	return nil
}

func (m *MemoryStaffRepository) GetByID(_ context.Context, id int64) (*domain.StaffMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	staff, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *staff
	return &copied, nil
}

func (m *MemoryStaffRepository) GetByUsername(_ context.Context, username string) (*domain.StaffMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, staff := range m.byID {
		if staff.Username == username {
			copied := *staff
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

var (
	_ WorkOrderRepository = (*MemoryWorkOrderRepository)(nil)
	_ CatalogRepository   = (*MemoryCatalogRepository)(nil)
	_ SettingsRepository  = (*MemorySettingsRepository)(nil)
	_ StaffRepository     = (*MemoryStaffRepository)(nil)
)
