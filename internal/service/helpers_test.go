package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 9, 30, 0, 0, time.Local)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type lifecycleFixture struct {
	svc      *LifecycleService
	orders   *repository.MemoryWorkOrderRepository
	catalog  *repository.MemoryCatalogRepository
	clock    *testClock
	recorded *recordedEvents
}

var (
	admin    = domain.Actor{ID: 1, IsAdmin: true}
	staffA   = domain.Actor{ID: 2}
	staffB   = domain.Actor{ID: 3}
	allTypes = []events.EventType{
		events.EventWorkOrderCreated,
		events.EventWorkOrderClaimed,
		events.EventWorkOrderUpdated,
		events.EventWorkOrderStatusChanged,
		events.EventWorkOrderArchived,
		events.EventWorkOrderDeleted,
	}
)

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	return newLifecycleFixtureWithRepo(t, nil)
}

func newLifecycleFixtureWithRepo(t *testing.T, wrap func(*repository.MemoryWorkOrderRepository) repository.WorkOrderRepository) *lifecycleFixture {
	t.Helper()
	clock := newTestClock()
	orders := repository.NewMemoryWorkOrderRepository(clock.Now)
	catalog := repository.NewMemoryCatalogRepository()
	ctx := context.Background()
	require.NoError(t, catalog.Create(ctx, domain.CatalogProblemType, "network"))
	require.NoError(t, catalog.Create(ctx, domain.CatalogProblemType, "printer"))
	require.NoError(t, catalog.Create(ctx, domain.CatalogSolutionType, "config-fix"))

	var repo repository.WorkOrderRepository = orders
	if wrap != nil {
		repo = wrap(orders)
	}

	recorded := &recordedEvents{}
	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range allTypes {
		dispatcher.Subscribe(eventType, recorded.handle)
	}

	svc := NewLifecycleService(LifecycleDependencies{
		WorkOrderRepo: repo,
		Catalog:       NewCatalogService(catalog),
		Allocator:     NewOrderNumberAllocator(repo, "PFX"),
		Dispatcher:    dispatcher,
		Clock:         clock.Now,
	})
	return &lifecycleFixture{svc: svc, orders: orders, catalog: catalog, clock: clock, recorded: recorded}
}

func (f *lifecycleFixture) create(t *testing.T) *domain.WorkOrder {
	t.Helper()
	wo, err := f.svc.Create(context.Background(), CreateInput{
		ReporterName: "Li",
		ContactPhone: "13800000000",
		Location:     "Bldg A",
		ProblemDesc:  "no network",
	})
	require.NoError(t, err)
	return wo
}

func (f *lifecycleFixture) claimed(t *testing.T, actor domain.Actor) *domain.WorkOrder {
	t.Helper()
	wo := f.create(t)
	claimed, err := f.svc.Claim(context.Background(), wo.ID, actor)
	require.NoError(t, err)
	return claimed
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperrors.HasCode(err, code), "expected %s, got %v", code, err)
}

func strPtr(s string) *string { return &s }

func statusPtr(s domain.WorkOrderStatus) *domain.WorkOrderStatus { return &s }
