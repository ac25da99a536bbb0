package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/observability"
	"github.com/spec-kit/workorder-service/internal/persistence"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/service"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

var errDiskFull = errors.New("disk full")

// failingRepo refuses to write one row.
type failingRepo struct {
	*repository.MemoryWorkOrderRepository
	failID int64
}

func (r *failingRepo) Mutate(ctx context.Context, id int64, fn repository.MutateFunc) (*domain.WorkOrder, error) {
	if id == r.failID {
		return nil, errDiskFull
	}
	return r.MemoryWorkOrderRepository.Mutate(ctx, id, fn)
}

type fakeLocker struct {
	err      error
	calls    int
	released int
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (func(context.Context), error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return func(context.Context) { l.released++ }, nil
}

type fixedWindow int

func (w fixedWindow) ArchiveHours(context.Context) (int, error) { return int(w), nil }

// skipFirstArchiver reports the first row as no longer eligible, then cancels.
type skipFirstArchiver struct {
	cancel context.CancelFunc
	calls  int
}

func (a *skipFirstArchiver) ArchiveIfExpired(context.Context, int64, time.Time) (bool, error) {
	a.calls++
	a.cancel()
	return false, nil
}

type sweeperFixture struct {
	sweeper  *ArchiveSweeper
	orders   *repository.MemoryWorkOrderRepository
	settings *service.SettingsService
	metrics  *observability.Metrics
	now      time.Time
}

func newSweeperFixture(t *testing.T, failID int64, locker Locker) *sweeperFixture {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	clock := func() time.Time { return now }
	orders := repository.NewMemoryWorkOrderRepository(clock)
	var repo repository.WorkOrderRepository = orders
	if failID != 0 {
		repo = &failingRepo{MemoryWorkOrderRepository: orders, failID: failID}
	}

	settings := service.NewSettingsService(repository.NewMemorySettingsRepository(clock), domain.DefaultArchiveHours)
	require.NoError(t, settings.EnsureInitialized(context.Background()))
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		WorkOrderRepo: repo,
		Catalog:       service.NewCatalogService(repository.NewMemoryCatalogRepository()),
		Allocator:     service.NewOrderNumberAllocator(repo, "PFX"),
		Clock:         clock,
	})
	metrics := observability.NewMetrics()

	sweeper := NewArchiveSweeper(SweeperConfig{Interval: 10 * time.Millisecond}, SweeperDependencies{
		WorkOrderRepo: repo,
		Archiver:      lifecycle,
		Window:        settings,
		Locker:        locker,
		Metrics:       metrics,
		Clock:         clock,
	})
	return &sweeperFixture{sweeper: sweeper, orders: orders, settings: settings, metrics: metrics, now: now}
}

func (f *sweeperFixture) put(id int64, status domain.WorkOrderStatus, age time.Duration) {
	text := "filled"
	wo := &domain.WorkOrder{
		ID:             id,
		OrderNo:        fmt.Sprintf("PFX-20240501-%03d", id),
		Status:         status,
		ProblemType:    &text,
		ProcessingDesc: &text,
		SolutionType:   &text,
		CreatedAt:      f.now.Add(-age),
		ModifiedAt:     f.now.Add(-age),
	}
	if status == domain.WorkOrderStatusArchived {
		at := f.now.Add(-age)
		wo.ArchivedAt = &at
	}
	f.orders.Put(wo)
}

func (f *sweeperFixture) status(t *testing.T, id int64) domain.WorkOrderStatus {
	t.Helper()
	wo, err := f.orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return wo.Status
}

func TestRunOnceArchivesExpiredCompletedOrders(t *testing.T) {
	f := newSweeperFixture(t, 0, nil)
	f.put(1, domain.WorkOrderStatusCompleted, 73*time.Hour)
	f.put(2, domain.WorkOrderStatusCompleted, 71*time.Hour)
	f.put(3, domain.WorkOrderStatusInProgress, 200*time.Hour)
	f.put(4, domain.WorkOrderStatusArchived, 200*time.Hour)

	count, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, domain.WorkOrderStatusArchived, f.status(t, 1))
	assert.Equal(t, domain.WorkOrderStatusCompleted, f.status(t, 2))
	assert.Equal(t, domain.WorkOrderStatusInProgress, f.status(t, 3))

	archived, err := f.orders.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, archived.ArchivedAt)
	assert.Equal(t, f.now, *archived.ArchivedAt)

	count, err = f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunOnceContinuesPastFailingRow(t *testing.T) {
	f := newSweeperFixture(t, 2, nil)
	f.put(1, domain.WorkOrderStatusCompleted, 80*time.Hour)
	f.put(2, domain.WorkOrderStatusCompleted, 80*time.Hour)
	f.put(3, domain.WorkOrderStatusCompleted, 80*time.Hour)

	count, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, domain.WorkOrderStatusCompleted, f.status(t, 2))
	assert.Equal(t, domain.WorkOrderStatusArchived, f.status(t, 3))

	snap := f.metrics.Snapshot()
	assert.EqualValues(t, 2, snap.Archived)
	assert.EqualValues(t, 1, snap.SweepFailures)
}

func TestRunOnceStopsWhenCancelled(t *testing.T) {
	f := newSweeperFixture(t, 0, nil)
	f.put(1, domain.WorkOrderStatusCompleted, 80*time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err := f.sweeper.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, count)
	assert.Equal(t, domain.WorkOrderStatusCompleted, f.status(t, 1))
}

func TestScheduledSweepHonoursLease(t *testing.T) {
	held := &fakeLocker{err: persistence.ErrLockHeld}
	f := newSweeperFixture(t, 0, held)
	f.put(1, domain.WorkOrderStatusCompleted, 80*time.Hour)

	f.sweeper.runScheduled(context.Background())
	assert.Equal(t, 1, held.calls)
	assert.Equal(t, domain.WorkOrderStatusCompleted, f.status(t, 1))

	free := &fakeLocker{}
	f.sweeper.locker = free
	f.sweeper.runScheduled(context.Background())
	assert.Equal(t, domain.WorkOrderStatusArchived, f.status(t, 1))
	assert.Equal(t, 1, free.released)
}

func TestScheduledSweepRunsWhenLockerUnreachable(t *testing.T) {
	f := newSweeperFixture(t, 0, &fakeLocker{err: errors.New("connection refused")})
	f.put(1, domain.WorkOrderStatusCompleted, 80*time.Hour)

	f.sweeper.runScheduled(context.Background())
	assert.Equal(t, domain.WorkOrderStatusArchived, f.status(t, 1))
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newSweeperFixture(t, 0, nil)
	f.put(1, domain.WorkOrderStatusCompleted, 80*time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.sweeper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return f.metrics.Snapshot().Sweeps > 0
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.Equal(t, domain.WorkOrderStatusArchived, f.status(t, 1))
}

func TestMaximumWindowKeepsFreshlyCompletedOrders(t *testing.T) {
	f := newSweeperFixture(t, 0, nil)
	_, err := f.settings.SetArchiveHours(context.Background(), domain.MaxArchiveHours, domain.Actor{ID: 1, IsAdmin: true})
	require.NoError(t, err)
	f.put(1, domain.WorkOrderStatusCompleted, time.Minute)
	f.put(2, domain.WorkOrderStatusCompleted, 5*365*24*time.Hour)

	count, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, domain.WorkOrderStatusCompleted, f.status(t, 1))
	assert.Equal(t, domain.WorkOrderStatusCompleted, f.status(t, 2))
}

func TestOutOfRangeWindowArchivesNothing(t *testing.T) {
	f := newSweeperFixture(t, 0, nil)
	f.sweeper.window = fixedWindow(3_000_000)
	f.put(1, domain.WorkOrderStatusCompleted, time.Minute)

	count, err := f.sweeper.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Zero(t, count)
	assert.Equal(t, domain.WorkOrderStatusCompleted, f.status(t, 1))
}

func TestInterruptedSweepCountsSkippedRows(t *testing.T) {
	f := newSweeperFixture(t, 0, nil)
	f.put(1, domain.WorkOrderStatusCompleted, 100*time.Hour)
	f.put(2, domain.WorkOrderStatusCompleted, 100*time.Hour)
	f.put(3, domain.WorkOrderStatusCompleted, 100*time.Hour)

	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	archiver := &skipFirstArchiver{cancel: cancel}
	f.sweeper.archiver = archiver
	f.sweeper.logger = zap.New(core)

	count, err := f.sweeper.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, count)
	assert.Equal(t, 1, archiver.calls)

	entries := logs.FilterMessage("archive sweep interrupted").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 2, entries[0].ContextMap()["remaining"])
}
