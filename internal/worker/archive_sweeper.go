package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/observability"
	"github.com/spec-kit/workorder-service/internal/persistence"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

const sweepLockKey = "workorder:archive-sweep"

// Archiver archives a single work order if it is still eligible.
type Archiver interface {
	ArchiveIfExpired(ctx context.Context, id int64, cutoff time.Time) (bool, error)
}

// ArchiveWindow supplies the configured archive window.
type ArchiveWindow interface {
	ArchiveHours(ctx context.Context) (int, error)
}

// Locker hands out cross-replica leases.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error)
}

// SweeperConfig tunes the scheduled sweep.
type SweeperConfig struct {
	Interval time.Duration
	LockTTL  time.Duration
}

// ArchiveSweeper moves COMPLETED work orders to ARCHIVED once the archive
// window has passed since their last modification.
type ArchiveSweeper struct {
	orders   repository.WorkOrderRepository
	archiver Archiver
	window   ArchiveWindow
	locker   Locker
	logger   *zap.Logger
	metrics  *observability.Metrics
	cfg      SweeperConfig
	now      func() time.Time
}

// SweeperDependencies bundles sweeper collaborators. Locker and Metrics are optional.
type SweeperDependencies struct {
	WorkOrderRepo repository.WorkOrderRepository
	Archiver      Archiver
	Window        ArchiveWindow
	Locker        Locker
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Clock         func() time.Time
}

// NewArchiveSweeper creates the sweeper.
func NewArchiveSweeper(cfg SweeperConfig, deps SweeperDependencies) *ArchiveSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveSweeper{
		orders:   deps.WorkOrderRepo,
		archiver: deps.Archiver,
		window:   deps.Window,
		locker:   deps.Locker,
		logger:   logger,
		metrics:  deps.Metrics,
		cfg:      cfg,
		now:      clock,
	}
}

// RunOnce archives every eligible work order and returns how many were
// archived. A failing row is logged and skipped. Cancelling ctx abandons the
// remaining rows; rows already archived stay archived.
func (s *ArchiveSweeper) RunOnce(ctx context.Context) (int, error) {
	hours, err := s.window.ArchiveHours(ctx)
	if err != nil {
		return 0, err
	}
	if !domain.ValidArchiveHours(hours) {
		s.logger.Error("archive window out of range, sweep skipped", zap.Int("archive_hours", hours))
		return 0, apperrors.NewValidationError(
			fmt.Sprintf("archive_hours must be between 0 and %d", domain.MaxArchiveHours),
			map[string]any{"archive_hours": hours},
		)
	}
	now := s.now()
	cutoff := now.Add(-time.Duration(hours) * time.Hour)

	ids, err := s.orders.ListArchivable(ctx, cutoff)
	if err != nil {
		return 0, apperrors.NewPersistenceFailure(err)
	}

	archived, failed, processed := 0, 0, 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			s.logger.Info("archive sweep interrupted",
				zap.Int("archived", archived),
				zap.Int("remaining", len(ids)-processed))
			s.metrics.RecordSweep(archived, failed, now)
			return archived, err
		}
		ok, err := s.archiver.ArchiveIfExpired(ctx, id, cutoff)
		processed++
		if err != nil {
			failed++
			s.logger.Error("archive work order failed", zap.Int64("work_order_id", id), zap.Error(err))
			continue
		}
		if ok {
			archived++
		}
	}

	s.metrics.RecordSweep(archived, failed, now)
	s.logger.Info("archive sweep finished",
		zap.Int("archived", archived),
		zap.Int("failed", failed),
		zap.Int("archive_hours", hours),
		zap.Time("cutoff", cutoff))
	return archived, nil
}

// Run sweeps on every interval tick until ctx is cancelled.
func (s *ArchiveSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("archive sweeper started", zap.Duration("interval", s.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("archive sweeper stopped")
			return
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

func (s *ArchiveSweeper) runScheduled(ctx context.Context) {
	if s.locker != nil {
		release, err := s.locker.TryLock(ctx, sweepLockKey, s.cfg.LockTTL)
		switch {
		case errors.Is(err, persistence.ErrLockHeld):
			s.logger.Debug("archive sweep skipped, another replica holds the lease")
			return
		case err != nil:
			s.logger.Warn("archive sweep lease unavailable, sweeping without it", zap.Error(err))
		default:
			defer release(context.WithoutCancel(ctx))
		}
	}

	if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("archive sweep failed", zap.Error(err))
	}
}
