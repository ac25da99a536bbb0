package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/workorder-service/internal/api/http"
	"github.com/spec-kit/workorder-service/internal/api/http/handlers"
	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/config"
	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/observability"
	"github.com/spec-kit/workorder-service/internal/persistence"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/service"
	"github.com/spec-kit/workorder-service/internal/worker"
)

type repositories struct {
	workOrders repository.WorkOrderRepository
	catalog    repository.CatalogRepository
	settings   repository.SettingsRepository
	staff      repository.StaffRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redis *persistence.Redis
	if cfg.Redis.Addr != "" {
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
	}

	repos := buildRepositories(pg)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	service.NewLifecycleListener(dispatcher, logger, metrics).RegisterHandlers()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, repos.staff, tokens, logger)
	if err := authService.EnsureBootstrapAdmin(ctx, cfg.Auth.BootstrapAdminUser, cfg.Auth.BootstrapAdminPass); err != nil {
		logger.Fatal("failed to create bootstrap admin", zap.Error(err))
	}

	settingsService := service.NewSettingsService(repos.settings, cfg.WorkOrder.DefaultArchiveHours)
	if err := settingsService.EnsureInitialized(ctx); err != nil {
		logger.Fatal("failed to initialize settings", zap.Error(err))
	}
	catalogService := service.NewCatalogService(repos.catalog)
	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		WorkOrderRepo:     repos.workOrders,
		Catalog:           catalogService,
		Allocator:         service.NewOrderNumberAllocator(repos.workOrders, cfg.WorkOrder.NumberPrefix),
		Dispatcher:        dispatcher,
		Logger:            logger,
		MaxCreateAttempts: cfg.WorkOrder.CreateMaxAttempts,
	})
	queryService := service.NewQueryService(repos.workOrders, repos.catalog, repos.staff)

	sweeperDeps := worker.SweeperDependencies{
		WorkOrderRepo: repos.workOrders,
		Archiver:      lifecycleService,
		Window:        settingsService,
		Logger:        logger.Named("archive_sweeper"),
		Metrics:       metrics,
	}
	if redis != nil {
		sweeperDeps.Locker = redis
	}
	sweeper := worker.NewArchiveSweeper(worker.SweeperConfig{
		Interval: cfg.WorkOrder.SweepInterval(),
		LockTTL:  cfg.WorkOrder.SweepLockTTL(),
	}, sweeperDeps)

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		sweeper.Run(ctx)
	}()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:            handlers.NewAuthHandler(authService),
		WorkOrders:      handlers.NewWorkOrdersHandler(lifecycleService, queryService, sweeper),
		Settings:        handlers.NewSettingsHandler(settingsService, catalogService),
		StaffMiddleware: auth.NewStaffMiddleware(tokens, repos.staff),
		IntakeToken:     cfg.Auth.IntakeToken,
	})
	if cfg.Auth.IntakeToken == "" {
		logger.Warn("INTAKE_API_TOKEN not set; work order intake is disabled")
	}

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	workers.Wait()
	_ = app.Shutdown()
}

func buildRepositories(pg *persistence.Postgres) repositories {
	if !pg.Enabled() {
		return repositories{
			workOrders: repository.NewMemoryWorkOrderRepository(nil),
			catalog:    repository.NewMemoryCatalogRepository(),
			settings:   repository.NewMemorySettingsRepository(nil),
			staff:      repository.NewMemoryStaffRepository(),
		}
	}
	pool := pg.PoolHandle()
	return repositories{
		workOrders: repository.NewWorkOrderRepository(pool),
		catalog:    repository.NewCatalogRepository(pool),
		settings:   repository.NewSettingsRepository(pool),
		staff:      repository.NewStaffRepository(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
