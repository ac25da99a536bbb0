package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/workorder-service/internal/api/http/handlers"
	"github.com/spec-kit/workorder-service/internal/auth"
	"github.com/spec-kit/workorder-service/internal/config"
	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/events"
	"github.com/spec-kit/workorder-service/internal/observability"
	"github.com/spec-kit/workorder-service/internal/persistence"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/service"
	"github.com/spec-kit/workorder-service/internal/worker"
)

const intakeToken = "intake-secret"

type testServer struct {
	app        *fiber.App
	adminToken string
	staffToken string
	otherToken string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	orders := repository.NewMemoryWorkOrderRepository(nil)
	catalogRepo := repository.NewMemoryCatalogRepository()
	staffRepo := repository.NewMemoryStaffRepository()
	settingsRepo := repository.NewMemorySettingsRepository(nil)
	require.NoError(t, catalogRepo.Create(ctx, domain.CatalogProblemType, "network"))
	require.NoError(t, catalogRepo.Create(ctx, domain.CatalogSolutionType, "config-fix"))

	tokens := auth.NewTokenManager("test-secret", 60)
	authService := service.NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, staffRepo, tokens, logger)
	require.NoError(t, authService.EnsureBootstrapAdmin(ctx, "admin", "admin-pass"))
	hash, err := auth.HashPassword("pw", bcrypt.MinCost)
	require.NoError(t, err)
	tech := &domain.StaffMember{Username: "tech", FullName: "Tech One", PasswordHash: hash, IsActive: true}
	other := &domain.StaffMember{Username: "other", FullName: "Other", PasswordHash: hash, IsActive: true}
	require.NoError(t, staffRepo.Create(ctx, tech))
	require.NoError(t, staffRepo.Create(ctx, other))

	catalog := service.NewCatalogService(catalogRepo)
	settings := service.NewSettingsService(settingsRepo, domain.DefaultArchiveHours)
	require.NoError(t, settings.EnsureInitialized(ctx))
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		WorkOrderRepo: orders,
		Catalog:       catalog,
		Allocator:     service.NewOrderNumberAllocator(orders, "PFX"),
		Dispatcher:    events.NewInMemoryDispatcher(),
		Logger:        logger,
	})
	queries := service.NewQueryService(orders, catalogRepo, staffRepo)
	sweeper := worker.NewArchiveSweeper(worker.SweeperConfig{}, worker.SweeperDependencies{
		WorkOrderRepo: orders,
		Archiver:      lifecycle,
		Window:        settings,
		Logger:        logger,
		Metrics:       metrics,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:          handlers.NewHealthHandler("test", "dev", &persistence.Postgres{}, nil, metrics),
		Auth:            handlers.NewAuthHandler(authService),
		WorkOrders:      handlers.NewWorkOrdersHandler(lifecycle, queries, sweeper),
		Settings:        handlers.NewSettingsHandler(settings, catalog),
		StaffMiddleware: auth.NewStaffMiddleware(tokens, staffRepo),
		IntakeToken:     intakeToken,
	})

	srv := &testServer{app: app}
	srv.adminToken = srv.login(t, "admin", "admin-pass")
	srv.staffToken, _, err = tokens.GenerateToken(tech.ID, tech.Username, false)
	require.NoError(t, err)
	srv.otherToken, _, err = tokens.GenerateToken(other.ID, other.Username, false)
	require.NoError(t, err)
	return srv
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, fiber.StatusOK, status, body)
	return body["data"].(map[string]any)["access_token"].(string)
}

func errorCode(body map[string]any) string {
	envelope, ok := body["error"].(map[string]any)
	if !ok {
		return ""
	}
	code, _ := envelope["code"].(string)
	return code
}

func data(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

func (s *testServer) createOrder(t *testing.T) map[string]any {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/api/v1/work-orders", intakeToken, map[string]string{
		"reporter_name": "Li",
		"contact_phone": "13800000000",
		"location":      "Bldg A",
		"problem_desc":  "no network",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	return data(body)
}

func TestIntakeRequiresSharedToken(t *testing.T) {
	srv := newTestServer(t)
	payload := map[string]string{"reporter_name": "Li", "contact_phone": "138", "location": "A", "problem_desc": "down"}

	status, body := srv.do(t, fiber.MethodPost, "/api/v1/work-orders", "", payload)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = srv.do(t, fiber.MethodPost, "/api/v1/work-orders", srv.staffToken, payload)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body = srv.do(t, fiber.MethodPost, "/api/v1/work-orders", intakeToken, payload)
	require.Equal(t, fiber.StatusCreated, status)
	created := data(body)
	assert.EqualValues(t, 0, created["status"])
	assert.Regexp(t, `^PFX-\d{8}-001$`, created["order_no"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`, created["created_at"])
	assert.Nil(t, created["assigned_to"])
}

func TestIntakeValidation(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, fiber.MethodPost, "/api/v1/work-orders", intakeToken, map[string]string{"reporter_name": "Li"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestStaffRoutesRequireSession(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, fiber.MethodGet, "/api/v1/work-orders", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = srv.do(t, fiber.MethodGet, "/api/v1/work-orders", "not-a-jwt", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = srv.do(t, fiber.MethodGet, "/api/v1/work-orders", intakeToken, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestClaimAndCompleteFlow(t *testing.T) {
	srv := newTestServer(t)
	created := srv.createOrder(t)
	path := "/api/v1/work-orders/" + jsonID(created)

	status, body := srv.do(t, fiber.MethodPut, path+"/assign", srv.staffToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	claimed := data(body)
	assert.EqualValues(t, 1, claimed["status"])
	assert.Equal(t, "tech", claimed["assigned_to"].(map[string]any)["username"])
	assert.NotNil(t, claimed["assigned_time"])

	status, body = srv.do(t, fiber.MethodPut, path+"/assign", srv.otherToken, nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "INVALID_STATE", errorCode(body))

	status, body = srv.do(t, fiber.MethodPut, path, srv.otherToken, map[string]any{"processing_desc": "mine now"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "insufficient permission", body["error"].(map[string]any)["message"])

	status, body = srv.do(t, fiber.MethodPut, path, srv.staffToken, map[string]any{
		"status":        2,
		"problem_type":  "network",
		"solution_type": "config-fix",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = srv.do(t, fiber.MethodGet, path, srv.staffToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, data(body)["problem_type"])

	status, body = srv.do(t, fiber.MethodPut, path, srv.staffToken, map[string]any{
		"status":          2,
		"problem_type":    "network",
		"processing_desc": "rebooted router",
		"solution_type":   "config-fix",
	})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 2, data(body)["status"])

	status, body = srv.do(t, fiber.MethodPut, path, srv.staffToken, map[string]any{"status": 1})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "INVALID_STATE", errorCode(body))

	status, body = srv.do(t, fiber.MethodGet, path+"/logs", srv.staffToken, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []any{}, body["data"])
}

func TestListAndStatistics(t *testing.T) {
	srv := newTestServer(t)
	first := srv.createOrder(t)
	srv.createOrder(t)
	status, _ := srv.do(t, fiber.MethodPut, "/api/v1/work-orders/"+jsonID(first)+"/assign", srv.staffToken, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body := srv.do(t, fiber.MethodGet, "/api/v1/work-orders?status=0", srv.staffToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	assert.EqualValues(t, 0, items[0].(map[string]any)["status"])

	status, body = srv.do(t, fiber.MethodGet, "/api/v1/work-orders?start_date=yesterday", srv.staffToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = srv.do(t, fiber.MethodGet,
		"/api/v1/work-orders?start_date=2030-01-02%2000:00:00&end_date=2030-01-01%2000:00:00", srv.staffToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["data"])

	status, body = srv.do(t, fiber.MethodGet, "/api/v1/work-orders/statistics", srv.staffToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	stats := data(body)
	assert.EqualValues(t, 2, stats["total"])
	assert.Equal(t, map[string]any{"0": float64(1), "1": float64(1), "2": float64(0), "3": float64(0)}, stats["status"])
	assert.Equal(t, map[string]any{"network": float64(0), domain.UnclassifiedBucket: float64(2)}, stats["by_type"])
}

func TestAdminOnlyOperations(t *testing.T) {
	srv := newTestServer(t)
	created := srv.createOrder(t)
	path := "/api/v1/work-orders/" + jsonID(created)

	status, body := srv.do(t, fiber.MethodPost, "/api/v1/work-orders/archive", srv.staffToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = srv.do(t, fiber.MethodPost, "/api/v1/work-orders/archive", srv.adminToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 0, data(body)["archived"])

	status, _ = srv.do(t, fiber.MethodDelete, path, srv.staffToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = srv.do(t, fiber.MethodDelete, path, srv.adminToken, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, body = srv.do(t, fiber.MethodGet, path, srv.adminToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestSettingsAndCatalogEndpoints(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, fiber.MethodGet, "/api/v1/settings/system", srv.staffToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 72, data(body)["archive_hours"])

	status, _ = srv.do(t, fiber.MethodPut, "/api/v1/settings/system", srv.staffToken, map[string]int{"archive_hours": 24})
	assert.Equal(t, fiber.StatusForbidden, status)
	status, body = srv.do(t, fiber.MethodPut, "/api/v1/settings/system", srv.adminToken, map[string]int{"archive_hours": -3})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
	status, body = srv.do(t, fiber.MethodPut, "/api/v1/settings/system", srv.adminToken, map[string]int{"archive_hours": 24})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 24, data(body)["archive_hours"])

	status, _ = srv.do(t, fiber.MethodPost, "/api/v1/settings/problem-types", srv.adminToken, map[string]string{"name": "printer"})
	assert.Equal(t, fiber.StatusCreated, status)
	status, body = srv.do(t, fiber.MethodPost, "/api/v1/settings/problem-types", srv.adminToken, map[string]string{"name": "printer"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = srv.do(t, fiber.MethodGet, "/api/v1/settings/problem-types", srv.staffToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 2)

	status, _ = srv.do(t, fiber.MethodDelete, "/api/v1/settings/problem-types/printer", srv.adminToken, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _ = srv.do(t, fiber.MethodDelete, "/api/v1/settings/solution-types/printer", srv.adminToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "in-memory", body["dependencies"].(map[string]any)["postgres"])

	status, body = srv.do(t, fiber.MethodGet, "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "requests")
}

func jsonID(order map[string]any) string {
	return strconv.FormatInt(int64(order["id"].(float64)), 10)
}

func TestLoginAndProfile(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = srv.do(t, fiber.MethodGet, "/api/v1/auth/me", srv.adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	profile := data(body)
	assert.Equal(t, "admin", profile["username"])
	assert.Equal(t, true, profile["is_admin"])

	status, body = srv.do(t, fiber.MethodGet, "/api/v1/auth/me", srv.staffToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "tech", data(body)["username"])
	assert.Equal(t, false, data(body)["is_admin"])
}
