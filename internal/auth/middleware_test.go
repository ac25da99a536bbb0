package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

func newAuthApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var domainErr *apperrors.DomainError
			if errors.As(err, &domainErr) {
				return c.SendStatus(domainErr.HTTPStatus)
			}
			return c.SendStatus(http.StatusInternalServerError)
		},
	})
}

func doRequest(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestStaffMiddleware(t *testing.T) {
	staffRepo := repository.NewMemoryStaffRepository()
	active := &domain.StaffMember{Username: "tech", FullName: "Tech", IsActive: true}
	require.NoError(t, staffRepo.Create(context.Background(), active))
	disabled := &domain.StaffMember{Username: "gone", FullName: "Gone"}
	require.NoError(t, staffRepo.Create(context.Background(), disabled))
	admin := &domain.StaffMember{Username: "root", FullName: "Root", IsActive: true, IsAdmin: true}
	require.NoError(t, staffRepo.Create(context.Background(), admin))

	tokens := NewTokenManager("secret", 30)
	app := newAuthApp()
	group := app.Group("", NewStaffMiddleware(tokens, staffRepo).Handle, RequireStaff())
	group.Get("/me", func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.SendString(principal.Staff.Username)
	})
	group.Get("/admin", RequireAdmin(), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })

	issue := func(staff *domain.StaffMember) string {
		token, _, err := tokens.GenerateToken(staff.ID, staff.Username, staff.IsAdmin)
		require.NoError(t, err)
		return token
	}

	assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/me", ""))
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/me", "garbage"))
	assert.Equal(t, http.StatusOK, doRequest(t, app, "/me", issue(active)))
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/me", issue(disabled)))
	assert.Equal(t, http.StatusForbidden, doRequest(t, app, "/admin", issue(active)))
	assert.Equal(t, http.StatusNoContent, doRequest(t, app, "/admin", issue(admin)))

	ghost, _, err := tokens.GenerateToken(999, "ghost", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/me", ghost))
}

func TestIntakeTokenMiddleware(t *testing.T) {
	app := newAuthApp()
	app.Get("/intake", IntakeTokenMiddleware("intake-token"), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	app.Get("/closed", IntakeTokenMiddleware(""), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, doRequest(t, app, "/intake", "intake-token"))
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/intake", "other"))
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/intake", ""))
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, app, "/closed", "anything"))
}
