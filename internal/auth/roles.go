package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// RequireStaff ensures a staff principal is present.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireAdmin ensures the staff principal is an administrator.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.Staff.IsAdmin {
			return apperrors.NewForbidden()
		}
		return c.Next()
	}
}
