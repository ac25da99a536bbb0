package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/api/http/handlers"
	"github.com/spec-kit/workorder-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Auth            *handlers.AuthHandler
	WorkOrders      *handlers.WorkOrdersHandler
	Settings        *handlers.SettingsHandler
	StaffMiddleware *auth.StaffMiddleware
	IntakeToken     string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("/api/v1")
	api.Post("/auth/login", cfg.Auth.Login)

	api.Post("/work-orders", auth.IntakeTokenMiddleware(cfg.IntakeToken), cfg.WorkOrders.Create)

	staff := api.Group("", cfg.StaffMiddleware.Handle, auth.RequireStaff())
	staff.Get("/auth/me", cfg.Auth.Me)

	orders := staff.Group("/work-orders")
	orders.Get("", cfg.WorkOrders.List)
	orders.Get("/statistics", cfg.WorkOrders.Statistics)
	orders.Post("/archive", auth.RequireAdmin(), cfg.WorkOrders.Archive)
	orders.Get("/:id", cfg.WorkOrders.Get)
	orders.Get("/:id/logs", cfg.WorkOrders.Logs)
	orders.Put("/:id/assign", cfg.WorkOrders.Claim)
	orders.Put("/:id", cfg.WorkOrders.Update)
	orders.Delete("/:id", cfg.WorkOrders.Delete)

	settings := staff.Group("/settings")
	settings.Get("/system", cfg.Settings.GetSystem)
	settings.Put("/system", cfg.Settings.UpdateSystem)
	settings.Get("/problem-types", cfg.Settings.ListProblemTypes)
	settings.Post("/problem-types", cfg.Settings.CreateProblemType)
	settings.Delete("/problem-types/:name", cfg.Settings.DeleteProblemType)
	settings.Get("/solution-types", cfg.Settings.ListSolutionTypes)
	settings.Post("/solution-types", cfg.Settings.CreateSolutionType)
	settings.Delete("/solution-types/:name", cfg.Settings.DeleteSolutionType)
}
