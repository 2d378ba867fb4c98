package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gradepilot/gradepilot-api/internal/config"
	"github.com/gradepilot/gradepilot-api/internal/handler"
	"github.com/gradepilot/gradepilot-api/internal/middleware"
	"github.com/gradepilot/gradepilot-api/internal/models"
	"github.com/gradepilot/gradepilot-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	AssignmentHandler *handler.AssignmentHandler
	SubmissionHandler *handler.SubmissionHandler
	GradeHandler      *handler.GradeHandler
	DashboardHandler  *handler.DashboardHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	graderOnly := middleware.RequireRole(models.RoleInstructor, models.RoleTA)
	instructorOnly := middleware.RequireRole(models.RoleInstructor)

	if deps.AuthHandler != nil {
		auth := api.Group("/auth", middleware.RateLimit("auth", 10, time.Minute))
		deps.AuthHandler.Register(auth)
	}

	if deps.AssignmentHandler != nil {
		assignments := api.Group("/assignments", jwtMiddleware)
		deps.AssignmentHandler.Register(assignments, instructorOnly)

		if deps.GradeHandler != nil {
			deps.GradeHandler.RegisterExport(assignments, graderOnly)
		}
	}

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware)
		deps.SubmissionHandler.Register(submissions, graderOnly)

		if deps.GradeHandler != nil {
			grades := api.Group("/grades", jwtMiddleware)
			deps.GradeHandler.Register(submissions, grades, graderOnly)
		}
	}

	if deps.DashboardHandler != nil {
		dashboard := api.Group("/dashboard", jwtMiddleware)
		deps.DashboardHandler.Register(dashboard, graderOnly)
	}
}
