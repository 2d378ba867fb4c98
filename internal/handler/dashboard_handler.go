package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gradepilot/gradepilot-api/internal/middleware"
	"github.com/gradepilot/gradepilot-api/internal/service"
	"github.com/gradepilot/gradepilot-api/internal/utils"
)

// DashboardHandler serves aggregated progress views.
type DashboardHandler struct {
	service service.DashboardService
	logger  zerolog.Logger
}

// NewDashboardHandler builds a dashboard handler instance.
func NewDashboardHandler(service service.DashboardService, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		logger:  logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

// Register attaches dashboard endpoints to the router group.
func (h *DashboardHandler) Register(router fiber.Router, graderOnly fiber.Handler) {
	router.Get("/student", middleware.WithAuth(h.student, middleware.AuthOptions{Role: middleware.AuthRoleAny, RequireUser: true}))
	router.Get("/instructor", graderOnly, middleware.WithAuth(h.instructor, middleware.AuthOptions{Role: middleware.AuthRoleGrader}))
}

func (h *DashboardHandler) student(c *fiber.Ctx) error {
	dashboard, err := h.service.StudentDashboard(c.Context(), currentUser(c).ID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to build student dashboard")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "dashboard retrieved", dashboard)
}

func (h *DashboardHandler) instructor(c *fiber.Ctx) error {
	dashboard, err := h.service.InstructorDashboard(c.Context(), currentUser(c).ID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to build instructor dashboard")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "dashboard retrieved", dashboard)
}
