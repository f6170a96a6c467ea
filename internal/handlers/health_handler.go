package handlers

import (
	"context"
	"time"

	"impact-service/shared/utils"

	"github.com/gofiber/fiber/v3"
)

// HealthChecker is a dependency that can report its own state.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthCheckFunc adapts a plain function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) Health(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	checks map[string]HealthChecker
}

// NewHealthHandler takes the required dependencies by name. Optional
// backends are added with AddCheck only when configured.
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	if checks == nil {
		checks = map[string]HealthChecker{}
	}
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) AddCheck(name string, check HealthChecker) {
	h.checks[name] = check
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/checkhealth", h.CheckHealth)
}

func (h *HealthHandler) CheckHealth(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	status := fiber.StatusOK
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.Health(ctx); err != nil {
			components[name] = "unhealthy: " + err.Error()
			status = fiber.StatusServiceUnavailable
			continue
		}
		components[name] = "healthy"
	}

	if status != fiber.StatusOK {
		resp := utils.CreateRetryableErrorResponse("UNHEALTHY", "one or more dependencies are unhealthy")
		resp.Error.Fields = components
		return c.Status(status).JSON(resp)
	}
	return c.Status(status).JSON(utils.CreateSuccessResponse(fiber.Map{
		"status":     "healthy",
		"service":    "impact-service",
		"components": components,
	}))
}
