package controller

import (
	"ai-digest-bot/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

// HealthCheck reports one named dependency.
type HealthCheck func() bool

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	checks map[string]HealthCheck
}

func NewHealthController(checks map[string]HealthCheck) IHealthController {
	return &healthController{checks: checks}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	deps := make(map[string]bool, len(c.checks))
	for name, check := range c.checks {
		deps[name] = check()
	}
	return ctx.JSON(serverutils.SuccessResponse("ok", fiber.Map{"dependencies": deps}))
}
