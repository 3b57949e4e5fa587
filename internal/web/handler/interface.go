package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agromano/identity-gate/internal/audit"
	"github.com/agromano/identity-gate/internal/config"
	"github.com/agromano/identity-gate/internal/db/store"
	"github.com/agromano/identity-gate/internal/reconcile"
)

// Deps are the services handlers are built on.
type Deps struct {
	Reconcile *reconcile.Service
	Store     *store.Store
	Audit     *audit.Sink
	// Limiter guards the expensive administrative endpoints. Nil disables it.
	Limiter fiber.Handler
}

// Service is the interface for a web handler service.
type Service interface {
	Init(router fiber.Router, cfg *config.Config, deps Deps) error
}

// Limit returns the configured limiter or a pass-through handler.
func (d Deps) Limit() fiber.Handler {
	if d.Limiter == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return d.Limiter
}
