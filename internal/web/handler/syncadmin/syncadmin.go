// Package syncadmin exposes account reconciliation to operators.
package syncadmin

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agromano/identity-gate/internal/auth"
	"github.com/agromano/identity-gate/internal/config"
	"github.com/agromano/identity-gate/internal/reconcile"
	"github.com/agromano/identity-gate/internal/web/handler"
)

// Service is the reconciliation handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	reconcile *reconcile.Service
}

var (
	// Handler is the reconciliation handler.
	Handler = Service{}
)

// Init registers the routes on an authenticated router.
func (s *Service) Init(router fiber.Router, cfg *config.Config, deps handler.Deps) error {
	if router == nil || cfg == nil || deps.Reconcile == nil {
		return handler.ErrNilDependency
	}

	s.cfg = cfg
	s.reconcile = deps.Reconcile

	guard := auth.Require(auth.AllOf(auth.PermSyncManage))
	limit := deps.Limit()

	router.Post("/sync/all", limit, guard, s.SyncAll)
	router.Post("/sync/:external_id", limit, guard, s.SyncOne)
	router.Get("/integrity", guard, s.Integrity)
	router.Get("/integrity/stats", guard, s.Stats)
	router.Post("/cleanup", limit, guard, s.Cleanup)

	return nil
}

// SyncAll synchronises every remote identity.
func (s *Service) SyncAll(c *fiber.Ctx) error {
	res, err := s.reconcile.SyncAll(c.UserContext())
	if err != nil {
		return handler.FailErr(c, err)
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"synced_count": res.SyncedCount,
		"errors":       res.Errors,
	})
}

// SyncOne synchronises a single identity.
func (s *Service) SyncOne(c *fiber.Ctx) error {
	externalID := c.Params("external_id")

	res, err := s.reconcile.SyncOne(c.UserContext(), externalID)
	if err != nil {
		return handler.FailErr(c, err)
	}

	msg := "account already linked"
	status := fiber.StatusOK

	if res.Created {
		msg = "account created"
		status = fiber.StatusCreated
	}

	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"account": handler.NewAccountView(res.Account),
		"message": msg,
	})
}

// Integrity reports orphaned and missing accounts.
func (s *Service) Integrity(c *fiber.Ctx) error {
	report, err := s.reconcile.CheckIntegrity(c.UserContext())
	if err != nil {
		return handler.FailErr(c, err)
	}

	return c.JSON(report)
}

// Stats summarises the integrity report.
func (s *Service) Stats(c *fiber.Ctx) error {
	stats, err := s.reconcile.Stats(c.UserContext())
	if err != nil {
		return handler.FailErr(c, err)
	}

	return c.JSON(stats)
}

// Cleanup deactivates orphaned accounts. Without dryRun=false nothing is changed.
func (s *Service) Cleanup(c *fiber.Ctx) error {
	dryRun := c.QueryBool("dryRun", true)

	res, err := s.reconcile.CleanupOrphans(c.UserContext(), dryRun, reconcile.ActorFrom(auth.FromCtx(c)))
	if err != nil {
		return handler.FailErr(c, err)
	}

	return c.JSON(fiber.Map{
		"success":           len(res.Errors) == 0,
		"orphaned":          res.Orphaned,
		"deactivated_count": res.DeactivatedCount,
		"dry_run":           res.DryRun,
		"errors":            res.Errors,
	})
}
