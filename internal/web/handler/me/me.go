// Package me describes the authenticated caller.
package me

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agromano/identity-gate/internal/auth"
	"github.com/agromano/identity-gate/internal/config"
	"github.com/agromano/identity-gate/internal/web/handler"
)

// Service is the caller information handler service.
type Service struct {
	handler.Service
	cfg *config.Config
}

var (
	// Handler is the caller information handler.
	Handler = Service{}
)

// Init registers the route on an authenticated router.
func (s *Service) Init(router fiber.Router, cfg *config.Config, _ handler.Deps) error {
	if router == nil || cfg == nil {
		return handler.ErrNilDependency
	}

	s.cfg = cfg

	router.Get("/me", s.Get)

	return nil
}

// Get returns account, role and permissions of the caller. Transient accounts
// are reported as null with the degraded flag set.
func (s *Service) Get(c *fiber.Ctx) error {
	ac := auth.FromCtx(c)
	if ac == nil {
		return handler.Fail(c, fiber.StatusUnauthorized, "unauthenticated", "authentication required")
	}

	var account *handler.AccountView
	if !ac.Degraded && ac.Account != nil && ac.Account.ID != 0 {
		account = handler.NewAccountView(ac.Account)
		account.RoleCode = ac.RoleCode
		account.RoleName = ac.RoleName
	}

	var subject string
	if ac.Claims != nil {
		subject = ac.Claims.Subject
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"account":     account,
		"subject":     subject,
		"role_code":   ac.RoleCode,
		"role_name":   ac.RoleName,
		"permissions": ac.Permissions.Sorted(),
		"degraded":    ac.Degraded,
		"request_id":  ac.RequestID,
	})
}
