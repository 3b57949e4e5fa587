// Package roles handles local and provider role assignments.
package roles

import (
	"sort"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/agromano/identity-gate/internal/audit"
	"github.com/agromano/identity-gate/internal/auth"
	"github.com/agromano/identity-gate/internal/config"
	"github.com/agromano/identity-gate/internal/db/models"
	"github.com/agromano/identity-gate/internal/db/store"
	"github.com/agromano/identity-gate/internal/reconcile"
	"github.com/agromano/identity-gate/internal/web/handler"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Service is the role management handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	reconcile *reconcile.Service
	store     *store.Store
	audit     *audit.Sink
}

var (
	// Handler is the role management handler.
	Handler = Service{}
)

// LocalRoleRequest changes the local role of an account.
type LocalRoleRequest struct {
	RoleCode string `json:"role_code" validate:"required,max=50"`
	Reason   string `json:"reason" validate:"max=500"`
}

// RemoteRolesRequest sets the provider roles of an identity.
type RemoteRolesRequest struct {
	RoleIDs []string `json:"role_ids" validate:"required,dive,required"`
	Reason  string   `json:"reason" validate:"max=500"`
}

// Init registers the routes on an authenticated router.
func (s *Service) Init(router fiber.Router, cfg *config.Config, deps handler.Deps) error {
	if router == nil || cfg == nil || deps.Reconcile == nil || deps.Store == nil || deps.Audit == nil {
		return handler.ErrNilDependency
	}

	s.cfg = cfg
	s.reconcile = deps.Reconcile
	s.store = deps.Store
	s.audit = deps.Audit

	router.Put("/accounts/:id/role",
		auth.Require(auth.AnyOf(auth.PermRolesAssign), auth.NotSelf(auth.Param("id"))),
		s.AssignLocal,
	)
	router.Put("/idp/users/:external_id/roles",
		auth.Require(auth.AnyOf(auth.PermRolesAssign), auth.NotSelf(auth.Param("external_id"))),
		s.UpdateRemote,
	)
	router.Get("/accounts/:id/role-history",
		auth.Require(auth.AllOf(auth.PermAuditRead)),
		s.History,
	)

	return nil
}

// AssignLocal changes the local role of an account.
func (s *Service) AssignLocal(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, "invalid_id", "account id must be numeric")
	}

	var req LocalRoleRequest
	if err := handler.Bind(c, &req); err != nil {
		return handler.FailErr(c, err)
	}

	account, err := s.reconcile.AssignRole(c.UserContext(), reconcile.ActorFrom(auth.FromCtx(c)), id, req.RoleCode, req.Reason)
	if err != nil {
		return handler.FailErr(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"account": handler.NewAccountView(account),
	})
}

// UpdateRemote sets the provider roles of an identity.
func (s *Service) UpdateRemote(c *fiber.Ctx) error {
	var req RemoteRolesRequest
	if err := handler.Bind(c, &req); err != nil {
		return handler.FailErr(c, err)
	}

	change, err := s.reconcile.UpdateRemoteRoles(c.UserContext(), reconcile.ActorFrom(auth.FromCtx(c)),
		c.Params("external_id"), req.RoleIDs, req.Reason)
	if err != nil {
		return handler.FailErr(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"roles":   change,
	})
}

// HistoryEntry is one role related audit record.
type HistoryEntry struct {
	Entity         string  `json:"entity"`
	Action         string  `json:"action"`
	Before         string  `json:"before,omitempty"`
	After          string  `json:"after,omitempty"`
	ActorAccountID *uint64 `json:"actor_account_id"`
	OccurredAt     string  `json:"occurred_at"`
}

// History lists local and provider role changes of an account, newest first.
func (s *Service) History(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, "invalid_id", "account id must be numeric")
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	ctx := c.UserContext()

	account, err := s.store.FindByID(ctx, id)
	if err != nil {
		return handler.FailErr(c, err)
	}

	records, err := s.audit.List(ctx, "account", c.Params("id"), limit)
	if err != nil {
		return handler.FailErr(c, err)
	}

	if ext := account.External(); ext != "" {
		remote, err := s.audit.List(ctx, "idp_user_roles", ext, limit)
		if err != nil {
			return handler.FailErr(c, err)
		}

		records = append(records, remote...)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].OccurredAt.After(records[j].OccurredAt)
	})

	entries := make([]HistoryEntry, 0, len(records))

	for _, r := range records {
		if !roleRelated(r) {
			continue
		}

		entries = append(entries, HistoryEntry{
			Entity:         r.Entity,
			Action:         r.Action,
			Before:         r.Before,
			After:          r.After,
			ActorAccountID: r.ActorAccountID,
			OccurredAt:     r.OccurredAt.UTC().Format(time.RFC3339),
		})

		if len(entries) == limit {
			break
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"account": handler.NewAccountView(account),
		"history": entries,
	})
}

func roleRelated(r models.AuditRecord) bool {
	switch r.Action {
	case "create", "update_role", "update_roles":
		return true
	default:
		return false
	}
}
