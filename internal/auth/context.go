package auth

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/agromano/identity-gate/internal/db/models"
)

// localsKey is the single fiber.Locals key holding the request's Context.
const localsKey = "auth.context"

// Context is everything the gate established about the caller.
type Context struct {
	Account     *models.Account
	RoleCode    string
	RoleName    string
	Permissions Set
	Claims      *Claims
	// Degraded is set when the account could not be resolved reliably.
	Degraded  bool
	RequestID string
	IP        string
}

// Can reports whether the caller holds p.
func (c *Context) Can(p Permission) bool {
	return c != nil && c.Permissions.Has(p)
}

// ActorID returns the local account id for audit records, nil for transient accounts.
func (c *Context) ActorID() *uint64 {
	if c == nil || c.Account == nil || c.Account.ID == 0 {
		return nil
	}

	id := c.Account.ID

	return &id
}

// IsSelf reports whether target names the caller by local id or provider subject.
func (c *Context) IsSelf(target string) bool {
	if c == nil || c.Account == nil || target == "" {
		return false
	}

	if c.Account.ID != 0 && target == strconv.FormatUint(c.Account.ID, 10) {
		return true
	}

	return target == c.Account.External()
}

// FromCtx returns the Context stored by Gate.Authenticate, nil on unauthenticated routes.
func FromCtx(c *fiber.Ctx) *Context {
	ac, _ := c.Locals(localsKey).(*Context)
	return ac
}

// SetCtx stores ac for the rest of the handler chain.
func SetCtx(c *fiber.Ctx, ac *Context) {
	c.Locals(localsKey, ac)
}
