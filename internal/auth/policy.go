package auth

import (
	"slices"

	"github.com/gofiber/fiber/v2"
)

// Predicate decides on one aspect of a request. It returns nil to allow
// or a *DeniedError.
type Predicate func(c *fiber.Ctx, ac *Context) *DeniedError

// Target extracts the identifier of the entity a request acts upon.
type Target func(c *fiber.Ctx) string

// Param targets a route parameter.
func Param(name string) Target {
	return func(c *fiber.Ctx) string {
		return c.Params(name)
	}
}

// AllOf requires every permission.
func AllOf(perms ...Permission) Predicate {
	return func(_ *fiber.Ctx, ac *Context) *DeniedError {
		if missing := ac.Permissions.Missing(perms...); len(missing) > 0 {
			return &DeniedError{Required: perms, Missing: missing}
		}

		return nil
	}
}

// AnyOf requires at least one permission.
func AnyOf(perms ...Permission) Predicate {
	return func(_ *fiber.Ctx, ac *Context) *DeniedError {
		if !ac.Permissions.HasAny(perms...) {
			return &DeniedError{Required: perms, Missing: perms, Reason: "one of the required permissions"}
		}

		return nil
	}
}

// HasRole requires one of the role codes.
func HasRole(codes ...string) Predicate {
	return func(_ *fiber.Ctx, ac *Context) *DeniedError {
		if !slices.Contains(codes, ac.RoleCode) {
			return &DeniedError{RequiredRoles: codes, Reason: "role"}
		}

		return nil
	}
}

// NotSelf forbids acting upon the caller's own account.
func NotSelf(target Target) Predicate {
	return func(c *fiber.Ctx, ac *Context) *DeniedError {
		if ac.IsSelf(target(c)) {
			return &DeniedError{Reason: "self_service"}
		}

		return nil
	}
}

// And allows when every predicate allows and reports the first denial.
func And(preds ...Predicate) Predicate {
	return func(c *fiber.Ctx, ac *Context) *DeniedError {
		for _, p := range preds {
			if d := p(c, ac); d != nil {
				return d
			}
		}

		return nil
	}
}

// Or allows when any predicate allows. The denial lists the requirements of all branches.
func Or(preds ...Predicate) Predicate {
	return func(c *fiber.Ctx, ac *Context) *DeniedError {
		merged := &DeniedError{}

		for _, p := range preds {
			d := p(c, ac)
			if d == nil {
				return nil
			}

			merged.Required = append(merged.Required, d.Required...)
			merged.Missing = append(merged.Missing, d.Missing...)
			merged.RequiredRoles = append(merged.RequiredRoles, d.RequiredRoles...)

			if merged.Reason == "" {
				merged.Reason = d.Reason
			}
		}

		return merged
	}
}
