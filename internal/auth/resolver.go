package auth

import (
	"context"
	"fmt"

	"github.com/agromano/identity-gate/internal/db/models"
)

// PermissionSource reads role reference data.
type PermissionSource interface {
	FindRoleByID(ctx context.Context, id uint) (*models.Role, error)
	PermissionCodesForRole(ctx context.Context, roleID uint) ([]string, error)
}

// Resolved is the effective authorization of an account.
type Resolved struct {
	RoleCode    string
	RoleName    string
	Permissions Set
}

// Resolver computes effective permissions. It keeps no cache: a role or
// permission change is visible on the next request.
type Resolver struct {
	source   PermissionSource
	degraded []string
}

// NewResolver creates a resolver. degraded is granted to accounts that could
// not be resolved; pass nil for no access at all.
func NewResolver(source PermissionSource, degraded []string) *Resolver {
	return &Resolver{source: source, degraded: degraded}
}

// Resolve returns the permissions of account. Inactive accounts keep their
// role but get an empty set.
func (r *Resolver) Resolve(ctx context.Context, account *models.Account) (Resolved, error) {
	if account == nil || account.SyncError {
		return r.Degraded(), nil
	}

	role := account.Role
	if role.ID == 0 {
		found, err := r.source.FindRoleByID(ctx, account.RoleID)
		if err != nil {
			return Resolved{Permissions: Set{}}, fmt.Errorf("failed to resolve role %d: %w", account.RoleID, err)
		}

		role = *found
	}

	out := Resolved{RoleCode: role.Code, RoleName: role.Name, Permissions: Set{}}

	if !account.IsActive() {
		return out, nil
	}

	codes, err := r.source.PermissionCodesForRole(ctx, role.ID)
	if err != nil {
		return Resolved{Permissions: Set{}}, fmt.Errorf("failed to resolve permissions: %w", err)
	}

	out.Permissions = NewSet(codes...)

	return out, nil
}

// Degraded returns the configured minimal authorization.
func (r *Resolver) Degraded() Resolved {
	return Resolved{Permissions: NewSet(r.degraded...)}
}
