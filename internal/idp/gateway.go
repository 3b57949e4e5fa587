package idp

import "context"

// Gateway is the subset of the provider management API this service uses.
// Pages are zero based.
type Gateway interface {
	ListUsers(ctx context.Context, page, perPage int) (UserPage, error)
	SearchUsers(ctx context.Context, query string, page, perPage int) (UserPage, error)
	GetUser(ctx context.Context, externalID string) (User, error)
	ListRoles(ctx context.Context) ([]Role, error)
	GetUserRoles(ctx context.Context, externalID string) ([]Role, error)
	AssignRoles(ctx context.Context, externalID string, roleIDs []string) error
	// RemoveRoles may fail with ErrUnsupported on tenants that do not allow it.
	RemoveRoles(ctx context.Context, externalID string, roleIDs []string) error
}
