package reconcile

import "errors"

var (
	// ErrNoDefaultRole is returned when the configured default role does not exist or is inactive.
	ErrNoDefaultRole = errors.New("default role not found")
	// ErrIdentityCollision is returned when a remote identity's email belongs to another local account.
	ErrIdentityCollision = errors.New("login name belongs to another account")
	// ErrDegraded is returned by operations that must not run on fallback data.
	ErrDegraded = errors.New("identity provider degraded, refusing to use fallback data")
	// ErrFallbackIdentity is returned when a synthetic identity would be persisted.
	ErrFallbackIdentity = errors.New("fallback identities are never persisted")
)
