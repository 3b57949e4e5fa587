package auth

import (
	"errors"
	"strings"
)

var (
	// ErrTokenMissing is returned when the request carries no bearer token.
	ErrTokenMissing = errors.New("bearer token missing")

	// ErrTokenInvalid is returned when signature, audience, issuer or expiry do not verify.
	ErrTokenInvalid = errors.New("bearer token invalid")

	// ErrPermissionDenied is matched by every DeniedError.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrJWKSRateLimited is returned when the key set may not be fetched yet.
	ErrJWKSRateLimited = errors.New("jwks fetch rate limited")
)

// DeniedError explains a policy denial. It only ever names permissions and
// roles, never anything about the account itself.
type DeniedError struct {
	Required      []Permission
	Missing       []Permission
	RequiredRoles []string
	Reason        string
}

func (e *DeniedError) Error() string {
	var b strings.Builder

	b.WriteString("permission denied")

	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}

	if len(e.Missing) > 0 {
		b.WriteString(": missing ")
		b.WriteString(strings.Join(Strings(e.Missing), ", "))
	}

	return b.String()
}

// Unwrap lets errors.Is match ErrPermissionDenied.
func (e *DeniedError) Unwrap() error {
	return ErrPermissionDenied
}
