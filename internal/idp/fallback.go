package idp

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FallbackDirectory is the synthetic directory served while the provider is down.
// It only knows its own identities; anything else is reported as unavailable
// rather than not found.
type FallbackDirectory struct {
	users     []User
	roles     []Role
	userRoles map[string][]string
}

// NewFallbackDirectory returns the built-in dataset.
func NewFallbackDirectory() *FallbackDirectory {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	users := []User{
		{ExternalID: "fallback|admin", Email: "admin@agromano.com", EmailVerified: true, Name: "Administrador AgroMano", Nickname: "admin"},
		{ExternalID: "fallback|worker", Email: "trabajador@agromano.com", EmailVerified: true, Name: "Trabajador de Campo", Nickname: "trabajador"},
		{ExternalID: "fallback|supervisor", Email: "supervisor@agromano.com", EmailVerified: true, Name: "Supervisor de Área", Nickname: "supervisor"},
	}
	for i := range users {
		users[i].CreatedAt = created
		users[i].Source = SourceFallback
	}

	roles := []Role{
		{ID: "rol_fallback_admin", Name: "Administrador", Description: "Administrador del sistema"},
		{ID: "rol_fallback_supervisor", Name: "Supervisor", Description: "Supervisor de área"},
		{ID: "rol_fallback_worker", Name: "Trabajador", Description: "Trabajador de campo"},
		{ID: "rol_fallback_accountant", Name: "Contador", Description: "Contador de nómina"},
	}
	for i := range roles {
		roles[i].Source = SourceFallback
	}

	return &FallbackDirectory{
		users: users,
		roles: roles,
		userRoles: map[string][]string{
			"fallback|admin":      {"rol_fallback_admin"},
			"fallback|worker":     {"rol_fallback_worker"},
			"fallback|supervisor": {"rol_fallback_supervisor"},
		},
	}
}

// ListUsers pages over the synthetic users with the provider's paging rules.
func (f *FallbackDirectory) ListUsers(_ context.Context, page, perPage int) (UserPage, error) {
	return paginate(f.users, page, perPage), nil
}

// SearchUsers matches the query text against email, name and nickname.
// Field prefixes such as `email:` and quotes are ignored.
func (f *FallbackDirectory) SearchUsers(_ context.Context, query string, page, perPage int) (UserPage, error) {
	needle := query
	if i := strings.Index(needle, ":"); i >= 0 {
		needle = needle[i+1:]
	}

	needle = strings.ToLower(strings.Trim(needle, `"* `))

	var matched []User

	for _, u := range f.users {
		if strings.Contains(strings.ToLower(u.Email), needle) ||
			strings.Contains(strings.ToLower(u.Name), needle) ||
			strings.Contains(strings.ToLower(u.Nickname), needle) {
			matched = append(matched, u)
		}
	}

	return paginate(matched, page, perPage), nil
}

// GetUser returns a synthetic user.
func (f *FallbackDirectory) GetUser(_ context.Context, externalID string) (User, error) {
	for _, u := range f.users {
		if u.ExternalID == externalID {
			return u, nil
		}
	}

	return User{}, f.unknown("GetUser", externalID)
}

// ListRoles returns the synthetic roles.
func (f *FallbackDirectory) ListRoles(_ context.Context) ([]Role, error) {
	return append([]Role(nil), f.roles...), nil
}

// GetUserRoles returns the roles of a synthetic user.
func (f *FallbackDirectory) GetUserRoles(_ context.Context, externalID string) ([]Role, error) {
	ids, ok := f.userRoles[externalID]
	if !ok {
		return nil, f.unknown("GetUserRoles", externalID)
	}

	roles := make([]Role, 0, len(ids))

	for _, id := range ids {
		for _, r := range f.roles {
			if r.ID == id {
				roles = append(roles, r)
			}
		}
	}

	return roles, nil
}

func (f *FallbackDirectory) unknown(op, externalID string) error {
	return &ProviderUnavailableError{
		Op:  op,
		Err: fmt.Errorf("no fallback data for %s", externalID),
	}
}

func paginate(users []User, page, perPage int) UserPage {
	if perPage <= 0 {
		perPage = len(users)
	}

	start := page * perPage
	if page < 0 || start > len(users) {
		start = len(users)
	}

	end := min(start+perPage, len(users))

	return UserPage{
		Users: append([]User(nil), users[start:end]...),
		Start: start,
		Limit: perPage,
		Total: len(users),
	}
}
