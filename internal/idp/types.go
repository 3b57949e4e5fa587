package idp

import "time"

// Source tells where a remote record came from.
type Source string

const (
	// SourceIdP marks data returned by the provider.
	SourceIdP Source = "idp"
	// SourceFallback marks synthetic data served while the provider is unavailable.
	SourceFallback Source = "fallback"
)

// User is an identity as known to the provider.
type User struct {
	ExternalID    string     `json:"user_id"`
	Email         string     `json:"email,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	Name          string     `json:"name,omitempty"`
	Nickname      string     `json:"nickname,omitempty"`
	Picture       string     `json:"picture,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	LoginsCount   int        `json:"logins_count"`
	Source        Source     `json:"source"`
}

// IsFallback reports whether u is synthetic.
func (u User) IsFallback() bool {
	return u.Source == SourceFallback
}

// Role is a role defined at the provider.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Source      Source `json:"source"`
}

// UserPage is one page of a user listing.
type UserPage struct {
	Users []User `json:"users"`
	Start int    `json:"start"`
	Limit int    `json:"limit"`
	Total int    `json:"total"`
}

// IsFallback reports whether the page was served from the fallback directory.
func (p UserPage) IsFallback() bool {
	for _, u := range p.Users {
		if u.IsFallback() {
			return true
		}
	}

	return false
}

// RoleIDs returns the ids of roles in order.
func RoleIDs(roles []Role) []string {
	ids := make([]string, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}

	return ids
}
