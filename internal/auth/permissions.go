package auth

import "sort"

// Permission is a permission code such as "roles:assign".
type Permission string

// Permissions checked by this service. Business permissions are curated in the
// database and only ever compared as opaque codes.
const (
	PermBasicAccess Permission = "basic:access"
	PermRolesRead   Permission = "roles:read"
	PermRolesAssign Permission = "roles:assign"
	PermSyncManage  Permission = "sync:manage"
	PermAuditRead   Permission = "audit:read"
	PermAdminAccess Permission = "admin:access"
)

// Set is an unordered set of permissions.
type Set map[Permission]struct{}

// NewSet builds a set from codes. Empty codes are skipped.
func NewSet(codes ...string) Set {
	s := make(Set, len(codes))

	for _, c := range codes {
		if c != "" {
			s[Permission(c)] = struct{}{}
		}
	}

	return s
}

// Has reports whether p is in the set.
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAny reports whether at least one of ps is in the set. An empty list never matches.
func (s Set) HasAny(ps ...Permission) bool {
	for _, p := range ps {
		if s.Has(p) {
			return true
		}
	}

	return false
}

// HasAll reports whether every one of ps is in the set.
func (s Set) HasAll(ps ...Permission) bool {
	return len(s.Missing(ps...)) == 0
}

// Missing returns the permissions of ps not in the set, in the given order.
func (s Set) Missing(ps ...Permission) []Permission {
	var missing []Permission

	for _, p := range ps {
		if !s.Has(p) {
			missing = append(missing, p)
		}
	}

	return missing
}

// Sorted returns the codes in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}

	sort.Strings(out)

	return out
}

// Strings converts permissions to plain codes.
func Strings(ps []Permission) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}

	return out
}
