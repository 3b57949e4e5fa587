// Package models holds the gorm models of the local identity tables.
package models

// All returns every model managed by this service in migration order.
func All() []any {
	return []any{
		&Role{},
		&Permission{},
		&RolePermission{},
		&Account{},
		&AuditRecord{},
	}
}
