package models

import "time"

// Role is a locally curated bundle of permissions.
// Every account references exactly one role. Roles are reference data for this
// service: they are seeded or maintained by administrators, never created by sync.
type Role struct {
	// ID is the unique identifier for the role.
	ID uint `gorm:"primaryKey"`
	// Code is the stable role code used in configuration and policies (e.g. "USER", "ADMIN").
	Code string `gorm:"unique;size:50;not null"`
	// Name is the human-readable role name.
	Name string `gorm:"size:100;not null"`
	// Description explains what the role is meant for.
	Description string `gorm:"size:255"`
	// IsCritical marks roles whose assignment must always be audited and never self-granted.
	IsCritical bool `gorm:"default:false"`
	// IsActive disables a role without deleting it.
	IsActive bool `gorm:"default:true"`
	// CreatedAt is the timestamp when the role was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the role was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Role model.
func (Role) TableName() string {
	return "roles"
}
