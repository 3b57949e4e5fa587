package models

import "time"

// Permission is a named capability in "domain:action[:scope]" form, e.g. "roles:assign"
// or "trabajadores:read:all". Only active permissions count when resolving an account.
type Permission struct {
	// ID is the unique identifier for the permission.
	ID uint `gorm:"primaryKey"`
	// Code is the unique permission code checked by policies.
	Code string `gorm:"unique;size:100;not null"`
	// Category groups permissions for administration screens (e.g. "attendance", "payroll").
	Category string `gorm:"size:50;not null"`
	// Description provides a human-readable explanation of what this permission grants.
	Description string `gorm:"size:255"`
	// IsActive withdraws a permission from every role at once when false.
	IsActive bool `gorm:"default:true"`
	// CreatedAt is the timestamp when the permission was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the permission was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Permission model.
func (Permission) TableName() string {
	return "permissions"
}
