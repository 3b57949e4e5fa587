package models

import "time"

// AuditRecord is an append-only entry describing one privileged mutation.
// Records are inserted by the audit sink and never updated or deleted.
type AuditRecord struct {
	// ID is the unique identifier for the record.
	ID uint64 `gorm:"primaryKey"`
	// Entity names the mutated entity type (e.g. "account", "idp_user_roles").
	Entity string `gorm:"size:50;not null;index:idx_audit_entity"`
	// EntityID identifies the mutated entity (local ID or provider subject).
	EntityID string `gorm:"size:255;not null;index:idx_audit_entity"`
	// Action is the mutation performed (e.g. "create", "deactivate", "update_roles").
	Action string `gorm:"size:50;not null"`
	// Before is the JSON snapshot before the mutation, empty for creations.
	Before string `gorm:"type:text"`
	// After is the JSON snapshot after the mutation.
	After string `gorm:"type:text"`
	// ActorAccountID is the acting account, nil for system-initiated changes.
	ActorAccountID *uint64
	// OriginIP is the client address of the request that caused the mutation.
	OriginIP string `gorm:"size:64"`
	// RequestID correlates the record with access logs.
	RequestID string `gorm:"size:64"`
	// OccurredAt is when the mutation happened.
	OccurredAt time.Time `gorm:"not null;index"`
}

// TableName specifies the database table name for the AuditRecord model.
func (AuditRecord) TableName() string {
	return "audit_records"
}
