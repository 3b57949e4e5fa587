package models

import "time"

// AccountState is the lifecycle state of a local account.
type AccountState string

const (
	// AccountActive accounts resolve to their role's permissions.
	AccountActive AccountState = "active"
	// AccountInactive accounts keep their row and role but resolve to no permissions.
	AccountInactive AccountState = "inactive"
)

// Account is the local record of a person allowed to use the application.
// It is linked to the identity provider through ExternalID. Accounts created
// before the provider was introduced may have no ExternalID.
type Account struct {
	// ID is the local surrogate key.
	ID uint64 `gorm:"primaryKey"`
	// ExternalID is the provider subject (e.g. "auth0|abc123"), unique when present.
	ExternalID *string `gorm:"uniqueIndex;size:255"`
	// LoginName is the unique login handle, usually the email address.
	LoginName string `gorm:"unique;size:255;not null"`
	// RoleID is the ID of the single role assigned to this account.
	RoleID uint `gorm:"column:role_id;not null"`
	// Role is the associated role (enforced with a foreign key constraint).
	Role Role `gorm:"foreignKey:RoleID;references:ID;constraint:OnDelete:RESTRICT,OnUpdate:CASCADE"`
	// State is either active or inactive. Accounts are deactivated, never deleted.
	State AccountState `gorm:"type:varchar(20);not null;default:'active'"`
	// CreatedAt is set by the store on insert.
	CreatedAt time.Time
	// UpdatedAt is set by the store on every write.
	UpdatedAt time.Time

	// SyncError marks a transient account built when the provider or the store
	// failed during request-time resolution. Such accounts are never persisted
	// and carry no privileges.
	SyncError bool `gorm:"-" json:"sync_error,omitempty"`
}

// TableName specifies the database table name for the Account model.
func (Account) TableName() string {
	return "accounts"
}

// IsActive reports whether the account may be granted permissions at all.
func (a *Account) IsActive() bool {
	return a != nil && a.State == AccountActive && !a.SyncError
}

// External returns the provider subject or an empty string for unlinked accounts.
func (a *Account) External() string {
	if a == nil || a.ExternalID == nil {
		return ""
	}

	return *a.ExternalID
}
