package reconcile

import (
	"github.com/agromano/identity-gate/internal/auth"
	"github.com/agromano/identity-gate/internal/db/models"
	"github.com/agromano/identity-gate/internal/idp"
)

// Actor is who asked for a mutation. The zero value is the system.
type Actor struct {
	AccountID  *uint64
	ExternalID string
	IP         string
	RequestID  string
}

// ActorFrom builds the actor of an authenticated request.
func ActorFrom(ac *auth.Context) Actor {
	if ac == nil {
		return Actor{}
	}

	return Actor{
		AccountID:  ac.ActorID(),
		ExternalID: ac.Account.External(),
		IP:         ac.IP,
		RequestID:  ac.RequestID,
	}
}

// SyncResult is the outcome of synchronising one identity.
type SyncResult struct {
	Account *models.Account
	Created bool
}

// SyncAllResult is the outcome of a full run. Errors hold one line per failed identity.
type SyncAllResult struct {
	SyncedCount int      `json:"synced_count"`
	Errors      []string `json:"errors"`
}

// Orphan is a local account whose provider identity no longer exists.
type Orphan struct {
	ID         uint64              `json:"id"`
	ExternalID string              `json:"external_id"`
	LoginName  string              `json:"login_name"`
	State      models.AccountState `json:"state"`
}

// IntegrityReport compares the provider directory with the local accounts.
// Orphaned is sorted by local id, Missing by external id.
type IntegrityReport struct {
	RemoteCount int        `json:"remote_count"`
	LocalCount  int        `json:"local_count"`
	Orphaned    []Orphan   `json:"orphaned"`
	Missing     []idp.User `json:"missing"`
}

// Stats summarises an IntegrityReport.
type Stats struct {
	RemoteCount    int    `json:"remote_count"`
	LocalCount     int    `json:"local_count"`
	OrphanedCount  int    `json:"orphaned_count"`
	MissingCount   int    `json:"missing_count"`
	SyncPercentage int    `json:"sync_percentage"`
	Status         string `json:"status"`
}

// Integrity statuses of Stats.
const (
	StatusHealthy        = "healthy"
	StatusNeedsAttention = "needs_attention"
)

// CleanupResult is the outcome of CleanupOrphans.
type CleanupResult struct {
	Orphaned         []Orphan `json:"orphaned"`
	DeactivatedCount int      `json:"deactivated_count"`
	DryRun           bool     `json:"dry_run"`
	Errors           []string `json:"errors,omitempty"`
}

// RoleChange is the outcome of UpdateRemoteRoles.
type RoleChange struct {
	Before  []string `json:"before"`
	After   []string `json:"after"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	// RemovalUnsupported is set when the provider refused to remove roles.
	RemovalUnsupported bool `json:"removal_unsupported,omitempty"`
}
