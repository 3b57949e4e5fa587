package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/agromano/identity-gate/internal/audit"
	"github.com/agromano/identity-gate/internal/auth"
	"github.com/agromano/identity-gate/internal/db/models"
	"github.com/agromano/identity-gate/internal/idp"
)

// selfService is returned when an actor tries to change their own roles.
func selfService() error {
	return &auth.DeniedError{Reason: "self_service"}
}

// AssignRole changes the local role of an account. Remote roles are untouched.
func (s *Service) AssignRole(ctx context.Context, actor Actor, accountID uint64, roleCode, reason string) (*models.Account, error) {
	if actor.AccountID != nil && *actor.AccountID == accountID {
		return nil, selfService()
	}

	before, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if actor.ExternalID != "" && actor.ExternalID == before.External() {
		return nil, selfService()
	}

	role, err := s.store.FindRoleByCode(ctx, roleCode)
	if err != nil {
		return nil, err
	}

	if role.ID == before.RoleID {
		return before, nil
	}

	after, err := s.store.UpdateRole(ctx, accountID, role.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Uint64("account_id", accountID).
		Str("from", before.Role.Code).
		Str("to", role.Code).
		Msg("local role changed")

	s.audit.Record(ctx, audit.Entry{
		Entity:         entityAccount,
		EntityID:       strconv.FormatUint(accountID, 10),
		Action:         "update_role",
		Before:         snapshot(before),
		After:          withReason{accountSnapshot: snapshot(after), Reason: reason},
		ActorAccountID: actor.AccountID,
		OriginIP:       actor.IP,
		RequestID:      actor.RequestID,
	})

	return after, nil
}

type withReason struct {
	accountSnapshot
	Reason string `json:"reason,omitempty"`
}

type rolesSnapshot struct {
	Roles  []string `json:"roles"`
	Reason string   `json:"reason,omitempty"`
}

// UpdateRemoteRoles makes the provider roles of an identity equal requested.
// Providers that refuse removals keep the surplus roles; that is logged and
// reported, not failed. The local role is never touched.
func (s *Service) UpdateRemoteRoles(ctx context.Context, actor Actor, externalID string, requested []string, reason string) (RoleChange, error) {
	if actor.ExternalID == externalID {
		return RoleChange{}, selfService()
	}

	current, err := s.gw.GetUserRoles(ctx, externalID)
	if err != nil {
		return RoleChange{}, fmt.Errorf("failed to read roles of %s: %w", externalID, err)
	}

	for _, r := range current {
		if r.Source == idp.SourceFallback {
			return RoleChange{}, ErrDegraded
		}
	}

	before := idp.RoleIDs(current)
	want := dedupe(requested)

	change := RoleChange{
		Before:  before,
		Added:   difference(want, before),
		Removed: difference(before, want),
	}

	if len(change.Removed) > 0 {
		err := s.gw.RemoveRoles(ctx, externalID, change.Removed)

		switch {
		case errors.Is(err, idp.ErrUnsupported):
			s.log.Warn().Err(err).Str("external_id", externalID).Strs("roles", change.Removed).Msg("provider does not support role removal, keeping roles")

			change.RemovalUnsupported = true
			change.Removed = []string{}
		case err != nil:
			return RoleChange{}, fmt.Errorf("failed to remove roles of %s: %w", externalID, err)
		}
	}

	if len(change.Added) > 0 {
		if err := s.gw.AssignRoles(ctx, externalID, change.Added); err != nil {
			return RoleChange{}, fmt.Errorf("failed to assign roles to %s: %w", externalID, err)
		}
	}

	after := append(difference(before, change.Removed), change.Added...)
	slices.Sort(after)
	change.After = after

	s.audit.Record(ctx, audit.Entry{
		Entity:         entityIdPUserRoles,
		EntityID:       externalID,
		Action:         "update_roles",
		Before:         rolesSnapshot{Roles: before},
		After:          rolesSnapshot{Roles: after, Reason: reason},
		ActorAccountID: actor.AccountID,
		OriginIP:       actor.IP,
		RequestID:      actor.RequestID,
	})

	return change, nil
}

// difference returns the elements of a not in b, in a's order.
func difference(a, b []string) []string {
	out := []string{}

	for _, v := range a {
		if !slices.Contains(b, v) {
			out = append(out, v)
		}
	}

	return out
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))

	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}

	return out
}
