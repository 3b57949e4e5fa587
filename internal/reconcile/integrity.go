package reconcile

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/agromano/identity-gate/internal/audit"
	"github.com/agromano/identity-gate/internal/db/models"
	"github.com/agromano/identity-gate/internal/db/store"
	"github.com/agromano/identity-gate/internal/idp"
)

// CheckIntegrity compares every remote identity with every linked local
// account. It only reads. It refuses to run on fallback data, where every
// real account would look orphaned.
func (s *Service) CheckIntegrity(ctx context.Context) (IntegrityReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()

	remote, err := s.remoteUsers(ctx)
	if err != nil {
		return IntegrityReport{}, err
	}

	local, err := s.store.ListAll(ctx, store.Filter{LinkedOnly: true})
	if err != nil {
		return IntegrityReport{}, err
	}

	remoteIDs := make(map[string]struct{}, len(remote))
	for _, u := range remote {
		remoteIDs[u.ExternalID] = struct{}{}
	}

	localIDs := make(map[string]struct{}, len(local))

	report := IntegrityReport{
		RemoteCount: len(remote),
		LocalCount:  len(local),
		Orphaned:    []Orphan{},
		Missing:     []idp.User{},
	}

	for _, a := range local {
		localIDs[a.External()] = struct{}{}

		if _, ok := remoteIDs[a.External()]; !ok {
			report.Orphaned = append(report.Orphaned, orphan(a))
		}
	}

	for _, u := range remote {
		if _, ok := localIDs[u.ExternalID]; !ok {
			report.Missing = append(report.Missing, u)
		}
	}

	sort.Slice(report.Orphaned, func(i, j int) bool { return report.Orphaned[i].ID < report.Orphaned[j].ID })
	sort.Slice(report.Missing, func(i, j int) bool { return report.Missing[i].ExternalID < report.Missing[j].ExternalID })

	return report, nil
}

// remoteUsers pages through the whole provider directory.
func (s *Service) remoteUsers(ctx context.Context) ([]idp.User, error) {
	var users []idp.User

	for page := 0; ; page++ {
		p, err := s.gw.ListUsers(ctx, page, s.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list identities page %d: %w", page, err)
		}

		if p.IsFallback() || s.degraded() {
			return nil, ErrDegraded
		}

		users = append(users, p.Users...)

		if len(p.Users) < s.cfg.PageSize {
			return users, nil
		}
	}
}

func orphan(a models.Account) Orphan {
	return Orphan{ID: a.ID, ExternalID: a.External(), LoginName: a.LoginName, State: a.State}
}

// Stats summarises CheckIntegrity. The sync percentage is the share of remote
// identities that have a local account.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	report, err := s.CheckIntegrity(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		RemoteCount:    report.RemoteCount,
		LocalCount:     report.LocalCount,
		OrphanedCount:  len(report.Orphaned),
		MissingCount:   len(report.Missing),
		SyncPercentage: 100,
		Status:         StatusHealthy,
	}

	if report.RemoteCount > 0 {
		synced := report.RemoteCount - len(report.Missing)
		stats.SyncPercentage = int(math.Round(float64(synced) / float64(report.RemoteCount) * 100))
	}

	if stats.OrphanedCount > 0 || stats.MissingCount > 0 {
		stats.Status = StatusNeedsAttention
	}

	return stats, nil
}

// CleanupOrphans deactivates orphaned accounts that are still active. Rows are
// never deleted. With dryRun nothing is written at all.
func (s *Service) CleanupOrphans(ctx context.Context, dryRun bool, actor Actor) (CleanupResult, error) {
	report, err := s.CheckIntegrity(ctx)
	if err != nil {
		return CleanupResult{}, err
	}

	result := CleanupResult{Orphaned: report.Orphaned, DryRun: dryRun}

	if dryRun {
		return result, nil
	}

	for _, o := range report.Orphaned {
		if o.State != models.AccountActive {
			continue
		}

		before, err := s.store.FindByID(ctx, o.ID)
		if err != nil {
			result.Errors = append(result.Errors, o.ExternalID+": "+err.Error())
			continue
		}

		after, err := s.store.UpdateState(ctx, o.ID, models.AccountInactive)
		if err != nil {
			result.Errors = append(result.Errors, o.ExternalID+": "+err.Error())
			continue
		}

		result.DeactivatedCount++

		s.log.Info().Uint64("account_id", o.ID).Str("external_id", o.ExternalID).Msg("orphaned account deactivated")

		s.audit.Record(ctx, audit.Entry{
			Entity:         entityAccount,
			EntityID:       strconv.FormatUint(o.ID, 10),
			Action:         "deactivate",
			Before:         snapshot(before),
			After:          snapshot(after),
			ActorAccountID: actor.AccountID,
			OriginIP:       actor.IP,
			RequestID:      actor.RequestID,
		})
	}

	return result, nil
}
