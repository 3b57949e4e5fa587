package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agromano/identity-gate/internal/db/dbtest"
	"github.com/agromano/identity-gate/internal/db/models"
	"github.com/agromano/identity-gate/internal/db/seed"
	"github.com/agromano/identity-gate/internal/idp"
	"github.com/agromano/identity-gate/internal/reconcile"
)

// driftFixture has two synced accounts, two orphans, one legacy account
// without provider link and two identities without an account.
func driftFixture(t *testing.T) *fixture {
	t.Helper()

	f := newFixture(t, 4)

	dbtest.Account(t, f.db, "auth0|0000", "user0000@agromano.com", seed.RoleUser)
	dbtest.Account(t, f.db, "auth0|gone-b", "gone-b@agromano.com", seed.RoleWorker)
	dbtest.Account(t, f.db, "auth0|0001", "user0001@agromano.com", seed.RoleUser)
	dbtest.Account(t, f.db, "auth0|gone-a", "gone-a@agromano.com", seed.RoleSupervisor)
	dbtest.Account(t, f.db, "", "legacy", seed.RoleAdmin)

	return f
}

func TestCheckIntegrity(t *testing.T) {
	f := driftFixture(t)
	ctx := context.Background()

	report, err := f.svc.CheckIntegrity(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, report.RemoteCount)
	assert.Equal(t, 4, report.LocalCount)

	require.Len(t, report.Orphaned, 2)
	assert.Equal(t, "auth0|gone-b", report.Orphaned[0].ExternalID)
	assert.Equal(t, "auth0|gone-a", report.Orphaned[1].ExternalID)
	assert.Less(t, report.Orphaned[0].ID, report.Orphaned[1].ID)

	var missing []string
	for _, u := range report.Missing {
		missing = append(missing, u.ExternalID)
	}

	assert.Equal(t, []string{"auth0|0002", "auth0|0003"}, missing)

	again, err := f.svc.CheckIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, report, again)

	assert.Empty(t, f.rec.entries)
}

func TestCheckIntegrityPagesEverything(t *testing.T) {
	f := newFixture(t, 120)

	report, err := f.svc.CheckIntegrity(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 120, report.RemoteCount)
	assert.Len(t, report.Missing, 120)
	assert.Equal(t, int32(3), f.dir.listCalls.Load())
}

func TestCheckIntegrityRefusesFallback(t *testing.T) {
	f := driftFixture(t)

	down := &downGateway{directory: f.dir}
	probe := idp.NewProbe(down, nil, 0)
	svc := reconcile.New(f.store, probe, f.rec, testConfig())

	_, err := svc.CheckIntegrity(context.Background())
	require.ErrorIs(t, err, reconcile.ErrDegraded)

	_, err = svc.CleanupOrphans(context.Background(), false, reconcile.Actor{})
	require.ErrorIs(t, err, reconcile.ErrDegraded)

	active, err := f.store.CountAll(context.Background(), storeActive())
	require.NoError(t, err)
	assert.Equal(t, int64(5), active)
}

func TestStats(t *testing.T) {
	f := driftFixture(t)

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, reconcile.Stats{
		RemoteCount:    4,
		LocalCount:     4,
		OrphanedCount:  2,
		MissingCount:   2,
		SyncPercentage: 50,
		Status:         reconcile.StatusNeedsAttention,
	}, stats)

	healthy := newFixture(t, 0)

	stats, err = healthy.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, stats.SyncPercentage)
	assert.Equal(t, reconcile.StatusHealthy, stats.Status)
}

func TestCleanupOrphans(t *testing.T) {
	ctx := context.Background()
	admin := uint64(99)
	actor := reconcile.Actor{AccountID: &admin, IP: "10.1.1.1", RequestID: "req-7"}

	t.Run("dry run writes nothing", func(t *testing.T) {
		f := driftFixture(t)

		res, err := f.svc.CleanupOrphans(ctx, true, actor)
		require.NoError(t, err)

		assert.True(t, res.DryRun)
		assert.Len(t, res.Orphaned, 2)
		assert.Zero(t, res.DeactivatedCount)
		assert.Empty(t, f.rec.entries)

		active, err := f.store.CountAll(ctx, storeActive())
		require.NoError(t, err)
		assert.Equal(t, int64(5), active)
	})

	t.Run("deactivates exactly the orphans", func(t *testing.T) {
		f := driftFixture(t)

		res, err := f.svc.CleanupOrphans(ctx, false, actor)
		require.NoError(t, err)

		assert.Equal(t, 2, res.DeactivatedCount)
		assert.Empty(t, res.Errors)

		for _, o := range res.Orphaned {
			a, err := f.store.FindByID(ctx, o.ID)
			require.NoError(t, err)
			assert.Equal(t, models.AccountInactive, a.State)
		}

		for _, ext := range []string{"auth0|0000", "auth0|0001"} {
			a, err := f.store.FindByExternalID(ctx, ext)
			require.NoError(t, err)
			assert.Equal(t, models.AccountActive, a.State)
		}

		legacy, err := f.store.FindByLoginName(ctx, "legacy")
		require.NoError(t, err)
		assert.Equal(t, models.AccountActive, legacy.State)

		require.Len(t, f.rec.entries, 2)

		for _, e := range f.rec.entries {
			assert.Equal(t, "account", e.Entity)
			assert.Equal(t, "deactivate", e.Action)
			assert.Equal(t, &admin, e.ActorAccountID)
			assert.Equal(t, "10.1.1.1", e.OriginIP)
			assert.Equal(t, "req-7", e.RequestID)
			assert.NotNil(t, e.Before)
			assert.NotNil(t, e.After)
		}

		// already inactive orphans are reported but not touched again
		res, err = f.svc.CleanupOrphans(ctx, false, actor)
		require.NoError(t, err)

		assert.Len(t, res.Orphaned, 2)
		assert.Zero(t, res.DeactivatedCount)
		assert.Len(t, f.rec.entries, 2)
	})
}

// downGateway fails every call as unavailable.
type downGateway struct {
	*directory
}

var errUnavailable = &idp.ProviderUnavailableError{Op: "test", Err: errors.New("connection refused")}

func (d *downGateway) ListUsers(context.Context, int, int) (idp.UserPage, error) {
	return idp.UserPage{}, errUnavailable
}

func (d *downGateway) GetUser(context.Context, string) (idp.User, error) {
	return idp.User{}, errUnavailable
}

func (d *downGateway) GetUserRoles(context.Context, string) ([]idp.Role, error) {
	return nil, errUnavailable
}
