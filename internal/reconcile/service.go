// Package reconcile keeps local accounts consistent with the identity provider.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/agromano/identity-gate/internal/audit"
	"github.com/agromano/identity-gate/internal/config"
	"github.com/agromano/identity-gate/internal/db/models"
	"github.com/agromano/identity-gate/internal/db/store"
	"github.com/agromano/identity-gate/internal/idp"
	"github.com/agromano/identity-gate/internal/logger"
)

const (
	defaultPageSize       = 50
	defaultWorkers        = 4
	defaultRequestTimeout = 2 * time.Second
	defaultBatchTimeout   = 5 * time.Minute

	entityAccount      = "account"
	entityIdPUserRoles = "idp_user_roles"
)

// degradable is implemented by gateways that know when they serve fallback data.
type degradable interface {
	Degraded() bool
}

// Service reconciles remote identities with local accounts.
type Service struct {
	store *store.Store
	gw    idp.Gateway
	audit audit.Recorder
	cfg   config.Reconcile
	log   zerolog.Logger

	inflight singleflight.Group
}

// New creates the service. gw is normally the availability probe.
func New(s *store.Store, gw idp.Gateway, rec audit.Recorder, cfg config.Reconcile) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}

	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}

	return &Service{
		store: s,
		gw:    gw,
		audit: rec,
		cfg:   cfg,
		log:   logger.Component("reconcile"),
	}
}

// SyncOne makes sure a local account exists for the remote identity.
// Running it again for the same identity returns the same account.
func (s *Service) SyncOne(ctx context.Context, externalID string) (SyncResult, error) {
	if account, err := s.store.FindByExternalID(ctx, externalID); err == nil {
		return SyncResult{Account: account}, nil
	} else if !errors.Is(err, store.ErrAccountNotFound) {
		return SyncResult{}, err
	}

	user, err := s.gw.GetUser(ctx, externalID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to fetch identity %s: %w", externalID, err)
	}

	return s.syncUser(ctx, user)
}

// syncUser creates the account of an already fetched identity if it has none.
func (s *Service) syncUser(ctx context.Context, user idp.User) (SyncResult, error) {
	if user.IsFallback() {
		return SyncResult{}, ErrFallbackIdentity
	}

	account, err := s.store.FindByExternalID(ctx, user.ExternalID)
	if err == nil {
		return SyncResult{Account: account}, nil
	} else if !errors.Is(err, store.ErrAccountNotFound) {
		return SyncResult{}, err
	}

	role, err := s.store.FindRoleByCode(ctx, s.cfg.DefaultRoleCode)
	if err != nil {
		if errors.Is(err, store.ErrRoleNotFound) {
			return SyncResult{}, fmt.Errorf("%w: %s", ErrNoDefaultRole, s.cfg.DefaultRoleCode)
		}

		return SyncResult{}, err
	}

	loginName, err := s.loginName(ctx, user)
	if err != nil {
		return SyncResult{}, err
	}

	externalID := user.ExternalID
	account = &models.Account{
		ExternalID: &externalID,
		LoginName:  loginName,
		RoleID:     role.ID,
		State:      models.AccountActive,
	}

	if err := s.store.Create(ctx, account); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return SyncResult{}, err
		}

		// someone else created it between our read and write
		existing, rerr := s.store.FindByExternalID(ctx, externalID)
		if rerr != nil {
			return SyncResult{}, fmt.Errorf("%w: %s", ErrIdentityCollision, loginName)
		}

		return SyncResult{Account: existing}, nil
	}

	account.Role = *role

	s.log.Info().
		Str("external_id", externalID).
		Uint64("account_id", account.ID).
		Str("login_name", loginName).
		Str("role", role.Code).
		Msg("local account created")

	s.audit.Record(ctx, audit.Entry{
		Entity:   entityAccount,
		EntityID: strconv.FormatUint(account.ID, 10),
		Action:   "create",
		After:    snapshot(account),
	})

	return SyncResult{Account: account, Created: true}, nil
}

// loginName derives a free login name. An email that is taken is a collision,
// other candidates get a random suffix.
func (s *Service) loginName(ctx context.Context, user idp.User) (string, error) {
	if user.Email != "" {
		existing, err := s.store.FindByLoginName(ctx, user.Email)
		switch {
		case errors.Is(err, store.ErrAccountNotFound):
			return user.Email, nil
		case err != nil:
			return "", err
		case existing.External() != user.ExternalID:
			return "", fmt.Errorf("%w: %s", ErrIdentityCollision, user.Email)
		default:
			return user.Email, nil
		}
	}

	name := user.Nickname
	if name == "" {
		name = placeholder(user.ExternalID)
	}

	if _, err := s.store.FindByLoginName(ctx, name); errors.Is(err, store.ErrAccountNotFound) {
		return name, nil
	} else if err != nil {
		return "", err
	}

	return name + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8], nil
}

// placeholder is "user_" plus the last eight characters of the subject.
func placeholder(externalID string) string {
	id := externalID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}

	return "user_" + id
}

// GetOrCreate resolves the account of an authenticated subject on the request
// path. It never fails: when the provider or the store is in trouble it
// returns a transient account with SyncError set and no privileges.
func (s *Service) GetOrCreate(ctx context.Context, externalID string) *models.Account {
	account, err := s.store.FindByExternalID(ctx, externalID)
	if err == nil {
		return account
	}

	if !errors.Is(err, store.ErrAccountNotFound) {
		s.log.Error().Err(err).Str("external_id", externalID).Msg("account lookup failed")
		return degradedAccount(externalID)
	}

	v, err, shared := s.inflight.Do(externalID, func() (any, error) {
		// the first caller's cancellation must not fail the others
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RequestTimeout)
		defer cancel()

		res, err := s.SyncOne(ctx, externalID)

		return res.Account, err
	})
	if err != nil {
		s.log.Warn().Err(err).Str("external_id", externalID).Bool("shared", shared).Msg("account resolution degraded")
		return degradedAccount(externalID)
	}

	// callers must not share one mutable account
	out := *v.(*models.Account)

	return &out
}

func degradedAccount(externalID string) *models.Account {
	return &models.Account{
		ExternalID: &externalID,
		State:      models.AccountActive,
		SyncError:  true,
	}
}

// SyncAll synchronises every remote identity. Pages are fetched one after the
// other; identities of a page are synchronised by a bounded set of workers.
// Failures of single identities are collected, a failing page listing ends
// the run with the counts so far.
func (s *Service) SyncAll(ctx context.Context) (SyncAllResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()

	result := SyncAllResult{Errors: []string{}}
	started := time.Now()

	var mu sync.Mutex

	for page := 0; ; page++ {
		p, err := s.gw.ListUsers(ctx, page, s.cfg.PageSize)
		if err != nil {
			return result, fmt.Errorf("failed to list identities page %d: %w", page, err)
		}

		if p.IsFallback() || s.degraded() {
			return result, ErrDegraded
		}

		if len(p.Users) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(s.cfg.Workers)

		for _, u := range p.Users {
			g.Go(func() error {
				_, err := s.syncUser(ctx, u)

				mu.Lock()
				defer mu.Unlock()

				if err != nil {
					result.Errors = append(result.Errors, label(u)+": "+err.Error())
				} else {
					result.SyncedCount++
				}

				return nil
			})
		}

		_ = g.Wait()

		if len(p.Users) < s.cfg.PageSize {
			break
		}
	}

	s.log.Info().
		Int("synced", result.SyncedCount).
		Int("errors", len(result.Errors)).
		Dur("took", time.Since(started)).
		Msg("reconciliation finished")

	return result, nil
}

func label(u idp.User) string {
	if u.Email != "" {
		return u.Email
	}

	return u.ExternalID
}

func (s *Service) degraded() bool {
	d, ok := s.gw.(degradable)
	return ok && d.Degraded()
}

// accountSnapshot is the audited view of an account.
type accountSnapshot struct {
	ID         uint64              `json:"id"`
	ExternalID string              `json:"external_id,omitempty"`
	LoginName  string              `json:"login_name"`
	RoleID     uint                `json:"role_id"`
	RoleCode   string              `json:"role_code,omitempty"`
	State      models.AccountState `json:"state"`
}

func snapshot(a *models.Account) accountSnapshot {
	return accountSnapshot{
		ID:         a.ID,
		ExternalID: a.External(),
		LoginName:  a.LoginName,
		RoleID:     a.RoleID,
		RoleCode:   a.Role.Code,
		State:      a.State,
	}
}
