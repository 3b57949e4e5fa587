package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agromano/identity-gate/internal/auth"
	"github.com/agromano/identity-gate/internal/db/dbtest"
	"github.com/agromano/identity-gate/internal/db/models"
	"github.com/agromano/identity-gate/internal/db/seed"
	"github.com/agromano/identity-gate/internal/db/store"
)

// fakeVerifier accepts "token-<subject>".
type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, raw string) (*auth.Claims, error) {
	const prefix = "token-"
	if len(raw) <= len(prefix) || raw[:len(prefix)] != prefix {
		return nil, auth.ErrTokenInvalid
	}

	return &auth.Claims{Subject: raw[len(prefix):]}, nil
}

// storeAccounts resolves subjects from the store and degrades unknown ones.
type storeAccounts struct {
	store *store.Store
}

func (a storeAccounts) GetOrCreate(ctx context.Context, externalID string) *models.Account {
	account, err := a.store.FindByExternalID(ctx, externalID)
	if err != nil {
		ext := externalID
		return &models.Account{ExternalID: &ext, State: models.AccountActive, SyncError: true}
	}

	return account
}

type denial struct {
	Success       bool     `json:"success"`
	Code          string   `json:"code"`
	Reason        string   `json:"reason"`
	Required      []string `json:"required"`
	Missing       []string `json:"missing"`
	RequiredRoles []string `json:"required_roles"`
}

func newApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db := dbtest.Seeded(t)
	s := store.New(db)
	gate := auth.NewGate(fakeVerifier{}, storeAccounts{store: s}, auth.NewResolver(s, []string{"basic:access"}))

	ok := func(c *fiber.Ctx) error {
		ac := auth.FromCtx(c)

		return c.JSON(fiber.Map{"role": ac.RoleCode, "degraded": ac.Degraded, "permissions": ac.Permissions.Sorted()})
	}

	app := fiber.New()
	api := app.Group("/api", gate.Authenticate())
	api.Get("/me", ok)
	api.Get("/roles", auth.Require(auth.AllOf(auth.PermRolesRead)), ok)
	api.Put("/accounts/:id/role", auth.Require(auth.AllOf(auth.PermRolesAssign), auth.NotSelf(auth.Param("id"))), ok)
	api.Get("/admin", auth.Require(auth.HasRole(seed.RoleAdmin)), ok)
	api.Get("/reports", auth.Require(auth.Or(
		auth.AllOf(auth.PermAuditRead),
		auth.HasRole(seed.RoleSupervisor),
	)), ok)

	return app, db
}

func do(t *testing.T, app *fiber.App, method, path, token string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func TestAuthenticate(t *testing.T) {
	app, db := newApp(t)
	dbtest.Account(t, db, "auth0|worker", "worker", seed.RoleWorker)

	t.Run("missing token", func(t *testing.T) {
		resp := do(t, app, http.MethodGet, "/api/me", "")

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, resp.Header.Get(fiber.HeaderWWWAuthenticate), "Bearer")
		assert.Equal(t, "unauthenticated", decode[denial](t, resp).Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		resp := do(t, app, http.MethodGet, "/api/me", "forged")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("active account", func(t *testing.T) {
		resp := do(t, app, http.MethodGet, "/api/me", "token-auth0|worker")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[struct {
			Role        string   `json:"role"`
			Degraded    bool     `json:"degraded"`
			Permissions []string `json:"permissions"`
		}](t, resp)

		assert.Equal(t, seed.RoleWorker, body.Role)
		assert.False(t, body.Degraded)
		assert.Contains(t, body.Permissions, "asistencia:register")
	})

	t.Run("unresolvable account gets the degraded set", func(t *testing.T) {
		resp := do(t, app, http.MethodGet, "/api/me", "token-auth0|unknown")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[struct {
			Degraded    bool     `json:"degraded"`
			Permissions []string `json:"permissions"`
		}](t, resp)

		assert.True(t, body.Degraded)
		assert.Equal(t, []string{"basic:access"}, body.Permissions)
	})

	t.Run("inactive account", func(t *testing.T) {
		dbtest.Account(t, db, "auth0|gone", "gone", seed.RoleAdmin)
		require.NoError(t, db.Model(&models.Account{}).Where("login_name = ?", "gone").
			Update("state", models.AccountInactive).Error)

		resp := do(t, app, http.MethodGet, "/api/me", "token-auth0|gone")

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "account_inactive", decode[denial](t, resp).Code)
	})
}

func TestRequire(t *testing.T) {
	app, db := newApp(t)
	admin := dbtest.Account(t, db, "auth0|admin", "admin", seed.RoleAdmin)
	other := dbtest.Account(t, db, "auth0|other", "other", seed.RoleUser)
	dbtest.Account(t, db, "auth0|sup", "sup", seed.RoleSupervisor)
	dbtest.Account(t, db, "auth0|user", "user", seed.RoleUser)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
		wantReason string
		wantMiss   []string
	}{
		{"permission held", http.MethodGet, "/api/roles", "token-auth0|sup", http.StatusOK, "", nil},
		{"permission missing", http.MethodGet, "/api/roles", "token-auth0|user", http.StatusForbidden, "", []string{"roles:read"}},
		{"assign other account", http.MethodPut, "/api/accounts/" + strconv.FormatUint(other.ID, 10) + "/role", "token-auth0|admin", http.StatusOK, "", nil},
		{"assign own account by id", http.MethodPut, "/api/accounts/" + strconv.FormatUint(admin.ID, 10) + "/role", "token-auth0|admin", http.StatusForbidden, "self_service", nil},
		{"assign own account by subject", http.MethodPut, "/api/accounts/auth0|admin/role", "token-auth0|admin", http.StatusForbidden, "self_service", nil},
		{"assign without permission", http.MethodPut, "/api/accounts/" + strconv.FormatUint(admin.ID, 10) + "/role", "token-auth0|sup", http.StatusForbidden, "", []string{"roles:assign"}},
		{"role held", http.MethodGet, "/api/admin", "token-auth0|admin", http.StatusOK, "", nil},
		{"role missing", http.MethodGet, "/api/admin", "token-auth0|sup", http.StatusForbidden, "role", nil},
		{"or by role", http.MethodGet, "/api/reports", "token-auth0|sup", http.StatusOK, "", nil},
		{"or by permission", http.MethodGet, "/api/reports", "token-auth0|admin", http.StatusOK, "", nil},
		{"or denied", http.MethodGet, "/api/reports", "token-auth0|user", http.StatusForbidden, "role", []string{"audit:read"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, app, tt.method, tt.path, tt.token)
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus != http.StatusForbidden {
				return
			}

			body := decode[denial](t, resp)
			assert.False(t, body.Success)
			assert.Equal(t, "forbidden", body.Code)
			assert.Equal(t, tt.wantReason, body.Reason)

			if tt.wantMiss != nil {
				assert.Equal(t, tt.wantMiss, body.Missing)
			}
		})
	}
}

func TestForbiddenPlainError(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return auth.Forbidden(c, errors.New("nope"))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)

	defer resp.Body.Close()

	body := decode[denial](t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, body.Missing)
	assert.Empty(t, body.RequiredRoles)
}

func TestDeniedErrorIsPermissionDenied(t *testing.T) {
	err := error(&auth.DeniedError{Missing: []auth.Permission{auth.PermSyncManage}})

	assert.ErrorIs(t, err, auth.ErrPermissionDenied)
	assert.Equal(t, "permission denied: missing sync:manage", err.Error())
}
