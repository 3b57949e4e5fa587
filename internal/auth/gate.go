package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/agromano/identity-gate/internal/db/models"
	"github.com/agromano/identity-gate/internal/logger"
)

// AccountResolver maps a verified subject to a local account. It never fails:
// on trouble it returns a transient account with SyncError set.
type AccountResolver interface {
	GetOrCreate(ctx context.Context, externalID string) *models.Account
}

// Gate runs the authentication and authorization pipeline.
type Gate struct {
	verifier TokenVerifier
	accounts AccountResolver
	resolver *Resolver
	log      zerolog.Logger
}

// NewGate wires the pipeline stages.
func NewGate(verifier TokenVerifier, accounts AccountResolver, resolver *Resolver) *Gate {
	return &Gate{
		verifier: verifier,
		accounts: accounts,
		resolver: resolver,
		log:      logger.Component("auth"),
	}
}

// Authenticate verifies the bearer token, resolves the account and its
// permissions and stores the resulting Context. Predicates run in Require.
func (g *Gate) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		raw, err := BearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return unauthenticated(c)
		}

		claims, err := g.verifier.Verify(ctx, raw)
		if err != nil {
			g.log.Debug().Err(err).Str("ip", c.IP()).Msg("token rejected")
			return unauthenticated(c)
		}

		account := g.accounts.GetOrCreate(ctx, claims.Subject)

		if !account.SyncError && account.State != models.AccountActive {
			g.log.Warn().Uint64("account_id", account.ID).Str("external_id", claims.Subject).Msg("inactive account refused")

			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"code":    "account_inactive",
				"message": "forbidden",
			})
		}

		resolved, err := g.resolver.Resolve(ctx, account)
		degraded := account.SyncError

		if err != nil {
			g.log.Error().Err(err).Uint64("account_id", account.ID).Msg("permission resolution failed, using degraded permissions")

			resolved = g.resolver.Degraded()
			degraded = true
		}

		ac := &Context{
			Account:     account,
			RoleCode:    resolved.RoleCode,
			RoleName:    resolved.RoleName,
			Permissions: resolved.Permissions,
			Claims:      claims,
			Degraded:    degraded,
			IP:          c.IP(),
		}

		if rid, ok := c.Locals("requestid").(string); ok {
			ac.RequestID = rid
		}

		g.log.Debug().
			Str("external_id", claims.Subject).
			Uint64("account_id", account.ID).
			Str("role", ac.RoleCode).
			Int("permissions", len(ac.Permissions)).
			Bool("degraded", degraded).
			Msg("request authenticated")

		SetCtx(c, ac)

		return c.Next()
	}
}

// Require allows the request only when every predicate allows.
func Require(preds ...Predicate) fiber.Handler {
	policy := And(preds...)

	return func(c *fiber.Ctx) error {
		ac := FromCtx(c)
		if ac == nil {
			return unauthenticated(c)
		}

		if denied := policy(c, ac); denied != nil {
			log := logger.Component("auth")
			log.Warn().
				Uint64("account_id", ac.Account.ID).
				Strs("missing", Strings(denied.Missing)).
				Str("reason", denied.Reason).
				Str("path", c.Path()).
				Msg("request denied")

			return Forbidden(c, denied)
		}

		return c.Next()
	}
}

// Forbidden writes the structured denial. Errors other than DeniedError become a plain 403.
func Forbidden(c *fiber.Ctx, err error) error {
	var denied *DeniedError
	if !errors.As(err, &denied) {
		denied = &DeniedError{}
	}

	required := Strings(denied.Required)
	missing := Strings(denied.Missing)

	roles := denied.RequiredRoles
	if roles == nil {
		roles = []string{}
	}

	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"success":        false,
		"code":           "forbidden",
		"reason":         denied.Reason,
		"required":       required,
		"missing":        missing,
		"required_roles": roles,
	})
}

func unauthenticated(c *fiber.Ctx) error {
	c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="api"`)

	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"code":    "unauthenticated",
		"message": "authentication required",
	})
}
