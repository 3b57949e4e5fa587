package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/agromano/identity-gate/internal/auth"
	"github.com/agromano/identity-gate/internal/db/models"
	"github.com/agromano/identity-gate/internal/db/store"
	"github.com/agromano/identity-gate/internal/idp"
	"github.com/agromano/identity-gate/internal/reconcile"
)

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals

// AccountView is the JSON form of a local account.
type AccountView struct {
	ID         uint64              `json:"id"`
	ExternalID string              `json:"external_id,omitempty"`
	LoginName  string              `json:"login_name"`
	RoleCode   string              `json:"role_code"`
	RoleName   string              `json:"role_name"`
	State      models.AccountState `json:"state"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// NewAccountView converts a; nil stays nil.
func NewAccountView(a *models.Account) *AccountView {
	if a == nil {
		return nil
	}

	return &AccountView{
		ID:         a.ID,
		ExternalID: a.External(),
		LoginName:  a.LoginName,
		RoleCode:   a.Role.Code,
		RoleName:   a.Role.Name,
		State:      a.State,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// Bind parses the JSON body into out and validates it.
func Bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}

	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}

	return nil
}

// Fail writes {"success":false,"code":code,"message":msg}.
func Fail(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"code":    code,
		"message": msg,
	})
}

// FailErr maps a service error to its HTTP answer. Unknown errors are logged
// and answered with a generic 500.
func FailErr(c *fiber.Ctx, err error) error {
	var denied *auth.DeniedError

	switch {
	case errors.Is(err, ErrInvalidBody):
		return Fail(c, fiber.StatusBadRequest, "invalid_body", err.Error())
	case errors.As(err, &denied):
		return auth.Forbidden(c, denied)
	case errors.Is(err, store.ErrAccountNotFound), errors.Is(err, idp.ErrIdentityNotFound):
		return Fail(c, fiber.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrRoleNotFound):
		return Fail(c, fiber.StatusUnprocessableEntity, "unknown_role", err.Error())
	case errors.Is(err, reconcile.ErrIdentityCollision), errors.Is(err, store.ErrConflict):
		return Fail(c, fiber.StatusConflict, "conflict", err.Error())
	case errors.Is(err, reconcile.ErrDegraded),
		errors.Is(err, reconcile.ErrFallbackIdentity),
		errors.Is(err, idp.ErrProviderUnavailable):
		return Fail(c, fiber.StatusServiceUnavailable, "provider_unavailable", err.Error())
	case errors.Is(err, idp.ErrProviderError):
		return Fail(c, fiber.StatusBadGateway, "provider_error", err.Error())
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return Fail(c, fiber.StatusInternalServerError, "internal_error", "internal error")
	}
}
