// Package store is the only writer of local accounts. It also reads the role
// and permission reference tables that accounts point to.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/agromano/identity-gate/internal/db/models"
)

const (
	externalIDQuery = "external_id = ?"
	loginNameQuery  = "login_name = ?"
)

// Filter narrows ListAll and CountAll.
type Filter struct {
	State      models.AccountState // empty matches every state
	LinkedOnly bool                // only accounts with an external id
	Limit      int                 // 0 means no limit
	Offset     int
}

// Store is the gorm backed local account store.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a store on db.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock replaces the timestamp source, used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// DB exposes the underlying connection for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// FindByExternalID returns the account linked to the provider subject.
func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	return s.first(ctx, externalIDQuery, externalID)
}

// FindByLoginName returns the account with the given login name.
func (s *Store) FindByLoginName(ctx context.Context, loginName string) (*models.Account, error) {
	return s.first(ctx, loginNameQuery, loginName)
}

// FindByID returns the account with the given local id.
func (s *Store) FindByID(ctx context.Context, id uint64) (*models.Account, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *Store) first(ctx context.Context, query string, arg any) (*models.Account, error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	var account models.Account

	err := s.db.WithContext(ctx).Preload("Role").Where(query, arg).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}

		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	return &account, nil
}

// Create inserts a new account. Timestamps are set here, never by the caller.
// A duplicate external id or login name yields ErrConflict, also when the
// duplicate was inserted concurrently after the pre-check.
func (s *Store) Create(ctx context.Context, account *models.Account) error {
	if s.db == nil {
		return ErrDBNil
	}

	if account.State == "" {
		account.State = models.AccountActive
	}

	db := s.db.WithContext(ctx)

	var count int64

	q := db.Model(&models.Account{}).Where(loginNameQuery, account.LoginName)
	if account.ExternalID != nil {
		q = q.Or(externalIDQuery, *account.ExternalID)
	}

	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check account uniqueness: %w", err)
	}

	if count > 0 {
		return ErrConflict
	}

	now := s.now().UTC()
	account.ID = 0
	account.CreatedAt = now
	account.UpdatedAt = now

	if err := db.Omit("Role").Create(account).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}

		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// UpdateRole changes the role of an account and returns the updated row.
func (s *Store) UpdateRole(ctx context.Context, id uint64, roleID uint) (*models.Account, error) {
	if _, err := s.FindRoleByID(ctx, roleID); err != nil {
		return nil, err
	}

	return s.update(ctx, id, map[string]any{"role_id": roleID})
}

// UpdateState activates or deactivates an account and returns the updated row.
func (s *Store) UpdateState(ctx context.Context, id uint64, state models.AccountState) (*models.Account, error) {
	if state != models.AccountActive && state != models.AccountInactive {
		return nil, ErrInvalidState
	}

	return s.update(ctx, id, map[string]any{"state": state})
}

func (s *Store) update(ctx context.Context, id uint64, values map[string]any) (*models.Account, error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	values["updated_at"] = s.now().UTC()

	result := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update account: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return nil, ErrAccountNotFound
	}

	return s.FindByID(ctx, id)
}

// ListAll returns accounts matching the filter ordered by id.
func (s *Store) ListAll(ctx context.Context, f Filter) ([]models.Account, error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	var accounts []models.Account

	q := s.filtered(ctx, f).Preload("Role").Order("id")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	if err := q.Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	return accounts, nil
}

// CountAll counts accounts matching the filter. Limit and Offset are ignored.
func (s *Store) CountAll(ctx context.Context, f Filter) (int64, error) {
	if s.db == nil {
		return 0, ErrDBNil
	}

	var count int64

	if err := s.filtered(ctx, f).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}

	return count, nil
}

func (s *Store) filtered(ctx context.Context, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Account{})

	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}

	if f.LinkedOnly {
		q = q.Where("external_id IS NOT NULL AND external_id <> ''")
	}

	return q
}

// FindRoleByCode returns an active role by code.
func (s *Store) FindRoleByCode(ctx context.Context, code string) (*models.Role, error) {
	return s.role(ctx, "code = ? AND is_active = ?", code, true)
}

// FindRoleByID returns an active role by id.
func (s *Store) FindRoleByID(ctx context.Context, id uint) (*models.Role, error) {
	return s.role(ctx, "id = ? AND is_active = ?", id, true)
}

func (s *Store) role(ctx context.Context, query string, args ...any) (*models.Role, error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	var role models.Role

	if err := s.db.WithContext(ctx).Where(query, args...).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}

		return nil, fmt.Errorf("failed to load role: %w", err)
	}

	return &role, nil
}

// ListRoles returns all active roles ordered by code.
func (s *Store) ListRoles(ctx context.Context) ([]models.Role, error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	var roles []models.Role

	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("code").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	return roles, nil
}

// PermissionCodesForRole returns the active permission codes of an active role.
// The result is read fresh on every call.
func (s *Store) PermissionCodesForRole(ctx context.Context, roleID uint) ([]string, error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	var codes []string

	err := s.db.WithContext(ctx).Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN roles ON roles.id = role_permissions.role_id").
		Where("role_permissions.role_id = ? AND permissions.is_active = ? AND roles.is_active = ?", roleID, true, true).
		Order("permissions.code").
		Distinct().
		Pluck("permissions.code", &codes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get role permissions: %w", err)
	}

	return codes, nil
}

// isUniqueViolation recognises duplicate key errors of the supported engines.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}
