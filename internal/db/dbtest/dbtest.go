// Package dbtest opens seeded in-memory databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agromano/identity-gate/internal/db/models"
	"github.com/agromano/identity-gate/internal/db/seed"
)

// Open returns a migrated, empty in-memory sqlite database.
// A single connection keeps every goroutine on the same memory database.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))

	return db
}

// Seeded returns a database holding the reference roles and permissions.
func Seeded(t *testing.T) *gorm.DB {
	t.Helper()

	db := Open(t)
	require.NoError(t, seed.Run(context.Background(), db))

	return db
}

// Role loads a seeded role by code.
func Role(t *testing.T, db *gorm.DB, code string) models.Role {
	t.Helper()

	var role models.Role
	require.NoError(t, db.Where("code = ?", code).First(&role).Error)

	return role
}

// Account inserts an active account linked to externalID, or unlinked when externalID is empty.
func Account(t *testing.T, db *gorm.DB, externalID, loginName, roleCode string) models.Account {
	t.Helper()

	account := models.Account{
		LoginName: loginName,
		RoleID:    Role(t, db, roleCode).ID,
		State:     models.AccountActive,
	}

	if externalID != "" {
		account.ExternalID = &externalID
	}

	require.NoError(t, db.Omit("Role").Create(&account).Error)

	return account
}
