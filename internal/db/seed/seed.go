// Package seed installs the reference roles and permissions.
// Production databases are curated by administrators; development and test
// databases start from this catalogue.
package seed

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agromano/identity-gate/internal/db/models"
)

// Role codes of the reference catalogue.
const (
	RoleUser       = "USER"
	RoleWorker     = "WORKER"
	RoleSupervisor = "SUPERVISOR"
	RoleAccountant = "ACCOUNTANT"
	RoleAdmin      = "ADMIN"
)

// Permissions of the reference catalogue by category.
var Permissions = []models.Permission{ //nolint:gochecknoglobals
	{Code: "basic:access", Category: "general", Description: "Use the application"},
	{Code: "dashboard:view:basic", Category: "general", Description: "View the personal dashboard"},
	{Code: "asistencia:register", Category: "attendance", Description: "Register own attendance"},
	{Code: "asistencia:read:all", Category: "attendance", Description: "Read attendance of every worker"},
	{Code: "trabajadores:read:all", Category: "workers", Description: "Read every worker"},
	{Code: "trabajadores:create", Category: "workers", Description: "Create workers"},
	{Code: "trabajadores:update:all", Category: "workers", Description: "Update every worker"},
	{Code: "trabajadores:export", Category: "workers", Description: "Export worker lists"},
	{Code: "parcelas:read", Category: "parcels", Description: "Read parcels"},
	{Code: "nomina:process", Category: "payroll", Description: "Process payroll"},
	{Code: "roles:read", Category: "identity", Description: "Read roles and assignments"},
	{Code: "roles:assign", Category: "identity", Description: "Change role assignments"},
	{Code: "sync:manage", Category: "identity", Description: "Run account reconciliation"},
	{Code: "audit:read", Category: "identity", Description: "Read audit records"},
	{Code: "admin:access", Category: "identity", Description: "Administration area"},
}

// Roles of the reference catalogue with their permission codes.
var Roles = []struct { //nolint:gochecknoglobals
	Role        models.Role
	Permissions []string
}{
	{
		Role:        models.Role{Code: RoleUser, Name: "Usuario", Description: "Default role of new accounts"},
		Permissions: []string{"basic:access", "dashboard:view:basic"},
	},
	{
		Role:        models.Role{Code: RoleWorker, Name: "Trabajador", Description: "Field worker"},
		Permissions: []string{"basic:access", "dashboard:view:basic", "asistencia:register", "parcelas:read"},
	},
	{
		Role: models.Role{Code: RoleSupervisor, Name: "Supervisor", Description: "Area supervisor"},
		Permissions: []string{
			"basic:access", "dashboard:view:basic", "asistencia:read:all",
			"trabajadores:read:all", "parcelas:read", "roles:read",
		},
	},
	{
		Role:        models.Role{Code: RoleAccountant, Name: "Contador", Description: "Payroll accountant"},
		Permissions: []string{"basic:access", "dashboard:view:basic", "nomina:process", "trabajadores:export"},
	},
	{
		Role:        models.Role{Code: RoleAdmin, Name: "Administrador", Description: "Full access", IsCritical: true},
		Permissions: nil, // every permission
	},
}

// Run installs the catalogue. It is idempotent and never removes anything.
func Run(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		byCode := make(map[string]uint, len(Permissions))

		for _, p := range Permissions {
			perm := p
			perm.IsActive = true

			if err := tx.Where("code = ?", perm.Code).FirstOrCreate(&perm).Error; err != nil {
				return fmt.Errorf("failed to seed permission %s: %w", p.Code, err)
			}

			byCode[perm.Code] = perm.ID
		}

		for _, r := range Roles {
			role := r.Role
			role.IsActive = true

			if err := tx.Where("code = ?", role.Code).FirstOrCreate(&role).Error; err != nil {
				return fmt.Errorf("failed to seed role %s: %w", r.Role.Code, err)
			}

			codes := r.Permissions
			if codes == nil {
				for _, p := range Permissions {
					codes = append(codes, p.Code)
				}
			}

			for _, code := range codes {
				rp := models.RolePermission{RoleID: role.ID, PermissionID: byCode[code]}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("Role", "Permission").Create(&rp).Error; err != nil {
					return fmt.Errorf("failed to seed %s for role %s: %w", code, role.Code, err)
				}
			}
		}

		return nil
	})
}
