// Package tenant provides tenant scoping for GORM queries.
//
// Every synchronized table carries tenant_id. Repositories build their queries
// through Scope so that a missing tenant fails the statement instead of
// reading across tenants.
//
// Usage:
//
//	db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Find(&customers)
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storesync/backend/internal/infrastructure/logger"
)

// ErrTenantIDRequired is returned when a tenant-scoped statement has no tenant
var ErrTenantIDRequired = errors.New("tenant_id is required")

// ErrInvalidTenantID is returned when tenant_id in the context is not a UUID
var ErrInvalidTenantID = errors.New("invalid tenant_id format")

const column = "tenant_id"

// Scope restricts a statement to one tenant. A nil tenant ID aborts the
// statement with ErrTenantIDRequired.
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		return db.Where(db.Statement.Quote(column)+" = ?", tenantID)
	}
}

// FromContext returns the tenant ID stored in ctx by the logger helpers
func FromContext(ctx context.Context) (uuid.UUID, error) {
	raw := logger.GetTenantID(ctx)
	if raw == "" {
		return uuid.Nil, ErrTenantIDRequired
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidTenantID
	}
	return id, nil
}

// ContextScope restricts a statement to the tenant carried by ctx
func ContextScope(ctx context.Context) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		id, err := FromContext(ctx)
		if err != nil {
			_ = db.AddError(err)
			return db
		}
		return Scope(id)(db)
	}
}
