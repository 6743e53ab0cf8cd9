package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base provides a shared foundation for tenant-scoped domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// WithTx rebinds the base to a transaction handle.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Tenant scopes the query to rows owned by tenantID.
func (b Base) Tenant(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return b.DB(ctx).Where("tenant_id = ?", tenantID)
}

// TenantForUpdate scopes to tenantID and takes row locks on postgres.
func (b Base) TenantForUpdate(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return b.Tenant(ctx, tenantID).Clauses(clause.Locking{Strength: "UPDATE"})
}
