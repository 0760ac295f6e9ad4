// Package tenant provides multi-tenant database scoping for GORM.
//
// Every ledger table carries a tenant_id column and every repository query
// filters on it explicitly. This package adds a second line of defense: a
// GORM callback that injects the tenant predicate from the request context
// when a query reaches the database without one.
package tenant

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTenantIDRequired is returned when tenant_id is required but not found
var ErrTenantIDRequired = errors.New("tenant_id is required but not found in context")

// ErrInvalidTenantID is returned when tenant_id format is invalid
var ErrInvalidTenantID = errors.New("invalid tenant_id format")

// Scope applies tenant filtering to GORM queries
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// DB wraps a GORM DB with tenant scoping helpers
type DB struct {
	db       *gorm.DB
	required bool
}

// NewDB creates a tenant-scoping wrapper. With required true, queries
// without a resolvable tenant fail instead of running unscoped.
func NewDB(db *gorm.DB, required bool) *DB {
	return &DB{db: db, required: required}
}

// WithContext returns a GORM DB scoped to the tenant carried in the context
func (t *DB) WithContext(ctx context.Context) *gorm.DB {
	tenantID := logger.GetTenantID(ctx)
	if tenantID == "" {
		db := t.db.WithContext(ctx)
		if t.required {
			_ = db.AddError(ErrTenantIDRequired)
		}
		return db
	}

	parsed, err := uuid.Parse(tenantID)
	if err != nil {
		db := t.db.WithContext(ctx)
		_ = db.AddError(ErrInvalidTenantID)
		return db
	}

	return t.db.WithContext(ctx).Scopes(Scope(parsed))
}

// WithTenant returns a GORM DB scoped to a specific tenant ID
func (t *DB) WithTenant(tenantID uuid.UUID) *gorm.DB {
	if tenantID == uuid.Nil {
		db := t.db
		if t.required {
			_ = db.AddError(ErrTenantIDRequired)
		}
		return db
	}
	return t.db.Scopes(Scope(tenantID))
}

// Transaction executes a function within a transaction scoped to the
// context's tenant
func (t *DB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tenantID := logger.GetTenantID(ctx)
	if tenantID == "" && t.required {
		return ErrTenantIDRequired
	}

	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tenantID != "" {
			parsed, err := uuid.Parse(tenantID)
			if err != nil {
				return ErrInvalidTenantID
			}
			tx = tx.Scopes(Scope(parsed))
		}
		return fn(tx)
	})
}

// Unscoped returns the underlying DB without tenant scoping. Only for
// system-level operations such as migrations.
func (t *DB) Unscoped() *gorm.DB {
	return t.db
}
