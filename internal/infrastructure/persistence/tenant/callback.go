package tenant

import (
	"strings"

	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Callback injects a tenant_id predicate into queries that reach the
// database without one. It is a guard against repository bugs, not the
// primary scoping mechanism.
type Callback struct {
	tenantColumn string
	required     bool
}

// NewCallback creates a tenant callback for the given column
func NewCallback(tenantColumn string, required bool) *Callback {
	if tenantColumn == "" {
		tenantColumn = "tenant_id"
	}
	return &Callback{tenantColumn: tenantColumn, required: required}
}

// Register hooks the callback into query, update, delete and row operations.
// Create is left alone: tenant_id is always set explicitly on new rows.
func (c *Callback) Register(db *gorm.DB) {
	_ = db.Callback().Query().Before("gorm:query").Register("tenant:before_query", c.addTenantFilter)
	_ = db.Callback().Update().Before("gorm:update").Register("tenant:before_update", c.addTenantFilter)
	_ = db.Callback().Delete().Before("gorm:delete").Register("tenant:before_delete", c.addTenantFilter)
	_ = db.Callback().Row().Before("gorm:row").Register("tenant:before_row", c.addTenantFilter)
}

func (c *Callback) addTenantFilter(db *gorm.DB) {
	if db.Statement.Context == nil || db.Statement.Unscoped {
		return
	}
	if c.hasTenantCondition(db) {
		return
	}

	tenantID := logger.GetTenantID(db.Statement.Context)
	if tenantID == "" {
		if c.required {
			_ = db.AddError(ErrTenantIDRequired)
		}
		return
	}
	if _, err := uuid.Parse(tenantID); err != nil {
		_ = db.AddError(ErrInvalidTenantID)
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: c.tenantColumn},
				Value:  tenantID,
			},
		},
	})
}

// hasTenantCondition reports whether the statement already filters on the
// tenant column
func (c *Callback) hasTenantCondition(db *gorm.DB) bool {
	if whereClause, ok := db.Statement.Clauses["WHERE"]; ok {
		if where, ok := whereClause.Expression.(clause.Where); ok {
			for _, expr := range where.Exprs {
				if c.exprContainsTenant(expr) {
					return true
				}
			}
		}
	}
	if sql := db.Statement.SQL.String(); sql != "" && strings.Contains(sql, c.tenantColumn) {
		return true
	}
	return false
}

func (c *Callback) exprContainsTenant(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == c.tenantColumn
		}
	case clause.IN:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == c.tenantColumn
		}
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if c.exprContainsTenant(cond) {
				return true
			}
		}
	case clause.OrConditions:
		for _, cond := range e.Exprs {
			if c.exprContainsTenant(cond) {
				return true
			}
		}
	case clause.Expr:
		if strings.Contains(e.SQL, c.tenantColumn) {
			return true
		}
	}
	return false
}

// EnableAutoTenantFilter registers the guard callback on a GORM DB instance
func EnableAutoTenantFilter(db *gorm.DB, required bool) {
	NewCallback("tenant_id", required).Register(db)
}
