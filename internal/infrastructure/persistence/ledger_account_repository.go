package persistence

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLedgerAccountRepository implements ledger.LedgerAccountRepository using GORM
type GormLedgerAccountRepository struct {
	db *gorm.DB
}

// NewGormLedgerAccountRepository creates a new GormLedgerAccountRepository
func NewGormLedgerAccountRepository(db *gorm.DB) *GormLedgerAccountRepository {
	return &GormLedgerAccountRepository{db: db}
}

// FindByIDForTenant finds an account by ID within a tenant
func (r *GormLedgerAccountRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ledger.LedgerAccount, error) {
	var model models.LedgerAccountModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByRole finds the tenant's active account carrying the role, or nil
func (r *GormLedgerAccountRepository) FindByRole(ctx context.Context, tenantID uuid.UUID, role ledger.AccountRole) (*ledger.LedgerAccount, error) {
	var model models.LedgerAccountModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND role = ? AND active = ?", tenantID, role, true).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists the tenant's chart of accounts ordered by code
func (r *GormLedgerAccountRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]ledger.LedgerAccount, error) {
	var accountModels []models.LedgerAccountModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("code ASC").
		Find(&accountModels).Error
	if err != nil {
		return nil, err
	}

	accounts := make([]ledger.LedgerAccount, len(accountModels))
	for i := range accountModels {
		accounts[i] = *accountModels[i].ToDomain()
	}
	return accounts, nil
}

// ListTenantIDs returns every tenant that has a chart of accounts.
// Used by the periodic verifier to enumerate tenants to check.
func (r *GormLedgerAccountRepository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.LedgerAccountModel{}).
		Distinct("tenant_id").
		Order("tenant_id ASC").
		Pluck("tenant_id", &tenantIDs).Error
	if err != nil {
		return nil, err
	}
	return tenantIDs, nil
}

// Save persists an account
func (r *GormLedgerAccountRepository) Save(ctx context.Context, account *ledger.LedgerAccount) error {
	var model models.LedgerAccountModel
	model.FromDomain(account)
	return r.db.WithContext(ctx).Save(&model).Error
}

// GormChartResolver implements ledger.ChartResolver against the tenant's
// persisted chart of accounts
type GormChartResolver struct {
	accounts ledger.LedgerAccountRepository
}

// NewGormChartResolver creates a new GormChartResolver
func NewGormChartResolver(accounts ledger.LedgerAccountRepository) *GormChartResolver {
	return &GormChartResolver{accounts: accounts}
}

// ResolveAccount returns the tenant's active account for the role.
// A missing mapping is an UNMAPPED_ACCOUNT_ROLE error.
func (c *GormChartResolver) ResolveAccount(ctx context.Context, tenantID uuid.UUID, role ledger.AccountRole) (*ledger.LedgerAccount, error) {
	account, err := c.accounts.FindByRole(ctx, tenantID, role)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ledger.NewUnmappedRoleError(role)
	}
	return account, nil
}
