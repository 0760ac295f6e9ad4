package persistence

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSubledgerRepository implements ledger.SubledgerRepository using GORM
type GormSubledgerRepository struct {
	db *gorm.DB
}

// NewGormSubledgerRepository creates a new GormSubledgerRepository
func NewGormSubledgerRepository(db *gorm.DB) *GormSubledgerRepository {
	return &GormSubledgerRepository{db: db}
}

// FindByEntity finds one entity's running balance, or nil if never posted to
func (r *GormSubledgerRepository) FindByEntity(ctx context.Context, tenantID uuid.UUID, kind ledger.SubledgerKind, entityID uuid.UUID) (*ledger.SubledgerBalance, error) {
	var model models.SubledgerBalanceModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND kind = ? AND entity_id = ?", tenantID, kind, entityID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByKind lists all running balances for one subledger
func (r *GormSubledgerRepository) FindByKind(ctx context.Context, tenantID uuid.UUID, kind ledger.SubledgerKind) ([]ledger.SubledgerBalance, error) {
	var balanceModels []models.SubledgerBalanceModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND kind = ?", tenantID, kind).
		Order("entity_id ASC").
		Find(&balanceModels).Error
	if err != nil {
		return nil, err
	}

	balances := make([]ledger.SubledgerBalance, len(balanceModels))
	for i := range balanceModels {
		balances[i] = *balanceModels[i].ToDomain()
	}
	return balances, nil
}

// SumBalances totals the stored running balances for one subledger
func (r *GormSubledgerRepository) SumBalances(ctx context.Context, tenantID uuid.UUID, kind ledger.SubledgerKind) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.SubledgerBalanceModel{}).
		Select("COALESCE(SUM(balance), 0)").
		Where("tenant_id = ? AND kind = ?", tenantID, kind).
		Scan(&total).Error
	return total, err
}

// Save persists a running balance
func (r *GormSubledgerRepository) Save(ctx context.Context, balance *ledger.SubledgerBalance) error {
	var model models.SubledgerBalanceModel
	model.FromDomain(balance)
	return r.db.WithContext(ctx).Save(&model).Error
}
