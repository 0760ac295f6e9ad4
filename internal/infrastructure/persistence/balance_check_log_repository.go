package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBalanceCheckLogRepository implements ledger.BalanceCheckLogRepository using GORM
type GormBalanceCheckLogRepository struct {
	db *gorm.DB
}

// NewGormBalanceCheckLogRepository creates a new GormBalanceCheckLogRepository
func NewGormBalanceCheckLogRepository(db *gorm.DB) *GormBalanceCheckLogRepository {
	return &GormBalanceCheckLogRepository{db: db}
}

// Save persists one verifier run
func (r *GormBalanceCheckLogRepository) Save(ctx context.Context, result *ledger.BalanceCheckResult) error {
	var model models.BalanceCheckLogModel
	model.FromDomain(result)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindLatestForTenant lists the most recent verifier runs for a tenant
func (r *GormBalanceCheckLogRepository) FindLatestForTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]ledger.BalanceCheckResult, error) {
	if limit <= 0 {
		limit = 20
	}
	var logModels []models.BalanceCheckLogModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("as_of DESC").
		Limit(limit).
		Find(&logModels).Error
	if err != nil {
		return nil, err
	}

	results := make([]ledger.BalanceCheckResult, len(logModels))
	for i := range logModels {
		results[i] = *logModels[i].ToDomain()
	}
	return results, nil
}
