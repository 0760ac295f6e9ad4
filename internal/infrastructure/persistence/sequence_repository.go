package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceRepository implements ledger.SequenceRepository using GORM.
// The counter row is read FOR UPDATE so concurrent postings in the same
// series serialize on the row; a rolled-back transaction releases its number
// and the series stays gapless.
type GormSequenceRepository struct {
	db *gorm.DB
}

// NewGormSequenceRepository creates a new GormSequenceRepository
func NewGormSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

// NextNumber atomically increments the (tenant, series, period) counter and
// returns the allocated number. Call it inside the posting transaction.
func (r *GormSequenceRepository) NextNumber(ctx context.Context, tenantID uuid.UUID, seriesKey, period string) (int64, error) {
	db := r.db.WithContext(ctx)

	query := db.Where("tenant_id = ? AND series_key = ? AND period = ?", tenantID, seriesKey, period)
	if db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var model models.SequenceCounterModel
	err := query.First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		counter, cerr := ledger.NewSequenceCounter(tenantID, seriesKey, period)
		if cerr != nil {
			return 0, cerr
		}
		number := counter.Next()
		model.FromDomain(counter)
		if cerr := db.Create(&model).Error; cerr != nil {
			if isUniqueViolation(cerr) {
				// Another transaction created the counter first; retry the posting
				return 0, shared.ErrConcurrencyConflict
			}
			return 0, cerr
		}
		return number, nil
	}
	if err != nil {
		return 0, err
	}

	counter := model.ToDomain()
	number := counter.Next()
	model.FromDomain(counter)
	if err := db.Save(&model).Error; err != nil {
		return 0, err
	}
	return number, nil
}

// isUniqueViolation reports whether err is a unique constraint failure
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
