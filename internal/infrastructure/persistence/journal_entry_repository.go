package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormJournalEntryRepository implements ledger.JournalEntryRepository using GORM
type GormJournalEntryRepository struct {
	db *gorm.DB
}

// NewGormJournalEntryRepository creates a new GormJournalEntryRepository
func NewGormJournalEntryRepository(db *gorm.DB) *GormJournalEntryRepository {
	return &GormJournalEntryRepository{db: db}
}

// FindByIDForTenant loads an entry with its lines, or nil if absent
func (r *GormJournalEntryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ledger.JournalEntry, error) {
	var model models.JournalEntryModel
	err := r.db.WithContext(ctx).
		Preload("Lines").
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

// FindActiveBySource finds the POSTED entry for a document transition, or nil
func (r *GormJournalEntryRepository) FindActiveBySource(ctx context.Context, tenantID uuid.UUID, sourceType ledger.DocumentType, sourceID uuid.UUID, transition ledger.Transition) (*ledger.JournalEntry, error) {
	var model models.JournalEntryModel
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("tenant_id = ? AND source_type = ? AND source_id = ? AND transition = ? AND status = ?",
			tenantID, sourceType, sourceID, transition, ledger.EntryStatusPosted).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists entries matching the filter, newest first
func (r *GormJournalEntryRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ledger.JournalEntryFilter) ([]ledger.JournalEntry, error) {
	var entryModels []models.JournalEntryModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.JournalEntryModel{}).
			Where("tenant_id = ?", tenantID),
		filter,
	).Preload("Lines").Order("entry_date DESC, journal_number DESC")

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	if err := query.Find(&entryModels).Error; err != nil {
		return nil, err
	}

	entries := make([]ledger.JournalEntry, len(entryModels))
	for i := range entryModels {
		entries[i] = *entryModels[i].ToDomain()
	}
	return entries, nil
}

// CountForTenant counts entries matching the filter
func (r *GormJournalEntryRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter ledger.JournalEntryFilter) (int64, error) {
	var count int64
	err := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.JournalEntryModel{}).
			Where("tenant_id = ?", tenantID),
		filter,
	).Count(&count).Error
	return count, err
}

// ControlBalance sums all non-draft lines on an account up to asOf, signed by
// the account's normal side. Reversed entries still count: the mirrored
// reversal entry is what neutralizes them.
func (r *GormJournalEntryRepository) ControlBalance(ctx context.Context, tenantID, accountID uuid.UUID, normalSide ledger.AccountSide, asOf time.Time) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).Model(&models.JournalLineModel{}).
		Select(signedSumExpr(normalSide)).
		Joins("JOIN journal_entries ON journal_entries.id = journal_lines.journal_entry_id").
		Where("journal_lines.tenant_id = ? AND journal_lines.account_id = ?", tenantID, accountID).
		Where("journal_entries.status <> ?", ledger.EntryStatusDraft).
		Where("journal_entries.entry_date <= ?", asOf).
		Scan(&balance).Error
	return balance, err
}

// SubledgerLineSum sums all non-draft lines tagged with the subledger kind up
// to asOf, signed by the control account's normal side
func (r *GormJournalEntryRepository) SubledgerLineSum(ctx context.Context, tenantID uuid.UUID, kind ledger.SubledgerKind, normalSide ledger.AccountSide, asOf time.Time) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).Model(&models.JournalLineModel{}).
		Select(signedSumExpr(normalSide)).
		Joins("JOIN journal_entries ON journal_entries.id = journal_lines.journal_entry_id").
		Where("journal_lines.tenant_id = ? AND journal_lines.subledger_kind = ?", tenantID, kind).
		Where("journal_entries.status <> ?", ledger.EntryStatusDraft).
		Where("journal_entries.entry_date <= ?", asOf).
		Scan(&balance).Error
	return balance, err
}

// signedSumExpr builds the aggregate expression for a balance in the
// account's normal-side sign convention
func signedSumExpr(normalSide ledger.AccountSide) string {
	if normalSide == ledger.SideDebit {
		return "COALESCE(SUM(journal_lines.debit - journal_lines.credit), 0)"
	}
	return "COALESCE(SUM(journal_lines.credit - journal_lines.debit), 0)"
}

// applyFilter applies the optional filter predicates to a query
func (r *GormJournalEntryRepository) applyFilter(query *gorm.DB, filter ledger.JournalEntryFilter) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.SourceType != nil {
		query = query.Where("source_type = ?", *filter.SourceType)
	}
	if filter.SourceID != nil {
		query = query.Where("source_id = ?", *filter.SourceID)
	}
	if filter.FromDate != nil {
		query = query.Where("entry_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("entry_date <= ?", *filter.ToDate)
	}
	return query
}
