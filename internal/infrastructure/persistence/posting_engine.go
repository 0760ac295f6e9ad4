package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerEngine implements ledger.PostingEngine on a single database
// transaction per call: journal entry, lines, number allocation, subledger
// balances and the posting record commit together or not at all.
type GormLedgerEngine struct {
	db     *gorm.DB
	outbox shared.OutboxEventSaver
}

// LedgerEngineOption is a functional option for GormLedgerEngine
type LedgerEngineOption func(*GormLedgerEngine)

// WithOutbox makes the engine capture domain events in the outbox table
// inside the posting transaction, so event delivery survives a crash
// between commit and publish.
func WithOutbox(saver shared.OutboxEventSaver) LedgerEngineOption {
	return func(e *GormLedgerEngine) {
		e.outbox = saver
	}
}

// NewGormLedgerEngine creates a new GormLedgerEngine
func NewGormLedgerEngine(db *gorm.DB, opts ...LedgerEngineOption) *GormLedgerEngine {
	engine := &GormLedgerEngine{db: db}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// captureEvents writes events to the outbox within the open transaction
// when an outbox saver is configured
func (e *GormLedgerEngine) captureEvents(ctx context.Context, tx *gorm.DB, events []shared.DomainEvent) error {
	if e.outbox == nil || len(events) == 0 {
		return nil
	}
	return e.outbox.SaveEvents(ctx, tx, events...)
}

// CreatePosting persists a POSTED entry for the command. A repeated call with
// the same idempotency key and payload returns the original entry; the same
// key with a different payload is rejected as a duplicate posting.
func (e *GormLedgerEngine) CreatePosting(ctx context.Context, cmd ledger.PostingCommand) (*ledger.JournalEntry, error) {
	if cmd.IdempotencyKey == "" {
		return nil, ledger.NewValidationError("Idempotency key is required")
	}

	lines, err := buildJournalLines(cmd)
	if err != nil {
		return nil, err
	}

	var posted *ledger.JournalEntry
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		replayed, terr := e.resolveIdempotency(ctx, tx, cmd)
		if terr != nil {
			return terr
		}
		if replayed != nil {
			posted = replayed
			return nil
		}

		var active int64
		if terr := tx.Model(&models.JournalEntryModel{}).
			Where("tenant_id = ? AND source_type = ? AND source_id = ? AND transition = ? AND status = ?",
				cmd.TenantID, cmd.SourceType, cmd.SourceID, cmd.Transition, ledger.EntryStatusPosted).
			Count(&active).Error; terr != nil {
			return terr
		}
		if active > 0 {
			return ledger.NewDuplicatePostingError(fmt.Sprintf(
				"Document %s %s already has an active journal entry for transition %s",
				cmd.SourceType, cmd.SourceID, cmd.Transition))
		}

		if terr := verifyAccountOwnership(tx, cmd.TenantID, lines); terr != nil {
			return terr
		}

		entry, terr := ledger.NewJournalEntry(cmd.TenantID, cmd.SourceType, cmd.SourceID, cmd.Transition, cmd.EntryDate, lines)
		if terr != nil {
			return terr
		}

		seq := NewGormSequenceRepository(tx)
		period := ledger.PeriodOf(cmd.EntryDate)
		number, terr := seq.NextNumber(ctx, cmd.TenantID, ledger.SeriesJournal, period)
		if terr != nil {
			return terr
		}
		if terr := entry.Post(number, ledger.SeriesJournal, period); terr != nil {
			return terr
		}

		model := models.JournalEntryModelFromDomain(entry)
		if terr := tx.Create(model).Error; terr != nil {
			if isUniqueViolation(terr) {
				return ledger.NewDuplicatePostingError(fmt.Sprintf(
					"Document %s %s already has an active journal entry for transition %s",
					cmd.SourceType, cmd.SourceID, cmd.Transition))
			}
			return terr
		}

		if terr := e.applySubledgerDeltas(ctx, tx, entry); terr != nil {
			return terr
		}

		record := models.PostingRecordModel{
			TenantID:       cmd.TenantID,
			IdempotencyKey: cmd.IdempotencyKey,
			Fingerprint:    cmd.Fingerprint(),
			JournalEntryID: entry.ID,
		}
		record.FromDomainBaseEntity(shared.NewBaseEntity())
		if terr := tx.Create(&record).Error; terr != nil {
			if isUniqueViolation(terr) {
				// Lost the race with a concurrent identical request; the
				// retry falls through to the replay path
				return shared.ErrConcurrencyConflict
			}
			return terr
		}

		if terr := e.captureEvents(ctx, tx, entry.GetDomainEvents()); terr != nil {
			return terr
		}

		posted = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posted, nil
}

// VoidPosting reverses a POSTED entry with a mirrored entry dated now and
// returns the reversing entry. Voiding twice is rejected.
func (e *GormLedgerEngine) VoidPosting(ctx context.Context, tenantID, entryID uuid.UUID, reason string) (*ledger.JournalEntry, error) {
	var reversal *ledger.JournalEntry
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.JournalEntryModel
		terr := tx.Preload("Lines").
			Where("tenant_id = ? AND id = ?", tenantID, entryID).
			First(&model).Error
		if terr != nil {
			if errors.Is(terr, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return terr
		}
		entry := model.ToDomain()

		rev, terr := entry.BuildReversal(time.Now(), reason)
		if terr != nil {
			return terr
		}

		seq := NewGormSequenceRepository(tx)
		period := ledger.PeriodOf(rev.EntryDate)
		number, terr := seq.NextNumber(ctx, tenantID, ledger.SeriesJournal, period)
		if terr != nil {
			return terr
		}
		if terr := rev.Post(number, ledger.SeriesJournal, period); terr != nil {
			return terr
		}

		if terr := entry.MarkReversed(rev.ID, reason); terr != nil {
			return terr
		}

		revModel := models.JournalEntryModelFromDomain(rev)
		if terr := tx.Create(revModel).Error; terr != nil {
			if isUniqueViolation(terr) {
				// A concurrent void already inserted its reversal for this
				// source transition
				return shared.ErrConcurrencyConflict
			}
			return terr
		}

		// Optimistic lock on the original: clearing active_source is what
		// releases the document transition for any future posting
		update := tx.Model(&models.JournalEntryModel{}).
			Where("id = ? AND version = ?", entry.ID, entry.Version-1).
			Updates(map[string]interface{}{
				"status":        entry.Status,
				"reason":        entry.Reason,
				"active_source": nil,
				"version":       entry.Version,
				"updated_at":    entry.UpdatedAt,
			})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		if terr := e.applySubledgerDeltas(ctx, tx, rev); terr != nil {
			return terr
		}

		// Carry the reversal event of the original so the caller publishes
		// both aggregates' events
		for _, event := range entry.GetDomainEvents() {
			rev.AddDomainEvent(event)
		}
		entry.ClearDomainEvents()

		if terr := e.captureEvents(ctx, tx, rev.GetDomainEvents()); terr != nil {
			return terr
		}

		reversal = rev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// DiscardDraft deletes a DRAFT entry that was never posted
func (e *GormLedgerEngine) DiscardDraft(ctx context.Context, tenantID, entryID uuid.UUID) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.JournalEntryModel
		err := tx.Where("tenant_id = ? AND id = ?", tenantID, entryID).
			First(&model).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		if model.Status != ledger.EntryStatusDraft {
			return shared.NewDomainError("INVALID_STATE",
				fmt.Sprintf("Cannot discard journal entry in %s status", model.Status))
		}

		if err := tx.Where("journal_entry_id = ?", model.ID).
			Delete(&models.JournalLineModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model).Error
	})
}

// FindReplay looks up the posting record for the command's key without
// opening a posting transaction. Callers use it to answer obvious replays
// from a plain read.
func (e *GormLedgerEngine) FindReplay(ctx context.Context, cmd ledger.PostingCommand) (*ledger.JournalEntry, error) {
	return e.resolveIdempotency(ctx, e.db.WithContext(ctx), cmd)
}

// resolveIdempotency checks the posting record for the command's key.
// Returns the original entry on an exact replay, an error on a payload
// mismatch, and nil when the key is new.
func (e *GormLedgerEngine) resolveIdempotency(ctx context.Context, tx *gorm.DB, cmd ledger.PostingCommand) (*ledger.JournalEntry, error) {
	var record models.PostingRecordModel
	err := tx.Where("tenant_id = ? AND idempotency_key = ?", cmd.TenantID, cmd.IdempotencyKey).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if record.Fingerprint != cmd.Fingerprint() {
		return nil, ledger.NewDuplicatePostingError(fmt.Sprintf(
			"Idempotency key %q was already used with a different payload", cmd.IdempotencyKey))
	}

	var model models.JournalEntryModel
	if err := tx.Preload("Lines").
		Where("tenant_id = ? AND id = ?", cmd.TenantID, record.JournalEntryID).
		First(&model).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// applySubledgerDeltas folds an entry's control lines into the running
// balances, creating zero balances for entities posted to the first time.
// Balance rows are read FOR UPDATE so concurrent postings to the same entity
// serialize.
func (e *GormLedgerEngine) applySubledgerDeltas(ctx context.Context, tx *gorm.DB, entry *ledger.JournalEntry) error {
	sides := make(map[uuid.UUID]ledger.AccountSide)

	for _, line := range entry.Lines {
		if line.SubledgerKind == nil || line.SubledgerRef == nil {
			continue
		}

		normalSide, ok := sides[line.AccountID]
		if !ok {
			var account models.LedgerAccountModel
			if err := tx.Where("tenant_id = ? AND id = ?", entry.TenantID, line.AccountID).
				First(&account).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ledger.NewInvalidAccountError(fmt.Sprintf(
						"Control account %s does not exist for tenant", line.AccountID))
				}
				return err
			}
			normalSide = account.NormalSide
			sides[line.AccountID] = normalSide
		}

		query := tx.Where("tenant_id = ? AND kind = ? AND entity_id = ?",
			entry.TenantID, *line.SubledgerKind, *line.SubledgerRef)
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var model models.SubledgerBalanceModel
		err := query.First(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			balance, berr := ledger.NewSubledgerBalance(entry.TenantID, *line.SubledgerKind, *line.SubledgerRef)
			if berr != nil {
				return berr
			}
			balance.Apply(line.Debit, line.Credit, normalSide)
			model.FromDomain(balance)
			if cerr := tx.Create(&model).Error; cerr != nil {
				if isUniqueViolation(cerr) {
					return shared.ErrConcurrencyConflict
				}
				return cerr
			}
			continue
		}
		if err != nil {
			return err
		}

		balance := model.ToDomain()
		balance.Apply(line.Debit, line.Credit, normalSide)
		model.FromDomain(balance)
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
	}

	return nil
}

// verifyAccountOwnership re-reads every referenced account inside the posting
// transaction and rejects lines that point at another tenant's chart or at an
// account deactivated since resolution
func verifyAccountOwnership(tx *gorm.DB, tenantID uuid.UUID, lines []ledger.JournalLine) error {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}

	var accounts []models.LedgerAccountModel
	if err := tx.Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&accounts).Error; err != nil {
		return err
	}

	active := make(map[uuid.UUID]bool, len(accounts))
	for _, account := range accounts {
		active[account.ID] = account.Active
	}
	for _, id := range ids {
		isActive, ok := active[id]
		if !ok {
			return ledger.NewInvalidAccountError(fmt.Sprintf(
				"Account %s does not belong to the posting tenant", id))
		}
		if !isActive {
			return ledger.NewInvalidAccountError(fmt.Sprintf(
				"Account %s is inactive", id))
		}
	}
	return nil
}

// buildJournalLines converts the command's resolved lines into domain lines,
// tagging control-account lines with their subledger reference
func buildJournalLines(cmd ledger.PostingCommand) ([]ledger.JournalLine, error) {
	lines := make([]ledger.JournalLine, 0, len(cmd.Lines))
	for _, pl := range cmd.Lines {
		if pl.Account == nil {
			return nil, ledger.NewInvalidAccountError("Posting line has no resolved account")
		}
		line, err := ledger.NewJournalLine(pl.Account.ID, pl.Side, pl.Amount, pl.Description)
		if err != nil {
			return nil, err
		}
		if kind, ok := pl.Account.Role.SubledgerKind(); ok && pl.SubledgerRef != nil {
			line = line.WithSubledger(kind, *pl.SubledgerRef)
		}
		lines = append(lines, line)
	}
	return lines, nil
}
