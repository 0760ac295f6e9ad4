package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
)

// journalAuditHandler writes a structured log line for every ledger event
// delivered through the outbox so operators have a trail without tailing
// the database.
type journalAuditHandler struct {
	log *zap.Logger
}

func newJournalAuditHandler(log *zap.Logger) *journalAuditHandler {
	return &journalAuditHandler{log: log.Named("audit")}
}

func (h *journalAuditHandler) EventTypes() []string {
	return []string{
		ledger.EventTypeJournalEntryPosted,
		ledger.EventTypeJournalEntryReversed,
		ledger.EventTypeBalanceCheckDone,
	}
}

func (h *journalAuditHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	switch e := evt.(type) {
	case *ledger.JournalEntryPostedEvent:
		h.log.Info("journal entry posted",
			zap.String("tenant_id", e.TenantID().String()),
			zap.String("journal_entry_id", e.JournalEntryID.String()),
			zap.Int64("journal_number", e.JournalNumber),
			zap.String("source_type", string(e.SourceType)),
			zap.String("source_id", e.SourceID.String()),
			zap.String("transition", string(e.Transition)),
			zap.Int64("total_debit", e.TotalDebit),
			zap.Int64("total_credit", e.TotalCredit),
		)
	case *ledger.JournalEntryReversedEvent:
		h.log.Info("journal entry reversed",
			zap.String("tenant_id", e.TenantID().String()),
			zap.String("journal_entry_id", e.JournalEntryID.String()),
			zap.String("reversal_entry_id", e.ReversalEntryID.String()),
			zap.String("reason", e.Reason),
		)
	case *ledger.BalanceCheckCompletedEvent:
		h.log.Info("balance check completed",
			zap.String("tenant_id", e.TenantID().String()),
			zap.String("check_id", e.CheckID.String()),
			zap.Bool("balanced", e.Balanced),
			zap.Int("discrepancies", e.DiscrepancyCount),
		)
	default:
		h.log.Info("ledger event",
			zap.String("event_type", evt.EventType()),
			zap.String("tenant_id", evt.TenantID().String()),
			zap.String("aggregate_id", evt.AggregateID().String()),
		)
	}
	return nil
}
