package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Event type names published by the posting engine
const (
	EventTypeJournalEntryPosted   = "JournalEntryPosted"
	EventTypeJournalEntryReversed = "JournalEntryReversed"
	EventTypeBalanceCheckDone     = "BalanceCheckCompleted"
)

// JournalEntryPostedEvent is raised when an entry moves DRAFT -> POSTED
type JournalEntryPostedEvent struct {
	shared.BaseDomainEvent
	JournalEntryID uuid.UUID    `json:"journal_entry_id"`
	JournalNumber  int64        `json:"journal_number"`
	SourceType     DocumentType `json:"source_type"`
	SourceID       uuid.UUID    `json:"source_id"`
	Transition     Transition   `json:"transition"`
	EntryDate      time.Time    `json:"entry_date"`
	TotalDebit     int64        `json:"total_debit"`
	TotalCredit    int64        `json:"total_credit"`
}

// EventType returns the event type name
func (e *JournalEntryPostedEvent) EventType() string {
	return EventTypeJournalEntryPosted
}

// NewJournalEntryPostedEvent creates a new JournalEntryPostedEvent
func NewJournalEntryPostedEvent(entry *JournalEntry) *JournalEntryPostedEvent {
	return &JournalEntryPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryPosted, "JournalEntry", entry.ID, entry.TenantID),
		JournalEntryID:  entry.ID,
		JournalNumber:   entry.JournalNumber,
		SourceType:      entry.SourceType,
		SourceID:        entry.SourceID,
		Transition:      entry.Transition,
		EntryDate:       entry.EntryDate,
		TotalDebit:      entry.TotalDebit,
		TotalCredit:     entry.TotalCredit,
	}
}

// JournalEntryReversedEvent is raised when an entry is neutralized by a
// paired reversing entry
type JournalEntryReversedEvent struct {
	shared.BaseDomainEvent
	JournalEntryID  uuid.UUID    `json:"journal_entry_id"`
	ReversalEntryID uuid.UUID    `json:"reversal_entry_id"`
	SourceType      DocumentType `json:"source_type"`
	SourceID        uuid.UUID    `json:"source_id"`
	Reason          string       `json:"reason"`
}

// EventType returns the event type name
func (e *JournalEntryReversedEvent) EventType() string {
	return EventTypeJournalEntryReversed
}

// NewJournalEntryReversedEvent creates a new JournalEntryReversedEvent
func NewJournalEntryReversedEvent(entry *JournalEntry, reversalID uuid.UUID) *JournalEntryReversedEvent {
	return &JournalEntryReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryReversed, "JournalEntry", entry.ID, entry.TenantID),
		JournalEntryID:  entry.ID,
		ReversalEntryID: reversalID,
		SourceType:      entry.SourceType,
		SourceID:        entry.SourceID,
		Reason:          entry.Reason,
	}
}

// BalanceCheckCompletedEvent is raised after a control-balance verification run
type BalanceCheckCompletedEvent struct {
	shared.BaseDomainEvent
	CheckID          uuid.UUID `json:"check_id"`
	AsOf             time.Time `json:"as_of"`
	Balanced         bool      `json:"balanced"`
	DiscrepancyCount int       `json:"discrepancy_count"`
}

// EventType returns the event type name
func (e *BalanceCheckCompletedEvent) EventType() string {
	return EventTypeBalanceCheckDone
}

// NewBalanceCheckCompletedEvent creates a new BalanceCheckCompletedEvent
func NewBalanceCheckCompletedEvent(result *BalanceCheckResult) *BalanceCheckCompletedEvent {
	return &BalanceCheckCompletedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeBalanceCheckDone, "BalanceCheck", result.ID, result.TenantID),
		CheckID:          result.ID,
		AsOf:             result.AsOf,
		Balanced:         result.IsBalanced(),
		DiscrepancyCount: len(result.Discrepancies),
	}
}
