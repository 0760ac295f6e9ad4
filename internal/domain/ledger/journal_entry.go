package ledger

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// EntryStatus represents the lifecycle state of a journal entry
type EntryStatus string

const (
	EntryStatusDraft    EntryStatus = "DRAFT"    // Created, no number assigned, may be deleted
	EntryStatusPosted   EntryStatus = "POSTED"   // Numbered and affecting balances, immutable
	EntryStatusReversed EntryStatus = "REVERSED" // Neutralized by a paired reversing entry
)

// IsValid checks if the status is a valid EntryStatus
func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusDraft, EntryStatusPosted, EntryStatusReversed:
		return true
	}
	return false
}

// String returns the string representation of EntryStatus
func (s EntryStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the entry can no longer change status forward.
// REVERSED entries remain queryable history.
func (s EntryStatus) IsTerminal() bool {
	return s == EntryStatusReversed
}

// DocumentType tags the kind of business document a posting originates from
type DocumentType string

const (
	DocSalesInvoice    DocumentType = "sales_invoice"
	DocBill            DocumentType = "bill"
	DocCreditNote      DocumentType = "credit_note"
	DocVendorCredit    DocumentType = "vendor_credit"
	DocCustomerDeposit DocumentType = "customer_deposit"
	DocStockAdjustment DocumentType = "stock_adjustment"
	DocStockTransfer   DocumentType = "stock_transfer"
	DocPaymentReceipt  DocumentType = "payment_receipt"
	DocBillPayment     DocumentType = "bill_payment"
	DocProductionOrder DocumentType = "production_order"
)

// IsValid checks if the document type is known
func (d DocumentType) IsValid() bool {
	switch d {
	case DocSalesInvoice, DocBill, DocCreditNote, DocVendorCredit,
		DocCustomerDeposit, DocStockAdjustment, DocStockTransfer,
		DocPaymentReceipt, DocBillPayment, DocProductionOrder:
		return true
	}
	return false
}

// String returns the string representation of the document type
func (d DocumentType) String() string {
	return string(d)
}

// Transition names the document state change that requires financial effect
type Transition string

const (
	TransitionPost         Transition = "post"
	TransitionVoid         Transition = "void"
	TransitionApplyPayment Transition = "apply_payment"
)

// IsValid checks if the transition is known
func (t Transition) IsValid() bool {
	switch t {
	case TransitionPost, TransitionVoid, TransitionApplyPayment:
		return true
	}
	return false
}

// String returns the string representation of the transition
func (t Transition) String() string {
	return string(t)
}

// JournalLine is a single debit or credit within a journal entry.
// Exactly one of Debit/Credit is non-zero; both are integer minor units.
// SubledgerRef carries the customer/vendor/item the line settles against
// when the account is a control account.
type JournalLine struct {
	ID             uuid.UUID      `json:"id"`
	JournalEntryID uuid.UUID      `json:"journal_entry_id"`
	LineNumber     int            `json:"line_number"`
	AccountID      uuid.UUID      `json:"account_id"`
	Debit          int64          `json:"debit"`
	Credit         int64          `json:"credit"`
	Description    string         `json:"description"`
	SubledgerKind  *SubledgerKind `json:"subledger_kind,omitempty"`
	SubledgerRef   *uuid.UUID     `json:"subledger_ref,omitempty"`
}

// NewJournalLine creates a line on the given side with a non-negative amount
func NewJournalLine(accountID uuid.UUID, side AccountSide, amount valueobject.Money, description string) (JournalLine, error) {
	if accountID == uuid.Nil {
		return JournalLine{}, NewInvalidAccountError("Journal line account ID cannot be empty")
	}
	if !side.IsValid() {
		return JournalLine{}, NewValidationError("Journal line side must be DEBIT or CREDIT")
	}
	if amount.IsNegative() {
		return JournalLine{}, NewValidationError("Journal line amount cannot be negative")
	}

	line := JournalLine{
		ID:          uuid.New(),
		AccountID:   accountID,
		Description: description,
	}
	if side == SideDebit {
		line.Debit = amount.MinorUnits()
	} else {
		line.Credit = amount.MinorUnits()
	}
	return line, nil
}

// WithSubledger attaches the subledger entity this line settles against
func (l JournalLine) WithSubledger(kind SubledgerKind, entityID uuid.UUID) JournalLine {
	l.SubledgerKind = &kind
	l.SubledgerRef = &entityID
	return l
}

// Side returns which side of the ledger the line sits on
func (l JournalLine) Side() AccountSide {
	if l.Debit != 0 {
		return SideDebit
	}
	return SideCredit
}

// Amount returns the line's magnitude regardless of side
func (l JournalLine) Amount() int64 {
	if l.Debit != 0 {
		return l.Debit
	}
	return l.Credit
}

// Mirror returns a copy of the line with debit and credit swapped
func (l JournalLine) Mirror() JournalLine {
	m := l
	m.ID = uuid.New()
	m.JournalEntryID = uuid.Nil
	m.Debit, m.Credit = l.Credit, l.Debit
	return m
}

// validate checks the exactly-one-side rule
func (l JournalLine) validate() error {
	if l.AccountID == uuid.Nil {
		return NewInvalidAccountError("Journal line account ID cannot be empty")
	}
	if l.Debit < 0 || l.Credit < 0 {
		return NewValidationError("Journal line amounts cannot be negative")
	}
	if (l.Debit == 0) == (l.Credit == 0) {
		return NewValidationError("Journal line must have exactly one non-zero side")
	}
	return nil
}

// JournalEntry is a dated, balanced, immutable set of debit/credit lines.
// It is the aggregate root of the posting engine: once POSTED it is never
// edited or deleted - corrections are new, linked entries.
type JournalEntry struct {
	shared.TenantAggregateRoot
	JournalNumber int64         `json:"journal_number"`
	SeriesKey     string        `json:"series_key"`
	Period        string        `json:"period"`
	EntryDate     time.Time     `json:"entry_date"`
	Status        EntryStatus   `json:"status"`
	SourceType    DocumentType  `json:"source_type"`
	SourceID      uuid.UUID     `json:"source_id"`
	Transition    Transition    `json:"transition"`
	ReversalOfID  *uuid.UUID    `json:"reversal_of_id,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	TotalDebit    int64         `json:"total_debit"`
	TotalCredit   int64         `json:"total_credit"`
	Lines         []JournalLine `json:"lines"`
}

// NewJournalEntry creates a DRAFT entry after validating the balanced-set
// invariants: at least two lines, exactly one side per line, and debit and
// credit totals equal to the minor unit.
func NewJournalEntry(
	tenantID uuid.UUID,
	sourceType DocumentType,
	sourceID uuid.UUID,
	transition Transition,
	entryDate time.Time,
	lines []JournalLine,
) (*JournalEntry, error) {
	if tenantID == uuid.Nil {
		return nil, NewValidationError("Tenant ID cannot be empty")
	}
	if !sourceType.IsValid() {
		return nil, NewValidationError(fmt.Sprintf("Unknown document type %q", sourceType))
	}
	if sourceID == uuid.Nil {
		return nil, NewValidationError("Source document ID cannot be empty")
	}
	if !transition.IsValid() {
		return nil, NewValidationError(fmt.Sprintf("Unknown transition %q", transition))
	}
	if len(lines) < 2 {
		return nil, NewValidationError("Journal entry requires at least two lines")
	}

	var totalDebit, totalCredit int64
	for i := range lines {
		if err := lines[i].validate(); err != nil {
			return nil, err
		}
		totalDebit += lines[i].Debit
		totalCredit += lines[i].Credit
	}
	if totalDebit != totalCredit {
		return nil, NewUnbalancedEntryError(totalDebit, totalCredit)
	}

	entry := &JournalEntry{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		EntryDate:           entryDate,
		Status:              EntryStatusDraft,
		SourceType:          sourceType,
		SourceID:            sourceID,
		Transition:          transition,
		TotalDebit:          totalDebit,
		TotalCredit:         totalCredit,
		Lines:               make([]JournalLine, len(lines)),
	}
	copy(entry.Lines, lines)
	for i := range entry.Lines {
		entry.Lines[i].JournalEntryID = entry.ID
		entry.Lines[i].LineNumber = i + 1
	}

	return entry, nil
}

// Post assigns the journal number and moves the entry DRAFT -> POSTED.
// Numbering and posting happen in the same transaction so a rollback
// releases the number and the series stays gapless.
func (e *JournalEntry) Post(journalNumber int64, seriesKey, period string) error {
	if e.Status != EntryStatusDraft {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot post journal entry in %s status", e.Status))
	}
	if journalNumber <= 0 {
		return NewValidationError("Journal number must be positive")
	}

	e.JournalNumber = journalNumber
	e.SeriesKey = seriesKey
	e.Period = period
	e.Status = EntryStatusPosted
	e.Touch()
	e.IncrementVersion()

	e.AddDomainEvent(NewJournalEntryPostedEvent(e))

	return nil
}

// MarkReversed links the reversing entry and moves POSTED -> REVERSED.
// Lines are never altered; the mirrored entry carries the correction.
func (e *JournalEntry) MarkReversed(reversalID uuid.UUID, reason string) error {
	if e.Status != EntryStatusPosted {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot reverse journal entry in %s status", e.Status))
	}
	if reversalID == uuid.Nil {
		return NewValidationError("Reversal entry ID cannot be empty")
	}

	e.Status = EntryStatusReversed
	e.Reason = reason
	e.Touch()
	e.IncrementVersion()

	e.AddDomainEvent(NewJournalEntryReversedEvent(e, reversalID))

	return nil
}

// BuildReversal constructs the mirrored DRAFT entry that neutralizes this
// one: every line's debit and credit swapped, same magnitudes and accounts,
// dated at void time and linked via ReversalOfID.
func (e *JournalEntry) BuildReversal(entryDate time.Time, reason string) (*JournalEntry, error) {
	if e.Status != EntryStatusPosted {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot build reversal for journal entry in %s status", e.Status))
	}
	if reason == "" {
		return nil, NewValidationError("Reversal reason is required")
	}

	mirrored := make([]JournalLine, len(e.Lines))
	for i, line := range e.Lines {
		mirrored[i] = line.Mirror()
	}

	reversal, err := NewJournalEntry(e.TenantID, e.SourceType, e.SourceID, TransitionVoid, entryDate, mirrored)
	if err != nil {
		return nil, err
	}
	reversalOf := e.ID
	reversal.ReversalOfID = &reversalOf
	reversal.Reason = reason

	return reversal, nil
}

// IsBalanced reports whether debit and credit totals match exactly
func (e *JournalEntry) IsBalanced() bool {
	return e.TotalDebit == e.TotalCredit
}

// IsPosted returns true if the entry affects balances
func (e *JournalEntry) IsPosted() bool {
	return e.Status == EntryStatusPosted
}

// IsReversal returns true if the entry neutralizes another entry
func (e *JournalEntry) IsReversal() bool {
	return e.ReversalOfID != nil
}
