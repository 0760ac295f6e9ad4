package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
)

// JournalEntryModel is the persistence model for the JournalEntry aggregate root.
// ActiveSource is a nullable uniqueness key of the form
// "source_type|source_id|transition": it is set while the entry is POSTED and
// cleared on reversal, so the database enforces at most one active entry per
// document transition without voided history colliding.
type JournalEntryModel struct {
	AggregateModel
	TenantID      uuid.UUID           `gorm:"type:uuid;not null;index:idx_journal_tenant_number,priority:1;index:idx_journal_source,priority:1"`
	JournalNumber int64               `gorm:"not null;default:0;index:idx_journal_tenant_number,priority:2"`
	SeriesKey     string              `gorm:"type:varchar(20);not null;default:''"`
	Period        string              `gorm:"type:varchar(10);not null;default:'';index"`
	EntryDate     time.Time           `gorm:"not null;index"`
	Status        ledger.EntryStatus  `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	SourceType    ledger.DocumentType `gorm:"type:varchar(30);not null;index:idx_journal_source,priority:2"`
	SourceID      uuid.UUID           `gorm:"type:uuid;not null;index:idx_journal_source,priority:3"`
	Transition    ledger.Transition   `gorm:"type:varchar(30);not null;index:idx_journal_source,priority:4"`
	ActiveSource  *string             `gorm:"type:varchar(200);uniqueIndex:idx_journal_active_source"`
	ReversalOfID  *uuid.UUID          `gorm:"type:uuid;index"`
	Reason        string              `gorm:"type:varchar(500)"`
	TotalDebit    int64               `gorm:"not null"`
	TotalCredit   int64               `gorm:"not null"`
	Lines         []JournalLineModel  `gorm:"foreignKey:JournalEntryID;references:ID"`
}

// TableName returns the table name for GORM
func (JournalEntryModel) TableName() string {
	return "journal_entries"
}

// ActiveSourceKey builds the uniqueness key for a posted entry's document
// transition within a tenant
func ActiveSourceKey(tenantID uuid.UUID, sourceType ledger.DocumentType, sourceID uuid.UUID, transition ledger.Transition) string {
	return fmt.Sprintf("%s|%s|%s|%s", tenantID, sourceType, sourceID, transition)
}

// ToDomain converts the persistence model to a domain JournalEntry
func (m *JournalEntryModel) ToDomain() *ledger.JournalEntry {
	entry := &ledger.JournalEntry{
		JournalNumber: m.JournalNumber,
		SeriesKey:     m.SeriesKey,
		Period:        m.Period,
		EntryDate:     m.EntryDate,
		Status:        m.Status,
		SourceType:    m.SourceType,
		SourceID:      m.SourceID,
		Transition:    m.Transition,
		ReversalOfID:  m.ReversalOfID,
		Reason:        m.Reason,
		TotalDebit:    m.TotalDebit,
		TotalCredit:   m.TotalCredit,
		Lines:         make([]ledger.JournalLine, len(m.Lines)),
	}
	m.PopulateAggregateRoot(&entry.BaseAggregateRoot)
	entry.TenantID = m.TenantID

	for i := range m.Lines {
		entry.Lines[i] = m.Lines[i].ToDomain()
	}
	sort.Slice(entry.Lines, func(i, j int) bool {
		return entry.Lines[i].LineNumber < entry.Lines[j].LineNumber
	})

	return entry
}

// FromDomain populates the persistence model from a domain JournalEntry
func (m *JournalEntryModel) FromDomain(entry *ledger.JournalEntry) {
	m.FromDomainAggregateRoot(entry.BaseAggregateRoot)
	m.TenantID = entry.TenantID
	m.JournalNumber = entry.JournalNumber
	m.SeriesKey = entry.SeriesKey
	m.Period = entry.Period
	m.EntryDate = entry.EntryDate
	m.Status = entry.Status
	m.SourceType = entry.SourceType
	m.SourceID = entry.SourceID
	m.Transition = entry.Transition
	m.ReversalOfID = entry.ReversalOfID
	m.Reason = entry.Reason
	m.TotalDebit = entry.TotalDebit
	m.TotalCredit = entry.TotalCredit

	if entry.Status == ledger.EntryStatusPosted {
		key := ActiveSourceKey(entry.TenantID, entry.SourceType, entry.SourceID, entry.Transition)
		m.ActiveSource = &key
	} else {
		m.ActiveSource = nil
	}

	m.Lines = make([]JournalLineModel, len(entry.Lines))
	for i := range entry.Lines {
		m.Lines[i].FromDomain(entry.TenantID, entry.Lines[i])
	}
}

// JournalEntryModelFromDomain creates a new persistence model from a domain JournalEntry
func JournalEntryModelFromDomain(entry *ledger.JournalEntry) *JournalEntryModel {
	m := &JournalEntryModel{}
	m.FromDomain(entry)
	return m
}

// JournalLineModel is the persistence model for one journal entry line.
// TenantID is denormalized from the entry so balance aggregations never
// cross a tenant boundary even without a join.
type JournalLineModel struct {
	ID             uuid.UUID             `gorm:"type:uuid;primary_key"`
	JournalEntryID uuid.UUID             `gorm:"type:uuid;not null;index"`
	TenantID       uuid.UUID             `gorm:"type:uuid;not null;index:idx_line_subledger,priority:1"`
	LineNumber     int                   `gorm:"not null"`
	AccountID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	Debit          int64                 `gorm:"not null"`
	Credit         int64                 `gorm:"not null"`
	Description    string                `gorm:"type:varchar(500)"`
	SubledgerKind  *ledger.SubledgerKind `gorm:"type:varchar(20);index:idx_line_subledger,priority:2"`
	SubledgerRef   *uuid.UUID            `gorm:"type:uuid;index:idx_line_subledger,priority:3"`
}

// TableName returns the table name for GORM
func (JournalLineModel) TableName() string {
	return "journal_lines"
}

// ToDomain converts the persistence model to a domain JournalLine
func (m *JournalLineModel) ToDomain() ledger.JournalLine {
	return ledger.JournalLine{
		ID:             m.ID,
		JournalEntryID: m.JournalEntryID,
		LineNumber:     m.LineNumber,
		AccountID:      m.AccountID,
		Debit:          m.Debit,
		Credit:         m.Credit,
		Description:    m.Description,
		SubledgerKind:  m.SubledgerKind,
		SubledgerRef:   m.SubledgerRef,
	}
}

// FromDomain populates the persistence model from a domain JournalLine
func (m *JournalLineModel) FromDomain(tenantID uuid.UUID, line ledger.JournalLine) {
	m.ID = line.ID
	m.JournalEntryID = line.JournalEntryID
	m.TenantID = tenantID
	m.LineNumber = line.LineNumber
	m.AccountID = line.AccountID
	m.Debit = line.Debit
	m.Credit = line.Credit
	m.Description = line.Description
	m.SubledgerKind = line.SubledgerKind
	m.SubledgerRef = line.SubledgerRef
}

// LedgerAccountModel is the persistence model for the LedgerAccount aggregate root
type LedgerAccountModel struct {
	AggregateModel
	TenantID   uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_account_tenant_code,priority:1;index:idx_account_tenant_role,priority:1"`
	Code       string             `gorm:"type:varchar(20);not null;uniqueIndex:idx_account_tenant_code,priority:2"`
	Name       string             `gorm:"type:varchar(200);not null"`
	Role       ledger.AccountRole `gorm:"type:varchar(30);not null;index:idx_account_tenant_role,priority:2"`
	NormalSide ledger.AccountSide `gorm:"type:varchar(10);not null"`
	Active     bool               `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (LedgerAccountModel) TableName() string {
	return "ledger_accounts"
}

// ToDomain converts the persistence model to a domain LedgerAccount
func (m *LedgerAccountModel) ToDomain() *ledger.LedgerAccount {
	account := &ledger.LedgerAccount{
		Code:       m.Code,
		Name:       m.Name,
		Role:       m.Role,
		NormalSide: m.NormalSide,
		Active:     m.Active,
	}
	m.PopulateAggregateRoot(&account.BaseAggregateRoot)
	account.TenantID = m.TenantID
	return account
}

// FromDomain populates the persistence model from a domain LedgerAccount
func (m *LedgerAccountModel) FromDomain(account *ledger.LedgerAccount) {
	m.FromDomainAggregateRoot(account.BaseAggregateRoot)
	m.TenantID = account.TenantID
	m.Code = account.Code
	m.Name = account.Name
	m.Role = account.Role
	m.NormalSide = account.NormalSide
	m.Active = account.Active
}

// SubledgerBalanceModel is the persistence model for one entity's running balance
type SubledgerBalanceModel struct {
	AggregateModel
	TenantID uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_subledger_entity,priority:1"`
	Kind     ledger.SubledgerKind `gorm:"type:varchar(20);not null;uniqueIndex:idx_subledger_entity,priority:2"`
	EntityID uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_subledger_entity,priority:3"`
	Balance  int64                `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (SubledgerBalanceModel) TableName() string {
	return "subledger_balances"
}

// ToDomain converts the persistence model to a domain SubledgerBalance
func (m *SubledgerBalanceModel) ToDomain() *ledger.SubledgerBalance {
	balance := &ledger.SubledgerBalance{
		Kind:     m.Kind,
		EntityID: m.EntityID,
		Balance:  m.Balance,
	}
	m.PopulateAggregateRoot(&balance.BaseAggregateRoot)
	balance.TenantID = m.TenantID
	return balance
}

// FromDomain populates the persistence model from a domain SubledgerBalance
func (m *SubledgerBalanceModel) FromDomain(balance *ledger.SubledgerBalance) {
	m.FromDomainAggregateRoot(balance.BaseAggregateRoot)
	m.TenantID = balance.TenantID
	m.Kind = balance.Kind
	m.EntityID = balance.EntityID
	m.Balance = balance.Balance
}

// SequenceCounterModel is the persistence model for a gapless numbering
// counter. The row is incremented under a row-level lock inside the posting
// transaction.
type SequenceCounterModel struct {
	BaseModel
	TenantID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sequence_scope,priority:1"`
	SeriesKey  string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_sequence_scope,priority:2"`
	Period     string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_sequence_scope,priority:3"`
	LastNumber int64     `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (SequenceCounterModel) TableName() string {
	return "sequence_counters"
}

// ToDomain converts the persistence model to a domain SequenceCounter
func (m *SequenceCounterModel) ToDomain() *ledger.SequenceCounter {
	return &ledger.SequenceCounter{
		BaseEntity: m.BaseModel.ToDomain(),
		TenantID:   m.TenantID,
		SeriesKey:  m.SeriesKey,
		Period:     m.Period,
		LastNumber: m.LastNumber,
	}
}

// FromDomain populates the persistence model from a domain SequenceCounter
func (m *SequenceCounterModel) FromDomain(counter *ledger.SequenceCounter) {
	m.FromDomainBaseEntity(counter.BaseEntity)
	m.TenantID = counter.TenantID
	m.SeriesKey = counter.SeriesKey
	m.Period = counter.Period
	m.LastNumber = counter.LastNumber
}

// PostingRecordModel records one processed idempotency key with the payload
// fingerprint and the journal entry it produced. It is the durable authority
// for idempotent replay.
type PostingRecordModel struct {
	BaseModel
	TenantID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_posting_record_key,priority:1"`
	IdempotencyKey string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_posting_record_key,priority:2"`
	Fingerprint    string    `gorm:"type:char(64);not null"`
	JournalEntryID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (PostingRecordModel) TableName() string {
	return "posting_records"
}

// DiscrepancyList stores verifier discrepancies as a JSON column
type DiscrepancyList []ledger.BalanceDiscrepancy

// Value implements driver.Valuer for database serialization
func (d DiscrepancyList) Value() (driver.Value, error) {
	if d == nil {
		d = DiscrepancyList{}
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner for database deserialization
func (d *DiscrepancyList) Scan(value interface{}) error {
	if value == nil {
		*d = DiscrepancyList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("cannot scan %T into DiscrepancyList", value)
	}
}

// BalanceCheckLogModel is the persistence model for one verifier run
type BalanceCheckLogModel struct {
	TenantAggregateModel
	AsOf            time.Time                 `gorm:"not null;index"`
	Status          ledger.BalanceCheckStatus `gorm:"type:varchar(20);not null;index"`
	CheckedAccounts int                       `gorm:"not null"`
	Discrepancies   DiscrepancyList           `gorm:"type:text"`
	DurationMillis  int64                     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BalanceCheckLogModel) TableName() string {
	return "balance_check_logs"
}

// ToDomain converts the persistence model to a domain BalanceCheckResult
func (m *BalanceCheckLogModel) ToDomain() *ledger.BalanceCheckResult {
	result := &ledger.BalanceCheckResult{
		AsOf:            m.AsOf,
		Status:          m.Status,
		CheckedAccounts: m.CheckedAccounts,
		Discrepancies:   append([]ledger.BalanceDiscrepancy(nil), m.Discrepancies...),
		DurationMillis:  m.DurationMillis,
	}
	m.PopulateTenantAggregateRoot(&result.TenantAggregateRoot)
	return result
}

// FromDomain populates the persistence model from a domain BalanceCheckResult
func (m *BalanceCheckLogModel) FromDomain(result *ledger.BalanceCheckResult) {
	m.FromDomainTenantAggregateRoot(result.TenantAggregateRoot)
	m.AsOf = result.AsOf
	m.Status = result.Status
	m.CheckedAccounts = result.CheckedAccounts
	m.Discrepancies = DiscrepancyList(result.Discrepancies)
	m.DurationMillis = result.DurationMillis
}
