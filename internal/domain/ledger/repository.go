package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// JournalEntryFilter holds query options for journal entry listings
type JournalEntryFilter struct {
	Status     *EntryStatus
	SourceType *DocumentType
	SourceID   *uuid.UUID
	FromDate   *time.Time
	ToDate     *time.Time
	Page       int
	PageSize   int
}

// JournalEntryRepository defines persistence for journal entries
type JournalEntryRepository interface {
	// FindByIDForTenant loads an entry with its lines, or nil if absent
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*JournalEntry, error)

	// FindActiveBySource finds the non-reversed entry for a document
	// transition, or nil. Invariant: at most one exists.
	FindActiveBySource(ctx context.Context, tenantID uuid.UUID, sourceType DocumentType, sourceID uuid.UUID, transition Transition) (*JournalEntry, error)

	// FindAllForTenant lists entries matching the filter
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter JournalEntryFilter) ([]JournalEntry, error)

	// CountForTenant counts entries matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter JournalEntryFilter) (int64, error)

	// ControlBalance sums posted lines on an account up to asOf, signed by
	// the given normal side
	ControlBalance(ctx context.Context, tenantID, accountID uuid.UUID, normalSide AccountSide, asOf time.Time) (int64, error)

	// SubledgerLineSum sums posted lines tagged with the subledger kind up
	// to asOf, signed by the given normal side
	SubledgerLineSum(ctx context.Context, tenantID uuid.UUID, kind SubledgerKind, normalSide AccountSide, asOf time.Time) (int64, error)
}

// LedgerAccountRepository defines persistence for the chart of accounts
type LedgerAccountRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*LedgerAccount, error)
	FindByRole(ctx context.Context, tenantID uuid.UUID, role AccountRole) (*LedgerAccount, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]LedgerAccount, error)
	Save(ctx context.Context, account *LedgerAccount) error
}

// ChartResolver is the read-only dependency that maps an account role to the
// tenant's concrete account. The chart itself is owned by the master-data
// subsystem; the posting engine only reads it.
type ChartResolver interface {
	// ResolveAccount returns the tenant's active account for the role.
	// A missing mapping is an UNMAPPED_ACCOUNT_ROLE error.
	ResolveAccount(ctx context.Context, tenantID uuid.UUID, role AccountRole) (*LedgerAccount, error)
}

// SubledgerRepository defines persistence for subledger running balances
type SubledgerRepository interface {
	FindByEntity(ctx context.Context, tenantID uuid.UUID, kind SubledgerKind, entityID uuid.UUID) (*SubledgerBalance, error)
	FindByKind(ctx context.Context, tenantID uuid.UUID, kind SubledgerKind) ([]SubledgerBalance, error)
	SumBalances(ctx context.Context, tenantID uuid.UUID, kind SubledgerKind) (int64, error)
	Save(ctx context.Context, balance *SubledgerBalance) error
}

// SequenceRepository allocates gapless document numbers
type SequenceRepository interface {
	// NextNumber atomically increments the (tenant, series, period) counter
	// and returns the allocated number
	NextNumber(ctx context.Context, tenantID uuid.UUID, seriesKey, period string) (int64, error)
}

// BalanceCheckLogRepository persists verifier run audit logs
type BalanceCheckLogRepository interface {
	Save(ctx context.Context, result *BalanceCheckResult) error
	FindLatestForTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]BalanceCheckResult, error)
}

// PostingLine is one account-resolved line of a posting command
type PostingLine struct {
	Account      *LedgerAccount
	Side         AccountSide
	Amount       valueobject.Money
	Description  string
	SubledgerRef *uuid.UUID
}

// PostingCommand is the engine's input: a fully resolved, tenant-scoped
// request to persist one balanced journal entry
type PostingCommand struct {
	TenantID       uuid.UUID
	SourceType     DocumentType
	SourceID       uuid.UUID
	Transition     Transition
	EntryDate      time.Time
	IdempotencyKey string
	Lines          []PostingLine
}

// Fingerprint returns a stable digest of the command payload. A repeated
// idempotency key with a different fingerprint is a duplicate posting, not a
// replay.
func (c PostingCommand) Fingerprint() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s|%s|%s", c.TenantID, c.SourceType, c.SourceID, c.Transition)
	for _, line := range c.Lines {
		ref := ""
		if line.SubledgerRef != nil {
			ref = line.SubledgerRef.String()
		}
		fmt.Fprintf(&sb, "|%s:%s:%d:%s", line.Account.ID, line.Side, line.Amount.MinorUnits(), ref)
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// PostingEngine is the transactional core: it validates and atomically
// persists journal entries, allocates numbers, and maintains subledger
// aggregates - all-or-nothing.
type PostingEngine interface {
	// CreatePosting persists a POSTED entry for the command. A repeated call
	// with the same idempotency key and payload returns the original entry.
	CreatePosting(ctx context.Context, cmd PostingCommand) (*JournalEntry, error)

	// FindReplay returns the entry previously posted under the command's
	// idempotency key, nil when the key is unseen, and a DUPLICATE_POSTING
	// error when the key was used with a different payload.
	FindReplay(ctx context.Context, cmd PostingCommand) (*JournalEntry, error)

	// VoidPosting reverses a POSTED entry with a mirrored entry dated now
	// and returns the reversing entry. Voiding twice is rejected.
	VoidPosting(ctx context.Context, tenantID, entryID uuid.UUID, reason string) (*JournalEntry, error)

	// DiscardDraft deletes a DRAFT entry that was never posted. No reversing
	// entry is created because the draft never affected balances.
	DiscardDraft(ctx context.Context, tenantID, entryID uuid.UUID) error
}
