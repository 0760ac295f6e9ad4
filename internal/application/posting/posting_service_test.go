package posting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
)

type fakeChart struct {
	accounts map[ledger.AccountRole]*ledger.LedgerAccount
}

func newFakeChart(t *testing.T, tenantID uuid.UUID) *fakeChart {
	t.Helper()
	chart := &fakeChart{accounts: make(map[ledger.AccountRole]*ledger.LedgerAccount)}
	specs := []struct {
		code string
		role ledger.AccountRole
		side ledger.AccountSide
	}{
		{"1000", ledger.RoleCash, ledger.SideDebit},
		{"1100", ledger.RoleARControl, ledger.SideDebit},
		{"1400", ledger.RoleInventory, ledger.SideDebit},
		{"2100", ledger.RoleAPControl, ledger.SideCredit},
		{"2300", ledger.RoleTaxOutput, ledger.SideCredit},
		{"1450", ledger.RoleTaxInput, ledger.SideDebit},
		{"4000", ledger.RoleRevenue, ledger.SideCredit},
		{"5000", ledger.RoleCOGS, ledger.SideDebit},
	}
	for _, spec := range specs {
		account, err := ledger.NewLedgerAccount(tenantID, spec.code, string(spec.role), spec.role, spec.side)
		require.NoError(t, err)
		chart.accounts[spec.role] = account
	}
	return chart
}

func (f *fakeChart) ResolveAccount(ctx context.Context, tenantID uuid.UUID, role ledger.AccountRole) (*ledger.LedgerAccount, error) {
	account, ok := f.accounts[role]
	if !ok {
		return nil, ledger.NewUnmappedRoleError(role)
	}
	return account, nil
}

// fakeEngine persists nothing; it builds and posts an entry from the command
type fakeEngine struct {
	commands     []ledger.PostingCommand
	conflictsErr int // number of leading calls that fail with a conflict
	voidErr      error
	discarded    []uuid.UUID
	replayEntry  *ledger.JournalEntry
	replayErr    error
	replayCalls  int
}

func (f *fakeEngine) CreatePosting(ctx context.Context, cmd ledger.PostingCommand) (*ledger.JournalEntry, error) {
	if f.conflictsErr > 0 {
		f.conflictsErr--
		return nil, shared.ErrConcurrencyConflict
	}
	f.commands = append(f.commands, cmd)

	lines := make([]ledger.JournalLine, 0, len(cmd.Lines))
	for _, pl := range cmd.Lines {
		line, err := ledger.NewJournalLine(pl.Account.ID, pl.Side, pl.Amount, pl.Description)
		if err != nil {
			return nil, err
		}
		if kind, ok := pl.Account.Role.SubledgerKind(); ok && pl.SubledgerRef != nil {
			line = line.WithSubledger(kind, *pl.SubledgerRef)
		}
		lines = append(lines, line)
	}
	entry, err := ledger.NewJournalEntry(cmd.TenantID, cmd.SourceType, cmd.SourceID, cmd.Transition, cmd.EntryDate, lines)
	if err != nil {
		return nil, err
	}
	if err := entry.Post(int64(len(f.commands)), ledger.SeriesJournal, ledger.PeriodOf(cmd.EntryDate)); err != nil {
		return nil, err
	}
	return entry, nil
}

func (f *fakeEngine) FindReplay(ctx context.Context, cmd ledger.PostingCommand) (*ledger.JournalEntry, error) {
	f.replayCalls++
	if f.replayErr != nil {
		return nil, f.replayErr
	}
	return f.replayEntry, nil
}

func (f *fakeEngine) VoidPosting(ctx context.Context, tenantID, entryID uuid.UUID, reason string) (*ledger.JournalEntry, error) {
	if f.voidErr != nil {
		return nil, f.voidErr
	}
	lines := []ledger.JournalLine{}
	for _, side := range []ledger.AccountSide{ledger.SideDebit, ledger.SideCredit} {
		line, err := ledger.NewJournalLine(uuid.New(), side, mustMoney(100), "reversal")
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	reversal, err := ledger.NewJournalEntry(tenantID, ledger.DocSalesInvoice, uuid.New(), ledger.TransitionVoid, time.Now(), lines)
	if err != nil {
		return nil, err
	}
	reversal.ReversalOfID = &entryID
	if err := reversal.Post(99, ledger.SeriesJournal, ledger.PeriodOf(time.Now())); err != nil {
		return nil, err
	}
	return reversal, nil
}

func (f *fakeEngine) DiscardDraft(ctx context.Context, tenantID, entryID uuid.UUID) error {
	f.discarded = append(f.discarded, entryID)
	return nil
}

type fakeBus struct {
	published []shared.DomainEvent
}

func (f *fakeBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	f.published = append(f.published, events...)
	return nil
}

type fakeIdemStore struct {
	seen map[string]bool
}

func (f *fakeIdemStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeIdemStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	return f.seen[key], nil
}

func (f *fakeIdemStore) Close() error { return nil }

func mustMoney(minor int64) valueobject.Money {
	return valueobject.NewMoney(minor)
}

func validRequest(tenantID uuid.UUID) PostingRequest {
	return PostingRequest{
		TenantID:       tenantID,
		SourceType:     ledger.DocSalesInvoice,
		SourceID:       uuid.New(),
		Transition:     ledger.TransitionPost,
		EntryDate:      time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		IdempotencyKey: "inv-0001:post",
		Subtotal:       100000000,
		Tax:            11000000,
		Cost:           70000000,
		PartyID:        ptr(uuid.New()),
		ItemID:         ptr(uuid.New()),
	}
}

func ptr[T any](v T) *T { return &v }

func newService(t *testing.T, tenantID uuid.UUID, engine *fakeEngine, opts ...PostingServiceOption) *PostingService {
	t.Helper()
	return NewPostingService(
		ledger.NewRuleResolver(),
		newFakeChart(t, tenantID),
		engine,
		nil,
		zap.NewNop(),
		opts...,
	)
}

func TestPostingService_CreatePosting(t *testing.T) {
	tenantID := uuid.New()

	t.Run("posts a resolved sales invoice", func(t *testing.T) {
		engine := &fakeEngine{}
		bus := &fakeBus{}
		service := newService(t, tenantID, engine, WithEventPublisher(bus))

		result, err := service.CreatePosting(context.Background(), validRequest(tenantID))

		require.NoError(t, err)
		assert.Equal(t, ledger.EntryStatusPosted, result.Status)
		assert.Equal(t, int64(1), result.JournalNumber)
		assert.Equal(t, "202603", result.Period)
		assert.Equal(t, int64(181000000), result.TotalDebit)
		assert.Equal(t, result.TotalDebit, result.TotalCredit)
		assert.Equal(t, 5, result.LineCount)

		require.Len(t, engine.commands, 1)
		cmd := engine.commands[0]
		assert.Equal(t, "inv-0001:post", cmd.IdempotencyKey)

		// AR and inventory lines carry subledger references
		var withRef int
		for _, line := range cmd.Lines {
			if line.SubledgerRef != nil {
				withRef++
			}
		}
		assert.Equal(t, 2, withRef)

		require.Len(t, bus.published, 1)
		assert.Equal(t, ledger.EventTypeJournalEntryPosted, bus.published[0].EventType())
	})

	t.Run("rejects missing idempotency key", func(t *testing.T) {
		service := newService(t, tenantID, &fakeEngine{})
		req := validRequest(tenantID)
		req.IdempotencyKey = ""

		_, err := service.CreatePosting(context.Background(), req)

		assert.Equal(t, ledger.CodeValidation, shared.ErrorCode(err))
	})

	t.Run("rejects control posting without party reference", func(t *testing.T) {
		service := newService(t, tenantID, &fakeEngine{})
		req := validRequest(tenantID)
		req.PartyID = nil

		_, err := service.CreatePosting(context.Background(), req)

		assert.Equal(t, ledger.CodeValidation, shared.ErrorCode(err))
	})

	t.Run("surfaces unmapped role", func(t *testing.T) {
		engine := &fakeEngine{}
		chart := newFakeChart(t, tenantID)
		delete(chart.accounts, ledger.RoleTaxOutput)
		service := NewPostingService(ledger.NewRuleResolver(), chart, engine, nil, zap.NewNop())

		_, err := service.CreatePosting(context.Background(), validRequest(tenantID))

		assert.Equal(t, ledger.CodeUnmappedRole, shared.ErrorCode(err))
		assert.Empty(t, engine.commands)
	})

	t.Run("retries optimistic-lock conflicts", func(t *testing.T) {
		engine := &fakeEngine{conflictsErr: 2}
		service := newService(t, tenantID, engine)

		result, err := service.CreatePosting(context.Background(), validRequest(tenantID))

		require.NoError(t, err)
		assert.Equal(t, ledger.EntryStatusPosted, result.Status)
	})

	t.Run("gives up after bounded conflict retries", func(t *testing.T) {
		engine := &fakeEngine{conflictsErr: maxConflictRetries + 1}
		service := newService(t, tenantID, engine)

		_, err := service.CreatePosting(context.Background(), validRequest(tenantID))

		assert.True(t, shared.IsConcurrencyConflict(err))
	})

	t.Run("fast-path guard does not block the engine", func(t *testing.T) {
		engine := &fakeEngine{}
		store := &fakeIdemStore{}
		service := newService(t, tenantID, engine,
			WithIdempotencyStore(store, shared.DefaultIdempotencyConfig()))
		req := validRequest(tenantID)

		_, err := service.CreatePosting(context.Background(), req)
		require.NoError(t, err)

		// Same key again but no posting record behind it, as after a failed
		// first attempt: the posting proceeds
		_, err = service.CreatePosting(context.Background(), req)
		require.NoError(t, err)
		assert.Len(t, engine.commands, 2)
		assert.Equal(t, 1, engine.replayCalls)
		assert.True(t, store.seen[req.IdempotencyKey])
	})

	t.Run("fast-path hit replays the original entry without reposting", func(t *testing.T) {
		engine := &fakeEngine{}
		store := &fakeIdemStore{}
		service := newService(t, tenantID, engine,
			WithIdempotencyStore(store, shared.DefaultIdempotencyConfig()))
		req := validRequest(tenantID)

		first, err := service.CreatePosting(context.Background(), req)
		require.NoError(t, err)

		engine.replayEntry = postedEntry(t, tenantID)
		second, err := service.CreatePosting(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, engine.replayEntry.ID, second.JournalEntryID)
		assert.NotEqual(t, first.JournalEntryID, second.JournalEntryID)
		assert.Len(t, engine.commands, 1)
	})

	t.Run("fast-path hit surfaces a payload mismatch", func(t *testing.T) {
		engine := &fakeEngine{}
		store := &fakeIdemStore{}
		service := newService(t, tenantID, engine,
			WithIdempotencyStore(store, shared.DefaultIdempotencyConfig()))
		req := validRequest(tenantID)

		_, err := service.CreatePosting(context.Background(), req)
		require.NoError(t, err)

		engine.replayErr = ledger.NewDuplicatePostingError("key reused with a different payload")
		changed := req
		changed.Subtotal += 500
		_, err = service.CreatePosting(context.Background(), changed)
		assert.Equal(t, ledger.CodeDuplicatePosting, shared.ErrorCode(err))
		assert.Len(t, engine.commands, 1)
	})
}

// postedEntry builds a minimal posted entry for replay fixtures
func postedEntry(t *testing.T, tenantID uuid.UUID) *ledger.JournalEntry {
	t.Helper()
	debit, err := ledger.NewJournalLine(uuid.New(), ledger.SideDebit, mustMoney(1000), "")
	require.NoError(t, err)
	credit, err := ledger.NewJournalLine(uuid.New(), ledger.SideCredit, mustMoney(1000), "")
	require.NoError(t, err)
	entry, err := ledger.NewJournalEntry(tenantID, ledger.DocSalesInvoice, uuid.New(), ledger.TransitionPost, time.Now(), []ledger.JournalLine{debit, credit})
	require.NoError(t, err)
	require.NoError(t, entry.Post(1, ledger.SeriesJournal, ledger.PeriodOf(time.Now())))
	return entry
}

func TestPostingService_VoidPosting(t *testing.T) {
	tenantID := uuid.New()

	t.Run("voids a posted entry", func(t *testing.T) {
		bus := &fakeBus{}
		service := newService(t, tenantID, &fakeEngine{}, WithEventPublisher(bus))

		result, err := service.VoidPosting(context.Background(), VoidRequest{
			TenantID:       tenantID,
			JournalEntryID: uuid.New(),
			Reason:         "duplicate invoice",
		})

		require.NoError(t, err)
		assert.Equal(t, ledger.EntryStatusPosted, result.Status)
		assert.Equal(t, int64(99), result.JournalNumber)
	})

	t.Run("requires a reason", func(t *testing.T) {
		service := newService(t, tenantID, &fakeEngine{})

		_, err := service.VoidPosting(context.Background(), VoidRequest{
			TenantID:       tenantID,
			JournalEntryID: uuid.New(),
		})

		assert.Equal(t, ledger.CodeValidation, shared.ErrorCode(err))
	})

	t.Run("surfaces engine rejection", func(t *testing.T) {
		engine := &fakeEngine{voidErr: shared.ErrInvalidState}
		service := newService(t, tenantID, engine)

		_, err := service.VoidPosting(context.Background(), VoidRequest{
			TenantID:       tenantID,
			JournalEntryID: uuid.New(),
			Reason:         "already voided",
		})

		assert.Equal(t, "INVALID_STATE", shared.ErrorCode(err))
	})
}

func TestPostingService_DiscardDraft(t *testing.T) {
	tenantID := uuid.New()

	t.Run("discards via the engine", func(t *testing.T) {
		engine := &fakeEngine{}
		service := newService(t, tenantID, engine)
		entryID := uuid.New()

		err := service.DiscardDraft(context.Background(), tenantID, entryID)

		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{entryID}, engine.discarded)
	})

	t.Run("rejects nil IDs", func(t *testing.T) {
		service := newService(t, tenantID, &fakeEngine{})

		err := service.DiscardDraft(context.Background(), uuid.Nil, uuid.New())

		assert.Equal(t, ledger.CodeValidation, shared.ErrorCode(err))
	})
}
