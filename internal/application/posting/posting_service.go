package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
)

// maxConflictRetries bounds optimistic-lock retries on the posting path
const maxConflictRetries = 3

// PostingService orchestrates document-to-ledger posting: it resolves the
// posting rule, binds roles to the tenant's chart of accounts, and hands a
// fully resolved command to the transactional engine.
type PostingService struct {
	resolver    *ledger.RuleResolver
	chart       ledger.ChartResolver
	engine      ledger.PostingEngine
	entryRepo   ledger.JournalEntryRepository
	idempotency shared.IdempotencyStore
	idemConfig  shared.IdempotencyConfig
	eventBus    shared.EventPublisher
	logger      *zap.Logger
	validate    *validator.Validate
}

// PostingServiceOption configures optional service dependencies
type PostingServiceOption func(*PostingService)

// WithIdempotencyStore installs the fast-path duplicate guard in front of
// the engine's database record
func WithIdempotencyStore(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) PostingServiceOption {
	return func(s *PostingService) {
		s.idempotency = store
		s.idemConfig = cfg
	}
}

// WithEventPublisher installs the bus that receives journal entry events
func WithEventPublisher(bus shared.EventPublisher) PostingServiceOption {
	return func(s *PostingService) {
		s.eventBus = bus
	}
}

// NewPostingService creates a new PostingService
func NewPostingService(
	resolver *ledger.RuleResolver,
	chart ledger.ChartResolver,
	engine ledger.PostingEngine,
	entryRepo ledger.JournalEntryRepository,
	logger *zap.Logger,
	opts ...PostingServiceOption,
) *PostingService {
	s := &PostingService{
		resolver:   resolver,
		chart:      chart,
		engine:     engine,
		entryRepo:  entryRepo,
		idemConfig: shared.DefaultIdempotencyConfig(),
		logger:     logger,
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PostingRequest is the document subsystem's input: which document moved
// through which transition, and the money decomposition of that move.
// All amounts are integer minor units.
type PostingRequest struct {
	TenantID       uuid.UUID           `json:"tenant_id" validate:"required"`
	SourceType     ledger.DocumentType `json:"source_type" validate:"required"`
	SourceID       uuid.UUID           `json:"source_id" validate:"required"`
	Transition     ledger.Transition   `json:"transition" validate:"required"`
	EntryDate      time.Time           `json:"entry_date" validate:"required"`
	IdempotencyKey string              `json:"idempotency_key" validate:"required,min=8,max=128"`
	Subtotal       int64               `json:"subtotal"`
	Tax            int64               `json:"tax"`
	Cost           int64               `json:"cost"`
	Discount       int64               `json:"discount"`
	PartyID        *uuid.UUID          `json:"party_id,omitempty"`
	ItemID         *uuid.UUID          `json:"item_id,omitempty"`
}

// PostingResult describes the persisted journal entry
type PostingResult struct {
	JournalEntryID uuid.UUID          `json:"journal_entry_id"`
	JournalNumber  int64              `json:"journal_number"`
	SeriesKey      string             `json:"series_key"`
	Period         string             `json:"period"`
	Status         ledger.EntryStatus `json:"status"`
	TotalDebit     int64              `json:"total_debit"`
	TotalCredit    int64              `json:"total_credit"`
	LineCount      int                `json:"line_count"`
}

// CreatePosting validates the request, resolves it into balanced ledger
// lines and posts them atomically. Replaying the same idempotency key with
// the same payload returns the original entry.
func (s *PostingService) CreatePosting(ctx context.Context, req PostingRequest) (*PostingResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "create_posting")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrSourceType, string(req.SourceType),
		telemetry.SpanAttrSourceID, req.SourceID.String(),
		telemetry.SpanAttrTransition, string(req.Transition),
	)

	if err := s.validate.Struct(req); err != nil {
		err = ledger.NewValidationError(fmt.Sprintf("Invalid posting request: %v", err))
		telemetry.RecordError(span, err)
		return nil, err
	}

	cmd, err := s.resolveCommand(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if seen, guardErr := s.checkFastPathGuard(ctx, req.IdempotencyKey); guardErr != nil {
		s.logger.Warn("Idempotency fast-path unavailable, falling through to database check",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Error(guardErr))
	} else if seen {
		replay, rerr := s.engine.FindReplay(ctx, *cmd)
		if rerr != nil {
			telemetry.RecordError(span, rerr)
			return nil, rerr
		}
		if replay != nil {
			telemetry.AddEvent(span, "idempotency_fast_path_hit")
			return newPostingResult(replay), nil
		}
		// Marked but never recorded: an earlier attempt failed before
		// commit, so the posting proceeds
	}

	entry, err := s.postWithRetry(ctx, *cmd)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, entry)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrEntryID, entry.ID.String(),
		telemetry.SpanAttrJournalNum, entry.JournalNumber,
	)

	s.logger.Info("Journal entry posted",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("journal_entry_id", entry.ID.String()),
		zap.Int64("journal_number", entry.JournalNumber),
		zap.String("source_type", string(req.SourceType)),
		zap.String("source_id", req.SourceID.String()),
		zap.String("transition", string(req.Transition)),
		zap.Int64("total_debit", entry.TotalDebit))

	return newPostingResult(entry), nil
}

// VoidRequest asks for a posted entry to be neutralized
type VoidRequest struct {
	TenantID       uuid.UUID `json:"tenant_id" validate:"required"`
	JournalEntryID uuid.UUID `json:"journal_entry_id" validate:"required"`
	Reason         string    `json:"reason" validate:"required,min=3,max=500"`
}

// VoidPosting reverses a posted entry with a mirrored entry dated now.
// The original stays queryable as REVERSED; a second void is rejected.
func (s *PostingService) VoidPosting(ctx context.Context, req VoidRequest) (*PostingResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "void_posting")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrEntryID, req.JournalEntryID.String(),
	)

	if err := s.validate.Struct(req); err != nil {
		err = ledger.NewValidationError(fmt.Sprintf("Invalid void request: %v", err))
		telemetry.RecordError(span, err)
		return nil, err
	}

	var reversal *ledger.JournalEntry
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		reversal, err = s.engine.VoidPosting(ctx, req.TenantID, req.JournalEntryID, req.Reason)
		if err == nil || !shared.IsConcurrencyConflict(err) {
			break
		}
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, reversal)

	s.logger.Info("Journal entry voided",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("journal_entry_id", req.JournalEntryID.String()),
		zap.String("reversal_entry_id", reversal.ID.String()),
		zap.String("reason", req.Reason))

	return newPostingResult(reversal), nil
}

// DiscardDraft deletes a never-posted draft. Drafts carry no number and
// never touched balances, so no reversing entry is written.
func (s *PostingService) DiscardDraft(ctx context.Context, tenantID, entryID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "discard_draft")
	defer span.End()

	if tenantID == uuid.Nil || entryID == uuid.Nil {
		err := ledger.NewValidationError("Tenant ID and entry ID are required")
		telemetry.RecordError(span, err)
		return err
	}

	if err := s.engine.DiscardDraft(ctx, tenantID, entryID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.logger.Info("Draft journal entry discarded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("journal_entry_id", entryID.String()))

	return nil
}

// GetEntry loads one journal entry with its lines
func (s *PostingService) GetEntry(ctx context.Context, tenantID, entryID uuid.UUID) (*ledger.JournalEntry, error) {
	entry, err := s.entryRepo.FindByIDForTenant(ctx, tenantID, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal entry: %w", err)
	}
	if entry == nil {
		return nil, shared.ErrNotFound
	}
	return entry, nil
}

// ListEntries pages through a tenant's journal
func (s *PostingService) ListEntries(ctx context.Context, tenantID uuid.UUID, filter ledger.JournalEntryFilter) (*shared.Paginated[ledger.JournalEntry], error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 200 {
		filter.PageSize = 50
	}

	entries, err := s.entryRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	total, err := s.entryRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count journal entries: %w", err)
	}

	page := shared.NewPaginated(entries, total, filter.Page, filter.PageSize)
	return &page, nil
}

// resolveCommand turns the request into an account-resolved engine command
func (s *PostingService) resolveCommand(ctx context.Context, req PostingRequest) (*ledger.PostingCommand, error) {
	breakdown := ledger.MonetaryBreakdown{
		Subtotal: valueobject.NewMoney(req.Subtotal),
		Tax:      valueobject.NewMoney(req.Tax),
		Cost:     valueobject.NewMoney(req.Cost),
		Discount: valueobject.NewMoney(req.Discount),
	}

	resolved, err := s.resolver.Resolve(req.SourceType, req.Transition, breakdown)
	if err != nil {
		return nil, err
	}

	lines := make([]ledger.PostingLine, 0, len(resolved))
	for _, rl := range resolved {
		account, err := s.chart.ResolveAccount(ctx, req.TenantID, rl.Role)
		if err != nil {
			return nil, err
		}

		line := ledger.PostingLine{
			Account:     account,
			Side:        rl.Side,
			Amount:      rl.Amount,
			Description: rl.Description,
		}
		if kind, ok := account.Role.SubledgerKind(); ok {
			ref, err := subledgerRefFor(kind, req)
			if err != nil {
				return nil, err
			}
			line.SubledgerRef = ref
		}
		lines = append(lines, line)
	}

	return &ledger.PostingCommand{
		TenantID:       req.TenantID,
		SourceType:     req.SourceType,
		SourceID:       req.SourceID,
		Transition:     req.Transition,
		EntryDate:      req.EntryDate,
		IdempotencyKey: req.IdempotencyKey,
		Lines:          lines,
	}, nil
}

// subledgerRefFor picks the request field carrying the subledger entity.
// Control-account lines must name the entity they settle against.
func subledgerRefFor(kind ledger.SubledgerKind, req PostingRequest) (*uuid.UUID, error) {
	switch kind {
	case ledger.SubledgerCustomer, ledger.SubledgerVendor:
		if req.PartyID == nil {
			return nil, ledger.NewValidationError(
				fmt.Sprintf("Posting %s requires a party reference for the %s subledger", req.SourceType, kind))
		}
		return req.PartyID, nil
	default:
		if req.ItemID == nil {
			return nil, ledger.NewValidationError(
				fmt.Sprintf("Posting %s requires an item reference for the %s subledger", req.SourceType, kind))
		}
		return req.ItemID, nil
	}
}

// checkFastPathGuard marks the key in the idempotency store and reports
// whether it was already marked. A hit routes the request to a plain replay
// read instead of the posting transaction; the engine's posting record
// remains the authority on what the key produced.
func (s *PostingService) checkFastPathGuard(ctx context.Context, key string) (bool, error) {
	if s.idempotency == nil || !s.idemConfig.Enabled {
		return false, nil
	}
	newlyMarked, err := s.idempotency.MarkProcessed(ctx, key, s.idemConfig.TTL)
	if err != nil {
		return false, err
	}
	return !newlyMarked, nil
}

// postWithRetry retries the engine call on optimistic-lock conflicts.
// The engine is idempotent, so a retried command can only replay itself.
func (s *PostingService) postWithRetry(ctx context.Context, cmd ledger.PostingCommand) (*ledger.JournalEntry, error) {
	var entry *ledger.JournalEntry
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		entry, err = s.engine.CreatePosting(ctx, cmd)
		if err == nil || !shared.IsConcurrencyConflict(err) {
			return entry, err
		}
		s.logger.Debug("Posting conflicted, retrying",
			zap.String("idempotency_key", cmd.IdempotencyKey),
			zap.Int("attempt", attempt+1))
	}
	return nil, err
}

// publishEvents drains the aggregate's pending events onto the bus.
// Publish failures are logged, not surfaced: the entry is already durable.
func (s *PostingService) publishEvents(ctx context.Context, entry *ledger.JournalEntry) {
	if s.eventBus == nil {
		return
	}
	events := entry.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish journal entry events",
			zap.String("journal_entry_id", entry.ID.String()),
			zap.Error(err))
	}
	entry.ClearDomainEvents()
}

func newPostingResult(entry *ledger.JournalEntry) *PostingResult {
	return &PostingResult{
		JournalEntryID: entry.ID,
		JournalNumber:  entry.JournalNumber,
		SeriesKey:      entry.SeriesKey,
		Period:         entry.Period,
		Status:         entry.Status,
		TotalDebit:     entry.TotalDebit,
		TotalCredit:    entry.TotalCredit,
		LineCount:      len(entry.Lines),
	}
}
