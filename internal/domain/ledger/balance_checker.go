package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceCheckStatus is the outcome of a verifier run
type BalanceCheckStatus string

const (
	BalanceCheckBalanced   BalanceCheckStatus = "BALANCED"
	BalanceCheckUnbalanced BalanceCheckStatus = "UNBALANCED"
)

// DiscrepancyType classifies what a discrepancy compares
type DiscrepancyType string

const (
	// ControlMismatch: GL control-account balance != subledger line aggregate
	ControlMismatch DiscrepancyType = "CONTROL_MISMATCH"
	// BalanceDrift: stored running balances != line-derived subledger total
	BalanceDrift DiscrepancyType = "BALANCE_DRIFT"
)

// BalanceDiscrepancy reports one control account out of step with its
// subledger, with the magnitude of the difference
type BalanceDiscrepancy struct {
	Type             DiscrepancyType `json:"type"`
	AccountID        uuid.UUID       `json:"account_id"`
	AccountCode      string          `json:"account_code"`
	Role             AccountRole     `json:"role"`
	Kind             SubledgerKind   `json:"kind"`
	GLBalance        int64           `json:"gl_balance"`
	SubledgerBalance int64           `json:"subledger_balance"`
}

// Difference returns the discrepancy magnitude in major units for reporting
func (d BalanceDiscrepancy) Difference() decimal.Decimal {
	diff := d.GLBalance - d.SubledgerBalance
	if diff < 0 {
		diff = -diff
	}
	return decimal.New(diff, -2)
}

// String renders the discrepancy for logs and reports
func (d BalanceDiscrepancy) String() string {
	return fmt.Sprintf("%s %s (%s): GL %d vs subledger %d, off by %s",
		d.Type, d.AccountCode, d.Role, d.GLBalance, d.SubledgerBalance, d.Difference())
}

// BalanceCheckResult is the audit record of one verifier run
type BalanceCheckResult struct {
	shared.TenantAggregateRoot
	AsOf            time.Time            `json:"as_of"`
	Status          BalanceCheckStatus   `json:"status"`
	CheckedAccounts int                  `json:"checked_accounts"`
	Discrepancies   []BalanceDiscrepancy `json:"discrepancies"`
	DurationMillis  int64                `json:"duration_millis"`
}

// NewBalanceCheckResult creates an empty result for a run
func NewBalanceCheckResult(tenantID uuid.UUID, asOf time.Time) *BalanceCheckResult {
	return &BalanceCheckResult{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		AsOf:                asOf,
		Status:              BalanceCheckBalanced,
		Discrepancies:       make([]BalanceDiscrepancy, 0),
	}
}

// AddDiscrepancy records a discrepancy and flips the run to UNBALANCED
func (r *BalanceCheckResult) AddDiscrepancy(d BalanceDiscrepancy) {
	r.Discrepancies = append(r.Discrepancies, d)
	r.Status = BalanceCheckUnbalanced
}

// IsBalanced returns true if the run found no discrepancies
func (r *BalanceCheckResult) IsBalanced() bool {
	return r.Status == BalanceCheckBalanced
}

// ControlBalanceService is the invariant verifier: for every control account
// with a subledger it compares the GL balance against the subledger
// aggregate, for the same tenant and as-of date. Discrepancies are reported,
// never silently auto-corrected.
type ControlBalanceService struct {
	accountRepo   LedgerAccountRepository
	entryRepo     JournalEntryRepository
	subledgerRepo SubledgerRepository
	auditRepo     BalanceCheckLogRepository
}

// ControlBalanceServiceOption is a functional option for configuring the service
type ControlBalanceServiceOption func(*ControlBalanceService)

// WithBalanceCheckLog sets the audit log repository
func WithBalanceCheckLog(repo BalanceCheckLogRepository) ControlBalanceServiceOption {
	return func(s *ControlBalanceService) {
		s.auditRepo = repo
	}
}

// NewControlBalanceService creates a new ControlBalanceService
func NewControlBalanceService(
	accountRepo LedgerAccountRepository,
	entryRepo JournalEntryRepository,
	subledgerRepo SubledgerRepository,
	opts ...ControlBalanceServiceOption,
) *ControlBalanceService {
	s := &ControlBalanceService{
		accountRepo:   accountRepo,
		entryRepo:     entryRepo,
		subledgerRepo: subledgerRepo,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// controlRoles are the roles whose accounts carry a subledger
var controlRoles = []AccountRole{RoleARControl, RoleAPControl, RoleInventory}

// CheckTenantBalance verifies every configured control account for the
// tenant as of the given time. A zero asOf means now.
func (s *ControlBalanceService) CheckTenantBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*BalanceCheckResult, error) {
	if tenantID == uuid.Nil {
		return nil, NewValidationError("Tenant ID cannot be empty")
	}
	now := time.Now()
	current := asOf.IsZero() || !asOf.Before(now)
	if asOf.IsZero() {
		asOf = now
	}

	startTime := time.Now()
	result := NewBalanceCheckResult(tenantID, asOf)

	for _, role := range controlRoles {
		account, err := s.accountRepo.FindByRole(ctx, tenantID, role)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve control account for role %s: %w", role, err)
		}
		if account == nil {
			// Tenant has no control account for this role; nothing to reconcile
			continue
		}
		kind, _ := role.SubledgerKind()
		result.CheckedAccounts++

		glBalance, err := s.entryRepo.ControlBalance(ctx, tenantID, account.ID, account.NormalSide, asOf)
		if err != nil {
			return nil, fmt.Errorf("failed to compute GL balance for account %s: %w", account.Code, err)
		}

		// The line-derived aggregate is exactly reconcilable as-of; the
		// stored running balances are only comparable for a current check.
		lineSum, err := s.entryRepo.SubledgerLineSum(ctx, tenantID, kind, account.NormalSide, asOf)
		if err != nil {
			return nil, fmt.Errorf("failed to compute subledger line sum for kind %s: %w", kind, err)
		}

		if glBalance != lineSum {
			result.AddDiscrepancy(BalanceDiscrepancy{
				Type:             ControlMismatch,
				AccountID:        account.ID,
				AccountCode:      account.Code,
				Role:             role,
				Kind:             kind,
				GLBalance:        glBalance,
				SubledgerBalance: lineSum,
			})
		}

		if current {
			stored, err := s.subledgerRepo.SumBalances(ctx, tenantID, kind)
			if err != nil {
				return nil, fmt.Errorf("failed to sum stored subledger balances for kind %s: %w", kind, err)
			}
			if stored != lineSum {
				result.AddDiscrepancy(BalanceDiscrepancy{
					Type:             BalanceDrift,
					AccountID:        account.ID,
					AccountCode:      account.Code,
					Role:             role,
					Kind:             kind,
					GLBalance:        lineSum,
					SubledgerBalance: stored,
				})
			}
		}
	}

	result.DurationMillis = time.Since(startTime).Milliseconds()
	result.AddDomainEvent(NewBalanceCheckCompletedEvent(result))

	if s.auditRepo != nil {
		if err := s.auditRepo.Save(ctx, result); err != nil {
			// Audit logging failures must not hide the check outcome
			return result, fmt.Errorf("balance check completed but audit log failed: %w", err)
		}
	}

	return result, nil
}

// EnforceBalanced runs a current check and returns an INVARIANT_VIOLATION
// error when any control account is out of step. Use it as a guard before
// period close.
func (s *ControlBalanceService) EnforceBalanced(ctx context.Context, tenantID uuid.UUID) error {
	result, err := s.CheckTenantBalance(ctx, tenantID, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to check tenant balance: %w", err)
	}
	if !result.IsBalanced() {
		return shared.NewDomainError(CodeInvariantViolation,
			fmt.Sprintf("Ledger out of balance: %d control account discrepancies", len(result.Discrepancies)))
	}
	return nil
}
