package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
)

// BalanceCheckService runs control-balance verification for tenants and
// publishes the outcome. It is invoked on demand and by the periodic
// scheduler.
type BalanceCheckService struct {
	checker   *ledger.ControlBalanceService
	auditRepo ledger.BalanceCheckLogRepository
	eventBus  shared.EventPublisher
	logger    *zap.Logger
}

// NewBalanceCheckService creates a new BalanceCheckService
func NewBalanceCheckService(
	checker *ledger.ControlBalanceService,
	auditRepo ledger.BalanceCheckLogRepository,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *BalanceCheckService {
	return &BalanceCheckService{
		checker:   checker,
		auditRepo: auditRepo,
		eventBus:  eventBus,
		logger:    logger,
	}
}

// RunCheck verifies the tenant's control accounts as of the given time.
// A zero asOf checks current balances including running-balance drift.
func (s *BalanceCheckService) RunCheck(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*ledger.BalanceCheckResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance_check", "run")
	defer span.End()

	telemetry.SetAttribute(span, telemetry.SpanAttrTenantID, tenantID.String())

	result, err := s.checker.CheckTenantBalance(ctx, tenantID, asOf)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		"balanced", result.IsBalanced(),
		"checked_accounts", result.CheckedAccounts,
		"discrepancies", len(result.Discrepancies),
	)

	if result.IsBalanced() {
		s.logger.Info("Control balance check passed",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("checked_accounts", result.CheckedAccounts),
			zap.Int64("duration_ms", result.DurationMillis))
	} else {
		fields := []zap.Field{
			zap.String("tenant_id", tenantID.String()),
			zap.Int("discrepancy_count", len(result.Discrepancies)),
		}
		for _, d := range result.Discrepancies {
			fields = append(fields, zap.String("discrepancy", d.String()))
		}
		s.logger.Error("Control balance check found discrepancies", fields...)
	}

	if s.eventBus != nil {
		if err := s.eventBus.Publish(ctx, result.GetDomainEvents()...); err != nil {
			s.logger.Error("Failed to publish balance check event",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
		}
		result.ClearDomainEvents()
	}

	return result, nil
}

// History returns the most recent verifier runs for a tenant
func (s *BalanceCheckService) History(ctx context.Context, tenantID uuid.UUID, limit int) ([]ledger.BalanceCheckResult, error) {
	if s.auditRepo == nil {
		return nil, nil
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	results, err := s.auditRepo.FindLatestForTenant(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance check history: %w", err)
	}
	return results, nil
}
