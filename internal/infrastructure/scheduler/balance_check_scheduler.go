package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/ledger/internal/domain/ledger"
)

// BalanceChecker runs a control-balance verification for one tenant
type BalanceChecker interface {
	RunCheck(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*ledger.BalanceCheckResult, error)
}

// TenantLister enumerates the tenants the verifier must cover
type TenantLister interface {
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// BalanceCheckSchedulerConfig holds scheduling for the periodic verifier
type BalanceCheckSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// CheckInterval is the time between verification sweeps
	CheckInterval time.Duration

	// RunTimeout is the maximum time for one tenant's check
	RunTimeout time.Duration
}

// DefaultBalanceCheckSchedulerConfig returns default configuration
func DefaultBalanceCheckSchedulerConfig() BalanceCheckSchedulerConfig {
	return BalanceCheckSchedulerConfig{
		Enabled:       true,
		CheckInterval: time.Hour,
		RunTimeout:    5 * time.Minute,
	}
}

// BalanceCheckScheduler sweeps every tenant's control accounts on an
// interval, logging and persisting any drift the checker finds.
type BalanceCheckScheduler struct {
	checker   BalanceChecker
	tenants   TenantLister
	logger    *zap.Logger
	config    BalanceCheckSchedulerConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewBalanceCheckScheduler creates a new balance check scheduler
func NewBalanceCheckScheduler(
	checker BalanceChecker,
	tenants TenantLister,
	logger *zap.Logger,
	config BalanceCheckSchedulerConfig,
) *BalanceCheckScheduler {
	return &BalanceCheckScheduler{
		checker: checker,
		tenants: tenants,
		logger:  logger,
		config:  config,
	}
}

// Start starts the periodic verification loop
func (s *BalanceCheckScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Balance check scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Balance check scheduler started",
		zap.Duration("check_interval", s.config.CheckInterval),
		zap.Duration("run_timeout", s.config.RunTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *BalanceCheckScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Balance check scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Balance check scheduler stop timed out")
		return ctx.Err()
	}
}

// TriggerImmediateCheck runs one sweep without waiting for the interval
func (s *BalanceCheckScheduler) TriggerImmediateCheck(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate balance check sweep")

	go func() {
		defer s.wg.Done()
		s.executeSweep(ctx)
	}()

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *BalanceCheckScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *BalanceCheckScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Balance check loop stopping")
			return
		case <-ticker.C:
			s.executeSweep(ctx)
		}
	}
}

// executeSweep checks every tenant in turn. One tenant's failure never
// skips the rest of the sweep.
func (s *BalanceCheckScheduler) executeSweep(ctx context.Context) {
	startTime := time.Now()

	tenantIDs, err := s.tenants.ListTenantIDs(ctx)
	if err != nil {
		s.logger.Error("Failed to list tenants for balance check", zap.Error(err))
		return
	}

	var checked, unbalanced, failed int
	for _, tenantID := range tenantIDs {
		result, err := s.checkTenant(ctx, tenantID)
		if err != nil {
			failed++
			s.logger.Error("Balance check failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}

		checked++
		if !result.IsBalanced() {
			unbalanced++
			s.logger.Warn("Control account drift detected",
				zap.String("tenant_id", tenantID.String()),
				zap.Int("discrepancies", len(result.Discrepancies)),
				zap.Time("as_of", result.AsOf),
			)
		}
	}

	s.logger.Info("Balance check sweep completed",
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("total_tenants", len(tenantIDs)),
		zap.Int("checked", checked),
		zap.Int("unbalanced", unbalanced),
		zap.Int("failed", failed),
	)
}

func (s *BalanceCheckScheduler) checkTenant(ctx context.Context, tenantID uuid.UUID) (*ledger.BalanceCheckResult, error) {
	checkCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	return s.checker.RunCheck(checkCtx, tenantID, time.Time{})
}
