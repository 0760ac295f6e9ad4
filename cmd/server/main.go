// Ledger service entry point. Wires configuration, persistence, the
// posting engine and the background workers (outbox drain, periodic
// balance verification) and runs until SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/erp/ledger/internal/application/posting"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/scheduler"
)

const shutdownTimeout = 30 * time.Second

// application holds the fully wired service graph. The posting and
// balance-check services are the surface the host process calls into;
// the workers run on their own goroutines.
type application struct {
	cfg *config.Config
	log *zap.Logger
	db  *persistence.Database

	postingService *posting.PostingService
	balanceService *posting.BalanceCheckService

	bus       *event.InMemoryEventBus
	processor *event.OutboxProcessor
	scheduler *scheduler.BalanceCheckScheduler
	idemStore shared.IdempotencyStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	log.Info("starting ledger service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	app, err := buildApplication(cfg, log)
	if err != nil {
		log.Fatal("failed to build application", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.start(ctx); err != nil {
		log.Fatal("failed to start background workers", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	cancel()
	app.stop()
	log.Info("ledger service stopped")
}

func buildApplication(cfg *config.Config, log *zap.Logger) (*application, error) {
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log, gormLogLevel(cfg.App.Env))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	accountRepo := persistence.NewGormLedgerAccountRepository(db.DB)
	entryRepo := persistence.NewGormJournalEntryRepository(db.DB)
	subledgerRepo := persistence.NewGormSubledgerRepository(db.DB)
	auditRepo := persistence.NewGormBalanceCheckLogRepository(db.DB)

	serializer := event.NewEventSerializer()
	event.RegisterLedgerEvents(serializer)

	bus := event.NewInMemoryEventBus(log)
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	publisher := event.NewOutboxPublisher(serializer)
	processor := event.NewOutboxProcessor(outboxRepo, bus, serializer,
		event.DefaultOutboxProcessorConfig(), log)

	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idemStore, err := storeFactory.CreateStore()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create idempotency store: %w", err)
	}
	idemConfig := shared.IdempotencyConfig{
		Enabled: cfg.Idempotency.Enabled,
		TTL:     cfg.Idempotency.TTL,
	}

	// Downstream consumers subscribe on the same bus; the audit handler
	// keeps a structured trail of everything that clears the outbox.
	audit := newJournalAuditHandler(log)
	bus.Subscribe(event.NewIdempotentHandler(audit, idemStore, log,
		event.WithIdempotencyConfig(idemConfig)))

	engine := persistence.NewGormLedgerEngine(db.DB, persistence.WithOutbox(publisher))
	chart := persistence.NewGormChartResolver(accountRepo)
	resolver := ledger.NewRuleResolver()

	postingService := posting.NewPostingService(resolver, chart, engine, entryRepo, log,
		posting.WithIdempotencyStore(idemStore, idemConfig),
		posting.WithEventPublisher(bus),
	)

	checker := ledger.NewControlBalanceService(accountRepo, entryRepo, subledgerRepo,
		ledger.WithBalanceCheckLog(auditRepo))
	balanceService := posting.NewBalanceCheckService(checker, auditRepo, bus, log)

	checkScheduler := scheduler.NewBalanceCheckScheduler(balanceService, accountRepo, log,
		scheduler.BalanceCheckSchedulerConfig{
			Enabled:       cfg.Verifier.Enabled,
			CheckInterval: cfg.Verifier.CheckInterval,
			RunTimeout:    cfg.Verifier.RunTimeout,
		})

	if cfg.Telemetry.Enabled {
		log.Info("tracing enabled, spans export through the host's provider",
			zap.String("service_name", cfg.Telemetry.ServiceName))
	}

	return &application{
		cfg:            cfg,
		log:            log,
		db:             db,
		postingService: postingService,
		balanceService: balanceService,
		bus:            bus,
		processor:      processor,
		scheduler:      checkScheduler,
		idemStore:      idemStore,
	}, nil
}

func (a *application) start(ctx context.Context) error {
	if err := a.bus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	if err := a.processor.Start(ctx); err != nil {
		return fmt.Errorf("start outbox processor: %w", err)
	}
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start balance check scheduler: %w", err)
	}
	a.log.Info("ledger service ready")
	return nil
}

// stop drains the workers in reverse start order so in-flight outbox
// deliveries still find a running bus.
func (a *application) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.scheduler.Stop(ctx); err != nil {
		a.log.Warn("balance check scheduler stop", zap.Error(err))
	}
	if err := a.processor.Stop(ctx); err != nil {
		a.log.Warn("outbox processor stop", zap.Error(err))
	}

	busCtx, busCancel := context.WithTimeout(context.Background(), a.cfg.Event.StopTimeout)
	defer busCancel()
	if err := a.bus.Stop(busCtx); err != nil {
		a.log.Warn("event bus stop", zap.Error(err))
	}

	if err := a.idemStore.Close(); err != nil {
		a.log.Warn("idempotency store close", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("database close", zap.Error(err))
	}
}

func gormLogLevel(env string) gormlogger.LogLevel {
	if env == "production" {
		return gormlogger.Error
	}
	return gormlogger.Warn
}
