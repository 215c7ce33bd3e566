package main

import (
	"BackOffice/internal/adapters/balance"
	"BackOffice/internal/adapters/collections"
	"BackOffice/internal/adapters/eventbus"
	"BackOffice/internal/adapters/fantasy402"
	"BackOffice/internal/adapters/httpapi"
	"BackOffice/internal/adapters/memory"
	"BackOffice/internal/adapters/postgres"
	"BackOffice/internal/adapters/redis"
	"BackOffice/internal/adapters/telegram"
	"BackOffice/internal/core/ports"
	"BackOffice/internal/core/saga"
	"BackOffice/internal/core/services/handlers"
	"BackOffice/internal/core/services/mapper"
	"BackOffice/internal/core/services/orchestrator"
	"BackOffice/internal/core/services/workflow"
	"BackOffice/internal/shared/config"
	"BackOffice/internal/shared/logger"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// sandboxCreditLimit is granted to agents the sandbox gateway has not seen.
var sandboxCreditLimit = decimal.NewFromInt(10000)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	isDevMode := cfg.AppEnv == "dev"
	baseLogger := logger.New(isDevMode)
	baseLogger.Info().
		Str("app_env", cfg.AppEnv).
		Str("bot_mode", cfg.Bot.Mode).
		Bool("journal", cfg.Postgres.URL != "").
		Bool("redis", cfg.Redis.URL != "").
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Event Bus (the single instance every component shares)
	bus := eventbus.NewInMemoryEventBus(&baseLogger)

	// 4. Step journal and idempotency store
	var journal ports.StepJournal = memory.NewStepJournal()
	if cfg.Postgres.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Postgres.URL, &baseLogger)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to create journal schema")
		}
		journal = postgres.NewStepJournalRepository(db)
	}

	var idempotency ports.IdempotencyStore = memory.NewIdempotencyStore()
	if cfg.Redis.URL != "" {
		store, err := redis.NewIdempotencyStore(ctx, cfg.Redis.URL, &baseLogger)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to initialize Redis")
		}
		defer store.Close()
		idempotency = store
	}

	// 5. Bounded contexts and the external gateway
	balanceSvc := balance.NewService(bus, balance.Options{AlertThreshold: cfg.Rules.BalanceAlertThreshold}, &baseLogger)
	collectionsSvc := collections.NewService(bus, collections.Options{RiskLimit: cfg.Rules.PaymentRiskLimit}, &baseLogger)
	gateway := fantasy402.NewSandboxGateway(fantasy402.SandboxOptions{DefaultCreditLimit: sandboxCreditLimit}, &baseLogger)

	// 6. Orchestration core
	runner := saga.NewRunner(bus, journal, saga.Options{}, &baseLogger)

	eventMapper := mapper.New(bus, mapper.Options{Production: cfg.IsProduction()}, &baseLogger)
	mapper.RegisterDefaultMappings(eventMapper)

	engine := workflow.NewEngine(bus, runner, &baseLogger)
	if err := engine.RegisterDefaults(workflow.Deps{
		Bus:         bus,
		Balance:     balanceSvc,
		Collections: collectionsSvc,
		Gateway:     gateway,
		Rules: workflow.Rules{
			HighValueBetThreshold: cfg.Rules.HighValueBetThreshold,
			BonusMinDeposit:       cfg.Rules.BonusMinDeposit,
			BonusRate:             cfg.Rules.BonusRate,
		},
	}); err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to register workflows")
	}

	orch := orchestrator.New(orchestrator.Deps{
		Bus:         bus,
		Balance:     balanceSvc,
		Collections: collectionsSvc,
		Gateway:     gateway,
		Runner:      runner,
	}, orchestrator.Options{RiskStakeThreshold: cfg.Rules.RiskStakeThreshold}, &baseLogger)

	handlers.New(balanceSvc, idempotency, handlers.Rules{
		HighValueBetThreshold: cfg.Rules.HighValueBetThreshold,
		BonusMinDeposit:       cfg.Rules.BonusMinDeposit,
	}, &baseLogger).Register(bus)

	// 7. Notifications: the ops chat when the bot runs, the log otherwise
	var bot *telegram.Bot
	notifier := memory.NewLogNotifier(&baseLogger)
	if cfg.Bot.Mode != "disabled" {
		bot, err = telegram.NewBot(&cfg.Bot, isDevMode, &baseLogger)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to initialize bot")
		}
		if cfg.Bot.NotifyChatID != 0 {
			notifier = bot.Notifier()
		} else {
			baseLogger.Warn().Msg("BOT_NOTIFY_CHAT_ID not set, notifications are only logged")
		}
	}
	handlers.NewNotificationFanout(notifier, &baseLogger).Register(bus)

	baseLogger.Info().Strs("external_types", eventMapper.RegisteredTypes()).Msg("All services initialized successfully")

	// 8. Run surfaces until shutdown
	g, gctx := errgroup.WithContext(ctx)

	app := httpapi.NewApp(httpapi.Deps{Events: eventMapper, Processes: orch, Workflows: engine}, &baseLogger)
	g.Go(func() error {
		baseLogger.Info().Str("addr", cfg.HTTPListenAddr).Msg("HTTP API listening")
		return app.Listen(cfg.HTTPListenAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		baseLogger.Info().Msg("Shutting down HTTP API...")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if bot != nil {
		g.Go(func() error {
			return bot.Run(gctx, eventMapper, statusReport(engine, orch))
		})
	}

	g.Go(func() error {
		runJanitor(gctx, cfg.Cleanup, engine, orch, baseLogger)
		return nil
	})

	if err := g.Wait(); err != nil {
		baseLogger.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}
	baseLogger.Info().Msg("Server stopped gracefully")
}

// runJanitor evicts finished workflows and processes older than MaxAge.
func runJanitor(ctx context.Context, cfg config.CleanupConfig, engine *workflow.Engine, orch *orchestrator.Orchestrator, log zerolog.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			workflows := engine.CleanupCompletedWorkflows(cfg.MaxAge)
			processes := orch.CleanupCompletedProcesses(cfg.MaxAge)
			if workflows > 0 || processes > 0 {
				log.Info().
					Int("workflows", workflows).
					Int("processes", processes).
					Msg("Evicted finished runs")
			}
		}
	}
}

func statusReport(engine *workflow.Engine, orch *orchestrator.Orchestrator) telegram.StatusFunc {
	return func(ctx context.Context) string {
		stats := engine.GetStats()
		return fmt.Sprintf("Workflows: %d defined, %d active, %d completed, %d failed\nProcesses in registry: %d",
			stats.TotalDefined, stats.Active, stats.Completed, stats.Failed, len(orch.ActiveProcesses()))
	}
}
