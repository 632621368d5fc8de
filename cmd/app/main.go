// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-credit-miniapp/internal/config"
	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/domain/ports/adapter"
	"telegram-credit-miniapp/internal/infra/adapters/compute"
	tele "telegram-credit-miniapp/internal/infra/adapters/telegram"
	"telegram-credit-miniapp/internal/infra/api"
	pg "telegram-credit-miniapp/internal/infra/db/postgres"
	"telegram-credit-miniapp/internal/infra/logging"
	"telegram-credit-miniapp/internal/infra/metrics"
	"telegram-credit-miniapp/internal/infra/ratelimit"
	red "telegram-credit-miniapp/internal/infra/redis"
	"telegram-credit-miniapp/internal/infra/sched"
	"telegram-credit-miniapp/internal/infra/security"
	"telegram-credit-miniapp/internal/infra/worker"
	"telegram-credit-miniapp/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: console logs, no Bot API calls")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled, invoices are not sent to Telegram")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Compute.Mode)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := pg.Migrate(ctx, pool, "up", logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// ---- Repositories ----
	ledgerRepo := pg.NewLedgerRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	referralRepo := pg.NewReferralRepo(pool)
	txm := pg.NewTxManager(pool)

	// ---- Redis (optional) ----
	var (
		limiter adapter.RateLimiter
		locker  red.Locker
		sweeper *ratelimit.Memory
	)
	checks := map[string]api.HealthCheck{"database": pool.Ping}
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
		checks["redis"] = redisClient.Ping
	} else {
		logger.Info().Msg("redis not configured, using in-process rate limiter")
		sweeper = ratelimit.NewMemory()
		limiter = sweeper
	}

	// ---- Telegram ----
	var provider adapter.PaymentProvider
	if cfg.Runtime.Dev {
		provider = tele.NewNoopProvider(logger)
	} else {
		bot, err := tele.NewBotAPIProvider(&cfg.Bot, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		provider = bot
	}

	// ---- Use cases ----
	catalog := model.NewCatalog(cfg.Payment.TestMode)
	ledgerUC := usecase.NewLedgerUseCase(ledgerRepo, cfg.Payment.WelcomeCredits, logger)
	referralUC := usecase.NewReferralUseCase(referralRepo, ledgerRepo, txm, cfg.Payment.ReferralBonus, logger)
	invoiceUC := usecase.NewInvoiceUseCase(catalog, provider, usecase.InvoiceText{
		Title:       cfg.Payment.InvoiceTitle,
		Description: cfg.Payment.InvoiceDesc,
	}, logger)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, ledgerUC, referralUC, provider, catalog, logger)
	statsUC := usecase.NewStatsUseCase(paymentRepo, logger)

	computeClient := compute.NewWebhookClient(cfg.Compute.WebhookURL, logger)
	if !computeClient.Configured() {
		logger.Warn().Msg("compute webhook url not set, /consume will answer server_configuration_error")
	}
	consumeUC, err := usecase.NewConsumeUseCase(cfg.Compute.Mode, ledgerUC, computeClient, cfg.Compute.Timeout, logger)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	// ---- Workers ----
	webhooks := worker.NewPool("webhook", cfg.Workers.Webhook, logger)
	poolCtx, stopPool := context.WithCancel(context.Background())
	defer stopPool()
	webhooks.Start(poolCtx)

	scheduler := sched.NewScheduler(logger)
	if err := scheduler.Add(cfg.Scheduler.FailedPaymentsCron, sched.NewFailedPaymentReporter(statsUC, locker, 5*time.Minute, logger)); err != nil {
		return err
	}
	if err := scheduler.Add("@every 30s", sched.NewDBPoolStats(pool)); err != nil {
		return err
	}
	if sweeper != nil {
		if err := scheduler.Add(fmt.Sprintf("@every %s", cfg.RateLimit.SweepInterval), sched.NewRateLimitSweep(sweeper)); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)

	// ---- HTTP ----
	srv := api.NewServer(cfg, api.Deps{
		Verifier:  security.NewVerifier(cfg.Bot.Token, cfg.Auth.MaxAge),
		Ledger:    ledgerUC,
		Invoices:  invoiceUC,
		Payments:  paymentUC,
		Consume:   consumeUC,
		Referrals: referralUC,
		Stats:     statsUC,
		Limiter:   limiter,
		Webhooks:  webhooks,
		Checks:    checks,
		Version:   version,
	}, logger)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	logger.Info().
		Str("version", version).
		Str("consume_mode", cfg.Compute.Mode).
		Bool("test_mode", catalog.TestMode()).
		Int("skus", len(catalog.All())).
		Str("compute_url", logging.Redact(cfg.Compute.WebhookURL, cfg.Runtime.Dev)).
		Str("database_url", logging.Redact(cfg.Database.URL, cfg.Runtime.Dev)).
		Msg("service started")

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigc:
		logger.Info().Str("signal", s.String()).Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 20*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	// queued webhook updates still hold a charge id; finish them before closing the pool
	webhooks.Stop()
	scheduler.Stop(shutdownCtx)
	cancel()

	logger.Info().Msg("bye")
	return nil
}
