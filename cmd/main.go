package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/covest/covest-service/internal/adapters/payments"
	"github.com/covest/covest-service/internal/adapters/pricing"
	"github.com/covest/covest-service/internal/adapters/solana"
	"github.com/covest/covest-service/internal/adapters/telegram"
	"github.com/covest/covest-service/internal/api/routes"
	"github.com/covest/covest-service/internal/domain/entities"
	"github.com/covest/covest-service/internal/domain/services/account"
	"github.com/covest/covest-service/internal/domain/services/referral"
	"github.com/covest/covest-service/internal/domain/services/trading"
	"github.com/covest/covest-service/internal/domain/services/withdrawal"
	"github.com/covest/covest-service/internal/infrastructure/cache"
	"github.com/covest/covest-service/internal/infrastructure/config"
	"github.com/covest/covest-service/internal/infrastructure/database"
	"github.com/covest/covest-service/internal/infrastructure/repositories"
	"github.com/covest/covest-service/internal/workers/payout_worker"
	"github.com/covest/covest-service/internal/workers/price_worker"
	"github.com/covest/covest-service/pkg/graceful"
	"github.com/covest/covest-service/pkg/logger"
	"github.com/covest/covest-service/pkg/metrics"
)

var version = "dev"

// workerShutdowner adapts a worker's Stop method to the graceful manager.
type workerShutdowner struct {
	stop func()
}

func (w workerShutdowner) Shutdown(time.Duration) error {
	w.stop()
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedisClient(&cfg.Redis, log.Zap())
	if err != nil {
		log.Fatal("Failed to connect to redis", "error", err)
	}

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	withdrawalRepo := repositories.NewWithdrawalRepository(db)
	referralRepo := repositories.NewReferralRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)
	ledgerRepo := repositories.NewLedgerRepository(db)

	// External adapters
	chain, err := solana.NewClient(cfg.Solana, log)
	if err != nil {
		log.Fatal("Failed to initialize solana client", "error", err)
	}
	oracle := pricing.NewOracle(cfg.Pricing, redisClient, log)
	notifier, err := telegram.New(cfg.Telegram, log)
	if err != nil {
		log.Fatal("Failed to initialize telegram notifier", "error", err)
	}
	processor := payments.NewClient(cfg.Payment, log)

	catalog := entities.DefaultPlans()
	flags := config.NewFeatureFlags(cfg)

	// Domain services
	withdrawalService := withdrawal.NewService(
		accountRepo,
		withdrawalRepo,
		ledgerRepo,
		chain,
		oracle,
		notifier,
		catalog,
		withdrawal.Config{
			Enabled:     flags.WithdrawalsEnabled,
			PayoutDelay: time.Duration(cfg.Ledger.PayoutDelaySeconds) * time.Second,
		},
		log,
	)
	referralService := referral.NewService(accountRepo, referralRepo, paymentRepo, ledgerRepo, notifier, catalog, log)
	tradingService := trading.NewService(accountRepo, ledgerRepo, notifier, catalog, nil, log)
	accountService := account.NewService(accountRepo, paymentRepo, ledgerRepo, processor, oracle,
		catalog, cfg.Ledger.FreePlanDays, nil, log)

	router := routes.SetupRoutes(&routes.Dependencies{
		Config:  cfg,
		Flags:   flags,
		Logger:  log,
		DB:      db,
		Redis:   redisClient,
		Catalog: catalog,
		Version: version,

		AccountService:    accountService,
		WithdrawalService: withdrawalService,
		ReferralService:   referralService,
		TradingService:    tradingService,

		WithdrawalRepo: withdrawalRepo,
		AccountRepo:    accountRepo,
		PaymentRepo:    paymentRepo,

		Chain: chain,
	})

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Background workers
	payoutWorker := payout_worker.NewWorker(withdrawalService, cfg.Workers.PayoutPollSeconds, cfg.Workers.JobTimeout, log)
	payoutWorker.Start(context.Background())

	priceWorker := price_worker.NewWorker(oracle, cfg.Pricing.RefreshCron, log)
	if err := priceWorker.Start(context.Background()); err != nil {
		log.Fatal("Failed to start price worker", "error", err)
	}

	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
			"hot_wallet", chain.Address(),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			metrics.DatabaseConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
			metrics.DatabaseConnections.WithLabelValues("idle").Set(float64(stats.Idle))
			metrics.DatabaseConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
		}
	}()

	shutdown := graceful.NewShutdownManager(server, db.DB, log)
	shutdown.Register(workerShutdowner{stop: payoutWorker.Stop})
	shutdown.Register(workerShutdowner{stop: priceWorker.Stop})
	shutdown.Register(workerShutdowner{stop: func() {
		if err := redisClient.Close(); err != nil {
			log.Warn("Redis close error", "error", err)
		}
	}})
	shutdown.WaitForShutdown()
}
