package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/covest/covest-service/internal/adapters/solana"
	"github.com/covest/covest-service/internal/api/handlers"
	adminhandlers "github.com/covest/covest-service/internal/api/handlers/admin"
	"github.com/covest/covest-service/internal/api/middleware"
	"github.com/covest/covest-service/internal/domain/entities"
	"github.com/covest/covest-service/internal/domain/services/account"
	"github.com/covest/covest-service/internal/domain/services/referral"
	"github.com/covest/covest-service/internal/domain/services/trading"
	"github.com/covest/covest-service/internal/domain/services/withdrawal"
	"github.com/covest/covest-service/internal/infrastructure/cache"
	"github.com/covest/covest-service/internal/infrastructure/config"
	"github.com/covest/covest-service/internal/infrastructure/repositories"
	"github.com/covest/covest-service/pkg/logger"
)

// Dependencies carries everything the router needs, wired in main.
type Dependencies struct {
	Config  *config.Config
	Flags   *config.FeatureFlags
	Logger  *logger.Logger
	DB      *sqlx.DB
	Redis   cache.RedisClient
	Catalog entities.PlanCatalog
	Version string

	AccountService    *account.Service
	WithdrawalService *withdrawal.Service
	ReferralService   *referral.Service
	TradingService    *trading.Service

	WithdrawalRepo *repositories.WithdrawalRepository
	AccountRepo    *repositories.AccountRepository
	PaymentRepo    *repositories.PaymentRepository

	Chain *solana.Client
}

// SetupRoutes configures all application routes
func SetupRoutes(deps *Dependencies) *gin.Engine {
	if deps.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(300))

	healthHandlers := handlers.NewHealthHandlers(deps.DB, deps.Redis, deps.Logger, deps.Version)
	accountHandlers := handlers.NewAccountHandlers(deps.AccountService, deps.ReferralService, deps.Catalog, deps.Logger)
	withdrawalHandlers := handlers.NewWithdrawalHandlers(deps.WithdrawalService, deps.WithdrawalRepo, deps.Logger)
	tradingHandlers := handlers.NewTradingHandlers(deps.TradingService, deps.Logger)
	webhookHandlers := handlers.NewWebhookHandlers(deps.ReferralService, deps.PaymentRepo,
		deps.Config.Payment.WebhookSecret, deps.Logger)
	adminHandlers := adminhandlers.NewHandlers(deps.WithdrawalService, deps.WithdrawalRepo,
		deps.AccountService, deps.AccountRepo, deps.Chain, deps.Flags, deps.Logger)

	// Probes and metrics, no auth
	router.GET("/live", healthHandlers.Live)
	router.GET("/ready", healthHandlers.Ready)
	router.GET("/version", healthHandlers.Version)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Processor callbacks authenticate with the HMAC signature, not a token
	router.POST("/api/v1/webhooks/payments", webhookHandlers.HandlePaymentWebhook)

	api := router.Group("/api/v1")
	api.Use(middleware.Authentication(deps.Config))
	{
		api.GET("/plans", accountHandlers.ListPlans)

		api.POST("/accounts", accountHandlers.Register)
		api.GET("/accounts/:userId/balance", accountHandlers.GetBalance)
		api.PUT("/accounts/:userId/wallet", accountHandlers.SetWallet)
		api.GET("/accounts/:userId/history", accountHandlers.GetHistory)
		api.GET("/accounts/:userId/referrals", accountHandlers.GetReferralStats)
		api.GET("/accounts/:userId/payments", accountHandlers.ListPayments)

		api.POST("/accounts/:userId/free-plan", accountHandlers.ActivateFreePlan)
		api.POST("/accounts/:userId/plans/:planKey", accountHandlers.PurchasePlan)

		api.POST("/accounts/:userId/withdrawals/request", withdrawalHandlers.RequestWithdrawal)
		api.DELETE("/accounts/:userId/withdrawals/request", withdrawalHandlers.CancelWithdrawal)
		api.POST("/accounts/:userId/withdrawals/confirm", withdrawalHandlers.ConfirmWithdrawal)
		api.GET("/accounts/:userId/withdrawals", withdrawalHandlers.ListWithdrawals)

		api.POST("/accounts/:userId/trading/session", tradingHandlers.StartSession)
		api.POST("/accounts/:userId/trading/gain", tradingHandlers.RecordGain)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuth())
	{
		admin.GET("/withdrawals", adminHandlers.ListPendingWithdrawals)
		admin.POST("/withdrawals/:withdrawalId/approve", adminHandlers.ApproveWithdrawal)
		admin.POST("/withdrawals/:withdrawalId/reject", adminHandlers.RejectWithdrawal)
		admin.POST("/withdrawals/:withdrawalId/hold", adminHandlers.HoldWithdrawal)
		admin.POST("/withdrawals/:withdrawalId/resume", adminHandlers.ResumeWithdrawal)
		admin.PUT("/withdrawals-enabled", adminHandlers.ToggleWithdrawals)
		admin.POST("/accounts/:userId/adjust", adminHandlers.AdjustBalance)
		admin.DELETE("/accounts/:userId", adminHandlers.PurgeUser)
		admin.GET("/stats", adminHandlers.Stats)
	}

	return router
}
