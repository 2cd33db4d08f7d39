package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/covest/covest-service/internal/domain/entities"
	"github.com/covest/covest-service/pkg/logger"
)

// AccountServiceInterface defines the interface for account operations
type AccountServiceInterface interface {
	Register(ctx context.Context, userID int64, username, referralCode string) (*entities.Account, error)
	ActivateFreePlan(ctx context.Context, userID int64) (*entities.Account, error)
	Balance(ctx context.Context, userID int64) (*entities.BalanceView, error)
	SetWallet(ctx context.Context, userID int64, address string) error
	History(ctx context.Context, userID int64, limit int) ([]entities.LedgerEntry, error)
	Payments(ctx context.Context, userID int64, limit int) ([]entities.Payment, error)
	PurchasePlan(ctx context.Context, userID int64, planKey string) (*entities.Payment, error)
}

// ReferralStatsInterface serves the referral read surface.
type ReferralStatsInterface interface {
	Stats(ctx context.Context, userID int64) (*entities.ReferralStats, error)
}

// AccountHandlers handles account and plan operations
type AccountHandlers struct {
	accountService  AccountServiceInterface
	referralService ReferralStatsInterface
	catalog         entities.PlanCatalog
	validator       *validator.Validate
	logger          *logger.Logger
}

// NewAccountHandlers creates a new AccountHandlers instance
func NewAccountHandlers(accountService AccountServiceInterface, referralService ReferralStatsInterface,
	catalog entities.PlanCatalog, logger *logger.Logger) *AccountHandlers {
	return &AccountHandlers{
		accountService:  accountService,
		referralService: referralService,
		catalog:         catalog,
		validator:       validator.New(),
		logger:          logger,
	}
}

type registerRequest struct {
	UserID       int64  `json:"user_id" validate:"required"`
	Username     string `json:"username"`
	ReferralCode string `json:"referral_code"`
}

// Register handles POST /api/v1/accounts
func (h *AccountHandlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		SendBadRequest(c, ErrCodeValidationError, err.Error())
		return
	}

	account, err := h.accountService.Register(c.Request.Context(), req.UserID, req.Username, req.ReferralCode)
	if err != nil {
		h.logger.Error("registration failed", "user_id", req.UserID, "error", err)
		SendDomainError(c, err)
		return
	}
	SendCreated(c, account)
}

// GetBalance handles GET /api/v1/accounts/:userId/balance
func (h *AccountHandlers) GetBalance(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	view, err := h.accountService.Balance(c.Request.Context(), userID)
	if err != nil {
		SendDomainError(c, err)
		return
	}
	SendSuccess(c, view)
}

// SetWallet handles PUT /api/v1/accounts/:userId/wallet
func (h *AccountHandlers) SetWallet(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	var req entities.SetWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		SendBadRequest(c, ErrCodeValidationError, err.Error())
		return
	}

	if err := h.accountService.SetWallet(c.Request.Context(), userID, req.Address); err != nil {
		SendDomainError(c, err)
		return
	}
	SendSuccess(c, gin.H{"address": req.Address})
}

// GetHistory handles GET /api/v1/accounts/:userId/history
func (h *AccountHandlers) GetHistory(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.accountService.History(c.Request.Context(), userID, limit)
	if err != nil {
		SendDomainError(c, err)
		return
	}
	SendSuccess(c, entries)
}

// GetReferralStats handles GET /api/v1/accounts/:userId/referrals
func (h *AccountHandlers) GetReferralStats(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	stats, err := h.referralService.Stats(c.Request.Context(), userID)
	if err != nil {
		SendDomainError(c, err)
		return
	}
	SendSuccess(c, stats)
}

// ListPlans handles GET /api/v1/plans
func (h *AccountHandlers) ListPlans(c *gin.Context) {
	plans := make([]entities.Plan, 0, len(h.catalog))
	for _, p := range h.catalog {
		plans = append(plans, p)
	}
	SendSuccess(c, plans)
}

// ActivateFreePlan handles POST /api/v1/accounts/:userId/plans/free
func (h *AccountHandlers) ActivateFreePlan(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	account, err := h.accountService.ActivateFreePlan(c.Request.Context(), userID)
	if err != nil {
		SendDomainError(c, err)
		return
	}
	SendSuccess(c, account)
}

// PurchasePlan handles POST /api/v1/accounts/:userId/plans/:planKey
func (h *AccountHandlers) PurchasePlan(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}
	planKey := c.Param("planKey")

	payment, err := h.accountService.PurchasePlan(c.Request.Context(), userID, planKey)
	if err != nil {
		h.logger.Error("plan purchase failed", "user_id", userID, "plan", planKey, "error", err)
		SendDomainError(c, err)
		return
	}
	SendCreated(c, payment)
}

// ListPayments handles GET /api/v1/accounts/:userId/payments
func (h *AccountHandlers) ListPayments(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	payments, err := h.accountService.Payments(c.Request.Context(), userID, limit)
	if err != nil {
		SendDomainError(c, err)
		return
	}
	SendSuccess(c, payments)
}

// pathUserID parses the :userId path segment. The caller is a trusted
// front-end acting on behalf of the chat user.
func pathUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || userID <= 0 {
		SendBadRequest(c, ErrCodeInvalidRequest, "Invalid user ID")
		return 0, false
	}
	return userID, true
}
