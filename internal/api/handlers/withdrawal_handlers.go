package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/covest/covest-service/internal/domain/entities"
	"github.com/covest/covest-service/pkg/logger"
)

// WithdrawalServiceInterface defines the interface for withdrawal operations
type WithdrawalServiceInterface interface {
	Request(ctx context.Context, userID int64, gross decimal.Decimal) (*entities.WithdrawalQuote, error)
	Confirm(ctx context.Context, userID int64, gross decimal.Decimal) (*entities.ConfirmWithdrawalResponse, error)
	CancelRequest(ctx context.Context, userID int64) error
}

// WithdrawalHistoryInterface lists a user's withdrawal rows.
type WithdrawalHistoryInterface interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]entities.Withdrawal, error)
}

// WithdrawalHandlers handles the user-facing withdrawal lifecycle
type WithdrawalHandlers struct {
	withdrawalService WithdrawalServiceInterface
	history           WithdrawalHistoryInterface
	logger            *logger.Logger
}

// NewWithdrawalHandlers creates a new WithdrawalHandlers instance
func NewWithdrawalHandlers(withdrawalService WithdrawalServiceInterface,
	history WithdrawalHistoryInterface, logger *logger.Logger) *WithdrawalHandlers {
	return &WithdrawalHandlers{
		withdrawalService: withdrawalService,
		history:           history,
		logger:            logger,
	}
}

type amountRequest struct {
	GrossAmount decimal.Decimal `json:"gross_amount"`
}

// RequestWithdrawal handles POST /api/v1/accounts/:userId/withdrawals/request
func (h *WithdrawalHandlers) RequestWithdrawal(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, "Invalid request format")
		return
	}
	if !req.GrossAmount.IsPositive() {
		SendBadRequest(c, ErrCodeInvalidAmount, "Amount must be positive")
		return
	}

	quote, err := h.withdrawalService.Request(c.Request.Context(), userID, req.GrossAmount)
	if err != nil {
		h.logger.Warn("withdrawal request rejected",
			"user_id", userID, "amount", req.GrossAmount.String(), "error", err)
		SendDomainError(c, err)
		return
	}
	SendSuccess(c, quote)
}

// ConfirmWithdrawal handles POST /api/v1/accounts/:userId/withdrawals/confirm
func (h *WithdrawalHandlers) ConfirmWithdrawal(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, "Invalid request format")
		return
	}

	resp, err := h.withdrawalService.Confirm(c.Request.Context(), userID, req.GrossAmount)
	if err != nil {
		h.logger.Warn("withdrawal confirmation rejected",
			"user_id", userID, "amount", req.GrossAmount.String(), "error", err)
		SendDomainError(c, err)
		return
	}
	SendCreated(c, resp)
}

// CancelWithdrawal handles DELETE /api/v1/accounts/:userId/withdrawals/request
func (h *WithdrawalHandlers) CancelWithdrawal(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	if err := h.withdrawalService.CancelRequest(c.Request.Context(), userID); err != nil {
		SendDomainError(c, err)
		return
	}
	SendSuccess(c, gin.H{"cancelled": true})
}

// ListWithdrawals handles GET /api/v1/accounts/:userId/withdrawals
func (h *WithdrawalHandlers) ListWithdrawals(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	withdrawals, err := h.history.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("withdrawal history lookup failed", "user_id", userID, "error", err)
		SendInternalError(c, ErrCodeInternalError, "Failed to retrieve withdrawals")
		return
	}
	SendSuccess(c, withdrawals)
}
