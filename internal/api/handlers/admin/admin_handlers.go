// Package admin exposes the operator surface: payout control, manual
// balance adjustments and service stats.
package admin

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/covest/covest-service/internal/api/handlers"
	"github.com/covest/covest-service/internal/domain/entities"
	"github.com/covest/covest-service/pkg/logger"
)

// WithdrawalAdminInterface drives payout decisions.
type WithdrawalAdminInterface interface {
	AdminApprove(ctx context.Context, withdrawalID int64) error
	AdminReject(ctx context.Context, withdrawalID int64, reason string) error
	AdminHold(ctx context.Context, withdrawalID int64) error
	AdminResume(ctx context.Context, withdrawalID int64) error
}

// WithdrawalListInterface reads withdrawal rows by status.
type WithdrawalListInterface interface {
	ListByStatus(ctx context.Context, status entities.WithdrawalStatus, limit int) ([]entities.Withdrawal, error)
}

// AccountAdminInterface applies manual account operations.
type AccountAdminInterface interface {
	AdminAdjust(ctx context.Context, userID int64, amount decimal.Decimal, reason string) (*entities.Account, error)
	PurgeUser(ctx context.Context, userID int64) error
}

// StatsInterface aggregates service-wide counters.
type StatsInterface interface {
	CountAccounts(ctx context.Context) (int, error)
}

// ChainInterface reads the hot wallet state.
type ChainInterface interface {
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	Address() string
}

// WithdrawalsToggle flips the global withdrawals-enabled switch.
type WithdrawalsToggle interface {
	SetWithdrawalsEnabled(enabled bool)
	WithdrawalsEnabled() bool
}

// Handlers bundles the admin endpoints
type Handlers struct {
	withdrawals WithdrawalAdminInterface
	list        WithdrawalListInterface
	accounts    AccountAdminInterface
	stats       StatsInterface
	chain       ChainInterface
	toggle      WithdrawalsToggle
	logger      *logger.Logger
}

// NewHandlers creates a new admin Handlers instance
func NewHandlers(withdrawals WithdrawalAdminInterface, list WithdrawalListInterface,
	accounts AccountAdminInterface, stats StatsInterface, chain ChainInterface,
	toggle WithdrawalsToggle, logger *logger.Logger) *Handlers {
	return &Handlers{
		withdrawals: withdrawals,
		list:        list,
		accounts:    accounts,
		stats:       stats,
		chain:       chain,
		toggle:      toggle,
		logger:      logger,
	}
}

// ListPendingWithdrawals handles GET /api/v1/admin/withdrawals
func (h *Handlers) ListPendingWithdrawals(c *gin.Context) {
	status := entities.WithdrawalStatus(c.DefaultQuery("status", string(entities.WithdrawalStatusPending)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := h.list.ListByStatus(c.Request.Context(), status, limit)
	if err != nil {
		h.logger.Error("withdrawal listing failed", "status", status, "error", err)
		handlers.SendInternalError(c, handlers.ErrCodeInternalError, "Failed to list withdrawals")
		return
	}
	handlers.SendSuccess(c, rows)
}

// ApproveWithdrawal handles POST /api/v1/admin/withdrawals/:withdrawalId/approve
func (h *Handlers) ApproveWithdrawal(c *gin.Context) {
	id, ok := pathWithdrawalID(c)
	if !ok {
		return
	}
	if err := h.withdrawals.AdminApprove(c.Request.Context(), id); err != nil {
		h.logger.Error("manual payout failed", "withdrawal_id", id, "error", err)
		handlers.SendDomainError(c, err)
		return
	}
	handlers.SendSuccess(c, gin.H{"withdrawal_id": id, "status": entities.WithdrawalStatusApproved})
}

// RejectWithdrawal handles POST /api/v1/admin/withdrawals/:withdrawalId/reject
func (h *Handlers) RejectWithdrawal(c *gin.Context) {
	id, ok := pathWithdrawalID(c)
	if !ok {
		return
	}
	var req entities.AdminRejectRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.withdrawals.AdminReject(c.Request.Context(), id, req.Reason); err != nil {
		handlers.SendDomainError(c, err)
		return
	}
	handlers.SendSuccess(c, gin.H{"withdrawal_id": id, "status": entities.WithdrawalStatusRejected})
}

// HoldWithdrawal handles POST /api/v1/admin/withdrawals/:withdrawalId/hold
func (h *Handlers) HoldWithdrawal(c *gin.Context) {
	id, ok := pathWithdrawalID(c)
	if !ok {
		return
	}
	if err := h.withdrawals.AdminHold(c.Request.Context(), id); err != nil {
		handlers.SendDomainError(c, err)
		return
	}
	handlers.SendSuccess(c, gin.H{"withdrawal_id": id, "status": entities.WithdrawalStatusOnHold})
}

// ResumeWithdrawal handles POST /api/v1/admin/withdrawals/:withdrawalId/resume
func (h *Handlers) ResumeWithdrawal(c *gin.Context) {
	id, ok := pathWithdrawalID(c)
	if !ok {
		return
	}
	if err := h.withdrawals.AdminResume(c.Request.Context(), id); err != nil {
		handlers.SendDomainError(c, err)
		return
	}
	handlers.SendSuccess(c, gin.H{"withdrawal_id": id, "status": entities.WithdrawalStatusApproved})
}

// ToggleWithdrawals handles PUT /api/v1/admin/withdrawals/enabled
func (h *Handlers) ToggleWithdrawals(c *gin.Context) {
	var req entities.AdminToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.SendBadRequest(c, handlers.ErrCodeInvalidRequest, "Invalid request format")
		return
	}
	h.toggle.SetWithdrawalsEnabled(req.Enabled)
	h.logger.Info("withdrawals toggled", "enabled", req.Enabled)
	handlers.SendSuccess(c, gin.H{"enabled": h.toggle.WithdrawalsEnabled()})
}

// AdjustBalance handles POST /api/v1/admin/accounts/:userId/adjust
func (h *Handlers) AdjustBalance(c *gin.Context) {
	userID, ok := pathAdminUserID(c)
	if !ok {
		return
	}
	var req entities.AdminAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.SendBadRequest(c, handlers.ErrCodeInvalidRequest, "Invalid request format")
		return
	}

	acct, err := h.accounts.AdminAdjust(c.Request.Context(), userID, req.Amount, req.Reason)
	if err != nil {
		handlers.SendDomainError(c, err)
		return
	}
	h.logger.Info("manual balance adjustment",
		"user_id", userID, "amount", req.Amount.String(), "reason", req.Reason)
	handlers.SendSuccess(c, acct)
}

// PurgeUser handles DELETE /api/v1/admin/accounts/:userId
func (h *Handlers) PurgeUser(c *gin.Context) {
	userID, ok := pathAdminUserID(c)
	if !ok {
		return
	}
	if err := h.accounts.PurgeUser(c.Request.Context(), userID); err != nil {
		handlers.SendDomainError(c, err)
		return
	}
	handlers.SendSuccess(c, gin.H{"purged": userID})
}

// Stats handles GET /api/v1/admin/stats
func (h *Handlers) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	accountCount, err := h.stats.CountAccounts(ctx)
	if err != nil {
		handlers.SendInternalError(c, handlers.ErrCodeInternalError, "Failed to load stats")
		return
	}

	out := gin.H{
		"accounts":            accountCount,
		"withdrawals_enabled": h.toggle.WithdrawalsEnabled(),
		"hot_wallet_address":  h.chain.Address(),
	}
	if balance, err := h.chain.GetBalance(ctx); err == nil {
		out["hot_wallet_balance"] = balance
	} else {
		h.logger.Warn("hot wallet balance unavailable", "error", err)
	}
	handlers.SendSuccess(c, out)
}

func pathWithdrawalID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("withdrawalId"), 10, 64)
	if err != nil || id <= 0 {
		handlers.SendBadRequest(c, handlers.ErrCodeInvalidRequest, "Invalid withdrawal ID")
		return 0, false
	}
	return id, true
}

func pathAdminUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || userID <= 0 {
		handlers.SendBadRequest(c, handlers.ErrCodeInvalidRequest, "Invalid user ID")
		return 0, false
	}
	return userID, true
}
