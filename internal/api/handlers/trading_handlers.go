package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/covest/covest-service/internal/domain/entities"
	"github.com/covest/covest-service/pkg/logger"
)

// TradingServiceInterface defines the interface for trading gain intake
type TradingServiceInterface interface {
	StartSession(ctx context.Context, userID int64) error
	RecordGain(ctx context.Context, userID int64, sessionKey string, gain decimal.Decimal) (decimal.Decimal, error)
	DailyGain(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// TradingHandlers handles trading session operations
type TradingHandlers struct {
	tradingService TradingServiceInterface
	validator      *validator.Validate
	logger         *logger.Logger
}

// NewTradingHandlers creates a new TradingHandlers instance
func NewTradingHandlers(tradingService TradingServiceInterface, logger *logger.Logger) *TradingHandlers {
	return &TradingHandlers{
		tradingService: tradingService,
		validator:      validator.New(),
		logger:         logger,
	}
}

// StartSession handles POST /api/v1/accounts/:userId/trading/session
func (h *TradingHandlers) StartSession(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	if err := h.tradingService.StartSession(c.Request.Context(), userID); err != nil {
		SendDomainError(c, err)
		return
	}

	dailyGain, err := h.tradingService.DailyGain(c.Request.Context(), userID)
	if err != nil {
		SendDomainError(c, err)
		return
	}
	SendSuccess(c, gin.H{"started": true, "daily_gain": dailyGain})
}

// RecordGain handles POST /api/v1/accounts/:userId/trading/gain
func (h *TradingHandlers) RecordGain(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	var req entities.RecordGainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		SendBadRequest(c, ErrCodeValidationError, err.Error())
		return
	}

	swept, err := h.tradingService.RecordGain(c.Request.Context(), userID, req.SessionKey, req.Gain)
	if err != nil {
		h.logger.Warn("gain intake rejected",
			"user_id", userID, "session_key", req.SessionKey, "error", err)
		SendDomainError(c, err)
		return
	}
	SendSuccess(c, gin.H{"swept": swept})
}
