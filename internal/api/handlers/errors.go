package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/covest/covest-service/internal/domain/entities"
	domainerrors "github.com/covest/covest-service/internal/domain/errors"
)

// Error codes as constants for consistent error responses across handlers
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationError    = "VALIDATION_ERROR"
	ErrCodeInvalidAmount      = "INVALID_AMOUNT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	ErrCodeWithdrawalNotFound = "WITHDRAWAL_NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	ErrCodeWithdrawalPending   = "WITHDRAWAL_IN_PROGRESS"
	ErrCodeWithdrawalsDisabled = "WITHDRAWALS_DISABLED"
	ErrCodeWalletNotConfigured = "WALLET_NOT_CONFIGURED"
	ErrCodeDailyLimitReached   = "DAILY_LIMIT_REACHED"
	ErrCodeBelowMinimum        = "BELOW_MINIMUM"
	ErrCodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	ErrCodeAmountMismatch      = "AMOUNT_MISMATCH"
	ErrCodeFreePlanLocked      = "FREE_PLAN_LOCKED"
	ErrCodePlanExpired         = "PLAN_EXPIRED"
	ErrCodeTradeCooldown       = "TRADE_COOLDOWN"
	ErrCodeSessionReplayed     = "SESSION_ALREADY_SETTLED"
	ErrCodeInvalidSignature    = "INVALID_SIGNATURE"
	ErrCodeWebhookFailed       = "WEBHOOK_PROCESSING_ERROR"
)

// SendBadRequest sends a 400 Bad Request error
func SendBadRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, entities.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// SendUnauthorized sends a 401 Unauthorized error
func SendUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, entities.ErrorResponse{
		Code:    ErrCodeUnauthorized,
		Message: message,
	})
}

// SendForbidden sends a 403 Forbidden error
func SendForbidden(c *gin.Context, code, message string) {
	c.JSON(http.StatusForbidden, entities.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// SendNotFound sends a 404 Not Found error
func SendNotFound(c *gin.Context, code, message string) {
	c.JSON(http.StatusNotFound, entities.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// SendConflict sends a 409 Conflict error
func SendConflict(c *gin.Context, code, message string) {
	c.JSON(http.StatusConflict, entities.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// SendInternalError sends a 500 Internal Server Error
func SendInternalError(c *gin.Context, code, message string) {
	c.JSON(http.StatusInternalServerError, entities.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// SendSuccess sends a 200 OK response with data
func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// SendCreated sends a 201 Created response with data
func SendCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// statusMapping pairs a sentinel error with its HTTP response.
type statusMapping struct {
	err    error
	status int
	code   string
}

var statusMappings = []statusMapping{
	{domainerrors.ErrAccountNotFound, http.StatusNotFound, ErrCodeAccountNotFound},
	{domainerrors.ErrWithdrawalNotFound, http.StatusNotFound, ErrCodeWithdrawalNotFound},
	{domainerrors.ErrPaymentNotFound, http.StatusNotFound, ErrCodeNotFound},
	{domainerrors.ErrPlanNotFound, http.StatusNotFound, ErrCodeNotFound},
	{domainerrors.ErrWithdrawalPending, http.StatusConflict, ErrCodeWithdrawalPending},
	{domainerrors.ErrWithdrawalNotPending, http.StatusConflict, ErrCodeConflict},
	{domainerrors.ErrSessionReplayed, http.StatusConflict, ErrCodeSessionReplayed},
	{domainerrors.ErrPaymentAlreadyProcessed, http.StatusConflict, ErrCodeConflict},
	{domainerrors.ErrWithdrawalsDisabled, http.StatusForbidden, ErrCodeWithdrawalsDisabled},
	{domainerrors.ErrFreePlanLocked, http.StatusForbidden, ErrCodeFreePlanLocked},
	{domainerrors.ErrPlanExpired, http.StatusForbidden, ErrCodePlanExpired},
	{domainerrors.ErrWalletNotConfigured, http.StatusBadRequest, ErrCodeWalletNotConfigured},
	{domainerrors.ErrBelowMinimum, http.StatusBadRequest, ErrCodeBelowMinimum},
	{domainerrors.ErrNetBelowMinimum, http.StatusBadRequest, ErrCodeBelowMinimum},
	{domainerrors.ErrAmountMismatch, http.StatusBadRequest, ErrCodeAmountMismatch},
	{domainerrors.ErrInsufficientFunds, http.StatusBadRequest, ErrCodeInsufficientFunds},
	{domainerrors.ErrDailyLimitReached, http.StatusTooManyRequests, ErrCodeDailyLimitReached},
	{domainerrors.ErrTradeCooldown, http.StatusTooManyRequests, ErrCodeTradeCooldown},
	{domainerrors.ErrInvalidWebhookSignature, http.StatusUnauthorized, ErrCodeInvalidSignature},
	{domainerrors.ErrChainSendFailed, http.StatusBadGateway, ErrCodeServiceUnavailable},
	{domainerrors.ErrPriceUnavailable, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
}

// SendDomainError maps a service-layer error to its HTTP response. Unknown
// errors become opaque 500s so internals never leak to clients.
func SendDomainError(c *gin.Context, err error) {
	for _, m := range statusMappings {
		if errors.Is(err, m.err) {
			c.JSON(m.status, entities.ErrorResponse{
				Code:    m.code,
				Message: err.Error(),
				Details: domainerrors.GetErrorDetails(err),
			})
			return
		}
	}

	var domainErr *domainerrors.DomainError
	if errors.As(err, &domainErr) && errors.Is(err, domainerrors.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, entities.ErrorResponse{
			Code:    domainErr.Code,
			Message: domainErr.Message,
			Details: domainErr.Details,
		})
		return
	}

	SendInternalError(c, ErrCodeInternalError, "Internal server error")
}
