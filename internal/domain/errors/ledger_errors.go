package errors

import "errors"

// Ledger and withdrawal errors
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrPaymentNotFound    = errors.New("payment not found")

	// Withdrawal lifecycle
	ErrWithdrawalPending    = errors.New("a withdrawal is already in progress")
	ErrWithdrawalsDisabled  = errors.New("withdrawals are temporarily disabled")
	ErrWithdrawalNotPending = errors.New("withdrawal is not awaiting confirmation")
	ErrAmountMismatch       = errors.New("confirmation amount does not match the requested amount")
	ErrWalletNotConfigured  = errors.New("no destination wallet configured")
	ErrDailyLimitReached    = errors.New("daily withdrawal limit reached")
	ErrBelowMinimum         = errors.New("amount is below the minimum withdrawal")
	ErrNetBelowMinimum      = errors.New("amount is too small to cover fees")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrNegativeBalance      = errors.New("balance cannot be negative")

	// Plan gating
	ErrFreePlanLocked  = errors.New("free plan requirements not met")
	ErrPlanNotFound    = errors.New("unknown plan")
	ErrPlanExpired     = errors.New("plan has expired")
	ErrTradeCooldown   = errors.New("trading cooldown has not elapsed")
	ErrSessionReplayed = errors.New("trading session already settled")

	// Payments
	ErrPaymentAlreadyProcessed = errors.New("payment already processed")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

	// External dependencies
	ErrChainSendFailed    = errors.New("on-chain transfer failed")
	ErrPriceUnavailable   = errors.New("price quote unavailable")
	ErrHotWalletExhausted = errors.New("hot wallet balance too low")
)

// InsufficientFundsError reports a balance shortfall with both sides attached.
func InsufficientFundsError(requested, available string) *DomainError {
	return &DomainError{
		Err:     ErrInsufficientFunds,
		Code:    "INSUFFICIENT_FUNDS",
		Message: "insufficient funds",
		Details: map[string]interface{}{
			"requested": requested,
			"available": available,
		},
	}
}

// WithdrawalPendingError reports an in-flight withdrawal blocking a new request.
func WithdrawalPendingError(state string) *DomainError {
	return &DomainError{
		Err:     ErrWithdrawalPending,
		Code:    "WITHDRAWAL_PENDING",
		Message: "a withdrawal is already in progress",
		Details: map[string]interface{}{
			"state": state,
		},
	}
}

// DailyLimitError reports the per-plan daily withdrawal cap being hit.
func DailyLimitError(limit int) *DomainError {
	return &DomainError{
		Err:     ErrDailyLimitReached,
		Code:    "DAILY_LIMIT_REACHED",
		Message: "daily withdrawal limit reached",
		Details: map[string]interface{}{
			"limit": limit,
		},
	}
}

// ChainSendError wraps a failed on-chain transfer. Retryable because the
// withdrawal row survives and a later payout attempt can succeed.
func ChainSendError(err error) *DomainError {
	de := &DomainError{
		Err:       ErrChainSendFailed,
		Code:      "CHAIN_SEND_FAILED",
		Message:   "on-chain transfer failed",
		Retryable: true,
	}
	if err != nil {
		de.Details = map[string]interface{}{
			"cause": err.Error(),
		}
	}
	return de
}
