package entities

import "github.com/shopspring/decimal"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SetWalletRequest binds a payout wallet address to an account.
type SetWalletRequest struct {
	Address string `json:"address" validate:"required"`
}

// RecordGainRequest reports a finished trading session's gross sub-balance.
type RecordGainRequest struct {
	SessionKey string          `json:"session_key" validate:"required"`
	Gain       decimal.Decimal `json:"gain" validate:"required"`
}

// AdminAdjustRequest credits or debits an account's main balance.
type AdminAdjustRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Reason string          `json:"reason"`
}

// AdminRejectRequest carries the rejection reason for a withdrawal.
type AdminRejectRequest struct {
	Reason string `json:"reason"`
}

// AdminToggleRequest flips the global withdrawals-enabled switch.
type AdminToggleRequest struct {
	Enabled bool `json:"enabled"`
}
