package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus is the lifecycle state of a Withdrawal row. The row is
// append-only history: terminal rows are never deleted outside an explicit
// admin purge.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusApproved   WithdrawalStatus = "approved"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
	WithdrawalStatusOnHold     WithdrawalStatus = "on_hold"
)

// IsTerminal reports whether no further transition is possible.
func (s WithdrawalStatus) IsTerminal() bool {
	switch s {
	case WithdrawalStatusApproved, WithdrawalStatusRejected, WithdrawalStatusFailed:
		return true
	}
	return false
}

// Withdrawal is one withdrawal attempt. The balance is debited only when the
// on-chain transfer confirms; the account-side reservation merely blocks a
// second concurrent request.
type Withdrawal struct {
	ID                 int64            `db:"id" json:"id"`
	UserID             int64            `db:"user_id" json:"user_id"`
	GrossAmount        decimal.Decimal  `db:"gross_amount" json:"gross_amount"`
	FeeAmount          decimal.Decimal  `db:"fee_amount" json:"fee_amount"`
	NetAmount          decimal.Decimal  `db:"net_amount" json:"net_amount"`
	GrossAmountUSD     decimal.Decimal  `db:"gross_amount_usd" json:"gross_amount_usd"`
	DestinationAddress string           `db:"destination_address" json:"destination_address"`
	Status             WithdrawalStatus `db:"status" json:"status"`
	TxID               *string          `db:"txid" json:"txid,omitempty"`
	AdminNotes         *string          `db:"admin_notes" json:"admin_notes,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time       `db:"processed_at" json:"processed_at,omitempty"`
}

// WithdrawalQuote is the fee breakdown returned on a validated request,
// before the user confirms.
type WithdrawalQuote struct {
	GrossAmount decimal.Decimal `json:"gross_amount"`
	FeeAmount   decimal.Decimal `json:"fee_amount"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	GrossUSD    decimal.Decimal `json:"gross_usd"`
	NetUSD      decimal.Decimal `json:"net_usd"`
	SolPriceUSD decimal.Decimal `json:"sol_price_usd"`
	FeeTier     string          `json:"fee_tier"`
}

// RequestWithdrawalRequest is the user-facing request payload.
type RequestWithdrawalRequest struct {
	UserID      int64           `json:"user_id" validate:"required"`
	GrossAmount decimal.Decimal `json:"gross_amount" validate:"required"`
}

// ConfirmWithdrawalRequest confirms a previously quoted amount.
type ConfirmWithdrawalRequest struct {
	UserID      int64           `json:"user_id" validate:"required"`
	GrossAmount decimal.Decimal `json:"gross_amount" validate:"required"`
}

// ConfirmWithdrawalResponse carries the created withdrawal id.
type ConfirmWithdrawalResponse struct {
	WithdrawalID int64            `json:"withdrawal_id"`
	Status       WithdrawalStatus `json:"status"`
	NetAmount    decimal.Decimal  `json:"net_amount"`
}
