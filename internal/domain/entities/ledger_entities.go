package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger entry types. Every balance mutation writes one of these for audit.
const (
	EntryTradingGain   = "trading_gain"
	EntryReferralBonus = "referral_bonus"
	EntryPlanPurchase  = "plan_purchase"
	EntryWithdrawal    = "withdrawal"
	EntryAdminCredit   = "admin_credit"
	EntryAdminDebit    = "admin_debit"
)

// LedgerEntry is an append-only audit record of a balance mutation.
type LedgerEntry struct {
	ID          int64           `json:"id" db:"id"`
	UserID      int64           `json:"user_id" db:"user_id"`
	EntryType   string          `json:"entry_type" db:"entry_type"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	AmountUSD   decimal.Decimal `json:"amount_usd" db:"amount_usd"`
	Description string          `json:"description" db:"description"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// TradingSession records one processed trading round per user. SessionKey is
// unique per user so replayed gain reports settle exactly once.
type TradingSession struct {
	ID         int64           `json:"id" db:"id"`
	UserID     int64           `json:"user_id" db:"user_id"`
	SessionKey string          `json:"session_key" db:"session_key"`
	Gain       decimal.Decimal `json:"gain" db:"gain"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
