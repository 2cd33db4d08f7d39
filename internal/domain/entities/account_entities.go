package entities

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// SubAccount identifies one of the display-only gain holders that settle
// into the main balance.
type SubAccount string

const (
	SubAccountTrading  SubAccount = "trading"
	SubAccountReferral SubAccount = "referral"
)

// WithdrawalState is the account-side reservation state. It mirrors the
// in-flight Withdrawal row: anything other than none means exactly one
// withdrawal is in flight for this account.
type WithdrawalState string

const (
	WithdrawalStateNone            WithdrawalState = "none"
	WithdrawalStatePendingApproval WithdrawalState = "pending_approval"
	WithdrawalStatePending         WithdrawalState = "pending"
	WithdrawalStateOnHold          WithdrawalState = "on_hold"
)

// Account is the per-user ledger row. All balance mutations must go through
// AccountRepository.AtomicUpdate.
type Account struct {
	UserID                  int64           `db:"user_id" json:"user_id"`
	Username                string          `db:"username" json:"username"`
	MainBalance             decimal.Decimal `db:"main_balance" json:"main_balance"`
	TradingBalance          decimal.Decimal `db:"trading_balance" json:"trading_balance"`
	ReferralBalance         decimal.Decimal `db:"referral_balance" json:"referral_balance"`
	LifetimeTradingEarnings decimal.Decimal `db:"lifetime_trading_earnings" json:"lifetime_trading_earnings"`
	LifetimeReferralEarnings decimal.Decimal `db:"lifetime_referral_earnings" json:"lifetime_referral_earnings"`
	TotalDeposited          decimal.Decimal `db:"total_deposited" json:"total_deposited"`
	TotalWithdrawn          decimal.Decimal `db:"total_withdrawn" json:"total_withdrawn"`
	ActivePlans             pq.StringArray  `db:"active_plans" json:"active_plans"`
	FreePlanActivated       bool            `db:"free_plan_activated" json:"free_plan_activated"`
	FreePlanRequirementsMet bool            `db:"free_plan_requirements_met" json:"free_plan_requirements_met"`
	FreePlanExpiry          *time.Time      `db:"free_plan_expiry" json:"free_plan_expiry,omitempty"`
	WithdrawalStatus        WithdrawalState `db:"withdrawal_status" json:"withdrawal_status"`
	WithdrawalPendingAmount decimal.Decimal `db:"withdrawal_pending_amount" json:"withdrawal_pending_amount"`
	WalletAddress           *string         `db:"wallet_address" json:"wallet_address,omitempty"`
	ReferralCode            string          `db:"referral_code" json:"referral_code"`
	ReferrerID              *int64          `db:"referrer_id" json:"referrer_id,omitempty"`
	ValidReferralCount      int             `db:"valid_referral_count" json:"valid_referral_count"`
	WithdrawalCountToday    int             `db:"withdrawal_count_today" json:"withdrawal_count_today"`
	LastWithdrawalDay       *string         `db:"last_withdrawal_day" json:"last_withdrawal_day,omitempty"`
	LastTradeAt             *time.Time      `db:"last_trade_at" json:"last_trade_at,omitempty"`
	LastWithdrawAt          *time.Time      `db:"last_withdraw_at" json:"last_withdraw_at,omitempty"`
	CreatedAt               time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time       `db:"updated_at" json:"updated_at"`
}

// HasInFlightWithdrawal reports whether a withdrawal reservation exists.
// The zero value of WithdrawalState is idle, same as the explicit none.
func (a *Account) HasInFlightWithdrawal() bool {
	switch a.WithdrawalStatus {
	case WithdrawalStateNone, "":
		return false
	}
	return true
}

// SubBalance returns the current value of the given sub-account.
func (a *Account) SubBalance(sub SubAccount) decimal.Decimal {
	if sub == SubAccountReferral {
		return a.ReferralBalance
	}
	return a.TradingBalance
}

// HasPlan reports whether the plan key is among the account's active plans.
func (a *Account) HasPlan(key string) bool {
	for _, p := range a.ActivePlans {
		if p == key {
			return true
		}
	}
	return false
}

// HasPaidPlan reports whether any active plan other than the free trial exists.
func (a *Account) HasPaidPlan() bool {
	for _, p := range a.ActivePlans {
		if p != PlanFree {
			return true
		}
	}
	return false
}

// OnFreeTrialOnly reports whether the free trial is the account's only plan.
func (a *Account) OnFreeTrialOnly() bool {
	return a.FreePlanActivated && !a.HasPaidPlan()
}

// ClearWithdrawalReservation resets the reservation fields to their idle state.
func (a *Account) ClearWithdrawalReservation() {
	a.WithdrawalStatus = WithdrawalStateNone
	a.WithdrawalPendingAmount = decimal.Zero
}

// BalanceView is the read-only projection served to display paths. Mutation
// paths must never be fed from this type.
type BalanceView struct {
	UserID                   int64           `json:"user_id"`
	MainBalance              decimal.Decimal `json:"main_balance"`
	TradingBalance           decimal.Decimal `json:"trading_balance"`
	ReferralBalance          decimal.Decimal `json:"referral_balance"`
	MainBalanceUSD           decimal.Decimal `json:"main_balance_usd"`
	LifetimeTradingEarnings  decimal.Decimal `json:"lifetime_trading_earnings"`
	LifetimeReferralEarnings decimal.Decimal `json:"lifetime_referral_earnings"`
	TotalDeposited           decimal.Decimal `json:"total_deposited"`
	TotalWithdrawn           decimal.Decimal `json:"total_withdrawn"`
	ActivePlans              []string        `json:"active_plans"`
	ValidReferralCount       int             `json:"valid_referral_count"`
	WithdrawalStatus         WithdrawalState `json:"withdrawal_status"`
	WithdrawalPendingAmount  decimal.Decimal `json:"withdrawal_pending_amount"`
}
