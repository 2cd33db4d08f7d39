package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferralBonus is an append-only audit row for one bonus credit. Never
// mutated after insert.
type ReferralBonus struct {
	ID          int64           `db:"id" json:"id"`
	ReferrerID  int64           `db:"referrer_id" json:"referrer_id"`
	ReferralID  int64           `db:"referral_id" json:"referral_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	AmountUSD   decimal.Decimal `db:"amount_usd" json:"amount_usd"`
	Description string          `db:"description" json:"description"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// ValidReferral records that a downstream account completed a qualifying
// paid-plan purchase. At most one row exists per (referrer, referral) pair;
// re-inserting is a no-op.
type ValidReferral struct {
	ID          int64     `db:"id" json:"id"`
	ReferrerID  int64     `db:"referrer_id" json:"referrer_id"`
	ReferralID  int64     `db:"referral_id" json:"referral_id"`
	PlanKey     string    `db:"plan_key" json:"plan_key"`
	ActivatedAt time.Time `db:"activated_at" json:"activated_at"`
}

// ReferralStats is the read projection for the referral menu.
type ReferralStats struct {
	ReferralCode       string          `json:"referral_code"`
	TotalReferrals     int             `json:"total_referrals"`
	ValidReferrals     int             `json:"valid_referrals"`
	LifetimeEarnings   decimal.Decimal `json:"lifetime_earnings"`
	RequiredForUnlock  int             `json:"required_for_unlock"`
	FreePlanUnlocked   bool            `json:"free_plan_unlocked"`
}
