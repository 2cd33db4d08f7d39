package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/covest/covest-service/internal/domain/entities"
)

// SettleGain reconciles a sub-account against a reported new gross value and
// sweeps any gain into the main balance. Only upward movement settles:
//
//   - newGross > current: the difference moves to main, the lifetime
//     counter grows by the difference, and the sub-balance resets to the
//     epsilon display residue.
//   - newGross <= current: nothing changes. A stale lower snapshot is never
//     applied, so replays and downward corrections are free no-ops.
//
// Returns the swept delta, zero when nothing settled.
func SettleGain(account *entities.Account, sub entities.SubAccount, newGross decimal.Decimal) decimal.Decimal {
	current := account.SubBalance(sub)
	delta := newGross.Sub(current)
	if !delta.IsPositive() {
		return decimal.Zero
	}

	account.MainBalance = account.MainBalance.Add(delta)

	switch sub {
	case entities.SubAccountReferral:
		account.LifetimeReferralEarnings = account.LifetimeReferralEarnings.Add(delta)
		account.ReferralBalance = ResetEpsilon
	default:
		account.LifetimeTradingEarnings = account.LifetimeTradingEarnings.Add(delta)
		account.TradingBalance = ResetEpsilon
	}

	return delta
}

// CreditSub adds an amount on top of a sub-account's current value and
// immediately settles it, which is how bonuses and session gains land in the
// main balance while the lifetime counters stay accurate.
func CreditSub(account *entities.Account, sub entities.SubAccount, amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	return SettleGain(account, sub, account.SubBalance(sub).Add(amount))
}
