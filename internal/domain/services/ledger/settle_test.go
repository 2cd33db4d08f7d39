package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/covest/covest-service/internal/domain/entities"
)

func newAccount() *entities.Account {
	return &entities.Account{
		UserID:      42,
		MainBalance: d("1"),
	}
}

func TestSettleGain(t *testing.T) {
	t.Run("sweeps trading gain into main", func(t *testing.T) {
		acct := newAccount()
		swept := SettleGain(acct, entities.SubAccountTrading, d("0.05"))

		assert.True(t, swept.Equal(d("0.05")))
		assert.True(t, acct.MainBalance.Equal(d("1.05")))
		assert.True(t, acct.LifetimeTradingEarnings.Equal(d("0.05")))
		assert.True(t, acct.TradingBalance.Equal(ResetEpsilon))
	})

	t.Run("sweeps referral gain into main", func(t *testing.T) {
		acct := newAccount()
		swept := SettleGain(acct, entities.SubAccountReferral, d("0.02"))

		assert.True(t, swept.Equal(d("0.02")))
		assert.True(t, acct.MainBalance.Equal(d("1.02")))
		assert.True(t, acct.LifetimeReferralEarnings.Equal(d("0.02")))
		assert.True(t, acct.ReferralBalance.Equal(ResetEpsilon))
	})

	t.Run("delta measured against current residue", func(t *testing.T) {
		acct := newAccount()
		SettleGain(acct, entities.SubAccountTrading, d("0.05"))

		// A second report above the residue sweeps only the difference.
		swept := SettleGain(acct, entities.SubAccountTrading, d("0.030001"))
		assert.True(t, swept.Equal(d("0.03")))
		assert.True(t, acct.MainBalance.Equal(d("1.08")))
		assert.True(t, acct.LifetimeTradingEarnings.Equal(d("0.08")))
	})

	t.Run("replay with same value is a no-op", func(t *testing.T) {
		acct := newAccount()
		SettleGain(acct, entities.SubAccountTrading, d("0.05"))
		before := *acct

		swept := SettleGain(acct, entities.SubAccountTrading, ResetEpsilon)
		assert.True(t, swept.IsZero())
		assert.Equal(t, before, *acct)
	})

	t.Run("downward correction is a no-op", func(t *testing.T) {
		acct := newAccount()
		acct.TradingBalance = d("0.5")
		before := *acct

		swept := SettleGain(acct, entities.SubAccountTrading, d("0.2"))
		assert.True(t, swept.IsZero())
		assert.Equal(t, before, *acct)
	})

	t.Run("zero new value on zero balance is a no-op", func(t *testing.T) {
		acct := newAccount()
		swept := SettleGain(acct, entities.SubAccountTrading, decimal.Zero)
		assert.True(t, swept.IsZero())
		assert.True(t, acct.MainBalance.Equal(d("1")))
	})
}

func TestCreditSub(t *testing.T) {
	t.Run("credit lands in main immediately", func(t *testing.T) {
		acct := newAccount()
		swept := CreditSub(acct, entities.SubAccountReferral, d("0.01"))

		assert.True(t, swept.Equal(d("0.01")))
		assert.True(t, acct.MainBalance.Equal(d("1.01")))
		assert.True(t, acct.LifetimeReferralEarnings.Equal(d("0.01")))
	})

	t.Run("repeated credits accumulate lifetime counter", func(t *testing.T) {
		acct := newAccount()
		CreditSub(acct, entities.SubAccountReferral, d("0.01"))
		CreditSub(acct, entities.SubAccountReferral, d("0.02"))

		assert.True(t, acct.MainBalance.Equal(d("1.03")))
		assert.True(t, acct.LifetimeReferralEarnings.Equal(d("0.03")))
	})

	t.Run("non-positive credit is rejected", func(t *testing.T) {
		acct := newAccount()
		assert.True(t, CreditSub(acct, entities.SubAccountTrading, decimal.Zero).IsZero())
		assert.True(t, CreditSub(acct, entities.SubAccountTrading, d("-0.5")).IsZero())
		assert.True(t, acct.MainBalance.Equal(d("1")))
	})
}
