package ledger

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covest/covest-service/internal/domain/entities"
	domainerrors "github.com/covest/covest-service/internal/domain/errors"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func planAccount(plans ...string) *entities.Account {
	wallet := "7fUAJdStEuGbc3sM84cKRL6yYaaSstyLSU4ve5oovLS7"
	return &entities.Account{
		UserID:            7,
		MainBalance:       d("10"),
		ActivePlans:       pq.StringArray(plans),
		FreePlanActivated: true,
		WalletAddress:     &wallet,
	}
}

func TestCanWithdraw(t *testing.T) {
	catalog := entities.DefaultPlans()

	t.Run("free plan locked below threshold", func(t *testing.T) {
		acct := planAccount(entities.PlanFree)
		acct.ValidReferralCount = 2

		err := CanWithdraw(acct, catalog, testNow)
		assert.ErrorIs(t, err, domainerrors.ErrFreePlanLocked)
	})

	t.Run("free plan unlocks at three valid referrals", func(t *testing.T) {
		acct := planAccount(entities.PlanFree)
		acct.ValidReferralCount = 3

		assert.NoError(t, CanWithdraw(acct, catalog, testNow))
	})

	t.Run("paid plan bypasses the referral gate", func(t *testing.T) {
		acct := planAccount(entities.PlanFree, entities.PlanBasic)
		acct.ValidReferralCount = 0

		assert.NoError(t, CanWithdraw(acct, catalog, testNow))
	})

	t.Run("expired free trial is rejected", func(t *testing.T) {
		acct := planAccount(entities.PlanFree)
		acct.ValidReferralCount = 3
		expired := testNow.Add(-time.Hour)
		acct.FreePlanExpiry = &expired

		err := CanWithdraw(acct, catalog, testNow)
		assert.ErrorIs(t, err, domainerrors.ErrPlanExpired)
	})

	t.Run("daily limit enforced per plan", func(t *testing.T) {
		acct := planAccount(entities.PlanFree, entities.PlanStarter)
		today := dayKey(testNow)
		acct.LastWithdrawalDay = &today
		acct.WithdrawalCountToday = 2

		err := CanWithdraw(acct, catalog, testNow)
		assert.ErrorIs(t, err, domainerrors.ErrDailyLimitReached)
	})

	t.Run("counter from a previous day is ignored", func(t *testing.T) {
		acct := planAccount(entities.PlanFree, entities.PlanStarter)
		yesterday := dayKey(testNow.Add(-24 * time.Hour))
		acct.LastWithdrawalDay = &yesterday
		acct.WithdrawalCountToday = 2

		assert.NoError(t, CanWithdraw(acct, catalog, testNow))
	})
}

func TestRegisterWithdrawalUse(t *testing.T) {
	acct := planAccount(entities.PlanFree)

	RegisterWithdrawalUse(acct, testNow)
	assert.Equal(t, 1, acct.WithdrawalCountToday)
	require.NotNil(t, acct.LastWithdrawalDay)
	assert.Equal(t, "2026-03-10", *acct.LastWithdrawalDay)

	RegisterWithdrawalUse(acct, testNow)
	assert.Equal(t, 2, acct.WithdrawalCountToday)

	// Next UTC day rolls the counter over.
	RegisterWithdrawalUse(acct, testNow.Add(24*time.Hour))
	assert.Equal(t, 1, acct.WithdrawalCountToday)
	assert.Equal(t, "2026-03-11", *acct.LastWithdrawalDay)
}

func TestValidateWithdrawal(t *testing.T) {
	catalog := entities.DefaultPlans()

	t.Run("happy path returns a quote", func(t *testing.T) {
		acct := planAccount(entities.PlanFree, entities.PlanDiscovery)

		quote, err := ValidateWithdrawal(acct, catalog, d("0.5"))
		require.NoError(t, err)
		assert.True(t, quote.FeeAmount.Equal(d("0.002")))
		assert.True(t, quote.NetAmount.Equal(d("0.498")))
	})

	t.Run("missing wallet address", func(t *testing.T) {
		acct := planAccount(entities.PlanFree)
		acct.WalletAddress = nil

		_, err := ValidateWithdrawal(acct, catalog, d("0.5"))
		assert.ErrorIs(t, err, domainerrors.ErrWalletNotConfigured)
	})

	t.Run("below plan minimum", func(t *testing.T) {
		acct := planAccount(entities.PlanFree, entities.PlanBasic)

		// Basic raises the minimum to 0.1.
		_, err := ValidateWithdrawal(acct, catalog, d("0.05"))
		assert.ErrorIs(t, err, domainerrors.ErrBelowMinimum)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		acct := planAccount(entities.PlanFree)
		acct.MainBalance = d("0.1")

		_, err := ValidateWithdrawal(acct, catalog, d("0.5"))
		assert.ErrorIs(t, err, domainerrors.ErrInsufficientFunds)
	})
}
