package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasInFlightWithdrawal(t *testing.T) {
	t.Run("zero value account is idle", func(t *testing.T) {
		var acct Account
		assert.False(t, acct.HasInFlightWithdrawal())
	})

	t.Run("explicit none is idle", func(t *testing.T) {
		acct := Account{WithdrawalStatus: WithdrawalStateNone}
		assert.False(t, acct.HasInFlightWithdrawal())
	})

	t.Run("reservation states are in flight", func(t *testing.T) {
		for _, state := range []WithdrawalState{
			WithdrawalStatePendingApproval,
			WithdrawalStatePending,
			WithdrawalStateOnHold,
		} {
			acct := Account{WithdrawalStatus: state}
			assert.True(t, acct.HasInFlightWithdrawal(), string(state))
		}
	})
}
