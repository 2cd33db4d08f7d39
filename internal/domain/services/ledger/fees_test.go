package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/covest/covest-service/internal/domain/errors"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeFees(t *testing.T) {
	t.Run("tiered fees", func(t *testing.T) {
		cases := []struct {
			gross string
			fee   string
		}{
			{"0.05", "0.001"},
			{"0.1", "0.001"},
			{"0.3", "0.002"},
			{"0.5", "0.002"},
			{"0.8", "0.003"},
			{"1", "0.003"},
			{"5", "0.005"},
		}
		for _, tc := range cases {
			quote, err := ComputeFees(d(tc.gross))
			require.NoError(t, err, "gross %s", tc.gross)
			assert.True(t, quote.FeeAmount.Equal(d(tc.fee)),
				"gross %s: fee %s, want %s", tc.gross, quote.FeeAmount, tc.fee)
		}
	})

	t.Run("gross equals fee plus net", func(t *testing.T) {
		for _, gross := range []string{"0.01", "0.05", "0.25", "0.75", "1.5", "12"} {
			quote, err := ComputeFees(d(gross))
			require.NoError(t, err)
			assert.True(t, quote.GrossAmount.Equal(quote.FeeAmount.Add(quote.NetAmount)),
				"gross %s: %s != %s + %s", gross, quote.GrossAmount, quote.FeeAmount, quote.NetAmount)
		}
	})

	t.Run("net never below minimum for valid amounts", func(t *testing.T) {
		for _, gross := range []string{"0.01", "0.02", "0.1", "0.5", "1", "5"} {
			quote, err := ComputeFees(d(gross))
			require.NoError(t, err)
			assert.True(t, quote.NetAmount.GreaterThanOrEqual(MinNetAmount),
				"gross %s: net %s below minimum", gross, quote.NetAmount)
		}
	})

	t.Run("fee stays within bounds at the floor", func(t *testing.T) {
		quote, err := ComputeFees(d("0.01"))
		require.NoError(t, err)
		assert.True(t, quote.NetAmount.GreaterThanOrEqual(MinNetAmount))
		assert.True(t, quote.FeeAmount.GreaterThanOrEqual(MinFee))
		assert.True(t, quote.FeeAmount.LessThanOrEqual(MaxFee))
	})

	t.Run("rejects below minimum withdrawal", func(t *testing.T) {
		_, err := ComputeFees(d("0.009"))
		assert.ErrorIs(t, err, domainerrors.ErrBelowMinimum)
	})

	t.Run("rejects zero and negative", func(t *testing.T) {
		_, err := ComputeFees(decimal.Zero)
		assert.Error(t, err)
		_, err = ComputeFees(d("-1"))
		assert.Error(t, err)
	})
}

func TestAmountsMatch(t *testing.T) {
	assert.True(t, AmountsMatch(d("0.5"), d("0.5")))
	assert.True(t, AmountsMatch(d("0.5"), d("0.5005")))
	assert.True(t, AmountsMatch(d("0.5"), d("0.499")))
	assert.False(t, AmountsMatch(d("0.5"), d("0.502")))
	assert.False(t, AmountsMatch(d("0.5"), d("0.4985")))
}
