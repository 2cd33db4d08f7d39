// Package ledger holds the pure balance arithmetic: fee schedules, the
// gain sweep, and withdrawal policy checks. Nothing here touches storage;
// callers run these inside an account row lock.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/covest/covest-service/internal/domain/entities"
	domainerrors "github.com/covest/covest-service/internal/domain/errors"
)

// Engine constants. Amounts are SOL.
var (
	// MinWithdraw is the floor on the gross withdrawal amount.
	MinWithdraw = decimal.RequireFromString("0.01")
	// MinNetAmount is the smallest net transfer worth sending on-chain.
	MinNetAmount = decimal.RequireFromString("0.005")
	// MinFee and MaxFee bound the clamped fee.
	MinFee = decimal.RequireFromString("0.001")
	MaxFee = decimal.RequireFromString("0.005")
	// ConfirmTolerance is the allowed drift between the quoted and the
	// confirmed gross amount.
	ConfirmTolerance = decimal.RequireFromString("0.001")
	// ResetEpsilon absorbs decimal residue when a sub-balance is drained.
	ResetEpsilon = decimal.RequireFromString("0.000001")
)

// Fee schedule tiers, keyed by gross amount ceiling. Fees are fixed amounts,
// not percentages.
var feeTiers = []struct {
	ceiling decimal.Decimal
	fee     decimal.Decimal
	name    string
}{
	{decimal.RequireFromString("0.1"), decimal.RequireFromString("0.001"), "micro"},
	{decimal.RequireFromString("0.5"), decimal.RequireFromString("0.002"), "small"},
	{decimal.RequireFromString("1"), decimal.RequireFromString("0.003"), "medium"},
}

var largeTierFee = decimal.RequireFromString("0.005")

// tierFee returns the scheduled fee and tier name for a gross amount.
func tierFee(gross decimal.Decimal) (decimal.Decimal, string) {
	for _, t := range feeTiers {
		if gross.LessThanOrEqual(t.ceiling) {
			return t.fee, t.name
		}
	}
	return largeTierFee, "large"
}

// ComputeFees derives the fee and net amount for a gross withdrawal. The
// scheduled fee is clamped so the net never drops below MinNetAmount; if no
// fee in [MinFee, MaxFee] can satisfy that, the amount is rejected.
func ComputeFees(gross decimal.Decimal) (*entities.WithdrawalQuote, error) {
	if gross.LessThan(MinWithdraw) {
		return nil, domainerrors.ErrBelowMinimum
	}

	fee, tier := tierFee(gross)

	// Shrink the fee if it would starve the net amount.
	if gross.Sub(fee).LessThan(MinNetAmount) {
		fee = gross.Sub(MinNetAmount)
	}
	if fee.LessThan(MinFee) {
		return nil, domainerrors.ErrNetBelowMinimum
	}
	if fee.GreaterThan(MaxFee) {
		fee = MaxFee
	}

	return &entities.WithdrawalQuote{
		GrossAmount: gross,
		FeeAmount:   fee,
		NetAmount:   gross.Sub(fee),
		FeeTier:     tier,
	}, nil
}

// AmountsMatch reports whether the confirmed amount is within tolerance of
// the quoted amount.
func AmountsMatch(quoted, confirmed decimal.Decimal) bool {
	return quoted.Sub(confirmed).Abs().LessThanOrEqual(ConfirmTolerance)
}
