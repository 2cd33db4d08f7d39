package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/covest/covest-service/internal/domain/entities"
	domainerrors "github.com/covest/covest-service/internal/domain/errors"
)

// FreePlanUnlockThreshold is the valid-referral count that unlocks
// withdrawals for accounts whose only plan is the free trial.
const FreePlanUnlockThreshold = 3

// dayKey is the UTC day used for the daily withdrawal counter reset.
func dayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// WithdrawalsUsedToday returns the effective count for the current UTC day,
// treating a counter from a previous day as zero.
func WithdrawalsUsedToday(account *entities.Account, now time.Time) int {
	today := dayKey(now)
	if account.LastWithdrawalDay == nil || *account.LastWithdrawalDay != today {
		return 0
	}
	return account.WithdrawalCountToday
}

// RegisterWithdrawalUse bumps the daily counter, rolling it over at the UTC
// day boundary. Must run inside the account row lock.
func RegisterWithdrawalUse(account *entities.Account, now time.Time) {
	today := dayKey(now)
	if account.LastWithdrawalDay == nil || *account.LastWithdrawalDay != today {
		account.WithdrawalCountToday = 0
	}
	account.WithdrawalCountToday++
	account.LastWithdrawalDay = &today
	t := now.UTC()
	account.LastWithdrawAt = &t
}

// bestPlan picks the account's active plan with the highest daily
// withdrawal allowance; the free trial is the floor.
func bestPlan(account *entities.Account, catalog entities.PlanCatalog) entities.Plan {
	best := catalog.Get(entities.PlanFree)
	for _, key := range account.ActivePlans {
		p, ok := catalog[key]
		if !ok {
			continue
		}
		if p.MaxWithdrawalsPerDay > best.MaxWithdrawalsPerDay ||
			(p.MaxWithdrawalsPerDay == best.MaxWithdrawalsPerDay && p.Price.GreaterThan(best.Price)) {
			best = p
		}
	}
	return best
}

// CanWithdraw enforces the per-plan daily count limit and the free-plan
// referral gate. It does not check balances or amounts; ValidateWithdrawal
// covers those.
func CanWithdraw(account *entities.Account, catalog entities.PlanCatalog, now time.Time) error {
	if account.OnFreeTrialOnly() {
		if account.ValidReferralCount < FreePlanUnlockThreshold && !account.FreePlanRequirementsMet {
			return domainerrors.ErrFreePlanLocked
		}
		if account.FreePlanExpiry != nil && now.After(*account.FreePlanExpiry) {
			return domainerrors.ErrPlanExpired
		}
	}

	plan := bestPlan(account, catalog)
	if WithdrawalsUsedToday(account, now) >= plan.MaxWithdrawalsPerDay {
		return domainerrors.DailyLimitError(plan.MaxWithdrawalsPerDay)
	}

	return nil
}

// ValidateWithdrawal runs the full amount-side validation for a withdrawal
// request and returns the fee quote on success. Policy checks (daily limit,
// free-plan gate, in-flight reservation) are the caller's responsibility.
func ValidateWithdrawal(account *entities.Account, catalog entities.PlanCatalog, gross decimal.Decimal) (*entities.WithdrawalQuote, error) {
	if account.WalletAddress == nil || *account.WalletAddress == "" {
		return nil, domainerrors.ErrWalletNotConfigured
	}

	plan := bestPlan(account, catalog)
	min := MinWithdraw
	if plan.MinWithdrawal.GreaterThan(min) {
		min = plan.MinWithdrawal
	}
	if gross.LessThan(min) {
		return nil, domainerrors.ErrBelowMinimum
	}

	quote, err := ComputeFees(gross)
	if err != nil {
		return nil, err
	}

	if gross.GreaterThan(account.MainBalance) {
		return nil, domainerrors.InsufficientFundsError(gross.String(), account.MainBalance.String())
	}

	return quote, nil
}
