// Package referral settles confirmed plan purchases: plan activation,
// deposit counters, the upline bonus, and valid-referral promotion. All of
// it is idempotent against payment webhook redelivery.
package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/covest/covest-service/internal/domain/entities"
	domainerrors "github.com/covest/covest-service/internal/domain/errors"
	"github.com/covest/covest-service/internal/domain/services/ledger"
	"github.com/covest/covest-service/internal/domain/services/notify"
	"github.com/covest/covest-service/pkg/logger"
	"github.com/covest/covest-service/pkg/metrics"
)

// BonusRate is the upline share of every paid purchase.
var BonusRate = decimal.RequireFromString("0.10")

// AccountStore is the slice of the account repository this service needs.
type AccountStore interface {
	Get(ctx context.Context, userID int64) (*entities.Account, error)
	AtomicUpdate(ctx context.Context, userID int64, mutate func(*entities.Account) error) (*entities.Account, error)
}

// ReferralStore persists bonus audit rows and the valid-referral set.
type ReferralStore interface {
	RecordBonus(ctx context.Context, bonus *entities.ReferralBonus) error
	MarkValid(ctx context.Context, referrerID, referralID int64, planKey string) (bool, error)
	CountValid(ctx context.Context, referrerID int64) (int, error)
	CountReferred(ctx context.Context, referrerID int64) (int, error)
	SumBonuses(ctx context.Context, referrerID int64) (decimal.Decimal, error)
}

// PaymentStore settles payment rows idempotently.
type PaymentStore interface {
	GetByInvoiceID(ctx context.Context, invoiceID string) (*entities.Payment, error)
	Settle(ctx context.Context, invoiceID string, status entities.PaymentStatus) (bool, error)
	UpdateStatus(ctx context.Context, invoiceID string, status entities.PaymentStatus) error
}

// AuditStore appends ledger audit entries.
type AuditStore interface {
	Append(ctx context.Context, entry *entities.LedgerEntry) error
}

// Service settles purchases and maintains referral state.
type Service struct {
	accounts  AccountStore
	referrals ReferralStore
	payments  PaymentStore
	audit     AuditStore
	notifier  notify.Notifier
	catalog   entities.PlanCatalog
	log       *logger.Logger
}

// NewService creates a referral settlement service.
func NewService(
	accounts AccountStore,
	referrals ReferralStore,
	payments PaymentStore,
	audit AuditStore,
	notifier notify.Notifier,
	catalog entities.PlanCatalog,
	log *logger.Logger,
) *Service {
	return &Service{
		accounts:  accounts,
		referrals: referrals,
		payments:  payments,
		audit:     audit,
		notifier:  notifier,
		catalog:   catalog,
		log:       log,
	}
}

// SettlePurchase applies a confirmed plan purchase. Idempotent on the
// payment invoice id: the payment row settles exactly once, and everything
// downstream hangs off that first settle.
func (s *Service) SettlePurchase(ctx context.Context, invoiceID string, status entities.PaymentStatus) error {
	payment, err := s.payments.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if !s.catalog.Has(payment.PlanKey) {
		return domainerrors.ErrPlanNotFound
	}
	plan := s.catalog.Get(payment.PlanKey)
	priorStatus := payment.Status

	first, err := s.payments.Settle(ctx, invoiceID, status)
	if err != nil {
		return err
	}
	if !first {
		s.log.Info("purchase already settled, skipping", "invoice_id", invoiceID)
		return domainerrors.ErrPaymentAlreadyProcessed
	}

	// Activate the plan and bump the deposit counter on the buyer. A paid
	// plan supersedes the free trial, so its flags are cleared.
	buyer, err := s.accounts.AtomicUpdate(ctx, payment.UserID, func(acct *entities.Account) error {
		if !acct.HasPlan(plan.Key) {
			acct.ActivePlans = append(acct.ActivePlans, plan.Key)
		}
		acct.TotalDeposited = acct.TotalDeposited.Add(payment.Amount)
		if plan.IsPaid() {
			acct.FreePlanActivated = false
			acct.FreePlanExpiry = nil
		}
		return nil
	})
	if err != nil {
		// The settled flag must not outlive a failed activation, or the
		// provider's redelivery would be dropped as a duplicate and the
		// buyer would never get the plan.
		if revertErr := s.payments.UpdateStatus(ctx, invoiceID, priorStatus); revertErr != nil {
			s.log.Error("failed to revert payment status after activation failure",
				"invoice_id", invoiceID, "error", revertErr)
			s.notifier.NotifyAdmin(ctx, notify.EventLedgerInconsistency, map[string]interface{}{
				"invoice_id": invoiceID,
				"error":      revertErr.Error(),
			})
		}
		return err
	}

	s.appendAudit(ctx, payment.UserID, entities.EntryPlanPurchase, payment.Amount, payment.AmountUSD,
		fmt.Sprintf("plan %s activated, invoice %s", plan.Key, invoiceID))

	s.notifier.Notify(ctx, payment.UserID, notify.EventPlanActivated, map[string]interface{}{
		"plan": plan.Key,
	})
	s.log.Info("plan activated",
		"user_id", payment.UserID, "plan", plan.Key, "invoice_id", invoiceID)

	if buyer.ReferrerID != nil {
		if err := s.creditUpline(ctx, *buyer.ReferrerID, payment, plan); err != nil {
			// The purchase itself stands; the bonus failure goes to the
			// operator instead of bouncing the webhook.
			s.log.Error("upline credit failed",
				"referrer_id", *buyer.ReferrerID, "invoice_id", invoiceID, "error", err)
			s.notifier.NotifyAdmin(ctx, notify.EventLedgerInconsistency, map[string]interface{}{
				"invoice_id": invoiceID,
				"error":      err.Error(),
			})
		}
	}

	return nil
}

// creditUpline pays the bonus, promotes the valid referral at most once per
// (referrer, referral) pair, and refreshes the referrer's count from the
// authoritative table.
func (s *Service) creditUpline(ctx context.Context, referrerID int64, payment *entities.Payment, plan entities.Plan) error {
	bonus := payment.Amount.Mul(BonusRate)

	// The bonus is minted, not moved; only the referrer's row changes.
	_, err := s.accounts.AtomicUpdate(ctx, referrerID, func(acct *entities.Account) error {
		ledger.CreditSub(acct, entities.SubAccountReferral, bonus)
		return nil
	})
	if err != nil {
		return err
	}

	record := &entities.ReferralBonus{
		ReferrerID:  referrerID,
		ReferralID:  payment.UserID,
		Amount:      bonus,
		AmountUSD:   payment.AmountUSD.Mul(BonusRate),
		Description: fmt.Sprintf("10%% bonus on %s purchase by %d", plan.Key, payment.UserID),
	}
	if err := s.referrals.RecordBonus(ctx, record); err != nil {
		return err
	}
	s.appendAudit(ctx, referrerID, entities.EntryReferralBonus, bonus, record.AmountUSD, record.Description)
	metrics.ReferralBonuses.Inc()

	promoted := false
	if plan.IsPaid() {
		promoted, err = s.referrals.MarkValid(ctx, referrerID, payment.UserID, plan.Key)
		if err != nil {
			return err
		}
	}

	// Recount from the table rather than incrementing, so replays converge.
	count, err := s.referrals.CountValid(ctx, referrerID)
	if err != nil {
		return err
	}

	var unlocked bool
	_, err = s.accounts.AtomicUpdate(ctx, referrerID, func(acct *entities.Account) error {
		acct.ValidReferralCount = count
		if count >= ledger.FreePlanUnlockThreshold && !acct.FreePlanRequirementsMet {
			acct.FreePlanRequirementsMet = true
			unlocked = acct.OnFreeTrialOnly()
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, referrerID, notify.EventReferralBonus, map[string]interface{}{
		"amount":   bonus.String(),
		"plan":     plan.Key,
		"promoted": promoted,
	})
	if unlocked {
		s.notifier.Notify(ctx, referrerID, notify.EventFreePlanUnlocked, nil)
	}

	s.log.Info("referral bonus credited",
		"referrer_id", referrerID, "referral_id", payment.UserID,
		"bonus", bonus.String(), "valid_count", count)
	return nil
}

// Stats builds the referral menu projection for a user.
func (s *Service) Stats(ctx context.Context, userID int64) (*entities.ReferralStats, error) {
	acct, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	total, err := s.referrals.CountReferred(ctx, userID)
	if err != nil {
		return nil, err
	}
	valid, err := s.referrals.CountValid(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &entities.ReferralStats{
		ReferralCode:      acct.ReferralCode,
		TotalReferrals:    total,
		ValidReferrals:    valid,
		LifetimeEarnings:  acct.LifetimeReferralEarnings,
		RequiredForUnlock: ledger.FreePlanUnlockThreshold,
		FreePlanUnlocked:  acct.FreePlanRequirementsMet || valid >= ledger.FreePlanUnlockThreshold,
	}, nil
}

func (s *Service) appendAudit(ctx context.Context, userID int64, entryType string, amount, amountUSD decimal.Decimal, desc string) {
	entry := &entities.LedgerEntry{
		UserID:      userID,
		EntryType:   entryType,
		Amount:      amount,
		AmountUSD:   amountUSD,
		Description: desc,
		CreatedAt:   time.Now(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Error("audit append failed", "user_id", userID, "type", entryType, "error", err)
	}
}
