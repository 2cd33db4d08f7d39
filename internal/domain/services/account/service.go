// Package account covers registration, the read surface, plan purchases and
// manual admin adjustments. Everything that mutates balances goes through
// the account store's atomic update.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/covest/covest-service/internal/adapters/payments"
	"github.com/covest/covest-service/internal/domain/entities"
	domainerrors "github.com/covest/covest-service/internal/domain/errors"
	"github.com/covest/covest-service/pkg/logger"
)

// AccountStore is the persistence surface this service needs.
type AccountStore interface {
	Get(ctx context.Context, userID int64) (*entities.Account, error)
	GetByReferralCode(ctx context.Context, code string) (*entities.Account, error)
	CreateIfAbsent(ctx context.Context, userID int64, username string, referrerID *int64) (*entities.Account, error)
	AtomicUpdate(ctx context.Context, userID int64, mutate func(*entities.Account) error) (*entities.Account, error)
	SetWalletAddress(ctx context.Context, userID int64, address string) error
	Delete(ctx context.Context, userID int64) error
}

// PaymentStore persists plan-purchase invoices.
type PaymentStore interface {
	Create(ctx context.Context, p *entities.Payment) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]entities.Payment, error)
}

// AuditStore appends ledger history rows.
type AuditStore interface {
	Append(ctx context.Context, entry *entities.LedgerEntry) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]entities.LedgerEntry, error)
}

// InvoiceCreator opens invoices with the payment processor.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, orderID string, amount decimal.Decimal, description string) (*payments.Invoice, error)
}

// PriceOracle quotes SOL/USD for display amounts.
type PriceOracle interface {
	SolPriceUSD(ctx context.Context) (decimal.Decimal, error)
}

type Service struct {
	accounts     AccountStore
	paymentRepo  PaymentStore
	audit        AuditStore
	processor    InvoiceCreator
	oracle       PriceOracle
	catalog      entities.PlanCatalog
	freePlanDays int
	now          func() time.Time
	log          *logger.Logger
}

func NewService(accounts AccountStore, paymentRepo PaymentStore, audit AuditStore,
	processor InvoiceCreator, oracle PriceOracle, catalog entities.PlanCatalog,
	freePlanDays int, now func() time.Time, log *logger.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if freePlanDays <= 0 {
		freePlanDays = 14
	}
	return &Service{
		accounts:     accounts,
		paymentRepo:  paymentRepo,
		audit:        audit,
		processor:    processor,
		oracle:       oracle,
		catalog:      catalog,
		freePlanDays: freePlanDays,
		now:          now,
		log:          log,
	}
}

// Register creates the account if it does not exist. An optional referral
// code links the new account to its upline; an unknown code is ignored so
// registration never fails on a stale invite link.
func (s *Service) Register(ctx context.Context, userID int64, username, referralCode string) (*entities.Account, error) {
	var referrerID *int64
	if referralCode != "" {
		referrer, err := s.accounts.GetByReferralCode(ctx, referralCode)
		switch {
		case err == nil && referrer.UserID != userID:
			referrerID = &referrer.UserID
		case err != nil && !errors.Is(err, domainerrors.ErrAccountNotFound):
			return nil, err
		default:
			s.log.Warn("referral code not applied", "code", referralCode, "user_id", userID)
		}
	}
	return s.accounts.CreateIfAbsent(ctx, userID, username, referrerID)
}

// ActivateFreePlan starts the free trial. Activation is open to everyone;
// the unlock requirement gates withdrawals, not the trial itself.
func (s *Service) ActivateFreePlan(ctx context.Context, userID int64) (*entities.Account, error) {
	return s.accounts.AtomicUpdate(ctx, userID, func(acct *entities.Account) error {
		if acct.FreePlanActivated {
			return nil
		}
		if !acct.HasPlan(entities.PlanFree) {
			acct.ActivePlans = append(acct.ActivePlans, entities.PlanFree)
		}
		expiry := s.now().UTC().AddDate(0, 0, s.freePlanDays)
		acct.FreePlanActivated = true
		acct.FreePlanExpiry = &expiry
		return nil
	})
}

// Balance returns the display projection. A price feed outage degrades the
// USD figure to zero rather than failing the whole view.
func (s *Service) Balance(ctx context.Context, userID int64) (*entities.BalanceView, error) {
	acct, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	mainUSD := decimal.Zero
	if price, perr := s.oracle.SolPriceUSD(ctx); perr == nil {
		mainUSD = acct.MainBalance.Mul(price).Round(2)
	} else {
		s.log.Warn("price unavailable for balance view", "user_id", userID, "error", perr)
	}

	return &entities.BalanceView{
		UserID:                   acct.UserID,
		MainBalance:              acct.MainBalance,
		TradingBalance:           acct.TradingBalance,
		ReferralBalance:          acct.ReferralBalance,
		MainBalanceUSD:           mainUSD,
		LifetimeTradingEarnings:  acct.LifetimeTradingEarnings,
		LifetimeReferralEarnings: acct.LifetimeReferralEarnings,
		TotalDeposited:           acct.TotalDeposited,
		TotalWithdrawn:           acct.TotalWithdrawn,
		ActivePlans:              acct.ActivePlans,
		ValidReferralCount:       acct.ValidReferralCount,
		WithdrawalStatus:         acct.WithdrawalStatus,
		WithdrawalPendingAmount:  acct.WithdrawalPendingAmount,
	}, nil
}

// SetWallet validates and stores the payout destination.
func (s *Service) SetWallet(ctx context.Context, userID int64, address string) error {
	if len(address) < 32 || len(address) > 44 {
		return domainerrors.ValidationError("address", "not a valid Solana address")
	}
	return s.accounts.SetWalletAddress(ctx, userID, address)
}

// History returns the most recent ledger entries for the user.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]entities.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.audit.ListByUser(ctx, userID, limit)
}

// Payments returns the user's plan-purchase invoices.
func (s *Service) Payments(ctx context.Context, userID int64, limit int) ([]entities.Payment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.paymentRepo.ListByUser(ctx, userID, limit)
}

// PurchasePlan opens a processor invoice for the given paid plan and
// persists the pending payment row keyed by the processor's invoice id.
func (s *Service) PurchasePlan(ctx context.Context, userID int64, planKey string) (*entities.Payment, error) {
	plan, ok := s.catalog[planKey]
	if !ok || !plan.IsPaid() {
		return nil, domainerrors.ErrPlanNotFound
	}
	if _, err := s.accounts.Get(ctx, userID); err != nil {
		return nil, err
	}

	orderID := fmt.Sprintf("%d-%s-%s", userID, planKey, uuid.NewString()[:8])
	invoice, err := s.processor.CreateInvoice(ctx, orderID, plan.Price,
		fmt.Sprintf("%s plan", plan.Name))
	if err != nil {
		return nil, err
	}

	payment := &entities.Payment{
		UserID:     userID,
		PlanKey:    planKey,
		Amount:     plan.Price,
		InvoiceID:  invoice.InvoiceID,
		OrderID:    orderID,
		PaymentURL: &invoice.PaymentURL,
		Status:     entities.PaymentStatusPending,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.log.Info("invoice opened",
		"user_id", userID,
		"plan", planKey,
		"invoice_id", invoice.InvoiceID)
	return payment, nil
}

// AdminAdjust credits (positive) or debits (negative) the main balance and
// records the adjustment in the ledger history.
func (s *Service) AdminAdjust(ctx context.Context, userID int64, amount decimal.Decimal, reason string) (*entities.Account, error) {
	if amount.IsZero() {
		return nil, domainerrors.ValidationError("amount", "must be non-zero")
	}

	acct, err := s.accounts.AtomicUpdate(ctx, userID, func(a *entities.Account) error {
		next := a.MainBalance.Add(amount)
		if next.IsNegative() {
			return domainerrors.InsufficientFundsError(amount.Neg().String(), a.MainBalance.String())
		}
		a.MainBalance = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	entryType := entities.EntryAdminCredit
	if amount.IsNegative() {
		entryType = entities.EntryAdminDebit
	}
	if err := s.audit.Append(ctx, &entities.LedgerEntry{
		UserID:      userID,
		EntryType:   entryType,
		Amount:      amount,
		Description: reason,
	}); err != nil {
		s.log.Error("audit append failed after admin adjustment",
			"user_id", userID, "amount", amount.String(), "error", err)
	}
	return acct, nil
}

// PurgeUser removes the account and its dependent rows.
func (s *Service) PurgeUser(ctx context.Context, userID int64) error {
	if err := s.accounts.Delete(ctx, userID); err != nil {
		return err
	}
	s.log.Info("account purged", "user_id", userID)
	return nil
}
