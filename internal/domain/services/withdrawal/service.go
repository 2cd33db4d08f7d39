// Package withdrawal orchestrates the withdrawal state machine: request,
// confirmation, delayed automatic payout, and admin overrides. The account
// balance is debited only on confirmed on-chain success; the account-side
// reservation exists to block a second in-flight withdrawal, not to
// pre-debit funds.
package withdrawal

import (
	"context"
	"errors"
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

// AccountStore is the slice of the account repository this service needs.
type AccountStore interface {
	Get(ctx context.Context, userID int64) (*entities.Account, error)
	AtomicUpdate(ctx context.Context, userID int64, mutate func(*entities.Account) error) (*entities.Account, error)
}

// WithdrawalStore persists withdrawal rows.
type WithdrawalStore interface {
	Create(ctx context.Context, w *entities.Withdrawal) error
	Get(ctx context.Context, id int64) (*entities.Withdrawal, error)
	ListDuePayouts(ctx context.Context, olderThan time.Time, limit int) ([]entities.Withdrawal, error)
	TransitionStatus(ctx context.Context, id int64, from, to entities.WithdrawalStatus) error
	MarkPaid(ctx context.Context, id int64, txID string) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	SetAdminNotes(ctx context.Context, id int64, notes string) error
}

// AuditStore appends ledger audit entries.
type AuditStore interface {
	Append(ctx context.Context, entry *entities.LedgerEntry) error
}

// ChainClient sends SOL from the hot wallet. Implementations serialize
// sends internally; the hot wallet is a single shared signing resource.
type ChainClient interface {
	Send(ctx context.Context, address string, amount decimal.Decimal) (txID string, err error)
	GetBalance(ctx context.Context) (decimal.Decimal, error)
}

// PriceOracle quotes the SOL/USD price. Never returns zero on success.
type PriceOracle interface {
	SolPriceUSD(ctx context.Context) (decimal.Decimal, error)
}

// Config carries the service knobs, injected so tests control them.
type Config struct {
	// Enabled gates new withdrawal requests. Read per request so an admin
	// toggle takes effect without restart.
	Enabled func() bool
	// PayoutDelay is how long a confirmed withdrawal waits before the
	// automatic payout attempt.
	PayoutDelay time.Duration
	// Now is the clock, replaceable in tests.
	Now func() time.Time
}

// Service implements the withdrawal lifecycle.
type Service struct {
	accounts    AccountStore
	withdrawals WithdrawalStore
	audit       AuditStore
	chain       ChainClient
	oracle      PriceOracle
	notifier    notify.Notifier
	catalog     entities.PlanCatalog
	cfg         Config
	log         *logger.Logger
}

// NewService creates a withdrawal service.
func NewService(
	accounts AccountStore,
	withdrawals WithdrawalStore,
	audit AuditStore,
	chain ChainClient,
	oracle PriceOracle,
	notifier notify.Notifier,
	catalog entities.PlanCatalog,
	cfg Config,
	log *logger.Logger,
) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Enabled == nil {
		cfg.Enabled = func() bool { return true }
	}
	return &Service{
		accounts:    accounts,
		withdrawals: withdrawals,
		audit:       audit,
		chain:       chain,
		oracle:      oracle,
		notifier:    notifier,
		catalog:     catalog,
		cfg:         cfg,
		log:         log,
	}
}

// Request validates a withdrawal amount and reserves the pending-approval
// slot on the account. Nothing is debited; the returned quote is what the
// user must confirm.
func (s *Service) Request(ctx context.Context, userID int64, gross decimal.Decimal) (*entities.WithdrawalQuote, error) {
	if !s.cfg.Enabled() {
		return nil, domainerrors.ErrWithdrawalsDisabled
	}

	var quote *entities.WithdrawalQuote
	_, err := s.accounts.AtomicUpdate(ctx, userID, func(acct *entities.Account) error {
		if acct.HasInFlightWithdrawal() {
			return domainerrors.WithdrawalPendingError(string(acct.WithdrawalStatus))
		}
		if err := ledger.CanWithdraw(acct, s.catalog, s.cfg.Now()); err != nil {
			return err
		}
		q, err := ledger.ValidateWithdrawal(acct, s.catalog, gross)
		if err != nil {
			return err
		}
		quote = q
		acct.WithdrawalStatus = entities.WithdrawalStatePendingApproval
		acct.WithdrawalPendingAmount = gross
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.attachUSD(ctx, quote)

	s.log.Info("withdrawal requested",
		"user_id", userID,
		"gross", quote.GrossAmount.String(),
		"fee", quote.FeeAmount.String(),
		"net", quote.NetAmount.String(),
	)
	return quote, nil
}

// CancelRequest drops a pending-approval reservation that was never
// confirmed. No-op when nothing is reserved.
func (s *Service) CancelRequest(ctx context.Context, userID int64) error {
	_, err := s.accounts.AtomicUpdate(ctx, userID, func(acct *entities.Account) error {
		if acct.WithdrawalStatus != entities.WithdrawalStatePendingApproval {
			return nil
		}
		acct.ClearWithdrawalReservation()
		return nil
	})
	return err
}

// Confirm turns a pending-approval reservation into a pending Withdrawal
// row. The confirmed amount must match the reserved amount within the
// configured tolerance.
func (s *Service) Confirm(ctx context.Context, userID int64, gross decimal.Decimal) (*entities.ConfirmWithdrawalResponse, error) {
	if !s.cfg.Enabled() {
		return nil, domainerrors.ErrWithdrawalsDisabled
	}

	var w *entities.Withdrawal
	_, err := s.accounts.AtomicUpdate(ctx, userID, func(acct *entities.Account) error {
		if acct.WithdrawalStatus != entities.WithdrawalStatePendingApproval {
			return domainerrors.ErrWithdrawalNotPending
		}
		if !ledger.AmountsMatch(acct.WithdrawalPendingAmount, gross) {
			return domainerrors.ErrAmountMismatch
		}

		quote, err := ledger.ValidateWithdrawal(acct, s.catalog, acct.WithdrawalPendingAmount)
		if err != nil {
			return err
		}
		s.attachUSD(ctx, quote)

		w = &entities.Withdrawal{
			UserID:             userID,
			GrossAmount:        quote.GrossAmount,
			FeeAmount:          quote.FeeAmount,
			NetAmount:          quote.NetAmount,
			GrossAmountUSD:     quote.GrossUSD,
			DestinationAddress: *acct.WalletAddress,
			Status:             entities.WithdrawalStatusPending,
		}

		acct.WithdrawalStatus = entities.WithdrawalStatePending
		acct.WithdrawalPendingAmount = quote.GrossAmount
		ledger.RegisterWithdrawalUse(acct, s.cfg.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The row is created only after the reservation commit, so a failed
	// account update cannot leave an orphan pending payout behind. If the
	// insert fails instead, the reservation is rolled back to the
	// confirmable state.
	if err := s.withdrawals.Create(ctx, w); err != nil {
		if _, revertErr := s.accounts.AtomicUpdate(ctx, userID, func(acct *entities.Account) error {
			acct.WithdrawalStatus = entities.WithdrawalStatePendingApproval
			if acct.WithdrawalCountToday > 0 {
				acct.WithdrawalCountToday--
			}
			return nil
		}); revertErr != nil {
			s.log.Error("failed to roll back withdrawal reservation",
				"user_id", userID, "error", revertErr)
		}
		return nil, err
	}

	s.notifier.NotifyAdmin(ctx, notify.EventWithdrawalRequested, map[string]interface{}{
		"withdrawal_id": w.ID,
		"user_id":       userID,
		"gross":         w.GrossAmount.String(),
	})
	s.log.Info("withdrawal confirmed", "user_id", userID, "withdrawal_id", w.ID)

	return &entities.ConfirmWithdrawalResponse{
		WithdrawalID: w.ID,
		Status:       w.Status,
		NetAmount:    w.NetAmount,
	}, nil
}

// ProcessPayout executes the on-chain payout for one withdrawal. Idempotent
// on the withdrawal id: the caller that wins the pending-to-processing claim
// is the only one that broadcasts, so a stale timer or a concurrent admin
// approval becomes a safe no-op.
func (s *Service) ProcessPayout(ctx context.Context, withdrawalID int64) error {
	w, err := s.withdrawals.Get(ctx, withdrawalID)
	if err != nil {
		return err
	}
	if w.Status != entities.WithdrawalStatusPending {
		s.log.Debug("payout skipped, withdrawal no longer pending",
			"withdrawal_id", withdrawalID, "status", string(w.Status))
		return nil
	}

	// Claim the row before touching the chain. A crash between here and the
	// status settle leaves the row in processing for operator reconciliation
	// rather than risking a second broadcast.
	if err := s.withdrawals.TransitionStatus(ctx, withdrawalID,
		entities.WithdrawalStatusPending, entities.WithdrawalStatusProcessing); err != nil {
		if errors.Is(err, domainerrors.ErrWithdrawalNotFound) {
			s.log.Debug("payout skipped, row claimed by another processor",
				"withdrawal_id", withdrawalID)
			return nil
		}
		return err
	}

	start := time.Now()
	txID, sendErr := s.chain.Send(ctx, w.DestinationAddress, w.NetAmount)
	metrics.ChainSendDuration.Observe(time.Since(start).Seconds())

	if sendErr != nil {
		return s.failPayout(ctx, w, sendErr)
	}
	return s.completePayout(ctx, w, txID)
}

func (s *Service) completePayout(ctx context.Context, w *entities.Withdrawal, txID string) error {
	if err := s.withdrawals.MarkPaid(ctx, w.ID, txID); err != nil {
		// Row moved under us after the send; surface for the operator.
		s.log.Error("payout sent but status update failed",
			"withdrawal_id", w.ID, "txid", txID, "error", err)
		return err
	}

	_, err := s.accounts.AtomicUpdate(ctx, w.UserID, func(acct *entities.Account) error {
		newBalance := acct.MainBalance.Sub(w.GrossAmount)
		if newBalance.IsNegative() {
			return domainerrors.ErrNegativeBalance
		}
		acct.MainBalance = newBalance
		acct.TotalWithdrawn = acct.TotalWithdrawn.Add(w.GrossAmount)
		acct.ClearWithdrawalReservation()
		return nil
	})
	if err != nil {
		s.log.Error("payout debit failed after chain send",
			"withdrawal_id", w.ID, "user_id", w.UserID, "error", err)
		s.notifier.NotifyAdmin(ctx, notify.EventLedgerInconsistency, map[string]interface{}{
			"withdrawal_id": w.ID,
			"user_id":       w.UserID,
			"error":         err.Error(),
		})
		return err
	}

	s.appendAudit(ctx, w.UserID, entities.EntryWithdrawal, w.GrossAmount.Neg(), w.GrossAmountUSD.Neg(),
		fmt.Sprintf("withdrawal #%d paid, tx %s", w.ID, txID))

	metrics.WithdrawalsProcessed.WithLabelValues("approved").Inc()
	amt, _ := w.GrossAmount.Float64()
	metrics.WithdrawalAmount.Observe(amt)

	s.notifier.Notify(ctx, w.UserID, notify.EventWithdrawalPaid, map[string]interface{}{
		"withdrawal_id": w.ID,
		"net":           w.NetAmount.String(),
		"txid":          txID,
	})
	s.log.Info("withdrawal paid", "withdrawal_id", w.ID, "user_id", w.UserID, "txid", txID)
	return nil
}

func (s *Service) failPayout(ctx context.Context, w *entities.Withdrawal, sendErr error) error {
	if err := s.withdrawals.MarkFailed(ctx, w.ID, sendErr.Error()); err != nil {
		return err
	}

	// Nothing was debited; only the reservation is cleared so the user can
	// try again.
	if _, err := s.accounts.AtomicUpdate(ctx, w.UserID, func(acct *entities.Account) error {
		acct.ClearWithdrawalReservation()
		return nil
	}); err != nil {
		return err
	}

	metrics.WithdrawalsProcessed.WithLabelValues("failed").Inc()
	s.notifier.Notify(ctx, w.UserID, notify.EventWithdrawalFailed, map[string]interface{}{
		"withdrawal_id": w.ID,
	})
	s.notifier.NotifyAdmin(ctx, notify.EventWithdrawalFailed, map[string]interface{}{
		"withdrawal_id": w.ID,
		"user_id":       w.UserID,
		"error":         sendErr.Error(),
	})
	s.log.Warn("withdrawal payout failed",
		"withdrawal_id", w.ID, "user_id", w.UserID, "error", sendErr)
	return domainerrors.ChainSendError(sendErr)
}

// ProcessDuePayouts pays out every pending withdrawal older than the
// configured delay. Called by the payout worker on a fixed tick.
func (s *Service) ProcessDuePayouts(ctx context.Context, batchSize int) error {
	cutoff := s.cfg.Now().Add(-s.cfg.PayoutDelay)
	due, err := s.withdrawals.ListDuePayouts(ctx, cutoff, batchSize)
	if err != nil {
		return err
	}
	for _, w := range due {
		if err := s.ProcessPayout(ctx, w.ID); err != nil {
			// Failures are already recorded per withdrawal; keep draining.
			s.log.Warn("payout attempt errored", "withdrawal_id", w.ID, "error", err)
		}
	}
	return nil
}

// AdminApprove triggers an immediate payout attempt, bypassing the delay.
func (s *Service) AdminApprove(ctx context.Context, withdrawalID int64) error {
	return s.ProcessPayout(ctx, withdrawalID)
}

// AdminReject cancels a pending or held withdrawal. Nothing was debited, so
// the only account-side work is clearing the reservation.
func (s *Service) AdminReject(ctx context.Context, withdrawalID int64, reason string) error {
	w, err := s.withdrawals.Get(ctx, withdrawalID)
	if err != nil {
		return err
	}
	if w.Status.IsTerminal() {
		return domainerrors.ConflictError("withdrawal", "already in a terminal state")
	}
	if w.Status == entities.WithdrawalStatusProcessing {
		return domainerrors.ConflictError("withdrawal", "payout already in progress")
	}

	if err := s.withdrawals.TransitionStatus(ctx, withdrawalID, w.Status, entities.WithdrawalStatusRejected); err != nil {
		return err
	}
	if reason != "" {
		if err := s.withdrawals.SetAdminNotes(ctx, withdrawalID, reason); err != nil {
			s.log.Warn("failed to record rejection reason", "withdrawal_id", withdrawalID, "error", err)
		}
	}

	if _, err := s.accounts.AtomicUpdate(ctx, w.UserID, func(acct *entities.Account) error {
		acct.ClearWithdrawalReservation()
		return nil
	}); err != nil {
		return err
	}

	metrics.WithdrawalsProcessed.WithLabelValues("rejected").Inc()
	s.notifier.Notify(ctx, w.UserID, notify.EventWithdrawalRejected, map[string]interface{}{
		"withdrawal_id": w.ID,
		"reason":        reason,
	})
	s.log.Info("withdrawal rejected", "withdrawal_id", w.ID, "user_id", w.UserID)
	return nil
}

// AdminHold parks a pending withdrawal for manual review. The automatic
// payout skips held rows.
func (s *Service) AdminHold(ctx context.Context, withdrawalID int64) error {
	w, err := s.withdrawals.Get(ctx, withdrawalID)
	if err != nil {
		return err
	}
	if err := s.withdrawals.TransitionStatus(ctx, withdrawalID,
		entities.WithdrawalStatusPending, entities.WithdrawalStatusOnHold); err != nil {
		return err
	}

	if _, err := s.accounts.AtomicUpdate(ctx, w.UserID, func(acct *entities.Account) error {
		if acct.WithdrawalStatus == entities.WithdrawalStatePending {
			acct.WithdrawalStatus = entities.WithdrawalStateOnHold
		}
		return nil
	}); err != nil {
		return err
	}

	s.log.Info("withdrawal held", "withdrawal_id", withdrawalID)
	return nil
}

// AdminResume moves a held withdrawal back to pending and immediately
// attempts the payout.
func (s *Service) AdminResume(ctx context.Context, withdrawalID int64) error {
	w, err := s.withdrawals.Get(ctx, withdrawalID)
	if err != nil {
		return err
	}
	if err := s.withdrawals.TransitionStatus(ctx, withdrawalID,
		entities.WithdrawalStatusOnHold, entities.WithdrawalStatusPending); err != nil {
		return err
	}

	if _, err := s.accounts.AtomicUpdate(ctx, w.UserID, func(acct *entities.Account) error {
		if acct.WithdrawalStatus == entities.WithdrawalStateOnHold {
			acct.WithdrawalStatus = entities.WithdrawalStatePending
		}
		return nil
	}); err != nil {
		return err
	}

	return s.ProcessPayout(ctx, withdrawalID)
}

// attachUSD fills the quote's USD projections from the oracle. Display
// only: a failed oracle leaves the USD fields zero rather than blocking.
func (s *Service) attachUSD(ctx context.Context, quote *entities.WithdrawalQuote) {
	price, err := s.oracle.SolPriceUSD(ctx)
	if err != nil {
		s.log.Warn("price oracle unavailable for quote", "error", err)
		return
	}
	quote.SolPriceUSD = price
	quote.GrossUSD = quote.GrossAmount.Mul(price)
	quote.NetUSD = quote.NetAmount.Mul(price)
}

func (s *Service) appendAudit(ctx context.Context, userID int64, entryType string, amount, amountUSD decimal.Decimal, desc string) {
	entry := &entities.LedgerEntry{
		UserID:      userID,
		EntryType:   entryType,
		Amount:      amount,
		AmountUSD:   amountUSD,
		Description: desc,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Error("audit append failed", "user_id", userID, "type", entryType, "error", err)
	}
}
