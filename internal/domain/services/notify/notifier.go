// Package notify defines the outbound notification port. The ledger core
// reports events; transports (Telegram, log-only) decide wording and
// delivery. Notification failures never fail the triggering operation.
package notify

import "context"

// Event kinds emitted by the core.
const (
	EventWithdrawalRequested = "withdrawal_requested"
	EventWithdrawalPaid      = "withdrawal_paid"
	EventWithdrawalFailed    = "withdrawal_failed"
	EventWithdrawalRejected  = "withdrawal_rejected"
	EventPlanActivated       = "plan_activated"
	EventReferralBonus       = "referral_bonus"
	EventFreePlanUnlocked    = "free_plan_unlocked"
	EventTradingGain         = "trading_gain"
	EventLedgerInconsistency = "ledger_inconsistency"
)

// Notifier delivers user and admin notifications.
type Notifier interface {
	Notify(ctx context.Context, userID int64, eventKind string, data map[string]interface{})
	NotifyAdmin(ctx context.Context, eventKind string, data map[string]interface{})
}

// Nop discards all notifications. Used in tests and when no transport is
// configured.
type Nop struct{}

func (Nop) Notify(context.Context, int64, string, map[string]interface{}) {}

func (Nop) NotifyAdmin(context.Context, string, map[string]interface{}) {}
