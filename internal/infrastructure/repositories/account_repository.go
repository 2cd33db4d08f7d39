package repositories

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/covest/covest-service/internal/domain/entities"
	domainerrors "github.com/covest/covest-service/internal/domain/errors"
)

// AccountRepository handles account persistence operations
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `
	user_id, username, main_balance, trading_balance, referral_balance,
	lifetime_trading_earnings, lifetime_referral_earnings,
	total_deposited, total_withdrawn,
	active_plans, free_plan_activated, free_plan_requirements_met, free_plan_expiry,
	withdrawal_status, withdrawal_pending_amount,
	wallet_address, referral_code, referrer_id, valid_referral_count,
	withdrawal_count_today, last_withdrawal_day,
	last_trade_at, last_withdraw_at,
	created_at, updated_at`

// Get retrieves the account for a user
func (r *AccountRepository) Get(ctx context.Context, userID int64) (*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`

	var account entities.Account
	err := r.db.GetContext(ctx, &account, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetByReferralCode retrieves an account by its referral code
func (r *AccountRepository) GetByReferralCode(ctx context.Context, code string) (*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE referral_code = $1`

	var account entities.Account
	err := r.db.GetContext(ctx, &account, query, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by referral code: %w", err)
	}
	return &account, nil
}

// CreateIfAbsent inserts a fresh account for the user if one does not exist
// and returns the current row either way. Safe under concurrent first
// contact: the insert is ON CONFLICT DO NOTHING and the row is re-read.
func (r *AccountRepository) CreateIfAbsent(ctx context.Context, userID int64, username string, referrerID *int64) (*entities.Account, error) {
	code, err := newReferralCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate referral code: %w", err)
	}

	query := `
		INSERT INTO accounts (
			user_id, username, active_plans, referral_code, referrer_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, userID, username, pq.StringArray{entities.PlanFree}, code, referrerID); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return r.Get(ctx, userID)
}

// AtomicUpdate loads the account row under a row lock, applies mutate, and
// persists the result in the same transaction. Returning an error from
// mutate rolls everything back and is surfaced unchanged, so business
// rejections inside the closure leave no trace.
func (r *AccountRepository) AtomicUpdate(ctx context.Context, userID int64, mutate func(*entities.Account) error) (*entities.Account, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 FOR UPDATE`

	var account entities.Account
	if err := tx.GetContext(ctx, &account, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	if err := mutate(&account); err != nil {
		return nil, err
	}

	update := `
		UPDATE accounts SET
			username = :username,
			main_balance = :main_balance,
			trading_balance = :trading_balance,
			referral_balance = :referral_balance,
			lifetime_trading_earnings = :lifetime_trading_earnings,
			lifetime_referral_earnings = :lifetime_referral_earnings,
			total_deposited = :total_deposited,
			total_withdrawn = :total_withdrawn,
			active_plans = :active_plans,
			free_plan_activated = :free_plan_activated,
			free_plan_requirements_met = :free_plan_requirements_met,
			free_plan_expiry = :free_plan_expiry,
			withdrawal_status = :withdrawal_status,
			withdrawal_pending_amount = :withdrawal_pending_amount,
			wallet_address = :wallet_address,
			referrer_id = :referrer_id,
			valid_referral_count = :valid_referral_count,
			withdrawal_count_today = :withdrawal_count_today,
			last_withdrawal_day = :last_withdrawal_day,
			last_trade_at = :last_trade_at,
			last_withdraw_at = :last_withdraw_at,
			updated_at = NOW()
		WHERE user_id = :user_id
	`
	if _, err := tx.NamedExecContext(ctx, update, &account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit account update: %w", err)
	}
	return &account, nil
}

// SetWalletAddress stores the destination wallet for future withdrawals
func (r *AccountRepository) SetWalletAddress(ctx context.Context, userID int64, address string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET wallet_address = $1, updated_at = NOW() WHERE user_id = $2`,
		address, userID)
	if err != nil {
		return fmt.Errorf("failed to set wallet address: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrAccountNotFound
	}
	return nil
}

// ListByReferrer returns the accounts referred by the given user
func (r *AccountRepository) ListByReferrer(ctx context.Context, referrerID int64) ([]entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE referrer_id = $1 ORDER BY created_at`

	var accounts []entities.Account
	if err := r.db.SelectContext(ctx, &accounts, query, referrerID); err != nil {
		return nil, fmt.Errorf("failed to list referred accounts: %w", err)
	}
	return accounts, nil
}

// Delete removes the account row. Dependent rows (withdrawals, ledger
// entries, payments) cascade at the schema level.
func (r *AccountRepository) Delete(ctx context.Context, userID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrAccountNotFound
	}
	return nil
}

// CountAccounts returns the total number of accounts, for the admin stats view.
func (r *AccountRepository) CountAccounts(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM accounts`); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

func newReferralCode() (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
