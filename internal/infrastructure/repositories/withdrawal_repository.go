package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/covest/covest-service/internal/domain/entities"
	domainerrors "github.com/covest/covest-service/internal/domain/errors"
)

// WithdrawalRepository handles withdrawal persistence operations
type WithdrawalRepository struct {
	db *sqlx.DB
}

// NewWithdrawalRepository creates a new withdrawal repository
func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

const withdrawalColumns = `
	id, user_id, gross_amount, fee_amount, net_amount, gross_amount_usd,
	destination_address, status, txid, admin_notes, created_at, processed_at`

// Create inserts a new withdrawal row and returns it with its assigned id
func (r *WithdrawalRepository) Create(ctx context.Context, w *entities.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (
			user_id, gross_amount, fee_amount, net_amount, gross_amount_usd,
			destination_address, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		w.UserID, w.GrossAmount, w.FeeAmount, w.NetAmount,
		w.GrossAmountUSD, w.DestinationAddress, w.Status,
	).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return nil
}

// Get retrieves a withdrawal by id
func (r *WithdrawalRepository) Get(ctx context.Context, id int64) (*entities.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	var w entities.Withdrawal
	err := r.db.GetContext(ctx, &w, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return &w, nil
}

// GetPendingForUser returns the user's most recent non-terminal withdrawal
func (r *WithdrawalRepository) GetPendingForUser(ctx context.Context, userID int64) (*entities.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals
		WHERE user_id = $1 AND status IN ('pending', 'processing', 'on_hold')
		ORDER BY created_at DESC LIMIT 1`

	var w entities.Withdrawal
	err := r.db.GetContext(ctx, &w, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get pending withdrawal: %w", err)
	}
	return &w, nil
}

// ListDuePayouts returns pending withdrawals whose auto-payout delay has
// elapsed. The worker drains this list on every tick.
func (r *WithdrawalRepository) ListDuePayouts(ctx context.Context, olderThan time.Time, limit int) ([]entities.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals
		WHERE status = 'pending' AND created_at <= $1
		ORDER BY created_at ASC LIMIT $2`

	var rows []entities.Withdrawal
	if err := r.db.SelectContext(ctx, &rows, query, olderThan, limit); err != nil {
		return nil, fmt.Errorf("failed to list due payouts: %w", err)
	}
	return rows, nil
}

// ListByUser returns a user's withdrawal history, newest first
func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]entities.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	var rows []entities.Withdrawal
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return rows, nil
}

// ListByStatus returns withdrawals in a given status, oldest first
func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status entities.WithdrawalStatus, limit int) ([]entities.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals
		WHERE status = $1 ORDER BY created_at ASC LIMIT $2`

	var rows []entities.Withdrawal
	if err := r.db.SelectContext(ctx, &rows, query, status, limit); err != nil {
		return nil, fmt.Errorf("failed to list withdrawals by status: %w", err)
	}
	return rows, nil
}

// TransitionStatus moves a withdrawal from one status to another. Returns
// ErrWithdrawalNotFound when the row is no longer in the expected status,
// which makes concurrent processors and stale payout jobs safe no-ops.
func (r *WithdrawalRepository) TransitionStatus(ctx context.Context, id int64, from, to entities.WithdrawalStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE withdrawals SET status = $1 WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("failed to transition withdrawal status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrWithdrawalNotFound
	}
	return nil
}

// MarkPaid records a successful on-chain payout
func (r *WithdrawalRepository) MarkPaid(ctx context.Context, id int64, txID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE withdrawals SET status = 'approved', txid = $1, processed_at = NOW()
		WHERE id = $2 AND status = 'processing'`,
		txID, id)
	if err != nil {
		return fmt.Errorf("failed to mark withdrawal paid: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrWithdrawalNotFound
	}
	return nil
}

// MarkFailed records a failed payout attempt with the operator-visible reason
func (r *WithdrawalRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE withdrawals SET status = 'failed', admin_notes = $1, processed_at = NOW()
		WHERE id = $2 AND status = 'processing'`,
		reason, id)
	if err != nil {
		return fmt.Errorf("failed to mark withdrawal failed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrWithdrawalNotFound
	}
	return nil
}

// SetAdminNotes attaches an operator note without changing status
func (r *WithdrawalRepository) SetAdminNotes(ctx context.Context, id int64, notes string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE withdrawals SET admin_notes = $1 WHERE id = $2`,
		notes, id); err != nil {
		return fmt.Errorf("failed to set admin notes: %w", err)
	}
	return nil
}
