package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/covest/covest-service/internal/domain/entities"
)

// LedgerRepository persists the append-only audit trail and trading sessions
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append writes one audit entry
func (r *LedgerRepository) Append(ctx context.Context, entry *entities.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (user_id, entry_type, amount, amount_usd, description, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		entry.UserID, entry.EntryType, entry.Amount, entry.AmountUSD, entry.Description,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// ListByUser returns a user's audit trail, newest first
func (r *LedgerRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]entities.LedgerEntry, error) {
	query := `
		SELECT id, user_id, entry_type, amount, amount_usd, description, created_at
		FROM ledger_entries
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`
	var rows []entities.LedgerEntry
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return rows, nil
}

// RecordSession inserts a trading session row. Returns true only on first
// insert for the (user, session key) pair; replays return false.
func (r *LedgerRepository) RecordSession(ctx context.Context, session *entities.TradingSession) (bool, error) {
	query := `
		INSERT INTO trading_sessions (user_id, session_key, gain, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, session_key) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, session.UserID, session.SessionKey, session.Gain)
	if err != nil {
		return false, fmt.Errorf("failed to record trading session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
