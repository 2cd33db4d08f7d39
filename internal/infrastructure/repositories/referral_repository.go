package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/covest/covest-service/internal/domain/entities"
)

// ReferralRepository handles referral bonus and valid-referral persistence
type ReferralRepository struct {
	db *sqlx.DB
}

// NewReferralRepository creates a new referral repository
func NewReferralRepository(db *sqlx.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// RecordBonus appends a referral bonus record
func (r *ReferralRepository) RecordBonus(ctx context.Context, bonus *entities.ReferralBonus) error {
	query := `
		INSERT INTO referral_bonuses (
			referrer_id, referral_id, amount, amount_usd, description, created_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		bonus.ReferrerID, bonus.ReferralID, bonus.Amount, bonus.AmountUSD, bonus.Description,
	).Scan(&bonus.ID, &bonus.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record referral bonus: %w", err)
	}
	return nil
}

// MarkValid records the (referrer, referral) pair as valid. Returns true only
// on first insert; redelivered purchases hit the unique constraint and return
// false so the referrer's count never double-increments.
func (r *ReferralRepository) MarkValid(ctx context.Context, referrerID, referralID int64, planKey string) (bool, error) {
	query := `
		INSERT INTO valid_referrals (referrer_id, referral_id, plan_key, activated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (referrer_id, referral_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, referrerID, referralID, planKey)
	if err != nil {
		return false, fmt.Errorf("failed to mark referral valid: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// CountValid returns the number of distinct valid referrals for a referrer
func (r *ReferralRepository) CountValid(ctx context.Context, referrerID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM valid_referrals WHERE referrer_id = $1`, referrerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count valid referrals: %w", err)
	}
	return count, nil
}

// CountReferred returns how many accounts were opened under a referrer
func (r *ReferralRepository) CountReferred(ctx context.Context, referrerID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM accounts WHERE referrer_id = $1`, referrerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return count, nil
}

// SumBonuses totals a referrer's bonus credits
func (r *ReferralRepository) SumBonuses(ctx context.Context, referrerID int64) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.GetContext(ctx, &total,
		`SELECT SUM(amount) FROM referral_bonuses WHERE referrer_id = $1`, referrerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum referral bonuses: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// ListBonuses returns a referrer's bonus history, newest first
func (r *ReferralRepository) ListBonuses(ctx context.Context, referrerID int64, limit int) ([]entities.ReferralBonus, error) {
	query := `
		SELECT id, referrer_id, referral_id, amount, amount_usd, description, created_at
		FROM referral_bonuses
		WHERE referrer_id = $1 ORDER BY created_at DESC LIMIT $2
	`
	var rows []entities.ReferralBonus
	if err := r.db.SelectContext(ctx, &rows, query, referrerID, limit); err != nil {
		return nil, fmt.Errorf("failed to list referral bonuses: %w", err)
	}
	return rows, nil
}
