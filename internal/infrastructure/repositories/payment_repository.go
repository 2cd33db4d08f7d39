package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/covest/covest-service/internal/domain/entities"
	domainerrors "github.com/covest/covest-service/internal/domain/errors"
)

// PaymentRepository handles crypto payment persistence operations
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
	id, user_id, plan_key, amount, amount_usd, invoice_id, order_id, payment_url,
	status, created_at, updated_at`

// Create inserts a new payment row. The invoice id carries a unique
// constraint so a duplicated create surfaces as a conflict.
func (r *PaymentRepository) Create(ctx context.Context, p *entities.Payment) error {
	query := `
		INSERT INTO payments (
			user_id, plan_key, amount, amount_usd, invoice_id, order_id, payment_url,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		p.UserID, p.PlanKey, p.Amount, p.AmountUSD,
		p.InvoiceID, p.OrderID, p.PaymentURL, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByInvoiceID retrieves a payment by processor invoice id
func (r *PaymentRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*entities.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = $1`

	var p entities.Payment
	err := r.db.GetContext(ctx, &p, query, invoiceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// GetByOrderID retrieves a payment by our order reference
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*entities.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`

	var p entities.Payment
	err := r.db.GetContext(ctx, &p, query, orderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// UpdateStatus records an intermediate webhook status update
func (r *PaymentRepository) UpdateStatus(ctx context.Context, invoiceID string, status entities.PaymentStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = NOW() WHERE invoice_id = $2`,
		status, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrPaymentNotFound
	}
	return nil
}

// Settle moves a payment into a settled status only if it has not already
// settled. Returns true on the first settle, false on webhook redelivery.
func (r *PaymentRepository) Settle(ctx context.Context, invoiceID string, status entities.PaymentStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = $1, updated_at = NOW()
		WHERE invoice_id = $2 AND status NOT IN ('confirmed', 'finished')`,
		status, invoiceID)
	if err != nil {
		return false, fmt.Errorf("failed to settle payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ListByUser returns a user's payment history, newest first
func (r *PaymentRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]entities.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	var rows []entities.Payment
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return rows, nil
}
