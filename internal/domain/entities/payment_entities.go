package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks the payment processor's lifecycle for a plan
// purchase. Only confirmed/finished trigger settlement.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFinished  PaymentStatus = "finished"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusExpired   PaymentStatus = "expired"
)

// IsSettled reports whether the payment already credited a plan.
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentStatusConfirmed || s == PaymentStatusFinished
}

// Payment is one plan-purchase invoice. InvoiceID/OrderID are the
// idempotency keys for webhook redelivery.
type Payment struct {
	ID         int64           `db:"id" json:"id"`
	UserID     int64           `db:"user_id" json:"user_id"`
	PlanKey    string          `db:"plan_key" json:"plan_key"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	AmountUSD  decimal.Decimal `db:"amount_usd" json:"amount_usd"`
	InvoiceID  string          `db:"invoice_id" json:"invoice_id"`
	OrderID    string          `db:"order_id" json:"order_id"`
	PaymentURL *string         `db:"payment_url" json:"payment_url,omitempty"`
	Status     PaymentStatus   `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentWebhookPayload is the processor's callback body. Field names are
// fixed by the processor's API.
type PaymentWebhookPayload struct {
	InvoiceID     string  `json:"invoice_id"`
	PaymentStatus string  `json:"payment_status"`
	PayAmount     float64 `json:"pay_amount"`
	OrderID       string  `json:"order_id"`
}
