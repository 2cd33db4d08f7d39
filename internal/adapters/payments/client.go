// Package payments talks to the crypto payment processor that collects plan
// purchases. Settlement happens over the processor's webhook; this client
// only creates invoices and polls their status.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/covest/covest-service/internal/infrastructure/config"
	"github.com/covest/covest-service/pkg/logger"
)

// Invoice is the processor's view of a pending purchase.
type Invoice struct {
	InvoiceID  string          `json:"id"`
	OrderID    string          `json:"order_id"`
	PaymentURL string          `json:"invoice_url"`
	PayAmount  decimal.Decimal `json:"price_amount"`
	Status     string          `json:"payment_status"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(cfg config.PaymentConfig, log *logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// CreateInvoice opens an invoice for amount SOL under orderID and returns
// the processor's invoice reference and hosted payment page.
func (c *Client) CreateInvoice(ctx context.Context, orderID string, amount decimal.Decimal, description string) (*Invoice, error) {
	body := map[string]interface{}{
		"price_amount":      amount,
		"price_currency":    "sol",
		"pay_currency":      "sol",
		"order_id":          orderID,
		"order_description": description,
	}
	var inv Invoice
	if err := c.do(ctx, http.MethodPost, "/invoice", body, &inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return &inv, nil
}

// GetInvoiceStatus fetches the current processor-side status of an invoice.
func (c *Client) GetInvoiceStatus(ctx context.Context, invoiceID string) (string, error) {
	var inv Invoice
	if err := c.do(ctx, http.MethodGet, "/invoice/"+invoiceID, nil, &inv); err != nil {
		return "", fmt.Errorf("get invoice %s: %w", invoiceID, err)
	}
	return inv.Status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("processor returned status %d: %s", resp.StatusCode, string(raw))
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
