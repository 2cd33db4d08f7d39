package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/covest/covest-service/internal/domain/entities"
	domainerrors "github.com/covest/covest-service/internal/domain/errors"
	"github.com/covest/covest-service/pkg/logger"
	"github.com/covest/covest-service/pkg/metrics"
)

// SettlementInterface applies a settled purchase to the buyer and upline.
type SettlementInterface interface {
	SettlePurchase(ctx context.Context, invoiceID string, status entities.PaymentStatus) error
}

// PaymentStatusStore persists non-settling status transitions.
type PaymentStatusStore interface {
	UpdateStatus(ctx context.Context, invoiceID string, status entities.PaymentStatus) error
}

// WebhookHandlers receives payment processor callbacks
type WebhookHandlers struct {
	settlement    SettlementInterface
	payments      PaymentStatusStore
	webhookSecret string
	logger        *logger.Logger
}

// NewWebhookHandlers creates a new WebhookHandlers instance
func NewWebhookHandlers(settlement SettlementInterface, payments PaymentStatusStore,
	webhookSecret string, logger *logger.Logger) *WebhookHandlers {
	return &WebhookHandlers{
		settlement:    settlement,
		payments:      payments,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// HandlePaymentWebhook handles POST /api/v1/webhooks/payments. The processor
// redelivers until it sees 200, so every path through here must be
// idempotent.
func (h *WebhookHandlers) HandlePaymentWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues("invalid").Inc()
		SendBadRequest(c, ErrCodeInvalidRequest, "Failed to read request body")
		return
	}

	if err := h.verifySignature(c, rawBody); err != nil {
		metrics.WebhooksReceived.WithLabelValues("rejected").Inc()
		h.logger.Warn("webhook signature rejected", "error", err)
		SendDomainError(c, domainerrors.ErrInvalidWebhookSignature)
		return
	}

	var payload entities.PaymentWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		metrics.WebhooksReceived.WithLabelValues("invalid").Inc()
		SendBadRequest(c, ErrCodeInvalidRequest, "Invalid webhook payload")
		return
	}
	if payload.InvoiceID == "" {
		metrics.WebhooksReceived.WithLabelValues("invalid").Inc()
		SendBadRequest(c, ErrCodeValidationError, "invoice_id is required")
		return
	}

	status := entities.PaymentStatus(payload.PaymentStatus)
	h.logger.Info("payment webhook received",
		"invoice_id", payload.InvoiceID,
		"status", payload.PaymentStatus,
		"order_id", payload.OrderID)

	switch status {
	case entities.PaymentStatusConfirmed, entities.PaymentStatusFinished:
		err = h.settlement.SettlePurchase(c.Request.Context(), payload.InvoiceID, status)
		if errors.Is(err, domainerrors.ErrPaymentAlreadyProcessed) {
			// Redelivery of an already-settled invoice.
			err = nil
		}
	case entities.PaymentStatusFailed, entities.PaymentStatusExpired:
		err = h.payments.UpdateStatus(c.Request.Context(), payload.InvoiceID, status)
	default:
		// waiting, confirming, partially_paid and the like: keep the
		// latest processor state for the status poller.
		err = h.payments.UpdateStatus(c.Request.Context(), payload.InvoiceID, status)
	}

	if err != nil {
		metrics.WebhooksReceived.WithLabelValues("failed").Inc()
		h.logger.Error("webhook processing failed",
			"invoice_id", payload.InvoiceID, "status", payload.PaymentStatus, "error", err)
		SendDomainError(c, err)
		return
	}

	metrics.WebhooksReceived.WithLabelValues("processed").Inc()
	SendSuccess(c, gin.H{"received": true})
}

func (h *WebhookHandlers) verifySignature(c *gin.Context, rawBody []byte) error {
	if h.webhookSecret == "" {
		// Deliberately permissive only outside production; config
		// validation refuses an empty secret there.
		return nil
	}
	signature := c.GetHeader("X-Webhook-Signature")
	if signature == "" {
		signature = c.GetHeader("X-Hub-Signature-256")
	}
	return verifyHMACSignature(rawBody, signature, h.webhookSecret)
}

// verifyHMACSignature verifies an HMAC-SHA256 webhook signature
func verifyHMACSignature(payload []byte, signature, secret string) error {
	if signature == "" {
		return fmt.Errorf("missing signature header")
	}

	signature = strings.TrimPrefix(signature, "sha256=")
	signature = strings.TrimPrefix(signature, "hmac-sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
