package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/covest/covest-service/internal/domain/entities"
	domainerrors "github.com/covest/covest-service/internal/domain/errors"
	"github.com/covest/covest-service/pkg/logger"
)

type fakeSettlement struct {
	calls []string
	err   error
}

func (f *fakeSettlement) SettlePurchase(_ context.Context, invoiceID string, _ entities.PaymentStatus) error {
	f.calls = append(f.calls, invoiceID)
	return f.err
}

type fakePaymentStore struct {
	statuses map[string]entities.PaymentStatus
}

func (f *fakePaymentStore) UpdateStatus(_ context.Context, invoiceID string, status entities.PaymentStatus) error {
	if f.statuses == nil {
		f.statuses = make(map[string]entities.PaymentStatus)
	}
	f.statuses[invoiceID] = status
	return nil
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newWebhookRouter(settlement *fakeSettlement, store *fakePaymentStore, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandlers(settlement, store, secret, logger.New("debug", "test"))
	router := gin.New()
	router.POST("/webhook", h.HandlePaymentWebhook)
	return router
}

func postWebhook(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPaymentWebhook_SignatureVerification(t *testing.T) {
	body := []byte(`{"invoice_id":"inv-1","payment_status":"confirmed","order_id":"7-pro-abc"}`)

	t.Run("valid signature settles", func(t *testing.T) {
		settlement := &fakeSettlement{}
		router := newWebhookRouter(settlement, &fakePaymentStore{}, "test-secret")

		w := postWebhook(router, body, signBody("test-secret", body))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"inv-1"}, settlement.calls)
	})

	t.Run("prefixed signature accepted", func(t *testing.T) {
		settlement := &fakeSettlement{}
		router := newWebhookRouter(settlement, &fakePaymentStore{}, "test-secret")

		w := postWebhook(router, body, "sha256="+signBody("test-secret", body))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid signature rejected before processing", func(t *testing.T) {
		settlement := &fakeSettlement{}
		router := newWebhookRouter(settlement, &fakePaymentStore{}, "test-secret")

		w := postWebhook(router, body, "deadbeef")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, settlement.calls)
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		settlement := &fakeSettlement{}
		router := newWebhookRouter(settlement, &fakePaymentStore{}, "test-secret")

		w := postWebhook(router, body, "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, settlement.calls)
	})

	t.Run("tampered body rejected", func(t *testing.T) {
		settlement := &fakeSettlement{}
		router := newWebhookRouter(settlement, &fakePaymentStore{}, "test-secret")

		tampered := []byte(`{"invoice_id":"inv-1","payment_status":"confirmed","order_id":"7-vip-abc"}`)
		w := postWebhook(router, tampered, signBody("test-secret", body))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, settlement.calls)
	})
}

func TestPaymentWebhook_StatusRouting(t *testing.T) {
	const secret = "test-secret"

	t.Run("redelivery of settled invoice returns 200", func(t *testing.T) {
		settlement := &fakeSettlement{err: domainerrors.ErrPaymentAlreadyProcessed}
		router := newWebhookRouter(settlement, &fakePaymentStore{}, secret)

		body := []byte(`{"invoice_id":"inv-2","payment_status":"finished"}`)
		w := postWebhook(router, body, signBody(secret, body))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("failed status persists without settling", func(t *testing.T) {
		settlement := &fakeSettlement{}
		store := &fakePaymentStore{}
		router := newWebhookRouter(settlement, store, secret)

		body := []byte(`{"invoice_id":"inv-3","payment_status":"failed"}`)
		w := postWebhook(router, body, signBody(secret, body))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, settlement.calls)
		assert.Equal(t, entities.PaymentStatusFailed, store.statuses["inv-3"])
	})

	t.Run("intermediate status persists", func(t *testing.T) {
		settlement := &fakeSettlement{}
		store := &fakePaymentStore{}
		router := newWebhookRouter(settlement, store, secret)

		body := []byte(`{"invoice_id":"inv-4","payment_status":"waiting"}`)
		w := postWebhook(router, body, signBody(secret, body))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, settlement.calls)
		assert.Equal(t, entities.PaymentStatus("waiting"), store.statuses["inv-4"])
	})

	t.Run("missing invoice id rejected", func(t *testing.T) {
		settlement := &fakeSettlement{}
		router := newWebhookRouter(settlement, &fakePaymentStore{}, secret)

		body := []byte(`{"payment_status":"confirmed"}`)
		w := postWebhook(router, body, signBody(secret, body))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, settlement.calls)
	})
}
