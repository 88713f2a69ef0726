package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/assignx/payments/internal/api/middleware"
	"github.com/assignx/payments/internal/config"
	"github.com/assignx/payments/internal/domain"
	"github.com/assignx/payments/internal/gateway"
	"github.com/assignx/payments/internal/ledger"
	"github.com/assignx/payments/internal/models"
	"github.com/assignx/payments/internal/repository"
	"github.com/assignx/payments/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret = "0123456789abcdef0123456789abcdef"
	testIssuer    = "assignx-payments"
	testAudience  = "assignx-api"
)

type apiFixture struct {
	router   chi.Router
	ledger   ledger.Store
	gateway  *gateway.MockGateway
	platform uuid.UUID
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testIssuer, testAudience)

	ledgerStore := ledger.NewInMemory()
	orderStore := repository.NewInMemoryOrderStore()
	gw := gateway.NewMockGateway("test-webhook-secret")

	platform, err := ledgerStore.CreateWallet(context.Background(), domain.PlatformOwnerID, domain.DefaultCurrency)
	require.NoError(t, err)

	orchestrator := service.NewPaymentOrchestrator(orderStore, ledgerStore, gw, platform.ID, domain.StandardSplitRule(), domain.DefaultGatewayMinAmount)

	cfg := &config.Config{
		PublicRateLimitRPS: 1000,
		AuthRateLimitRPS:   1000,
	}
	router := NewRouter(cfg, zap.NewNop(), nil, nil, ledgerStore, orchestrator, nil)

	return &apiFixture{
		router:   router.Routes(),
		ledger:   ledgerStore,
		gateway:  gw,
		platform: platform.ID,
	}
}

func signToken(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"sub":     userID.String(),
		"iss":     testIssuer,
		"aud":     testAudience,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/wallets", "", map[string]string{"currency": "INR"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	req := httptest.NewRequest(http.MethodGet, "/v1/payments/orders/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTopupOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	userID := uuid.New()
	token := signToken(t, userID, "user")

	rec := f.do(t, http.MethodPost, "/v1/wallets", token, map[string]string{"currency": "INR"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var wallet models.Wallet
	decodeJSON(t, rec, &wallet)
	assert.Equal(t, userID, wallet.OwnerID)

	rec = f.do(t, http.MethodPost, "/v1/payments/orders", token, map[string]interface{}{
		"wallet_id": wallet.ID,
		"amount":    50000,
		"currency":  "INR",
		"purpose":   "topup",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order models.PaymentOrder
	decodeJSON(t, rec, &order)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)

	sig := f.gateway.SignPayment(order.GatewayOrderID, "pay_http")
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v1/payments/orders/%s/confirm", order.ID), token, map[string]string{
		"gateway_payment_id": "pay_http",
		"signature":          sig,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result service.ConfirmResult
	decodeJSON(t, rec, &result)
	assert.Equal(t, "settled", result.Status)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/wallets/%s/balance", wallet.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance struct {
		Balance  int64  `json:"balance"`
		Currency string `json:"currency"`
	}
	decodeJSON(t, rec, &balance)
	assert.Equal(t, int64(50000), balance.Balance)
	assert.Equal(t, "INR", balance.Currency)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/wallets/%s/entries", wallet.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entriesResp struct {
		Entries []models.LedgerEntry `json:"entries"`
	}
	decodeJSON(t, rec, &entriesResp)
	require.Len(t, entriesResp.Entries, 1)
	assert.Equal(t, int64(50000), entriesResp.Entries[0].BalanceAfter)
}

func TestConfirmBadSignatureOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	userID := uuid.New()
	token := signToken(t, userID, "user")

	rec := f.do(t, http.MethodPost, "/v1/wallets", token, map[string]string{"currency": "INR"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var wallet models.Wallet
	decodeJSON(t, rec, &wallet)

	rec = f.do(t, http.MethodPost, "/v1/payments/orders", token, map[string]interface{}{
		"wallet_id": wallet.ID,
		"amount":    10000,
		"currency":  "INR",
		"purpose":   "topup",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var order models.PaymentOrder
	decodeJSON(t, rec, &order)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v1/payments/orders/%s/confirm", order.ID), token, map[string]string{
		"gateway_payment_id": "pay_evil",
		"signature":          "deadbeef",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/payments/orders/%s", order.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &order)
	assert.Equal(t, domain.OrderStatusFailed, order.Status)
}

func TestWebhookSettlesOrder(t *testing.T) {
	f := newAPIFixture(t)
	userID := uuid.New()
	token := signToken(t, userID, "user")

	rec := f.do(t, http.MethodPost, "/v1/wallets", token, map[string]string{"currency": "INR"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var wallet models.Wallet
	decodeJSON(t, rec, &wallet)

	rec = f.do(t, http.MethodPost, "/v1/payments/orders", token, map[string]interface{}{
		"wallet_id": wallet.ID,
		"amount":    25000,
		"currency":  "INR",
		"purpose":   "topup",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var order models.PaymentOrder
	decodeJSON(t, rec, &order)

	// No bearer token; the webhook authenticates by signature.
	sig := f.gateway.SignPayment(order.GatewayOrderID, "pay_hook")
	rec = f.do(t, http.MethodPost, "/v1/webhooks/payment", "", map[string]string{
		"gateway_order_id":   order.GatewayOrderID,
		"gateway_payment_id": "pay_hook",
		"signature":          sig,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Redelivery replays without a second credit.
	rec = f.do(t, http.MethodPost, "/v1/webhooks/payment", "", map[string]string{
		"gateway_order_id":   order.GatewayOrderID,
		"gateway_payment_id": "pay_hook",
		"signature":          sig,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	balance, err := f.ledger.BalanceOf(context.Background(), wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), balance.Amount)
}

func TestWebhookRejectsBadPayloads(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/webhooks/payment", "", map[string]string{
		"gateway_order_id":   "order_x",
		"gateway_payment_id": "pay_x",
		"signature":          "bogus",
		"extra":              "field",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields must be rejected")

	rec = f.do(t, http.MethodPost, "/v1/webhooks/payment", "", map[string]string{
		"gateway_order_id": "order_x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/webhooks/payment", "", map[string]string{
		"gateway_order_id":   "order_unknown",
		"gateway_payment_id": "pay_x",
		"signature":          "bogus",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWalletOwnershipEnforced(t *testing.T) {
	f := newAPIFixture(t)
	ownerToken := signToken(t, uuid.New(), "user")
	intruderToken := signToken(t, uuid.New(), "user")
	adminToken := signToken(t, uuid.New(), "admin")

	rec := f.do(t, http.MethodPost, "/v1/wallets", ownerToken, map[string]string{"currency": "INR"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var wallet models.Wallet
	decodeJSON(t, rec, &wallet)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/wallets/%s/balance", wallet.ID), intruderToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/wallets/%s/balance", wallet.ID), adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWalletDebitOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	userID := uuid.New()
	token := signToken(t, userID, "user")

	rec := f.do(t, http.MethodPost, "/v1/wallets", token, map[string]string{"currency": "INR"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var wallet models.Wallet
	decodeJSON(t, rec, &wallet)

	fund := domain.Money{Amount: 8000, Currency: "INR"}
	_, err := f.ledger.Append(context.Background(), wallet.ID, domain.DirectionCredit, fund, models.Reference{Type: domain.RefTypeOrder, ID: "seed"}, "seed")
	require.NoError(t, err)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v1/wallets/%s/debits", wallet.ID), token, map[string]interface{}{
		"amount":       3000,
		"currency":     "INR",
		"reference_id": "withdrawal-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var entry models.LedgerEntry
	decodeJSON(t, rec, &entry)
	assert.Equal(t, domain.DirectionDebit, entry.Direction)
	assert.Equal(t, int64(5000), entry.BalanceAfter)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v1/wallets/%s/debits", wallet.ID), token, map[string]interface{}{
		"amount":       99999,
		"currency":     "INR",
		"reference_id": "withdrawal-2",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCancelOrderOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	token := signToken(t, uuid.New(), "user")

	rec := f.do(t, http.MethodPost, "/v1/wallets", token, map[string]string{"currency": "INR"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var wallet models.Wallet
	decodeJSON(t, rec, &wallet)

	rec = f.do(t, http.MethodPost, "/v1/payments/orders", token, map[string]interface{}{
		"wallet_id": wallet.ID,
		"amount":    10000,
		"currency":  "INR",
		"purpose":   "topup",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var order models.PaymentOrder
	decodeJSON(t, rec, &order)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v1/payments/orders/%s/cancel", order.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &order)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v1/payments/orders/%s/cancel", order.ID), token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthAndSpecEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "/v1/payments/orders")

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
