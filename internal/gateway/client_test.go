package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/assignx/payments/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatewayAmount(t *testing.T, amount int64) domain.Money {
	t.Helper()
	m, err := domain.NewMoney(amount, "INR")
	require.NoError(t, err)
	return m
}

func TestClientCreateRemoteOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key-id", user)
		assert.Equal(t, "key-secret", pass)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"order_123","amount":50000,"currency":"INR","status":"created"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, KeyID: "key-id", KeySecret: "key-secret"})
	order, err := client.CreateRemoteOrder(context.Background(), gatewayAmount(t, 50_000), map[string]string{"purpose": "topup"})
	require.NoError(t, err)
	assert.Equal(t, "order_123", order.GatewayOrderID)
	assert.Equal(t, int64(50_000), order.Amount)
	assert.Equal(t, "INR", order.Currency)
}

func TestClientRejectsBelowMinimumBeforeCalling(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://unreachable.invalid", KeySecret: "s"})
	_, err := client.CreateRemoteOrder(context.Background(), gatewayAmount(t, 99), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestClientMapsServerErrorsToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, KeySecret: "s"})
	_, err := client.CreateRemoteOrder(context.Background(), gatewayAmount(t, 50_000), nil)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestClientRejectsUnrecognizedPayloadShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown field", `{"id":"order_1","amount":100,"currency":"INR","status":"created","surprise":true}`},
		{"missing id", `{"amount":100,"currency":"INR","status":"created"}`},
		{"missing amount", `{"id":"order_1","currency":"INR","status":"created"}`},
		{"missing currency", `{"id":"order_1","amount":100,"status":"created"}`},
		{"not json", `<html>gateway error</html>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := NewClient(ClientConfig{BaseURL: server.URL, KeySecret: "s"})
			_, err := client.CreateRemoteOrder(context.Background(), gatewayAmount(t, 50_000), nil)
			assert.Error(t, err)
		})
	}
}

func TestVerifyHMAC(t *testing.T) {
	secret := []byte("checkout-secret")
	sig := Sign(secret, "order_1", "pay_1")

	assert.True(t, VerifyHMAC(secret, "order_1", "pay_1", sig))
	assert.False(t, VerifyHMAC(secret, "order_1", "pay_2", sig))
	assert.False(t, VerifyHMAC(secret, "order_2", "pay_1", sig))
	assert.False(t, VerifyHMAC(secret, "order_1", "pay_1", sig+"00"))
	assert.False(t, VerifyHMAC(nil, "order_1", "pay_1", sig))
}

func TestMockGatewayRoundTrip(t *testing.T) {
	mock := NewMockGateway("mock-secret")

	order, err := mock.CreateRemoteOrder(context.Background(), gatewayAmount(t, 50_000), nil)
	require.NoError(t, err)
	assert.True(t, mock.KnowsOrder(order.GatewayOrderID))

	sig := mock.SignPayment(order.GatewayOrderID, "pay_1")
	assert.True(t, mock.VerifySignature(order.GatewayOrderID, "pay_1", sig))
	assert.False(t, mock.VerifySignature(order.GatewayOrderID, "pay_1", "bogus"))

	mock.Unavailable = true
	_, err = mock.CreateRemoteOrder(context.Background(), gatewayAmount(t, 50_000), nil)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}
