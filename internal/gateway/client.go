package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/assignx/payments/internal/domain"
)

// Client talks to a hosted checkout provider over its REST API.
// Amounts cross the wire in minor units; signatures use the key secret.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  []byte
	minAmount  int64
	httpClient *http.Client
}

// ClientConfig carries the credentials and limits for the hosted gateway.
type ClientConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	MinAmount int64 // minor units
	Timeout   time.Duration
}

// NewClient builds a gateway client. Timeout defaults to 10s.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	minAmount := cfg.MinAmount
	if minAmount <= 0 {
		minAmount = domain.DefaultGatewayMinAmount
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		keyID:      cfg.KeyID,
		keySecret:  []byte(cfg.KeySecret),
		minAmount:  minAmount,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CreateRemoteOrder registers the charge with the provider.
func (c *Client) CreateRemoteOrder(ctx context.Context, amount domain.Money, metadata map[string]string) (*RemoteOrder, error) {
	if amount.Amount < c.minAmount {
		return nil, fmt.Errorf("%w: amount %d below gateway minimum %d", domain.ErrInvalidAmount, amount.Amount, c.minAmount)
	}

	body, err := json.Marshal(createOrderRequest{
		Amount:   amount.Amount,
		Currency: amount.Currency,
		Notes:    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("encode order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, string(c.keySecret))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: gateway returned %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: gateway rejected order", domain.ErrInvalidAmount)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return nil, fmt.Errorf("%w: unexpected gateway status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	order, err := decodeOrderResponse(resp)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// decodeOrderResponse parses the provider payload strictly: unknown fields and
// missing required fields are rejected, not best-effort extracted.
func decodeOrderResponse(resp *http.Response) (*RemoteOrder, error) {
	dec := json.NewDecoder(resp.Body)
	dec.DisallowUnknownFields()

	var payload createOrderResponse
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed gateway order payload: %w", err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("malformed gateway order payload: missing order id")
	}
	if payload.Amount <= 0 {
		return nil, fmt.Errorf("malformed gateway order payload: missing amount")
	}
	if payload.Currency == "" {
		return nil, fmt.Errorf("malformed gateway order payload: missing currency")
	}
	return &RemoteOrder{
		GatewayOrderID: payload.ID,
		Amount:         payload.Amount,
		Currency:       payload.Currency,
	}, nil
}

// VerifySignature checks the checkout HMAC attached to a confirmed payment.
func (c *Client) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return VerifyHMAC(c.keySecret, gatewayOrderID, gatewayPaymentID, signature)
}
