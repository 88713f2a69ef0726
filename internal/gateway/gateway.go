// Package gateway isolates all interaction with the external payment
// processor. It is the only package permitted to hold gateway credentials;
// everything above it consumes the Gateway interface.
package gateway

import (
	"context"

	"github.com/assignx/payments/internal/domain"
)

// RemoteOrder is the gateway's record of a payment attempt.
type RemoteOrder struct {
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"` // minor units, echoed by the gateway
	Currency       string `json:"currency"`
}

// Gateway represents the external payment gateway interface.
type Gateway interface {
	// CreateRemoteOrder registers a charge with the gateway.
	// Fails with domain.ErrGatewayUnavailable on network/service failure
	// (retryable by the caller) or domain.ErrInvalidAmount below the gateway
	// minimum.
	CreateRemoteOrder(ctx context.Context, amount domain.Money, metadata map[string]string) (*RemoteOrder, error)

	// VerifySignature checks the gateway's HMAC over an order/payment pair.
	// Callers must never credit a ledger on a false return.
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
}
