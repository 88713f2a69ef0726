package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/assignx/payments/internal/domain"
	"github.com/google/uuid"
)

// MockGateway simulates the external payment gateway for tests and local dev.
// Signatures are real HMACs over the mock secret, so confirmation paths can be
// exercised end to end without live credentials.
type MockGateway struct {
	// Secret signs mock checkout payloads.
	Secret []byte
	// MinAmount mirrors the hosted gateway minimum, in minor units.
	MinAmount int64
	// Unavailable makes CreateRemoteOrder fail with ErrGatewayUnavailable.
	Unavailable bool

	mu     sync.Mutex
	orders map[string]RemoteOrder
}

// NewMockGateway creates a MockGateway with default settings.
func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{
		Secret:    []byte(secret),
		MinAmount: domain.DefaultGatewayMinAmount,
		orders:    make(map[string]RemoteOrder),
	}
}

func (g *MockGateway) CreateRemoteOrder(ctx context.Context, amount domain.Money, _ map[string]string) (*RemoteOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if g.Unavailable {
		return nil, fmt.Errorf("%w: mock gateway offline", domain.ErrGatewayUnavailable)
	}
	if amount.Amount < g.MinAmount {
		return nil, fmt.Errorf("%w: amount %d below gateway minimum %d", domain.ErrInvalidAmount, amount.Amount, g.MinAmount)
	}

	order := RemoteOrder{
		GatewayOrderID: "order_" + uuid.NewString(),
		Amount:         amount.Amount,
		Currency:       amount.Currency,
	}
	g.mu.Lock()
	g.orders[order.GatewayOrderID] = order
	g.mu.Unlock()

	out := order
	return &out, nil
}

func (g *MockGateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return VerifyHMAC(g.Secret, gatewayOrderID, gatewayPaymentID, signature)
}

// SignPayment produces the checkout signature a real gateway would return,
// for driving confirmation flows in tests.
func (g *MockGateway) SignPayment(gatewayOrderID, gatewayPaymentID string) string {
	return Sign(g.Secret, gatewayOrderID, gatewayPaymentID)
}

// KnowsOrder reports whether the mock issued the given gateway order id.
func (g *MockGateway) KnowsOrder(gatewayOrderID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.orders[gatewayOrderID]
	return ok
}
