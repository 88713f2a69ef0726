// Package repository persists payment orders. State transitions are
// conditional updates keyed on the expected current status, so a concurrent
// transition loses cleanly with domain.ErrInvalidState instead of clobbering.
package repository

import (
	"context"
	"time"

	"github.com/assignx/payments/internal/models"
	"github.com/google/uuid"
)

// OrderStore is the contract implemented by payment-order backends.
type OrderStore interface {
	// Create persists a new order in CREATED state.
	Create(ctx context.Context, order *models.PaymentOrder) error

	// Get returns the order or domain.ErrOrderNotFound.
	Get(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error)

	// GetByGatewayOrderID resolves the webhook path's gateway order id.
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error)

	// Transition moves the order from exactly the given status to the next
	// one, stamping confirmed_at/settled_at/failure_reason as appropriate.
	// Fails with domain.ErrInvalidState when the order is no longer in the
	// expected status, domain.ErrOrderNotFound when it does not exist.
	Transition(ctx context.Context, id uuid.UUID, from, to, reason string) (*models.PaymentOrder, error)

	// ListStaleCreated returns orders stuck in CREATED since before cutoff,
	// oldest first, for the expiry sweep.
	ListStaleCreated(ctx context.Context, cutoff time.Time, limit int32) ([]models.PaymentOrder, error)
}
