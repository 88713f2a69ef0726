package models

import (
	"time"

	"github.com/assignx/payments/internal/domain"
	"github.com/google/uuid"
)

// Wallet is the cached read model of a ledger. Balance always equals the
// balance_after of the wallet's most recent entry; the ledger store is its
// only writer.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Balance   int64     `json:"balance"` // minor units
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// LedgerEntry is one atomic balance change for one wallet. Entries are
// append-only; they are never mutated or deleted.
type LedgerEntry struct {
	ID             uuid.UUID `json:"id"`
	WalletID       uuid.UUID `json:"wallet_id"`
	Direction      string    `json:"direction"` // "debit" or "credit"
	Amount         int64     `json:"amount"`    // minor units, always positive
	Currency       string    `json:"currency"`
	BalanceAfter   int64     `json:"balance_after"`
	ReferenceType  string    `json:"reference_type"`
	ReferenceID    string    `json:"reference_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
}

// Reference links a ledger entry to its originating order, project or
// withdrawal. Opaque foreign key; the ledger does not dereference it.
type Reference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// PaymentOrder is one external-gateway payment attempt.
// Status walks CREATED -> CONFIRMED -> SETTLED, with FAILED and CANCELLED
// reachable from CREATED or CONFIRMED only.
type PaymentOrder struct {
	ID                uuid.UUID                   `json:"id"`
	WalletID          *uuid.UUID                  `json:"wallet_id,omitempty"`           // credited wallet for topups
	RecipientWalletID *uuid.UUID                  `json:"recipient_wallet_id,omitempty"` // doer wallet for project payments
	Amount            int64                       `json:"amount"`
	Currency          string                      `json:"currency"`
	Purpose           string                      `json:"purpose"` // "topup" or "project_payment"
	Status            string                      `json:"status"`
	GatewayOrderID    string                      `json:"gateway_order_id"`
	SplitRule         *domain.CommissionSplitRule `json:"split_rule,omitempty"` // pinned at creation for project payments
	ReferenceID       string                      `json:"reference_id,omitempty"`
	FailureReason     string                      `json:"failure_reason,omitempty"`
	CreatedAt         time.Time                   `json:"created_at"`
	ConfirmedAt       *time.Time                  `json:"confirmed_at,omitempty"`
	SettledAt         *time.Time                  `json:"settled_at,omitempty"`
}

// Terminal reports whether no further transitions are permitted.
func (o *PaymentOrder) Terminal() bool {
	switch o.Status {
	case domain.OrderStatusSettled, domain.OrderStatusFailed, domain.OrderStatusCancelled:
		return true
	}
	return false
}
