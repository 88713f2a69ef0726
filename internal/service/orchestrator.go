package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/assignx/payments/internal/domain"
	"github.com/assignx/payments/internal/gateway"
	"github.com/assignx/payments/internal/ledger"
	"github.com/assignx/payments/internal/models"
	"github.com/assignx/payments/internal/observability"
	"github.com/assignx/payments/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentOrchestrator owns the payment order state machine:
// CREATED -> CONFIRMED -> SETTLED, with FAILED and CANCELLED reachable from
// CREATED or CONFIRMED only. Settlement is the point where the gateway's
// confirmation is durably reflected in the ledger; partial success is never
// reported as success.
type PaymentOrchestrator struct {
	orders           repository.OrderStore
	ledger           ledger.Store
	gateway          gateway.Gateway
	platformWalletID uuid.UUID
	splitRule        domain.CommissionSplitRule
	gatewayMin       int64
}

// NewPaymentOrchestrator wires the orchestrator. splitRule is pinned onto
// project-payment orders at creation time so historical orders stay auditable
// if the platform rate ever changes.
func NewPaymentOrchestrator(orders repository.OrderStore, ledgerStore ledger.Store, gw gateway.Gateway, platformWalletID uuid.UUID, splitRule domain.CommissionSplitRule, gatewayMin int64) *PaymentOrchestrator {
	if gatewayMin <= 0 {
		gatewayMin = domain.DefaultGatewayMinAmount
	}
	return &PaymentOrchestrator{
		orders:           orders,
		ledger:           ledgerStore,
		gateway:          gw,
		platformWalletID: platformWalletID,
		splitRule:        splitRule,
		gatewayMin:       gatewayMin,
	}
}

// CreateOrderRequest holds the parameters for starting a payment attempt.
type CreateOrderRequest struct {
	WalletID          *uuid.UUID // credited wallet; required for topups
	RecipientWalletID *uuid.UUID // doer wallet; required for project payments
	Amount            int64      // minor units
	Currency          string
	Purpose           string // "topup" or "project_payment"
	ReferenceID       string // originating project/invoice, opaque
}

// CreateOrder validates the amount, registers the charge with the gateway and
// persists the order in CREATED state. Gateway failures propagate as
// domain.ErrGatewayUnavailable; retry policy belongs to the caller.
func (s *PaymentOrchestrator) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.PaymentOrder, error) {
	amount, err := domain.NewGatewayMoney(req.Amount, req.Currency, s.gatewayMin)
	if err != nil {
		return nil, err
	}

	order := &models.PaymentOrder{
		ID:       uuid.New(),
		Amount:   amount.Amount,
		Currency: amount.Currency,
		Purpose:  req.Purpose,
		Status:   domain.OrderStatusCreated,
	}

	switch req.Purpose {
	case domain.PurposeTopup:
		if req.WalletID == nil {
			return nil, fmt.Errorf("%w: topup requires a wallet", domain.ErrInvalidAmount)
		}
		if err := s.checkWalletCurrency(ctx, *req.WalletID, amount.Currency); err != nil {
			return nil, err
		}
		order.WalletID = req.WalletID
	case domain.PurposeProjectPayment:
		if req.RecipientWalletID == nil {
			return nil, fmt.Errorf("%w: project payment requires a recipient wallet", domain.ErrInvalidAmount)
		}
		if err := s.checkWalletCurrency(ctx, *req.RecipientWalletID, amount.Currency); err != nil {
			return nil, err
		}
		// The platform leg of the split settles into the platform wallet, so
		// its currency constrains project payments just like the recipient's.
		if err := s.checkWalletCurrency(ctx, s.platformWalletID, amount.Currency); err != nil {
			return nil, err
		}
		order.RecipientWalletID = req.RecipientWalletID
		rule := s.splitRule
		order.SplitRule = &rule
		order.ReferenceID = req.ReferenceID
	default:
		return nil, fmt.Errorf("%w: unsupported purpose %q", domain.ErrInvalidAmount, req.Purpose)
	}

	remote, err := s.gateway.CreateRemoteOrder(ctx, amount, map[string]string{
		"order_id": order.ID.String(),
		"purpose":  order.Purpose,
	})
	if err != nil {
		return nil, fmt.Errorf("create remote order: %w", err)
	}
	order.GatewayOrderID = remote.GatewayOrderID

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	zap.L().Info("payment order created",
		zap.String("order_id", order.ID.String()),
		zap.String("gateway_order_id", order.GatewayOrderID),
		zap.String("purpose", order.Purpose),
		zap.Int64("amount", order.Amount),
	)
	return order, nil
}

// ConfirmResult is the outcome reported to clients after confirmation.
type ConfirmResult struct {
	Status        string               `json:"status"` // "settled" or "failed"
	LedgerEntryID *uuid.UUID           `json:"ledger_entry_id,omitempty"`
	Order         *models.PaymentOrder `json:"order"`
}

// ConfirmPayment verifies the gateway signature and settles the order into
// the ledger. Both the browser callback and the webhook funnel through here;
// redeliveries of a settled order replay the recorded outcome without a
// second ledger entry. A signature failure marks the order FAILED and is
// logged as a security event, never downgraded to "treat as paid".
func (s *PaymentOrchestrator) ConfirmPayment(ctx context.Context, orderID uuid.UUID, gatewayPaymentID, signature string) (*ConfirmResult, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	verified := s.gateway.VerifySignature(order.GatewayOrderID, gatewayPaymentID, signature)

	if order.Status == domain.OrderStatusSettled {
		if !verified {
			s.logSignatureFailure(order, gatewayPaymentID)
			return nil, domain.ErrSignatureVerification
		}
		// Webhook redelivery: the appends below are idempotent, so this only
		// surfaces the entries recorded at first settlement.
		entryID, err := s.postSettlement(ctx, order)
		if err != nil {
			return nil, err
		}
		return &ConfirmResult{Status: "settled", LedgerEntryID: entryID, Order: order}, nil
	}
	if order.Status != domain.OrderStatusCreated {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrInvalidState, order.ID, order.Status)
	}

	if !verified {
		s.logSignatureFailure(order, gatewayPaymentID)
		failed, ferr := s.orders.Transition(ctx, order.ID, domain.OrderStatusCreated, domain.OrderStatusFailed, "signature verification failed")
		if ferr != nil {
			zap.L().Error("failed to mark order failed after signature rejection", zap.Error(ferr), zap.String("order_id", order.ID.String()))
		} else {
			order = failed
		}
		observability.IncrementOrderSettlement("signature_rejected")
		return nil, domain.ErrSignatureVerification
	}

	order, err = s.orders.Transition(ctx, order.ID, domain.OrderStatusCreated, domain.OrderStatusConfirmed, "")
	if err != nil {
		return nil, err
	}

	entryID, err := s.postSettlement(ctx, order)
	if err != nil {
		// Money acknowledged by the gateway but not posted; FAILED, never a
		// silent partial success.
		failed, ferr := s.orders.Transition(ctx, order.ID, domain.OrderStatusConfirmed, domain.OrderStatusFailed, err.Error())
		if ferr != nil {
			zap.L().Error("failed to mark order failed after settlement error", zap.Error(ferr), zap.String("order_id", order.ID.String()))
		} else {
			order = failed
		}
		observability.IncrementOrderSettlement("failed")
		return nil, fmt.Errorf("settle order %s: %w", order.ID, err)
	}

	order, err = s.orders.Transition(ctx, order.ID, domain.OrderStatusConfirmed, domain.OrderStatusSettled, "")
	if err != nil {
		return nil, err
	}

	observability.IncrementOrderSettlement("settled")
	zap.L().Info("payment order settled",
		zap.String("order_id", order.ID.String()),
		zap.String("gateway_payment_id", gatewayPaymentID),
		zap.Int64("amount", order.Amount),
	)
	return &ConfirmResult{Status: "settled", LedgerEntryID: entryID, Order: order}, nil
}

// ConfirmByGatewayOrder resolves the webhook's gateway order id and confirms.
func (s *PaymentOrchestrator) ConfirmByGatewayOrder(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (*ConfirmResult, error) {
	order, err := s.orders.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	return s.ConfirmPayment(ctx, order.ID, gatewayPaymentID, signature)
}

// postSettlement posts the order's credits to the ledger. Idempotency keys
// derive from the order id, so redelivered confirmations re-read the entries
// instead of double-crediting. Returns the primary credited entry.
func (s *PaymentOrchestrator) postSettlement(ctx context.Context, order *models.PaymentOrder) (*uuid.UUID, error) {
	amount := domain.Money{Amount: order.Amount, Currency: order.Currency}
	ref := models.Reference{Type: domain.RefTypeOrder, ID: order.ID.String()}

	switch order.Purpose {
	case domain.PurposeTopup:
		entry, err := s.ledger.Append(ctx, *order.WalletID, domain.DirectionCredit, amount, ref, order.ID.String())
		if err != nil {
			return nil, err
		}
		return &entry.ID, nil

	case domain.PurposeProjectPayment:
		if order.SplitRule == nil {
			return nil, fmt.Errorf("project payment order %s has no split rule", order.ID)
		}
		split := order.SplitRule.Split(amount)

		// Both legs post in one atomic append; a failure on either leg must
		// leave both wallets untouched.
		legs := make([]ledger.AppendLeg, 0, 2)
		if split.RecipientShare.Amount > 0 {
			legs = append(legs, ledger.AppendLeg{
				WalletID:       *order.RecipientWalletID,
				Direction:      domain.DirectionCredit,
				Amount:         split.RecipientShare,
				Reference:      ref,
				IdempotencyKey: order.ID.String() + ":recipient",
			})
		}
		if split.PlatformShare.Amount > 0 {
			legs = append(legs, ledger.AppendLeg{
				WalletID:       s.platformWalletID,
				Direction:      domain.DirectionCredit,
				Amount:         split.PlatformShare,
				Reference:      ref,
				IdempotencyKey: order.ID.String() + ":platform",
			})
		}
		entries, err := s.ledger.AppendAll(ctx, legs)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, nil
		}
		return &entries[0].ID, nil

	default:
		return nil, fmt.Errorf("unsupported order purpose %q", order.Purpose)
	}
}

// PayFromWallet debits a wallet directly, no gateway involved. The balance
// pre-check is best effort only; the authoritative check is the atomic debit
// inside Append, since the balance may move between check and append.
func (s *PaymentOrchestrator) PayFromWallet(ctx context.Context, walletID uuid.UUID, amount domain.Money, ref models.Reference, idempotencyKey string) (*models.LedgerEntry, error) {
	balance, err := s.ledger.BalanceOf(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if _, err := balance.Subtract(amount); err != nil {
		return nil, err
	}
	return s.ledger.Append(ctx, walletID, domain.DirectionDebit, amount, ref, idempotencyKey)
}

// CancelOrder voids a CREATED order with no ledger impact. A CONFIRMED order
// cannot be cancelled; it must reach SETTLED or FAILED first, money already
// acknowledged by the gateway is never dropped on the floor.
func (s *PaymentOrchestrator) CancelOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentOrder, error) {
	order, err := s.orders.Transition(ctx, orderID, domain.OrderStatusCreated, domain.OrderStatusCancelled, "cancelled by user")
	if err != nil {
		return nil, err
	}
	zap.L().Info("payment order cancelled", zap.String("order_id", order.ID.String()))
	return order, nil
}

// GetOrder returns the order for status polling.
func (s *PaymentOrchestrator) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentOrder, error) {
	return s.orders.Get(ctx, orderID)
}

func (s *PaymentOrchestrator) checkWalletCurrency(ctx context.Context, walletID uuid.UUID, currency string) error {
	wallet, err := s.ledger.GetWallet(ctx, walletID)
	if err != nil {
		return err
	}
	if wallet.Currency != currency {
		return fmt.Errorf("%w: wallet is %s, order is %s", domain.ErrCurrencyMismatch, wallet.Currency, currency)
	}
	return nil
}

func (s *PaymentOrchestrator) logSignatureFailure(order *models.PaymentOrder, gatewayPaymentID string) {
	observability.IncrementSignatureFailure()
	zap.L().Error("SECURITY: gateway signature verification failed",
		zap.String("order_id", order.ID.String()),
		zap.String("gateway_order_id", order.GatewayOrderID),
		zap.String("gateway_payment_id", gatewayPaymentID),
	)
}

// IsRetryable reports whether the error is transient and safe to retry with
// backoff at the call site.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrGatewayUnavailable)
}
