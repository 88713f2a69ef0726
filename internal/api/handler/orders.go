package handler

import (
	"encoding/json"
	"net/http"

	"github.com/assignx/payments/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderHandler handles HTTP requests for payment orders.
type OrderHandler struct {
	orchestrator *service.PaymentOrchestrator
}

func NewOrderHandler(orchestrator *service.PaymentOrchestrator) *OrderHandler {
	return &OrderHandler{orchestrator: orchestrator}
}

// CreateOrderRequest represents the request body for creating a payment order.
type CreateOrderRequest struct {
	WalletID          string `json:"wallet_id,omitempty"`
	RecipientWalletID string `json:"recipient_wallet_id,omitempty"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Purpose           string `json:"purpose"`
	ReferenceID       string `json:"reference_id,omitempty"`
}

// CreateOrder handles POST /v1/payments/orders.
// Registers the charge with the gateway and returns the order in CREATED state.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Idempotency-Key") == "" {
		RespondError(w, r, http.StatusBadRequest, "idempotency/missing-key", "Idempotency-Key header is required")
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Amount <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "Amount must be greater than zero")
		return
	}
	if req.Currency == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-currency", "currency is required")
		return
	}

	svcReq := service.CreateOrderRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Purpose:     req.Purpose,
		ReferenceID: req.ReferenceID,
	}
	if req.WalletID != "" {
		id, err := uuid.Parse(req.WalletID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid wallet_id")
			return
		}
		svcReq.WalletID = &id
	}
	if req.RecipientWalletID != "" {
		id, err := uuid.Parse(req.RecipientWalletID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid recipient_wallet_id")
			return
		}
		svcReq.RecipientWalletID = &id
	}

	order, err := h.orchestrator.CreateOrder(r.Context(), svcReq)
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		zap.L().Error("create payment order failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "orders/create-failed", "Failed to create payment order")
		return
	}

	RespondJSON(w, http.StatusCreated, order)
}

// GetOrder handles GET /v1/payments/orders/{id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-order-id", "Invalid order ID")
		return
	}

	order, err := h.orchestrator.GetOrder(r.Context(), orderID)
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		zap.L().Error("get payment order failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "orders/get-failed", "Failed to load payment order")
		return
	}

	RespondJSON(w, http.StatusOK, order)
}

// ConfirmOrderRequest carries the gateway's checkout result.
type ConfirmOrderRequest struct {
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

// ConfirmOrder handles POST /v1/payments/orders/{id}/confirm.
// Verifies the gateway signature and settles the order into the ledger.
func (h *OrderHandler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-order-id", "Invalid order ID")
		return
	}

	var req ConfirmOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.GatewayPaymentID == "" || req.Signature == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-field", "gateway_payment_id and signature are required")
		return
	}

	result, err := h.orchestrator.ConfirmPayment(r.Context(), orderID, req.GatewayPaymentID, req.Signature)
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		zap.L().Error("confirm payment order failed", zap.Error(err), zap.String("order_id", orderID.String()))
		RespondError(w, r, http.StatusInternalServerError, "orders/confirm-failed", "Failed to confirm payment order")
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// CancelOrder handles POST /v1/payments/orders/{id}/cancel.
// Only CREATED orders can be cancelled; nothing touches the ledger.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-order-id", "Invalid order ID")
		return
	}

	order, err := h.orchestrator.CancelOrder(r.Context(), orderID)
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		zap.L().Error("cancel payment order failed", zap.Error(err), zap.String("order_id", orderID.String()))
		RespondError(w, r, http.StatusInternalServerError, "orders/cancel-failed", "Failed to cancel payment order")
		return
	}

	RespondJSON(w, http.StatusOK, order)
}
