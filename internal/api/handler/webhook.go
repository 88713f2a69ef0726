package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/assignx/payments/internal/domain"
	"github.com/assignx/payments/internal/service"
	"go.uber.org/zap"
)

// WebhookHandler receives server-to-server payment notifications from the
// gateway. The webhook and the browser callback are alternative deliveries of
// the same confirmation; whichever lands first settles the order.
type WebhookHandler struct {
	orchestrator *service.PaymentOrchestrator
}

func NewWebhookHandler(orchestrator *service.PaymentOrchestrator) *WebhookHandler {
	return &WebhookHandler{orchestrator: orchestrator}
}

type paymentWebhookEvent struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

// HandlePaymentWebhook handles POST /v1/webhooks/payment.
// The payload is decoded strictly: unknown fields are rejected rather than
// silently dropped, since a shape change on the gateway side must surface.
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		zap.L().Error("read webhook body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	var event paymentWebhookEvent
	if err := dec.Decode(&event); err != nil {
		zap.L().Warn("malformed payment webhook", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "webhook/malformed-payload", "malformed webhook payload")
		return
	}
	if event.GatewayOrderID == "" || event.GatewayPaymentID == "" || event.Signature == "" {
		RespondError(w, r, http.StatusBadRequest, "webhook/missing-field", "gateway_order_id, gateway_payment_id and signature are required")
		return
	}

	result, err := h.orchestrator.ConfirmByGatewayOrder(r.Context(), event.GatewayOrderID, event.GatewayPaymentID, event.Signature)
	if err != nil {
		if errors.Is(err, domain.ErrSignatureVerification) {
			RespondError(w, r, http.StatusUnauthorized, "webhook/invalid-signature", "Invalid signature")
			return
		}
		if respondDomainError(w, r, err) {
			return
		}
		zap.L().Error("process payment webhook failed", zap.Error(err), zap.String("gateway_order_id", event.GatewayOrderID))
		RespondError(w, r, http.StatusInternalServerError, "webhook/processing-failed", "Failed to process webhook")
		return
	}

	RespondJSON(w, http.StatusOK, result)
}
