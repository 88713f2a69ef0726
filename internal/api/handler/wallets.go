package handler

import (
	"encoding/json"
	"net/http"

	"github.com/assignx/payments/internal/domain"
	"github.com/assignx/payments/internal/ledger"
	"github.com/assignx/payments/internal/models"
	"github.com/assignx/payments/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WalletHandler handles HTTP requests for wallets and their ledgers.
type WalletHandler struct {
	ledger       ledger.Store
	orchestrator *service.PaymentOrchestrator
}

func NewWalletHandler(ledgerStore ledger.Store, orchestrator *service.PaymentOrchestrator) *WalletHandler {
	return &WalletHandler{ledger: ledgerStore, orchestrator: orchestrator}
}

// CreateWalletRequest represents the request body for creating a wallet.
type CreateWalletRequest struct {
	OwnerID  string `json:"owner_id,omitempty"` // admin only; defaults to the caller
	Currency string `json:"currency"`
}

// CreateWallet handles POST /v1/wallets.
func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req CreateWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.Currency == "" {
		req.Currency = domain.DefaultCurrency
	}

	ownerID := actorID
	if req.OwnerID != "" {
		parsed, err := uuid.Parse(req.OwnerID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-owner-id", "Invalid owner_id")
			return
		}
		if parsed != actorID && !isAdmin {
			RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "cannot create a wallet for another user")
			return
		}
		ownerID = parsed
	}

	wallet, err := h.ledger.CreateWallet(r.Context(), ownerID, req.Currency)
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		zap.L().Error("create wallet failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "wallets/create-failed", "Failed to create wallet")
		return
	}

	RespondJSON(w, http.StatusCreated, wallet)
}

// GetBalance handles GET /v1/wallets/{id}/balance.
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.authorizeWallet(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.BalanceOf(r.Context(), wallet.ID)
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		zap.L().Error("read wallet balance failed", zap.Error(err), zap.String("wallet_id", wallet.ID.String()))
		RespondError(w, r, http.StatusInternalServerError, "wallets/balance-failed", "Failed to read wallet balance")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"wallet_id": wallet.ID,
		"balance":   balance.Amount,
		"currency":  balance.Currency,
	})
}

// GetEntries handles GET /v1/wallets/{id}/entries.
// Returns the wallet's full ledger, oldest first.
func (h *WalletHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.authorizeWallet(w, r)
	if !ok {
		return
	}

	entries, err := h.ledger.Replay(r.Context(), wallet.ID)
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		zap.L().Error("list ledger entries failed", zap.Error(err), zap.String("wallet_id", wallet.ID.String()))
		RespondError(w, r, http.StatusInternalServerError, "wallets/entries-failed", "Failed to list ledger entries")
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"wallet_id": wallet.ID,
		"entries":   entries,
	})
}

// CreateDebitRequest represents the request body for debiting a wallet.
type CreateDebitRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	ReferenceID string `json:"reference_id"`
}

// CreateDebit handles POST /v1/wallets/{id}/debits.
// Spends wallet balance, for withdrawals and wallet-funded payments.
func (h *WalletHandler) CreateDebit(w http.ResponseWriter, r *http.Request) {
	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		RespondError(w, r, http.StatusBadRequest, "idempotency/missing-key", "Idempotency-Key header is required")
		return
	}

	wallet, ok := h.authorizeWallet(w, r)
	if !ok {
		return
	}

	var req CreateDebitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.ReferenceID == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-reference", "reference_id is required")
		return
	}

	amount, err := domain.NewMoney(req.Amount, req.Currency)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", err.Error())
		return
	}

	ref := models.Reference{Type: domain.RefTypeWithdrawal, ID: req.ReferenceID}
	entry, err := h.orchestrator.PayFromWallet(r.Context(), wallet.ID, amount, ref, idempotencyKey)
	if err != nil {
		if respondDomainError(w, r, err) {
			return
		}
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		zap.L().Error("wallet debit failed", zap.Error(err), zap.String("wallet_id", wallet.ID.String()))
		RespondError(w, r, http.StatusInternalServerError, "wallets/debit-failed", "Failed to debit wallet")
		return
	}

	RespondJSON(w, http.StatusCreated, entry)
}

// authorizeWallet resolves {id}, loads the wallet and enforces that the
// caller owns it or is an admin.
func (h *WalletHandler) authorizeWallet(w http.ResponseWriter, r *http.Request) (*models.Wallet, bool) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return nil, false
	}

	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid wallet ID")
		return nil, false
	}

	wallet, err := h.ledger.GetWallet(r.Context(), walletID)
	if err != nil {
		if respondDomainError(w, r, err) {
			return nil, false
		}
		zap.L().Error("load wallet failed", zap.Error(err), zap.String("wallet_id", walletID.String()))
		RespondError(w, r, http.StatusInternalServerError, "wallets/load-failed", "Failed to load wallet")
		return nil, false
	}

	if wallet.OwnerID != actorID && !isAdmin {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "wallet belongs to another user")
		return nil, false
	}
	return wallet, true
}
