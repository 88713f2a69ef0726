package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/assignx/payments/internal/api/middleware"
	"github.com/assignx/payments/internal/api/problem"
	"github.com/assignx/payments/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func requestActor(r *http.Request) (uuid.UUID, bool, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, false, errors.New("missing user in auth context")
	}

	actorID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, false, errors.New("invalid user_id in auth context")
	}

	return actorID, middleware.UserRoleFromContext(r.Context()) == "admin", nil
}

// respondDomainError maps ledger and order errors onto problem responses.
// Returns false when the error is not a recognized domain error.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		RespondError(w, r, http.StatusNotFound, "orders/not-found", "payment order not found")
	case errors.Is(err, domain.ErrWalletNotFound):
		RespondError(w, r, http.StatusNotFound, "wallets/not-found", "wallet not found")
	case errors.Is(err, domain.ErrInvalidState):
		RespondError(w, r, http.StatusConflict, "orders/invalid-state", err.Error())
	case errors.Is(err, domain.ErrSignatureVerification):
		RespondError(w, r, http.StatusBadRequest, "orders/signature-verification", "payment signature verification failed")
	case errors.Is(err, domain.ErrInsufficientFunds):
		RespondError(w, r, http.StatusUnprocessableEntity, "wallets/insufficient-funds", err.Error())
	case errors.Is(err, domain.ErrCurrencyMismatch):
		RespondError(w, r, http.StatusUnprocessableEntity, "wallets/currency-mismatch", err.Error())
	case errors.Is(err, domain.ErrInvalidAmount):
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", err.Error())
	case errors.Is(err, domain.ErrGatewayUnavailable):
		RespondError(w, r, http.StatusBadGateway, "gateway/unavailable", "payment gateway unavailable, retry later")
	default:
		return false
	}
	return true
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
