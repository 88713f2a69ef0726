package domain

import "errors"

var (
	// ErrInvalidAmount rejects amounts that are negative, zero where a charge is
	// required, or below the gateway minimum.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrCurrencyMismatch rejects arithmetic across currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInsufficientFunds occurs when a debit would take a wallet balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidRate rejects commission rules whose shares do not sum to exactly one.
	ErrInvalidRate = errors.New("invalid commission rate")

	// ErrGatewayUnavailable marks transient gateway/network failures. Safe to
	// retry with backoff at the call site.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrSignatureVerification marks a failed gateway signature check. This is a
	// security event, never a "treat as paid" fallback.
	ErrSignatureVerification = errors.New("signature verification failed")

	// ErrOrderNotFound is returned when a payment order lookup misses.
	ErrOrderNotFound = errors.New("payment order not found")

	// ErrInvalidState rejects a transition not permitted by the order state machine.
	ErrInvalidState = errors.New("invalid order state transition")

	// ErrWalletNotFound is returned when a wallet lookup misses.
	ErrWalletNotFound = errors.New("wallet not found")
)
