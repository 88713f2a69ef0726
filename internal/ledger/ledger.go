// Package ledger is the sole writer of wallet balances. Every balance change
// is an appended entry; the cached wallet balance is derived state that must
// always equal the balance_after of the latest entry.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/assignx/payments/internal/domain"
	"github.com/assignx/payments/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrInvalidDirection rejects directions other than credit/debit.
	ErrInvalidDirection = errors.New("invalid ledger direction")

	// ErrMissingIdempotencyKey rejects appends without an idempotency key.
	// Appends are keyed to their originating external event; an unkeyed append
	// cannot be deduplicated on webhook redelivery.
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
)

// AppendLeg is one balance change inside a multi-leg append. Settlements that
// move money into more than one wallet, such as a commission split, post all
// their legs through AppendAll so a failure on any leg posts nothing.
type AppendLeg struct {
	WalletID       uuid.UUID
	Direction      string
	Amount         domain.Money
	Reference      models.Reference
	IdempotencyKey string
}

// Store is the contract implemented by ledger backends.
//
// Concurrency contract: concurrent Append calls for the same wallet are
// serialized; appends to different wallets proceed independently.
type Store interface {
	// CreateWallet registers a new empty wallet.
	CreateWallet(ctx context.Context, ownerID uuid.UUID, currency string) (*models.Wallet, error)

	// GetWallet returns the wallet with its cached balance.
	GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)

	// Append atomically applies one balance change. If an entry with the given
	// idempotency key already exists the existing entry is returned and no
	// state changes; gateway webhooks may be delivered more than once.
	// A debit that would take the balance negative fails with
	// domain.ErrInsufficientFunds and leaves the wallet untouched.
	Append(ctx context.Context, walletID uuid.UUID, direction string, amount domain.Money, ref models.Reference, idempotencyKey string) (*models.LedgerEntry, error)

	// AppendAll applies every leg atomically: either all entries commit and
	// all balances move together, or nothing changes. Legs whose idempotency
	// key already exists surface the recorded entry without re-applying, so a
	// redelivered settlement returns the same entries in leg order.
	AppendAll(ctx context.Context, legs []AppendLeg) ([]models.LedgerEntry, error)

	// BalanceOf returns the cached balance.
	BalanceOf(ctx context.Context, walletID uuid.UUID) (domain.Money, error)

	// Replay returns the wallet's entries in creation order, for audit.
	// Callers recompute the balance from the entries via ReplayBalance,
	// independent of the cached value, to detect drift.
	Replay(ctx context.Context, walletID uuid.UUID) ([]models.LedgerEntry, error)

	// ListWalletIDs returns every wallet id, for the reconciliation sweep.
	ListWalletIDs(ctx context.Context) ([]uuid.UUID, error)
}

// validateAppend checks the arguments common to every backend.
func validateAppend(direction string, amount domain.Money, idempotencyKey string) error {
	switch direction {
	case domain.DirectionCredit, domain.DirectionDebit:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	if amount.Amount <= 0 {
		return fmt.Errorf("%w: ledger amounts must be positive, got %d", domain.ErrInvalidAmount, amount.Amount)
	}
	if idempotencyKey == "" {
		return ErrMissingIdempotencyKey
	}
	return nil
}

func validateLegs(legs []AppendLeg) error {
	for _, leg := range legs {
		if err := validateAppend(leg.Direction, leg.Amount, leg.IdempotencyKey); err != nil {
			return err
		}
	}
	return nil
}

// signedAmount maps a direction to its effect on the balance.
func signedAmount(direction string, amount int64) int64 {
	if direction == domain.DirectionDebit {
		return -amount
	}
	return amount
}

// ReplayBalance recomputes a wallet balance purely from its entries, verifying
// every balance_after snapshot along the way. It returns the final balance or
// an error naming the first entry whose snapshot diverges.
func ReplayBalance(entries []models.LedgerEntry) (int64, error) {
	var balance int64
	for _, e := range entries {
		balance += signedAmount(e.Direction, e.Amount)
		if e.BalanceAfter != balance {
			return 0, fmt.Errorf("ledger drift at entry %s: replayed %d, recorded %d", e.ID, balance, e.BalanceAfter)
		}
	}
	return balance, nil
}
