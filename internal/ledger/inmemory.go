package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/assignx/payments/internal/domain"
	"github.com/assignx/payments/internal/models"
	"github.com/google/uuid"
)

// memoryStore is a concurrency-safe in-memory ledger useful for unit tests.
// A single store mutex guards wallets, entries and the idempotency-key index
// so the duplicate-key check and the insert are one critical section.
type memoryStore struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*memoryWallet
	byKey   map[string]models.LedgerEntry
}

type memoryWallet struct {
	wallet  models.Wallet
	entries []models.LedgerEntry
}

// NewInMemory creates an in-memory Store.
func NewInMemory() Store {
	return &memoryStore{
		wallets: make(map[uuid.UUID]*memoryWallet),
		byKey:   make(map[string]models.LedgerEntry),
	}
}

func (s *memoryStore) CreateWallet(_ context.Context, ownerID uuid.UUID, currency string) (*models.Wallet, error) {
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", domain.ErrInvalidAmount)
	}
	w := models.Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Balance:   0,
		Currency:  currency,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.wallets[w.ID] = &memoryWallet{wallet: w}
	s.mu.Unlock()

	out := w
	return &out, nil
}

func (s *memoryStore) GetWallet(_ context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mw, ok := s.wallets[walletID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrWalletNotFound, walletID)
	}
	out := mw.wallet
	return &out, nil
}

func (s *memoryStore) Append(ctx context.Context, walletID uuid.UUID, direction string, amount domain.Money, ref models.Reference, idempotencyKey string) (*models.LedgerEntry, error) {
	entries, err := s.AppendAll(ctx, []AppendLeg{{
		WalletID:       walletID,
		Direction:      direction,
		Amount:         amount,
		Reference:      ref,
		IdempotencyKey: idempotencyKey,
	}})
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

func (s *memoryStore) AppendAll(_ context.Context, legs []AppendLeg) ([]models.LedgerEntry, error) {
	if len(legs) == 0 {
		return nil, nil
	}
	if err := validateLegs(legs); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every leg before mutating anything so a failure on any leg
	// leaves balances and entries untouched.
	type staged struct {
		mw    *memoryWallet
		entry models.LedgerEntry
	}
	balances := make(map[uuid.UUID]int64)
	out := make([]models.LedgerEntry, 0, len(legs))
	apply := make([]staged, 0, len(legs))
	for _, leg := range legs {
		if existing, dup := s.byKey[leg.IdempotencyKey]; dup {
			out = append(out, existing)
			continue
		}
		mw, ok := s.wallets[leg.WalletID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrWalletNotFound, leg.WalletID)
		}
		if mw.wallet.Currency != leg.Amount.Currency {
			return nil, fmt.Errorf("%w: wallet is %s, amount is %s", domain.ErrCurrencyMismatch, mw.wallet.Currency, leg.Amount.Currency)
		}
		balance, seen := balances[leg.WalletID]
		if !seen {
			balance = mw.wallet.Balance
		}
		next := balance + signedAmount(leg.Direction, leg.Amount.Amount)
		if next < 0 {
			return nil, fmt.Errorf("%w: balance %d, debit %d", domain.ErrInsufficientFunds, balance, leg.Amount.Amount)
		}
		balances[leg.WalletID] = next

		entry := models.LedgerEntry{
			ID:             uuid.New(),
			WalletID:       leg.WalletID,
			Direction:      leg.Direction,
			Amount:         leg.Amount.Amount,
			Currency:       leg.Amount.Currency,
			BalanceAfter:   next,
			ReferenceType:  leg.Reference.Type,
			ReferenceID:    leg.Reference.ID,
			IdempotencyKey: leg.IdempotencyKey,
			CreatedAt:      time.Now().UTC(),
		}
		apply = append(apply, staged{mw: mw, entry: entry})
		out = append(out, entry)
	}

	for _, st := range apply {
		st.mw.wallet.Balance = st.entry.BalanceAfter
		st.mw.entries = append(st.mw.entries, st.entry)
		s.byKey[st.entry.IdempotencyKey] = st.entry
	}
	return out, nil
}

func (s *memoryStore) BalanceOf(_ context.Context, walletID uuid.UUID) (domain.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mw, ok := s.wallets[walletID]
	if !ok {
		return domain.Money{}, fmt.Errorf("%w: %s", domain.ErrWalletNotFound, walletID)
	}
	return domain.Money{Amount: mw.wallet.Balance, Currency: mw.wallet.Currency}, nil
}

func (s *memoryStore) Replay(_ context.Context, walletID uuid.UUID) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mw, ok := s.wallets[walletID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrWalletNotFound, walletID)
	}
	out := make([]models.LedgerEntry, len(mw.entries))
	copy(out, mw.entries)
	return out, nil
}

func (s *memoryStore) ListWalletIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.wallets))
	for id := range s.wallets {
		ids = append(ids, id)
	}
	return ids, nil
}
