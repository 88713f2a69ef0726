package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/assignx/payments/internal/domain"
	"github.com/assignx/payments/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists wallets and entries in Postgres. Per-wallet
// serialization comes from SELECT ... FOR UPDATE on the wallet row; the entry
// insert and the cached balance update commit or roll back together.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed Store.
func NewPostgres(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateWallet(ctx context.Context, ownerID uuid.UUID, currency string) (*models.Wallet, error) {
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", domain.ErrInvalidAmount)
	}
	w := &models.Wallet{ID: uuid.New(), OwnerID: ownerID, Currency: currency}
	query := `INSERT INTO wallets (id, owner_id, currency, balance, created_at) VALUES ($1, $2, $3, 0, NOW()) RETURNING created_at`
	if err := s.db.QueryRow(ctx, query, w.ID, w.OwnerID, w.Currency).Scan(&w.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return w, nil
}

// EnsureWallet creates a wallet with a fixed id if it does not exist yet.
// Used at startup for the platform commission wallet.
func (s *PostgresStore) EnsureWallet(ctx context.Context, walletID, ownerID uuid.UUID, currency string) error {
	query := `INSERT INTO wallets (id, owner_id, currency, balance, created_at) VALUES ($1, $2, $3, 0, NOW()) ON CONFLICT (id) DO NOTHING`
	if _, err := s.db.Exec(ctx, query, walletID, ownerID, currency); err != nil {
		return fmt.Errorf("failed to ensure wallet %s: %w", walletID, err)
	}
	return nil
}

func (s *PostgresStore) GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	w := &models.Wallet{}
	query := `SELECT id, owner_id, currency, balance, created_at FROM wallets WHERE id = $1`
	err := s.db.QueryRow(ctx, query, walletID).Scan(&w.ID, &w.OwnerID, &w.Currency, &w.Balance, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrWalletNotFound, walletID)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

func (s *PostgresStore) Append(ctx context.Context, walletID uuid.UUID, direction string, amount domain.Money, ref models.Reference, idempotencyKey string) (*models.LedgerEntry, error) {
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

func (s *PostgresStore) AppendAll(ctx context.Context, legs []AppendLeg) ([]models.LedgerEntry, error) {
	if len(legs) == 0 {
		return nil, nil
	}
	if err := validateLegs(legs); err != nil {
		return nil, err
	}

	// Fast path for webhook redelivery; the unique index remains the
	// authoritative guard inside the transaction.
	if entries, found, err := s.findByLegKeys(ctx, legs); err != nil {
		return nil, err
	} else if found {
		return entries, nil
	}

	entries, err := s.appendAllTx(ctx, legs)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// A concurrent append won the keys; surface its entries.
			if entries, found, lerr := s.findByLegKeys(ctx, legs); lerr == nil && found {
				return entries, nil
			}
		}
		return nil, err
	}
	return entries, nil
}

// appendAllTx runs every leg in one transaction so either all entries commit
// and all balances move, or the rollback leaves every wallet untouched.
func (s *PostgresStore) appendAllTx(ctx context.Context, legs []AppendLeg) ([]models.LedgerEntry, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin append transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock wallet rows in one stable order; concurrent multi-leg appends
	// touching the same wallets would otherwise deadlock.
	type walletRow struct {
		balance  int64
		currency string
	}
	locked := make(map[uuid.UUID]*walletRow, len(legs))
	for _, walletID := range legWalletIDs(legs) {
		row := &walletRow{}
		err := tx.QueryRow(ctx, `SELECT balance, currency FROM wallets WHERE id = $1 FOR UPDATE`, walletID).Scan(&row.balance, &row.currency)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", domain.ErrWalletNotFound, walletID)
			}
			return nil, fmt.Errorf("failed to lock wallet: %w", err)
		}
		locked[walletID] = row
	}

	entries := make([]models.LedgerEntry, 0, len(legs))
	dirty := make(map[uuid.UUID]bool, len(legs))
	for _, leg := range legs {
		if existing, err := getByIdempotencyKey(ctx, tx, leg.IdempotencyKey); err == nil {
			entries = append(entries, *existing)
			continue
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}

		row := locked[leg.WalletID]
		if row.currency != leg.Amount.Currency {
			return nil, fmt.Errorf("%w: wallet is %s, amount is %s", domain.ErrCurrencyMismatch, row.currency, leg.Amount.Currency)
		}

		next := row.balance + signedAmount(leg.Direction, leg.Amount.Amount)
		if next < 0 {
			return nil, fmt.Errorf("%w: balance %d, debit %d", domain.ErrInsufficientFunds, row.balance, leg.Amount.Amount)
		}
		row.balance = next
		dirty[leg.WalletID] = true

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
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO ledger_entries (id, wallet_id, direction, amount, currency, balance_after, reference_type, reference_id, idempotency_key, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			RETURNING created_at
		`, entry.ID, entry.WalletID, entry.Direction, entry.Amount, entry.Currency, entry.BalanceAfter, entry.ReferenceType, entry.ReferenceID, entry.IdempotencyKey).Scan(&entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}

	for walletID := range dirty {
		tag, err := tx.Exec(ctx, `UPDATE wallets SET balance = $1 WHERE id = $2`, locked[walletID].balance, walletID)
		if err != nil {
			return nil, fmt.Errorf("failed to update wallet balance: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return nil, fmt.Errorf("update wallet balance affected %d rows", tag.RowsAffected())
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit append transaction: %w", err)
	}
	return entries, nil
}

// findByLegKeys reads every leg's entry by idempotency key. found is true only
// when all legs are already recorded; atomic appends never record a subset.
func (s *PostgresStore) findByLegKeys(ctx context.Context, legs []AppendLeg) (entries []models.LedgerEntry, found bool, err error) {
	entries = make([]models.LedgerEntry, 0, len(legs))
	for _, leg := range legs {
		existing, err := getByIdempotencyKey(ctx, s.db, leg.IdempotencyKey)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("failed to check idempotency: %w", err)
		}
		entries = append(entries, *existing)
	}
	return entries, true, nil
}

// legWalletIDs returns the distinct wallet ids of legs, sorted by id bytes.
func legWalletIDs(legs []AppendLeg) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(legs))
	ids := make([]uuid.UUID, 0, len(legs))
	for _, leg := range legs {
		if !seen[leg.WalletID] {
			seen[leg.WalletID] = true
			ids = append(ids, leg.WalletID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}

func (s *PostgresStore) BalanceOf(ctx context.Context, walletID uuid.UUID) (domain.Money, error) {
	var balance int64
	var currency string
	err := s.db.QueryRow(ctx, `SELECT balance, currency FROM wallets WHERE id = $1`, walletID).Scan(&balance, &currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Money{}, fmt.Errorf("%w: %s", domain.ErrWalletNotFound, walletID)
		}
		return domain.Money{}, fmt.Errorf("failed to read balance: %w", err)
	}
	return domain.Money{Amount: balance, Currency: currency}, nil
}

func (s *PostgresStore) Replay(ctx context.Context, walletID uuid.UUID) ([]models.LedgerEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, wallet_id, direction, amount, currency, balance_after, reference_type, reference_id, idempotency_key, created_at
		FROM ledger_entries
		WHERE wallet_id = $1
		ORDER BY created_at, id
	`, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to replay entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.WalletID, &e.Direction, &e.Amount, &e.Currency, &e.BalanceAfter, &e.ReferenceType, &e.ReferenceID, &e.IdempotencyKey, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListWalletIDs supports the reconciliation sweep.
func (s *PostgresStore) ListWalletIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM wallets ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan wallet id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getByIdempotencyKey(ctx context.Context, q rowQuerier, key string) (*models.LedgerEntry, error) {
	e := &models.LedgerEntry{}
	err := q.QueryRow(ctx, `
		SELECT id, wallet_id, direction, amount, currency, balance_after, reference_type, reference_id, idempotency_key, created_at
		FROM ledger_entries
		WHERE idempotency_key = $1
	`, key).Scan(&e.ID, &e.WalletID, &e.Direction, &e.Amount, &e.Currency, &e.BalanceAfter, &e.ReferenceType, &e.ReferenceID, &e.IdempotencyKey, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}
