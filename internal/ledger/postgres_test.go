package ledger

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/assignx/payments/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to the local Postgres instance and resets the schema.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	db, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	ensureLedgerSchema(t, db)
	for _, table := range []string{"ledger_entries", "wallets"} {
		if _, err := db.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			t.Fatalf("Failed to truncate %s: %v", table, err)
		}
	}
	return db
}

func ensureLedgerSchema(t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	sql := `
		CREATE TABLE IF NOT EXISTS wallets (
			id UUID PRIMARY KEY,
			owner_id UUID NOT NULL,
			currency TEXT NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS ledger_entries (
			id UUID PRIMARY KEY,
			wallet_id UUID NOT NULL REFERENCES wallets(id),
			direction TEXT NOT NULL CHECK (direction IN ('debit', 'credit')),
			amount BIGINT NOT NULL CHECK (amount > 0),
			currency TEXT NOT NULL,
			balance_after BIGINT NOT NULL,
			reference_type TEXT NOT NULL,
			reference_id TEXT NOT NULL,
			idempotency_key TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	if _, err := db.Exec(context.Background(), sql); err != nil {
		t.Fatalf("failed to ensure ledger schema: %v", err)
	}
}

func TestPostgresAppendAndReplay(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewPostgres(db)
	ctx := context.Background()

	w, err := store.CreateWallet(ctx, uuid.New(), "INR")
	require.NoError(t, err)

	entry, err := store.Append(ctx, w.ID, domain.DirectionCredit, inr(t, 50_000), orderRef("ord-1"), "pg-key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), entry.BalanceAfter)

	// Redelivery returns the same entry, one row in the table.
	again, err := store.Append(ctx, w.ID, domain.DirectionCredit, inr(t, 50_000), orderRef("ord-1"), "pg-key-1")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, again.ID)

	_, err = store.Append(ctx, w.ID, domain.DirectionDebit, inr(t, 60_000), orderRef("wd-1"), "pg-key-2")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = store.Append(ctx, w.ID, domain.DirectionDebit, inr(t, 20_000), orderRef("wd-2"), "pg-key-3")
	require.NoError(t, err)

	entries, err := store.Replay(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	replayed, err := ReplayBalance(entries)
	require.NoError(t, err)

	cached, err := store.BalanceOf(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, cached.Amount, replayed)
	assert.Equal(t, int64(30_000), cached.Amount)
}

func TestPostgresAppendAllCommitsOrRollsBackTogether(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewPostgres(db)
	ctx := context.Background()

	recipient, err := store.CreateWallet(ctx, uuid.New(), "INR")
	require.NoError(t, err)
	platform, err := store.CreateWallet(ctx, uuid.New(), "INR")
	require.NoError(t, err)

	legs := []AppendLeg{
		{WalletID: recipient.ID, Direction: domain.DirectionCredit, Amount: inr(t, 2_000), Reference: orderRef("ord-1"), IdempotencyKey: "pg-ord-1:recipient"},
		{WalletID: platform.ID, Direction: domain.DirectionCredit, Amount: inr(t, 1_000), Reference: orderRef("ord-1"), IdempotencyKey: "pg-ord-1:platform"},
	}
	entries, err := store.AppendAll(ctx, legs)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Redelivery returns the recorded entries and moves no money.
	again, err := store.AppendAll(ctx, legs)
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, entries[0].ID, again[0].ID)
	assert.Equal(t, entries[1].ID, again[1].ID)

	// A failing second leg rolls back the first.
	usdWallet, err := store.CreateWallet(ctx, uuid.New(), "USD")
	require.NoError(t, err)
	_, err = store.AppendAll(ctx, []AppendLeg{
		{WalletID: recipient.ID, Direction: domain.DirectionCredit, Amount: inr(t, 2_000), Reference: orderRef("ord-2"), IdempotencyKey: "pg-ord-2:recipient"},
		{WalletID: usdWallet.ID, Direction: domain.DirectionCredit, Amount: inr(t, 1_000), Reference: orderRef("ord-2"), IdempotencyKey: "pg-ord-2:platform"},
	})
	assert.ErrorIs(t, err, domain.ErrCurrencyMismatch)

	balance, err := store.BalanceOf(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2_000), balance.Amount)
	recEntries, err := store.Replay(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Len(t, recEntries, 1)
	balance, err = store.BalanceOf(ctx, platform.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), balance.Amount)
}

func TestPostgresWalletNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewPostgres(db)
	ctx := context.Background()

	_, err := store.GetWallet(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)

	_, err = store.Append(ctx, uuid.New(), domain.DirectionCredit, inr(t, 100), orderRef("ord"), "pg-missing")
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
}
