package service

import (
	"context"
	"fmt"
	"time"

	"github.com/assignx/payments/internal/domain"
	"github.com/assignx/payments/internal/ledger"
	"github.com/assignx/payments/internal/observability"
	"github.com/assignx/payments/internal/repository"
	"go.uber.org/zap"
)

const expiryBatchSize = 100

// ReconciliationService keeps the system honest between runs:
// it expires orders stuck in CREATED (a gateway timeout must not leave an
// order pending forever) and audits every wallet's cached balance against a
// full replay of its entries.
type ReconciliationService struct {
	orders       repository.OrderStore
	ledger       ledger.Store
	expiryWindow time.Duration
}

// NewReconciliationService creates a reconciliation service. expiryWindow
// bounds how long an order may sit in CREATED before it is failed.
func NewReconciliationService(orders repository.OrderStore, ledgerStore ledger.Store, expiryWindow time.Duration) *ReconciliationService {
	if expiryWindow <= 0 {
		expiryWindow = 30 * time.Minute
	}
	return &ReconciliationService{
		orders:       orders,
		ledger:       ledgerStore,
		expiryWindow: expiryWindow,
	}
}

// Run performs one full sweep.
func (s *ReconciliationService) Run(ctx context.Context) error {
	if err := s.ExpireStaleOrders(ctx); err != nil {
		return err
	}
	return s.AuditLedger(ctx)
}

// ExpireStaleOrders fails orders that never left CREATED within the window.
// Cancellation and expiry have no ledger impact; nothing was settled.
func (s *ReconciliationService) ExpireStaleOrders(ctx context.Context) error {
	cutoff := time.Now().Add(-s.expiryWindow)
	for {
		stale, err := s.orders.ListStaleCreated(ctx, cutoff, expiryBatchSize)
		if err != nil {
			return fmt.Errorf("list stale orders: %w", err)
		}
		if len(stale) == 0 {
			return nil
		}
		for _, order := range stale {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := s.orders.Transition(ctx, order.ID, domain.OrderStatusCreated, domain.OrderStatusFailed, "expired before confirmation"); err != nil {
				// A confirmation may have raced the sweep; skip, next run
				// resolves it.
				zap.L().Warn("stale order expiry skipped", zap.Error(err), zap.String("order_id", order.ID.String()))
				continue
			}
			observability.IncrementOrderExpiry()
			zap.L().Info("expired stale payment order",
				zap.String("order_id", order.ID.String()),
				zap.Time("created_at", order.CreatedAt),
			)
		}
		if len(stale) < expiryBatchSize {
			return nil
		}
	}
}

// AuditLedger replays every wallet and compares against the cached balance.
// The cache is a read model; the entries are the source of truth.
func (s *ReconciliationService) AuditLedger(ctx context.Context) error {
	ids, err := s.ledger.ListWalletIDs(ctx)
	if err != nil {
		return fmt.Errorf("list wallets: %w", err)
	}

	drifted := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := s.ledger.Replay(ctx, id)
		if err != nil {
			return fmt.Errorf("replay wallet %s: %w", id, err)
		}
		replayed, err := ledger.ReplayBalance(entries)
		if err != nil {
			drifted++
			observability.IncrementLedgerDrift()
			zap.L().Error("CRITICAL: ledger entry chain broken", zap.Error(err), zap.String("wallet_id", id.String()))
			continue
		}
		cached, err := s.ledger.BalanceOf(ctx, id)
		if err != nil {
			return fmt.Errorf("read balance of wallet %s: %w", id, err)
		}
		if cached.Amount != replayed {
			drifted++
			observability.IncrementLedgerDrift()
			zap.L().Error("CRITICAL: wallet balance drifted from ledger",
				zap.String("wallet_id", id.String()),
				zap.Int64("cached", cached.Amount),
				zap.Int64("replayed", replayed),
			)
		}
	}

	if drifted == 0 {
		zap.L().Info("ledger audit clean", zap.Int("wallets", len(ids)))
	}
	return nil
}
