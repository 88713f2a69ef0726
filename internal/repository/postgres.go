package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/assignx/payments/internal/domain"
	"github.com/assignx/payments/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresOrderStore persists payment orders in Postgres.
type PostgresOrderStore struct {
	db *pgxpool.Pool
}

// NewPostgresOrderStore creates a Postgres-backed OrderStore.
func NewPostgresOrderStore(db *pgxpool.Pool) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

const orderColumns = `id, wallet_id, recipient_wallet_id, amount, currency, purpose, status, gateway_order_id, split_rule, reference_id, failure_reason, created_at, confirmed_at, settled_at`

func (s *PostgresOrderStore) Create(ctx context.Context, order *models.PaymentOrder) error {
	ruleJSON, err := marshalSplitRule(order.SplitRule)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO payment_orders (id, wallet_id, recipient_wallet_id, amount, currency, purpose, status, gateway_order_id, split_rule, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING created_at
	`
	err = s.db.QueryRow(ctx, query,
		order.ID, order.WalletID, order.RecipientWalletID, order.Amount, order.Currency,
		order.Purpose, order.Status, order.GatewayOrderID, ruleJSON, order.ReferenceID,
	).Scan(&order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment order: %w", err)
	}
	return nil
}

func (s *PostgresOrderStore) Get(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM payment_orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *PostgresOrderStore) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM payment_orders WHERE gateway_order_id = $1`, gatewayOrderID)
	return scanOrder(row)
}

func (s *PostgresOrderStore) Transition(ctx context.Context, id uuid.UUID, from, to, reason string) (*models.PaymentOrder, error) {
	query := `
		UPDATE payment_orders
		SET status = $3,
		    failure_reason = CASE WHEN $4 = '' THEN failure_reason ELSE $4 END,
		    confirmed_at = CASE WHEN $3 = 'CONFIRMED' THEN NOW() ELSE confirmed_at END,
		    settled_at = CASE WHEN $3 = 'SETTLED' THEN NOW() ELSE settled_at END
		WHERE id = $1 AND status = $2
		RETURNING ` + orderColumns
	order, err := scanOrder(s.db.QueryRow(ctx, query, id, from, to, reason))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, domain.ErrOrderNotFound) {
		return nil, err
	}

	// Distinguish a missing order from one that moved on.
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: order %s is not %s", domain.ErrInvalidState, id, from)
}

func (s *PostgresOrderStore) ListStaleCreated(ctx context.Context, cutoff time.Time, limit int32) ([]models.PaymentOrder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM payment_orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, domain.OrderStatusCreated, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale orders: %w", err)
	}
	defer rows.Close()

	var orders []models.PaymentOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.PaymentOrder, error) {
	order := &models.PaymentOrder{}
	var ruleJSON []byte
	var failureReason *string
	err := row.Scan(
		&order.ID, &order.WalletID, &order.RecipientWalletID, &order.Amount, &order.Currency,
		&order.Purpose, &order.Status, &order.GatewayOrderID, &ruleJSON, &order.ReferenceID,
		&failureReason, &order.CreatedAt, &order.ConfirmedAt, &order.SettledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan payment order: %w", err)
	}
	if failureReason != nil {
		order.FailureReason = *failureReason
	}
	if len(ruleJSON) > 0 {
		var rule domain.CommissionSplitRule
		if err := json.Unmarshal(ruleJSON, &rule); err != nil {
			return nil, fmt.Errorf("failed to decode split rule: %w", err)
		}
		order.SplitRule = &rule
	}
	return order, nil
}

func marshalSplitRule(rule *domain.CommissionSplitRule) ([]byte, error) {
	if rule == nil {
		return nil, nil
	}
	data, err := json.Marshal(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to encode split rule: %w", err)
	}
	return data, nil
}
