package repository

import (
	"context"
	"testing"
	"time"

	"github.com/assignx/payments/internal/domain"
	"github.com/assignx/payments/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(walletID uuid.UUID) *models.PaymentOrder {
	return &models.PaymentOrder{
		ID:             uuid.New(),
		WalletID:       &walletID,
		Amount:         10000,
		Currency:       domain.DefaultCurrency,
		Purpose:        domain.PurposeTopup,
		Status:         domain.OrderStatusCreated,
		GatewayOrderID: "order_" + uuid.NewString(),
	}
}

func TestMemoryOrderStoreCreateAndGet(t *testing.T) {
	store := NewInMemoryOrderStore()
	ctx := context.Background()
	order := newOrder(uuid.New())

	require.NoError(t, store.Create(ctx, order))
	assert.False(t, order.CreatedAt.IsZero())

	got, err := store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, domain.OrderStatusCreated, got.Status)

	byGateway, err := store.GetByGatewayOrderID(ctx, order.GatewayOrderID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byGateway.ID)

	_, err = store.Get(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
	_, err = store.GetByGatewayOrderID(ctx, "order_unknown")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestMemoryOrderStoreTransition(t *testing.T) {
	store := NewInMemoryOrderStore()
	ctx := context.Background()
	order := newOrder(uuid.New())
	require.NoError(t, store.Create(ctx, order))

	confirmed, err := store.Transition(ctx, order.ID, domain.OrderStatusCreated, domain.OrderStatusConfirmed, "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)

	// Stale transition loses: the order already left CREATED.
	_, err = store.Transition(ctx, order.ID, domain.OrderStatusCreated, domain.OrderStatusCancelled, "")
	require.ErrorIs(t, err, domain.ErrInvalidState)

	settled, err := store.Transition(ctx, order.ID, domain.OrderStatusConfirmed, domain.OrderStatusSettled, "")
	require.NoError(t, err)
	require.NotNil(t, settled.SettledAt)

	_, err = store.Transition(ctx, uuid.New(), domain.OrderStatusCreated, domain.OrderStatusFailed, "")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestMemoryOrderStoreTransitionRecordsReason(t *testing.T) {
	store := NewInMemoryOrderStore()
	ctx := context.Background()
	order := newOrder(uuid.New())
	require.NoError(t, store.Create(ctx, order))

	failed, err := store.Transition(ctx, order.ID, domain.OrderStatusCreated, domain.OrderStatusFailed, "signature verification failed")
	require.NoError(t, err)
	assert.Equal(t, "signature verification failed", failed.FailureReason)
}

func TestMemoryOrderStoreListStaleCreated(t *testing.T) {
	store := NewInMemoryOrderStore()
	ctx := context.Background()

	stale := newOrder(uuid.New())
	require.NoError(t, store.Create(ctx, stale))

	confirmedOrder := newOrder(uuid.New())
	require.NoError(t, store.Create(ctx, confirmedOrder))
	_, err := store.Transition(ctx, confirmedOrder.ID, domain.OrderStatusCreated, domain.OrderStatusConfirmed, "")
	require.NoError(t, err)

	found, err := store.ListStaleCreated(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stale.ID, found[0].ID)

	none, err := store.ListStaleCreated(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
