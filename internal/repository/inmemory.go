package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/assignx/payments/internal/domain"
	"github.com/assignx/payments/internal/models"
	"github.com/google/uuid"
)

// memoryOrderStore is an in-memory OrderStore for unit tests.
type memoryOrderStore struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*models.PaymentOrder
	byGateway map[string]uuid.UUID
}

// NewInMemoryOrderStore creates an in-memory OrderStore.
func NewInMemoryOrderStore() OrderStore {
	return &memoryOrderStore{
		orders:    make(map[uuid.UUID]*models.PaymentOrder),
		byGateway: make(map[string]uuid.UUID),
	}
}

func (s *memoryOrderStore) Create(_ context.Context, order *models.PaymentOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("payment order %s already exists", order.ID)
	}
	order.CreatedAt = time.Now().UTC()
	stored := *order
	s.orders[order.ID] = &stored
	if order.GatewayOrderID != "" {
		s.byGateway[order.GatewayOrderID] = order.ID
	}
	return nil
}

func (s *memoryOrderStore) Get(_ context.Context, id uuid.UUID) (*models.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *memoryOrderStore) GetByGatewayOrderID(_ context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byGateway[gatewayOrderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return s.getLocked(id)
}

func (s *memoryOrderStore) Transition(_ context.Context, id uuid.UUID, from, to, reason string) (*models.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if order.Status != from {
		return nil, fmt.Errorf("%w: order %s is %s, not %s", domain.ErrInvalidState, id, order.Status, from)
	}

	order.Status = to
	if reason != "" {
		order.FailureReason = reason
	}
	now := time.Now().UTC()
	switch to {
	case domain.OrderStatusConfirmed:
		order.ConfirmedAt = &now
	case domain.OrderStatusSettled:
		order.SettledAt = &now
	}

	out := *order
	return &out, nil
}

func (s *memoryOrderStore) ListStaleCreated(_ context.Context, cutoff time.Time, limit int32) ([]models.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []models.PaymentOrder
	for _, order := range s.orders {
		if order.Status == domain.OrderStatusCreated && order.CreatedAt.Before(cutoff) {
			stale = append(stale, *order)
			if int32(len(stale)) >= limit {
				break
			}
		}
	}
	return stale, nil
}

func (s *memoryOrderStore) getLocked(id uuid.UUID) (*models.PaymentOrder, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	out := *order
	return &out, nil
}
