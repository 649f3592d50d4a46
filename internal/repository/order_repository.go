package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/kvstore"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository is the append-only order ledger. Remove exists only as
// the compensation step when clearing the cart fails after an append.
type OrderRepository interface {
	Append(ctx context.Context, order *domain.Order) error
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	Remove(ctx context.Context, id string) error
}

type orderRepository struct {
	store kvstore.Store
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(store kvstore.Store) OrderRepository {
	return &orderRepository{store: store}
}

func (r *orderRepository) load(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	err := kvstore.GetJSON(ctx, r.store, kvstore.KeyOrders, &orders)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return []domain.Order{}, nil
		}
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) save(ctx context.Context, orders []domain.Order) error {
	if err := kvstore.SetJSON(ctx, r.store, kvstore.KeyOrders, orders); err != nil {
		return fmt.Errorf("failed to save orders: %w", err)
	}
	return nil
}

// Append adds a finalized order to the ledger
func (r *orderRepository) Append(ctx context.Context, order *domain.Order) error {
	orders, err := r.load(ctx)
	if err != nil {
		return err
	}

	orders = append(orders, *order)
	return r.save(ctx, orders)
}

// ListByUser returns the user's orders, newest first
func (r *orderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	owned := []domain.Order{}
	for i := len(orders) - 1; i >= 0; i-- {
		if orders[i].UserID == userID {
			owned = append(owned, orders[i])
		}
	}

	return owned, nil
}

// Remove deletes the order with the given ID
func (r *orderRepository) Remove(ctx context.Context, id string) error {
	orders, err := r.load(ctx)
	if err != nil {
		return err
	}

	remaining := orders[:0]
	found := false
	for _, o := range orders {
		if o.ID == id {
			found = true
			continue
		}
		remaining = append(remaining, o)
	}

	if !found {
		return ErrOrderNotFound
	}

	return r.save(ctx, remaining)
}
