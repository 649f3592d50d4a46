package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/kvstore"
)

// CartRepository defines the interface for cart data access. Every write
// bumps the cart's Version so checkout can detect concurrent mutation.
type CartRepository interface {
	Get(ctx context.Context) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Clear(ctx context.Context) error
}

type cartRepository struct {
	store kvstore.Store
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(store kvstore.Store) CartRepository {
	return &cartRepository{store: store}
}

// Get returns the stored cart, or an empty cart when none exists yet
func (r *cartRepository) Get(ctx context.Context) (*domain.Cart, error) {
	var cart domain.Cart
	err := kvstore.GetJSON(ctx, r.store, kvstore.KeyCart, &cart)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return &domain.Cart{}, nil
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return &cart, nil
}

// Save persists the cart and advances its version
func (r *cartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	cart.Version++
	if err := kvstore.SetJSON(ctx, r.store, kvstore.KeyCart, cart); err != nil {
		cart.Version--
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// Clear empties the cart. The version keeps advancing rather than
// resetting, so order finalization can fence against stale attempts.
func (r *cartRepository) Clear(ctx context.Context) error {
	cart, err := r.Get(ctx)
	if err != nil {
		return err
	}
	cart.Lines = nil
	return r.Save(ctx, cart)
}
