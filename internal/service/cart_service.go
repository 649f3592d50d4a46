package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// CartService defines the interface for cart mutations. Every operation
// that adds to the cart requires an active session and a resolvable
// product; both are reported as distinct errors.
type CartService interface {
	Get(ctx context.Context) (*domain.Cart, error)
	Add(ctx context.Context, productID string) (*domain.Cart, error)
	SetQuantity(ctx context.Context, productID string, quantity int) (*domain.Cart, error)
	Remove(ctx context.Context, productID string) (*domain.Cart, error)
	Clear(ctx context.Context) error
	ReplaceWithSingle(ctx context.Context, productID string) (*domain.Cart, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	sessionRepo repository.SessionRepository
}

// NewCartService creates a new instance of CartService
func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	sessionRepo repository.SessionRepository,
) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		sessionRepo: sessionRepo,
	}
}

// Get returns the current cart contents
func (s *cartService) Get(ctx context.Context) (*domain.Cart, error) {
	return s.cartRepo.Get(ctx)
}

// Add merges productID into the cart: an existing line gains quantity 1,
// otherwise a new line with quantity 1 and a snapshot of the product is
// appended. Quantities are not capped.
func (s *cartService) Add(ctx context.Context, productID string) (*domain.Cart, error) {
	product, err := s.requireSessionAndProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	if line := cart.Line(productID); line != nil {
		line.Quantity++
	} else {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID: productID,
			Quantity:  1,
			Product:   *product,
		})
	}

	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, err
	}

	return cart, nil
}

// SetQuantity overwrites the line's quantity. A non-positive quantity is
// treated as removal, the lenient policy inherited from quantity inputs
// coming from free-form user fields. Missing lines are a no-op.
func (s *cartService) SetQuantity(ctx context.Context, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return s.Remove(ctx, productID)
	}

	cart, err := s.cartRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	line := cart.Line(productID)
	if line == nil {
		return cart, nil
	}

	line.Quantity = quantity
	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, err
	}

	return cart, nil
}

// Remove deletes the line if present, no-op otherwise
func (s *cartService) Remove(ctx context.Context, productID string) (*domain.Cart, error) {
	cart, err := s.cartRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	if cart.Line(productID) == nil {
		return cart, nil
	}

	remaining := cart.Lines[:0]
	for _, line := range cart.Lines {
		if line.ProductID != productID {
			remaining = append(remaining, line)
		}
	}
	cart.Lines = remaining

	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, err
	}

	return cart, nil
}

// Clear empties the cart unconditionally
func (s *cartService) Clear(ctx context.Context) error {
	return s.cartRepo.Clear(ctx)
}

// ReplaceWithSingle is "buy now": the whole cart becomes exactly one
// line of quantity 1 for productID, bypassing merge logic.
func (s *cartService) ReplaceWithSingle(ctx context.Context, productID string) (*domain.Cart, error) {
	product, err := s.requireSessionAndProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	cart.Lines = []domain.CartLine{{
		ProductID: productID,
		Quantity:  1,
		Product:   *product,
	}}

	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, err
	}

	return cart, nil
}

func (s *cartService) requireSessionAndProduct(ctx context.Context, productID string) (*domain.Product, error) {
	if _, err := s.sessionRepo.Current(ctx); err != nil {
		if errors.Is(err, repository.ErrNoActiveSession) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to check session: %w", err)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	return product, nil
}
