package service

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// CatalogService defines the interface for product management and browsing
type CatalogService interface {
	List(ctx context.Context, category, query string) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Add(ctx context.Context, product *domain.Product) (*domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error
	AddReview(ctx context.Context, productID string, review domain.Review) error
	Seed(ctx context.Context) (int, error)
}

type catalogService struct {
	productRepo repository.ProductRepository
	cartRepo    repository.CartRepository
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(productRepo repository.ProductRepository, cartRepo repository.CartRepository) CatalogService {
	return &catalogService{
		productRepo: productRepo,
		cartRepo:    cartRepo,
	}
}

// List returns products, optionally filtered by exact category and by a
// case-insensitive substring match on name, description or category.
func (s *catalogService) List(ctx context.Context, category, query string) ([]domain.Product, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	if category != "" && category != "All" {
		filtered := []domain.Product{}
		for _, p := range products {
			if p.Category == category {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}

	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		filtered := []domain.Product{}
		for _, p := range products {
			if strings.Contains(strings.ToLower(p.Name), q) ||
				strings.Contains(strings.ToLower(p.Description), q) ||
				strings.Contains(strings.ToLower(p.Category), q) {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}

	return products, nil
}

// Get retrieves a single product by ID
func (s *catalogService) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

// Add assigns a fresh ID and appends the product to the catalog
func (s *catalogService) Add(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// Update replaces the stored record matching product.ID. A missing
// product is reported as repository.ErrProductNotFound rather than
// silently ignored.
func (s *catalogService) Update(ctx context.Context, product *domain.Product) error {
	return s.productRepo.Update(ctx, product)
}

// Delete removes the product and cascades removal of any cart line
// referencing it, so the cart never holds lines for vanished products.
func (s *catalogService) Delete(ctx context.Context, id string) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return err
	}

	cart, err := s.cartRepo.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cart for cascade: %w", err)
	}

	remaining := cart.Lines[:0]
	removed := false
	for _, line := range cart.Lines {
		if line.ProductID == id {
			removed = true
			continue
		}
		remaining = append(remaining, line)
	}

	if !removed {
		return nil
	}

	cart.Lines = remaining
	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return fmt.Errorf("failed to cascade delete to cart: %w", err)
	}

	return nil
}

// AddReview appends a review to the product's review sequence
func (s *catalogService) AddReview(ctx context.Context, productID string, review domain.Review) error {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return err
	}

	product.Reviews = append(product.Reviews, review)
	return s.productRepo.Update(ctx, product)
}

// Seed loads the demo catalog when the store is empty. Returns the
// number of products created.
func (s *catalogService) Seed(ctx context.Context) (int, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(products) > 0 {
		return 0, nil
	}

	for i := range seedProducts {
		p := seedProducts[i]
		if err := s.productRepo.Create(ctx, &p); err != nil {
			return i, fmt.Errorf("failed to seed product %q: %w", p.Name, err)
		}
	}

	return len(seedProducts), nil
}

var seedProducts = []domain.Product{
	{
		Name:        "Wireless Headphones",
		Price:       199.99,
		Description: "Premium noise-cancelling headphones with 30h battery life.",
		Category:    "Electronics",
		ImageURL:    "https://images.unsplash.com/photo-1546435770-a3e426bf472b?w=500&q=80",
		Reviews: []domain.Review{
			{User: "Alice", Rating: 5, Comment: "Amazing sound quality!"},
			{User: "Bob", Rating: 4, Comment: "Comfortable but expensive."},
		},
	},
	{
		Name:        "Smart Watch",
		Price:       299.99,
		Description: "Fitness tracker with heart rate monitor and GPS.",
		Category:    "Electronics",
		ImageURL:    "https://images.unsplash.com/photo-1579586337278-3befd40fd17a?w=500&q=80",
		Reviews: []domain.Review{
			{User: "Charlie", Rating: 5, Comment: "Best tracker I have used."},
		},
	},
	{
		Name:        "Running Shoes",
		Price:       89.99,
		Description: "Lightweight and comfortable running shoes for daily use.",
		Category:    "Fashion",
		ImageURL:    "https://images.unsplash.com/photo-1542291026-7eec264c27ff?w=500&q=80",
	},
	{
		Name:        "Leather Jacket",
		Price:       149.99,
		Description: "Classic leather jacket for a stylish look.",
		Category:    "Fashion",
		ImageURL:    "https://images.unsplash.com/photo-1551028919-ac7675cf6c95?w=500&q=80",
	},
	{
		Name:        "Modern Lamp",
		Price:       49.99,
		Description: "Minimalist desk lamp with adjustable brightness.",
		Category:    "Home & Living",
		ImageURL:    "https://images.unsplash.com/photo-1507473888900-52e1adad5474?w=500&q=80",
	},
	{
		Name:        "Coffee Maker",
		Price:       129.99,
		Description: "Programmable coffee maker for the perfect brew.",
		Category:    "Home & Living",
		ImageURL:    "https://images.unsplash.com/photo-1517668808822-9ebb02f2a0e6?w=500&q=80",
	},
}
