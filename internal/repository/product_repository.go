package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/domain"
	"storefront/internal/kvstore"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// ProductRepository defines the interface for catalog data access
type ProductRepository interface {
	List(ctx context.Context) ([]domain.Product, error)
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error
}

type productRepository struct {
	store kvstore.Store
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(store kvstore.Store) ProductRepository {
	return &productRepository{store: store}
}

func (r *productRepository) load(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := kvstore.GetJSON(ctx, r.store, kvstore.KeyProducts, &products)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return []domain.Product{}, nil
		}
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	return products, nil
}

func (r *productRepository) save(ctx context.Context, products []domain.Product) error {
	if err := kvstore.SetJSON(ctx, r.store, kvstore.KeyProducts, products); err != nil {
		return fmt.Errorf("failed to save products: %w", err)
	}
	return nil
}

// List retrieves all products in stored order
func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	return r.load(ctx)
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	products, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	for i := range products {
		if products[i].ID == id {
			product := products[i]
			return &product, nil
		}
	}

	return nil, ErrProductNotFound
}

// Create assigns a fresh timestamp-derived ID and appends the product.
// IDs must be unique among stored products, so a same-millisecond
// collision gets a numeric suffix.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	products, err := r.load(ctx)
	if err != nil {
		return err
	}

	product.ID = nextProductID(products)
	products = append(products, *product)

	return r.save(ctx, products)
}

// Update replaces the stored record matching product.ID
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	products, err := r.load(ctx)
	if err != nil {
		return err
	}

	for i := range products {
		if products[i].ID == product.ID {
			products[i] = *product
			return r.save(ctx, products)
		}
	}

	return ErrProductNotFound
}

// Delete removes the product with the given ID
func (r *productRepository) Delete(ctx context.Context, id string) error {
	products, err := r.load(ctx)
	if err != nil {
		return err
	}

	remaining := products[:0]
	found := false
	for _, p := range products {
		if p.ID == id {
			found = true
			continue
		}
		remaining = append(remaining, p)
	}

	if !found {
		return ErrProductNotFound
	}

	return r.save(ctx, remaining)
}

func nextProductID(products []domain.Product) string {
	base := strconv.FormatInt(time.Now().UnixMilli(), 10)
	id := base
	for n := 1; ; n++ {
		taken := false
		for i := range products {
			if products[i].ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}
