package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/kvstore"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user with this email already exists")
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

type userRepository struct {
	store kvstore.Store
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(store kvstore.Store) UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) load(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := kvstore.GetJSON(ctx, r.store, kvstore.KeyUsers, &users)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return []domain.User{}, nil
		}
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return users, nil
}

// Create appends a new user. The email must not already be registered.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	users, err := r.load(ctx)
	if err != nil {
		return err
	}

	for i := range users {
		if users[i].Email == user.Email {
			return ErrUserAlreadyExists
		}
	}

	users = append(users, *user)
	if err := kvstore.SetJSON(ctx, r.store, kvstore.KeyUsers, users); err != nil {
		return fmt.Errorf("failed to save users: %w", err)
	}

	return nil
}

// FindByEmail retrieves a user by their unique email
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	users, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	for i := range users {
		if users[i].Email == email {
			user := users[i]
			return &user, nil
		}
	}

	return nil, ErrUserNotFound
}
