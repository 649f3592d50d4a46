package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/kvstore"
)

var (
	ErrNoActiveSession = errors.New("no active session")
)

// SessionRepository holds the single current-user pointer. It is
// persisted so a session survives process restarts, matching the
// one-browser-profile model of the storage substrate.
type SessionRepository interface {
	Current(ctx context.Context) (*domain.User, error)
	Set(ctx context.Context, user *domain.User) error
	Clear(ctx context.Context) error
}

type sessionRepository struct {
	store kvstore.Store
}

// NewSessionRepository creates a new instance of SessionRepository
func NewSessionRepository(store kvstore.Store) SessionRepository {
	return &sessionRepository{store: store}
}

// Current returns the logged-in user, or ErrNoActiveSession
func (r *sessionRepository) Current(ctx context.Context) (*domain.User, error) {
	var user domain.User
	err := kvstore.GetJSON(ctx, r.store, kvstore.KeyCurrentUser, &user)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &user, nil
}

// Set stores user as the current session
func (r *sessionRepository) Set(ctx context.Context, user *domain.User) error {
	if err := kvstore.SetJSON(ctx, r.store, kvstore.KeyCurrentUser, user); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear removes the current session unconditionally
func (r *sessionRepository) Clear(ctx context.Context) error {
	if err := r.store.Remove(ctx, kvstore.KeyCurrentUser); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
