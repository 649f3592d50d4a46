package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10
)

var (
	// ErrInvalidCredentials never reveals whether the email or the
	// password was the mismatching field.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUnauthenticated is returned where an active session is required
	ErrUnauthenticated = errors.New("not logged in")
)

// AccountService defines the interface for registration, login and the
// current-session queries that gate cart and checkout.
type AccountService interface {
	Register(ctx context.Context, name, email, password string, isAdmin bool) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, error)
	Logout(ctx context.Context) error
	Current(ctx context.Context) (*domain.User, error)
	IsAdmin(ctx context.Context) bool
}

type accountService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
}

// NewAccountService creates a new instance of AccountService
func NewAccountService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository) AccountService {
	return &accountService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
	}
}

// Register creates a new user account with a hashed password
func (s *accountService) Register(ctx context.Context, name, email, password string, isAdmin bool) (*domain.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, repository.ErrUserAlreadyExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
		IsAdmin:      isAdmin,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login authenticates a user and sets the current session
func (s *accountService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.sessionRepo.Set(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to set session: %w", err)
	}

	return user, nil
}

// Logout clears the current session unconditionally
func (s *accountService) Logout(ctx context.Context) error {
	return s.sessionRepo.Clear(ctx)
}

// Current returns the logged-in user, or ErrUnauthenticated
func (s *accountService) Current(ctx context.Context) (*domain.User, error) {
	user, err := s.sessionRepo.Current(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveSession) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}

// IsAdmin reports whether a session is active and its user is an admin
func (s *accountService) IsAdmin(ctx context.Context) bool {
	user, err := s.sessionRepo.Current(ctx)
	return err == nil && user.IsAdmin
}
