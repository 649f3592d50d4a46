package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrCheckoutInProgress   = errors.New("a checkout is already in progress")
	ErrPaymentNotPending    = errors.New("no payment awaiting a decision")
	ErrGatewayDeclined      = errors.New("payment declined")
	ErrCartChanged          = errors.New("cart changed since checkout started")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

// CheckoutState is the payment machine's externally visible state
type CheckoutState int

const (
	// StateIdle means no checkout attempt is running
	StateIdle CheckoutState = iota
	// StateProcessing means the simulated gateway delay is running
	StateProcessing
	// StateAwaitingDecision means the gateway is waiting for the user to
	// confirm or decline the payment
	StateAwaitingDecision
)

func (s CheckoutState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateAwaitingDecision:
		return "awaiting_decision"
	default:
		return "unknown"
	}
}

// CheckoutService drives the cart-to-order transition.
//
// COD finalizes immediately. CARD and UPI run a simulated gateway delay,
// then expose exactly two transitions: Confirm finalizes the order,
// Decline abandons the attempt with the cart untouched. Only one attempt
// may run at a time; Start while not idle is rejected.
type CheckoutService interface {
	Start(ctx context.Context, method domain.PaymentMethod) (*domain.Order, error)
	AwaitDecision(ctx context.Context) error
	Confirm(ctx context.Context) (*domain.Order, error)
	Decline(ctx context.Context) error
	State() CheckoutState
	OrdersFor(ctx context.Context, userID string) ([]domain.Order, error)
	Close()
}

type paymentAttempt struct {
	id          uuid.UUID
	method      domain.PaymentMethod
	cartVersion int64
	timer       *time.Timer
	ready       chan struct{}
}

type checkoutService struct {
	sessionRepo  repository.SessionRepository
	cartRepo     repository.CartRepository
	orderRepo    repository.OrderRepository
	gatewayDelay time.Duration

	mu      sync.Mutex
	state   CheckoutState
	attempt *paymentAttempt
}

// NewCheckoutService creates a new instance of CheckoutService.
// gatewayDelay is the simulated processing time before a CARD/UPI
// attempt becomes decidable.
func NewCheckoutService(
	sessionRepo repository.SessionRepository,
	cartRepo repository.CartRepository,
	orderRepo repository.OrderRepository,
	gatewayDelay time.Duration,
) CheckoutService {
	return &checkoutService{
		sessionRepo:  sessionRepo,
		cartRepo:     cartRepo,
		orderRepo:    orderRepo,
		gatewayDelay: gatewayDelay,
		state:        StateIdle,
	}
}

// Start begins a checkout attempt. For COD it finalizes immediately and
// returns the created order. For CARD/UPI it arms the gateway delay and
// returns (nil, nil); the caller then waits for the decision phase.
func (s *checkoutService) Start(ctx context.Context, method domain.PaymentMethod) (*domain.Order, error) {
	if !method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}

	if _, err := s.sessionRepo.Current(ctx); err != nil {
		if errors.Is(err, repository.ErrNoActiveSession) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to check session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return nil, ErrCheckoutInProgress
	}

	cart, err := s.cartRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	if method == domain.PaymentMethodCOD {
		return s.finalize(ctx, cart.Version, method, domain.OrderStatusPlacedCOD)
	}

	attempt := &paymentAttempt{
		id:          uuid.New(),
		method:      method,
		cartVersion: cart.Version,
		ready:       make(chan struct{}),
	}
	s.state = StateProcessing
	s.attempt = attempt
	attempt.timer = time.AfterFunc(s.gatewayDelay, func() {
		s.gatewayReady(attempt.id)
	})

	return nil, nil
}

// gatewayReady moves the attempt from processing to awaiting-decision.
// The attempt id guards against a timer firing after Close or Decline
// already reset the machine.
func (s *checkoutService) gatewayReady(attemptID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateProcessing || s.attempt == nil || s.attempt.id != attemptID {
		return
	}

	s.state = StateAwaitingDecision
	close(s.attempt.ready)
}

// AwaitDecision blocks until the simulated gateway delay has elapsed and
// the attempt can be confirmed or declined, or until ctx is done.
func (s *checkoutService) AwaitDecision(ctx context.Context) error {
	s.mu.Lock()
	attempt := s.attempt
	s.mu.Unlock()

	if attempt == nil {
		return ErrPaymentNotPending
	}

	select {
	case <-attempt.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Confirm finalizes a CARD/UPI attempt that is awaiting a decision
func (s *checkoutService) Confirm(ctx context.Context) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingDecision {
		return nil, ErrPaymentNotPending
	}

	return s.finalize(ctx, s.attempt.cartVersion, s.attempt.method, domain.OrderStatusPaid)
}

// Decline abandons the attempt awaiting a decision. The cart and the
// ledger are left untouched so the user can retry with a fresh Start.
func (s *checkoutService) Decline(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingDecision {
		return ErrPaymentNotPending
	}

	s.reset()
	return ErrGatewayDeclined
}

// State reports the machine state for the presentation layer to poll
func (s *checkoutService) State() CheckoutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OrdersFor returns the user's order history, newest first
func (s *checkoutService) OrdersFor(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orderRepo.ListByUser(ctx, userID)
}

// Close cancels any armed gateway timer and resets the machine
func (s *checkoutService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// finalize creates the order and clears the cart. Callers hold s.mu.
// The cart is cleared iff the order was appended: a failed clear removes
// the just-appended order again so the two aggregates stay consistent.
// Whatever the outcome, the attempt is over and the machine returns to
// idle.
func (s *checkoutService) finalize(ctx context.Context, expectVersion int64, method domain.PaymentMethod, status string) (*domain.Order, error) {
	defer s.reset()

	user, err := s.sessionRepo.Current(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveSession) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to check session: %w", err)
	}

	cart, err := s.cartRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cart.Version != expectVersion {
		return nil, ErrCartChanged
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	order := &domain.Order{
		ID:            newOrderID(),
		Date:          time.Now(),
		UserID:        user.Email,
		Items:         cart.Lines,
		Total:         cart.Total(),
		PaymentMethod: method,
		Status:        status,
	}

	if err := s.orderRepo.Append(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to record order: %w", err)
	}

	if err := s.cartRepo.Clear(ctx); err != nil {
		if rmErr := s.orderRepo.Remove(ctx, order.ID); rmErr != nil {
			return nil, fmt.Errorf("failed to clear cart and to roll back order %s: %w", order.ID, err)
		}
		return nil, fmt.Errorf("failed to clear cart after order %s: %w", order.ID, err)
	}

	return order, nil
}

// reset returns the machine to idle. Callers hold s.mu.
func (s *checkoutService) reset() {
	if s.attempt != nil && s.attempt.timer != nil {
		s.attempt.timer.Stop()
	}
	s.attempt = nil
	s.state = StateIdle
}

func newOrderID() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}
