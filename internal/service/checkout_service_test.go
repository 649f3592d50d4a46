package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const testGatewayDelay = 5 * time.Millisecond

type checkoutFixture struct {
	*storeFixture
	orders   repository.OrderRepository
	checkout CheckoutService
}

func newCheckoutFixture() *checkoutFixture {
	base := newStoreFixture()
	orders := repository.NewOrderRepository(base.store)

	return &checkoutFixture{
		storeFixture: base,
		orders:       orders,
		checkout:     NewCheckoutService(base.sessions, base.carts, orders, testGatewayDelay),
	}
}

// fill logs in, creates a product and puts one unit in the cart
func (f *checkoutFixture) fill(t *testing.T, email string) *domain.Product {
	t.Helper()
	ctx := context.Background()

	if err := f.login(ctx, email); err != nil {
		t.Fatalf("Could not set session: %v", err)
	}
	product, err := f.addProduct(ctx, "Wireless Headphones", 199.99)
	if err != nil {
		t.Fatalf("Could not create product: %v", err)
	}
	if _, err := f.cart.Add(ctx, product.ID); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return product
}

func awaitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCODFinalizesImmediately(t *testing.T) {
	fixture := newCheckoutFixture()
	defer fixture.checkout.Close()
	ctx := context.Background()

	fixture.fill(t, "shopper@example.com")

	order, err := fixture.checkout.Start(ctx, domain.PaymentMethodCOD)
	if err != nil {
		t.Fatalf("Start(COD) failed: %v", err)
	}
	if order == nil {
		t.Fatal("Start(COD) should return the created order")
	}

	if order.Status != domain.OrderStatusPlacedCOD {
		t.Errorf("Expected status %q, got %q", domain.OrderStatusPlacedCOD, order.Status)
	}
	if !strings.HasPrefix(order.ID, "ORD-") {
		t.Errorf("Expected ORD- prefixed id, got %q", order.ID)
	}
	if order.Total < 199.98 || order.Total > 200.00 {
		t.Errorf("Unexpected total %f", order.Total)
	}

	if fixture.checkout.State() != StateIdle {
		t.Errorf("Machine should be idle after COD, got %s", fixture.checkout.State())
	}

	cart, err := fixture.cart.Get(ctx)
	if err != nil {
		t.Fatalf("Get cart failed: %v", err)
	}
	if !cart.IsEmpty() {
		t.Error("Cart should be empty after a finalized order")
	}

	history, err := fixture.checkout.OrdersFor(ctx, "shopper@example.com")
	if err != nil {
		t.Fatalf("OrdersFor failed: %v", err)
	}
	if len(history) != 1 || history[0].ID != order.ID {
		t.Errorf("Order should appear in the ledger, got %+v", history)
	}
}

func TestCardConfirmFinalizesAsPaid(t *testing.T) {
	fixture := newCheckoutFixture()
	defer fixture.checkout.Close()
	ctx := context.Background()

	fixture.fill(t, "shopper@example.com")

	order, err := fixture.checkout.Start(ctx, domain.PaymentMethodCard)
	if err != nil {
		t.Fatalf("Start(CARD) failed: %v", err)
	}
	if order != nil {
		t.Fatal("Start(CARD) should not return an order before confirmation")
	}
	if state := fixture.checkout.State(); state != StateProcessing {
		t.Fatalf("Expected processing state, got %s", state)
	}

	if err := fixture.checkout.AwaitDecision(awaitCtx(t)); err != nil {
		t.Fatalf("AwaitDecision failed: %v", err)
	}
	if state := fixture.checkout.State(); state != StateAwaitingDecision {
		t.Fatalf("Expected awaiting_decision state, got %s", state)
	}

	order, err = fixture.checkout.Confirm(ctx)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if order.Status != domain.OrderStatusPaid {
		t.Errorf("Expected status %q, got %q", domain.OrderStatusPaid, order.Status)
	}
	if order.PaymentMethod != domain.PaymentMethodCard {
		t.Errorf("Expected payment method CARD, got %s", order.PaymentMethod)
	}

	cart, err := fixture.cart.Get(ctx)
	if err != nil {
		t.Fatalf("Get cart failed: %v", err)
	}
	if !cart.IsEmpty() {
		t.Error("Cart should be empty after confirmation")
	}
	if fixture.checkout.State() != StateIdle {
		t.Errorf("Machine should return to idle, got %s", fixture.checkout.State())
	}
}

func TestDeclineKeepsCartAndLedger(t *testing.T) {
	fixture := newCheckoutFixture()
	defer fixture.checkout.Close()
	ctx := context.Background()

	fixture.fill(t, "shopper@example.com")

	if _, err := fixture.checkout.Start(ctx, domain.PaymentMethodUPI); err != nil {
		t.Fatalf("Start(UPI) failed: %v", err)
	}
	if err := fixture.checkout.AwaitDecision(awaitCtx(t)); err != nil {
		t.Fatalf("AwaitDecision failed: %v", err)
	}

	if err := fixture.checkout.Decline(ctx); !errors.Is(err, ErrGatewayDeclined) {
		t.Fatalf("Expected ErrGatewayDeclined, got %v", err)
	}

	cart, err := fixture.cart.Get(ctx)
	if err != nil {
		t.Fatalf("Get cart failed: %v", err)
	}
	if cart.IsEmpty() {
		t.Error("Declining must leave the cart untouched")
	}

	history, err := fixture.checkout.OrdersFor(ctx, "shopper@example.com")
	if err != nil {
		t.Fatalf("OrdersFor failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Declined attempt must not create an order, got %d", len(history))
	}

	if fixture.checkout.State() != StateIdle {
		t.Errorf("Machine should return to idle, got %s", fixture.checkout.State())
	}

	// The machine is reusable after a decline
	if _, err := fixture.checkout.Start(ctx, domain.PaymentMethodCOD); err != nil {
		t.Errorf("Start after decline failed: %v", err)
	}
}

func TestStartWhileProcessingIsRejected(t *testing.T) {
	fixture := newCheckoutFixture()
	defer fixture.checkout.Close()
	ctx := context.Background()

	fixture.fill(t, "shopper@example.com")

	if _, err := fixture.checkout.Start(ctx, domain.PaymentMethodCard); err != nil {
		t.Fatalf("Start(CARD) failed: %v", err)
	}

	if _, err := fixture.checkout.Start(ctx, domain.PaymentMethodCOD); !errors.Is(err, ErrCheckoutInProgress) {
		t.Errorf("Expected ErrCheckoutInProgress while processing, got %v", err)
	}

	if err := fixture.checkout.AwaitDecision(awaitCtx(t)); err != nil {
		t.Fatalf("AwaitDecision failed: %v", err)
	}

	if _, err := fixture.checkout.Start(ctx, domain.PaymentMethodCOD); !errors.Is(err, ErrCheckoutInProgress) {
		t.Errorf("Expected ErrCheckoutInProgress while awaiting decision, got %v", err)
	}
}

func TestEmptyCartCannotCheckout(t *testing.T) {
	fixture := newCheckoutFixture()
	defer fixture.checkout.Close()
	ctx := context.Background()

	if err := fixture.login(ctx, "shopper@example.com"); err != nil {
		t.Fatalf("Could not set session: %v", err)
	}

	if _, err := fixture.checkout.Start(ctx, domain.PaymentMethodCOD); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("Expected ErrEmptyCart, got %v", err)
	}
}

func TestDecisionWithoutPendingPayment(t *testing.T) {
	fixture := newCheckoutFixture()
	defer fixture.checkout.Close()
	ctx := context.Background()

	if _, err := fixture.checkout.Confirm(ctx); !errors.Is(err, ErrPaymentNotPending) {
		t.Errorf("Confirm while idle: expected ErrPaymentNotPending, got %v", err)
	}
	if err := fixture.checkout.Decline(ctx); !errors.Is(err, ErrPaymentNotPending) {
		t.Errorf("Decline while idle: expected ErrPaymentNotPending, got %v", err)
	}

	// Confirm during the processing window is also rejected
	fixture.fill(t, "shopper@example.com")
	if _, err := fixture.checkout.Start(ctx, domain.PaymentMethodCard); err != nil {
		t.Fatalf("Start(CARD) failed: %v", err)
	}
	if _, err := fixture.checkout.Confirm(ctx); !errors.Is(err, ErrPaymentNotPending) {
		t.Errorf("Confirm while processing: expected ErrPaymentNotPending, got %v", err)
	}
}

func TestInvalidPaymentMethodRejected(t *testing.T) {
	fixture := newCheckoutFixture()
	defer fixture.checkout.Close()
	ctx := context.Background()

	fixture.fill(t, "shopper@example.com")

	if _, err := fixture.checkout.Start(ctx, domain.PaymentMethod("BITCOIN")); !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Errorf("Expected ErrInvalidPaymentMethod, got %v", err)
	}
}

func TestCheckoutRequiresSession(t *testing.T) {
	fixture := newCheckoutFixture()
	defer fixture.checkout.Close()
	ctx := context.Background()

	if _, err := fixture.checkout.Start(ctx, domain.PaymentMethodCOD); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Expected ErrUnauthenticated, got %v", err)
	}
}

func TestConfirmAfterCartChangedIsFenced(t *testing.T) {
	fixture := newCheckoutFixture()
	defer fixture.checkout.Close()
	ctx := context.Background()

	product := fixture.fill(t, "shopper@example.com")

	if _, err := fixture.checkout.Start(ctx, domain.PaymentMethodCard); err != nil {
		t.Fatalf("Start(CARD) failed: %v", err)
	}
	if err := fixture.checkout.AwaitDecision(awaitCtx(t)); err != nil {
		t.Fatalf("AwaitDecision failed: %v", err)
	}

	// Mutate the cart behind the pending attempt's back
	if _, err := fixture.cart.Add(ctx, product.ID); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if _, err := fixture.checkout.Confirm(ctx); !errors.Is(err, ErrCartChanged) {
		t.Fatalf("Expected ErrCartChanged, got %v", err)
	}

	history, err := fixture.checkout.OrdersFor(ctx, "shopper@example.com")
	if err != nil {
		t.Fatalf("OrdersFor failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Fenced attempt must not create an order, got %d", len(history))
	}

	cart, err := fixture.cart.Get(ctx)
	if err != nil {
		t.Fatalf("Get cart failed: %v", err)
	}
	if cart.ItemCount() != 2 {
		t.Errorf("Cart must keep the concurrent mutation, got %d items", cart.ItemCount())
	}

	if fixture.checkout.State() != StateIdle {
		t.Errorf("Machine should return to idle after a fenced attempt, got %s", fixture.checkout.State())
	}
}

// Property: every finalized order carries an ORD- prefixed id, and ids
// never repeat across checkouts
func TestProperty_OrderIDsArePrefixedAndUnique(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("ids are ORD- prefixed and unique", prop.ForAll(
		func(checkouts int) bool {
			fixture := newCheckoutFixture()
			defer fixture.checkout.Close()
			ctx := context.Background()

			product := fixture.fill(t, "shopper@example.com")

			seen := make(map[string]bool)
			for i := 0; i < checkouts; i++ {
				if i > 0 {
					if _, err := fixture.cart.Add(ctx, product.ID); err != nil {
						t.Logf("FAIL: Add failed: %v", err)
						return false
					}
				}

				order, err := fixture.checkout.Start(ctx, domain.PaymentMethodCOD)
				if err != nil {
					t.Logf("FAIL: Start failed: %v", err)
					return false
				}

				if !strings.HasPrefix(order.ID, "ORD-") {
					t.Logf("FAIL: Bad id %q", order.ID)
					return false
				}
				if seen[order.ID] {
					t.Logf("FAIL: Duplicate id %q", order.ID)
					return false
				}
				seen[order.ID] = true
			}

			return true
		},
		gen.IntRange(1, 15),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestOrderHistoryIsNewestFirstAndPerUser(t *testing.T) {
	fixture := newCheckoutFixture()
	defer fixture.checkout.Close()
	ctx := context.Background()

	product := fixture.fill(t, "alice@example.com")

	first, err := fixture.checkout.Start(ctx, domain.PaymentMethodCOD)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := fixture.cart.Add(ctx, product.ID); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	second, err := fixture.checkout.Start(ctx, domain.PaymentMethodCOD)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// A different user's order must not leak into alice's history
	if err := fixture.login(ctx, "bob@example.com"); err != nil {
		t.Fatalf("Could not switch session: %v", err)
	}
	if _, err := fixture.cart.Add(ctx, product.ID); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := fixture.checkout.Start(ctx, domain.PaymentMethodCOD); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	history, err := fixture.checkout.OrdersFor(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("OrdersFor failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 orders for alice, got %d", len(history))
	}
	if history[0].ID != second.ID || history[1].ID != first.ID {
		t.Errorf("Expected newest-first ordering, got %s then %s", history[0].ID, history[1].ID)
	}
}
