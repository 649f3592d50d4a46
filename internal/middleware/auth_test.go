package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/kvstore"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// withTestUser injects a session user the way RequireUser would
func withTestUser(ctx context.Context, email string, isAdmin bool) context.Context {
	return context.WithValue(ctx, userKey, &domain.User{
		Name:    "Test User",
		Email:   email,
		IsAdmin: isAdmin,
	})
}

func newTestAccounts(t *testing.T) (service.AccountService, context.Context) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	accounts := service.NewAccountService(
		repository.NewUserRepository(store),
		repository.NewSessionRepository(store),
	)
	return accounts, context.Background()
}

// Property: without an active session every protected route answers 401
func TestProperty_ProtectedEndpointsRejectMissingSession(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without a session are rejected", prop.ForAll(
		func(pathSuffix string, method string) bool {
			accounts, _ := newTestAccounts(t)
			middleware := RequireUser(accounts, newTestLogger())

			handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			path := "/" + pathSuffix
			if path == "/" {
				path = "/test"
			}

			req := httptest.NewRequest(method, path, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "PUT", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRequireUserInjectsSessionUser(t *testing.T) {
	accounts, ctx := newTestAccounts(t)

	if _, err := accounts.Register(ctx, "Alice", "alice@example.com", "secret123", false); err != nil {
		t.Fatalf("Registration failed: %v", err)
	}
	if _, err := accounts.Login(ctx, "alice@example.com", "secret123"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	handlerCalled := false
	handler := RequireUser(accounts, newTestLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true

			user, ok := CurrentUser(r.Context())
			if !ok || user.Email != "alice@example.com" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest("GET", "/api/cart", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Fatal("Handler should run for an active session")
	}
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
}

func TestRequireUserAfterLogout(t *testing.T) {
	accounts, ctx := newTestAccounts(t)

	if _, err := accounts.Register(ctx, "Alice", "alice@example.com", "secret123", false); err != nil {
		t.Fatalf("Registration failed: %v", err)
	}
	if _, err := accounts.Login(ctx, "alice@example.com", "secret123"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := accounts.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	handler := RequireUser(accounts, newTestLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest("GET", "/api/cart", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 after logout, got %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(newTestLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	tests := []struct {
		name string
		ctx  func(context.Context) context.Context
		want int
	}{
		{
			name: "no user in context",
			ctx:  func(ctx context.Context) context.Context { return ctx },
			want: http.StatusForbidden,
		},
		{
			name: "regular user",
			ctx: func(ctx context.Context) context.Context {
				return withTestUser(ctx, "shopper@example.com", false)
			},
			want: http.StatusForbidden,
		},
		{
			name: "admin user",
			ctx: func(ctx context.Context) context.Context {
				return withTestUser(ctx, "admin@example.com", true)
			},
			want: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/products", nil)
			req = req.WithContext(tt.ctx(req.Context()))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}
