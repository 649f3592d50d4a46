package server

import (
	"fmt"
	"net/http"
	"time"

	"storefront/internal/config"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/kvstore"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config   *config.Config
	logger   *zap.Logger
	checkout service.CheckoutService
}

// NewServer wires repositories, services and handlers onto a chi
// router. redisClient may be nil; rate limiting is skipped without it.
func NewServer(cfg *config.Config, logger *zap.Logger, store kvstore.Store, redisClient *redis.Client) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Initialize repositories
	productRepo := repository.NewProductRepository(store)
	userRepo := repository.NewUserRepository(store)
	sessionRepo := repository.NewSessionRepository(store)
	cartRepo := repository.NewCartRepository(store)
	orderRepo := repository.NewOrderRepository(store)

	// Initialize services
	accountService := service.NewAccountService(userRepo, sessionRepo)
	catalogService := service.NewCatalogService(productRepo, cartRepo)
	cartService := service.NewCartService(cartRepo, productRepo, sessionRepo)
	checkoutService := service.NewCheckoutService(sessionRepo, cartRepo, orderRepo, cfg.Checkout.GatewayDelay)

	// Initialize handlers
	accountHandler := transport.NewAccountHandler(accountService, logger)
	catalogHandler := transport.NewCatalogHandler(catalogService, logger)
	cartHandler := transport.NewCartHandler(cartService, logger)
	checkoutHandler := transport.NewCheckoutHandler(checkoutService, logger)

	requireUser := custommiddleware.RequireUser(accountService, logger)
	requireAdmin := custommiddleware.RequireAdmin(logger)

	var checkoutExtra []func(http.Handler) http.Handler
	if redisClient != nil {
		checkoutExtra = append(checkoutExtra, custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "checkout_rate_limit",
		}, logger))
	}

	// Register routes
	accountHandler.RegisterRoutes(router, requireUser)
	catalogHandler.RegisterRoutes(router, requireUser, requireAdmin)
	cartHandler.RegisterRoutes(router, requireUser)
	checkoutHandler.RegisterRoutes(router, requireUser, checkoutExtra...)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:   cfg,
		logger:   logger,
		checkout: checkoutService,
	}
}

// Close releases server resources; any armed gateway timer is cancelled
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")
	s.checkout.Close()
	s.logger.Sync()
	return nil
}
