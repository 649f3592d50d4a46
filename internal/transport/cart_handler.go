package transport

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddItemRequest represents the add-to-cart and buy-now payloads
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

// SetQuantityRequest represents the quantity-update payload. Quantities
// of zero or less mean removal, so no lower bound is validated here.
type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// CartResponse is the cart plus the derived values the presentation
// layer shows after every mutation
type CartResponse struct {
	Lines     []domain.CartLine `json:"lines"`
	Total     float64           `json:"total"`
	ItemCount int               `json:"item_count"`
}

func cartResponseOf(cart *domain.Cart) CartResponse {
	lines := cart.Lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return CartResponse{
		Lines:     lines,
		Total:     cart.Total(),
		ItemCount: cart.ItemCount(),
	}
}

// CartHandler handles HTTP requests for cart operations
type CartHandler struct {
	cart   service.CartService
	logger *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cart service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cart:   cart,
		logger: logger,
	}
}

// RegisterRoutes registers all cart routes; every route needs a session
func (h *CartHandler) RegisterRoutes(r chi.Router, requireUser func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(requireUser)

		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
		r.Post("/items", h.AddItem)
		r.Put("/items/{productID}", h.SetQuantity)
		r.Delete("/items/{productID}", h.RemoveItem)
		r.Post("/buy-now", h.BuyNow)
	})
}

// Get returns the cart contents with derived totals
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cart.Get(r.Context())
	if err != nil {
		h.logger.Error("Failed to load cart", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load cart")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cartResponseOf(cart))
}

// AddItem merges a product into the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.cart.Add(r.Context(), req.ProductID)
	if err != nil {
		h.respondCartError(w, err, req.ProductID)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cartResponseOf(cart))
}

// SetQuantity overwrites a line's quantity; non-positive removes it
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var req SetQuantityRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.cart.SetQuantity(r.Context(), productID, req.Quantity)
	if err != nil {
		h.respondCartError(w, err, productID)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cartResponseOf(cart))
}

// RemoveItem deletes a cart line
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	cart, err := h.cart.Remove(r.Context(), productID)
	if err != nil {
		h.respondCartError(w, err, productID)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cartResponseOf(cart))
}

// Clear empties the cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Clear(r.Context()); err != nil {
		h.logger.Error("Failed to clear cart", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to clear cart")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cartResponseOf(&domain.Cart{}))
}

// BuyNow replaces the whole cart with a single line for the product
func (h *CartHandler) BuyNow(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, err := h.cart.ReplaceWithSingle(r.Context(), req.ProductID)
	if err != nil {
		h.respondCartError(w, err, req.ProductID)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cartResponseOf(cart))
}

func (h *CartHandler) respondCartError(w http.ResponseWriter, err error, productID string) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		middleware.RespondWithError(w, http.StatusUnauthorized, "please login first")
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	default:
		h.logger.Error("Cart operation failed", zap.Error(err), zap.String("product_id", productID))
		middleware.RespondWithError(w, http.StatusInternalServerError, "cart operation failed")
	}
}
