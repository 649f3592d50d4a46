package transport

import (
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StartCheckoutRequest represents the start-checkout payload
type StartCheckoutRequest struct {
	Method string `json:"method" validate:"required"`
}

// CheckoutStateResponse reports the payment machine state
type CheckoutStateResponse struct {
	State string `json:"state"`
}

// CheckoutHandler handles HTTP requests for the checkout flow and the
// order history
type CheckoutHandler struct {
	checkout service.CheckoutService
	logger   *zap.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkout service.CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		logger:   logger,
	}
}

// RegisterRoutes registers checkout and order routes; every route needs
// a session. extra middleware (rate limiting) wraps the checkout group.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router, requireUser func(http.Handler) http.Handler, extra ...func(http.Handler) http.Handler) {
	r.Route("/api/checkout", func(r chi.Router) {
		r.Use(requireUser)
		r.Use(extra...)

		r.Post("/", h.Start)
		r.Get("/", h.State)
		r.Post("/confirm", h.Confirm)
		r.Post("/decline", h.Decline)
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(requireUser)
		r.Get("/", h.Orders)
	})
}

// Start begins a checkout attempt. COD responds with the created order;
// CARD/UPI respond 202 while the simulated gateway processes.
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartCheckoutRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	method := domain.PaymentMethod(strings.ToUpper(req.Method))

	order, err := h.checkout.Start(r.Context(), method)
	if err != nil {
		h.respondCheckoutError(w, err)
		return
	}

	if order != nil {
		h.logger.Info("Order placed",
			zap.String("order_id", order.ID),
			zap.String("method", string(order.PaymentMethod)),
		)
		middleware.RespondWithJSON(w, http.StatusCreated, order)
		return
	}

	middleware.RespondWithJSON(w, http.StatusAccepted, CheckoutStateResponse{State: h.checkout.State().String()})
}

// State reports the machine state for the UI to poll
func (h *CheckoutHandler) State(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, CheckoutStateResponse{State: h.checkout.State().String()})
}

// Confirm completes a pending CARD/UPI payment
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkout.Confirm(r.Context())
	if err != nil {
		h.respondCheckoutError(w, err)
		return
	}

	h.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("method", string(order.PaymentMethod)),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// Decline abandons a pending CARD/UPI payment, leaving the cart intact
func (h *CheckoutHandler) Decline(w http.ResponseWriter, r *http.Request) {
	err := h.checkout.Decline(r.Context())
	if errors.Is(err, service.ErrGatewayDeclined) {
		middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
			"message": "payment declined, your cart is unchanged",
			"state":   h.checkout.State().String(),
		})
		return
	}
	if err != nil {
		h.respondCheckoutError(w, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, CheckoutStateResponse{State: h.checkout.State().String()})
}

// Orders returns the session user's order history, newest first
func (h *CheckoutHandler) Orders(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "please login first")
		return
	}

	orders, err := h.checkout.OrdersFor(r.Context(), user.Email)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

func (h *CheckoutHandler) respondCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		middleware.RespondWithError(w, http.StatusUnauthorized, "please login first")
	case errors.Is(err, service.ErrEmptyCart):
		middleware.RespondWithError(w, http.StatusBadRequest, "your cart is empty")
	case errors.Is(err, service.ErrInvalidPaymentMethod):
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid payment method")
	case errors.Is(err, service.ErrCheckoutInProgress):
		middleware.RespondWithError(w, http.StatusConflict, "a checkout is already in progress")
	case errors.Is(err, service.ErrPaymentNotPending):
		middleware.RespondWithError(w, http.StatusConflict, "no payment awaiting a decision")
	case errors.Is(err, service.ErrCartChanged):
		middleware.RespondWithError(w, http.StatusConflict, "cart changed since checkout started")
	default:
		h.logger.Error("Checkout failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "checkout failed")
	}
}
