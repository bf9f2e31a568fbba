package transport

import (
	"errors"
	"net/http"

	"minimarket/internal/checkout"
	"minimarket/internal/domain"
	"minimarket/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// CheckoutRequest is the order form. Field checks beyond JSON shape happen
// in checkout.Validate so their messages reach the customer unchanged.
type CheckoutRequest struct {
	Phone         string   `json:"phone"`
	Address       string   `json:"address"`
	Latitude      *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude     *float64 `json:"longitude" validate:"omitempty,longitude"`
	PaymentMethod string   `json:"payment_method"`
	Note          string   `json:"note" validate:"max=500"`
}

// CheckoutHandler places orders and lists past ones
type CheckoutHandler struct {
	checkout checkout.Service
	options  checkout.Options
	logger   *zap.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkoutService checkout.Service, options checkout.Options, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkoutService,
		options:  options,
		logger:   logger,
	}
}

// RegisterRoutes registers checkout and order history routes
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/checkout", func(r chi.Router) {
		r.Get("/options", h.GetOptions)
		r.Post("/", h.PlaceOrder)
	})
	r.Get("/api/orders", h.ListOrders)
}

func (h *CheckoutHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, h.options)
}

// PlaceOrder submits the session's cart as an order
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req CheckoutRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	order, err := h.checkout.PlaceOrder(r.Context(), session, checkout.Request{
		Phone:         req.Phone,
		Address:       req.Address,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Note:          req.Note,
	})
	if err != nil {
		var validationErr *checkout.ValidationError
		switch {
		case errors.As(err, &validationErr):
			middleware.RespondWithFieldError(w, validationErr.Field, validationErr.Message)
		case errors.Is(err, checkout.ErrDispatchFailed):
			middleware.RespondWithError(w, http.StatusBadGateway, "Buyurtma yuborilmadi. Qaytadan urinib ko'ring")
		case errors.Is(err, checkout.ErrCartUnavailable):
			middleware.RespondWithError(w, http.StatusServiceUnavailable, "cart is temporarily unavailable")
		default:
			h.logger.Error("Checkout failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to place order")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// ListOrders returns the session's order history, newest first
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionID(w, r)
	if !ok {
		return
	}

	limit, ok := queryInt(r, "limit", defaultHistoryLimit)
	if !ok || limit == 0 {
		middleware.RespondWithFieldError(w, "limit", "Value must be greater than 0")
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	orders, err := h.checkout.History(r.Context(), session, limit)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, orders)
}
