package transport

import (
	"net/http"

	"minimarket/internal/cart"
	"minimarket/internal/catalog"
	"minimarket/internal/domain"
	"minimarket/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddItemRequest adds one unit of a product to the cart
type AddItemRequest struct {
	ProductID   string `json:"product_id" validate:"required"`
	WeightGrams int    `json:"weight_grams" validate:"gte=0"`
}

// UpdateItemRequest sets the quantity of a cart line; zero or less removes it
type UpdateItemRequest struct {
	ProductID   string `json:"product_id" validate:"required"`
	WeightGrams int    `json:"weight_grams" validate:"gte=0"`
	Quantity    int    `json:"quantity"`
}

// CartItemView is one cart line as the client renders it
type CartItemView struct {
	Key         string         `json:"key"`
	Product     domain.Product `json:"product"`
	Quantity    int            `json:"quantity"`
	WeightGrams int            `json:"weightGrams,omitempty"`
	UnitPrice   int64          `json:"unitPrice"`
	LinePrice   int64          `json:"linePrice"`
}

// CartView is the full cart with derived totals
type CartView struct {
	Items        []CartItemView `json:"items"`
	TotalItems   int            `json:"totalItems"`
	TotalPrice   int64          `json:"totalPrice"`
	Loaded       bool           `json:"loaded"`
	PersistError string         `json:"persistError,omitempty"`
}

// CartHandler exposes the session cart
type CartHandler struct {
	carts   *cart.Manager
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts *cart.Manager, c *catalog.Catalog, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: c,
		logger:  logger,
	}
}

// RegisterRoutes registers all cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Put("/items", h.UpdateItem)
		r.Delete("/items", h.RemoveItem)
	})
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.engine(w, r)
	if !ok {
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newCartView(engine))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.mutableEngine(w, r)
	if !ok {
		return
	}
	engine.ClearCart()
	middleware.RespondWithJSON(w, http.StatusOK, newCartView(engine))
}

// AddItem adds one unit of a catalog product. Weight selectors are only
// accepted for products sold by the kilogram.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	product, ok := h.catalog.ProductByID(req.ProductID)
	if !ok {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	}
	if !product.InStock {
		middleware.RespondWithError(w, http.StatusConflict, "product is out of stock")
		return
	}
	if !validWeight(product, req.WeightGrams) {
		middleware.RespondWithFieldError(w, "weight_grams", "weight is not offered for this product")
		return
	}

	engine, ok := h.mutableEngine(w, r)
	if !ok {
		return
	}
	engine.AddToCart(product, req.WeightGrams)

	middleware.RespondWithJSON(w, http.StatusOK, newCartView(engine))
}

// UpdateItem sets a line's quantity. Unknown lines are left alone.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	engine, ok := h.mutableEngine(w, r)
	if !ok {
		return
	}
	engine.UpdateQuantity(cart.NewKey(req.ProductID, req.WeightGrams), req.Quantity)

	middleware.RespondWithJSON(w, http.StatusOK, newCartView(engine))
}

// RemoveItem drops the line named by ?product_id=&weight_grams=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		middleware.RespondWithFieldError(w, "product_id", "This field is required")
		return
	}
	weightGrams, ok := queryInt(r, "weight_grams", 0)
	if !ok {
		middleware.RespondWithFieldError(w, "weight_grams", "Invalid value")
		return
	}

	engine, ok := h.mutableEngine(w, r)
	if !ok {
		return
	}
	engine.RemoveFromCart(cart.NewKey(productID, weightGrams))

	middleware.RespondWithJSON(w, http.StatusOK, newCartView(engine))
}

func (h *CartHandler) engine(w http.ResponseWriter, r *http.Request) (*cart.Engine, bool) {
	id, ok := sessionID(w, r)
	if !ok {
		return nil, false
	}
	return h.carts.Engine(r.Context(), id), true
}

// mutableEngine refuses changes while the saved cart could not be read, so a
// write cannot replace a snapshot nobody has seen yet.
func (h *CartHandler) mutableEngine(w http.ResponseWriter, r *http.Request) (*cart.Engine, bool) {
	engine, ok := h.engine(w, r)
	if !ok {
		return nil, false
	}
	if !engine.Loaded() {
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "cart is temporarily unavailable")
		return nil, false
	}
	return engine, true
}

func validWeight(product domain.Product, weightGrams int) bool {
	if weightGrams == 0 {
		return true
	}
	return product.Unit.IsWeightBased() && domain.IsWeightOption(weightGrams)
}

func newCartView(engine *cart.Engine) CartView {
	snap := engine.Snapshot()

	view := CartView{
		Items:      make([]CartItemView, 0, len(snap.Lines)),
		TotalItems: snap.TotalItems,
		TotalPrice: snap.TotalPrice,
		Loaded:     snap.Loaded,
	}
	for _, line := range snap.Lines {
		view.Items = append(view.Items, CartItemView{
			Key:         cart.KeyOf(line).String(),
			Product:     line.Product,
			Quantity:    line.Quantity,
			WeightGrams: line.WeightGrams,
			UnitPrice:   cart.UnitPrice(line.Product, line.WeightGrams),
			LinePrice:   cart.LinePrice(line),
		})
	}
	if snap.PersistError != nil {
		view.PersistError = "cart could not be saved, changes are kept in memory"
	}
	return view
}
