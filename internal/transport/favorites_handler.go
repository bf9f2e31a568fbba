package transport

import (
	"net/http"

	"minimarket/internal/catalog"
	"minimarket/internal/domain"
	"minimarket/internal/favorites"
	"minimarket/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// FavoritesView lists the favorite ids and the products still in the catalog
type FavoritesView struct {
	ProductIDs []string         `json:"productIds"`
	Products   []domain.Product `json:"products"`
}

// FavoritesHandler manages the session's favorite products
type FavoritesHandler struct {
	store   *favorites.Store
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// NewFavoritesHandler creates a new FavoritesHandler
func NewFavoritesHandler(store *favorites.Store, c *catalog.Catalog, logger *zap.Logger) *FavoritesHandler {
	return &FavoritesHandler{
		store:   store,
		catalog: c,
		logger:  logger,
	}
}

// RegisterRoutes registers all favorites routes
func (h *FavoritesHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/favorites", func(r chi.Router) {
		r.Get("/", h.List)
		r.Put("/{productID}", h.Add)
		r.Delete("/{productID}", h.Remove)
	})
}

func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionID(w, r)
	if !ok {
		return
	}

	ids, err := h.store.List(r.Context(), session)
	if err != nil {
		h.logger.Error("Failed to list favorites", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list favorites")
		return
	}

	view := FavoritesView{
		ProductIDs: append([]string{}, ids...),
		Products:   make([]domain.Product, 0, len(ids)),
	}
	for _, id := range ids {
		// deleted products stay in the set until removed
		if product, ok := h.catalog.ProductByID(id); ok {
			view.Products = append(view.Products, product)
		}
	}

	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// Add marks a catalog product as favorite
func (h *FavoritesHandler) Add(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionID(w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "productID")
	if _, ok := h.catalog.ProductByID(productID); !ok {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	}

	if err := h.store.Add(r.Context(), session, productID); err != nil {
		h.logger.Error("Failed to add favorite", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to add favorite")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FavoritesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := h.store.Remove(r.Context(), session, chi.URLParam(r, "productID")); err != nil {
		h.logger.Error("Failed to remove favorite", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to remove favorite")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
