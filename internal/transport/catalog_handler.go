package transport

import (
	"errors"
	"net/http"
	"strings"

	"minimarket/internal/catalog"
	"minimarket/internal/domain"
	"minimarket/internal/middleware"
	"minimarket/internal/repository"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProductRequest is the admin payload for creating or replacing a product
type ProductRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	NameUz      string  `json:"name_uz" validate:"max=200"`
	Price       int64   `json:"price" validate:"gt=0"`
	OldPrice    *int64  `json:"old_price" validate:"omitempty,gte=0"`
	Unit        string  `json:"unit" validate:"required,oneof=kg dona litr gramm paket"`
	Image       string  `json:"image" validate:"omitempty,url"`
	CategoryID  string  `json:"category_id" validate:"required"`
	Description string  `json:"description"`
	InStock     *bool   `json:"in_stock"`
	IsFeatured  bool    `json:"is_featured"`
	IsOnSale    bool    `json:"is_on_sale"`
	Rating      float64 `json:"rating" validate:"gte=0,lte=5"`
}

func (req ProductRequest) toProduct(id string) domain.Product {
	inStock := true
	if req.InStock != nil {
		inStock = *req.InStock
	}
	return domain.Product{
		ID:          id,
		Name:        req.Name,
		NameUz:      req.NameUz,
		Price:       req.Price,
		OldPrice:    req.OldPrice,
		Unit:        domain.Unit(req.Unit),
		Image:       req.Image,
		CategoryID:  req.CategoryID,
		Description: req.Description,
		InStock:     inStock,
		IsFeatured:  req.IsFeatured,
		IsOnSale:    req.IsOnSale,
		Rating:      req.Rating,
	}
}

// CategoryRequest is the admin payload for creating a category
type CategoryRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	NameUz string `json:"name_uz" validate:"max=100"`
	Icon   string `json:"icon"`
	Image  string `json:"image" validate:"omitempty,url"`
	Color  string `json:"color"`
}

// CatalogHandler serves the cached catalog and the admin product management routes
type CatalogHandler struct {
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(c *catalog.Catalog, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: c,
		logger:  logger,
	}
}

// RegisterRoutes registers the public catalog routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/featured", h.FeaturedProducts)
		r.Get("/sale", h.SaleProducts)
		r.Get("/{id}", h.GetProduct)
	})

	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Get("/{id}/products", h.CategoryProducts)
	})
}

// RegisterAdminRoutes registers product and category management behind admin
func (h *CatalogHandler) RegisterAdminRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(adminMiddleware)

		r.Post("/api/admin/products", h.CreateProduct)
		r.Put("/api/admin/products/{id}", h.UpdateProduct)
		r.Delete("/api/admin/products/{id}", h.DeleteProduct)
		r.Post("/api/admin/categories", h.CreateCategory)
	})
}

// ListProducts returns all products, optionally filtered by ?category= or ?q=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	var products []domain.Product

	switch {
	case r.URL.Query().Get("category") != "":
		products = h.catalog.ProductsByCategory(r.URL.Query().Get("category"))
	case r.URL.Query().Has("q"):
		products = h.catalog.Search(r.URL.Query().Get("q"))
	default:
		products = h.catalog.Products()
	}

	middleware.RespondWithJSON(w, http.StatusOK, nonNil(products))
}

func (h *CatalogHandler) FeaturedProducts(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, nonNil(h.catalog.FeaturedProducts()))
}

func (h *CatalogHandler) SaleProducts(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, nonNil(h.catalog.SaleProducts()))
}

// GetProduct returns one product or 404
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := h.catalog.ProductByID(chi.URLParam(r, "id"))
	if !ok {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := h.catalog.Categories()
	if categories == nil {
		categories = []domain.Category{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// CategoryProducts returns the products of a category; unknown categories are 404
func (h *CatalogHandler) CategoryProducts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.catalog.CategoryByID(id); !ok {
		middleware.RespondWithError(w, http.StatusNotFound, "category not found")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, nonNil(h.catalog.ProductsByCategory(id)))
}

// CreateProduct adds a product to the catalog
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	product, err := h.catalog.AddProduct(r.Context(), req.toProduct(""))
	if err != nil {
		h.respondCatalogError(w, err, "failed to create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct replaces a product's fields
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ProductRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), req.toProduct(id))
	if err != nil {
		h.respondCatalogError(w, err, "failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondCatalogError(w, err, "failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateCategory adds a category to the catalog
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	category, err := h.catalog.AddCategory(r.Context(), domain.Category{
		Name:   strings.TrimSpace(req.Name),
		NameUz: strings.TrimSpace(req.NameUz),
		Icon:   req.Icon,
		Image:  req.Image,
		Color:  req.Color,
	})
	if err != nil {
		h.respondCatalogError(w, err, "failed to create category")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

func (h *CatalogHandler) respondCatalogError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, catalog.ErrInvalidUnit):
		middleware.RespondWithFieldError(w, "unit", "unknown unit")
	case errors.Is(err, catalog.ErrUnknownCategory):
		middleware.RespondWithFieldError(w, "category_id", "category does not exist")
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, repository.ErrCategoryAlreadyExists):
		middleware.RespondWithError(w, http.StatusConflict, "category already exists")
	default:
		h.logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func nonNil(products []domain.Product) []domain.Product {
	if products == nil {
		return []domain.Product{}
	}
	return products
}
