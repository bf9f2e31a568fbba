package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"minimarket/internal/domain"
	"minimarket/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidUnit     = errors.New("invalid product unit")
	ErrUnknownCategory = errors.New("unknown category")
)

// Catalog caches the product and category lists for fast reads. Writes go to
// the repositories first and are then merged into the cache row by row.
type Catalog struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	logger     *zap.Logger

	mu           sync.RWMutex
	productList  []domain.Product
	byID         map[string]int
	categoryList []domain.Category
	featured     []domain.Product
	sale         []domain.Product
	refreshedAt  time.Time

	group singleflight.Group
}

// New creates an empty catalog; call Refresh to fill it
func New(products repository.ProductRepository, categories repository.CategoryRepository, logger *zap.Logger) *Catalog {
	return &Catalog{
		products:   products,
		categories: categories,
		logger:     logger,
		byID:       make(map[string]int),
	}
}

// Refresh re-fetches every product and category. Concurrent calls share a
// single fetch.
func (c *Catalog) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		products, err := c.products.List(ctx, repository.ProductFilter{})
		if err != nil {
			return nil, fmt.Errorf("failed to load products: %w", err)
		}

		categories, err := c.categories.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load categories: %w", err)
		}

		productList := make([]domain.Product, 0, len(products))
		for _, p := range products {
			productList = append(productList, *p)
		}
		categoryList := make([]domain.Category, 0, len(categories))
		for _, cat := range categories {
			categoryList = append(categoryList, *cat)
		}

		c.mu.Lock()
		c.productList = productList
		c.categoryList = categoryList
		c.refreshedAt = time.Now()
		c.rebuildLocked()
		c.mu.Unlock()

		c.logger.Info("Catalog refreshed",
			zap.Int("products", len(productList)),
			zap.Int("categories", len(categoryList)),
		)
		return nil, nil
	})

	return err
}

// Run refreshes the catalog every interval until ctx is cancelled
func (c *Catalog) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("Catalog refresh failed", zap.Error(err))
			}
		}
	}
}

// RefreshedAt returns when the last full refresh finished
func (c *Catalog) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

func (c *Catalog) ProductByID(id string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, false
	}
	return c.productList[i], true
}

func (c *Catalog) Products() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.productList)
}

func (c *Catalog) ProductsByCategory(categoryID string) []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Product, 0)
	for _, p := range c.productList {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) FeaturedProducts() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.featured)
}

func (c *Catalog) SaleProducts() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clone(c.sale)
}

// Categories returns categories with their current product counts
func (c *Catalog) Categories() []domain.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Category, len(c.categoryList))
	copy(out, c.categoryList)
	return out
}

func (c *Catalog) CategoryByID(id string) (domain.Category, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, cat := range c.categoryList {
		if cat.ID == id {
			return cat, true
		}
	}
	return domain.Category{}, false
}

// Search matches query case-insensitively against both product names
func (c *Catalog) Search(query string) []domain.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.Products()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Product, 0)
	for _, p := range c.productList {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.NameUz), q) {
			out = append(out, p)
		}
	}
	return out
}

// AddProduct stores a new product and merges it into the cache. Missing ids
// are generated and a missing rating gets the default.
func (c *Catalog) AddProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := c.checkProduct(product); err != nil {
		return domain.Product{}, err
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if product.Rating == 0 {
		product.Rating = domain.DefaultRating
	}

	if err := c.products.Create(ctx, &product); err != nil {
		return domain.Product{}, err
	}

	c.mu.Lock()
	c.mergeLocked(product)
	c.mu.Unlock()

	c.logger.Info("Product added", zap.String("product_id", product.ID))
	return product, nil
}

// UpdateProduct overwrites an existing product and merges the stored row
func (c *Catalog) UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := c.checkProduct(product); err != nil {
		return domain.Product{}, err
	}

	if err := c.products.Update(ctx, &product); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			c.mu.Lock()
			c.removeLocked(product.ID)
			c.mu.Unlock()
		}
		return domain.Product{}, err
	}

	c.mu.Lock()
	c.mergeLocked(product)
	c.mu.Unlock()

	c.logger.Info("Product updated", zap.String("product_id", product.ID))
	return product, nil
}

// DeleteProduct removes a product. Carts keep their copies of it.
func (c *Catalog) DeleteProduct(ctx context.Context, id string) error {
	err := c.products.Delete(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrProductNotFound) {
		return err
	}

	c.mu.Lock()
	c.removeLocked(id)
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

// AddCategory stores a new category and appends it to the cache
func (c *Catalog) AddCategory(ctx context.Context, category domain.Category) (domain.Category, error) {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}

	if err := c.categories.Create(ctx, &category); err != nil {
		return domain.Category{}, err
	}

	c.mu.Lock()
	c.categoryList = append(c.categoryList, category)
	c.rebuildLocked()
	c.mu.Unlock()

	return category, nil
}

func (c *Catalog) checkProduct(product domain.Product) error {
	if !product.Unit.Valid() {
		return ErrInvalidUnit
	}
	if _, ok := c.CategoryByID(product.CategoryID); !ok {
		return ErrUnknownCategory
	}
	return nil
}

func (c *Catalog) mergeLocked(product domain.Product) {
	if i, ok := c.byID[product.ID]; ok {
		c.productList[i] = product
	} else {
		c.productList = append(c.productList, product)
	}
	c.rebuildLocked()
}

func (c *Catalog) removeLocked(id string) {
	i, ok := c.byID[id]
	if !ok {
		return
	}
	c.productList = append(c.productList[:i], c.productList[i+1:]...)
	c.rebuildLocked()
}

// rebuildLocked recomputes every derived view after productList changed
func (c *Catalog) rebuildLocked() {
	c.byID = make(map[string]int, len(c.productList))
	c.featured = c.featured[:0:0]
	c.sale = c.sale[:0:0]
	counts := make(map[string]int)

	for i, p := range c.productList {
		c.byID[p.ID] = i
		counts[p.CategoryID]++
		if p.IsFeatured {
			c.featured = append(c.featured, p)
		}
		if p.IsOnSale {
			c.sale = append(c.sale, p)
		}
	}

	for i := range c.categoryList {
		c.categoryList[i].ProductCount = counts[c.categoryList[i].ID]
	}
}

func clone(products []domain.Product) []domain.Product {
	out := make([]domain.Product, len(products))
	copy(out, products)
	return out
}
