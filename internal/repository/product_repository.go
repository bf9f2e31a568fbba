package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"minimarket/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

const productColumns = `id, name, name_uz, price, old_price, unit, image, category_id, description,
		in_stock, is_featured, is_on_sale, rating, created_at, updated_at`

// ProductFilter narrows List by equality on a column. Empty fields match everything.
type ProductFilter struct {
	CategoryID string
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var oldPrice sql.NullInt64
	var unit string

	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.NameUz,
		&product.Price,
		&oldPrice,
		&unit,
		&product.Image,
		&product.CategoryID,
		&product.Description,
		&product.InStock,
		&product.IsFeatured,
		&product.IsOnSale,
		&product.Rating,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Unit = domain.Unit(unit)
	if oldPrice.Valid {
		product.OldPrice = &oldPrice.Int64
	}
	return product, nil
}

func nullablePrice(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// Create inserts a new product and fills in the stored timestamps
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, name, name_uz, price, old_price, unit, image, category_id,
		                      description, in_stock, is_featured, is_on_sale, rating)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.NameUz,
		product.Price,
		nullablePrice(product.OldPrice),
		string(product.Unit),
		product.Image,
		product.CategoryID,
		product.Description,
		product.InStock,
		product.IsFeatured,
		product.IsOnSale,
		product.Rating,
	).Scan(&product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update overwrites an existing product and refreshes it from the stored row
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, name_uz = $3, price = $4, old_price = $5, unit = $6, image = $7,
		    category_id = $8, description = $9, in_stock = $10, is_featured = $11,
		    is_on_sale = $12, rating = $13
		WHERE id = $1
		RETURNING ` + productColumns

	updated, err := scanProduct(r.db.QueryRowContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.NameUz,
		product.Price,
		nullablePrice(product.OldPrice),
		string(product.Unit),
		product.Image,
		product.CategoryID,
		product.Description,
		product.InStock,
		product.IsFeatured,
		product.IsOnSale,
		product.Rating,
	))

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	*product = *updated
	return nil
}

// Delete removes a product by ID
func (r *productRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM products WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// List returns every product matching the filter, oldest first
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	args := []interface{}{}

	if filter.CategoryID != "" {
		query += ` WHERE category_id = $1`
		args = append(args, filter.CategoryID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}
