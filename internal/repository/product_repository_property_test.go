package repository

import (
	"context"
	"errors"
	"testing"

	"minimarket/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func createTestCategory(t *testing.T, ctx context.Context) *domain.Category {
	t.Helper()
	category := &domain.Category{
		ID:     "cat-" + uuid.NewString(),
		Name:   "Фрукты",
		NameUz: "Mevalar",
		Icon:   "apple",
		Color:  "#4CAF50",
	}
	if err := NewCategoryRepository(testDB).Create(ctx, category); err != nil {
		t.Fatalf("Failed to create category: %v", err)
	}
	return category
}

// Creating then reading a product preserves every attribute
func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	ctx := context.Background()
	productRepo := NewProductRepository(testDB)
	category := createTestCategory(t, ctx)

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(nameUz string, description string, price int64, unitIdx int, withOldPrice bool, inStock bool) bool {
			product := &domain.Product{
				ID:          uuid.NewString(),
				Name:        nameUz + " ru",
				NameUz:      nameUz,
				Price:       price,
				Unit:        domain.Units[unitIdx],
				Image:       "https://cdn.example.com/" + nameUz + ".jpg",
				CategoryID:  category.ID,
				Description: description,
				InStock:     inStock,
				IsFeatured:  !inStock,
				IsOnSale:    withOldPrice,
				Rating:      domain.DefaultRating,
			}
			if withOldPrice {
				old := price + 1000
				product.OldPrice = &old
			}

			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}
			defer productRepo.Delete(ctx, product.ID)

			retrieved, err := productRepo.FindByID(ctx, product.ID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			if retrieved.Name != product.Name || retrieved.NameUz != product.NameUz {
				t.Logf("FAIL: Name mismatch. Expected %s/%s, got %s/%s", product.Name, product.NameUz, retrieved.Name, retrieved.NameUz)
				return false
			}
			if retrieved.Price != product.Price || retrieved.Unit != product.Unit {
				t.Logf("FAIL: Price/unit mismatch. Expected %d/%s, got %d/%s", product.Price, product.Unit, retrieved.Price, retrieved.Unit)
				return false
			}
			if (retrieved.OldPrice == nil) != (product.OldPrice == nil) {
				t.Logf("FAIL: OldPrice presence mismatch")
				return false
			}
			if product.OldPrice != nil && *retrieved.OldPrice != *product.OldPrice {
				t.Logf("FAIL: OldPrice mismatch. Expected %d, got %d", *product.OldPrice, *retrieved.OldPrice)
				return false
			}
			if retrieved.CategoryID != product.CategoryID || retrieved.Description != product.Description {
				t.Logf("FAIL: Category/description mismatch")
				return false
			}
			if retrieved.InStock != product.InStock || retrieved.IsFeatured != product.IsFeatured || retrieved.IsOnSale != product.IsOnSale {
				t.Logf("FAIL: Flag mismatch")
				return false
			}
			if retrieved.CreatedAt.IsZero() || retrieved.UpdatedAt.IsZero() {
				t.Logf("FAIL: Timestamps not set")
				return false
			}

			return true
		},
		gen.RegexMatch(`[A-Za-z]{3,30}`),
		gen.RegexMatch(`[A-Za-z0-9 .,!?]{10,200}`),
		gen.Int64Range(100, 5_000_000),
		gen.IntRange(0, len(domain.Units)-1),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Updates are visible on the next read and are returned by Update itself
func TestProperty_ProductUpdatesAreReflected(t *testing.T) {
	ctx := context.Background()
	productRepo := NewProductRepository(testDB)
	category := createTestCategory(t, ctx)

	properties := gopter.NewProperties(nil)

	properties.Property("updated attributes are returned and persisted", prop.ForAll(
		func(newPrice int64, newName string) bool {
			product := &domain.Product{
				ID:         uuid.NewString(),
				Name:       "Olma",
				NameUz:     "Olma",
				Price:      10000,
				Unit:       domain.UnitKilogram,
				CategoryID: category.ID,
				InStock:    true,
				Rating:     domain.DefaultRating,
			}
			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}
			defer productRepo.Delete(ctx, product.ID)

			update := *product
			update.Price = newPrice
			update.NameUz = newName
			update.InStock = false
			if err := productRepo.Update(ctx, &update); err != nil {
				t.Logf("FAIL: Failed to update product: %v", err)
				return false
			}

			if update.Price != newPrice || update.NameUz != newName {
				t.Logf("FAIL: Update did not return the stored row")
				return false
			}

			retrieved, err := productRepo.FindByID(ctx, product.ID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			return retrieved.Price == newPrice && retrieved.NameUz == newName && !retrieved.InStock
		},
		gen.Int64Range(1, 1_000_000),
		gen.RegexMatch(`[A-Za-z]{3,30}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductRepository_ListFiltersByCategory(t *testing.T) {
	ctx := context.Background()
	productRepo := NewProductRepository(testDB)
	fruits := createTestCategory(t, ctx)
	dairy := createTestCategory(t, ctx)

	for i, categoryID := range []string{fruits.ID, fruits.ID, dairy.ID} {
		product := &domain.Product{
			ID:         uuid.NewString(),
			Name:       "p",
			NameUz:     "p",
			Price:      int64(1000 * (i + 1)),
			Unit:       domain.UnitPiece,
			CategoryID: categoryID,
			InStock:    true,
		}
		if err := productRepo.Create(ctx, product); err != nil {
			t.Fatalf("Failed to create product: %v", err)
		}
		defer productRepo.Delete(ctx, product.ID)
	}

	products, err := productRepo.List(ctx, ProductFilter{CategoryID: fruits.ID})
	if err != nil {
		t.Fatalf("Failed to list products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("Expected 2 fruit products, got %d", len(products))
	}
	for _, p := range products {
		if p.CategoryID != fruits.ID {
			t.Errorf("Product %s has category %s", p.ID, p.CategoryID)
		}
	}
}

func TestProductRepository_MissingProduct(t *testing.T) {
	ctx := context.Background()
	productRepo := NewProductRepository(testDB)

	if _, err := productRepo.FindByID(ctx, "missing"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("FindByID: expected ErrProductNotFound, got %v", err)
	}
	if err := productRepo.Delete(ctx, "missing"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Delete: expected ErrProductNotFound, got %v", err)
	}
	if err := productRepo.Update(ctx, &domain.Product{ID: "missing", Unit: domain.UnitPiece, Price: 1}); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Update: expected ErrProductNotFound, got %v", err)
	}
}

func TestCategoryRepository_DuplicateID(t *testing.T) {
	ctx := context.Background()
	category := createTestCategory(t, ctx)

	dup := &domain.Category{ID: category.ID, Name: "x", NameUz: "x"}
	if err := NewCategoryRepository(testDB).Create(ctx, dup); !errors.Is(err, ErrCategoryAlreadyExists) {
		t.Errorf("expected ErrCategoryAlreadyExists, got %v", err)
	}
}
