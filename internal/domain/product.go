package domain

import (
	"time"
)

// Unit is the unit of sale of a product
type Unit string

const (
	UnitKilogram Unit = "kg"
	UnitPiece    Unit = "dona"
	UnitLitre    Unit = "litr"
	UnitGram     Unit = "gramm"
	UnitPack     Unit = "paket"
)

// Units lists every unit the admin panel can assign to a product
var Units = []Unit{UnitKilogram, UnitPiece, UnitLitre, UnitGram, UnitPack}

// WeightOptions are the gram selectors offered for weight-based products
var WeightOptions = []int{100, 200, 300, 500, 700, 1000, 1500, 2000}

// DefaultRating is assigned to products created without a rating
const DefaultRating = 4.5

// IsWeightBased reports whether the unit is priced per kilogram
func (u Unit) IsWeightBased() bool {
	return u == UnitKilogram
}

// Valid reports whether u is one of the known units
func (u Unit) Valid() bool {
	for _, known := range Units {
		if u == known {
			return true
		}
	}
	return false
}

// IsWeightOption reports whether grams is one of the offered weight selectors
func IsWeightOption(grams int) bool {
	for _, w := range WeightOptions {
		if w == grams {
			return true
		}
	}
	return false
}

// Product represents a product in the catalog
type Product struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	NameUz      string    `json:"nameUz" db:"name_uz"`
	Price       int64     `json:"price" db:"price"`
	OldPrice    *int64    `json:"oldPrice,omitempty" db:"old_price"`
	Unit        Unit      `json:"unit" db:"unit"`
	Image       string    `json:"image" db:"image"`
	CategoryID  string    `json:"categoryId" db:"category_id"`
	Description string    `json:"description" db:"description"`
	InStock     bool      `json:"inStock" db:"in_stock"`
	IsFeatured  bool      `json:"isFeatured" db:"is_featured"`
	IsOnSale    bool      `json:"isOnSale" db:"is_on_sale"`
	Rating      float64   `json:"rating" db:"rating"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// DisplayName returns the Uzbek name, falling back to the Russian one
func (p Product) DisplayName() string {
	if p.NameUz != "" {
		return p.NameUz
	}
	return p.Name
}

// Category represents a product category
type Category struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	NameUz       string    `json:"nameUz" db:"name_uz"`
	Icon         string    `json:"icon" db:"icon"`
	Image        string    `json:"image" db:"image"`
	Color        string    `json:"color" db:"color"`
	ProductCount int       `json:"productCount" db:"-"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
