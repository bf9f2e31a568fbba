package cart

import (
	"minimarket/internal/domain"

	"github.com/shopspring/decimal"
)

var gramsPerKilogram = decimal.NewFromInt(1000)

// UnitPrice is the price of one unit of a line. For weight-based products
// with a selector it is the per-kilogram price scaled to the chosen grams and
// rounded half away from zero to a whole so'm.
func UnitPrice(product domain.Product, weightGrams int) int64 {
	if weightGrams <= 0 || !product.Unit.IsWeightBased() {
		return product.Price
	}

	return decimal.NewFromInt(product.Price).
		Mul(decimal.NewFromInt(int64(weightGrams))).
		Div(gramsPerKilogram).
		Round(0).
		IntPart()
}

// LinePrice rounds the unit price first and then scales by quantity, so the
// displayed unit price times quantity always equals the line total.
func LinePrice(line domain.CartLine) int64 {
	return UnitPrice(line.Product, line.WeightGrams) * int64(line.Quantity)
}
