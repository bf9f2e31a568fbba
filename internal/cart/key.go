package cart

import (
	"strconv"

	"minimarket/internal/domain"
)

// Key identifies a cart line: a product, optionally narrowed to a weight
// variant. Keys compare structurally, so product ids may contain any character.
type Key struct {
	ProductID   string
	WeightGrams int
}

// NewKey builds a key; a non-positive weight means "no weight selector".
func NewKey(productID string, weightGrams int) Key {
	if weightGrams < 0 {
		weightGrams = 0
	}
	return Key{ProductID: productID, WeightGrams: weightGrams}
}

// KeyOf returns the key of an existing line
func KeyOf(line domain.CartLine) Key {
	return NewKey(line.Product.ID, line.WeightGrams)
}

// HasWeight reports whether the key carries a weight selector
func (k Key) HasWeight() bool {
	return k.WeightGrams > 0
}

// String renders the key as "productId" or "productId_weightGrams" for logs
// and display. It is not meant to be parsed back.
func (k Key) String() string {
	if !k.HasWeight() {
		return k.ProductID
	}
	return k.ProductID + "_" + strconv.Itoa(k.WeightGrams)
}
