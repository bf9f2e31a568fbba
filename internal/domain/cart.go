package domain

// CartLine is one entry in a cart. WeightGrams is zero when no weight selector
// was chosen; a non-zero selector makes the line a distinct variant of the product.
type CartLine struct {
	Product     Product `json:"product"`
	Quantity    int     `json:"quantity"`
	WeightGrams int     `json:"weightGrams,omitempty"`
}
