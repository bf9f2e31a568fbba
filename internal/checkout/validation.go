package checkout

import (
	"strings"

	"minimarket/internal/domain"
)

// MinPhoneLength is the shortest accepted phone number after trimming
const MinPhoneLength = 9

// Request is what the customer submits at checkout
type Request struct {
	Phone         string
	Address       string
	Latitude      *float64
	Longitude     *float64
	PaymentMethod domain.PaymentMethod
	Note          string
}

// ValidationError rejects a checkout before anything leaves the server.
// Message is shown to the customer as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks a request against the cart it would order
func Validate(req Request, lines []domain.CartLine) error {
	if len(strings.TrimSpace(req.Phone)) < MinPhoneLength {
		return &ValidationError{Field: "phone", Message: "Telefon raqamni to'g'ri kiriting"}
	}
	if strings.TrimSpace(req.Address) == "" {
		return &ValidationError{Field: "address", Message: "Manzilni kiriting yoki lokatsiya yuboring"}
	}
	if len(lines) == 0 {
		return &ValidationError{Field: "cart", Message: "Savatcha bo'sh"}
	}
	if !req.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Message: "To'lov usulini tanlang"}
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return &ValidationError{Field: "location", Message: "Joylashuv to'liq emas"}
	}
	return nil
}
