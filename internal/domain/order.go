package domain

import "time"

// PaymentMethod is the manually selected way an order is paid
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCardTransfer PaymentMethod = "card_transfer"
	PaymentOnDelivery   PaymentMethod = "on_delivery"
)

// PaymentMethods lists the methods offered at checkout, in display order
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCardTransfer, PaymentOnDelivery}

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCardTransfer, PaymentOnDelivery:
		return true
	}
	return false
}

// OrderStatus tracks delivery progress of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusDelivered  OrderStatus = "delivered"
)

// Order is a submitted checkout
type Order struct {
	ID            string        `json:"id" db:"id"`
	SessionID     string        `json:"-" db:"session_id"`
	Phone         string        `json:"phone" db:"phone"`
	Address       string        `json:"address" db:"address"`
	Latitude      *float64      `json:"latitude,omitempty" db:"latitude"`
	Longitude     *float64      `json:"longitude,omitempty" db:"longitude"`
	PaymentMethod PaymentMethod `json:"paymentMethod" db:"payment_method"`
	Items         []OrderItem   `json:"items" db:"items"`
	Total         int64         `json:"total" db:"total"`
	Note          string        `json:"note,omitempty" db:"note"`
	Status        OrderStatus   `json:"status" db:"status"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
}

// HasLocation reports whether both coordinates are present
func (o Order) HasLocation() bool {
	return o.Latitude != nil && o.Longitude != nil
}

// OrderItem is a priced line of an order. Price is the unit price already
// resolved for the chosen weight.
type OrderItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
	Unit      Unit   `json:"unit"`
}

// Subtotal returns quantity times unit price
func (i OrderItem) Subtotal() int64 {
	return int64(i.Quantity) * i.Price
}
