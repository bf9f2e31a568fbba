package checkout

import "minimarket/internal/domain"

// CardProvider is a payment app the customer can open to transfer money to
// the shop card
type CardProvider struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	URL   string `json:"url"`
}

var CardProviders = []CardProvider{
	{ID: "click", Name: "Click", Color: "#00B4FF", URL: "https://my.click.uz/"},
	{ID: "payme", Name: "Payme", Color: "#33CCCC", URL: "https://payme.uz/"},
	{ID: "paynet", Name: "Paynet", Color: "#ED1C24", URL: "https://paynet.uz/"},
}

// PaymentOption is a payment method with the label used in order messages
type PaymentOption struct {
	ID    domain.PaymentMethod `json:"id"`
	Label string               `json:"label"`
}

// Options is everything the checkout screen needs besides the cart
type Options struct {
	PaymentMethods []PaymentOption `json:"paymentMethods"`
	CardNumber     string          `json:"cardNumber"`
	CardProviders  []CardProvider  `json:"cardProviders"`
	WeightOptions  []int           `json:"weightOptions"`
	MinPhoneLength int             `json:"minPhoneLength"`
}

// NewOptions builds the checkout options for the configured shop card
func NewOptions(cardNumber string) Options {
	methods := make([]PaymentOption, 0, len(domain.PaymentMethods))
	for _, m := range domain.PaymentMethods {
		methods = append(methods, PaymentOption{ID: m, Label: PaymentLabel(m, cardNumber)})
	}

	return Options{
		PaymentMethods: methods,
		CardNumber:     cardNumber,
		CardProviders:  append([]CardProvider(nil), CardProviders...),
		WeightOptions:  append([]int(nil), domain.WeightOptions...),
		MinPhoneLength: MinPhoneLength,
	}
}
