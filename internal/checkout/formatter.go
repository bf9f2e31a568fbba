package checkout

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"minimarket/internal/cart"
	"minimarket/internal/domain"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	googleMapsURL    = "https://www.google.com/maps?q=%s,%s"
	yandexGoURL      = "https://3.redirect.appmetrica.yandex.com/route?end-lat=%s&end-lon=%s&appmetrica_tracking_id=1178268795219780156"
	timestampLayout  = "02.01.2006, 15:04:05"
	weightedLineUnit = "dona"
)

var numbers = message.NewPrinter(language.English)

// Telegram's HTML mode only requires these three to be escaped
var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// FormatOptions holds the shop settings that appear in order messages
type FormatOptions struct {
	CardNumber string
	Location   *time.Location
}

// PaymentLabel is the human readable payment method
func PaymentLabel(method domain.PaymentMethod, cardNumber string) string {
	switch method {
	case domain.PaymentCash:
		return "Naqd pul"
	case domain.PaymentCardTransfer:
		return fmt.Sprintf("Karta orqali (%s)", cardNumber)
	case domain.PaymentOnDelivery:
		return "Yetkazib berganda to'lov"
	}
	return string(method)
}

// WeightLabel renders a gram selector as "300 g" or "1.5 kg"
func WeightLabel(grams int) string {
	if grams >= 1000 {
		return strconv.FormatFloat(float64(grams)/1000, 'f', -1, 64) + " kg"
	}
	return strconv.Itoa(grams) + " g"
}

// OrderItems converts cart lines into order items. Weighted lines carry the
// selector in the name, count in pieces and use the rounded per-piece price.
func OrderItems(lines []domain.CartLine) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(lines))

	for _, line := range lines {
		item := domain.OrderItem{
			ProductID: line.Product.ID,
			Name:      line.Product.DisplayName(),
			Quantity:  line.Quantity,
			Price:     cart.UnitPrice(line.Product, line.WeightGrams),
			Unit:      line.Product.Unit,
		}
		if line.WeightGrams > 0 {
			item.Name = fmt.Sprintf("%s (%s)", item.Name, WeightLabel(line.WeightGrams))
			item.Unit = weightedLineUnit
		}
		items = append(items, item)
	}

	return items
}

// NewOrderID returns the last six digits of the epoch milliseconds
func NewOrderID(now time.Time) string {
	return fmt.Sprintf("%06d", now.UnixMilli()%1_000_000)
}

// FormatOrderMessage renders the HTML notification for an order. The output
// depends only on the order and options.
func FormatOrderMessage(order domain.Order, opts FormatOptions) string {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder

	fmt.Fprintf(&b, "🛒 <b>YANGI BUYURTMA #%s</b>\n\n", escapeHTML(order.ID))
	fmt.Fprintf(&b, "📞 Telefon: <b>%s</b>\n", escapeHTML(order.Phone))
	fmt.Fprintf(&b, "📍 Manzil: <b>%s</b>", escapeHTML(order.Address))

	if order.HasLocation() {
		lat := formatCoordinate(*order.Latitude)
		lng := formatCoordinate(*order.Longitude)
		fmt.Fprintf(&b, "\n📍 <a href=\"%s\">Xaritada ko'rish</a>", fmt.Sprintf(googleMapsURL, lat, lng))
		fmt.Fprintf(&b, "\n🚕 <a href=\"%s\">Yandex Go orqali yetkazish</a>", escapeHTML(fmt.Sprintf(yandexGoURL, lat, lng)))
	}

	fmt.Fprintf(&b, "\n\n💳 To'lov: <b>%s</b>\n\n", escapeHTML(PaymentLabel(order.PaymentMethod, opts.CardNumber)))

	b.WriteString("📦 <b>Mahsulotlar:</b>\n")
	for i, item := range order.Items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s — %d %s x %s = %s so'm",
			i+1,
			escapeHTML(item.Name),
			item.Quantity,
			escapeHTML(string(item.Unit)),
			FormatAmount(item.Price),
			FormatAmount(item.Subtotal()),
		)
	}

	fmt.Fprintf(&b, "\n\n💰 <b>Jami: %s so'm</b>", FormatAmount(order.Total))

	if note := strings.TrimSpace(order.Note); note != "" {
		fmt.Fprintf(&b, "\n\n📝 Izoh: %s", escapeHTML(note))
	}

	fmt.Fprintf(&b, "\n\n⏰ Vaqt: %s", order.CreatedAt.In(loc).Format(timestampLayout))

	return b.String()
}

// FormatAmount groups thousands: 12000 -> "12,000"
func FormatAmount(amount int64) string {
	return numbers.Sprintf("%d", amount)
}

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
