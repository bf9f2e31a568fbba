package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"minimarket/internal/domain"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultOrderPlacedQueue = "order.placed"
	OrderPlacedEvent        = "OrderPlaced"
	producerName            = "minimarket-api"
)

// Envelope is the common wrapper of every published event
type Envelope[T any] struct {
	EventName    string    `json:"eventName"`
	EventVersion int       `json:"eventVersion"`
	EventID      string    `json:"eventId"`
	Producer     string    `json:"producer"`
	PartitionKey string    `json:"partitionKey"`
	OccurredAt   time.Time `json:"occurredAt"`
	Payload      T         `json:"payload"`
}

// OrderPlaced is published once an order message reached the shop
type OrderPlaced struct {
	OrderID       string               `json:"orderId"`
	Phone         string               `json:"phone"`
	Address       string               `json:"address"`
	Latitude      *float64             `json:"latitude,omitempty"`
	Longitude     *float64             `json:"longitude,omitempty"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	Items         []domain.OrderItem   `json:"items"`
	Total         int64                `json:"total"`
	Note          string               `json:"note,omitempty"`
	PlacedAt      time.Time            `json:"placedAt"`
}

// NewOrderPlaced wraps an order in a versioned envelope keyed by order id
func NewOrderPlaced(order domain.Order) Envelope[OrderPlaced] {
	return Envelope[OrderPlaced]{
		EventName:    OrderPlacedEvent,
		EventVersion: 1,
		EventID:      uuid.NewString(),
		Producer:     producerName,
		PartitionKey: order.ID,
		OccurredAt:   time.Now().UTC(),
		Payload: OrderPlaced{
			OrderID:       order.ID,
			Phone:         order.Phone,
			Address:       order.Address,
			Latitude:      order.Latitude,
			Longitude:     order.Longitude,
			PaymentMethod: order.PaymentMethod,
			Items:         order.Items,
			Total:         order.Total,
			Note:          order.Note,
			PlacedAt:      order.CreatedAt.UTC(),
		},
	}
}

// Publisher sends order events to a durable queue on the default exchange
type Publisher struct {
	mu    sync.Mutex
	ch    *amqp.Channel
	queue string
}

func NewPublisher(conn *amqp.Connection, queue string) (*Publisher, error) {
	if queue == "" {
		queue = DefaultOrderPlacedQueue
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// declare up front so publishing never fails on missing infra
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare %s: %w", queue, err)
	}

	return &Publisher{ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	body, err := json.Marshal(NewOrderPlaced(order))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", OrderPlacedEvent, err)
	}

	return p.publishJSON(ctx, body)
}

func (p *Publisher) publishJSON(ctx context.Context, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(
		pubCtx,
		"",      // default exchange
		p.queue, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
