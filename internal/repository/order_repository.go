package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"minimarket/internal/domain"
)

// OrderRepository keeps the history of submitted orders
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create stores a submitted order with its items as JSONB
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}

	query := `
		INSERT INTO orders (id, session_id, phone, address, latitude, longitude, payment_method,
		                    items, total, note, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.SessionID,
		order.Phone,
		order.Address,
		nullableFloat(order.Latitude),
		nullableFloat(order.Longitude),
		string(order.PaymentMethod),
		items,
		order.Total,
		order.Note,
		string(order.Status),
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// ListBySession returns the newest orders placed from a session
func (r *orderRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.Order, error) {
	query := `
		SELECT id, session_id, phone, address, latitude, longitude, payment_method,
		       items, total, note, status, created_at
		FROM orders
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order := &domain.Order{}
		var (
			lat, lng      sql.NullFloat64
			paymentMethod string
			status        string
			items         []byte
		)

		err := rows.Scan(
			&order.ID,
			&order.SessionID,
			&order.Phone,
			&order.Address,
			&lat,
			&lng,
			&paymentMethod,
			&items,
			&order.Total,
			&order.Note,
			&status,
			&order.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		if err := json.Unmarshal(items, &order.Items); err != nil {
			return nil, fmt.Errorf("failed to decode order items: %w", err)
		}
		if lat.Valid {
			order.Latitude = &lat.Float64
		}
		if lng.Valid {
			order.Longitude = &lng.Float64
		}
		order.PaymentMethod = domain.PaymentMethod(paymentMethod)
		order.Status = domain.OrderStatus(status)

		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
