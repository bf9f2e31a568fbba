package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"minimarket/internal/cart"
	"minimarket/internal/domain"
	"minimarket/internal/repository"

	"go.uber.org/zap"
)

// ErrDispatchFailed means the order message did not reach the shop. Nothing
// was recorded and the cart is untouched, so the customer can resubmit.
var ErrDispatchFailed = errors.New("order dispatch failed")

// ErrCartUnavailable means the session's saved cart could not be read yet
var ErrCartUnavailable = errors.New("cart is not loaded")

// Notifier delivers an order message to the shop
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// EventPublisher announces placed orders to other systems
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order domain.Order) error
}

// Carts resolves the cart of a session
type Carts interface {
	Engine(ctx context.Context, sessionID string) *cart.Engine
}

// Service places orders and exposes the order history
type Service interface {
	PlaceOrder(ctx context.Context, sessionID string, req Request) (*domain.Order, error)
	History(ctx context.Context, sessionID string, limit int) ([]*domain.Order, error)
}

type service struct {
	carts     Carts
	orders    repository.OrderRepository
	notifier  Notifier
	publisher EventPublisher
	opts      FormatOptions
	logger    *zap.Logger
	now       func() time.Time

	locks sessionLocks
}

// NewService creates a checkout service. publisher may be nil.
func NewService(carts Carts, orders repository.OrderRepository, notifier Notifier, publisher EventPublisher, opts FormatOptions, logger *zap.Logger) Service {
	return &service{
		carts:     carts,
		orders:    orders,
		notifier:  notifier,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		locks:     sessionLocks{held: make(map[string]*sessionLock)},
	}
}

// PlaceOrder validates the request against the session's cart, sends the
// order message and, once it was delivered, records the order and takes the
// ordered lines out of the cart. A failed delivery is not retried. Orders of
// one session are placed one at a time.
func (s *service) PlaceOrder(ctx context.Context, sessionID string, req Request) (*domain.Order, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	engine := s.carts.Engine(ctx, sessionID)
	if !engine.Loaded() {
		return nil, ErrCartUnavailable
	}
	lines := engine.Lines()

	if err := Validate(req, lines); err != nil {
		return nil, err
	}

	now := s.now()
	items := OrderItems(lines)
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}

	order := &domain.Order{
		ID:            NewOrderID(now),
		SessionID:     sessionID,
		Phone:         strings.TrimSpace(req.Phone),
		Address:       strings.TrimSpace(req.Address),
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		PaymentMethod: req.PaymentMethod,
		Items:         items,
		Total:         total,
		Note:          strings.TrimSpace(req.Note),
		Status:        domain.OrderStatusPending,
		CreatedAt:     now,
	}

	text := FormatOrderMessage(*order, s.opts)
	if err := s.notifier.Send(ctx, text); err != nil {
		s.logger.Error("Failed to dispatch order",
			zap.String("order_id", order.ID),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	s.logger.Info("Order dispatched",
		zap.String("order_id", order.ID),
		zap.String("session_id", sessionID),
		zap.Int("items", len(items)),
		zap.Int64("total", total),
	)

	// the shop already has the order; history and events are best effort
	if err := s.orders.Create(ctx, order); err != nil {
		s.logger.Error("Failed to record order", zap.String("order_id", order.ID), zap.Error(err))
	}
	if s.publisher != nil {
		if err := s.publisher.PublishOrderPlaced(ctx, *order); err != nil {
			s.logger.Warn("Failed to publish order event", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	engine.RemoveOrdered(lines)
	return order, nil
}

// History lists the session's orders, newest first
func (s *service) History(ctx context.Context, sessionID string, limit int) ([]*domain.Order, error) {
	orders, err := s.orders.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// sessionLocks hands out one mutex per session and forgets it once unused
type sessionLocks struct {
	mu   sync.Mutex
	held map[string]*sessionLock
}

func (l *sessionLocks) lock(sessionID string) func() {
	l.mu.Lock()
	sl, ok := l.held[sessionID]
	if !ok {
		sl = &sessionLock{}
		l.held[sessionID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()

	return func() {
		sl.mu.Unlock()

		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.held, sessionID)
		}
		l.mu.Unlock()
	}
}
