package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"
	_ "time/tzdata"

	"minimarket/internal/cart"
	"minimarket/internal/catalog"
	"minimarket/internal/checkout"
	"minimarket/internal/config"
	"minimarket/internal/events"
	"minimarket/internal/favorites"
	custommiddleware "minimarket/internal/middleware"
	"minimarket/internal/notify"
	"minimarket/internal/repository"
	"minimarket/internal/service"
	"minimarket/internal/storage"
	"minimarket/internal/transport"

	"github.com/go-chi/chi/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config    *config.Config
	logger    *zap.Logger
	db        *sql.DB
	redis     *redis.Client
	catalog   *catalog.Catalog
	carts     *cart.Manager
	persister *cart.Persister
	amqpConn  *amqp.Connection
	publisher *events.Publisher
	cancel    context.CancelFunc
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, redisClient *redis.Client) (*Server, error) {
	location, err := time.LoadLocation(cfg.Checkout.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", cfg.Checkout.TimeZone, err)
	}

	pinHash, err := service.ResolvePINHash(cfg.Admin.Pin, cfg.Admin.PinHash)
	if err != nil {
		if !errors.Is(err, service.ErrMissingPINInput) {
			return nil, err
		}
		logger.Warn("No admin PIN configured, admin routes are locked")
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
		cancel: cancel,
	}

	// Create router
	router := chi.NewRouter()
	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.Server.IsDevelopment()))
	router.Use(custommiddleware.SessionMiddleware)
	router.Use(custommiddleware.LoggingMiddleware(logger))

	router.Get("/health", s.health)

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	adminSessionRepo := repository.NewAdminSessionRepository(db)

	// Catalog cache
	s.catalog = catalog.New(productRepo, categoryRepo, logger)
	refreshCtx, refreshCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := s.catalog.Refresh(refreshCtx); err != nil {
		logger.Error("Initial catalog refresh failed", zap.Error(err))
	}
	refreshCancel()
	go s.catalog.Run(ctx, cfg.Catalog.RefreshInterval)

	// Carts
	snapshots := cart.NewRedisStore(redisClient, cfg.Cart.SnapshotTTL)
	s.persister = cart.NewPersister(snapshots, logger)
	s.persister.Start()
	s.carts = cart.NewManager(snapshots, s.persister, logger, cfg.Cart.IdleTimeout)
	go s.carts.Run(ctx)

	// Outbound channels
	telegram := notify.NewTelegram(notify.TelegramConfig{
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
		BaseURL:  cfg.Telegram.BaseURL,
		Timeout:  cfg.Telegram.Timeout,
	}, logger)
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
		logger.Warn("Telegram is not configured, checkout will fail to dispatch")
	}

	objects := storage.NewSupabase(storage.SupabaseConfig{
		URL:            cfg.Storage.URL,
		ServiceRoleKey: cfg.Storage.ServiceRoleKey,
		Bucket:         cfg.Storage.Bucket,
	})

	var orderEvents checkout.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		if err := s.connectEvents(cfg.RabbitMQ); err != nil {
			logger.Warn("Order events disabled", zap.Error(err))
		} else {
			orderEvents = s.publisher
		}
	}

	// Initialize services
	checkoutService := checkout.NewService(s.carts, orderRepo, telegram, orderEvents, checkout.FormatOptions{
		CardNumber: cfg.Checkout.CardNumber,
		Location:   location,
	}, logger)
	adminService := service.NewAdminService(adminSessionRepo, pinHash, service.TokenSettings{
		Secret:        cfg.JWT.Secret,
		AccessExpiry:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
	})

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)
	loginLimit := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.Admin.LoginLimit,
		Window:            cfg.Admin.LoginLimitSpan,
		KeyPrefix:         "rate_limit:admin_login",
	}, logger)

	// Register routes
	catalogHandler := transport.NewCatalogHandler(s.catalog, logger)
	catalogHandler.RegisterRoutes(router)
	catalogHandler.RegisterAdminRoutes(router, authMiddleware, adminMiddleware)
	transport.NewCartHandler(s.carts, s.catalog, logger).RegisterRoutes(router)
	transport.NewCheckoutHandler(checkoutService, checkout.NewOptions(cfg.Checkout.CardNumber), logger).RegisterRoutes(router)
	transport.NewFavoritesHandler(favorites.NewStore(redisClient, cfg.Cart.SnapshotTTL), s.catalog, logger).RegisterRoutes(router)
	transport.NewAdminHandler(adminService, logger).RegisterRoutes(router, authMiddleware, loginLimit)
	transport.NewUploadHandler(objects, cfg.Storage.MaxUploadBytes, logger).RegisterRoutes(router, authMiddleware, adminMiddleware)

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

func (s *Server) connectEvents(cfg config.RabbitMQConfig) error {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	publisher, err := events.NewPublisher(conn, cfg.Queue)
	if err != nil {
		conn.Close()
		return err
	}

	s.amqpConn = conn
	s.publisher = publisher
	s.logger.Info("Order events enabled", zap.String("queue", cfg.Queue))
	return nil
}

type healthResponse struct {
	Status           string            `json:"status"`
	Database         map[string]string `json:"database"`
	Redis            string            `json:"redis"`
	Carts            int               `json:"carts"`
	CatalogRefreshed *time.Time        `json:"catalogRefreshedAt,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	resp := healthResponse{
		Status:   "ok",
		Database: map[string]string{"status": "up"},
		Redis:    "up",
		Carts:    s.carts.Len(),
	}

	if err := s.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = map[string]string{"status": "down", "error": err.Error()}
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		resp.Status = "degraded"
		resp.Redis = "down"
	}
	if at := s.catalog.RefreshedAt(); !at.IsZero() {
		resp.CatalogRefreshed = &at
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	custommiddleware.RespondWithJSON(w, status, resp)
}

// Close stops background work, writes outstanding cart snapshots and closes
// connections
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.carts.Flush(ctx); err != nil {
		s.logger.Error("Failed to flush carts", zap.Error(err))
	}
	if err := s.persister.Close(ctx); err != nil {
		s.logger.Error("Failed to stop cart persister", zap.Error(err))
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Warn("Failed to close event channel", zap.Error(err))
		}
	}
	if s.amqpConn != nil {
		if err := s.amqpConn.Close(); err != nil {
			s.logger.Warn("Failed to close rabbitmq connection", zap.Error(err))
		}
	}

	if err := s.redis.Close(); err != nil {
		s.logger.Error("Failed to close redis connection", zap.Error(err))
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
