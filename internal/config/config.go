package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Telegram TelegramConfig
	Storage  StorageConfig
	Checkout CheckoutConfig
	Cart     CartConfig
	Catalog  CatalogConfig
	RabbitMQ RabbitMQConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// IsDevelopment reports whether the server runs outside production
func (s ServerConfig) IsDevelopment() bool {
	return s.Env != "production"
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port for the redis client
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
}

// AdminConfig holds the admin panel credential. PinHash takes precedence over Pin.
type AdminConfig struct {
	Pin            string
	PinHash        string
	LoginLimit     int
	LoginLimitSpan time.Duration
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Timeout  time.Duration
}

type StorageConfig struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
	MaxUploadBytes int64
}

type CheckoutConfig struct {
	CardNumber string
	TimeZone   string
}

type CartConfig struct {
	SnapshotTTL time.Duration
	IdleTimeout time.Duration
}

type CatalogConfig struct {
	RefreshInterval time.Duration
}

// RabbitMQConfig enables order events when URL is set
type RabbitMQConfig struct {
	URL   string
	Queue string
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() *Config {
	// .env is optional; real deployments inject the environment directly
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not read .env file: %v", err)
	}

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 15)
	viper.SetDefault("JWT_REFRESH_EXPIRY", 7)
	viper.SetDefault("ADMIN_LOGIN_LIMIT", 5)
	viper.SetDefault("ADMIN_LOGIN_LIMIT_SPAN", "15m")
	viper.SetDefault("TELEGRAM_BASE_URL", "https://api.telegram.org")
	viper.SetDefault("TELEGRAM_TIMEOUT", "10s")
	viper.SetDefault("STORAGE_BUCKET", "Mini app")
	viper.SetDefault("UPLOAD_MAX_BYTES", 10<<20)
	viper.SetDefault("CHECKOUT_TIMEZONE", "Asia/Tashkent")
	viper.SetDefault("CART_SNAPSHOT_TTL", "720h")
	viper.SetDefault("CART_IDLE_TIMEOUT", "30m")
	viper.SetDefault("CATALOG_REFRESH_INTERVAL", "5m")
	viper.SetDefault("RABBITMQ_QUEUE", "order.placed")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")

	return &Config{
		Server: ServerConfig{
			Port:     viper.GetString("SERVER_PORT"),
			Env:      viper.GetString("SERVER_ENV"),
			LogLevel: viper.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("JWT_SECRET"),
			AccessExpiry:  viper.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: viper.GetInt("JWT_REFRESH_EXPIRY"),
		},
		Admin: AdminConfig{
			Pin:            viper.GetString("ADMIN_PIN"),
			PinHash:        viper.GetString("ADMIN_PIN_HASH"),
			LoginLimit:     viper.GetInt("ADMIN_LOGIN_LIMIT"),
			LoginLimitSpan: viper.GetDuration("ADMIN_LOGIN_LIMIT_SPAN"),
		},
		Telegram: TelegramConfig{
			BotToken: viper.GetString("TELEGRAM_BOT_TOKEN"),
			ChatID:   viper.GetString("TELEGRAM_ADMIN_CHAT_ID"),
			BaseURL:  viper.GetString("TELEGRAM_BASE_URL"),
			Timeout:  viper.GetDuration("TELEGRAM_TIMEOUT"),
		},
		Storage: StorageConfig{
			URL:            viper.GetString("SUPABASE_URL"),
			ServiceRoleKey: viper.GetString("SUPABASE_SERVICE_ROLE_KEY"),
			Bucket:         viper.GetString("STORAGE_BUCKET"),
			MaxUploadBytes: viper.GetInt64("UPLOAD_MAX_BYTES"),
		},
		Checkout: CheckoutConfig{
			CardNumber: viper.GetString("PAYMENT_CARD_NUMBER"),
			TimeZone:   viper.GetString("CHECKOUT_TIMEZONE"),
		},
		Cart: CartConfig{
			SnapshotTTL: viper.GetDuration("CART_SNAPSHOT_TTL"),
			IdleTimeout: viper.GetDuration("CART_IDLE_TIMEOUT"),
		},
		Catalog: CatalogConfig{
			RefreshInterval: viper.GetDuration("CATALOG_REFRESH_INTERVAL"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:   viper.GetString("RABBITMQ_URL"),
			Queue: viper.GetString("RABBITMQ_QUEUE"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
