package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"plantscan/internal/domain"
)

const (
	CounterBackendPostgres = "postgres"
	CounterBackendRedis    = "redis"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	LogLevel    string
	Port        string
	DatabaseURL string
	DBMaxConns  int32
	JWTSecret   string
	JWTIssuer   string

	RedisURL       string
	CounterBackend string
	GuestStorePath string
	TierTablePath  string

	GeoIPDBPath     string
	DefaultTimezone string
	Location        *time.Location

	PlantIDAPIKey   string
	PlantIDBaseURL  string
	PlantIDLanguage string
	IdentifyTimeout time.Duration
	MaxImageBytes   int64

	RolloverCheckInterval time.Duration
	SubscriptionCacheTTL  time.Duration
	PaymentWebhookSecret  string
	ExpirySweepSpec       string
	CounterRetentionDays  int

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	ShutdownGrace      time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// Values from .env and .env.local fill in variables that are not already set.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		Port:        getEnv("PORT", "8080"),
		DBMaxConns:  int32(getEnvInt("DB_MAX_CONNS", 10)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTIssuer:   os.Getenv("JWT_ISSUER"),

		RedisURL:       os.Getenv("REDIS_URL"),
		CounterBackend: strings.ToLower(getEnv("COUNTER_BACKEND", CounterBackendPostgres)),
		GuestStorePath: getEnv("GUEST_STORE_PATH", "./data/guests"),
		TierTablePath:  os.Getenv("TIER_TABLE_PATH"),

		GeoIPDBPath:     os.Getenv("GEOIP_DB_PATH"),
		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "UTC"),

		PlantIDAPIKey:   os.Getenv("PLANT_ID_API_KEY"),
		PlantIDBaseURL:  getEnv("PLANT_ID_BASE_URL", "https://plant.id/api/v3"),
		PlantIDLanguage: getEnv("PLANT_ID_LANGUAGE", "en"),
		IdentifyTimeout: time.Second * time.Duration(getEnvInt("IDENTIFY_TIMEOUT_SECONDS", 30)),
		MaxImageBytes:   int64(getEnvInt("MAX_IMAGE_BYTES", 8<<20)),

		RolloverCheckInterval: time.Second * time.Duration(getEnvInt("ROLLOVER_CHECK_SECONDS", 60)),
		SubscriptionCacheTTL:  time.Second * time.Duration(getEnvInt("SUBSCRIPTION_CACHE_SECONDS", 30)),
		PaymentWebhookSecret:  os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		ExpirySweepSpec:       getEnv("EXPIRY_SWEEP_SPEC", "@every 1h"),
		CounterRetentionDays:  getEnvInt("COUNTER_RETENTION_DAYS", 35),

		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		ShutdownGrace:      time.Second * time.Duration(getEnvInt("SHUTDOWN_GRACE_SECONDS", 15)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL is required", domain.ErrConfiguration)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", domain.ErrConfiguration)
	}

	switch cfg.CounterBackend {
	case CounterBackendPostgres:
	case CounterBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("%w: REDIS_URL is required when COUNTER_BACKEND=redis", domain.ErrConfiguration)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported COUNTER_BACKEND %q", domain.ErrConfiguration, cfg.CounterBackend)
	}

	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("%w: DEFAULT_TIMEZONE: %w", domain.ErrConfiguration, err)
	}
	cfg.Location = loc

	if cfg.IdentifyTimeout <= 0 {
		return nil, fmt.Errorf("%w: IDENTIFY_TIMEOUT_SECONDS must be positive", domain.ErrConfiguration)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
