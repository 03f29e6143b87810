package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Notification NotificationConfig
	SLA          SLAConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	SeedDefaults          bool
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// NotificationConfig controls webhook delivery to the integration layer.
type NotificationConfig struct {
	EmailFrom      string
	MuleSoftURL    string
	WebhookTimeout time.Duration
	MaxAttempts    int
	Workers        int
	QueueSize      int
}

// SLAConfig controls the timer sweeps and assignment defaults.
type SLAConfig struct {
	SweepInterval time.Duration
	SweepLockTTL  time.Duration
	// WarningThresholdPercent overrides every definition's threshold. Zero
	// leaves each definition's own threshold in charge.
	WarningThresholdPercent int
	FallbackGroup           string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "itsm-sla-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			SeedDefaults:          getEnvAsBool("APP_SEED_DEFAULTS", true),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Notification: NotificationConfig{
			EmailFrom:      getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			MuleSoftURL:    strings.TrimRight(getEnv("MULESOFT_URL", "http://mulesoft-backend:4797"), "/"),
			WebhookTimeout: getEnvAsDuration("NOTIFY_WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:    getEnvAsInt("NOTIFY_WEBHOOK_MAX_ATTEMPTS", 3),
			Workers:        getEnvAsInt("NOTIFY_WORKERS", 4),
			QueueSize:      getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
		},
		SLA: SLAConfig{
			SweepInterval:           getEnvAsDuration("SLA_SWEEP_INTERVAL", time.Minute),
			SweepLockTTL:            getEnvAsDuration("SLA_SWEEP_LOCK_TTL", 50*time.Second),
			WarningThresholdPercent: getEnvAsInt("SLA_WARNING_THRESHOLD_PERCENT", 0),
			FallbackGroup:           getEnv("SLA_FALLBACK_GROUP", "IT Service Desk"),
		},
	}

	if cfg.SLA.WarningThresholdPercent < 0 || cfg.SLA.WarningThresholdPercent > 100 {
		return nil, fmt.Errorf("invalid SLA_WARNING_THRESHOLD_PERCENT: %d", cfg.SLA.WarningThresholdPercent)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SLAWebhookURL is where SLA warnings and breaches are pushed.
func (n NotificationConfig) SLAWebhookURL() string {
	if n.MuleSoftURL == "" {
		return ""
	}
	return n.MuleSoftURL + "/api/webhooks/sla-notification"
}

// TicketWebhookURL is where ticket lifecycle notifications are pushed.
func (n NotificationConfig) TicketWebhookURL() string {
	if n.MuleSoftURL == "" {
		return ""
	}
	return n.MuleSoftURL + "/api/webhooks/ticket-notification"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
