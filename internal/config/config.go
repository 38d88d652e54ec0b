package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
	Currency    CurrencyConfig    `yaml:"currency"`
	Attribution AttributionConfig `yaml:"attribution"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Tracking    TrackingConfig    `yaml:"tracking"`
	Notify      NotifyConfig      `yaml:"notify"`
	Reconcile   ReconcileConfig   `yaml:"reconcile"`
	Audit       AuditConfig       `yaml:"audit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int      `yaml:"port" env:"PORT"`
	Host            string   `yaml:"host" env:"SERVER_HOST"`
	AllowedOrigins  []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	ShutdownSeconds int      `yaml:"shutdown_seconds"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	return c.Host
}

// Addr is host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// ShutdownTimeout bounds graceful shutdown.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownSeconds) * time.Second
}

// DatabaseConfig holds the PostgreSQL connection and pool settings.
type DatabaseConfig struct {
	URL                    string `yaml:"url" env:"DATABASE_URL"`
	MaxOpenConns           int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns           int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime is the pool's connection recycle age.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig points at the balance cache / lock server. Empty URL
// disables Redis; locks fall back to PostgreSQL advisory locks.
type RedisConfig struct {
	URL               string `yaml:"url" env:"REDIS_URL"`
	BalanceTTLSeconds int    `yaml:"balance_ttl_seconds"`
}

// BalanceTTL is how long a cached wallet balance may be served.
func (c RedisConfig) BalanceTTL() time.Duration {
	return time.Duration(c.BalanceTTLSeconds) * time.Second
}

// AuthConfig controls bearer-token verification.
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer     string `yaml:"issuer" env:"JWT_ISSUER"`
	DevHeaders bool   `yaml:"dev_headers" env:"AUTH_DEV_HEADERS"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level" env:"LOG_LEVEL"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on (default true).
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// CurrencyConfig describes the single settlement currency.
type CurrencyConfig struct {
	Code       string `yaml:"code"`
	MinorUnits int32  `yaml:"minor_units"`
}

// AttributionConfig holds the attribution policy and worker cadence.
type AttributionConfig struct {
	WindowHours     int `yaml:"window_hours" env:"ATTRIBUTION_WINDOW_HOURS"`
	IntervalSeconds int `yaml:"interval_seconds"`
	BatchSize       int `yaml:"batch_size"`
	LockTTLSeconds  int `yaml:"lock_ttl_seconds"`
}

// Window is the maximum click-to-conversion delay that still attributes.
func (c AttributionConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// Interval is the worker poll cadence.
func (c AttributionConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// LockTTL bounds how long one worker may hold the singleton lock.
func (c AttributionConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// CatalogConfig points at the product/promotion lookup service.
type CatalogConfig struct {
	BaseURL        string `yaml:"base_url" env:"CATALOG_BASE_URL"`
	APIKey         string `yaml:"api_key" env:"CATALOG_API_KEY"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Timeout returns the per-request timeout.
func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TrackingConfig holds the edge intake queue settings.
type TrackingConfig struct {
	Port        int    `yaml:"port" env:"TRACKING_PORT"`
	SQSQueueURL string `yaml:"sqs_queue_url" env:"TRACKING_SQS_QUEUE_URL"`
	Region      string `yaml:"region" env:"AWS_REGION"`
}

// NotifyConfig selects the promoter notification sender.
type NotifyConfig struct {
	Driver         string   `yaml:"driver" env:"NOTIFY_DRIVER"`
	KafkaBrokers   []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic     string   `yaml:"kafka_topic" env:"KAFKA_NOTIFY_TOPIC"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Timeout bounds one fire-and-forget delivery.
func (c NotifyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ReconcileConfig schedules ledger replay.
type ReconcileConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
}

// Interval returns the reconcile cadence.
func (c ReconcileConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// AuditConfig holds the daily ledger export target. Empty bucket
// disables the export.
type AuditConfig struct {
	S3Bucket string `yaml:"s3_bucket" env:"AUDIT_S3_BUCKET"`
	S3Prefix string `yaml:"s3_prefix"`
	Region   string `yaml:"region" env:"AUDIT_S3_REGION"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ShutdownSeconds == 0 {
		cfg.Server.ShutdownSeconds = 15
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 5
	}
	if cfg.Redis.BalanceTTLSeconds == 0 {
		cfg.Redis.BalanceTTLSeconds = 600
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "affiliate-ledger"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Currency.Code == "" {
		cfg.Currency.Code = "USD"
	}
	if cfg.Currency.MinorUnits == 0 {
		cfg.Currency.MinorUnits = 2
	}
	if cfg.Attribution.WindowHours == 0 {
		cfg.Attribution.WindowHours = 168
	}
	if cfg.Attribution.IntervalSeconds == 0 {
		cfg.Attribution.IntervalSeconds = 15
	}
	if cfg.Attribution.BatchSize == 0 {
		cfg.Attribution.BatchSize = 100
	}
	if cfg.Attribution.LockTTLSeconds == 0 {
		cfg.Attribution.LockTTLSeconds = 120
	}
	if cfg.Catalog.TimeoutSeconds == 0 {
		cfg.Catalog.TimeoutSeconds = 10
	}
	if cfg.Catalog.MaxRetries == 0 {
		cfg.Catalog.MaxRetries = 3
	}
	if cfg.Tracking.Port == 0 {
		cfg.Tracking.Port = 8081
	}
	if cfg.Tracking.Region == "" {
		cfg.Tracking.Region = "us-east-1"
	}
	if cfg.Notify.Driver == "" {
		cfg.Notify.Driver = "log"
	}
	if cfg.Notify.KafkaTopic == "" {
		cfg.Notify.KafkaTopic = "promoter-notifications"
	}
	if cfg.Notify.TimeoutSeconds == 0 {
		cfg.Notify.TimeoutSeconds = 5
	}
	if cfg.Reconcile.IntervalMinutes == 0 {
		cfg.Reconcile.IntervalMinutes = 60
	}
	if cfg.Audit.S3Prefix == "" {
		cfg.Audit.S3Prefix = "ledger-exports"
	}
	if cfg.Audit.Region == "" {
		cfg.Audit.Region = cfg.Tracking.Region
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment overrides: %w", err)
	}
	return cfg, nil
}
