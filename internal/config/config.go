package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

// Store drivers
const (
	StoreSurreal = "surreal"
	StoreSQLite  = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Log           LogConfig
	Store         StoreConfig
	Database      DatabaseConfig
	JWT           JWTConfig
	Lifecycle     LifecycleConfig
	Idempotency   IdempotencyConfig
	Telemetry     TelemetryConfig
	Notifications NotificationConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" envDefault:"8080"`
	Env             string        `env:"SERVER_ENV" envDefault:"development"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"` // json or text
}

// StoreConfig selects the engagement store
type StoreConfig struct {
	Driver     string `env:"STORE_DRIVER" envDefault:"surreal"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"./data/craftlink.db"`
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string `env:"DB_HOST" envDefault:"localhost"`
	Port      string `env:"DB_PORT" envDefault:"8000"`
	Namespace string `env:"DB_NAMESPACE" envDefault:"craftlink"`
	Database  string `env:"DB_DATABASE" envDefault:"main"`
	User      string `env:"DB_USER" envDefault:"root"`
	Password  string `env:"DB_PASSWORD" envDefault:"root"`
}

// JWTConfig holds JWT signing settings
type JWTConfig struct {
	PrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH" envDefault:"./keys/private.pem"`
	PublicKeyPath  string `env:"JWT_PUBLIC_KEY_PATH" envDefault:"./keys/public.pem"`
	ExpirationMins int    `env:"JWT_EXPIRATION_MINS" envDefault:"60"`
	Issuer         string `env:"JWT_ISSUER" envDefault:"craftlink"`
}

// LifecycleConfig holds the engagement windows and background job settings
type LifecycleConfig struct {
	EditWindow              time.Duration `env:"EDIT_WINDOW" envDefault:"5m"`
	VisibilityWindow        time.Duration `env:"VISIBILITY_WINDOW" envDefault:"10m"`
	ReconcileEnabled        bool          `env:"RECONCILE_ENABLED" envDefault:"true"`
	ReconcileInterval       time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"`
	ReconcileBatchSize      int           `env:"RECONCILE_BATCH_SIZE" envDefault:"200"`
	ReconcileRecordTimeout  time.Duration `env:"RECONCILE_RECORD_TIMEOUT" envDefault:"5s"`
	RatingRecomputeEnabled  bool          `env:"RATING_RECOMPUTE_ENABLED" envDefault:"true"`
	RatingRecomputeInterval time.Duration `env:"RATING_RECOMPUTE_INTERVAL" envDefault:"6h"`
}

// IdempotencyConfig controls replay of creating requests
type IdempotencyConfig struct {
	TTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
}

// TelemetryConfig controls tracing and metrics
type TelemetryConfig struct {
	TracingEnabled bool   `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName    string `env:"OTEL_SERVICE_NAME" envDefault:"craftlink"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
}

// NotificationConfig holds notification rendering settings
type NotificationConfig struct {
	DefaultLocale string `env:"NOTIFICATIONS_DEFAULT_LOCALE" envDefault:"en"`
}

// Load reads .env files, if present, then the environment.
// Variables already set in the environment win over .env values.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, file := range dotenvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return parse(env.Options{})
}

// LoadFrom builds a config from the given variables only
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	for i, origin := range cfg.Server.AllowedOrigins {
		cfg.Server.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
	return &cfg, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SERVER_SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be 'json' or 'text', got '%s'", c.Log.Format))
	}

	// Store
	switch c.Store.Driver {
	case StoreSurreal:
		if c.Database.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required"))
		}
		if c.Database.Port == "" {
			errs = append(errs, errors.New("DB_PORT is required"))
		}
		if c.Database.Namespace == "" {
			errs = append(errs, errors.New("DB_NAMESPACE is required"))
		}
		if c.Database.Database == "" {
			errs = append(errs, errors.New("DB_DATABASE is required"))
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when STORE_DRIVER is sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be '%s' or '%s', got '%s'", StoreSurreal, StoreSQLite, c.Store.Driver))
	}

	// JWT
	if c.IsProduction() && c.JWT.PublicKeyPath == "" {
		errs = append(errs, errors.New("JWT_PUBLIC_KEY_PATH is required in production"))
	}
	if c.JWT.ExpirationMins <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION_MINS must be positive"))
	}
	if c.JWT.Issuer == "" {
		errs = append(errs, errors.New("JWT_ISSUER is required"))
	}

	// Lifecycle
	l := c.Lifecycle
	if l.EditWindow <= 0 {
		errs = append(errs, errors.New("EDIT_WINDOW must be positive"))
	}
	if l.VisibilityWindow <= 0 {
		errs = append(errs, errors.New("VISIBILITY_WINDOW must be positive"))
	}
	if l.EditWindow > 0 && l.VisibilityWindow > 0 && l.EditWindow > l.VisibilityWindow {
		errs = append(errs, errors.New("EDIT_WINDOW must not exceed VISIBILITY_WINDOW"))
	}
	if l.ReconcileInterval <= 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL must be positive"))
	}
	if l.ReconcileBatchSize <= 0 {
		errs = append(errs, errors.New("RECONCILE_BATCH_SIZE must be positive"))
	}
	if l.ReconcileRecordTimeout <= 0 {
		errs = append(errs, errors.New("RECONCILE_RECORD_TIMEOUT must be positive"))
	}
	if l.RatingRecomputeInterval <= 0 {
		errs = append(errs, errors.New("RATING_RECOMPUTE_INTERVAL must be positive"))
	}

	if c.Idempotency.TTL <= 0 {
		errs = append(errs, errors.New("IDEMPOTENCY_TTL must be positive"))
	}

	// Telemetry
	if c.Telemetry.TracingEnabled && c.Telemetry.OTLPEndpoint == "" {
		errs = append(errs, errors.New("OTEL_EXPORTER_OTLP_ENDPOINT is required when TRACING_ENABLED is true"))
	}

	// Notifications
	if _, err := language.Parse(c.Notifications.DefaultLocale); err != nil {
		errs = append(errs, fmt.Errorf("NOTIFICATIONS_DEFAULT_LOCALE is not a valid language tag: %w", err))
	}

	return errors.Join(errs...)
}
