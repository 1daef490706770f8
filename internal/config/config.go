// Package config - application configuration management.
//
// Uses Viper for:
// - loading from YAML files
// - environment variables
// - default values
//
// Precedence (highest to lowest):
// 1. Environment variables
// 2. Config file
// 3. Default values
//
// Every setting binds under the WALLETLEDGER_ prefix and, for the knobs
// operators already know, under a short alias (DB_HOST, CACHE_LOCK_TTL, PORT).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ============================================
// Main Configuration
// ============================================

// Config is the root configuration of the service.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
}

// ============================================
// App Configuration
// ============================================

// AppConfig identifies the service instance.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, production, test
	Debug       bool   `mapstructure:"debug"`
	BuildTime   string `mapstructure:"build_time"`
	GitCommit   string `mapstructure:"git_commit"`
}

// IsDevelopment reports whether the environment is development.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the environment is production.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// ============================================
// Server Configuration
// ============================================

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the host:port listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ============================================
// Database Configuration
// ============================================

// DatabaseConfig holds the PostgreSQL settings. The millisecond knobs mirror
// the environment contract (DB_POOL_ACQUIRE_TIMEOUT_MS and friends), so they
// stay plain integers here and convert through the accessor methods.
type DatabaseConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	Name             string        `mapstructure:"name"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	PoolMax          int32         `mapstructure:"pool_max"`
	PoolMin          int32         `mapstructure:"pool_min"`
	AcquireTimeoutMS int           `mapstructure:"pool_acquire_timeout_ms"`
	IdleTimeoutMS    int           `mapstructure:"pool_idle_timeout_ms"`
	MaxConnLifetime  time.Duration `mapstructure:"pool_max_lifetime"`
}

// DSN returns the PostgreSQL connection URL.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}

// AcquireTimeout returns the pool acquire timeout as a duration.
func (c *DatabaseConfig) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutMS) * time.Millisecond
}

// IdleTimeout returns the idle connection timeout as a duration.
func (c *DatabaseConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMS) * time.Millisecond
}

// ============================================
// Cache Configuration
// ============================================

// CacheConfig holds the Redis settings plus the idempotency pipeline knobs.
// TTLs are whole seconds and the retry delay whole milliseconds, matching
// the environment contract (CACHE_IDEMPOTENCY_TTL, CACHE_LOCK_RETRY_DELAY_MS).
type CacheConfig struct {
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	Password         string `mapstructure:"password"`
	DB               int    `mapstructure:"db"`
	KeyPrefix        string `mapstructure:"key_prefix"`
	IdempotencyTTL   int    `mapstructure:"idempotency_ttl"` // seconds
	LockTTL          int    `mapstructure:"lock_ttl"`        // seconds
	LockRetries      int    `mapstructure:"lock_retries"`
	LockRetryDelayMS int    `mapstructure:"lock_retry_delay_ms"`
}

// Address returns the host:port address of the Redis instance.
func (c *CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IdempotencyExpiry returns the result-cache TTL as a duration.
func (c *CacheConfig) IdempotencyExpiry() time.Duration {
	return time.Duration(c.IdempotencyTTL) * time.Second
}

// LockExpiry returns the lease TTL as a duration.
func (c *CacheConfig) LockExpiry() time.Duration {
	return time.Duration(c.LockTTL) * time.Second
}

// LockRetryDelay returns the delay between lease acquisition attempts.
func (c *CacheConfig) LockRetryDelay() time.Duration {
	return time.Duration(c.LockRetryDelayMS) * time.Millisecond
}

// ============================================
// NATS Configuration
// ============================================

// NATSConfig holds the broker settings. An empty URL disables the outbox
// relay; events then accumulate in the outbox until an operator drains them.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// Enabled reports whether the relay should run.
func (c *NATSConfig) Enabled() bool {
	return c.URL != ""
}

// ============================================
// Telemetry Configuration
// ============================================

// TelemetryConfig holds the OpenTelemetry settings. An empty endpoint
// disables tracing entirely.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// Enabled reports whether traces should be exported.
func (c *TelemetryConfig) Enabled() bool {
	return c.OTLPEndpoint != ""
}

// ============================================
// CORS Configuration
// ============================================

// CORSConfig holds the CORS settings.
type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	ExposedHeaders   []string      `mapstructure:"exposed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

// ============================================
// Log Configuration
// ============================================

// LogConfig holds the logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, stderr
}

// ============================================
// Configuration Loading
// ============================================

// Load reads configuration from a file and the environment.
//
// configPath is the directory holding the config file (e.g. "configs"),
// configName the file name without extension (e.g. "config").
func Load(configPath, configName string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/walletledger")

	v.SetEnvPrefix("WALLETLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	// A missing file is fine: defaults plus env vars carry the config.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv reads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("WALLETLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults installs the default values.
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "walletledger")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", true)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "walletledger")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_max", 20)
	v.SetDefault("database.pool_min", 5)
	v.SetDefault("database.pool_acquire_timeout_ms", 5000)
	v.SetDefault("database.pool_idle_timeout_ms", 1800000) // 30m
	v.SetDefault("database.pool_max_lifetime", "1h")

	// Cache defaults
	v.SetDefault("cache.host", "localhost")
	v.SetDefault("cache.port", 6379)
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.key_prefix", "wallet:")
	v.SetDefault("cache.idempotency_ttl", 86400) // 24h
	v.SetDefault("cache.lock_ttl", 30)
	v.SetDefault("cache.lock_retries", 50)
	v.SetDefault("cache.lock_retry_delay_ms", 100)

	// NATS defaults: disabled until an URL is configured.
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "walletledger.events")

	// Telemetry defaults: disabled until an endpoint is configured.
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "walletledger")
	v.SetDefault("telemetry.sample_ratio", 1.0)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", "12h")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
}

// bindEnvVars binds the short environment aliases next to the prefixed names.
func bindEnvVars(v *viper.Viper) {
	// Database
	_ = v.BindEnv("database.host", "WALLETLEDGER_DATABASE_HOST", "DB_HOST")
	_ = v.BindEnv("database.port", "WALLETLEDGER_DATABASE_PORT", "DB_PORT")
	_ = v.BindEnv("database.user", "WALLETLEDGER_DATABASE_USER", "DB_USER")
	_ = v.BindEnv("database.password", "WALLETLEDGER_DATABASE_PASSWORD", "DB_PASSWORD")
	_ = v.BindEnv("database.name", "WALLETLEDGER_DATABASE_NAME", "DB_NAME")
	_ = v.BindEnv("database.ssl_mode", "WALLETLEDGER_DATABASE_SSL_MODE", "DB_SSLMODE")
	_ = v.BindEnv("database.pool_max", "WALLETLEDGER_DATABASE_POOL_MAX", "DB_POOL_MAX")
	_ = v.BindEnv("database.pool_min", "WALLETLEDGER_DATABASE_POOL_MIN", "DB_POOL_MIN")
	_ = v.BindEnv("database.pool_acquire_timeout_ms", "WALLETLEDGER_DATABASE_POOL_ACQUIRE_TIMEOUT_MS", "DB_POOL_ACQUIRE_TIMEOUT_MS")
	_ = v.BindEnv("database.pool_idle_timeout_ms", "WALLETLEDGER_DATABASE_POOL_IDLE_TIMEOUT_MS", "DB_POOL_IDLE_TIMEOUT_MS")

	// Cache
	_ = v.BindEnv("cache.host", "WALLETLEDGER_CACHE_HOST", "CACHE_HOST")
	_ = v.BindEnv("cache.port", "WALLETLEDGER_CACHE_PORT", "CACHE_PORT")
	_ = v.BindEnv("cache.password", "WALLETLEDGER_CACHE_PASSWORD", "CACHE_PASSWORD")
	_ = v.BindEnv("cache.db", "WALLETLEDGER_CACHE_DB", "CACHE_DB")
	_ = v.BindEnv("cache.key_prefix", "WALLETLEDGER_CACHE_KEY_PREFIX", "CACHE_KEY_PREFIX")
	_ = v.BindEnv("cache.idempotency_ttl", "WALLETLEDGER_CACHE_IDEMPOTENCY_TTL", "CACHE_IDEMPOTENCY_TTL")
	_ = v.BindEnv("cache.lock_ttl", "WALLETLEDGER_CACHE_LOCK_TTL", "CACHE_LOCK_TTL")
	_ = v.BindEnv("cache.lock_retries", "WALLETLEDGER_CACHE_LOCK_RETRIES", "CACHE_LOCK_RETRIES")
	_ = v.BindEnv("cache.lock_retry_delay_ms", "WALLETLEDGER_CACHE_LOCK_RETRY_DELAY_MS", "CACHE_LOCK_RETRY_DELAY_MS")

	// Server / app
	_ = v.BindEnv("server.port", "WALLETLEDGER_SERVER_PORT", "PORT")
	_ = v.BindEnv("app.environment", "WALLETLEDGER_APP_ENVIRONMENT", "ENVIRONMENT", "ENV")

	// Messaging / telemetry
	_ = v.BindEnv("nats.url", "WALLETLEDGER_NATS_URL", "NATS_URL")
	_ = v.BindEnv("telemetry.otlp_endpoint", "WALLETLEDGER_TELEMETRY_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	// Logging / CORS
	_ = v.BindEnv("log.level", "WALLETLEDGER_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("log.format", "WALLETLEDGER_LOG_FORMAT", "LOG_FORMAT")
	_ = v.BindEnv("cors.allowed_origins", "WALLETLEDGER_CORS_ALLOWED_ORIGINS", "CORS_ALLOWED_ORIGINS")
}

// ============================================
// Configuration Validation
// ============================================

var validEnvironments = map[string]bool{
	"development": true,
	"production":  true,
	"test":        true,
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if !validEnvironments[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q", c.App.Environment)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.PoolMax <= 0 {
		return fmt.Errorf("database pool_max must be positive, got %d", c.Database.PoolMax)
	}
	if c.Database.PoolMin < 0 || c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("database pool_min must be in [0, pool_max], got %d", c.Database.PoolMin)
	}

	if c.Cache.KeyPrefix == "" {
		return fmt.Errorf("cache key_prefix is required")
	}
	if c.Cache.IdempotencyTTL <= 0 {
		return fmt.Errorf("cache idempotency_ttl must be positive, got %d", c.Cache.IdempotencyTTL)
	}
	if c.Cache.LockTTL <= 0 {
		return fmt.Errorf("cache lock_ttl must be positive, got %d", c.Cache.LockTTL)
	}
	if c.Cache.LockRetries < 0 {
		return fmt.Errorf("cache lock_retries must not be negative, got %d", c.Cache.LockRetries)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %q", c.Log.Format)
	}

	if c.App.IsProduction() {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("wildcard CORS origin is not allowed in production")
			}
		}
	}

	return nil
}

// ============================================
// Environment Presets
// ============================================

// Development returns the configuration used for local development.
func Development() *Config {
	return &Config{
		App: AppConfig{
			Name:        "walletledger",
			Version:     "dev",
			Environment: "development",
			Debug:       true,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:             "localhost",
			Port:             5432,
			User:             "postgres",
			Password:         "postgres",
			Name:             "walletledger",
			SSLMode:          "disable",
			PoolMax:          10,
			PoolMin:          2,
			AcquireTimeoutMS: 5000,
			IdleTimeoutMS:    1800000,
			MaxConnLifetime:  time.Hour,
		},
		Cache: CacheConfig{
			Host:             "localhost",
			Port:             6379,
			DB:               0,
			KeyPrefix:        "wallet:",
			IdempotencyTTL:   86400,
			LockTTL:          30,
			LockRetries:      50,
			LockRetryDelayMS: 100,
		},
		NATS: NATSConfig{
			SubjectPrefix: "walletledger.events",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "walletledger",
			SampleRatio: 1.0,
		},
		CORS: CORSConfig{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Production returns a production skeleton; operators still have to supply
// credentials, origins, and endpoints through the environment.
func Production() *Config {
	cfg := Development()
	cfg.App.Environment = "production"
	cfg.App.Debug = false
	cfg.Server.Host = "0.0.0.0"
	cfg.Database.PoolMax = 20
	cfg.Database.PoolMin = 5
	cfg.CORS.AllowedOrigins = nil
	cfg.CORS.AllowedHeaders = []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", "X-Request-ID"}
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Test returns the configuration used by tests.
func Test() *Config {
	cfg := Development()
	cfg.App.Environment = "test"
	cfg.Database.Name = "walletledger_test"
	cfg.Log.Level = "error" // keep test output quiet
	return cfg
}
