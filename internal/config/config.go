package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	TenantPool    TenantPoolConfig
	IdP           IdPConfig
	ReBAC         ReBACConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds platform database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// TenantPoolConfig tunes the per-tenant connection pools opened by the router
type TenantPoolConfig struct {
	MaxConnsPerTenant int
	MaxTenantPools    int
}

// IdPConfig holds identity provider configuration
type IdPConfig struct {
	// Mode selects the provider implementation: "memory" for development,
	// anything else must be wired explicitly at startup.
	Mode              string
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32
}

// ReBACConfig holds relationship-authorization service configuration
type ReBACConfig struct {
	Endpoint       string
	DefaultStoreID string
	MaxAttempts    int
	RetryInterval  time.Duration
	CallTimeout    time.Duration
	FailureRate    float64
	MinCalls       int
	Window         time.Duration
	OpenDuration   time.Duration
	HalfOpenProbes int
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "tenantgrid"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "tenantgrid"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		TenantPool: TenantPoolConfig{
			MaxConnsPerTenant: parseInt("TENANT_POOL_MAX_CONNS", 5),
			MaxTenantPools:    parseInt("TENANT_POOL_MAX_POOLS", 256),
		},
		IdP: IdPConfig{
			Mode:              getEnv("IDP_MODE", "memory"),
			Argon2Memory:      uint32(parseInt("ARGON2_MEMORY", 65536)),
			Argon2Iterations:  uint32(parseInt("ARGON2_ITERATIONS", 3)),
			Argon2Parallelism: uint8(parseInt("ARGON2_PARALLELISM", 4)),
			Argon2SaltLength:  uint32(parseInt("ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLength:   uint32(parseInt("ARGON2_KEY_LENGTH", 32)),
		},
		ReBAC: ReBACConfig{
			Endpoint:       getEnv("REBAC_ENDPOINT", ""),
			DefaultStoreID: getEnv("REBAC_DEFAULT_STORE_ID", ""),
			MaxAttempts:    parseInt("REBAC_MAX_ATTEMPTS", 3),
			RetryInterval:  parseDuration("REBAC_RETRY_INTERVAL", "100ms"),
			CallTimeout:    parseDuration("REBAC_CALL_TIMEOUT", "2s"),
			FailureRate:    parseFloat("REBAC_FAILURE_RATE", 0.5),
			MinCalls:       parseInt("REBAC_MIN_CALLS", 5),
			Window:         parseDuration("REBAC_WINDOW", "10s"),
			OpenDuration:   parseDuration("REBAC_OPEN_DURATION", "30s"),
			HalfOpenProbes: parseInt("REBAC_HALF_OPEN_PROBES", 3),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "tenantgrid"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.ReBAC.Endpoint != "" && c.ReBAC.DefaultStoreID == "" {
		return fmt.Errorf("REBAC_DEFAULT_STORE_ID is required when REBAC_ENDPOINT is set")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
