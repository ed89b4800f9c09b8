// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Auth
	JWTSecret     string
	JWTExpiry     time.Duration
	AdminEmail    string // seed admin created on first run when no users exist
	AdminPassword string

	// Fraud scoring
	FraudThreshold   float64 // score >= this is Suspicious
	WarningThreshold float64 // score >= this is Review
	MinTrainSamples  int     // history size required before the anomaly model trains
	RetrainEvery     int     // retrain after every N committed transactions

	// Deposits
	MinDeposit     float64
	DepositLatency time.Duration // simulated payment-gateway processing time

	// Observability
	RateLimitRPS int
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort             = "8080"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultJWTExpiryHours   = 24
	DefaultFraudThreshold   = 0.7
	DefaultWarningThreshold = 0.4
	DefaultMinTrainSamples  = 10
	DefaultRetrainEvery     = 10
	DefaultMinDeposit       = 10.0
	DefaultDepositLatencyMS = 2000
	DefaultRateLimit        = 100
	DefaultAdminEmail       = "admin@securechain.com"
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:      os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		JWTSecret:        os.Getenv("JWT_SECRET"),   // Required, no default
		JWTExpiry:        time.Duration(getEnvInt64("JWT_EXPIRY_HOURS", DefaultJWTExpiryHours)) * time.Hour,
		AdminEmail:       getEnv("ADMIN_EMAIL", DefaultAdminEmail),
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
		FraudThreshold:   getEnvFloat("FRAUD_THRESHOLD", DefaultFraudThreshold),
		WarningThreshold: getEnvFloat("WARNING_THRESHOLD", DefaultWarningThreshold),
		MinTrainSamples:  int(getEnvInt64("MIN_TRAIN_SAMPLES", DefaultMinTrainSamples)),
		RetrainEvery:     int(getEnvInt64("RETRAIN_EVERY", DefaultRetrainEvery)),
		MinDeposit:       getEnvFloat("MIN_DEPOSIT", DefaultMinDeposit),
		DepositLatency:   time.Duration(getEnvInt64("DEPOSIT_LATENCY_MS", DefaultDepositLatencyMS)) * time.Millisecond,
		RateLimitRPS:     int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and coherent
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}

	if c.WarningThreshold <= 0 || c.WarningThreshold >= 1 {
		return fmt.Errorf("WARNING_THRESHOLD must be in (0, 1)")
	}
	if c.FraudThreshold <= c.WarningThreshold || c.FraudThreshold > 1 {
		return fmt.Errorf("FRAUD_THRESHOLD must be greater than WARNING_THRESHOLD and at most 1")
	}

	if c.MinDeposit <= 0 {
		return fmt.Errorf("MIN_DEPOSIT must be positive")
	}
	if c.RetrainEvery <= 0 {
		return fmt.Errorf("RETRAIN_EVERY must be positive")
	}
	if c.MinTrainSamples <= 0 {
		return fmt.Errorf("MIN_TRAIN_SAMPLES must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
