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

	// Ledger source
	StripeAPIKey string // If set, the ledger reads balance transactions from Stripe

	// Risk assessment
	RiskWindowHours     int   // Lookback window for account-level assessment
	BaselineDays        int   // Historical window for the baseline daily charge rate
	EnterpriseThreshold int64 // Minor units; charges at or above are capacity-routed

	// Routing
	PrimaryProcessor string // Processor whose health tracks the account's risk profile
	DefaultProcessor string // Safe default when no selection rule matches

	// Decision advisor (optional LLM collaborator)
	AdvisorURL     string
	AdvisorAPIKey  string
	AdvisorTimeout time.Duration

	// Market insights (optional search collaborator)
	BraveAPIKey            string
	InsightsTTL            time.Duration
	InsightsRefreshEnabled bool

	// Tracing
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort                = "8080"
	DefaultEnv                 = "development"
	DefaultLogLevel            = "info"
	DefaultRiskWindowHours     = 24
	DefaultBaselineDays        = 30
	DefaultEnterpriseThreshold = 100000 // $1,000 in cents
	DefaultPrimaryProcessor    = "stripe"
	DefaultAdvisorTimeout      = 15 * time.Second
	DefaultInsightsTTL         = 4 * time.Hour
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnv("PORT", DefaultPort),
		Env:                    getEnv("ENV", DefaultEnv),
		LogLevel:               getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:            os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		StripeAPIKey:           os.Getenv("STRIPE_API_KEY"),
		RiskWindowHours:        getEnvInt("RISK_WINDOW_HOURS", DefaultRiskWindowHours),
		BaselineDays:           getEnvInt("BASELINE_DAYS", DefaultBaselineDays),
		EnterpriseThreshold:    getEnvInt64("ENTERPRISE_THRESHOLD", DefaultEnterpriseThreshold),
		PrimaryProcessor:       getEnv("PRIMARY_PROCESSOR", DefaultPrimaryProcessor),
		DefaultProcessor:       getEnv("DEFAULT_PROCESSOR", DefaultPrimaryProcessor),
		AdvisorURL:             os.Getenv("ADVISOR_URL"),
		AdvisorAPIKey:          os.Getenv("ADVISOR_API_KEY"),
		AdvisorTimeout:         getEnvDuration("ADVISOR_TIMEOUT", DefaultAdvisorTimeout),
		BraveAPIKey:            os.Getenv("BRAVE_API_KEY"),
		InsightsTTL:            getEnvDuration("INSIGHTS_TTL", DefaultInsightsTTL),
		InsightsRefreshEnabled: getEnv("INSIGHTS_REFRESH", "true") == "true",
		OTLPEndpoint:           os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.RiskWindowHours <= 0 {
		return fmt.Errorf("RISK_WINDOW_HOURS must be positive")
	}
	if c.BaselineDays <= 0 {
		return fmt.Errorf("BASELINE_DAYS must be positive")
	}
	if c.EnterpriseThreshold <= 0 {
		return fmt.Errorf("ENTERPRISE_THRESHOLD must be positive")
	}
	if c.PrimaryProcessor == "" {
		return fmt.Errorf("PRIMARY_PROCESSOR is required")
	}
	if c.DefaultProcessor == "" {
		return fmt.Errorf("DEFAULT_PROCESSOR is required")
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
