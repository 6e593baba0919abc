// Package config loads agent configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"dexagent/internal/engine"
)

// Config holds every tunable for the trading agent. Values are read once at
// startup and never mutated afterwards.
type Config struct {
	// Market data
	DexScreenerBaseURL string
	DexScreenerWSURL   string
	RequestTimeout     time.Duration
	Chain              string

	// Paper trading
	StartingBalance     float64
	CapitalReserve      float64
	MinPositionCapital  float64
	MaxPositions        int
	MaxPositionFraction float64
	MinConfidence       float64
	StopLossPercent     float64

	// Polling loops
	MarketScanInterval    time.Duration
	PositionCheckInterval time.Duration
	DeepAnalysisInterval  time.Duration
	StatusReportInterval  time.Duration
	ErrorBackoff          time.Duration

	// Price history
	HistoryWindow time.Duration

	// Persistence; empty values disable the corresponding store.
	PostgresDSN        string
	ClickHouseAddr     string
	ClickHouseDatabase string
	SnapshotPath       string

	// Notifications
	WebhookURL       string
	NotificationsDir string

	// Metrics; empty disables the endpoint.
	MetricsAddr string

	// Demo mode replaces the live market source with generated data.
	DemoMode bool
	DemoSeed int64

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables with fallback to a
// .env file. Priority order: environment variables > .env file > defaults.
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DexScreenerBaseURL: getEnv("DEXSCREENER_BASE_URL", "https://api.dexscreener.com"),
		DexScreenerWSURL:   getEnv("DEXSCREENER_WS_URL", ""),
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		Chain:              getEnv("CHAIN", ""),

		StartingBalance:     getEnvFloat("STARTING_BALANCE", 1000),
		CapitalReserve:      getEnvFloat("CAPITAL_RESERVE", 500),
		MinPositionCapital:  getEnvFloat("MIN_POSITION_CAPITAL", 50),
		MaxPositions:        getEnvInt("MAX_POSITIONS", 5),
		MaxPositionFraction: getEnvFloat("MAX_POSITION_FRACTION", 0.2),
		MinConfidence:       getEnvFloat("MIN_CONFIDENCE", 65),
		StopLossPercent:     getEnvFloat("STOP_LOSS_PERCENT", 15),

		MarketScanInterval:    time.Duration(getEnvInt("MARKET_SCAN_INTERVAL_SECONDS", 300)) * time.Second,
		PositionCheckInterval: time.Duration(getEnvInt("POSITION_CHECK_INTERVAL_SECONDS", 60)) * time.Second,
		DeepAnalysisInterval:  time.Duration(getEnvInt("DEEP_ANALYSIS_INTERVAL_SECONDS", 900)) * time.Second,
		StatusReportInterval:  time.Duration(getEnvInt("STATUS_REPORT_INTERVAL_SECONDS", 600)) * time.Second,
		ErrorBackoff:          time.Duration(getEnvInt("ERROR_BACKOFF_SECONDS", 60)) * time.Second,

		HistoryWindow: time.Duration(getEnvInt("HISTORY_WINDOW_HOURS", 24)) * time.Hour,

		PostgresDSN:        getEnv("POSTGRES_DSN", ""),
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "dexagent"),
		SnapshotPath:       getEnv("SNAPSHOT_PATH", "portfolio_state.json"),

		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		NotificationsDir: getEnv("NOTIFICATIONS_DIR", ""),

		MetricsAddr: getEnv("METRICS_ADDR", ""),

		DemoMode: getEnvBool("DEMO_MODE", false),
		DemoSeed: int64(getEnvInt("DEMO_SEED", 42)),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.StartingBalance <= 0 {
		return fmt.Errorf("STARTING_BALANCE must be positive")
	}
	if c.CapitalReserve < 0 {
		return fmt.Errorf("CAPITAL_RESERVE must not be negative")
	}
	if c.MaxPositions < 1 {
		return fmt.Errorf("MAX_POSITIONS must be at least 1")
	}
	if c.MaxPositionFraction <= 0 || c.MaxPositionFraction > 1 {
		return fmt.Errorf("MAX_POSITION_FRACTION must be in (0, 1]")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		return fmt.Errorf("MIN_CONFIDENCE must be between 0 and 100")
	}
	if c.DexScreenerBaseURL == "" && !c.DemoMode {
		return fmt.Errorf("DEXSCREENER_BASE_URL is required outside demo mode")
	}
	return nil
}

// EngineConfig maps the loaded values onto the decision engine's thresholds,
// keeping the engine defaults for anything the environment does not cover.
func (c *Config) EngineConfig() engine.Config {
	ec := engine.DefaultConfig()
	ec.Chain = c.Chain
	ec.CapitalReserve = c.CapitalReserve
	ec.MinPositionCapital = c.MinPositionCapital
	ec.MaxPositions = c.MaxPositions
	ec.MaxPositionFraction = c.MaxPositionFraction
	ec.MinConfidence = c.MinConfidence
	ec.StopLossPercent = c.StopLossPercent
	return ec
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
