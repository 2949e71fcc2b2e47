package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Kite Connect brokerage configuration
	Kite KiteConfig

	// Forecast model configuration
	Forecast ForecastConfig

	// Signal fusion configuration
	Signal SignalConfig

	// Trading configuration
	Trading TradingConfig

	// HTTP configuration
	HTTP HTTPConfig

	// Production toggles JSON logging
	Production bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// KiteConfig holds Kite Connect API configuration
type KiteConfig struct {
	APIKey         string
	APISecret      string
	RedirectURL    string
	BaseURL        string
	TradingSymbol  string
	Exchange       string
	TimeoutSeconds int
	MaxRetries     int
}

// ForecastConfig holds forecast model configuration
type ForecastConfig struct {
	ModelDir string
	Lookback int // sliding window of prior closes fed to the model
	Horizon  int // number of forecast steps unrolled per request
}

// SignalConfig holds signal fusion configuration
type SignalConfig struct {
	// SupermajorityFraction is the share of all voters that must agree for a
	// signal to be tagged STRONG.
	SupermajorityFraction float64
	// StopLossPercent is the risk fraction r used for stop placement,
	// e.g. 0.5 means stop_loss = price*(1-0.005) for a BUY.
	StopLossPercent float64
	// RiskRewardRatio scales take_profit distance relative to stop distance.
	RiskRewardRatio float64
}

// TradingConfig holds live trading configuration
type TradingConfig struct {
	Enabled     bool
	MaxQuantity int64
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr               string
	CORSAllowedOrigins string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Kite: KiteConfig{
			APIKey:         os.Getenv("KITE_API_KEY"),
			APISecret:      os.Getenv("KITE_API_SECRET"),
			RedirectURL:    getEnvString("KITE_REDIRECT_URL", "http://localhost:8000/api/auth/callback"),
			BaseURL:        getEnvString("KITE_BASE_URL", "https://api.kite.trade"),
			TradingSymbol:  getEnvString("GOLD_TRADING_SYMBOL", "GOLDPETAL"),
			Exchange:       getEnvString("GOLD_EXCHANGE", "MCX"),
			TimeoutSeconds: getEnvInt("KITE_TIMEOUT_SECONDS", 10),
			MaxRetries:     getEnvInt("KITE_MAX_RETRIES", 3),
		},
		Forecast: ForecastConfig{
			ModelDir: getEnvString("MODEL_DIR", "./models-data"),
			Lookback: getEnvInt("FORECAST_LOOKBACK", 24),
			Horizon:  getEnvInt("FORECAST_HORIZON", 12),
		},
		Signal: SignalConfig{
			SupermajorityFraction: getEnvFloat("SIGNAL_SUPERMAJORITY_FRACTION", 0.75),
			StopLossPercent:       getEnvFloat("STOP_LOSS_PERCENT", 0.5),
			RiskRewardRatio:       getEnvFloat("RISK_REWARD_RATIO", 1.5),
		},
		Trading: TradingConfig{
			Enabled:     getEnvBool("TRADING_ENABLED", false),
			MaxQuantity: int64(getEnvInt("MAX_ORDER_QUANTITY", 10)),
		},
		HTTP: HTTPConfig{
			Addr:               getEnvString("HTTP_ADDR", ":8000"),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
		},
		Production: getEnvBool("PRODUCTION", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Signal.SupermajorityFraction <= 0.5 || c.Signal.SupermajorityFraction > 1 {
		return fmt.Errorf("SIGNAL_SUPERMAJORITY_FRACTION must be in (0.5, 1], got %.2f", c.Signal.SupermajorityFraction)
	}
	if c.Signal.StopLossPercent <= 0 || c.Signal.StopLossPercent >= 100 {
		return fmt.Errorf("STOP_LOSS_PERCENT must be in (0, 100), got %.2f", c.Signal.StopLossPercent)
	}
	if c.Signal.RiskRewardRatio <= 0 {
		return fmt.Errorf("RISK_REWARD_RATIO must be positive, got %.2f", c.Signal.RiskRewardRatio)
	}
	if c.Forecast.Lookback < 2 {
		return fmt.Errorf("FORECAST_LOOKBACK must be at least 2, got %d", c.Forecast.Lookback)
	}
	if c.Forecast.Horizon <= 0 {
		return fmt.Errorf("FORECAST_HORIZON must be positive, got %d", c.Forecast.Horizon)
	}
	if c.Kite.TimeoutSeconds <= 0 {
		return fmt.Errorf("KITE_TIMEOUT_SECONDS must be positive, got %d", c.Kite.TimeoutSeconds)
	}
	if c.Kite.MaxRetries < 0 {
		return fmt.Errorf("KITE_MAX_RETRIES must not be negative, got %d", c.Kite.MaxRetries)
	}
	if c.Trading.MaxQuantity <= 0 {
		return fmt.Errorf("MAX_ORDER_QUANTITY must be positive, got %d", c.Trading.MaxQuantity)
	}
	return nil
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasKite returns true if Kite Connect credentials are available
func (c *Config) HasKite() bool {
	return c.Kite.APIKey != "" && c.Kite.APISecret != ""
}

// RiskFraction returns the stop-loss percent as a fraction of price.
func (c *Config) RiskFraction() float64 {
	return c.Signal.StopLossPercent / 100
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvInt returns the parsed value whenever it parses, out of range or not.
// Range checks live in Validate so a bad value fails Load loudly instead of
// silently becoming the default.
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL: "",
		},
		Kite: KiteConfig{
			APIKey:         "test-key",
			APISecret:      "test-secret",
			RedirectURL:    "http://localhost:8000/api/auth/callback",
			BaseURL:        "https://api.kite.trade",
			TradingSymbol:  "GOLDPETAL",
			Exchange:       "MCX",
			TimeoutSeconds: 10,
			MaxRetries:     3,
		},
		Forecast: ForecastConfig{
			ModelDir: "",
			Lookback: 24,
			Horizon:  12,
		},
		Signal: SignalConfig{
			SupermajorityFraction: 0.75,
			StopLossPercent:       0.5,
			RiskRewardRatio:       1.5,
		},
		Trading: TradingConfig{
			Enabled:     false,
			MaxQuantity: 10,
		},
		HTTP: HTTPConfig{
			Addr:               ":8000",
			CORSAllowedOrigins: "*",
		},
	}
}
