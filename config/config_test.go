package config

import (
	"os"
	"testing"
)

var configEnvKeys = []string{
	"DATABASE_URL",
	"KITE_API_KEY",
	"KITE_API_SECRET",
	"KITE_REDIRECT_URL",
	"KITE_BASE_URL",
	"KITE_TIMEOUT_SECONDS",
	"KITE_MAX_RETRIES",
	"GOLD_TRADING_SYMBOL",
	"GOLD_EXCHANGE",
	"MODEL_DIR",
	"FORECAST_LOOKBACK",
	"FORECAST_HORIZON",
	"SIGNAL_SUPERMAJORITY_FRACTION",
	"STOP_LOSS_PERCENT",
	"RISK_REWARD_RATIO",
	"TRADING_ENABLED",
	"MAX_ORDER_QUANTITY",
	"HTTP_ADDR",
	"CORS_ALLOWED_ORIGINS",
	"PRODUCTION",
}

// saveEnv saves the current environment variables
func saveEnv(t *testing.T) map[string]string {
	t.Helper()
	saved := make(map[string]string)
	for _, key := range configEnvKeys {
		saved[key] = os.Getenv(key)
	}
	return saved
}

// restoreEnv restores previously saved environment variables
func restoreEnv(t *testing.T, saved map[string]string) {
	t.Helper()
	for key, val := range saved {
		if val == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, val)
		}
	}
}

// clearEnv clears all config environment variables
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	saved := saveEnv(t)
	defer restoreEnv(t, saved)
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Kite.BaseURL != "https://api.kite.trade" {
		t.Errorf("expected default Kite base URL, got %s", cfg.Kite.BaseURL)
	}
	if cfg.Kite.TradingSymbol != "GOLDPETAL" {
		t.Errorf("expected default trading symbol GOLDPETAL, got %s", cfg.Kite.TradingSymbol)
	}
	if cfg.Kite.TimeoutSeconds != 10 {
		t.Errorf("expected default timeout 10, got %d", cfg.Kite.TimeoutSeconds)
	}
	if cfg.Forecast.Lookback != 24 {
		t.Errorf("expected default lookback 24, got %d", cfg.Forecast.Lookback)
	}
	if cfg.Forecast.Horizon != 12 {
		t.Errorf("expected default horizon 12, got %d", cfg.Forecast.Horizon)
	}
	if cfg.Signal.SupermajorityFraction != 0.75 {
		t.Errorf("expected default supermajority 0.75, got %f", cfg.Signal.SupermajorityFraction)
	}
	if cfg.Signal.StopLossPercent != 0.5 {
		t.Errorf("expected default stop loss percent 0.5, got %f", cfg.Signal.StopLossPercent)
	}
	if cfg.Signal.RiskRewardRatio != 1.5 {
		t.Errorf("expected default risk reward 1.5, got %f", cfg.Signal.RiskRewardRatio)
	}
	if cfg.Trading.Enabled {
		t.Error("trading should be disabled by default")
	}
	if cfg.Trading.MaxQuantity != 10 {
		t.Errorf("expected default max quantity 10, got %d", cfg.Trading.MaxQuantity)
	}
	if cfg.HTTP.Addr != ":8000" {
		t.Errorf("expected default addr :8000, got %s", cfg.HTTP.Addr)
	}
	if cfg.Production {
		t.Error("production should be false by default")
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	saved := saveEnv(t)
	defer restoreEnv(t, saved)
	clearEnv(t)

	os.Setenv("KITE_API_KEY", "key123")
	os.Setenv("KITE_API_SECRET", "secret456")
	os.Setenv("FORECAST_LOOKBACK", "48")
	os.Setenv("SIGNAL_SUPERMAJORITY_FRACTION", "0.8")
	os.Setenv("TRADING_ENABLED", "true")
	os.Setenv("KITE_MAX_RETRIES", "0")
	os.Setenv("MAX_ORDER_QUANTITY", "25")
	os.Setenv("HTTP_ADDR", ":9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Kite.APIKey != "key123" {
		t.Errorf("expected key123, got %s", cfg.Kite.APIKey)
	}
	if cfg.Forecast.Lookback != 48 {
		t.Errorf("expected lookback 48, got %d", cfg.Forecast.Lookback)
	}
	if cfg.Signal.SupermajorityFraction != 0.8 {
		t.Errorf("expected supermajority 0.8, got %f", cfg.Signal.SupermajorityFraction)
	}
	if !cfg.Trading.Enabled {
		t.Error("expected trading enabled")
	}
	// Zero retries is a legal setting and must not fall back to the default.
	if cfg.Kite.MaxRetries != 0 {
		t.Errorf("expected max retries 0, got %d", cfg.Kite.MaxRetries)
	}
	if cfg.Trading.MaxQuantity != 25 {
		t.Errorf("expected max quantity 25, got %d", cfg.Trading.MaxQuantity)
	}
	if cfg.HTTP.Addr != ":9100" {
		t.Errorf("expected :9100, got %s", cfg.HTTP.Addr)
	}

	if !cfg.HasKite() {
		t.Error("HasKite should be true with both credentials set")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"supermajority too low", "SIGNAL_SUPERMAJORITY_FRACTION", "0.4"},
		{"supermajority above one", "SIGNAL_SUPERMAJORITY_FRACTION", "1.5"},
		{"zero stop loss", "STOP_LOSS_PERCENT", "0"},
		{"stop loss at hundred", "STOP_LOSS_PERCENT", "100"},
		{"negative risk reward", "RISK_REWARD_RATIO", "-1"},
		{"lookback too small", "FORECAST_LOOKBACK", "1"},
		{"zero horizon", "FORECAST_HORIZON", "0"},
		{"zero timeout", "KITE_TIMEOUT_SECONDS", "0"},
		{"negative retries", "KITE_MAX_RETRIES", "-1"},
		{"zero max quantity", "MAX_ORDER_QUANTITY", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved := saveEnv(t)
			defer restoreEnv(t, saved)
			clearEnv(t)

			os.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("expected Load() to fail with %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestHasDatabase(t *testing.T) {
	cfg := NewTestConfig()
	if cfg.HasDatabase() {
		t.Error("test config should not have a database URL")
	}

	cfg.Database.URL = "postgres://localhost/gold"
	if !cfg.HasDatabase() {
		t.Error("HasDatabase should be true when URL is set")
	}
}

func TestHasKite(t *testing.T) {
	cfg := NewTestConfig()
	if !cfg.HasKite() {
		t.Error("test config should carry Kite credentials")
	}

	cfg.Kite.APISecret = ""
	if cfg.HasKite() {
		t.Error("HasKite should require both key and secret")
	}
}

func TestNewTestConfig_Valid(t *testing.T) {
	cfg := NewTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("test config should validate, got: %v", err)
	}
}
