package config

import (
	"os"
	"path/filepath"
	"testing"
)

// saveEnv saves current environment variables for restoration
func saveEnv(t *testing.T, keys []string) map[string]string {
	t.Helper()
	saved := make(map[string]string)
	for _, key := range keys {
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

// clearEnv clears environment variables
func clearEnv(t *testing.T, keys []string) {
	t.Helper()
	for _, key := range keys {
		os.Unsetenv(key)
	}
}

var allEnvKeys = []string{
	"DATABASE_URL",
	"SQLITE_PATH",
	"REDIS_ADDR",
	"REDIS_DB",
	"TIINGO_API_KEY",
	"ALPACA_API_KEY",
	"ALPACA_API_SECRET",
	"NEWS_API_KEY",
	"PIPELINE_PROVIDER",
	"PIPELINE_MACRO_SOURCE",
	"PIPELINE_WORKERS",
	"PIPELINE_REQUEST_INTERVAL_MS",
	"PIPELINE_BATCH_SIZE",
	"PIPELINE_BATCH_PAUSE_MS",
	"PIPELINE_MAX_RETRIES",
	"PIPELINE_WARM_UP",
	"PIPELINE_LOOKBACK_DAYS",
	"LABEL_STRATEGY",
	"SCHEDULER_ENABLED",
	"SCHEDULER_CRON",
	"UNIVERSE_FILE",
	"CORS_ALLOWED_ORIGINS",
	"LOG_LEVEL",
}

func TestLoad_Defaults(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	// Without a Tiingo key the keyless Yahoo provider is selected
	if cfg.Pipeline.Provider != "yahoo" {
		t.Errorf("expected Provider=yahoo, got %s", cfg.Pipeline.Provider)
	}
	if cfg.Pipeline.MacroSource != "static" {
		t.Errorf("expected MacroSource=static, got %s", cfg.Pipeline.MacroSource)
	}
	if cfg.Pipeline.RequestIntervalMs != 5000 {
		t.Errorf("expected RequestIntervalMs=5000, got %d", cfg.Pipeline.RequestIntervalMs)
	}
	if cfg.Pipeline.BatchSize != 5 || cfg.Pipeline.BatchPauseMs != 10000 {
		t.Errorf("expected batch pause of 10000ms every 5 tickers, got %dms every %d",
			cfg.Pipeline.BatchPauseMs, cfg.Pipeline.BatchSize)
	}
	if cfg.Pipeline.MaxRetries != 10 {
		t.Errorf("expected MaxRetries=10, got %d", cfg.Pipeline.MaxRetries)
	}
	if cfg.Pipeline.WarmUp != 200 {
		t.Errorf("expected WarmUp=200, got %d", cfg.Pipeline.WarmUp)
	}
	if cfg.Redis.TTLSeconds != 3600 {
		t.Errorf("expected Redis.TTLSeconds=3600, got %d", cfg.Redis.TTLSeconds)
	}
	if cfg.Scheduler.Enabled {
		t.Error("expected scheduler disabled by default")
	}
	if len(cfg.Universe.Tickers) != 10 {
		t.Errorf("expected 10 default tickers, got %d", len(cfg.Universe.Tickers))
	}
	if cfg.HTTP.CORSAllowedOrigins != "*" {
		t.Errorf("expected CORSAllowedOrigins='*', got %s", cfg.HTTP.CORSAllowedOrigins)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("TIINGO_API_KEY", "tiingo-key")
	os.Setenv("NEWS_API_KEY", "news-key")
	os.Setenv("PIPELINE_MACRO_SOURCE", "live")
	os.Setenv("PIPELINE_WORKERS", "4")
	os.Setenv("PIPELINE_REQUEST_INTERVAL_MS", "0")
	os.Setenv("REDIS_ADDR", "localhost:6379")
	os.Setenv("REDIS_DB", "2")
	os.Setenv("SCHEDULER_ENABLED", "true")
	os.Setenv("SCHEDULER_CRON", "0 */5 * * * *")
	os.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with custom values failed: %v", err)
	}

	if cfg.Pipeline.Provider != "tiingo" {
		t.Errorf("expected Provider=tiingo when key is set, got %s", cfg.Pipeline.Provider)
	}
	if cfg.Pipeline.MacroSource != "live" {
		t.Errorf("expected MacroSource=live, got %s", cfg.Pipeline.MacroSource)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Errorf("expected Workers=4, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.RequestIntervalMs != 0 {
		t.Errorf("expected RequestIntervalMs=0, got %d", cfg.Pipeline.RequestIntervalMs)
	}
	if cfg.Redis.DB != 2 {
		t.Errorf("expected Redis.DB=2, got %d", cfg.Redis.DB)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Cron != "0 */5 * * * *" {
		t.Errorf("unexpected scheduler config %+v", cfg.Scheduler)
	}
	if !cfg.HasDatabase() || !cfg.HasRedis() || !cfg.HasNewsAPI() {
		t.Error("expected database, redis and newsapi to be configured")
	}
}

func TestLoad_UniverseFile(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	path := filepath.Join(t.TempDir(), "universe.yaml")
	content := `
tickers: [EUR=X, NOK=X]
symbols:
  tiingo:
    NOK=X: USDNOK
macro:
  defaults:
    dxy: 101.2
  interest_rates:
    EUR: 4.5
  inflation:
    EUR: 2.4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	os.Setenv("UNIVERSE_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	u := cfg.Universe
	if len(u.Tickers) != 2 || u.Tickers[1] != "NOK=X" {
		t.Errorf("unexpected tickers %v", u.Tickers)
	}
	if got := u.Symbol("tiingo", "NOK=X"); got != "USDNOK" {
		t.Errorf("Symbol(tiingo, NOK=X) = %s, want USDNOK", got)
	}
	if got := u.Symbol("tiingo", "EUR=X"); got != "EURUSD" {
		t.Errorf("default mapping should survive, got %s", got)
	}
	if got := u.Symbol("yahoo", "EUR=X"); got != "EUR=X" {
		t.Errorf("unmapped provider should return ticker, got %s", got)
	}
	if u.Macro.Defaults.DXY != 101.2 {
		t.Errorf("expected DXY default 101.2, got %v", u.Macro.Defaults.DXY)
	}
	if u.Macro.Defaults.InterestRate != DefaultInterestRate {
		t.Errorf("unset defaults should be kept, got %v", u.Macro.Defaults.InterestRate)
	}
	if u.Macro.InterestRates["EUR"] != 4.5 || u.Macro.Inflation["EUR"] != 2.4 {
		t.Errorf("unexpected macro tables %+v", u.Macro)
	}
}

func TestLoadUniverse_Errors(t *testing.T) {
	if _, err := LoadUniverse(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("tickers: [unterminated"), 0o644)
	if _, err := LoadUniverse(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"test config is valid", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.Pipeline.Provider = "bloomberg" }, true},
		{"tiingo without key", func(c *Config) { c.Tiingo.APIKey = "" }, true},
		{"alpaca without credentials", func(c *Config) { c.Pipeline.Provider = "alpaca" }, true},
		{"alpaca with credentials", func(c *Config) {
			c.Pipeline.Provider = "alpaca"
			c.Alpaca.APIKey, c.Alpaca.APISecret = "k", "s"
		}, false},
		{"unknown macro source", func(c *Config) { c.Pipeline.MacroSource = "guess" }, true},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }, true},
		{"zero batch size", func(c *Config) { c.Pipeline.BatchSize = 0 }, true},
		{"backoff inverted", func(c *Config) { c.Pipeline.MaxBackoffMs = 0 }, true},
		{"lookback shorter than warm-up", func(c *Config) { c.Pipeline.LookbackDays = 100 }, true},
		{"empty universe", func(c *Config) { c.Universe = &Universe{} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHasAlpaca(t *testing.T) {
	cfg := NewTestConfig()

	if cfg.HasAlpaca() {
		t.Error("expected HasAlpaca() to return false for empty credentials")
	}

	cfg.Alpaca.APIKey = "key"
	if cfg.HasAlpaca() {
		t.Error("expected HasAlpaca() to return false with only key")
	}

	cfg.Alpaca.APISecret = "secret"
	if !cfg.HasAlpaca() {
		t.Error("expected HasAlpaca() to return true with key and secret")
	}
}

func TestGetEnvString(t *testing.T) {
	key := "TEST_GET_ENV_STRING"
	defer os.Unsetenv(key)

	os.Unsetenv(key)
	if got := getEnvString(key, "default"); got != "default" {
		t.Errorf("expected 'default', got %s", got)
	}

	os.Setenv(key, "custom")
	if got := getEnvString(key, "default"); got != "custom" {
		t.Errorf("expected 'custom', got %s", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_GET_ENV_INT"
	defer os.Unsetenv(key)

	tests := []struct {
		val       string
		want      int
		wantAllow int
	}{
		{"", 42, 42},
		{"100", 100, 100},
		{"invalid", 42, 42},
		{"-5", 42, 42},
		{"0", 42, 0},
	}
	for _, tt := range tests {
		if tt.val == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, tt.val)
		}
		if got := getEnvInt(key, 42); got != tt.want {
			t.Errorf("getEnvInt(%q) = %d, want %d", tt.val, got, tt.want)
		}
		if got := getEnvIntAllowZero(key, 42); got != tt.wantAllow {
			t.Errorf("getEnvIntAllowZero(%q) = %d, want %d", tt.val, got, tt.wantAllow)
		}
	}
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_GET_ENV_BOOL"
	defer os.Unsetenv(key)

	os.Setenv(key, "true")
	if !getEnvBool(key, false) {
		t.Error("expected true")
	}
	os.Setenv(key, "nope")
	if getEnvBool(key, false) {
		t.Error("expected default for invalid value")
	}
}
