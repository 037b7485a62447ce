package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	// Storage configuration
	Database DatabaseConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig

	// Provider configurations
	Tiingo    TiingoConfig
	Yahoo     YahooConfig
	Alpaca    AlpacaConfig
	WorldBank WorldBankConfig
	NewsAPI   NewsAPIConfig

	// Pipeline configuration
	Pipeline PipelineConfig

	// Scheduler configuration
	Scheduler SchedulerConfig

	// Ticker universe and static macro tables
	Universe *Universe

	// HTTP configuration
	HTTP HTTPConfig

	// Logging configuration
	Log LogConfig
}

// DatabaseConfig holds Postgres configuration
type DatabaseConfig struct {
	URL string
}

// SQLiteConfig holds the local file store configuration
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds the series cache configuration
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	TTLSeconds int
}

// TiingoConfig holds Tiingo FX API configuration
type TiingoConfig struct {
	APIKey  string
	BaseURL string
}

// YahooConfig holds Yahoo chart API configuration
type YahooConfig struct {
	BaseURL string
}

// AlpacaConfig holds Alpaca market data configuration
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

// WorldBankConfig holds World Bank indicator API configuration
type WorldBankConfig struct {
	BaseURL   string
	Country   string
	Indicator string
}

// NewsAPIConfig holds NewsAPI configuration
type NewsAPIConfig struct {
	APIKey         string
	SentimentQuery string
	NewsQuery      string
}

// PipelineConfig holds pipeline runner configuration
type PipelineConfig struct {
	Provider          string // tiingo, yahoo or alpaca
	MacroSource       string // static or live
	Workers           int
	RequestIntervalMs int
	BatchSize         int
	BatchPauseMs      int
	MaxRetries        int
	InitialBackoffMs  int
	MaxBackoffMs      int
	WarmUp            int
	LookbackDays      int
	Strategy          string // default, conservative or custom
	MinPoints         int    // for custom strategy
	TimeoutSeconds    int
}

// SchedulerConfig holds periodic run configuration
type SchedulerConfig struct {
	Enabled bool
	Cron    string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Addr               string
	CORSAllowedOrigins string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level      string
	Production bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		SQLite: SQLiteConfig{
			Path: os.Getenv("SQLITE_PATH"),
		},
		Redis: RedisConfig{
			Addr:       os.Getenv("REDIS_ADDR"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         getEnvIntAllowZero("REDIS_DB", 0),
			TTLSeconds: getEnvInt("REDIS_TTL_SECONDS", 3600),
		},
		Tiingo: TiingoConfig{
			APIKey:  os.Getenv("TIINGO_API_KEY"),
			BaseURL: getEnvString("TIINGO_BASE_URL", "https://api.tiingo.com"),
		},
		Yahoo: YahooConfig{
			BaseURL: getEnvString("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		},
		Alpaca: AlpacaConfig{
			APIKey:    os.Getenv("ALPACA_API_KEY"),
			APISecret: os.Getenv("ALPACA_API_SECRET"),
			BaseURL:   getEnvString("ALPACA_DATA_URL", "https://data.alpaca.markets"),
		},
		WorldBank: WorldBankConfig{
			BaseURL:   getEnvString("WORLDBANK_BASE_URL", "https://api.worldbank.org/v2"),
			Country:   getEnvString("WORLDBANK_COUNTRY", "US"),
			Indicator: getEnvString("WORLDBANK_INFLATION_INDICATOR", "FP.CPI.TOTL.ZG"),
		},
		NewsAPI: NewsAPIConfig{
			APIKey:         os.Getenv("NEWS_API_KEY"),
			SentimentQuery: getEnvString("NEWS_SENTIMENT_QUERY", "stock market"),
			NewsQuery:      getEnvString("NEWS_ECONOMY_QUERY", "economy"),
		},
		Pipeline: PipelineConfig{
			Provider:          strings.ToLower(getEnvString("PIPELINE_PROVIDER", defaultProvider())),
			MacroSource:       strings.ToLower(getEnvString("PIPELINE_MACRO_SOURCE", "static")),
			Workers:           getEnvInt("PIPELINE_WORKERS", 1),
			RequestIntervalMs: getEnvIntAllowZero("PIPELINE_REQUEST_INTERVAL_MS", 5000),
			BatchSize:         getEnvInt("PIPELINE_BATCH_SIZE", 5),
			BatchPauseMs:      getEnvIntAllowZero("PIPELINE_BATCH_PAUSE_MS", 10000),
			MaxRetries:        getEnvIntAllowZero("PIPELINE_MAX_RETRIES", 10),
			InitialBackoffMs:  getEnvInt("PIPELINE_INITIAL_BACKOFF_MS", 1000),
			MaxBackoffMs:      getEnvInt("PIPELINE_MAX_BACKOFF_MS", 60000),
			WarmUp:            getEnvIntAllowZero("PIPELINE_WARM_UP", 200),
			LookbackDays:      getEnvInt("PIPELINE_LOOKBACK_DAYS", 400),
			Strategy:          getEnvString("LABEL_STRATEGY", "default"),
			MinPoints:         getEnvInt("LABEL_MIN_POINTS", 3),
			TimeoutSeconds:    getEnvInt("PIPELINE_TIMEOUT_SECONDS", 3600),
		},
		Scheduler: SchedulerConfig{
			Enabled: getEnvBool("SCHEDULER_ENABLED", false),
			Cron:    getEnvString("SCHEDULER_CRON", "0 0 22 * * 1-5"),
		},
		HTTP: HTTPConfig{
			Addr:               getEnvString("HTTP_ADDR", ":8080"),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
		},
		Log: LogConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Production: getEnvBool("LOG_JSON", false),
		},
	}

	universe := DefaultUniverse()
	if path := os.Getenv("UNIVERSE_FILE"); path != "" {
		loaded, err := LoadUniverse(path)
		if err != nil {
			return nil, err
		}
		universe = loaded
	}
	cfg.Universe = universe

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultProvider prefers Tiingo FX when a key is present; Yahoo needs no credentials
func defaultProvider() string {
	if os.Getenv("TIINGO_API_KEY") != "" {
		return "tiingo"
	}
	return "yahoo"
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Pipeline.Provider {
	case "tiingo", "yahoo", "alpaca":
	default:
		return fmt.Errorf("PIPELINE_PROVIDER must be tiingo, yahoo or alpaca, got %q", c.Pipeline.Provider)
	}
	if c.Pipeline.Provider == "tiingo" && !c.HasTiingo() {
		return fmt.Errorf("PIPELINE_PROVIDER=tiingo requires TIINGO_API_KEY")
	}
	if c.Pipeline.Provider == "alpaca" && !c.HasAlpaca() {
		return fmt.Errorf("PIPELINE_PROVIDER=alpaca requires ALPACA_API_KEY and ALPACA_API_SECRET")
	}

	switch c.Pipeline.MacroSource {
	case "static", "live":
	default:
		return fmt.Errorf("PIPELINE_MACRO_SOURCE must be static or live, got %q", c.Pipeline.MacroSource)
	}

	// Validate positive integers
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("PIPELINE_WORKERS must be positive, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("PIPELINE_BATCH_SIZE must be positive, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.MaxBackoffMs < c.Pipeline.InitialBackoffMs {
		return fmt.Errorf("PIPELINE_MAX_BACKOFF_MS (%d) must not be below PIPELINE_INITIAL_BACKOFF_MS (%d)",
			c.Pipeline.MaxBackoffMs, c.Pipeline.InitialBackoffMs)
	}
	if c.Pipeline.LookbackDays <= c.Pipeline.WarmUp {
		return fmt.Errorf("PIPELINE_LOOKBACK_DAYS (%d) must exceed PIPELINE_WARM_UP (%d)",
			c.Pipeline.LookbackDays, c.Pipeline.WarmUp)
	}

	if c.Universe != nil && len(c.Universe.Tickers) == 0 {
		return fmt.Errorf("ticker universe is empty")
	}

	return nil
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasSQLite returns true if a local SQLite store is configured
func (c *Config) HasSQLite() bool {
	return c.SQLite.Path != ""
}

// HasRedis returns true if the series cache is configured
func (c *Config) HasRedis() bool {
	return c.Redis.Addr != ""
}

// HasTiingo returns true if Tiingo configuration is available
func (c *Config) HasTiingo() bool {
	return c.Tiingo.APIKey != ""
}

// HasAlpaca returns true if Alpaca configuration is available
func (c *Config) HasAlpaca() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}

// HasNewsAPI returns true if NewsAPI configuration is available
func (c *Config) HasNewsAPI() bool {
	return c.NewsAPI.APIKey != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvIntAllowZero(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
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
		Redis: RedisConfig{
			TTLSeconds: 3600,
		},
		Tiingo: TiingoConfig{
			APIKey:  "test-key",
			BaseURL: "https://api.tiingo.com",
		},
		Yahoo: YahooConfig{
			BaseURL: "https://query1.finance.yahoo.com",
		},
		Alpaca: AlpacaConfig{
			BaseURL: "https://data.alpaca.markets",
		},
		WorldBank: WorldBankConfig{
			BaseURL:   "https://api.worldbank.org/v2",
			Country:   "US",
			Indicator: "FP.CPI.TOTL.ZG",
		},
		NewsAPI: NewsAPIConfig{
			SentimentQuery: "stock market",
			NewsQuery:      "economy",
		},
		Pipeline: PipelineConfig{
			Provider:          "tiingo",
			MacroSource:       "static",
			Workers:           1,
			RequestIntervalMs: 0,
			BatchSize:         5,
			BatchPauseMs:      0,
			MaxRetries:        0,
			InitialBackoffMs:  1,
			MaxBackoffMs:      10,
			WarmUp:            200,
			LookbackDays:      400,
			Strategy:          "default",
			MinPoints:         3,
			TimeoutSeconds:    60,
		},
		Scheduler: SchedulerConfig{
			Enabled: false,
			Cron:    "0 0 22 * * 1-5",
		},
		Universe: DefaultUniverse(),
		HTTP: HTTPConfig{
			Addr:               ":8080",
			CORSAllowedOrigins: "*",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
