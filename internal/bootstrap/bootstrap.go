// Package bootstrap assembles providers, storage and the pipeline runner from configuration
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"currency-features/config"
	"currency-features/macro"
	"currency-features/observability"
	"currency-features/pipeline"
	"currency-features/repository"
	"currency-features/services"
)

// Components holds the wired dependencies shared by the binaries
type Components struct {
	Store    repository.FeatureStore // nil when neither Postgres nor SQLite is configured
	Provider services.SeriesProvider
	Macro    macro.Provider
	Runner   *pipeline.Runner

	cache *services.RedisCache
}

// Build wires every component described by cfg
func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c := &Components{Store: store}
	provider := NewSeriesProvider(cfg)
	if cfg.HasRedis() {
		c.cache = services.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := c.cache.Ping(ctx); err != nil {
			observability.Warn("redis unavailable, series cache disabled", "addr", cfg.Redis.Addr, "error", err)
			c.cache.Close()
			c.cache = nil
		} else {
			ttl := time.Duration(cfg.Redis.TTLSeconds) * time.Second
			provider = services.NewCachedSeriesProvider(provider, c.cache, ttl)
			observability.Info("series cache enabled", "addr", cfg.Redis.Addr, "ttl", ttl.String())
		}
	}
	c.Provider = provider
	c.Macro = NewMacroProvider(cfg)

	var opts []pipeline.Option
	if store != nil {
		opts = append(opts, pipeline.WithStore(store), pipeline.WithRunLog(store))
	}
	c.Runner = pipeline.NewRunnerFromConfig(cfg, provider, c.Macro, opts...)
	return c, nil
}

// Close releases the store and cache connections
func (c *Components) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			observability.Warn("failed to close redis client", "error", err)
		}
	}
}

// OpenStore opens Postgres when DATABASE_URL is set, else SQLite when SQLITE_PATH is
// set. It returns nil with no error when neither is configured.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.FeatureStore, error) {
	switch {
	case cfg.HasDatabase():
		repo, err := repository.NewRepository(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		observability.Info("using postgres feature store")
		return repo, nil
	case cfg.HasSQLite():
		store, err := repository.NewSQLiteStore(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		observability.Info("using sqlite feature store", "path", cfg.SQLite.Path)
		return store, nil
	}
	observability.Warn("no feature store configured, records will not be persisted")
	return nil, nil
}

// NewSeriesProvider returns the configured price provider with the pipeline's retry budget
func NewSeriesProvider(cfg *config.Config) services.SeriesProvider {
	retry := services.ProviderRetryConfig(
		cfg.Pipeline.MaxRetries,
		time.Duration(cfg.Pipeline.InitialBackoffMs)*time.Millisecond,
		time.Duration(cfg.Pipeline.MaxBackoffMs)*time.Millisecond,
	)
	symbols := func(provider string) map[string]string {
		if cfg.Universe == nil {
			return nil
		}
		return cfg.Universe.Symbols[provider]
	}

	switch cfg.Pipeline.Provider {
	case "tiingo":
		return services.NewTiingoService(cfg.Tiingo.APIKey, cfg.Tiingo.BaseURL, symbols("tiingo")).WithRetryConfig(retry)
	case "alpaca":
		return services.NewAlpacaBarsService(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, symbols("alpaca")).WithRetryConfig(retry)
	default:
		return services.NewYahooService(cfg.Yahoo.BaseURL, symbols("yahoo")).WithRetryConfig(retry)
	}
}

// NewMacroProvider returns the static tables, or live sources backed by them when
// PIPELINE_MACRO_SOURCE=live
func NewMacroProvider(cfg *config.Config) macro.Provider {
	tables := config.DefaultUniverse().Macro
	if cfg.Universe != nil {
		tables = cfg.Universe.Macro
	}
	static := macro.NewStaticProvider(tables)
	if cfg.Pipeline.MacroSource != "live" {
		return static
	}

	yahoo := services.NewYahooService(cfg.Yahoo.BaseURL, nil)
	opts := macro.ServiceProviderOptions{
		Quotes:         yahoo,
		Series:         yahoo,
		Inflation:      services.NewWorldBankService(cfg.WorldBank.BaseURL, cfg.WorldBank.Country, cfg.WorldBank.Indicator),
		SentimentQuery: cfg.NewsAPI.SentimentQuery,
		NewsQuery:      cfg.NewsAPI.NewsQuery,
	}
	if cfg.HasNewsAPI() {
		opts.News = services.NewNewsAPIService(cfg.NewsAPI.APIKey)
	} else {
		observability.Warn("NEWS_API_KEY not set, sentiment and news use static fallbacks")
	}
	return macro.NewServiceProvider(opts, static)
}
