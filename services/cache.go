package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"currency-features/models"
	"currency-features/observability"
)

// ErrCacheMiss is returned by a SeriesCache when the key is absent
var ErrCacheMiss = errors.New("cache miss")

const cachePrefix = "currency-features:"

// SeriesCache is a JSON key/value store with expiry
type SeriesCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// RedisCache stores JSON values in Redis under a fixed key prefix
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to Redis at addr
func NewRedisCache(addr, password string, db int) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		prefix: cachePrefix,
	}
}

// Set stores value as JSON with a TTL
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

// Get decodes the JSON stored under key into dest
func (c *RedisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Delete removes key
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

// Ping checks the connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachedSeriesProvider serves repeated FetchSeries calls from a cache. Cache failures
// are logged and fall through to the wrapped provider.
type CachedSeriesProvider struct {
	next  SeriesProvider
	cache SeriesCache
	ttl   time.Duration
}

// NewCachedSeriesProvider wraps next with cache
func NewCachedSeriesProvider(next SeriesProvider, cache SeriesCache, ttl time.Duration) *CachedSeriesProvider {
	return &CachedSeriesProvider{next: next, cache: cache, ttl: ttl}
}

func (p *CachedSeriesProvider) Name() string { return p.next.Name() }

// WrapUpstream returns a provider sharing this cache whose misses go through wrap
func (p *CachedSeriesProvider) WrapUpstream(wrap func(SeriesProvider) SeriesProvider) SeriesProvider {
	return &CachedSeriesProvider{next: wrap(p.next), cache: p.cache, ttl: p.ttl}
}

func seriesKey(provider, ticker string, start, end time.Time) string {
	return fmt.Sprintf("series:%s:%s:%s:%s", provider, ticker,
		models.TruncateDay(start).Format(models.DateLayout), resolveEnd(end).Format(models.DateLayout))
}

// FetchSeries returns the cached series for the request or fetches and stores it
func (p *CachedSeriesProvider) FetchSeries(ctx context.Context, ticker string, start, end time.Time) (models.PriceSeries, error) {
	key := seriesKey(p.next.Name(), ticker, start, end)
	metrics := observability.GetMetrics()

	var cached models.PriceSeries
	err := p.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
		metrics.RecordCacheHit(p.next.Name())
		return cached, nil
	case errors.Is(err, ErrCacheMiss):
		metrics.RecordCacheMiss(p.next.Name())
	default:
		metrics.RecordCacheMiss(p.next.Name())
		observability.Warn("series cache read failed", "key", key, "error", err)
	}

	series, err := p.next.FetchSeries(ctx, ticker, start, end)
	if err != nil {
		return models.PriceSeries{}, err
	}
	if series.Len() == 0 {
		return series, nil
	}

	// series with missing prices hold NaN, which JSON cannot carry; those are not cached
	if err := p.cache.Set(ctx, key, series, p.ttl); err != nil {
		observability.Warn("series cache write failed", "key", key, "error", err)
	}
	return series, nil
}
