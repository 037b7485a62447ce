package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"currency-features/observability"
)

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	MaxRequests uint32        // trial requests admitted while half-open
	Interval    time.Duration // closed-state window after which counts reset
	Timeout     time.Duration // how long a tripped breaker stays open
}

var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests: 5,
	Interval:    1 * time.Minute,
	Timeout:     30 * time.Second,
}

// minTripRequests and tripRatio decide when a provider is considered down
const (
	minTripRequests = 5
	tripRatio       = 0.5
)

// CircuitBreakerRegistry keeps one breaker per data provider
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	config   CircuitBreakerConfig
}

func NewCircuitBreakerRegistry(config CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		config:   config,
	}
}

// GetBreaker returns the breaker for provider, creating it on first use
func (r *CircuitBreakerRegistry) GetBreaker(provider string) *gobreaker.CircuitBreaker[any] {
	r.mu.RLock()
	cb, ok := r.breakers[provider]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok = r.breakers[provider]; !ok {
		cb = gobreaker.NewCircuitBreaker[any](r.settings(provider))
		r.breakers[provider] = cb
	}
	return cb
}

func (r *CircuitBreakerRegistry) settings(provider string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        provider,
		MaxRequests: r.config.MaxRequests,
		Interval:    r.config.Interval,
		Timeout:     r.config.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= minTripRequests && float64(c.TotalFailures) >= tripRatio*float64(c.Requests)
		},
		IsSuccessful:  providerHealthy,
		OnStateChange: recordStateChange,
	}
}

// providerHealthy treats unknown tickers and undecodable payloads as healthy
// responses: the provider answered, the request was just not serviceable
func providerHealthy(err error) bool {
	return err == nil || errors.Is(err, ErrTickerNotFound) || errors.Is(err, ErrMalformedResponse)
}

func recordStateChange(provider string, from, to gobreaker.State) {
	observability.Warn("provider circuit breaker changed state",
		"provider", provider,
		"from", from.String(),
		"to", to.String())

	m := observability.GetMetrics()
	m.SetCircuitBreakerState(provider, stateToInt(to))
	if to == gobreaker.StateOpen {
		m.RecordCircuitBreakerTrip(provider)
	}
}

// Execute runs fn through the provider's breaker. Rejections by an open or saturated
// half-open breaker come back as KindUnavailable so the retry layer backs off.
func (r *CircuitBreakerRegistry) Execute(ctx context.Context, provider string, fn func() (any, error)) (any, error) {
	result, err := r.GetBreaker(provider).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		observability.Warn("provider circuit breaker rejected request", "provider", provider, "reason", err.Error())
		return nil, newProviderError(KindUnavailable, provider, "circuit_breaker", err)
	}
	return result, err
}

// Status snapshots every breaker for the health endpoint
func (r *CircuitBreakerRegistry) Status() map[string]CircuitBreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]CircuitBreakerStatus, len(r.breakers))
	for provider, cb := range r.breakers {
		c := cb.Counts()
		out[provider] = CircuitBreakerStatus{
			Name:             provider,
			State:            cb.State().String(),
			Requests:         c.Requests,
			TotalSuccesses:   c.TotalSuccesses,
			TotalFailures:    c.TotalFailures,
			ConsecutiveSucc:  c.ConsecutiveSuccesses,
			ConsecutiveFails: c.ConsecutiveFailures,
		}
	}
	return out
}

// CircuitBreakerStatus represents the current state of a circuit breaker
type CircuitBreakerStatus struct {
	Name             string `json:"name"`
	State            string `json:"state"`
	Requests         uint32 `json:"requests"`
	TotalSuccesses   uint32 `json:"total_successes"`
	TotalFailures    uint32 `json:"total_failures"`
	ConsecutiveSucc  uint32 `json:"consecutive_successes"`
	ConsecutiveFails uint32 `json:"consecutive_failures"`
}

// Breaker names, one per external data provider
const (
	BreakerTiingo    = "tiingo"
	BreakerYahoo     = "yahoo"
	BreakerAlpaca    = "alpaca"
	BreakerWorldBank = "worldbank"
	BreakerNewsAPI   = "newsapi"
)

var (
	globalRegistry *CircuitBreakerRegistry
	registryOnce   sync.Once
)

// GetGlobalRegistry returns the process-wide registry shared by all provider clients
func GetGlobalRegistry() *CircuitBreakerRegistry {
	registryOnce.Do(func() {
		if globalRegistry == nil {
			globalRegistry = NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
		}
	})
	return globalRegistry
}

// SetGlobalRegistry replaces the shared registry; tests use it to start from closed breakers
func SetGlobalRegistry(r *CircuitBreakerRegistry) {
	registryOnce.Do(func() {})
	globalRegistry = r
}

// WithCircuitBreaker calls fn through the shared registry and returns its typed result
func WithCircuitBreaker[T any](ctx context.Context, provider string, fn func() (T, error)) (T, error) {
	result, err := GetGlobalRegistry().Execute(ctx, provider, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// stateToInt maps breaker states onto the gauge: 0 closed, 1 half-open, 2 open
func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}
