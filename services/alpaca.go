package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"currency-features/models"
	"currency-features/observability"
)

// alpacaBarsClient is the subset of the Alpaca market data client used for daily bars
type alpacaBarsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaBarsService fetches daily bars for equity and crypto tickers from Alpaca market data
type AlpacaBarsService struct {
	dataClient alpacaBarsClient
	symbols    map[string]string
	retry      RetryConfig
}

// NewAlpacaBarsService creates a new AlpacaBarsService instance
func NewAlpacaBarsService(apiKey, apiSecret, baseURL string, symbols map[string]string) *AlpacaBarsService {
	dataClient := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	return &AlpacaBarsService{
		dataClient: dataClient,
		symbols:    symbols,
		retry:      DefaultRetryConfig,
	}
}

// WithRetryConfig replaces the transport retry budget
func (s *AlpacaBarsService) WithRetryConfig(rc RetryConfig) *AlpacaBarsService {
	s.retry = rc
	return s
}

func (s *AlpacaBarsService) Name() string { return BreakerAlpaca }

// FetchSeries returns daily bars for ticker between start and end inclusive
func (s *AlpacaBarsService) FetchSeries(ctx context.Context, ticker string, start, end time.Time) (models.PriceSeries, error) {
	symbol := lookupSymbol(s.symbols, ticker)
	if symbol == "" {
		symbol = strings.ToUpper(ticker)
	}
	req := marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     models.TruncateDay(start),
		End:       resolveEnd(end).AddDate(0, 0, 1).Add(-time.Second),
	}

	var raw []marketdata.Bar
	err := WithRetry(ctx, s.retry, func() error {
		var err error
		raw, err = WithCircuitBreaker(ctx, BreakerAlpaca, func() ([]marketdata.Bar, error) {
			return s.getBars(symbol, req)
		})
		return err
	})
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("failed to get bars for %s: %w", ticker, err)
	}

	bars := make([]models.Bar, 0, len(raw))
	for _, bar := range raw {
		volume := float64(bar.Volume)
		bars = append(bars, models.Bar{
			Date:   bar.Timestamp,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: &volume,
		})
	}

	return buildSeries(BreakerAlpaca, "bars", ticker, bars)
}

func (s *AlpacaBarsService) getBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, "bars")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerAlpaca, "bars")

	bars, err := s.dataClient.GetBars(symbol, req)
	if err != nil {
		kind := categorizeAlpacaError(err)
		metrics.RecordExternalAPIError(BreakerAlpaca, "bars", string(kind))
		return nil, newProviderError(kind, BreakerAlpaca, "bars", err)
	}
	return bars, nil
}

// categorizeAlpacaError maps an Alpaca client error onto an ErrorKind. The client
// reports HTTP failures through its error text only.
func categorizeAlpacaError(err error) ErrorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "not found", "404", "invalid symbol"):
		return KindNotFound
	case containsAny(msg, "unauthorized", "forbidden", "401", "403", "422"):
		return KindRejected
	default:
		return KindUnavailable
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
