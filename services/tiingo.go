package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"currency-features/models"
	"currency-features/observability"
)

// TiingoService fetches daily FX bars from the Tiingo FX API
type TiingoService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	symbols    map[string]string
	retry      RetryConfig
}

// NewTiingoService creates a new TiingoService. symbols maps pipeline tickers
// (e.g. "EUR=X") to Tiingo pairs (e.g. "EURUSD").
func NewTiingoService(apiKey, baseURL string, symbols map[string]string) *TiingoService {
	if baseURL == "" {
		baseURL = "https://api.tiingo.com"
	}
	return &TiingoService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		symbols:    symbols,
		retry:      DefaultRetryConfig,
	}
}

// WithRetryConfig replaces the transport retry budget
func (s *TiingoService) WithRetryConfig(rc RetryConfig) *TiingoService {
	s.retry = rc
	return s
}

func (s *TiingoService) Name() string { return BreakerTiingo }

// tiingoPrice is one entry of the /tiingo/fx/{pair}/prices response
type tiingoPrice struct {
	Date   string   `json:"date"`
	Ticker string   `json:"ticker"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume *float64 `json:"volume"`
}

// Symbol returns the Tiingo pair for a ticker. Unmapped Yahoo-style FX tickers
// ("XXX=X") are assumed to be quoted against USD.
func (s *TiingoService) Symbol(ticker string) string {
	if sym := lookupSymbol(s.symbols, ticker); sym != "" {
		return strings.ToLower(sym)
	}
	code := strings.ToLower(strings.TrimSuffix(strings.ToUpper(ticker), "=X"))
	if len(code) == 3 && code != strings.ToLower(ticker) {
		return "usd" + code
	}
	return code
}

// FetchSeries returns daily bars for ticker between start and end inclusive
func (s *TiingoService) FetchSeries(ctx context.Context, ticker string, start, end time.Time) (models.PriceSeries, error) {
	symbol := s.Symbol(ticker)
	end = resolveEnd(end)

	params := url.Values{}
	params.Set("startDate", start.Format(models.DateLayout))
	params.Set("endDate", end.Format(models.DateLayout))
	params.Set("resampleFreq", "1Day")
	reqURL := fmt.Sprintf("%s/tiingo/fx/%s/prices?%s", s.baseURL, url.PathEscape(symbol), params.Encode())
	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Token " + s.apiKey,
	}

	var prices []tiingoPrice
	err := WithRetry(ctx, s.retry, func() error {
		var err error
		prices, err = WithCircuitBreaker(ctx, BreakerTiingo, func() ([]tiingoPrice, error) {
			var out []tiingoPrice
			if err := getJSON(ctx, s.httpClient, BreakerTiingo, "fx_prices", reqURL, headers, &out); err != nil {
				return nil, err
			}
			return out, nil
		})
		return err
	})
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("failed to fetch %s (%s): %w", ticker, symbol, err)
	}

	bars := make([]models.Bar, 0, len(prices))
	for _, p := range prices {
		date, err := time.Parse(time.RFC3339Nano, p.Date)
		if err != nil {
			observability.Warn("skipping tiingo bar with unparseable date",
				"ticker", ticker,
				"date", p.Date,
				"error", err)
			continue
		}
		bars = append(bars, models.Bar{
			Date:   date,
			Open:   price(p.Open),
			High:   price(p.High),
			Low:    price(p.Low),
			Close:  price(p.Close),
			Volume: p.Volume,
		})
	}

	return buildSeries(BreakerTiingo, "fx_prices", ticker, bars)
}
