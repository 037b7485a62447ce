package services

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"currency-features/models"
)

// YahooService reads daily bars and index levels from the Yahoo Finance chart API
type YahooService struct {
	httpClient *http.Client
	baseURL    string
	symbols    map[string]string
	retry      RetryConfig
}

// NewYahooService creates a new YahooService. symbols overrides the Yahoo symbol
// for a pipeline ticker; unmapped tickers are used as-is.
func NewYahooService(baseURL string, symbols map[string]string) *YahooService {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &YahooService{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		symbols:    symbols,
		retry:      DefaultRetryConfig,
	}
}

// WithRetryConfig replaces the transport retry budget
func (s *YahooService) WithRetryConfig(rc RetryConfig) *YahooService {
	s.retry = rc
	return s
}

func (s *YahooService) Name() string { return BreakerYahoo }

func (s *YahooService) symbol(ticker string) string {
	if sym := lookupSymbol(s.symbols, ticker); sym != "" {
		return sym
	}
	return ticker
}

// yahooChart is the response structure from the chart API
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchSeries returns daily bars for ticker between start and end inclusive
func (s *YahooService) FetchSeries(ctx context.Context, ticker string, start, end time.Time) (models.PriceSeries, error) {
	bars, err := s.fetchChart(ctx, s.symbol(ticker), start, resolveEnd(end))
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("failed to fetch %s: %w", ticker, err)
	}
	return buildSeries(BreakerYahoo, "chart", ticker, bars)
}

// LatestClose returns the most recent defined close of an index or quote symbol
func (s *YahooService) LatestClose(ctx context.Context, symbol string) (float64, error) {
	end := models.TruncateDay(time.Now())
	bars, err := s.fetchChart(ctx, symbol, end.AddDate(0, 0, -10), end)
	if err != nil {
		return 0, err
	}
	for i := len(bars) - 1; i >= 0; i-- {
		c := bars[i].Close
		if !math.IsNaN(c) && !math.IsInf(c, 0) {
			return c, nil
		}
	}
	return 0, newProviderError(KindNotFound, BreakerYahoo, "latest_close", fmt.Errorf("no recent close for %s", symbol))
}

func (s *YahooService) fetchChart(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("period1", strconv.FormatInt(models.TruncateDay(start).Unix(), 10))
	// period2 is exclusive
	params.Set("period2", strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10))
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.baseURL, url.PathEscape(symbol), params.Encode())
	headers := map[string]string{"User-Agent": "Mozilla/5.0"}

	var chart yahooChart
	err := WithRetry(ctx, s.retry, func() error {
		var err error
		chart, err = WithCircuitBreaker(ctx, BreakerYahoo, func() (yahooChart, error) {
			var out yahooChart
			err := getJSON(ctx, s.httpClient, BreakerYahoo, "chart", reqURL, headers, &out)
			return out, err
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if chart.Chart.Error != nil {
		return nil, newProviderError(KindNotFound, BreakerYahoo, "chart",
			fmt.Errorf("%s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description))
	}
	if len(chart.Chart.Result) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Timestamp) == 0 {
		return nil, nil
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, newProviderError(KindMalformed, BreakerYahoo, "chart", fmt.Errorf("no quote block for %s", symbol))
	}
	quote := result.Indicators.Quote[0]
	n := len(result.Timestamp)
	if len(quote.Open) != n || len(quote.High) != n || len(quote.Low) != n || len(quote.Close) != n {
		return nil, newProviderError(KindMalformed, BreakerYahoo, "chart",
			fmt.Errorf("quote columns do not match %d timestamps", n))
	}

	bars := make([]models.Bar, 0, n)
	for i, ts := range result.Timestamp {
		// null rows are holidays and partial sessions
		if quote.Close[i] == nil {
			continue
		}
		var volume *float64
		if i < len(quote.Volume) {
			volume = quote.Volume[i]
		}
		bar := models.Bar{
			// shift into exchange-local time so the bar lands on its trading day
			Date:   models.TruncateDay(time.Unix(ts+result.Meta.GMTOffset, 0)),
			Open:   price(quote.Open[i]),
			High:   price(quote.High[i]),
			Low:    price(quote.Low[i]),
			Close:  *quote.Close[i],
			Volume: volume,
		}
		// the live session can repeat the last daily bar; keep the newer one
		if len(bars) > 0 && bars[len(bars)-1].Date.Equal(bar.Date) {
			bars[len(bars)-1] = bar
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
