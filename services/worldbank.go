package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// WorldBankService reads annual macro indicators from the World Bank v2 API
type WorldBankService struct {
	httpClient *http.Client
	baseURL    string
	country    string
	indicator  string
	retry      RetryConfig
}

// NewWorldBankService creates a WorldBankService for one country and inflation indicator
// (FP.CPI.TOTL.ZG is annual consumer price inflation in percent)
func NewWorldBankService(baseURL, country, indicator string) *WorldBankService {
	if baseURL == "" {
		baseURL = "https://api.worldbank.org/v2"
	}
	return &WorldBankService{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		country:    country,
		indicator:  indicator,
		retry:      DefaultRetryConfig,
	}
}

// worldBankObservation is one row of the second element of the response array
type worldBankObservation struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// LatestInflation returns the most recent non-null observation of the indicator
func (s *WorldBankService) LatestInflation(ctx context.Context) (float64, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("per_page", "10")
	reqURL := fmt.Sprintf("%s/country/%s/indicator/%s?%s",
		s.baseURL, url.PathEscape(s.country), url.PathEscape(s.indicator), params.Encode())

	var page []json.RawMessage
	err := WithRetry(ctx, s.retry, func() error {
		var err error
		page, err = WithCircuitBreaker(ctx, BreakerWorldBank, func() ([]json.RawMessage, error) {
			var out []json.RawMessage
			err := getJSON(ctx, s.httpClient, BreakerWorldBank, "indicator", reqURL, nil, &out)
			return out, err
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	// an unknown indicator comes back as a single message element
	if len(page) < 2 {
		return 0, newProviderError(KindNotFound, BreakerWorldBank, "indicator",
			fmt.Errorf("no data for %s/%s", s.country, s.indicator))
	}

	var observations []worldBankObservation
	if err := json.Unmarshal(page[1], &observations); err != nil {
		return 0, newProviderError(KindMalformed, BreakerWorldBank, "indicator", err)
	}
	// rows are newest first
	for _, obs := range observations {
		if obs.Value != nil {
			return *obs.Value, nil
		}
	}
	return 0, newProviderError(KindNotFound, BreakerWorldBank, "indicator",
		fmt.Errorf("all recent %s values are null", s.indicator))
}
