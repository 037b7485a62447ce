package services

import (
	"errors"
	"math"
	"strings"
	"time"

	"currency-features/models"
	"currency-features/observability"
)

// buildSeries turns decoded provider bars into a PriceSeries and fills in volume when the
// provider reported none
func buildSeries(provider, op, ticker string, bars []models.Bar) (models.PriceSeries, error) {
	series, err := models.NewPriceSeries(ticker, bars)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateDate) {
			return models.PriceSeries{}, newProviderError(KindMalformed, provider, op, err)
		}
		return models.PriceSeries{}, err
	}

	if synthesized, ok := series.WithSynthesizedVolume(); ok {
		observability.Debug("synthesized volume from daily range",
			"provider", provider,
			"ticker", ticker,
			"bars", synthesized.Len())
		observability.GetMetrics().RecordVolumeSynthesized(provider)
		series = synthesized
	}
	return series, nil
}

// price converts an optional upstream number; missing values become NaN so the
// indicator engine nulls the windows that contain them
func price(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// resolveEnd treats a zero end as "today"
func resolveEnd(end time.Time) time.Time {
	if end.IsZero() {
		return models.TruncateDay(time.Now())
	}
	return models.TruncateDay(end)
}

// lookupSymbol returns the provider symbol for a ticker, or "" when unmapped
func lookupSymbol(symbols map[string]string, ticker string) string {
	if s, ok := symbols[ticker]; ok {
		return s
	}
	if s, ok := symbols[strings.ToUpper(ticker)]; ok {
		return s
	}
	return ""
}
