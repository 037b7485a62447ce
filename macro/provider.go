// Package macro supplies the macro-economic fields joined onto every feature record:
// interest rate, inflation, the dollar index, market sentiment and a news digest.
package macro

import (
	"context"
	"strings"
	"time"

	"currency-features/config"
	"currency-features/models"
)

// RateSet holds the per-currency macro rates in percent
type RateSet struct {
	InterestRate *float64 `json:"interest_rate"`
	Inflation    *float64 `json:"inflation"`
}

// Provider is the source of macro inputs for a run
type Provider interface {
	Rates(ctx context.Context, currency string) (RateSet, error)
	// DollarIndex returns the daily dollar index series. An empty series means only
	// a constant fallback level is known; see DollarIndexLevel.
	DollarIndex(ctx context.Context, start, end time.Time) (models.PriceSeries, error)
	Sentiment(ctx context.Context) (float64, error)
	NewsDigest(ctx context.Context) (string, error)
}

// levelProvider is implemented by providers that know a constant dollar index level
// to use when no daily series is available
type levelProvider interface {
	DollarIndexLevel() float64
}

// StaticProvider serves per-currency tables with fixed fallbacks
type StaticProvider struct {
	tables config.MacroTables
}

// NewStaticProvider creates a StaticProvider from the universe macro tables
func NewStaticProvider(tables config.MacroTables) *StaticProvider {
	return &StaticProvider{tables: tables}
}

// Rates returns the table entry for currency, or the defaults
func (p *StaticProvider) Rates(_ context.Context, currency string) (RateSet, error) {
	currency = strings.ToUpper(currency)
	rate := p.tables.Defaults.InterestRate
	if v, ok := p.tables.InterestRates[currency]; ok {
		rate = v
	}
	inflation := p.tables.Defaults.Inflation
	if v, ok := p.tables.Inflation[currency]; ok {
		inflation = v
	}
	return RateSet{InterestRate: &rate, Inflation: &inflation}, nil
}

// DollarIndex has no history in a static table
func (p *StaticProvider) DollarIndex(context.Context, time.Time, time.Time) (models.PriceSeries, error) {
	return models.PriceSeries{Ticker: "DXY"}, nil
}

// DollarIndexLevel is the constant dollar index level
func (p *StaticProvider) DollarIndexLevel() float64 {
	return p.tables.Defaults.DXY
}

func (p *StaticProvider) Sentiment(context.Context) (float64, error) {
	return p.tables.Defaults.Sentiment, nil
}

func (p *StaticProvider) NewsDigest(context.Context) (string, error) {
	return "", nil
}

// CurrencyFromTicker derives the non-USD currency code of a pair ticker.
// "EUR=X" -> "EUR", "EURUSD" -> "EUR", "USDJPY" -> "JPY"; anything else is returned upper-cased.
func CurrencyFromTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if code, ok := strings.CutSuffix(t, "=X"); ok {
		t = code
		if len(t) == 3 {
			return t
		}
	}
	if len(t) == 6 && isAlpha(t) {
		if strings.HasPrefix(t, "USD") {
			return t[3:]
		}
		return t[:3]
	}
	return t
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
