package macro

import (
	"context"
	"sync"
	"time"

	"currency-features/models"
	"currency-features/observability"
	"currency-features/services"
)

// Source chains, tried in order
var (
	InterestRateSymbols = []string{"^IRX", "^FVX", "^TNX"}
	DollarIndexSymbols  = []string{"DX-Y.NYB", "^DXY", "UUP"}
)

// ServiceProvider reads live macro data and falls back to a StaticProvider for every
// field no live source could supply. Live rates and inflation describe the US and are
// applied to every currency.
type ServiceProvider struct {
	quotes         services.IndexQuoteProvider
	series         services.SeriesProvider
	inflation      services.InflationProvider
	news           services.NewsAPIServiceInterface
	fallback       *StaticProvider
	sentimentQuery string
	newsQuery      string

	mu             sync.Mutex
	rates          RateSet
	ratesFetchedAt time.Time
}

const liveRatesTTL = time.Hour

// ServiceProviderOptions wires the live sources. Nil sources are skipped.
type ServiceProviderOptions struct {
	Quotes         services.IndexQuoteProvider
	Series         services.SeriesProvider
	Inflation      services.InflationProvider
	News           services.NewsAPIServiceInterface
	SentimentQuery string
	NewsQuery      string
}

// NewServiceProvider creates a ServiceProvider
func NewServiceProvider(opts ServiceProviderOptions, fallback *StaticProvider) *ServiceProvider {
	if opts.SentimentQuery == "" {
		opts.SentimentQuery = "stock market"
	}
	if opts.NewsQuery == "" {
		opts.NewsQuery = "economy"
	}
	return &ServiceProvider{
		quotes:         opts.Quotes,
		series:         opts.Series,
		inflation:      opts.Inflation,
		news:           opts.News,
		fallback:       fallback,
		sentimentQuery: opts.SentimentQuery,
		newsQuery:      opts.NewsQuery,
	}
}

// Rates returns the live short-rate yield and CPI inflation, each falling back to the
// static table independently
func (p *ServiceProvider) Rates(ctx context.Context, currency string) (RateSet, error) {
	out, _ := p.fallback.Rates(ctx, currency)

	live, err := p.liveRates(ctx)
	if err != nil {
		return RateSet{}, err
	}
	if live.InterestRate != nil {
		out.InterestRate = live.InterestRate
	} else {
		fallbackUsed("interest_rate", currency)
	}
	if live.Inflation != nil {
		out.Inflation = live.Inflation
	} else {
		fallbackUsed("inflation", currency)
	}
	return out, nil
}

// liveRates fetches the US values once per liveRatesTTL; they do not vary by currency
func (p *ServiceProvider) liveRates(ctx context.Context) (RateSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ratesFetchedAt.After(time.Now().Add(-liveRatesTTL)) {
		return p.rates, nil
	}

	var live RateSet
	if rate, ok := p.liveInterestRate(ctx); ok {
		live.InterestRate = &rate
	}
	if p.inflation != nil {
		inflation, err := p.inflation.LatestInflation(ctx)
		if err == nil {
			live.Inflation = &inflation
		} else if ctx.Err() == nil {
			observability.Warn("inflation source failed", "error", err)
		}
	}
	if ctx.Err() != nil {
		return RateSet{}, ctx.Err()
	}

	p.rates = live
	p.ratesFetchedAt = time.Now()
	return live, nil
}

func (p *ServiceProvider) liveInterestRate(ctx context.Context) (float64, bool) {
	if p.quotes == nil {
		return 0, false
	}
	for _, symbol := range InterestRateSymbols {
		v, err := p.quotes.LatestClose(ctx, symbol)
		if err == nil {
			return v, true
		}
		if ctx.Err() != nil {
			return 0, false
		}
		observability.Warn("interest rate source failed", "symbol", symbol, "error", err)
	}
	return 0, false
}

// DollarIndex returns the first non-empty series of DollarIndexSymbols. When all fail
// the series is empty and DollarIndexLevel supplies the constant.
func (p *ServiceProvider) DollarIndex(ctx context.Context, start, end time.Time) (models.PriceSeries, error) {
	if p.series != nil {
		for _, symbol := range DollarIndexSymbols {
			series, err := p.series.FetchSeries(ctx, symbol, start, end)
			if err == nil && series.Len() > 0 {
				return series, nil
			}
			if ctx.Err() != nil {
				return models.PriceSeries{}, ctx.Err()
			}
			observability.Warn("dollar index source failed",
				"symbol", symbol,
				"bars", series.Len(),
				"error", err)
		}
	}
	fallbackUsed("dxy", "")
	return p.fallback.DollarIndex(ctx, start, end)
}

// DollarIndexLevel is the static constant used when no series could be fetched
func (p *ServiceProvider) DollarIndexLevel() float64 {
	return p.fallback.DollarIndexLevel()
}

// Sentiment is the mean polarity of recent market headlines
func (p *ServiceProvider) Sentiment(ctx context.Context) (float64, error) {
	if p.news != nil {
		v, err := p.news.Sentiment(ctx, p.sentimentQuery)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		observability.Warn("sentiment source failed", "error", err)
	}
	fallbackUsed("market_sentiment", "")
	return p.fallback.Sentiment(ctx)
}

// NewsDigest is the newline-joined list of recent economy headlines
func (p *ServiceProvider) NewsDigest(ctx context.Context) (string, error) {
	if p.news != nil {
		digest, err := p.news.Digest(ctx, p.newsQuery)
		if err == nil {
			return digest, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		observability.Warn("news digest source failed", "error", err)
	}
	fallbackUsed("economic_news", "")
	return p.fallback.NewsDigest(ctx)
}

func fallbackUsed(field, currency string) {
	observability.Debug("macro field using static fallback", "field", field, "currency", currency)
	observability.GetMetrics().RecordMacroFallback(field, "static")
}
