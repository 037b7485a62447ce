package services

import (
	"context"
	"time"

	"currency-features/models"
)

// SeriesProvider fetches a daily OHLCV series for one ticker. A zero end means "up to
// the latest available bar". Implementations synthesize volume when the upstream omits it.
// An empty series with a nil error means the provider had no bars in the range.
type SeriesProvider interface {
	Name() string
	FetchSeries(ctx context.Context, ticker string, start, end time.Time) (models.PriceSeries, error)
}

// UpstreamWrapper is a SeriesProvider decorator that answers some calls itself.
// WrapUpstream returns a copy whose forwarded calls go through wrap.
type UpstreamWrapper interface {
	SeriesProvider
	WrapUpstream(wrap func(SeriesProvider) SeriesProvider) SeriesProvider
}

// IndexQuoteProvider returns the latest value of a market index such as ^IRX or DX-Y.NYB
type IndexQuoteProvider interface {
	LatestClose(ctx context.Context, symbol string) (float64, error)
}

// InflationProvider returns the latest annual CPI inflation rate in percent
type InflationProvider interface {
	LatestInflation(ctx context.Context) (float64, error)
}

// NewsAPIServiceInterface defines the interface for news data operations
type NewsAPIServiceInterface interface {
	GetNews(ctx context.Context, query string, limit int) ([]models.NewsArticle, error)
	Sentiment(ctx context.Context, query string) (float64, error)
	Digest(ctx context.Context, query string) (string, error)
}

// Compile-time interface verification
var _ SeriesProvider = (*TiingoService)(nil)
var _ SeriesProvider = (*YahooService)(nil)
var _ SeriesProvider = (*AlpacaBarsService)(nil)
var _ UpstreamWrapper = (*CachedSeriesProvider)(nil)
var _ IndexQuoteProvider = (*YahooService)(nil)
var _ InflationProvider = (*WorldBankService)(nil)
var _ NewsAPIServiceInterface = (*NewsAPIService)(nil)
