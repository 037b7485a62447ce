// Package features merges price bars, indicators, macro data and labels into
// FeatureRecords, and cuts the fixed-width windows read by forecasting models.
package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"currency-features/classifier"
	"currency-features/macro"
	"currency-features/models"
	"currency-features/observability"
)

// ErrInsufficientHistory is returned when a series or record set is shorter than required
var ErrInsufficientHistory = errors.New("insufficient history")

const (
	// MinObservations is the absolute floor below which a ticker produces no records
	MinObservations = 14
	// DefaultWarmUp is the number of leading observations never emitted, so that every
	// 200-day field is populated on the first record
	DefaultWarmUp = 200
	// VolumeSentinel replaces a missing or non-positive volume
	VolumeSentinel = 1_000_000
)

// Builder assembles FeatureRecords
type Builder struct {
	warmUp     int
	classifier *classifier.Classifier
}

// Option configures a Builder
type Option func(*Builder)

// WithWarmUp overrides the number of leading observations skipped
func WithWarmUp(n int) Option {
	return func(b *Builder) {
		if n >= 0 {
			b.warmUp = n
		}
	}
}

// WithClassifier sets the classifier used for labels
func WithClassifier(c *classifier.Classifier) Option {
	return func(b *Builder) {
		if c != nil {
			b.classifier = c
		}
	}
}

// NewBuilder creates a Builder with the default warm-up and classifier
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		warmUp:     DefaultWarmUp,
		classifier: classifier.New(nil),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WarmUp returns the configured warm-up length
func (b *Builder) WarmUp() int {
	return b.warmUp
}

// Build emits one record per bar after the warm-up. bundles must be parallel to
// series.Bars. mc may be nil, in which case every macro field is null.
func (b *Builder) Build(series models.PriceSeries, bundles []models.IndicatorBundle, mc *macro.Context) ([]models.FeatureRecord, error) {
	if series.Len() < MinObservations {
		return nil, fmt.Errorf("%s has %d observations, need %d: %w",
			series.Ticker, series.Len(), MinObservations, ErrInsufficientHistory)
	}
	if len(bundles) != series.Len() {
		return nil, fmt.Errorf("%s: %d indicator rows for %d bars", series.Ticker, len(bundles), series.Len())
	}

	currency := macro.CurrencyFromTicker(series.Ticker)
	var records []models.FeatureRecord
	if n := series.Len() - b.warmUp; n > 0 {
		records = make([]models.FeatureRecord, 0, n)
	}

	for i := b.warmUp; i < series.Len(); i++ {
		bar := series.Bars[i]
		if !finite(bar.Open) || !finite(bar.High) || !finite(bar.Low) || !finite(bar.Close) {
			observability.Warn("skipping bar with missing price",
				"ticker", series.Ticker,
				"date", bar.Date.Format(models.DateLayout))
			continue
		}
		snap := mc.Snapshot(bar.Date, currency)
		records = append(records, b.record(series.Ticker, bar, bundles[i], snap))
	}
	return records, nil
}

func (b *Builder) record(ticker string, bar models.Bar, ind models.IndicatorBundle, snap models.MacroSnapshot) models.FeatureRecord {
	closePrice := models.RoundedDecimal(bar.Close)
	r := models.FeatureRecord{
		Date:     bar.Date,
		Ticker:   ticker,
		Open:     models.RoundedDecimal(bar.Open),
		High:     models.RoundedDecimal(bar.High),
		Low:      models.RoundedDecimal(bar.Low),
		Close:    closePrice,
		AdjClose: closePrice,
		Volume:   volume(bar.Volume),

		RSI:            models.RoundedNullDecimal(ind.RSI),
		MACD:           models.RoundedNullDecimal(ind.MACD),
		MACDSignal:     models.RoundedNullDecimal(ind.MACDSignal),
		MACDHist:       models.RoundedNullDecimal(ind.MACDHist),
		PercentChange:  models.RoundedNullDecimal(ind.PercentChange),
		MA50:           models.RoundedNullDecimal(ind.MA50),
		MA200:          models.RoundedNullDecimal(ind.MA200),
		Close50MADiff:  models.RoundedNullDecimal(ind.Close50MADiff),
		Close200MADiff: models.RoundedNullDecimal(ind.Close200MADiff),
		UpperBB:        models.RoundedNullDecimal(ind.UpperBB),
		LowerBB:        models.RoundedNullDecimal(ind.LowerBB),
		KPercent:       models.RoundedNullDecimal(ind.KPercent),
		DPercent:       models.RoundedNullDecimal(ind.DPercent),
		ATR:            models.RoundedNullDecimal(ind.ATR),
		Volatility:     models.RoundedNullDecimal(ind.Volatility),
		NextHigh:       models.RoundedNullDecimal(ind.NextHigh),
		HighChange:     models.RoundedNullDecimal(ind.HighChange),

		InterestRate:    models.RoundedNullDecimal(snap.InterestRate),
		Inflation:       models.RoundedNullDecimal(snap.Inflation),
		DXY:             models.RoundedNullDecimal(snap.DXY),
		MarketSentiment: models.RoundedNullDecimal(snap.MarketSentiment),

		Label: b.classifier.Classify(ind, bar.Close),
	}
	if snap.EconomicNews != "" {
		news := snap.EconomicNews
		r.EconomicNews = &news
	}
	return r
}

func volume(v *float64) decimal.Decimal {
	if v == nil || !finite(*v) || *v <= 0 {
		return decimal.NewFromInt(VolumeSentinel)
	}
	return models.RoundedDecimal(*v)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
