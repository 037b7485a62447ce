package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeatureRecord is one output row of the pipeline, identified by (Date, Ticker).
// Numeric values are rounded to FeaturePrecision decimal places.
type FeatureRecord struct {
	Date     time.Time       `json:"date"`
	Ticker   string          `json:"ticker"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	AdjClose decimal.Decimal `json:"adj_close"`
	Volume   decimal.Decimal `json:"volume"`

	RSI            decimal.NullDecimal `json:"rsi"`
	MACD           decimal.NullDecimal `json:"macd"`
	MACDSignal     decimal.NullDecimal `json:"macd_signal"`
	MACDHist       decimal.NullDecimal `json:"macd_hist"`
	PercentChange  decimal.NullDecimal `json:"percent_change"`
	MA50           decimal.NullDecimal `json:"ma_50"`
	MA200          decimal.NullDecimal `json:"ma_200"`
	Close50MADiff  decimal.NullDecimal `json:"close_50ma_diff"`
	Close200MADiff decimal.NullDecimal `json:"close_200ma_diff"`
	UpperBB        decimal.NullDecimal `json:"upper_bb"`
	LowerBB        decimal.NullDecimal `json:"lower_bb"`
	KPercent       decimal.NullDecimal `json:"k_percent"`
	DPercent       decimal.NullDecimal `json:"d_percent"`
	ATR            decimal.NullDecimal `json:"atr"`
	Volatility     decimal.NullDecimal `json:"volatility"`
	NextHigh       decimal.NullDecimal `json:"next_high"`
	HighChange     decimal.NullDecimal `json:"high_change"`

	InterestRate    decimal.NullDecimal `json:"interest_rate"`
	Inflation       decimal.NullDecimal `json:"inflation"`
	DXY             decimal.NullDecimal `json:"dxy"`
	MarketSentiment decimal.NullDecimal `json:"market_sentiment"`
	EconomicNews    *string             `json:"economic_news"`

	Label Label `json:"label"`
}

// FeaturePrecision is the number of decimal places kept on every numeric feature
const FeaturePrecision = 6

// Key returns the record identity used for upserts and de-duplication
func (r FeatureRecord) Key() string {
	return r.Ticker + "|" + r.Date.Format(DateLayout)
}

// Equal compares two records value by value, ignoring decimal representation differences
func (r FeatureRecord) Equal(o FeatureRecord) bool {
	if !r.Date.Equal(o.Date) || r.Ticker != o.Ticker || r.Label != o.Label {
		return false
	}
	if (r.EconomicNews == nil) != (o.EconomicNews == nil) {
		return false
	}
	if r.EconomicNews != nil && *r.EconomicNews != *o.EconomicNews {
		return false
	}
	for i, d := range r.decimals() {
		if !d.Equal(o.decimals()[i]) {
			return false
		}
	}
	a, b := r.NullDecimals(), o.NullDecimals()
	for i := range a {
		if a[i].Valid != b[i].Valid {
			return false
		}
		if a[i].Valid && !a[i].Decimal.Equal(b[i].Decimal) {
			return false
		}
	}
	return true
}

func (r FeatureRecord) decimals() []decimal.Decimal {
	return []decimal.Decimal{r.Open, r.High, r.Low, r.Close, r.AdjClose, r.Volume}
}

// NullDecimals returns the optional numeric fields in a fixed order
func (r FeatureRecord) NullDecimals() []decimal.NullDecimal {
	return []decimal.NullDecimal{
		r.RSI, r.MACD, r.MACDSignal, r.MACDHist, r.PercentChange,
		r.MA50, r.MA200, r.Close50MADiff, r.Close200MADiff,
		r.UpperBB, r.LowerBB, r.KPercent, r.DPercent,
		r.ATR, r.Volatility, r.NextHigh, r.HighChange,
		r.InterestRate, r.Inflation, r.DXY, r.MarketSentiment,
	}
}

// RoundedDecimal converts a float to a decimal rounded to FeaturePrecision places
func RoundedDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(FeaturePrecision)
}

// RoundedNullDecimal converts an optional float; nil, NaN and Inf become null
func RoundedNullDecimal(v *float64) decimal.NullDecimal {
	if v == nil || isNaNOrInf(*v) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(RoundedDecimal(*v))
}
