package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SummaryLimit is the number of records in each MarketSummary list
const SummaryLimit = 5

// MarketSummary lists the strongest movers of one trading day
type MarketSummary struct {
	Date       time.Time       `json:"date"`
	Gainers    []FeatureRecord `json:"gainers"`
	Losers     []FeatureRecord `json:"losers"`
	MostActive []FeatureRecord `json:"most_active"`
}

// TechnicalAnalysis is the momentum view of a single record
type TechnicalAnalysis struct {
	Ticker         string              `json:"ticker"`
	Date           time.Time           `json:"date"`
	RSI            decimal.NullDecimal `json:"rsi"`
	MACD           decimal.NullDecimal `json:"macd"`
	MACDSignal     decimal.NullDecimal `json:"macd_signal"`
	MACDHist       decimal.NullDecimal `json:"macd_hist"`
	Recommendation Label               `json:"recommendation"`
	PriceChange    decimal.NullDecimal `json:"price_change"`
}

// Technical returns the momentum view of r
func (r FeatureRecord) Technical() TechnicalAnalysis {
	return TechnicalAnalysis{
		Ticker:         r.Ticker,
		Date:           r.Date,
		RSI:            r.RSI,
		MACD:           r.MACD,
		MACDSignal:     r.MACDSignal,
		MACDHist:       r.MACDHist,
		Recommendation: r.Label,
		PriceChange:    r.PercentChange,
	}
}
