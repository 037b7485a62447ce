package models

import (
	"time"
)

// NewsArticle represents a headline returned by the news provider
type NewsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// MacroSnapshot holds the macro fields joined onto one (date, currency) row.
// Nil fields were unavailable from every source and carry no default.
type MacroSnapshot struct {
	Date            time.Time `json:"date"`
	Currency        string    `json:"currency"`
	InterestRate    *float64  `json:"interest_rate"`
	Inflation       *float64  `json:"inflation"`
	DXY             *float64  `json:"dxy"`
	MarketSentiment *float64  `json:"market_sentiment"`
	EconomicNews    string    `json:"economic_news,omitempty"`
}

// IndicatorBundle is the set of indicators computed for one bar.
// A nil field means the indicator is not yet defined at that position.
type IndicatorBundle struct {
	Date           time.Time `json:"date"`
	RSI            *float64  `json:"rsi"`
	MACD           *float64  `json:"macd"`
	MACDSignal     *float64  `json:"macd_signal"`
	MACDHist       *float64  `json:"macd_hist"`
	MA50           *float64  `json:"ma_50"`
	MA200          *float64  `json:"ma_200"`
	Close50MADiff  *float64  `json:"close_50ma_diff"`
	Close200MADiff *float64  `json:"close_200ma_diff"`
	UpperBB        *float64  `json:"upper_bb"`
	LowerBB        *float64  `json:"lower_bb"`
	KPercent       *float64  `json:"k_percent"`
	DPercent       *float64  `json:"d_percent"`
	ATR            *float64  `json:"atr"`
	Volatility     *float64  `json:"volatility"`
	NextHigh       *float64  `json:"next_high"`
	HighChange     *float64  `json:"high_change"`
	PercentChange  *float64  `json:"percent_change"`
}
