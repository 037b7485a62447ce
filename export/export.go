// Package export serializes feature records to flat CSV rows and JSON objects and
// parses them back. Numbers are written as plain decimals, dates as YYYY-MM-DD and
// missing values as empty CSV cells or JSON null.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"currency-features/models"
)

// Columns is the fixed field order of every exported row
var Columns = []string{
	"date", "ticker", "open", "high", "low", "close", "adj_close", "volume",
	"rsi", "macd", "macd_signal", "macd_hist", "percent_change",
	"ma_50", "ma_200", "close_50ma_diff", "close_200ma_diff",
	"upper_bb", "lower_bb", "k_percent", "d_percent",
	"atr", "volatility", "next_high", "high_change",
	"interest_rate", "inflation", "dxy", "market_sentiment", "economic_news",
	"label",
}

const (
	colDate         = 0
	colTicker       = 1
	firstRequired   = 2 // open .. volume
	firstOptional   = 8 // rsi .. market_sentiment
	colEconomicNews = 29
	colLabel        = 30
)

// ErrColumnCount is returned when a row does not have len(Columns) cells
var ErrColumnCount = errors.New("wrong number of columns")

// Flatten returns the cells of r in Columns order
func Flatten(r models.FeatureRecord) []string {
	cells := make([]string, 0, len(Columns))
	cells = append(cells, r.Date.Format(models.DateLayout), r.Ticker)
	for _, d := range []decimal.Decimal{r.Open, r.High, r.Low, r.Close, r.AdjClose, r.Volume} {
		cells = append(cells, d.String())
	}
	for _, d := range r.NullDecimals() {
		if d.Valid {
			cells = append(cells, d.Decimal.String())
		} else {
			cells = append(cells, "")
		}
	}
	news := ""
	if r.EconomicNews != nil {
		news = *r.EconomicNews
	}
	return append(cells, news, string(r.Label))
}

// Unflatten parses cells in Columns order. Empty optional cells become null; an
// empty economic_news cell becomes nil.
func Unflatten(cells []string) (models.FeatureRecord, error) {
	var r models.FeatureRecord
	if len(cells) != len(Columns) {
		return r, fmt.Errorf("got %d, want %d: %w", len(cells), len(Columns), ErrColumnCount)
	}

	date, err := time.Parse(models.DateLayout, strings.TrimSpace(cells[colDate]))
	if err != nil {
		return r, fmt.Errorf("date: %w", err)
	}
	r.Date = date
	r.Ticker = cells[colTicker]
	if r.Ticker == "" {
		return r, errors.New("ticker: empty")
	}

	required := []*decimal.Decimal{&r.Open, &r.High, &r.Low, &r.Close, &r.AdjClose, &r.Volume}
	for i, dst := range required {
		col := firstRequired + i
		v, err := decimal.NewFromString(strings.TrimSpace(cells[col]))
		if err != nil {
			return r, fmt.Errorf("%s: %w", Columns[col], err)
		}
		*dst = v
	}

	optional := []*decimal.NullDecimal{
		&r.RSI, &r.MACD, &r.MACDSignal, &r.MACDHist, &r.PercentChange,
		&r.MA50, &r.MA200, &r.Close50MADiff, &r.Close200MADiff,
		&r.UpperBB, &r.LowerBB, &r.KPercent, &r.DPercent,
		&r.ATR, &r.Volatility, &r.NextHigh, &r.HighChange,
		&r.InterestRate, &r.Inflation, &r.DXY, &r.MarketSentiment,
	}
	for i, dst := range optional {
		col := firstOptional + i
		cell := strings.TrimSpace(cells[col])
		if cell == "" {
			continue
		}
		v, err := decimal.NewFromString(cell)
		if err != nil {
			return r, fmt.Errorf("%s: %w", Columns[col], err)
		}
		*dst = decimal.NewNullDecimal(v)
	}

	if news := cells[colEconomicNews]; news != "" {
		r.EconomicNews = &news
	}
	label, err := models.ParseLabel(cells[colLabel])
	if err != nil {
		return r, fmt.Errorf("label: %w", err)
	}
	r.Label = label
	return r, nil
}

// isNumeric reports whether the column at index i holds a decimal
func isNumeric(i int) bool {
	return i >= firstRequired && i < colEconomicNews
}
