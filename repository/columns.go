package repository

import (
	"fmt"
	"strings"
	"time"

	"currency-features/models"
)

// featureColumns is the column order used by every feature_records statement
var featureColumns = []string{
	"date", "ticker", "open", "high", "low", "close", "adj_close", "volume",
	"rsi", "macd", "macd_signal", "macd_hist", "percent_change",
	"ma_50", "ma_200", "close_50ma_diff", "close_200ma_diff",
	"upper_bb", "lower_bb", "k_percent", "d_percent",
	"atr", "volatility", "next_high", "high_change",
	"interest_rate", "inflation", "dxy", "market_sentiment", "economic_news",
	"label",
}

const defaultListLimit = 10000

// listSQL builds the feature_records listing for q. date encodes a bound the way the
// store stores dates.
func listSQL(q FeatureQuery, numbered bool, date func(time.Time) any) (string, []any) {
	var where []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		p := "?"
		if numbered {
			p = fmt.Sprintf("$%d", len(args))
		}
		where = append(where, fmt.Sprintf(cond, p))
	}
	if q.Ticker != "" {
		add("ticker = %s", q.Ticker)
	}
	if !q.Start.IsZero() {
		add("date >= %s", date(q.Start))
	}
	if !q.End.IsZero() {
		add("date <= %s", date(q.End))
	}
	if !q.Before.IsZero() {
		add("date < %s", date(q.Before))
	}

	query := "SELECT " + selectList("") + " FROM feature_records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	p := "?"
	if numbered {
		p = fmt.Sprintf("$%d", len(args))
	}
	if q.Latest {
		return "SELECT * FROM (" + query + " ORDER BY ticker DESC, date DESC LIMIT " + p +
			") newest ORDER BY ticker, date", args
	}
	return query + " ORDER BY ticker, date LIMIT " + p, args
}

func selectList(alias string) string {
	if alias == "" {
		return strings.Join(featureColumns, ", ")
	}
	cols := make([]string, len(featureColumns))
	for i, c := range featureColumns {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// placeholders returns "$1, $2, ..." when numbered, else "?, ?, ..."
func placeholders(n int, numbered bool) string {
	p := make([]string, n)
	for i := range p {
		if numbered {
			p[i] = fmt.Sprintf("$%d", i+1)
		} else {
			p[i] = "?"
		}
	}
	return strings.Join(p, ", ")
}

func upsertSQL(numbered bool) string {
	updates := make([]string, 0, len(featureColumns)-2)
	for _, c := range featureColumns[2:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return fmt.Sprintf(`
		INSERT INTO feature_records (%s)
		VALUES (%s)
		ON CONFLICT (date, ticker) DO UPDATE SET %s`,
		selectList(""), placeholders(len(featureColumns), numbered), strings.Join(updates, ", "))
}

// recordArgs returns the statement arguments for r in featureColumns order.
// date is passed separately since the stores encode it differently.
func recordArgs(r models.FeatureRecord, date any) []any {
	return []any{
		date, r.Ticker, r.Open, r.High, r.Low, r.Close, r.AdjClose, r.Volume,
		r.RSI, r.MACD, r.MACDSignal, r.MACDHist, r.PercentChange,
		r.MA50, r.MA200, r.Close50MADiff, r.Close200MADiff,
		r.UpperBB, r.LowerBB, r.KPercent, r.DPercent,
		r.ATR, r.Volatility, r.NextHigh, r.HighChange,
		r.InterestRate, r.Inflation, r.DXY, r.MarketSentiment, r.EconomicNews,
		r.Label,
	}
}

// scanTargets returns Scan destinations for r in featureColumns order
func scanTargets(r *models.FeatureRecord, date any) []any {
	return []any{
		date, &r.Ticker, &r.Open, &r.High, &r.Low, &r.Close, &r.AdjClose, &r.Volume,
		&r.RSI, &r.MACD, &r.MACDSignal, &r.MACDHist, &r.PercentChange,
		&r.MA50, &r.MA200, &r.Close50MADiff, &r.Close200MADiff,
		&r.UpperBB, &r.LowerBB, &r.KPercent, &r.DPercent,
		&r.ATR, &r.Volatility, &r.NextHigh, &r.HighChange,
		&r.InterestRate, &r.Inflation, &r.DXY, &r.MarketSentiment, &r.EconomicNews,
		&r.Label,
	}
}
