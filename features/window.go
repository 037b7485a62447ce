package features

import (
	"context"
	"fmt"
	"time"

	"currency-features/indicators"
	"currency-features/models"
)

// Window sizes used by the forecasting model variants
const (
	ShortWindow = 11
	LongWindow  = 25
)

// Variant selects the column layout of a Window
type Variant string

const (
	// VariantPrice rows are open, high, low, close, volume, percent_change, day_of_week
	VariantPrice Variant = "price"
	// VariantSMA rows are open, high, low, sma5, sma9, sma17, close
	VariantSMA Variant = "sma"
)

var (
	PriceColumns = []string{"open", "high", "low", "close", "volume", "percent_change", "day_of_week"}
	SMAColumns   = []string{"open", "high", "low", "sma5", "sma9", "sma17", "close"}
)

// ParseVariant accepts "price" or "sma"; empty selects VariantSMA
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantSMA:
		return VariantSMA, nil
	case VariantPrice:
		return VariantPrice, nil
	}
	return "", fmt.Errorf("unknown window variant %q", s)
}

// Window is a fixed-width block of model inputs ordered ascending by date
type Window struct {
	Ticker  string      `json:"ticker"`
	Variant Variant     `json:"variant"`
	Columns []string    `json:"columns"`
	Dates   []time.Time `json:"dates"`
	Rows    [][]float64 `json:"rows"`
}

// Size returns the number of rows
func (w Window) Size() int {
	return len(w.Rows)
}

// Scaler maps raw window rows into the range the model was trained on
type Scaler interface {
	Transform(rows [][]float64) [][]float64
}

// Forecaster predicts the next close from a scaled window. Models live outside
// this module; implementations wrap whatever serves them.
type Forecaster interface {
	Forecast(ctx context.Context, scaled [][]float64) (float64, error)
}

// BuildWindow dispatches on variant
func BuildWindow(records []models.FeatureRecord, n int, variant Variant) (Window, error) {
	switch variant {
	case VariantPrice:
		return PriceWindow(records, n)
	case VariantSMA:
		return SMAWindow(records, n)
	}
	return Window{}, fmt.Errorf("unknown window variant %q", variant)
}

// PriceWindow returns the last n records as price rows. A null percent change is 0.
// day_of_week counts from Monday = 0.
func PriceWindow(records []models.FeatureRecord, n int) (Window, error) {
	if err := checkWindow(records, n); err != nil {
		return Window{}, err
	}
	tail := records[len(records)-n:]
	w := newWindow(tail, VariantPrice, PriceColumns)
	for _, r := range tail {
		pct := 0.0
		if r.PercentChange.Valid {
			pct = r.PercentChange.Decimal.InexactFloat64()
		}
		w.Rows = append(w.Rows, []float64{
			r.Open.InexactFloat64(),
			r.High.InexactFloat64(),
			r.Low.InexactFloat64(),
			r.Close.InexactFloat64(),
			r.Volume.InexactFloat64(),
			pct,
			float64((int(r.Date.Weekday()) + 6) % 7),
		})
	}
	return w, nil
}

// SMAWindow returns the last n records with 5, 9 and 17 day close averages. The
// averages run over every record passed in; where fewer closes exist than the period
// the close itself is used.
func SMAWindow(records []models.FeatureRecord, n int) (Window, error) {
	if err := checkWindow(records, n); err != nil {
		return Window{}, err
	}
	closes := make([]float64, len(records))
	for i, r := range records {
		closes[i] = r.Close.InexactFloat64()
	}
	sma5 := indicators.SMA(closes, 5)
	sma9 := indicators.SMA(closes, 9)
	sma17 := indicators.SMA(closes, smaLongest)

	first := len(records) - n
	w := newWindow(records[first:], VariantSMA, SMAColumns)
	for i := first; i < len(records); i++ {
		r := records[i]
		w.Rows = append(w.Rows, []float64{
			r.Open.InexactFloat64(),
			r.High.InexactFloat64(),
			r.Low.InexactFloat64(),
			orClose(sma5[i], closes[i]),
			orClose(sma9[i], closes[i]),
			orClose(sma17[i], closes[i]),
			closes[i],
		})
	}
	return w, nil
}

// smaLongest is the longest close average SMAWindow computes
const smaLongest = 17

// RecordsNeeded is how many trailing records a window of n rows reads: the SMA variant
// also needs the closes feeding its longest average
func RecordsNeeded(n int, variant Variant) int {
	if variant == VariantSMA {
		return n + smaLongest - 1
	}
	return n
}

func checkWindow(records []models.FeatureRecord, n int) error {
	if n <= 0 {
		return fmt.Errorf("window size %d must be positive", n)
	}
	if len(records) < n {
		return fmt.Errorf("%d records for a window of %d: %w", len(records), n, ErrInsufficientHistory)
	}
	for i := 1; i < len(records); i++ {
		if !records[i].Date.After(records[i-1].Date) {
			return fmt.Errorf("records not ascending at %s", records[i].Date.Format(models.DateLayout))
		}
	}
	return nil
}

func newWindow(tail []models.FeatureRecord, variant Variant, columns []string) Window {
	w := Window{
		Ticker:  tail[0].Ticker,
		Variant: variant,
		Columns: columns,
		Dates:   make([]time.Time, len(tail)),
		Rows:    make([][]float64, 0, len(tail)),
	}
	for i, r := range tail {
		w.Dates[i] = r.Date
	}
	return w
}

func orClose(v *float64, closePrice float64) float64 {
	if v == nil {
		return closePrice
	}
	return *v
}
