package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrDuplicateDate is returned when a price series contains two bars for the same trading day
var ErrDuplicateDate = errors.New("duplicate bar date")

// Synthesized volume band, used when a provider reports no volume for a series
const (
	SynthVolumeFloor   = 100_000_000.0
	SynthVolumeCeiling = 1_000_000_000.0
)

// Bar represents one daily OHLCV observation
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume *float64  `json:"volume,omitempty"` // nil when the provider omitted it
}

// PriceSeries is an ordered daily series for one ticker.
// Bars are strictly increasing by date; the series is not modified after construction.
type PriceSeries struct {
	Ticker string `json:"ticker"`
	Bars   []Bar  `json:"bars"`
}

// NewPriceSeries normalizes bar dates to UTC days, sorts them ascending and rejects duplicates
func NewPriceSeries(ticker string, bars []Bar) (PriceSeries, error) {
	out := make([]Bar, len(bars))
	copy(out, bars)
	for i := range out {
		out[i].Date = TruncateDay(out[i].Date)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	for i := 1; i < len(out); i++ {
		if out[i].Date.Equal(out[i-1].Date) {
			return PriceSeries{}, fmt.Errorf("%s %s: %w", ticker, out[i].Date.Format(DateLayout), ErrDuplicateDate)
		}
	}

	return PriceSeries{Ticker: ticker, Bars: out}, nil
}

// DateLayout is the ISO-8601 calendar date layout used across storage and export
const DateLayout = "2006-01-02"

// TruncateDay drops the time-of-day component and converts to UTC
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Len returns the number of observations
func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// Closes returns the close column
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs returns the high column
func (s PriceSeries) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Lows returns the low column
func (s PriceSeries) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// Between returns the bars whose dates fall in [start, end]. A zero end means no upper bound.
func (s PriceSeries) Between(start, end time.Time) PriceSeries {
	start = TruncateDay(start)
	if !end.IsZero() {
		end = TruncateDay(end)
	}
	out := make([]Bar, 0, len(s.Bars))
	for _, b := range s.Bars {
		if b.Date.Before(start) {
			continue
		}
		if !end.IsZero() && b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return PriceSeries{Ticker: s.Ticker, Bars: out}
}

// HasVolume reports whether at least one bar carries a positive volume
func (s PriceSeries) HasVolume() bool {
	for _, b := range s.Bars {
		if b.Volume != nil && *b.Volume > 0 && !math.IsNaN(*b.Volume) {
			return true
		}
	}
	return false
}

// WithSynthesizedVolume fills volume from the daily high-low range when the provider
// reported none for the whole series. Each day's range is divided by the average range
// and mapped into the [SynthVolumeFloor, SynthVolumeCeiling] band. It is an order-of-magnitude
// placeholder, not a trade-volume estimate. The returned flag is false when the series
// already had volume or the average range is not positive.
func (s PriceSeries) WithSynthesizedVolume() (PriceSeries, bool) {
	if len(s.Bars) == 0 || s.HasVolume() {
		return s, false
	}

	ranges := make([]float64, len(s.Bars))
	var total float64
	for i, b := range s.Bars {
		ranges[i] = math.Abs(b.High - b.Low)
		total += ranges[i]
	}
	avg := total / float64(len(ranges))
	if avg <= 0 || math.IsNaN(avg) || math.IsInf(avg, 0) {
		return s, false
	}

	scale := (SynthVolumeCeiling - SynthVolumeFloor) / 2
	out := make([]Bar, len(s.Bars))
	copy(out, s.Bars)
	for i := range out {
		v := math.Round(ranges[i]/avg*scale + SynthVolumeFloor)
		out[i].Volume = &v
	}
	return PriceSeries{Ticker: s.Ticker, Bars: out}, true
}

func isNaNOrInf(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
