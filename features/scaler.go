package features

import (
	"errors"
	"math"
)

// ErrEmptyFit is returned when a scaler is fitted on no finite values
var ErrEmptyFit = errors.New("no finite values to fit")

// MinMaxScaler maps [Min, Max] onto [0, 1]. A single range is shared by every
// column, matching a scaler fitted on one price column and applied to all of them.
type MinMaxScaler struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FitMinMax fits a scaler to the finite values in values
func FitMinMax(values []float64) (MinMaxScaler, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return MinMaxScaler{}, ErrEmptyFit
	}
	return MinMaxScaler{Min: lo, Max: hi}, nil
}

// FitWindowCloses fits a scaler to the close column of w
func FitWindowCloses(w Window) (MinMaxScaler, error) {
	idx := -1
	for i, c := range w.Columns {
		if c == "close" {
			idx = i
		}
	}
	if idx < 0 {
		return MinMaxScaler{}, errors.New("window has no close column")
	}
	closes := make([]float64, len(w.Rows))
	for i, row := range w.Rows {
		closes[i] = row[idx]
	}
	return FitMinMax(closes)
}

// Transform returns a scaled copy of rows. A zero range maps every value to 0.
func (s MinMaxScaler) Transform(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	span := s.Max - s.Min
	for i, row := range rows {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			if span == 0 {
				continue
			}
			out[i][j] = (v - s.Min) / span
		}
	}
	return out
}

// Inverse maps a scaled value back to the original range
func (s MinMaxScaler) Inverse(v float64) float64 {
	return v*(s.Max-s.Min) + s.Min
}
