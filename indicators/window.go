package indicators

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// column is one input series prepared for windowed computations. Non-finite values are
// replaced with zero in clean and counted in bad so a window can be rejected in O(1).
type column struct {
	clean []float64
	bad   []int // bad[i] = number of non-finite values in raw[0:i]
}

func newColumn(raw []float64) column {
	c := column{
		clean: make([]float64, len(raw)),
		bad:   make([]int, len(raw)+1),
	}
	for i, v := range raw {
		c.bad[i+1] = c.bad[i]
		if !finite(v) {
			c.bad[i+1]++
			continue
		}
		c.clean[i] = v
	}
	return c
}

func (c column) len() int {
	return len(c.clean)
}

// ok reports whether every value in the inclusive window [from, to] is finite
func (c column) ok(from, to int) bool {
	if from < 0 || to >= len(c.clean) || from > to {
		return false
	}
	return c.bad[to+1]-c.bad[from] == 0
}

// sma returns the trailing simple mean for every index where the window is full
// and finite; other positions are NaN
func (c column) sma(period int) []float64 {
	out := nanSlice(c.len())
	if c.len() < period {
		return out
	}
	raw := talib.Sma(c.clean, period)
	for i := period - 1; i < c.len(); i++ {
		if c.ok(i-period+1, i) {
			out[i] = raw[i]
		}
	}
	return out
}

func (c column) max(period int) []float64 {
	out := nanSlice(c.len())
	if c.len() < period {
		return out
	}
	raw := talib.Max(c.clean, period)
	for i := period - 1; i < c.len(); i++ {
		if c.ok(i-period+1, i) {
			out[i] = raw[i]
		}
	}
	return out
}

func (c column) min(period int) []float64 {
	out := nanSlice(c.len())
	if c.len() < period {
		return out
	}
	raw := talib.Min(c.clean, period)
	for i := period - 1; i < c.len(); i++ {
		if c.ok(i-period+1, i) {
			out[i] = raw[i]
		}
	}
	return out
}

// sampleStd returns the trailing sample standard deviation (n-1 denominator)
func (c column) sampleStd(period int) []float64 {
	out := nanSlice(c.len())
	if period < 2 {
		return out
	}
	for i := period - 1; i < c.len(); i++ {
		if !c.ok(i-period+1, i) {
			continue
		}
		out[i] = sampleStd(c.clean[i-period+1 : i+1])
	}
	return out
}

// ema is the recursive exponential mean seeded with the first finite value (no warm-up).
// A non-finite value leaves its own position NaN and the recursion carries over it.
func (c column) ema(span int) []float64 {
	out := nanSlice(c.len())
	alpha := 2 / (float64(span) + 1)
	var prev float64
	seeded := false
	for i, v := range c.clean {
		if !c.ok(i, i) {
			continue
		}
		if seeded {
			prev = alpha*v + (1-alpha)*prev
		} else {
			prev, seeded = v, true
		}
		out[i] = prev
	}
	return out
}

func sampleStd(values []float64) float64 {
	n := float64(len(values))
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= n

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / (n - 1))
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// value converts a computed float into an optional field
func value(v float64) *float64 {
	if !finite(v) {
		return nil
	}
	return &v
}
