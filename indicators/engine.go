// Package indicators computes the per-day technical indicator set for a daily price series.
// Every window is trailing: the value at index i depends only on observations 0..i.
package indicators

import (
	"math"

	"currency-features/models"
)

const (
	RSIPeriod           = 14
	MACDFast            = 12
	MACDSlow            = 26
	MACDSignalPeriod    = 9
	ShortMAPeriod       = 50
	LongMAPeriod        = 200
	BollingerPeriod     = 20
	BollingerWidth      = 2.0
	StochasticPeriod    = 14
	StochasticSmoothing = 3
	ATRPeriod           = 14
	VolatilityPeriod    = 14
	NextHighWindow      = 5
)

// MACD fields are reported once the slow EMA has seen a full span
const macdFirstIndex = MACDSlow - 1

// %D needs StochasticPeriod + StochasticSmoothing observations
const stochasticDFirstIndex = StochasticPeriod + StochasticSmoothing - 1

// Compute returns one IndicatorBundle per bar, in the same order and with the same dates
func Compute(series models.PriceSeries) []models.IndicatorBundle {
	n := series.Len()
	out := make([]models.IndicatorBundle, n)
	if n == 0 {
		return out
	}

	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()

	rsi := RSI(closes)
	macd, signal, hist := MACD(closes)
	ma50 := SMA(closes, ShortMAPeriod)
	ma200 := SMA(closes, LongMAPeriod)
	upper, lower := Bollinger(closes)
	k, d := Stochastic(highs, lows, closes)
	atr := ATR(highs, lows, closes)
	vol := Volatility(closes)
	nextHigh, highChange := NextHigh(highs, closes)
	pct := PercentChange(closes)

	for i, bar := range series.Bars {
		out[i] = models.IndicatorBundle{
			Date:           bar.Date,
			RSI:            rsi[i],
			MACD:           macd[i],
			MACDSignal:     signal[i],
			MACDHist:       hist[i],
			MA50:           ma50[i],
			MA200:          ma200[i],
			Close50MADiff:  diff(closes[i], ma50[i]),
			Close200MADiff: diff(closes[i], ma200[i]),
			UpperBB:        upper[i],
			LowerBB:        lower[i],
			KPercent:       k[i],
			DPercent:       d[i],
			ATR:            atr[i],
			Volatility:     vol[i],
			NextHigh:       nextHigh[i],
			HighChange:     highChange[i],
			PercentChange:  pct[i],
		}
	}
	return out
}

// RSI is the 14-period relative strength index using simple trailing means of gains and losses.
// It is undefined when the average loss is zero.
func RSI(closes []float64) []*float64 {
	c := newColumn(closes)
	n := c.len()
	out := make([]*float64, n)
	if n <= RSIPeriod {
		return out
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := c.clean[i] - c.clean[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	avgGain := newColumn(gains).sma(RSIPeriod)
	avgLoss := newColumn(losses).sma(RSIPeriod)
	for i := RSIPeriod; i < n; i++ {
		if !c.ok(i-RSIPeriod, i) || avgLoss[i] == 0 {
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = value(100 - 100/(1+rs))
	}
	return out
}

// MACD returns the MACD line, its signal and the histogram
func MACD(closes []float64) (macd, signal, hist []*float64) {
	c := newColumn(closes)
	n := c.len()
	macd = make([]*float64, n)
	signal = make([]*float64, n)
	hist = make([]*float64, n)

	fast := c.ema(MACDFast)
	slow := c.ema(MACDSlow)
	line := make([]float64, n)
	for i := range line {
		line[i] = fast[i] - slow[i]
	}
	sig := newColumn(line).ema(MACDSignalPeriod)

	for i := macdFirstIndex; i < n; i++ {
		m, s := value(line[i]), value(sig[i])
		if m == nil || s == nil {
			continue
		}
		macd[i], signal[i] = m, s
		hist[i] = value(*m - *s)
	}
	return macd, signal, hist
}

// SMA is the trailing simple moving average
func SMA(values []float64, period int) []*float64 {
	raw := newColumn(values).sma(period)
	out := make([]*float64, len(raw))
	for i, v := range raw {
		out[i] = value(v)
	}
	return out
}

// Bollinger returns the upper and lower bands at BollingerWidth sample standard deviations
// around the 20-day mean
func Bollinger(closes []float64) (upper, lower []*float64) {
	c := newColumn(closes)
	mid := c.sma(BollingerPeriod)
	std := c.sampleStd(BollingerPeriod)
	upper = make([]*float64, c.len())
	lower = make([]*float64, c.len())
	for i := range mid {
		upper[i] = value(mid[i] + BollingerWidth*std[i])
		lower[i] = value(mid[i] - BollingerWidth*std[i])
	}
	return upper, lower
}

// Stochastic returns %K and %D. %K is undefined when the 14-day range is zero.
// %D needs today's %K and averages whichever %K values are defined in the trailing three days.
func Stochastic(highs, lows, closes []float64) (k, d []*float64) {
	cl := newColumn(closes)
	n := cl.len()
	k = make([]*float64, n)
	d = make([]*float64, n)

	hh := newColumn(highs).max(StochasticPeriod)
	ll := newColumn(lows).min(StochasticPeriod)
	for i := StochasticPeriod - 1; i < n; i++ {
		rng := hh[i] - ll[i]
		if !cl.ok(i, i) || !finite(rng) || rng == 0 {
			continue
		}
		k[i] = value(100 * (cl.clean[i] - ll[i]) / rng)
	}

	for i := stochasticDFirstIndex; i < n; i++ {
		if k[i] == nil {
			continue
		}
		var sum float64
		var count int
		for j := i - StochasticSmoothing + 1; j <= i; j++ {
			if k[j] != nil {
				sum += *k[j]
				count++
			}
		}
		if count > 0 {
			d[i] = value(sum / float64(count))
		}
	}
	return k, d
}

// ATR is the 14-day simple mean of the true range. The first day's true range is high-low.
func ATR(highs, lows, closes []float64) []*float64 {
	n := len(closes)
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		hl := highs[i] - lows[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
		if !finite(hl) || !finite(hc) || !finite(lc) {
			tr[i] = math.NaN()
		}
	}
	return SMA(tr, ATRPeriod)
}

// Volatility is the 14-day sample standard deviation of daily returns, in percent
func Volatility(closes []float64) []*float64 {
	n := len(closes)
	out := make([]*float64, n)
	if n == 0 {
		return out
	}

	returns := make([]float64, n)
	returns[0] = math.NaN()
	for i := 1; i < n; i++ {
		if closes[i-1] == 0 {
			returns[i] = math.NaN()
			continue
		}
		returns[i] = closes[i]/closes[i-1] - 1
	}

	std := newColumn(returns).sampleStd(VolatilityPeriod)
	for i, v := range std {
		out[i] = value(v * 100)
	}
	return out
}

// NextHigh is the mean of the last five highs including the current day, together with
// its percent deviation from the current close. Despite the name it looks backward only.
func NextHigh(highs, closes []float64) (nextHigh, highChange []*float64) {
	n := len(highs)
	nextHigh = make([]*float64, n)
	highChange = make([]*float64, n)
	h := newColumn(highs)

	for i := 0; i < n; i++ {
		from := max(0, i-NextHighWindow+1)
		if !h.ok(from, i) {
			continue
		}
		var sum float64
		for _, v := range h.clean[from : i+1] {
			sum += v
		}
		mean := sum / float64(i-from+1)
		nextHigh[i] = value(mean)

		if closes[i] != 0 && finite(closes[i]) {
			highChange[i] = value((mean - closes[i]) / closes[i] * 100)
		}
	}
	return nextHigh, highChange
}

// PercentChange is the close-to-close change in percent
func PercentChange(closes []float64) []*float64 {
	out := make([]*float64, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out[i] = value((closes[i] - closes[i-1]) / closes[i-1] * 100)
	}
	return out
}

func diff(price float64, ma *float64) *float64 {
	if ma == nil {
		return nil
	}
	return value(price - *ma)
}
