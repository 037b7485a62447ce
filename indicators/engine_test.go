package indicators

import (
	"math"
	"testing"
	"time"

	"currency-features/models"
)

const tolerance = 1e-9

func approx(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Errorf("%s = nil, want %v", name, want)
		return
	}
	if math.Abs(*got-want) > 1e-6 {
		t.Errorf("%s = %v, want %v", name, *got, want)
	}
}

func isNil(t *testing.T, name string, got *float64) {
	t.Helper()
	if got != nil {
		t.Errorf("%s = %v, want nil", name, *got)
	}
}

func rangeCloses(from, to float64) []float64 {
	var out []float64
	for v := from; v <= to; v++ {
		out = append(out, v)
	}
	return out
}

func seriesFrom(closes []float64, spread float64) models.PriceSeries {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Date:  start.AddDate(0, 0, i),
			Open:  c,
			High:  c + spread,
			Low:   c - spread,
			Close: c,
		}
	}
	s, err := models.NewPriceSeries("TEST", bars)
	if err != nil {
		panic(err)
	}
	return s
}

func TestSMA(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		period int
		index  int
		want   *float64
	}{
		{"simple 5-day", []float64{10, 20, 30, 40, 50}, 5, 4, ptr(30)},
		{"3-day from longer series", []float64{10, 20, 30, 40, 50}, 3, 4, ptr(40)},
		{"window not full", []float64{10, 20, 30, 40, 50}, 3, 1, nil},
		{"period longer than input", []float64{10, 20}, 5, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SMA(tt.values, tt.period)
			if len(got) != len(tt.values) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.values))
			}
			if tt.want == nil {
				isNil(t, "SMA", got[tt.index])
				return
			}
			approx(t, "SMA", got[tt.index], *tt.want)
		})
	}
}

func TestSMA_NonFiniteInputOnlyAffectsItsWindows(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, math.NaN(), 7, 8, 9, 10}
	got := SMA(values, 3)

	for i := 5; i <= 7; i++ {
		isNil(t, "SMA", got[i])
	}
	approx(t, "SMA[4]", got[4], 4)
	approx(t, "SMA[8]", got[8], 8)
	approx(t, "SMA[9]", got[9], 9)
}

func TestRSI(t *testing.T) {
	t.Run("balanced gains and losses", func(t *testing.T) {
		closes := make([]float64, 15)
		for i := range closes {
			closes[i] = 10 + float64(i%2)
		}
		got := RSI(closes)
		isNil(t, "RSI[13]", got[13])
		approx(t, "RSI[14]", got[14], 50)
	})

	t.Run("zero average loss is undefined", func(t *testing.T) {
		got := RSI(rangeCloses(1, 30))
		for i, v := range got {
			if v != nil {
				t.Errorf("RSI[%d] = %v, want nil", i, *v)
			}
		}
	})

	t.Run("mostly falling prices are oversold", func(t *testing.T) {
		closes := []float64{30, 29, 28, 27, 26, 25, 24, 23, 22, 21, 20, 19, 18, 19, 18}
		got := RSI(closes)
		// 1 gain, 13 losses of 1 -> rs = 1/13
		approx(t, "RSI[14]", got[14], 100-100/(1+1.0/13))
	})

	t.Run("short series", func(t *testing.T) {
		for _, v := range RSI(rangeCloses(1, 14)) {
			isNil(t, "RSI", v)
		}
	})
}

func TestMACD(t *testing.T) {
	t.Run("fewer than 26 observations", func(t *testing.T) {
		macd, signal, hist := MACD(rangeCloses(1, 25))
		for i := range macd {
			isNil(t, "MACD", macd[i])
			isNil(t, "Signal", signal[i])
			isNil(t, "Hist", hist[i])
		}
	})

	t.Run("constant price", func(t *testing.T) {
		closes := make([]float64, 40)
		for i := range closes {
			closes[i] = 1.25
		}
		macd, signal, hist := MACD(closes)
		isNil(t, "MACD[24]", macd[24])
		approx(t, "MACD[25]", macd[25], 0)
		approx(t, "Signal[39]", signal[39], 0)
		approx(t, "Hist[39]", hist[39], 0)
	})

	t.Run("histogram is macd minus signal", func(t *testing.T) {
		closes := make([]float64, 80)
		for i := range closes {
			closes[i] = 100 + 10*math.Sin(float64(i)/5)
		}
		macd, signal, hist := MACD(closes)
		for i := 25; i < len(closes); i++ {
			if math.Abs(*hist[i]-(*macd[i]-*signal[i])) > tolerance {
				t.Fatalf("Hist[%d] = %v, want %v", i, *hist[i], *macd[i]-*signal[i])
			}
		}
	})

	t.Run("missing close only nulls its own day", func(t *testing.T) {
		closes := make([]float64, 260)
		for i := range closes {
			closes[i] = 1.1 + 0.05*math.Sin(float64(i)/7)
		}
		closes[30] = math.NaN()
		macd, signal, hist := MACD(closes)

		isNil(t, "MACD[30]", macd[30])
		isNil(t, "Signal[30]", signal[30])
		for i := 31; i < len(closes); i++ {
			if macd[i] == nil || signal[i] == nil || hist[i] == nil {
				t.Fatalf("MACD undefined at %d after a single gap at 30", i)
			}
		}
	})

	t.Run("rising prices give positive macd", func(t *testing.T) {
		macd, _, _ := MACD(rangeCloses(1, 60))
		if *macd[59] <= 0 {
			t.Errorf("MACD[59] = %v, want > 0", *macd[59])
		}
	})
}

func TestBollinger(t *testing.T) {
	upper, lower := Bollinger(rangeCloses(1, 20))

	isNil(t, "Upper[18]", upper[18])
	// mean 10.5, sample variance 665/19 = 35
	approx(t, "Upper[19]", upper[19], 10.5+2*math.Sqrt(35))
	approx(t, "Lower[19]", lower[19], 10.5-2*math.Sqrt(35))
}

func TestStochastic(t *testing.T) {
	t.Run("k and d windows", func(t *testing.T) {
		closes := rangeCloses(1, 17)
		s := seriesFrom(closes, 1)
		k, d := Stochastic(s.Highs(), s.Lows(), s.Closes())

		isNil(t, "K[12]", k[12])
		// highest high = close+1, lowest low = close-14, range 15
		approx(t, "K[13]", k[13], 100*14.0/15)
		isNil(t, "D[15]", d[15])
		approx(t, "D[16]", d[16], 100*14.0/15)
	})

	t.Run("d requires today's k", func(t *testing.T) {
		s := seriesFrom(rangeCloses(1, 20), 1)
		closes := append([]float64(nil), s.Closes()...)
		closes[18] = math.NaN()
		k, d := Stochastic(s.Highs(), s.Lows(), closes)

		isNil(t, "K[18]", k[18])
		isNil(t, "D[18]", d[18])
		if k[17] == nil || d[17] == nil {
			t.Fatal("K and D should be defined the day before the gap")
		}
		// D[19] averages K[17] and K[19], skipping the undefined K[18]
		if k[19] == nil {
			t.Fatal("K[19] should be defined")
		}
		approx(t, "D[19]", d[19], (*k[17]+*k[19])/2)
	})

	t.Run("zero range", func(t *testing.T) {
		closes := make([]float64, 20)
		for i := range closes {
			closes[i] = 1.1
		}
		s := seriesFrom(closes, 0)
		k, d := Stochastic(s.Highs(), s.Lows(), s.Closes())
		for i := range k {
			isNil(t, "K", k[i])
			isNil(t, "D", d[i])
		}
	})
}

func TestATR(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 50
	}
	s := seriesFrom(closes, 1)
	got := ATR(s.Highs(), s.Lows(), s.Closes())

	isNil(t, "ATR[12]", got[12])
	approx(t, "ATR[13]", got[13], 2)

	// a gap above the previous close widens the true range to high - prevClose
	gapped := make([]float64, 14)
	for i := range gapped {
		gapped[i] = 10
	}
	gapped[13] = 15
	g := seriesFrom(gapped, 1)
	gap := ATR(g.Highs(), g.Lows(), g.Closes())
	approx(t, "ATR with gap", gap[13], (13*2.0+6)/14)
}

func TestVolatility(t *testing.T) {
	closes := make([]float64, 20)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		closes[i] = closes[i-1] * 1.01
	}
	got := Volatility(closes)

	isNil(t, "Volatility[13]", got[13])
	if got[14] == nil || *got[14] > 1e-6 {
		t.Errorf("Volatility[14] = %v, want ~0 for constant returns", got[14])
	}

	alt := make([]float64, 16)
	for i := range alt {
		alt[i] = 100 + float64(i%2)
	}
	vol := Volatility(alt)
	if vol[15] == nil || *vol[15] <= 0 {
		t.Errorf("Volatility[15] = %v, want > 0", vol[15])
	}
}

func TestNextHigh(t *testing.T) {
	highs := []float64{1, 2, 3, 4, 5, 6}
	closes := []float64{1, 1, 1, 1, 1, 2}
	next, change := NextHigh(highs, closes)

	approx(t, "NextHigh[0]", next[0], 1)
	approx(t, "NextHigh[2]", next[2], 2)
	approx(t, "NextHigh[5]", next[5], 4)
	approx(t, "HighChange[5]", change[5], 100)

	_, zero := NextHigh([]float64{1}, []float64{0})
	isNil(t, "HighChange with zero close", zero[0])
}

func TestPercentChange(t *testing.T) {
	got := PercentChange([]float64{100, 110, 0, 5})
	isNil(t, "PercentChange[0]", got[0])
	approx(t, "PercentChange[1]", got[1], 10)
	approx(t, "PercentChange[2]", got[2], -100)
	isNil(t, "PercentChange[3]", got[3])
}

func TestCompute_ShortSeriesLeavesMomentumFieldsNull(t *testing.T) {
	s := seriesFrom(rangeCloses(1, 13), 0.5)
	bundles := Compute(s)

	if len(bundles) != 13 {
		t.Fatalf("len = %d, want 13", len(bundles))
	}
	for i, b := range bundles {
		if !b.Date.Equal(s.Bars[i].Date) {
			t.Errorf("bundle %d date = %v, want %v", i, b.Date, s.Bars[i].Date)
		}
		isNil(t, "RSI", b.RSI)
		isNil(t, "MACD", b.MACD)
		isNil(t, "MACDSignal", b.MACDSignal)
		isNil(t, "KPercent", b.KPercent)
		isNil(t, "DPercent", b.DPercent)
	}
}

func TestCompute_FullHistory(t *testing.T) {
	closes := make([]float64, 220)
	for i := range closes {
		closes[i] = 1.1 + 0.01*math.Sin(float64(i)/7)
	}
	bundles := Compute(seriesFrom(closes, 0.005))

	last := bundles[len(bundles)-1]
	for name, v := range map[string]*float64{
		"RSI": last.RSI, "MACD": last.MACD, "MA50": last.MA50, "MA200": last.MA200,
		"Close200MADiff": last.Close200MADiff, "UpperBB": last.UpperBB, "KPercent": last.KPercent,
		"DPercent": last.DPercent, "ATR": last.ATR, "Volatility": last.Volatility,
		"NextHigh": last.NextHigh, "PercentChange": last.PercentChange,
	} {
		if v == nil {
			t.Errorf("%s is nil on day 220", name)
		}
	}
	isNil(t, "MA200 on day 199", bundles[198].MA200)
	if bundles[199].MA200 == nil {
		t.Error("MA200 should be defined on day 200")
	}
}

func TestCompute_Empty(t *testing.T) {
	if got := Compute(models.PriceSeries{}); len(got) != 0 {
		t.Errorf("Compute(empty) len = %d", len(got))
	}
}

func ptr(v float64) *float64 { return &v }
