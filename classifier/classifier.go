// Package classifier turns an indicator bundle into a Buy/Sell/Hold/Neutral label
// by additive point scoring.
package classifier

import (
	"math"

	"currency-features/models"
)

const (
	RSIOversold   = 30.0
	RSIOverbought = 70.0
	StochLow      = 20.0
	StochHigh     = 80.0

	rsiPoints   = 2
	otherPoints = 1
)

// Score is the pair of accumulated buy and sell points for one bundle
type Score struct {
	Buy  int `json:"buy"`
	Sell int `json:"sell"`
}

// Classifier scores bundles and delegates the final decision to a Strategy
type Classifier struct {
	strategy Strategy
}

// New creates a classifier; a nil strategy selects the default threshold of 3
func New(strategy Strategy) *Classifier {
	if strategy == nil {
		strategy = NewDefaultStrategy()
	}
	return &Classifier{strategy: strategy}
}

// Strategy returns the decision strategy in use
func (c *Classifier) Strategy() Strategy {
	return c.strategy
}

// Classify labels one bundle given the close on the same day
func (c *Classifier) Classify(b models.IndicatorBundle, close float64) models.Label {
	score, ok := Evaluate(b, close)
	if !ok {
		return models.LabelNeutral
	}
	return c.strategy.Decide(score)
}

var defaultClassifier = New(nil)

// Classify labels a bundle with the default strategy
func Classify(b models.IndicatorBundle, close float64) models.Label {
	return defaultClassifier.Classify(b, close)
}

// Evaluate accumulates the rule points. A rule whose inputs are nil is skipped.
// ok is false when any populated input is NaN or infinite.
func Evaluate(b models.IndicatorBundle, close float64) (Score, bool) {
	for _, v := range []*float64{b.RSI, b.MACD, b.MACDSignal, b.KPercent, b.DPercent, b.MA50} {
		if v != nil && !finite(*v) {
			return Score{}, false
		}
	}
	if !finite(close) {
		return Score{}, false
	}

	var s Score

	if b.RSI != nil {
		switch {
		case *b.RSI < RSIOversold:
			s.Buy += rsiPoints
		case *b.RSI > RSIOverbought:
			s.Sell += rsiPoints
		}
	}

	if b.MACD != nil && b.MACDSignal != nil {
		switch {
		case *b.MACD > *b.MACDSignal:
			s.Buy += otherPoints
		case *b.MACD < *b.MACDSignal:
			s.Sell += otherPoints
		}
	}

	if b.KPercent != nil && b.DPercent != nil {
		switch {
		case *b.KPercent < StochLow && *b.DPercent < StochLow:
			s.Buy += otherPoints
		case *b.KPercent > StochHigh && *b.DPercent > StochHigh:
			s.Sell += otherPoints
		}
	}

	if b.MA50 != nil {
		if close > *b.MA50 {
			s.Buy += otherPoints
		} else {
			s.Sell += otherPoints
		}
	}

	return s, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
