package services

import (
	"math"
	"strings"
	"unicode"
)

// headline polarity lexicon; weights are in [-1, 1]
var sentimentLexicon = map[string]float64{
	"gain": 0.5, "gains": 0.5, "rally": 0.6, "rallies": 0.6, "surge": 0.7, "surges": 0.7,
	"soar": 0.8, "soars": 0.8, "jump": 0.5, "jumps": 0.5, "rise": 0.4, "rises": 0.4,
	"rising": 0.4, "up": 0.2, "high": 0.3, "higher": 0.4, "record": 0.4, "strong": 0.5,
	"stronger": 0.5, "growth": 0.5, "boom": 0.7, "bull": 0.5, "bullish": 0.6,
	"optimism": 0.6, "optimistic": 0.6, "recovery": 0.5, "recovers": 0.5, "rebound": 0.5,
	"beat": 0.4, "beats": 0.4, "upbeat": 0.6, "positive": 0.5, "good": 0.7, "great": 0.8,
	"best": 1.0, "profit": 0.4, "profits": 0.4, "win": 0.6, "wins": 0.6, "boost": 0.5,
	"boosts": 0.5, "easing": 0.3, "stable": 0.3, "confidence": 0.4,

	"loss": -0.5, "losses": -0.5, "fall": -0.4, "falls": -0.4, "falling": -0.4,
	"drop": -0.5, "drops": -0.5, "plunge": -0.8, "plunges": -0.8, "slump": -0.7,
	"slumps": -0.7, "tumble": -0.7, "tumbles": -0.7, "crash": -0.9, "crashes": -0.9,
	"down": -0.2, "low": -0.3, "lower": -0.4, "weak": -0.5, "weaker": -0.5,
	"recession": -0.7, "crisis": -0.8, "bear": -0.5, "bearish": -0.6, "fear": -0.6,
	"fears": -0.6, "worry": -0.5, "worries": -0.5, "concern": -0.4, "concerns": -0.4,
	"risk": -0.3, "risks": -0.3, "sell-off": -0.7, "selloff": -0.7, "miss": -0.4,
	"misses": -0.4, "negative": -0.5, "bad": -0.7, "worst": -1.0, "inflation": -0.2,
	"layoffs": -0.6, "default": -0.6, "slowdown": -0.5, "uncertainty": -0.4,
	"volatile": -0.3, "volatility": -0.3, "war": -0.6,
}

var negators = map[string]bool{
	"not": true, "no": true, "never": true, "without": true, "isn't": true, "aren't": true,
	"doesn't": true, "don't": true, "won't": true,
}

// Polarity scores one headline in [-1, 1] as the mean weight of the lexicon words it
// contains. A negator flips the next scored word. Text with no scored words is 0.
func Polarity(text string) float64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-' && r != '\''
	})

	var sum float64
	var count int
	negate := false
	for _, w := range words {
		if negators[w] {
			negate = true
			continue
		}
		weight, ok := sentimentLexicon[w]
		if !ok {
			continue
		}
		if negate {
			weight = -weight * 0.5
			negate = false
		}
		sum += weight
		count++
	}
	if count == 0 {
		return 0
	}
	return clampUnit(sum / float64(count))
}

// MeanPolarity averages Polarity over texts, rounded to 4 places. Empty input is 0.
func MeanPolarity(texts []string) float64 {
	if len(texts) == 0 {
		return 0
	}
	var sum float64
	for _, t := range texts {
		sum += Polarity(t)
	}
	return math.Round(clampUnit(sum/float64(len(texts)))*10000) / 10000
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
