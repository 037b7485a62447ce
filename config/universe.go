package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Universe lists the tickers to process, provider symbol overrides and the static
// per-currency macro tables
type Universe struct {
	Tickers []string                     `yaml:"tickers"`
	Symbols map[string]map[string]string `yaml:"symbols"` // provider -> ticker -> provider symbol
	Macro   MacroTables                  `yaml:"macro"`
}

// MacroTables holds static macro values keyed by currency code
type MacroTables struct {
	Defaults      MacroDefaults      `yaml:"defaults"`
	InterestRates map[string]float64 `yaml:"interest_rates"`
	Inflation     map[string]float64 `yaml:"inflation"`
}

// MacroDefaults are used when no table entry or live source is available
type MacroDefaults struct {
	InterestRate float64 `yaml:"interest_rate"`
	Inflation    float64 `yaml:"inflation"`
	DXY          float64 `yaml:"dxy"`
	Sentiment    float64 `yaml:"sentiment"`
}

// Fallback constants for macro fields
const (
	DefaultInterestRate = 5.25
	DefaultInflation    = 3.1
	DefaultDXY          = 103.5
	DefaultSentiment    = 0.0
)

// DefaultUniverse returns the ten major USD crosses with their Tiingo symbols
func DefaultUniverse() *Universe {
	return &Universe{
		Tickers: []string{
			"CAD=X", "EUR=X", "GBP=X", "JPY=X", "AUD=X",
			"CNY=X", "SGD=X", "CHF=X", "NZD=X", "SEK=X",
		},
		Symbols: map[string]map[string]string{
			"tiingo": {
				"CAD=X": "USDCAD",
				"EUR=X": "EURUSD",
				"GBP=X": "GBPUSD",
				"JPY=X": "USDJPY",
				"AUD=X": "AUDUSD",
				"CNY=X": "USDCNY",
				"SGD=X": "USDSGD",
				"CHF=X": "USDCHF",
				"NZD=X": "NZDUSD",
				"SEK=X": "USDSEK",
			},
		},
		Macro: MacroTables{
			Defaults: MacroDefaults{
				InterestRate: DefaultInterestRate,
				Inflation:    DefaultInflation,
				DXY:          DefaultDXY,
				Sentiment:    DefaultSentiment,
			},
			InterestRates: map[string]float64{},
			Inflation:     map[string]float64{},
		},
	}
}

// LoadUniverse reads a YAML universe file. Missing sections keep the defaults.
func LoadUniverse(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file: %w", err)
	}

	u := DefaultUniverse()
	var parsed Universe
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse universe file %s: %w", path, err)
	}

	if len(parsed.Tickers) > 0 {
		u.Tickers = parsed.Tickers
	}
	for provider, mapping := range parsed.Symbols {
		if u.Symbols[provider] == nil {
			u.Symbols[provider] = map[string]string{}
		}
		for ticker, symbol := range mapping {
			u.Symbols[provider][ticker] = symbol
		}
	}
	d := parsed.Macro.Defaults
	if d.InterestRate != 0 {
		u.Macro.Defaults.InterestRate = d.InterestRate
	}
	if d.Inflation != 0 {
		u.Macro.Defaults.Inflation = d.Inflation
	}
	if d.DXY != 0 {
		u.Macro.Defaults.DXY = d.DXY
	}
	if d.Sentiment != 0 {
		u.Macro.Defaults.Sentiment = d.Sentiment
	}
	for k, v := range parsed.Macro.InterestRates {
		u.Macro.InterestRates[k] = v
	}
	for k, v := range parsed.Macro.Inflation {
		u.Macro.Inflation[k] = v
	}

	return u, nil
}

// Symbol returns the provider-specific symbol for a ticker, or the ticker itself
func (u *Universe) Symbol(provider, ticker string) string {
	if m, ok := u.Symbols[provider]; ok {
		if s, ok := m[ticker]; ok {
			return s
		}
	}
	return ticker
}
