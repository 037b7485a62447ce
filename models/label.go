package models

import (
	"fmt"
	"strings"
)

// Label is the rule-based trading signal attached to each feature record
type Label string

const (
	LabelBuy     Label = "Buy"
	LabelSell    Label = "Sell"
	LabelHold    Label = "Hold"
	LabelNeutral Label = "Neutral"
)

func (l Label) Valid() bool {
	switch l {
	case LabelBuy, LabelSell, LabelHold, LabelNeutral:
		return true
	}
	return false
}

// ParseLabel accepts any casing of the four label names
func ParseLabel(s string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return LabelBuy, nil
	case "sell":
		return LabelSell, nil
	case "hold":
		return LabelHold, nil
	case "neutral":
		return LabelNeutral, nil
	}
	return "", fmt.Errorf("unknown label %q", s)
}
