package classifier

import "currency-features/models"

// Strategy turns a score into a label
type Strategy interface {
	Decide(score Score) models.Label
	// Name returns the strategy name for logging/display
	Name() string
}

// ThresholdStrategy requires one side to lead and reach MinPoints
type ThresholdStrategy struct {
	MinPoints    int
	StrategyName string
}

// NewDefaultStrategy requires at least 3 agreeing points
func NewDefaultStrategy() *ThresholdStrategy {
	return &ThresholdStrategy{MinPoints: 3, StrategyName: "default"}
}

// NewConservativeStrategy requires at least 4 agreeing points
func NewConservativeStrategy() *ThresholdStrategy {
	return &ThresholdStrategy{MinPoints: 4, StrategyName: "conservative"}
}

// NewCustomStrategy creates a strategy with a custom point threshold
func NewCustomStrategy(minPoints int) *ThresholdStrategy {
	return &ThresholdStrategy{MinPoints: minPoints, StrategyName: "custom"}
}

func (s *ThresholdStrategy) Decide(score Score) models.Label {
	if score.Buy > score.Sell && score.Buy >= s.MinPoints {
		return models.LabelBuy
	}
	if score.Sell > score.Buy && score.Sell >= s.MinPoints {
		return models.LabelSell
	}
	return models.LabelHold
}

func (s *ThresholdStrategy) Name() string {
	return s.StrategyName
}

// StrategyFromName returns a strategy by name
func StrategyFromName(name string) Strategy {
	switch name {
	case "conservative":
		return NewConservativeStrategy()
	default:
		return NewDefaultStrategy()
	}
}
