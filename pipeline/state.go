package pipeline

import (
	"fmt"
	"time"

	"currency-features/models"
	"currency-features/observability"
)

var transitions = map[models.TickerState][]models.TickerState{
	models.TickerStatePending:   {models.TickerStateFetching, models.TickerStateFailed},
	models.TickerStateFetching:  {models.TickerStateComputing, models.TickerStateFailed},
	models.TickerStateComputing: {models.TickerStateDone, models.TickerStateFailed},
}

// canTransition reports whether from -> to is a legal ticker state change
func canTransition(from, to models.TickerState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// tickerRun tracks one ticker through a run
type tickerRun struct {
	ticker  string
	runID   string
	state   models.TickerState
	started time.Time
	timer   *observability.Timer
}

func newTickerRun(ticker, runID string) *tickerRun {
	return &tickerRun{
		ticker:  ticker,
		runID:   runID,
		state:   models.TickerStatePending,
		started: time.Now(),
		timer:   observability.GetMetrics().NewTimer(),
	}
}

func (t *tickerRun) transition(to models.TickerState) error {
	if !canTransition(t.state, to) {
		return fmt.Errorf("ticker %s: illegal transition %s -> %s", t.ticker, t.state, to)
	}
	observability.Debug("ticker state changed",
		"run_id", t.runID,
		"ticker", t.ticker,
		"from", t.state,
		"to", to)
	t.state = to
	return nil
}

// done moves to the done state and returns the outcome
func (t *tickerRun) done(records int) models.TickerOutcome {
	if err := t.transition(models.TickerStateDone); err != nil {
		return t.fail(err)
	}
	t.timer.ObserveTicker(string(models.TickerStateDone))
	return models.TickerOutcome{
		Ticker:     t.ticker,
		State:      models.TickerStateDone,
		Records:    records,
		DurationMs: int(time.Since(t.started).Milliseconds()),
	}
}

// fail moves to the failed state from any non-terminal state
func (t *tickerRun) fail(err error) models.TickerOutcome {
	if !t.state.Terminal() {
		t.state = models.TickerStateFailed
	}
	t.timer.ObserveTicker(string(models.TickerStateFailed))
	observability.WithTicker(t.ticker).Warn("ticker skipped",
		"run_id", t.runID,
		"error", err)
	return models.TickerOutcome{
		Ticker:     t.ticker,
		State:      models.TickerStateFailed,
		Error:      err.Error(),
		DurationMs: int(time.Since(t.started).Milliseconds()),
	}
}
