package models

import (
	"errors"
	"testing"
	"time"
)

func TestNewPipelineRun(t *testing.T) {
	start := day("2024-01-01")
	run := NewPipelineRun(RunTriggerManual, []string{"EUR=X", "JPY=X"}, start, nil)

	if run.Status != PipelineRunStatusRunning {
		t.Errorf("Status = %v, want PipelineRunStatusRunning", run.Status)
	}
	if run.ID == [16]byte{} {
		t.Error("ID should not be zero UUID")
	}
	if len(run.Tickers) != 2 {
		t.Errorf("Tickers = %v, want 2 entries", run.Tickers)
	}
	if run.CompletedAt != nil {
		t.Error("CompletedAt should be nil for new run")
	}
}

func TestPipelineRun_Complete(t *testing.T) {
	run := NewPipelineRun(RunTriggerScheduled, []string{"EUR=X", "BAD"}, day("2024-01-01"), nil)

	time.Sleep(5 * time.Millisecond)

	run.Complete([]TickerOutcome{
		{Ticker: "EUR=X", State: TickerStateDone, Records: 40},
		{Ticker: "BAD", State: TickerStateFailed, Error: "not found"},
	})

	if run.Status != PipelineRunStatusCompleted {
		t.Errorf("Status = %v, want PipelineRunStatusCompleted", run.Status)
	}
	if run.RecordsTotal != 40 {
		t.Errorf("RecordsTotal = %d, want 40", run.RecordsTotal)
	}
	if failed := run.FailedTickers(); len(failed) != 1 || failed[0] != "BAD" {
		t.Errorf("FailedTickers() = %v, want [BAD]", failed)
	}
	if run.DurationMs <= 0 {
		t.Errorf("DurationMs = %v, should be > 0", run.DurationMs)
	}
}

func TestPipelineRun_Fail(t *testing.T) {
	run := NewPipelineRun(RunTriggerAPI, nil, day("2024-01-01"), nil)
	run.Fail(errors.New("context canceled"))

	if run.Status != PipelineRunStatusFailed {
		t.Errorf("Status = %v, want PipelineRunStatusFailed", run.Status)
	}
	if run.ErrorMessage != "context canceled" {
		t.Errorf("ErrorMessage = %v", run.ErrorMessage)
	}
	if run.CompletedAt == nil {
		t.Error("CompletedAt should not be nil after failure")
	}
}

func TestTickerState_Terminal(t *testing.T) {
	for _, s := range []TickerState{TickerStatePending, TickerStateFetching, TickerStateComputing} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true", s)
		}
	}
	for _, s := range []TickerState{TickerStateDone, TickerStateFailed} {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false", s)
		}
	}
}
