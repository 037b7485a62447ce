package models

import (
	"time"

	"github.com/google/uuid"
)

type PipelineRun struct {
	ID           uuid.UUID         `json:"id"`
	Trigger      RunTrigger        `json:"trigger"`
	Status       PipelineRunStatus `json:"status"`
	Tickers      []string          `json:"tickers"`
	StartDate    time.Time         `json:"start_date"`
	EndDate      *time.Time        `json:"end_date,omitempty"`
	Outcomes     []TickerOutcome   `json:"outcomes,omitempty"`
	RecordsTotal int               `json:"records_total"`
	ErrorMessage string            `json:"error_message,omitempty"`
	DurationMs   int               `json:"duration_ms"`
	StartedAt    time.Time         `json:"started_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

type RunTrigger string

const (
	RunTriggerManual    RunTrigger = "manual"
	RunTriggerScheduled RunTrigger = "scheduled"
	RunTriggerAPI       RunTrigger = "api"
)

type PipelineRunStatus string

const (
	PipelineRunStatusRunning   PipelineRunStatus = "running"
	PipelineRunStatusCompleted PipelineRunStatus = "completed"
	PipelineRunStatusFailed    PipelineRunStatus = "failed"
)

// TickerState tracks one ticker through a run: pending, fetching, computing, then done or failed
type TickerState string

const (
	TickerStatePending   TickerState = "pending"
	TickerStateFetching  TickerState = "fetching"
	TickerStateComputing TickerState = "computing"
	TickerStateDone      TickerState = "done"
	TickerStateFailed    TickerState = "failed"
)

// Terminal reports whether no further transition is allowed
func (s TickerState) Terminal() bool {
	return s == TickerStateDone || s == TickerStateFailed
}

// TickerOutcome is the per-ticker result of a run
type TickerOutcome struct {
	Ticker     string      `json:"ticker"`
	State      TickerState `json:"state"`
	Records    int         `json:"records"`
	Error      string      `json:"error,omitempty"`
	DurationMs int         `json:"duration_ms"`
}

func NewPipelineRun(trigger RunTrigger, tickers []string, start time.Time, end *time.Time) *PipelineRun {
	return &PipelineRun{
		ID:        uuid.New(),
		Trigger:   trigger,
		Status:    PipelineRunStatusRunning,
		Tickers:   tickers,
		StartDate: start,
		EndDate:   end,
		StartedAt: time.Now(),
	}
}

// Complete marks the run finished. A run where every ticker failed is still completed;
// callers inspect Outcomes for per-ticker failures.
func (r *PipelineRun) Complete(outcomes []TickerOutcome) {
	now := time.Now()
	r.CompletedAt = &now
	r.Status = PipelineRunStatusCompleted
	r.Outcomes = outcomes
	r.RecordsTotal = 0
	for _, o := range outcomes {
		r.RecordsTotal += o.Records
	}
	r.DurationMs = int(now.Sub(r.StartedAt).Milliseconds())
}

func (r *PipelineRun) Fail(err error) {
	now := time.Now()
	r.CompletedAt = &now
	r.Status = PipelineRunStatusFailed
	r.ErrorMessage = err.Error()
	r.DurationMs = int(now.Sub(r.StartedAt).Milliseconds())
}

// FailedTickers returns the tickers that ended in the failed state
func (r *PipelineRun) FailedTickers() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.State == TickerStateFailed {
			out = append(out, o.Ticker)
		}
	}
	return out
}
