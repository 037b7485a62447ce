package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"currency-features/models"
	"currency-features/pipeline"
)

type call struct {
	trigger models.RunTrigger
	tickers []string
	start   time.Time
	end     *time.Time
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	err   error
	fired chan struct{}
}

func (f *fakeRunner) RunWithTrigger(_ context.Context, trigger models.RunTrigger, tickers []string, start time.Time, end *time.Time) (*pipeline.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{trigger, tickers, start, end})
	f.mu.Unlock()
	if f.fired != nil {
		select {
		case f.fired <- struct{}{}:
		default:
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	run := models.NewPipelineRun(trigger, tickers, start, end)
	run.Complete(nil)
	return &pipeline.Result{Run: run}, nil
}

func TestScheduler_RunNow(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(context.Background(), runner, []string{"EUR=X", "GBP=X"}, 400)
	s.now = func() time.Time { return time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC) }

	if _, err := s.RunNow(); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runner.calls))
	}
	c := runner.calls[0]
	if c.trigger != models.RunTriggerScheduled {
		t.Errorf("trigger = %s, want scheduled", c.trigger)
	}
	wantStart := time.Date(2023, 5, 7, 0, 0, 0, 0, time.UTC)
	if !c.start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", c.start, wantStart)
	}
	if c.end != nil {
		t.Errorf("end = %v, want nil", c.end)
	}
	if len(c.tickers) != 2 {
		t.Errorf("tickers = %v", c.tickers)
	}
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeRunner{}, nil, 30)

	if err := s.Register("not a cron spec"); err == nil {
		t.Error("expected error for invalid cron expression")
	}
	if !s.Next().IsZero() {
		t.Error("Next() should be zero before start")
	}
	if err := s.Register("0 0 22 * * 1-5"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	s.Start()
	defer s.Stop(context.Background())

	next := s.Next()
	if next.IsZero() {
		t.Fatal("Next() is zero after start")
	}
	if next.UTC().Hour() != 22 || next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		t.Errorf("unexpected next run %v", next)
	}
}

func TestScheduler_Fires(t *testing.T) {
	runner := &fakeRunner{fired: make(chan struct{}, 1)}
	s := NewScheduler(context.Background(), runner, []string{"EUR=X"}, 30)
	if err := s.Register("* * * * * *"); err != nil {
		t.Fatal(err)
	}

	s.Start()
	defer s.Stop(context.Background())

	select {
	case <-runner.fired:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled task did not fire")
	}
}

func TestScheduler_TaskToleratesErrors(t *testing.T) {
	for _, err := range []error{pipeline.ErrRunInProgress, errors.New("boom")} {
		runner := &fakeRunner{err: err}
		s := NewScheduler(context.Background(), runner, []string{"EUR=X"}, 30)
		s.task()
		if len(runner.calls) != 1 {
			t.Errorf("expected the runner to be called once, got %d", len(runner.calls))
		}
	}
}
