// Package pipeline runs the feature pipeline over a ticker universe: fetch the daily
// series, compute indicators, join macro data, label and emit FeatureRecords.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"currency-features/classifier"
	"currency-features/config"
	"currency-features/features"
	"currency-features/indicators"
	"currency-features/macro"
	"currency-features/models"
	"currency-features/observability"
	"currency-features/services"
)

var (
	// ErrNoTickers is returned when Run is given an empty universe
	ErrNoTickers = errors.New("no tickers to run")
	// ErrRunInProgress is returned when a Runner is already executing a run
	ErrRunInProgress = errors.New("pipeline run already in progress")
)

// Store receives the records of each finished ticker
type Store interface {
	UpsertFeatureRecords(ctx context.Context, records []models.FeatureRecord) (int, error)
}

// RunLog persists pipeline run bookkeeping
type RunLog interface {
	CreatePipelineRun(ctx context.Context, run *models.PipelineRun) error
	UpdatePipelineRun(ctx context.Context, run *models.PipelineRun) error
}

// Result is the output of one run. Records are ordered by ticker, in the order the
// tickers were given, then ascending by date.
type Result struct {
	Run     *models.PipelineRun    `json:"run"`
	Records []models.FeatureRecord `json:"records"`
}

// Runner executes pipeline runs
type Runner struct {
	provider   services.SeriesProvider
	macro      macro.Provider
	builder    *features.Builder
	pacer      *Pacer
	workers    int
	batchSize  int
	batchPause time.Duration
	timeout    time.Duration
	store      Store
	runs       RunLog

	running atomic.Bool
}

// Option configures a Runner
type Option func(*Runner)

// WithWorkers sets the number of tickers processed concurrently
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithPacing sets the minimum gap between provider requests, and a pause taken after
// every batchSize tickers are dispatched
func WithPacing(requestInterval time.Duration, batchSize int, batchPause time.Duration) Option {
	return func(r *Runner) {
		r.pacer = NewPacer(requestInterval)
		r.batchSize = batchSize
		r.batchPause = batchPause
	}
}

// WithBuilder replaces the default record builder
func WithBuilder(b *features.Builder) Option {
	return func(r *Runner) {
		if b != nil {
			r.builder = b
		}
	}
}

// WithTimeout bounds a whole run
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithStore upserts each ticker's records as soon as it finishes
func WithStore(s Store) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// WithRunLog records every run
func WithRunLog(l RunLog) Option {
	return func(r *Runner) {
		r.runs = l
	}
}

// NewRunner creates a Runner with one worker and no pacing
func NewRunner(provider services.SeriesProvider, macroProvider macro.Provider, opts ...Option) *Runner {
	r := &Runner{
		provider: provider,
		macro:    macroProvider,
		builder:  features.NewBuilder(),
		workers:  1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRunnerFromConfig creates a Runner using the pipeline settings of cfg. Extra
// options are applied last.
func NewRunnerFromConfig(cfg *config.Config, provider services.SeriesProvider, macroProvider macro.Provider, opts ...Option) *Runner {
	p := cfg.Pipeline
	base := []Option{
		WithWorkers(p.Workers),
		WithPacing(
			time.Duration(p.RequestIntervalMs)*time.Millisecond,
			p.BatchSize,
			time.Duration(p.BatchPauseMs)*time.Millisecond,
		),
		WithBuilder(features.NewBuilder(
			features.WithWarmUp(p.WarmUp),
			features.WithClassifier(classifier.New(StrategyFromConfig(p))),
		)),
		WithTimeout(time.Duration(p.TimeoutSeconds) * time.Second),
	}
	return NewRunner(provider, macroProvider, append(base, opts...)...)
}

// StrategyFromConfig selects the label strategy named in the pipeline config
func StrategyFromConfig(p config.PipelineConfig) classifier.Strategy {
	if p.Strategy == "custom" {
		return classifier.NewCustomStrategy(p.MinPoints)
	}
	return classifier.StrategyFromName(p.Strategy)
}

// Running reports whether a run is executing
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Run executes a manually triggered run over tickers from start to end. A nil end
// means up to today.
func (r *Runner) Run(ctx context.Context, tickers []string, start time.Time, end *time.Time) (*Result, error) {
	return r.RunWithTrigger(ctx, models.RunTriggerManual, tickers, start, end)
}

// RunWithTrigger executes a run. Per-ticker failures are recorded in the run outcomes
// and never abort the run; an error is returned only when the run itself could not
// proceed, such as cancellation of ctx.
func (r *Runner) RunWithTrigger(ctx context.Context, trigger models.RunTrigger, tickers []string, start time.Time, end *time.Time) (*Result, error) {
	tickers, err := r.claim(tickers)
	if err != nil {
		return nil, err
	}
	defer r.running.Store(false)
	return r.execute(ctx, trigger, tickers, start, end)
}

// Outcome is the result of a run started with Start
type Outcome struct {
	Result *Result
	Err    error
}

// Start claims the run slot before returning and executes the run in the background.
// ErrRunInProgress and ErrNoTickers are reported immediately; the run's own result
// arrives on the returned channel, which is closed afterwards.
func (r *Runner) Start(ctx context.Context, trigger models.RunTrigger, tickers []string, start time.Time, end *time.Time) (<-chan Outcome, error) {
	tickers, err := r.claim(tickers)
	if err != nil {
		return nil, err
	}
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		defer r.running.Store(false)
		res, err := r.execute(ctx, trigger, tickers, start, end)
		out <- Outcome{Result: res, Err: err}
	}()
	return out, nil
}

// claim normalizes tickers and takes the single run slot
func (r *Runner) claim(tickers []string) ([]string, error) {
	tickers = normalizeTickers(tickers)
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	return tickers, nil
}

func (r *Runner) execute(ctx context.Context, trigger models.RunTrigger, tickers []string, start time.Time, end *time.Time) (*Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start = models.TruncateDay(start)
	var endDate time.Time
	if end != nil {
		endDate = models.TruncateDay(*end)
		end = &endDate
	}

	run := models.NewPipelineRun(trigger, tickers, start, end)
	runID := run.ID.String()
	ctx = observability.ContextWithRun(ctx, runID)
	log := observability.WithRun(runID)
	timer := observability.GetMetrics().NewTimer()

	if r.runs != nil {
		if err := r.runs.CreatePipelineRun(ctx, run); err != nil {
			log.Warn("failed to record pipeline run", "error", err)
		}
	}

	log.Info("pipeline run started",
		"trigger", trigger,
		"tickers", len(tickers),
		"provider", r.provider.Name(),
		"start", start.Format(models.DateLayout),
		"workers", r.workers)

	mc, err := macro.Load(ctx, r.macro, currencies(tickers), start, endDate)
	if err != nil {
		return r.abort(ctx, run, timer, nil, fmt.Errorf("loading macro context: %w", err))
	}

	perTicker, outcomes := r.process(ctx, runID, tickers, start, endDate, mc)

	result := &Result{Run: run}
	for _, recs := range perTicker {
		result.Records = append(result.Records, recs...)
	}

	if err := ctx.Err(); err != nil {
		run.Outcomes = outcomes
		return r.abort(ctx, run, timer, result.Records, fmt.Errorf("pipeline run interrupted: %w", err))
	}

	run.Complete(outcomes)
	r.finish(ctx, run)
	timer.ObserveRun(string(trigger), string(run.Status))

	log.Info("pipeline run completed",
		"records", run.RecordsTotal,
		"failed_tickers", len(run.FailedTickers()),
		"duration_ms", run.DurationMs)
	return result, nil
}

func (r *Runner) abort(ctx context.Context, run *models.PipelineRun, timer *observability.Timer, records []models.FeatureRecord, err error) (*Result, error) {
	run.Fail(err)
	r.finish(context.WithoutCancel(ctx), run)
	timer.ObserveRun(string(run.Trigger), string(run.Status))
	observability.WithRun(run.ID.String()).Error("pipeline run failed", "error", err)
	return &Result{Run: run, Records: records}, err
}

func (r *Runner) finish(ctx context.Context, run *models.PipelineRun) {
	if r.runs == nil {
		return
	}
	if err := r.runs.UpdatePipelineRun(ctx, run); err != nil {
		observability.WithRun(run.ID.String()).Warn("failed to update pipeline run", "error", err)
	}
}

// process fans the tickers out to the worker pool. Results are indexed by the
// ticker's position so output order does not depend on scheduling.
func (r *Runner) process(ctx context.Context, runID string, tickers []string, start, end time.Time, mc *macro.Context) ([][]models.FeatureRecord, []models.TickerOutcome) {
	records := make([][]models.FeatureRecord, len(tickers))
	outcomes := make([]models.TickerOutcome, len(tickers))
	for i, t := range tickers {
		outcomes[i] = models.TickerOutcome{Ticker: t, State: models.TickerStatePending}
	}

	provider := r.provider
	if r.pacer != nil {
		provider = pace(provider, r.pacer)
	}

	jobs := make(chan int)
	go func() {
		defer close(jobs)
		for i := range tickers {
			if i > 0 && r.batchSize > 0 && i%r.batchSize == 0 {
				observability.Debug("batch pause", "run_id", runID, "dispatched", i, "pause", r.batchPause)
				if err := sleep(ctx, r.batchPause); err != nil {
					return
				}
			}
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				records[i], outcomes[i] = r.processTicker(ctx, provider, runID, tickers[i], start, end, mc)
			}
		}()
	}
	wg.Wait()

	// tickers never dispatched because the run was cancelled
	for i, o := range outcomes {
		if o.State == models.TickerStatePending {
			outcomes[i] = newTickerRun(o.Ticker, runID).fail(fmt.Errorf("not started: %w", context.Cause(ctx)))
		}
	}
	return records, outcomes
}

func (r *Runner) processTicker(ctx context.Context, provider services.SeriesProvider, runID, ticker string, start, end time.Time, mc *macro.Context) ([]models.FeatureRecord, models.TickerOutcome) {
	tr := newTickerRun(ticker, runID)

	if err := tr.transition(models.TickerStateFetching); err != nil {
		return nil, tr.fail(err)
	}
	series, err := provider.FetchSeries(ctx, ticker, start, end)
	if err != nil {
		return nil, tr.fail(fmt.Errorf("fetching series: %w", err))
	}
	if series.Len() == 0 {
		return nil, tr.fail(fmt.Errorf("no observations: %w", features.ErrInsufficientHistory))
	}

	if err := tr.transition(models.TickerStateComputing); err != nil {
		return nil, tr.fail(err)
	}
	bundles := indicators.Compute(series)
	recs, err := r.builder.Build(series, bundles, mc)
	if err != nil {
		return nil, tr.fail(fmt.Errorf("building records: %w", err))
	}

	if r.store != nil && len(recs) > 0 {
		if _, err := r.store.UpsertFeatureRecords(ctx, recs); err != nil {
			return nil, tr.fail(fmt.Errorf("storing records: %w", err))
		}
	}

	metrics := observability.GetMetrics()
	metrics.RecordRecords(ticker, len(recs))
	for _, rec := range recs {
		metrics.RecordLabel(string(rec.Label))
	}

	observability.WithTicker(ticker).Info("ticker processed",
		"run_id", runID,
		"observations", series.Len(),
		"records", len(recs))
	return recs, tr.done(len(recs))
}

// normalizeTickers trims and drops blanks and duplicates, keeping first occurrence order
func normalizeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func currencies(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, macro.CurrencyFromTicker(t))
	}
	return out
}
