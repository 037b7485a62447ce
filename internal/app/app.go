package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"currency-features/config"
	"currency-features/features"
	"currency-features/models"
	"currency-features/observability"
	"currency-features/pipeline"
	"currency-features/repository"

	"github.com/google/uuid"
)

var (
	ErrNoStore       = errors.New("database not initialized")
	ErrNoPipeline    = errors.New("pipeline not configured")
	ErrRunInProgress = pipeline.ErrRunInProgress
)

// StoreInterface defines the storage operations needed by App
type StoreInterface interface {
	Close()
	Health(ctx context.Context) error
	UpsertFeatureRecords(ctx context.Context, records []models.FeatureRecord) (int, error)
	ListFeatureRecords(ctx context.Context, q repository.FeatureQuery) ([]models.FeatureRecord, error)
	GetFeatureRecord(ctx context.Context, ticker string, date time.Time) (*models.FeatureRecord, error)
	LatestFeatureRecords(ctx context.Context) ([]models.FeatureRecord, error)
	MarketSummary(ctx context.Context, date time.Time) (*models.MarketSummary, error)
	GetPipelineRun(ctx context.Context, id uuid.UUID) (*models.PipelineRun, error)
	GetPipelineRuns(ctx context.Context, limit int) ([]models.PipelineRun, error)
}

// PipelineInterface defines the pipeline operations needed by App
type PipelineInterface interface {
	Start(ctx context.Context, trigger models.RunTrigger, tickers []string, start time.Time, end *time.Time) (<-chan pipeline.Outcome, error)
	Running() bool
}

// ScheduleInterface reports when the next scheduled run fires
type ScheduleInterface interface {
	Next() time.Time
}

// App struct holds application dependencies using interfaces for testability
type App struct {
	ctx      context.Context
	cfg      *config.Config
	store    StoreInterface
	pipeline PipelineInterface
	schedule ScheduleInterface
	now      func() time.Time
}

// New creates a new App. store and runner may be nil; the operations that need
// them then return ErrNoStore or ErrNoPipeline.
func New(cfg *config.Config, store StoreInterface, runner PipelineInterface) *App {
	return &App{
		ctx:      context.Background(),
		cfg:      cfg,
		store:    store,
		pipeline: runner,
		now:      time.Now,
	}
}

// Startup is called when the app starts
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
}

// Shutdown is called when the app is closing
func (a *App) Shutdown(ctx context.Context) {
	if a.store != nil {
		a.store.Close()
	}
}

// SetSchedule attaches the scheduler so its next run can be reported
func (a *App) SetSchedule(s ScheduleInterface) {
	a.schedule = s
}

// Store returns the store for API handlers
func (a *App) Store() StoreInterface {
	return a.store
}

// PipelineRunning reports whether a run is in progress
func (a *App) PipelineRunning() bool {
	return a.pipeline != nil && a.pipeline.Running()
}

// NextScheduledRun returns the next scheduled run, or nil when no schedule is attached
func (a *App) NextScheduledRun() *time.Time {
	if a.schedule == nil {
		return nil
	}
	next := a.schedule.Next()
	if next.IsZero() {
		return nil
	}
	return &next
}

// GetFeatures returns feature records for ticker in [start, end]. An empty ticker
// matches all tickers and zero dates leave that side open.
func (a *App) GetFeatures(ticker string, start, end time.Time, limit int) ([]models.FeatureRecord, error) {
	if a.store == nil {
		return nil, ErrNoStore
	}
	return a.store.ListFeatureRecords(a.ctx, repository.FeatureQuery{
		Ticker: ticker,
		Start:  start,
		End:    end,
		Limit:  limit,
	})
}

// GetLatestFeatures returns the most recent record of every ticker
func (a *App) GetLatestFeatures() ([]models.FeatureRecord, error) {
	if a.store == nil {
		return nil, ErrNoStore
	}
	return a.store.LatestFeatureRecords(a.ctx)
}

// GetMarketSummary returns the top movers on date, or on the latest stored date when date is zero
func (a *App) GetMarketSummary(date time.Time) (*models.MarketSummary, error) {
	if a.store == nil {
		return nil, ErrNoStore
	}
	return a.store.MarketSummary(a.ctx, date)
}

// GetTechnicalAnalysis returns the momentum view of one record, or nil when it does not exist
func (a *App) GetTechnicalAnalysis(ticker string, date time.Time) (*models.TechnicalAnalysis, error) {
	if a.store == nil {
		return nil, ErrNoStore
	}
	rec, err := a.store.GetFeatureRecord(a.ctx, ticker, date)
	if err != nil || rec == nil {
		return nil, err
	}
	ta := rec.Technical()
	return &ta, nil
}

// FeatureWindow is a model input window together with its min-max scaled rows
type FeatureWindow struct {
	features.Window
	Scaled   [][]float64 `json:"scaled"`
	ScaleMin float64     `json:"scale_min"`
	ScaleMax float64     `json:"scale_max"`
}

// GetFeatureWindow builds the size most recent records of ticker strictly before date.
// A zero date uses every stored record.
func (a *App) GetFeatureWindow(ticker string, date time.Time, size int, variant features.Variant) (*FeatureWindow, error) {
	if a.store == nil {
		return nil, ErrNoStore
	}
	records, err := a.store.ListFeatureRecords(a.ctx, repository.FeatureQuery{
		Ticker: ticker,
		Before: date,
		Limit:  features.RecordsNeeded(size, variant),
		Latest: true,
	})
	if err != nil {
		return nil, err
	}
	w, err := features.BuildWindow(records, size, variant)
	if err != nil {
		return nil, err
	}
	scaler, err := features.FitWindowCloses(w)
	if err != nil {
		return nil, err
	}
	return &FeatureWindow{
		Window:   w,
		Scaled:   scaler.Transform(w.Rows),
		ScaleMin: scaler.Min,
		ScaleMax: scaler.Max,
	}, nil
}

// ImportFeatures upserts externally produced records
func (a *App) ImportFeatures(records []models.FeatureRecord) (int, error) {
	if a.store == nil {
		return 0, ErrNoStore
	}
	return a.store.UpsertFeatureRecords(a.ctx, records)
}

// RunRequest selects what a triggered run covers. Empty fields use the configured universe
// and lookback.
type RunRequest struct {
	Tickers   []string   `json:"tickers"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// TriggerPipelineRun claims the pipeline and starts a run in the background, returning
// the resolved request. It fails with ErrRunInProgress when a run is already going.
func (a *App) TriggerPipelineRun(req RunRequest) (RunRequest, error) {
	if a.pipeline == nil {
		return req, ErrNoPipeline
	}
	if len(req.Tickers) == 0 && a.cfg.Universe != nil {
		req.Tickers = a.cfg.Universe.Tickers
	}
	if req.StartDate == nil {
		start := models.TruncateDay(a.now()).AddDate(0, 0, -a.cfg.Pipeline.LookbackDays)
		req.StartDate = &start
	}
	if req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return req, fmt.Errorf("end_date %s is before start_date %s",
			req.EndDate.Format(models.DateLayout), req.StartDate.Format(models.DateLayout))
	}

	done, err := a.pipeline.Start(a.ctx, models.RunTriggerAPI, req.Tickers, *req.StartDate, req.EndDate)
	if err != nil {
		return req, err
	}
	go func() {
		out := <-done
		if out.Err != nil {
			observability.Error("api pipeline run failed", "error", out.Err)
			return
		}
		observability.Info("api pipeline run finished",
			"run_id", out.Result.Run.ID,
			"records", out.Result.Run.RecordsTotal)
	}()
	return req, nil
}

// GetPipelineRuns returns recent pipeline runs
func (a *App) GetPipelineRuns(limit int) ([]models.PipelineRun, error) {
	if a.store == nil {
		return nil, ErrNoStore
	}
	return a.store.GetPipelineRuns(a.ctx, limit)
}

// GetPipelineRun returns one run, or nil when it does not exist
func (a *App) GetPipelineRun(id string) (*models.PipelineRun, error) {
	if a.store == nil {
		return nil, ErrNoStore
	}
	parsed, err := ParseUUID(id)
	if err != nil {
		return nil, err
	}
	return a.store.GetPipelineRun(a.ctx, parsed)
}

// ParseUUID parses a string UUID
func ParseUUID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid UUID: %w", err)
	}
	return parsed, nil
}
