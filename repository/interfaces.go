package repository

import (
	"context"
	"time"

	"currency-features/models"

	"github.com/google/uuid"
)

// FeatureQuery filters feature records. Zero fields are not applied.
type FeatureQuery struct {
	Ticker string
	Start  time.Time
	End    time.Time // inclusive
	Before time.Time // exclusive
	Limit  int
	// Latest keeps the Limit newest rows instead of the oldest; results stay ascending
	Latest bool
}

// FeatureStore is the persistence contract shared by the Postgres and SQLite stores
type FeatureStore interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error

	// Feature records, unique on (date, ticker)
	UpsertFeatureRecords(ctx context.Context, records []models.FeatureRecord) (int, error)
	ListFeatureRecords(ctx context.Context, q FeatureQuery) ([]models.FeatureRecord, error)
	GetFeatureRecord(ctx context.Context, ticker string, date time.Time) (*models.FeatureRecord, error)
	LatestFeatureRecords(ctx context.Context) ([]models.FeatureRecord, error)
	MarketSummary(ctx context.Context, date time.Time) (*models.MarketSummary, error)

	// Pipeline runs
	CreatePipelineRun(ctx context.Context, run *models.PipelineRun) error
	UpdatePipelineRun(ctx context.Context, run *models.PipelineRun) error
	GetPipelineRun(ctx context.Context, id uuid.UUID) (*models.PipelineRun, error)
	GetPipelineRuns(ctx context.Context, limit int) ([]models.PipelineRun, error)
}

// Compile-time interface verification
var (
	_ FeatureStore = (*Repository)(nil)
	_ FeatureStore = (*SQLiteStore)(nil)
)
