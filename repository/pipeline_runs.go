package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"currency-features/models"
	"currency-features/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const runsTable = "pipeline_runs"

// CreatePipelineRun creates a new pipeline run record
func (r *Repository) CreatePipelineRun(ctx context.Context, run *models.PipelineRun) error {
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveDB("create", runsTable)

	_, err := r.db.Exec(ctx, `
		INSERT INTO pipeline_runs (id, run_trigger, status, tickers, start_date, end_date, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, run.ID, run.Trigger, run.Status, run.Tickers, run.StartDate, run.EndDate, run.StartedAt)

	if err != nil {
		observability.GetMetrics().RecordDBError("create", runsTable)
		return fmt.Errorf("failed to create pipeline run: %w", err)
	}

	return nil
}

// UpdatePipelineRun stores the final state of a run
func (r *Repository) UpdatePipelineRun(ctx context.Context, run *models.PipelineRun) error {
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveDB("update", runsTable)

	outcomes, _ := json.Marshal(run.Outcomes)

	_, err := r.db.Exec(ctx, `
		UPDATE pipeline_runs
		SET status = $2, outcomes = $3, records_total = $4, error_message = $5, duration_ms = $6, completed_at = $7
		WHERE id = $1
	`, run.ID, run.Status, outcomes, run.RecordsTotal, run.ErrorMessage, run.DurationMs, run.CompletedAt)

	if err != nil {
		observability.GetMetrics().RecordDBError("update", runsTable)
		return fmt.Errorf("failed to update pipeline run: %w", err)
	}

	return nil
}

const runColumns = `id, run_trigger, status, tickers, start_date, end_date, outcomes, records_total, error_message, duration_ms, started_at, completed_at`

// GetPipelineRun returns a single run by ID, or nil when absent
func (r *Repository) GetPipelineRun(ctx context.Context, id uuid.UUID) (*models.PipelineRun, error) {
	run, err := scanPipelineRun(r.db.QueryRow(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline run: %w", err)
	}
	return run, nil
}

// GetPipelineRuns returns the most recent runs first
func (r *Repository) GetPipelineRuns(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+runColumns+`
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		observability.GetMetrics().RecordDBError("list", runsTable)
		return nil, fmt.Errorf("failed to query pipeline runs: %w", err)
	}
	defer rows.Close()

	runs := []models.PipelineRun{}
	for rows.Next() {
		run, err := scanPipelineRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

func scanPipelineRun(row pgx.Row) (*models.PipelineRun, error) {
	var run models.PipelineRun
	var outcomes []byte
	var errorMessage *string
	var durationMs *int

	err := row.Scan(&run.ID, &run.Trigger, &run.Status, &run.Tickers, &run.StartDate, &run.EndDate,
		&outcomes, &run.RecordsTotal, &errorMessage, &durationMs, &run.StartedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}

	if errorMessage != nil {
		run.ErrorMessage = *errorMessage
	}
	if durationMs != nil {
		run.DurationMs = *durationMs
	}
	if outcomes != nil {
		if err := json.Unmarshal(outcomes, &run.Outcomes); err != nil {
			observability.Warn("failed to decode pipeline run outcomes", "run_id", run.ID, "error", err)
		}
	}

	return &run, nil
}
