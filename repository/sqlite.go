package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"currency-features/models"
	"currency-features/observability"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file feature store for local runs
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and runs migrations
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	observability.Info("sqlite store opened", "path", path)
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", strings.TrimSpace(stmt)[:40], err)
		}
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		observability.Warn("failed to close sqlite store", "error", err)
	}
}

// Health checks the database
func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertFeatureRecords inserts or replaces records keyed by (date, ticker)
func (s *SQLiteStore) UpsertFeatureRecords(ctx context.Context, records []models.FeatureRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveDB("upsert", featureTable)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL(false))
	if err != nil {
		observability.GetMetrics().RecordDBError("upsert", featureTable)
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, recordArgs(rec, rec.Date.Format(models.DateLayout))...); err != nil {
			observability.GetMetrics().RecordDBError("upsert", featureTable)
			return 0, fmt.Errorf("failed to upsert feature record %s: %w", rec.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit feature records: %w", err)
	}
	return len(records), nil
}

// ListFeatureRecords returns records ordered by ticker then date
func (s *SQLiteStore) ListFeatureRecords(ctx context.Context, q FeatureQuery) ([]models.FeatureRecord, error) {
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveDB("list", featureTable)

	query, args := listSQL(q, false, func(t time.Time) any { return t.UTC().Format(models.DateLayout) })
	return s.queryRecords(ctx, "list", query, args...)
}

// GetFeatureRecord returns the record for (ticker, date), or nil when absent
func (s *SQLiteStore) GetFeatureRecord(ctx context.Context, ticker string, date time.Time) (*models.FeatureRecord, error) {
	records, err := s.queryRecords(ctx, "get",
		"SELECT "+selectList("")+" FROM feature_records WHERE ticker = ? AND date = ?",
		ticker, date.UTC().Format(models.DateLayout))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// LatestFeatureRecords returns the most recent record of every ticker
func (s *SQLiteStore) LatestFeatureRecords(ctx context.Context) ([]models.FeatureRecord, error) {
	return s.queryRecords(ctx, "latest", `
		SELECT `+selectList("f")+`
		FROM feature_records f
		JOIN (SELECT ticker, MAX(date) AS date FROM feature_records GROUP BY ticker) l
			ON f.ticker = l.ticker AND f.date = l.date
		ORDER BY f.ticker
	`)
}

// MarketSummary returns the top movers on date. A zero date selects the latest
// date present; an empty table yields nil.
func (s *SQLiteStore) MarketSummary(ctx context.Context, date time.Time) (*models.MarketSummary, error) {
	day := ""
	if date.IsZero() {
		var latest sql.NullString
		if err := s.db.QueryRowContext(ctx, "SELECT MAX(date) FROM feature_records").Scan(&latest); err != nil {
			return nil, fmt.Errorf("failed to query latest date: %w", err)
		}
		if !latest.Valid {
			return nil, nil
		}
		day = latest.String
	} else {
		day = date.UTC().Format(models.DateLayout)
	}
	parsed, err := time.Parse(models.DateLayout, day)
	if err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", day, err)
	}

	base := "SELECT " + selectList("") + " FROM feature_records WHERE date = ?"
	summary := &models.MarketSummary{Date: parsed}
	if summary.Gainers, err = s.queryRecords(ctx, "summary", base+" AND percent_change > 0 ORDER BY percent_change DESC, ticker LIMIT ?", day, models.SummaryLimit); err != nil {
		return nil, err
	}
	if summary.Losers, err = s.queryRecords(ctx, "summary", base+" AND percent_change < 0 ORDER BY percent_change ASC, ticker LIMIT ?", day, models.SummaryLimit); err != nil {
		return nil, err
	}
	if summary.MostActive, err = s.queryRecords(ctx, "summary", base+" ORDER BY volume DESC, ticker LIMIT ?", day, models.SummaryLimit); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *SQLiteStore) queryRecords(ctx context.Context, op, query string, args ...any) ([]models.FeatureRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		observability.GetMetrics().RecordDBError(op, featureTable)
		return nil, fmt.Errorf("failed to query feature records: %w", err)
	}
	defer rows.Close()

	records := []models.FeatureRecord{}
	for rows.Next() {
		var rec models.FeatureRecord
		var day string
		if err := rows.Scan(scanTargets(&rec, &day)...); err != nil {
			return nil, fmt.Errorf("failed to scan feature record: %w", err)
		}
		if rec.Date, err = time.Parse(models.DateLayout, day); err != nil {
			return nil, fmt.Errorf("invalid stored date %q: %w", day, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feature records: %w", err)
	}
	return records, nil
}

// CreatePipelineRun creates a new pipeline run record
func (s *SQLiteStore) CreatePipelineRun(ctx context.Context, run *models.PipelineRun) error {
	tickers, _ := json.Marshal(run.Tickers)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (id, run_trigger, status, tickers, start_date, end_date, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID.String(), string(run.Trigger), string(run.Status), string(tickers),
		run.StartDate.Format(models.DateLayout), nullableDate(run.EndDate), run.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to create pipeline run: %w", err)
	}
	return nil
}

// UpdatePipelineRun stores the final state of a run
func (s *SQLiteStore) UpdatePipelineRun(ctx context.Context, run *models.PipelineRun) error {
	outcomes, _ := json.Marshal(run.Outcomes)
	var completed any
	if run.CompletedAt != nil {
		completed = run.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET status = ?, outcomes = ?, records_total = ?, error_message = ?, duration_ms = ?, completed_at = ?
		WHERE id = ?
	`, string(run.Status), string(outcomes), run.RecordsTotal, run.ErrorMessage, run.DurationMs, completed, run.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update pipeline run: %w", err)
	}
	return nil
}

const sqliteRunColumns = `id, run_trigger, status, tickers, start_date, end_date, outcomes, records_total, error_message, duration_ms, started_at, completed_at`

// GetPipelineRun returns a single run by ID, or nil when absent
func (s *SQLiteStore) GetPipelineRun(ctx context.Context, id uuid.UUID) (*models.PipelineRun, error) {
	run, err := scanSQLiteRun(s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM pipeline_runs WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline run: %w", err)
	}
	return run, nil
}

// GetPipelineRuns returns the most recent runs first
func (s *SQLiteStore) GetPipelineRuns(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteRunColumns+` FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline runs: %w", err)
	}
	defer rows.Close()

	runs := []models.PipelineRun{}
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row rowScanner) (*models.PipelineRun, error) {
	var (
		run                                  models.PipelineRun
		id, trigger, status, tickers         string
		startDate, startedAt                 string
		endDate, outcomes, errMsg, completed sql.NullString
		durationMs                           sql.NullInt64
	)
	err := row.Scan(&id, &trigger, &status, &tickers, &startDate, &endDate, &outcomes,
		&run.RecordsTotal, &errMsg, &durationMs, &startedAt, &completed)
	if err != nil {
		return nil, err
	}

	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	run.Trigger = models.RunTrigger(trigger)
	run.Status = models.PipelineRunStatus(status)
	if err := json.Unmarshal([]byte(tickers), &run.Tickers); err != nil {
		return nil, fmt.Errorf("invalid tickers: %w", err)
	}
	if run.StartDate, err = time.Parse(models.DateLayout, startDate); err != nil {
		return nil, err
	}
	if endDate.Valid {
		end, err := time.Parse(models.DateLayout, endDate.String)
		if err != nil {
			return nil, err
		}
		run.EndDate = &end
	}
	if outcomes.Valid {
		if err := json.Unmarshal([]byte(outcomes.String), &run.Outcomes); err != nil {
			observability.Warn("failed to decode pipeline run outcomes", "run_id", id, "error", err)
		}
	}
	run.ErrorMessage = errMsg.String
	run.DurationMs = int(durationMs.Int64)
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, err
	}
	if completed.Valid {
		at, err := time.Parse(time.RFC3339Nano, completed.String)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = &at
	}
	return &run, nil
}

func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(models.DateLayout)
}
