package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"currency-features/models"
	"currency-features/observability"

	"github.com/jackc/pgx/v5"
)

const featureTable = "feature_records"

// UpsertFeatureRecords inserts records, replacing any existing row with the same
// (date, ticker). All rows are written in one transaction.
func (r *Repository) UpsertFeatureRecords(ctx context.Context, records []models.FeatureRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveDB("upsert", featureTable)

	tx, txRepo, err := r.BeginTx(ctx)
	if err != nil {
		observability.GetMetrics().RecordDBError("upsert", featureTable)
		return 0, err
	}
	defer tx.Rollback(ctx)

	sql := upsertSQL(true)
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(sql, recordArgs(rec, rec.Date)...)
	}
	results := txRepo.db.SendBatch(ctx, batch)
	for i := range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			observability.GetMetrics().RecordDBError("upsert", featureTable)
			return 0, fmt.Errorf("failed to upsert feature record %s: %w", records[i].Key(), err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("failed to close upsert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		observability.GetMetrics().RecordDBError("upsert", featureTable)
		return 0, fmt.Errorf("failed to commit feature records: %w", err)
	}
	return len(records), nil
}

// ListFeatureRecords returns records ordered by ticker then date
func (r *Repository) ListFeatureRecords(ctx context.Context, q FeatureQuery) ([]models.FeatureRecord, error) {
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveDB("list", featureTable)

	query, args := listSQL(q, true, func(t time.Time) any { return models.TruncateDay(t) })
	return r.queryRecords(ctx, "list", query, args...)
}

// GetFeatureRecord returns the record for (ticker, date), or nil when absent
func (r *Repository) GetFeatureRecord(ctx context.Context, ticker string, date time.Time) (*models.FeatureRecord, error) {
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveDB("get", featureTable)

	var rec models.FeatureRecord
	err := r.db.QueryRow(ctx,
		"SELECT "+selectList("")+" FROM feature_records WHERE ticker = $1 AND date = $2",
		ticker, models.TruncateDay(date),
	).Scan(scanTargets(&rec, &rec.Date)...)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		observability.GetMetrics().RecordDBError("get", featureTable)
		return nil, fmt.Errorf("failed to query feature record: %w", err)
	}
	rec.Date = models.TruncateDay(rec.Date)
	return &rec, nil
}

// LatestFeatureRecords returns the most recent record of every ticker
func (r *Repository) LatestFeatureRecords(ctx context.Context) ([]models.FeatureRecord, error) {
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveDB("latest", featureTable)

	return r.queryRecords(ctx, "latest", `
		SELECT DISTINCT ON (ticker) `+selectList("")+`
		FROM feature_records
		ORDER BY ticker, date DESC
	`)
}

// MarketSummary returns the top movers on date. A zero date selects the latest
// date present; an empty table yields nil.
func (r *Repository) MarketSummary(ctx context.Context, date time.Time) (*models.MarketSummary, error) {
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveDB("summary", featureTable)

	if date.IsZero() {
		var latest *time.Time
		if err := r.db.QueryRow(ctx, "SELECT MAX(date) FROM feature_records").Scan(&latest); err != nil {
			observability.GetMetrics().RecordDBError("summary", featureTable)
			return nil, fmt.Errorf("failed to query latest date: %w", err)
		}
		if latest == nil {
			return nil, nil
		}
		date = *latest
	}
	date = models.TruncateDay(date)

	base := "SELECT " + selectList("") + " FROM feature_records WHERE date = $1"
	summary := &models.MarketSummary{Date: date}
	var err error
	if summary.Gainers, err = r.queryRecords(ctx, "summary", base+" AND percent_change > 0 ORDER BY percent_change DESC, ticker LIMIT $2", date, models.SummaryLimit); err != nil {
		return nil, err
	}
	if summary.Losers, err = r.queryRecords(ctx, "summary", base+" AND percent_change < 0 ORDER BY percent_change ASC, ticker LIMIT $2", date, models.SummaryLimit); err != nil {
		return nil, err
	}
	if summary.MostActive, err = r.queryRecords(ctx, "summary", base+" ORDER BY volume DESC, ticker LIMIT $2", date, models.SummaryLimit); err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *Repository) queryRecords(ctx context.Context, op, query string, args ...any) ([]models.FeatureRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		observability.GetMetrics().RecordDBError(op, featureTable)
		return nil, fmt.Errorf("failed to query feature records: %w", err)
	}
	defer rows.Close()

	records := []models.FeatureRecord{}
	for rows.Next() {
		var rec models.FeatureRecord
		if err := rows.Scan(scanTargets(&rec, &rec.Date)...); err != nil {
			return nil, fmt.Errorf("failed to scan feature record: %w", err)
		}
		rec.Date = models.TruncateDay(rec.Date)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feature records: %w", err)
	}
	return records, nil
}
