package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"currency-features/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "features.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestSQLiteStore_UpsertAndGet(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	rec := testRecord("EUR=X", 4, 1.0825, 0.25, 1_000_000)
	if err := store.Health(ctx); err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if _, err := store.UpsertFeatureRecords(ctx, []models.FeatureRecord{rec}); err != nil {
		t.Fatalf("UpsertFeatureRecords failed: %v", err)
	}

	got, err := store.GetFeatureRecord(ctx, "EUR=X", rec.Date.Add(10*time.Hour))
	if err != nil {
		t.Fatalf("GetFeatureRecord failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetFeatureRecord returned nil")
	}
	if !got.Equal(rec) {
		t.Errorf("stored record differs:\n got %+v\nwant %+v", *got, rec)
	}
	if got.MACDSignal.Valid {
		t.Error("null MACD signal came back valid")
	}

	rec.Label = models.LabelSell
	rec.Close = decimal.RequireFromString("1.09")
	if _, err := store.UpsertFeatureRecords(ctx, []models.FeatureRecord{rec}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	all, err := store.ListFeatureRecords(ctx, FeatureQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record after re-upsert, got %d", len(all))
	}
	if all[0].Label != models.LabelSell || !all[0].Close.Equal(decimal.RequireFromString("1.09")) {
		t.Errorf("upsert did not replace the row: %+v", all[0])
	}
}

func TestSQLiteStore_GetFeatureRecord_NotFound(t *testing.T) {
	store := newTestSQLite(t)

	rec, err := store.GetFeatureRecord(context.Background(), "EUR=X", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Error("expected nil record")
	}
}

func TestSQLiteStore_ListFeatureRecords(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	records := []models.FeatureRecord{
		testRecord("GBP=X", 6, 1.27, 0.1, 10),
		testRecord("EUR=X", 5, 1.08, 0.2, 10),
		testRecord("EUR=X", 4, 1.07, 0.3, 10),
		testRecord("EUR=X", 7, 1.09, 0.4, 10),
	}
	if _, err := store.UpsertFeatureRecords(ctx, records); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		query FeatureQuery
		want  []string
	}{
		{"all ordered by ticker then date", FeatureQuery{}, []string{"EUR=X|2024-03-04", "EUR=X|2024-03-05", "EUR=X|2024-03-07", "GBP=X|2024-03-06"}},
		{"ticker filter", FeatureQuery{Ticker: "GBP=X"}, []string{"GBP=X|2024-03-06"}},
		{"date range", FeatureQuery{
			Start: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
		}, []string{"EUR=X|2024-03-05", "GBP=X|2024-03-06"}},
		{"limit", FeatureQuery{Limit: 2}, []string{"EUR=X|2024-03-04", "EUR=X|2024-03-05"}},
		{"latest keeps newest ascending", FeatureQuery{Ticker: "EUR=X", Limit: 2, Latest: true}, []string{"EUR=X|2024-03-05", "EUR=X|2024-03-07"}},
		{"before is exclusive", FeatureQuery{
			Ticker: "EUR=X",
			Before: time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
		}, []string{"EUR=X|2024-03-04", "EUR=X|2024-03-05"}},
		{"latest before date", FeatureQuery{
			Ticker: "EUR=X",
			Before: time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
			Limit:  1,
			Latest: true,
		}, []string{"EUR=X|2024-03-05"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListFeatureRecords(ctx, tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.want))
			}
			for i, r := range got {
				if r.Key() != tt.want[i] {
					t.Errorf("record %d = %s, want %s", i, r.Key(), tt.want[i])
				}
			}
		})
	}
}

func TestSQLiteStore_Latest(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	if _, err := store.UpsertFeatureRecords(ctx, []models.FeatureRecord{
		testRecord("EUR=X", 4, 1.07, 0.1, 10),
		testRecord("EUR=X", 8, 1.08, 0.1, 10),
		testRecord("JPY=X", 6, 150.2, 0.1, 10),
	}); err != nil {
		t.Fatal(err)
	}

	latest, err := store.LatestFeatureRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"EUR=X|2024-03-08", "JPY=X|2024-03-06"}
	if len(latest) != len(want) {
		t.Fatalf("got %d records, want %d", len(latest), len(want))
	}
	for i, r := range latest {
		if r.Key() != want[i] {
			t.Errorf("latest[%d] = %s, want %s", i, r.Key(), want[i])
		}
	}
}

func TestSQLiteStore_MarketSummary(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	empty, err := store.MarketSummary(ctx, time.Time{})
	if err != nil || empty != nil {
		t.Fatalf("empty store summary = %v, %v", empty, err)
	}

	records := []models.FeatureRecord{
		testRecord("EUR=X", 5, 1.08, 0.4, 300),
		testRecord("GBP=X", 5, 1.27, 1.2, 100),
		testRecord("JPY=X", 5, 150.1, -0.8, 900),
		testRecord("CHF=X", 5, 0.88, -0.1, 50),
		testRecord("CAD=X", 5, 1.35, 0, 20),
		testRecord("EUR=X", 4, 1.07, 9.9, 99999),
	}
	if _, err := store.UpsertFeatureRecords(ctx, records); err != nil {
		t.Fatal(err)
	}

	summary, err := store.MarketSummary(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Date.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("summary date = %v, want latest date", summary.Date)
	}

	tickers := func(rs []models.FeatureRecord) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.Ticker
		}
		return out
	}
	check := func(name string, got, want []string) {
		t.Helper()
		if len(got) != len(want) {
			t.Errorf("%s = %v, want %v", name, got, want)
			return
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s = %v, want %v", name, got, want)
				return
			}
		}
	}
	check("gainers", tickers(summary.Gainers), []string{"GBP=X", "EUR=X"})
	check("losers", tickers(summary.Losers), []string{"JPY=X", "CHF=X"})
	check("most active", tickers(summary.MostActive), []string{"JPY=X", "EUR=X", "GBP=X", "CHF=X", "CAD=X"})

	earlier, err := store.MarketSummary(ctx, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	check("gainers on March 4", tickers(earlier.Gainers), []string{"EUR=X"})
}

func TestSQLiteStore_PipelineRuns(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	first := models.NewPipelineRun(models.RunTriggerScheduled, []string{"EUR=X", "GBP=X"}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), &end)
	if err := store.CreatePipelineRun(ctx, first); err != nil {
		t.Fatalf("CreatePipelineRun failed: %v", err)
	}
	first.Complete([]models.TickerOutcome{
		{Ticker: "EUR=X", State: models.TickerStateDone, Records: 12},
		{Ticker: "GBP=X", State: models.TickerStateFailed, Error: "fetching series: not found"},
	})
	if err := store.UpdatePipelineRun(ctx, first); err != nil {
		t.Fatalf("UpdatePipelineRun failed: %v", err)
	}

	second := models.NewPipelineRun(models.RunTriggerAPI, []string{"JPY=X"}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	second.StartedAt = first.StartedAt.Add(time.Minute)
	if err := store.CreatePipelineRun(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetPipelineRun(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetPipelineRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetPipelineRun returned nil")
	}
	if got.Status != models.PipelineRunStatusCompleted || got.RecordsTotal != 12 {
		t.Errorf("unexpected run %+v", got)
	}
	if got.EndDate == nil || !got.EndDate.Equal(end) {
		t.Errorf("EndDate = %v, want %v", got.EndDate, end)
	}
	if len(got.Tickers) != 2 || got.CompletedAt == nil {
		t.Errorf("unexpected tickers %v or completion %v", got.Tickers, got.CompletedAt)
	}
	if failed := got.FailedTickers(); len(failed) != 1 || failed[0] != "GBP=X" {
		t.Errorf("FailedTickers() = %v", failed)
	}

	runs, err := store.GetPipelineRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != second.ID {
		t.Errorf("expected newest run first, got %d runs", len(runs))
	}
	if runs[0].Status != models.PipelineRunStatusRunning {
		t.Errorf("unfinished run status = %s", runs[0].Status)
	}

	missing, err := store.GetPipelineRun(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Errorf("GetPipelineRun(unknown) = %v, %v", missing, err)
	}
}
