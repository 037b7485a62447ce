package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"currency-features/config"
	"currency-features/export"
	"currency-features/internal/app"
	"currency-features/models"
	"currency-features/pipeline"
	"currency-features/repository"

	"github.com/shopspring/decimal"
)

// testConfig returns a test configuration
func testConfig() *config.Config {
	return config.NewTestConfig()
}

// testStore opens a SQLite store in a temp dir
func testStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	store, err := repository.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

// testRouter creates a Chi router with test config for testing
func testRouter(application *app.App) http.Handler {
	cfg := testConfig()
	return NewRouter(NewHandler(application, cfg), cfg)
}

// seededRouter returns a router over a store holding 30 days of EUR=X and GBP=X
func seededRouter(t *testing.T) http.Handler {
	t.Helper()
	store := testStore(t)
	records := append(dailyRecords("EUR=X", 30, 1.08, 0.1), dailyRecords("GBP=X", 30, 1.26, -0.2)...)
	if _, err := store.UpsertFeatureRecords(context.Background(), records); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
	return testRouter(app.New(testConfig(), store, nil))
}

// dailyRecords returns n consecutive daily records starting Monday 2024-01-01
func dailyRecords(ticker string, n int, base, pct float64) []models.FeatureRecord {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.FeatureRecord, n)
	for i := range out {
		c := base + float64(i)*0.01
		out[i] = models.FeatureRecord{
			Date:          start.AddDate(0, 0, i),
			Ticker:        ticker,
			Open:          decimal.NewFromFloat(c - 0.005),
			High:          decimal.NewFromFloat(c + 0.01),
			Low:           decimal.NewFromFloat(c - 0.01),
			Close:         decimal.NewFromFloat(c),
			AdjClose:      decimal.NewFromFloat(c),
			Volume:        decimal.NewFromInt(1_000_000),
			RSI:           decimal.NewNullDecimal(decimal.NewFromFloat(48.5)),
			MACD:          decimal.NewNullDecimal(decimal.NewFromFloat(0.0012)),
			PercentChange: decimal.NewNullDecimal(decimal.NewFromFloat(pct)),
			Label:         models.LabelSell,
		}
	}
	return out
}

type fakePipeline struct {
	mu      sync.Mutex
	running bool
	tickers []string
}

func (f *fakePipeline) Start(_ context.Context, trigger models.RunTrigger, tickers []string, start time.Time, end *time.Time) (<-chan pipeline.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil, pipeline.ErrRunInProgress
	}
	f.tickers = tickers
	run := models.NewPipelineRun(trigger, tickers, start, end)
	run.Complete(nil)
	out := make(chan pipeline.Outcome, 1)
	out <- pipeline.Outcome{Result: &pipeline.Result{Run: run}}
	close(out)
	return out, nil
}

func (f *fakePipeline) Running() bool {
	return f.running
}

func serve(router http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeRows(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var rows []map[string]interface{}
	dec := json.NewDecoder(w.Body)
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return rows
}

func TestHandler_Health(t *testing.T) {
	t.Run("without database", func(t *testing.T) {
		w := serve(testRouter(app.New(testConfig(), nil, nil)), http.MethodGet, "/api/health", "")

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["status"] != "ok" {
			t.Errorf("expected status ok, got %v", response["status"])
		}
		if db := response["services"].(map[string]interface{})["database"]; db != "not_configured" {
			t.Errorf("database = %v, want not_configured", db)
		}
	})

	t.Run("with database", func(t *testing.T) {
		w := serve(testRouter(app.New(testConfig(), testStore(t), nil)), http.MethodGet, "/api/health", "")

		var response map[string]interface{}
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if db := response["services"].(map[string]interface{})["database"]; db != "connected" {
			t.Errorf("database = %v, want connected", db)
		}
	})
}

func TestHandler_WithoutStore(t *testing.T) {
	router := testRouter(app.New(testConfig(), nil, nil))

	paths := []string{
		"/api/features",
		"/api/features/latest",
		"/api/features/summary",
		"/api/features/EUR=X/2024-01-02/technical",
		"/api/features/export.csv",
		"/api/features/window?ticker=EUR=X",
		"/api/pipeline/runs",
	}
	for _, p := range paths {
		if w := serve(router, http.MethodGet, p, ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected status 503, got %d", p, w.Code)
		}
	}
}

func TestHandler_GetFeatures(t *testing.T) {
	router := seededRouter(t)

	t.Run("ticker and range", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/api/features?ticker=eur=x&start_date=2024-01-05&end_date=2024-01-09", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		rows := decodeRows(t, w)
		if len(rows) != 5 {
			t.Fatalf("got %d rows, want 5", len(rows))
		}
		if rows[0]["date"] != "2024-01-05" || rows[0]["ticker"] != "EUR=X" {
			t.Errorf("first row = %v %v", rows[0]["date"], rows[0]["ticker"])
		}
		if _, ok := rows[0]["close"].(json.Number); !ok {
			t.Errorf("close should be a bare number, got %#v", rows[0]["close"])
		}
		if rows[0]["macd_hist"] != nil {
			t.Errorf("macd_hist = %#v, want null", rows[0]["macd_hist"])
		}
	})

	t.Run("limit", func(t *testing.T) {
		w := serve(router, http.MethodGet, "/api/features?limit=7", "")
		if rows := decodeRows(t, w); len(rows) != 7 {
			t.Errorf("got %d rows, want 7", len(rows))
		}
	})

	tests := []struct {
		name  string
		query string
	}{
		{"bad start date", "?start_date=01/05/2024"},
		{"bad end date", "?end_date=yesterday"},
		{"inverted range", "?start_date=2024-02-01&end_date=2024-01-01"},
		{"bad ticker", "?ticker=EUR%20X"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := serve(router, http.MethodGet, "/api/features"+tt.query, ""); w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestHandler_LatestAndSummary(t *testing.T) {
	router := seededRouter(t)

	w := serve(router, http.MethodGet, "/api/features/latest", "")
	rows := decodeRows(t, w)
	if len(rows) != 2 {
		t.Fatalf("got %d latest rows, want 2", len(rows))
	}
	for _, r := range rows {
		if r["date"] != "2024-01-30" {
			t.Errorf("latest date = %v, want 2024-01-30", r["date"])
		}
	}

	w = serve(router, http.MethodGet, "/api/features/summary?date=2024-01-15", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var summary struct {
		Date       string                   `json:"date"`
		Gainers    []map[string]interface{} `json:"gainers"`
		Losers     []map[string]interface{} `json:"losers"`
		MostActive []map[string]interface{} `json:"most_active"`
	}
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatal(err)
	}
	if summary.Date != "2024-01-15" {
		t.Errorf("date = %s", summary.Date)
	}
	if len(summary.Gainers) != 1 || summary.Gainers[0]["ticker"] != "EUR=X" {
		t.Errorf("gainers = %v", summary.Gainers)
	}
	if len(summary.Losers) != 1 || summary.Losers[0]["ticker"] != "GBP=X" {
		t.Errorf("losers = %v", summary.Losers)
	}
	if len(summary.MostActive) != 2 {
		t.Errorf("most active = %d rows, want 2", len(summary.MostActive))
	}

	if w := serve(router, http.MethodGet, "/api/features/summary?date=15-01-2024", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for bad date, got %d", w.Code)
	}
}

func TestHandler_TechnicalAnalysis(t *testing.T) {
	router := seededRouter(t)

	w := serve(router, http.MethodGet, "/api/features/GBP=X/2024-01-10/technical", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var ta models.TechnicalAnalysis
	if err := json.NewDecoder(w.Body).Decode(&ta); err != nil {
		t.Fatal(err)
	}
	if ta.Ticker != "GBP=X" || ta.Recommendation != models.LabelSell {
		t.Errorf("unexpected analysis %+v", ta)
	}
	if !ta.RSI.Valid || !ta.RSI.Decimal.Equal(decimal.NewFromFloat(48.5)) {
		t.Errorf("rsi = %v", ta.RSI)
	}

	tests := []struct {
		path string
		code int
	}{
		{"/api/features/GBP=X/2025-01-10/technical", http.StatusNotFound},
		{"/api/features/GBP=X/tomorrow/technical", http.StatusBadRequest},
		{"/api/features/GBP%20X/2024-01-10/technical", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := serve(router, http.MethodGet, tt.path, ""); w.Code != tt.code {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.code, w.Code)
		}
	}
}

func TestHandler_ExportAndImport(t *testing.T) {
	source := seededRouter(t)

	w := serve(source, http.MethodGet, "/api/features/export.csv?ticker=EUR=X", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %s", ct)
	}
	csvBody := w.Body.String()
	if !strings.HasPrefix(csvBody, strings.Join(export.Columns, ",")+"\n") {
		t.Errorf("missing header: %.80s", csvBody)
	}

	target := testRouter(app.New(testConfig(), testStore(t), nil))
	w = serve(target, http.MethodPost, "/api/features/import", csvBody)
	if w.Code != http.StatusOK {
		t.Fatalf("import: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var imported map[string]int
	json.NewDecoder(w.Body).Decode(&imported)
	if imported["imported"] != 30 {
		t.Errorf("imported = %d, want 30", imported["imported"])
	}

	w = serve(target, http.MethodGet, "/api/features/export.csv", "")
	if w.Body.String() != csvBody {
		t.Error("re-exported CSV differs from the original export")
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := export.WriteJSON(&buf, dailyRecords("CHF=X", 3, 0.88, 0)); err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/features/import", &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		target.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("malformed", func(t *testing.T) {
		if w := serve(target, http.MethodPost, "/api/features/import", "date,ticker\n2024-01-01,EUR=X\n"); w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})
}

func TestHandler_FeatureWindow(t *testing.T) {
	router := seededRouter(t)

	w := serve(router, http.MethodGet, "/api/features/window?ticker=EUR=X&date=2024-01-20&variant=price", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var window app.FeatureWindow
	if err := json.NewDecoder(w.Body).Decode(&window); err != nil {
		t.Fatal(err)
	}
	if window.Size() != 11 || len(window.Scaled) != 11 {
		t.Errorf("window rows = %d, scaled = %d, want 11", window.Size(), len(window.Scaled))
	}
	if len(window.Columns) != 7 || window.Columns[6] != "day_of_week" {
		t.Errorf("columns = %v", window.Columns)
	}

	tests := []struct {
		name  string
		query string
		code  int
	}{
		{"sma long", "?ticker=EUR=X&size=25", http.StatusOK},
		{"missing ticker", "?size=11", http.StatusBadRequest},
		{"bad variant", "?ticker=EUR=X&variant=lstm", http.StatusBadRequest},
		{"bad size", "?ticker=EUR=X&size=-3", http.StatusBadRequest},
		{"too few records", "?ticker=EUR=X&date=2024-01-05", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := serve(router, http.MethodGet, "/api/features/window"+tt.query, ""); w.Code != tt.code {
				t.Errorf("expected status %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandler_RunPipeline(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		router := testRouter(app.New(testConfig(), nil, &fakePipeline{}))
		w := serve(router, http.MethodPost, "/api/pipeline/run", `{"tickers":["eur=x","GBP=X"],"start_date":"2023-01-02"}`)
		if w.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
		}
		var resp map[string]interface{}
		json.NewDecoder(w.Body).Decode(&resp)
		if resp["start_date"] != "2023-01-02" {
			t.Errorf("start_date = %v", resp["start_date"])
		}
		if tickers, _ := resp["tickers"].([]interface{}); len(tickers) != 2 || tickers[0] != "EUR=X" {
			t.Errorf("tickers = %v", resp["tickers"])
		}
	})

	t.Run("empty body uses universe", func(t *testing.T) {
		router := testRouter(app.New(testConfig(), nil, &fakePipeline{}))
		w := serve(router, http.MethodPost, "/api/pipeline/run", "")
		if w.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
		}
	})

	tests := []struct {
		name     string
		pipeline app.PipelineInterface
		body     string
		code     int
	}{
		{"in progress", &fakePipeline{running: true}, "{}", http.StatusConflict},
		{"not configured", nil, "{}", http.StatusServiceUnavailable},
		{"invalid json", &fakePipeline{}, "{", http.StatusBadRequest},
		{"invalid ticker", &fakePipeline{}, `{"tickers":["EUR X"]}`, http.StatusBadRequest},
		{"invalid date", &fakePipeline{}, `{"start_date":"2023/01/02"}`, http.StatusBadRequest},
		{"inverted range", &fakePipeline{}, `{"start_date":"2024-01-02","end_date":"2023-01-02"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := testRouter(app.New(testConfig(), nil, tt.pipeline))
			if w := serve(router, http.MethodPost, "/api/pipeline/run", tt.body); w.Code != tt.code {
				t.Errorf("expected status %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandler_PipelineRuns(t *testing.T) {
	store := testStore(t)
	router := testRouter(app.New(testConfig(), store, nil))

	run := models.NewPipelineRun(models.RunTriggerScheduled, []string{"EUR=X"}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	run.Complete([]models.TickerOutcome{{Ticker: "EUR=X", State: models.TickerStateDone, Records: 12}})
	if err := store.CreatePipelineRun(context.Background(), run); err != nil {
		t.Fatal(err)
	}

	w := serve(router, http.MethodGet, "/api/pipeline/runs?limit=5", "")
	var runs []models.PipelineRun
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Fatalf("runs = %+v", runs)
	}

	w = serve(router, http.MethodGet, "/api/pipeline/runs/"+run.ID.String(), "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	if w := serve(router, http.MethodGet, "/api/pipeline/runs/"+"00000000-0000-0000-0000-000000000001", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
	if w := serve(router, http.MethodGet, "/api/pipeline/runs/abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	router := testRouter(app.New(testConfig(), nil, nil))

	w := serve(router, http.MethodOptions, "/api/features", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestValidateTicker(t *testing.T) {
	h := NewHandler(app.New(testConfig(), nil, nil), testConfig())

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"EUR=X", "EUR=X", false},
		{" gbp=x ", "GBP=X", false},
		{"^GSPC", "^GSPC", false},
		{"BRK.B", "BRK.B", false},
		{"", "", true},
		{"EUR X", "", true},
		{"ABCDEFGHIJKLMNOPQRSTU", "", true},
	}
	for _, tt := range tests {
		got, err := h.ValidateTicker(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTicker(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ValidateTicker(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
