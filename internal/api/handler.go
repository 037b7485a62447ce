package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"currency-features/config"
	"currency-features/export"
	"currency-features/features"
	"currency-features/internal/app"
	"currency-features/models"
	"currency-features/observability"
	"currency-features/services"

	"github.com/go-chi/chi/v5"
)

// maxImportBytes bounds uploaded import bodies
const maxImportBytes = 32 << 20

var tickerPattern = regexp.MustCompile(`^[A-Z0-9=^.\-]+$`)

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg}
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"services": map[string]string{
			"database": "unknown",
		},
		"pipeline_running": h.app.PipelineRunning(),
	}

	if h.app.Store() != nil {
		if err := h.app.Store().Health(r.Context()); err == nil {
			status["services"].(map[string]string)["database"] = "connected"
		} else {
			status["services"].(map[string]string)["database"] = "disconnected"
			status["status"] = "degraded"
		}
	} else {
		status["services"].(map[string]string)["database"] = "not_configured"
	}

	if next := h.app.NextScheduledRun(); next != nil {
		status["next_scheduled_run"] = next
	}

	// Add circuit breaker status
	cbStatus := services.GetGlobalRegistry().Status()
	status["circuit_breakers"] = cbStatus

	for _, cb := range cbStatus {
		if cb.State == "open" {
			status["status"] = "degraded"
			break
		}
	}

	h.jsonResponse(w, status)
}

// HandleGetFeatures returns feature records filtered by ticker and date range
func (h *Handler) HandleGetFeatures(w http.ResponseWriter, r *http.Request) {
	ticker, start, end, err := h.parseFeatureFilter(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.app.GetFeatures(ticker, start, end, h.ParseLimitParam(r, 0))
	if err != nil {
		h.appError(w, err)
		return
	}

	h.jsonResponse(w, export.Rows(records))
}

// HandleGetLatestFeatures returns the most recent record of every ticker
func (h *Handler) HandleGetLatestFeatures(w http.ResponseWriter, r *http.Request) {
	records, err := h.app.GetLatestFeatures()
	if err != nil {
		h.appError(w, err)
		return
	}

	h.jsonResponse(w, export.Rows(records))
}

// HandleGetMarketSummary returns the top gainers, losers and most active tickers of a day
func (h *Handler) HandleGetMarketSummary(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r.URL.Query().Get("date"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := h.app.GetMarketSummary(date)
	if err != nil {
		h.appError(w, err)
		return
	}
	if summary == nil {
		h.jsonResponse(w, map[string]interface{}{"summary": nil})
		return
	}

	h.jsonResponse(w, map[string]interface{}{
		"date":        summary.Date.Format(models.DateLayout),
		"gainers":     export.Rows(summary.Gainers),
		"losers":      export.Rows(summary.Losers),
		"most_active": export.Rows(summary.MostActive),
	})
}

// HandleGetTechnicalAnalysis returns the momentum view of one ticker on one date
func (h *Handler) HandleGetTechnicalAnalysis(w http.ResponseWriter, r *http.Request) {
	ticker, err := h.ValidateTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := parseDateParam(chi.URLParam(r, "date"))
	if err != nil || date.IsZero() {
		h.jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	ta, err := h.app.GetTechnicalAnalysis(ticker, date)
	if err != nil {
		h.appError(w, err)
		return
	}
	if ta == nil {
		h.jsonError(w, fmt.Sprintf("no record for %s on %s", ticker, date.Format(models.DateLayout)), http.StatusNotFound)
		return
	}

	h.jsonResponse(w, ta)
}

// HandleExportCSV streams feature records as CSV
func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	ticker, start, end, err := h.parseFeatureFilter(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.app.GetFeatures(ticker, start, end, h.ParseLimitParam(r, 0))
	if err != nil {
		h.appError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="features.csv"`)
	if err := export.WriteCSV(w, records); err != nil {
		// headers are already sent
		observability.Warn("csv export aborted", "records", len(records), "error", err)
	}
}

// HandleImportFeatures upserts records uploaded as CSV or as a JSON array
func (h *Handler) HandleImportFeatures(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)

	var records []models.FeatureRecord
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		records, err = export.ReadJSON(body)
	} else {
		records, err = export.ReadCSV(body)
	}
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	n, err := h.app.ImportFeatures(records)
	if err != nil {
		h.appError(w, err)
		return
	}

	h.jsonResponse(w, map[string]int{"imported": n})
}

// HandleGetFeatureWindow returns a model input window for a ticker ending before date
func (h *Handler) HandleGetFeatureWindow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ticker, err := h.ValidateTicker(q.Get("ticker"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := parseDateParam(q.Get("date"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	variant, err := features.ParseVariant(q.Get("variant"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	size := features.ShortWindow
	if s := q.Get("size"); s != "" {
		size, err = strconv.Atoi(s)
		if err != nil || size <= 0 {
			h.jsonError(w, "size must be a positive integer", http.StatusBadRequest)
			return
		}
	}

	window, err := h.app.GetFeatureWindow(ticker, date, size, variant)
	if errors.Is(err, app.ErrNoStore) {
		h.appError(w, err)
		return
	}
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	h.jsonResponse(w, window)
}

// HandleRunPipeline starts a pipeline run in the background
func (h *Handler) HandleRunPipeline(w http.ResponseWriter, r *http.Request) {
	var req RunPipelineRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.jsonError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	runReq, err := req.toRunRequest(h)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resolved, err := h.app.TriggerPipelineRun(runReq)
	switch {
	case errors.Is(err, app.ErrRunInProgress):
		h.jsonError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, app.ErrNoPipeline):
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     "accepted",
		"tickers":    resolved.Tickers,
		"start_date": resolved.StartDate.Format(models.DateLayout),
	})
}

// HandleGetPipelineRuns returns pipeline run history
func (h *Handler) HandleGetPipelineRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.app.GetPipelineRuns(h.ParseLimitParam(r, 20))
	if err != nil {
		h.appError(w, err)
		return
	}

	h.jsonResponse(w, runs)
}

// HandleGetPipelineRun returns one pipeline run
func (h *Handler) HandleGetPipelineRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := app.ParseUUID(id); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	run, err := h.app.GetPipelineRun(id)
	if err != nil {
		h.appError(w, err)
		return
	}
	if run == nil {
		h.jsonError(w, "Pipeline run not found", http.StatusNotFound)
		return
	}

	h.jsonResponse(w, run)
}

// RunPipelineRequest is the body of POST /api/pipeline/run. Every field is optional.
type RunPipelineRequest struct {
	Tickers   []string `json:"tickers"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
}

func (req RunPipelineRequest) toRunRequest(h *Handler) (app.RunRequest, error) {
	var out app.RunRequest
	for _, t := range req.Tickers {
		ticker, err := h.ValidateTicker(t)
		if err != nil {
			return out, err
		}
		out.Tickers = append(out.Tickers, ticker)
	}
	if start, err := parseDateParam(req.StartDate); err != nil {
		return out, fmt.Errorf("start_date: %w", err)
	} else if !start.IsZero() {
		out.StartDate = &start
	}
	if end, err := parseDateParam(req.EndDate); err != nil {
		return out, fmt.Errorf("end_date: %w", err)
	} else if !end.IsZero() {
		out.EndDate = &end
	}
	return out, nil
}

// Helper functions

// ValidateTicker upper-cases and validates a ticker such as EUR=X or ^GSPC
func (h *Handler) ValidateTicker(ticker string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return "", fmt.Errorf("ticker is required")
	}

	if len(ticker) > 20 {
		return "", fmt.Errorf("ticker too long (max 20 characters)")
	}

	if !tickerPattern.MatchString(ticker) {
		return "", fmt.Errorf("invalid ticker format")
	}

	return ticker, nil
}

// ParseLimitParam parses the limit query parameter
func (h *Handler) ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return defaultLimit
}

// parseFeatureFilter reads the optional ticker, start_date and end_date query parameters
func (h *Handler) parseFeatureFilter(r *http.Request) (string, time.Time, time.Time, error) {
	q := r.URL.Query()
	var ticker string
	if t := q.Get("ticker"); t != "" {
		var err error
		if ticker, err = h.ValidateTicker(t); err != nil {
			return "", time.Time{}, time.Time{}, err
		}
	}
	start, err := parseDateParam(q.Get("start_date"))
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := parseDateParam(q.Get("end_date"))
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("end_date: %w", err)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return "", time.Time{}, time.Time{}, fmt.Errorf("end_date is before start_date")
	}
	return ticker, start, end, nil
}

// parseDateParam parses YYYY-MM-DD; empty yields the zero time
func parseDateParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// appError maps App errors onto status codes
func (h *Handler) appError(w http.ResponseWriter, err error) {
	if errors.Is(err, app.ErrNoStore) {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.jsonError(w, err.Error(), http.StatusInternalServerError)
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
