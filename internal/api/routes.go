package api

import (
	"net/http"
	"time"

	"currency-features/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// requestTimeout bounds every API request; pipeline runs are started in the background
const requestTimeout = 60 * time.Second

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(MetricsMiddleware)

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)

		// Feature records
		r.Route("/features", func(r chi.Router) {
			r.Get("/", h.HandleGetFeatures)
			r.Get("/latest", h.HandleGetLatestFeatures)
			r.Get("/summary", h.HandleGetMarketSummary)
			r.Get("/window", h.HandleGetFeatureWindow)
			r.Get("/export.csv", h.HandleExportCSV)
			r.Post("/import", h.HandleImportFeatures)
			r.Get("/{ticker}/{date}/technical", h.HandleGetTechnicalAnalysis)
		})

		// Pipeline
		r.Route("/pipeline", func(r chi.Router) {
			r.Post("/run", h.HandleRunPipeline)
			r.Get("/runs", h.HandleGetPipelineRuns)
			r.Get("/runs/{id}", h.HandleGetPipelineRun)
		})
	})

	return r
}

// CORSMiddleware returns CORS middleware with the specified allowed origins
func CORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
