// Command server serves the feature API and runs the pipeline on its cron schedule
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"currency-features/config"
	"currency-features/internal/api"
	"currency-features/internal/app"
	"currency-features/internal/bootstrap"
	"currency-features/observability"
	"currency-features/scheduler"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLoggerWithLevel(cfg.Log.Production, observability.ParseLevel(cfg.Log.Level))
	observability.InitMetrics()
	if err := cfg.Validate(); err != nil {
		observability.Fatal("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		observability.Fatal("failed to initialize", "error", err)
	}
	defer components.Close()

	application := app.New(cfg, components.Store, components.Runner)
	application.Startup(ctx)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(ctx, components.Runner, cfg.Universe.Tickers, cfg.Pipeline.LookbackDays)
		if err := sched.Register(cfg.Scheduler.Cron); err != nil {
			observability.Fatal("failed to schedule pipeline", "error", err)
		}
		sched.Start()
		application.SetSchedule(sched)
		observability.Info("pipeline scheduled", "cron", cfg.Scheduler.Cron, "next", sched.Next())
	}

	handler := api.NewHandler(application, cfg)
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewRouter(handler, cfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		observability.Info("starting server", "addr", cfg.HTTP.Addr, "provider", cfg.Pipeline.Provider, "macro", cfg.Pipeline.MacroSource)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.Fatal("server error", "error", err)
		}
	}()

	<-ctx.Done()
	observability.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err)
	}
	observability.Info("server stopped")
}
