package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/teamflow/internal/app"
	"github.com/felixgeelhaar/teamflow/internal/workload/application/jobs"
	"github.com/felixgeelhaar/teamflow/pkg/config"
	"github.com/felixgeelhaar/teamflow/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv("teamflow-worker")
	logger.Info("starting teamflow worker")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	scheduler := jobs.NewScheduler(container.Invoker, logger, container.Schedules()...)

	logger.Info("starting job scheduler",
		"sync_interval", cfg.SyncInterval,
		"capacity_interval", cfg.CapacityInterval,
		"priority_interval", cfg.PriorityInterval,
	)
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	if cfg.WorkerHealthAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/healthz", container.Health.Handler())

		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if !scheduler.IsRunning() {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]any{"status": "not_ready"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "ready",
				"jobs":   scheduler.GetStats(),
			})
		})

		healthSrv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", "error", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown error", "error", err)
			}
		}()
	}

	// Wait for shutdown
	<-ctx.Done()
	logger.Info("shutting down worker")

	scheduler.Stop()
	for name, stats := range scheduler.GetStats() {
		logger.Info("job stats",
			"job", name,
			"runs", stats.Runs,
			"failures", stats.Failures,
			"last_error", stats.LastError,
		)
	}
	logger.Info("worker stopped")

	fmt.Println("Goodbye!")
}
