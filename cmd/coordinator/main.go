// Command coordinator fans a transaction batch out to the registered
// detection workers and drives the aggregator to produce the final
// output CSVs. Run with no arguments it serves POST /orchestrate over
// HTTP; run with a positional input file argument it performs one
// in-process pass and exits, per the CLI contract in spec §6.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"surveillance/internal/config"
	"surveillance/internal/csvio"
	"surveillance/internal/detection"
	"surveillance/internal/httpapi"
	"surveillance/internal/idempotency"
	"surveillance/internal/instrumentation"
	"surveillance/internal/model"
	"surveillance/internal/orchestration"
	"surveillance/internal/security"
)

func main() {
	cfg, err := config.LoadCoordinatorConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if len(os.Args) > 1 {
		os.Exit(runCLI(cfg, logger, os.Args[1]))
	}

	runServer(cfg, logger)
}

// runCLI performs one orchestration pass entirely in-process against the
// default registry, writes the two output CSVs, and returns a process
// exit code, per spec §6's exit-code contract.
func runCLI(cfg *config.CoordinatorConfig, logger *slog.Logger, inputFile string) int {
	resolved, err := security.ValidateInputPath(inputFile, cfg.InputDir)
	if err != nil {
		logger.Error("invalid input path", "error", err)
		return 1
	}

	registry := detection.NewDefaultRegistry()
	cache, err := idempotency.New(1024)
	if err != nil {
		logger.Error("failed to create idempotency cache", "error", err)
		return 1
	}

	names := registry.List()
	targets := make([]orchestration.Target, len(names))
	for i, name := range names {
		targets[i] = orchestration.Target{ServiceName: name}
	}

	coordinator := &orchestration.Coordinator{
		Targets:    targets,
		Worker:     orchestration.NewInProcessWorkerClient(registry, cache),
		Aggregator: &orchestration.Aggregator{Logger: logger},
		Retry: orchestration.RetryPolicy{
			MaxRetries: cfg.RetryMax,
			BaseDelay:  cfg.RetryBase,
			Deadline:   cfg.Deadline,
		},
		AllowPartial: parseBoolEnv("ALLOW_PARTIAL_RESULTS", false),
		Logger:       logger,
	}

	result, err := coordinator.Orchestrate(context.Background(), resolved)
	if err != nil {
		logger.Error("orchestration failed", "error", err)
		return 1
	}
	if result.Status != orchestration.StatusCompleted {
		logger.Error("orchestration did not complete", "status", result.Status, "reason", result.Reason)
		return 1
	}

	suspiciousPath := filepath.Join(cfg.OutputDir, "suspicious_accounts.csv")
	if err := csvio.WriteSuspiciousAccounts(suspiciousPath, result.Sequences); err != nil {
		logger.Error("failed writing suspicious accounts csv", "error", err)
		return 1
	}
	logsPath := filepath.Join(cfg.LogsDir, "detection_logs.csv")
	if err := csvio.WriteDetectionLogs(logsPath, result.Sequences, false, ""); err != nil {
		logger.Error("failed writing detection logs csv", "error", err)
		return 1
	}

	logger.Info("orchestration complete", "request_id", result.RequestID, "sequence_count", len(result.Sequences))
	return 0
}

func parseBoolEnv(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// runServer runs the coordinator as an HTTP service fanning out to the
// configured worker pool over HTTP.
func runServer(cfg *config.CoordinatorConfig, logger *slog.Logger) {
	metrics := instrumentation.NewMetrics()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.PrometheusPort), mux); err != nil {
			logger.Error("metrics_server_failed", "error", err)
		}
	}()

	workerTargets, err := cfg.ParseWorkerTargets()
	if err != nil {
		logger.Error("invalid worker targets", "error", err)
		os.Exit(1)
	}
	targets := make([]orchestration.Target, len(workerTargets))
	for i, t := range workerTargets {
		targets[i] = orchestration.Target{ServiceName: t.Name, URL: t.URL}
	}

	coordinator := &orchestration.Coordinator{
		Targets:      targets,
		Worker:       orchestration.NewHTTPWorkerClient(cfg.Deadline / 2),
		Aggregator:   orchestration.NewHTTPAggregatorClient(cfg.AggregatorURL, cfg.Deadline),
		Retry:        orchestration.RetryPolicy{MaxRetries: cfg.RetryMax, BaseDelay: cfg.RetryBase, Deadline: cfg.Deadline},
		AllowPartial: parseBoolEnv("ALLOW_PARTIAL_RESULTS", false),
		Logger:       logger,
		Metrics:      metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httpapi.RequestID())
	r.Use(httpapi.Logging(logger))
	r.Use(security.RequestSizeLimit(cfg.MaxRequestBytes, logger))

	r.Get("/health", httpapi.HealthCheck())
	r.Get("/", rootHandler("coordinator"))

	r.Group(func(r chi.Router) {
		r.Use(security.APIKeyAuth(cfg.APIKey))
		r.Post("/orchestrate", orchestrateHandler(coordinator, cfg, logger))
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("coordinator_listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server_error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info("shutdown_signal_received", "signal", sig.String())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	logger.Info("coordinator_stopped")
}

func rootHandler(serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"service": serviceName,
			"version": "1.0.0",
			"status":  "ok",
		})
	}
}

func orchestrateHandler(c *orchestration.Coordinator, cfg *config.CoordinatorConfig, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orchestration.OrchestrateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpapi.WriteJSONError(w, http.StatusUnprocessableEntity, "malformed request body")
			return
		}
		if err := security.ValidateFilename(req.InputFile); err != nil {
			httpapi.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		resolved, err := security.ValidateInputPath(req.InputFile, cfg.InputDir)
		if err != nil {
			httpapi.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		result, err := c.Orchestrate(r.Context(), resolved)
		if err != nil {
			logger.Error("orchestration failed", "error", err)
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, model.ErrInputNotFound):
				status = http.StatusNotFound
			case errors.Is(err, model.ErrInputMalformed):
				status = http.StatusUnprocessableEntity
			}
			httpapi.WriteJSONError(w, status, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(result)
	}
}
