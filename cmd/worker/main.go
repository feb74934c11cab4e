// Command worker hosts exactly one detection algorithm and answers
// POST /detect dispatches from a coordinator.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
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
	"surveillance/internal/orchestration"
	"surveillance/internal/security"
)

// volumeMode mirrors the algorithm base class's run_from_volume: a single
// read-detect-write pass against a Docker-volume-style input/output
// directory pair, with no coordinator or HTTP server involved. Useful for
// a container smoke test that just wants to confirm a worker image can
// run its algorithm end to end.
var (
	volumeMode = flag.Bool("volume-mode", false, "run one detection pass against --input-dir/--output-dir and exit")
	inputDir   = flag.String("input-dir", "./input", "directory containing transactions.csv (volume mode only)")
	outputDir  = flag.String("output-dir", "./output", "directory to write suspicious_accounts.csv into (volume mode only)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadWorkerConfig()
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

	algorithmName := os.Getenv("ALGORITHM_NAME")
	if algorithmName == "" {
		algorithmName = "layering"
	}

	registry := detection.NewDefaultRegistry()
	det, err := registry.Get(algorithmName)
	if err != nil {
		logger.Error("unknown algorithm", "algorithm_name", algorithmName, "error", err)
		os.Exit(1)
	}

	if *volumeMode {
		os.Exit(runVolumeMode(det, logger, *inputDir, *outputDir))
	}

	cache, err := idempotency.New(cfg.IdempotencyCacheSize)
	if err != nil {
		logger.Error("failed to create idempotency cache", "error", err)
		os.Exit(1)
	}

	metrics := instrumentation.NewMetrics()

	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.PrometheusPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics_server_starting", "port", cfg.PrometheusPort)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("metrics_server_failed", "error", err)
		}
	}()

	logger.Info("worker_starting",
		"port", cfg.Port,
		"algorithm", det.Name(),
		"idempotency_cache_size", cfg.IdempotencyCacheSize,
	)

	w := &orchestration.Worker{
		Detector: det,
		Cache:    cache,
		Logger:   logger,
		Metrics:  metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httpapi.RequestID())
	r.Use(httpapi.Logging(logger))
	r.Use(security.RequestSizeLimit(cfg.MaxRequestBytes, logger))

	r.Get("/health", httpapi.HealthCheck())
	r.Get("/", rootHandler(det.Name()))

	r.Group(func(r chi.Router) {
		r.Use(security.APIKeyAuth(cfg.APIKey))
		r.Post("/detect", detectHandler(w, logger))
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("worker_listening", "port", cfg.Port)
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
	logger.Info("worker_stopped")
}

// runVolumeMode reads transactions.csv from inputDir, runs det against it,
// and writes suspicious_accounts.csv into outputDir, returning a process
// exit code.
func runVolumeMode(det detection.Detector, logger *slog.Logger, inputDir, outputDir string) int {
	inputPath := filepath.Join(inputDir, "transactions.csv")
	events, err := csvio.ReadTransactions(inputPath, logger)
	if err != nil {
		logger.Error("volume_mode_read_failed", "algorithm", det.Name(), "input_path", inputPath, "error", err)
		return 1
	}

	filtered := det.FilterEvents(events)
	sequences, err := det.Detect(filtered)
	if err != nil {
		logger.Error("volume_mode_detect_failed", "algorithm", det.Name(), "error", err)
		return 1
	}

	outputPath := filepath.Join(outputDir, "suspicious_accounts.csv")
	if err := csvio.WriteSuspiciousAccounts(outputPath, sequences); err != nil {
		logger.Error("volume_mode_write_failed", "algorithm", det.Name(), "output_path", outputPath, "error", err)
		return 1
	}

	logger.Info("volume_mode_complete",
		"algorithm", det.Name(),
		"input_path", inputPath,
		"output_path", outputPath,
		"sequence_count", len(sequences),
	)
	return 0
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

func detectHandler(w *orchestration.Worker, logger *slog.Logger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var req orchestration.DetectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpapi.WriteJSONError(rw, http.StatusUnprocessableEntity, "malformed request body")
			return
		}

		resp, err := w.HandleDetect(req)
		if err != nil {
			logger.Warn("detect failed", "request_id", req.RequestID, "error", err)
			httpapi.WriteJSONError(rw, http.StatusUnprocessableEntity, err.Error())
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(rw).Encode(resp)
	}
}
