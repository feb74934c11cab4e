// Command aggregator validates completeness of worker results, merges
// them, and writes the canonical output CSVs.
package main

import (
	"context"
	"encoding/json"
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
	"surveillance/internal/httpapi"
	"surveillance/internal/orchestration"
	"surveillance/internal/security"
)

func main() {
	cfg, err := config.LoadAggregatorConfig()
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

	logger.Info("aggregator_starting", "port", cfg.Port, "output_dir", cfg.OutputDir)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.PrometheusPort), mux); err != nil {
			logger.Error("metrics_server_failed", "error", err)
		}
	}()

	var snapshot *orchestration.ResultSnapshotPublisher
	if cfg.RedisEnabled() {
		snapshot, err = orchestration.NewResultSnapshotPublisher(cfg.RedisURL, cfg.RedisPassword, cfg.SnapshotTTL, logger)
		if err != nil {
			logger.Error("failed to create result snapshot publisher", "error", err)
			os.Exit(1)
		}
		defer snapshot.Close()
		logger.Info("result_snapshot_publisher_initialized")
	}

	agg := &orchestration.Aggregator{Logger: logger, Snapshot: snapshot}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httpapi.RequestID())
	r.Use(httpapi.Logging(logger))
	r.Use(security.RequestSizeLimit(security.DefaultMaxRequestBytes, logger))

	r.Get("/health", httpapi.HealthCheck())
	r.Get("/", rootHandler("aggregator"))

	r.Group(func(r chi.Router) {
		r.Use(security.APIKeyAuth(cfg.APIKey))
		r.Post("/aggregate", aggregateHandler(agg, cfg, logger))
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("aggregator_listening", "port", cfg.Port)
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
	logger.Info("aggregator_stopped")
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

func aggregateHandler(agg *orchestration.Aggregator, cfg *config.AggregatorConfig, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orchestration.AggregateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpapi.WriteJSONError(w, http.StatusUnprocessableEntity, "malformed request body")
			return
		}

		resp, err := agg.Aggregate(r.Context(), req)
		if err != nil {
			logger.Error("aggregation failed", "request_id", req.RequestID, "error", err)
			httpapi.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if resp.Status == orchestration.StatusCompleted {
			suspiciousPath := filepath.Join(cfg.OutputDir, "suspicious_accounts.csv")
			if err := csvio.WriteSuspiciousAccounts(suspiciousPath, resp.Sequences); err != nil {
				logger.Error("failed writing suspicious accounts csv", "error", err)
				httpapi.WriteJSONError(w, http.StatusInternalServerError, "failed to write output")
				return
			}

			logsPath := filepath.Join(cfg.LogsDir, "detection_logs.csv")
			if err := csvio.WriteDetectionLogs(logsPath, resp.Sequences, cfg.PseudonymizeAccounts, cfg.PseudonymizationSalt); err != nil {
				logger.Error("failed writing detection logs csv", "error", err)
				httpapi.WriteJSONError(w, http.StatusInternalServerError, "failed to write output")
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == orchestration.StatusValidationFailed {
			w.WriteHeader(http.StatusUnprocessableEntity)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
