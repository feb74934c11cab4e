package orchestration

import (
	"fmt"
	"log/slog"
	"time"

	"surveillance/internal/detection"
	"surveillance/internal/fingerprint"
	"surveillance/internal/idempotency"
	"surveillance/internal/instrumentation"
	"surveillance/internal/model"
)

// Worker hosts exactly one detector and answers POST /detect requests
// against it, per spec §4.5.2. The idempotency cache is the only shared
// mutable state; GetOrCompute covers lookup-and-insert atomically so
// concurrent requests for the same (request_id, fingerprint) collapse
// into one detector run.
type Worker struct {
	Detector detection.Detector
	Cache    *idempotency.Cache
	Logger   *slog.Logger
	Metrics  *instrumentation.Metrics
}

// HandleDetect runs req against the worker's detector, serving a cached
// result when available. A fingerprint recomputed from req.Events that
// disagrees with req.EventFingerprint is a client error (tampered or
// corrupted payload), surfaced as ErrFingerprintMismatch rather than
// silently detecting against untrusted data.
func (w *Worker) HandleDetect(req DetectRequest) (DetectResponse, error) {
	actual := fingerprint.Compute(req.Events)
	if actual != req.EventFingerprint {
		return DetectResponse{}, fmt.Errorf("%w: got %s, computed %s", model.ErrFingerprintMismatch, req.EventFingerprint, actual)
	}

	start := time.Now()
	result, fromCache, err := w.Cache.GetOrCompute(req.RequestID, req.EventFingerprint, func() (any, error) {
		filtered := w.Detector.FilterEvents(req.Events)
		return w.Detector.Detect(filtered)
	})
	if err != nil {
		return DetectResponse{}, fmt.Errorf("detector %s: %w", w.Detector.Name(), err)
	}

	if fromCache && w.Metrics != nil {
		w.Metrics.RecordIdempotencyHit()
	}

	sequences := result.([]model.SuspiciousSequence)
	if w.Metrics != nil && !fromCache {
		w.Metrics.RecordDetection(float64(time.Since(start).Milliseconds()), w.Detector.Name(), len(sequences))
	}

	w.Logger.Info("detect handled",
		"request_id", req.RequestID,
		"algorithm", w.Detector.Name(),
		"from_cache", fromCache,
		"sequence_count", len(sequences),
	)

	return DetectResponse{
		RequestID:   req.RequestID,
		ServiceName: w.Detector.Name(),
		Sequences:   sequences,
		FromCache:   fromCache,
	}, nil
}
