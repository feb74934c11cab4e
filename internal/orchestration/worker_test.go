package orchestration

import (
	"testing"
	"time"

	"surveillance/internal/detection"
	"surveillance/internal/fingerprint"
	"surveillance/internal/idempotency"
	"surveillance/internal/model"
)

func newTestWorker(t *testing.T) *Worker {
	t.Helper()
	cache, err := idempotency.New(16)
	if err != nil {
		t.Fatalf("idempotency.New() error = %v", err)
	}
	return &Worker{
		Detector: detection.NewLayeringDetector(model.DefaultDetectionConfig()),
		Cache:    cache,
		Logger:   testLogger(),
	}
}

func TestHandleDetectReturnsSequences(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	events := classicSpoofSequenceForOrchestration(base)
	fp := fingerprint.Compute(events)

	w := newTestWorker(t)
	resp, err := w.HandleDetect(DetectRequest{RequestID: "req-1", EventFingerprint: fp, Events: events})
	if err != nil {
		t.Fatalf("HandleDetect() error = %v", err)
	}
	if len(resp.Sequences) != 1 {
		t.Fatalf("expected 1 sequence, got %d", len(resp.Sequences))
	}
	if resp.ServiceName != "layering" {
		t.Errorf("ServiceName = %q, want layering", resp.ServiceName)
	}
}

func TestHandleDetectRejectsFingerprintMismatch(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	events := classicSpoofSequenceForOrchestration(base)

	w := newTestWorker(t)
	_, err := w.HandleDetect(DetectRequest{RequestID: "req-1", EventFingerprint: "wrong-fingerprint", Events: events})
	if err == nil {
		t.Error("expected an error when the declared fingerprint disagrees with the recomputed one")
	}
}

func TestHandleDetectServesSecondCallFromCache(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	events := classicSpoofSequenceForOrchestration(base)
	fp := fingerprint.Compute(events)

	w := newTestWorker(t)
	req := DetectRequest{RequestID: "req-1", EventFingerprint: fp, Events: events}

	first, err := w.HandleDetect(req)
	if err != nil {
		t.Fatalf("first HandleDetect() error = %v", err)
	}
	if first.FromCache {
		t.Error("first call should not be served from cache")
	}

	second, err := w.HandleDetect(req)
	if err != nil {
		t.Fatalf("second HandleDetect() error = %v", err)
	}
	if !second.FromCache {
		t.Error("second call with the same request id and fingerprint should be cached")
	}
}

func TestHandleDetectEmptyEventsYieldsNoSequences(t *testing.T) {
	t.Parallel()

	fp := fingerprint.Compute(nil)
	w := newTestWorker(t)

	resp, err := w.HandleDetect(DetectRequest{RequestID: "req-empty", EventFingerprint: fp, Events: nil})
	if err != nil {
		t.Fatalf("HandleDetect() error = %v", err)
	}
	if len(resp.Sequences) != 0 {
		t.Errorf("expected no sequences for an empty event set, got %d", len(resp.Sequences))
	}
}

