package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"surveillance/internal/csvio"
	"surveillance/internal/fingerprint"
	"surveillance/internal/instrumentation"
	"surveillance/internal/model"
)

// RetryPolicy controls the coordinator's per-target retry loop (spec
// §4.5.1): up to MaxRetries attempts, exponential backoff from BaseDelay,
// and a global Deadline past which outstanding retries are abandoned.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Deadline   time.Duration
}

// AggregateClient is the abstraction the coordinator calls once all workers have
// settled; the real implementation is Aggregator.Aggregate, run either
// in-process (CLI mode) or over HTTP against a separate service.
type AggregateClient interface {
	Aggregate(ctx context.Context, req AggregateRequest) (AggregateResponse, error)
}

// Coordinator fans a single orchestration request out to every configured
// target, retries transient failures, and hands the settled results to
// the aggregator.
type Coordinator struct {
	Targets      []Target
	Worker       WorkerClient
	Aggregator   AggregateClient
	Retry        RetryPolicy
	AllowPartial bool
	Logger       *slog.Logger
	Metrics      *instrumentation.Metrics
}

type dispatchOutcome struct {
	serviceName string
	sequences   []model.SuspiciousSequence
	err         error
}

// Orchestrate runs one full invocation: reads the input CSV, fingerprints
// it, fans out to every target concurrently, retries per-target failures
// under the configured policy, and aggregates whatever settled before the
// global deadline.
func (c *Coordinator) Orchestrate(ctx context.Context, inputPath string) (OrchestrateResult, error) {
	requestID := uuid.New().String()
	logger := c.Logger.With("request_id", requestID)

	events, err := csvio.ReadTransactions(inputPath, logger)
	if err != nil {
		return OrchestrateResult{RequestID: requestID, Status: StatusFailed}, err
	}

	fp := fingerprint.Compute(events)
	logger.Info("orchestration starting", "input_file", inputPath, "event_count", len(events), "fingerprint", fp)

	deadlineCtx, cancel := context.WithTimeout(ctx, c.Retry.Deadline)
	defer cancel()

	results := c.dispatchAll(deadlineCtx, requestID, fp, events, logger)

	expected := make([]string, len(c.Targets))
	for i, t := range c.Targets {
		expected[i] = t.ServiceName
	}

	serviceResults := make([]ServiceResult, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			logger.Warn("worker target failed permanently", "service", r.serviceName, "error", r.err)
			continue
		}
		serviceResults = append(serviceResults, ServiceResult{ServiceName: r.serviceName, Sequences: r.sequences})
	}

	aggResp, err := c.Aggregator.Aggregate(ctx, AggregateRequest{
		RequestID:        requestID,
		ExpectedServices: expected,
		Results:          serviceResults,
		AllowPartial:     c.AllowPartial,
	})
	if err != nil {
		return OrchestrateResult{RequestID: requestID, Status: StatusFailed}, fmt.Errorf("orchestration: aggregation call failed: %w", err)
	}

	return OrchestrateResult{
		RequestID: requestID,
		Status:    aggResp.Status,
		Sequences: aggResp.Sequences,
		Missing:   aggResp.Missing,
		Reason:    aggResp.Reason,
	}, nil
}

// dispatchAll fans out one goroutine per target, each running its own
// retry loop, and collects every outcome before returning. Target order
// in the outbound calls is not guaranteed; outcome order mirrors
// c.Targets so callers can correlate results deterministically.
func (c *Coordinator) dispatchAll(ctx context.Context, requestID, fp string, events []model.TransactionEvent, logger *slog.Logger) []dispatchOutcome {
	outcomes := make([]dispatchOutcome, len(c.Targets))

	var wg sync.WaitGroup
	wg.Add(len(c.Targets))
	for i, target := range c.Targets {
		go func(i int, target Target) {
			defer wg.Done()
			sequences, err := c.dispatchWithRetry(ctx, target, DetectRequest{
				RequestID:        requestID,
				EventFingerprint: fp,
				Events:           events,
			}, logger)
			outcomes[i] = dispatchOutcome{serviceName: target.ServiceName, sequences: sequences, err: err}
		}(i, target)
	}
	wg.Wait()

	return outcomes
}

// dispatchWithRetry runs one target's retry loop: retriable failures back
// off exponentially (honoring a Retry-After hint when the worker supplied
// one) up to MaxRetries attempts, bounded by ctx's deadline.
func (c *Coordinator) dispatchWithRetry(ctx context.Context, target Target, req DetectRequest, logger *slog.Logger) ([]model.SuspiciousSequence, error) {
	var lastErr error

	// MaxRetries counts attempts in all; zero still makes one attempt.
	attempts := c.Retry.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: deadline exceeded", model.ErrWorkerExhausted, target.ServiceName)
		}

		resp, err := c.Worker.Detect(ctx, target, req)
		if err == nil {
			if c.Metrics != nil {
				c.Metrics.RecordDispatch("success")
			}
			return resp.Sequences, nil
		}

		var transient *WorkerTransientError
		if !errors.As(err, &transient) {
			if c.Metrics != nil {
				c.Metrics.RecordDispatch("permanent_failure")
			}
			return nil, err
		}

		lastErr = err
		if attempt == attempts-1 {
			break
		}

		if c.Metrics != nil {
			c.Metrics.RecordRetry()
		}
		delay := backoffDelay(c.Retry.BaseDelay, attempt, transient.RetryAfter)
		logger.Warn("retrying worker dispatch", "service", target.ServiceName, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			if c.Metrics != nil {
				c.Metrics.RecordDispatch("exhausted")
			}
			return nil, fmt.Errorf("%w: %s: %w", model.ErrWorkerExhausted, target.ServiceName, ctx.Err())
		}
	}

	if c.Metrics != nil {
		c.Metrics.RecordDispatch("exhausted")
	}
	return nil, fmt.Errorf("%w: %s: %w", model.ErrWorkerExhausted, target.ServiceName, lastErr)
}

// backoffDelay computes the exponential-backoff-with-jitter delay for a
// retry attempt, honoring a server-supplied Retry-After hint when present
// and longer than what the exponential schedule would otherwise produce.
func backoffDelay(base time.Duration, attempt int, retryAfter time.Duration) time.Duration {
	exp := base * time.Duration(1<<uint(attempt))
	jitter := time.Duration(rand.Int63n(int64(exp) / 2))
	delay := exp + jitter
	if retryAfter > delay {
		return retryAfter
	}
	return delay
}
