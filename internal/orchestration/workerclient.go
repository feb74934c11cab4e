package orchestration

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"surveillance/internal/detection"
	"surveillance/internal/idempotency"
	"surveillance/internal/model"
)

// WorkerClient is the fan-out abstraction the coordinator dispatches
// through. A single implementation serves real distributed deployments
// (HTTPWorkerClient) while another serves the CLI and tests
// (InProcessWorkerClient), so Coordinator.Orchestrate never needs to know
// which transport it's driving.
type WorkerClient interface {
	Detect(ctx context.Context, target Target, req DetectRequest) (DetectResponse, error)
}

// retriableStatus reports whether an HTTP response status is one the
// coordinator's retry loop should treat as transient, per spec §4.5.1:
// 5xx and 408/429 are retriable, any other 4xx is not.
func retriableStatus(status int) bool {
	if status >= 500 {
		return true
	}
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}

// HTTPWorkerClient dispatches to a real worker process over HTTP. It makes
// exactly one attempt per Detect call; all retry/backoff policy lives in
// Coordinator so it applies uniformly regardless of transport.
type HTTPWorkerClient struct {
	http *resty.Client
}

// NewHTTPWorkerClient builds a client with the given per-attempt timeout.
// No built-in resty retries are configured deliberately: the coordinator
// owns retry policy (exponential backoff, Retry-After honoring, a global
// deadline) so it isn't duplicated or fought over between two layers.
func NewHTTPWorkerClient(attemptTimeout time.Duration) *HTTPWorkerClient {
	return &HTTPWorkerClient{
		http: resty.New().
			SetTimeout(attemptTimeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// WorkerTransientError wraps a retriable failure (network error, 5xx,
// request timeout, or 429) so Coordinator can distinguish it from a
// permanent 4xx without re-parsing status codes at the call site.
type WorkerTransientError struct {
	Err        error
	RetryAfter time.Duration // zero if the response carried no hint
}

func (e *WorkerTransientError) Error() string { return e.Err.Error() }
func (e *WorkerTransientError) Unwrap() error { return e.Err }

func (c *HTTPWorkerClient) Detect(ctx context.Context, target Target, req DetectRequest) (DetectResponse, error) {
	var result DetectResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post(target.URL + "/detect")
	if err != nil {
		return DetectResponse{}, &WorkerTransientError{Err: fmt.Errorf("worker %s: %w", target.ServiceName, err)}
	}

	status := resp.StatusCode()
	if status == http.StatusOK {
		return result, nil
	}

	baseErr := fmt.Errorf("worker %s: status %d: %s", target.ServiceName, status, resp.String())
	if !retriableStatus(status) {
		return DetectResponse{}, baseErr
	}

	retryAfter := parseRetryAfter(resp.Header().Get("Retry-After"))
	return DetectResponse{}, &WorkerTransientError{Err: baseErr, RetryAfter: retryAfter}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := time.ParseDuration(header + "s"); err == nil {
		return secs
	}
	return 0
}

// InProcessWorkerClient calls a Registry + idempotency.Cache directly,
// with no sockets in between. It powers cmd/coordinator's CLI mode and
// orchestration tests, where spinning up real HTTP services adds nothing.
type InProcessWorkerClient struct {
	registry *detection.Registry
	cache    *idempotency.Cache
}

func NewInProcessWorkerClient(registry *detection.Registry, cache *idempotency.Cache) *InProcessWorkerClient {
	return &InProcessWorkerClient{registry: registry, cache: cache}
}

func (c *InProcessWorkerClient) Detect(ctx context.Context, target Target, req DetectRequest) (DetectResponse, error) {
	det, err := c.registry.Get(target.ServiceName)
	if err != nil {
		return DetectResponse{}, err
	}

	// One cache serves every target of this client, so the service name is
	// part of the key; otherwise two detectors would share one result.
	cacheKey := target.ServiceName + "/" + req.RequestID
	result, fromCache, err := c.cache.GetOrCompute(cacheKey, req.EventFingerprint, func() (any, error) {
		filtered := det.FilterEvents(req.Events)
		sequences, err := det.Detect(filtered)
		if err != nil {
			return nil, err
		}
		return sequences, nil
	})
	if err != nil {
		return DetectResponse{}, err
	}

	return DetectResponse{
		RequestID:   req.RequestID,
		ServiceName: target.ServiceName,
		Sequences:   result.([]model.SuspiciousSequence),
		FromCache:   fromCache,
	}, nil
}
