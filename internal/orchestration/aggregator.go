package orchestration

import (
	"context"
	"fmt"
	"log/slog"

	"surveillance/internal/model"
)

// Aggregator validates completeness of a set of worker results and merges
// them into the final sequence list, per spec §4.5.3. It holds no
// cross-request state; every call is independent.
type Aggregator struct {
	Logger   *slog.Logger
	Snapshot *ResultSnapshotPublisher // nil when REDIS_URL is unset
}

// Aggregate implements AggregateClient for in-process (CLI) use; the HTTP
// aggregator service wraps the same logic behind POST /aggregate.
func (a *Aggregator) Aggregate(ctx context.Context, req AggregateRequest) (AggregateResponse, error) {
	resp := a.aggregate(req)
	if a.Snapshot != nil {
		a.Snapshot.Publish(ctx, resp)
	}
	return resp, nil
}

func (a *Aggregator) aggregate(req AggregateRequest) AggregateResponse {
	expected := make(map[string]bool, len(req.ExpectedServices))
	for _, name := range req.ExpectedServices {
		expected[name] = true
	}

	seen := make(map[string]bool, len(req.Results))
	var unknown, duplicate []string

	for _, r := range req.Results {
		if !expected[r.ServiceName] {
			unknown = append(unknown, r.ServiceName)
			continue
		}
		if seen[r.ServiceName] {
			duplicate = append(duplicate, r.ServiceName)
			continue
		}
		seen[r.ServiceName] = true
	}

	if len(unknown) > 0 {
		return AggregateResponse{
			RequestID: req.RequestID,
			Status:    StatusValidationFailed,
			Reason:    fmt.Sprintf("unknown service(s) in results: %v", unknown),
		}
	}
	if len(duplicate) > 0 {
		return AggregateResponse{
			RequestID: req.RequestID,
			Status:    StatusValidationFailed,
			Reason:    fmt.Sprintf("duplicate service entries: %v", duplicate),
		}
	}

	var missing []string
	for _, name := range req.ExpectedServices {
		if !seen[name] {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 && !req.AllowPartial {
		return AggregateResponse{
			RequestID: req.RequestID,
			Status:    StatusValidationFailed,
			Missing:   missing,
			Reason:    fmt.Sprintf("missing expected service(s): %v", missing),
		}
	}

	var merged []model.SuspiciousSequence
	for _, r := range req.Results {
		merged = append(merged, r.Sequences...)
	}

	a.Logger.Info("aggregation complete",
		"request_id", req.RequestID,
		"status", StatusCompleted,
		"sequence_count", len(merged),
		"missing_count", len(missing),
	)

	return AggregateResponse{
		RequestID: req.RequestID,
		Status:    StatusCompleted,
		Sequences: merged,
		Missing:   missing,
	}
}
