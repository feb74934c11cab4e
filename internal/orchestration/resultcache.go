package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResultSnapshotPublisher publishes a best-effort snapshot of an
// aggregation's final result to Redis under a TTL'd key, adapted from the
// teacher's RedisPublisher (market-report caching) to this domain's
// request-keyed result shape. It is not a system of record: a restart
// loses everything in it, and no read path in this pipeline depends on
// it being present.
type ResultSnapshotPublisher struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewResultSnapshotPublisher connects to redisURL and verifies reachability
// with a bounded ping before returning.
func NewResultSnapshotPublisher(redisURL, redisPassword string, ttl time.Duration, logger *slog.Logger) (*ResultSnapshotPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if redisPassword != "" {
		opt.Password = redisPassword
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &ResultSnapshotPublisher{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "result_snapshot_publisher"),
	}, nil
}

// Publish stores resp under key "aggregation:{request_id}" with the
// configured TTL. Failures are logged but never surfaced to the caller:
// this cache is operational visibility, not part of the aggregation
// contract.
func (p *ResultSnapshotPublisher) Publish(ctx context.Context, resp AggregateResponse) {
	start := time.Now()

	payload, err := json.Marshal(resp)
	if err != nil {
		p.logger.Warn("snapshot marshal failed", "request_id", resp.RequestID, "error", err)
		return
	}

	key := fmt.Sprintf("aggregation:%s", resp.RequestID)
	if err := p.client.Set(ctx, key, payload, p.ttl).Err(); err != nil {
		p.logger.Warn("snapshot publish failed", "request_id", resp.RequestID, "error", err)
		return
	}

	p.logger.Info("aggregation_snapshot_cached",
		"request_id", resp.RequestID,
		"cache_key", key,
		"ttl_sec", p.ttl.Seconds(),
		"size_bytes", len(payload),
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

// Close closes the Redis connection.
func (p *ResultSnapshotPublisher) Close() error {
	return p.client.Close()
}
