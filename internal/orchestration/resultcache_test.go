package orchestration

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestNewResultSnapshotPublisherRejectsMalformedURL(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := NewResultSnapshotPublisher("not-a-redis-url", "", time.Hour, logger)
	if err == nil {
		t.Fatal("expected an error constructing a publisher from a malformed redis URL")
	}
}

// Publish/Close against a live Redis server are exercised only in the
// deployed pipeline: the teacher's own Redis-facing code (analytics'
// consumer and report publisher) carries no test coverage either, and
// this pack has no in-memory Redis double to stand one up against.
