// Package idempotency provides the worker-process-local cache that lets a
// coordinator retry a dispatch without a detector re-running the same
// (request, event-set) pair twice.
package idempotency

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Key identifies one dispatch attempt: the coordinator-assigned request id
// plus the fingerprint of the event payload it carried. Keying on both
// catches the two distinct replay cases: the same request retried with the
// same events (cache hit, return the stored result) and the same request id
// reused with a different payload (fingerprint mismatch, a caller bug or
// tamper, surfaced by Lookup's hit=false/mismatch=true return).
type Key struct {
	RequestID   string
	Fingerprint string
}

// Entry is a cached detection result for one Key.
type Entry struct {
	Fingerprint string
	Result      any
}

// Cache is a bounded LRU cache of request-id to Entry, with an in-flight
// singleflight group so concurrent retries of the same request id collapse
// into one underlying computation instead of racing the detector.
type Cache struct {
	lru    *lru.Cache[string, Entry]
	flight singleflight.Group
}

// New builds a cache holding at most size entries. size must be positive.
func New(size int) (*Cache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("idempotency: cache size must be positive, got %d", size)
	}
	c, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("idempotency: %w", err)
	}
	return &Cache{lru: c}, nil
}

// Lookup returns the cached result for the request id, also reporting
// whether the fingerprint of this call matches the one that was cached. A
// fingerprint mismatch on an existing request id means the caller reused a
// request id for a different payload; callers should treat that as an error
// rather than silently serving the stale result.
func (c *Cache) Lookup(requestID, fingerprint string) (result any, hit bool, mismatch bool) {
	entry, ok := c.lru.Get(requestID)
	if !ok {
		return nil, false, false
	}
	if entry.Fingerprint != fingerprint {
		return nil, false, true
	}
	return entry.Result, true, false
}

// GetOrCompute returns the cached result for (requestID, fingerprint) if
// present, otherwise runs compute exactly once across any concurrently
// racing callers sharing the same requestID, caches the outcome, and
// returns it. An error from compute is not cached, so a subsequent retry
// gets a fresh attempt.
func (c *Cache) GetOrCompute(requestID, fingerprint string, compute func() (any, error)) (result any, fromCache bool, err error) {
	if result, hit, mismatch := c.Lookup(requestID, fingerprint); hit {
		return result, true, nil
	} else if mismatch {
		return nil, false, fmt.Errorf("idempotency: request %q previously seen with a different fingerprint", requestID)
	}

	v, err, _ := c.flight.Do(requestID, func() (any, error) {
		res, err := compute()
		if err != nil {
			return nil, err
		}
		c.lru.Add(requestID, Entry{Fingerprint: fingerprint, Result: res})
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v, false, nil
}

// Len reports the current number of cached entries, mostly for metrics and
// tests.
func (c *Cache) Len() int {
	return c.lru.Len()
}
