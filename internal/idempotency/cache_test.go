package idempotency

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewRejectsNonPositiveSize(t *testing.T) {
	t.Parallel()

	if _, err := New(0); err == nil {
		t.Error("expected an error constructing a zero-size cache")
	}
	if _, err := New(-1); err == nil {
		t.Error("expected an error constructing a negative-size cache")
	}
}

func TestGetOrComputeCachesResult(t *testing.T) {
	t.Parallel()

	c, err := New(4)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var calls int32
	compute := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	}

	result, fromCache, err := c.GetOrCompute("req-1", "fp-1", compute)
	if err != nil {
		t.Fatalf("first GetOrCompute() error = %v", err)
	}
	if fromCache {
		t.Error("first call should not be served from cache")
	}
	if result.(int) != 42 {
		t.Errorf("result = %v, want 42", result)
	}

	result, fromCache, err = c.GetOrCompute("req-1", "fp-1", compute)
	if err != nil {
		t.Fatalf("second GetOrCompute() error = %v", err)
	}
	if !fromCache {
		t.Error("second call with the same key should be served from cache")
	}
	if result.(int) != 42 {
		t.Errorf("cached result = %v, want 42", result)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("compute() called %d times, want 1", calls)
	}
}

func TestGetOrComputeFingerprintMismatchErrors(t *testing.T) {
	t.Parallel()

	c, err := New(4)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	compute := func() (any, error) { return "first", nil }
	if _, _, err := c.GetOrCompute("req-1", "fp-1", compute); err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}

	_, _, err = c.GetOrCompute("req-1", "fp-2", func() (any, error) { return "second", nil })
	if err == nil {
		t.Error("expected an error reusing a request id with a different fingerprint")
	}
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	c, err := New(4)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	wantErr := errors.New("boom")
	var calls int32
	failThenSucceed := func() (any, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, wantErr
		}
		return "ok", nil
	}

	if _, _, err := c.GetOrCompute("req-1", "fp-1", failThenSucceed); !errors.Is(err, wantErr) {
		t.Fatalf("first GetOrCompute() error = %v, want %v", err, wantErr)
	}

	result, fromCache, err := c.GetOrCompute("req-1", "fp-1", failThenSucceed)
	if err != nil {
		t.Fatalf("retry GetOrCompute() error = %v", err)
	}
	if fromCache {
		t.Error("a failed attempt should not have been cached")
	}
	if result.(string) != "ok" {
		t.Errorf("result = %v, want ok", result)
	}
}

func TestGetOrComputeCollapsesConcurrentCalls(t *testing.T) {
	t.Parallel()

	c, err := New(4)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var calls int32
	release := make(chan struct{})
	compute := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "done", nil
	}

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, _ = c.GetOrCompute("req-shared", "fp-shared", compute)
		}()
	}

	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("compute() ran %d times across concurrent callers, want 1", got)
	}
}
