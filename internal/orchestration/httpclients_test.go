package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPWorkerClientDecodesSuccessResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(DetectResponse{ServiceName: "layering"})
	}))
	defer srv.Close()

	client := NewHTTPWorkerClient(time.Second)
	resp, err := client.Detect(context.Background(), Target{ServiceName: "layering", URL: srv.URL}, DetectRequest{RequestID: "req-1"})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if resp.ServiceName != "layering" {
		t.Errorf("ServiceName = %q, want layering", resp.ServiceName)
	}
}

func TestHTTPWorkerClientTreatsServerErrorAsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPWorkerClient(time.Second)
	_, err := client.Detect(context.Background(), Target{ServiceName: "layering", URL: srv.URL}, DetectRequest{RequestID: "req-1"})
	if err == nil {
		t.Fatal("expected an error from a 503 response")
	}
	var transientErr *WorkerTransientError
	if !errors.As(err, &transientErr) {
		t.Fatalf("expected a *WorkerTransientError, got %T: %v", err, err)
	}
	if transientErr.RetryAfter != 2*time.Second {
		t.Errorf("RetryAfter = %v, want 2s", transientErr.RetryAfter)
	}
}

func TestHTTPWorkerClientTreatsBadRequestAsPermanent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewHTTPWorkerClient(time.Second)
	_, err := client.Detect(context.Background(), Target{ServiceName: "layering", URL: srv.URL}, DetectRequest{RequestID: "req-1"})
	if err == nil {
		t.Fatal("expected an error from a 422 response")
	}
	var transientErr *WorkerTransientError
	if errors.As(err, &transientErr) {
		t.Error("a 422 should not be wrapped as transient")
	}
}

func TestHTTPAggregatorClientReturnsResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/aggregate" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AggregateResponse{RequestID: "req-1", Status: StatusCompleted})
	}))
	defer srv.Close()

	client := NewHTTPAggregatorClient(srv.URL, time.Second)
	resp, err := client.Aggregate(context.Background(), AggregateRequest{RequestID: "req-1"})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if resp.Status != StatusCompleted {
		t.Errorf("Status = %v, want completed", resp.Status)
	}
}

func TestHTTPAggregatorClientSurfacesServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPAggregatorClient(srv.URL, time.Second)
	_, err := client.Aggregate(context.Background(), AggregateRequest{RequestID: "req-1"})
	if err == nil {
		t.Fatal("expected an error from a 500 response")
	}
}
