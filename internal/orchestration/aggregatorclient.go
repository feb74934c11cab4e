package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPAggregatorClient lets a distributed coordinator hand its collected
// worker results to a separate aggregator process over HTTP, implementing
// the same AggregateClient interface the in-process Aggregator satisfies
// directly for CLI mode.
type HTTPAggregatorClient struct {
	http    *resty.Client
	baseURL string
}

func NewHTTPAggregatorClient(baseURL string, timeout time.Duration) *HTTPAggregatorClient {
	return &HTTPAggregatorClient{
		http:    resty.New().SetTimeout(timeout).SetHeader("Content-Type", "application/json"),
		baseURL: baseURL,
	}
}

func (c *HTTPAggregatorClient) Aggregate(ctx context.Context, req AggregateRequest) (AggregateResponse, error) {
	var result AggregateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post(c.baseURL + "/aggregate")
	if err != nil {
		return AggregateResponse{}, fmt.Errorf("aggregator: %w", err)
	}
	if resp.StatusCode() >= 500 {
		return AggregateResponse{}, fmt.Errorf("aggregator: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}
