package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hookflow-go/pkg/config"
	"github.com/hookflow-go/pkg/contracts/execution"
)

// Executor is the boundary into the external workflow executor. The executor
// runs the workflow DAG; this service only hands over the trigger input and
// waits for the terminal result.
type Executor interface {
	Execute(ctx context.Context, req *execution.Request) (*execution.Result, error)
}

// HTTPExecutor calls the executor service over HTTP, wrapped in a circuit
// breaker so a dead executor fails fast instead of tying up handlers for the
// full request timeout.
type HTTPExecutor struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewHTTPExecutor(cfg config.ExecutorConfig) *HTTPExecutor {
	return &HTTPExecutor{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "workflow-executor",
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (e *HTTPExecutor) Execute(ctx context.Context, req *execution.Request) (*execution.Result, error) {
	out, err := e.breaker.Execute(func() (interface{}, error) {
		return e.execute(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*execution.Result), nil
}

func (e *HTTPExecutor) execute(ctx context.Context, req *execution.Request) (*execution.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/v1/executions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build executor request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executor request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read executor response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("executor returned %d: %s", resp.StatusCode, string(data))
	}

	var result execution.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode executor response: %w", err)
	}
	if result.ExecutionID == "" {
		result.ExecutionID = req.ExecutionID
	}
	return &result, nil
}
