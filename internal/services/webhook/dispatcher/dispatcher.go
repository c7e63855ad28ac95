package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/hookflow-go/internal/services/webhook/provider"
	"github.com/hookflow-go/internal/services/webhook/repository"
	"github.com/hookflow-go/pkg/contracts/execution"
	"github.com/hookflow-go/pkg/contracts/webhook"
	"github.com/hookflow-go/pkg/events"
	"github.com/hookflow-go/pkg/logger"
	"github.com/hookflow-go/pkg/metrics"
)

// Outcome is what a successful dispatch reports back to the pipeline.
type Outcome struct {
	ExecutionID string
	Result      *execution.Result
	Duration    time.Duration
}

// Dispatcher hands canonical events to the workflow executor and persists
// failures for later inspection.
type Dispatcher struct {
	executor Executor
	repo     repository.Repository
	eventBus events.EventBus
	logger   logger.Logger
}

func New(executor Executor, repo repository.Repository, eventBus events.EventBus, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		executor: executor,
		repo:     repo,
		eventBus: eventBus,
		logger:   log,
	}
}

// Dispatch runs one canonical event through the executor. On failure the
// error record is persisted fire-and-forget and the error is returned so the
// caller can map it to a 500.
func (d *Dispatcher) Dispatch(ctx context.Context, wh *webhook.Webhook, wf *webhook.Workflow, event *provider.Event) (*Outcome, error) {
	req := execution.NewWebhookRequest(wf.ID, wh.ID, map[string]interface{}{
		"provider": string(event.Provider),
		"payload":  event.Payload,
	})

	log := d.logger.With("webhookId", wh.ID, "workflowId", wf.ID, "executionId", req.ExecutionID)
	log.Info("Dispatching webhook execution", "provider", event.Provider)

	start := time.Now()
	result, err := d.executor.Execute(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.DispatchDuration.WithLabelValues(string(event.Provider), "error").Observe(duration.Seconds())
		log.Error("Workflow dispatch failed", "error", err, "duration", duration)
		d.recordFailure(wh, req.ExecutionID, err, duration)
		return nil, fmt.Errorf("workflow dispatch failed: %w", err)
	}

	metrics.DispatchDuration.WithLabelValues(string(event.Provider), string(result.Status)).Observe(duration.Seconds())

	if !result.Succeeded() {
		execErr := fmt.Errorf("execution %s finished with status %s: %s", req.ExecutionID, result.Status, result.Error)
		log.Error("Workflow execution failed", "status", result.Status, "error", result.Error)
		d.recordFailure(wh, req.ExecutionID, execErr, duration)
		d.publish(events.TypeDispatchFailed, wh, req.ExecutionID)
		return nil, execErr
	}

	log.Info("Workflow execution completed", "duration", duration)
	d.publish(events.TypeWebhookDispatch, wh, req.ExecutionID)

	return &Outcome{
		ExecutionID: req.ExecutionID,
		Result:      result,
		Duration:    duration,
	}, nil
}

// recordFailure persists the execution error detached from the request
// lifecycle: the record is for later inspection and must not delay or fail
// the HTTP response.
func (d *Dispatcher) recordFailure(wh *webhook.Webhook, executionID string, err error, duration time.Duration) {
	rec := webhook.NewExecutionError(wh, executionID, err, duration)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.repo.CreateExecutionError(ctx, rec); err != nil {
			d.logger.Error("Failed to persist execution error", "executionId", executionID, "error", err)
		}
	}()
}

func (d *Dispatcher) publish(eventType string, wh *webhook.Webhook, executionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := d.eventBus.Publish(ctx, events.Event{
		Type:        eventType,
		AggregateID: wh.ID,
		Payload: map[string]interface{}{
			"webhookId":   wh.ID,
			"workflowId":  wh.WorkflowID,
			"executionId": executionID,
			"provider":    string(wh.Provider),
		},
	})
	if err != nil {
		d.logger.Warn("Failed to publish pipeline event", "type", eventType, "error", err)
	}
}
