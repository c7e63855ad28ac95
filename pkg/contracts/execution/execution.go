package execution

import (
	"time"

	"github.com/google/uuid"
)

// Status represents execution status as reported by the executor service.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
)

// TriggerType represents what triggered the execution.
type TriggerType string

const (
	TriggerWebhook  TriggerType = "webhook"
	TriggerManual   TriggerType = "manual"
	TriggerSchedule TriggerType = "schedule"
)

// Request is the unit of work handed to the workflow executor. Each inbound
// delivery dispatches at most one request, keyed by a fresh execution id.
type Request struct {
	ExecutionID string                 `json:"executionId"`
	WorkflowID  string                 `json:"workflowId"`
	TriggeredBy TriggerType            `json:"triggeredBy"`
	TriggerID   string                 `json:"triggerId"`
	Input       map[string]interface{} `json:"input"`
	EnqueuedAt  time.Time              `json:"enqueuedAt"`
}

// NewWebhookRequest builds an execution request for a webhook trigger.
func NewWebhookRequest(workflowID, webhookID string, input map[string]interface{}) *Request {
	return &Request{
		ExecutionID: uuid.New().String(),
		WorkflowID:  workflowID,
		TriggeredBy: TriggerWebhook,
		TriggerID:   webhookID,
		Input:       input,
		EnqueuedAt:  time.Now().UTC(),
	}
}

// Result is the executor's terminal report for one request.
type Result struct {
	ExecutionID string                 `json:"executionId"`
	Status      Status                 `json:"status"`
	Output      map[string]interface{} `json:"output,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Duration    time.Duration          `json:"duration"`
}

// Succeeded reports whether the execution reached a successful terminal state.
func (r *Result) Succeeded() bool {
	return r.Status == StatusCompleted
}
