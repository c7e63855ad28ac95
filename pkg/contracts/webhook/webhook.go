package webhook

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Provider identifies the family of the third party delivering to a webhook.
type Provider string

const (
	ProviderGeneric  Provider = "generic"
	ProviderTwilio   Provider = "twilio"
	ProviderSlack    Provider = "slack"
	ProviderWhatsApp Provider = "whatsapp"
	ProviderAirtable Provider = "airtable"
)

// Domain errors
var (
	ErrWebhookNotFound  = errors.New("webhook not found")
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrEmptyBody        = errors.New("request body is empty")
	ErrNotAuthorized    = errors.New("caller does not own the parent workflow")
)

// ProcessedNotificationCap bounds the per-webhook polling dedup list. Oldest
// entries are evicted once the cap is exceeded.
const ProcessedNotificationCap = 100

// Webhook represents a registered inbound endpoint. Definitions are created
// and updated by workflow configuration; this service only reads them, looked
// up once per request by path.
type Webhook struct {
	ID             string          `json:"id" gorm:"primaryKey"`
	Path           string          `json:"path" gorm:"uniqueIndex;not null"`
	Provider       Provider        `json:"provider" gorm:"not null;default:'generic'"`
	ProviderConfig *ProviderConfig `json:"providerConfig" gorm:"serializer:json"`
	IsActive       bool            `json:"isActive" gorm:"index;default:true"`
	WorkflowID     string          `json:"workflowId" gorm:"not null;index"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func (Webhook) TableName() string {
	return "webhook.webhooks"
}

// Config returns the provider config, never nil.
func (w *Webhook) Config() *ProviderConfig {
	if w.ProviderConfig == nil {
		return &ProviderConfig{}
	}
	return w.ProviderConfig
}

// ProviderConfig is the provider-specific settings blob stored on a webhook.
// Only the fields relevant to the webhook's provider are populated.
type ProviderConfig struct {
	// Slack / WhatsApp verification
	VerificationToken string `json:"verificationToken,omitempty"`

	// Twilio
	SendReply bool   `json:"sendReply,omitempty"`
	ReplyBody string `json:"replyBody,omitempty"`

	// Airtable polling dedup state, mutated in place by the pipeline.
	ProcessedNotifications []string `json:"processedNotifications,omitempty"`
}

// MarkNotificationProcessed appends id to the processed list, evicting the
// oldest entries beyond ProcessedNotificationCap. Returns false when the id
// was already present.
func (c *ProviderConfig) MarkNotificationProcessed(id string) bool {
	for _, seen := range c.ProcessedNotifications {
		if seen == id {
			return false
		}
	}
	c.ProcessedNotifications = append(c.ProcessedNotifications, id)
	if n := len(c.ProcessedNotifications); n > ProcessedNotificationCap {
		c.ProcessedNotifications = c.ProcessedNotifications[n-ProcessedNotificationCap:]
	}
	return true
}

// Workflow is the read-only reference to the workflow a webhook triggers.
type Workflow struct {
	ID     string `json:"id" gorm:"primaryKey"`
	Name   string `json:"name"`
	UserID string `json:"userId" gorm:"index"`
}

func (Workflow) TableName() string {
	return "workflow.workflows"
}

// ExecutionError is the record persisted when a dispatch fails. It is written
// for later inspection and never read back by this service.
type ExecutionError struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	WorkflowID  string    `json:"workflowId" gorm:"not null;index"`
	ExecutionID string    `json:"executionId" gorm:"not null;index"`
	WebhookID   string    `json:"webhookId"`
	Provider    Provider  `json:"provider"`
	Message     string    `json:"message"`
	DurationMS  int64     `json:"durationMs"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (ExecutionError) TableName() string {
	return "webhook.execution_errors"
}

// NewExecutionError builds an error record for a failed dispatch.
func NewExecutionError(wh *Webhook, executionID string, err error, duration time.Duration) *ExecutionError {
	return &ExecutionError{
		ID:          uuid.New().String(),
		WorkflowID:  wh.WorkflowID,
		ExecutionID: executionID,
		WebhookID:   wh.ID,
		Provider:    wh.Provider,
		Message:     err.Error(),
		DurationMS:  duration.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
}
