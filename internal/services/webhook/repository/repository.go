package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hookflow-go/pkg/contracts/webhook"
	"github.com/hookflow-go/pkg/database"
)

// Repository is the read-mostly persistence surface of the ingestion
// pipeline. Webhook and workflow definitions are owned by the configuration
// service; the only writes here are polling dedup state and execution errors.
type Repository interface {
	GetActiveByPath(ctx context.Context, path string) (*webhook.Webhook, error)
	GetByID(ctx context.Context, id string) (*webhook.Webhook, error)
	GetWorkflow(ctx context.Context, id string) (*webhook.Workflow, error)
	UpdateProviderConfig(ctx context.Context, wh *webhook.Webhook) error
	CreateExecutionError(ctx context.Context, rec *webhook.ExecutionError) error
}

type WebhookRepository struct {
	db *database.DB
}

func NewWebhookRepository(db *database.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) GetActiveByPath(ctx context.Context, path string) (*webhook.Webhook, error) {
	var wh webhook.Webhook
	err := r.db.WithContext(ctx).Where("path = ? AND is_active = ?", path, true).First(&wh).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, webhook.ErrWebhookNotFound
		}
		return nil, err
	}
	return &wh, nil
}

func (r *WebhookRepository) GetByID(ctx context.Context, id string) (*webhook.Webhook, error) {
	var wh webhook.Webhook
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&wh).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, webhook.ErrWebhookNotFound
		}
		return nil, err
	}
	return &wh, nil
}

func (r *WebhookRepository) GetWorkflow(ctx context.Context, id string) (*webhook.Workflow, error) {
	var wf webhook.Workflow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&wf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, webhook.ErrWorkflowNotFound
		}
		return nil, err
	}
	return &wf, nil
}

// UpdateProviderConfig writes back the provider config blob only, leaving the
// externally-owned definition fields untouched.
func (r *WebhookRepository) UpdateProviderConfig(ctx context.Context, wh *webhook.Webhook) error {
	return r.db.WithContext(ctx).
		Model(&webhook.Webhook{}).
		Where("id = ?", wh.ID).
		Update("provider_config", wh.ProviderConfig).Error
}

func (r *WebhookRepository) CreateExecutionError(ctx context.Context, rec *webhook.ExecutionError) error {
	return r.db.WithContext(ctx).Create(rec).Error
}
