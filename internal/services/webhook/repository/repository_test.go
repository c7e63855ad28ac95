package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hookflow-go/pkg/contracts/webhook"
	"github.com/hookflow-go/pkg/database"
)

// newTestRepo runs the repository against in-memory sqlite. The schemas that
// postgres provides are attached as extra in-memory databases so the
// schema-qualified table names resolve; a single connection keeps the
// attachments visible for the whole test.
func newTestRepo(t *testing.T) *WebhookRepository {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, gdb.Exec("ATTACH DATABASE ':memory:' AS webhook").Error)
	require.NoError(t, gdb.Exec("ATTACH DATABASE ':memory:' AS workflow").Error)

	db := &database.DB{DB: gdb}
	require.NoError(t, db.Migrate(&webhook.Webhook{}, &webhook.Workflow{}, &webhook.ExecutionError{}))

	return NewWebhookRepository(db)
}

func seedWebhook(t *testing.T, repo *WebhookRepository, wh *webhook.Webhook) {
	t.Helper()
	require.NoError(t, repo.db.WithContext(context.Background()).Create(wh).Error)
}

func seedWorkflow(t *testing.T, repo *WebhookRepository, wf *webhook.Workflow) {
	t.Helper()
	require.NoError(t, repo.db.WithContext(context.Background()).Create(wf).Error)
}

func TestGetActiveByPath(t *testing.T) {
	repo := newTestRepo(t)
	seedWebhook(t, repo, &webhook.Webhook{
		ID: "wh-1", Path: "orders", Provider: webhook.ProviderGeneric,
		WorkflowID: "wf-1", IsActive: true,
	})
	seedWebhook(t, repo, &webhook.Webhook{
		ID: "wh-2", Path: "paused", Provider: webhook.ProviderGeneric,
		WorkflowID: "wf-1", IsActive: false,
	})

	wh, err := repo.GetActiveByPath(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, "wh-1", wh.ID)

	// Inactive webhooks are invisible to the trigger path.
	_, err = repo.GetActiveByPath(context.Background(), "paused")
	assert.ErrorIs(t, err, webhook.ErrWebhookNotFound)

	_, err = repo.GetActiveByPath(context.Background(), "missing")
	assert.ErrorIs(t, err, webhook.ErrWebhookNotFound)
}

func TestGetByID(t *testing.T) {
	repo := newTestRepo(t)
	seedWebhook(t, repo, &webhook.Webhook{
		ID: "wh-1", Path: "orders", Provider: webhook.ProviderTwilio,
		WorkflowID: "wf-1", IsActive: false,
	})

	// Lookup by id does not filter on active: test instructions must work
	// for paused webhooks too.
	wh, err := repo.GetByID(context.Background(), "wh-1")
	require.NoError(t, err)
	assert.Equal(t, webhook.ProviderTwilio, wh.Provider)

	_, err = repo.GetByID(context.Background(), "wh-404")
	assert.ErrorIs(t, err, webhook.ErrWebhookNotFound)
}

func TestGetWorkflow(t *testing.T) {
	repo := newTestRepo(t)
	seedWorkflow(t, repo, &webhook.Workflow{ID: "wf-1", Name: "orders flow", UserID: "user-1"})

	wf, err := repo.GetWorkflow(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", wf.UserID)

	_, err = repo.GetWorkflow(context.Background(), "wf-404")
	assert.ErrorIs(t, err, webhook.ErrWorkflowNotFound)
}

func TestProviderConfigRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	seedWebhook(t, repo, &webhook.Webhook{
		ID: "wh-1", Path: "airtable", Provider: webhook.ProviderAirtable,
		WorkflowID: "wf-1", IsActive: true,
		ProviderConfig: &webhook.ProviderConfig{VerificationToken: "tok"},
	})

	wh, err := repo.GetActiveByPath(context.Background(), "airtable")
	require.NoError(t, err)
	require.NotNil(t, wh.ProviderConfig)
	assert.Equal(t, "tok", wh.ProviderConfig.VerificationToken)

	wh.Config().MarkNotificationProcessed("ntf-1")
	wh.Config().MarkNotificationProcessed("ntf-2")
	require.NoError(t, repo.UpdateProviderConfig(context.Background(), wh))

	reloaded, err := repo.GetByID(context.Background(), "wh-1")
	require.NoError(t, err)
	require.NotNil(t, reloaded.ProviderConfig)
	assert.Equal(t, "tok", reloaded.ProviderConfig.VerificationToken)
	assert.Equal(t, []string{"ntf-1", "ntf-2"}, reloaded.ProviderConfig.ProcessedNotifications)
}

func TestUpdateProviderConfigLeavesDefinitionAlone(t *testing.T) {
	repo := newTestRepo(t)
	seedWebhook(t, repo, &webhook.Webhook{
		ID: "wh-1", Path: "airtable", Provider: webhook.ProviderAirtable,
		WorkflowID: "wf-1", IsActive: true,
	})

	wh, err := repo.GetByID(context.Background(), "wh-1")
	require.NoError(t, err)

	// Mutations on the in-memory copy must not leak into the stored
	// definition through the config write.
	wh.Path = "hijacked"
	wh.IsActive = false
	wh.ProviderConfig = &webhook.ProviderConfig{ProcessedNotifications: []string{"ntf-1"}}
	require.NoError(t, repo.UpdateProviderConfig(context.Background(), wh))

	reloaded, err := repo.GetByID(context.Background(), "wh-1")
	require.NoError(t, err)
	assert.Equal(t, "airtable", reloaded.Path)
	assert.True(t, reloaded.IsActive)
	assert.Equal(t, []string{"ntf-1"}, reloaded.Config().ProcessedNotifications)
}

func TestCreateExecutionError(t *testing.T) {
	repo := newTestRepo(t)

	rec := &webhook.ExecutionError{
		ID: "ee-1", WorkflowID: "wf-1", ExecutionID: "ex-1",
		WebhookID: "wh-1", Provider: webhook.ProviderGeneric,
		Message: "executor returned 503", DurationMS: 1200,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateExecutionError(context.Background(), rec))

	var got webhook.ExecutionError
	require.NoError(t, repo.db.WithContext(context.Background()).Where("id = ?", "ee-1").First(&got).Error)
	assert.Equal(t, "executor returned 503", got.Message)
	assert.Equal(t, int64(1200), got.DurationMS)
}
