package provider

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookflow-go/internal/services/webhook/payload"
	"github.com/hookflow-go/pkg/contracts/webhook"
)

func airtableWebhook() *webhook.Webhook {
	return &webhook.Webhook{
		ID:         "wh-at",
		Path:       "airtable",
		Provider:   webhook.ProviderAirtable,
		WorkflowID: "wf-1",
		IsActive:   true,
	}
}

func pingPayload(t *testing.T, id string) payload.Payload {
	t.Helper()
	p, err := payload.Decode([]byte(fmt.Sprintf(`{"notificationId":%q}`, id)), "application/json")
	require.NoError(t, err)
	return p
}

func TestAirtable_SynchronousEventWithOwnDedup(t *testing.T) {
	a := NewAirtable()
	wh := airtableWebhook()

	r, err := a.Normalize(context.Background(), wh, pingPayload(t, "ntf-1"), nil)
	require.NoError(t, err)

	require.NotNil(t, r.Event)
	assert.Equal(t, "airtable:ntf-1", r.Event.IdempotencyKey)
	assert.True(t, r.Event.Synchronous)
	assert.True(t, r.Event.SkipSharedDedupe)
	assert.True(t, r.Event.PersistConfig)
	assert.Equal(t, []string{"ntf-1"}, wh.Config().ProcessedNotifications)
}

func TestAirtable_DuplicateNotificationShortCircuits(t *testing.T) {
	a := NewAirtable()
	wh := airtableWebhook()

	r1, err := a.Normalize(context.Background(), wh, pingPayload(t, "ntf-1"), nil)
	require.NoError(t, err)
	require.NotNil(t, r1.Event)

	r2, err := a.Normalize(context.Background(), wh, pingPayload(t, "ntf-1"), nil)
	require.NoError(t, err)
	require.NotNil(t, r2.ShortCircuit)
	assert.Equal(t, "duplicate notification", r2.ShortCircuit.Body)
}

func TestAirtable_ProcessedListCappedAtMostRecent(t *testing.T) {
	a := NewAirtable()
	wh := airtableWebhook()

	for i := 0; i < 105; i++ {
		r, err := a.Normalize(context.Background(), wh, pingPayload(t, fmt.Sprintf("ntf-%03d", i)), nil)
		require.NoError(t, err)
		require.NotNil(t, r.Event)
	}

	processed := wh.Config().ProcessedNotifications
	require.Len(t, processed, webhook.ProcessedNotificationCap)
	assert.Equal(t, "ntf-005", processed[0])
	assert.Equal(t, "ntf-104", processed[len(processed)-1])
}

func TestAirtable_PingWithoutIDShortCircuits(t *testing.T) {
	a := NewAirtable()
	p, err := payload.Decode([]byte(`{"hello":"world"}`), "application/json")
	require.NoError(t, err)

	r, err := a.Normalize(context.Background(), airtableWebhook(), p, nil)
	require.NoError(t, err)
	assert.NotNil(t, r.ShortCircuit)
}

func TestAirtable_WebhookPingShapeKey(t *testing.T) {
	a := NewAirtable()
	body := `{"base":{"id":"app1"},"webhook":{"id":"ach1"},"timestamp":"2026-01-01T00:00:00Z"}`
	p, err := payload.Decode([]byte(body), "application/json")
	require.NoError(t, err)

	r, err := a.Normalize(context.Background(), airtableWebhook(), p, nil)
	require.NoError(t, err)

	require.NotNil(t, r.Event)
	assert.Equal(t, "airtable:app1:ach1:2026-01-01T00:00:00Z", r.Event.IdempotencyKey)
}
