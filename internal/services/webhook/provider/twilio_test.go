package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookflow-go/internal/services/webhook/payload"
	"github.com/hookflow-go/pkg/contracts/webhook"
)

func twilioWebhook() *webhook.Webhook {
	return &webhook.Webhook{
		ID:         "wh-sms",
		Path:       "sms",
		Provider:   webhook.ProviderTwilio,
		WorkflowID: "wf-1",
		IsActive:   true,
	}
}

func TestTwilio_MediaPairsInIndexOrder(t *testing.T) {
	tw := NewTwilio()
	body := "MessageSid=SM123&From=%2B15551234567&To=%2B15557654321&Body=look" +
		"&NumMedia=2" +
		"&MediaUrl0=https%3A%2F%2Fapi.twilio.example%2Fm0" +
		"&MediaContentType0=image%2Fjpeg" +
		"&MediaUrl1=https%3A%2F%2Fapi.twilio.example%2Fm1" +
		"&MediaContentType1=image%2Fpng"

	p, err := payload.Decode([]byte(body), "application/x-www-form-urlencoded")
	require.NoError(t, err)

	r, err := tw.Normalize(context.Background(), twilioWebhook(), p, nil)
	require.NoError(t, err)
	require.NotNil(t, r.Event)

	media, ok := r.Event.Payload["media"].([]Media)
	require.True(t, ok)
	require.Len(t, media, 2)
	assert.Equal(t, "https://api.twilio.example/m0", media[0].URL)
	assert.Equal(t, "image/jpeg", media[0].ContentType)
	assert.Equal(t, "https://api.twilio.example/m1", media[1].URL)
	assert.Equal(t, "image/png", media[1].ContentType)
}

func TestTwilio_MessageSidIsIdempotencyKey(t *testing.T) {
	tw := NewTwilio()
	p, _ := payload.Decode([]byte("MessageSid=SM456&From=%2B1555&Body=hi"), "application/x-www-form-urlencoded")

	r, err := tw.Normalize(context.Background(), twilioWebhook(), p, nil)
	require.NoError(t, err)

	assert.Equal(t, "twilio:SM456", r.Event.IdempotencyKey)
	assert.True(t, r.Event.DurableKey)
}

func TestTwilio_MissingSidFallsBackToRequestHash(t *testing.T) {
	tw := NewTwilio()
	p, _ := payload.Decode([]byte("From=%2B1555&Body=hi"), "application/x-www-form-urlencoded")

	r, err := tw.Normalize(context.Background(), twilioWebhook(), p, nil)
	require.NoError(t, err)

	assert.Contains(t, r.Event.IdempotencyKey, "twilio:req:")
	assert.False(t, r.Event.DurableKey)
}

func TestTwilio_EmptyEnvelopeByDefault(t *testing.T) {
	tw := NewTwilio()
	p, _ := payload.Decode([]byte("MessageSid=SM1&Body=hi"), "application/x-www-form-urlencoded")

	r, err := tw.Normalize(context.Background(), twilioWebhook(), p, nil)
	require.NoError(t, err)

	assert.Equal(t, "text/xml; charset=utf-8", r.Event.Ack.ContentType)
	assert.Contains(t, r.Event.Ack.Body, "<Response></Response>")
	assert.NotContains(t, r.Event.Ack.Body, "<Message>")
}

func TestTwilio_ReplyBodyWhenConfigured(t *testing.T) {
	tw := NewTwilio()
	wh := twilioWebhook()
	wh.ProviderConfig = &webhook.ProviderConfig{SendReply: true, ReplyBody: "Thanks!"}

	p, _ := payload.Decode([]byte("MessageSid=SM1&Body=hi"), "application/x-www-form-urlencoded")

	r, err := tw.Normalize(context.Background(), wh, p, nil)
	require.NoError(t, err)

	assert.Contains(t, r.Event.Ack.Body, "<Message>Thanks!</Message>")
}
