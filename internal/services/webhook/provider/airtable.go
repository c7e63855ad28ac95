package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hookflow-go/internal/services/webhook/payload"
	"github.com/hookflow-go/pkg/contracts/webhook"
)

// Airtable handles polling-style notification pings. The ping only says "new
// payloads are available"; the workflow then fetches them, a bounded step, so
// these deliveries are processed synchronously with no deadline race. Dedup
// state lives in the webhook's own provider config, not the shared store.
type Airtable struct{}

func NewAirtable() *Airtable {
	return &Airtable{}
}

func (a *Airtable) Kind() webhook.Provider {
	return webhook.ProviderAirtable
}

func (a *Airtable) Normalize(_ context.Context, wh *webhook.Webhook, p payload.Payload, _ http.Header) (*Result, error) {
	body := p.Map()

	notificationID := notificationKey(body)
	if notificationID == "" {
		// A ping with no identifiable notification is acknowledged but not
		// dispatched; there is nothing to fetch against.
		return &Result{ShortCircuit: PlainOK("OK")}, nil
	}

	cfg := wh.Config()
	if !cfg.MarkNotificationProcessed(notificationID) {
		return &Result{ShortCircuit: PlainOK("duplicate notification")}, nil
	}
	wh.ProviderConfig = cfg

	return &Result{Event: &Event{
		Provider:         webhook.ProviderAirtable,
		IdempotencyKey:   "airtable:" + notificationID,
		Payload:          body,
		Ack:              PlainOK("OK"),
		Synchronous:      true,
		SkipSharedDedupe: true,
		PersistConfig:    true,
	}}, nil
}

func (a *Airtable) Verify(_ context.Context, _ *webhook.Webhook, _ url.Values) *Response {
	return PlainOK("OK")
}

func (a *Airtable) TestInstructions(wh *webhook.Webhook, baseURL string) string {
	return fmt.Sprintf(
		"Airtable pings this endpoint when new payloads are available:\n\n"+
			"  curl -X POST %s/webhooks/trigger/%s \\\n"+
			"    -H 'Content-Type: application/json' \\\n"+
			"    -d '{\"notificationId\":\"ntf-test-1\",\"base\":{\"id\":\"appXXXX\"},\"webhook\":{\"id\":\"achYYYY\"}}'\n\n"+
			"Expected response: 200 OK. A repeated notificationId returns "+
			"\"duplicate notification\" without re-triggering the workflow. "+
			"Deliveries are processed synchronously, so the response reflects "+
			"the actual fetch outcome.",
		baseURL, wh.Path)
}

func notificationKey(body map[string]interface{}) string {
	if id, ok := body["notificationId"].(string); ok && id != "" {
		return id
	}
	// Airtable's ping shape nests the webhook id; combine with the base id
	// and timestamp when no notification id is present.
	hook, _ := body["webhook"].(map[string]interface{})
	hookID, _ := hook["id"].(string)
	if hookID == "" {
		return ""
	}
	base, _ := body["base"].(map[string]interface{})
	baseID, _ := base["id"].(string)
	ts, _ := body["timestamp"].(string)
	return fmt.Sprintf("%s:%s:%s", baseID, hookID, ts)
}
