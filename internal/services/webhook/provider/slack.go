package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hookflow-go/internal/services/webhook/payload"
	"github.com/hookflow-go/pkg/contracts/webhook"
)

// Slack handles Events API callbacks. A url_verification challenge must be
// echoed verbatim and never touches the dedup or lock path.
type Slack struct{}

func NewSlack() *Slack {
	return &Slack{}
}

func (s *Slack) Kind() webhook.Provider {
	return webhook.ProviderSlack
}

func (s *Slack) Normalize(_ context.Context, wh *webhook.Webhook, p payload.Payload, _ http.Header) (*Result, error) {
	body := p.Map()

	if body["type"] == "url_verification" {
		challenge, _ := body["challenge"].(string)
		return &Result{Verification: PlainOK(challenge)}, nil
	}

	return &Result{Event: &Event{
		Provider:       webhook.ProviderSlack,
		IdempotencyKey: "slack:" + slackEventKey(body),
		Payload:        body,
		Ack:            JSONAck(`{"ok":true}`),
		DurableKey:     true,
	}}, nil
}

func (s *Slack) Verify(_ context.Context, _ *webhook.Webhook, _ url.Values) *Response {
	return PlainOK("OK")
}

func (s *Slack) TestInstructions(wh *webhook.Webhook, baseURL string) string {
	return fmt.Sprintf(
		"Point your Slack app's Events API request URL at:\n\n"+
			"  %s/webhooks/trigger/%s\n\n"+
			"Slack will POST a url_verification challenge which is echoed back "+
			"automatically. To simulate an event:\n\n"+
			"  curl -X POST %s/webhooks/trigger/%s \\\n"+
			"    -H 'Content-Type: application/json' \\\n"+
			"    -d '{\"type\":\"event_callback\",\"event_id\":\"Ev000001\",\"team_id\":\"T000001\",\"event\":{\"type\":\"message\",\"text\":\"hi\"}}'\n\n"+
			"Expected response: 200 {\"ok\":true}.",
		baseURL, wh.Path, baseURL, wh.Path)
}

// slackEventKey prefers the event id. Events without one still get a stable
// composite key rather than being dropped; the final clock component only
// applies when both team id and timestamp are missing too.
func slackEventKey(body map[string]interface{}) string {
	if id, ok := body["event_id"].(string); ok && id != "" {
		return id
	}

	team, _ := body["team_id"].(string)
	ts := extractEventTime(body)
	if team == "" && ts == "" {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%s:%s", team, ts)
}

func extractEventTime(body map[string]interface{}) string {
	if ts, ok := body["event_time"]; ok {
		return fmt.Sprint(ts)
	}
	if event, ok := body["event"].(map[string]interface{}); ok {
		if ts, ok := event["event_ts"].(string); ok {
			return ts
		}
	}
	return ""
}
