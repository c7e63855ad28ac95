package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hookflow-go/internal/services/webhook/payload"
	"github.com/hookflow-go/pkg/contracts/webhook"
)

// WhatsApp handles Meta WhatsApp Business API callbacks. Message payloads are
// nested under entry[0].changes[0].value.messages; callbacks without a
// message array (status updates, read receipts) are acknowledged without
// dispatch.
type WhatsApp struct{}

func NewWhatsApp() *WhatsApp {
	return &WhatsApp{}
}

func (w *WhatsApp) Kind() webhook.Provider {
	return webhook.ProviderWhatsApp
}

func (w *WhatsApp) Normalize(_ context.Context, wh *webhook.Webhook, p payload.Payload, _ http.Header) (*Result, error) {
	body := p.Map()

	messages := extractMessages(body)
	if len(messages) == 0 {
		return &Result{ShortCircuit: PlainOK("OK")}, nil
	}

	first, _ := messages[0].(map[string]interface{})
	messageID, _ := first["id"].(string)

	key := messageID
	durable := true
	if key == "" {
		key = requestHash(wh.Path, p)
		durable = false
	}

	return &Result{Event: &Event{
		Provider:       webhook.ProviderWhatsApp,
		IdempotencyKey: "whatsapp:" + key,
		Payload:        body,
		Ack:            JSONAck(`{"status":"received"}`),
		DurableKey:     durable,
	}}, nil
}

// Verify implements the Meta subscription handshake: hub.mode=subscribe with
// a matching hub.verify_token echoes hub.challenge verbatim.
func (w *WhatsApp) Verify(_ context.Context, wh *webhook.Webhook, query url.Values) *Response {
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == "subscribe" && token != "" && token == wh.Config().VerificationToken {
		return PlainOK(challenge)
	}
	return &Response{Status: http.StatusForbidden, ContentType: "text/plain; charset=utf-8", Body: "verification failed"}
}

func (w *WhatsApp) TestInstructions(wh *webhook.Webhook, baseURL string) string {
	return fmt.Sprintf(
		"Configure the Meta app webhook callback URL as:\n\n"+
			"  %s/webhooks/trigger/%s\n\n"+
			"with the verify token from this webhook's settings. To simulate a "+
			"message delivery:\n\n"+
			"  curl -X POST %s/webhooks/trigger/%s \\\n"+
			"    -H 'Content-Type: application/json' \\\n"+
			"    -d '{\"entry\":[{\"changes\":[{\"value\":{\"messages\":[{\"id\":\"wamid.TEST\",\"from\":\"15551234567\",\"text\":{\"body\":\"hello\"}}]}}]}]}'\n\n"+
			"Expected response: 200 {\"status\":\"received\"}. Status callbacks "+
			"(no messages array) are acknowledged without triggering the workflow.",
		baseURL, wh.Path, baseURL, wh.Path)
}

func extractMessages(body map[string]interface{}) []interface{} {
	entries, _ := body["entry"].([]interface{})
	if len(entries) == 0 {
		return nil
	}
	entry, _ := entries[0].(map[string]interface{})
	changes, _ := entry["changes"].([]interface{})
	if len(changes) == 0 {
		return nil
	}
	change, _ := changes[0].(map[string]interface{})
	value, _ := change["value"].(map[string]interface{})
	messages, _ := value["messages"].([]interface{})
	return messages
}
