package provider

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hookflow-go/internal/services/webhook/payload"
	"github.com/hookflow-go/pkg/contracts/webhook"
)

// Media is one attachment on an inbound SMS/MMS message.
type Media struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

// Twilio handles inbound SMS/MMS deliveries. Twilio posts form-encoded
// bodies and expects a TwiML envelope back.
type Twilio struct{}

func NewTwilio() *Twilio {
	return &Twilio{}
}

func (t *Twilio) Kind() webhook.Provider {
	return webhook.ProviderTwilio
}

func (t *Twilio) Normalize(_ context.Context, wh *webhook.Webhook, p payload.Payload, _ http.Header) (*Result, error) {
	form := p.Form
	if form == nil {
		// Twilio always posts forms; tolerate JSON tests by flattening.
		form = map[string]string{}
		for k, v := range p.Map() {
			form[k] = fmt.Sprint(v)
		}
	}

	messageSid := form["MessageSid"]
	if messageSid == "" {
		messageSid = form["SmsSid"]
	}

	event := map[string]interface{}{
		"from":       form["From"],
		"to":         form["To"],
		"body":       form["Body"],
		"messageSid": messageSid,
		"accountSid": form["AccountSid"],
	}

	if media := collectMedia(form); len(media) > 0 {
		event["media"] = media
	}

	key := messageSid
	durable := true
	if key == "" {
		// No message id to anchor on; fall back to the request hash rather
		// than dropping the delivery.
		key = requestHash(wh.Path, p)
		durable = false
	}

	return &Result{Event: &Event{
		Provider:       webhook.ProviderTwilio,
		IdempotencyKey: "twilio:" + key,
		Payload:        event,
		Ack:            XMLReply(twimlEnvelope(wh.Config())),
		DurableKey:     durable,
	}}, nil
}

func (t *Twilio) Verify(_ context.Context, _ *webhook.Webhook, _ url.Values) *Response {
	return PlainOK("OK")
}

func (t *Twilio) TestInstructions(wh *webhook.Webhook, baseURL string) string {
	return fmt.Sprintf(
		"Simulate an inbound Twilio SMS:\n\n"+
			"  curl -X POST %s/webhooks/trigger/%s \\\n"+
			"    -H 'Content-Type: application/x-www-form-urlencoded' \\\n"+
			"    -d 'MessageSid=SM00000000000000000000000000000000&From=%%2B15551234567&To=%%2B15557654321&Body=hello'\n\n"+
			"Expected response: 200 with a TwiML envelope (Content-Type: text/xml).",
		baseURL, wh.Path)
}

// collectMedia gathers MediaUrl{i}/MediaContentType{i} pairs in index order,
// bounded by NumMedia.
func collectMedia(form map[string]string) []Media {
	count, err := strconv.Atoi(form["NumMedia"])
	if err != nil || count <= 0 {
		return nil
	}

	media := make([]Media, 0, count)
	for i := 0; i < count; i++ {
		u := form[fmt.Sprintf("MediaUrl%d", i)]
		if u == "" {
			continue
		}
		media = append(media, Media{
			URL:         u,
			ContentType: form[fmt.Sprintf("MediaContentType%d", i)],
		})
	}
	return media
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// twimlEnvelope renders the synchronous TwiML reply. The message body is only
// populated when the webhook is configured to send one; otherwise Twilio gets
// an empty envelope and sends nothing back to the sender.
func twimlEnvelope(cfg *webhook.ProviderConfig) string {
	reply := twimlResponse{}
	if cfg.SendReply && cfg.ReplyBody != "" {
		reply.Message = cfg.ReplyBody
	}
	out, err := xml.Marshal(reply)
	if err != nil {
		return xml.Header + "<Response></Response>"
	}
	return xml.Header + string(out)
}
