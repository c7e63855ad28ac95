package provider

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hookflow-go/internal/services/webhook/payload"
	"github.com/hookflow-go/pkg/contracts/webhook"
)

// Response is a fully-formed synchronous HTTP reply.
type Response struct {
	Status      int
	ContentType string
	Body        string
}

func PlainOK(body string) *Response {
	return &Response{Status: http.StatusOK, ContentType: "text/plain; charset=utf-8", Body: body}
}

func JSONAck(body string) *Response {
	return &Response{Status: http.StatusOK, ContentType: "application/json; charset=utf-8", Body: body}
}

func XMLReply(body string) *Response {
	return &Response{Status: http.StatusOK, ContentType: "text/xml; charset=utf-8", Body: body}
}

// Event is the canonical, provider-agnostic representation of one delivery.
type Event struct {
	Provider       webhook.Provider
	IdempotencyKey string
	Payload        map[string]interface{}

	// Ack is the response sent when processing finishes before the deadline.
	Ack *Response

	// DurableKey marks provider-native message ids, which get the long dedup
	// TTL. Request-hash keys only need to absorb short retry bursts.
	DurableKey bool

	// Synchronous events are processed inline with no deadline race. Set by
	// polling-style providers whose downstream work is a bounded fetch.
	Synchronous bool

	// SkipSharedDedupe is set when the provider keeps its own dedup state in
	// the webhook's provider config instead of the shared store.
	SkipSharedDedupe bool

	// PersistConfig asks the pipeline to write the mutated provider config
	// back before dispatching.
	PersistConfig bool
}

// Result is the outcome of adapter normalization: exactly one field is set.
type Result struct {
	// Verification replies are returned synchronously and bypass the
	// dedup/lock path entirely.
	Verification *Response

	// ShortCircuit acknowledges the delivery without dispatching, e.g. a
	// status callback or a polling duplicate.
	ShortCircuit *Response

	Event *Event
}

// Adapter normalizes one provider family's deliveries. The adapter is
// selected once from the webhook's stored provider field, never sniffed from
// the body shape.
type Adapter interface {
	Kind() webhook.Provider

	// Normalize turns a decoded POST body into a verification reply, a
	// short-circuit ack, or a canonical event.
	Normalize(ctx context.Context, wh *webhook.Webhook, p payload.Payload, header http.Header) (*Result, error)

	// Verify handles the GET verification handshake. Providers without one
	// return a plain 200.
	Verify(ctx context.Context, wh *webhook.Webhook, query url.Values) *Response

	// TestInstructions renders human-readable testing guidance for the
	// authenticated test endpoint.
	TestInstructions(wh *webhook.Webhook, baseURL string) string
}

// Registry resolves adapters by provider kind.
type Registry struct {
	adapters map[webhook.Provider]Adapter
	fallback Adapter
}

func NewRegistry() *Registry {
	generic := NewGeneric()
	r := &Registry{
		adapters: make(map[webhook.Provider]Adapter),
		fallback: generic,
	}
	for _, a := range []Adapter{
		generic,
		NewTwilio(),
		NewSlack(),
		NewWhatsApp(),
		NewAirtable(),
	} {
		r.adapters[a.Kind()] = a
	}
	return r
}

// ForWebhook returns the adapter for the webhook's provider, falling back to
// the generic adapter for unknown kinds.
func (r *Registry) ForWebhook(wh *webhook.Webhook) Adapter {
	if a, ok := r.adapters[wh.Provider]; ok {
		return a
	}
	return r.fallback
}
