package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"sort"

	"github.com/hookflow-go/internal/services/webhook/payload"
	"github.com/hookflow-go/pkg/contracts/webhook"
)

// volatileFields are stripped before hashing so that provider retries with a
// fresh timestamp or signature still dedupe to the same key.
var volatileFields = map[string]struct{}{
	"timestamp":  {},
	"nonce":      {},
	"signature":  {},
	"token":      {},
	"request_id": {},
	"requestId":  {},
	"trace_id":   {},
}

// Generic handles webhooks with no provider-specific contract. The
// idempotency key is a hash of the path and the stabilized body.
type Generic struct{}

func NewGeneric() *Generic {
	return &Generic{}
}

func (g *Generic) Kind() webhook.Provider {
	return webhook.ProviderGeneric
}

func (g *Generic) Normalize(_ context.Context, wh *webhook.Webhook, p payload.Payload, _ http.Header) (*Result, error) {
	return &Result{Event: &Event{
		Provider:       webhook.ProviderGeneric,
		IdempotencyKey: requestHash(wh.Path, p),
		Payload:        p.Map(),
		Ack:            PlainOK("OK"),
	}}, nil
}

func (g *Generic) Verify(_ context.Context, _ *webhook.Webhook, _ url.Values) *Response {
	return PlainOK("OK")
}

func (g *Generic) TestInstructions(wh *webhook.Webhook, baseURL string) string {
	return fmt.Sprintf(
		"Send any JSON payload to this webhook:\n\n"+
			"  curl -X POST %s/webhooks/trigger/%s \\\n"+
			"    -H 'Content-Type: application/json' \\\n"+
			"    -d '{\"example\": true}'\n\n"+
			"Expected response: 200 OK with body \"OK\". Repeating the same "+
			"payload within the dedup window returns a duplicate acknowledgement "+
			"without re-triggering the workflow.",
		baseURL, wh.Path)
}

// requestHash computes the generic idempotency key: FNV-64a over the path and
// the canonicalized payload with volatile fields stripped. Collisions are
// tolerated: a false positive suppresses one delivery inside a short TTL
// window, which at-least-once semantics already absorb.
func requestHash(path string, p payload.Payload) string {
	h := fnv.New64a()
	h.Write([]byte(path))
	h.Write([]byte{0})

	switch p.Kind {
	case payload.KindJSON:
		h.Write(canonicalJSON(stripVolatile(p.JSON)))
	case payload.KindForm:
		keys := make([]string, 0, len(p.Form))
		for k := range p.Form {
			if _, skip := volatileFields[k]; skip {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k))
			h.Write([]byte{'='})
			h.Write([]byte(p.Form[k]))
			h.Write([]byte{'&'})
		}
	default:
		h.Write(p.Raw)
	}

	return fmt.Sprintf("req:%016x", h.Sum64())
}

func stripVolatile(obj map[string]interface{}) map[string]interface{} {
	stable := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		if _, skip := volatileFields[k]; skip {
			continue
		}
		stable[k] = v
	}
	return stable
}

// canonicalJSON marshals with deterministic key order. encoding/json already
// sorts map keys, so one marshal is stable for equal inputs.
func canonicalJSON(obj map[string]interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	return data
}
