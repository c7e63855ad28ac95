package payload

import (
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/hookflow-go/pkg/contracts/webhook"
)

// Kind tags the decoded shape of a request body.
type Kind int

const (
	KindJSON Kind = iota
	KindForm
	KindRaw
)

// Payload is the provider-independent decoding of a raw request body. Exactly
// one of JSON, Form or Raw is populated, selected by Kind.
type Payload struct {
	Kind Kind
	JSON map[string]interface{}
	Form map[string]string
	Raw  []byte
}

// Map returns the payload as a generic map regardless of kind, for handing to
// the workflow executor as trigger input.
func (p Payload) Map() map[string]interface{} {
	switch p.Kind {
	case KindJSON:
		return p.JSON
	case KindForm:
		m := make(map[string]interface{}, len(p.Form))
		for k, v := range p.Form {
			m[k] = v
		}
		return m
	default:
		return map[string]interface{}{"raw": string(p.Raw)}
	}
}

// Decode turns a raw body plus content type into a Payload. Decoding is
// forgiving: a JSON body that fails to parse decodes to an empty object, an
// unparseable form falls back to a manual split. Only an empty body is
// rejected, since it can never represent a valid event.
func Decode(body []byte, contentType string) (Payload, error) {
	if len(body) == 0 {
		return Payload{}, webhook.ErrEmptyBody
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}

	switch {
	case mediaType == "application/json":
		return Payload{Kind: KindJSON, JSON: decodeJSON(body)}, nil
	case mediaType == "application/x-www-form-urlencoded":
		return Payload{Kind: KindForm, Form: decodeForm(string(body))}, nil
	case mediaType == "multipart/form-data":
		return Payload{Kind: KindForm, Form: decodeMultipart(body, params["boundary"])}, nil
	default:
		var obj map[string]interface{}
		if err := json.Unmarshal(body, &obj); err == nil && obj != nil {
			return Payload{Kind: KindJSON, JSON: obj}, nil
		}
		return Payload{Kind: KindRaw, Raw: body}, nil
	}
}

func decodeJSON(body []byte) map[string]interface{} {
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return map[string]interface{}{}
	}
	return obj
}

func decodeForm(body string) map[string]string {
	values, err := url.ParseQuery(body)
	if err != nil {
		return fallbackForm(body)
	}
	fields := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			fields[key] = vals[0]
		}
	}
	return fields
}

// fallbackForm is the manual decoder used when url.ParseQuery rejects the
// body: split on & and =, percent-decode, + becomes space.
func fallbackForm(body string) map[string]string {
	fields := make(map[string]string)
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescape(key)
		value = unescape(value)
		if key != "" {
			fields[key] = value
		}
	}
	return fields
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	if decoded, err := url.PathUnescape(s); err == nil {
		return decoded
	}
	return s
}

func decodeMultipart(body []byte, boundary string) map[string]string {
	fields := make(map[string]string)
	if boundary == "" {
		return fields
	}
	reader := multipart.NewReader(strings.NewReader(string(body)), boundary)
	form, err := reader.ReadForm(1 << 20)
	if err != nil {
		return fields
	}
	defer form.RemoveAll()
	for key, vals := range form.Value {
		if len(vals) > 0 {
			fields[key] = vals[0]
		}
	}
	return fields
}
