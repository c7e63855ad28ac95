package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookflow-go/pkg/contracts/webhook"
)

func TestDecode_JSON(t *testing.T) {
	p, err := Decode([]byte(`{"event":"created","count":2}`), "application/json")
	require.NoError(t, err)

	assert.Equal(t, KindJSON, p.Kind)
	assert.Equal(t, "created", p.JSON["event"])
	assert.Equal(t, float64(2), p.JSON["count"])
}

func TestDecode_JSONParseFailureFallsBackToEmptyObject(t *testing.T) {
	p, err := Decode([]byte(`{not json`), "application/json")
	require.NoError(t, err)

	assert.Equal(t, KindJSON, p.Kind)
	assert.Empty(t, p.JSON)
}

func TestDecode_Form(t *testing.T) {
	p, err := Decode([]byte("From=%2B15551234567&Body=hello+world"), "application/x-www-form-urlencoded")
	require.NoError(t, err)

	assert.Equal(t, KindForm, p.Kind)
	assert.Equal(t, "+15551234567", p.Form["From"])
	assert.Equal(t, "hello world", p.Form["Body"])
}

func TestDecode_FormFallbackOnMalformedEncoding(t *testing.T) {
	// The stray % makes url.ParseQuery fail; the manual decoder still
	// recovers the parseable pairs.
	p, err := Decode([]byte("a=1&b=2%zz&c=3"), "application/x-www-form-urlencoded")
	require.NoError(t, err)

	assert.Equal(t, KindForm, p.Kind)
	assert.Equal(t, "1", p.Form["a"])
	assert.Equal(t, "3", p.Form["c"])
}

func TestDecode_Multipart(t *testing.T) {
	body := "--boundary42\r\n" +
		"Content-Disposition: form-data; name=\"field\"\r\n\r\n" +
		"value\r\n" +
		"--boundary42--\r\n"

	p, err := Decode([]byte(body), `multipart/form-data; boundary=boundary42`)
	require.NoError(t, err)

	assert.Equal(t, KindForm, p.Kind)
	assert.Equal(t, "value", p.Form["field"])
}

func TestDecode_UnknownContentTypeTriesJSON(t *testing.T) {
	p, err := Decode([]byte(`{"a":1}`), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, KindJSON, p.Kind)
	assert.Equal(t, float64(1), p.JSON["a"])
}

func TestDecode_UnknownContentTypeWrapsRaw(t *testing.T) {
	p, err := Decode([]byte("not json at all"), "application/octet-stream")
	require.NoError(t, err)

	assert.Equal(t, KindRaw, p.Kind)
	assert.Equal(t, []byte("not json at all"), p.Raw)
	assert.Equal(t, map[string]interface{}{"raw": "not json at all"}, p.Map())
}

func TestDecode_EmptyBodyRejected(t *testing.T) {
	_, err := Decode(nil, "application/json")
	assert.ErrorIs(t, err, webhook.ErrEmptyBody)

	_, err = Decode([]byte{}, "text/plain")
	assert.ErrorIs(t, err, webhook.ErrEmptyBody)
}

func TestPayload_MapFromForm(t *testing.T) {
	p := Payload{Kind: KindForm, Form: map[string]string{"k": "v"}}
	assert.Equal(t, map[string]interface{}{"k": "v"}, p.Map())
}
